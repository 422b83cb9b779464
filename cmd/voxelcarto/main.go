package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	carto "github.com/b1naryth1ef/voxelcarto"
	"github.com/b1naryth1ef/voxelcarto/build"
	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v2"
)

func quietFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:    "quiet",
		Aliases: []string{"q"},
		Usage:   "do not output info messages",
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:        "voxelcarto",
		Usage:       "render voxel map caches to png",
		Description: "renders VoxelMap caches and Anvil worlds as tiled or single png images",
		Flags: []cli.Flag{
			quietFlag(),
		},
		Commands: []*cli.Command{
			{
				Name:      "render",
				Usage:     "render one cache",
				ArgsUsage: "<cache> <output> (" + strings.Join(colorizerNames(), " | ") + ")",
				Action:    commandRender,
				Flags: []cli.Flag{
					quietFlag(),
					&cli.IntFlag{
						Name:    "threads",
						Aliases: []string{"t"},
						Usage:   "number of regions rendered in parallel",
						Value:   carto.DefaultThreads,
					},
					&cli.BoolFlag{
						Name:    "verbose",
						Aliases: []string{"v"},
						Usage:   "log every rendered region",
					},
					&cli.StringFlag{
						Name:  "source",
						Usage: "cache format, voxelmap or anvil",
						Value: carto.SourceVoxelMap,
					},
					&cli.IntFlag{
						Name:  "window",
						Usage: "regions per side covered by a single image",
						Value: carto.DefaultWindow,
					},
					&cli.IntFlag{
						Name:  "preview-scale",
						Usage: "also write a single image preview downscaled by this factor",
					},
					&cli.PathFlag{
						Name:  "client-jar",
						Usage: "derive block colors from this minecraft client jar",
					},
					&cli.StringFlag{
						Name:  "version",
						Usage: "download the client jar of this minecraft version for block colors",
					},
				},
			},
			{
				Name:   "build",
				Usage:  "run the renders declared in a config file",
				Action: commandBuild,
				Flags: []cli.Flag{
					&cli.PathFlag{
						Name:  "config",
						Usage: "path to the configuration file",
						Value: "config.hcl",
					},
					&cli.StringSliceFlag{
						Name:  "only",
						Usage: "only run the named renders",
					},
				},
			},
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func colorizerNames() []string {
	names := []string{}
	for _, c := range carto.Colorizers {
		names = append(names, c.String())
	}
	return names
}

// quiet reports whether -q was given before or after the command name.
func quiet(ctx *cli.Context) bool {
	for _, c := range ctx.Lineage() {
		if c.Bool("quiet") {
			return true
		}
	}
	return false
}

func newLogger(ctx *cli.Context) *log.Logger {
	level := log.InfoLevel
	if quiet(ctx) {
		level = log.WarnLevel
	}
	return log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

func commandRender(ctx *cli.Context) error {
	if ctx.NArg() != 3 {
		return cli.Exit(fmt.Sprintf("usage: %s render [options] %s", ctx.App.Name, ctx.Command.ArgsUsage), 2)
	}

	colorizer := ctx.Args().Get(2)
	if err := carto.ParseColorizer(colorizer).Validate(); err != nil {
		return fmt.Errorf("%w %q, expected one of %s", carto.ErrUnknownColorizer, colorizer, strings.Join(colorizerNames(), ", "))
	}
	if threads := ctx.Int("threads"); threads < 1 {
		return fmt.Errorf("%w: got %d", carto.ErrInvalidThreads, threads)
	}

	config := &carto.Config{
		Threads: ctx.Int("threads"),
		Verbose: ctx.Bool("verbose"),
		Renders: []*carto.RenderConfigBlock{
			{
				Name:         "render",
				Source:       ctx.String("source"),
				Path:         ctx.Args().Get(0),
				Output:       ctx.Args().Get(1),
				Colorizer:    colorizer,
				Window:       ctx.Int("window"),
				PreviewScale: ctx.Int("preview-scale"),
			},
		},
	}
	if ctx.Path("client-jar") != "" || ctx.String("version") != "" {
		config.Palette = &carto.PaletteConfigBlock{
			ClientJAR: ctx.Path("client-jar"),
			Version:   ctx.String("version"),
		}
	}

	logger := newLogger(ctx)
	logger.Info("rendering", "cache", ctx.Args().Get(0), "output", ctx.Args().Get(1), "colorizer", colorizer)

	return build.Build(ctx.Context, config, build.BuildOpts{
		Logger: logger,
	})
}

func commandBuild(ctx *cli.Context) error {
	config, err := carto.LoadConfig(ctx.Path("config"))
	if err != nil {
		return err
	}

	return build.Build(ctx.Context, config, build.BuildOpts{
		Logger: newLogger(ctx),
		Only:   ctx.StringSlice("only"),
	})
}
