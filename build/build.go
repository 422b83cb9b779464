package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	carto "github.com/b1naryth1ef/voxelcarto"
	"github.com/b1naryth1ef/voxelcarto/dl"
	"github.com/charmbracelet/log"
)

type BuildOpts struct {
	Logger *log.Logger

	// ResourceDir holds downloaded client JARs.
	ResourceDir string

	// Only restricts the build to the named renders when set.
	Only []string

	Downloader *dl.Client
}

func (o *BuildOpts) logger() *log.Logger {
	if o.Logger == nil {
		return log.Default()
	}
	return o.Logger
}

func clientJarPath(cfg *carto.PaletteConfigBlock, resourceDir string) string {
	if cfg.ClientJAR != "" {
		return cfg.ClientJAR
	}
	version := cfg.Version
	if version == "" {
		version = "latest"
	}
	return filepath.Join(resourceDir, fmt.Sprintf("client-%s.jar", version))
}

// loadPalette returns the built-in palette unless the config names a client
// JAR or a version to download one for.
func loadPalette(ctx context.Context, config *carto.Config, opts BuildOpts) (*carto.Palette, error) {
	if config.Palette == nil || (config.Palette.ClientJAR == "" && config.Palette.Version == "") {
		return carto.NewPalette(), nil
	}

	resourceDir := opts.ResourceDir
	if resourceDir == "" {
		resourceDir = "res"
	}
	path := clientJarPath(config.Palette, resourceDir)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if config.Palette.Version == "" && config.Palette.ClientJAR != "" {
			return nil, fmt.Errorf("client jar %s does not exist", path)
		}

		downloader := opts.Downloader
		if downloader == nil {
			downloader = dl.NewClient()
		}
		opts.logger().Info("downloading client jar", "version", config.Palette.Version, "path", path)
		if err := downloader.DownloadClientJAR(ctx, config.Palette.Version, path); err != nil {
			return nil, err
		}
	}

	loader, err := carto.NewAssetLoaderFromClientJAR(path)
	if err != nil {
		return nil, err
	}
	defer loader.Close()

	return carto.LoadPaletteFromClientJAR(loader, opts.logger())
}

func selected(name string, only []string) bool {
	if len(only) == 0 {
		return true
	}
	for _, o := range only {
		if o == name {
			return true
		}
	}
	return false
}

// Render runs a single render job.
func Render(ctx context.Context, config *carto.Config, renderCfg *carto.RenderConfigBlock, palette *carto.Palette, logger *log.Logger) (*carto.RenderResult, error) {
	source, err := carto.OpenSource(renderCfg.Source, renderCfg.Path)
	if err != nil {
		return nil, err
	}

	renderer, err := carto.NewRenderer(carto.RenderOpts{
		Colorizer: carto.ParseColorizer(renderCfg.Colorizer),
		Palette:   palette,
		Threads:   renderCfg.Threads,
		Verbose:   config.Verbose,
		Logger:    logger.With("render", renderCfg.Name),
	})
	if err != nil {
		return nil, err
	}

	processor, err := carto.NewProcessor(renderCfg.Output, carto.ProcessorOpts{
		Size:         source.Size(),
		Window:       renderCfg.Window,
		PreviewScale: renderCfg.PreviewScale,
	})
	if err != nil {
		return nil, err
	}

	return renderer.Render(ctx, source, processor)
}

func Build(ctx context.Context, config *carto.Config, opts BuildOpts) error {
	logger := opts.logger()

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return err
	}

	for _, name := range opts.Only {
		found := false
		for _, r := range config.Renders {
			found = found || r.Name == name
		}
		if !found {
			return fmt.Errorf("no render named %q in config", name)
		}
	}

	palette, err := loadPalette(ctx, config, opts)
	if err != nil {
		return err
	}

	for _, renderCfg := range config.Renders {
		if !selected(renderCfg.Name, opts.Only) {
			continue
		}

		start := time.Now()
		result, err := Render(ctx, config, renderCfg, palette, logger)
		if err != nil {
			return fmt.Errorf("render %q: %w", renderCfg.Name, err)
		}

		logger.Info("finished render",
			"render", renderCfg.Name,
			"duration", time.Since(start).Round(time.Millisecond),
			"rendered", result.Rendered,
			"failed", result.Failed,
			"out_of_window", result.OutOfWindow,
		)
	}

	return nil
}
