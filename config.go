package carto

import (
	"errors"
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

type Config struct {
	Threads int                  `hcl:"threads,optional"`
	Verbose bool                 `hcl:"verbose,optional"`
	Palette *PaletteConfigBlock  `hcl:"palette,block"`
	Renders []*RenderConfigBlock `hcl:"render,block"`
}

type PaletteConfigBlock struct {
	ClientJAR string `hcl:"client_jar,optional"`
	Version   string `hcl:"version,optional"`
}

type RenderConfigBlock struct {
	Name         string `hcl:"name,label"`
	Source       string `hcl:"source,optional"`
	Path         string `hcl:"path"`
	Output       string `hcl:"output"`
	Colorizer    string `hcl:"colorizer"`
	Window       int    `hcl:"window,optional"`
	PreviewScale int    `hcl:"preview_scale,optional"`
	Threads      int    `hcl:"threads,optional"`
}

var envFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "name", Type: cty.String},
	},
	Type: function.StaticReturnType(cty.String),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		return cty.StringVal(os.Getenv(args[0].AsString())), nil
	},
})

var homeFunc = function.New(&function.Spec{
	Params: []function.Parameter{},
	Type:   function.StaticReturnType(cty.String),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		home, err := os.UserHomeDir()
		if err != nil {
			return cty.NilVal, err
		}
		return cty.StringVal(home), nil
	},
})

func newHCLEvalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{},
		Functions: map[string]function.Function{
			"env":  envFunc,
			"home": homeFunc,
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	var cfg Config
	evalCtx := newHCLEvalContext()
	err := hclsimple.DecodeFile(path, evalCtx, &cfg)
	if err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) ApplyDefaults() {
	if c.Threads == 0 {
		c.Threads = DefaultThreads
	}
	for _, r := range c.Renders {
		if r.Source == "" {
			r.Source = SourceVoxelMap
		}
		if r.Window == 0 {
			r.Window = DefaultWindow
		}
		if r.Threads == 0 {
			r.Threads = c.Threads
		}
	}
}

// Validate reports every invalid setting before any rendering starts.
func (c *Config) Validate() error {
	var errs []error
	if c.Threads < 1 {
		errs = append(errs, fmt.Errorf("%w: got %d", ErrInvalidThreads, c.Threads))
	}

	names := map[string]struct{}{}
	for _, r := range c.Renders {
		if _, ok := names[r.Name]; ok {
			errs = append(errs, fmt.Errorf("render %q is declared twice", r.Name))
		}
		names[r.Name] = struct{}{}

		if err := ParseColorizer(r.Colorizer).Validate(); err != nil {
			errs = append(errs, fmt.Errorf("render %q: %w: %q", r.Name, ErrUnknownColorizer, r.Colorizer))
		}
		if r.Source != SourceVoxelMap && r.Source != SourceAnvil {
			errs = append(errs, fmt.Errorf("render %q: unknown source %q", r.Name, r.Source))
		}
		if r.Threads < 1 {
			errs = append(errs, fmt.Errorf("render %q: %w: got %d", r.Name, ErrInvalidThreads, r.Threads))
		}
		if r.Window < 1 {
			errs = append(errs, fmt.Errorf("render %q: window must be at least 1, got %d", r.Name, r.Window))
		}
		if r.PreviewScale < 0 {
			errs = append(errs, fmt.Errorf("render %q: preview_scale must not be negative", r.Name))
		}
	}
	return errors.Join(errs...)
}

const (
	SourceVoxelMap = "voxelmap"
	SourceAnvil    = "anvil"
)

// OpenSource returns the region source of the given kind reading from path.
func OpenSource(kind, path string) (RegionSource, error) {
	switch kind {
	case SourceVoxelMap, "":
		return NewVoxelMapSource(path), nil
	case SourceAnvil:
		return NewAnvilSource(path), nil
	}
	return nil, fmt.Errorf("unknown region source %q", kind)
}
