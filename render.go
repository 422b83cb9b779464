package carto

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

const DefaultThreads = 4

var ErrInvalidThreads = errors.New("thread count must be at least 1")

type RenderOpts struct {
	Colorizer Colorizer
	Palette   *Palette
	Threads   int
	Verbose   bool

	// ErrorPolicy overrides the processor's policy for failed regions.
	ErrorPolicy ErrorPolicy
	Logger      *log.Logger
}

func (o *RenderOpts) Validate() error {
	if err := o.Colorizer.Validate(); err != nil {
		return err
	}
	if o.Threads < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidThreads, o.Threads)
	}
	return nil
}

type RenderResult struct {
	Regions     int
	Rendered    int
	Failed      int
	OutOfWindow int
	Duration    time.Duration
}

// Renderer colorizes regions on a pool of workers and hands the results to a
// processor from a single goroutine.
type Renderer struct {
	colorizer *RegionColorizer
	threads   int
	verbose   bool
	policy    ErrorPolicy
	logger    *log.Logger
}

func NewRenderer(opts RenderOpts) (*Renderer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	colorizer, err := NewRegionColorizer(opts.Colorizer, opts.Palette)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Renderer{
		colorizer: colorizer,
		threads:   opts.Threads,
		verbose:   opts.Verbose,
		policy:    opts.ErrorPolicy,
		logger:    logger,
	}, nil
}

type regionResult struct {
	pos    RegionPos
	pixels RegionPixels
	err    error
}

// Render draws every region of src into proc. PostProcess only runs when all
// regions were delivered; an aborted or cancelled render returns an error and
// leaves the final output unwritten.
func (r *Renderer) Render(ctx context.Context, src RegionSource, proc Processor) (*RenderResult, error) {
	start := time.Now()

	positions, err := src.Regions()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate regions: %w", err)
	}

	policy := r.policy
	if policy == PolicyDefault {
		policy = proc.ErrorPolicy()
	}

	if err := proc.PreProcess(); err != nil {
		return nil, err
	}

	r.logger.Info("rendering regions", "regions", len(positions), "colorizer", r.colorizer.Variant(), "threads", r.threads)

	renderCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	result := &RenderResult{Regions: len(positions)}
	results := make(chan regionResult, r.threads)

	// the consumer is the only goroutine touching proc and result until done closes
	var abortErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		for res := range results {
			if abortErr != nil {
				continue
			}
			if err := r.deliver(proc, res, result, policy); err != nil {
				abortErr = err
				cancel()
			}
		}
	}()

	g, gctx := errgroup.WithContext(renderCtx)
	g.SetLimit(r.threads)
	for _, pos := range positions {
		pos := pos
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			// regions queued behind an abort are dropped unloaded
			if err := gctx.Err(); err != nil {
				return err
			}
			pixels, err := r.renderRegion(src, pos)
			results <- regionResult{pos: pos, pixels: pixels, err: err}
			return nil
		})
	}
	// region failures travel through results; Wait only reports cancellation,
	// which abortErr and ctx.Err() below already cover
	_ = g.Wait()
	close(results)
	<-done

	result.Duration = time.Since(start)

	if abortErr != nil {
		return result, abortErr
	}
	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("render cancelled after %d of %d regions: %w", result.Rendered, result.Regions, err)
	}

	if err := proc.PostProcess(); err != nil {
		return result, err
	}

	r.logger.Info("finished rendering",
		"rendered", result.Rendered,
		"failed", result.Failed,
		"out_of_window", result.OutOfWindow,
		"duration", result.Duration.Round(time.Millisecond),
	)
	return result, nil
}

func (r *Renderer) renderRegion(src RegionSource, pos RegionPos) (RegionPixels, error) {
	data, err := src.Load(pos)
	if err != nil {
		return nil, fmt.Errorf("failed to load region %v: %w", pos, err)
	}
	return r.colorizer.Colorize(data)
}

func (r *Renderer) deliver(proc Processor, res regionResult, result *RenderResult, policy ErrorPolicy) error {
	err := res.err
	if err == nil {
		err = proc.ProcessRegion(res.pos, res.pixels)
	}

	switch {
	case err == nil:
		result.Rendered++
		if r.verbose {
			r.logger.Info("rendered region", "region", res.pos, "done", result.Rendered, "total", result.Regions)
		}
	case errors.Is(err, ErrRegionOutOfWindow):
		result.OutOfWindow++
		r.logger.Warn("skipping region outside of the image window", "region", res.pos, "err", err)
	case policy == AbortRun:
		return fmt.Errorf("aborting render at region %v: %w", res.pos, err)
	default:
		result.Failed++
		r.logger.Error("failed to render region", "region", res.pos, "err", err)
	}
	return nil
}
