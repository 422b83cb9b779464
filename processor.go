package carto

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/image/draw"
)

var ErrRegionOutOfWindow = errors.New("region outside of the image window")

// ErrorPolicy decides what a failed region does to the rest of a render.
type ErrorPolicy int

const (
	// PolicyDefault defers to the processor's own policy.
	PolicyDefault ErrorPolicy = iota
	// SkipRegion logs the failure and keeps rendering.
	SkipRegion
	// AbortRun stops the render and discards the output.
	AbortRun
)

func (p ErrorPolicy) String() string {
	switch p {
	case SkipRegion:
		return "skip"
	case AbortRun:
		return "abort"
	default:
		return "default"
	}
}

// Processor assembles colorized regions into output files. The renderer calls
// PreProcess once, then ProcessRegion once per region (never concurrently),
// then PostProcess once.
type Processor interface {
	PreProcess() error
	ProcessRegion(pos RegionPos, pixels RegionPixels) error
	PostProcess() error
	ErrorPolicy() ErrorPolicy
}

// IsTilePattern reports whether an output pattern produces one tile per region.
func IsTilePattern(pattern string) bool {
	return strings.Contains(pattern, "{x}") && strings.Contains(pattern, "{z}") ||
		strings.Contains(pattern, "{tile}")
}

type ProcessorOpts struct {
	Size RegionSize

	// Window is the number of regions per side covered by a single image.
	Window       int
	PreviewScale int
}

// NewProcessor picks the tile or single image processor based on the pattern.
func NewProcessor(pattern string, opts ProcessorOpts) (Processor, error) {
	if IsTilePattern(pattern) {
		return NewTileProcessor(pattern, opts.Size)
	}
	return NewSingleImageProcessor(pattern, SingleImageOpts{
		Size:         opts.Size,
		WindowWidth:  opts.Window,
		WindowHeight: opts.Window,
		PreviewScale: opts.PreviewScale,
	})
}

// TilePath fills in the {tile}, {x} and {z} placeholders of a tile pattern.
func TilePath(pattern string, pos RegionPos) string {
	x := strconv.Itoa(int(pos.X))
	z := strconv.Itoa(int(pos.Z))
	return strings.NewReplacer(
		"{tile}", x+","+z,
		"{x}", x,
		"{z}", z,
	).Replace(pattern)
}

// TileProcessor writes every region to its own PNG.
type TileProcessor struct {
	pattern string
	size    RegionSize
}

func NewTileProcessor(pattern string, size RegionSize) (*TileProcessor, error) {
	if !size.Valid() {
		return nil, fmt.Errorf("invalid region size %dx%d", size.Width, size.Height)
	}
	return &TileProcessor{
		pattern: pattern,
		size:    size,
	}, nil
}

func (p *TileProcessor) PreProcess() error {
	return nil
}

func (p *TileProcessor) ProcessRegion(pos RegionPos, pixels RegionPixels) error {
	path := TilePath(p.pattern, pos)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for tile %v: %w", pos, err)
	}
	if err := EncodePNG(path, p.size.Width, p.size.Height, pixels); err != nil {
		return fmt.Errorf("failed to write tile %v: %w", pos, err)
	}
	return nil
}

func (p *TileProcessor) PostProcess() error {
	return nil
}

func (p *TileProcessor) ErrorPolicy() ErrorPolicy {
	return SkipRegion
}

const DefaultWindow = 40

type SingleImageOpts struct {
	Size RegionSize

	// WindowWidth and WindowHeight count regions. The window is centered so
	// that region (0, 0) lands in the middle of the image.
	WindowWidth  int
	WindowHeight int

	// PreviewScale > 1 also writes a copy downscaled by that factor.
	PreviewScale int

	Now func() time.Time
}

// SingleImageProcessor stitches regions into one image covering a fixed
// window of the world.
type SingleImageProcessor struct {
	path         string
	size         RegionSize
	width        int
	height       int
	west         int
	north        int
	canvas       []Pixel
	previewScale int
}

// ReplaceTimestamp fills the {t} placeholder with t as Unix seconds.
func ReplaceTimestamp(pattern string, t time.Time) string {
	return strings.ReplaceAll(pattern, "{t}", strconv.FormatInt(t.Unix(), 10))
}

func NewSingleImageProcessor(pattern string, opts SingleImageOpts) (*SingleImageProcessor, error) {
	if !opts.Size.Valid() {
		return nil, fmt.Errorf("invalid region size %dx%d", opts.Size.Width, opts.Size.Height)
	}
	if opts.WindowWidth == 0 {
		opts.WindowWidth = DefaultWindow
	}
	if opts.WindowHeight == 0 {
		opts.WindowHeight = DefaultWindow
	}
	if opts.WindowWidth < 0 || opts.WindowHeight < 0 {
		return nil, fmt.Errorf("invalid image window %dx%d", opts.WindowWidth, opts.WindowHeight)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	width := opts.WindowWidth * opts.Size.Width
	height := opts.WindowHeight * opts.Size.Height
	return &SingleImageProcessor{
		path:         ReplaceTimestamp(pattern, opts.Now()),
		size:         opts.Size,
		width:        width,
		height:       height,
		west:         -(opts.WindowWidth / 2) * opts.Size.Width,
		north:        -(opts.WindowHeight / 2) * opts.Size.Height,
		canvas:       make([]Pixel, width*height),
		previewScale: opts.PreviewScale,
	}, nil
}

// Path is the output path with the timestamp already substituted.
func (p *SingleImageProcessor) Path() string {
	return p.path
}

func (p *SingleImageProcessor) Bounds() (width, height int) {
	return p.width, p.height
}

// Offset returns the canvas position of a region's top-left pixel, or an error
// when any part of the region would fall outside the canvas.
func (p *SingleImageProcessor) Offset(pos RegionPos) (int, int, error) {
	xOff := int(pos.X)*p.size.Width - p.west
	zOff := int(pos.Z)*p.size.Height - p.north
	if xOff < 0 || zOff < 0 || xOff+p.size.Width > p.width || zOff+p.size.Height > p.height {
		return 0, 0, fmt.Errorf("region %v at offset (%d, %d) in a %dx%d image: %w", pos, xOff, zOff, p.width, p.height, ErrRegionOutOfWindow)
	}
	return xOff, zOff, nil
}

func (p *SingleImageProcessor) PreProcess() error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", p.path, err)
	}
	return nil
}

func (p *SingleImageProcessor) ProcessRegion(pos RegionPos, pixels RegionPixels) error {
	w := p.size.Width
	if len(pixels) != p.size.Columns() {
		return fmt.Errorf("region %v has %d pixels, expected %d", pos, len(pixels), p.size.Columns())
	}

	xOff, zOff, err := p.Offset(pos)
	if err != nil {
		return err
	}

	// canvas rows are wider than region rows, so copy line by line
	for line := 0; line < p.size.Height; line++ {
		dst := (zOff+line)*p.width + xOff
		copy(p.canvas[dst:dst+w], pixels[line*w:(line+1)*w])
	}
	return nil
}

func (p *SingleImageProcessor) PostProcess() error {
	img, err := pixelImage(p.width, p.height, p.canvas)
	if err != nil {
		return fmt.Errorf("failed to encode image %s: %w", p.path, err)
	}
	if err := writePNG(p.path, img); err != nil {
		return err
	}

	if p.previewScale > 1 {
		return writePreview(PreviewPath(p.path), img, p.previewScale)
	}
	return nil
}

func (p *SingleImageProcessor) ErrorPolicy() ErrorPolicy {
	return AbortRun
}

// PreviewPath inserts ".preview" before the extension of path.
func PreviewPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".preview" + ext
}

func writePreview(path string, img *image.NRGBA, scale int) error {
	bounds := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, max(1, bounds.Dx()/scale), max(1, bounds.Dy()/scale)))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
	return writePNG(path, dst)
}
