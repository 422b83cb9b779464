package carto

import (
	"errors"
	"fmt"
)

var ErrInvalidRegionData = errors.New("invalid region data")

// RegionPos identifies a region on the (unbounded) region grid.
type RegionPos struct {
	X int32
	Z int32
}

func (p RegionPos) String() string {
	return fmt.Sprintf("(%d, %d)", p.X, p.Z)
}

// RegionSize is the number of columns a region spans along x (Width) and z (Height).
type RegionSize struct {
	Width  int
	Height int
}

func (s RegionSize) Columns() int {
	return s.Width * s.Height
}

func (s RegionSize) Valid() bool {
	return s.Width > 0 && s.Height > 0
}

// Pixel is a packed 0xAABBGGRR color. Stored little-endian it matches the byte
// layout of image.NRGBA, so sinks copy it without reordering channels.
type Pixel uint32

func RGBA(r, g, b, a uint8) Pixel {
	return Pixel(uint32(a)<<24 | uint32(b)<<16 | uint32(g)<<8 | uint32(r))
}

func (p Pixel) Channels() (r, g, b, a uint8) {
	return uint8(p), uint8(p >> 8), uint8(p >> 16), uint8(p >> 24)
}

// RegionPixels holds one pixel per column in row-major order (z*Width + x).
type RegionPixels []Pixel

// Layer is one of the recorded heights of a column and the block found there.
// Block indexes RegionData.Blocks, 0 is air. Light keeps sky light in the high
// nibble and block light in the low nibble.
type Layer struct {
	Height int16
	Block  uint16
	Light  uint8
}

func (l Layer) IsAir() bool {
	return l.Block == 0
}

func (l Layer) SkyLight() uint8 {
	return l.Light >> 4
}

func (l Layer) BlockLight() uint8 {
	return l.Light & 0x0f
}

// Brightness is the stronger of the sky and block light levels (0-15).
func (l Layer) Brightness() uint8 {
	return max(l.SkyLight(), l.BlockLight())
}

type Column struct {
	Surface     Layer
	Seafloor    Layer
	Transparent Layer
	Foliage     Layer
	Biome       uint8
}

// Top returns the highest non-air layer of the column. Ties prefer the
// transparent layer, then foliage, then the surface.
func (c *Column) Top() Layer {
	top := c.Surface
	for _, l := range []Layer{c.Foliage, c.Transparent} {
		if l.IsAir() {
			continue
		}
		if top.IsAir() || l.Height >= top.Height {
			top = l
		}
	}
	return top
}

// RegionData is the decoded column data of a single region, as yielded by a
// RegionSource.
type RegionData struct {
	Pos  RegionPos
	Size RegionSize

	// MinY and MaxY bound the heights recorded in the columns.
	MinY int
	MaxY int

	// Blocks maps a layer's block id to a namespaced block name.
	Blocks  []string
	Columns []Column
}

func (d *RegionData) Validate() error {
	if !d.Size.Valid() {
		return fmt.Errorf("region %v has size %dx%d: %w", d.Pos, d.Size.Width, d.Size.Height, ErrInvalidRegionData)
	}
	if len(d.Columns) != d.Size.Columns() {
		return fmt.Errorf("region %v has %d columns, expected %d: %w", d.Pos, len(d.Columns), d.Size.Columns(), ErrInvalidRegionData)
	}
	if d.MaxY < d.MinY {
		return fmt.Errorf("region %v has height range %d..%d: %w", d.Pos, d.MinY, d.MaxY, ErrInvalidRegionData)
	}
	return nil
}

func (d *RegionData) BlockName(id uint16) (string, error) {
	if int(id) >= len(d.Blocks) {
		return "", fmt.Errorf("region %v references block id %d past a key of %d entries: %w", d.Pos, id, len(d.Blocks), ErrInvalidRegionData)
	}
	if id != 0 && d.Blocks[id] == "" {
		return "", fmt.Errorf("region %v references block id %d missing from its key: %w", d.Pos, id, ErrInvalidRegionData)
	}
	return d.Blocks[id], nil
}

// RegionSource enumerates regions and loads their column data.
type RegionSource interface {
	Size() RegionSize
	Regions() ([]RegionPos, error)
	Load(pos RegionPos) (*RegionData, error)
}
