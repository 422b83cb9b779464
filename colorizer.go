package carto

import (
	"errors"
	"fmt"
	"strings"

	"github.com/muesli/gamut"
)

// Colorizer selects how column data is turned into pixels.
type Colorizer int

const (
	ColorizerUnknown Colorizer = iota
	ColorizerSimple
	ColorizerLight
	ColorizerBiome
	ColorizerHeight
	ColorizerTerrain
)

var ErrUnknownColorizer = errors.New("unknown colorizer")

var colorizerNames = map[Colorizer]string{
	ColorizerUnknown: "unknown",
	ColorizerSimple:  "simple",
	ColorizerLight:   "light",
	ColorizerBiome:   "biome",
	ColorizerHeight:  "height",
	ColorizerTerrain: "terrain",
}

// Colorizers lists the selectable colorizers.
var Colorizers = []Colorizer{
	ColorizerSimple,
	ColorizerLight,
	ColorizerBiome,
	ColorizerHeight,
	ColorizerTerrain,
}

func (c Colorizer) String() string {
	if name, ok := colorizerNames[c]; ok {
		return name
	}
	return fmt.Sprintf("colorizer(%d)", int(c))
}

// ParseColorizer returns ColorizerUnknown for any name it does not recognize.
func ParseColorizer(name string) Colorizer {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, c := range Colorizers {
		if colorizerNames[c] == name {
			return c
		}
	}
	return ColorizerUnknown
}

func (c Colorizer) Validate() error {
	for _, known := range Colorizers {
		if c == known {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownColorizer, c)
}

var heightStops = []string{"#000050", "#3f76e4", "#57a639", "#8f6b3e", "#ffffff"}

func heightGradient() []Pixel {
	segments := len(heightStops) - 1
	steps := 256 / segments
	gradient := make([]Pixel, 0, 256)
	for i := 0; i < segments; i++ {
		blend := gamut.Blends(gamut.Hex(heightStops[i]), gamut.Hex(heightStops[i+1]), steps)
		for _, c := range blend {
			gradient = append(gradient, pixelFromColor(c))
		}
	}
	return gradient
}

// RegionColorizer applies one colorizer to whole regions. It only reads its
// palette and lookup tables, so a single instance is safe to share between
// workers and always yields the same pixels for the same region.
type RegionColorizer struct {
	variant Colorizer
	palette *Palette
	heights []Pixel
}

func NewRegionColorizer(variant Colorizer, palette *Palette) (*RegionColorizer, error) {
	if err := variant.Validate(); err != nil {
		return nil, err
	}
	if palette == nil {
		palette = NewPalette()
	}

	return &RegionColorizer{
		variant: variant,
		palette: palette,
		heights: heightGradient(),
	}, nil
}

func (rc *RegionColorizer) Variant() Colorizer {
	return rc.variant
}

// regionKey caches the palette lookups for one region's block key.
type regionKey struct {
	names  []string
	colors []Pixel
}

func (rc *RegionColorizer) resolveKey(data *RegionData) (*regionKey, error) {
	key := &regionKey{
		names:  make([]string, len(data.Blocks)),
		colors: make([]Pixel, len(data.Blocks)),
	}
	for id, name := range data.Blocks {
		key.names[id] = name
		if id == 0 {
			continue
		}
		key.colors[id], _ = rc.palette.Color(name)
	}

	for i := range data.Columns {
		col := &data.Columns[i]
		for _, l := range []Layer{col.Surface, col.Seafloor, col.Transparent, col.Foliage} {
			if _, err := data.BlockName(l.Block); err != nil {
				return nil, fmt.Errorf("column (%d, %d): %w", i%data.Size.Width, i/data.Size.Width, err)
			}
		}
	}
	return key, nil
}

// Colorize renders a region's columns into a fresh pixel buffer.
func (rc *RegionColorizer) Colorize(data *RegionData) (RegionPixels, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}

	key, err := rc.resolveKey(data)
	if err != nil {
		return nil, fmt.Errorf("failed to colorize region %v: %w", data.Pos, err)
	}

	var lit [][16]Pixel
	if rc.variant == ColorizerLight {
		lit = litColors(key)
	}

	width := data.Size.Width
	pixels := make(RegionPixels, data.Size.Columns())
	for z := 0; z < data.Size.Height; z++ {
		for x := 0; x < width; x++ {
			i := z*width + x
			col := &data.Columns[i]

			switch rc.variant {
			case ColorizerSimple:
				pixels[i] = key.colors[col.Top().Block]
			case ColorizerLight:
				top := col.Top()
				pixels[i] = lit[top.Block][top.Brightness()]
			case ColorizerBiome:
				if !col.Top().IsAir() {
					pixels[i] = BiomeByID(col.Biome).Color
				}
			case ColorizerHeight:
				pixels[i] = rc.heightColor(data, col.Top())
			case ColorizerTerrain:
				pixels[i] = rc.terrainColor(data, key, x, z)
			}
		}
	}

	return pixels, nil
}

// litColors precomputes every block color at every light level.
func litColors(key *regionKey) [][16]Pixel {
	lit := make([][16]Pixel, len(key.colors))
	for id, clr := range key.colors {
		if clr == 0 {
			continue
		}
		_, _, _, a := clr.Channels()
		for level := 0; level < 16; level++ {
			d := gamut.Darker(clr.NRGBA(), float64(lightOverlay(uint8(level)))/255)
			r, g, b, _ := pixelFromColor(d).Channels()
			lit[id][level] = RGBA(r, g, b, a)
		}
	}
	return lit
}

func (rc *RegionColorizer) heightColor(data *RegionData, top Layer) Pixel {
	if top.IsAir() {
		return 0
	}
	span := data.MaxY - data.MinY
	if span <= 0 {
		return rc.heights[0]
	}
	idx := (int(top.Height) - data.MinY) * (len(rc.heights) - 1) / span
	idx = max(0, min(idx, len(rc.heights)-1))
	return rc.heights[idx]
}

func (rc *RegionColorizer) terrainColor(data *RegionData, key *regionKey, x, z int) Pixel {
	col := &data.Columns[z*data.Size.Width+x]
	biome := BiomeByID(col.Biome)

	ground, water := col.Surface, col.Transparent
	if !ground.IsAir() && isWaterBlock(key.names[ground.Block]) {
		water = ground
		ground = col.Seafloor
	}

	var clr Pixel
	if !ground.IsAir() {
		clr = rc.palette.Tinted(key.names[ground.Block], biome)
	}

	if !water.IsAir() {
		name := key.names[water.Block]
		if isWaterBlock(name) {
			depth := int(water.Height) - int(ground.Height)
			if ground.IsAir() {
				depth = 16
			}
			clr = darken(rc.palette.Tinted(name, biome), waterShade(depth))
		} else {
			clr = over(rc.palette.Tinted(name, biome), clr)
		}
	}

	if foliage := col.Foliage; !foliage.IsAir() && foliage.Height >= ground.Height {
		clr = over(rc.palette.Tinted(key.names[foliage.Block], biome), clr)
	}

	if clr == 0 {
		return 0
	}

	clr = darken(clr, reliefShade(data, x, z))
	return darken(clr, (15-col.Top().Brightness())*4)
}
