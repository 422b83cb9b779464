package carto

import (
	"image/color"
	"math"
	"strings"
)

// Biome describes a biome id as stored in the region columns: its map color
// and the climate values that drive grass and foliage tinting.
type Biome struct {
	ID          uint8
	Name        string
	Color       Pixel
	Temperature float64
	Downfall    float64
}

// ColorMapCoords locates the biome on a 256x256 grass/foliage colormap.
func (b *Biome) ColorMapCoords() (int, int) {
	t := clamp(b.Temperature, 0, 1)
	r := clamp(b.Downfall, 0, 1) * t
	x := int(math.Ceil(255 - (t * 255)))
	y := int(math.Ceil(255 - (r * 255)))
	return x, y
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	} else if v > max {
		return max
	}
	return v
}

var unknownBiome = Biome{
	Name:        "unknown",
	Color:       RGBA(0x80, 0x80, 0x80, 0xff),
	Temperature: 0.5,
	Downfall:    0.5,
}

type biomeEntry struct {
	id          uint8
	names       []string
	color       uint32
	temperature float64
	downfall    float64
}

// Legacy numeric ids; biomes introduced after numeric ids were retired use 174 and up.
var biomeEntries = []biomeEntry{
	{0, []string{"ocean"}, 0x000070, 0.5, 0.5},
	{1, []string{"plains"}, 0x8db360, 0.8, 0.4},
	{2, []string{"desert"}, 0xfa9418, 2.0, 0.0},
	{3, []string{"windswept_hills", "mountains", "extreme_hills"}, 0x606060, 0.2, 0.3},
	{4, []string{"forest"}, 0x056621, 0.7, 0.8},
	{5, []string{"taiga"}, 0x0b6659, 0.25, 0.8},
	{6, []string{"swamp"}, 0x07f9b2, 0.8, 0.9},
	{7, []string{"river"}, 0x0000ff, 0.5, 0.5},
	{8, []string{"nether_wastes", "nether"}, 0xbf3b3b, 2.0, 0.0},
	{9, []string{"the_end"}, 0x8080ff, 0.5, 0.5},
	{10, []string{"frozen_ocean"}, 0x7070d6, 0.0, 0.5},
	{11, []string{"frozen_river"}, 0xa0a0ff, 0.0, 0.5},
	{12, []string{"snowy_plains", "snowy_tundra"}, 0xffffff, 0.0, 0.5},
	{13, []string{"snowy_mountains"}, 0xa0a0a0, 0.0, 0.5},
	{14, []string{"mushroom_fields"}, 0xff00ff, 0.9, 1.0},
	{15, []string{"mushroom_field_shore"}, 0xa000ff, 0.9, 1.0},
	{16, []string{"beach"}, 0xfade55, 0.8, 0.4},
	{17, []string{"desert_hills"}, 0xd25f12, 2.0, 0.0},
	{18, []string{"wooded_hills"}, 0x22551c, 0.7, 0.8},
	{19, []string{"taiga_hills"}, 0x163933, 0.25, 0.8},
	{20, []string{"mountain_edge"}, 0x72789a, 0.2, 0.3},
	{21, []string{"jungle"}, 0x537b09, 0.95, 0.9},
	{22, []string{"jungle_hills"}, 0x2c4205, 0.95, 0.9},
	{23, []string{"sparse_jungle", "jungle_edge"}, 0x628b17, 0.95, 0.8},
	{24, []string{"deep_ocean"}, 0x000030, 0.5, 0.5},
	{25, []string{"stony_shore", "stone_shore"}, 0xa2a284, 0.2, 0.3},
	{26, []string{"snowy_beach"}, 0xfaf0c0, 0.05, 0.3},
	{27, []string{"birch_forest"}, 0x307444, 0.6, 0.6},
	{28, []string{"birch_forest_hills"}, 0x1f5f32, 0.6, 0.6},
	{29, []string{"dark_forest"}, 0x40511a, 0.7, 0.8},
	{30, []string{"snowy_taiga"}, 0x31554a, -0.5, 0.4},
	{31, []string{"snowy_taiga_hills"}, 0x243f36, -0.5, 0.4},
	{32, []string{"old_growth_pine_taiga", "giant_tree_taiga"}, 0x596651, 0.3, 0.8},
	{33, []string{"giant_tree_taiga_hills"}, 0x454f3e, 0.3, 0.8},
	{34, []string{"windswept_forest", "wooded_mountains"}, 0x507050, 0.2, 0.3},
	{35, []string{"savanna"}, 0xbdb25f, 1.2, 0.0},
	{36, []string{"savanna_plateau"}, 0xa79d64, 1.0, 0.0},
	{37, []string{"badlands"}, 0xd94515, 2.0, 0.0},
	{38, []string{"wooded_badlands", "wooded_badlands_plateau"}, 0xb09765, 2.0, 0.0},
	{39, []string{"badlands_plateau"}, 0xca8c65, 2.0, 0.0},
	{40, []string{"small_end_islands"}, 0x8080ff, 0.5, 0.5},
	{41, []string{"end_midlands"}, 0x8080ff, 0.5, 0.5},
	{42, []string{"end_highlands"}, 0x8080ff, 0.5, 0.5},
	{43, []string{"end_barrens"}, 0x8080ff, 0.5, 0.5},
	{44, []string{"warm_ocean"}, 0x0000ac, 0.5, 0.5},
	{45, []string{"lukewarm_ocean"}, 0x000090, 0.5, 0.5},
	{46, []string{"cold_ocean"}, 0x202070, 0.5, 0.5},
	{47, []string{"deep_warm_ocean"}, 0x000050, 0.5, 0.5},
	{48, []string{"deep_lukewarm_ocean"}, 0x000040, 0.5, 0.5},
	{49, []string{"deep_cold_ocean"}, 0x202038, 0.5, 0.5},
	{50, []string{"deep_frozen_ocean"}, 0x404090, 0.5, 0.5},
	{127, []string{"the_void"}, 0x000000, 0.5, 0.5},
	{129, []string{"sunflower_plains"}, 0xb5db88, 0.8, 0.4},
	{130, []string{"desert_lakes"}, 0xffbc40, 2.0, 0.0},
	{131, []string{"windswept_gravelly_hills", "gravelly_mountains"}, 0x888888, 0.2, 0.3},
	{132, []string{"flower_forest"}, 0x2d8e49, 0.7, 0.8},
	{133, []string{"taiga_mountains"}, 0x338e81, 0.25, 0.8},
	{134, []string{"swamp_hills"}, 0x2fffda, 0.8, 0.9},
	{140, []string{"ice_spikes"}, 0xb4dcdc, 0.0, 0.5},
	{149, []string{"modified_jungle"}, 0x7ba331, 0.95, 0.9},
	{151, []string{"modified_jungle_edge"}, 0x8ab33f, 0.95, 0.8},
	{155, []string{"old_growth_birch_forest", "tall_birch_forest"}, 0x589c6c, 0.6, 0.6},
	{157, []string{"dark_forest_hills"}, 0x687942, 0.7, 0.8},
	{158, []string{"snowy_taiga_mountains"}, 0x597d72, -0.5, 0.4},
	{160, []string{"old_growth_spruce_taiga", "giant_spruce_taiga"}, 0x818e79, 0.25, 0.8},
	{162, []string{"modified_gravelly_mountains"}, 0x789878, 0.2, 0.3},
	{163, []string{"windswept_savanna", "shattered_savanna"}, 0xe5da87, 1.1, 0.0},
	{164, []string{"shattered_savanna_plateau"}, 0xcfc58c, 1.0, 0.0},
	{165, []string{"eroded_badlands"}, 0xff6d3d, 2.0, 0.0},
	{168, []string{"bamboo_jungle"}, 0x768e14, 0.95, 0.9},
	{169, []string{"bamboo_jungle_hills"}, 0x3b470a, 0.95, 0.9},
	{170, []string{"soul_sand_valley"}, 0x5e3830, 2.0, 0.0},
	{171, []string{"crimson_forest"}, 0xdd0808, 2.0, 0.0},
	{172, []string{"warped_forest"}, 0x49907b, 2.0, 0.0},
	{173, []string{"basalt_deltas"}, 0x403636, 2.0, 0.0},
	{174, []string{"meadow"}, 0x83bb6d, 0.5, 0.8},
	{175, []string{"grove"}, 0x8ab689, -0.2, 0.8},
	{176, []string{"snowy_slopes"}, 0xc4c4c4, -0.3, 0.9},
	{177, []string{"frozen_peaks"}, 0xa0a0ff, -0.7, 0.9},
	{178, []string{"jagged_peaks"}, 0xdcdcc8, -0.7, 0.9},
	{179, []string{"stony_peaks"}, 0x7b8f74, 1.0, 0.3},
	{180, []string{"dripstone_caves"}, 0x7b6a5b, 0.8, 0.4},
	{181, []string{"lush_caves"}, 0x283c00, 0.5, 0.5},
	{182, []string{"deep_dark"}, 0x031f29, 0.8, 0.4},
	{183, []string{"mangrove_swamp"}, 0x2ccc8e, 0.8, 0.9},
	{184, []string{"cherry_grove"}, 0xff91c8, 0.5, 0.8},
	{185, []string{"pale_garden"}, 0x696d95, 0.7, 0.8},
}

var (
	biomesByID   [256]*Biome
	biomesByName = map[string]*Biome{}
)

func init() {
	for _, e := range biomeEntries {
		b := &Biome{
			ID:          e.id,
			Name:        "minecraft:" + e.names[0],
			Color:       RGBA(uint8(e.color>>16), uint8(e.color>>8), uint8(e.color), 0xff),
			Temperature: e.temperature,
			Downfall:    e.downfall,
		}
		biomesByID[e.id] = b
		for _, name := range e.names {
			biomesByName[name] = b
		}
	}
}

// BiomeByID returns the biome for a column's biome id, falling back to a neutral
// gray biome for unmapped ids.
func BiomeByID(id uint8) *Biome {
	if b := biomesByID[id]; b != nil {
		return b
	}
	return &unknownBiome
}

// BiomeByName resolves a (optionally namespaced) biome name.
func BiomeByName(name string) (*Biome, bool) {
	b, ok := biomesByName[strings.TrimPrefix(name, "minecraft:")]
	return b, ok
}

func pixelFromColor(c color.Color) Pixel {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return RGBA(n.R, n.G, n.B, n.A)
}

func (p Pixel) NRGBA() color.NRGBA {
	r, g, b, a := p.Channels()
	return color.NRGBA{R: r, G: g, B: b, A: a}
}
