package carto

import (
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/muesli/gamut"
)

var airBlocks = map[string]struct{}{
	"minecraft:air":         {},
	"minecraft:cave_air":    {},
	"minecraft:void_air":    {},
	"minecraft:dead_bush":   {},
	"minecraft:short_grass": {},
	"minecraft:lily_pad":    {},
	"minecraft:torch":       {},
	"minecraft:wall_torch":  {},
}

func isAirBlock(block string) bool {
	_, ok := airBlocks[block]
	return ok
}

var grassBlocks = map[string]struct{}{
	"minecraft:grass":       {},
	"minecraft:grass_block": {},
	"minecraft:tall_grass":  {},
	"minecraft:vine":        {},
	"minecraft:fern":        {},
	"minecraft:large_fern":  {},
}

func isGrassBlock(block string) bool {
	_, ok := grassBlocks[block]
	return ok
}

var foliageBlocks = map[string]struct{}{
	"minecraft:oak_leaves":      {},
	"minecraft:jungle_leaves":   {},
	"minecraft:acacia_leaves":   {},
	"minecraft:dark_oak_leaves": {},
	"minecraft:mangrove_leaves": {},
}

func isFoliageBlock(block string) bool {
	_, ok := foliageBlocks[block]
	return ok
}

func isWaterBlock(block string) bool {
	return block == "minecraft:water" || block == "minecraft:bubble_column"
}

var defaultBlockColors = map[string]string{
	"minecraft:stone":                   "#7d7d7d",
	"minecraft:granite":                 "#956756",
	"minecraft:diorite":                 "#bcbcbc",
	"minecraft:andesite":                "#888889",
	"minecraft:deepslate":               "#505053",
	"minecraft:tuff":                    "#6c6d66",
	"minecraft:calcite":                 "#dfe0dc",
	"minecraft:bedrock":                 "#555555",
	"minecraft:grass_block":             "#7fb238",
	"minecraft:grass":                   "#7fb238",
	"minecraft:tall_grass":              "#7fb238",
	"minecraft:fern":                    "#7fb238",
	"minecraft:large_fern":              "#7fb238",
	"minecraft:vine":                    "#6a9a2a",
	"minecraft:dirt":                    "#866043",
	"minecraft:coarse_dirt":             "#77553b",
	"minecraft:rooted_dirt":             "#90684d",
	"minecraft:podzol":                  "#5b3f18",
	"minecraft:mycelium":                "#6f6265",
	"minecraft:mud":                     "#3c393d",
	"minecraft:farmland":                "#8f6646",
	"minecraft:dirt_path":               "#94794a",
	"minecraft:sand":                    "#dbd3a0",
	"minecraft:red_sand":                "#be6621",
	"minecraft:sandstone":               "#d8cb9b",
	"minecraft:red_sandstone":           "#b5621f",
	"minecraft:gravel":                  "#837f7e",
	"minecraft:clay":                    "#a0a6b3",
	"minecraft:terracotta":              "#985e43",
	"minecraft:orange_terracotta":       "#a15325",
	"minecraft:yellow_terracotta":       "#ba8523",
	"minecraft:brown_terracotta":        "#4d3323",
	"minecraft:red_terracotta":          "#8f3d2e",
	"minecraft:white_terracotta":        "#d1b2a1",
	"minecraft:light_gray_terracotta":   "#876a61",
	"minecraft:water":                   "#3f76e4",
	"minecraft:bubble_column":           "#3f76e4",
	"minecraft:lava":                    "#cf5b14",
	"minecraft:ice":                     "#91b7fd",
	"minecraft:packed_ice":              "#8db4fa",
	"minecraft:blue_ice":                "#74a7fd",
	"minecraft:snow":                    "#f9fefe",
	"minecraft:snow_block":              "#f9fefe",
	"minecraft:powder_snow":             "#f8fdfd",
	"minecraft:oak_leaves":              "#4a7a22",
	"minecraft:spruce_leaves":           "#619961",
	"minecraft:birch_leaves":            "#80a755",
	"minecraft:jungle_leaves":           "#3f8a15",
	"minecraft:acacia_leaves":           "#5b8a1e",
	"minecraft:dark_oak_leaves":         "#3b6a1a",
	"minecraft:mangrove_leaves":         "#5e8f28",
	"minecraft:azalea_leaves":           "#5a7528",
	"minecraft:flowering_azalea_leaves": "#64704b",
	"minecraft:cherry_leaves":           "#e5adc2",
	"minecraft:oak_log":                 "#6d5533",
	"minecraft:spruce_log":              "#3b2611",
	"minecraft:birch_log":               "#d8d7d2",
	"minecraft:jungle_log":              "#55441b",
	"minecraft:acacia_log":              "#676157",
	"minecraft:dark_oak_log":            "#3c2e1a",
	"minecraft:oak_planks":              "#a2834f",
	"minecraft:spruce_planks":           "#735531",
	"minecraft:cobblestone":             "#7f7f7f",
	"minecraft:mossy_cobblestone":       "#6e775f",
	"minecraft:moss_block":              "#596e2d",
	"minecraft:stone_bricks":            "#7a797a",
	"minecraft:bricks":                  "#976253",
	"minecraft:obsidian":                "#0f0b19",
	"minecraft:netherrack":              "#622626",
	"minecraft:soul_sand":               "#513e32",
	"minecraft:soul_soil":               "#4b3a2e",
	"minecraft:basalt":                  "#515156",
	"minecraft:blackstone":              "#2a2329",
	"minecraft:crimson_nylium":          "#821f1f",
	"minecraft:warped_nylium":           "#2b7265",
	"minecraft:glowstone":               "#ab8354",
	"minecraft:end_stone":               "#dbdea1",
	"minecraft:pumpkin":                 "#c67318",
	"minecraft:melon":                   "#6f911e",
	"minecraft:cactus":                  "#557f2b",
	"minecraft:sugar_cane":              "#94c065",
	"minecraft:bamboo":                  "#5d901c",
	"minecraft:kelp":                    "#57822b",
	"minecraft:seagrass":                "#3b8a0e",
	"minecraft:tall_seagrass":           "#3b8a0e",
	"minecraft:poppy":                   "#ed302c",
	"minecraft:dandelion":               "#ffec4f",
	"minecraft:brown_mushroom_block":    "#95704f",
	"minecraft:red_mushroom_block":      "#c82e2d",
	"minecraft:hay_block":               "#a68b0c",
	"minecraft:white_wool":              "#e9ecec",
	"minecraft:glass":                   "#c0f5fe",
	"minecraft:prismarine":              "#63a294",
	"minecraft:magma_block":             "#8e3f1f",
	"minecraft:dripstone_block":         "#866b5c",
	"minecraft:sculk":                   "#0d1e24",
}

var missingBlockColor = RGBA(0x7f, 0x7f, 0x7f, 0xff)

// climate colour tables indexed by [temperature][downfall*temperature] in 1/16th steps
type climateTable [17][17]Pixel

func newClimateTable(cold, dry, lush string) climateTable {
	var table climateTable
	warm := gamut.Blends(gamut.Hex(dry), gamut.Hex(lush), 17)
	for j, w := range warm {
		column := gamut.Blends(gamut.Hex(cold), w, 17)
		for i, c := range column {
			table[i][j] = pixelFromColor(c)
		}
	}
	return table
}

func (t *climateTable) lookup(b *Biome) Pixel {
	temp := clamp(b.Temperature, 0, 1)
	wet := clamp(b.Downfall, 0, 1) * temp
	return t[int(temp*16+0.5)][int(wet*16+0.5)]
}

// Palette maps block names to colors. It is immutable once built so colorizers
// can share it between workers.
type Palette struct {
	colors map[string]Pixel

	grassColorMap   image.Image
	foliageColorMap image.Image
	grass           climateTable
	foliage         climateTable
}

// NewPalette returns a palette of the built-in block colors.
func NewPalette() *Palette {
	colors := make(map[string]Pixel, len(defaultBlockColors)+len(airBlocks))
	for name, hex := range defaultBlockColors {
		colors[name] = pixelFromColor(gamut.Hex(hex))
	}
	for name := range airBlocks {
		colors[name] = 0
	}

	return &Palette{
		colors:  colors,
		grass:   newClimateTable("#80b497", "#bfb755", "#47cd33"),
		foliage: newClimateTable("#60a17b", "#aea42a", "#1abf00"),
	}
}

// LoadPaletteFromClientJAR builds on the built-in colors with the average
// texture color of every block state the client JAR describes, and uses the
// JAR's grass and foliage colormaps for biome tinting.
func LoadPaletteFromClientJAR(loader *AssetLoader, logger *log.Logger) (*Palette, error) {
	p := NewPalette()

	var err error
	p.grassColorMap, err = loader.LoadPNG("assets/minecraft/textures/colormap/grass.png")
	if err != nil {
		return nil, fmt.Errorf("failed to load grass colormap: %w", err)
	}
	p.foliageColorMap, err = loader.LoadPNG("assets/minecraft/textures/colormap/foliage.png")
	if err != nil {
		return nil, fmt.Errorf("failed to load foliage colormap: %w", err)
	}

	textures := map[string]Pixel{}
	loaded := 0
	for _, path := range loader.Names("assets/minecraft/blockstates/") {
		name := "minecraft:" + strings.TrimSuffix(strings.TrimPrefix(path, "assets/minecraft/blockstates/"), ".json")
		if isAirBlock(name) {
			continue
		}

		clr, err := blockStateColor(loader, path, textures)
		if err != nil {
			logger.Debug("no texture color for block", "block", name, "err", err)
			continue
		}
		p.colors[name] = clr
		loaded++
	}
	logger.Debug("loaded block colors from client jar", "blocks", loaded)

	return p, nil
}

// Color returns the color of a block and whether the palette knows it. Unknown
// blocks get a neutral gray.
func (p *Palette) Color(name string) (Pixel, bool) {
	clr, ok := p.colors[name]
	if !ok {
		return missingBlockColor, false
	}
	return clr, true
}

// Tinted applies the biome dependent coloring Minecraft uses for grass, leaves
// and water on top of the block's palette color.
func (p *Palette) Tinted(name string, biome *Biome) Pixel {
	if isGrassBlock(name) {
		if p.grassColorMap != nil {
			x, y := biome.ColorMapCoords()
			return pixelFromColor(p.grassColorMap.At(x, y))
		}
		return p.grass.lookup(biome)
	} else if isFoliageBlock(name) {
		if p.foliageColorMap != nil {
			x, y := biome.ColorMapCoords()
			return pixelFromColor(p.foliageColorMap.At(x, y))
		}
		return p.foliage.lookup(biome)
	} else if name == "minecraft:birch_leaves" {
		return RGBA(0x80, 0xa7, 0x55, 0xff)
	} else if name == "minecraft:spruce_leaves" {
		return RGBA(0x61, 0x99, 0x61, 0xff)
	} else if isWaterBlock(name) {
		switch strings.TrimPrefix(biome.Name, "minecraft:") {
		case "swamp", "mangrove_swamp":
			return RGBA(0x61, 0x7b, 0x64, 0xff)
		case "lukewarm_ocean", "deep_lukewarm_ocean":
			return RGBA(0x45, 0xad, 0xf2, 0xff)
		case "warm_ocean", "deep_warm_ocean":
			return RGBA(0x43, 0xd5, 0xee, 0xff)
		case "cold_ocean", "deep_cold_ocean":
			return RGBA(0x3d, 0x57, 0xd6, 0xff)
		case "frozen_river", "frozen_ocean", "deep_frozen_ocean":
			return RGBA(0x39, 0x38, 0xc9, 0xff)
		default:
			return RGBA(0x3f, 0x76, 0xe4, 0xff)
		}
	}
	clr, _ := p.Color(name)
	return clr
}

type blockStateVariant struct {
	Model string `json:"model"`
}

type blockStateMultipart struct {
	Apply variantList `json:"apply"`
}

type blockStateInfo struct {
	Variants  map[string]variantList `json:"variants"`
	Multipart []blockStateMultipart  `json:"multipart"`
}

type modelInfo struct {
	Parent   string            `json:"parent"`
	Textures map[string]string `json:"textures"`
}

// variantList accepts both a single variant object and an array of weighted variants.
type variantList []blockStateVariant

func (v *variantList) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '[' {
		var list []blockStateVariant
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*v = list
		return nil
	}

	var single blockStateVariant
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	*v = variantList{single}
	return nil
}

func (info *blockStateInfo) model() string {
	if len(info.Variants) > 0 {
		keys := make([]string, 0, len(info.Variants))
		for k := range info.Variants {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if vs := info.Variants[k]; len(vs) > 0 {
				return vs[0].Model
			}
		}
	}
	for _, mp := range info.Multipart {
		if len(mp.Apply) > 0 {
			return mp.Apply[0].Model
		}
	}
	return ""
}

var textureKeys = []string{"top", "all", "texture", "end", "side", "cross", "plant", "particle"}

func (m *modelInfo) texture() string {
	if len(m.Textures) == 1 {
		for _, v := range m.Textures {
			if !strings.HasPrefix(v, "#") {
				return v
			}
		}
	}
	for _, key := range textureKeys {
		if v, ok := m.Textures[key]; ok && !strings.HasPrefix(v, "#") {
			return v
		}
	}
	return ""
}

func resourcePath(kind, name string) string {
	if i := strings.IndexByte(name, ':'); i >= 0 {
		name = name[i+1:]
	}
	return fmt.Sprintf("assets/minecraft/%s/%s", kind, name)
}

func blockStateColor(loader *AssetLoader, path string, textures map[string]Pixel) (Pixel, error) {
	var state blockStateInfo
	if err := loader.LoadJSON(path, &state); err != nil {
		return 0, err
	}

	modelName := state.model()
	if modelName == "" {
		return 0, fmt.Errorf("block state %s has no model", path)
	}

	// follow parents until a model names a usable texture
	var texture string
	for depth := 0; modelName != "" && depth < 8; depth++ {
		var model modelInfo
		if err := loader.LoadJSON(resourcePath("models", modelName)+".json", &model); err != nil {
			return 0, err
		}
		if texture = model.texture(); texture != "" {
			break
		}
		modelName = model.Parent
	}
	if texture == "" {
		return 0, fmt.Errorf("model %s has no texture", modelName)
	}

	if clr, ok := textures[texture]; ok {
		return clr, nil
	}

	img, err := loader.LoadPNG(resourcePath("textures", texture) + ".png")
	if err != nil {
		return 0, err
	}
	clr := averageColor(img)
	textures[texture] = clr
	return clr, nil
}

// averageColor weights every texel by its alpha so transparent cut-outs do not
// wash the color out.
func averageColor(texture image.Image) Pixel {
	bounds := texture.Bounds()
	var rr, gg, bb, aa, count float64
	for i := bounds.Min.X; i < bounds.Max.X; i++ {
		for j := bounds.Min.Y; j < bounds.Max.Y; j++ {
			c := color.NRGBA64Model.Convert(texture.At(i, j)).(color.NRGBA64)
			a := float64(c.A)
			rr += float64(c.R) * a
			gg += float64(c.G) * a
			bb += float64(c.B) * a
			aa += a
			count++
		}
	}
	if aa == 0 {
		return 0
	}
	return RGBA(
		uint8(rr/aa/257),
		uint8(gg/aa/257),
		uint8(bb/aa/257),
		uint8(aa/count/257),
	)
}
