package carto

import (
	"github.com/Tnze/go-mc/level"
	"github.com/Tnze/go-mc/save"
)

type sectionCache struct {
	chunk *save.Chunk
	cache map[int]*sectionCacheItem
}

type sectionCacheItem struct {
	section *save.Section
	storage *level.BitStorage
	biomes  *level.BitStorage
}

func newSectionCache(chunk *save.Chunk) *sectionCache {
	return &sectionCache{
		chunk: chunk,
		cache: make(map[int]*sectionCacheItem),
	}
}

// get returns the section at index (counted from the bottom of the chunk), or
// nil when the chunk has no such section.
func (c *sectionCache) get(index int) *sectionCacheItem {
	sc, ok := c.cache[index]
	if !ok {
		if index < 0 || len(c.chunk.Sections) <= index {
			return nil
		}

		section := &c.chunk.Sections[index]
		sc = &sectionCacheItem{section: section}

		if len(section.BlockStates.Palette) > 1 && len(section.BlockStates.Data) > 0 {
			v := calcBitsPerValue(16*16*16, len(section.BlockStates.Data))
			sc.storage = level.NewBitStorage(v, 16*16*16, section.BlockStates.Data)
		}
		if len(section.Biomes.Palette) > 1 && len(section.Biomes.Data) > 0 {
			v := calcBitsPerValue(4*4*4, len(section.Biomes.Data))
			sc.biomes = level.NewBitStorage(v, 4*4*4, section.Biomes.Data)
		}

		c.cache[index] = sc
	}
	return sc
}

// block returns the block state at chunk-local x, z and section-local y.
func (sc *sectionCacheItem) block(x, y, z int) (save.BlockState, bool) {
	palette := sc.section.BlockStates.Palette
	switch {
	case len(palette) == 0:
		return save.BlockState{}, false
	case sc.storage == nil:
		return palette[0], true
	}

	idx := sc.storage.Get((((y * 16) + z) * 16) + x)
	if idx >= len(palette) {
		return save.BlockState{}, false
	}
	return palette[idx], true
}

func (sc *sectionCacheItem) biome(x, y, z int) save.BiomeState {
	palette := sc.section.Biomes.Palette
	switch {
	case len(palette) == 0:
		return ""
	case sc.biomes == nil:
		return palette[0]
	}

	bx, by, bz := x>>2, y>>2, z>>2
	idx := sc.biomes.Get((by*4+bz)*4 + bx)
	if idx >= len(palette) {
		return ""
	}
	return palette[idx]
}

// light packs the sky light (high nibble) and block light (low nibble) at a position.
func (sc *sectionCacheItem) light(x, y, z int) uint8 {
	idx := (y << 8) | (z << 4) | x
	return nibble(sc.section.SkyLight, idx)<<4 | nibble(sc.section.BlockLight, idx)
}

func nibble(data []byte, idx int) uint8 {
	if len(data) <= idx/2 {
		return 0
	}
	raw := data[idx/2]
	if idx&1 > 0 {
		return (raw >> 4) & 0x0f
	}
	return raw & 0x0f
}

func calcBitsPerValue(length, longs int) (bits int) {
	if longs == 0 || length == 0 {
		return 0
	}
	valuePerLong := (length + longs - 1) / longs
	return 64 / valuePerLong
}
