package carto

import (
	"errors"
	"fmt"
	"io"
	"math/bits"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Tnze/go-mc/level"
	"github.com/Tnze/go-mc/save"
	"github.com/Tnze/go-mc/save/region"
)

// AnvilRegionSize is the size of a region file: 32x32 chunks of 16x16 columns.
var AnvilRegionSize = RegionSize{Width: 32 * 16, Height: 32 * 16}

// AnvilSource reads the "r.<x>.<z>.mca" region files of a world dimension.
type AnvilSource struct {
	dir string
}

func NewAnvilSource(dir string) *AnvilSource {
	return &AnvilSource{dir: dir}
}

func (s *AnvilSource) Size() RegionSize {
	return AnvilRegionSize
}

func parseAnvilName(name string) (RegionPos, bool) {
	parts := strings.Split(name, ".")
	if len(parts) != 4 || parts[0] != "r" || parts[3] != "mca" {
		return RegionPos{}, false
	}
	x, err := strconv.ParseInt(parts[1], 10, 32)
	if err != nil {
		return RegionPos{}, false
	}
	z, err := strconv.ParseInt(parts[2], 10, 32)
	if err != nil {
		return RegionPos{}, false
	}
	return RegionPos{X: int32(x), Z: int32(z)}, true
}

func (s *AnvilSource) Regions() ([]RegionPos, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read region directory %s: %w", s.dir, err)
	}

	positions := []RegionPos{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		pos, ok := parseAnvilName(e.Name())
		if !ok {
			continue
		}
		// freshly created region files are empty until the first chunk is saved
		if info, err := e.Info(); err == nil && info.Size() == 0 {
			continue
		}
		positions = append(positions, pos)
	}
	sortPositions(positions)
	return positions, nil
}

func isCompleteChunk(status string) bool {
	switch status {
	case "minecraft:full", "minecraft:spawn", "minecraft:postprocessed", "minecraft:fullchunk",
		"full", "spawn", "postprocessed", "fullchunk":
		return true
	}
	return false
}

// anvilRegion accumulates the columns of one region while its chunks are read.
type anvilRegion struct {
	data   *RegionData
	ids    map[string]uint16
	height bool
}

func (r *anvilRegion) intern(name string) uint16 {
	if id, ok := r.ids[name]; ok {
		return id
	}
	id := uint16(len(r.data.Blocks))
	r.data.Blocks = append(r.data.Blocks, name)
	r.ids[name] = id
	return id
}

func (s *AnvilSource) Load(pos RegionPos) (*RegionData, error) {
	path := filepath.Join(s.dir, fmt.Sprintf("r.%d.%d.mca", pos.X, pos.Z))
	reg, err := region.Open(path)
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("region file %s is empty: %w", path, ErrInvalidRegionData)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open region file %s: %w", path, err)
	}
	defer reg.Close()

	r := &anvilRegion{
		data: &RegionData{
			Pos:     pos,
			Size:    AnvilRegionSize,
			MinY:    0,
			MaxY:    255,
			Blocks:  []string{"minecraft:air"},
			Columns: make([]Column, AnvilRegionSize.Columns()),
		},
		ids: map[string]uint16{"minecraft:air": 0},
	}

	// chunks are read in a fixed order so block ids are stable between runs
	for cz := 0; cz < 32; cz++ {
		for cx := 0; cx < 32; cx++ {
			sector, err := reg.ReadSector(cx, cz)
			if errors.Is(err, region.ErrNoSector) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("failed to read chunk (%d, %d) of %s: %w", cx, cz, path, err)
			}
			if len(sector) == 0 {
				return nil, fmt.Errorf("chunk (%d, %d) of %s is out of bounds: %w", cx, cz, path, ErrInvalidRegionData)
			}

			var chunk save.Chunk
			if err := chunk.Load(sector); err != nil {
				return nil, fmt.Errorf("failed to decode chunk (%d, %d) of %s: %w", cx, cz, path, err)
			}
			if !isCompleteChunk(chunk.Status) {
				continue
			}

			r.scanChunk(&chunk, cx, cz)
		}
	}

	return r.data, nil
}

// scanChunk reduces a chunk to columns. The surface is the first non air block
// at or below the MOTION_BLOCKING heightmap, the seafloor the same below
// OCEAN_FLOOR when the surface is water.
func (r *anvilRegion) scanChunk(chunk *save.Chunk, cx, cz int) {
	if len(chunk.Sections) == 0 {
		return
	}
	motionData, ok := chunk.Heightmaps["MOTION_BLOCKING"]
	if !ok {
		return
	}
	floorData := chunk.Heightmaps["OCEAN_FLOOR"]

	bitsForHeight := bits.Len(uint(len(chunk.Sections))*16 + 1)
	motionBlocking := newHeightmap(bitsForHeight, motionData)
	if motionBlocking == nil {
		return
	}
	oceanFloor := newHeightmap(bitsForHeight, floorData)

	minY := int(chunk.Sections[0].Y) * 16
	if !r.height {
		r.data.MinY = minY
		r.data.MaxY = minY + len(chunk.Sections)*16 - 1
		r.height = true
	}

	cache := newSectionCache(chunk)
	width := r.data.Size.Width

	for z := 0; z < 16; z++ {
		for x := 0; x < 16; x++ {
			heightmapIndex := (z * 16) + x
			col := &r.data.Columns[(cz*16+z)*width+cx*16+x]

			surface, name, biome, ok := r.scan(cache, x, z, motionBlocking.Get(heightmapIndex), minY)
			if !ok {
				continue
			}
			col.Surface = surface
			col.Biome = biome

			if isWaterBlock(name) && oceanFloor != nil {
				floor, _, _, ok := r.scan(cache, x, z, oceanFloor.Get(heightmapIndex), minY)
				if ok {
					col.Seafloor = floor
				}
			}
		}
	}
}

// newHeightmap returns nil for missing or malformed heightmaps instead of
// letting the bit storage panic on a length mismatch.
func newHeightmap(bits int, data []uint64) *level.BitStorage {
	perLong := 64 / bits
	if len(data) == 0 || len(data) != (16*16+perLong-1)/perLong {
		return nil
	}
	return level.NewBitStorage(bits, 16*16, data)
}

func (r *anvilRegion) scan(cache *sectionCache, x, z, yStart, minY int) (Layer, string, uint8, bool) {
	for y := yStart; y >= 0; y-- {
		sc := cache.get(y / 16)
		if sc == nil {
			continue
		}

		state, ok := sc.block(x, y%16, z)
		if !ok || isAirBlock(state.Name) {
			continue
		}

		layer := Layer{
			Height: int16(y + minY),
			Block:  r.intern(state.Name),
		}
		// opaque blocks have no light of their own, so sample the block above
		if above := cache.get((y + 1) / 16); above != nil {
			layer.Light = above.light(x, (y+1)%16, z)
		} else {
			layer.Light = 0xf0
		}

		biome := uint8(255)
		if b, ok := BiomeByName(string(sc.biome(x, y%16, z))); ok {
			biome = b.ID
		}
		return layer, state.Name, biome, true
	}
	return Layer{}, "", 0, false
}
