package carto

import (
	"archive/zip"
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// VoxelMapRegionSize is the size of a region in a VoxelMap cache.
var VoxelMapRegionSize = RegionSize{Width: 256, Height: 256}

// Each column stores four layers of (height, block hi, block lo, light) and a
// biome id, laid out in planes of one byte per column.
const voxelMapColumnBytes = 17

const (
	voxelMapSurface = iota * 4
	voxelMapSeafloor
	voxelMapTransparent
	voxelMapFoliage
	voxelMapBiome
)

// VoxelMapSource reads a directory of "<x>,<z>.zip" region archives.
type VoxelMapSource struct {
	dir string
}

func NewVoxelMapSource(dir string) *VoxelMapSource {
	return &VoxelMapSource{dir: dir}
}

func (s *VoxelMapSource) Size() RegionSize {
	return VoxelMapRegionSize
}

func parseVoxelMapName(name string) (RegionPos, bool) {
	if !strings.HasSuffix(name, ".zip") {
		return RegionPos{}, false
	}
	xs, zs, ok := strings.Cut(strings.TrimSuffix(name, ".zip"), ",")
	if !ok {
		return RegionPos{}, false
	}
	x, err := strconv.ParseInt(xs, 10, 32)
	if err != nil {
		return RegionPos{}, false
	}
	z, err := strconv.ParseInt(zs, 10, 32)
	if err != nil {
		return RegionPos{}, false
	}
	return RegionPos{X: int32(x), Z: int32(z)}, true
}

func sortPositions(positions []RegionPos) {
	sort.Slice(positions, func(i, j int) bool {
		if positions[i].Z != positions[j].Z {
			return positions[i].Z < positions[j].Z
		}
		return positions[i].X < positions[j].X
	})
}

func (s *VoxelMapSource) Regions() ([]RegionPos, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read voxelmap cache %s: %w", s.dir, err)
	}

	positions := []RegionPos{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if pos, ok := parseVoxelMapName(e.Name()); ok {
			positions = append(positions, pos)
		}
	}
	sortPositions(positions)
	return positions, nil
}

func (s *VoxelMapSource) path(pos RegionPos) string {
	return filepath.Join(s.dir, fmt.Sprintf("%d,%d.zip", pos.X, pos.Z))
}

func (s *VoxelMapSource) Load(pos RegionPos) (*RegionData, error) {
	path := s.path(pos)
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer r.Close()

	var raw []byte
	var key []string
	for _, f := range r.File {
		switch f.Name {
		case "data":
			raw, err = readZipFile(f)
		case "key":
			var fd io.ReadCloser
			if fd, err = f.Open(); err == nil {
				key, err = ParseVoxelMapKey(fd)
				fd.Close()
			}
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s from %s: %w", f.Name, path, err)
		}
	}
	if raw == nil || key == nil {
		return nil, fmt.Errorf("%s is missing its data or key entry: %w", path, ErrInvalidRegionData)
	}

	return DecodeVoxelMapRegion(pos, raw, key)
}

func readZipFile(f *zip.File) ([]byte, error) {
	fd, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer fd.Close()
	return io.ReadAll(fd)
}

// ParseVoxelMapKey reads "<id> <blockstate>" lines into an id-indexed block
// name table. Id 0 is always air.
func ParseVoxelMapKey(r io.Reader) ([]string, error) {
	names := map[int]string{}
	maxID := 0

	scanner := bufio.NewScanner(r)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		ids, state, ok := strings.Cut(text, " ")
		if !ok {
			return nil, fmt.Errorf("key line %d: missing block state: %w", line, ErrInvalidRegionData)
		}
		id, err := strconv.Atoi(ids)
		if err != nil || id < 0 || id > 0xffff {
			return nil, fmt.Errorf("key line %d: invalid block id %q: %w", line, ids, ErrInvalidRegionData)
		}
		names[id] = BlockStateName(state)
		maxID = max(maxID, id)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	blocks := make([]string, maxID+1)
	blocks[0] = "minecraft:air"
	for id, name := range names {
		blocks[id] = name
	}
	return blocks, nil
}

// BlockStateName extracts the block name from "Block{minecraft:stone}[...]"
// style block states. Bare names are returned unchanged.
func BlockStateName(state string) string {
	state = strings.TrimSpace(state)
	if open := strings.IndexByte(state, '{'); open >= 0 {
		if end := strings.IndexByte(state[open:], '}'); end >= 0 {
			return state[open+1 : open+end]
		}
	}
	if i := strings.IndexByte(state, '['); i >= 0 {
		state = state[:i]
	}
	return state
}

// DecodeVoxelMapRegion unpacks the planar column data of one region.
func DecodeVoxelMapRegion(pos RegionPos, raw []byte, blocks []string) (*RegionData, error) {
	size := VoxelMapRegionSize
	plane := size.Columns()
	if len(raw) != plane*voxelMapColumnBytes {
		return nil, fmt.Errorf("region %v has %d data bytes, expected %d: %w", pos, len(raw), plane*voxelMapColumnBytes, ErrInvalidRegionData)
	}

	layer := func(offset, i int) Layer {
		return Layer{
			Height: int16(raw[offset*plane+i]),
			Block:  uint16(raw[(offset+1)*plane+i])<<8 | uint16(raw[(offset+2)*plane+i]),
			Light:  raw[(offset+3)*plane+i],
		}
	}

	data := &RegionData{
		Pos:     pos,
		Size:    size,
		MinY:    0,
		MaxY:    255,
		Blocks:  blocks,
		Columns: make([]Column, plane),
	}
	for i := range data.Columns {
		data.Columns[i] = Column{
			Surface:     layer(voxelMapSurface, i),
			Seafloor:    layer(voxelMapSeafloor, i),
			Transparent: layer(voxelMapTransparent, i),
			Foliage:     layer(voxelMapFoliage, i),
			Biome:       raw[voxelMapBiome*plane+i],
		}
	}
	return data, nil
}

// EncodeVoxelMapRegion is the inverse of DecodeVoxelMapRegion.
func EncodeVoxelMapRegion(data *RegionData) ([]byte, error) {
	if data.Size != VoxelMapRegionSize || len(data.Columns) != data.Size.Columns() {
		return nil, fmt.Errorf("region %v is not a %dx%d region: %w", data.Pos, VoxelMapRegionSize.Width, VoxelMapRegionSize.Height, ErrInvalidRegionData)
	}

	plane := data.Size.Columns()
	raw := make([]byte, plane*voxelMapColumnBytes)
	put := func(offset, i int, l Layer) {
		raw[offset*plane+i] = byte(l.Height)
		raw[(offset+1)*plane+i] = byte(l.Block >> 8)
		raw[(offset+2)*plane+i] = byte(l.Block)
		raw[(offset+3)*plane+i] = l.Light
	}
	for i, col := range data.Columns {
		put(voxelMapSurface, i, col.Surface)
		put(voxelMapSeafloor, i, col.Seafloor)
		put(voxelMapTransparent, i, col.Transparent)
		put(voxelMapFoliage, i, col.Foliage)
		raw[voxelMapBiome*plane+i] = col.Biome
	}
	return raw, nil
}

// WriteVoxelMapRegion writes data as a "<x>,<z>.zip" archive into dir.
func WriteVoxelMapRegion(dir string, data *RegionData) error {
	raw, err := EncodeVoxelMapRegion(data)
	if err != nil {
		return err
	}

	path := filepath.Join(dir, fmt.Sprintf("%d,%d.zip", data.Pos.X, data.Pos.Z))
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	zw := zip.NewWriter(f)
	w, err := zw.Create("data")
	if err == nil {
		_, err = w.Write(raw)
	}
	if err == nil {
		w, err = zw.Create("key")
	}
	if err == nil {
		for id, name := range data.Blocks {
			if id == 0 || name == "" {
				continue
			}
			if _, err = fmt.Fprintf(w, "%d Block{%s}\n", id, name); err != nil {
				break
			}
		}
	}
	if err == nil {
		err = zw.Close()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
