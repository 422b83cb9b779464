package carto

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVoxelMapRoundTrip(t *testing.T) {
	dir := t.TempDir()
	positions := []RegionPos{{X: 0, Z: 0}, {X: 1, Z: -1}, {X: -2, Z: 0}}
	for _, pos := range positions {
		require.NoError(t, WriteVoxelMapRegion(dir, testRegion(pos, VoxelMapRegionSize)))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "4,4.zip.bak"), nil, 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "9,9.zip"), 0755))

	src := NewVoxelMapSource(dir)
	assert.Equal(t, VoxelMapRegionSize, src.Size())

	found, err := src.Regions()
	require.NoError(t, err)
	assert.Equal(t, []RegionPos{{X: 1, Z: -1}, {X: -2, Z: 0}, {X: 0, Z: 0}}, found)

	for _, pos := range positions {
		data, err := src.Load(pos)
		require.NoError(t, err)
		assert.Equal(t, testRegion(pos, VoxelMapRegionSize), data)
	}
}

func TestVoxelMapRegionsMissingDir(t *testing.T) {
	_, err := NewVoxelMapSource(filepath.Join(t.TempDir(), "missing")).Regions()
	require.Error(t, err)
}

func TestVoxelMapLoadMissingEntry(t *testing.T) {
	dir := t.TempDir()
	f, err := os.Create(filepath.Join(dir, "0,0.zip"))
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("key")
	require.NoError(t, err)
	_, err = w.Write([]byte("1 Block{minecraft:stone}\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	_, err = NewVoxelMapSource(dir).Load(RegionPos{})
	require.ErrorIs(t, err, ErrInvalidRegionData)
}

func TestParseVoxelMapKey(t *testing.T) {
	key := strings.Join([]string{
		"1 Block{minecraft:stone}",
		"",
		"4 Block{minecraft:oak_log}[axis=y]",
		"2 minecraft:grass_block[snowy=false]",
	}, "\n")

	blocks, err := ParseVoxelMapKey(strings.NewReader(key))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"minecraft:air",
		"minecraft:stone",
		"minecraft:grass_block",
		"",
		"minecraft:oak_log",
	}, blocks)

	_, err = ParseVoxelMapKey(strings.NewReader("x Block{minecraft:stone}"))
	assert.ErrorIs(t, err, ErrInvalidRegionData)

	_, err = ParseVoxelMapKey(strings.NewReader("12"))
	assert.ErrorIs(t, err, ErrInvalidRegionData)
}

func TestBlockStateName(t *testing.T) {
	assert.Equal(t, "minecraft:stone", BlockStateName("Block{minecraft:stone}"))
	assert.Equal(t, "minecraft:oak_log", BlockStateName("Block{minecraft:oak_log}[axis=y]"))
	assert.Equal(t, "minecraft:water", BlockStateName("minecraft:water[level=0]"))
	assert.Equal(t, "minecraft:sand", BlockStateName(" minecraft:sand "))
}

func TestDecodeVoxelMapRegionRejectsShortData(t *testing.T) {
	_, err := DecodeVoxelMapRegion(RegionPos{X: 5, Z: 6}, make([]byte, 100), testBlocks)
	require.ErrorIs(t, err, ErrInvalidRegionData)
	assert.Contains(t, err.Error(), "(5, 6)")
}

func TestDecodeVoxelMapRegionLayout(t *testing.T) {
	plane := VoxelMapRegionSize.Columns()
	raw := make([]byte, plane*voxelMapColumnBytes)
	i := 3*VoxelMapRegionSize.Width + 7

	raw[0*plane+i] = 64
	raw[1*plane+i] = 0x01
	raw[2*plane+i] = 0x02
	raw[3*plane+i] = 0xf3
	raw[12*plane+i] = 70
	raw[14*plane+i] = 4
	raw[16*plane+i] = 21

	data, err := DecodeVoxelMapRegion(RegionPos{}, raw, testBlocks)
	require.NoError(t, err)

	col := data.Columns[i]
	assert.Equal(t, Layer{Height: 64, Block: 0x0102, Light: 0xf3}, col.Surface)
	assert.Equal(t, Layer{Height: 70, Block: 4}, col.Foliage)
	assert.Equal(t, uint8(21), col.Biome)
	assert.Equal(t, uint8(15), col.Surface.SkyLight())
	assert.Equal(t, uint8(3), col.Surface.BlockLight())
}
