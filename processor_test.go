package carto

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTilePath(t *testing.T) {
	tests := []struct {
		pattern string
		pos     RegionPos
		want    string
	}{
		{"out/{x}_{z}.png", RegionPos{3, -2}, "out/3_-2.png"},
		{"out/{tile}.png", RegionPos{3, -2}, "out/3,-2.png"},
		{"out/{z}/{x}.png", RegionPos{-10, 7}, "out/7/-10.png"},
		{"{tile}/{x}.png", RegionPos{0, 0}, "0,0/0.png"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, TilePath(tt.pattern, tt.pos))
		})
	}
}

func TestIsTilePattern(t *testing.T) {
	assert.True(t, IsTilePattern("out/{x}_{z}.png"))
	assert.True(t, IsTilePattern("out/{tile}.png"))
	assert.False(t, IsTilePattern("out/{x}.png"))
	assert.False(t, IsTilePattern("out/map-{t}.png"))
	assert.False(t, IsTilePattern("out/map.png"))
}

func TestNewProcessorSelectsMode(t *testing.T) {
	size := RegionSize{Width: 4, Height: 4}

	p, err := NewProcessor("tiles/{tile}.png", ProcessorOpts{Size: size})
	require.NoError(t, err)
	assert.IsType(t, &TileProcessor{}, p)
	assert.Equal(t, SkipRegion, p.ErrorPolicy())

	p, err = NewProcessor("map.png", ProcessorOpts{Size: size, Window: 2})
	require.NoError(t, err)
	require.IsType(t, &SingleImageProcessor{}, p)
	assert.Equal(t, AbortRun, p.ErrorPolicy())

	w, h := p.(*SingleImageProcessor).Bounds()
	assert.Equal(t, 8, w)
	assert.Equal(t, 8, h)
}

func readPNG(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	img, err := png.Decode(f)
	require.NoError(t, err)
	return img
}

func TestTileProcessorWritesRegion(t *testing.T) {
	dir := t.TempDir()
	size := RegionSize{Width: 4, Height: 3}
	p, err := NewTileProcessor(filepath.Join(dir, "tiles", "{z}", "{x}.png"), size)
	require.NoError(t, err)

	pixels := make(RegionPixels, size.Columns())
	for i := range pixels {
		pixels[i] = RGBA(uint8(i*10), uint8(i), 0x80, 0xff)
	}

	require.NoError(t, p.PreProcess())
	require.NoError(t, p.ProcessRegion(RegionPos{X: -1, Z: 5}, pixels))
	require.NoError(t, p.PostProcess())

	img := readPNG(t, filepath.Join(dir, "tiles", "5", "-1.png"))
	require.Equal(t, image.Rect(0, 0, 4, 3), img.Bounds())
	for z := 0; z < size.Height; z++ {
		for x := 0; x < size.Width; x++ {
			got := color.NRGBAModel.Convert(img.At(x, z))
			assert.Equal(t, pixels[z*size.Width+x].NRGBA(), got, "pixel (%d, %d)", x, z)
		}
	}
}

func TestTileProcessorReportsTileOnFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	p, err := NewTileProcessor(filepath.Join(blocker, "{x}_{z}.png"), RegionSize{Width: 2, Height: 2})
	require.NoError(t, err)

	err = p.ProcessRegion(RegionPos{X: 9, Z: -4}, filledPixels(RegionSize{Width: 2, Height: 2}, 0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "(9, -4)")
}

func TestSingleImageCenterRegion(t *testing.T) {
	size := RegionSize{Width: 16, Height: 16}
	p, err := NewSingleImageProcessor(filepath.Join(t.TempDir(), "map.png"), SingleImageOpts{
		Size:         size,
		WindowWidth:  40,
		WindowHeight: 40,
	})
	require.NoError(t, err)

	const c = Pixel(0xffffffff)
	require.NoError(t, p.ProcessRegion(RegionPos{}, filledPixels(size, c)))

	width, height := p.Bounds()
	require.Equal(t, 40*16, width)
	require.Equal(t, 40*16, height)

	// region (0, 0) starts 20 regions in from the west and north edges
	set := 0
	for z := 0; z < height; z++ {
		for x := 0; x < width; x++ {
			inside := x >= 320 && x < 336 && z >= 320 && z < 336
			px := p.canvas[z*width+x]
			if inside {
				require.Equal(t, c, px, "pixel (%d, %d)", x, z)
				set++
			} else {
				require.Zero(t, px, "pixel (%d, %d)", x, z)
			}
		}
	}
	assert.Equal(t, 16*16, set)
}

func TestSingleImageRowPlacement(t *testing.T) {
	size := RegionSize{Width: 3, Height: 2}
	p, err := NewSingleImageProcessor("map.png", SingleImageOpts{Size: size, WindowWidth: 2, WindowHeight: 2})
	require.NoError(t, err)

	pixels := RegionPixels{1, 2, 3, 4, 5, 6}
	require.NoError(t, p.ProcessRegion(RegionPos{X: -1, Z: 0}, pixels))

	width, _ := p.Bounds()
	require.Equal(t, 6, width)
	assert.Equal(t, []Pixel{0, 0, 0, 0, 0, 0}, p.canvas[0:6])
	assert.Equal(t, []Pixel{0, 0, 0, 0, 0, 0}, p.canvas[6:12])
	assert.Equal(t, []Pixel{1, 2, 3, 0, 0, 0}, p.canvas[12:18])
	assert.Equal(t, []Pixel{4, 5, 6, 0, 0, 0}, p.canvas[18:24])
}

func TestSingleImageOutOfWindowLeavesCanvasUntouched(t *testing.T) {
	size := RegionSize{Width: 4, Height: 4}
	p, err := NewSingleImageProcessor("map.png", SingleImageOpts{Size: size, WindowWidth: 2, WindowHeight: 2})
	require.NoError(t, err)

	const sentinel = Pixel(0xdeadbeef)
	for i := range p.canvas {
		p.canvas[i] = sentinel
	}

	for _, pos := range []RegionPos{{X: 1, Z: 0}, {X: -2, Z: 0}, {X: 0, Z: 1}, {X: 0, Z: -2}, {X: 1 << 30, Z: -1 << 30}} {
		err := p.ProcessRegion(pos, filledPixels(size, 0x11111111))
		require.ErrorIs(t, err, ErrRegionOutOfWindow, "region %v", pos)
		assert.Contains(t, err.Error(), pos.String())
	}

	for i, px := range p.canvas {
		require.Equal(t, sentinel, px, "canvas index %d", i)
	}

	// the four regions of the window still fit
	for _, pos := range []RegionPos{{X: -1, Z: -1}, {X: 0, Z: -1}, {X: -1, Z: 0}, {X: 0, Z: 0}} {
		require.NoError(t, p.ProcessRegion(pos, filledPixels(size, 0x22222222)))
	}
	for _, px := range p.canvas {
		require.Equal(t, Pixel(0x22222222), px)
	}
}

func TestSingleImageRejectsWrongPixelCount(t *testing.T) {
	size := RegionSize{Width: 4, Height: 4}
	p, err := NewSingleImageProcessor("map.png", SingleImageOpts{Size: size, WindowWidth: 2, WindowHeight: 2})
	require.NoError(t, err)

	err = p.ProcessRegion(RegionPos{}, make(RegionPixels, 3))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRegionOutOfWindow)
}

func TestSingleImageTimestampSubstitutedOnce(t *testing.T) {
	calls := 0
	now := func() time.Time {
		calls++
		return time.Unix(1700000000+int64(calls), 0)
	}

	p, err := NewSingleImageProcessor("out/map-{t}.png", SingleImageOpts{
		Size:         RegionSize{Width: 2, Height: 2},
		WindowWidth:  2,
		WindowHeight: 2,
		Now:          now,
	})
	require.NoError(t, err)
	assert.Equal(t, "out/map-1700000001.png", p.Path())

	require.NoError(t, p.ProcessRegion(RegionPos{}, filledPixels(RegionSize{Width: 2, Height: 2}, 1)))
	assert.Equal(t, "out/map-1700000001.png", p.Path())
	assert.Equal(t, 1, calls)
}

func TestSingleImagePostProcess(t *testing.T) {
	dir := t.TempDir()
	size := RegionSize{Width: 8, Height: 8}
	path := filepath.Join(dir, "nested", "map.png")
	p, err := NewSingleImageProcessor(path, SingleImageOpts{
		Size:         size,
		WindowWidth:  4,
		WindowHeight: 2,
		PreviewScale: 4,
	})
	require.NoError(t, err)

	require.NoError(t, p.PreProcess())
	require.NoError(t, p.ProcessRegion(RegionPos{X: 1, Z: -1}, filledPixels(size, RGBA(0x10, 0x20, 0x30, 0xff))))
	require.NoError(t, p.PostProcess())

	img := readPNG(t, path)
	require.Equal(t, image.Rect(0, 0, 32, 16), img.Bounds())
	assert.Equal(t, color.NRGBA{R: 0x10, G: 0x20, B: 0x30, A: 0xff}, color.NRGBAModel.Convert(img.At(24, 0)))
	assert.Equal(t, color.NRGBA{}, color.NRGBAModel.Convert(img.At(0, 0)))

	preview := readPNG(t, filepath.Join(dir, "nested", "map.preview.png"))
	assert.Equal(t, image.Rect(0, 0, 8, 4), preview.Bounds())
}

func TestPreviewPath(t *testing.T) {
	assert.Equal(t, "out/map.preview.png", PreviewPath("out/map.png"))
	assert.Equal(t, "map.preview", PreviewPath("map"))
}

func TestReplaceTimestamp(t *testing.T) {
	assert.Equal(t, "a-42-42.png", ReplaceTimestamp("a-{t}-{t}.png", time.Unix(42, 0)))
	assert.Equal(t, "plain.png", ReplaceTimestamp("plain.png", time.Unix(42, 0)))
}
