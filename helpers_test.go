package carto

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
)

var testBlocks = []string{
	"minecraft:air",
	"minecraft:stone",
	"minecraft:grass_block",
	"minecraft:water",
	"minecraft:oak_leaves",
	"minecraft:sand",
	"minecraft:glass",
}

func columnHash(pos RegionPos, x, z int) uint32 {
	h := uint32(x)*31 + uint32(z)*17
	h ^= uint32(pos.X) * 2654435761
	h ^= uint32(pos.Z) * 40503
	return h ^ (h >> 7)
}

// testRegion builds a deterministic region whose contents depend on its position.
func testRegion(pos RegionPos, size RegionSize) *RegionData {
	data := &RegionData{
		Pos:     pos,
		Size:    size,
		MinY:    0,
		MaxY:    255,
		Blocks:  testBlocks,
		Columns: make([]Column, size.Columns()),
	}
	for i := range data.Columns {
		x, z := i%size.Width, i/size.Width
		h := columnHash(pos, x, z)
		height := int16(40 + h%80)

		col := Column{
			Surface: Layer{Height: height, Block: uint16(1 + h%5), Light: uint8(h % 256)},
			Biome:   []uint8{0, 1, 4, 6, 21, 35}[h%6],
		}
		if col.Surface.Block == 3 {
			col.Seafloor = Layer{Height: height - int16(h%12), Block: 5, Light: 0x30}
		}
		if h%7 == 0 {
			col.Transparent = Layer{Height: height + 2, Block: 6, Light: 0xf0}
		}
		if h%5 == 1 {
			col.Foliage = Layer{Height: height + 1, Block: 4, Light: 0xe2}
		}
		data.Columns[i] = col
	}
	return data
}

func filledPixels(size RegionSize, p Pixel) RegionPixels {
	pixels := make(RegionPixels, size.Columns())
	for i := range pixels {
		pixels[i] = p
	}
	return pixels
}

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
}

// memSource serves regions from memory.
type memSource struct {
	size      RegionSize
	positions []RegionPos
	regions   map[RegionPos]*RegionData
	failLoad  map[RegionPos]bool
	listErr   error
	loads     atomic.Int32
}

func newMemSource(size RegionSize, positions ...RegionPos) *memSource {
	s := &memSource{
		size:      size,
		positions: positions,
		regions:   map[RegionPos]*RegionData{},
		failLoad:  map[RegionPos]bool{},
	}
	for _, pos := range positions {
		s.regions[pos] = testRegion(pos, size)
	}
	return s
}

func (s *memSource) Size() RegionSize {
	return s.size
}

func (s *memSource) Regions() ([]RegionPos, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]RegionPos(nil), s.positions...), nil
}

func (s *memSource) Load(pos RegionPos) (*RegionData, error) {
	s.loads.Add(1)
	if s.failLoad[pos] {
		return nil, fmt.Errorf("corrupt region %v: %w", pos, ErrInvalidRegionData)
	}
	data, ok := s.regions[pos]
	if !ok {
		return nil, fmt.Errorf("no region %v", pos)
	}
	return data, nil
}

// recordingProcessor records the order of lifecycle calls and fails the test
// if two calls ever overlap.
type recordingProcessor struct {
	t      *testing.T
	policy ErrorPolicy

	mu       sync.Mutex
	events   []string
	regions  map[RegionPos]RegionPixels
	inFlight atomic.Int32
}

func newRecordingProcessor(t *testing.T, policy ErrorPolicy) *recordingProcessor {
	return &recordingProcessor{
		t:       t,
		policy:  policy,
		regions: map[RegionPos]RegionPixels{},
	}
}

func (p *recordingProcessor) record(event string) {
	assert.Equal(p.t, int32(1), p.inFlight.Add(1), "processor called concurrently")
	defer p.inFlight.Add(-1)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingProcessor) PreProcess() error {
	p.record("pre")
	return nil
}

func (p *recordingProcessor) ProcessRegion(pos RegionPos, pixels RegionPixels) error {
	p.record("region")
	p.mu.Lock()
	defer p.mu.Unlock()
	p.regions[pos] = pixels
	return nil
}

func (p *recordingProcessor) PostProcess() error {
	p.record("post")
	return nil
}

func (p *recordingProcessor) ErrorPolicy() ErrorPolicy {
	return p.policy
}
