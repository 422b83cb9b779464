package carto

// lightOverlay is the alpha of the black overlay that darkens a column lit at
// the given level (0-15). Fully lit columns still get a faint overlay.
func lightOverlay(level uint8) uint8 {
	return 192 - (min(level, 15)+1)*12
}

// reliefShade is the alpha of the black overlay for the column at (x, z),
// darkening it by how far its north and west neighbours rise above it. Columns
// on the region edge compare against themselves.
func reliefShade(data *RegionData, x, z int) uint8 {
	width := data.Size.Width
	height := int(data.Columns[z*width+x].Top().Height)

	topHeight := height
	if z > 0 {
		topHeight = int(data.Columns[(z-1)*width+x].Top().Height)
	}
	leftHeight := height
	if x > 0 {
		leftHeight = int(data.Columns[z*width+x-1].Top().Height)
	}

	var d int
	if topHeight > height {
		d = (topHeight - height) * 16
	}
	if leftHeight > height {
		d += (leftHeight - height) * 16
	}
	if d > 64 {
		d = 64
	}
	return uint8(d)
}

// waterShade darkens water by its depth above the floor.
func waterShade(depth int) uint8 {
	d := depth * 8
	if d < 0 {
		d = 0
	}
	if d > 128 {
		d = 128
	}
	return uint8(d)
}

// darken composites a black overlay of the given alpha over p, keeping p's alpha.
func darken(p Pixel, alpha uint8) Pixel {
	if alpha == 0 || p == 0 {
		return p
	}
	r, g, b, a := p.Channels()
	keep := 255 - uint32(alpha)
	return RGBA(
		uint8(uint32(r)*keep/255),
		uint8(uint32(g)*keep/255),
		uint8(uint32(b)*keep/255),
		a,
	)
}

// over composites fg over bg (non-premultiplied alpha).
func over(fg, bg Pixel) Pixel {
	fr, fg8, fb, fa := fg.Channels()
	if fa == 0xff || bg == 0 {
		return fg
	}
	if fa == 0 {
		return bg
	}
	br, bg8, bb, ba := bg.Channels()

	fA := uint32(fa)
	bA := uint32(ba) * (255 - fA) / 255
	outA := fA + bA
	if outA == 0 {
		return 0
	}
	mix := func(f, b uint8) uint8 {
		return uint8((uint32(f)*fA + uint32(b)*bA) / outA)
	}
	return RGBA(mix(fr, br), mix(fg8, bg8), mix(fb, bb), uint8(outA))
}
