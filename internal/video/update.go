package video

// neighborOffsets enumerates the 8-connected neighbourhood in row-major
// order. The order matters only for reproducibility of the neighbour draw.
var neighborOffsets = [8][2]int{
	{-1, -1}, {0, -1}, {1, -1},
	{-1, 0}, {1, 0},
	{-1, 1}, {0, 1}, {1, 1},
}

// updateFrame runs the update pass after classification, in row-major order
// from a single goroutine so the draw sequence is reproducible for a given
// seed. Only background-classified pixels feed the model (conservative
// update); foreground pixels leave every store untouched.
//
// Callers must hold m.mu for writing.
func (m *BackgroundModel) updateFrame(frame *Frame, mask *Mask) {
	sub := m.Params.SubsamplingFactor
	slots := m.Params.TrainingFrames
	ch := m.Channels

	var fg, bg int64
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			p := y*m.Width + x
			if mask.Pix[p] == MaskForeground {
				fg++
				m.fgAccum[p]++
				continue
			}
			bg++

			colorOff := p * ch

			// Own-store replacement: one draw gates the event, a second
			// picks the slot. Expected rate 1/SubsamplingFactor.
			if m.src.Intn(sub) == 0 {
				slot := m.src.Intn(slots)
				dst := m.sampleOffset(p, slot)
				copy(m.samples[dst:dst+ch], frame.Pix[colorOff:colorOff+ch])
			}

			// Spatial propagation: an independent draw with the same rate
			// pushes the current color into a random slot of a random
			// existing neighbour, diffusing background knowledge sideways.
			if m.src.Intn(sub) == 0 {
				if nx, ny, ok := m.randomNeighbor(x, y); ok {
					np := ny*m.Width + nx
					slot := m.src.Intn(slots)
					dst := m.sampleOffset(np, slot)
					copy(m.samples[dst:dst+ch], frame.Pix[colorOff:colorOff+ch])
				}
			}
		}
	}
	m.ForegroundCount = fg
	m.BackgroundCount = bg
}

// randomNeighbor draws one of (x, y)'s existing 8-neighbours uniformly.
// Edge and corner pixels restrict the candidate set to the neighbours that
// are in bounds; there is no wraparound. ok is false only on a 1x1 grid,
// where no neighbour exists and propagation is skipped.
func (m *BackgroundModel) randomNeighbor(x, y int) (nx, ny int, ok bool) {
	count := 0
	for _, d := range neighborOffsets {
		cx, cy := x+d[0], y+d[1]
		if cx >= 0 && cx < m.Width && cy >= 0 && cy < m.Height {
			count++
		}
	}
	if count == 0 {
		return 0, 0, false
	}
	k := m.src.Intn(count)
	for _, d := range neighborOffsets {
		cx, cy := x+d[0], y+d[1]
		if cx >= 0 && cx < m.Width && cy >= 0 && cy < m.Height {
			if k == 0 {
				return cx, cy, true
			}
			k--
		}
	}
	return 0, 0, false
}
