package video

import "sync"

// classifyAt decides background vs foreground for the pixel at index p given
// the frame buffer pix. A stored sample matches when its squared Euclidean
// distance to the current color, summed over channels, is at most Radius^2.
// The scan stops as soon as MinSamples matches are found, which bounds the
// common-case work per pixel to MinSamples comparisons.
//
// Callers must hold m.mu (read or write); classifyAt itself only reads.
func (m *BackgroundModel) classifyAt(pix []uint8, p int) uint8 {
	ch := m.Channels
	off := p * ch
	base := p * m.Params.TrainingFrames * ch

	matches := 0
	for s := 0; s < m.Params.TrainingFrames; s++ {
		sOff := base + s*ch
		dist := 0
		for c := 0; c < ch; c++ {
			d := int(pix[off+c]) - int(m.samples[sOff+c])
			dist += d * d
		}
		if dist <= m.radiusSq {
			matches++
			if matches >= m.Params.MinSamples {
				return MaskBackground
			}
		}
	}
	return MaskForeground
}

// classifyFrame runs the classification pass for a whole frame into mask.
// Pixels are independent during classification (each reads only its own
// store and its own color), so the rows are split across classifyWorkers
// goroutines over a read-only view of the arena. The stores are not mutated
// until the update pass.
func (m *BackgroundModel) classifyFrame(frame *Frame, mask *Mask) {
	workers := m.classifyWorkers
	if workers > m.Height {
		workers = m.Height
	}
	if workers <= 1 {
		for p := 0; p < m.Width*m.Height; p++ {
			mask.Pix[p] = m.classifyAt(frame.Pix, p)
		}
		return
	}

	rowsPer := (m.Height + workers - 1) / workers
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		y0 := w * rowsPer
		y1 := y0 + rowsPer
		if y1 > m.Height {
			y1 = m.Height
		}
		if y0 >= y1 {
			break
		}
		wg.Add(1)
		go func(y0, y1 int) {
			defer wg.Done()
			for p := y0 * m.Width; p < y1*m.Width; p++ {
				mask.Pix[p] = m.classifyAt(frame.Pix, p)
			}
		}(y0, y1)
	}
	wg.Wait()
}
