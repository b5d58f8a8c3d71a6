package playback

import (
	"math"

	"github.com/koscakluka/ema-voice/core/audio"
)

const defaultWaveformBars = 32

// visualizer keeps the recent levels of the segment that was dispatched last.
// Position events for any other source are dropped, so a superseded source
// never paints over the current one.
type visualizer struct {
	levels  []uint8
	tracked audio.Handle
}

func newVisualizer(bars int) *visualizer {
	if bars <= 0 {
		bars = defaultWaveformBars
	}
	return &visualizer{levels: make([]uint8, bars)}
}

// track resets the indicator for a newly loaded source.
func (v *visualizer) track(h audio.Handle) {
	v.tracked = h
	clear(v.levels)
}

// observe records a position event and returns the bars to render along with
// the playback progress in [0, 1]. ok is false for events of untracked
// sources.
func (v *visualizer) observe(event audio.PlaybackEvent) (bars []uint8, progress float64, ok bool) {
	if event.Kind != audio.PlaybackPosition || v.tracked.IsZero() || event.Handle != v.tracked {
		return nil, 0, false
	}

	copy(v.levels, v.levels[1:])
	v.levels[len(v.levels)-1] = uint8(math.Round(math.Max(0, math.Min(1, event.Level)) * math.MaxUint8))

	if event.Total > 0 {
		progress = math.Min(1, float64(event.Played)/float64(event.Total))
	}
	return append([]uint8(nil), v.levels...), progress, true
}

// clear stops tracking and reports whether anything was being shown.
func (v *visualizer) clear() bool {
	wasShown := !v.tracked.IsZero()
	v.tracked = audio.Handle{}
	clear(v.levels)
	return wasShown
}

// BarHeights scales levels in 0..255 to bar heights between minHeight and
// maxHeight, so silent bars stay visible.
func BarHeights(levels []uint8, maxHeight, minHeight int) []int {
	if minHeight < 0 {
		minHeight = 0
	}
	if maxHeight < minHeight {
		maxHeight = minHeight
	}

	heights := make([]int, len(levels))
	for i, level := range levels {
		heights[i] = minHeight + int(math.Round(float64(level)/math.MaxUint8*float64(maxHeight-minHeight)))
	}
	return heights
}
