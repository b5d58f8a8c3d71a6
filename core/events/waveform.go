package events

const (
	// KindWaveformUpdated identifies a new waveform snapshot for the playing segment.
	KindWaveformUpdated Kind = "playback.waveform_updated"
	// KindWaveformCleared identifies removal of the waveform indicator.
	KindWaveformCleared Kind = "playback.waveform_cleared"
)

// WaveformUpdated carries the most recent levels of the playing segment,
// oldest first, each scaled to 0..255, and how far the segment has played.
type WaveformUpdated struct {
	Base
	Bars     []uint8
	Progress float64
}

// NewWaveformUpdated creates a waveform updated event.
func NewWaveformUpdated(bars []uint8, progress float64) WaveformUpdated {
	return WaveformUpdated{Base: NewBase(KindWaveformUpdated), Bars: bars, Progress: progress}
}

// WaveformCleared marks that no segment is being visualized anymore.
type WaveformCleared struct{ Base }

// NewWaveformCleared creates a waveform cleared event.
func NewWaveformCleared() WaveformCleared {
	return WaveformCleared{Base: NewBase(KindWaveformCleared)}
}
