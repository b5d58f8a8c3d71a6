package playback

import "github.com/koscakluka/ema-voice/core/events"

type eventEmitter func(events.Event)

type callbacks struct {
	onModeChanged func(previous, mode Mode)
	onWaveform    func(bars []uint8, progress float64)
	onError       func(err error)
	onEvent       func(events.Event)
}

func newCallbackEventEmitter(opts callbacks) eventEmitter {
	return func(event events.Event) {
		switch typedEvent := event.(type) {
		case events.ModeChanged:
			if opts.onModeChanged != nil {
				previous, _ := ParseMode(typedEvent.Previous)
				mode, _ := ParseMode(typedEvent.Mode)
				opts.onModeChanged(previous, mode)
			}
		case events.WaveformUpdated:
			if opts.onWaveform != nil {
				opts.onWaveform(typedEvent.Bars, typedEvent.Progress)
			}
		case events.WaveformCleared:
			if opts.onWaveform != nil {
				opts.onWaveform(nil, 0)
			}
		case events.RecordingFailed:
			if opts.onError != nil {
				opts.onError(typedEvent.Err)
			}
		case events.ResponseFailed:
			if opts.onError != nil {
				opts.onError(typedEvent.Err)
			}
		}

		if opts.onEvent != nil {
			opts.onEvent(event)
		}
	}
}
