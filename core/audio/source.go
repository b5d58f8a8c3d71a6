package audio

import (
	"fmt"
	"mime"
)

// DecodeMedia turns a loaded payload into linear16 PCM for a sink. WAV
// containers are parsed; bare linear16 (audio/L16, audio/pcm) is taken as is
// at the parameters given in its MIME type, falling back to the defaults.
func DecodeMedia(media Media) ([]byte, EncodingInfo, error) {
	if len(media.Payload) >= 12 && string(media.Payload[0:4]) == "RIFF" {
		return DecodeWAV(media.Payload)
	}

	mediaType, params, err := mime.ParseMediaType(media.MIMEType)
	if err != nil {
		return nil, EncodingInfo{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, media.MIMEType)
	}

	switch mediaType {
	case "audio/l16", "audio/pcm":
		info := GetDefaultEncodingInfo()
		if rate, ok := params["rate"]; ok {
			if _, err := fmt.Sscan(rate, &info.SampleRate); err != nil || info.SampleRate <= 0 {
				return nil, EncodingInfo{}, fmt.Errorf("%w: invalid rate %q", ErrUnsupportedFormat, rate)
			}
		}
		if channels, ok := params["channels"]; ok {
			if _, err := fmt.Sscan(channels, &info.Channels); err != nil || info.Channels <= 0 {
				return nil, EncodingInfo{}, fmt.Errorf("%w: invalid channels %q", ErrUnsupportedFormat, channels)
			}
		}
		pcm := media.Payload[:len(media.Payload)-len(media.Payload)%info.FrameSize()]
		return pcm, info, nil
	case "audio/wav", "audio/x-wav", "audio/wave", "audio/vnd.wave":
		return DecodeWAV(media.Payload)
	}

	return nil, EncodingInfo{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, mediaType)
}
