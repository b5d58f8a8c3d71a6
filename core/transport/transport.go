// Package transport defines how a recorded clip is exchanged with the
// inference backend for a spoken reply.
//
// A [Response] has one of two shapes: a fully buffered Payload, or a live
// stream of discrete, independently decodable chunks read through
// [ChunkReader]. Implementations live in the httpaudio and wsaudio
// subpackages.
package transport

import (
	"context"
	"mime"
	"strings"
)

// Request is the clip handed to the backend together with the selection the
// reply should be produced with.
type Request struct {
	Payload  []byte
	MIMEType string

	SessionID string
	ModelID   string
	VoiceID   string
}

// ChunkReader yields the chunks of a streamed response. Next returns io.EOF
// once the stream ended normally.
type ChunkReader interface {
	Next(ctx context.Context) ([]byte, error)
	Close() error
}

// Response is the backend's answer. Exactly one of Payload and Chunks is set
// for a successful exchange; failed exchanges may carry neither.
type Response struct {
	Status      int
	ContentType string

	Payload []byte
	Chunks  ChunkReader

	// ErrorMessage is the backend's explanation for a failure status, if any.
	ErrorMessage string
}

// Streamed reports whether the response body arrives as chunks.
func (r *Response) Streamed() bool {
	return r != nil && r.Chunks != nil
}

// Close releases the stream behind a streamed response. It is safe to call
// on buffered responses.
func (r *Response) Close() error {
	if r == nil || r.Chunks == nil {
		return nil
	}
	return r.Chunks.Close()
}

// Transport exchanges a clip for a response. A non-nil error means no
// response could be obtained at all; failure statuses are reported through
// Response.Status.
type Transport interface {
	Exchange(ctx context.Context, req Request) (*Response, error)
}

// IsAudio reports whether contentType carries audio.
func IsAudio(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mediaType, "audio/")
}

// IsWAV reports whether contentType names a RIFF/WAVE container.
func IsWAV(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	switch mediaType {
	case "audio/wav", "audio/x-wav", "audio/wave", "audio/vnd.wave":
		return true
	}
	return false
}
