package playback

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/koscakluka/ema-voice/core/transport"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Recording is a clip produced by the capture collaborator.
type Recording struct {
	Payload  []byte
	MIMEType string
}

// Selection chooses the backend session, model and voice a reply is produced
// with.
type Selection struct {
	SessionID string
	ModelID   string
	VoiceID   string
}

// ResponseError reports a response that was rejected before any segment was
// created, either for its status or for not carrying audio.
type ResponseError struct {
	Status      int
	ContentType string
	Message     string
}

func (e *ResponseError) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("backend replied %d: %s", e.Status, e.Message)
	case !transport.IsAudio(e.ContentType):
		return fmt.Sprintf("backend replied %d with non-audio content %q", e.Status, e.ContentType)
	default:
		return fmt.Sprintf("backend replied %d", e.Status)
	}
}

func (e *ResponseError) Unwrap() error {
	return ErrTransport
}

// ingest exchanges the recording for a response and posts every received
// chunk to the engine loop, followed by exactly one ingestEndedMsg. Chunks are
// posted as they arrive; the loop decides whether they still belong to the
// current session.
func (e *Engine) ingest(ctx context.Context, token uint64, recording Recording, selection Selection) {
	ctx, span := tracer.Start(ctx, "ingest response")
	defer span.End()

	chunks, err := e.readResponse(ctx, token, recording, selection)
	span.SetAttributes(attribute.Int("chunks", chunks))
	if err != nil && ctx.Err() == nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ingestion failed")
	}
	e.inbox.post(ingestEndedMsg{token: token, err: err})
}

func (e *Engine) readResponse(ctx context.Context, token uint64, recording Recording, selection Selection) (int, error) {
	if e.transport == nil {
		return 0, fmt.Errorf("%w: no transport configured", ErrTransport)
	}

	resp, err := e.transport.Exchange(ctx, transport.Request{
		Payload:   recording.Payload,
		MIMEType:  recording.MIMEType,
		SessionID: selection.SessionID,
		ModelID:   selection.ModelID,
		VoiceID:   selection.VoiceID,
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Close()

	if err := validateResponse(resp); err != nil {
		return 0, err
	}

	if !resp.Streamed() {
		if len(resp.Payload) == 0 {
			return 0, nil
		}
		e.inbox.post(chunkMsg{token: token, payload: resp.Payload, mimeType: resp.ContentType})
		return 1, nil
	}

	chunks := 0
	for {
		chunk, err := resp.Chunks.Next(ctx)
		if errors.Is(err, io.EOF) {
			return chunks, nil
		}
		if err != nil {
			return chunks, fmt.Errorf("%w: stream interrupted after %d chunks: %w", ErrTransport, chunks, err)
		}
		if len(chunk) == 0 {
			continue
		}

		e.inbox.post(chunkMsg{token: token, payload: chunk, mimeType: resp.ContentType})
		chunks++
	}
}

func validateResponse(resp *transport.Response) error {
	if resp.Status < 200 || resp.Status > 299 || !transport.IsAudio(resp.ContentType) {
		return &ResponseError{Status: resp.Status, ContentType: resp.ContentType, Message: resp.ErrorMessage}
	}
	return nil
}
