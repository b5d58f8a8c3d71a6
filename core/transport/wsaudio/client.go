// Package wsaudio exchanges recordings with the backend over a WebSocket.
//
// Protocol, one connection per exchange:
//
//   - client → server: text frame {"type":"request", "session_id", "model_id",
//     "voice_id", "mime_type"} followed by one binary frame holding the clip.
//   - server → client: text frame {"type":"start", "content_type"}, then one
//     binary frame per independently decodable segment, then {"type":"end"}.
//     A {"type":"error", "status", "error"} frame aborts the reply at any
//     point.
package wsaudio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-voice/core/transport"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultContentType = "audio/wav"
	closeFrameTimeout  = time.Second
)

type Client struct {
	url    string
	dialer *websocket.Dialer
	header http.Header
}

type ClientOption func(*Client)

func WithDialer(dialer *websocket.Dialer) ClientOption {
	return func(c *Client) {
		if dialer != nil {
			c.dialer = dialer
		}
	}
}

// WithHeader adds headers sent with the upgrade request, e.g. credentials.
func WithHeader(header http.Header) ClientOption {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

func NewClient(rawURL string, opts ...ClientOption) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend url %q: %w", rawURL, err)
	}
	if parsed.Scheme != "ws" && parsed.Scheme != "wss" {
		return nil, fmt.Errorf("invalid backend url %q: scheme must be ws or wss", rawURL)
	}

	c := &Client{url: parsed.String(), dialer: websocket.DefaultDialer, header: http.Header{}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

var _ transport.Transport = (*Client)(nil)

type controlMessage struct {
	Type        string `json:"type"`
	SessionID   string `json:"session_id,omitempty"`
	ModelID     string `json:"model_id,omitempty"`
	VoiceID     string `json:"voice_id,omitempty"`
	MIMEType    string `json:"mime_type,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Status      int    `json:"status,omitempty"`
	Error       string `json:"error,omitempty"`
}

func (c *Client) Exchange(ctx context.Context, req transport.Request) (*transport.Response, error) {
	ctx, span := tracer.Start(ctx, "exchange audio over websocket")
	defer span.End()
	span.SetAttributes(
		attribute.String("session_id", req.SessionID),
		attribute.String("model_id", req.ModelID),
		attribute.String("voice_id", req.VoiceID),
		attribute.Int("payload_bytes", len(req.Payload)),
	)

	resp, err := c.exchange(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("status", resp.Status), attribute.String("content_type", resp.ContentType))
	if resp.ErrorMessage != "" {
		logger.WarnContext(ctx, "backend rejected request", "status", resp.Status, "error", resp.ErrorMessage)
	}
	return resp, nil
}

func (c *Client) exchange(ctx context.Context, req transport.Request) (*transport.Response, error) {
	conn, httpResp, err := c.dialer.DialContext(ctx, c.url, c.header)
	if err != nil {
		if httpResp != nil {
			return &transport.Response{Status: httpResp.StatusCode, ContentType: httpResp.Header.Get("Content-Type"),
				ErrorMessage: err.Error()}, nil
		}
		return nil, fmt.Errorf("failed to open socket connection to backend: %w", err)
	}

	stream := &streamChunks{conn: conn}
	// Cancellation may land while the clip is still being written, so the
	// callback must only use calls that are safe next to a running writer.
	stream.stopCloseOnCancel = context.AfterFunc(ctx, func() { _ = stream.shutdown() })

	request, err := sonic.Marshal(controlMessage{
		Type:      "request",
		SessionID: req.SessionID,
		ModelID:   req.ModelID,
		VoiceID:   req.VoiceID,
		MIMEType:  req.MIMEType,
	})
	if err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, request); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, req.Payload); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("failed to send recording: %w", err)
	}

	msgType, msg, err := conn.ReadMessage()
	if err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("failed to read reply: %w", err)
	}

	resp := &transport.Response{Status: http.StatusOK, ContentType: defaultContentType}
	switch msgType {
	case websocket.BinaryMessage:
		stream.pending = msg
	case websocket.TextMessage:
		var control controlMessage
		if err := sonic.Unmarshal(msg, &control); err != nil {
			_ = stream.Close()
			return nil, fmt.Errorf("failed to decode reply: %w", err)
		}
		switch control.Type {
		case "start":
			if control.ContentType != "" {
				resp.ContentType = control.ContentType
			}
		case "end":
			stream.ended = true
		case "error":
			_ = stream.Close()
			resp.Status = control.Status
			if resp.Status == 0 {
				resp.Status = http.StatusBadGateway
			}
			resp.ContentType = "application/json"
			resp.ErrorMessage = control.Error
			return resp, nil
		default:
			_ = stream.Close()
			return nil, fmt.Errorf("unexpected %q frame before reply", control.Type)
		}
	}

	resp.Chunks = stream
	return resp, nil
}

type streamChunks struct {
	conn    *websocket.Conn
	pending []byte
	ended   bool

	stopCloseOnCancel func() bool
	closeOnce         sync.Once
	closeErr          error
}

func (s *streamChunks) Next(ctx context.Context) ([]byte, error) {
	if s.pending != nil {
		chunk := s.pending
		s.pending = nil
		return chunk, nil
	}
	if s.ended {
		return nil, io.EOF
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		msgType, msg, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil, io.EOF
			}
			return nil, err
		}

		switch msgType {
		case websocket.BinaryMessage:
			if len(msg) == 0 {
				continue
			}
			return msg, nil
		case websocket.TextMessage:
			var control controlMessage
			if err := sonic.Unmarshal(msg, &control); err != nil {
				return nil, fmt.Errorf("failed to decode control frame: %w", err)
			}
			switch control.Type {
			case "end":
				s.ended = true
				return nil, io.EOF
			case "error":
				return nil, errors.New(control.Error)
			}
		}
	}
}

func (s *streamChunks) Close() error {
	if s.stopCloseOnCancel != nil {
		s.stopCloseOnCancel()
	}
	return s.shutdown()
}

// shutdown says goodbye and closes the connection, once. WriteControl may run
// concurrently with a data frame write, WriteMessage may not.
func (s *streamChunks) shutdown() error {
	s.closeOnce.Do(func() {
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeFrameTimeout))
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}
