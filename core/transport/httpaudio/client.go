// Package httpaudio exchanges recordings with the backend over HTTP.
//
// The clip is posted as multipart form data (field "audio") to
// {base}/audio/{session}/{model}/{voice}. A WAV reply is read incrementally:
// every RIFF file in the body becomes one chunk of a streamed response.
// Other audio types are buffered whole.
package httpaudio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/koscakluka/ema-voice/core/audio"
	"github.com/koscakluka/ema-voice/core/transport"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// maxErrorBody bounds how much of a failure body is read for its message.
const maxErrorBody = 64 << 10

type Client struct {
	baseURL  *url.URL
	http     *http.Client
	buffered bool
}

type ClientOption func(*Client)

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithBufferedResponses reads every reply whole instead of streaming WAV
// files as they arrive.
func WithBufferedResponses() ClientOption {
	return func(c *Client) {
		c.buffered = true
	}
}

func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend url %q: %w", baseURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend url %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		baseURL: parsed,
		http: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
				return "backend " + request.Method + " " + request.URL.Path
			}),
		)},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

var _ transport.Transport = (*Client)(nil)

func (c *Client) Exchange(ctx context.Context, req transport.Request) (*transport.Response, error) {
	ctx, span := tracer.Start(ctx, "exchange audio")
	defer span.End()
	span.SetAttributes(
		attribute.String("request.session_id", req.SessionID),
		attribute.String("request.model_id", req.ModelID),
		attribute.String("request.voice_id", req.VoiceID),
		attribute.Int("request.payload_size", len(req.Payload)),
	)

	body, contentType, err := multipartBody(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	endpoint := c.baseURL.JoinPath("audio", req.SessionID, req.ModelID, req.VoiceID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "audio/wav, audio/*;q=0.9, application/json;q=0.5")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		err = fmt.Errorf("failed to post audio: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	resp := &transport.Response{
		Status:      httpResp.StatusCode,
		ContentType: httpResp.Header.Get("Content-Type"),
	}
	span.SetAttributes(
		attribute.Int("response.status", resp.Status),
		attribute.String("response.content_type", resp.ContentType),
	)

	if resp.Status < 200 || resp.Status > 299 || !transport.IsAudio(resp.ContentType) {
		resp.ErrorMessage = readErrorMessage(httpResp.Body)
		_ = httpResp.Body.Close()
		return resp, nil
	}

	if c.buffered || !transport.IsWAV(resp.ContentType) {
		defer httpResp.Body.Close()
		payload, err := io.ReadAll(httpResp.Body)
		if err != nil {
			err = fmt.Errorf("failed to read response body: %w", err)
			span.RecordError(err)
			return nil, err
		}
		resp.Payload = payload
		return resp, nil
	}

	resp.Chunks = &bodyChunks{body: httpResp.Body, framer: audio.NewWAVFramer(httpResp.Body)}
	return resp, nil
}

func multipartBody(req transport.Request) (io.Reader, string, error) {
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)

	mimeType := req.MIMEType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	filename := "recording"
	if extensions, err := mime.ExtensionsByType(mimeType); err == nil && len(extensions) > 0 {
		filename += extensions[0]
	}

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="audio"; filename="%s"`, filename))
	header.Set("Content-Type", mimeType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form part: %w", err)
	}
	if _, err := part.Write(req.Payload); err != nil {
		return nil, "", fmt.Errorf("failed to write form part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish form: %w", err)
	}

	return buf, writer.FormDataContentType(), nil
}

// readErrorMessage extracts the backend's error text. JSON bodies of the
// form {"error": "..."} or {"detail": "..."} yield just the message.
func readErrorMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return ""
	}

	var parsed struct {
		Error  string `json:"error"`
		Detail any    `json:"detail"`
	}
	if err := sonic.Unmarshal(raw, &parsed); err == nil {
		if parsed.Error != "" {
			return parsed.Error
		}
		if parsed.Detail != nil {
			return fmt.Sprint(parsed.Detail)
		}
	}
	return strings.TrimSpace(string(raw))
}

type bodyChunks struct {
	body   io.ReadCloser
	framer *audio.WAVFramer
}

func (b *bodyChunks) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	chunk, err := b.framer.Next()
	if err != nil {
		if err != io.EOF {
			logger.DebugContext(ctx, "response stream ended early", "error", err)
		}
		return nil, err
	}
	return chunk, nil
}

func (b *bodyChunks) Close() error {
	return b.body.Close()
}
