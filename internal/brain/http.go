package brain

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/voicebridge/voicebridge/internal/reliability"
)

// HTTPAdapter forwards requests to a streaming-capable HTTP generation
// endpoint. SSE and NDJSON bodies are consumed delta by delta; plain JSON
// bodies are delivered as a single delta.
type HTTPAdapter struct {
	url    string
	client *http.Client
}

const (
	httpMaxAttempts = 3
	httpBackoffBase = 250 * time.Millisecond
	httpBackoffCap  = 2 * time.Second
)

func NewHTTPAdapter(url string) *HTTPAdapter {
	return &HTTPAdapter{
		url: strings.TrimSpace(url),
		// No client timeout: the supervisor owns both generation budgets
		// through the request context.
		client: &http.Client{},
	}
}

// StatusError reports a non-2xx response from the generation endpoint.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("brain http status %d: %s", e.Status, e.Body)
}

func (e *StatusError) Temporary() bool { return reliability.IsRetryableHTTPStatus(e.Status) }

// StreamGenerate posts the request and streams deltas back. Throttling and
// server errors are retried with backoff, but only before the first delta has
// been handed to onDelta: a half-streamed response must surface as an error,
// never restart from scratch.
func (a *HTTPAdapter) StreamGenerate(ctx context.Context, req Request, onDelta DeltaHandler) (Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}

	var res *http.Response
	var lastErr error
	for attempt := 0; attempt < httpMaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Response{}, ctx.Err()
			case <-time.After(reliability.ExponentialBackoff(attempt-1, httpBackoffBase, httpBackoffCap)):
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(payload))
		if err != nil {
			return Response{}, fmt.Errorf("create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "text/event-stream, application/x-ndjson, application/json")

		r, err := a.client.Do(httpReq)
		if err != nil {
			if ctx.Err() != nil {
				return Response{}, ctx.Err()
			}
			return Response{}, fmt.Errorf("send request: %w", err)
		}
		if r.StatusCode >= 200 && r.StatusCode < 300 {
			res = r
			break
		}

		body, _ := io.ReadAll(io.LimitReader(r.Body, 4<<10))
		r.Body.Close()
		statusErr := &StatusError{Status: r.StatusCode, Body: strings.TrimSpace(string(body))}
		lastErr = statusErr
		if !statusErr.Temporary() {
			return Response{}, statusErr
		}
	}
	if res == nil {
		return Response{}, lastErr
	}
	defer res.Body.Close()

	ct := strings.ToLower(res.Header.Get("Content-Type"))
	if strings.Contains(ct, "text/event-stream") || strings.Contains(ct, "application/x-ndjson") {
		resp, err := a.consumeStreaming(res.Body, onDelta)
		if err != nil && ctx.Err() != nil {
			return Response{}, ctx.Err()
		}
		return resp, err
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		if ctx.Err() != nil {
			return Response{}, ctx.Err()
		}
		return Response{}, fmt.Errorf("read response: %w", err)
	}

	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		text := strings.TrimSpace(string(body))
		if text == "" {
			return Response{}, nil
		}
		if onDelta != nil {
			if err := onDelta(text); err != nil {
				return Response{}, err
			}
		}
		return Response{Text: text}, nil
	}

	text := extractText(obj)
	if text != "" && onDelta != nil {
		if err := onDelta(text); err != nil {
			return Response{}, err
		}
	}
	return Response{Text: text}, nil
}

func (a *HTTPAdapter) consumeStreaming(body io.Reader, onDelta DeltaHandler) (Response, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var out strings.Builder
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "data:") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
		if line == "[DONE]" {
			break
		}

		delta := line
		var obj map[string]any
		if err := json.Unmarshal([]byte(line), &obj); err == nil {
			delta = strings.TrimSpace(extractText(obj))
		}

		if delta == "" {
			continue
		}
		out.WriteString(delta)
		if onDelta != nil {
			if err := onDelta(delta); err != nil {
				return Response{}, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return Response{}, fmt.Errorf("stream read: %w", err)
	}

	return Response{Text: out.String()}, nil
}

func extractText(obj map[string]any) string {
	for _, k := range []string{"text", "delta", "output", "message"} {
		if v, ok := obj[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}
