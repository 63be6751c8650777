package brain

import (
	"context"
	"fmt"
	"strings"
)

// MockAdapter produces deterministic local replies, streamed word by word so
// downstream chunk handling is exercised even without a real backend.
type MockAdapter struct{}

func NewMockAdapter() *MockAdapter { return &MockAdapter{} }

func (a *MockAdapter) StreamGenerate(ctx context.Context, req Request, onDelta DeltaHandler) (Response, error) {
	input := strings.TrimSpace(req.InputText)
	if input == "" {
		input = "I didn't catch that."
	}
	text := fmt.Sprintf("You said: %s", input)

	if onDelta != nil {
		for _, word := range strings.Fields(text) {
			select {
			case <-ctx.Done():
				return Response{}, ctx.Err()
			default:
			}
			if err := onDelta(word + " "); err != nil {
				return Response{}, err
			}
		}
	}
	return Response{Text: text}, nil
}
