package brain

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"
)

var (
	// ErrGenerationTimeout means the stream stalled inside the provider
	// budget before any chunk arrived. The turn fails but the session lives.
	ErrGenerationTimeout = errors.New("brain: generation timed out before first chunk")
	// ErrGenerationDeadline means the hard service budget elapsed. Always
	// turn-fatal, even if chunks were received.
	ErrGenerationDeadline = errors.New("brain: generation exceeded hard deadline")
)

// Result is the outcome of one supervised generation.
type Result struct {
	Text      string
	Chunks    int
	Truncated bool
}

// Supervisor drives one generation call under two nested budgets, both
// measured from call start. The inner budget bounds the provider's token
// stream; the outer, strictly larger budget bounds the supervisor's own wait
// in case the inner guard never fires.
type Supervisor struct {
	adapter Adapter
	inner   time.Duration
	outer   time.Duration
}

func NewSupervisor(adapter Adapter, inner, outer time.Duration) (*Supervisor, error) {
	if inner <= 0 || outer <= 0 {
		return nil, errors.New("brain: generation budgets must be positive")
	}
	if outer <= inner {
		return nil, errors.New("brain: outer budget must exceed inner budget")
	}
	return &Supervisor{adapter: adapter, inner: inner, outer: outer}, nil
}

// Generate runs one generation. Each streamed delta is forwarded to onChunk
// with its sequence number. Inner timeout with at least one chunk received
// returns the partial concatenation with Truncated set rather than an error;
// partial output is worth keeping once token generation has begun. A caller
// cancellation surfaces as context.Canceled, never as a timeout error.
func (s *Supervisor) Generate(ctx context.Context, req Request, onChunk func(seq int, delta string) error) (Result, error) {
	innerCtx, cancelInner := context.WithTimeout(ctx, s.inner)
	defer cancelInner()

	var (
		mu     sync.Mutex
		pieces []string
	)
	collect := func(delta string) error {
		mu.Lock()
		pieces = append(pieces, delta)
		seq := len(pieces) - 1
		mu.Unlock()
		if onChunk != nil {
			return onChunk(seq, delta)
		}
		return nil
	}

	type outcome struct {
		resp Response
		err  error
	}
	resCh := make(chan outcome, 1)
	go func() {
		resp, err := s.adapter.StreamGenerate(innerCtx, req, collect)
		resCh <- outcome{resp: resp, err: err}
	}()

	outerTimer := time.NewTimer(s.outer)
	defer outerTimer.Stop()

	var out outcome
	select {
	case out = <-resCh:
	case <-outerTimer.C:
		cancelInner()
		log.Printf("brain: session=%s turn=%s hard deadline after %s", req.SessionID, req.TurnID, s.outer)
		return s.partialResult(&mu, &pieces, true), ErrGenerationDeadline
	}

	mu.Lock()
	chunks := len(pieces)
	mu.Unlock()

	switch {
	case out.err == nil:
		text := strings.TrimSpace(out.resp.Text)
		if text == "" {
			text = s.partialResult(&mu, &pieces, false).Text
		}
		return Result{Text: text, Chunks: chunks}, nil

	case ctx.Err() != nil:
		// The caller tore the turn down; a distinct outcome, not a failure.
		return Result{}, context.Canceled

	case errors.Is(out.err, context.DeadlineExceeded):
		if chunks == 0 {
			return Result{}, ErrGenerationTimeout
		}
		res := s.partialResult(&mu, &pieces, true)
		log.Printf("brain: session=%s turn=%s stream stalled after %d chunks, returning partial", req.SessionID, req.TurnID, chunks)
		return res, nil

	default:
		return Result{}, out.err
	}
}

func (s *Supervisor) partialResult(mu *sync.Mutex, pieces *[]string, truncated bool) Result {
	mu.Lock()
	defer mu.Unlock()
	return Result{
		Text:      strings.TrimSpace(strings.Join(*pieces, "")),
		Chunks:    len(*pieces),
		Truncated: truncated,
	}
}
