package voice

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/voicebridge/voicebridge/internal/audio"
	"github.com/voicebridge/voicebridge/internal/brain"
	"github.com/voicebridge/voicebridge/internal/observability"
	"github.com/voicebridge/voicebridge/internal/protocol"
	"github.com/voicebridge/voicebridge/internal/publish"
	"github.com/voicebridge/voicebridge/internal/reliability"
	"github.com/voicebridge/voicebridge/internal/session"
	"github.com/voicebridge/voicebridge/internal/transcript"
)

// InboundAudio is a binary audio frame from the client.
type InboundAudio struct {
	Data []byte
}

// InboundControl is a parsed client control message.
type InboundControl struct {
	Control protocol.ClientControl
}

// Options carries the orchestrator's tunables.
type Options struct {
	MaxBufferBytes int
	FrameDuration  time.Duration
	DefaultVoiceID string
	TTSSettings    TTSSettings
}

type Orchestrator struct {
	sessions   *session.Manager
	supervisor *brain.Supervisor
	stt        STTProvider
	tts        TTSProvider
	publisher  *publish.Publisher
	metrics    *observability.Metrics
	opts       Options
}

func NewOrchestrator(
	sessions *session.Manager,
	supervisor *brain.Supervisor,
	stt STTProvider,
	tts TTSProvider,
	publisher *publish.Publisher,
	metrics *observability.Metrics,
	opts Options,
) *Orchestrator {
	if opts.MaxBufferBytes <= 0 {
		opts.MaxBufferBytes = audio.DefaultMaxBufferBytes
	}
	if opts.FrameDuration <= 0 {
		opts.FrameDuration = 20 * time.Millisecond
	}
	return &Orchestrator{
		sessions:   sessions,
		supervisor: supervisor,
		stt:        stt,
		tts:        tts,
		publisher:  publisher,
		metrics:    metrics,
		opts:       opts,
	}
}

// genEvent flows from the generation goroutine back into the session loop so
// chunk publishing and completion stay on the single writer.
type genEvent struct {
	delta string
	seq   int

	final bool
	res   brain.Result
	err   error
}

// pendingUtterance holds the latest utterance finalized while the pipeline
// was busy. Single slot: a newer utterance replaces an older unserved one.
type pendingUtterance struct {
	turnID  string
	text    string
	finalAt time.Time
}

// RunConnection owns one session end to end. All session state lives in this
// goroutine; the generation task is the only work spawned off it, and it is
// cancellable independently. Returns when inbound closes, ctx is cancelled,
// or the client ends the session.
func (o *Orchestrator) RunConnection(ctx context.Context, s *session.Session, inbound <-chan any, tr Transport) error {
	sttSession, sttEvents, err := o.stt.StartSession(ctx, s.ID)
	if err != nil {
		o.publisher.Publish(tr, protocol.ErrorEvent{
			SessionID: s.ID,
			Code:      "stt_connect_failed",
			Source:    "stt",
			Retryable: true,
			Detail:    err.Error(),
			Timestamp: time.Now().UnixMilli(),
		})
		return err
	}
	defer sttSession.Close()

	voiceID := s.VoiceID
	if voiceID == "" {
		voiceID = o.opts.DefaultVoiceID
	}

	var (
		state = StateIdle
		buf   = audio.NewBuffer(o.opts.MaxBufferBytes, o.opts.FrameDuration)
		agg   = transcript.NewAggregator()
		muted = s.SpeakerMuted

		// Utterance currently being listened to.
		utterTurnID string

		// Turn currently in the generate/synthesize phases.
		activeTurnID string
		task         *brain.Task
		genCh        chan genEvent
		genQuit      chan struct{}

		ttsStream TTSStream
		ttsEvents <-chan TTSEvent
		pending   *pendingUtterance

		finalAt      time.Time
		genStartAt   time.Time
		synthStartAt time.Time
		firstChunk   bool
		firstAudio   bool
		responseText string
	)

	setState := func(next TurnState) {
		if next == state {
			return
		}
		if !CanTransition(state, next) {
			log.Printf("voice: session=%s illegal transition %s -> %s", s.ID, state, next)
		}
		state = next
		_ = o.sessions.SetState(s.ID, string(next))
		o.countSession("state_" + string(next))
	}

	publish := func(evt protocol.Event) {
		o.publisher.Publish(tr, evt)
	}

	publishError := func(turnID, code, source, detail string, retryable bool) {
		if o.metrics != nil {
			o.metrics.ProviderErrors.WithLabelValues(source, code).Inc()
		}
		publish(protocol.ErrorEvent{
			SessionID: s.ID,
			TurnID:    turnID,
			Code:      code,
			Source:    source,
			Retryable: retryable,
			Detail:    detail,
			Timestamp: time.Now().UnixMilli(),
		})
	}

	closeTTS := func() {
		if ttsStream != nil {
			_ = ttsStream.Close()
			ttsStream = nil
			ttsEvents = nil
		}
	}

	closeGenQuit := func() {
		if genQuit != nil {
			close(genQuit)
			genQuit = nil
		}
	}

	cancelGeneration := func() {
		if task != nil {
			task.Cancel()
			task = nil
		}
		closeGenQuit()
		genCh = nil
	}

	var beginGeneration func(turnID, text string)

	// finishTurn returns the pipeline to Idle and, when an utterance was
	// finalized mid-turn, immediately serves it. Runs on every turn exit,
	// success or failure, so a parked utterance is never stranded.
	finishTurn := func() {
		_ = o.sessions.FinishTurn(s.ID)
		if !finalAt.IsZero() && o.metrics != nil {
			o.metrics.ObserveTurnStage("turn_total", time.Since(finalAt))
		}
		activeTurnID = ""
		responseText = ""
		setState(StateIdle)

		if pending != nil {
			next := pending
			pending = nil
			_ = o.sessions.StartTurn(s.ID, next.turnID)
			setState(StateListening)
			setState(StateFinalizing)
			finalAt = next.finalAt
			beginGeneration(next.turnID, next.text)
		}
	}

	startSynthesis := func(turnID, text string) {
		stream, err := o.tts.StartStream(ctx, voiceID, o.opts.TTSSettings)
		if err != nil {
			publishError(turnID, "tts_connect_failed", "tts", err.Error(), reliability.IsRetryableError(err))
			setState(StateError)
			finishTurn()
			return
		}
		ttsStream = stream
		ttsEvents = stream.Events()
		setState(StateSynthesizing)
		synthStartAt = time.Now()
		firstAudio = false
		publish(protocol.SynthesisStarted{SessionID: s.ID, TurnID: turnID, Timestamp: time.Now().UnixMilli()})

		// Feed off-loop: a provider may not buffer the whole utterance.
		go func() {
			if err := stream.SendText(ctx, text); err != nil {
				return
			}
			_ = stream.CloseInput(ctx)
		}()
	}

	beginGeneration = func(turnID, text string) {
		setState(StateGenerating)
		activeTurnID = turnID
		genStartAt = time.Now()
		firstChunk = false

		ch := make(chan genEvent, 256)
		quit := make(chan struct{})
		genCh = ch
		genQuit = quit
		req := brain.Request{UserID: s.UserID, SessionID: s.ID, TurnID: turnID, InputText: text}
		t := o.supervisor.Start(ctx, req, func(seq int, delta string) error {
			select {
			case ch <- genEvent{delta: delta, seq: seq}:
				return nil
			case <-quit:
				return context.Canceled
			}
		})
		task = t
		go func() {
			res, err := t.Outcome()
			select {
			case ch <- genEvent{final: true, res: res, err: err}:
			case <-quit:
			}
		}()
	}

	// finalizeUtterance closes out the listening stage. When the pipeline is
	// busy the utterance parks in the single pending slot until Idle. A forced
	// finalization has no recognizer text to lean on and settles for whatever
	// the partials add up to.
	finalizeUtterance := func(finalText string, forced bool) {
		seconds := agg.Duration().Seconds()
		var text string
		var ok bool
		if forced {
			text, ok = agg.ForceFinalize()
		} else {
			text, ok = agg.Finalize(finalText)
		}
		turnID := utterTurnID
		agg.Clear()
		utterTurnID = ""

		if !ok {
			if state == StateListening {
				setState(StateIdle)
			}
			return
		}

		if state == StateListening {
			setState(StateFinalizing)
		}
		now := time.Now()
		publish(protocol.FinalTranscript{
			SessionID:       s.ID,
			TurnID:          turnID,
			Text:            text,
			DurationSeconds: seconds,
			Timestamp:       now.UnixMilli(),
		})

		if state.Busy() && state != StateFinalizing {
			pending = &pendingUtterance{turnID: turnID, text: text, finalAt: now}
			o.countSession("utterance_deferred")
			return
		}
		finalAt = now
		beginGeneration(turnID, text)
	}

	teardown := func() {
		cancelGeneration()
		closeTTS()
		buf.Reset()
		setState(StateClosed)
	}
	defer teardown()

	if o.metrics != nil {
		o.metrics.ActiveSessions.Inc()
		defer o.metrics.ActiveSessions.Dec()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case msg, ok := <-inbound:
			if !ok {
				return nil
			}
			switch m := msg.(type) {
			case InboundAudio:
				_ = o.sessions.Touch(s.ID)
				if overflow := buf.Ingest(m.Data); overflow {
					o.countSession("buffer_overflow")
					o.sessions.NoteForcedFinalization(s.ID)
					if o.metrics != nil {
						o.metrics.ObserveTurnIndicator("forced_finalization")
					}
					log.Printf("voice: session=%s buffer overflow, forcing finalization", s.ID)
					if utterTurnID != "" {
						finalizeUtterance("", true)
					}
					continue
				}
				frames, err := buf.DecodeFrames()
				if err != nil {
					publishError(utterTurnID, "bad_audio_container", "decode", err.Error(), false)
					buf.Reset()
					continue
				}
				if len(frames) == 0 {
					// Mid-frame tail; more bytes will arrive.
					o.countSession("decode_waiting")
					continue
				}
				for _, frame := range frames {
					if err := sttSession.SendAudio(ctx, frame, buf.SampleRate()); err != nil {
						publishError(utterTurnID, "stt_send_failed", "stt", err.Error(), reliability.IsRetryableError(err))
						break
					}
				}

			case InboundControl:
				_ = o.sessions.Touch(s.ID)
				switch m.Control.Action {
				case protocol.ActionEndUtterance:
					if err := sttSession.Commit(ctx); err != nil {
						publishError(utterTurnID, "stt_commit_failed", "stt", err.Error(), reliability.IsRetryableError(err))
					}
				case protocol.ActionMute:
					muted = true
					_ = o.sessions.SetMuted(s.ID, true)
				case protocol.ActionUnmute:
					muted = false
					_ = o.sessions.SetMuted(s.ID, false)
				case protocol.ActionEndSession:
					return nil
				}
			}

		case evt, ok := <-sttEvents:
			if !ok {
				// Recognizer went away; turn-fatal, session keeps living
				// only if the caller restarts. Treat as session end.
				return errors.New("stt event stream closed")
			}
			switch evt.Type {
			case STTEventPartial:
				if evt.Text == "" {
					continue
				}
				if utterTurnID == "" {
					utterTurnID = uuid.NewString()
					if state == StateIdle {
						setState(StateListening)
						_ = o.sessions.StartTurn(s.ID, utterTurnID)
					}
				}
				joined, ok := agg.AddPartial(evt.Text)
				if !ok {
					continue
				}
				publish(protocol.PartialTranscript{
					SessionID: s.ID,
					TurnID:    utterTurnID,
					Text:      joined,
					Timestamp: time.Now().UnixMilli(),
				})
			case STTEventFinal:
				if utterTurnID == "" {
					// Final with no preceding partial still forms a turn.
					if evt.Text == "" {
						continue
					}
					utterTurnID = uuid.NewString()
					if state == StateIdle {
						setState(StateListening)
						_ = o.sessions.StartTurn(s.ID, utterTurnID)
					}
				}
				finalizeUtterance(evt.Text, false)
			case STTEventError:
				publishError(utterTurnID, evt.Code, "stt", evt.Detail, evt.Retryable)
				if state == StateListening {
					agg.Clear()
					utterTurnID = ""
					setState(StateIdle)
				}
			}

		case ge := <-genCh:
			if !ge.final {
				if !firstChunk {
					firstChunk = true
					if o.metrics != nil && !finalAt.IsZero() {
						o.metrics.ObserveTurnStage("final_to_first_chunk", time.Since(finalAt))
					}
				}
				publish(protocol.ResponseChunk{
					SessionID: s.ID,
					TurnID:    activeTurnID,
					Seq:       ge.seq,
					Text:      ge.delta,
					Timestamp: time.Now().UnixMilli(),
				})
				continue
			}

			task = nil
			genCh = nil
			closeGenQuit()
			if o.metrics != nil {
				o.metrics.ObserveTurnStage("generation_total", time.Since(genStartAt))
			}

			switch {
			case ge.err == nil:
				responseText = ge.res.Text
				if ge.res.Truncated && o.metrics != nil {
					o.metrics.ObserveTurnIndicator("generation_truncated")
				}
				publish(protocol.ResponseComplete{
					SessionID: s.ID,
					TurnID:    activeTurnID,
					Text:      ge.res.Text,
					Truncated: ge.res.Truncated,
					Timestamp: time.Now().UnixMilli(),
				})
				startSynthesis(activeTurnID, responseText)
			case errors.Is(ge.err, context.Canceled):
				// Turn torn down under us; nothing more to publish.
				finishTurn()
			case errors.Is(ge.err, brain.ErrGenerationTimeout):
				publishError(activeTurnID, "generation_timeout", "brain", ge.err.Error(), true)
				setState(StateError)
				finishTurn()
			case errors.Is(ge.err, brain.ErrGenerationDeadline):
				publishError(activeTurnID, "generation_deadline", "brain", ge.err.Error(), false)
				setState(StateError)
				finishTurn()
			default:
				publishError(activeTurnID, "generation_failed", "brain", ge.err.Error(), false)
				setState(StateError)
				finishTurn()
			}

		case te, ok := <-ttsEvents:
			if !ok {
				// Stream closed without a final marker.
				publishError(activeTurnID, "tts_stream_closed", "tts", "synthesis ended early", true)
				closeTTS()
				setState(StateError)
				finishTurn()
				continue
			}
			switch te.Type {
			case TTSEventAudio:
				if len(te.Audio) == 0 {
					continue
				}
				if !firstAudio {
					firstAudio = true
					setState(StateSpeaking)
					if o.metrics != nil && !finalAt.IsZero() {
						o.metrics.ObserveTurnStage("final_to_first_audio", time.Since(finalAt))
					}
				}
				if muted {
					o.countSession("audio_discarded_muted")
					continue
				}
				if err := tr.SendBinary(te.Audio); err != nil {
					log.Printf("voice: session=%s audio send failed: %v", s.ID, err)
					o.countSession("audio_send_failed")
				}
			case TTSEventFinal:
				// Every audio byte of this utterance has been handed to the
				// transport: events on this channel are ordered, and sends
				// happen inline above. Only now is completion published.
				if o.metrics != nil {
					o.metrics.ObserveTurnStage("synthesis_total", time.Since(synthStartAt))
				}
				publish(protocol.SynthesisComplete{
					SessionID:       s.ID,
					TurnID:          activeTurnID,
					DurationSeconds: time.Since(synthStartAt).Seconds(),
					Timestamp:       time.Now().UnixMilli(),
				})
				closeTTS()
				finishTurn()
			case TTSEventError:
				publishError(activeTurnID, te.Code, "tts", te.Detail, te.Retryable)
				closeTTS()
				setState(StateError)
				finishTurn()
			}
		}
	}
}

func (o *Orchestrator) countSession(event string) {
	if o.metrics != nil {
		o.metrics.SessionEvents.WithLabelValues(event).Inc()
	}
}
