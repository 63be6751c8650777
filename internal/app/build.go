package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/voicebridge/voicebridge/internal/brain"
	"github.com/voicebridge/voicebridge/internal/bus"
	"github.com/voicebridge/voicebridge/internal/config"
	"github.com/voicebridge/voicebridge/internal/httpapi"
	"github.com/voicebridge/voicebridge/internal/journal"
	"github.com/voicebridge/voicebridge/internal/observability"
	"github.com/voicebridge/voicebridge/internal/publish"
	"github.com/voicebridge/voicebridge/internal/session"
	"github.com/voicebridge/voicebridge/internal/voice"
)

type BuildResult struct {
	Config       config.Config
	API          *httpapi.Server
	Sessions     *session.Manager
	Orchestrator *voice.Orchestrator
	Bus          *bus.Bus
	Metrics      *observability.Metrics

	// Cleanup should be called on shutdown to release external resources.
	Cleanup func() error
}

// Build wires the full pipeline: providers, generation supervisor, event bus,
// journal writer, session manager, orchestrator and HTTP surface.
func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	store, err := journal.NewStore(ctx, cfg.DatabaseURL, cfg.RedisURL, cfg.JournalTTL)
	if err != nil {
		return nil, fmt.Errorf("journal store init failed: %w", err)
	}

	adapter, err := brain.NewAdapter(brain.Config{
		Mode:    cfg.BrainMode,
		BaseURL: cfg.BrainBaseURL,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("brain adapter init failed: %w", err)
	}

	supervisor, err := brain.NewSupervisor(adapter, cfg.InnerGenerationTimeout, cfg.OuterGenerationTimeout)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	stt, tts, err := voice.SelectProviders(voice.ProviderSelection{
		Mode: cfg.VoiceProvider,
		ElevenLabs: voice.ElevenLabsConfig{
			APIKey:              cfg.ElevenLabsAPIKey,
			WSBaseURL:           cfg.ElevenLabsWSBaseURL,
			STTModelID:          cfg.ElevenLabsSTTModel,
			TTSModelID:          cfg.ElevenLabsTTSModel,
			DefaultOutputFormat: cfg.ElevenLabsTTSOutputFormat,
		},
		Polly: voice.PollyConfig{
			Region:  cfg.PollyRegion,
			VoiceID: cfg.PollyVoice,
			Engine:  cfg.PollyEngine,
		},
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	eventBus := bus.New()
	publisher := publish.New(eventBus, metrics)
	writer := journal.StartWriter(ctx, eventBus, store)

	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	sessions.SetExpireHook(func(_ *session.Session) {
		metrics.SessionEvents.WithLabelValues("expired").Inc()
		metrics.ActiveSessions.Set(float64(sessions.ActiveCount()))
	})

	orchestrator := voice.NewOrchestrator(sessions, supervisor, stt, tts, publisher, metrics, voice.Options{
		MaxBufferBytes: cfg.MaxBufferBytes,
		FrameDuration:  cfg.FrameDuration,
		DefaultVoiceID: cfg.DefaultVoiceID,
	})

	api := httpapi.New(cfg, sessions, orchestrator, tts, metrics)

	cleanup := func() error {
		var errs []string
		<-writer.Done()
		if err := store.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if len(errs) > 0 {
			return fmt.Errorf("%s", strings.Join(errs, "; "))
		}
		return nil
	}

	return &BuildResult{
		Config:       cfg,
		API:          api,
		Sessions:     sessions,
		Orchestrator: orchestrator,
		Bus:          eventBus,
		Metrics:      metrics,
		Cleanup:      cleanup,
	}, nil
}
