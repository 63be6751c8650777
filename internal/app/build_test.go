package app

import (
	"context"
	"testing"
	"time"

	"github.com/voicebridge/voicebridge/internal/config"
)

func TestBuildWithMockProviders(t *testing.T) {
	cfg := config.Config{
		MetricsNamespace:         "test_app_build_" + time.Now().Format("150405000000000"),
		VoiceProvider:            "mock",
		MaxBufferBytes:           500_000,
		FrameDuration:            20 * time.Millisecond,
		InnerGenerationTimeout:   30 * time.Second,
		OuterGenerationTimeout:   45 * time.Second,
		SessionInactivityTimeout: 2 * time.Minute,
		JournalTTL:               time.Hour,
	}

	ctx, cancel := context.WithCancel(context.Background())
	result, err := Build(ctx, cfg)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if result.API == nil || result.Orchestrator == nil || result.Sessions == nil || result.Bus == nil {
		t.Fatal("Build() returned incomplete result")
	}

	cancel()
	if err := result.Cleanup(); err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
}
