package app

import (
	"github.com/rs/zerolog"

	"github.com/ent0n29/voicedirect/internal/observability"
	"github.com/ent0n29/voicedirect/internal/voice"
)

// Pipeline holds the shared provider clients. Each conversation gets its own
// orchestrator over them, with its own capture device and player.
type Pipeline struct {
	Transcriber    voice.Transcriber
	Completer      voice.Completer
	Synthesizer    voice.Synthesizer
	Synthesis      voice.SynthesisOptions
	ProviderLabels voice.ProviderLabels
	MemoryTurns    int
	AbandonOnLeave bool
	DefaultPersona string
	Metrics        *observability.Metrics
}

func (p *Pipeline) NewConversation(personaID string, capture voice.CaptureDevice, player voice.Player, logger zerolog.Logger) (*voice.Orchestrator, error) {
	if personaID == "" {
		personaID = p.DefaultPersona
	}
	return voice.NewOrchestrator(voice.Config{
		PersonaID:      personaID,
		MemoryTurns:    p.MemoryTurns,
		AbandonOnLeave: p.AbandonOnLeave,
		Synthesis:      p.Synthesis,
		Labels:         p.ProviderLabels,
	}, voice.Deps{
		Capture:     capture,
		Transcriber: p.Transcriber,
		Completer:   p.Completer,
		Synthesizer: p.Synthesizer,
		Player:      player,
		Metrics:     p.Metrics,
		Logger:      logger,
	})
}

func (p *Pipeline) Labels() voice.ProviderLabels { return p.ProviderLabels }

// STTFallbackActive reports whether transcription is currently served by the
// fallback backend of a failover pair.
func (p *Pipeline) STTFallbackActive() bool {
	f, ok := p.Transcriber.(*voice.FailoverTranscriber)
	return ok && f.FallbackActive()
}
