package app

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ent0n29/voicedirect/internal/config"
	"github.com/ent0n29/voicedirect/internal/speech"
	"github.com/ent0n29/voicedirect/internal/voice"
)

type voiceSetup struct {
	transcriber voice.Transcriber
	synthesizer voice.Synthesizer
	sttLabel    string
	ttsLabel    string
}

// resolveVoiceProviders picks the transcription and synthesis backends. auto takes
// the first backend with a credential, backed by the second when there is one,
// and falls back to the mock.
func resolveVoiceProviders(cfg config.Config, logger zerolog.Logger) (voiceSetup, error) {
	var setup voiceSetup

	var eleven *voice.ElevenLabsProvider
	elevenLabs := func() *voice.ElevenLabsProvider {
		if eleven == nil {
			eleven = voice.NewElevenLabsProvider(voice.ElevenLabsConfig{
				APIKey:     cfg.ElevenLabsAPIKey,
				BaseURL:    cfg.ElevenLabsBaseURL,
				STTModelID: cfg.ElevenLabsSTTModel,
				Timeout:    cfg.ProviderTimeout,
			})
		}
		return eleven
	}
	hasKey := func(k string) bool { return strings.TrimSpace(k) != "" }

	buildSTT := func(mode string) (voice.Transcriber, error) {
		switch mode {
		case "elevenlabs":
			return elevenLabs(), nil
		case "deepgram":
			return speech.NewDeepgramTranscriber(speech.DeepgramConfig{
				APIKey:   cfg.DeepgramAPIKey,
				BaseURL:  cfg.DeepgramBaseURL,
				Model:    cfg.DeepgramModel,
				Language: cfg.DeepgramLanguage,
				Timeout:  cfg.ProviderTimeout,
			}, logger), nil
		case "openai":
			return speech.NewWhisperTranscriber(speech.WhisperConfig{
				APIKey:  cfg.OpenAIAPIKey,
				BaseURL: cfg.OpenAIBaseURL,
				Model:   cfg.OpenAISTTModel,
				Timeout: cfg.ProviderTimeout,
			}, logger), nil
		case "mock":
			return voice.NewMockProvider(), nil
		}
		return nil, fmt.Errorf("%w: invalid STT_PROVIDER %q", config.ErrConfiguration, cfg.STTProvider)
	}

	sttMode := config.Normalize(cfg.STTProvider)
	if sttMode == "auto" {
		var candidates []string
		if hasKey(cfg.ElevenLabsAPIKey) {
			candidates = append(candidates, "elevenlabs")
		}
		if hasKey(cfg.DeepgramAPIKey) {
			candidates = append(candidates, "deepgram")
		}
		if hasKey(cfg.OpenAIAPIKey) {
			candidates = append(candidates, "openai")
		}
		switch len(candidates) {
		case 0:
			sttMode = "mock"
			logger.Warn().Msg("no transcription credential configured; using mock transcriber")
		case 1:
			sttMode = candidates[0]
		default:
			// Two credentialed backends: the second covers outages of the first.
			primary, _ := buildSTT(candidates[0])
			fallback, _ := buildSTT(candidates[1])
			setup.transcriber = voice.NewFailoverTranscriber(primary, fallback)
			sttMode = candidates[0] + "+" + candidates[1]
		}
	}
	if setup.transcriber == nil {
		t, err := buildSTT(sttMode)
		if err != nil {
			return voiceSetup{}, err
		}
		setup.transcriber = t
	}
	setup.sttLabel = sttMode

	ttsMode := config.Normalize(cfg.TTSProvider)
	if ttsMode == "auto" {
		if hasKey(cfg.ElevenLabsAPIKey) {
			ttsMode = "elevenlabs"
		} else {
			ttsMode = "mock"
			logger.Warn().Msg("ELEVENLABS_API_KEY not set; using silent mock synthesizer")
		}
	}
	switch ttsMode {
	case "elevenlabs":
		setup.synthesizer = elevenLabs()
	case "mock":
		setup.synthesizer = voice.NewMockProvider()
	default:
		return voiceSetup{}, fmt.Errorf("%w: invalid TTS_PROVIDER %q", config.ErrConfiguration, cfg.TTSProvider)
	}
	setup.ttsLabel = ttsMode

	logger.Info().Str("stt", setup.sttLabel).Str("tts", setup.ttsLabel).Msg("voice providers resolved")
	return setup, nil
}
