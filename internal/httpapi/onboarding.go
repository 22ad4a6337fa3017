package httpapi

import (
	"net/http"
	"strings"
)

type onboardingCheck struct {
	ID     string `json:"id"`
	Status string `json:"status"` // ok|warn|error
	Label  string `json:"label"`
	Detail string `json:"detail,omitempty"`
	Fix    string `json:"fix,omitempty"`
}

// sttFailover is implemented by factories whose transcriber can switch to a fallback backend.
type sttFailover interface {
	STTFallbackActive() bool
}

type onboardingStatusResponse struct {
	STTProvider       string            `json:"stt_provider"`
	STTFallbackActive bool              `json:"stt_fallback_active"`
	BrainProvider     string            `json:"brain_provider"`
	TTSProvider       string            `json:"tts_provider"`
	DefaultPersona    string            `json:"default_persona"`
	Checks            []onboardingCheck `json:"checks"`
}

func (s *Server) handleOnboardingStatus(w http.ResponseWriter, _ *http.Request) {
	var resp onboardingStatusResponse
	if s.factory != nil {
		labels := s.factory.Labels()
		resp.STTProvider, resp.BrainProvider, resp.TTSProvider = labels.STT, labels.Brain, labels.TTS
	}
	resp.DefaultPersona = s.cfg.DefaultPersona
	sttCheck := s.providerCheck("stt", "Speech-to-text", resp.STTProvider)
	if f, ok := s.factory.(sttFailover); ok && f.STTFallbackActive() {
		resp.STTFallbackActive = true
		if sttCheck.Status == "ok" {
			sttCheck.Status = "warn"
			sttCheck.Detail = resp.STTProvider + ": primary failed, using fallback"
		}
	}
	resp.Checks = append(resp.Checks,
		sttCheck,
		s.providerCheck("brain", "Reply generation", resp.BrainProvider),
		s.providerCheck("tts", "Text-to-speech", resp.TTSProvider),
	)
	resp.Checks = append(resp.Checks, onboardingCheck{
		ID:     "microphone",
		Status: "ok",
		Label:  "Microphone",
		Detail: "streamed by the client over /v1/voice/session/ws",
	})
	respondJSON(w, http.StatusOK, resp)
}

// providerCheck reports whether the resolved backend has the credential it needs.
func (s *Server) providerCheck(id, label, provider string) onboardingCheck {
	check := onboardingCheck{ID: id + "_provider", Label: label, Detail: provider}
	var keyName, key string
	switch provider {
	case "elevenlabs":
		keyName, key = "ELEVENLABS_API_KEY", s.cfg.ElevenLabsAPIKey
	case "deepgram":
		keyName, key = "DEEPGRAM_API_KEY", s.cfg.DeepgramAPIKey
	case "openai":
		keyName, key = "OPENAI_API_KEY", s.cfg.OpenAIAPIKey
	case "gemini", "gemini_http":
		keyName, key = "GEMINI_API_KEY", s.cfg.GeminiAPIKey
	case "mock":
		check.Status = "warn"
		check.Detail = "mock backend; replies are simulated"
		check.Fix = mockFix(id)
		return check
	case "":
		check.Status = "error"
		check.Detail = "not configured"
		return check
	}
	if keyName != "" && strings.TrimSpace(key) == "" {
		check.Status = "error"
		check.Detail = keyName + " is not set"
		check.Fix = "Set " + keyName + " in the environment or .env."
		return check
	}
	check.Status = "ok"
	return check
}

func mockFix(id string) string {
	switch id {
	case "stt":
		return "Set ELEVENLABS_API_KEY, DEEPGRAM_API_KEY or OPENAI_API_KEY."
	case "brain":
		return "Set GEMINI_API_KEY or OPENAI_API_KEY."
	default:
		return "Set ELEVENLABS_API_KEY."
	}
}
