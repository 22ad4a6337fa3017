package httpapi

import (
	"net/http"

	"github.com/ent0n29/voicedirect/internal/persona"
)

type personaSummary struct {
	ID      persona.ID `json:"id"`
	Label   string     `json:"label"`
	VoiceID string     `json:"voice_id"`
	Default bool       `json:"default"`
}

type listPersonasResponse struct {
	DefaultPersonaID string           `json:"default_persona_id"`
	Personas         []personaSummary `json:"personas"`
}

func (s *Server) handleListPersonas(w http.ResponseWriter, _ *http.Request) {
	all := persona.All()
	out := make([]personaSummary, 0, len(all))
	for _, p := range all {
		out = append(out, personaSummary{
			ID:      p.ID,
			Label:   p.Label,
			VoiceID: p.Voice(),
			Default: string(p.ID) == s.cfg.DefaultPersona,
		})
	}
	respondJSON(w, http.StatusOK, listPersonasResponse{
		DefaultPersonaID: s.cfg.DefaultPersona,
		Personas:         out,
	})
}
