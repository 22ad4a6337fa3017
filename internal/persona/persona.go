// Package persona holds the fixed registry of assistant personalities.
package persona

import (
	"errors"
	"fmt"
	"strings"
)

// ErrPersonaNotFound is returned when an id is not in the registry.
var ErrPersonaNotFound = errors.New("persona not found")

type ID string

const (
	ChillGZ      ID = "chill_gz"
	HypeFriend   ID = "hype_friend"
	Professional ID = "professional"
)

// DefaultVoiceID is used for synthesis when a persona carries no voice.
const DefaultVoiceID = "pNInz6obpgDQGcFmaJgB"

// Persona bundles a system prompt with a synthesis voice.
type Persona struct {
	ID      ID     `json:"id"`
	Label   string `json:"label"`
	Prompt  string `json:"prompt"`
	VoiceID string `json:"voice_id"`
}

var registry = map[ID]Persona{
	ChillGZ: {
		ID:    ChillGZ,
		Label: "Chill Gen Z",
		Prompt: "Respond like a calm Gen Z dude.\n" +
			"Short sentences. Light slang.\n" +
			"Relaxed vibe. Low-key funny.\n" +
			"Never formal.",
		VoiceID: "pNInz6obpgDQGcFmaJgB",
	},
	HypeFriend: {
		ID:    HypeFriend,
		Label: "Hype Friend",
		Prompt: "Respond with high energy, hype, and enthusiasm.\n" +
			"Lots of encouragement. Big reactions.\n" +
			"Make the user feel like they're THAT guy.",
		VoiceID: "21m00Tcm4TlvDq8ikWAM",
	},
	Professional: {
		ID:    Professional,
		Label: "Professional",
		Prompt: "Respond in a formal, clear, structured way.\n" +
			"No slang, no jokes, no emotional chaos.\n" +
			"Corporate tone activated.",
		VoiceID: "ErXwobaYiN019PkySvjV",
	},
}

// order is the display order used by selectors.
var order = []ID{ChillGZ, HypeFriend, Professional}

// Lookup returns the persona registered under id.
func Lookup(id string) (Persona, error) {
	p, ok := registry[ID(strings.TrimSpace(id))]
	if !ok {
		return Persona{}, fmt.Errorf("%w: %q", ErrPersonaNotFound, id)
	}
	return p, nil
}

// All lists every persona in display order.
func All() []Persona {
	out := make([]Persona, 0, len(order))
	for _, id := range order {
		out = append(out, registry[id])
	}
	return out
}

// Next returns the persona after id in display order, wrapping around.
func Next(id ID) Persona {
	for i, cur := range order {
		if cur == id {
			return registry[order[(i+1)%len(order)]]
		}
	}
	return registry[order[0]]
}

// Voice returns the persona's voice or the default voice when unset.
func (p Persona) Voice() string {
	if strings.TrimSpace(p.VoiceID) == "" {
		return DefaultVoiceID
	}
	return p.VoiceID
}

// UserTurn prefixes the transcript with the persona's prompt.
func (p Persona) UserTurn(transcript string) string {
	return p.Prompt + "\nUser said: " + transcript
}
