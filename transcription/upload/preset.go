package upload

import "sort"

// Preset describes an OpenAI-compatible transcription endpoint.
type Preset struct {
	ID      string
	BaseURL string
	Path    string
	Model   string
	// NeedsKey is false for local servers.
	NeedsKey bool
}

var presets = map[string]Preset{
	"openai": {
		ID:       "openai",
		BaseURL:  "https://api.openai.com/v1",
		Path:     "/audio/transcriptions",
		Model:    "whisper-1",
		NeedsKey: true,
	},
	"groq": {
		ID:       "groq",
		BaseURL:  "https://api.groq.com/openai/v1",
		Path:     "/audio/transcriptions",
		Model:    "whisper-large-v3-turbo",
		NeedsKey: true,
	},
	"whisper": {
		ID:      "whisper",
		BaseURL: "http://localhost:8387",
		Path:    "/v1/audio/transcriptions",
		Model:   "base",
	},
}

// PresetFor returns the preset registered under id.
func PresetFor(id string) (Preset, bool) {
	p, ok := presets[id]
	return p, ok
}

// Presets returns the sorted preset ids.
func Presets() []string {
	ids := make([]string, 0, len(presets))
	for id := range presets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
