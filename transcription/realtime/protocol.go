package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/kbukum/wonderwhisper/audio"
)

// Params are the session settings encoded into the listen URL.
type Params struct {
	Model    string
	Language string
}

// Protocol is one vendor's wire vocabulary.
type Protocol interface {
	Name() string
	// DefaultURL is the vendor's streaming endpoint.
	DefaultURL() string
	// URL adds session parameters to base.
	URL(base string, p Params) (string, error)
	Header(apiKey string) http.Header
	// ReadyOnConnect is true when the socket accepts audio right after the handshake.
	ReadyOnConnect() bool
	Decode(data []byte) ([]Event, error)
	// Terminate is the text message that asks for the final transcript.
	Terminate() []byte
}

// ProtocolFor returns the protocol registered under name.
func ProtocolFor(name string) (Protocol, bool) {
	switch name {
	case "assemblyai":
		return AssemblyAI{}, true
	case "deepgram":
		return Deepgram{}, true
	default:
		return nil, false
	}
}

func withQuery(base string, q map[string]string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("scheme must be ws or wss, got %q", u.Scheme)
	}
	values := u.Query()
	for k, v := range q {
		if v != "" {
			values.Set(k, v)
		}
	}
	u.RawQuery = values.Encode()
	return u.String(), nil
}

// AssemblyAI speaks the v3 streaming protocol: Begin, Turn, Termination.
type AssemblyAI struct{}

func (AssemblyAI) Name() string         { return "assemblyai" }
func (AssemblyAI) DefaultURL() string   { return "wss://streaming.assemblyai.com/v3/ws" }
func (AssemblyAI) ReadyOnConnect() bool { return false }
func (AssemblyAI) Terminate() []byte    { return []byte(`{"type":"Terminate"}`) }

func (AssemblyAI) URL(base string, p Params) (string, error) {
	return withQuery(base, map[string]string{
		"sample_rate":  strconv.Itoa(audio.SampleRate),
		"encoding":     "pcm_s16le",
		"format_turns": "true",
		"speech_model": p.Model,
		"language":     p.Language,
	})
}

func (AssemblyAI) Header(apiKey string) http.Header {
	h := make(http.Header)
	h.Set("Authorization", apiKey)
	return h
}

type assemblyMessage struct {
	Type            string  `json:"type"`
	Transcript      string  `json:"transcript"`
	EndOfTurn       bool    `json:"end_of_turn"`
	TurnIsFormatted bool    `json:"turn_is_formatted"`
	Confidence      float64 `json:"end_of_turn_confidence"`
	Words           []struct {
		Confidence float64 `json:"confidence"`
	} `json:"words"`
	Error string `json:"error"`
}

// Decode maps one message. With format_turns enabled each turn ends twice;
// only the formatted copy is final.
func (AssemblyAI) Decode(data []byte) ([]Event, error) {
	var m assemblyMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if m.Error != "" {
		return []Event{{Type: EventError, Err: errors.New(m.Error)}}, nil
	}
	switch m.Type {
	case "Begin":
		return []Event{{Type: EventReady}}, nil
	case "Turn":
		if m.EndOfTurn && m.TurnIsFormatted {
			return []Event{{Type: EventFinal, Text: m.Transcript, Confidence: wordConfidence(m)}}, nil
		}
		return []Event{{Type: EventPartial, Text: m.Transcript}}, nil
	case "Termination":
		return []Event{{Type: EventTerminated}}, nil
	}
	return nil, nil
}

func wordConfidence(m assemblyMessage) float64 {
	if len(m.Words) == 0 {
		return 0
	}
	var sum float64
	for _, w := range m.Words {
		sum += w.Confidence
	}
	return sum / float64(len(m.Words))
}

// Deepgram speaks the v1 listen protocol: Results frames, CloseStream, Metadata.
type Deepgram struct{}

func (Deepgram) Name() string         { return "deepgram" }
func (Deepgram) DefaultURL() string   { return "wss://api.deepgram.com/v1/listen" }
func (Deepgram) ReadyOnConnect() bool { return true }
func (Deepgram) Terminate() []byte    { return []byte(`{"type":"CloseStream"}`) }

func (Deepgram) URL(base string, p Params) (string, error) {
	model := p.Model
	if model == "" {
		model = "nova-3"
	}
	return withQuery(base, map[string]string{
		"model":           model,
		"language":        p.Language,
		"encoding":        "linear16",
		"sample_rate":     strconv.Itoa(audio.SampleRate),
		"channels":        strconv.Itoa(audio.Channels),
		"interim_results": "true",
		"punctuate":       "true",
		"smart_format":    "true",
	})
}

func (Deepgram) Header(apiKey string) http.Header {
	h := make(http.Header)
	h.Set("Authorization", "Token "+apiKey)
	return h
}

type deepgramMessage struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
	Description string `json:"description"`
}

// Decode maps one message. Metadata arrives after CloseStream once every
// result has been sent.
func (Deepgram) Decode(data []byte) ([]Event, error) {
	var m deepgramMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	switch m.Type {
	case "Results":
		if len(m.Channel.Alternatives) == 0 {
			return nil, nil
		}
		alt := m.Channel.Alternatives[0]
		if m.IsFinal {
			return []Event{{Type: EventFinal, Text: alt.Transcript, Confidence: alt.Confidence}}, nil
		}
		return []Event{{Type: EventPartial, Text: alt.Transcript}}, nil
	case "Metadata":
		return []Event{{Type: EventTerminated}}, nil
	case "Error":
		return []Event{{Type: EventError, Err: errors.New(m.Description)}}, nil
	}
	return nil, nil
}
