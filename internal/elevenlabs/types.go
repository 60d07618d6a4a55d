// Package elevenlabs provides an HTTP client for the ElevenLabs text-to-speech API.
package elevenlabs

// Defaults for text-to-speech requests.
const (
	DefaultBaseURL      = "https://api.elevenlabs.io"
	DefaultVoiceID      = "JBFqnCBsd6RMkjVDRZzb"
	DefaultModelID      = "eleven_multilingual_v2"
	DefaultOutputFormat = "mp3_44100_128"
)

// Request describes one synthesis call. Empty fields fall back to the client defaults.
type Request struct {
	Text         string
	VoiceID      string
	ModelID      string
	OutputFormat string
}

// speechRequest is the JSON body of the text-to-speech endpoint.
type speechRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id,omitempty"`
}

// errorResponse is the error body returned by the API.
type errorResponse struct {
	Detail struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"detail"`
}
