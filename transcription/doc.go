// Package transcription defines the speech-to-text backend contract.
//
// Every backend transcribes a finished recording file. Backends whose Kind
// streams additionally open a Stream while recording is in progress, so
// connection setup overlaps with speech:
//
//   - KindFileUpload: one multipart request per file (transcription/upload)
//   - KindRealtimeSocket: bidirectional websocket session (transcription/realtime)
//   - KindChunkedStream: fixed windows uploaded concurrently and merged (transcription/chunked)
//
// Backends are built from a Registry of factories keyed by backend id.
//
//	reg := transcription.NewRegistry()
//	reg.Register("openai", upload.Factory("openai", upload.Config{}))
//	backend, err := reg.Create("openai", transcription.Settings{APIKey: key})
package transcription
