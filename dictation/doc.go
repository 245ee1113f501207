// Package dictation implements the orchestrator that turns one recording
// into inserted text.
//
// An Orchestrator runs a single session at a time through a fixed set of
// states:
//
//	Idle -> Recording -> Transcribing -> Processing -> Inserting -> Idle
//
// Any failure moves it to Error, which the next Start clears. A user
// cancel is silent and returns to Idle. Streaming backends are opened as
// soon as recording starts so connection setup overlaps with speech; when
// a stream yields nothing the saved recording is transcribed as a file.
//
// Audio capture, text insertion, history storage, screen context and the
// rewrite pass are collaborators supplied by the caller.
package dictation
