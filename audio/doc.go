// Package audio holds the capture-side data types: sequence-numbered PCM
// chunks, the in-memory recording a session accumulates, WAV encoding of
// recordings and upload chunks, and a WAV file source that replays a
// recording as if it came from a microphone.
//
// All audio is PCM16 little-endian, mono, 16 kHz.
package audio
