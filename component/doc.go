// Package component manages the lifecycle of the long-lived pieces a
// wonderwhisper process opens: telemetry exporters, the shared cache tier
// and the active transcription backend.
//
// Components start in registration order and stop in reverse. Each one
// reports its health, and may describe itself for the startup summary.
package component
