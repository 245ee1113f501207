// Package logger provides structured logging for wonderwhisper components
// using zerolog.
//
// Every component asks the registry for a named logger and attaches
// structured fields as a map:
//
//	log := logger.Get("chunked")
//	log.Info("chunk uploaded", logger.Fields(logger.FieldSeq, 3))
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "console"
//	  output: "stderr"
package logger
