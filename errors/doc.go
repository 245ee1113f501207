// Package errors defines the error taxonomy shared by every wonderwhisper
// component: a structured AppError carrying a machine-readable code, a
// retryable flag and optional details.
package errors
