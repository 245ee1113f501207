// Package rewrite implements the post-processing pass: a chat completion
// that turns a raw transcript, plus whatever screen context the caller
// gathered, into the text that gets inserted.
//
// Provider request and response shapes are isolated behind a Dialect,
// so the same Pass talks to OpenAI-compatible endpoints (OpenAI, Groq,
// llama.cpp server) and to Ollama's native API:
//
//	pass, err := rewrite.New(rewrite.Config{
//	    Dialect: "openai",
//	    BaseURL: "https://api.openai.com/v1",
//	    Model:   "gpt-4o-mini",
//	    APIKey:  key,
//	})
//	text, err := pass.Process(ctx, contextText)
//
// A failed pass is not fatal to the dictation: callers fall back to the
// raw transcript.
package rewrite
