package services

import (
	"context"
	"errors"
	"fmt"
)

// GenerationParams are the recognized tuning options for a model call.
type GenerationParams struct {
	Temperature float64
	MaxTokens   int
}

// Request is one model invocation: the genre-directive system prompt,
// the assembled context payload, and generation parameters.
type Request struct {
	SystemPrompt string
	Context      string
	Params       GenerationParams
}

// LLMService is the boundary to the text-completion backend.
type LLMService interface {
	// InitModel verifies (or prepares) the model before the first turn.
	InitModel(ctx context.Context, modelName string) error

	// Generate produces the raw narration for a request. Failures are
	// reported as *LLMError so the engine can classify them.
	Generate(ctx context.Context, req Request) (string, error)
}

// ErrorKind classifies backend failures.
type ErrorKind int

const (
	// ErrUnreachable covers connection refusals, DNS failures, and
	// non-success HTTP statuses.
	ErrUnreachable ErrorKind = iota
	// ErrTimeout covers elapsed deadlines and cancelled calls.
	ErrTimeout
	// ErrMalformed covers responses that arrive but cannot be used.
	ErrMalformed
)

func (k ErrorKind) String() string {
	switch k {
	case ErrUnreachable:
		return "unreachable"
	case ErrTimeout:
		return "timeout"
	case ErrMalformed:
		return "malformed response"
	}
	return "unknown"
}

// LLMError wraps a backend failure with its classification.
type LLMError struct {
	Kind ErrorKind
	Err  error
}

func (e *LLMError) Error() string {
	return fmt.Sprintf("llm %s: %v", e.Kind, e.Err)
}

func (e *LLMError) Unwrap() error {
	return e.Err
}

// classifyTransportErr maps a transport-level error to an LLMError.
func classifyTransportErr(err error) *LLMError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &LLMError{Kind: ErrTimeout, Err: err}
	}
	return &LLMError{Kind: ErrUnreachable, Err: err}
}
