package ai

import (
	"context"
	"errors"
	"fmt"
)

// Turn is a single exchange entry passed to the model as context.
type Turn struct {
	Role    string `json:"role"` // "interviewer" or "candidate"
	Content string `json:"content"`
}

// Request is a single generation request. SystemPrompt frames the task,
// History carries prior conversation turns and Instruction is the concrete
// task for this call.
type Request struct {
	SystemPrompt string
	History      []Turn
	Instruction  string
}

// Gateway is a stateless text-generation service. GenerateJSON constrains
// the model to return a JSON document; schema is a JSON Schema the caller
// may use to validate the payload.
type Gateway interface {
	GenerateText(ctx context.Context, req *Request) (string, error)
	GenerateJSON(ctx context.Context, req *Request, schema []byte) (string, error)
}

var (
	// ErrTimeout indicates the model call did not return in time.
	ErrTimeout = errors.New("gateway timeout")
	// ErrGateway indicates the model call failed.
	ErrGateway = errors.New("gateway error")
)

// WrapErr classifies an underlying transport error into the gateway taxonomy.
func WrapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrGateway, err)
}

// IsRecoverable reports whether the error is a gateway-side failure that
// callers may retry or degrade on.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrGateway)
}
