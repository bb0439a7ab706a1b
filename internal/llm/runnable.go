package llm

import "context"

// Runnable invokes a model with a JSON-serializable payload and returns
// the raw content of the response. Resolvers depend on this interface,
// never on Client directly.
type Runnable interface {
	Invoke(ctx context.Context, payload any) (string, error)
}
