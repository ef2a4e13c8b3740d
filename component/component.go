package component

import "context"

// RequestHandler serves the requests of a component.
type RequestHandler[Req, Resp any] interface {
	Handle(ctx context.Context, req Req) Resp
}

// Client sends requests to a component, wherever it runs.
type Client[Req, Resp any] interface {
	Send(ctx context.Context, req Req) (Resp, error)
}

// Idempotent is implemented by requests that can be sent again without changing the
// outcome. RemoteClient only retries requests reporting true.
type Idempotent interface {
	Idempotent() bool
}

func isIdempotent(req any) bool {
	i, ok := req.(Idempotent)
	return ok && i.Idempotent()
}

// RequestAndResponseSender carries a request together with the channel its response is
// written to. Ctx is the context of the caller, the handler gives up once it is done.
type RequestAndResponseSender[Req, Resp any] struct {
	Ctx     context.Context
	Request Req
	Tx      chan<- Resp
}
