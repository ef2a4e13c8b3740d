package component

import (
	"context"
	"time"

	"github.com/NethermindEth/starknet-batcher/utils"
	"github.com/sourcegraph/conc/pool"
)

const transportLocal = "local"

type localChannel[Req, Resp any] struct {
	requests chan RequestAndResponseSender[Req, Resp]
	// done is closed once the server stopped and every accepted request was answered.
	done chan struct{}
}

// NewLocalComponent wires a LocalClient to a LocalServer that serves its requests with handler.
// Up to maxConcurrency requests are handled at the same time.
func NewLocalComponent[Req, Resp any](
	name string,
	handler RequestHandler[Req, Resp],
	maxConcurrency int,
	log utils.SimpleLogger,
) (*LocalClient[Req, Resp], *LocalServer[Req, Resp]) {
	channel := &localChannel[Req, Resp]{
		requests: make(chan RequestAndResponseSender[Req, Resp], maxConcurrency),
		done:     make(chan struct{}),
	}
	return &LocalClient[Req, Resp]{
			name:    name,
			channel: channel,
		}, &LocalServer[Req, Resp]{
			name:           name,
			channel:        channel,
			handler:        handler,
			maxConcurrency: maxConcurrency,
			log:            log,
		}
}

var _ Client[any, any] = (*LocalClient[any, any])(nil)

// LocalClient sends requests to a component running in the same process.
type LocalClient[Req, Resp any] struct {
	name    string
	channel *localChannel[Req, Resp]
}

func (c *LocalClient[Req, Resp]) Send(ctx context.Context, req Req) (Resp, error) {
	requestCounter.WithLabelValues(c.name, transportLocal).Inc()
	defer func(start time.Time) {
		requestLatency.WithLabelValues(c.name, transportLocal).Observe(time.Since(start).Seconds())
	}(time.Now())

	resp, err := c.send(ctx, req)
	if err != nil {
		observeFailure(c.name, err)
	}
	return resp, err
}

func (c *LocalClient[Req, Resp]) send(ctx context.Context, req Req) (Resp, error) {
	var zero Resp
	tx := make(chan Resp, 1)

	select {
	case c.channel.requests <- RequestAndResponseSender[Req, Resp]{Ctx: ctx, Request: req, Tx: tx}:
	case <-c.channel.done:
		return zero, &ClientError{Kind: ChannelClosed, Msg: c.name}
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	select {
	case resp := <-tx:
		return resp, nil
	case <-c.channel.done:
		// the response may have been written right before the server stopped
		select {
		case resp := <-tx:
			return resp, nil
		default:
			return zero, &ClientError{Kind: ChannelClosed, Msg: c.name}
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// LocalServer drains the requests of its LocalClient and answers them with its handler.
type LocalServer[Req, Resp any] struct {
	name           string
	channel        *localChannel[Req, Resp]
	handler        RequestHandler[Req, Resp]
	maxConcurrency int
	log            utils.SimpleLogger
}

// Run serves requests until ctx is cancelled. Requests still queued when it returns are
// answered with ChannelClosed on the client side.
func (s *LocalServer[Req, Resp]) Run(ctx context.Context) error {
	workers := pool.New().WithMaxGoroutines(max(s.maxConcurrency, 1))
	defer close(s.channel.done)
	defer workers.Wait()

	s.log.Debugw("Local component server started", "component", s.name)
	for {
		select {
		case <-ctx.Done():
			s.log.Debugw("Local component server stopped", "component", s.name)
			return nil
		case req := <-s.channel.requests:
			workers.Go(func() {
				reqCtx, cancel := requestContext(ctx, req.Ctx)
				defer cancel()
				req.Tx <- s.handler.Handle(reqCtx, req.Request)
			})
		}
	}
}

// requestContext is done as soon as either the server or the caller is done.
func requestContext(serverCtx, callerCtx context.Context) (context.Context, context.CancelFunc) {
	if callerCtx == nil {
		return context.WithCancel(serverCtx)
	}
	ctx, cancel := context.WithCancel(callerCtx)
	stop := context.AfterFunc(serverCtx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
