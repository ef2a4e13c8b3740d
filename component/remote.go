package component

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/NethermindEth/starknet-batcher/encoder"
	"github.com/NethermindEth/starknet-batcher/utils"
	"github.com/cenkalti/backoff/v4"
	"github.com/sourcegraph/conc"
)

const (
	transportRemote = "remote"
	contentType     = "application/cbor"
	maxBodySize     = 64 << 20
)

var _ Client[any, any] = (*RemoteClient[any, any])(nil)

// RemoteClient sends CBOR encoded requests over HTTP to a RemoteServer.
type RemoteClient[Req, Resp any] struct {
	name       string
	url        string
	client     *http.Client
	maxRetries uint64
	newBackOff func() backoff.BackOff
	log        utils.SimpleLogger
}

func NewRemoteClient[Req, Resp any](name, url string, log utils.SimpleLogger) *RemoteClient[Req, Resp] {
	return &RemoteClient[Req, Resp]{
		name: name,
		url:  url,
		client: &http.Client{
			Timeout: time.Minute,
		},
		maxRetries: 3,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 100 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			b.MaxElapsedTime = 30 * time.Second
			return b
		},
		log: log,
	}
}

func (c *RemoteClient[Req, Resp]) WithHTTPClient(client *http.Client) *RemoteClient[Req, Resp] {
	c.client = client
	return c
}

// WithMaxRetries sets how many times a failed request is retried. Only idempotent
// requests are retried, and only on transport failures and 5xx responses.
func (c *RemoteClient[Req, Resp]) WithMaxRetries(maxRetries uint64) *RemoteClient[Req, Resp] {
	c.maxRetries = maxRetries
	return c
}

func (c *RemoteClient[Req, Resp]) WithBackOff(newBackOff func() backoff.BackOff) *RemoteClient[Req, Resp] {
	c.newBackOff = newBackOff
	return c
}

func (c *RemoteClient[Req, Resp]) Send(ctx context.Context, req Req) (Resp, error) {
	requestCounter.WithLabelValues(c.name, transportRemote).Inc()
	defer func(start time.Time) {
		requestLatency.WithLabelValues(c.name, transportRemote).Observe(time.Since(start).Seconds())
	}(time.Now())

	resp, err := c.send(ctx, req)
	if err != nil {
		observeFailure(c.name, err)
	}
	return resp, err
}

func (c *RemoteClient[Req, Resp]) send(ctx context.Context, req Req) (Resp, error) {
	var resp Resp

	body, err := encoder.Marshal(req)
	if err != nil {
		return resp, &ClientError{Kind: CommunicationFailure, Msg: "encode request", Err: err}
	}

	attempt := func() error {
		return c.attempt(ctx, body, &resp)
	}
	notify := func(err error, wait time.Duration) {
		retryCounter.WithLabelValues(c.name).Inc()
		c.log.Debugw("Retrying component request", "component", c.name, "err", err, "wait", wait)
	}

	var retries uint64
	if isIdempotent(req) {
		retries = c.maxRetries
	}
	b := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), retries), ctx)
	if err = backoff.RetryNotify(attempt, b, notify); err != nil {
		var clientErr *ClientError
		if !errors.As(err, &clientErr) && ctx.Err() == nil {
			err = &ClientError{Kind: CommunicationFailure, Err: err}
		}
		return resp, err
	}
	return resp, nil
}

func (c *RemoteClient[Req, Resp]) attempt(ctx context.Context, body []byte, resp *Resp) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(&ClientError{Kind: CommunicationFailure, Err: err})
	}
	httpReq.Header.Set("Content-Type", contentType)

	res, err := c.client.Do(httpReq)
	if err != nil {
		return &ClientError{Kind: CommunicationFailure, Err: err}
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxBodySize))
	if err != nil {
		return &ClientError{Kind: CommunicationFailure, Msg: "read response", Err: err}
	}

	if res.StatusCode != http.StatusOK {
		clientErr := &ClientError{Kind: ResponseError, StatusCode: res.StatusCode, Msg: string(bytes.TrimSpace(data))}
		if retryableStatus(res.StatusCode) {
			return clientErr
		}
		return backoff.Permanent(clientErr)
	}

	if err = encoder.Unmarshal(data, resp); err != nil {
		return backoff.Permanent(&ClientError{Kind: ResponseDeserializationFailure, Err: err})
	}
	return nil
}

// RemoteServer exposes a component over HTTP by forwarding decoded requests to a local client.
type RemoteServer[Req, Resp any] struct {
	name  string
	local Client[Req, Resp]
	log   utils.SimpleLogger
}

func NewRemoteServer[Req, Resp any](name string, local Client[Req, Resp], log utils.SimpleLogger) *RemoteServer[Req, Resp] {
	return &RemoteServer[Req, Resp]{
		name:  name,
		local: local,
		log:   log,
	}
}

func (s *RemoteServer[Req, Resp]) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req Req
	if err := encoder.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("decode request: %v", err), http.StatusBadRequest)
		return
	}

	resp, err := s.local.Send(r.Context(), req)
	if err != nil {
		s.log.Warnw("Failed to forward component request", "component", s.name, "err", err)
		status := http.StatusInternalServerError
		if errors.Is(err, ErrChannelClosed) {
			status = http.StatusServiceUnavailable
		}
		http.Error(w, err.Error(), status)
		return
	}

	body, err := encoder.Marshal(resp)
	if err != nil {
		s.log.Errorw("Failed to encode component response", "component", s.name, "err", err)
		http.Error(w, "encode response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	if _, err = w.Write(body); err != nil {
		s.log.Debugw("Failed to write component response", "component", s.name, "err", err)
	}
}

// Serve runs an HTTP server for s on listener until ctx is cancelled.
func (s *RemoteServer[Req, Resp]) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Addr:    listener.Addr().String(),
		Handler: s,
		// ReadTimeout also sets ReadHeaderTimeout and IdleTimeout.
		ReadTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	var wg conc.WaitGroup
	defer wg.Wait()
	wg.Go(func() {
		if err := srv.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	})

	select {
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}
