package batcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/NethermindEth/starknet-batcher/component"
	"github.com/NethermindEth/starknet-batcher/utils"
)

const ComponentName = "batcher"

type RequestKind uint8

const (
	BuildProposalRequest RequestKind = iota + 1
	GetStreamContentRequest
	DecisionReachedRequest
)

func (k RequestKind) String() string {
	switch k {
	case BuildProposalRequest:
		return "build_proposal"
	case GetStreamContentRequest:
		return "get_stream_content"
	case DecisionReachedRequest:
		return "decision_reached"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// BatcherRequest carries exactly one of the inputs, the one matching Kind.
type BatcherRequest struct {
	Kind             RequestKind            `cbor:"1,keyasint"`
	BuildProposal    *BuildProposalInput    `cbor:"2,keyasint,omitempty"`
	GetStreamContent *GetStreamContentInput `cbor:"3,keyasint,omitempty"`
	DecisionReached  *DecisionReachedInput  `cbor:"4,keyasint,omitempty"`
}

// BatcherResponse answers a BatcherRequest of the same Kind. Err is set when the
// batcher rejected the request.
type BatcherResponse struct {
	Kind          RequestKind    `cbor:"1,keyasint"`
	Err           *BatcherError  `cbor:"2,keyasint,omitempty"`
	StreamContent *StreamContent `cbor:"3,keyasint,omitempty"`
}

var _ component.Idempotent = BatcherRequest{}

// Idempotent reports whether req can be resent safely. Stream reads are addressed by
// offset, building and deciding are not repeatable.
func (r BatcherRequest) Idempotent() bool {
	return r.Kind == GetStreamContentRequest
}

var _ component.RequestHandler[BatcherRequest, BatcherResponse] = (*Batcher)(nil)

// Handle dispatches req to the matching batcher operation.
func (b *Batcher) Handle(ctx context.Context, req BatcherRequest) BatcherResponse {
	resp := BatcherResponse{Kind: req.Kind}

	var err error
	switch req.Kind {
	case BuildProposalRequest:
		if req.BuildProposal == nil {
			err = newBatcherError(InvalidInput, "missing build proposal input")
			break
		}
		err = b.BuildProposal(ctx, req.BuildProposal)
	case GetStreamContentRequest:
		if req.GetStreamContent == nil {
			err = newBatcherError(InvalidInput, "missing get stream content input")
			break
		}
		var content StreamContent
		if content, err = b.GetStreamContent(ctx, req.GetStreamContent); err == nil {
			resp.StreamContent = &content
		}
	case DecisionReachedRequest:
		if req.DecisionReached == nil {
			err = newBatcherError(InvalidInput, "missing decision reached input")
			break
		}
		err = b.DecisionReached(ctx, req.DecisionReached)
	default:
		err = newBatcherError(InvalidInput, "unknown request kind %d", uint8(req.Kind))
	}

	outcome := "ok"
	if err != nil {
		resp.Err = asBatcherError(err)
		outcome = resp.Err.Kind.String()
	}
	requestsByKind.WithLabelValues(req.Kind.String(), outcome).Inc()
	return resp
}

func asBatcherError(err error) *BatcherError {
	var batcherErr *BatcherError
	if errors.As(err, &batcherErr) {
		return batcherErr
	}
	return &BatcherError{Kind: Internal, Msg: err.Error()}
}

//go:generate mockgen -destination=../mocks/mock_batcher_client.go -package=mocks github.com/NethermindEth/starknet-batcher/batcher BatcherClient
type BatcherClient interface {
	BuildProposal(ctx context.Context, input *BuildProposalInput) error
	GetStreamContent(ctx context.Context, input *GetStreamContentInput) (StreamContent, error)
	DecisionReached(ctx context.Context, input *DecisionReachedInput) error
}

// ClientError is returned by BatcherClient implementations. Exactly one of Client and
// Batcher is set: Client when the request did not make it through, Batcher when the
// batcher rejected it.
type ClientError struct {
	Client  *component.ClientError
	Batcher *BatcherError
}

func (e *ClientError) Error() string {
	if e.Batcher != nil {
		return "batcher: " + e.Batcher.Error()
	}
	return "batcher client: " + e.Client.Error()
}

func (e *ClientError) Unwrap() error {
	if e.Batcher != nil {
		return e.Batcher
	}
	return e.Client
}

// IsTransport reports whether err is a transport failure rather than a batcher rejection.
func IsTransport(err error) bool {
	var clientErr *component.ClientError
	return errors.As(err, &clientErr)
}

var (
	_ BatcherClient = (*LocalBatcherClient)(nil)
	_ BatcherClient = (*RemoteBatcherClient)(nil)
)

// LocalBatcherClient reaches a batcher running in the same process.
type LocalBatcherClient struct {
	sender
}

func NewLocalBatcherClient(client *component.LocalClient[BatcherRequest, BatcherResponse]) *LocalBatcherClient {
	return &LocalBatcherClient{sender{client: client}}
}

// RemoteBatcherClient reaches a batcher over HTTP.
type RemoteBatcherClient struct {
	sender
}

func NewRemoteBatcherClient(url string, log utils.SimpleLogger) *RemoteBatcherClient {
	return NewRemoteBatcherClientFrom(component.NewRemoteClient[BatcherRequest, BatcherResponse](ComponentName, url, log))
}

func NewRemoteBatcherClientFrom(client *component.RemoteClient[BatcherRequest, BatcherResponse]) *RemoteBatcherClient {
	return &RemoteBatcherClient{sender{client: client}}
}

// sender implements BatcherClient on top of any component client, so that callers
// see the same behaviour whatever the transport.
type sender struct {
	client component.Client[BatcherRequest, BatcherResponse]
}

func (s sender) BuildProposal(ctx context.Context, input *BuildProposalInput) error {
	_, err := s.send(ctx, BatcherRequest{Kind: BuildProposalRequest, BuildProposal: input})
	return err
}

func (s sender) GetStreamContent(ctx context.Context, input *GetStreamContentInput) (StreamContent, error) {
	resp, err := s.send(ctx, BatcherRequest{Kind: GetStreamContentRequest, GetStreamContent: input})
	if err != nil {
		return StreamContent{}, err
	}
	if resp.StreamContent == nil {
		return StreamContent{}, &ClientError{Client: &component.ClientError{
			Kind: component.UnexpectedResponse,
			Msg:  "stream content response without content",
		}}
	}
	return *resp.StreamContent, nil
}

func (s sender) DecisionReached(ctx context.Context, input *DecisionReachedInput) error {
	_, err := s.send(ctx, BatcherRequest{Kind: DecisionReachedRequest, DecisionReached: input})
	return err
}

func (s sender) send(ctx context.Context, req BatcherRequest) (BatcherResponse, error) {
	resp, err := s.client.Send(ctx, req)
	if err != nil {
		var clientErr *component.ClientError
		if !errors.As(err, &clientErr) {
			clientErr = &component.ClientError{Kind: component.CommunicationFailure, Err: err}
		}
		return BatcherResponse{}, &ClientError{Client: clientErr}
	}
	if resp.Kind != req.Kind {
		return BatcherResponse{}, &ClientError{Client: &component.ClientError{
			Kind: component.UnexpectedResponse,
			Msg:  fmt.Sprintf("sent %s, received %s", req.Kind, resp.Kind),
		}}
	}
	if resp.Err != nil {
		return BatcherResponse{}, &ClientError{Batcher: resp.Err}
	}
	return resp, nil
}
