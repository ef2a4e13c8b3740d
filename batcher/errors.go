package batcher

import "fmt"

type BatcherErrorKind uint8

const (
	HeightInProgress BatcherErrorKind = iota + 1
	ProposalAlreadyExists
	ProposalNotFound
	StreamExhausted
	ProposalFailed
	InvalidInput
	DecisionOnUnfinishedProposal
	Internal
)

func (k BatcherErrorKind) String() string {
	switch k {
	case HeightInProgress:
		return "height in progress"
	case ProposalAlreadyExists:
		return "proposal already exists"
	case ProposalNotFound:
		return "proposal not found"
	case StreamExhausted:
		return "stream exhausted"
	case ProposalFailed:
		return "proposal failed"
	case InvalidInput:
		return "invalid input"
	case DecisionOnUnfinishedProposal:
		return "decision on unfinished proposal"
	case Internal:
		return "internal error"
	default:
		return fmt.Sprintf("unknown batcher error (%d)", uint8(k))
	}
}

// Sentinels for errors.Is, only the kind is compared.
var (
	ErrHeightInProgress             = &BatcherError{Kind: HeightInProgress}
	ErrProposalAlreadyExists        = &BatcherError{Kind: ProposalAlreadyExists}
	ErrProposalNotFound             = &BatcherError{Kind: ProposalNotFound}
	ErrStreamExhausted              = &BatcherError{Kind: StreamExhausted}
	ErrProposalFailed               = &BatcherError{Kind: ProposalFailed}
	ErrInvalidInput                 = &BatcherError{Kind: InvalidInput}
	ErrDecisionOnUnfinishedProposal = &BatcherError{Kind: DecisionOnUnfinishedProposal}
	ErrInternal                     = &BatcherError{Kind: Internal}
)

// BatcherError is a failure reported by the batcher itself. It travels on the wire
// inside a BatcherResponse.
type BatcherError struct {
	Kind BatcherErrorKind `json:"kind" cbor:"1,keyasint"`
	Msg  string           `json:"msg,omitempty" cbor:"2,keyasint,omitempty"`
}

func newBatcherError(kind BatcherErrorKind, format string, args ...any) *BatcherError {
	return &BatcherError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func (e *BatcherError) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Msg
}

func (e *BatcherError) Is(target error) bool {
	t, ok := target.(*BatcherError)
	return ok && t.Kind == e.Kind
}
