package component

import (
	"fmt"
	"net/http"
)

type ClientErrorKind uint8

const (
	// CommunicationFailure means the request never got a response: the transport failed.
	CommunicationFailure ClientErrorKind = iota + 1
	// ResponseError means the server answered with a non-200 status.
	ResponseError
	// ResponseDeserializationFailure means the response body could not be decoded.
	ResponseDeserializationFailure
	// ChannelClosed means the local server stopped before answering.
	ChannelClosed
	// UnexpectedResponse means the server answered with a response that does not match the request.
	UnexpectedResponse
)

func (k ClientErrorKind) String() string {
	switch k {
	case CommunicationFailure:
		return "communication failure"
	case ResponseError:
		return "response error"
	case ResponseDeserializationFailure:
		return "response deserialization failure"
	case ChannelClosed:
		return "channel closed"
	case UnexpectedResponse:
		return "unexpected response"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is, only the kind is compared.
var (
	ErrCommunicationFailure           = &ClientError{Kind: CommunicationFailure}
	ErrResponseError                  = &ClientError{Kind: ResponseError}
	ErrResponseDeserializationFailure = &ClientError{Kind: ResponseDeserializationFailure}
	ErrChannelClosed                  = &ClientError{Kind: ChannelClosed}
	ErrUnexpectedResponse             = &ClientError{Kind: UnexpectedResponse}
)

// ClientError is a failure of the request/response transport itself, as opposed to
// a failure reported by the component that handled the request.
type ClientError struct {
	Kind ClientErrorKind
	// StatusCode is set for ResponseError.
	StatusCode int
	Msg        string
	Err        error
}

func (e *ClientError) Error() string {
	msg := e.Kind.String()
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (%d %s)", e.StatusCode, http.StatusText(e.StatusCode))
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ClientError) Unwrap() error {
	return e.Err
}

func (e *ClientError) Is(target error) bool {
	t, ok := target.(*ClientError)
	return ok && t.Kind == e.Kind
}

func retryableStatus(code int) bool {
	return code >= http.StatusInternalServerError
}
