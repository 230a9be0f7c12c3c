package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

type ErrUnsupportedProvider struct {
	Provider string
}

func (e ErrUnsupportedProvider) Error() string {
	return fmt.Sprintf("unsupported LLM provider: %s", e.Provider)
}

// Kind classifies a failed remote call by how the caller should recover.
type Kind string

const (
	KindAuth        Kind = "auth"
	KindRateLimited Kind = "rate_limited"
	KindBadRequest  Kind = "bad_request"
	KindNetwork     Kind = "network"
	KindUpstream    Kind = "upstream"
)

type RemoteError struct {
	Kind   Kind
	Status int
	Detail string
	Err    error
}

func (e *RemoteError) Error() string {
	switch {
	case e.Status != 0 && e.Detail != "":
		return fmt.Sprintf("LLM request failed (%s, %d): %s", e.Kind, e.Status, e.Detail)
	case e.Status != 0:
		return fmt.Sprintf("LLM request failed (%s, %d)", e.Kind, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("LLM request failed (%s): %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("LLM request failed (%s)", e.Kind)
	}
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// Retryable reports whether another attempt could succeed without the user
// changing anything.
func (e *RemoteError) Retryable() bool {
	return e.Kind == KindNetwork || e.Kind == KindUpstream
}

// ClassifyStatus maps an HTTP status from the provider onto a Kind.
func ClassifyStatus(status int, detail string) *RemoteError {
	kind := KindUpstream
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = KindAuth
	case http.StatusTooManyRequests:
		kind = KindRateLimited
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		kind = KindBadRequest
	}
	return &RemoteError{Kind: kind, Status: status, Detail: detail}
}

// Classify turns any error from a provider into a RemoteError. Errors that
// never reached a response count as network failures.
func Classify(err error) *RemoteError {
	if err == nil {
		return nil
	}
	var remote *RemoteError
	if errors.As(err, &remote) {
		return remote
	}
	return &RemoteError{Kind: KindNetwork, Err: err}
}

func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return Classify(err).Kind
}

func networkError(err error) *RemoteError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &RemoteError{Kind: KindNetwork, Detail: "request timed out", Err: err}
	}
	return &RemoteError{Kind: KindNetwork, Err: err}
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
