package api

import (
	"context"
	"net/http"
)

// Operation classifies a request for authorization purposes.
type Operation string

const (
	OpRead  Operation = "read"
	OpWrite Operation = "write"
)

// Authorizer decides whether a caller may perform an operation on a node
// URI. Implementations receive the identity extracted from the request;
// returning an error denies the request with 403.
type Authorizer interface {
	Authorize(ctx context.Context, caller string, op Operation, uri string) error
}

// AllowAll authorizes every request. It is the default when no
// authorizer is injected.
type AllowAll struct{}

func (AllowAll) Authorize(ctx context.Context, caller string, op Operation, uri string) error {
	return nil
}

// callerID extracts the caller identity from the request. Deployment
// sits behind an authenticating proxy that sets the header; absent that,
// requests run as anonymous.
func callerID(r *http.Request) string {
	if id := r.Header.Get("X-VOSpace-User"); id != "" {
		return id
	}
	return "anonymous"
}
