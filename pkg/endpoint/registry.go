// Package endpoint implements the registry of ephemeral data endpoints.
//
// An endpoint is minted when a transfer job needs a server-mediated byte
// exchange. It is valid while it exists, has not been consumed, and is
// younger than the configured TTL. Validity is computed from the stored
// timestamps at every check; nothing is cached, so a clock-skewed cache
// can never resurrect an expired endpoint. Consumption is single use:
// of N concurrent consumers, exactly one succeeds.
package endpoint

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/voservices/vospace/internal/logger"
	"github.com/voservices/vospace/pkg/store"
	"github.com/voservices/vospace/pkg/vos"
)

// DefaultTTL is the endpoint lifetime used when the configuration
// supplies none.
const DefaultTTL = time.Hour

// Registry mints and validates endpoints.
type Registry struct {
	store store.Store
	ttl   time.Duration

	// now is stubbed in tests
	now func() time.Time
}

// NewRegistry creates a registry with the given endpoint TTL. A
// non-positive TTL falls back to DefaultTTL.
func NewRegistry(st store.Store, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Registry{store: st, ttl: ttl, now: time.Now}
}

// TTL returns the configured endpoint lifetime.
func (r *Registry) TTL() time.Duration {
	return r.ttl
}

// NewToken returns a fresh unguessable endpoint token.
func NewToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Allocate mints an endpoint for the job, bound to the target node and
// its resolved physical location.
func (r *Registry) Allocate(ctx context.Context, jobID, target, location string) (*vos.Endpoint, error) {
	ep := &vos.Endpoint{
		Token:    NewToken(),
		JobID:    jobID,
		Target:   target,
		Location: location,
		Created:  r.now(),
	}
	if err := r.store.PutEndpoint(ctx, ep); err != nil {
		return nil, vos.NewError(vos.FaultInternal, err.Error(), target)
	}
	logger.Debug("Allocated endpoint %s for job %s", ep.Token, jobID)
	return ep, nil
}

// Validate checks an endpoint without consuming it and returns the
// record when it is live. Returns NotFound, AlreadyUsed, or Expired
// otherwise.
func (r *Registry) Validate(ctx context.Context, token string) (*vos.Endpoint, error) {
	ep, err := r.store.GetEndpoint(ctx, token)
	if err == store.ErrNotFound {
		return nil, vos.NewError(vos.FaultNotFound, "no endpoint with the given token", "")
	}
	if err != nil {
		return nil, vos.NewError(vos.FaultInternal, err.Error(), "")
	}
	if err := r.check(ep); err != nil {
		return nil, err
	}
	return ep, nil
}

// Consume atomically validates and consumes the endpoint, returning the
// record for the caller to act on. Exactly one of any set of concurrent
// callers succeeds; the rest observe AlreadyUsed (or Expired).
func (r *Registry) Consume(ctx context.Context, token string) (*vos.Endpoint, error) {
	var consumed *vos.Endpoint
	err := r.store.CompleteEndpoint(ctx, token, func(ep *vos.Endpoint) error {
		if err := r.check(ep); err != nil {
			return err
		}
		cp := *ep
		consumed = &cp
		return nil
	})
	if err == store.ErrNotFound {
		return nil, vos.NewError(vos.FaultNotFound, "no endpoint with the given token", "")
	}
	if err != nil {
		if _, ok := err.(*vos.Error); ok {
			return nil, err
		}
		return nil, vos.NewError(vos.FaultInternal, err.Error(), "")
	}
	logger.Debug("Consumed endpoint %s (job %s)", token, consumed.JobID)
	return consumed, nil
}

// ForJob returns the endpoint owned by the given job.
func (r *Registry) ForJob(ctx context.Context, jobID string) (*vos.Endpoint, error) {
	ep, err := r.store.GetJobEndpoint(ctx, jobID)
	if err == store.ErrNotFound {
		return nil, vos.NewError(vos.FaultNotFound, "no endpoint for job "+jobID, "")
	}
	if err != nil {
		return nil, vos.NewError(vos.FaultInternal, err.Error(), "")
	}
	return ep, nil
}

// Expired reports whether the endpoint is past its TTL without having
// been consumed.
func (r *Registry) Expired(ep *vos.Endpoint) bool {
	return ep.Completed == nil && r.now().Sub(ep.Created) > r.ttl
}

func (r *Registry) check(ep *vos.Endpoint) error {
	if ep.Completed != nil {
		return vos.NewError(vos.FaultAlreadyUsed, "the endpoint has already been used", ep.Target)
	}
	if r.now().Sub(ep.Created) > r.ttl {
		return vos.NewError(vos.FaultExpired, "the endpoint has expired", ep.Target)
	}
	return nil
}
