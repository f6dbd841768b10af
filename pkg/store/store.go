// Package store defines the persistence interface for nodes, jobs, and
// endpoints, together with the sentinel errors all implementations share.
//
// Two implementations exist:
//   - memory: an in-memory store for tests and ephemeral deployments
//   - badger: an embedded BadgerDB store for persistent deployments
package store

import (
	"context"
	"errors"

	"github.com/voservices/vospace/pkg/vos"
)

// ErrNotFound is returned when a node, job, endpoint, or result does not
// exist. Absence is always reported through this sentinel, never through
// a nil result.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence boundary of the service.
//
// All operations are synchronous. Implementations must be safe for
// concurrent use; the calling services rely on the store for durability,
// not for domain-level mutual exclusion.
type Store interface {
	// ========================================================================
	// Nodes
	// ========================================================================

	// GetNode returns the node with the given URI, or ErrNotFound.
	// Container children are not included; use ListChildren.
	GetNode(ctx context.Context, uri string) (*vos.Node, error)

	// PutNode creates or replaces a node record.
	PutNode(ctx context.Context, node *vos.Node) error

	// DeleteNodes removes the node with the given URI and every node
	// beneath it, returning the number of records removed.
	DeleteNodes(ctx context.Context, uri string) (int, error)

	// ListChildren returns the URIs of the immediate children of the
	// given URI, in lexical order. A leaf node has no children; absence
	// of the node itself is not checked here.
	ListChildren(ctx context.Context, uri string) ([]string, error)

	// NodeExists reports whether a node record exists for the URI.
	NodeExists(ctx context.Context, uri string) (bool, error)

	// ResolveLocation maps a node URI to the physical location the data
	// backend reads and writes.
	ResolveLocation(uri string) string

	// ========================================================================
	// Jobs
	// ========================================================================

	// PutJob creates or replaces a job record.
	PutJob(ctx context.Context, job *vos.Job) error

	// GetJob returns the job with the given id, or ErrNotFound.
	GetJob(ctx context.Context, id string) (*vos.Job, error)

	// UpdateJob applies fn to the stored job under the store's write
	// exclusion and persists the result. Returns ErrNotFound if the job
	// does not exist; any error from fn aborts the update.
	UpdateJob(ctx context.Context, id string, fn func(*vos.Job) error) error

	// ListJobsByPhase returns the ids of all jobs currently in one of
	// the given phases.
	ListJobsByPhase(ctx context.Context, phases ...vos.Phase) ([]string, error)

	// ========================================================================
	// Endpoints
	// ========================================================================

	// PutEndpoint records a newly allocated endpoint.
	PutEndpoint(ctx context.Context, ep *vos.Endpoint) error

	// GetEndpoint returns the endpoint with the given token, or
	// ErrNotFound.
	GetEndpoint(ctx context.Context, token string) (*vos.Endpoint, error)

	// CompleteEndpoint marks the endpoint consumed. It must be atomic:
	// of N concurrent callers for the same token, exactly one returns
	// nil; the rest receive errors from fn mirroring the live state.
	CompleteEndpoint(ctx context.Context, token string, fn func(*vos.Endpoint) error) error

	// GetJobEndpoint returns the endpoint owned by the given job, or
	// ErrNotFound if the job has none.
	GetJobEndpoint(ctx context.Context, jobID string) (*vos.Endpoint, error)

	// ========================================================================
	// Results
	// ========================================================================

	// PutResult stores a standalone result document (e.g. serialized
	// transfer details) under a job id and result id.
	PutResult(ctx context.Context, jobID, resultID string, data []byte) error

	// GetResult returns a stored result document, or ErrNotFound.
	GetResult(ctx context.Context, jobID, resultID string) ([]byte, error)

	// Close releases the store's resources.
	Close() error
}
