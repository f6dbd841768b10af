// Package memory provides an in-memory Store implementation.
//
// All state is lost on restart. Intended for tests and for ephemeral
// deployments where the namespace is rebuilt on boot.
package memory

import (
	"context"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/voservices/vospace/pkg/store"
	"github.com/voservices/vospace/pkg/vos"
)

// Store is an in-memory store protected by a single read-write mutex.
// Coarse locking keeps the implementation obviously correct; the control
// plane's request rates do not warrant anything finer.
type Store struct {
	mu sync.RWMutex

	nodes     map[string]*vos.Node
	jobs      map[string]*vos.Job
	endpoints map[string]*vos.Endpoint

	// jobEndpoints maps a job id to its endpoint token.
	jobEndpoints map[string]string

	// results holds standalone result documents keyed jobID + "\x00" + resultID.
	results map[string][]byte

	// rootURI is the namespace root, e.g. "vos://example.org!vospace".
	rootURI string

	// dataRoot is the physical location prefix locations resolve under.
	dataRoot string
}

// New creates an empty in-memory store. rootURI is the namespace root
// URI; dataRoot is the physical prefix ResolveLocation maps into.
func New(rootURI, dataRoot string) *Store {
	return &Store{
		nodes:        make(map[string]*vos.Node),
		jobs:         make(map[string]*vos.Job),
		endpoints:    make(map[string]*vos.Endpoint),
		jobEndpoints: make(map[string]string),
		results:      make(map[string][]byte),
		rootURI:      strings.TrimSuffix(rootURI, "/"),
		dataRoot:     dataRoot,
	}
}

var _ store.Store = (*Store)(nil)

// ============================================================================
// Nodes
// ============================================================================

func (s *Store) GetNode(ctx context.Context, uri string) (*vos.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.nodes[uri]
	if !ok {
		return nil, store.ErrNotFound
	}
	return n.Clone(), nil
}

func (s *Store) PutNode(ctx context.Context, node *vos.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nodes[node.URI] = node.Clone()
	return nil
}

func (s *Store) DeleteNodes(ctx context.Context, uri string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := uri + "/"
	count := 0
	for k := range s.nodes {
		if k == uri || strings.HasPrefix(k, prefix) {
			delete(s.nodes, k)
			count++
		}
	}
	return count, nil
}

func (s *Store) ListChildren(ctx context.Context, uri string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefix := uri + "/"
	var children []string
	for k := range s.nodes {
		if strings.HasPrefix(k, prefix) && !strings.Contains(k[len(prefix):], "/") {
			children = append(children, k)
		}
	}
	sort.Strings(children)
	return children, nil
}

func (s *Store) NodeExists(ctx context.Context, uri string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.nodes[uri]
	return ok, nil
}

func (s *Store) ResolveLocation(uri string) string {
	rel := strings.TrimPrefix(uri, s.rootURI)
	return path.Join(s.dataRoot, rel)
}

// ============================================================================
// Jobs
// ============================================================================

func (s *Store) PutJob(ctx context.Context, job *vos.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs[job.ID] = job.Clone()
	return nil
}

func (s *Store) GetJob(ctx context.Context, id string) (*vos.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return j.Clone(), nil
}

func (s *Store) UpdateJob(ctx context.Context, id string, fn func(*vos.Job) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return store.ErrNotFound
	}
	// Apply fn to a copy so an error leaves the stored job untouched.
	updated := j.Clone()
	if err := fn(updated); err != nil {
		return err
	}
	s.jobs[id] = updated
	return nil
}

func (s *Store) ListJobsByPhase(ctx context.Context, phases ...vos.Phase) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for id, j := range s.jobs {
		for _, p := range phases {
			if j.Phase == p {
				ids = append(ids, id)
				break
			}
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// ============================================================================
// Endpoints
// ============================================================================

func (s *Store) PutEndpoint(ctx context.Context, ep *vos.Endpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *ep
	s.endpoints[ep.Token] = &cp
	s.jobEndpoints[ep.JobID] = ep.Token
	return nil
}

func (s *Store) GetEndpoint(ctx context.Context, token string) (*vos.Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ep, ok := s.endpoints[token]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *ep
	return &cp, nil
}

func (s *Store) CompleteEndpoint(ctx context.Context, token string, fn func(*vos.Endpoint) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ep, ok := s.endpoints[token]
	if !ok {
		return store.ErrNotFound
	}
	if err := fn(ep); err != nil {
		return err
	}
	now := time.Now()
	ep.Completed = &now
	return nil
}

func (s *Store) GetJobEndpoint(ctx context.Context, jobID string) (*vos.Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	token, ok := s.jobEndpoints[jobID]
	if !ok {
		return nil, store.ErrNotFound
	}
	ep, ok := s.endpoints[token]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *ep
	return &cp, nil
}

// ============================================================================
// Results
// ============================================================================

func (s *Store) PutResult(ctx context.Context, jobID, resultID string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results[jobID+"\x00"+resultID] = append([]byte(nil), data...)
	return nil
}

func (s *Store) GetResult(ctx context.Context, jobID, resultID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.results[jobID+"\x00"+resultID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (s *Store) Close() error {
	return nil
}
