package transfer

import "sync"

// nodeLocks provides per-node transfer exclusion. The busy flag on a
// data node is only advisory on the wire; this registry is the actual
// guard: a node held by one job cannot be acquired by another until
// released, so two transfers can never act on the same physical location
// at once.
type nodeLocks struct {
	mu   sync.Mutex
	held map[string]string // node URI -> holding job id
}

func newNodeLocks() *nodeLocks {
	return &nodeLocks{held: make(map[string]string)}
}

// tryAcquire claims the node for the job. Returns true when the claim
// succeeds or the job already holds it.
func (l *nodeLocks) tryAcquire(uri, jobID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	holder, ok := l.held[uri]
	if ok {
		return holder == jobID
	}
	l.held[uri] = jobID
	return true
}

// release drops the node's claim if the job holds it.
func (l *nodeLocks) release(uri, jobID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held[uri] == jobID {
		delete(l.held, uri)
	}
}
