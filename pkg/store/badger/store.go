// Package badger provides a Store implementation backed by BadgerDB, a
// fast embedded key-value store.
//
// Suitable for production deployments where the namespace and job history
// must survive restarts. See keys.go for the key schema.
package badger

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/voservices/vospace/pkg/store"
	"github.com/voservices/vospace/pkg/vos"
)

// Store implements store.Store on BadgerDB.
//
// Thread safety: BadgerDB transactions give point-operation atomicity, but
// multi-key operations (phase index maintenance, read-modify-write job
// updates) are additionally serialized by a single read-write mutex. The
// coarse lock is simple and correct; control-plane request rates do not
// warrant finer locking.
type Store struct {
	// mu serializes multi-key mutations
	mu sync.RWMutex

	// db is the BadgerDB handle (thread-safe, uses internal MVCC)
	db *badger.DB

	// rootURI is the namespace root, e.g. "vos://example.org!vospace"
	rootURI string

	// dataRoot is the physical location prefix locations resolve under
	dataRoot string
}

// New opens (creating if necessary) a BadgerDB store at dir.
func New(dir, rootURI, dataRoot string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store at %s: %w", dir, err)
	}

	return &Store{
		db:       db,
		rootURI:  strings.TrimSuffix(rootURI, "/"),
		dataRoot: dataRoot,
	}, nil
}

var _ store.Store = (*Store)(nil)

// Close flushes and closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ============================================================================
// Nodes
// ============================================================================

func (s *Store) GetNode(ctx context.Context, uri string) (*vos.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var node *vos.Node
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyNode(uri))
		if err == badger.ErrKeyNotFound {
			return store.ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			node, err = decodeNode(val)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return node, nil
}

func (s *Store) PutNode(ctx context.Context, node *vos.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := encodeNode(node)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(keyNode(node.URI), data)
	})
}

func (s *Store) DeleteNodes(ctx context.Context, uri string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Collect first, then delete: deleting while iterating invalidates
	// the iterator's view.
	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		if _, err := txn.Get(keyNode(uri)); err == nil {
			keys = append(keys, keyNode(uri))
		}

		it := txn.NewIterator(badger.IteratorOptions{Prefix: keyNodeSubtree(uri)})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return 0, err
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, err
	}
	return len(keys), nil
}

func (s *Store) ListChildren(ctx context.Context, uri string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefix := keyNodeSubtree(uri)
	var children []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.IteratorOptions{Prefix: prefix}
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			rest := key[len(prefix):]
			// Skip grandchildren: the subtree scan visits everything
			// below uri, but only single-segment suffixes are children.
			if strings.Contains(rest, "/") {
				continue
			}
			children = append(children, key[len(prefixNode):])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(children)
	return children, nil
}

func (s *Store) NodeExists(ctx context.Context, uri string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	exists := false
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(keyNode(uri))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		exists = true
		return nil
	})
	return exists, err
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

	data, err := encodeJob(job)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		// Overwrites must drop the previous phase index entry.
		item, err := txn.Get(keyJob(job.ID))
		switch {
		case err == nil:
			var old *vos.Job
			err = item.Value(func(val []byte) error {
				var derr error
				old, derr = decodeJob(val)
				return derr
			})
			if err != nil {
				return err
			}
			if old.Phase != job.Phase {
				if err := txn.Delete(keyPhase(string(old.Phase), job.ID)); err != nil {
					return err
				}
			}
		case err != badger.ErrKeyNotFound:
			return err
		}

		if err := txn.Set(keyJob(job.ID), data); err != nil {
			return err
		}
		return txn.Set(keyPhase(string(job.Phase), job.ID), nil)
	})
}

func (s *Store) GetJob(ctx context.Context, id string) (*vos.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getJob(id)
}

func (s *Store) getJob(id string) (*vos.Job, error) {
	var job *vos.Job
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyJob(id))
		if err == badger.ErrKeyNotFound {
			return store.ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			job, err = decodeJob(val)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (s *Store) UpdateJob(ctx context.Context, id string, fn func(*vos.Job) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := s.getJob(id)
	if err != nil {
		return err
	}

	oldPhase := job.Phase
	if err := fn(job); err != nil {
		return err
	}

	data, err := encodeJob(job)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(keyJob(id), data); err != nil {
			return err
		}
		if job.Phase != oldPhase {
			if err := txn.Delete(keyPhase(string(oldPhase), id)); err != nil {
				return err
			}
			return txn.Set(keyPhase(string(job.Phase), id), nil)
		}
		return nil
	})
}

func (s *Store) ListJobsByPhase(ctx context.Context, phases ...vos.Phase) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		for _, phase := range phases {
			prefix := keyPhasePrefix(string(phase))
			it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
			for it.Rewind(); it.Valid(); it.Next() {
				key := string(it.Item().Key())
				ids = append(ids, key[len(prefix):])
			}
			it.Close()
		}
		return nil
	})
	if err != nil {
		return nil, err
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

	data, err := encodeEndpoint(ep)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(keyEndpoint(ep.Token), data); err != nil {
			return err
		}
		return txn.Set(keyJobEndpoint(ep.JobID), []byte(ep.Token))
	})
}

func (s *Store) GetEndpoint(ctx context.Context, token string) (*vos.Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getEndpoint(token)
}

func (s *Store) getEndpoint(token string) (*vos.Endpoint, error) {
	var ep *vos.Endpoint
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyEndpoint(token))
		if err == badger.ErrKeyNotFound {
			return store.ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			ep, err = decodeEndpoint(val)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return ep, nil
}

func (s *Store) CompleteEndpoint(ctx context.Context, token string, fn func(*vos.Endpoint) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ep, err := s.getEndpoint(token)
	if err != nil {
		return err
	}
	if err := fn(ep); err != nil {
		return err
	}

	now := time.Now()
	ep.Completed = &now
	data, err := encodeEndpoint(ep)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(keyEndpoint(token), data)
	})
}

func (s *Store) GetJobEndpoint(ctx context.Context, jobID string) (*vos.Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var token string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyJobEndpoint(jobID))
		if err == badger.ErrKeyNotFound {
			return store.ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			token = string(val)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return s.getEndpoint(token)
}

// ============================================================================
// Results
// ============================================================================

func (s *Store) PutResult(ctx context.Context, jobID, resultID string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(keyResult(jobID, resultID), data)
	})
}

func (s *Store) GetResult(ctx context.Context, jobID, resultID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyResult(jobID, resultID))
		if err == badger.ErrKeyNotFound {
			return store.ErrNotFound
		}
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}
