// Package storetest provides a conformance suite for Store implementations.
// It tests the interface contract, not implementation details, so it is
// reusable across the memory and badger stores.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voservices/vospace/pkg/store"
	"github.com/voservices/vospace/pkg/vos"
)

const testRoot = "vos://example.org!vospace"

// Suite exercises the Store contract against a fresh instance per test.
type Suite struct {
	// NewStore creates a fresh store for each test. Implementations
	// must use testRoot as the namespace root. Cleanup is the caller's
	// responsibility (use t.Cleanup in the factory).
	NewStore func(t *testing.T) store.Store
}

// Run executes all tests in the suite.
func (s *Suite) Run(t *testing.T) {
	t.Run("Nodes", s.RunNodeTests)
	t.Run("Jobs", s.RunJobTests)
	t.Run("Endpoints", s.RunEndpointTests)
	t.Run("Results", s.RunResultTests)
}

// ============================================================================
// Nodes
// ============================================================================

func (s *Suite) RunNodeTests(t *testing.T) {
	ctx := context.Background()

	t.Run("GetMissingNodeReturnsNotFound", func(t *testing.T) {
		st := s.NewStore(t)
		_, err := st.GetNode(ctx, testRoot+"/missing")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("PutGetRoundTrip", func(t *testing.T) {
		st := s.NewStore(t)
		n := &vos.Node{
			URI:        testRoot + "/a",
			Type:       vos.TypeDataNode,
			Properties: vos.Properties{{URI: vos.PropTitle, Value: "a"}},
			Accepts:    []string{vos.ViewAny},
		}
		require.NoError(t, st.PutNode(ctx, n))

		got, err := st.GetNode(ctx, n.URI)
		require.NoError(t, err)
		assert.Equal(t, n.URI, got.URI)
		assert.Equal(t, n.Type, got.Type)
		assert.Equal(t, n.Properties, got.Properties)
		assert.Equal(t, n.Accepts, got.Accepts)
	})

	t.Run("GetReturnsIndependentCopy", func(t *testing.T) {
		st := s.NewStore(t)
		n := &vos.Node{
			URI:        testRoot + "/a",
			Type:       vos.TypeDataNode,
			Properties: vos.Properties{{URI: vos.PropTitle, Value: "a"}},
		}
		require.NoError(t, st.PutNode(ctx, n))

		got, err := st.GetNode(ctx, n.URI)
		require.NoError(t, err)
		got.Properties = got.Properties.Set(vos.PropTitle, "mutated")

		again, err := st.GetNode(ctx, n.URI)
		require.NoError(t, err)
		v, _ := again.Properties.Get(vos.PropTitle)
		assert.Equal(t, "a", v)
	})

	t.Run("ListChildrenReturnsImmediateChildrenOnly", func(t *testing.T) {
		st := s.NewStore(t)
		for _, uri := range []string{
			testRoot + "/c",
			testRoot + "/c/a",
			testRoot + "/c/b",
			testRoot + "/c/b/deep",
			testRoot + "/other",
		} {
			typ := vos.TypeContainerNode
			require.NoError(t, st.PutNode(ctx, &vos.Node{URI: uri, Type: typ}))
		}

		children, err := st.ListChildren(ctx, testRoot+"/c")
		require.NoError(t, err)
		assert.Equal(t, []string{testRoot + "/c/a", testRoot + "/c/b"}, children)
	})

	t.Run("DeleteNodesRemovesSubtree", func(t *testing.T) {
		st := s.NewStore(t)
		for _, uri := range []string{
			testRoot + "/c",
			testRoot + "/c/a",
			testRoot + "/c/a/x",
			testRoot + "/cat",
		} {
			require.NoError(t, st.PutNode(ctx, &vos.Node{URI: uri, Type: vos.TypeContainerNode}))
		}

		n, err := st.DeleteNodes(ctx, testRoot+"/c")
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		exists, err := st.NodeExists(ctx, testRoot+"/c/a/x")
		require.NoError(t, err)
		assert.False(t, exists)

		// "/cat" shares the "/c" string prefix but is not in the subtree.
		exists, err = st.NodeExists(ctx, testRoot+"/cat")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("ResolveLocationMapsUnderDataRoot", func(t *testing.T) {
		st := s.NewStore(t)
		loc := st.ResolveLocation(testRoot + "/c/f")
		assert.NotEmpty(t, loc)
		assert.NotContains(t, loc, "vos://")
		assert.Contains(t, loc, "/c/f")
	})
}

// ============================================================================
// Jobs
// ============================================================================

func (s *Suite) RunJobTests(t *testing.T) {
	ctx := context.Background()

	t.Run("GetMissingJobReturnsNotFound", func(t *testing.T) {
		st := s.NewStore(t)
		_, err := st.GetJob(ctx, "nope")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("PutGetRoundTrip", func(t *testing.T) {
		st := s.NewStore(t)
		start := time.Now().Truncate(time.Second)
		j := &vos.Job{
			ID:        "job1",
			OwnerID:   "alice",
			Phase:     vos.PhasePending,
			StartTime: &start,
			Transfer: &vos.Transfer{
				Target:    testRoot + "/c/f",
				Direction: vos.DirectionPullFrom,
			},
		}
		require.NoError(t, st.PutJob(ctx, j))

		got, err := st.GetJob(ctx, "job1")
		require.NoError(t, err)
		assert.Equal(t, "alice", got.OwnerID)
		assert.Equal(t, vos.PhasePending, got.Phase)
		require.NotNil(t, got.Transfer)
		assert.Equal(t, vos.DirectionPullFrom, got.Transfer.Direction)
	})

	t.Run("UpdateJobPersistsMutation", func(t *testing.T) {
		st := s.NewStore(t)
		require.NoError(t, st.PutJob(ctx, &vos.Job{ID: "job1", Phase: vos.PhasePending}))

		err := st.UpdateJob(ctx, "job1", func(j *vos.Job) error {
			j.Phase = vos.PhaseQueued
			j.AddResult(vos.ResultTransferDetails, "http://example.org/results/1")
			return nil
		})
		require.NoError(t, err)

		got, err := st.GetJob(ctx, "job1")
		require.NoError(t, err)
		assert.Equal(t, vos.PhaseQueued, got.Phase)
		assert.Equal(t, "http://example.org/results/1", got.Results[vos.ResultTransferDetails])
	})

	t.Run("UpdateJobErrorAborts", func(t *testing.T) {
		st := s.NewStore(t)
		require.NoError(t, st.PutJob(ctx, &vos.Job{ID: "job1", Phase: vos.PhasePending}))

		// fn mutates before failing; none of the mutation may stick.
		boom := errors.New("boom")
		err := st.UpdateJob(ctx, "job1", func(j *vos.Job) error {
			j.Phase = vos.PhaseError
			j.ErrorSummary = "half-applied"
			return boom
		})
		assert.ErrorIs(t, err, boom)

		got, err := st.GetJob(ctx, "job1")
		require.NoError(t, err)
		assert.Equal(t, vos.PhasePending, got.Phase)
		assert.Empty(t, got.ErrorSummary)
	})

	t.Run("PutJobReplacesPhaseIndex", func(t *testing.T) {
		st := s.NewStore(t)
		require.NoError(t, st.PutJob(ctx, &vos.Job{ID: "job1", Phase: vos.PhasePending}))
		require.NoError(t, st.PutJob(ctx, &vos.Job{ID: "job1", Phase: vos.PhaseQueued}))

		ids, err := st.ListJobsByPhase(ctx, vos.PhasePending)
		require.NoError(t, err)
		assert.Empty(t, ids)

		ids, err = st.ListJobsByPhase(ctx, vos.PhaseQueued)
		require.NoError(t, err)
		assert.Equal(t, []string{"job1"}, ids)
	})

	t.Run("ListJobsByPhaseTracksTransitions", func(t *testing.T) {
		st := s.NewStore(t)
		require.NoError(t, st.PutJob(ctx, &vos.Job{ID: "a", Phase: vos.PhaseQueued}))
		require.NoError(t, st.PutJob(ctx, &vos.Job{ID: "b", Phase: vos.PhaseExecuting}))
		require.NoError(t, st.PutJob(ctx, &vos.Job{ID: "c", Phase: vos.PhaseCompleted}))

		ids, err := st.ListJobsByPhase(ctx, vos.PhaseQueued, vos.PhaseExecuting)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, ids)

		require.NoError(t, st.UpdateJob(ctx, "a", func(j *vos.Job) error {
			j.Phase = vos.PhaseCompleted
			return nil
		}))

		ids, err = st.ListJobsByPhase(ctx, vos.PhaseQueued, vos.PhaseExecuting)
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, ids)
	})
}

// ============================================================================
// Endpoints
// ============================================================================

func (s *Suite) RunEndpointTests(t *testing.T) {
	ctx := context.Background()

	t.Run("PutGetRoundTrip", func(t *testing.T) {
		st := s.NewStore(t)
		ep := &vos.Endpoint{
			Token:    "tok1",
			JobID:    "job1",
			Target:   testRoot + "/c/f",
			Location: "/data/c/f",
			Created:  time.Now().Truncate(time.Second),
		}
		require.NoError(t, st.PutEndpoint(ctx, ep))

		got, err := st.GetEndpoint(ctx, "tok1")
		require.NoError(t, err)
		assert.Equal(t, ep.JobID, got.JobID)
		assert.Equal(t, ep.Location, got.Location)
		assert.Nil(t, got.Completed)
	})

	t.Run("GetJobEndpoint", func(t *testing.T) {
		st := s.NewStore(t)
		require.NoError(t, st.PutEndpoint(ctx, &vos.Endpoint{
			Token: "tok1", JobID: "job1", Created: time.Now(),
		}))

		got, err := st.GetJobEndpoint(ctx, "job1")
		require.NoError(t, err)
		assert.Equal(t, "tok1", got.Token)

		_, err = st.GetJobEndpoint(ctx, "other")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("CompleteEndpointIsExactlyOnce", func(t *testing.T) {
		st := s.NewStore(t)
		require.NoError(t, st.PutEndpoint(ctx, &vos.Endpoint{
			Token: "tok1", JobID: "job1", Created: time.Now(),
		}))

		used := errors.New("used")
		consume := func() error {
			return st.CompleteEndpoint(ctx, "tok1", func(ep *vos.Endpoint) error {
				if ep.Completed != nil {
					return used
				}
				return nil
			})
		}

		var wg sync.WaitGroup
		errs := make([]error, 16)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = consume()
			}(i)
		}
		wg.Wait()

		wins := 0
		for _, err := range errs {
			if err == nil {
				wins++
			} else {
				assert.ErrorIs(t, err, used)
			}
		}
		assert.Equal(t, 1, wins)

		got, err := st.GetEndpoint(ctx, "tok1")
		require.NoError(t, err)
		assert.NotNil(t, got.Completed)
	})
}

// ============================================================================
// Results
// ============================================================================

func (s *Suite) RunResultTests(t *testing.T) {
	ctx := context.Background()

	t.Run("PutGetRoundTrip", func(t *testing.T) {
		st := s.NewStore(t)
		require.NoError(t, st.PutResult(ctx, "job1", "transferDetails", []byte("<transfer/>")))

		data, err := st.GetResult(ctx, "job1", "transferDetails")
		require.NoError(t, err)
		assert.Equal(t, []byte("<transfer/>"), data)
	})

	t.Run("MissingResultReturnsNotFound", func(t *testing.T) {
		st := s.NewStore(t)
		_, err := st.GetResult(ctx, "job1", "nope")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}
