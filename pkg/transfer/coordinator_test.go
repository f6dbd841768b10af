package transfer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	backendfs "github.com/voservices/vospace/pkg/backend/fs"
	"github.com/voservices/vospace/pkg/endpoint"
	"github.com/voservices/vospace/pkg/namespace"
	"github.com/voservices/vospace/pkg/store"
	"github.com/voservices/vospace/pkg/store/memory"
	"github.com/voservices/vospace/pkg/uws"
	"github.com/voservices/vospace/pkg/vos"
)

const (
	root    = "vos://example.org!vospace"
	baseURL = "http://vospace.example.org"
)

type fixture struct {
	store store.Store
	ns    *namespace.Service
	coord *Coordinator
}

func newFixture(t *testing.T, ttl time.Duration) *fixture {
	t.Helper()
	be, err := backendfs.New(t.TempDir())
	require.NoError(t, err)

	st := memory.New(root, "/")
	ns, err := namespace.New(context.Background(), st, be, root)
	require.NoError(t, err)

	ledger := uws.NewLedger(st)
	eps := endpoint.NewRegistry(st, ttl)
	coord := New(ns, ledger, eps, st, DefaultTables(), baseURL)
	return &fixture{store: st, ns: ns, coord: coord}
}

func (f *fixture) mkContainer(t *testing.T, uri string) {
	t.Helper()
	_, err := f.ns.Create(context.Background(), uri, &vos.Node{Type: vos.TypeContainerNode})
	require.NoError(t, err)
}

func (f *fixture) mkData(t *testing.T, uri string) {
	t.Helper()
	_, err := f.ns.Create(context.Background(), uri, &vos.Node{Type: vos.TypeDataNode})
	require.NoError(t, err)
}

func pullFrom(target string) *vos.Transfer {
	return &vos.Transfer{
		Target:    target,
		Direction: vos.DirectionPullFrom,
		View:      &vos.View{URI: vos.ViewAny},
		Protocols: []vos.Protocol{{URI: vos.ProtocolHTTPGet}},
	}
}

func pushTo(target string) *vos.Transfer {
	return &vos.Transfer{
		Target:    target,
		Direction: vos.DirectionPushTo,
		Protocols: []vos.Protocol{{URI: vos.ProtocolHTTPPut}},
	}
}

// ============================================================================
// End to end
// ============================================================================

func TestPullFromLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Hour)

	f.mkContainer(t, root+"/u")
	f.mkContainer(t, root+"/u/c")
	f.mkData(t, root+"/u/c/f")

	job, err := f.coord.CreateTransfer(ctx, pullFrom(root+"/u/c/f"), "alice", true)
	require.NoError(t, err)
	assert.Equal(t, vos.PhaseExecuting, job.Phase)

	details := job.Results[vos.ResultTransferDetails]
	require.NotEmpty(t, details)
	assert.Equal(t, baseURL+"/transfers/"+job.ID+"/results/transferDetails", details)

	// The stored transfer details carry the minted endpoint URL.
	doc, err := f.store.GetResult(ctx, job.ID, vos.ResultTransferDetails)
	require.NoError(t, err)
	negotiated, err := vos.UnmarshalTransfer(doc)
	require.NoError(t, err)
	require.Len(t, negotiated.Protocols, 1)
	epURL := negotiated.Protocols[0].Endpoint
	require.True(t, strings.HasPrefix(epURL, baseURL+"/data/"))

	// The target is busy while the transfer is in flight.
	n, err := f.ns.Get(ctx, root+"/u/c/f", namespace.DetailMin)
	require.NoError(t, err)
	assert.True(t, n.Busy)

	// First endpoint access succeeds and completes the job.
	token := strings.TrimPrefix(epURL, baseURL+"/data/")
	ep, err := f.coord.HandleEndpointAccess(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, job.ID, ep.JobID)
	assert.NotEmpty(t, ep.Location)

	done, err := f.coord.Ledger().Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, vos.PhaseCompleted, done.Phase)
	assert.NotNil(t, done.EndTime)

	n, err = f.ns.Get(ctx, root+"/u/c/f", namespace.DetailMin)
	require.NoError(t, err)
	assert.False(t, n.Busy)

	// Second access is a single-use violation.
	_, err = f.coord.HandleEndpointAccess(ctx, token)
	require.Error(t, err)
	assert.True(t, vos.IsFault(err, vos.FaultAlreadyUsed))
}

func TestAsyncTransferWaitsForRun(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Hour)
	f.mkData(t, root+"/f")

	job, err := f.coord.CreateTransfer(ctx, pullFrom(root+"/f"), "alice", false)
	require.NoError(t, err)
	assert.Equal(t, vos.PhasePending, job.Phase)

	// The sweep ignores PENDING jobs.
	require.NoError(t, f.coord.Reconcile(ctx, job.ID))
	got, _ := f.coord.Ledger().Get(ctx, job.ID)
	assert.Equal(t, vos.PhasePending, got.Phase)

	require.NoError(t, f.coord.Ledger().RequestPhase(ctx, job.ID, uws.RequestRun))
	require.NoError(t, f.coord.Reconcile(ctx, job.ID))

	got, _ = f.coord.Ledger().Get(ctx, job.ID)
	assert.Equal(t, vos.PhaseExecuting, got.Phase)
	assert.NotEmpty(t, got.Results[vos.ResultTransferDetails])
}

// ============================================================================
// Validation
// ============================================================================

func TestUnsupportedViewCreatesNoJob(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Hour)
	f.mkData(t, root+"/f")

	tr := pullFrom(root + "/f")
	tr.View = &vos.View{URI: "ivo://example.org/views#exotic"}

	_, err := f.coord.CreateTransfer(ctx, tr, "alice", false)
	require.Error(t, err)
	assert.True(t, vos.IsFault(err, vos.FaultUnsupportedView))
	assert.Contains(t, err.Error(), "does not support the requested View")

	ids, err := f.store.ListJobsByPhase(ctx, vos.PhasePending, vos.PhaseQueued, vos.PhaseExecuting)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestUnsupportedProtocolCreatesNoJob(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Hour)
	f.mkData(t, root+"/f")

	tr := pullFrom(root + "/f")
	tr.Protocols = []vos.Protocol{{URI: "ivo://example.org/protocols#carrier-pigeon"}}

	_, err := f.coord.CreateTransfer(ctx, tr, "alice", false)
	require.Error(t, err)
	assert.True(t, vos.IsFault(err, vos.FaultUnsupportedProtocol))
	assert.Contains(t, err.Error(), "none of the requested Protocols")
}

func TestProtocolNegotiationSelectsFirstSupported(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Hour)
	f.mkData(t, root+"/f")

	tr := pullFrom(root + "/f")
	tr.Protocols = []vos.Protocol{
		{URI: "ivo://example.org/protocols#carrier-pigeon"},
		{URI: vos.ProtocolHTTPGet},
	}

	job, err := f.coord.CreateTransfer(ctx, tr, "alice", false)
	require.NoError(t, err)
	require.Len(t, job.Transfer.Protocols, 1)
	assert.Equal(t, vos.ProtocolHTTPGet, job.Transfer.Protocols[0].URI)
}

func TestPushToContainerIsRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Hour)
	f.mkContainer(t, root+"/c")

	_, err := f.coord.CreateTransfer(ctx, pushTo(root+"/c"), "alice", false)
	require.Error(t, err)
	assert.True(t, vos.IsFault(err, vos.FaultInvalidURI))
	assert.Contains(t, err.Error(), "Data cannot be uploaded to a container")
}

func TestPullFromMissingSourceIsConflict(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Hour)

	_, err := f.coord.CreateTransfer(ctx, pullFrom(root+"/missing"), "alice", false)
	require.Error(t, err)
	assert.True(t, vos.IsFault(err, vos.FaultSourceNotFound))
	assert.Contains(t, err.Error(), "A Node does not exist with the requested URI")
}

func TestPushToMissingTargetCreatesDataNode(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Hour)
	f.mkContainer(t, root+"/c")

	job, err := f.coord.CreateTransfer(ctx, pushTo(root+"/c/new"), "alice", false)
	require.NoError(t, err)
	assert.Equal(t, root+"/c/new", job.Transfer.Target)

	typ, err := f.ns.GetType(ctx, root+"/c/new")
	require.NoError(t, err)
	assert.Equal(t, vos.TypeDataNode, typ)
}

func TestPushToAutoGeneratesTarget(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Hour)
	f.mkContainer(t, root+"/c")

	job, err := f.coord.CreateTransfer(ctx, pushTo(root+"/c/.auto"), "alice", false)
	require.NoError(t, err)
	assert.Equal(t, root+"/c", vos.PathParent(job.Transfer.Target))
	assert.NotContains(t, job.Transfer.Target, vos.AutoName)

	exists, err := f.ns.Exists(ctx, job.Transfer.Target)
	require.NoError(t, err)
	assert.True(t, exists)
}

// ============================================================================
// Per-node exclusion
// ============================================================================

func TestConcurrentTransfersOnOneNodeQueueBehindEachOther(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Hour)
	f.mkData(t, root+"/f")

	first, err := f.coord.CreateTransfer(ctx, pullFrom(root+"/f"), "alice", true)
	require.NoError(t, err)
	assert.Equal(t, vos.PhaseExecuting, first.Phase)

	second, err := f.coord.CreateTransfer(ctx, pullFrom(root+"/f"), "bob", true)
	require.NoError(t, err)
	assert.Equal(t, vos.PhaseQueued, second.Phase)

	// Still queued on further sweeps while the first holds the node.
	require.NoError(t, f.coord.Reconcile(ctx, second.ID))
	got, _ := f.coord.Ledger().Get(ctx, second.ID)
	assert.Equal(t, vos.PhaseQueued, got.Phase)

	// Completing the first releases the node and the next sweep runs
	// the second.
	ep, err := f.coord.Ledger().Get(ctx, first.ID)
	require.NoError(t, err)
	doc, err := f.store.GetResult(ctx, ep.ID, vos.ResultTransferDetails)
	require.NoError(t, err)
	negotiated, err := vos.UnmarshalTransfer(doc)
	require.NoError(t, err)
	token := strings.TrimPrefix(negotiated.Protocols[0].Endpoint, baseURL+"/data/")
	_, err = f.coord.HandleEndpointAccess(ctx, token)
	require.NoError(t, err)

	require.NoError(t, f.coord.Reconcile(ctx, second.ID))
	got, _ = f.coord.Ledger().Get(ctx, second.ID)
	assert.Equal(t, vos.PhaseExecuting, got.Phase)
}

// ============================================================================
// Expiry reconciliation
// ============================================================================

func TestExpiredEndpointFailsJob(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Nanosecond)
	f.mkData(t, root+"/f")

	job, err := f.coord.CreateTransfer(ctx, pullFrom(root+"/f"), "alice", true)
	require.NoError(t, err)
	assert.Equal(t, vos.PhaseExecuting, job.Phase)

	time.Sleep(time.Millisecond)
	require.NoError(t, f.coord.Reconcile(ctx, job.ID))

	got, err := f.coord.Ledger().Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, vos.PhaseError, got.Phase)
	assert.Equal(t, vos.SummaryInternalFault, got.ErrorSummary)

	n, err := f.ns.Get(ctx, root+"/f", namespace.DetailMin)
	require.NoError(t, err)
	assert.False(t, n.Busy)
}

// ============================================================================
// Move and copy jobs
// ============================================================================

func TestMoveJobRunsToCompletion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Hour)
	f.mkData(t, root+"/a")
	f.mkContainer(t, root+"/c")

	tr := &vos.Transfer{
		Target:    root + "/a",
		Direction: vos.Direction(root + "/c"),
		KeepBytes: false,
	}
	job, err := f.coord.CreateTransfer(ctx, tr, "alice", true)
	require.NoError(t, err)
	assert.Equal(t, vos.PhaseCompleted, job.Phase)

	exists, _ := f.ns.Exists(ctx, root+"/a")
	assert.False(t, exists)
	exists, _ = f.ns.Exists(ctx, root+"/c/a")
	assert.True(t, exists)
}

func TestCopyJobKeepsSource(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Hour)
	f.mkData(t, root+"/a")
	f.mkContainer(t, root+"/c")

	tr := &vos.Transfer{
		Target:    root + "/a",
		Direction: vos.Direction(root + "/c"),
		KeepBytes: true,
	}
	job, err := f.coord.CreateTransfer(ctx, tr, "alice", true)
	require.NoError(t, err)
	assert.Equal(t, vos.PhaseCompleted, job.Phase)

	exists, _ := f.ns.Exists(ctx, root+"/a")
	assert.True(t, exists)
	exists, _ = f.ns.Exists(ctx, root+"/c/a")
	assert.True(t, exists)
}

func TestFailedMoveRecordsErrorSummary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Hour)
	f.mkData(t, root+"/a")
	f.mkData(t, root+"/b")

	tr := &vos.Transfer{
		Target:    root + "/a",
		Direction: vos.Direction(root + "/b"),
	}
	job, err := f.coord.CreateTransfer(ctx, tr, "alice", true)
	require.NoError(t, err)
	assert.Equal(t, vos.PhaseError, job.Phase)
	assert.Equal(t, vos.SummaryDuplicateNode, job.ErrorSummary)
}

// ============================================================================
// Client-mediated directions
// ============================================================================

func TestPushFromCompletesWithoutServerEndpoint(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Hour)
	f.mkData(t, root+"/f")

	tr := &vos.Transfer{
		Target:    root + "/f",
		Direction: vos.DirectionPushFrom,
		Protocols: []vos.Protocol{{
			URI:      vos.ProtocolHTTPPut,
			Endpoint: "http://client.example/sink",
		}},
	}
	job, err := f.coord.CreateTransfer(ctx, tr, "alice", true)
	require.NoError(t, err)
	assert.Equal(t, vos.PhaseCompleted, job.Phase)
	assert.NotEmpty(t, job.Results[vos.ResultTransferDetails])

	// The node claim is dropped; a new transfer can start at once.
	next, err := f.coord.CreateTransfer(ctx, pullFrom(root+"/f"), "alice", true)
	require.NoError(t, err)
	assert.Equal(t, vos.PhaseExecuting, next.Phase)
}

// ============================================================================
// Search jobs
// ============================================================================

func TestSearchJobMaterializesMatches(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Hour)
	f.mkContainer(t, root+"/c")
	f.mkData(t, root+"/c/a")
	f.mkData(t, root+"/c/b")
	f.mkContainer(t, root+"/c/sub")
	f.mkData(t, root+"/c/sub/deep")

	job, err := f.coord.CreateSearch(ctx, "alice", root+"/c", vos.TypeDataNode, true)
	require.NoError(t, err)
	assert.Equal(t, vos.PhaseCompleted, job.Phase)
	require.NotEmpty(t, job.Results[ResultSearchDetails])

	doc, err := f.store.GetResult(ctx, job.ID, ResultSearchDetails)
	require.NoError(t, err)
	uris, err := vos.UnmarshalNodeList(doc)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		root + "/c/a",
		root + "/c/b",
		root + "/c/sub/deep",
	}, uris)
}

func TestSearchOutsideSpaceIsRejected(t *testing.T) {
	f := newFixture(t, time.Hour)
	_, err := f.coord.CreateSearch(context.Background(), "alice", "vos://elsewhere.org!vospace/x", "", false)
	require.Error(t, err)
	assert.True(t, vos.IsFault(err, vos.FaultInvalidURI))
}
