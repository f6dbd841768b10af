package uws

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voservices/vospace/pkg/store/memory"
	"github.com/voservices/vospace/pkg/vos"
)

func newLedger() *Ledger {
	return NewLedger(memory.New("vos://example.org!vospace", "/data"))
}

func createJob(t *testing.T, l *Ledger) *vos.Job {
	t.Helper()
	job, err := l.Create(context.Background(), "alice", &vos.Transfer{
		Target:    "vos://example.org!vospace/c/f",
		Direction: vos.DirectionPullFrom,
	}, nil)
	require.NoError(t, err)
	return job
}

func TestCreateStartsPending(t *testing.T) {
	l := newLedger()
	job := createJob(t, l)

	assert.Equal(t, vos.PhasePending, job.Phase)
	assert.Nil(t, job.StartTime)
	assert.Len(t, job.ID, 32)
}

func TestJobIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewJobID()
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestRunMovesPendingToQueued(t *testing.T) {
	ctx := context.Background()
	l := newLedger()
	job := createJob(t, l)

	require.NoError(t, l.RequestPhase(ctx, job.ID, RequestRun))

	got, err := l.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, vos.PhaseQueued, got.Phase)
}

func TestRunIsIdempotentOutsidePending(t *testing.T) {
	ctx := context.Background()
	l := newLedger()
	job := createJob(t, l)

	require.NoError(t, l.RequestPhase(ctx, job.ID, RequestRun))
	require.NoError(t, l.Start(ctx, job.ID))

	// RUN on an EXECUTING job is a silent no-op.
	require.NoError(t, l.RequestPhase(ctx, job.ID, RequestRun))

	got, err := l.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, vos.PhaseExecuting, got.Phase)
}

func TestAbortFromPendingAndQueued(t *testing.T) {
	ctx := context.Background()
	l := newLedger()

	pending := createJob(t, l)
	require.NoError(t, l.RequestPhase(ctx, pending.ID, RequestAbort))
	got, _ := l.Get(ctx, pending.ID)
	assert.Equal(t, vos.PhaseAborted, got.Phase)
	assert.NotNil(t, got.EndTime)

	queued := createJob(t, l)
	require.NoError(t, l.RequestPhase(ctx, queued.ID, RequestRun))
	require.NoError(t, l.RequestPhase(ctx, queued.ID, RequestAbort))
	got, _ = l.Get(ctx, queued.ID)
	assert.Equal(t, vos.PhaseAborted, got.Phase)
}

func TestAbortExecutingIsRejected(t *testing.T) {
	ctx := context.Background()
	l := newLedger()
	job := createJob(t, l)

	require.NoError(t, l.RequestPhase(ctx, job.ID, RequestRun))
	require.NoError(t, l.Start(ctx, job.ID))

	err := l.RequestPhase(ctx, job.ID, RequestAbort)
	require.Error(t, err)
	assert.True(t, vos.IsFault(err, vos.FaultInvalidState))

	got, _ := l.Get(ctx, job.ID)
	assert.Equal(t, vos.PhaseExecuting, got.Phase)
}

func TestAbortTerminalIsRejected(t *testing.T) {
	ctx := context.Background()
	l := newLedger()
	job := createJob(t, l)

	require.NoError(t, l.RequestPhase(ctx, job.ID, RequestRun))
	require.NoError(t, l.Start(ctx, job.ID))
	require.NoError(t, l.Complete(ctx, job.ID))

	err := l.RequestPhase(ctx, job.ID, RequestAbort)
	require.Error(t, err)
	assert.True(t, vos.IsFault(err, vos.FaultInvalidState))
}

func TestStartStampsStartTime(t *testing.T) {
	ctx := context.Background()
	l := newLedger()
	job := createJob(t, l)

	require.NoError(t, l.Start(ctx, job.ID))

	got, err := l.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, vos.PhaseExecuting, got.Phase)
	assert.NotNil(t, got.StartTime)
}

func TestStartTerminalIsRejected(t *testing.T) {
	ctx := context.Background()
	l := newLedger()
	job := createJob(t, l)

	require.NoError(t, l.RequestPhase(ctx, job.ID, RequestAbort))

	err := l.Start(ctx, job.ID)
	require.Error(t, err)
	assert.True(t, vos.IsFault(err, vos.FaultInvalidState))
}

func TestCompleteStampsEndTime(t *testing.T) {
	ctx := context.Background()
	l := newLedger()
	job := createJob(t, l)

	require.NoError(t, l.Start(ctx, job.ID))
	require.NoError(t, l.Complete(ctx, job.ID))

	got, err := l.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, vos.PhaseCompleted, got.Phase)
	assert.NotNil(t, got.EndTime)
}

func TestCompleteDoesNotOverrideTerminal(t *testing.T) {
	ctx := context.Background()
	l := newLedger()
	job := createJob(t, l)

	require.NoError(t, l.RequestPhase(ctx, job.ID, RequestAbort))
	require.NoError(t, l.Complete(ctx, job.ID))

	got, _ := l.Get(ctx, job.ID)
	assert.Equal(t, vos.PhaseAborted, got.Phase)
}

func TestFailRecordsSummary(t *testing.T) {
	ctx := context.Background()
	l := newLedger()
	job := createJob(t, l)

	require.NoError(t, l.Start(ctx, job.ID))
	require.NoError(t, l.Fail(ctx, job.ID, vos.SummaryInternalFault))

	got, err := l.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, vos.PhaseError, got.Phase)
	assert.Equal(t, vos.SummaryInternalFault, got.ErrorSummary)
	assert.NotNil(t, got.EndTime)
}

func TestAddResultPreservesOrder(t *testing.T) {
	ctx := context.Background()
	l := newLedger()
	job := createJob(t, l)

	require.NoError(t, l.AddResult(ctx, job.ID, "transferDetails", "http://example.org/r/1"))
	require.NoError(t, l.AddResult(ctx, job.ID, "searchDetails", "http://example.org/r/2"))

	got, err := l.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"transferDetails", "searchDetails"}, got.ResultOrder)
	assert.Equal(t, "http://example.org/r/1", got.Results["transferDetails"])
}

func TestGetMissingJobIsNotFound(t *testing.T) {
	l := newLedger()
	_, err := l.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, vos.IsFault(err, vos.FaultNotFound))
}

func TestListActive(t *testing.T) {
	ctx := context.Background()
	l := newLedger()

	a := createJob(t, l)
	b := createJob(t, l)
	createJob(t, l) // stays PENDING

	require.NoError(t, l.RequestPhase(ctx, a.ID, RequestRun))
	require.NoError(t, l.Start(ctx, b.ID))

	ids, err := l.ListActive(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, ids)
}
