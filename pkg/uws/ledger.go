// Package uws implements the UWS-style asynchronous job machinery: the
// job ledger with its phase state machine, the job document codec, and
// the background reconciler.
//
// The phase state machine, terminal states COMPLETED / ERROR / ABORTED:
//
//	PENDING --RUN--> QUEUED --(picked up)--> EXECUTING --> COMPLETED
//	PENDING --ABORT--> ABORTED      QUEUED --ABORT--> ABORTED
//	any non-terminal --(internal failure)--> ERROR
package uws

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/voservices/vospace/internal/logger"
	"github.com/voservices/vospace/pkg/store"
	"github.com/voservices/vospace/pkg/vos"
)

// Request is a client-requested phase change.
type Request string

const (
	RequestRun   Request = "RUN"
	RequestAbort Request = "ABORT"
)

// Ledger owns job records and enforces legal phase transitions. All
// phase changes for a job are serialized by the store's update exclusion,
// so a foreground request and the background reconciler can never
// interleave on the same record.
type Ledger struct {
	store store.Store
}

// NewLedger creates a job ledger over the given store.
func NewLedger(st store.Store) *Ledger {
	return &Ledger{store: st}
}

// NewJobID returns a fresh job identifier (random UUID rendered as hex).
func NewJobID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Create records a new job in phase PENDING and returns it.
func (l *Ledger) Create(ctx context.Context, ownerID string, transfer *vos.Transfer, params map[string]string) (*vos.Job, error) {
	job := &vos.Job{
		ID:         NewJobID(),
		OwnerID:    ownerID,
		Phase:      vos.PhasePending,
		Parameters: params,
		Transfer:   transfer,
	}
	if err := l.store.PutJob(ctx, job); err != nil {
		return nil, vos.NewError(vos.FaultInternal, err.Error(), "")
	}
	logger.Debug("Created job %s for %s", job.ID, ownerID)
	return job.Clone(), nil
}

// Get returns the job with the given id.
func (l *Ledger) Get(ctx context.Context, id string) (*vos.Job, error) {
	job, err := l.store.GetJob(ctx, id)
	if err == store.ErrNotFound {
		return nil, vos.NewError(vos.FaultNotFound, "no job with id "+id, "")
	}
	if err != nil {
		return nil, vos.NewError(vos.FaultInternal, err.Error(), "")
	}
	return job, nil
}

// RequestPhase applies a client phase request.
//
// RUN moves a PENDING job to QUEUED and is a no-op in any other phase.
// ABORT moves a PENDING or QUEUED job to ABORTED and is rejected with
// InvalidState otherwise: once EXECUTING, a transfer is committed and
// runs to COMPLETED or ERROR.
func (l *Ledger) RequestPhase(ctx context.Context, id string, req Request) error {
	err := l.store.UpdateJob(ctx, id, func(j *vos.Job) error {
		switch req {
		case RequestRun:
			if j.Phase == vos.PhasePending {
				j.Phase = vos.PhaseQueued
			}
			return nil
		case RequestAbort:
			if j.Phase == vos.PhasePending || j.Phase == vos.PhaseQueued {
				j.Phase = vos.PhaseAborted
				now := time.Now()
				j.EndTime = &now
				return nil
			}
			return vos.NewError(vos.FaultInvalidState,
				"cannot abort a job in phase "+string(j.Phase), "")
		default:
			return vos.NewError(vos.FaultInvalidState, "unknown phase request "+string(req), "")
		}
	})
	return l.wrap(err, id)
}

// Start moves a PENDING or QUEUED job to EXECUTING and stamps startTime.
// Starting a job in any other phase is rejected with InvalidState.
func (l *Ledger) Start(ctx context.Context, id string) error {
	err := l.store.UpdateJob(ctx, id, func(j *vos.Job) error {
		if j.Phase != vos.PhasePending && j.Phase != vos.PhaseQueued {
			return vos.NewError(vos.FaultInvalidState,
				"cannot start a job in phase "+string(j.Phase), "")
		}
		j.Phase = vos.PhaseExecuting
		now := time.Now()
		j.StartTime = &now
		return nil
	})
	return l.wrap(err, id)
}

// Complete forces the job to COMPLETED and stamps endTime. A no-op when
// the job is already terminal.
func (l *Ledger) Complete(ctx context.Context, id string) error {
	err := l.store.UpdateJob(ctx, id, func(j *vos.Job) error {
		if j.Phase.Terminal() {
			return nil
		}
		j.Phase = vos.PhaseCompleted
		now := time.Now()
		j.EndTime = &now
		return nil
	})
	return l.wrap(err, id)
}

// Fail records an error summary and forces the job to ERROR. Failures
// are never silently swallowed: an already terminal job keeps its phase
// but an empty summary is still filled in.
func (l *Ledger) Fail(ctx context.Context, id, summary string) error {
	err := l.store.UpdateJob(ctx, id, func(j *vos.Job) error {
		if !j.Phase.Terminal() {
			j.Phase = vos.PhaseError
			now := time.Now()
			j.EndTime = &now
		}
		if j.ErrorSummary == "" {
			j.ErrorSummary = summary
		}
		return nil
	})
	if err == nil {
		logger.Warn("Job %s failed: %s", id, summary)
	}
	return l.wrap(err, id)
}

// AddResult attaches a result URI to the job.
func (l *Ledger) AddResult(ctx context.Context, id, resultID, uri string) error {
	err := l.store.UpdateJob(ctx, id, func(j *vos.Job) error {
		j.AddResult(resultID, uri)
		return nil
	})
	return l.wrap(err, id)
}

// ListActive returns the ids of all QUEUED and EXECUTING jobs.
func (l *Ledger) ListActive(ctx context.Context) ([]string, error) {
	ids, err := l.store.ListJobsByPhase(ctx, vos.PhaseQueued, vos.PhaseExecuting)
	if err != nil {
		return nil, vos.NewError(vos.FaultInternal, err.Error(), "")
	}
	return ids, nil
}

func (l *Ledger) wrap(err error, id string) error {
	if err == store.ErrNotFound {
		return vos.NewError(vos.FaultNotFound, "no job with id "+id, "")
	}
	if err == nil {
		return nil
	}
	if _, ok := err.(*vos.Error); ok {
		return err
	}
	return vos.NewError(vos.FaultInternal, err.Error(), "")
}
