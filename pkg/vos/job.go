package vos

import "time"

// ============================================================================
// Jobs
// ============================================================================

// Phase is a UWS job phase.
type Phase string

const (
	PhasePending   Phase = "PENDING"
	PhaseQueued    Phase = "QUEUED"
	PhaseExecuting Phase = "EXECUTING"
	PhaseCompleted Phase = "COMPLETED"
	PhaseError     Phase = "ERROR"
	PhaseAborted   Phase = "ABORTED"
	PhaseHeld      Phase = "HELD"
	PhaseSuspended Phase = "SUSPENDED"
)

// Terminal reports whether p is a terminal phase.
func (p Phase) Terminal() bool {
	switch p {
	case PhaseCompleted, PhaseError, PhaseAborted:
		return true
	}
	return false
}

// ResultTransferDetails is the well-known id of the result holding the
// serialized transfer description of a transfer job.
const ResultTransferDetails = "transferDetails"

// Job is a UWS job record. Jobs are owned by the job ledger; other
// components reference them by ID only.
type Job struct {
	// ID is the server-generated job identifier (UUID rendered as hex).
	ID string

	// OwnerID is the principal that created the job.
	OwnerID string

	// Phase is the current UWS phase.
	Phase Phase

	// StartTime and EndTime bracket execution. Nil until set.
	StartTime *time.Time
	EndTime   *time.Time

	// ExecutionDuration is the maximum run time in seconds, 0 = unbounded.
	ExecutionDuration int

	// Parameters holds request parameters by name.
	Parameters map[string]string

	// Results maps result ids to URIs. A transfer job carries at least
	// a "transferDetails" result once it reaches EXECUTING.
	Results map[string]string

	// ResultOrder preserves the insertion order of result ids.
	ResultOrder []string

	// ErrorSummary is the short failure description, "" when no error.
	ErrorSummary string

	// Transfer is the originating transfer document, nil for non-transfer
	// jobs.
	Transfer *Transfer
}

// AddResult records a result URI under the given id, keeping insertion
// order.
func (j *Job) AddResult(id, uri string) {
	if j.Results == nil {
		j.Results = make(map[string]string)
	}
	if _, exists := j.Results[id]; !exists {
		j.ResultOrder = append(j.ResultOrder, id)
	}
	j.Results[id] = uri
}

// Clone returns a deep copy of the job.
func (j *Job) Clone() *Job {
	out := *j
	if j.StartTime != nil {
		t := *j.StartTime
		out.StartTime = &t
	}
	if j.EndTime != nil {
		t := *j.EndTime
		out.EndTime = &t
	}
	if j.Parameters != nil {
		out.Parameters = make(map[string]string, len(j.Parameters))
		for k, v := range j.Parameters {
			out.Parameters[k] = v
		}
	}
	if j.Results != nil {
		out.Results = make(map[string]string, len(j.Results))
		for k, v := range j.Results {
			out.Results[k] = v
		}
	}
	out.ResultOrder = append([]string(nil), j.ResultOrder...)
	if j.Transfer != nil {
		t := *j.Transfer
		t.Protocols = append([]Protocol(nil), j.Transfer.Protocols...)
		out.Transfer = &t
	}
	return &out
}

// ============================================================================
// Endpoints
// ============================================================================

// Endpoint is a single-use, time-bounded data endpoint bound to a job and
// a resolved physical location.
//
// Validity is always computed from Created, Completed, and the registry's
// TTL at the moment of the check, never cached.
type Endpoint struct {
	// Token is the opaque identifier embedded in the endpoint URL.
	Token string

	// JobID is the owning job.
	JobID string

	// Target is the node URI the endpoint serves.
	Target string

	// Location is the resolved physical location the protocol handler
	// reads or writes.
	Location string

	// Created is the allocation time.
	Created time.Time

	// Completed is the consumption time, nil while the endpoint is live.
	Completed *time.Time
}
