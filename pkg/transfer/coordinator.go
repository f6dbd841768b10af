// Package transfer implements the transfer coordinator: direction
// validation, view and protocol negotiation, job and endpoint creation,
// and the reconciliation of job completion with endpoint completion.
package transfer

import (
	"context"
	"strings"

	"github.com/voservices/vospace/internal/logger"
	"github.com/voservices/vospace/pkg/endpoint"
	"github.com/voservices/vospace/pkg/namespace"
	"github.com/voservices/vospace/pkg/store"
	"github.com/voservices/vospace/pkg/uws"
	"github.com/voservices/vospace/pkg/vos"
)

// ResultSearchDetails is the result id under which a search job records
// its matches.
const ResultSearchDetails = "searchDetails"

// Coordinator orchestrates transfers. It consults the namespace for
// target validation, negotiates against the capability tables, and
// drives jobs through the ledger as endpoints are consumed or expire.
type Coordinator struct {
	ns        *namespace.Service
	ledger    *uws.Ledger
	endpoints *endpoint.Registry
	store     store.Store
	tables    Tables

	// baseURL is the externally reachable service base, used to build
	// endpoint and result URLs.
	baseURL string

	locks *nodeLocks
}

// New creates a coordinator.
func New(ns *namespace.Service, ledger *uws.Ledger, eps *endpoint.Registry, st store.Store, tables Tables, baseURL string) *Coordinator {
	return &Coordinator{
		ns:        ns,
		ledger:    ledger,
		endpoints: eps,
		store:     st,
		tables:    tables,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		locks:     newNodeLocks(),
	}
}

// Tables returns the capability tables the coordinator negotiates
// against.
func (c *Coordinator) Tables() Tables {
	return c.tables
}

// Ledger returns the job ledger.
func (c *Coordinator) Ledger() *uws.Ledger {
	return c.ledger
}

// Result returns the stored document behind a job result.
func (c *Coordinator) Result(ctx context.Context, jobID, resultID string) ([]byte, error) {
	doc, err := c.store.GetResult(ctx, jobID, resultID)
	if err == store.ErrNotFound {
		return nil, vos.NewError(vos.FaultNotFound, "no such result", jobID)
	}
	return doc, err
}

// ============================================================================
// Transfer creation
// ============================================================================

// CreateTransfer validates and negotiates a transfer document, creates
// the job, and returns it. Validation failures surface synchronously and
// create no job record. With runImmediately the job skips the
// PENDING/QUEUED wait and is executed before returning.
func (c *Coordinator) CreateTransfer(ctx context.Context, t *vos.Transfer, ownerID string, runImmediately bool) (*vos.Job, error) {
	if t.Target == "" {
		return nil, vos.NewError(vos.FaultMissingParameter, "transfer has no target", "")
	}
	if t.Direction == "" {
		return nil, vos.NewError(vos.FaultMissingParameter, "transfer has no direction", t.Target)
	}
	if !strings.HasPrefix(t.Target, c.ns.Root()+"/") {
		return nil, vos.NewError(vos.FaultInvalidURI, "the target is not inside this space", t.Target)
	}

	if !t.Direction.IsNodePath() {
		if err := c.prepareTarget(ctx, t); err != nil {
			return nil, err
		}
		if err := c.negotiateView(t); err != nil {
			return nil, err
		}
		selected, err := c.negotiateProtocol(t)
		if err != nil {
			return nil, err
		}
		t.Protocols = []vos.Protocol{selected}
	}

	job, err := c.ledger.Create(ctx, ownerID, t, nil)
	if err != nil {
		return nil, err
	}
	logger.Info("Created transfer job %s: %s %s", job.ID, t.Direction, t.Target)

	if runImmediately {
		if err := c.ledger.RequestPhase(ctx, job.ID, uws.RequestRun); err != nil {
			return nil, err
		}
		if err := c.RunJob(ctx, job.ID); err != nil {
			return nil, err
		}
		return c.ledger.Get(ctx, job.ID)
	}
	return job, nil
}

// prepareTarget enforces the direction's existence rules.
//
// Inbound transfers require a non-container target; a ".auto" target, or
// a target that does not exist yet, makes the coordinator create the
// data node itself. Outbound transfers require the source to exist, and
// its absence is a conflict, not a plain not-found.
func (c *Coordinator) prepareTarget(ctx context.Context, t *vos.Transfer) error {
	if vos.PathBase(t.Target) == vos.AutoName {
		if !t.Direction.Inbound() {
			return vos.NewError(vos.FaultInvalidURI, "cannot read from an auto-named node", t.Target)
		}
		node, err := c.ns.Create(ctx, t.Target, &vos.Node{Type: vos.TypeDataNode})
		if err != nil {
			return err
		}
		t.Target = node.URI
		return nil
	}

	typ, err := c.ns.GetType(ctx, t.Target)
	if err != nil {
		if !vos.IsFault(err, vos.FaultNotFound) {
			return err
		}
		if t.Direction.Inbound() {
			node, cerr := c.ns.Create(ctx, t.Target, &vos.Node{Type: vos.TypeDataNode})
			if cerr != nil {
				return cerr
			}
			t.Target = node.URI
			return nil
		}
		return vos.NewError(vos.FaultSourceNotFound,
			"A Node does not exist with the requested URI", t.Target)
	}

	if t.Direction.Inbound() && typ.IsContainer() {
		return vos.NewError(vos.FaultInvalidURI,
			"Data cannot be uploaded to a container", t.Target)
	}
	return nil
}

// negotiateView checks the requested view against the advertised tables.
// A nil view, the any-view sentinel, and the default-view sentinel all
// pass.
func (c *Coordinator) negotiateView(t *vos.Transfer) error {
	if t.View == nil || t.View.URI == "" {
		return nil
	}
	if t.View.URI == vos.ViewAny || t.View.URI == vos.ViewDefault {
		return nil
	}
	for _, u := range c.tables.viewsFor(t.Direction) {
		if u == t.View.URI || u == vos.ViewAny {
			return nil
		}
	}
	return vos.NewError(vos.FaultUnsupportedView,
		"The service does not support the requested View", t.Target)
}

// negotiateProtocol scans the requested protocols in order and selects
// the first one the service advertises for the transfer's direction.
func (c *Coordinator) negotiateProtocol(t *vos.Transfer) (vos.Protocol, error) {
	table, _ := c.tables.protocolsFor(t.Direction)
	for _, p := range t.Protocols {
		for _, u := range table {
			if p.URI == u {
				return p, nil
			}
		}
	}
	return vos.Protocol{}, vos.NewError(vos.FaultUnsupportedProtocol,
		"The service supports none of the requested Protocols", t.Target)
}

// ============================================================================
// Search creation
// ============================================================================

// CreateSearch records a search job over the subtree at uri, optionally
// filtered to a node type. The match listing is attached as the
// searchDetails result when the job runs.
func (c *Coordinator) CreateSearch(ctx context.Context, ownerID, uri string, nodeType vos.NodeType, runImmediately bool) (*vos.Job, error) {
	if uri == "" {
		uri = c.ns.Root()
	}
	if uri != c.ns.Root() && !strings.HasPrefix(uri, c.ns.Root()+"/") {
		return nil, vos.NewError(vos.FaultInvalidURI, "the search root is not inside this space", uri)
	}
	params := map[string]string{"uri": uri}
	if nodeType != "" {
		if !nodeType.Valid() {
			return nil, vos.NewError(vos.FaultInvalidURI, "unknown node type "+string(nodeType), uri)
		}
		params["type"] = string(nodeType)
	}

	job, err := c.ledger.Create(ctx, ownerID, nil, params)
	if err != nil {
		return nil, err
	}
	if runImmediately {
		if err := c.ledger.RequestPhase(ctx, job.ID, uws.RequestRun); err != nil {
			return nil, err
		}
		if err := c.RunJob(ctx, job.ID); err != nil {
			return nil, err
		}
		return c.ledger.Get(ctx, job.ID)
	}
	return job, nil
}

// ============================================================================
// Job execution
// ============================================================================

// RunJob picks up a QUEUED job and executes it: move/copy jobs run to
// completion in place, search jobs materialize their results, and data
// transfers advance to EXECUTING with an endpoint when one is required.
// A job whose target node is held by another transfer stays QUEUED and
// is retried on the next sweep. Calling RunJob on a job in any other
// phase is a no-op.
func (c *Coordinator) RunJob(ctx context.Context, jobID string) error {
	job, err := c.ledger.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Phase != vos.PhaseQueued {
		return nil
	}

	if job.Transfer == nil {
		return c.runSearch(ctx, job)
	}
	if job.Transfer.Direction.IsNodePath() {
		return c.runMoveCopy(ctx, job)
	}
	return c.runDataTransfer(ctx, job)
}

func (c *Coordinator) runMoveCopy(ctx context.Context, job *vos.Job) error {
	t := job.Transfer
	var err error
	if t.KeepBytes {
		_, err = c.ns.Copy(ctx, t.Target, string(t.Direction))
	} else {
		_, err = c.ns.Move(ctx, t.Target, string(t.Direction))
	}
	if err != nil {
		return c.ledger.Fail(ctx, job.ID, summaryOf(err))
	}
	return c.ledger.Complete(ctx, job.ID)
}

func (c *Coordinator) runSearch(ctx context.Context, job *vos.Job) error {
	root := job.Parameters["uri"]
	wantType := vos.NodeType(job.Parameters["type"])

	var matches []string
	queue := []string{root}
	for len(queue) > 0 {
		uri := queue[0]
		queue = queue[1:]

		n, err := c.store.GetNode(ctx, uri)
		if err == store.ErrNotFound {
			continue
		}
		if err != nil {
			return c.ledger.Fail(ctx, job.ID, vos.SummaryInternalFault)
		}
		if wantType == "" || n.Type == wantType {
			matches = append(matches, uri)
		}
		children, err := c.store.ListChildren(ctx, uri)
		if err != nil {
			return c.ledger.Fail(ctx, job.ID, vos.SummaryInternalFault)
		}
		queue = append(queue, children...)
	}

	doc, err := vos.MarshalNodeList(matches)
	if err != nil {
		return c.ledger.Fail(ctx, job.ID, vos.SummaryInternalFault)
	}
	if err := c.store.PutResult(ctx, job.ID, ResultSearchDetails, doc); err != nil {
		return c.ledger.Fail(ctx, job.ID, vos.SummaryInternalFault)
	}
	if err := c.ledger.AddResult(ctx, job.ID, ResultSearchDetails, c.resultURL(job.ID, ResultSearchDetails)); err != nil {
		return err
	}
	logger.Debug("Search job %s matched %d node(s) under %s", job.ID, len(matches), root)
	return c.ledger.Complete(ctx, job.ID)
}

func (c *Coordinator) runDataTransfer(ctx context.Context, job *vos.Job) error {
	t := job.Transfer

	if !c.locks.tryAcquire(t.Target, job.ID) {
		// Another transfer holds the node; stay QUEUED for the next sweep.
		return nil
	}

	if err := c.ledger.Start(ctx, job.ID); err != nil {
		c.locks.release(t.Target, job.ID)
		return err
	}
	if err := c.ns.SetBusy(ctx, t.Target, true); err != nil {
		c.releaseTarget(ctx, job.ID, t.Target)
		return c.ledger.Fail(ctx, job.ID, summaryOf(err))
	}

	negotiated := *t
	negotiated.Protocols = append([]vos.Protocol(nil), t.Protocols...)
	_, serverEndpoint := c.tables.protocolsFor(t.Direction)
	if serverEndpoint {
		ep, err := c.endpoints.Allocate(ctx, job.ID, t.Target, c.store.ResolveLocation(t.Target))
		if err != nil {
			c.releaseTarget(ctx, job.ID, t.Target)
			return c.ledger.Fail(ctx, job.ID, summaryOf(err))
		}
		if len(negotiated.Protocols) > 0 {
			negotiated.Protocols[0].Endpoint = c.endpointURL(ep.Token)
		}
	}

	if err := c.attachTransferDetails(ctx, job.ID, &negotiated); err != nil {
		c.releaseTarget(ctx, job.ID, t.Target)
		return c.ledger.Fail(ctx, job.ID, summaryOf(err))
	}

	if !serverEndpoint {
		// Client-mediated delivery: the byte exchange happens against
		// the client's endpoint, outside this control plane. Nothing
		// further to wait for.
		c.releaseTarget(ctx, job.ID, t.Target)
		return c.ledger.Complete(ctx, job.ID)
	}
	return nil
}

func (c *Coordinator) attachTransferDetails(ctx context.Context, jobID string, t *vos.Transfer) error {
	doc, err := vos.MarshalTransfer(t)
	if err != nil {
		return err
	}
	if err := c.store.PutResult(ctx, jobID, vos.ResultTransferDetails, doc); err != nil {
		return err
	}
	return c.ledger.AddResult(ctx, jobID, vos.ResultTransferDetails, c.resultURL(jobID, vos.ResultTransferDetails))
}

// ============================================================================
// Endpoint access
// ============================================================================

// HandleEndpointAccess consumes the endpoint behind a data URL and
// returns it for the protocol handler to act on. Consumption advances
// the owning job to COMPLETED and clears the target's busy flag. An
// invalid, expired, or already-used endpoint yields an error without
// touching job state.
func (c *Coordinator) HandleEndpointAccess(ctx context.Context, token string) (*vos.Endpoint, error) {
	ep, err := c.endpoints.Consume(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := c.ledger.Complete(ctx, ep.JobID); err != nil {
		logger.Error("Failed to complete job %s after endpoint use: %v", ep.JobID, err)
	}
	c.releaseTarget(ctx, ep.JobID, ep.Target)
	return ep, nil
}

// ============================================================================
// Reconciliation
// ============================================================================

// Reconcile inspects one active job for the background sweep: QUEUED
// jobs are run, and EXECUTING jobs are completed or failed according to
// their endpoint's state.
func (c *Coordinator) Reconcile(ctx context.Context, jobID string) error {
	job, err := c.ledger.Get(ctx, jobID)
	if err != nil {
		if vos.IsFault(err, vos.FaultNotFound) {
			return nil
		}
		return err
	}

	switch job.Phase {
	case vos.PhaseQueued:
		return c.RunJob(ctx, jobID)

	case vos.PhaseExecuting:
		if job.Transfer == nil || job.Transfer.Direction.IsNodePath() {
			return nil
		}
		ep, err := c.endpoints.ForJob(ctx, jobID)
		if err != nil {
			return nil
		}
		if ep.Completed != nil {
			// Backstop: the access handler normally completes the job.
			if err := c.ledger.Complete(ctx, jobID); err != nil {
				return err
			}
			c.releaseTarget(ctx, jobID, ep.Target)
			return nil
		}
		if c.endpoints.Expired(ep) {
			if err := c.ledger.Fail(ctx, jobID, vos.SummaryInternalFault); err != nil {
				return err
			}
			c.releaseTarget(ctx, jobID, ep.Target)
			logger.Warn("Job %s failed: endpoint expired before use", jobID)
		}
	}
	return nil
}

// releaseTarget clears the busy flag and the node claim for a finished
// job.
func (c *Coordinator) releaseTarget(ctx context.Context, jobID, target string) {
	if err := c.ns.SetBusy(ctx, target, false); err != nil && !vos.IsFault(err, vos.FaultNotFound) {
		logger.Warn("Failed to clear busy flag on %s: %v", target, err)
	}
	c.locks.release(target, jobID)
}

func (c *Coordinator) endpointURL(token string) string {
	return c.baseURL + "/data/" + token
}

func (c *Coordinator) resultURL(jobID, resultID string) string {
	return c.baseURL + "/transfers/" + jobID + "/results/" + resultID
}

func summaryOf(err error) string {
	if e, ok := err.(*vos.Error); ok {
		return e.Summary
	}
	return vos.SummaryInternalFault
}
