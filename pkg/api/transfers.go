package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/voservices/vospace/pkg/uws"
	"github.com/voservices/vospace/pkg/vos"
)

// handleCreateTransfer handles POST /transfers: the asynchronous UWS
// pattern. The job is created PENDING and the client is redirected to
// its job resource; a later phase request starts it.
func (s *Server) handleCreateTransfer(w http.ResponseWriter, r *http.Request) {
	s.createTransfer(w, r, false)
}

// handleSyncTransfer handles POST /sync: negotiation, job creation, and
// execution in one round trip.
func (s *Server) handleSyncTransfer(w http.ResponseWriter, r *http.Request) {
	s.createTransfer(w, r, true)
}

func (s *Server) createTransfer(w http.ResponseWriter, r *http.Request, runImmediately bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, vos.NewError(vos.FaultInternal, "failed to read request body", ""))
		return
	}
	t, err := vos.UnmarshalTransfer(body)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if err := s.auth.Authorize(r.Context(), callerID(r), OpWrite, t.Target); err != nil {
		s.writeError(w, vos.NewError(vos.FaultPermissionDenied, err.Error(), t.Target))
		return
	}

	job, err := s.coord.CreateTransfer(r.Context(), t, callerID(r), runImmediately)
	if err != nil {
		s.writeError(w, err)
		return
	}
	http.Redirect(w, r, "/transfers/"+job.ID, http.StatusSeeOther)
}

// handleGetJob handles GET /transfers/{jobID}.
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.coord.Ledger().Get(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	doc, err := uws.MarshalJob(job)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentTypeXML)
	w.Write(doc)
}

// handleGetPhase handles GET /transfers/{jobID}/phase.
func (s *Server) handleGetPhase(w http.ResponseWriter, r *http.Request) {
	job, err := s.coord.Ledger().Get(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte(job.Phase))
}

// handleSetPhase handles POST /transfers/{jobID}/phase with a
// PHASE=RUN or PHASE=ABORT form parameter. RUN also kicks the job so
// the client need not wait for the next sweep.
func (s *Server) handleSetPhase(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	if err := r.ParseForm(); err != nil {
		s.writeError(w, vos.NewError(vos.FaultMissingParameter, "malformed form body", jobID))
		return
	}
	var req uws.Request
	switch strings.ToUpper(r.Form.Get("PHASE")) {
	case "RUN":
		req = uws.RequestRun
	case "ABORT":
		req = uws.RequestAbort
	default:
		s.writeError(w, vos.NewError(vos.FaultMissingParameter, "PHASE must be RUN or ABORT", jobID))
		return
	}

	if err := s.coord.Ledger().RequestPhase(r.Context(), jobID, req); err != nil {
		s.writeError(w, err)
		return
	}
	if req == uws.RequestRun {
		if err := s.coord.RunJob(r.Context(), jobID); err != nil {
			s.writeError(w, err)
			return
		}
	}
	http.Redirect(w, r, "/transfers/"+jobID, http.StatusSeeOther)
}

// handleGetResult handles GET /transfers/{jobID}/results/{resultID}.
func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	resultID := chi.URLParam(r, "resultID")

	// The job must know the result before the raw document is served.
	job, err := s.coord.Ledger().Get(r.Context(), jobID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if _, ok := job.Results[resultID]; !ok {
		s.writeError(w, vos.NewError(vos.FaultNotFound, "no such result", jobID))
		return
	}

	doc, err := s.coord.Result(r.Context(), jobID, resultID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentTypeXML)
	w.Write(doc)
}

// handleSearch handles POST /searches: a subtree listing job, optionally
// filtered by node type, that completes immediately.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	uri := r.URL.Query().Get("uri")
	if uri == "" {
		uri = s.ns.Root()
	}
	if err := s.auth.Authorize(r.Context(), callerID(r), OpRead, uri); err != nil {
		s.writeError(w, vos.NewError(vos.FaultPermissionDenied, err.Error(), uri))
		return
	}

	nodeType := vos.NodeType(r.URL.Query().Get("type"))
	job, err := s.coord.CreateSearch(r.Context(), callerID(r), uri, nodeType, true)
	if err != nil {
		s.writeError(w, err)
		return
	}

	doc, err := uws.MarshalJob(job)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentTypeXML)
	w.Write(doc)
}
