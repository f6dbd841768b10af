package api

import (
	"io"
	"net/http"

	"github.com/voservices/vospace/pkg/namespace"
	"github.com/voservices/vospace/pkg/vos"
)

const contentTypeXML = "text/xml"

// handleGetNode handles GET /nodes/*.
//
// The detail query parameter shapes the response (min, properties, max;
// max is the default). The special view=data query resolves a data node
// straight to a freshly minted download endpoint.
func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	uri := s.nodeURI(r)
	if err := s.auth.Authorize(r.Context(), callerID(r), OpRead, uri); err != nil {
		s.writeError(w, vos.NewError(vos.FaultPermissionDenied, err.Error(), uri))
		return
	}

	if r.URL.Query().Get("view") == "data" {
		s.redirectToData(w, r, uri)
		return
	}

	detail := namespace.DetailMax
	switch q := r.URL.Query().Get("detail"); q {
	case "", "max":
	case "min":
		detail = namespace.DetailMin
	case "properties":
		detail = namespace.DetailProperties
	default:
		s.writeError(w, vos.NewError(vos.FaultInvalidURI, "unknown detail level "+q, uri))
		return
	}

	node, err := s.ns.Get(r.Context(), uri, detail)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeNode(w, http.StatusOK, node)
}

// redirectToData creates an immediate pull transfer for the node and
// answers with a redirect to its endpoint.
func (s *Server) redirectToData(w http.ResponseWriter, r *http.Request, uri string) {
	t := &vos.Transfer{
		Target:    uri,
		Direction: vos.DirectionPullFrom,
		Protocols: []vos.Protocol{{URI: vos.ProtocolHTTPGet}},
	}
	job, err := s.coord.CreateTransfer(r.Context(), t, callerID(r), true)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if job.Transfer == nil || len(job.Transfer.Protocols) == 0 || job.Transfer.Protocols[0].Endpoint == "" {
		s.writeError(w, vos.NewError(vos.FaultInternal, "no endpoint negotiated", uri))
		return
	}
	http.Redirect(w, r, job.Transfer.Protocols[0].Endpoint, http.StatusSeeOther)
}

// handleCreateNode handles PUT /nodes/*.
func (s *Server) handleCreateNode(w http.ResponseWriter, r *http.Request) {
	uri := s.nodeURI(r)
	if err := s.auth.Authorize(r.Context(), callerID(r), OpWrite, uri); err != nil {
		s.writeError(w, vos.NewError(vos.FaultPermissionDenied, err.Error(), uri))
		return
	}

	doc, err := s.readNode(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	node, err := s.ns.Create(r.Context(), uri, doc)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeNode(w, http.StatusCreated, node)
}

// handleUpdateNode handles POST /nodes/*.
func (s *Server) handleUpdateNode(w http.ResponseWriter, r *http.Request) {
	uri := s.nodeURI(r)
	if err := s.auth.Authorize(r.Context(), callerID(r), OpWrite, uri); err != nil {
		s.writeError(w, vos.NewError(vos.FaultPermissionDenied, err.Error(), uri))
		return
	}

	doc, err := s.readNode(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	node, err := s.ns.Update(r.Context(), uri, doc)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeNode(w, http.StatusOK, node)
}

// handleDeleteNode handles DELETE /nodes/*.
func (s *Server) handleDeleteNode(w http.ResponseWriter, r *http.Request) {
	uri := s.nodeURI(r)
	if err := s.auth.Authorize(r.Context(), callerID(r), OpWrite, uri); err != nil {
		s.writeError(w, vos.NewError(vos.FaultPermissionDenied, err.Error(), uri))
		return
	}

	if err := s.ns.Delete(r.Context(), uri); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) readNode(r *http.Request) (*vos.Node, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, vos.NewError(vos.FaultInternal, "failed to read request body", "")
	}
	if len(body) == 0 {
		return nil, vos.NewError(vos.FaultMissingParameter, "request has no node document", "")
	}
	return vos.UnmarshalNode(body)
}

func (s *Server) writeNode(w http.ResponseWriter, status int, node *vos.Node) {
	doc, err := vos.MarshalNode(node)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentTypeXML)
	w.WriteHeader(status)
	w.Write(doc)
}
