package api

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/voservices/vospace/internal/logger"
)

// handleDataGet handles GET /data/{token}: consumes the endpoint and
// streams the node's bytes out.
func (s *Server) handleDataGet(w http.ResponseWriter, r *http.Request) {
	ep, err := s.coord.HandleEndpointAccess(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	rc, err := s.backend.Read(r.Context(), ep.Location)
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	if n, err := io.Copy(w, rc); err != nil {
		// Headers are gone; all we can do is log the broken stream.
		logger.Warn("Download of %s aborted after %d bytes: %v", ep.Target, n, err)
	}
}

// handleDataPut handles PUT /data/{token}: consumes the endpoint and
// streams the request body into the node.
func (s *Server) handleDataPut(w http.ResponseWriter, r *http.Request) {
	ep, err := s.coord.HandleEndpointAccess(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	n, err := s.backend.Write(r.Context(), ep.Location, r.Body)
	if err != nil {
		s.writeError(w, err)
		return
	}

	logger.Info("Uploaded %d bytes to %s", n, ep.Target)
	w.WriteHeader(http.StatusCreated)
}
