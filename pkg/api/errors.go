package api

import (
	"errors"
	"net/http"

	"github.com/voservices/vospace/internal/logger"
	"github.com/voservices/vospace/pkg/vos"
)

// faultStatus maps a domain fault to its HTTP status code.
func faultStatus(f vos.Fault) int {
	switch f {
	case vos.FaultNotFound, vos.FaultContainerNotFound:
		return http.StatusNotFound
	case vos.FaultDuplicateNode, vos.FaultSourceNotFound, vos.FaultNodeBusy:
		return http.StatusConflict
	case vos.FaultPermissionDenied:
		return http.StatusForbidden
	case vos.FaultExpired, vos.FaultAlreadyUsed:
		return http.StatusGone
	case vos.FaultInvalidURI, vos.FaultMissingParameter,
		vos.FaultUnsupportedView, vos.FaultUnsupportedProtocol,
		vos.FaultInvalidState:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeError renders an error as a plain-text response with the status
// its fault maps to.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var ve *vos.Error
	if errors.As(err, &ve) {
		http.Error(w, ve.Error(), faultStatus(ve.Fault))
		return
	}
	logger.Error("Internal error: %v", err)
	http.Error(w, "Internal Fault", http.StatusInternalServerError)
}
