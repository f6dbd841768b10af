package vos

// Error represents a domain error from namespace, job, or transfer
// operations.
//
// These are business errors (node not found, duplicate URI, unsupported
// protocol) as opposed to infrastructure errors (disk failure, network
// failure). The transport layer translates Fault codes to HTTP status
// codes; the Summary string doubles as a job's errorSummary when a
// failure happens after the creating request has returned.
type Error struct {
	// Fault is the error category
	Fault Fault

	// Summary is the short standard summary for this fault
	Summary string

	// Message is a human-readable error description
	Message string

	// Path is the node URI related to the error (if applicable)
	Path string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Path != "" {
		return e.Message + ": " + e.Path
	}
	return e.Message
}

// Fault represents the category of a domain error.
type Fault int

const (
	// FaultNotFound indicates the requested node, job, or endpoint
	// doesn't exist
	FaultNotFound Fault = iota

	// FaultContainerNotFound indicates a node's parent container doesn't
	// exist
	FaultContainerNotFound

	// FaultSourceNotFound indicates a transfer source node doesn't exist.
	// Reported as a conflict, not a plain not-found: a missing transfer
	// source is a 409 while a missing node on a plain read is a 404
	FaultSourceNotFound

	// FaultDuplicateNode indicates a node with the requested URI already
	// exists
	FaultDuplicateNode

	// FaultPermissionDenied indicates the principal may not perform the
	// operation, or a read-only property was supplied by a client
	FaultPermissionDenied

	// FaultInvalidURI indicates a malformed or mismatched node URI
	FaultInvalidURI

	// FaultMissingParameter indicates a required request parameter was
	// absent
	FaultMissingParameter

	// FaultUnsupportedView indicates the requested view is not in the
	// service's advertised tables
	FaultUnsupportedView

	// FaultUnsupportedProtocol indicates none of the requested protocols
	// is advertised by the service
	FaultUnsupportedProtocol

	// FaultInvalidState indicates an illegal job phase transition
	FaultInvalidState

	// FaultExpired indicates an endpoint outlived its TTL
	FaultExpired

	// FaultAlreadyUsed indicates a single-use endpoint was consumed before
	FaultAlreadyUsed

	// FaultNodeBusy indicates a transfer is already in flight against the
	// node
	FaultNodeBusy

	// FaultInternal indicates an unexpected backing-store failure
	FaultInternal
)

// Standard error summaries. These strings appear verbatim in job error
// summaries and fault documents.
const (
	SummaryInternalFault        = "Internal Fault"
	SummaryPermissionDenied     = "Permission Denied"
	SummaryNodeNotFound         = "Node Not Found"
	SummaryDuplicateNode        = "Duplicate Node"
	SummaryInvalidURI           = "Invalid URI"
	SummaryMissingParameter     = "Missing Parameter"
	SummaryViewNotSupported     = "View Not Supported"
	SummaryProtocolNotSupported = "Protocol Not Supported"
)

func (f Fault) summary() string {
	switch f {
	case FaultNotFound, FaultContainerNotFound, FaultSourceNotFound, FaultNodeBusy:
		return SummaryNodeNotFound
	case FaultDuplicateNode:
		return SummaryDuplicateNode
	case FaultPermissionDenied:
		return SummaryPermissionDenied
	case FaultInvalidURI:
		return SummaryInvalidURI
	case FaultMissingParameter:
		return SummaryMissingParameter
	case FaultUnsupportedView:
		return SummaryViewNotSupported
	case FaultUnsupportedProtocol:
		return SummaryProtocolNotSupported
	default:
		return SummaryInternalFault
	}
}

// NewError builds a domain error with the standard summary for the fault.
func NewError(fault Fault, message, path string) *Error {
	return &Error{Fault: fault, Summary: fault.summary(), Message: message, Path: path}
}

// IsFault reports whether err is a domain error with the given fault code.
func IsFault(err error, fault Fault) bool {
	e, ok := err.(*Error)
	return ok && e.Fault == fault
}
