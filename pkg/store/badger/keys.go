package badger

// Database Key Namespace Design
// ==============================
//
// BadgerDB is a key-value store, so we use prefixed keys to organize the
// different record types into logical namespaces. This design:
//   - Prevents key collisions between record types
//   - Enables efficient range scans (e.g., all nodes under a container)
//   - Makes the database structure self-documenting
//
// Key Namespace Prefixes:
//
// Record Type       Prefix   Key Format                   Value Type
// =====================================================================
// Nodes             "n:"     n:<nodeURI>                  Node (JSON)
// Jobs              "j:"     j:<jobID>                    Job (JSON)
// Phase Index       "ph:"    ph:<phase>:<jobID>           (empty)
// Endpoints         "e:"     e:<token>                    Endpoint (JSON)
// Job Endpoint      "je:"    je:<jobID>                   token (bytes)
// Results           "r:"     r:<jobID>:<resultID>         document (bytes)
//
// Key Design Rationale:
//
// 1. Nodes (n:)
//    - One entry per node, keyed by the full node URI
//    - Node URIs are hierarchical, so a range scan over "n:<uri>/"
//      visits exactly the subtree rooted at <uri>. Both subtree
//      deletion and child listing are prefix scans; no separate
//      parent/child index is needed.
//
// 2. Jobs (j:)
//    - Point lookup by job id: O(1)
//
// 3. Phase Index (ph:)
//    - One empty entry per job, keyed by current phase
//    - Maintained on every phase change so the reconciler can scan
//      QUEUED/EXECUTING jobs without loading the whole job table
//
// 4. Endpoints (e:) and Job Endpoint (je:)
//    - Point lookups by token and by owning job
//
// 5. Results (r:)
//    - Serialized result documents (transfer details), point lookup

const (
	// prefixNode is the key prefix for node records
	prefixNode = "n:"

	// prefixJob is the key prefix for job records
	prefixJob = "j:"

	// prefixPhase is the key prefix for the job phase index
	prefixPhase = "ph:"

	// prefixEndpoint is the key prefix for endpoint records
	prefixEndpoint = "e:"

	// prefixJobEndpoint is the key prefix for the job-to-endpoint mapping
	prefixJobEndpoint = "je:"

	// prefixResult is the key prefix for result documents
	prefixResult = "r:"
)

// keyNode generates a key for a node record.
//
// Format: "n:<nodeURI>"
func keyNode(uri string) []byte {
	return []byte(prefixNode + uri)
}

// keyNodeSubtree generates the prefix covering every node strictly below
// the given URI.
//
// Format: "n:<nodeURI>/"
func keyNodeSubtree(uri string) []byte {
	return []byte(prefixNode + uri + "/")
}

// keyJob generates a key for a job record.
//
// Format: "j:<jobID>"
func keyJob(id string) []byte {
	return []byte(prefixJob + id)
}

// keyPhase generates a key for the phase index entry of a job.
//
// Format: "ph:<phase>:<jobID>"
func keyPhase(phase, jobID string) []byte {
	return []byte(prefixPhase + phase + ":" + jobID)
}

// keyPhasePrefix generates the prefix for scanning all jobs in a phase.
//
// Format: "ph:<phase>:"
func keyPhasePrefix(phase string) []byte {
	return []byte(prefixPhase + phase + ":")
}

// keyEndpoint generates a key for an endpoint record.
//
// Format: "e:<token>"
func keyEndpoint(token string) []byte {
	return []byte(prefixEndpoint + token)
}

// keyJobEndpoint generates a key for the job-to-endpoint mapping.
//
// Format: "je:<jobID>"
func keyJobEndpoint(jobID string) []byte {
	return []byte(prefixJobEndpoint + jobID)
}

// keyResult generates a key for a result document.
//
// Format: "r:<jobID>:<resultID>"
func keyResult(jobID, resultID string) []byte {
	return []byte(prefixResult + jobID + ":" + resultID)
}
