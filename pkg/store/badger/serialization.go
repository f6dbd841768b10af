package badger

import (
	"encoding/json"
	"fmt"

	"github.com/voservices/vospace/pkg/vos"
)

// Serialization
// =============
//
// All structured records are stored as JSON. JSON is not the most compact
// encoding, but records here are small (nodes, jobs, endpoints) and the
// format keeps the database inspectable with standard tooling.

func encodeNode(n *vos.Node) ([]byte, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("encode node %s: %w", n.URI, err)
	}
	return data, nil
}

func decodeNode(data []byte) (*vos.Node, error) {
	var n vos.Node
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("decode node: %w", err)
	}
	return &n, nil
}

func encodeJob(j *vos.Job) ([]byte, error) {
	data, err := json.Marshal(j)
	if err != nil {
		return nil, fmt.Errorf("encode job %s: %w", j.ID, err)
	}
	return data, nil
}

func decodeJob(data []byte) (*vos.Job, error) {
	var j vos.Job
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	return &j, nil
}

func encodeEndpoint(ep *vos.Endpoint) ([]byte, error) {
	data, err := json.Marshal(ep)
	if err != nil {
		return nil, fmt.Errorf("encode endpoint %s: %w", ep.Token, err)
	}
	return data, nil
}

func decodeEndpoint(data []byte) (*vos.Endpoint, error) {
	var ep vos.Endpoint
	if err := json.Unmarshal(data, &ep); err != nil {
		return nil, fmt.Errorf("decode endpoint: %w", err)
	}
	return &ep, nil
}
