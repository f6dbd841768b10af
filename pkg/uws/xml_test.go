package uws

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voservices/vospace/pkg/vos"
)

func TestJobDocumentRoundTrip(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	j := &vos.Job{
		ID:        "abc123",
		OwnerID:   "alice",
		Phase:     vos.PhaseExecuting,
		StartTime: &start,
		Parameters: map[string]string{
			"PHASE": "RUN",
		},
		Transfer: &vos.Transfer{
			Target:    "vos://example.org!vospace/c/f",
			Direction: vos.DirectionPullFrom,
			Protocols: []vos.Protocol{{URI: vos.ProtocolHTTPGet}},
		},
	}
	j.AddResult(vos.ResultTransferDetails, "http://example.org/transfers/abc123/results/transferDetails")

	data, err := MarshalJob(j)
	require.NoError(t, err)

	got, err := UnmarshalJob(data)
	require.NoError(t, err)

	assert.Equal(t, j.ID, got.ID)
	assert.Equal(t, j.OwnerID, got.OwnerID)
	assert.Equal(t, vos.PhaseExecuting, got.Phase)
	require.NotNil(t, got.StartTime)
	assert.True(t, got.StartTime.Equal(start))
	assert.Nil(t, got.EndTime)
	assert.Equal(t, "RUN", got.Parameters["PHASE"])
	assert.Equal(t, j.Results, got.Results)
	require.NotNil(t, got.Transfer)
	assert.Equal(t, vos.DirectionPullFrom, got.Transfer.Direction)
}

func TestJobDocumentCarriesErrorSummary(t *testing.T) {
	j := &vos.Job{
		ID:           "abc123",
		Phase:        vos.PhaseError,
		ErrorSummary: vos.SummaryInternalFault,
	}

	data, err := MarshalJob(j)
	require.NoError(t, err)

	got, err := UnmarshalJob(data)
	require.NoError(t, err)
	assert.Equal(t, vos.SummaryInternalFault, got.ErrorSummary)
}

func TestMalformedJobInfoIsAnError(t *testing.T) {
	doc := `<uws:job xmlns:uws="http://www.ivoa.net/xml/UWS/v1.0">
  <uws:jobId>abc123</uws:jobId>
  <uws:phase>PENDING</uws:phase>
  <uws:jobInfo>not a transfer document</uws:jobInfo>
</uws:job>`

	_, err := UnmarshalJob([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jobInfo")
}
