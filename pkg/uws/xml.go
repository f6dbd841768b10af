package uws

import (
	"encoding/xml"
	"fmt"
	"sort"
	"time"

	"github.com/voservices/vospace/pkg/vos"
)

// Job document codec. Timestamps are rendered in UTC RFC 3339; absent
// times render as empty elements, matching the UWS convention of
// nillable time fields.

type xmlJob struct {
	XMLName           xml.Name      `xml:"http://www.ivoa.net/xml/UWS/v1.0 job"`
	JobID             string        `xml:"jobId"`
	OwnerID           string        `xml:"ownerId"`
	Phase             string        `xml:"phase"`
	StartTime         string        `xml:"startTime"`
	EndTime           string        `xml:"endTime"`
	ExecutionDuration int           `xml:"executionDuration"`
	Parameters        *xmlParamSet  `xml:"parameters"`
	Results           *xmlResultSet `xml:"results"`
	ErrorSummary      *xmlErrorSum  `xml:"errorSummary"`
	JobInfo           *xmlJobInfo   `xml:"jobInfo"`
}

type xmlParamSet struct {
	Parameters []xmlJobParam `xml:"parameter"`
}

type xmlJobParam struct {
	ID    string `xml:"id,attr"`
	Value string `xml:",chardata"`
}

type xmlResultSet struct {
	Results []xmlResult `xml:"result"`
}

type xmlResult struct {
	ID   string `xml:"id,attr"`
	Href string `xml:"http://www.w3.org/1999/xlink href,attr"`
}

type xmlErrorSum struct {
	Message string `xml:"message"`
}

type xmlJobInfo struct {
	Inner []byte `xml:",innerxml"`
}

// MarshalJob renders a UWS job document. The job's transfer, when
// present, is embedded as the jobInfo payload.
func MarshalJob(j *vos.Job) ([]byte, error) {
	doc := xmlJob{
		JobID:             j.ID,
		OwnerID:           j.OwnerID,
		Phase:             string(j.Phase),
		StartTime:         renderTime(j.StartTime),
		EndTime:           renderTime(j.EndTime),
		ExecutionDuration: j.ExecutionDuration,
	}
	if len(j.Parameters) > 0 {
		ps := &xmlParamSet{}
		for _, id := range sortedKeys(j.Parameters) {
			ps.Parameters = append(ps.Parameters, xmlJobParam{ID: id, Value: j.Parameters[id]})
		}
		doc.Parameters = ps
	}
	if len(j.ResultOrder) > 0 {
		rs := &xmlResultSet{}
		for _, id := range j.ResultOrder {
			rs.Results = append(rs.Results, xmlResult{ID: id, Href: j.Results[id]})
		}
		doc.Results = rs
	}
	if j.ErrorSummary != "" {
		doc.ErrorSummary = &xmlErrorSum{Message: j.ErrorSummary}
	}
	if j.Transfer != nil {
		inner, err := vos.MarshalTransfer(j.Transfer)
		if err != nil {
			return nil, fmt.Errorf("marshal job transfer: %w", err)
		}
		doc.JobInfo = &xmlJobInfo{Inner: inner}
	}
	return xml.MarshalIndent(&doc, "", "  ")
}

// UnmarshalJob parses a UWS job document.
func UnmarshalJob(data []byte) (*vos.Job, error) {
	var doc xmlJob
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("malformed job document: %w", err)
	}
	j := &vos.Job{
		ID:                doc.JobID,
		OwnerID:           doc.OwnerID,
		Phase:             vos.Phase(doc.Phase),
		ExecutionDuration: doc.ExecutionDuration,
		StartTime:         parseTime(doc.StartTime),
		EndTime:           parseTime(doc.EndTime),
	}
	if doc.Parameters != nil {
		j.Parameters = make(map[string]string, len(doc.Parameters.Parameters))
		for _, p := range doc.Parameters.Parameters {
			j.Parameters[p.ID] = p.Value
		}
	}
	if doc.Results != nil {
		for _, r := range doc.Results.Results {
			j.AddResult(r.ID, r.Href)
		}
	}
	if doc.ErrorSummary != nil {
		j.ErrorSummary = doc.ErrorSummary.Message
	}
	if doc.JobInfo != nil && len(doc.JobInfo.Inner) > 0 {
		tr, err := vos.UnmarshalTransfer(doc.JobInfo.Inner)
		if err != nil {
			return nil, fmt.Errorf("malformed jobInfo payload: %w", err)
		}
		j.Transfer = tr
	}
	return j, nil
}

func renderTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
