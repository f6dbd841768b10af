package api

import (
	"encoding/xml"
	"net/http"

	"github.com/voservices/vospace/pkg/vos"
)

// Capability discovery documents. Each lists what the service accepts
// (inbound) and provides (outbound).

type xmlURIRef struct {
	URI string `xml:"uri,attr"`
}

type xmlProtocolsDoc struct {
	XMLName  xml.Name    `xml:"http://www.ivoa.net/xml/VOSpace/v2.0 protocols"`
	Accepts  []xmlURIRef `xml:"accepts>protocol"`
	Provides []xmlURIRef `xml:"provides>protocol"`
}

type xmlViewsDoc struct {
	XMLName  xml.Name    `xml:"http://www.ivoa.net/xml/VOSpace/v2.0 views"`
	Accepts  []xmlURIRef `xml:"accepts>view"`
	Provides []xmlURIRef `xml:"provides>view"`
}

type xmlPropertiesDoc struct {
	XMLName  xml.Name      `xml:"http://www.ivoa.net/xml/VOSpace/v2.0 properties"`
	Contains []xmlPropDecl `xml:"contains>property"`
}

type xmlPropDecl struct {
	URI      string `xml:"uri,attr"`
	ReadOnly bool   `xml:"readOnly,attr"`
}

// handleGetProtocols handles GET /protocols.
//
// Accepted protocols are those the service mints endpoints for; provided
// protocols are those it speaks against client-supplied endpoints.
func (s *Server) handleGetProtocols(w http.ResponseWriter, r *http.Request) {
	t := s.coord.Tables()
	doc := xmlProtocolsDoc{
		Accepts:  refs(dedup(t.ServerGetProtocols, t.ServerPutProtocols)),
		Provides: refs(dedup(t.ClientGetProtocols, t.ClientPutProtocols)),
	}
	s.writeXML(w, doc)
}

// handleGetViews handles GET /views.
func (s *Server) handleGetViews(w http.ResponseWriter, r *http.Request) {
	t := s.coord.Tables()
	doc := xmlViewsDoc{
		Accepts:  refs(t.AcceptsViews),
		Provides: refs(t.ProvidesViews),
	}
	s.writeXML(w, doc)
}

// handleGetProperties handles GET /properties.
func (s *Server) handleGetProperties(w http.ResponseWriter, r *http.Request) {
	var doc xmlPropertiesDoc
	for _, uri := range vos.KnownProperties {
		doc.Contains = append(doc.Contains, xmlPropDecl{
			URI:      uri,
			ReadOnly: vos.ReadOnlyProperties[uri],
		})
	}
	s.writeXML(w, doc)
}

func (s *Server) writeXML(w http.ResponseWriter, doc any) {
	out, err := xml.Marshal(doc)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentTypeXML)
	w.Write(out)
}

func refs(uris []string) []xmlURIRef {
	out := make([]xmlURIRef, 0, len(uris))
	for _, u := range uris {
		out = append(out, xmlURIRef{URI: u})
	}
	return out
}

func dedup(sets ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, set := range sets {
		for _, u := range set {
			if !seen[u] {
				seen[u] = true
				out = append(out, u)
			}
		}
	}
	return out
}
