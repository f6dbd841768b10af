package vos

import (
	"encoding/xml"
	"fmt"
	"strconv"
)

// XML namespace URIs used by the wire documents.
const (
	NamespaceVOSpace = "http://www.ivoa.net/xml/VOSpace/v2.0"
	NamespaceUWS     = "http://www.ivoa.net/xml/UWS/v1.0"
	NamespaceXLink   = "http://www.w3.org/1999/xlink"
	NamespaceXSI     = "http://www.w3.org/2001/XMLSchema-instance"
)

// ============================================================================
// Node documents
// ============================================================================

// xmlNode is the wire shape of a node document. It carries the superset of
// per-type elements; absent sections are omitted on output.
type xmlNode struct {
	XMLName      xml.Name       `xml:"http://www.ivoa.net/xml/VOSpace/v2.0 node"`
	URI          string         `xml:"uri,attr"`
	Type         string         `xml:"http://www.w3.org/2001/XMLSchema-instance type,attr"`
	Busy         string         `xml:"busy,attr,omitempty"`
	Properties   *xmlProperties `xml:"properties"`
	Capabilities *xmlCapSet     `xml:"capabilities"`
	Accepts      *xmlViewSet    `xml:"accepts"`
	Provides     *xmlViewSet    `xml:"provides"`
	Nodes        *xmlNodeRefs   `xml:"nodes"`
	Target       string         `xml:"target,omitempty"`
}

type xmlProperties struct {
	Properties []xmlProperty `xml:"property"`
}

type xmlProperty struct {
	URI   string `xml:"uri,attr"`
	Nil   string `xml:"http://www.w3.org/2001/XMLSchema-instance nil,attr,omitempty"`
	Value string `xml:",chardata"`
}

type xmlCapSet struct {
	Capabilities []xmlURIRef `xml:"capability"`
}

type xmlViewSet struct {
	Views []xmlURIRef `xml:"view"`
}

type xmlNodeRefs struct {
	Nodes []xmlURIRef `xml:"node"`
}

type xmlURIRef struct {
	URI string `xml:"uri,attr"`
}

// MarshalNode renders a node document.
func MarshalNode(n *Node) ([]byte, error) {
	doc := xmlNode{
		URI:    n.URI,
		Type:   string(n.Type),
		Target: n.Target,
	}
	if n.Type.IsData() {
		doc.Busy = strconv.FormatBool(n.Busy)
	}
	if len(n.Properties) > 0 {
		props := &xmlProperties{}
		for _, p := range n.Properties {
			wp := xmlProperty{URI: p.URI, Value: p.Value}
			if p.Nil {
				wp.Nil = "true"
			}
			props.Properties = append(props.Properties, wp)
		}
		doc.Properties = props
	}
	if len(n.Capabilities) > 0 {
		caps := &xmlCapSet{}
		for _, c := range n.Capabilities {
			caps.Capabilities = append(caps.Capabilities, xmlURIRef{URI: c})
		}
		doc.Capabilities = caps
	}
	if len(n.Accepts) > 0 {
		doc.Accepts = &xmlViewSet{Views: uriRefs(n.Accepts)}
	}
	if len(n.Provides) > 0 {
		doc.Provides = &xmlViewSet{Views: uriRefs(n.Provides)}
	}
	if n.Type.IsContainer() && len(n.Children) > 0 {
		doc.Nodes = &xmlNodeRefs{Nodes: uriRefs(n.Children)}
	}
	return xml.MarshalIndent(&doc, "", "  ")
}

// UnmarshalNode parses a node document. An unrecognized or absent type
// attribute yields an InvalidURI error.
func UnmarshalNode(data []byte) (*Node, error) {
	var doc xmlNode
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, NewError(FaultInvalidURI, fmt.Sprintf("malformed node document: %v", err), "")
	}
	nt := NodeType(doc.Type)
	if doc.Type == "" {
		nt = TypeNode
	}
	if !nt.Valid() {
		return nil, NewError(FaultInvalidURI, "unknown node type "+doc.Type, doc.URI)
	}
	n := &Node{
		URI:    doc.URI,
		Type:   nt,
		Target: doc.Target,
	}
	if doc.Busy != "" {
		n.Busy, _ = strconv.ParseBool(doc.Busy)
	}
	if doc.Properties != nil {
		for _, p := range doc.Properties.Properties {
			n.Properties = append(n.Properties, Property{
				URI:   p.URI,
				Value: p.Value,
				Nil:   p.Nil == "true",
			})
		}
	}
	if doc.Capabilities != nil {
		for _, c := range doc.Capabilities.Capabilities {
			n.Capabilities = append(n.Capabilities, c.URI)
		}
	}
	if doc.Accepts != nil {
		n.Accepts = refURIs(doc.Accepts.Views)
	}
	if doc.Provides != nil {
		n.Provides = refURIs(doc.Provides.Views)
	}
	if doc.Nodes != nil {
		n.Children = refURIs(doc.Nodes.Nodes)
	}
	return n, nil
}

func uriRefs(uris []string) []xmlURIRef {
	out := make([]xmlURIRef, len(uris))
	for i, u := range uris {
		out[i] = xmlURIRef{URI: u}
	}
	return out
}

func refURIs(refs []xmlURIRef) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.URI
	}
	return out
}

// xmlNodeList is the wire shape of a flat node listing (search results).
type xmlNodeList struct {
	XMLName xml.Name    `xml:"http://www.ivoa.net/xml/VOSpace/v2.0 nodes"`
	Nodes   []xmlURIRef `xml:"node"`
}

// MarshalNodeList renders a flat listing of node URIs.
func MarshalNodeList(uris []string) ([]byte, error) {
	return xml.MarshalIndent(&xmlNodeList{Nodes: uriRefs(uris)}, "", "  ")
}

// UnmarshalNodeList parses a flat node listing.
func UnmarshalNodeList(data []byte) ([]string, error) {
	var doc xmlNodeList
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, NewError(FaultInvalidURI, fmt.Sprintf("malformed node list: %v", err), "")
	}
	return refURIs(doc.Nodes), nil
}

// ============================================================================
// Transfer documents
// ============================================================================

type xmlTransfer struct {
	XMLName   xml.Name      `xml:"http://www.ivoa.net/xml/VOSpace/v2.0 transfer"`
	Target    string        `xml:"target"`
	Direction string        `xml:"direction"`
	View      *xmlView      `xml:"view"`
	Protocols []xmlProtocol `xml:"protocol"`
	KeepBytes *bool         `xml:"keepBytes"`
}

type xmlView struct {
	URI      string     `xml:"uri,attr"`
	Original string     `xml:"original,attr,omitempty"`
	Params   []xmlParam `xml:"param"`
}

type xmlProtocol struct {
	URI      string     `xml:"uri,attr"`
	Endpoint string     `xml:"endpoint,omitempty"`
	Params   []xmlParam `xml:"param"`
}

type xmlParam struct {
	URI   string `xml:"uri,attr"`
	Value string `xml:",chardata"`
}

// MarshalTransfer renders a transfer document.
func MarshalTransfer(t *Transfer) ([]byte, error) {
	doc := xmlTransfer{
		Target:    t.Target,
		Direction: string(t.Direction),
	}
	if t.View != nil {
		v := &xmlView{URI: t.View.URI}
		if t.View.Original {
			v.Original = "true"
		}
		for k, val := range t.View.Params {
			v.Params = append(v.Params, xmlParam{URI: k, Value: val})
		}
		doc.View = v
	}
	for _, p := range t.Protocols {
		wp := xmlProtocol{URI: p.URI, Endpoint: p.Endpoint}
		for k, val := range p.Params {
			wp.Params = append(wp.Params, xmlParam{URI: k, Value: val})
		}
		doc.Protocols = append(doc.Protocols, wp)
	}
	if t.Direction.IsNodePath() {
		kb := t.KeepBytes
		doc.KeepBytes = &kb
	}
	return xml.MarshalIndent(&doc, "", "  ")
}

// UnmarshalTransfer parses a transfer document. Target and direction are
// required.
func UnmarshalTransfer(data []byte) (*Transfer, error) {
	var doc xmlTransfer
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, NewError(FaultInvalidURI, fmt.Sprintf("malformed transfer document: %v", err), "")
	}
	if doc.Target == "" {
		return nil, NewError(FaultMissingParameter, "transfer has no target", "")
	}
	if doc.Direction == "" {
		return nil, NewError(FaultMissingParameter, "transfer has no direction", doc.Target)
	}
	t := &Transfer{
		Target:    doc.Target,
		Direction: Direction(doc.Direction),
	}
	if doc.View != nil {
		t.View = &View{
			URI:      doc.View.URI,
			Original: doc.View.Original == "true",
			Params:   paramMap(doc.View.Params),
		}
	}
	for _, p := range doc.Protocols {
		t.Protocols = append(t.Protocols, Protocol{
			URI:      p.URI,
			Endpoint: p.Endpoint,
			Params:   paramMap(p.Params),
		})
	}
	if doc.KeepBytes != nil {
		t.KeepBytes = *doc.KeepBytes
	}
	return t, nil
}

func paramMap(params []xmlParam) map[string]string {
	if len(params) == 0 {
		return nil
	}
	out := make(map[string]string, len(params))
	for _, p := range params {
		out[p.URI] = p.Value
	}
	return out
}
