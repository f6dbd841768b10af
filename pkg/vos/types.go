// Package vos defines the core VOSpace domain model: node types, properties,
// views, protocols, and transfer documents. These are the values that flow
// between the namespace service, the job ledger, and the transfer coordinator.
package vos

import "strings"

// ============================================================================
// Node types
// ============================================================================

// NodeType discriminates the node variants of the namespace.
//
// A single Node record carries the superset of per-type fields; NodeType
// determines which of them are meaningful.
type NodeType string

const (
	TypeNode                 NodeType = "vos:Node"
	TypeDataNode             NodeType = "vos:DataNode"
	TypeContainerNode        NodeType = "vos:ContainerNode"
	TypeUnstructuredDataNode NodeType = "vos:UnstructuredDataNode"
	TypeStructuredDataNode   NodeType = "vos:StructuredDataNode"
	TypeLinkNode             NodeType = "vos:LinkNode"
)

// IsData reports whether t is DataNode or one of its subtypes.
func (t NodeType) IsData() bool {
	switch t {
	case TypeDataNode, TypeUnstructuredDataNode, TypeStructuredDataNode:
		return true
	}
	return false
}

// IsContainer reports whether t is a ContainerNode.
func (t NodeType) IsContainer() bool {
	return t == TypeContainerNode
}

// Valid reports whether t is one of the known node types.
func (t NodeType) Valid() bool {
	switch t {
	case TypeNode, TypeDataNode, TypeContainerNode,
		TypeUnstructuredDataNode, TypeStructuredDataNode, TypeLinkNode:
		return true
	}
	return false
}

// ============================================================================
// Reserved names
// ============================================================================

const (
	// AutoName is the reserved terminal path segment requesting a
	// server-generated unique name.
	AutoName = ".auto"

	// NullName is the reserved terminal path segment requesting discard
	// semantics on move.
	NullName = ".null"
)

// ============================================================================
// Properties
// ============================================================================

// Property is a single node property. Properties are kept as an ordered
// slice rather than a map so document order survives a round trip.
//
// Nil marks an explicit deletion marker in a merge document: a property
// whose Nil flag is set removes the property of the same URI from the node.
type Property struct {
	URI   string
	Value string
	Nil   bool
}

// Properties is an ordered property list with map-like accessors.
type Properties []Property

// Get returns the value of the property with the given URI and whether it
// is present.
func (ps Properties) Get(uri string) (string, bool) {
	for _, p := range ps {
		if p.URI == uri {
			return p.Value, true
		}
	}
	return "", false
}

// Set overwrites the property with the given URI, appending it if absent.
// The receiver slice is returned.
func (ps Properties) Set(uri, value string) Properties {
	for i := range ps {
		if ps[i].URI == uri {
			ps[i].Value = value
			ps[i].Nil = false
			return ps
		}
	}
	return append(ps, Property{URI: uri, Value: value})
}

// Delete removes the property with the given URI. The receiver slice is
// returned.
func (ps Properties) Delete(uri string) Properties {
	for i := range ps {
		if ps[i].URI == uri {
			return append(ps[:i], ps[i+1:]...)
		}
	}
	return ps
}

// Clone returns a deep copy of the property list.
func (ps Properties) Clone() Properties {
	if ps == nil {
		return nil
	}
	out := make(Properties, len(ps))
	copy(out, ps)
	return out
}

// ============================================================================
// Node
// ============================================================================

// Node is one entry of the hierarchical namespace.
//
// The record is a tagged union over the VOSpace node variants. Fields not
// applicable to the node's type are left zero:
//
//   - Busy, Accepts, Provides apply to DataNode and its subtypes
//   - Children applies to ContainerNode and is materialized on read,
//     never stored
//   - Target applies to LinkNode
type Node struct {
	// URI is the full node identifier, e.g. "vos://example.org!vospace/a/b".
	URI string

	// Type discriminates which optional fields below are meaningful.
	Type NodeType

	// Busy is true while a transfer targeting this node is in flight.
	Busy bool

	// Properties is the ordered property list.
	Properties Properties

	// Capabilities is the ordered list of capability URIs.
	Capabilities []string

	// Accepts and Provides are the view URIs this node accepts for upload
	// and provides for download.
	Accepts  []string
	Provides []string

	// Children holds the immediate child URIs of a container, in order.
	Children []string

	// Target is the link destination of a LinkNode.
	Target string
}

// Name returns the final path segment of the node's URI.
func (n *Node) Name() string {
	return PathBase(n.URI)
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	out := *n
	out.Properties = n.Properties.Clone()
	out.Capabilities = append([]string(nil), n.Capabilities...)
	out.Accepts = append([]string(nil), n.Accepts...)
	out.Provides = append([]string(nil), n.Provides...)
	out.Children = append([]string(nil), n.Children...)
	return &out
}

// PathBase returns the final segment of a node URI.
func PathBase(uri string) string {
	uri = strings.TrimSuffix(uri, "/")
	if i := strings.LastIndex(uri, "/"); i >= 0 {
		return uri[i+1:]
	}
	return uri
}

// PathParent returns the URI with the final segment removed, or "" if the
// URI has no parent segment.
func PathParent(uri string) string {
	uri = strings.TrimSuffix(uri, "/")
	if i := strings.LastIndex(uri, "/"); i > 0 {
		return uri[:i]
	}
	return ""
}

// ============================================================================
// Views and protocols
// ============================================================================

// View identifies a data representation requested for or offered by a
// transfer.
type View struct {
	URI      string
	Params   map[string]string
	Original bool
}

// Protocol identifies a delivery mechanism for a transfer. Endpoint is
// filled by the server (or by the client for client-supplied delivery).
type Protocol struct {
	URI      string
	Endpoint string
	Params   map[string]string
}

// Well-known view and protocol URIs.
const (
	ViewAny     = "ivo://ivoa.net/vospace/core#anyview"
	ViewBinary  = "ivo://ivoa.net/vospace/core#binaryview"
	ViewDefault = "ivo://ivoa.net/vospace/core#defaultview"
	ViewVOTable = "ivo://ivoa.net/vospace/core#votable"

	ProtocolHTTPGet = "ivo://ivoa.net/vospace/core#httpget"
	ProtocolHTTPPut = "ivo://ivoa.net/vospace/core#httpput"
)

// ============================================================================
// Standard properties
// ============================================================================

// Standard property URIs from the VOSpace core vocabulary.
const (
	PropTitle          = "ivo://ivoa.net/vospace/core#title"
	PropCreator        = "ivo://ivoa.net/vospace/core#creator"
	PropSubject        = "ivo://ivoa.net/vospace/core#subject"
	PropDescription    = "ivo://ivoa.net/vospace/core#description"
	PropPublisher      = "ivo://ivoa.net/vospace/core#publisher"
	PropContributor    = "ivo://ivoa.net/vospace/core#contributor"
	PropDate           = "ivo://ivoa.net/vospace/core#date"
	PropType           = "ivo://ivoa.net/vospace/core#type"
	PropFormat         = "ivo://ivoa.net/vospace/core#format"
	PropIdentifier     = "ivo://ivoa.net/vospace/core#identifier"
	PropSource         = "ivo://ivoa.net/vospace/core#source"
	PropLanguage       = "ivo://ivoa.net/vospace/core#language"
	PropRelation       = "ivo://ivoa.net/vospace/core#relation"
	PropCoverage       = "ivo://ivoa.net/vospace/core#coverage"
	PropRights         = "ivo://ivoa.net/vospace/core#rights"
	PropAvailableSpace = "ivo://ivoa.net/vospace/core#availableSpace"
	PropLength         = "ivo://ivoa.net/vospace/core#length"
)

// ReadOnlyProperties lists the property URIs a client may never set.
var ReadOnlyProperties = map[string]bool{
	PropAvailableSpace: true,
}

// KnownProperties lists the property URIs the service advertises.
var KnownProperties = []string{
	PropTitle, PropCreator, PropSubject, PropDescription, PropPublisher,
	PropContributor, PropDate, PropType, PropFormat, PropIdentifier,
	PropSource, PropLanguage, PropRelation, PropCoverage, PropRights,
	PropAvailableSpace,
}

// ============================================================================
// Transfers
// ============================================================================

// Direction is a transfer direction. Besides the four well-known values
// it may hold a destination node URI, meaning move or copy.
type Direction string

const (
	DirectionPushTo   Direction = "pushToVoSpace"
	DirectionPullTo   Direction = "pullToVoSpace"
	DirectionPullFrom Direction = "pullFromVoSpace"
	DirectionPushFrom Direction = "pushFromVoSpace"
)

// IsNodePath reports whether d names a destination node instead of one of
// the four standard directions.
func (d Direction) IsNodePath() bool {
	switch d {
	case DirectionPushTo, DirectionPullTo, DirectionPullFrom, DirectionPushFrom:
		return false
	}
	return d != ""
}

// Inbound reports whether the direction moves bytes into the space.
func (d Direction) Inbound() bool {
	return d == DirectionPushTo || d == DirectionPullTo
}

// Outbound reports whether the direction moves bytes out of the space.
func (d Direction) Outbound() bool {
	return d == DirectionPullFrom || d == DirectionPushFrom
}

// Transfer is the client-supplied document describing a data movement.
// It is never persisted standalone: it travels as a job's jobInfo payload.
type Transfer struct {
	Target    string
	Direction Direction
	View      *View
	KeepBytes bool
	Protocols []Protocol
}
