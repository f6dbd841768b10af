package transfer

import "github.com/voservices/vospace/pkg/vos"

// Tables are the server's static capability declarations: which views it
// accepts and provides, and which protocols it speaks on each side of a
// transfer.
//
// Server protocols are those for which this service mints an endpoint
// (the client contacts us). Client protocols are those where the client
// supplies a delivery endpoint and the byte exchange happens against it.
type Tables struct {
	// AcceptsViews are the views acceptable for data flowing into the
	// space.
	AcceptsViews []string

	// ProvidesViews are the views available for data flowing out.
	ProvidesViews []string

	// ServerGetProtocols serve pullFromVoSpace (client downloads from
	// a minted endpoint).
	ServerGetProtocols []string

	// ServerPutProtocols serve pushToVoSpace (client uploads to a
	// minted endpoint).
	ServerPutProtocols []string

	// ClientGetProtocols serve pullToVoSpace (we fetch from a
	// client-supplied endpoint).
	ClientGetProtocols []string

	// ClientPutProtocols serve pushFromVoSpace (we deliver to a
	// client-supplied endpoint).
	ClientPutProtocols []string
}

// DefaultTables returns the standard capability tables: HTTP GET/PUT on
// both sides, any view accepted, binary and default views provided.
func DefaultTables() Tables {
	return Tables{
		AcceptsViews:       []string{vos.ViewAny},
		ProvidesViews:      []string{vos.ViewBinary, vos.ViewDefault, vos.ViewVOTable},
		ServerGetProtocols: []string{vos.ProtocolHTTPGet},
		ServerPutProtocols: []string{vos.ProtocolHTTPPut},
		ClientGetProtocols: []string{vos.ProtocolHTTPGet},
		ClientPutProtocols: []string{vos.ProtocolHTTPPut},
	}
}

// protocolsFor returns the candidate protocol table for a direction and
// whether a matching protocol implies a server-minted endpoint.
func (t Tables) protocolsFor(d vos.Direction) (uris []string, serverEndpoint bool) {
	switch d {
	case vos.DirectionPullFrom:
		return t.ServerGetProtocols, true
	case vos.DirectionPushTo:
		return t.ServerPutProtocols, true
	case vos.DirectionPullTo:
		return t.ClientGetProtocols, false
	case vos.DirectionPushFrom:
		return t.ClientPutProtocols, false
	}
	return nil, false
}

// viewsFor returns the view table consulted for a direction.
func (t Tables) viewsFor(d vos.Direction) []string {
	if d.Inbound() {
		return t.AcceptsViews
	}
	return t.ProvidesViews
}

// Protocols lists every protocol URI the service advertises.
func (t Tables) Protocols() []string {
	seen := make(map[string]bool)
	var out []string
	for _, set := range [][]string{
		t.ServerGetProtocols, t.ServerPutProtocols,
		t.ClientGetProtocols, t.ClientPutProtocols,
	} {
		for _, u := range set {
			if !seen[u] {
				seen[u] = true
				out = append(out, u)
			}
		}
	}
	return out
}

// Views lists every view URI the service advertises.
func (t Tables) Views() []string {
	seen := make(map[string]bool)
	var out []string
	for _, set := range [][]string{t.AcceptsViews, t.ProvidesViews} {
		for _, u := range set {
			if !seen[u] {
				seen[u] = true
				out = append(out, u)
			}
		}
	}
	return out
}
