// Package namespace implements the hierarchical node tree: creation,
// retrieval, merge updates, deletion, and structural moves and copies.
//
// The service owns the tree-shape invariants. Every node except the root
// has exactly one parent, the parent must be an existing container, and
// a node URI is unique for the lifetime of the node. Structural mutations
// are serialized so concurrent create/delete/move cannot observe a
// half-applied tree.
package namespace

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voservices/vospace/internal/logger"
	"github.com/voservices/vospace/pkg/backend"
	"github.com/voservices/vospace/pkg/store"
	"github.com/voservices/vospace/pkg/vos"
)

// Detail selects how much of a node document Get materializes.
type Detail string

const (
	DetailMin        Detail = "min"
	DetailProperties Detail = "properties"
	DetailMax        Detail = "max"
)

// Service is the namespace tree.
type Service struct {
	store   store.Store
	backend backend.Backend
	rootURI string

	// structMu serializes tree mutations: structural changes (create,
	// delete, move, copy) and per-node read-modify-write (update, busy
	// marking). Without it a merge could resurrect a node deleted
	// between its read and its write. Plain reads go through the
	// store's own locking.
	structMu sync.Mutex
}

// New creates a namespace service over the given store and backend.
// rootURI is the namespace root, e.g. "vos://example.org!vospace".
// The root container is created if it does not exist.
func New(ctx context.Context, st store.Store, be backend.Backend, rootURI string) (*Service, error) {
	rootURI = strings.TrimSuffix(rootURI, "/")
	s := &Service{store: st, backend: be, rootURI: rootURI}

	exists, err := st.NodeExists(ctx, rootURI)
	if err != nil {
		return nil, fmt.Errorf("check namespace root: %w", err)
	}
	if !exists {
		root := &vos.Node{URI: rootURI, Type: vos.TypeContainerNode}
		if err := st.PutNode(ctx, root); err != nil {
			return nil, fmt.Errorf("create namespace root: %w", err)
		}
		if err := be.CreateContainer(ctx, st.ResolveLocation(rootURI)); err != nil {
			return nil, fmt.Errorf("create root location: %w", err)
		}
		logger.Info("Created namespace root %s", rootURI)
	}
	return s, nil
}

// Root returns the namespace root URI.
func (s *Service) Root() string {
	return s.rootURI
}

// Exists reports whether a node exists at the URI.
func (s *Service) Exists(ctx context.Context, uri string) (bool, error) {
	return s.store.NodeExists(ctx, uri)
}

// GetType returns the type of the node at the URI.
func (s *Service) GetType(ctx context.Context, uri string) (vos.NodeType, error) {
	n, err := s.store.GetNode(ctx, uri)
	if err == store.ErrNotFound {
		return "", vos.NewError(vos.FaultNotFound, "A Node does not exist with the requested URI", uri)
	}
	if err != nil {
		return "", internal(err, uri)
	}
	return n.Type, nil
}

// Children returns the immediate child URIs of a container, in order.
func (s *Service) Children(ctx context.Context, uri string) ([]string, error) {
	n, err := s.store.GetNode(ctx, uri)
	if err == store.ErrNotFound {
		return nil, vos.NewError(vos.FaultNotFound, "A Node does not exist with the requested URI", uri)
	}
	if err != nil {
		return nil, internal(err, uri)
	}
	if !n.Type.IsContainer() {
		return nil, vos.NewError(vos.FaultNotFound, "the node is not a container", uri)
	}
	children, err := s.store.ListChildren(ctx, uri)
	if err != nil {
		return nil, internal(err, uri)
	}
	return children, nil
}

// ============================================================================
// Create
// ============================================================================

// Create adds a node at the given URI. The document's declared URI must
// equal the request URI; a terminal ".auto" segment requests a
// server-generated name. Returns the stored node, whose URI reflects any
// generated name.
func (s *Service) Create(ctx context.Context, uri string, doc *vos.Node) (*vos.Node, error) {
	if doc.URI != "" && doc.URI != uri {
		return nil, vos.NewError(vos.FaultInvalidURI,
			"the document URI does not match the requested URI", uri)
	}
	if doc.Type == "" {
		doc.Type = vos.TypeNode
	}
	if !doc.Type.Valid() {
		return nil, vos.NewError(vos.FaultInvalidURI, "unknown node type "+string(doc.Type), uri)
	}
	for _, p := range doc.Properties {
		if vos.ReadOnlyProperties[p.URI] {
			return nil, vos.NewError(vos.FaultPermissionDenied,
				"User does not have permissions to set a readonly property.", uri)
		}
	}

	if vos.PathBase(uri) == vos.AutoName {
		uri = vos.PathParent(uri) + "/" + GenerateName()
	}

	s.structMu.Lock()
	defer s.structMu.Unlock()

	exists, err := s.store.NodeExists(ctx, uri)
	if err != nil {
		return nil, internal(err, uri)
	}
	if exists {
		return nil, vos.NewError(vos.FaultDuplicateNode,
			"A Node already exists with the requested URI.", uri)
	}

	parent := vos.PathParent(uri)
	if parent == "" || !strings.HasPrefix(uri, s.rootURI+"/") {
		return nil, vos.NewError(vos.FaultInvalidURI, "the URI is not inside this space", uri)
	}
	pn, err := s.store.GetNode(ctx, parent)
	if err == store.ErrNotFound {
		return nil, vos.NewError(vos.FaultContainerNotFound,
			"the parent container does not exist", parent)
	}
	if err != nil {
		return nil, internal(err, parent)
	}
	if !pn.Type.IsContainer() {
		return nil, vos.NewError(vos.FaultContainerNotFound,
			"the parent node is not a container", parent)
	}

	if doc.Type == vos.TypeLinkNode {
		if doc.Target == "" {
			return nil, vos.NewError(vos.FaultInvalidURI, "a link node requires a target", uri)
		}
		// Local targets must resolve; external links may dangle.
		if strings.HasPrefix(doc.Target, s.rootURI+"/") {
			texists, err := s.store.NodeExists(ctx, doc.Target)
			if err != nil {
				return nil, internal(err, doc.Target)
			}
			if !texists {
				return nil, vos.NewError(vos.FaultInvalidURI,
					"the link target does not exist", doc.Target)
			}
		}
	}

	node := s.stampNew(doc, uri)
	if err := s.store.PutNode(ctx, node); err != nil {
		return nil, internal(err, uri)
	}

	loc := s.store.ResolveLocation(uri)
	switch {
	case node.Type.IsContainer():
		err = s.backend.CreateContainer(ctx, loc)
	case node.Type.IsData():
		err = s.backend.Touch(ctx, loc)
	case node.Type == vos.TypeLinkNode && strings.HasPrefix(node.Target, s.rootURI+"/"):
		err = s.backend.CreateLink(ctx, loc, s.store.ResolveLocation(node.Target))
	}
	if err != nil {
		return nil, internal(err, uri)
	}

	logger.Debug("Created node %s (%s)", uri, node.Type)
	return node.Clone(), nil
}

// stampNew builds the stored node from a client document. Accepted and
// provided views, capabilities, and server-managed properties are always
// server-assigned; client values for them are discarded.
func (s *Service) stampNew(doc *vos.Node, uri string) *vos.Node {
	node := &vos.Node{
		URI:        uri,
		Type:       doc.Type,
		Target:     doc.Target,
		Properties: doc.Properties.Clone(),
	}
	node.Properties = node.Properties.Set(vos.PropDate, time.Now().UTC().Format(time.RFC3339))
	if node.Type.IsData() {
		node.Properties = node.Properties.Set(vos.PropLength, "0")
		node.Accepts = []string{vos.ViewAny}
		node.Provides = []string{vos.ViewBinary, vos.ViewDefault}
	}
	return node
}

// ============================================================================
// Get
// ============================================================================

// Get returns the node at the URI. DetailMin strips properties and view
// lists; DetailProperties adds properties; DetailMax additionally
// materializes container children and refreshes the length property from
// the backend.
func (s *Service) Get(ctx context.Context, uri string, detail Detail) (*vos.Node, error) {
	n, err := s.store.GetNode(ctx, uri)
	if err == store.ErrNotFound {
		return nil, vos.NewError(vos.FaultNotFound, "A Node does not exist with the requested URI", uri)
	}
	if err != nil {
		return nil, internal(err, uri)
	}

	switch detail {
	case DetailMin:
		n.Properties = nil
		n.Capabilities = nil
		n.Accepts = nil
		n.Provides = nil
	case DetailProperties:
		// properties only, no children
	default:
		if n.Type.IsContainer() {
			children, err := s.store.ListChildren(ctx, uri)
			if err != nil {
				return nil, internal(err, uri)
			}
			n.Children = children
		}
		if n.Type.IsData() {
			size, err := s.backend.Size(ctx, s.store.ResolveLocation(uri))
			if err == nil {
				n.Properties = n.Properties.Set(vos.PropLength, fmt.Sprintf("%d", size))
			}
		}
	}
	return n, nil
}

// ============================================================================
// Update
// ============================================================================

// Update merges a partial document into the node at the URI. Properties
// in the document overwrite existing ones; a property marked nil is
// removed. The node type may change only among DataNode subtypes.
func (s *Service) Update(ctx context.Context, uri string, doc *vos.Node) (*vos.Node, error) {
	if doc.URI != "" && doc.URI != uri {
		return nil, vos.NewError(vos.FaultInvalidURI,
			"the document URI does not match the requested URI", uri)
	}
	for _, p := range doc.Properties {
		if vos.ReadOnlyProperties[p.URI] {
			return nil, vos.NewError(vos.FaultPermissionDenied,
				"User does not have permissions to set a readonly property.", uri)
		}
	}

	s.structMu.Lock()
	defer s.structMu.Unlock()

	n, err := s.store.GetNode(ctx, uri)
	if err == store.ErrNotFound {
		return nil, vos.NewError(vos.FaultNotFound, "A Node does not exist with the requested URI", uri)
	}
	if err != nil {
		return nil, internal(err, uri)
	}

	if doc.Type != "" && doc.Type != n.Type {
		if !doc.Type.IsData() || !n.Type.IsData() {
			return nil, vos.NewError(vos.FaultInvalidURI,
				fmt.Sprintf("cannot change node type from %s to %s", n.Type, doc.Type), uri)
		}
		n.Type = doc.Type
	}

	for _, p := range doc.Properties {
		if p.Nil {
			n.Properties = n.Properties.Delete(p.URI)
		} else {
			n.Properties = n.Properties.Set(p.URI, p.Value)
		}
	}
	if doc.Type == vos.TypeLinkNode && doc.Target != "" {
		n.Target = doc.Target
	}

	if err := s.store.PutNode(ctx, n); err != nil {
		return nil, internal(err, uri)
	}
	return n.Clone(), nil
}

// ============================================================================
// Delete
// ============================================================================

// Delete removes the node at the URI, recursively when it is a container,
// together with its backing bytes.
func (s *Service) Delete(ctx context.Context, uri string) error {
	s.structMu.Lock()
	defer s.structMu.Unlock()

	return s.deleteLocked(ctx, uri)
}

func (s *Service) deleteLocked(ctx context.Context, uri string) error {
	exists, err := s.store.NodeExists(ctx, uri)
	if err != nil {
		return internal(err, uri)
	}
	if !exists {
		return vos.NewError(vos.FaultNotFound, "A Node does not exist with the requested URI", uri)
	}

	count, err := s.store.DeleteNodes(ctx, uri)
	if err != nil {
		return internal(err, uri)
	}
	if err := s.backend.RemoveBytes(ctx, s.store.ResolveLocation(uri)); err != nil {
		return internal(err, uri)
	}
	logger.Debug("Deleted %d node(s) under %s", count, uri)
	return nil
}

// ============================================================================
// Move and copy
// ============================================================================

// Move relocates the subtree at src to dst and returns the final
// destination URI. A ".null" destination deletes the source and returns
// ""; a ".auto" destination generates a fresh sibling name under the
// source's parent.
func (s *Service) Move(ctx context.Context, src, dst string) (string, error) {
	return s.relocate(ctx, src, dst, false)
}

// Copy duplicates the subtree at src to dst and returns the final
// destination URI. Property lists are copied, so mutating one side never
// affects the other. ".null" is rejected for copies.
func (s *Service) Copy(ctx context.Context, src, dst string) (string, error) {
	return s.relocate(ctx, src, dst, true)
}

func (s *Service) relocate(ctx context.Context, src, dst string, keepBytes bool) (string, error) {
	s.structMu.Lock()
	defer s.structMu.Unlock()

	srcNode, err := s.store.GetNode(ctx, src)
	if err == store.ErrNotFound {
		return "", vos.NewError(vos.FaultNotFound, "A Node does not exist with the requested URI", src)
	}
	if err != nil {
		return "", internal(err, src)
	}

	switch vos.PathBase(dst) {
	case vos.NullName:
		if keepBytes {
			return "", vos.NewError(vos.FaultInvalidURI,
				"cannot copy to the null destination", dst)
		}
		if err := s.deleteLocked(ctx, src); err != nil {
			return "", err
		}
		return "", nil

	case vos.AutoName:
		dst = vos.PathParent(src) + "/" + GenerateName()

	default:
		dstNode, err := s.store.GetNode(ctx, dst)
		switch {
		case err == store.ErrNotFound:
			// plain rename to dst
		case err != nil:
			return "", internal(err, dst)
		case dstNode.Type.IsContainer():
			dst = dst + "/" + vos.PathBase(src)
			exists, err := s.store.NodeExists(ctx, dst)
			if err != nil {
				return "", internal(err, dst)
			}
			if exists {
				return "", vos.NewError(vos.FaultDuplicateNode,
					"A Node already exists with the requested URI.", dst)
			}
		default:
			return "", vos.NewError(vos.FaultDuplicateNode,
				"A Node already exists with the requested URI.", dst)
		}
	}

	if dst == src || strings.HasPrefix(dst, src+"/") {
		return "", vos.NewError(vos.FaultInvalidURI,
			"the destination is inside the source subtree", dst)
	}

	uris, err := s.collectSubtree(ctx, src)
	if err != nil {
		return "", err
	}

	for _, uri := range uris {
		n, err := s.store.GetNode(ctx, uri)
		if err != nil {
			return "", internal(err, uri)
		}
		moved := n.Clone()
		moved.URI = dst + strings.TrimPrefix(uri, src)
		if err := s.store.PutNode(ctx, moved); err != nil {
			return "", internal(err, moved.URI)
		}
	}

	srcLoc := s.store.ResolveLocation(src)
	dstLoc := s.store.ResolveLocation(dst)
	if keepBytes {
		err = s.backend.CopyBytes(ctx, srcLoc, dstLoc)
	} else {
		err = s.backend.MoveBytes(ctx, srcLoc, dstLoc)
	}
	if err != nil {
		return "", internal(err, src)
	}

	if !keepBytes {
		if _, err := s.store.DeleteNodes(ctx, src); err != nil {
			return "", internal(err, src)
		}
	}

	verb := "Moved"
	if keepBytes {
		verb = "Copied"
	}
	logger.Debug("%s %s to %s (%d nodes, %s)", verb, src, dst, len(uris), srcNode.Type)
	return dst, nil
}

// collectSubtree returns src and every descendant URI, parents before
// children.
func (s *Service) collectSubtree(ctx context.Context, src string) ([]string, error) {
	uris := []string{src}
	for i := 0; i < len(uris); i++ {
		children, err := s.store.ListChildren(ctx, uris[i])
		if err != nil {
			return nil, internal(err, uris[i])
		}
		uris = append(uris, children...)
	}
	return uris, nil
}

// ============================================================================
// Busy marking
// ============================================================================

// SetBusy flips the busy flag on a data node.
func (s *Service) SetBusy(ctx context.Context, uri string, busy bool) error {
	s.structMu.Lock()
	defer s.structMu.Unlock()

	n, err := s.store.GetNode(ctx, uri)
	if err == store.ErrNotFound {
		return vos.NewError(vos.FaultNotFound, "A Node does not exist with the requested URI", uri)
	}
	if err != nil {
		return internal(err, uri)
	}
	if !n.Type.IsData() {
		return nil
	}
	n.Busy = busy
	if err := s.store.PutNode(ctx, n); err != nil {
		return internal(err, uri)
	}
	return nil
}

// GenerateName returns a fresh globally unique node name. Uniqueness
// holds across concurrent callers without coordination.
func GenerateName() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func internal(err error, uri string) error {
	return vos.NewError(vos.FaultInternal, err.Error(), uri)
}
