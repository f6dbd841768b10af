package vos

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathHelpers(t *testing.T) {
	assert.Equal(t, "f", PathBase("vos://example.org!vospace/c/f"))
	assert.Equal(t, "vos://example.org!vospace/c", PathParent("vos://example.org!vospace/c/f"))
	assert.Equal(t, "c", PathBase("vos://example.org!vospace/c/"))
	assert.Equal(t, "", PathParent("plain"))
}

func TestNodeTypePredicates(t *testing.T) {
	assert.True(t, TypeDataNode.IsData())
	assert.True(t, TypeStructuredDataNode.IsData())
	assert.True(t, TypeUnstructuredDataNode.IsData())
	assert.False(t, TypeContainerNode.IsData())
	assert.False(t, TypeLinkNode.IsData())

	assert.True(t, TypeContainerNode.IsContainer())
	assert.False(t, TypeDataNode.IsContainer())

	assert.True(t, TypeLinkNode.Valid())
	assert.False(t, NodeType("vos:BogusNode").Valid())
}

func TestPropertiesSetGetDelete(t *testing.T) {
	var ps Properties

	ps = ps.Set(PropTitle, "first")
	ps = ps.Set(PropCreator, "someone")
	ps = ps.Set(PropTitle, "second")

	v, ok := ps.Get(PropTitle)
	require.True(t, ok)
	assert.Equal(t, "second", v)
	assert.Len(t, ps, 2)

	ps = ps.Delete(PropTitle)
	_, ok = ps.Get(PropTitle)
	assert.False(t, ok)

	v, ok = ps.Get(PropCreator)
	require.True(t, ok)
	assert.Equal(t, "someone", v)
}

func TestNodeCloneIsIndependent(t *testing.T) {
	n := &Node{
		URI:        "vos://example.org!vospace/a",
		Type:       TypeDataNode,
		Properties: Properties{{URI: PropTitle, Value: "a"}},
		Accepts:    []string{ViewAny},
	}

	c := n.Clone()
	c.Properties = c.Properties.Set(PropTitle, "changed")
	c.Accepts[0] = ViewBinary

	v, _ := n.Properties.Get(PropTitle)
	assert.Equal(t, "a", v)
	assert.Equal(t, ViewAny, n.Accepts[0])
}

func TestDirectionClassification(t *testing.T) {
	assert.False(t, DirectionPushTo.IsNodePath())
	assert.False(t, DirectionPullFrom.IsNodePath())
	assert.True(t, Direction("vos://example.org!vospace/dst").IsNodePath())
	assert.False(t, Direction("").IsNodePath())

	assert.True(t, DirectionPushTo.Inbound())
	assert.True(t, DirectionPullTo.Inbound())
	assert.False(t, DirectionPullFrom.Inbound())

	assert.True(t, DirectionPullFrom.Outbound())
	assert.True(t, DirectionPushFrom.Outbound())
	assert.False(t, DirectionPushTo.Outbound())
}
