package fs

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBackend(t *testing.T) *Backend {
	b, err := New(t.TempDir())
	require.NoError(t, err)
	return b
}

func TestTouchAndSize(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)

	require.NoError(t, b.Touch(ctx, "/c/f"))
	size, err := b.Size(ctx, "/c/f")
	require.NoError(t, err)
	assert.Equal(t, int64(0), size)

	_, err = b.Write(ctx, "/c/f", strings.NewReader("hello"))
	require.NoError(t, err)

	// Touch must not truncate existing data.
	require.NoError(t, b.Touch(ctx, "/c/f"))
	size, err = b.Size(ctx, "/c/f")
	require.NoError(t, err)
	assert.Equal(t, int64(5), size)
}

func TestWriteReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)

	n, err := b.Write(ctx, "/c/f", strings.NewReader("payload"))
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	rc, err := b.Read(ctx, "/c/f")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestMoveBytesRelocatesSubtree(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)

	require.NoError(t, b.CreateContainer(ctx, "/src"))
	_, err := b.Write(ctx, "/src/a", strings.NewReader("a"))
	require.NoError(t, err)
	_, err = b.Write(ctx, "/src/sub/b", strings.NewReader("b"))
	require.NoError(t, err)

	require.NoError(t, b.MoveBytes(ctx, "/src", "/dst"))

	rc, err := b.Read(ctx, "/dst/sub/b")
	require.NoError(t, err)
	rc.Close()

	_, err = b.Read(ctx, "/src/a")
	assert.Error(t, err)
}

func TestCopyBytesLeavesSourceIntact(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)

	_, err := b.Write(ctx, "/src", strings.NewReader("data"))
	require.NoError(t, err)

	require.NoError(t, b.CopyBytes(ctx, "/src", "/dst"))

	for _, loc := range []string{"/src", "/dst"} {
		rc, err := b.Read(ctx, loc)
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		assert.Equal(t, "data", string(data))
	}
}

func TestCreateLinkReadsThroughToTarget(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)

	_, err := b.Write(ctx, "/f", strings.NewReader("linked"))
	require.NoError(t, err)

	require.NoError(t, b.CreateLink(ctx, "/alias", "/f"))

	rc, err := b.Read(ctx, "/alias")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "linked", string(data))
}

func TestRemoveBytesIsIdempotent(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)

	_, err := b.Write(ctx, "/f", strings.NewReader("x"))
	require.NoError(t, err)

	require.NoError(t, b.RemoveBytes(ctx, "/f"))
	require.NoError(t, b.RemoveBytes(ctx, "/f"))

	size, err := b.Size(ctx, "/f")
	require.NoError(t, err)
	assert.Equal(t, int64(0), size)
}
