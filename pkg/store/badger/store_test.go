package badger

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/voservices/vospace/pkg/store"
	"github.com/voservices/vospace/pkg/store/storetest"
)

func TestBadgerStore(t *testing.T) {
	suite := &storetest.Suite{
		NewStore: func(t *testing.T) store.Store {
			st, err := New(t.TempDir(), "vos://example.org!vospace", "/data")
			require.NoError(t, err)
			t.Cleanup(func() { _ = st.Close() })
			return st
		},
	}
	suite.Run(t)
}
