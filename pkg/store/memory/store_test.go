package memory

import (
	"testing"

	"github.com/voservices/vospace/pkg/store"
	"github.com/voservices/vospace/pkg/store/storetest"
)

func TestMemoryStore(t *testing.T) {
	suite := &storetest.Suite{
		NewStore: func(t *testing.T) store.Store {
			return New("vos://example.org!vospace", "/data")
		},
	}
	suite.Run(t)
}
