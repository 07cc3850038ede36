package ristretto

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittodav/pkg/cache"
	cachetest "github.com/marmos91/dittodav/pkg/cache/testing"
)

func TestRistrettoStore(t *testing.T) {
	suite := &cachetest.StoreTestSuite{
		NewStore: func(t *testing.T) cache.Store {
			store, err := New(Config{MaxCost: 1 << 20, NumCounters: 10_000})
			require.NoError(t, err)
			return store
		},
	}
	suite.Run(t)
}
