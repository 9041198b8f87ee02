package postgres

import (
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/balanceledger/internal/domain"
)

func TestULIDGenerator(t *testing.T) {
	gen := NewULIDGenerator()

	ids := make([]string, 0, 1000)
	for range 1000 {
		ids = append(ids, gen.Generate())
	}

	assert.True(t, sort.StringsAreSorted(ids), "ids minted in sequence must sort in sequence")
	for _, id := range ids[:10] {
		require.NoError(t, domain.ValidateAccountID(id))
	}
}

func TestULIDGenerator_Concurrent(t *testing.T) {
	gen := NewULIDGenerator()

	var (
		mu   sync.Mutex
		seen = make(map[string]struct{})
		wg   sync.WaitGroup
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 200 {
				id := gen.Generate()
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 1600)
}
