package inmemory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dvloznov/ledger-insights/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDataset(id string, rows int) *domain.CleanedDataset {
	txs := make([]domain.Transaction, rows)
	for i := range txs {
		txs[i] = domain.Transaction{CustomerID: "c1", Amount: 1, Timestamp: time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)}
	}
	return domain.NewCleanedDataset(id, "ledger.csv", time.Now(), txs, domain.NewCleaningSummary(rows, rows))
}

func TestStore_StartsEmpty(t *testing.T) {
	ds, ok := NewStore().Current(context.Background())
	assert.False(t, ok)
	assert.Nil(t, ds)
}

func TestStore_Replace(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.Replace(ctx, newDataset("first", 1)))
	require.NoError(t, store.Replace(ctx, newDataset("second", 3)))

	ds, ok := store.Current(ctx)
	require.True(t, ok)
	assert.Equal(t, "second", ds.ID)
	assert.Equal(t, 3, ds.Len())
}

func TestStore_ReplaceNil(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	require.NoError(t, store.Replace(ctx, newDataset("first", 1)))

	assert.Error(t, store.Replace(ctx, nil))

	ds, ok := store.Current(ctx)
	require.True(t, ok)
	assert.Equal(t, "first", ds.ID)
}

func TestStore_ConcurrentReadersSeeWholeDatasets(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				rows := w*100 + i + 1
				_ = store.Replace(ctx, newDataset(fmt.Sprintf("ds-%d", rows), rows))
			}
		}(w)
	}

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				ds, ok := store.Current(ctx)
				if !ok {
					continue
				}
				// ID and contents always belong to the same upload.
				assert.Equal(t, fmt.Sprintf("ds-%d", ds.Len()), ds.ID)
				assert.Equal(t, ds.Len(), ds.Summary.FinalRecords)
			}
		}()
	}

	wg.Wait()
}
