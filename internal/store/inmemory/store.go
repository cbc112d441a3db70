package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/dvloznov/ledger-insights/internal/domain"
	"github.com/dvloznov/ledger-insights/internal/store"
)

// Store is an in-memory implementation of DatasetStore.
// It holds a single immutable dataset and is safe for concurrent use.
// Data is lost on service restart.
type Store struct {
	mu      sync.RWMutex
	current *domain.CleanedDataset
}

// NewStore creates an empty in-memory dataset store.
func NewStore() *Store {
	return &Store{}
}

// Current implements the DatasetStore interface.
func (s *Store) Current(ctx context.Context) (*domain.CleanedDataset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.current, s.current != nil
}

// Replace implements the DatasetStore interface.
// The dataset is swapped whole; it is never merged with the previous one.
func (s *Store) Replace(ctx context.Context, dataset *domain.CleanedDataset) error {
	if dataset == nil {
		return fmt.Errorf("Replace: dataset is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = dataset
	return nil
}

// Ensure Store implements DatasetStore interface.
var _ store.DatasetStore = (*Store)(nil)
