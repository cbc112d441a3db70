package sources

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dvloznov/ledger-insights/internal/gcs"
	infraBQ "github.com/dvloznov/ledger-insights/internal/infra/bigquery"
	"github.com/dvloznov/ledger-insights/internal/ledger"
)

// Kind identifies where a ledger is read from.
type Kind string

const (
	KindFile     Kind = "file"
	KindGCS      Kind = "gcs"
	KindBigQuery Kind = "bigquery"
)

// ErrUnavailable is returned when a reference names a source this loader was not configured for.
var ErrUnavailable = errors.New("ledger source not configured")

// TableReader reads a warehouse table as an untyped ledger.
type TableReader interface {
	ReadTable(ctx context.Context, tableRef string) (*ledger.Table, error)
}

// Loader resolves a ledger reference to a ledger.Table.
// References are "gs://bucket/object", "bq://dataset.table" or, when local files are
// allowed, a filesystem path.
type Loader struct {
	storage    gcs.StorageService
	warehouse  TableReader
	allowLocal bool
}

// NewLoader creates a loader. storage and warehouse may be nil to disable those sources.
func NewLoader(storage gcs.StorageService, warehouse TableReader, allowLocal bool) *Loader {
	return &Loader{
		storage:    storage,
		warehouse:  warehouse,
		allowLocal: allowLocal,
	}
}

// KindOf classifies a reference by its scheme.
func KindOf(ref string) Kind {
	switch {
	case strings.HasPrefix(ref, gcs.URIScheme):
		return KindGCS
	case strings.HasPrefix(ref, infraBQ.SourcePrefix):
		return KindBigQuery
	default:
		return KindFile
	}
}

// Validate checks that ref is well formed and that the loader can serve it, without reading it.
func (l *Loader) Validate(ref string) error {
	switch KindOf(ref) {
	case KindGCS:
		if l.storage == nil {
			return fmt.Errorf("Validate: %s: %w", KindGCS, ErrUnavailable)
		}
		_, _, err := gcs.ParseURI(ref)
		return err
	case KindBigQuery:
		if l.warehouse == nil {
			return fmt.Errorf("Validate: %s: %w", KindBigQuery, ErrUnavailable)
		}
		if !infraBQ.ValidTableRef(strings.TrimPrefix(ref, infraBQ.SourcePrefix)) {
			return fmt.Errorf("Validate: invalid table reference %q", ref)
		}
		return nil
	default:
		if !l.allowLocal {
			return fmt.Errorf("Validate: %s: %w", KindFile, ErrUnavailable)
		}
		if ref == "" {
			return errors.New("Validate: empty ledger reference")
		}
		return nil
	}
}

// Load reads the ledger named by ref.
func (l *Loader) Load(ctx context.Context, ref string) (*ledger.Table, error) {
	if err := l.Validate(ref); err != nil {
		return nil, err
	}

	switch KindOf(ref) {
	case KindGCS:
		data, err := l.storage.Fetch(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("Load: %w", err)
		}
		return ledger.Read(ref, data)
	case KindBigQuery:
		return l.warehouse.ReadTable(ctx, strings.TrimPrefix(ref, infraBQ.SourcePrefix))
	default:
		data, err := os.ReadFile(ref)
		if err != nil {
			return nil, fmt.Errorf("Load: reading %s: %w", ref, err)
		}
		return ledger.Read(filepath.Base(ref), data)
	}
}
