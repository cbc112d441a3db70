package sources

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dvloznov/ledger-insights/internal/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = "transaction_id,customer_id,amount,timestamp\nt1,cust_100,10.00,2025-01-01 09:00:00\n"

type mockStorage struct {
	fetchFunc func(ctx context.Context, uri string) ([]byte, error)
}

func (m *mockStorage) Fetch(ctx context.Context, uri string) ([]byte, error) {
	return m.fetchFunc(ctx, uri)
}

func (m *mockStorage) Upload(ctx context.Context, uri, contentType string, data []byte) error {
	return nil
}

type mockWarehouse struct {
	gotRef string
}

func (m *mockWarehouse) ReadTable(ctx context.Context, tableRef string) (*ledger.Table, error) {
	m.gotRef = tableRef
	return &ledger.Table{Source: "bq://" + tableRef, Columns: []string{"amount"}}, nil
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindGCS, KindOf("gs://bucket/ledger.csv"))
	assert.Equal(t, KindBigQuery, KindOf("bq://sales.ledger"))
	assert.Equal(t, KindFile, KindOf("./data/ledger.csv"))
}

func TestLoader_LoadGCS(t *testing.T) {
	storage := &mockStorage{fetchFunc: func(ctx context.Context, uri string) ([]byte, error) {
		assert.Equal(t, "gs://bucket/ledger.csv", uri)
		return []byte(sampleCSV), nil
	}}
	loader := NewLoader(storage, nil, false)

	table, err := loader.Load(context.Background(), "gs://bucket/ledger.csv")
	require.NoError(t, err)
	assert.Equal(t, 1, table.Len())
	assert.Equal(t, "gs://bucket/ledger.csv", table.Source)
}

func TestLoader_LoadGCSFetchError(t *testing.T) {
	storage := &mockStorage{fetchFunc: func(ctx context.Context, uri string) ([]byte, error) {
		return nil, errors.New("permission denied")
	}}
	loader := NewLoader(storage, nil, false)

	_, err := loader.Load(context.Background(), "gs://bucket/ledger.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
}

func TestLoader_LoadBigQuery(t *testing.T) {
	warehouse := &mockWarehouse{}
	loader := NewLoader(nil, warehouse, false)

	table, err := loader.Load(context.Background(), "bq://proj.sales.ledger")
	require.NoError(t, err)
	assert.Equal(t, "proj.sales.ledger", warehouse.gotRef)
	assert.Equal(t, "bq://proj.sales.ledger", table.Source)
}

func TestLoader_LoadLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o600))

	table, err := NewLoader(nil, nil, true).Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "ledger.csv", table.Source)
	assert.Equal(t, 1, table.Len())
}

func TestLoader_Validate(t *testing.T) {
	tests := []struct {
		name      string
		loader    *Loader
		ref       string
		wantErr   bool
		wantUnset bool
	}{
		{name: "gcs configured", loader: NewLoader(&mockStorage{}, nil, false), ref: "gs://bucket/a.csv"},
		{name: "gcs not configured", loader: NewLoader(nil, nil, false), ref: "gs://bucket/a.csv", wantErr: true, wantUnset: true},
		{name: "gcs without object", loader: NewLoader(&mockStorage{}, nil, false), ref: "gs://bucket", wantErr: true},
		{name: "bigquery configured", loader: NewLoader(nil, &mockWarehouse{}, false), ref: "bq://sales.ledger"},
		{name: "bigquery bad ref", loader: NewLoader(nil, &mockWarehouse{}, false), ref: "bq://ledger", wantErr: true},
		{name: "bigquery not configured", loader: NewLoader(nil, nil, false), ref: "bq://sales.ledger", wantErr: true, wantUnset: true},
		{name: "local file refused", loader: NewLoader(nil, nil, false), ref: "/etc/passwd", wantErr: true, wantUnset: true},
		{name: "local file allowed", loader: NewLoader(nil, nil, true), ref: "ledger.csv"},
		{name: "empty reference", loader: NewLoader(nil, nil, true), ref: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.loader.Validate(tt.ref)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantUnset, errors.Is(err, ErrUnavailable))
		})
	}
}
