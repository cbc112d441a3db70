// Package fixtures generates messy transaction ledgers for demos and tests.
package fixtures

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
)

// Defaults mirror a small cafe: fifteen regulars, open 8:00 to 22:59, January to mid September.
const (
	DefaultRecords   = 10000
	DefaultCustomers = 15
	openHour         = 8
	closeHour        = 22
	minAmount        = 50.0
	maxAmount        = 600.0
	firstTxnNumber   = 2025000
)

var (
	defaultStart = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	defaultEnd   = time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC)
)

// Header is the column order of generated ledgers.
var Header = []string{"transaction_id", "customer_id", "amount", "timestamp"}

// Options controls a generated ledger. Zero values take the defaults.
type Options struct {
	Records   int
	Customers int
	Start     time.Time
	End       time.Time
	Seed      int64
}

// Stats counts the defects injected into a generated ledger.
type Stats struct {
	Records         int `json:"records"`
	BlankAmounts    int `json:"blank_amounts"`
	InvalidAmounts  int `json:"invalid_amounts"`
	BlankTimestamps int `json:"blank_timestamps"`
	DuplicateIDs    int `json:"duplicate_ids"`
	NegativeAmounts int `json:"negative_amounts"`
}

func (o Options) withDefaults() Options {
	if o.Records <= 0 {
		o.Records = DefaultRecords
	}
	if o.Customers <= 0 {
		o.Customers = DefaultCustomers
	}
	if o.Start.IsZero() {
		o.Start = defaultStart
	}
	if o.End.IsZero() {
		o.End = defaultEnd
	}
	return o
}

// CustomerIDs returns the customer pool for n customers: cust_100, cust_101, ...
func CustomerIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("cust_%d", 100+i)
	}
	return ids
}

// Generate writes a CSV ledger to w. Roughly 5% of rows lose their amount, 5% get an
// unparseable amount, 5% lose their timestamp, 5% reuse the previous transaction ID and 2%
// get a negative amount. The same seed always yields the same ledger.
func Generate(w io.Writer, opts Options) (Stats, error) {
	opts = opts.withDefaults()
	if opts.End.Before(opts.Start) {
		return Stats{}, fmt.Errorf("Generate: end %s is before start %s", opts.End.Format(time.DateOnly), opts.Start.Format(time.DateOnly))
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	customers := CustomerIDs(opts.Customers)
	days := int(opts.End.Sub(opts.Start).Hours() / 24)

	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return Stats{}, fmt.Errorf("Generate: writing header: %w", err)
	}

	stats := Stats{Records: opts.Records}
	prevID := ""
	for i := 0; i < opts.Records; i++ {
		id := fmt.Sprintf("txn_%d", firstTxnNumber+i)
		customer := customers[rng.Intn(len(customers))]
		amount := decimal.NewFromFloat(minAmount + rng.Float64()*(maxAmount-minAmount)).Round(2).String()

		ts := opts.Start.
			AddDate(0, 0, rng.Intn(days+1)).
			Add(time.Duration(openHour+rng.Intn(closeHour-openHour+1)) * time.Hour).
			Add(time.Duration(rng.Intn(60)) * time.Minute)
		timestamp := ts.Format(time.DateTime)

		switch p := rng.Float64(); {
		case p < 0.05:
			amount = ""
			stats.BlankAmounts++
		case p < 0.10:
			amount = "invalid_price"
			stats.InvalidAmounts++
		case p < 0.15:
			timestamp = ""
			stats.BlankTimestamps++
		case p < 0.20:
			if prevID != "" {
				id = prevID
				stats.DuplicateIDs++
			}
		case p < 0.22:
			amount = "-100.0"
			stats.NegativeAmounts++
		}

		if err := cw.Write([]string{id, customer, amount, timestamp}); err != nil {
			return Stats{}, fmt.Errorf("Generate: writing row %d: %w", i+1, err)
		}
		prevID = id
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return Stats{}, fmt.Errorf("Generate: flushing: %w", err)
	}
	return stats, nil
}
