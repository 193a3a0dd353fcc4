package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pitpipe/internal/sources"
	"pitpipe/pkg/contracts/domain"
)

// Day returns 2014-01-d as a UTC midnight
func Day(d int) time.Time {
	return time.Date(2014, 1, d, 0, 0, 0, 0, time.UTC)
}

// EarningsRows are two announcements for sid 1 and one for sid 2
func EarningsRows() []domain.EventRow {
	return []domain.EventRow{
		{SID: 1, Timestamp: Day(2), EventDate: Day(6)},
		{SID: 1, Timestamp: Day(7), EventDate: Day(9)},
		{SID: 2, Timestamp: Day(3), EventDate: Day(8)},
	}
}

// BuybackRows are one authorization each for sids 1 and 2
func BuybackRows() []domain.EventRow {
	return []domain.EventRow{
		{SID: 1, Timestamp: Day(3), EventDate: Day(3), Values: map[string]float64{
			domain.ValueField: 1e6, domain.ShareCountField: 100,
		}},
		{SID: 2, Timestamp: Day(6), EventDate: Day(7), Values: map[string]float64{
			domain.ValueField: 2e6, domain.ShareCountField: 200,
		}},
	}
}

// DividendRows are one declared dividend each for sids 1 and 2
func DividendRows() []domain.EventRow {
	return []domain.EventRow{
		{
			SID:       1,
			Timestamp: Day(2),
			Values:    map[string]float64{domain.AmountField: 0.5},
			Dates: map[string]time.Time{
				domain.ExDateField: Day(7), domain.PayDateField: Day(9), domain.RecordDateField: Day(8),
			},
		},
		{
			SID:       2,
			Timestamp: Day(6),
			Values:    map[string]float64{domain.AmountField: 1.25},
			Dates: map[string]time.Time{
				domain.ExDateField: Day(10), domain.PayDateField: Day(13), domain.RecordDateField: Day(9),
			},
		},
	}
}

// EventFiles locates the fixture sources written by WriteEventFiles
type EventFiles struct {
	// EarningsCSV holds EarningsRows
	EarningsCSV string
	// BuybacksXLSX holds BuybackRows on sheet BuybacksSheet
	BuybacksXLSX string
	// Store is a SQLite database holding DividendRows
	Store string
}

// BuybacksSheet is the sheet BuybacksXLSX is written to
const BuybacksSheet = "Buybacks"

// WriteEventFiles writes one source per dataset into dir
func WriteEventFiles(t *testing.T, dir string) EventFiles {
	t.Helper()

	files := EventFiles{
		EarningsCSV:  filepath.Join(dir, "earnings.csv"),
		BuybacksXLSX: filepath.Join(dir, "buybacks.xlsx"),
		Store:        filepath.Join(dir, "events.db"),
	}

	schema, err := sources.SchemaFor(domain.EarningsCalendar)
	require.NoError(t, err)
	require.NoError(t, sources.WriteCSV(files.EarningsCSV, schema, EarningsRows()))

	schema, err = sources.SchemaFor(domain.BuybackAuthorizations)
	require.NoError(t, err)
	require.NoError(t, sources.WriteExcel(files.BuybacksXLSX, BuybacksSheet, schema, BuybackRows()))

	store, err := sources.OpenStore(files.Store)
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Insert(context.Background(), domain.CashDividends.Name, DividendRows()))

	return files
}
