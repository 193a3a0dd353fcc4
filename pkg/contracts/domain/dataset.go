package domain

import "fmt"

// Column identifies one loadable output column of a dataset.
// Columns are comparable and are used directly as map keys.
type Column struct {
	Dataset string `json:"dataset"`
	Name    string `json:"name"`
	DType   DType  `json:"dtype"`
}

// String returns the qualified column name, e.g. "EarningsCalendar.next_announcement"
func (c Column) String() string {
	return fmt.Sprintf("%s.%s", c.Dataset, c.Name)
}

// Dataset is a named, ordered group of columns served by one loader
type Dataset struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// Contains reports whether col belongs to the dataset
func (d Dataset) Contains(col Column) bool {
	for _, c := range d.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// Column looks up a column by its short name
func (d Dataset) Column(name string) (Column, bool) {
	for _, c := range d.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

func column(dataset, name string, dtype DType) Column {
	return Column{Dataset: dataset, Name: name, DType: dtype}
}

// Earnings announcement columns
var (
	EarningsNextAnnouncement     = column("EarningsCalendar", "next_announcement", DTypeDatetimeNano)
	EarningsPreviousAnnouncement = column("EarningsCalendar", "previous_announcement", DTypeDatetimeNano)
)

// EarningsCalendar is the dataset of upcoming and recent earnings announcements
var EarningsCalendar = Dataset{
	Name: "EarningsCalendar",
	Columns: []Column{
		EarningsNextAnnouncement,
		EarningsPreviousAnnouncement,
	},
}

// Buyback authorization columns
var (
	BuybackPreviousValue        = column("BuybackAuthorizations", "previous_buyback_value", DTypeFloat64)
	BuybackPreviousShareCount   = column("BuybackAuthorizations", "previous_buyback_share_count", DTypeFloat64)
	BuybackPreviousAnnouncement = column("BuybackAuthorizations", "previous_buyback_announcement", DTypeDatetimeNano)
)

// BuybackAuthorizations is the dataset of the most recent buyback authorization
var BuybackAuthorizations = Dataset{
	Name: "BuybackAuthorizations",
	Columns: []Column{
		BuybackPreviousValue,
		BuybackPreviousShareCount,
		BuybackPreviousAnnouncement,
	},
}

// Cash dividend columns
var (
	DividendsNextExDate         = column("CashDividends", "next_ex_date", DTypeDatetimeNano)
	DividendsPreviousExDate     = column("CashDividends", "previous_ex_date", DTypeDatetimeNano)
	DividendsNextPayDate        = column("CashDividends", "next_pay_date", DTypeDatetimeNano)
	DividendsPreviousPayDate    = column("CashDividends", "previous_pay_date", DTypeDatetimeNano)
	DividendsNextRecordDate     = column("CashDividends", "next_record_date", DTypeDatetimeNano)
	DividendsPreviousRecordDate = column("CashDividends", "previous_record_date", DTypeDatetimeNano)
	DividendsNextAmount         = column("CashDividends", "next_amount", DTypeFloat64)
	DividendsPreviousAmount     = column("CashDividends", "previous_amount", DTypeFloat64)
)

// CashDividends is the dataset of upcoming and recently announced cash dividends
var CashDividends = Dataset{
	Name: "CashDividends",
	Columns: []Column{
		DividendsNextExDate,
		DividendsPreviousExDate,
		DividendsNextPayDate,
		DividendsPreviousPayDate,
		DividendsNextRecordDate,
		DividendsPreviousRecordDate,
		DividendsNextAmount,
		DividendsPreviousAmount,
	},
}

// Datasets lists every dataset known to the module, keyed by name
var Datasets = map[string]Dataset{
	EarningsCalendar.Name:      EarningsCalendar,
	BuybackAuthorizations.Name: BuybackAuthorizations,
	CashDividends.Name:         CashDividends,
}
