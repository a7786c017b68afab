// Package report reshapes the raw survey records of a project into the
// dashboard views.
package report

import (
	"encoding/json"
	"strconv"
)

// Raw field names of the hosted survey table.
const (
	FieldID         = "BrightWaterID"
	FieldName       = "Namebwe"
	FieldCommunity  = "Community"
	FieldWeek       = "Week"
	FieldLast5Weeks = "Last5Weeks"
)

// Column labels of the views.
const (
	ColumnSWE       = "SWE"
	ColumnCommunity = "Community"
	ColumnWeek      = "Week"

	TitleRecentWeeks = "Last 5 Weeks"
	TitleCumulative  = "Cumulative Numbers"

	// RecentFlag is the literal value of Last5Weeks for records in the recent window.
	RecentFlag = "1"
	swe        = " - "
)

// NumCounters is the number of counter fields tracked per record.
const NumCounters = 5

// Field maps a raw counter field to its display label.
type Field struct {
	Raw   string
	Label string
}

// Counters lists the counter fields in display order.
var Counters = [NumCounters]Field{
	{Raw: "InitialHouseholdSurveys", Label: "Initial Household Surveys"},
	{Raw: "FollowUpHouseholdSurveys", Label: "Follow Up Household Surveys"},
	{Raw: "HHoldWaterTests", Label: "Household Water Tests"},
	{Raw: "CommWaterTests", Label: "Community Water Tests"},
	{Raw: "HHoldTeachingVisits", Label: "Household Teaching Visits"},
}

// CounterLabels returns the display labels of the counters, in order.
func CounterLabels() []string {
	labels := make([]string, 0, NumCounters)
	for _, f := range Counters {
		labels = append(labels, f.Label)
	}
	return labels
}

// Counts holds one value per counter field, in the order of Counters.
type Counts [NumCounters]float64

func (c Counts) Add(o Counts) Counts {
	for i := range c {
		c[i] += o[i]
	}
	return c
}

// Record is one (community, week) observation of a project.
type Record struct {
	ID         string
	Name       string
	Community  string
	Week       string
	Last5Weeks string
	Counts     Counts

	// NoKey is set when the ID or Name of the record is null.
	NoKey bool
}

// SWE is the display label of the record's entity; it is empty without an entity key.
func (r Record) SWE() string {
	if r.NoKey {
		return ""
	}
	return r.ID + swe + r.Name
}

func (r Record) IsRecent() bool {
	return r.Last5Weeks == RecentFlag
}

type Records []Record

// Cell is a single table value; counters are numeric, labels are text.
type Cell struct {
	Text    string
	Number  float64
	Numeric bool
}

func TextCell(s string) Cell { return Cell{Text: s} }

func NumberCell(n float64) Cell { return Cell{Number: n, Numeric: true} }

func (c Cell) String() string {
	if c.Numeric {
		return formatNumber(c.Number)
	}
	return c.Text
}

func (c Cell) MarshalJSON() ([]byte, error) {
	if c.Numeric {
		return json.Marshal(c.Number)
	}
	return json.Marshal(c.Text)
}

func (c *Cell) UnmarshalJSON(b []byte) error {
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		*c = NumberCell(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*c = TextCell(s)
	return nil
}

type Row []Cell

// Table is a rendered view: ordered column labels and rows of cells.
type Table struct {
	Title   string   `json:"title"`
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

func (t Table) IsEmpty() bool { return len(t.Rows) == 0 }

func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}
