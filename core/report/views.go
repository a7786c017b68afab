package report

import "sort"

// RecentWeeksRow is one record of the recent window.
type RecentWeeksRow struct {
	SWE       string `json:"swe"`
	Community string `json:"community"`
	Week      string `json:"week"`
	Counts    Counts `json:"counts"`
}

// CumulativeRow holds the counters of one entity summed over all weeks.
type CumulativeRow struct {
	SWE    string `json:"swe"`
	Counts Counts `json:"counts"`
}

type (
	RecentWeeksView []RecentWeeksRow
	CumulativeView  []CumulativeRow
)

// RecentWeeks keeps the records flagged as part of the last 5 weeks, in input order.
func RecentWeeks(records Records) RecentWeeksView {
	view := make(RecentWeeksView, 0)
	for _, rec := range records {
		if !rec.IsRecent() {
			continue
		}
		view = append(view, RecentWeeksRow{
			SWE:       rec.SWE(),
			Community: rec.Community,
			Week:      rec.Week,
			Counts:    rec.Counts,
		})
	}
	return view
}

type entity struct {
	id, name string
}

// Cumulative sums the counters of every (ID, Name) entity across all records,
// ordered by ID then Name. Records without an entity key are left out.
func Cumulative(records Records) CumulativeView {
	totals := make(map[entity]Counts)
	keys := make([]entity, 0)
	for _, rec := range records {
		if rec.NoKey {
			continue
		}
		key := entity{rec.ID, rec.Name}
		sum, ok := totals[key]
		if !ok {
			keys = append(keys, key)
		}
		totals[key] = sum.Add(rec.Counts)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].id != keys[j].id {
			return keys[i].id < keys[j].id
		}
		return keys[i].name < keys[j].name
	})

	view := make(CumulativeView, 0, len(keys))
	for _, key := range keys {
		view = append(view, CumulativeRow{
			SWE:    Record{ID: key.id, Name: key.name}.SWE(),
			Counts: totals[key],
		})
	}
	return view
}

func (v RecentWeeksView) Table() Table {
	columns := append([]string{ColumnSWE, ColumnCommunity, ColumnWeek}, CounterLabels()...)
	rows := make([]Row, 0, len(v))
	for _, r := range v {
		row := Row{TextCell(r.SWE), TextCell(r.Community), TextCell(r.Week)}
		rows = append(rows, appendCounts(row, r.Counts))
	}
	return Table{Title: TitleRecentWeeks, Columns: columns, Rows: rows}
}

func (v CumulativeView) Table() Table {
	columns := append([]string{ColumnSWE}, CounterLabels()...)
	rows := make([]Row, 0, len(v))
	for _, r := range v {
		rows = append(rows, appendCounts(Row{TextCell(r.SWE)}, r.Counts))
	}
	return Table{Title: TitleCumulative, Columns: columns, Rows: rows}
}

func appendCounts(row Row, counts Counts) Row {
	for _, n := range counts {
		row = append(row, NumberCell(n))
	}
	return row
}
