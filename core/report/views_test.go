package report

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func rec(id, name, community, week, flag string, counts ...float64) Record {
	r := Record{ID: id, Name: name, Community: community, Week: week, Last5Weeks: flag}
	copy(r.Counts[:], counts)
	return r
}

func TestRecentWeeks(t *testing.T) {
	tests := []struct {
		name    string
		records Records
		want    RecentWeeksView
	}{
		{name: "empty", records: nil, want: RecentWeeksView{}},
		{
			name:    "single recent record",
			records: Records{rec("BW01", "Site A", "Akrofufu", "12", "1", 1, 0, 2, 0, 1)},
			want: RecentWeeksView{
				{SWE: "BW01 - Site A", Community: "Akrofufu", Week: "12", Counts: Counts{1, 0, 2, 0, 1}},
			},
		},
		{
			name: "old records are dropped",
			records: Records{
				rec("BW01", "Site A", "Akrofufu", "12", "1", 1, 1, 1, 1, 1),
				rec("BW01", "Site A", "Akrofufu", "3", "0", 2, 2, 2, 2, 2),
			},
			want: RecentWeeksView{
				{SWE: "BW01 - Site A", Community: "Akrofufu", Week: "12", Counts: Counts{1, 1, 1, 1, 1}},
			},
		},
		{
			name: "flag is compared literally",
			records: Records{
				rec("BW01", "A", "C", "1", "true", 1),
				rec("BW02", "B", "C", "1", " 1", 1),
				rec("BW03", "C", "C", "1", "", 1),
			},
			want: RecentWeeksView{},
		},
		{
			name: "input order is kept",
			records: Records{
				rec("BW09", "Z", "C2", "7", "1", 9),
				rec("BW01", "A", "C1", "8", "1", 1),
				rec("BW09", "Z", "C2", "6", "1", 3),
			},
			want: RecentWeeksView{
				{SWE: "BW09 - Z", Community: "C2", Week: "7", Counts: Counts{9}},
				{SWE: "BW01 - A", Community: "C1", Week: "8", Counts: Counts{1}},
				{SWE: "BW09 - Z", Community: "C2", Week: "6", Counts: Counts{3}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, RecentWeeks(tt.records)); diff != "" {
				t.Errorf("RecentWeeks() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestViews_decodedKeysAndFlags(t *testing.T) {
	records, err := DecodeRecords([]map[string]interface{}{
		attrs(nil),
		attrs(map[string]interface{}{FieldID: nil, FieldWeek: float64(13)}),
		attrs(map[string]interface{}{FieldName: "<absent>", FieldWeek: float64(14)}),
		attrs(map[string]interface{}{FieldLast5Weeks: float64(1), FieldWeek: float64(15)}),
	})
	if err != nil {
		t.Fatalf("DecodeRecords() error = %v", err)
	}

	wantRecent := RecentWeeksView{
		{SWE: "BW01 - Site A", Community: "Akrofufu", Week: "12", Counts: Counts{1, 0, 2, 0, 1}},
		{SWE: "", Community: "Akrofufu", Week: "13", Counts: Counts{1, 0, 2, 0, 1}},
		{SWE: "", Community: "Akrofufu", Week: "14", Counts: Counts{1, 0, 2, 0, 1}},
	}
	if diff := cmp.Diff(wantRecent, RecentWeeks(records)); diff != "" {
		t.Errorf("RecentWeeks() mismatch (-want +got):\n%s", diff)
	}

	wantCumulative := CumulativeView{{SWE: "BW01 - Site A", Counts: Counts{2, 0, 4, 0, 2}}}
	if diff := cmp.Diff(wantCumulative, Cumulative(records)); diff != "" {
		t.Errorf("Cumulative() mismatch (-want +got):\n%s", diff)
	}
}

func TestCumulative(t *testing.T) {
	tests := []struct {
		name    string
		records Records
		want    CumulativeView
	}{
		{name: "empty", records: nil, want: CumulativeView{}},
		{
			name: "sums all weeks regardless of flag",
			records: Records{
				rec("BW01", "Site A", "Akrofufu", "12", "1", 1, 1, 1, 1, 1),
				rec("BW01", "Site A", "Akrofufu", "3", "0", 2, 2, 2, 2, 2),
			},
			want: CumulativeView{{SWE: "BW01 - Site A", Counts: Counts{3, 3, 3, 3, 3}}},
		},
		{
			name: "ordered by id then name",
			records: Records{
				rec("BW02", "B", "C1", "1", "1", 1),
				rec("BW01", "Z", "C1", "1", "1", 2),
				rec("BW01", "A", "C2", "2", "0", 4),
				rec("BW02", "B", "C2", "2", "0", 8),
			},
			want: CumulativeView{
				{SWE: "BW01 - A", Counts: Counts{4}},
				{SWE: "BW01 - Z", Counts: Counts{2}},
				{SWE: "BW02 - B", Counts: Counts{9}},
			},
		},
		{
			name: "same name under different ids stays apart",
			records: Records{
				rec("BW01", "Site", "C", "1", "1", 1),
				rec("BW02", "Site", "C", "1", "1", 1),
			},
			want: CumulativeView{
				{SWE: "BW01 - Site", Counts: Counts{1}},
				{SWE: "BW02 - Site", Counts: Counts{1}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Cumulative(tt.records)); diff != "" {
				t.Errorf("Cumulative() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCumulative_rowCountIsDistinctEntities(t *testing.T) {
	var records Records
	distinct := make(map[[2]string]bool)
	for i := 0; i < 40; i++ {
		id := fmt.Sprintf("BW%02d", i%7)
		name := fmt.Sprintf("Site %d", i%3)
		distinct[[2]string{id, name}] = true
		records = append(records, rec(id, name, fmt.Sprintf("C%d", i%5), fmt.Sprint(i), fmt.Sprint(i%2), 1, 2, 3, 4, 5))
	}
	assert.Len(t, Cumulative(records), len(distinct))
}

func TestSWE_isExactConcatenation(t *testing.T) {
	tests := []struct{ id, name, want string }{
		{"BW01", "Site A", "BW01 - Site A"},
		{" BW01 ", " Site A ", " BW01  -  Site A "},
		{"", "", " - "},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Record{ID: tt.id, Name: tt.name}.SWE())
	}
}

func TestViews_areIdempotent(t *testing.T) {
	records := Records{
		rec("BW02", "B", "C1", "1", "1", 1, 2, 3, 4, 5),
		rec("BW01", "A", "C1", "2", "0", 5, 4, 3, 2, 1),
		rec("BW02", "B", "C1", "3", "1", 1, 1, 1, 1, 1),
	}
	orig := append(Records(nil), records...)

	assert.Equal(t, RecentWeeks(records), RecentWeeks(records))
	assert.Equal(t, Cumulative(records), Cumulative(records))
	assert.Equal(t, orig, records, "views must not mutate their input")
}

func TestTables(t *testing.T) {
	records := Records{rec("BW01", "Site A", "Akrofufu", "12", "1", 1, 0, 2, 0, 1)}

	recent := RecentWeeks(records).Table()
	assert.Equal(t, TitleRecentWeeks, recent.Title)
	assert.Equal(t, []string{
		"SWE", "Community", "Week",
		"Initial Household Surveys", "Follow Up Household Surveys", "Household Water Tests",
		"Community Water Tests", "Household Teaching Visits",
	}, recent.Columns)
	assert.Equal(t, []Row{{
		TextCell("BW01 - Site A"), TextCell("Akrofufu"), TextCell("12"),
		NumberCell(1), NumberCell(0), NumberCell(2), NumberCell(0), NumberCell(1),
	}}, recent.Rows)

	cumulative := Cumulative(records).Table()
	assert.Equal(t, TitleCumulative, cumulative.Title)
	assert.Equal(t, []string{
		"SWE",
		"Initial Household Surveys", "Follow Up Household Surveys", "Household Water Tests",
		"Community Water Tests", "Household Teaching Visits",
	}, cumulative.Columns)
	assert.Len(t, cumulative.Rows, 1)

	// no raw field name ever leaks into a view
	for _, f := range Counters {
		assert.NotContains(t, recent.Columns, f.Raw)
		assert.NotContains(t, cumulative.Columns, f.Raw)
		assert.Contains(t, recent.Columns, f.Label)
		assert.Contains(t, cumulative.Columns, f.Label)
	}
}

func TestCell(t *testing.T) {
	tests := []struct {
		cell     Cell
		wantStr  string
		wantJSON string
	}{
		{TextCell("BW01 - A"), "BW01 - A", `"BW01 - A"`},
		{TextCell("12"), "12", `"12"`},
		{NumberCell(3), "3", `3`},
		{NumberCell(2.5), "2.5", `2.5`},
	}
	for _, tt := range tests {
		t.Run(tt.wantStr, func(t *testing.T) {
			assert.Equal(t, tt.wantStr, tt.cell.String())
			b, err := tt.cell.MarshalJSON()
			assert.NoError(t, err)
			assert.JSONEq(t, tt.wantJSON, string(b))

			var back Cell
			assert.NoError(t, json.Unmarshal(b, &back))
			assert.Equal(t, tt.cell, back)
		})
	}
}
