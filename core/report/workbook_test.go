package report

import (
	"bytes"
	"net/mail"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteWorkbook(t *testing.T) {
	records := Records{
		rec("BW-2", "Kofi", "Kade", "3", "1", 1, 2, 3, 4, 5),
		rec("BW-1", "Ama", "Asiakwa", "3", "0", 1.5, 0, 0, 0, 1),
	}
	recent, cumulative := RecentWeeks(records).Table(), Cumulative(records).Table()

	var buf bytes.Buffer
	require.NoError(t, WriteWorkbook(&buf, recent, cumulative))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{TitleRecentWeeks, TitleCumulative}, f.GetSheetList())

	rows, err := f.GetRows(TitleRecentWeeks)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, recent.Columns, rows[0])
	assert.Equal(t, []string{"BW-2 - Kofi", "Kade", "3", "1", "2", "3", "4", "5"}, rows[1])

	rows, err = f.GetRows(TitleCumulative)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, cumulative.Columns, rows[0])
	assert.Equal(t, []string{"BW-1 - Ama", "1.5", "0", "0", "0", "1"}, rows[1])
	assert.Equal(t, "BW-2 - Kofi", rows[2][0])

	t.Run("empty view", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteWorkbook(&buf, RecentWeeks(nil).Table()))
		f, err := excelize.OpenReader(&buf)
		require.NoError(t, err)
		defer f.Close()
		rows, err := f.GetRows(TitleRecentWeeks)
		require.NoError(t, err)
		assert.Len(t, rows, 1)
	})

	t.Run("no table", func(t *testing.T) {
		assert.Error(t, WriteWorkbook(&bytes.Buffer{}))
	})
}

func TestWorkbookFilename(t *testing.T) {
	tests := []struct {
		project string
		want    string
	}{
		{project: "GH2301 - Asamama", want: "gh2301-asamama.xlsx"},
		{project: "GH2402 - Akrofufu 1", want: "gh2402-akrofufu-1.xlsx"},
		{project: "  !!", want: "report.xlsx"},
	}
	for _, tc := range tests {
		t.Run(tc.project, func(t *testing.T) {
			assert.Equal(t, tc.want, WorkbookFilename(tc.project))
		})
	}
}

func TestNewEmail(t *testing.T) {
	records := Records{rec("BW-1", "Ama", "Asiakwa", "3", "1", 1, 2, 3, 4, 5)}
	to := []mail.Address{{Name: "Field Office", Address: "field@example.com"}}
	at := time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)

	msg, err := NewEmail("GH2301 - Asamama", to, at, RecentWeeks(records).Table(), Cumulative(records).Table())
	require.NoError(t, err)
	assert.Equal(t, "SWE report - GH2301 - Asamama", msg.Subject)
	assert.Equal(t, to, msg.To)
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "gh2301-asamama.xlsx", msg.Attachments[0].Filename)
	assert.Equal(t, WorkbookContentType, msg.Attachments[0].ContentType)

	require.NoError(t, msg.Render("Bright Water Reporting Dashboard"))
	assert.True(t, strings.HasPrefix(msg.TextContent, "SWE report for GH2301 - Asamama (2024-03-01 08:30 UTC)"))
	assert.Contains(t, msg.TextContent, "SWE | Community | Week | Initial Household Surveys")
	assert.Contains(t, msg.TextContent, "BW-1 - Ama | Asiakwa | 3 | 1 | 2 | 3 | 4 | 5")
	assert.Contains(t, msg.TextContent, "Bright Water Reporting Dashboard")
	assert.Contains(t, msg.HTMLContent, "<h3>Cumulative Numbers</h3>")
	assert.Contains(t, msg.HTMLContent, "<td>BW-1 - Ama</td>")
}
