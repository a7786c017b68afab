package report

import (
	"bytes"
	"net/mail"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/brightwater/swereport/core"
)

// EmailData is the template data of the "report" email.
type EmailData struct {
	Project     string
	GeneratedAt time.Time
	Tables      []Table
}

// NewEmail builds the report email of a project, with both views attached as a workbook.
func NewEmail(project string, to []mail.Address, generatedAt time.Time, tables ...Table) (*core.EmailMessage, error) {
	msg := &core.EmailMessage{
		To:           to,
		Subject:      "SWE report - " + project,
		TemplateName: "report",
		TemplateData: EmailData{Project: project, GeneratedAt: generatedAt, Tables: tables},
	}

	var buf bytes.Buffer
	if err := WriteWorkbook(&buf, tables...); err != nil {
		return nil, errors.Wrap(err, "building attachment")
	}
	if err := msg.Attach(&buf, WorkbookFilename(project), WorkbookContentType); err != nil {
		return nil, errors.Wrap(err, "attaching workbook")
	}
	return msg, nil
}

// WorkbookFilename derives a file name from a project label, eg. "GH2301 - Asamama" => "gh2301-asamama.xlsx".
func WorkbookFilename(project string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(project) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	name := strings.TrimSuffix(b.String(), "-")
	if name == "" {
		name = "report"
	}
	return name + ".xlsx"
}
