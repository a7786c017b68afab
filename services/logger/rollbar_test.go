package logsvc

import (
	"bytes"
	"log"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/brightwater/swereport/core"
)

func TestRollbarLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewRollbarLogger(log.New(&buf, "", 0), &core.Config{Env: "TEST", TestMode: true, RollbarToken: "tok"})

	tests := []struct {
		name string
		log  func(msg string, args ...interface{})
	}{
		{name: "debug", log: logger.Debug},
		{name: "info", log: logger.Info},
		{name: "warn", log: logger.Warn},
		{name: "error", log: logger.Error},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			buf.Reset()
			tc.log("loading project views",
				errors.New("no table"),
				map[string]interface{}{"project": "GH2301 - Asamama"},
				core.Person{ID: "6f1c"})

			out := buf.String()
			assert.Contains(t, out, "loading project views\n")
			assert.Contains(t, out, "no table")
			assert.Contains(t, out, "map[project:GH2301 - Asamama]")
			assert.Contains(t, out, "{ID:6f1c Name:}")
		})
	}
}
