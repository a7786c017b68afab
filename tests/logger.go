package testutil

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/brightwater/swereport/core"
)

// Logger records log entries as "LEVEL msg".
type Logger struct {
	mu      sync.Mutex
	entries []string
}

var _ core.Logger = (*Logger)(nil)

func (l *Logger) log(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, level+" "+msg)
}

func (l *Logger) Debug(msg string, _ ...interface{}) { l.log("DEBUG", msg) }
func (l *Logger) Info(msg string, _ ...interface{})  { l.log("INFO", msg) }
func (l *Logger) Warn(msg string, _ ...interface{})  { l.log("WARN", msg) }
func (l *Logger) Error(msg string, _ ...interface{}) { l.log("ERROR", msg) }
func (l *Logger) Fatal(msg string, _ ...interface{}) { panic(fmt.Sprintf("FATAL %s", msg)) }

func (l *Logger) Entries() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

// Contains reports whether an entry contains `s`.
func (l *Logger) Contains(s string) bool {
	for _, e := range l.Entries() {
		if strings.Contains(e, s) {
			return true
		}
	}
	return false
}

// Config returns a valid test configuration pointing at `portalURL`.
func Config(portalURL string) *core.Config {
	return &core.Config{
		Env:              "TEST",
		TestMode:         true,
		AppName:          "Bright Water Reporting Dashboard",
		Build:            "test",
		SecretKey:        "test-secret-key-0123456789",
		DefaultFromEmail: "Bright Water <noreply@brightwater.test>",
		Server: core.ServerConfig{
			Address:         ":0",
			Host:            "localhost",
			DisableReqLogs:  true,
			ShutdownTimeout: time.Second,
		},
		ArcGIS: core.ArcGISConfig{
			PortalURL:       portalURL,
			Username:        Username,
			Password:        Password,
			TokenExpiration: time.Hour,
		},
		Fetch:   core.FetchConfig{Timeout: 5 * time.Second, Retries: 1},
		Session: core.SessionConfig{CookieName: "swe_session", TTL: time.Hour, MaxSessions: 50},
	}
}
