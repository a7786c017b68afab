// Package session holds the per-browser dashboard state: the selected project,
// the display theme and the views computed for that project.
//
// Each Session owns its state in a single goroutine. Callers mutate it by
// dispatching events and observe it through snapshots.
package session

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/brightwater/swereport/core/project"
	"github.com/brightwater/swereport/core/report"
)

var ErrClosed = errors.New("session closed")

type Theme string

const (
	Light Theme = "light"
	Dark  Theme = "dark"
)

func (t Theme) Valid() bool { return t == Light || t == Dark }

func (t Theme) Toggle() Theme {
	if t == Dark {
		return Light
	}
	return Dark
}

// Loader resolves project labels and fetches their records.
type Loader interface {
	Resolve(label string) (project.Key, error)
	Fetch(ctx context.Context, key project.Key) (report.Records, error)
}

type (
	// Event is a state change request dispatched to a Session.
	Event interface {
		isEvent()
	}

	// SelectProject selects a project and recomputes both views for it.
	SelectProject struct {
		Label string
	}

	// ToggleTheme flips the display theme.
	ToggleTheme struct{}

	// SetTheme sets the display theme.
	SetTheme struct {
		Theme Theme
	}

	// Refresh recomputes the views of the selected project.
	Refresh struct{}

	// Open loads the selected project unless a load was already started.
	Open struct{}
)

func (SelectProject) isEvent() {}
func (ToggleTheme) isEvent()   {}
func (SetTheme) isEvent()      {}
func (Refresh) isEvent()       {}
func (Open) isEvent()          {}

// Snapshot is a copy of a session's state.
type Snapshot struct {
	SessionID string
	Project   string // selected project label
	Theme     Theme

	// Generation increases with every load; views of older generations are discarded.
	// It is 0 until the session is opened.
	Generation uint64
	Loading    bool

	// ViewsProject is the project the views were computed for. It differs from
	// Project while loading, or when the last load failed and the previous views are kept.
	ViewsProject string
	RecentWeeks  report.Table
	Cumulative   report.Table
	Err          error // failure of the last load, if any
	UpdatedAt    time.Time
}

// HasViews reports whether views were computed at least once.
func (s Snapshot) HasViews() bool { return s.ViewsProject != "" }
