package session

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/brightwater/swereport/core"
	"github.com/brightwater/swereport/core/project"
	"github.com/brightwater/swereport/core/report"
)

type (
	envelope struct {
		event Event
		reply chan reply
	}

	reply struct {
		snap Snapshot
		err  error
	}

	// loaded is the outcome of a fetch started for a generation.
	loaded struct {
		gen        uint64
		label      string
		recent     report.Table
		cumulative report.Table
		err        error
	}

	subscription struct {
		ch     chan Snapshot
		remove bool
	}

	Session struct {
		id      string
		loader  Loader
		timeout time.Duration
		logger  core.Logger
		now     func() time.Time

		events  chan envelope
		results chan loaded
		subs    chan subscription
		quit    chan struct{}
		stopped chan struct{}
		once    sync.Once
		fetches sync.WaitGroup

		// owned by the run loop
		state       Snapshot
		cancelFetch context.CancelFunc
		observers   map[chan Snapshot]struct{}
	}
)

// newSession starts the event loop of a session on the default project.
// Nothing is fetched until the session is opened.
func newSession(id string, loader Loader, timeout time.Duration, logger core.Logger, now func() time.Time) *Session {
	s := &Session{
		id:        id,
		loader:    loader,
		timeout:   timeout,
		logger:    logger,
		now:       now,
		events:    make(chan envelope),
		results:   make(chan loaded),
		subs:      make(chan subscription),
		quit:      make(chan struct{}),
		stopped:   make(chan struct{}),
		observers: make(map[chan Snapshot]struct{}),
		state: Snapshot{
			SessionID: id,
			Project:   project.DefaultLabel,
			Theme:     Light,
		},
	}
	s.state.UpdatedAt = s.now()
	go s.run()
	return s
}

func (s *Session) ID() string { return s.id }

// Dispatch applies `ev` and returns the resulting snapshot.
// An unknown project leaves the state untouched and returns a core.UnknownProjectError.
func (s *Session) Dispatch(ctx context.Context, ev Event) (Snapshot, error) {
	env := envelope{event: ev, reply: make(chan reply, 1)}
	select {
	case s.events <- env:
	case <-s.quit:
		return Snapshot{}, ErrClosed
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
	select {
	case r := <-env.reply:
		return r.snap, r.err
	case <-s.quit:
		return Snapshot{}, ErrClosed
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

// Snapshot returns the current state.
func (s *Session) Snapshot(ctx context.Context) (Snapshot, error) {
	return s.Dispatch(ctx, nil)
}

// Subscribe registers an observer. The channel receives the current snapshot right
// away, then the latest snapshot after every state change; slow observers only miss
// intermediate states. The channel is closed when the session closes.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	select {
	case s.subs <- subscription{ch: ch}:
	case <-s.quit:
		close(ch)
		return ch, func() {}
	}
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			select {
			case s.subs <- subscription{ch: ch, remove: true}:
			case <-s.quit:
			}
		})
	}
}

// Await waits until the views of generation `gen` (or a later one) are settled.
func (s *Session) Await(ctx context.Context, gen uint64) (Snapshot, error) {
	ch, unsubscribe := s.Subscribe()
	defer unsubscribe()
	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				return Snapshot{}, ErrClosed
			}
			if snap.Generation >= gen && !snap.Loading {
				return snap, nil
			}
		case <-ctx.Done():
			return Snapshot{}, ctx.Err()
		}
	}
}

// Close stops the session, cancelling any fetch in flight.
func (s *Session) Close() {
	s.once.Do(func() { close(s.quit) })
	<-s.stopped
	s.fetches.Wait()
}

func (s *Session) run() {
	defer close(s.stopped)
	for {
		select {
		case <-s.quit:
			if s.cancelFetch != nil {
				s.cancelFetch()
			}
			for ch := range s.observers {
				close(ch)
			}
			return
		case env := <-s.events:
			err := s.apply(env.event)
			env.reply <- reply{snap: s.state, err: err}
		case res := <-s.results:
			s.settle(res)
		case sub := <-s.subs:
			if sub.remove {
				if _, ok := s.observers[sub.ch]; ok {
					delete(s.observers, sub.ch)
					close(sub.ch)
				}
				continue
			}
			s.observers[sub.ch] = struct{}{}
			sub.ch <- s.state
		}
	}
}

func (s *Session) apply(ev Event) error {
	switch ev := ev.(type) {
	case nil:
		return nil
	case SelectProject:
		key, err := s.loader.Resolve(ev.Label)
		if err != nil {
			return err
		}
		s.state.Project = ev.Label
		s.load(key)
	case Open:
		if s.state.Generation > 0 {
			return nil
		}
		key, err := s.loader.Resolve(s.state.Project)
		if err != nil {
			return err
		}
		s.load(key)
	case Refresh:
		key, err := s.loader.Resolve(s.state.Project)
		if err != nil {
			return err
		}
		s.load(key)
	case ToggleTheme:
		s.state.Theme = s.state.Theme.Toggle()
	case SetTheme:
		if !ev.Theme.Valid() {
			return core.NewValidationError(errors.Errorf("unknown theme %q", ev.Theme),
				core.FieldError{Field: "theme", Error: "must be one of: light dark"})
		}
		s.state.Theme = ev.Theme
	default:
		return errors.Errorf("unknown event %T", ev)
	}
	s.changed()
	return nil
}

// load starts computing the views of `key` for a new generation. A fetch still
// running for an older generation is cancelled and its result will be ignored.
func (s *Session) load(key project.Key) {
	if s.cancelFetch != nil {
		s.cancelFetch()
	}
	s.state.Generation++
	s.state.Loading = true

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	s.cancelFetch = cancel
	gen, label := s.state.Generation, s.state.Project

	s.fetches.Add(1)
	go func() {
		defer s.fetches.Done()
		defer cancel()
		res := loaded{gen: gen, label: label}
		records, err := s.loader.Fetch(ctx, key)
		if err != nil {
			res.err = err
		} else {
			res.recent = report.RecentWeeks(records).Table()
			res.cumulative = report.Cumulative(records).Table()
		}
		select {
		case s.results <- res:
		case <-s.quit:
		}
	}()
}

func (s *Session) settle(res loaded) {
	if res.gen != s.state.Generation {
		return // superseded by a later selection
	}
	s.state.Loading = false
	s.cancelFetch = nil
	if res.err != nil {
		// keep the last good views
		s.state.Err = res.err
		if s.logger != nil {
			s.logger.Warn("loading project views", res.err,
				map[string]interface{}{"project": res.label}, core.Person{ID: s.id})
		}
	} else {
		s.state.Err = nil
		s.state.ViewsProject = res.label
		s.state.RecentWeeks = res.recent
		s.state.Cumulative = res.cumulative
	}
	s.changed()
}

func (s *Session) changed() {
	s.state.UpdatedAt = s.now()
	for ch := range s.observers {
		select {
		case <-ch: // drop the stale snapshot
		default:
		}
		ch <- s.state
	}
}
