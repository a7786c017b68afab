package project

import (
	"context"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/sync/singleflight"

	"github.com/brightwater/swereport/core"
	"github.com/brightwater/swereport/core/report"
)

// minSuggestionRatio is the similarity under which no label is suggested.
const minSuggestionRatio = 0.6

// Source queries every feature of a hosted table.
type Source interface {
	Query(ctx context.Context, itemID string) ([]map[string]interface{}, error)
}

type (
	Options struct {
		Timeout    time.Duration // per fetch, retries included
		Retries    int
		NewBackOff func() backoff.BackOff
		Logger     core.Logger
	}

	// Registry maps project labels to their hosted tables. It is read-only once built.
	Registry struct {
		byLabel map[string]Key
		items   map[Key]string
		source  Source
		opts    Options
		group   singleflight.Group
	}
)

// NewRegistry builds the registry from the item id configured per project key.
func NewRegistry(items map[string]string, source Source, opts Options) (*Registry, error) {
	if err := vala.BeginValidation().Validate(
		vala.IsNotNil(source, "source"),
		vala.Not(vala.GreaterThan(0, opts.Retries, "retries")),
	).Check(); err != nil {
		return nil, err
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.NewBackOff == nil {
		opts.NewBackOff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		}
	}

	r := &Registry{
		byLabel: make(map[string]Key, len(Projects)),
		items:   make(map[Key]string, len(Projects)),
		source:  source,
		opts:    opts,
	}
	for _, p := range Projects {
		r.byLabel[p.Label] = p.Key
		if id := core.CleanString(items[string(p.Key)]); id != "" {
			r.items[p.Key] = id
		}
	}
	return r, nil
}

// Projects lists the projects in display order.
func (r *Registry) Projects() []Entry {
	entries := make([]Entry, 0, len(Projects))
	for _, p := range Projects {
		id, ok := r.items[p.Key]
		entries = append(entries, Entry{Project: p, ItemID: id, Configured: ok})
	}
	return entries
}

// Resolve returns the key of the project labelled `label`.
func (r *Registry) Resolve(label string) (Key, error) {
	if key, ok := r.byLabel[label]; ok {
		return key, nil
	}
	return "", core.NewUnknownProjectError(label, suggest(label))
}

// Load resolves `label` and fetches its records.
func (r *Registry) Load(ctx context.Context, label string) (report.Records, error) {
	key, err := r.Resolve(label)
	if err != nil {
		return nil, err
	}
	return r.Fetch(ctx, key)
}

// Fetch queries the hosted table of `key` and decodes its records.
// Concurrent fetches of the same key share one upstream query.
func (r *Registry) Fetch(ctx context.Context, key Key) (report.Records, error) {
	itemID, ok := r.items[key]
	if !ok {
		return nil, core.NewDataSourceUnavailableError(string(key), errors.New("no hosted table configured"))
	}

	ch := r.group.DoChan(string(key), func() (interface{}, error) {
		// the shared query outlives any single caller giving up on it
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.Timeout)
		defer cancel()
		return r.fetch(fctx, key, itemID)
	})
	select {
	case <-ctx.Done():
		return nil, core.NewDataSourceUnavailableError(string(key), ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(report.Records), nil
	}
}

func (r *Registry) fetch(ctx context.Context, key Key, itemID string) (report.Records, error) {
	op := func() (report.Records, error) {
		features, err := r.source.Query(ctx, itemID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		records, err := report.DecodeRecords(features)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		return records, nil
	}
	notify := func(err error, wait time.Duration) {
		if r.opts.Logger != nil {
			r.opts.Logger.Warn("retrying project fetch", err, map[string]interface{}{"project": key, "wait": wait.String()})
		}
	}

	records, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(r.opts.NewBackOff()),
		backoff.WithMaxTries(uint(r.opts.Retries+1)),
		backoff.WithNotify(notify),
	)
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Unwrap()
		}
		if core.IsMalformedRecord(err) {
			return nil, errors.Wrapf(err, "decoding %s", key)
		}
		return nil, core.NewDataSourceUnavailableError(string(key), err)
	}
	return records, nil
}

// suggest returns the known label closest to `label`, if any is close enough.
func suggest(label string) string {
	label = core.CleanString(label, true /* lower */)
	if label == "" {
		return ""
	}
	var best string
	var bestRatio float64
	for _, p := range Projects {
		ratio := difflib.NewMatcher(strings.Split(label, ""), strings.Split(strings.ToLower(p.Label), "")).Ratio()
		if ratio > bestRatio {
			best, bestRatio = p.Label, ratio
		}
	}
	if bestRatio < minSuggestionRatio {
		return ""
	}
	return best
}
