package project

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightwater/swereport/core"
)

type fakeSource struct {
	mu       sync.Mutex
	calls    map[string]int
	failures int // number of calls failing before success
	features []map[string]interface{}
	block    chan struct{}
}

func (s *fakeSource) Query(ctx context.Context, itemID string) ([]map[string]interface{}, error) {
	s.mu.Lock()
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	s.calls[itemID]++
	n := s.calls[itemID]
	s.mu.Unlock()

	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if n <= s.failures {
		return nil, errors.New("connection refused")
	}
	return s.features, nil
}

func (s *fakeSource) callCount(itemID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[itemID]
}

func feature(id string, flag string) map[string]interface{} {
	return map[string]interface{}{
		"BrightWaterID":            id,
		"Namebwe":                  "Site " + id,
		"Community":                "Akrofufu",
		"Week":                     float64(1),
		"Last5Weeks":               flag,
		"InitialHouseholdSurveys":  float64(1),
		"FollowUpHouseholdSurveys": float64(1),
		"HHoldWaterTests":          float64(1),
		"CommWaterTests":           float64(1),
		"HHoldTeachingVisits":      float64(1),
	}
}

func newTestRegistry(t *testing.T, src Source, retries int) *Registry {
	items := make(map[string]string)
	for _, k := range Keys() {
		if k != "sankubenase" {
			items[k] = "item-" + k
		}
	}
	reg, err := NewRegistry(items, src, Options{
		Timeout:    time.Second,
		Retries:    retries,
		NewBackOff: func() backoff.BackOff { return &backoff.ZeroBackOff{} },
	})
	require.NoError(t, err)
	return reg
}

func TestNewRegistry_invalidArgs(t *testing.T) {
	_, err := NewRegistry(nil, nil, Options{})
	assert.Error(t, err)

	_, err = NewRegistry(nil, &fakeSource{}, Options{Retries: -1})
	assert.Error(t, err)
}

func TestRegistry_Projects(t *testing.T) {
	reg := newTestRegistry(t, &fakeSource{}, 0)
	entries := reg.Projects()
	require.Len(t, entries, 9)
	assert.Equal(t, "GH2402 - Akrofufu 1", entries[0].Label)
	assert.Equal(t, Key("akrofufu1"), entries[0].Key)
	assert.True(t, entries[0].Configured)
	assert.Equal(t, "GH2101 - Sankubenase", entries[8].Label)
	assert.False(t, entries[8].Configured)
}

func TestRegistry_Resolve(t *testing.T) {
	reg := newTestRegistry(t, &fakeSource{}, 0)

	want := map[string]Key{
		"GH2402 - Akrofufu 1":  "akrofufu1",
		"GH2402 - Akrofufu 2":  "akrofufu2",
		"GH2302 - Abomosu 1":   "abomosu1",
		"GH2302 - Abomosu 2":   "abomosu2",
		"GH2301 - Asamama":     "asamama",
		"GH2203 - Asunafo":     "asunafo",
		"GH2202 - Ekorso":      "ekorso",
		"GH2201 - Akakom":      "akakom",
		"GH2101 - Sankubenase": "sankubenase",
	}
	for label, key := range want {
		got, err := reg.Resolve(label)
		require.NoError(t, err, label)
		assert.Equal(t, key, got)
	}

	tests := []struct {
		label          string
		wantSuggestion string
	}{
		{label: "", wantSuggestion: ""},
		{label: "akrofufu1", wantSuggestion: "GH2402 - Akrofufu 1"},
		{label: "GH2201 - Akakom ", wantSuggestion: "GH2201 - Akakom"},
		{label: "gh2301 - asamama", wantSuggestion: "GH2301 - Asamama"},
		{label: "Atlantis", wantSuggestion: ""},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			_, err := reg.Resolve(tt.label)
			require.Error(t, err)
			require.True(t, core.IsUnknownProject(err))
			assert.Equal(t, tt.wantSuggestion, err.(*core.UnknownProjectError).Suggestion)
		})
	}
}

func TestRegistry_Fetch(t *testing.T) {
	ctx := context.Background()

	t.Run("ok", func(t *testing.T) {
		src := &fakeSource{features: []map[string]interface{}{feature("BW01", "1"), feature("BW02", "0")}}
		reg := newTestRegistry(t, src, 0)
		records, err := reg.Fetch(ctx, "akakom")
		require.NoError(t, err)
		assert.Len(t, records, 2)
		assert.Equal(t, 1, src.callCount("item-akakom"))
	})

	t.Run("refetches on every call", func(t *testing.T) {
		src := &fakeSource{}
		reg := newTestRegistry(t, src, 0)
		_, _ = reg.Fetch(ctx, "ekorso")
		_, _ = reg.Fetch(ctx, "ekorso")
		assert.Equal(t, 2, src.callCount("item-ekorso"))
	})

	t.Run("not configured", func(t *testing.T) {
		src := &fakeSource{}
		reg := newTestRegistry(t, src, 2)
		_, err := reg.Fetch(ctx, "sankubenase")
		assert.True(t, core.IsDataSourceUnavailable(err))
		assert.Zero(t, src.callCount(""))
	})

	t.Run("retries then succeeds", func(t *testing.T) {
		src := &fakeSource{failures: 2, features: []map[string]interface{}{feature("BW01", "1")}}
		reg := newTestRegistry(t, src, 2)
		records, err := reg.Fetch(ctx, "asunafo")
		require.NoError(t, err)
		assert.Len(t, records, 1)
		assert.Equal(t, 3, src.callCount("item-asunafo"))
	})

	t.Run("retries are bounded", func(t *testing.T) {
		src := &fakeSource{failures: 10}
		reg := newTestRegistry(t, src, 2)
		_, err := reg.Fetch(ctx, "asunafo")
		require.Error(t, err)
		assert.True(t, core.IsDataSourceUnavailable(err))
		assert.Equal(t, 3, src.callCount("item-asunafo"))
	})

	t.Run("malformed records are not retried", func(t *testing.T) {
		bad := feature("BW01", "1")
		delete(bad, "CommWaterTests")
		src := &fakeSource{features: []map[string]interface{}{bad}}
		reg := newTestRegistry(t, src, 2)
		_, err := reg.Fetch(ctx, "asamama")
		require.Error(t, err)
		assert.True(t, core.IsMalformedRecord(err))
		assert.Equal(t, 1, src.callCount("item-asamama"))
	})

	t.Run("caller gives up", func(t *testing.T) {
		src := &fakeSource{block: make(chan struct{})}
		defer close(src.block)
		reg := newTestRegistry(t, src, 0)
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := reg.Fetch(cctx, "abomosu1")
		assert.True(t, core.IsDataSourceUnavailable(err))
	})
}

func TestRegistry_Load(t *testing.T) {
	src := &fakeSource{features: []map[string]interface{}{feature("BW01", "1")}}
	reg := newTestRegistry(t, src, 0)

	records, err := reg.Load(context.Background(), "GH2302 - Abomosu 2")
	require.NoError(t, err)
	assert.Len(t, records, 1)

	_, err = reg.Load(context.Background(), "GH9999 - Nowhere")
	assert.True(t, core.IsUnknownProject(err))
}
