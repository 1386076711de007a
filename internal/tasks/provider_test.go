package tasks

import (
	"context"
	"errors"
	"io"
	"reflect"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/setlist/internal/models"
	"github.com/desertthunder/setlist/internal/shared"
	tu "github.com/desertthunder/setlist/internal/testing"
)

type mockCache struct {
	mu      sync.Mutex
	records map[string]models.FeatureRecord
	puts    int
	getErr  error
}

func (m *mockCache) GetFeatures(ids []string) (map[string]models.FeatureRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	found := map[string]models.FeatureRecord{}
	for _, id := range ids {
		if r, ok := m.records[id]; ok {
			found[id] = r
		}
	}
	return found, nil
}

func (m *mockCache) PutFeatures(records []models.FeatureRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.records == nil {
		m.records = map[string]models.FeatureRecord{}
	}
	for _, r := range records {
		m.records[r.ID] = r
	}
	m.puts++
	return nil
}

func newTestProvider(srv *tu.MockService, cache FeatureCache) *SpotifyFeatureProvider {
	return NewSpotifyFeatureProvider(srv, ProviderOpts{
		Workers:   4,
		RateLimit: 1000,
		Cache:     cache,
		Logger:    log.New(io.Discard),
	})
}

func TestNewSpotifyFeatureProvider(t *testing.T) {
	tests := []struct {
		name        string
		opts        ProviderOpts
		wantWorkers int
	}{
		{"defaults", ProviderOpts{}, DefaultWorkers},
		{"custom", ProviderOpts{Workers: 7}, 7},
		{"capped", ProviderOpts{Workers: 50}, MaxWorkers},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewSpotifyFeatureProvider(nil, tt.opts)
			if p.workers != tt.wantWorkers {
				t.Errorf("expected %d workers, got %d", tt.wantWorkers, p.workers)
			}
		})
	}
}

func TestSpotifyFeatureProvider_Resolve(t *testing.T) {
	t.Run("resolves every track", func(t *testing.T) {
		var records []models.FeatureRecord
		for i, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"} {
			records = append(records, tu.Record(id, i%12, models.Major, 100+float64(i), "house"))
		}
		srv := tu.NewMockService("p1", records...)
		p := newTestProvider(srv, nil)

		resolved, failures := p.Resolve(context.Background(), []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"})
		if len(failures) != 0 {
			t.Fatalf("expected no failures, got %v", failures)
		}
		if len(resolved) != 10 {
			t.Fatalf("expected 10 records, got %d", len(resolved))
		}
		if !reflect.DeepEqual(resolved["c"], records[2]) {
			t.Errorf("expected %+v, got %+v", records[2], resolved["c"])
		}
	})

	t.Run("duplicate ids resolved once", func(t *testing.T) {
		srv := tu.NewMockService("p1", tu.ClubRecord("a", 120))
		p := newTestProvider(srv, nil)

		resolved, _ := p.Resolve(context.Background(), []string{"a", "a", "", "a"})
		if len(resolved) != 1 {
			t.Errorf("expected 1 record, got %d", len(resolved))
		}
		if calls := srv.Calls("AudioFeatures"); calls != 1 {
			t.Errorf("expected 1 AudioFeatures call, got %d", calls)
		}
	})

	t.Run("failures in input order", func(t *testing.T) {
		srv := tu.NewMockService("p1",
			tu.ClubRecord("a", 120),
			tu.ClubRecord("b", 121),
			tu.ClubRecord("c", 122),
			tu.ClubRecord("d", 123),
		)
		srv.Durations = map[string]int{"d": 0}
		srv.FeatureErrs = map[string]error{"b": shared.ErrTrackNotFound}
		p := newTestProvider(srv, nil)

		resolved, failures := p.Resolve(context.Background(), []string{"d", "a", "b", "c", "missing"})
		if len(resolved) != 2 {
			t.Errorf("expected 2 records, got %d", len(resolved))
		}

		var ids []string
		for _, f := range failures {
			ids = append(ids, f.TrackID)
			if f.Reason == "" {
				t.Errorf("expected a reason for %s", f.TrackID)
			}
		}
		if !reflect.DeepEqual(ids, []string{"d", "b", "missing"}) {
			t.Errorf("expected [d b missing], got %v", ids)
		}
		if !errors.Is(failures[0].Err, ErrUnplayable) {
			t.Errorf("expected ErrUnplayable, got %v", failures[0].Err)
		}
	})

	t.Run("invalid features dropped", func(t *testing.T) {
		bad := tu.ClubRecord("bad", 120)
		bad.Tempo = 0
		srv := tu.NewMockService("p1", bad)
		p := newTestProvider(srv, nil)

		_, failures := p.Resolve(context.Background(), []string{"bad"})
		if len(failures) != 1 || !errors.Is(failures[0].Err, models.ErrInvalidFeatures) {
			t.Errorf("expected ErrInvalidFeatures, got %v", failures)
		}
	})

	t.Run("artist genres memoized", func(t *testing.T) {
		a := tu.Record("a", 0, models.Major, 120)
		b := tu.Record("b", 0, models.Major, 122)
		c := tu.Record("c", 0, models.Major, 124)
		a.Artist, b.Artist, c.Artist = "shared", "shared", "shared"
		srv := tu.NewMockService("p1", a, b, c)
		srv.ArtistGenres = map[string][]string{"shared": {"techno", "house", "techno"}}
		p := newTestProvider(srv, nil)

		resolved, failures := p.Resolve(context.Background(), []string{"a", "b", "c"})
		if len(failures) != 0 {
			t.Fatalf("expected no failures, got %v", failures)
		}
		if calls := srv.Calls("RelatedArtistGenres"); calls != 1 {
			t.Errorf("expected 1 related-artist lookup, got %d", calls)
		}
		if !reflect.DeepEqual(resolved["b"].Genres, []string{"house", "techno"}) {
			t.Errorf("expected [house techno], got %v", resolved["b"].Genres)
		}
	})

	t.Run("nil source drops everything", func(t *testing.T) {
		p := NewSpotifyFeatureProvider(nil, ProviderOpts{Logger: log.New(io.Discard)})
		_, failures := p.Resolve(context.Background(), []string{"a"})
		if len(failures) != 1 || !errors.Is(failures[0].Err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", failures)
		}
	})

	t.Run("canceled context", func(t *testing.T) {
		srv := tu.NewMockService("p1", tu.ClubRecord("a", 120))
		p := newTestProvider(srv, nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		resolved, failures := p.Resolve(ctx, []string{"a"})
		if len(resolved) != 0 || len(failures) != 1 {
			t.Errorf("expected 0 records and 1 failure, got %d and %d", len(resolved), len(failures))
		}
	})
}

func TestSpotifyFeatureProvider_Cache(t *testing.T) {
	srv := tu.NewMockService("p1", tu.ClubRecord("a", 120), tu.ClubRecord("b", 124))
	cache := &mockCache{records: map[string]models.FeatureRecord{"a": tu.ClubRecord("a", 99)}}
	p := newTestProvider(srv, cache)

	resolved, failures := p.Resolve(context.Background(), []string{"a", "b"})
	if len(failures) != 0 {
		t.Fatalf("expected no failures, got %v", failures)
	}
	if resolved["a"].Tempo != 99 {
		t.Errorf("expected cached tempo 99, got %v", resolved["a"].Tempo)
	}
	if calls := srv.Calls("AudioFeatures"); calls != 1 {
		t.Errorf("expected 1 AudioFeatures call, got %d", calls)
	}
	if _, ok := cache.records["b"]; !ok {
		t.Error("expected b written to cache")
	}

	t.Run("warm cache skips the catalog", func(t *testing.T) {
		before := srv.Calls("AudioFeatures")
		if _, failures := p.Resolve(context.Background(), []string{"a", "b"}); len(failures) != 0 {
			t.Fatalf("expected no failures, got %v", failures)
		}
		if srv.Calls("AudioFeatures") != before {
			t.Errorf("expected no new AudioFeatures calls")
		}
		if cache.puts != 1 {
			t.Errorf("expected 1 cache write, got %d", cache.puts)
		}
	})

	t.Run("cache read error falls back to catalog", func(t *testing.T) {
		broken := &mockCache{getErr: errors.New("locked")}
		p := newTestProvider(srv, broken)
		resolved, _ := p.Resolve(context.Background(), []string{"a"})
		if resolved["a"].Tempo != 120 {
			t.Errorf("expected tempo 120, got %v", resolved["a"].Tempo)
		}
	})
}

func TestOrdered(t *testing.T) {
	resolved := map[string]models.FeatureRecord{
		"a": tu.ClubRecord("a", 120),
		"c": tu.ClubRecord("c", 124),
	}

	got := Ordered([]string{"c", "b", "a", "c"}, resolved)
	var ids []string
	for _, r := range got {
		ids = append(ids, r.ID)
	}
	if !reflect.DeepEqual(ids, []string{"c", "a", "c"}) {
		t.Errorf("expected [c a c], got %v", ids)
	}
}
