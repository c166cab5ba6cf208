package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/mmcdole/anidex/internal/adapter"
	"github.com/mmcdole/anidex/internal/domain"
)

// newTestCommands wires a full stack against handler with an in-memory favorites store
func newTestCommands(t *testing.T, handler http.Handler) (*commands, *bytes.Buffer) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := adapter.DefaultConfig()
	cfg.API.BaseURL = srv.URL
	cfg.API.RequestsPerSecond = 1000
	cfg.API.MaxAttempts = 1
	cfg.API.BulkDelay = 0
	cfg.Cache.GCInterval = 0
	cfg.Favorites.Path = ""

	stack, err := adapter.NewStack(cfg, adapter.NullLogger())
	if err != nil {
		t.Fatalf("NewStack: %v", err)
	}
	t.Cleanup(func() { stack.Close() })

	var out bytes.Buffer
	return &commands{stack: stack, cfg: cfg, out: &out, limit: 10}, &out
}

func TestShowMarksFailedSections(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/anime/1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"mal_id":1,"title":"Cowboy Bebop","type":"TV","episodes":26,"score":8.75,"synopsis":"Space bounty hunters."}}`)
	})
	mux.HandleFunc("/anime/1/relations", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"relation":"Side story","entry":[{"mal_id":5,"type":"anime","name":"Tengoku no Tobira"}]}]}`)
	})
	mux.HandleFunc("/anime/5", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"mal_id":5,"title":"Tengoku no Tobira"}}`)
	})
	mux.HandleFunc("/anime/1/characters", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"character":{"mal_id":1,"name":"Spike Spiegel"},"role":"Main"}]}`)
	})
	mux.HandleFunc("/anime/1/pictures", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[]}`)
	})
	mux.HandleFunc("/anime/1/videos", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	mux.HandleFunc("/anime/1/statistics", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	c, out := newTestCommands(t, mux)
	if err := c.dispatch(context.Background(), []string{"show", "1"}); err != nil {
		t.Fatalf("show: %v", err)
	}

	got := out.String()
	for _, want := range []string{
		"Cowboy Bebop",
		"Space bounty hunters.",
		"Side story: Tengoku no Tobira (anime 5)",
		"Spike Spiegel (Main)",
		"== Pictures ==\n(none)",
		"== Videos ==\n(unavailable)",
		"== Statistics ==\n(unavailable)",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestShowRejectsBadID(t *testing.T) {
	c, _ := newTestCommands(t, http.NotFoundHandler())

	err := c.dispatch(context.Background(), []string{"show", "bebop"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSearchPrintsResults(t *testing.T) {
	c, out := newTestCommands(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if q := r.URL.Query().Get("q"); q != "cowboy bebop" {
			t.Errorf("q = %q", q)
		}
		fmt.Fprint(w, `{"data":[{"mal_id":1,"title":"Cowboy Bebop","type":"TV","episodes":26}],`+
			`"pagination":{"current_page":1,"has_next_page":true,"items":{"count":1,"total":3,"per_page":1}}}`)
	}))

	if err := c.dispatch(context.Background(), []string{"search", "cowboy", "bebop"}); err != nil {
		t.Fatalf("search: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "Cowboy Bebop") || !strings.Contains(got, "TV · 26 eps") {
		t.Errorf("output = %q", got)
	}
	if !strings.Contains(got, "3 results, showing the first 1") {
		t.Errorf("output missing result count: %q", got)
	}
}

func TestSearchAppliesFilters(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/genres/anime", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"mal_id":1,"name":"Action"},{"mal_id":36,"name":"Slice of Life"}]}`)
	})
	var mu sync.Mutex
	var last url.Values
	query := func() url.Values {
		mu.Lock()
		defer mu.Unlock()
		return last
	}
	mux.HandleFunc("/anime", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		last = r.URL.Query()
		mu.Unlock()
		fmt.Fprint(w, `{"data":[{"mal_id":1,"title":"Cowboy Bebop","type":"TV","episodes":26}]}`)
	})

	c, out := newTestCommands(t, mux)
	err := c.dispatch(context.Background(), []string{"search",
		"-type", "tv", "-genre", "action,slice-of-life", "-min-score", "7.5",
		"-order-by", "score", "-sort", "desc", "bebop"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	want := map[string]string{
		"q": "bebop", "type": "tv", "genres": "1,36", "min_score": "7.5", "order_by": "score", "sort": "desc",
	}
	got := query()
	for k, v := range want {
		if got.Get(k) != v {
			t.Errorf("%s = %q, want %q", k, got.Get(k), v)
		}
	}
	if !strings.Contains(out.String(), "Cowboy Bebop") {
		t.Errorf("output = %q", out.String())
	}

	// Filters alone are enough
	if err := c.dispatch(context.Background(), []string{"search", "-status", "airing"}); err != nil {
		t.Fatalf("filter-only search: %v", err)
	}
	if got = query(); got.Get("status") != "airing" || got.Has("q") {
		t.Errorf("filter-only query = %v", got)
	}
}

func TestSearchRejectsUnknownGenre(t *testing.T) {
	c, _ := newTestCommands(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/anime" {
			t.Error("search sent with an unknown genre")
		}
		fmt.Fprint(w, `{"data":[{"mal_id":1,"name":"Action"}]}`)
	}))

	err := c.dispatch(context.Background(), []string{"search", "-genre", "mecha", "robots"})
	if !errors.Is(err, domain.ErrInvalidParams) {
		t.Errorf("err = %v, want ErrInvalidParams", err)
	}
}

func TestSeasonPrintsAiring(t *testing.T) {
	c, out := newTestCommands(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/seasons/now" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("limit") != "10" {
			t.Errorf("limit = %q", r.URL.Query().Get("limit"))
		}
		fmt.Fprint(w, `{"data":[{"mal_id":5,"title":"Frieren","type":"TV"}]}`)
	}))

	if err := c.dispatch(context.Background(), []string{"season"}); err != nil {
		t.Fatalf("season: %v", err)
	}
	if !strings.Contains(out.String(), "Frieren") {
		t.Errorf("output = %q", out.String())
	}
}

func TestConfigWritesEffectiveConfig(t *testing.T) {
	c, out := newTestCommands(t, http.NotFoundHandler())
	c.cfg.UI.Browser = "firefox"
	path := filepath.Join(t.TempDir(), "config.yaml")

	if err := c.dispatch(context.Background(), []string{"config", path}); err != nil {
		t.Fatalf("config: %v", err)
	}
	got, err := adapter.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if got.UI.Browser != "firefox" || got.API.BaseURL != c.cfg.API.BaseURL {
		t.Errorf("saved config = %+v / %+v", got.UI, got.API)
	}
	if !strings.Contains(out.String(), path) {
		t.Errorf("output = %q", out.String())
	}
}

func TestTopRejectsUnknownFilter(t *testing.T) {
	c, _ := newTestCommands(t, http.NotFoundHandler())

	err := c.dispatch(context.Background(), []string{"top", "worst"})
	if !errors.Is(err, domain.ErrInvalidParams) {
		t.Errorf("err = %v, want ErrInvalidParams", err)
	}
}

func TestHomeShowsUnavailableSection(t *testing.T) {
	c, out := newTestCommands(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/top/anime" {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprintf(w, `{"data":[{"mal_id":2,"title":"Latest %s"}]}`, r.URL.Query().Get("type"))
	}))

	if err := c.dispatch(context.Background(), []string{"home"}); err != nil {
		t.Fatalf("home: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "== Popular ==\n(unavailable)") {
		t.Errorf("popular section not marked unavailable:\n%s", got)
	}
	if !strings.Contains(got, "Latest tv") || !strings.Contains(got, "Latest movie") {
		t.Errorf("latest sections missing:\n%s", got)
	}
}

func TestFavoritesExportImport(t *testing.T) {
	c, out := newTestCommands(t, http.NotFoundHandler())

	if err := c.dispatch(context.Background(), []string{"favorites"}); err != nil {
		t.Fatalf("favorites: %v", err)
	}
	if !strings.Contains(out.String(), "No favorites yet") {
		t.Errorf("output = %q", out.String())
	}

	if _, err := c.stack.Favorites.Add(domain.Anime{ID: 1, Title: "Cowboy Bebop"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	path := filepath.Join(t.TempDir(), "favorites.toml")
	if err := c.dispatch(context.Background(), []string{"favorites", "export", path}); err != nil {
		t.Fatalf("export: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.Contains(string(data), "Cowboy Bebop") {
		t.Errorf("export = %q", data)
	}

	// Import into a fresh stack
	c2, out2 := newTestCommands(t, http.NotFoundHandler())
	if err := c2.dispatch(context.Background(), []string{"favorites", "import", path}); err != nil {
		t.Fatalf("import: %v", err)
	}
	if !strings.Contains(out2.String(), "Imported 1 favorites") {
		t.Errorf("output = %q", out2.String())
	}
	if ok, _ := c2.stack.Favorites.IsFavorite(1); !ok {
		t.Error("imported favorite missing")
	}
}

func TestDispatchErrors(t *testing.T) {
	c, _ := newTestCommands(t, http.NotFoundHandler())

	if err := c.dispatch(context.Background(), nil); !errors.Is(err, errNoCommand) {
		t.Errorf("empty args err = %v", err)
	}
	for _, args := range [][]string{{"bogus"}, {"search"}, {"show"}, {"favorites", "bogus"}} {
		if err := c.dispatch(context.Background(), args); err == nil {
			t.Errorf("dispatch(%v) succeeded", args)
		}
	}
}
