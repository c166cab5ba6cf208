package jikan

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mmcdole/anidex/internal/domain"
	"github.com/mmcdole/anidex/internal/fetch"
	"github.com/mmcdole/anidex/internal/ratelimit"
)

func newTestClient(t *testing.T, handler http.Handler, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	sched := ratelimit.New(1000)
	t.Cleanup(sched.Close)

	f := &fetch.Client{
		HTTP:           srv.Client(),
		Scheduler:      sched,
		Base:           time.Millisecond,
		AttemptTimeout: time.Second,
	}
	return NewClient(srv.URL, f, nil, opts...)
}

func animeJSON(id int, title string) string {
	return fmt.Sprintf(`{"mal_id":%d,"title":%q,"type":"TV","episodes":12,"score":8.5,`+
		`"images":{"jpg":{"image_url":"https://cdn/%d.jpg","large_image_url":null},"webp":{"large_image_url":"https://cdn/%d-l.webp"}},`+
		`"genres":[{"mal_id":1,"type":"anime","name":"Action","url":"u"}]}`, id, title, id, id)
}

func TestSearchAnime_BuildsQueryAndMapsPage(t *testing.T) {
	var gotQuery string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/anime" {
			t.Errorf("path = %q, want /anime", r.URL.Path)
		}
		if ua := r.Header.Get("User-Agent"); ua != userAgent {
			t.Errorf("User-Agent = %q, want %q", ua, userAgent)
		}
		gotQuery = r.URL.RawQuery
		fmt.Fprintf(w, `{"data":[%s,%s],"pagination":{"current_page":1,"last_visible_page":4,"has_next_page":true,"items":{"count":2,"total":8,"per_page":2}}}`,
			animeJSON(1, "One"), animeJSON(2, "Two"))
	}))

	page, err := client.SearchAnime(context.Background(), domain.ListParams{
		Query:  " naruto ",
		Type:   "TV",
		Genres: []int{3, 1, 3},
		Limit:  2,
	})
	if err != nil {
		t.Fatalf("SearchAnime returned error: %v", err)
	}

	want := "genres=1%2C3&limit=2&page=1&q=naruto&type=tv"
	if gotQuery != want {
		t.Fatalf("query = %q, want %q", gotQuery, want)
	}
	if len(page.Items) != 2 || page.Items[1].Title != "Two" {
		t.Fatalf("items = %+v", page.Items)
	}
	if !page.Pagination.HasNextPage || page.Pagination.Total != 8 || page.Pagination.PerPage != 2 {
		t.Fatalf("pagination = %+v", page.Pagination)
	}
	img := page.Items[0].Images
	if img.ImageURL != "https://cdn/1.jpg" || img.LargeImageURL != "https://cdn/1-l.webp" {
		t.Fatalf("images = %+v, want jpg with webp fallback", img)
	}
}

func TestSearchAnime_PagesAreIndependent(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "1":
			fmt.Fprintf(w, `{"data":[%s],"pagination":{"current_page":1,"has_next_page":true}}`, animeJSON(1, "One"))
		case "2":
			fmt.Fprintf(w, `{"data":[%s],"pagination":{"current_page":2,"has_next_page":false}}`, animeJSON(2, "Two"))
		default:
			http.NotFound(w, r)
		}
	}))

	p1, err := client.SearchAnime(context.Background(), domain.ListParams{Page: 1})
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	p2, err := client.SearchAnime(context.Background(), domain.ListParams{Page: 2})
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if p1.Items[0].ID != 1 || !p1.Pagination.HasNextPage {
		t.Fatalf("page 1 = %+v", p1)
	}
	if p2.Items[0].ID != 2 || p2.Pagination.HasNextPage || p2.Pagination.CurrentPage != 2 {
		t.Fatalf("page 2 = %+v", p2)
	}
}

func TestSearchAnime_RejectsInvalidParams(t *testing.T) {
	var hits atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))

	tests := []domain.ListParams{
		{Limit: 26},
		{Type: "film"},
		{MinScore: 8, MaxScore: 5},
		{OrderBy: "hype"},
	}
	for _, p := range tests {
		if _, err := client.SearchAnime(context.Background(), p); !errors.Is(err, domain.ErrInvalidParams) {
			t.Errorf("SearchAnime(%+v) error = %v, want ErrInvalidParams", p, err)
		}
	}
	if hits.Load() != 0 {
		t.Fatalf("server hit %d times for invalid params", hits.Load())
	}
}

func TestGetAnime_NotFound(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"status":404}`, http.StatusNotFound)
	}))

	_, err := client.GetAnime(context.Background(), 999999)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestGetAnime_InvalidIDSkipsRequest(t *testing.T) {
	var hits atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))

	if _, err := client.GetAnime(context.Background(), 0); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	if hits.Load() != 0 {
		t.Fatal("server was hit for id 0")
	}
}

func TestGetAnime_ServerErrorIsStatusError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))

	_, err := client.GetAnime(context.Background(), 1)
	var statusErr *domain.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("error = %v, want *StatusError", err)
	}
	if statusErr.StatusCode != http.StatusServiceUnavailable || statusErr.Path != "/anime/1" {
		t.Fatalf("StatusError = %+v", statusErr)
	}
}

func TestGetAnime_MapsNullableFields(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"mal_id":5,"title":"T","title_english":null,"type":null,"episodes":null,"score":null,"year":null,"synopsis":null,"images":{"jpg":{},"webp":{}}}}`)
	}))

	a, err := client.GetAnime(context.Background(), 5)
	if err != nil {
		t.Fatalf("GetAnime returned error: %v", err)
	}
	if a.ID != 5 || a.Score != 0 || a.Episodes != 0 || a.Type != "" || a.TitleEnglish != "" {
		t.Fatalf("anime = %+v", a)
	}
}

func TestSubresources(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/anime/1/relations":
			fmt.Fprint(w, `{"data":[{"relation":"Sequel","entry":[{"mal_id":2,"type":"anime","name":"Two"},{"mal_id":7,"type":"manga","name":"Book"}]}]}`)
		case "/anime/1/characters":
			fmt.Fprint(w, `{"data":[{"character":{"mal_id":10,"name":"Hero","images":{"jpg":{"image_url":"c.jpg"}}},"role":"Main","voice_actors":[{"person":{"mal_id":20,"name":"VA"},"language":"Japanese"}]}]}`)
		case "/anime/1/pictures":
			fmt.Fprint(w, `{"data":[{"jpg":{"image_url":"p1.jpg"}},{"webp":{"image_url":"p2.webp"}}]}`)
		case "/anime/1/videos":
			fmt.Fprint(w, `{"data":{"promo":[{"title":"PV","trailer":{"youtube_id":"abc","images":{"image_url":"t.jpg"}}}],"episodes":[],"music_videos":[]}}`)
		case "/anime/1/statistics":
			fmt.Fprint(w, `{"data":{"watching":3,"completed":4,"total":7,"scores":[{"score":10,"votes":2,"percentage":50.0}]}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	ctx := context.Background()

	rels, err := client.GetRelations(ctx, 1)
	if err != nil || len(rels) != 1 || len(rels[0].Entries) != 2 {
		t.Fatalf("GetRelations = %+v, %v", rels, err)
	}
	if ids := domain.AnimeIDs(rels); len(ids) != 1 || ids[0] != 2 {
		t.Fatalf("AnimeIDs = %v, want [2]", ids)
	}

	chars, err := client.GetCharacters(ctx, 1)
	if err != nil || len(chars) != 1 || chars[0].ImageURL != "c.jpg" || chars[0].VoiceActors[0].Person.Name != "VA" {
		t.Fatalf("GetCharacters = %+v, %v", chars, err)
	}

	pics, err := client.GetPictures(ctx, 1)
	if err != nil || len(pics) != 2 || pics[1].ImageURL != "p2.webp" {
		t.Fatalf("GetPictures = %+v, %v", pics, err)
	}

	videos, err := client.GetVideos(ctx, 1)
	if err != nil || len(videos.Promo) != 1 || videos.Promo[0].YouTubeID != "abc" {
		t.Fatalf("GetVideos = %+v, %v", videos, err)
	}

	stats, err := client.GetStatistics(ctx, 1)
	if err != nil || stats.Total != 7 || len(stats.Scores) != 1 {
		t.Fatalf("GetStatistics = %+v, %v", stats, err)
	}
}

func TestGetTopAnime(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/top/anime" || r.URL.Query().Get("filter") != "bypopularity" || r.URL.Query().Get("limit") != "5" {
			t.Errorf("unexpected request %s", r.URL)
		}
		fmt.Fprintf(w, `{"data":[%s]}`, animeJSON(1, "One"))
	}))

	items, err := client.GetTopAnime(context.Background(), "bypopularity", 0)
	if err != nil || len(items) != 1 {
		t.Fatalf("GetTopAnime = %+v, %v", items, err)
	}
	if _, err := client.GetTopAnime(context.Background(), "newest", 5); !errors.Is(err, domain.ErrInvalidParams) {
		t.Fatalf("invalid filter error = %v, want ErrInvalidParams", err)
	}
}

func TestGetAnimeByTypeAndStatus(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("type") != "movie" || q.Get("order_by") != "start_date" || q.Get("sort") != "desc" || q.Has("status") {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, `{"data":[]}`)
	}))

	if _, err := client.GetAnimeByTypeAndStatus(context.Background(), "movie", "", 5); err != nil {
		t.Fatalf("GetAnimeByTypeAndStatus returned error: %v", err)
	}
}

func TestGetAnimeByIDs_SkipsFailuresAndPaces(t *testing.T) {
	var mu sync.Mutex
	var times []time.Time
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		times = append(times, time.Now())
		mu.Unlock()
		if strings.HasSuffix(r.URL.Path, "/2") {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/anime/")
		fmt.Fprintf(w, `{"data":{"mal_id":%s,"title":"A%s"}}`, id, id)
	}), WithBulkDelay(30*time.Millisecond))

	items, err := client.GetAnimeByIDs(context.Background(), []int{1, 2, 3})
	if err != nil {
		t.Fatalf("GetAnimeByIDs returned error: %v", err)
	}
	if len(items) != 2 || items[0].ID != 1 || items[1].ID != 3 {
		t.Fatalf("items = %+v, want ids [1 3]", items)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(times) != 3 {
		t.Fatalf("requests = %d, want 3 (sequential, no retries on 500)", len(times))
	}
	for i := 1; i < len(times); i++ {
		if gap := times[i].Sub(times[i-1]); gap < 25*time.Millisecond {
			t.Fatalf("gap %d = %v, want >= bulk delay", i, gap)
		}
	}
}

func TestGetAnimeByIDs_StopsOnCancel(t *testing.T) {
	var hits atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, `{"data":{"mal_id":1,"title":"A"}}`)
	}), WithBulkDelay(time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	items, err := client.GetAnimeByIDs(ctx, []int{1, 2, 3})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want DeadlineExceeded", err)
	}
	if len(items) != 1 || hits.Load() != 1 {
		t.Fatalf("items = %d, hits = %d, want 1 and 1", len(items), hits.Load())
	}
}
