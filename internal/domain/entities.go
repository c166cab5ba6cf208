package domain

import (
	"fmt"
	"strings"
	"time"
)

// Images holds the poster URLs for an entry. JPG variants are preferred;
// the mapper falls back to WebP when a JPG URL is missing.
type Images struct {
	ImageURL      string `json:"image_url,omitempty" toml:"image_url,omitempty"`
	SmallImageURL string `json:"small_image_url,omitempty" toml:"small_image_url,omitempty"`
	LargeImageURL string `json:"large_image_url,omitempty" toml:"large_image_url,omitempty"`
}

// Best returns the largest available image URL.
func (i Images) Best() string {
	switch {
	case i.LargeImageURL != "":
		return i.LargeImageURL
	case i.ImageURL != "":
		return i.ImageURL
	default:
		return i.SmallImageURL
	}
}

// Genre is an entry in the genre taxonomy (also used for themes and demographics)
type Genre struct {
	ID    int    `json:"mal_id" toml:"mal_id"`
	Name  string `json:"name" toml:"name"`
	Type  string `json:"type,omitempty" toml:"type,omitempty"`
	URL   string `json:"url,omitempty" toml:"url,omitempty"`
	Count int    `json:"count,omitempty" toml:"-"` // Only set by the genre listing
}

// Anime is a catalog entry
type Anime struct {
	ID            int     `json:"mal_id"`
	URL           string  `json:"url,omitempty"`
	Title         string  `json:"title"`
	TitleEnglish  string  `json:"title_english,omitempty"`
	TitleJapanese string  `json:"title_japanese,omitempty"`
	Type          string  `json:"type,omitempty"`   // "TV", "Movie", ...
	Source        string  `json:"source,omitempty"` // "Manga", "Original", ...
	Episodes      int     `json:"episodes,omitempty"`
	Status        string  `json:"status,omitempty"`
	Airing        bool    `json:"airing,omitempty"`
	Aired         string  `json:"aired,omitempty"` // Human-readable airing range
	Duration      string  `json:"duration,omitempty"`
	Rating        string  `json:"rating,omitempty"`
	Score         float64 `json:"score,omitempty"`
	ScoredBy      int     `json:"scored_by,omitempty"`
	Rank          int     `json:"rank,omitempty"`
	Popularity    int     `json:"popularity,omitempty"`
	Members       int     `json:"members,omitempty"`
	Favorites     int     `json:"favorites,omitempty"`
	Synopsis      string  `json:"synopsis,omitempty"`
	Background    string  `json:"background,omitempty"`
	Season        string  `json:"season,omitempty"`
	Year          int     `json:"year,omitempty"`
	TrailerURL    string  `json:"trailer_url,omitempty"`
	Images        Images  `json:"images"`
	Genres        []Genre `json:"genres,omitempty"`
}

// DisplayTitle prefers the romanized title, then English
func (a Anime) DisplayTitle() string {
	if a.Title != "" {
		return a.Title
	}
	if a.TitleEnglish != "" {
		return a.TitleEnglish
	}
	return fmt.Sprintf("#%d", a.ID)
}

// GenreNames returns the genre names joined by ", "
func (a Anime) GenreNames() string {
	return joinGenres(a.Genres)
}

// ListItem interface implementation for Anime

func (a *Anime) GetID() int       { return a.ID }
func (a *Anime) GetTitle() string { return a.DisplayTitle() }
func (a *Anime) GetDescription() string {
	return describe(a.Type, a.Episodes, a.Score, a.Year)
}

// RelationEntry is one entity referenced by a relation
type RelationEntry struct {
	ID   int    `json:"mal_id"`
	Type string `json:"type"` // "anime" or "manga"
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// Relation groups related entries under a relation kind ("Sequel", "Adaptation", ...)
type Relation struct {
	Relation string          `json:"relation"`
	Entries  []RelationEntry `json:"entry"`
}

// AnimeIDs returns the ids of all anime entries across relations, in order, without duplicates
func AnimeIDs(relations []Relation) []int {
	seen := make(map[int]bool)
	var ids []int
	for _, rel := range relations {
		for _, e := range rel.Entries {
			if e.Type != "anime" || seen[e.ID] {
				continue
			}
			seen[e.ID] = true
			ids = append(ids, e.ID)
		}
	}
	return ids
}

// Person is a voice actor or staff member
type Person struct {
	ID       int    `json:"mal_id"`
	Name     string `json:"name"`
	URL      string `json:"url,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// VoiceActor pairs a person with the dub language
type VoiceActor struct {
	Person   Person `json:"person"`
	Language string `json:"language"`
}

// Character is a character appearance with its role in the entry
type Character struct {
	ID          int          `json:"mal_id"`
	Name        string       `json:"name"`
	URL         string       `json:"url,omitempty"`
	ImageURL    string       `json:"image_url,omitempty"`
	Role        string       `json:"role"` // "Main" or "Supporting"
	VoiceActors []VoiceActor `json:"voice_actors,omitempty"`
}

// Video is a promotional or music video
type Video struct {
	Title     string `json:"title"`
	YouTubeID string `json:"youtube_id,omitempty"`
	URL       string `json:"url,omitempty"`
	ImageURL  string `json:"image_url,omitempty"`
}

// EpisodeVideo is an episode preview
type EpisodeVideo struct {
	ID       int    `json:"mal_id"`
	Title    string `json:"title"`
	Episode  string `json:"episode"`
	URL      string `json:"url,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// Videos is the video listing for an entry
type Videos struct {
	Promo       []Video        `json:"promo,omitempty"`
	Episodes    []EpisodeVideo `json:"episodes,omitempty"`
	MusicVideos []Video        `json:"music_videos,omitempty"`
}

// Empty reports whether there is nothing to show
func (v Videos) Empty() bool {
	return len(v.Promo) == 0 && len(v.Episodes) == 0 && len(v.MusicVideos) == 0
}

// ScoreBucket is the vote share for one score value (1-10)
type ScoreBucket struct {
	Score      int     `json:"score"`
	Votes      int     `json:"votes"`
	Percentage float64 `json:"percentage"`
}

// Statistics are the list-status counts and score distribution for an entry
type Statistics struct {
	Watching    int           `json:"watching"`
	Completed   int           `json:"completed"`
	OnHold      int           `json:"on_hold"`
	Dropped     int           `json:"dropped"`
	PlanToWatch int           `json:"plan_to_watch"`
	Total       int           `json:"total"`
	Scores      []ScoreBucket `json:"scores,omitempty"`
}

// Pagination is the continuation block of a paginated listing
type Pagination struct {
	CurrentPage     int  `json:"current_page"`
	LastVisiblePage int  `json:"last_visible_page"`
	HasNextPage     bool `json:"has_next_page"`
	Count           int  `json:"count"`
	Total           int  `json:"total"`
	PerPage         int  `json:"per_page"`
}

// Page is one page of a paginated listing
type Page[T any] struct {
	Items      []T        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// Favorite is a locally persisted snapshot of a catalog entry
type Favorite struct {
	ID       int       `json:"mal_id" toml:"mal_id"`
	Title    string    `json:"title" toml:"title"`
	Images   Images    `json:"images" toml:"images"`
	Score    float64   `json:"score,omitempty" toml:"score,omitempty"`
	Episodes int       `json:"episodes,omitempty" toml:"episodes,omitempty"`
	Type     string    `json:"type,omitempty" toml:"type,omitempty"`
	Status   string    `json:"status,omitempty" toml:"status,omitempty"`
	Genres   []Genre   `json:"genres,omitempty" toml:"genres,omitempty"`
	Synopsis string    `json:"synopsis,omitempty" toml:"synopsis,omitempty"`
	AddedAt  time.Time `json:"added_at" toml:"added_at"`
}

// NewFavorite snapshots the fields of a that are kept locally
func NewFavorite(a Anime, addedAt time.Time) Favorite {
	genres := make([]Genre, len(a.Genres))
	copy(genres, a.Genres)
	return Favorite{
		ID:       a.ID,
		Title:    a.DisplayTitle(),
		Images:   a.Images,
		Score:    a.Score,
		Episodes: a.Episodes,
		Type:     a.Type,
		Status:   a.Status,
		Genres:   genres,
		Synopsis: a.Synopsis,
		AddedAt:  addedAt,
	}
}

// ListItem interface implementation for Favorite

func (f *Favorite) GetID() int       { return f.ID }
func (f *Favorite) GetTitle() string { return f.Title }
func (f *Favorite) GetDescription() string {
	return describe(f.Type, f.Episodes, f.Score, 0)
}

func describe(kind string, episodes int, score float64, year int) string {
	var parts []string
	if kind != "" {
		parts = append(parts, kind)
	}
	if episodes > 0 {
		if episodes == 1 {
			parts = append(parts, "1 ep")
		} else {
			parts = append(parts, fmt.Sprintf("%d eps", episodes))
		}
	}
	if year > 0 {
		parts = append(parts, fmt.Sprintf("%d", year))
	}
	if score > 0 {
		parts = append(parts, fmt.Sprintf("★ %.2f", score))
	}
	return strings.Join(parts, " · ")
}

func joinGenres(genres []Genre) string {
	names := make([]string, 0, len(genres))
	for _, g := range genres {
		names = append(names, g.Name)
	}
	return strings.Join(names, ", ")
}
