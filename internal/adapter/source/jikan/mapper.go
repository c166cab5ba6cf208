package jikan

import (
	"github.com/mmcdole/anidex/internal/domain"
)

// MapAnimeList converts listing entries to domain anime
func MapAnimeList(items []Anime) []domain.Anime {
	out := make([]domain.Anime, 0, len(items))
	for _, a := range items {
		out = append(out, MapAnime(a))
	}
	return out
}

// MapAnime converts a single entry. Nullable upstream fields become zero values.
func MapAnime(a Anime) domain.Anime {
	anime := domain.Anime{
		ID:            a.MalID,
		URL:           a.URL,
		Title:         a.Title,
		TitleEnglish:  str(a.TitleEnglish),
		TitleJapanese: str(a.TitleJapanese),
		Type:          str(a.Type),
		Source:        a.Source,
		Episodes:      num(a.Episodes),
		Status:        a.Status,
		Airing:        a.Airing,
		Aired:         a.Aired.String,
		Duration:      a.Duration,
		Rating:        str(a.Rating),
		ScoredBy:      num(a.ScoredBy),
		Rank:          num(a.Rank),
		Popularity:    a.Popularity,
		Members:       a.Members,
		Favorites:     a.Favorites,
		Synopsis:      str(a.Synopsis),
		Background:    str(a.Background),
		Season:        str(a.Season),
		Year:          num(a.Year),
		TrailerURL:    str(a.Trailer.URL),
		Images:        mapImages(a.Images),
		Genres:        mapGenres(a.Genres),
	}
	if a.Score != nil {
		anime.Score = *a.Score
	}
	return anime
}

// MapPagination flattens the continuation block
func MapPagination(p *Pagination) domain.Pagination {
	if p == nil {
		return domain.Pagination{}
	}
	return domain.Pagination{
		CurrentPage:     p.CurrentPage,
		LastVisiblePage: p.LastVisiblePage,
		HasNextPage:     p.HasNextPage,
		Count:           p.Items.Count,
		Total:           p.Items.Total,
		PerPage:         p.Items.PerPage,
	}
}

// MapGenres converts the genre taxonomy
func MapGenres(items []Resource) []domain.Genre {
	return mapGenres(items)
}

func mapGenres(items []Resource) []domain.Genre {
	if len(items) == 0 {
		return nil
	}
	genres := make([]domain.Genre, 0, len(items))
	for _, g := range items {
		genres = append(genres, domain.Genre{
			ID:    g.MalID,
			Name:  g.Name,
			Type:  g.Type,
			URL:   g.URL,
			Count: g.Count,
		})
	}
	return genres
}

// MapRelations converts relation groups
func MapRelations(groups []RelationGroup) []domain.Relation {
	relations := make([]domain.Relation, 0, len(groups))
	for _, g := range groups {
		rel := domain.Relation{Relation: g.Relation}
		for _, e := range g.Entry {
			rel.Entries = append(rel.Entries, domain.RelationEntry{
				ID:   e.MalID,
				Type: e.Type,
				Name: e.Name,
				URL:  e.URL,
			})
		}
		relations = append(relations, rel)
	}
	return relations
}

// MapCharacters converts character roles with their voice actors
func MapCharacters(roles []CharacterRole) []domain.Character {
	characters := make([]domain.Character, 0, len(roles))
	for _, r := range roles {
		c := domain.Character{
			ID:       r.Character.MalID,
			Name:     r.Character.Name,
			URL:      r.Character.URL,
			ImageURL: mapImages(r.Character.Images).ImageURL,
			Role:     r.Role,
		}
		for _, va := range r.VoiceActors {
			c.VoiceActors = append(c.VoiceActors, domain.VoiceActor{
				Person: domain.Person{
					ID:       va.Person.MalID,
					Name:     va.Person.Name,
					URL:      va.Person.URL,
					ImageURL: mapImages(va.Person.Images).ImageURL,
				},
				Language: va.Language,
			})
		}
		characters = append(characters, c)
	}
	return characters
}

// MapPictures converts the picture gallery
func MapPictures(pictures []ImageFormats) []domain.Images {
	out := make([]domain.Images, 0, len(pictures))
	for _, p := range pictures {
		out = append(out, mapImages(p))
	}
	return out
}

// MapVideos converts the video listing
func MapVideos(v VideoListing) *domain.Videos {
	videos := &domain.Videos{}
	for _, p := range v.Promo {
		videos.Promo = append(videos.Promo, mapYouTube(p.Title, p.Trailer))
	}
	for _, e := range v.Episodes {
		videos.Episodes = append(videos.Episodes, domain.EpisodeVideo{
			ID:       e.MalID,
			Title:    e.Title,
			Episode:  e.Episode,
			URL:      e.URL,
			ImageURL: str(e.Images.JPG.ImageURL),
		})
	}
	for _, m := range v.MusicVideos {
		videos.MusicVideos = append(videos.MusicVideos, mapYouTube(m.Title, m.Video))
	}
	return videos
}

// MapStatistics converts list-status counts and the score distribution
func MapStatistics(s StatisticsBlock) *domain.Statistics {
	stats := &domain.Statistics{
		Watching:    s.Watching,
		Completed:   s.Completed,
		OnHold:      s.OnHold,
		Dropped:     s.Dropped,
		PlanToWatch: s.PlanToWatch,
		Total:       s.Total,
	}
	for _, b := range s.Scores {
		stats.Scores = append(stats.Scores, domain.ScoreBucket{
			Score:      b.Score,
			Votes:      b.Votes,
			Percentage: b.Percentage,
		})
	}
	return stats
}

func mapYouTube(title string, v YouTubeVideo) domain.Video {
	thumb := str(v.Images.LargeImageURL)
	if thumb == "" {
		thumb = str(v.Images.ImageURL)
	}
	return domain.Video{
		Title:     title,
		YouTubeID: str(v.YouTubeID),
		URL:       str(v.URL),
		ImageURL:  thumb,
	}
}

// mapImages prefers JPG and falls back to WebP per size
func mapImages(f ImageFormats) domain.Images {
	pick := func(jpg, webp *string) string {
		if s := str(jpg); s != "" {
			return s
		}
		return str(webp)
	}
	return domain.Images{
		ImageURL:      pick(f.JPG.ImageURL, f.WebP.ImageURL),
		SmallImageURL: pick(f.JPG.SmallImageURL, f.WebP.SmallImageURL),
		LargeImageURL: pick(f.JPG.LargeImageURL, f.WebP.LargeImageURL),
	}
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func num(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}
