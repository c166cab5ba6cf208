package domain

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// Catalog limits enforced by the upstream API
const (
	DefaultPageSize = 10
	MaxPageSize     = 25
)

// Content types accepted by the "type" filter
var animeTypes = []string{"tv", "movie", "ova", "special", "ona", "music"}

// Airing statuses accepted by the "status" filter
var animeStatuses = []string{"airing", "complete", "upcoming"}

// Audience ratings accepted by the "rating" filter
var animeRatings = []string{"g", "pg", "pg13", "r17", "r", "rx"}

// Sort keys accepted by "order_by"
var orderFields = []string{
	"mal_id", "title", "start_date", "end_date", "episodes", "score",
	"scored_by", "rank", "popularity", "members", "favorites",
}

// Filters accepted by the top listing
var topFilters = []string{"airing", "upcoming", "bypopularity", "favorite"}

// ListParams are the filters for the catalog search/list operation.
// Zero values mean "not set".
type ListParams struct {
	Page     int
	Limit    int
	Query    string
	Type     string
	Status   string
	Rating   string
	SFW      bool
	MinScore float64
	MaxScore float64
	Genres   []int
	OrderBy  string
	Sort     string
}

// Normalize applies defaults and puts set-like fields into canonical form:
// genres are sorted and de-duplicated, enum values lowercased, query trimmed.
func (p ListParams) Normalize() ListParams {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = DefaultPageSize
	}
	p.Query = strings.TrimSpace(p.Query)
	p.Type = strings.ToLower(strings.TrimSpace(p.Type))
	p.Status = strings.ToLower(strings.TrimSpace(p.Status))
	p.Rating = strings.ToLower(strings.TrimSpace(p.Rating))
	p.OrderBy = strings.ToLower(strings.TrimSpace(p.OrderBy))
	p.Sort = strings.ToLower(strings.TrimSpace(p.Sort))
	if len(p.Genres) > 0 {
		genres := slices.Clone(p.Genres)
		slices.Sort(genres)
		p.Genres = slices.Compact(genres)
	}
	return p
}

// Validate checks every field against the upstream's accepted values
func (p ListParams) Validate() error {
	if p.Page < 0 {
		return fmt.Errorf("%w: page %d", ErrInvalidParams, p.Page)
	}
	if p.Limit < 0 || p.Limit > MaxPageSize {
		return fmt.Errorf("%w: limit %d outside 1..%d", ErrInvalidParams, p.Limit, MaxPageSize)
	}
	if err := checkEnum("type", p.Type, animeTypes); err != nil {
		return err
	}
	if err := checkEnum("status", p.Status, animeStatuses); err != nil {
		return err
	}
	if err := checkEnum("rating", p.Rating, animeRatings); err != nil {
		return err
	}
	if err := checkEnum("order_by", p.OrderBy, orderFields); err != nil {
		return err
	}
	if err := checkEnum("sort", p.Sort, []string{"asc", "desc"}); err != nil {
		return err
	}
	if p.MinScore < 0 || p.MinScore > 10 {
		return fmt.Errorf("%w: min_score %.2f outside 0..10", ErrInvalidParams, p.MinScore)
	}
	if p.MaxScore < 0 || p.MaxScore > 10 {
		return fmt.Errorf("%w: max_score %.2f outside 0..10", ErrInvalidParams, p.MaxScore)
	}
	if p.MinScore > 0 && p.MaxScore > 0 && p.MinScore > p.MaxScore {
		return fmt.Errorf("%w: min_score %.2f above max_score %.2f", ErrInvalidParams, p.MinScore, p.MaxScore)
	}
	for _, g := range p.Genres {
		if g <= 0 {
			return fmt.Errorf("%w: genre id %d", ErrInvalidParams, g)
		}
	}
	return nil
}

// Values encodes the parameters as upstream query parameters.
// Call Normalize first for canonical output.
func (p ListParams) Values() url.Values {
	values := url.Values{}
	if p.Page > 0 {
		values.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		values.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Query != "" {
		values.Set("q", p.Query)
	}
	if p.Type != "" {
		values.Set("type", p.Type)
	}
	if p.Status != "" {
		values.Set("status", p.Status)
	}
	if p.Rating != "" {
		values.Set("rating", p.Rating)
	}
	if p.SFW {
		values.Set("sfw", "true")
	}
	if p.MinScore > 0 {
		values.Set("min_score", strconv.FormatFloat(p.MinScore, 'f', -1, 64))
	}
	if p.MaxScore > 0 {
		values.Set("max_score", strconv.FormatFloat(p.MaxScore, 'f', -1, 64))
	}
	if len(p.Genres) > 0 {
		values.Set("genres", JoinIDs(p.Genres))
	}
	if p.OrderBy != "" {
		values.Set("order_by", p.OrderBy)
	}
	if p.Sort != "" {
		values.Set("sort", p.Sort)
	}
	return values
}

// ValidTopFilter reports whether filter is accepted by the top listing ("" means none)
func ValidTopFilter(filter string) bool {
	return filter == "" || slices.Contains(topFilters, filter)
}

// ValidType reports whether kind is an accepted content type
func ValidType(kind string) bool {
	return slices.Contains(animeTypes, kind)
}

// ValidStatus reports whether status is an accepted airing status ("" means none)
func ValidStatus(status string) bool {
	return status == "" || slices.Contains(animeStatuses, status)
}

// JoinIDs joins ids with commas
func JoinIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

// ParseIDs parses a comma-separated id list, ignoring blanks
func ParseIDs(s string) ([]int, error) {
	var ids []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("%w: id %q", ErrInvalidParams, part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func checkEnum(field, value string, allowed []string) error {
	if value == "" || slices.Contains(allowed, value) {
		return nil
	}
	return fmt.Errorf("%w: %s %q not one of %s", ErrInvalidParams, field, value, strings.Join(allowed, ", "))
}
