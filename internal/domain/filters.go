package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Filters are the browse filters as a user enters them. Genres hold names
// or ids; the catalog resolves names against the genre list.
type Filters struct {
	Type     string
	Status   string
	Rating   string
	Genres   []string
	MinScore float64
	MaxScore float64
	OrderBy  string
	Sort     string
}

// IsZero reports whether no filter is set
func (f Filters) IsZero() bool {
	return f.Type == "" && f.Status == "" && f.Rating == "" && len(f.Genres) == 0 &&
		f.MinScore == 0 && f.MaxScore == 0 && f.OrderBy == "" && f.Sort == ""
}

// ParseFilters reads space separated key=value pairs, for example
// "type=tv genre=action,slice-of-life min_score=7 order_by=score sort=desc".
// An empty string clears every filter.
func ParseFilters(s string) (Filters, error) {
	var f Filters
	for _, field := range strings.Fields(s) {
		name, value, ok := strings.Cut(field, "=")
		if !ok || value == "" {
			return Filters{}, fmt.Errorf("%w: filter %q is not key=value", ErrInvalidParams, field)
		}
		switch strings.ToLower(strings.ReplaceAll(name, "-", "_")) {
		case "type":
			f.Type = value
		case "status":
			f.Status = value
		case "rating":
			f.Rating = value
		case "genre", "genres":
			for _, g := range strings.Split(value, ",") {
				if g = strings.TrimSpace(g); g != "" {
					f.Genres = append(f.Genres, g)
				}
			}
		case "min_score", "min":
			score, err := parseScore(name, value)
			if err != nil {
				return Filters{}, err
			}
			f.MinScore = score
		case "max_score", "max":
			score, err := parseScore(name, value)
			if err != nil {
				return Filters{}, err
			}
			f.MaxScore = score
		case "order_by", "order":
			f.OrderBy = value
		case "sort":
			f.Sort = value
		default:
			return Filters{}, fmt.Errorf("%w: unknown filter %q", ErrInvalidParams, name)
		}
	}
	return f, nil
}

func parseScore(name, value string) (float64, error) {
	score, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not a number", ErrInvalidParams, name, value)
	}
	return score, nil
}

// String renders f in the form ParseFilters reads
func (f Filters) String() string {
	var parts []string
	add := func(name, value string) {
		if value != "" {
			parts = append(parts, name+"="+value)
		}
	}
	add("type", f.Type)
	add("status", f.Status)
	add("rating", f.Rating)
	add("genre", strings.Join(f.Genres, ","))
	if f.MinScore > 0 {
		add("min_score", strconv.FormatFloat(f.MinScore, 'f', -1, 64))
	}
	if f.MaxScore > 0 {
		add("max_score", strconv.FormatFloat(f.MaxScore, 'f', -1, 64))
	}
	add("order_by", f.OrderBy)
	add("sort", f.Sort)
	return strings.Join(parts, " ")
}

// GenreKey folds a genre name for matching: case, spaces, dashes and
// underscores are ignored, so "slice-of-life" matches "Slice of Life".
func GenreKey(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch r {
		case ' ', '-', '_':
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
