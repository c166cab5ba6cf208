package domain

import (
	"errors"
	"slices"
	"testing"
)

func TestParseFilters(t *testing.T) {
	f, err := ParseFilters("type=tv genre=action,slice-of-life min_score=7.5 order-by=score sort=desc")
	if err != nil {
		t.Fatalf("ParseFilters: %v", err)
	}
	if f.Type != "tv" || f.MinScore != 7.5 || f.OrderBy != "score" || f.Sort != "desc" {
		t.Errorf("filters = %+v", f)
	}
	if !slices.Equal(f.Genres, []string{"action", "slice-of-life"}) {
		t.Errorf("genres = %v", f.Genres)
	}
	if got := f.String(); got != "type=tv genre=action,slice-of-life min_score=7.5 order_by=score sort=desc" {
		t.Errorf("String() = %q", got)
	}

	empty, err := ParseFilters("   ")
	if err != nil || !empty.IsZero() {
		t.Errorf("blank filters = %+v, %v", empty, err)
	}

	for _, in := range []string{"tv", "type=", "color=red", "min_score=high"} {
		if _, err := ParseFilters(in); !errors.Is(err, ErrInvalidParams) {
			t.Errorf("ParseFilters(%q) error = %v, want ErrInvalidParams", in, err)
		}
	}
}

func TestGenreKey(t *testing.T) {
	if GenreKey("Slice of Life") != GenreKey("slice-of-life") {
		t.Error("genre keys differ for the same name")
	}
	if GenreKey("Action") == GenreKey("Adventure") {
		t.Error("different genres share a key")
	}
}

func TestParseIDs(t *testing.T) {
	ids, err := ParseIDs(" 1, 22,,3 ")
	if err != nil || !slices.Equal(ids, []int{1, 22, 3}) {
		t.Errorf("ParseIDs = %v, %v", ids, err)
	}
	if _, err := ParseIDs("1,action"); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("ParseIDs error = %v, want ErrInvalidParams", err)
	}
}
