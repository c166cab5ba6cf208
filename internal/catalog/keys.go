package catalog

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/mmcdole/anidex/internal/domain"
	"github.com/mmcdole/anidex/internal/query"
)

// Cache key operations
const (
	// OpList is the paged listing (anime/list?{params})
	OpList = "anime/list"

	// OpBrowse is the accumulated listing, keyed without the page (anime/browse?{params})
	OpBrowse = "anime/browse"

	// OpDetail prefixes everything about one entry (anime/detail/{id}[/{section}])
	OpDetail = "anime/detail/"

	OpTop       = "anime/top"
	OpSeasonNow = "anime/season-now"
	OpLatest    = "anime/latest"
	OpRelated   = "anime/related"
	OpGenres    = "genres"
)

const (
	hour = time.Hour
	day  = 24 * time.Hour
)

// Staleness tiers per resource. Slow-changing resources stay fresh longer.
var (
	ListPolicy       = query.Policy{StaleTime: 5 * time.Minute, GCTime: 10 * time.Minute}
	DetailPolicy     = query.Policy{StaleTime: 10 * time.Minute, GCTime: 30 * time.Minute}
	TopPolicy        = query.Policy{StaleTime: 15 * time.Minute, GCTime: hour}
	SeasonPolicy     = query.Policy{StaleTime: 30 * time.Minute, GCTime: 2 * hour}
	GenresPolicy     = query.Policy{StaleTime: day, GCTime: 7 * day}
	RelationsPolicy  = query.Policy{StaleTime: hour, GCTime: day}
	CharactersPolicy = query.Policy{StaleTime: hour, GCTime: day}
	PicturesPolicy   = query.Policy{StaleTime: 2 * hour, GCTime: day}
	VideosPolicy     = query.Policy{StaleTime: 2 * hour, GCTime: day}
	StatsPolicy      = query.Policy{StaleTime: 30 * time.Minute, GCTime: 2 * hour}
	RelatedPolicy    = query.Policy{StaleTime: hour, GCTime: day}
)

// ListKey is the key of one page of a listing
func ListKey(params domain.ListParams) query.Key {
	return query.NewKey(OpList, params.Normalize().Values())
}

// BrowseKey is the key of an accumulated listing. The page is not part of it.
func BrowseKey(params domain.ListParams) query.Key {
	values := params.Normalize().Values()
	values.Del("page")
	return query.NewKey(OpBrowse, values)
}

// DetailKey is the key of an entry, or of one of its sections when section is set
func DetailKey(id int, section string) query.Key {
	if section == "" {
		return query.Key(fmt.Sprintf("%s%d", OpDetail, id))
	}
	return query.Key(fmt.Sprintf("%s%d/%s", OpDetail, id, section))
}

// DetailPrefix matches an entry and all of its sections
func DetailPrefix(id int) string {
	return fmt.Sprintf("%s%d/", OpDetail, id)
}

// RelatedKey is keyed by the sorted id set
func RelatedKey(ids []int) query.Key {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	return query.NewKey(OpRelated, url.Values{"ids": {domain.JoinIDs(sorted)}})
}

func topKey(filter string, limit int) query.Key {
	values := url.Values{"limit": {strconv.Itoa(limit)}}
	if filter != "" {
		values.Set("filter", filter)
	}
	return query.NewKey(OpTop, values)
}

func seasonNowKey(limit int) query.Key {
	return query.NewKey(OpSeasonNow, url.Values{"limit": {strconv.Itoa(limit)}})
}

func latestKey(kind, status string, limit int) query.Key {
	values := url.Values{"type": {kind}, "limit": {strconv.Itoa(limit)}}
	if status != "" {
		values.Set("status", status)
	}
	return query.NewKey(OpLatest, values)
}
