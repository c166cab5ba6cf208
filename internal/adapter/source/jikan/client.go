// Package jikan is the typed client for the Jikan v4 REST API.
package jikan

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mmcdole/anidex/internal/domain"
	"github.com/mmcdole/anidex/internal/fetch"
)

const (
	DefaultBaseURL   = "https://api.jikan.moe/v4"
	DefaultBulkDelay = 300 * time.Millisecond
	userAgent        = "anidex/1.0"

	// Listing size used by the home page sections
	sectionLimit = 5
)

// Fetcher performs a GET with retries. *fetch.Client implements it.
type Fetcher interface {
	Get(ctx context.Context, rawURL string, header http.Header) (*fetch.Response, error)
}

// Client implements domain.CatalogClient for Jikan
type Client struct {
	baseURL   string
	userAgent string
	bulkDelay time.Duration
	fetcher   Fetcher
	logger    *slog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithUserAgent overrides the User-Agent header
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithBulkDelay sets the pause between items of GetAnimeByIDs. Zero disables it.
func WithBulkDelay(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.bulkDelay = d
		}
	}
}

// NewClient creates a new Jikan API client
func NewClient(baseURL string, fetcher Fetcher, logger *slog.Logger, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		baseURL:   baseURL,
		userAgent: userAgent,
		bulkDelay: DefaultBulkDelay,
		fetcher:   fetcher,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// doRequest fetches path and returns the body of a 2xx response
func (c *Client) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	header := http.Header{}
	header.Set("Accept", "application/json")
	header.Set("User-Agent", c.userAgent)

	c.logger.Debug("jikan request", "url", reqURL)

	resp, err := c.fetcher.Get(ctx, reqURL, header)
	if err != nil {
		return nil, fmt.Errorf("jikan %s: %w", path, err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("jikan %s: %w", path, domain.ErrNotFound)
	}
	if !resp.OK() {
		c.logger.Error("jikan request error", "path", path, "status", resp.StatusCode)
		return nil, &domain.StatusError{Path: path, StatusCode: resp.StatusCode, Status: resp.Status}
	}
	return resp.Body, nil
}

// get fetches path and decodes the envelope
func get[T any](ctx context.Context, c *Client, path string, query url.Values) (*Envelope[T], error) {
	body, err := c.doRequest(ctx, path, query)
	if err != nil {
		return nil, err
	}
	var env Envelope[T]
	if err := json.Unmarshal(body, &env); err != nil {
		c.logger.Error("JSON parse error", "path", path, "error", err, "bodyLen", len(body))
		return nil, fmt.Errorf("failed to parse %s response: %w", path, err)
	}
	return &env, nil
}

// SearchAnime returns one page of the catalog listing
func (c *Client) SearchAnime(ctx context.Context, params domain.ListParams) (domain.Page[domain.Anime], error) {
	params = params.Normalize()
	if err := params.Validate(); err != nil {
		return domain.Page[domain.Anime]{}, err
	}

	env, err := get[[]Anime](ctx, c, "/anime", params.Values())
	if err != nil {
		return domain.Page[domain.Anime]{}, err
	}
	page := domain.Page[domain.Anime]{
		Items:      MapAnimeList(env.Data),
		Pagination: MapPagination(env.Pagination),
	}
	if page.Pagination.CurrentPage == 0 {
		page.Pagination.CurrentPage = params.Page
	}
	return page, nil
}

// GetAnime returns a single entry
func (c *Client) GetAnime(ctx context.Context, id int) (*domain.Anime, error) {
	if id <= 0 {
		return nil, domain.ErrNotFound
	}
	env, err := get[Anime](ctx, c, animePath(id, ""), nil)
	if err != nil {
		return nil, err
	}
	anime := MapAnime(env.Data)
	return &anime, nil
}

// GetRelations returns the entries related to id
func (c *Client) GetRelations(ctx context.Context, id int) ([]domain.Relation, error) {
	env, err := get[[]RelationGroup](ctx, c, animePath(id, "relations"), nil)
	if err != nil {
		return nil, err
	}
	return MapRelations(env.Data), nil
}

// GetCharacters returns the cast of id
func (c *Client) GetCharacters(ctx context.Context, id int) ([]domain.Character, error) {
	env, err := get[[]CharacterRole](ctx, c, animePath(id, "characters"), nil)
	if err != nil {
		return nil, err
	}
	return MapCharacters(env.Data), nil
}

// GetPictures returns the picture gallery of id
func (c *Client) GetPictures(ctx context.Context, id int) ([]domain.Images, error) {
	env, err := get[[]ImageFormats](ctx, c, animePath(id, "pictures"), nil)
	if err != nil {
		return nil, err
	}
	return MapPictures(env.Data), nil
}

// GetVideos returns promos, episode previews and music videos of id
func (c *Client) GetVideos(ctx context.Context, id int) (*domain.Videos, error) {
	env, err := get[VideoListing](ctx, c, animePath(id, "videos"), nil)
	if err != nil {
		return nil, err
	}
	return MapVideos(env.Data), nil
}

// GetStatistics returns list-status counts and the score distribution of id
func (c *Client) GetStatistics(ctx context.Context, id int) (*domain.Statistics, error) {
	env, err := get[StatisticsBlock](ctx, c, animePath(id, "statistics"), nil)
	if err != nil {
		return nil, err
	}
	return MapStatistics(env.Data), nil
}

// GetTopAnime returns the top listing, optionally filtered
func (c *Client) GetTopAnime(ctx context.Context, filter string, limit int) ([]domain.Anime, error) {
	if !domain.ValidTopFilter(filter) {
		return nil, fmt.Errorf("%w: top filter %q", domain.ErrInvalidParams, filter)
	}
	query := url.Values{}
	if filter != "" {
		query.Set("filter", filter)
	}
	query.Set("limit", strconv.Itoa(clampLimit(limit)))

	env, err := get[[]Anime](ctx, c, "/top/anime", query)
	if err != nil {
		return nil, err
	}
	return MapAnimeList(env.Data), nil
}

// GetSeasonNow returns the currently airing season
func (c *Client) GetSeasonNow(ctx context.Context, limit int) ([]domain.Anime, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(clampLimit(limit)))

	env, err := get[[]Anime](ctx, c, "/seasons/now", query)
	if err != nil {
		return nil, err
	}
	return MapAnimeList(env.Data), nil
}

// GetGenres returns the anime genre taxonomy
func (c *Client) GetGenres(ctx context.Context) ([]domain.Genre, error) {
	env, err := get[[]Resource](ctx, c, "/genres/anime", nil)
	if err != nil {
		return nil, err
	}
	return MapGenres(env.Data), nil
}

// GetAnimeByTypeAndStatus returns the newest entries of kind, optionally by status
func (c *Client) GetAnimeByTypeAndStatus(ctx context.Context, kind, status string, limit int) ([]domain.Anime, error) {
	if !domain.ValidType(kind) {
		return nil, fmt.Errorf("%w: type %q", domain.ErrInvalidParams, kind)
	}
	if !domain.ValidStatus(status) {
		return nil, fmt.Errorf("%w: status %q", domain.ErrInvalidParams, status)
	}
	query := url.Values{}
	query.Set("type", kind)
	if status != "" {
		query.Set("status", status)
	}
	query.Set("order_by", "start_date")
	query.Set("sort", "desc")
	query.Set("limit", strconv.Itoa(clampLimit(limit)))

	env, err := get[[]Anime](ctx, c, "/anime", query)
	if err != nil {
		return nil, err
	}
	return MapAnimeList(env.Data), nil
}

// GetAnimeByIDs fetches ids one at a time with a pause between items.
// Failed ids are logged and skipped; only ctx cancellation ends the batch early.
func (c *Client) GetAnimeByIDs(ctx context.Context, ids []int) ([]domain.Anime, error) {
	out := make([]domain.Anime, 0, len(ids))
	for i, id := range ids {
		if i > 0 && c.bulkDelay > 0 {
			timer := time.NewTimer(c.bulkDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return out, ctx.Err()
			case <-timer.C:
			}
		}

		anime, err := c.GetAnime(ctx, id)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return out, ctxErr
			}
			c.logger.Warn("skipping anime in batch", "id", id, "error", err)
			continue
		}
		out = append(out, *anime)
	}
	return out, nil
}

func animePath(id int, sub string) string {
	if sub == "" {
		return fmt.Sprintf("/anime/%d", id)
	}
	return fmt.Sprintf("/anime/%d/%s", id, sub)
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return sectionLimit
	case limit > domain.MaxPageSize:
		return domain.MaxPageSize
	default:
		return limit
	}
}

var _ domain.CatalogClient = (*Client)(nil)
