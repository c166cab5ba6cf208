// Package tui is the interactive terminal front end.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmcdole/anidex/internal/catalog"
	"github.com/mmcdole/anidex/internal/domain"
	"github.com/mmcdole/anidex/internal/favorites"
	"github.com/mmcdole/anidex/internal/query"
	"github.com/mmcdole/anidex/internal/tui/components"
)

// View identifies the active screen
type View int

const (
	ViewBrowse View = iota
	ViewFavorites
	ViewDetail
)

// Rows from the bottom of the browse list at which the next page is requested
const prefetchThreshold = 3

// Model is the root bubbletea model
type Model struct {
	catalog   *catalog.Service
	favorites *favorites.Service
	opener    URLOpener
	logger    *slog.Logger

	// Browse
	params         domain.ListParams // base filters; Query is the active search
	filters        domain.Filters    // as entered, for display and editing
	listing        *query.Infinite[domain.Anime]
	releaseListing func()
	browse         *components.ListColumn
	search         components.SearchBar
	filterBar      components.SearchBar

	// Favorites
	favList *components.ListColumn
	favIDs  map[int]bool

	// Detail
	detailID      int
	detail        *catalog.DetailPage
	detailErr     error
	detailLoading bool
	detailScroll  int
	detailCancel  context.CancelFunc
	releaseDetail func()
	returnTo      View

	view     View
	status   string
	err      error
	showHelp bool
	ticking  bool
	frame    int

	width  int
	height int
}

// NewModel creates the root model. params are the base browse filters.
func NewModel(cat *catalog.Service, favs *favorites.Service, opener URLOpener, params domain.ListParams, logger *slog.Logger) *Model {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Model{
		catalog:   cat,
		favorites: favs,
		opener:    opener,
		logger:    logger,
		params:    params,
		browse:    components.NewListColumn("Browse"),
		search:    components.NewSearchBar(),
		filterBar: components.NewFilterBar(),
		favList:   components.NewListColumn("Favorites"),
		favIDs:    make(map[int]bool),
	}
	marked := func(id int) bool { return m.favIDs[id] }
	m.browse.Marked = marked
	m.favList.Marked = marked
	m.browse.SetFocused(true)
	return m
}

// Init starts the first page load and reads the favorites
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.startBrowse(), LoadFavoritesCmd(m.favorites))
}

// startBrowse switches to the listing for the current params. A listing
// that already holds pages is shown as is; a stale one is shown while it
// refreshes. The shown listing is retained so the cache keeps it.
func (m *Model) startBrowse() tea.Cmd {
	listing, err := m.catalog.Browse(m.params)
	if err != nil {
		m.err = err
		return nil
	}
	changed := listing != m.listing
	if changed {
		if m.releaseListing != nil {
			m.releaseListing()
		}
		m.releaseListing = m.catalog.Cache().Retain(listing.Key())
	}
	m.listing = listing
	m.browse.SetTitle(m.browseTitle())
	m.browse.SetItems(animeItems(listing.Items()))
	if changed {
		m.browse.ClearFilter()
		m.browse.SetSelectedIndex(0)
	}

	var wait tea.Cmd
	if done := listing.Refreshing(); done != nil {
		wait = WaitRefreshCmd(listing, done)
	}
	return tea.Batch(wait, m.fetchMore())
}

func (m *Model) browseTitle() string {
	title := "Browse"
	if m.params.Query != "" {
		title = fmt.Sprintf("Search: %s", m.params.Query)
	}
	if !m.filters.IsZero() {
		title += " [" + m.filters.String() + "]"
	}
	if m.listing == nil {
		return title
	}
	if pages := m.listing.Pages(); len(pages) > 0 {
		if total := pages[len(pages)-1].Pagination.Total; total > 0 {
			title += fmt.Sprintf(" (%d of %d)", len(m.listing.Items()), total)
		}
	}
	if m.listing.Stale() {
		title += " · stale"
	}
	return title
}

// showListing puts the listing's current items on screen
func (m *Model) showListing() {
	m.browse.SetTitle(m.browseTitle())
	m.browse.SetItems(animeItems(m.listing.Items()))
	if !m.listing.HasNextPage() {
		m.browse.SetFooter("end of results")
	} else {
		m.browse.SetFooter("")
	}
}

// fetchMore requests the next page when the cursor is near the end
func (m *Model) fetchMore() tea.Cmd {
	if m.listing == nil || !m.listing.HasNextPage() || m.listing.Loading() {
		return nil
	}
	if !m.browse.NearEnd(prefetchThreshold) {
		return nil
	}
	m.browse.SetLoading(true)
	return tea.Batch(FetchNextPageCmd(m.listing), m.startTicking())
}

func (m *Model) startTicking() tea.Cmd {
	if m.ticking {
		return nil
	}
	m.ticking = true
	return tickCmd()
}

func (m *Model) busy() bool {
	return m.browse.IsLoading() || m.detailLoading
}

// Update handles messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		return m, nil

	case tickMsg:
		if !m.busy() {
			m.ticking = false
			return m, nil
		}
		m.frame++
		m.browse.SetSpinnerFrame(m.frame)
		return m, tickCmd()

	case PageLoadedMsg:
		if msg.Listing != m.listing {
			return m, nil // filter changed while loading
		}
		m.browse.SetLoading(false)
		if msg.Err != nil {
			m.err = fmt.Errorf("loading page: %w", msg.Err)
			return m, nil
		}
		m.err = nil
		m.showListing()
		return m, m.fetchMore()

	case ListingRefreshedMsg:
		if msg.Listing != m.listing {
			return m, nil
		}
		if m.status == "Refreshing..." {
			m.status = ""
		}
		if err := m.listing.Err(); err != nil {
			m.err = fmt.Errorf("refreshing listing: %w", err)
		}
		m.showListing()
		return m, m.fetchMore()

	case FiltersAppliedMsg:
		m.filters = msg.Filters
		m.params = msg.Params
		m.browse.SetFooter("")
		m.browse.SetLoading(false)
		return m, m.startBrowse()

	case DetailLoadedMsg:
		if msg.ID != m.detailID || errors.Is(msg.Err, context.Canceled) {
			return m, nil
		}
		m.detailLoading = false
		m.detail, m.detailErr = msg.Page, msg.Err
		return m, nil

	case FavoritesLoadedMsg:
		m.setFavorites(msg.Favorites)
		return m, nil

	case FavoriteToggledMsg:
		if msg.Favorite {
			m.status = fmt.Sprintf("Added %s to favorites", msg.Title)
		} else {
			m.status = fmt.Sprintf("Removed %s from favorites", msg.Title)
		}
		return m, LoadFavoritesCmd(m.favorites)

	case OpenedMsg:
		m.status = "Opened " + msg.URL
		return m, nil

	case components.SearchSubmittedMsg:
		return m, m.applySearch(msg.Query)

	case components.FiltersSubmittedMsg:
		f, err := domain.ParseFilters(msg.Filters)
		if err != nil {
			m.err = err
			return m, nil
		}
		return m, ApplyFiltersCmd(m.catalog, m.params, f)

	case ErrMsg:
		m.err = msg
		return m, nil

	case tea.KeyMsg:
		return m, m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	// Text inputs get every key while focused
	if m.search.IsVisible() {
		return m.search.Update(msg)
	}
	if m.filterBar.IsVisible() {
		return m.filterBar.Update(msg)
	}
	if col := m.activeList(); col != nil && col.IsFilterTyping() {
		return col.Update(msg)
	}

	if m.showHelp {
		m.showHelp = false
		return nil
	}

	switch {
	case key.Matches(msg, Keys.Quit):
		return tea.Quit
	case key.Matches(msg, Keys.Help):
		m.showHelp = true
		return nil
	}

	m.status = ""
	switch m.view {
	case ViewDetail:
		return m.handleDetailKey(msg)
	case ViewFavorites:
		return m.handleFavoritesKey(msg)
	default:
		return m.handleBrowseKey(msg)
	}
}

func (m *Model) handleBrowseKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, Keys.NextTab), key.Matches(msg, Keys.FavoritesTab):
		m.switchView(ViewFavorites)
		return nil
	case key.Matches(msg, Keys.Search):
		m.search.Show(m.params.Query)
		return nil
	case key.Matches(msg, Keys.Filters):
		m.filterBar.Show(m.filters.String())
		return nil
	case key.Matches(msg, Keys.Filter):
		m.browse.ToggleFilter()
		return nil
	case key.Matches(msg, Keys.Enter):
		return m.openSelected(m.browse)
	case key.Matches(msg, Keys.Favorite):
		if a, ok := m.selectedAnime(); ok {
			return ToggleFavoriteCmd(m.favorites, a)
		}
		return nil
	case key.Matches(msg, Keys.Refresh):
		if m.listing == nil || len(m.listing.Pages()) == 0 {
			m.catalog.InvalidateList()
			m.browse.SetFooter("")
			return m.startBrowse()
		}
		m.status = "Refreshing..."
		return RefreshListingCmd(m.listing)
	case key.Matches(msg, Keys.Back) && m.params.Query != "" && !m.browse.IsFiltering():
		return m.applySearch("")
	}

	cmd := m.browse.Update(msg)
	return tea.Batch(cmd, m.fetchMore())
}

func (m *Model) handleFavoritesKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, Keys.NextTab), key.Matches(msg, Keys.BrowseTab):
		m.switchView(ViewBrowse)
		return nil
	case key.Matches(msg, Keys.Filter):
		m.favList.ToggleFilter()
		return nil
	case key.Matches(msg, Keys.Enter):
		return m.openSelected(m.favList)
	case key.Matches(msg, Keys.Remove), key.Matches(msg, Keys.Favorite):
		if item := m.favList.Selected(); item != nil {
			return RemoveFavoriteCmd(m.favorites, item.GetID(), item.GetTitle())
		}
		return nil
	}
	return m.favList.Update(msg)
}

func (m *Model) handleDetailKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, Keys.Back):
		m.leaveDetail()
		m.view = m.returnTo
		return nil
	case key.Matches(msg, Keys.Refresh):
		m.catalog.RefreshDetail(m.detailID)
		return m.loadDetail(m.detailID)
	case key.Matches(msg, Keys.Favorite):
		if m.detail != nil && m.detail.Anime != nil {
			return ToggleFavoriteCmd(m.favorites, *m.detail.Anime)
		}
	case key.Matches(msg, Keys.Open):
		if m.detail != nil && m.detail.Anime != nil && m.opener != nil {
			return OpenURLCmd(m.opener, m.detail.Anime.URL)
		}
	case key.Matches(msg, Keys.Trailer):
		if m.detail != nil && m.detail.Anime != nil && m.opener != nil {
			if m.detail.Anime.TrailerURL == "" {
				m.status = "No trailer available"
				return nil
			}
			return OpenURLCmd(m.opener, m.detail.Anime.TrailerURL)
		}
	case msg.String() == "j" || msg.String() == "down":
		m.detailScroll++
	case msg.String() == "k" || msg.String() == "up":
		m.detailScroll = max(0, m.detailScroll-1)
	}
	return nil
}

// applySearch starts a new listing for query. The previous listing stays
// cached; a page still loading for it is ignored when it arrives.
func (m *Model) applySearch(query string) tea.Cmd {
	if query == m.params.Query {
		return nil
	}
	m.params.Query = query
	m.params.Page = 0
	m.browse.SetFooter("")
	m.browse.SetLoading(false)
	return m.startBrowse()
}

func (m *Model) openSelected(col *components.ListColumn) tea.Cmd {
	item := col.Selected()
	if item == nil {
		return nil
	}
	m.returnTo = m.view
	m.view = ViewDetail
	return m.loadDetail(item.GetID())
}

// loadDetail starts loading id, abandoning any detail load still running
func (m *Model) loadDetail(id int) tea.Cmd {
	m.leaveDetail()
	m.detailID = id
	m.detail = nil
	m.detailErr = nil
	m.detailScroll = 0
	m.detailLoading = true

	ctx, cancel := context.WithCancel(context.Background())
	m.detailCancel = cancel
	m.releaseDetail = m.catalog.Cache().Retain(catalog.DetailKey(id, ""))
	return tea.Batch(LoadDetailCmd(ctx, m.catalog, id), m.startTicking())
}

// leaveDetail cancels the running detail load and lets the cache collect the entry
func (m *Model) leaveDetail() {
	if m.detailCancel != nil {
		m.detailCancel()
		m.detailCancel = nil
	}
	if m.releaseDetail != nil {
		m.releaseDetail()
		m.releaseDetail = nil
	}
	m.detailLoading = false
}

func (m *Model) selectedAnime() (domain.Anime, bool) {
	item := m.browse.Selected()
	if item == nil {
		return domain.Anime{}, false
	}
	a, ok := item.(*domain.Anime)
	if !ok {
		return domain.Anime{}, false
	}
	return *a, true
}

func (m *Model) switchView(v View) {
	m.view = v
	m.browse.SetFocused(v == ViewBrowse)
	m.favList.SetFocused(v == ViewFavorites)
}

func (m *Model) activeList() *components.ListColumn {
	switch m.view {
	case ViewBrowse:
		return m.browse
	case ViewFavorites:
		return m.favList
	default:
		return nil
	}
}

func (m *Model) setFavorites(favs []domain.Favorite) {
	m.favIDs = make(map[int]bool, len(favs))
	items := make([]domain.ListItem, len(favs))
	for i := range favs {
		m.favIDs[favs[i].ID] = true
		items[i] = &favs[i]
	}
	m.favList.SetItems(items)
	m.favList.SetTitle(fmt.Sprintf("Favorites (%d)", len(favs)))
}

// layout sizes the lists to the window below the tab bar and above the status line
func (m *Model) layout() {
	listHeight := max(m.height-3, 5)
	m.browse.SetSize(m.width, listHeight)
	m.favList.SetSize(m.width, listHeight)
	m.search.SetWidth(m.width)
	m.filterBar.SetWidth(m.width)
}

// errText renders an error for the status line
func errText(err error) string {
	var status *domain.StatusError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "Not found"
	case errors.As(err, &status):
		return fmt.Sprintf("Server error (%d), try again later", status.StatusCode)
	default:
		return err.Error()
	}
}

func animeItems(list []domain.Anime) []domain.ListItem {
	items := make([]domain.ListItem, len(list))
	for i := range list {
		items[i] = &list[i]
	}
	return items
}
