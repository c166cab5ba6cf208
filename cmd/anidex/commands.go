package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/mmcdole/anidex/internal/adapter"
	"github.com/mmcdole/anidex/internal/catalog"
	"github.com/mmcdole/anidex/internal/domain"
	"github.com/mmcdole/anidex/internal/tui/styles"
)

// clearSpinnerLine clears the spinner line from the terminal
const clearSpinnerLine = "\r                                    \r"

// errNoCommand is returned by dispatch for an empty argument list
var errNoCommand = errors.New("no command")

// commands runs the non-interactive subcommands
type commands struct {
	stack   *adapter.Stack
	cfg     *adapter.Config
	out     io.Writer
	limit   int
	sfw     bool
	spinner bool // Animate progress on stderr
}

func (c *commands) dispatch(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errNoCommand
	}
	name, rest := args[0], args[1:]
	switch name {
	case "search":
		return c.search(ctx, rest)
	case "show":
		if len(rest) != 1 {
			return fmt.Errorf("usage: anidex show <id>")
		}
		return c.show(ctx, rest[0])
	case "top":
		filter := ""
		if len(rest) > 0 {
			filter = rest[0]
		}
		return c.top(ctx, filter)
	case "home":
		return c.home(ctx)
	case "season":
		return c.season(ctx)
	case "config":
		if len(rest) > 1 {
			return fmt.Errorf("usage: anidex config [file]")
		}
		path := ""
		if len(rest) == 1 {
			path = rest[0]
		}
		return c.saveConfig(path)
	case "favorites", "favs":
		return c.favorites(rest)
	default:
		return fmt.Errorf("unknown command %q", name)
	}
}

func (c *commands) search(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	fs.SetOutput(c.out)
	var f domain.Filters
	var genres string
	fs.StringVar(&f.Type, "type", "", "content type: tv, movie, ova, special, ona, music")
	fs.StringVar(&f.Status, "status", "", "airing status: airing, complete, upcoming")
	fs.StringVar(&f.Rating, "rating", "", "audience rating: g, pg, pg13, r17, r, rx")
	fs.StringVar(&genres, "genre", "", "comma-separated genre names or ids")
	fs.Float64Var(&f.MinScore, "min-score", 0, "minimum score (0-10)")
	fs.Float64Var(&f.MaxScore, "max-score", 0, "maximum score (0-10)")
	fs.StringVar(&f.OrderBy, "order-by", "", "sort field, e.g. score, popularity, start_date")
	fs.StringVar(&f.Sort, "sort", "", "sort direction: asc, desc")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: anidex search [flags] [query]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	for _, g := range strings.Split(genres, ",") {
		if g = strings.TrimSpace(g); g != "" {
			f.Genres = append(f.Genres, g)
		}
	}

	q := strings.Join(fs.Args(), " ")
	if q == "" && f.IsZero() {
		return fmt.Errorf("usage: anidex search [flags] <query>")
	}
	params, err := c.stack.Catalog.ApplyFilters(ctx, domain.ListParams{Query: q, Limit: c.limit, SFW: c.sfw}, f)
	if err != nil {
		return err
	}

	page, err := withSpinner(c, "Searching...", func() (domain.Page[domain.Anime], error) {
		return c.stack.Catalog.List(ctx, params)
	})
	if err != nil {
		return err
	}
	if len(page.Items) == 0 {
		fmt.Fprintln(c.out, "No results")
		return nil
	}
	c.printAnime(page.Items)
	if page.Pagination.HasNextPage {
		fmt.Fprintf(c.out, "\n%d results, showing the first %d\n", page.Pagination.Total, len(page.Items))
	}
	return nil
}

func (c *commands) top(ctx context.Context, filter string) error {
	if !domain.ValidTopFilter(filter) {
		return fmt.Errorf("%w: top filter %q", domain.ErrInvalidParams, filter)
	}
	items, err := withSpinner(c, "Loading...", func() ([]domain.Anime, error) {
		return c.stack.Catalog.Top(ctx, filter, c.limit)
	})
	if err != nil {
		return err
	}
	c.printAnime(items)
	return nil
}

func (c *commands) season(ctx context.Context) error {
	items, err := withSpinner(c, "Loading...", func() ([]domain.Anime, error) {
		return c.stack.Catalog.SeasonNow(ctx, c.limit)
	})
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(c.out, "Nothing airing this season")
		return nil
	}
	c.printAnime(items)
	return nil
}

// saveConfig writes the effective configuration so it can be edited
func (c *commands) saveConfig(path string) error {
	if err := adapter.SaveConfig(c.cfg, path); err != nil {
		return err
	}
	if path == "" {
		path = "the default location"
	}
	fmt.Fprintf(c.out, "Wrote config to %s\n", path)
	return nil
}

func (c *commands) home(ctx context.Context) error {
	page, err := withSpinner(c, "Loading...", func() (*catalog.HomePage, error) {
		return c.stack.Catalog.Home(ctx)
	})
	if err != nil {
		return err
	}
	for i, s := range []struct {
		title   string
		section catalog.Section[[]domain.Anime]
	}{
		{"Popular", page.Popular},
		{"Latest series", page.LatestSeries},
		{"Latest movies", page.LatestMovies},
	} {
		if i > 0 {
			fmt.Fprintln(c.out)
		}
		fmt.Fprintf(c.out, "== %s ==\n", s.title)
		if !s.section.Available {
			fmt.Fprintln(c.out, "(unavailable)")
			continue
		}
		c.printAnime(s.section.Data)
	}
	return nil
}

func (c *commands) show(ctx context.Context, slug string) error {
	id, err := catalog.ParseID(slug)
	if err != nil {
		return fmt.Errorf("no entry %q: %w", slug, err)
	}
	page, err := withSpinner(c, "Loading...", func() (*catalog.DetailPage, error) {
		return c.stack.Catalog.DetailPage(ctx, id)
	})
	if err != nil {
		return err
	}
	favorite, err := c.stack.Favorites.IsFavorite(id)
	if err != nil {
		return err
	}
	writeDetail(c.out, page, favorite)
	return nil
}

func (c *commands) favorites(args []string) error {
	svc := c.stack.Favorites
	if len(args) == 0 {
		favs, err := svc.List()
		if err != nil {
			return err
		}
		if len(favs) == 0 {
			fmt.Fprintln(c.out, "No favorites yet")
			return nil
		}
		c.printFavorites(favs)
		return nil
	}

	switch args[0] {
	case "search":
		if len(args) < 2 {
			return fmt.Errorf("usage: anidex favorites search <query>")
		}
		favs, err := svc.Search(strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		c.printFavorites(favs)
		return nil

	case "export":
		if len(args) != 2 {
			return fmt.Errorf("usage: anidex favorites export <file>")
		}
		if args[1] == "-" {
			return svc.Export(c.out)
		}
		f, err := os.Create(args[1])
		if err != nil {
			return fmt.Errorf("creating export: %w", err)
		}
		if err := svc.Export(f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("writing export: %w", err)
		}
		fmt.Fprintf(c.out, "Exported favorites to %s\n", args[1])
		return nil

	case "import":
		if len(args) != 2 {
			return fmt.Errorf("usage: anidex favorites import <file>")
		}
		f, err := os.Open(args[1])
		if err != nil {
			return fmt.Errorf("opening import: %w", err)
		}
		defer f.Close()
		n, err := svc.Import(f)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Imported %d favorites\n", n)
		return nil

	default:
		return fmt.Errorf("unknown favorites command %q", args[0])
	}
}

func (c *commands) printAnime(items []domain.Anime) {
	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	for i := range items {
		a := &items[i]
		fmt.Fprintf(w, "%d\t%s\t%s\n", a.ID, a.DisplayTitle(), a.GetDescription())
	}
	w.Flush()
}

func (c *commands) printFavorites(favs []domain.Favorite) {
	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	for i := range favs {
		f := &favs[i]
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", f.ID, f.Title, f.GetDescription(), f.AddedAt.Local().Format("2006-01-02"))
	}
	w.Flush()
}

// writeDetail prints a detail page as plain text
func writeDetail(w io.Writer, page *catalog.DetailPage, favorite bool) {
	a := page.Anime
	title := a.DisplayTitle()
	if favorite {
		title += " " + styles.FavoriteChar
	}
	fmt.Fprintln(w, title)
	if a.TitleEnglish != "" && a.TitleEnglish != a.Title {
		fmt.Fprintln(w, a.TitleEnglish)
	}
	if desc := a.GetDescription(); desc != "" {
		fmt.Fprintln(w, desc)
	}
	for _, f := range [][2]string{
		{"Status", a.Status}, {"Aired", a.Aired}, {"Genres", a.GenreNames()}, {"URL", a.URL},
	} {
		if f[1] != "" {
			fmt.Fprintf(w, "%s: %s\n", f[0], f[1])
		}
	}
	if a.Synopsis != "" {
		fmt.Fprintf(w, "\n%s\n", a.Synopsis)
	}

	section := func(name string, available bool, lines []string) {
		fmt.Fprintf(w, "\n== %s ==\n", name)
		switch {
		case !available:
			fmt.Fprintln(w, "(unavailable)")
		case len(lines) == 0:
			fmt.Fprintln(w, "(none)")
		default:
			for _, l := range lines {
				fmt.Fprintln(w, l)
			}
		}
	}

	var related []string
	for _, rel := range page.Relations.Data {
		for _, e := range rel.Entries {
			related = append(related, fmt.Sprintf("%s: %s (%s %d)", rel.Relation, e.Name, e.Type, e.ID))
		}
	}
	section("Related", page.Relations.Available, related)

	var characters []string
	for _, ch := range page.Characters.Data {
		characters = append(characters, fmt.Sprintf("%s (%s)", ch.Name, ch.Role))
	}
	section("Characters", page.Characters.Available, characters)

	var videos []string
	if v := page.Videos.Data; v != nil {
		for _, p := range v.Promo {
			videos = append(videos, p.Title)
		}
		if n := len(v.Episodes); n > 0 {
			videos = append(videos, fmt.Sprintf("%d episode previews", n))
		}
	}
	section("Videos", page.Videos.Available, videos)

	var stats []string
	if s := page.Statistics.Data; s != nil {
		stats = append(stats, fmt.Sprintf("watching %d, completed %d, on hold %d, dropped %d, plan to watch %d",
			s.Watching, s.Completed, s.OnHold, s.Dropped, s.PlanToWatch))
	}
	section("Statistics", page.Statistics.Available && page.Statistics.Data != nil, stats)

	var pictures []string
	if n := len(page.Pictures.Data); n > 0 {
		pictures = append(pictures, fmt.Sprintf("%d pictures", n))
	}
	section("Pictures", page.Pictures.Available, pictures)
}

// withSpinner runs fn, animating label on stderr while it is in flight
func withSpinner[T any](c *commands, label string, fn func() (T, error)) (T, error) {
	if !c.spinner {
		return fn()
	}

	type result struct {
		value T
		err   error
	}
	resultCh := make(chan result, 1)
	go func() {
		v, err := fn()
		resultCh <- result{v, err}
	}()

	frame := 0
	fmt.Fprintf(os.Stderr, "\r%s %s", styles.SpinnerFrames[frame], label)

	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case res := <-resultCh:
			fmt.Fprint(os.Stderr, clearSpinnerLine)
			return res.value, res.err
		case <-ticker.C:
			frame++
			fmt.Fprintf(os.Stderr, "\r%s %s", styles.SpinnerFrames[frame%len(styles.SpinnerFrames)], label)
		}
	}
}
