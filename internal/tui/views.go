package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/mmcdole/anidex/internal/catalog"
	"github.com/mmcdole/anidex/internal/domain"
	"github.com/mmcdole/anidex/internal/tui/styles"
)

// Number of entries shown per detail section
const sectionRows = 6

// View renders the model
func (m *Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}

	var body string
	switch m.view {
	case ViewDetail:
		body = m.renderDetail()
	case ViewFavorites:
		body = m.favList.View()
	default:
		body = m.browse.View()
		if m.search.IsVisible() {
			body = m.search.View() + "\n" + body
		} else if m.filterBar.IsVisible() {
			body = m.filterBar.View() + "\n" + body
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left, m.renderTabs(), body, m.renderStatus())
}

func (m *Model) renderTabs() string {
	tab := func(label string, active bool) string {
		if active {
			return styles.ActiveTabStyle.Render(label)
		}
		return styles.TabStyle.Render(label)
	}
	current := m.view
	if current == ViewDetail {
		current = m.returnTo
	}
	return tab("1 Browse", current == ViewBrowse) + " " + tab("2 Favorites", current == ViewFavorites)
}

func (m *Model) renderStatus() string {
	switch {
	case m.err != nil:
		return styles.ErrorStyle.Render(styles.Truncate(errText(m.err), m.width))
	case m.status != "":
		return styles.SuccessStyle.Render(styles.Truncate(m.status, m.width))
	default:
		return styles.DimStyle.Render("? help  q quit")
	}
}

func (m *Model) renderHelp() string {
	bindings := []key.Binding{
		Keys.Enter, Keys.Back, Keys.NextTab, Keys.Search, Keys.Filters, Keys.Filter,
		Keys.Favorite, Keys.Remove, Keys.Refresh, Keys.Open, Keys.Trailer, Keys.Quit,
	}
	lines := []string{styles.TitleStyle.Render("Keys"), ""}
	for _, b := range bindings {
		h := b.Help()
		lines = append(lines, fmt.Sprintf("  %s  %s",
			styles.HelpKeyStyle.Render(fmt.Sprintf("%-6s", h.Key)),
			styles.HelpDescStyle.Render(h.Desc)))
	}
	lines = append(lines, "", styles.DimStyle.Render("press any key to close"))
	return strings.Join(lines, "\n")
}

func (m *Model) renderDetail() string {
	switch {
	case m.detailLoading:
		spinner := styles.SpinnerFrames[m.frame%len(styles.SpinnerFrames)]
		return styles.DimStyle.Render(spinner + " Loading...")
	case m.detailErr != nil:
		return styles.ErrorStyle.Render(errText(m.detailErr)) + "\n\n" +
			styles.DimStyle.Render("esc back  r retry")
	case m.detail == nil || m.detail.Anime == nil:
		return ""
	}

	lines := detailLines(m.detail, m.favIDs[m.detailID], max(m.width-2, 20))

	// Scroll within the available height
	height := max(m.height-2, 1)
	start := min(m.detailScroll, max(len(lines)-height, 0))
	m.detailScroll = start
	end := min(start+height, len(lines))
	return strings.Join(lines[start:end], "\n")
}

// detailLines renders a detail page as lines of at most width cells
func detailLines(page *catalog.DetailPage, favorite bool, width int) []string {
	a := page.Anime
	var lines []string
	add := func(s string) { lines = append(lines, s) }
	section := func(name string) {
		add("")
		add(styles.SectionStyle.Render(name))
	}

	title := styles.TitleStyle.Render(a.DisplayTitle())
	if favorite {
		title += " " + styles.ScoreStyle.Render(styles.FavoriteChar)
	}
	add(title)
	if a.TitleEnglish != "" && a.TitleEnglish != a.Title {
		add(styles.SubtitleStyle.Render(a.TitleEnglish))
	}
	add(styles.DimStyle.Render(a.GetDescription()))

	facts := []string{}
	for _, f := range [][2]string{
		{"Status", a.Status}, {"Aired", a.Aired}, {"Source", a.Source},
		{"Duration", a.Duration}, {"Rating", a.Rating}, {"Genres", a.GenreNames()},
	} {
		if f[1] != "" {
			facts = append(facts, styles.DimStyle.Render(f[0]+": ")+f[1])
		}
	}
	if a.Rank > 0 {
		facts = append(facts, styles.DimStyle.Render("Rank: ")+fmt.Sprintf("#%d", a.Rank))
	}
	lines = append(lines, facts...)

	if a.Synopsis != "" {
		section("Synopsis")
		lines = append(lines, wrap(a.Synopsis, width)...)
	}

	section("Related")
	lines = append(lines, relatedLines(page)...)

	section("Characters")
	lines = append(lines, sectionLines(page.Characters, func(c domain.Character) string {
		line := c.Name + styles.DimStyle.Render(" ("+c.Role+")")
		for _, va := range c.VoiceActors {
			if va.Language == "Japanese" {
				line += styles.DimStyle.Render(" cv. " + va.Person.Name)
				break
			}
		}
		return line
	})...)

	section("Videos")
	switch {
	case !page.Videos.Available:
		add(unavailable())
	case page.Videos.Data == nil || page.Videos.Data.Empty():
		add(styles.DimStyle.Render("none"))
	default:
		v := page.Videos.Data
		for i, p := range v.Promo {
			if i == sectionRows {
				break
			}
			add("▶ " + p.Title)
		}
		if n := len(v.Episodes); n > 0 {
			add(styles.DimStyle.Render(fmt.Sprintf("%d episode previews", n)))
		}
	}

	section("Statistics")
	switch {
	case !page.Statistics.Available || page.Statistics.Data == nil:
		add(unavailable())
	default:
		s := page.Statistics.Data
		add(fmt.Sprintf("watching %d · completed %d · on hold %d · dropped %d · plan to watch %d",
			s.Watching, s.Completed, s.OnHold, s.Dropped, s.PlanToWatch))
	}

	section("Pictures")
	if !page.Pictures.Available {
		add(unavailable())
	} else {
		add(styles.DimStyle.Render(fmt.Sprintf("%d pictures", len(page.Pictures.Data))))
	}

	add("")
	add(styles.DimStyle.Render("esc back  f favorite  o open  t trailer  r refresh"))

	clip := lipgloss.NewStyle().MaxWidth(width)
	for i, l := range lines {
		lines[i] = clip.Render(l)
	}
	return lines
}

func relatedLines(page *catalog.DetailPage) []string {
	if !page.Relations.Available {
		return []string{unavailable()}
	}
	if len(page.Relations.Data) == 0 {
		return []string{styles.DimStyle.Render("none")}
	}

	// Resolved entries carry scores; fall back to the bare relation names
	resolved := make(map[int]domain.Anime, len(page.Related.Data))
	for _, a := range page.Related.Data {
		resolved[a.ID] = a
	}

	var lines []string
	for _, rel := range page.Relations.Data {
		for _, e := range rel.Entries {
			if len(lines) == sectionRows*2 {
				return lines
			}
			line := styles.DimStyle.Render(rel.Relation+": ") + e.Name
			if a, ok := resolved[e.ID]; ok && e.Type == "anime" {
				line += styles.DimStyle.Render("  " + a.GetDescription())
			}
			lines = append(lines, line)
		}
	}
	if page.Relations.Available && !page.Related.Available {
		lines = append(lines, styles.DimStyle.Render("(details for related entries unavailable)"))
	}
	return lines
}

func sectionLines[T any](s catalog.Section[[]T], render func(T) string) []string {
	if !s.Available {
		return []string{unavailable()}
	}
	if len(s.Data) == 0 {
		return []string{styles.DimStyle.Render("none")}
	}
	var lines []string
	for i, item := range s.Data {
		if i == sectionRows {
			lines = append(lines, styles.DimStyle.Render(fmt.Sprintf("and %d more", len(s.Data)-i)))
			break
		}
		lines = append(lines, render(item))
	}
	return lines
}

func unavailable() string {
	return styles.DimStyle.Render("unavailable")
}

// wrap breaks text into lines of at most width runes on word boundaries
func wrap(text string, width int) []string {
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			continue
		}
		line := words[0]
		for _, w := range words[1:] {
			if len([]rune(line))+1+len([]rune(w)) > width {
				lines = append(lines, line)
				line = w
				continue
			}
			line += " " + w
		}
		lines = append(lines, line)
	}
	return lines
}
