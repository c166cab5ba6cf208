package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	"github.com/mmcdole/anidex/internal/domain"
	"github.com/mmcdole/anidex/internal/tui/styles"
)

// Layout constants for list columns
const (
	// Border adds 1 char on each side (left+right for width, top+bottom for height)
	BorderWidth  = 2
	BorderHeight = 2

	// Scroll indicators ("↑ more" and "↓ more") each take 1 line
	ScrollIndicatorLines = 2
)

// ListColumn is a scrollable, filterable list of catalog entries
type ListColumn struct {
	items []domain.ListItem
	keys  ListColumnKeyMap

	// Selection
	cursor     int
	offset     int
	maxVisible int

	// Dimensions
	width   int
	height  int
	focused bool

	// Column title (shown in header)
	title string

	// Loading state
	loading      bool
	spinnerFrame int
	footer       string // e.g. "end of results"

	// Marked reports whether an id gets the favorite marker
	Marked func(id int) bool

	// Filter state
	filterActive bool
	filterInput  textinput.Model
	filterQuery  string
	filteredIdx  []int // indices into items
}

// NewListColumn creates a new list column with the given title
func NewListColumn(title string) *ListColumn {
	ti := textinput.New()
	ti.Placeholder = "type to filter..."
	ti.Prompt = "/ "
	ti.PromptStyle = styles.FilterPromptStyle
	ti.TextStyle = styles.FilterStyle

	return &ListColumn{
		title:       title,
		keys:        DefaultListColumnKeyMap(),
		filterInput: ti,
	}
}

// Update handles navigation and filter typing
func (c *ListColumn) Update(msg tea.Msg) tea.Cmd {
	if !c.focused {
		return nil
	}
	keyMsg, isKey := msg.(tea.KeyMsg)

	// Filter input when active AND focused (typing mode)
	if c.filterActive && c.filterInput.Focused() {
		if isKey {
			switch {
			case key.Matches(keyMsg, c.keys.Escape):
				c.clearFilter()
				return nil
			case key.Matches(keyMsg, c.keys.Enter):
				// Accept filter, blur input to allow navigation
				c.filterInput.Blur()
				return nil
			case keyMsg.String() == "backspace" && c.filterInput.Value() == "":
				c.clearFilter()
				return nil
			}
		}
		var cmd tea.Cmd
		c.filterInput, cmd = c.filterInput.Update(msg)
		c.applyFilter()
		return cmd
	}

	if !isKey {
		return nil
	}

	// Filter active but blurred (navigation mode with filter results)
	if c.filterActive {
		switch {
		case key.Matches(keyMsg, c.keys.Escape):
			c.clearFilter()
			return nil
		case key.Matches(keyMsg, c.keys.Filter):
			c.filterInput.Focus()
			return nil
		}
	}

	count := c.ItemCount()
	if count == 0 {
		return nil
	}

	switch {
	case key.Matches(keyMsg, c.keys.Down):
		c.SetSelectedIndex(c.cursor + 1)
	case key.Matches(keyMsg, c.keys.Up):
		c.SetSelectedIndex(c.cursor - 1)
	case key.Matches(keyMsg, c.keys.Home):
		c.SetSelectedIndex(0)
	case key.Matches(keyMsg, c.keys.End):
		c.SetSelectedIndex(count - 1)
	case key.Matches(keyMsg, c.keys.HalfDown):
		c.SetSelectedIndex(c.cursor + c.maxVisible/2)
	case key.Matches(keyMsg, c.keys.HalfUp):
		c.SetSelectedIndex(c.cursor - c.maxVisible/2)
	case key.Matches(keyMsg, c.keys.PageDown):
		c.SetSelectedIndex(c.cursor + c.maxVisible)
	case key.Matches(keyMsg, c.keys.PageUp):
		c.SetSelectedIndex(c.cursor - c.maxVisible)
	}
	return nil
}

func (c *ListColumn) View() string {
	style := styles.InactiveBorder
	if c.focused {
		style = styles.ActiveBorder
	}

	// Subtract frame (border) size so total rendered size equals c.width x c.height
	frameW, frameH := style.GetFrameSize()

	return style.
		Width(c.width - frameW).
		Height(c.height - frameH).
		Render(c.renderContent())
}

func (c *ListColumn) SetSize(width, height int) {
	c.width = width
	c.height = height
	c.recalcMaxVisible()
	c.ensureVisible() // Scroll to show selected item now that we know the size
}

func (c *ListColumn) SetFocused(focused bool) { c.focused = focused }
func (c *ListColumn) SetTitle(title string)   { c.title = title }
func (c *ListColumn) Title() string           { return c.title }
func (c *ListColumn) SetLoading(loading bool) { c.loading = loading }
func (c *ListColumn) IsLoading() bool         { return c.loading }
func (c *ListColumn) SetFooter(footer string) { c.footer = footer }
func (c *ListColumn) SetSpinnerFrame(f int)   { c.spinnerFrame = f }

// SetItems replaces the items. When the new items extend the old ones (the
// next page of a listing arrived) the cursor and filter are kept.
func (c *ListColumn) SetItems(items []domain.ListItem) {
	c.loading = false
	extends := len(items) >= len(c.items) && len(c.items) > 0 &&
		items[0].GetID() == c.items[0].GetID()
	c.items = items

	if !extends {
		c.cursor = 0
		c.offset = 0
		c.clearFilter()
		return
	}
	if c.filterActive {
		c.refilter()
	}
	c.SetSelectedIndex(c.cursor)
}

// Selected returns the item under the cursor, nil when empty
func (c *ListColumn) Selected() domain.ListItem {
	count := c.ItemCount()
	if count == 0 || c.cursor >= count {
		return nil
	}
	return c.items[c.mapIndex(c.cursor)]
}

func (c *ListColumn) SelectedIndex() int { return c.cursor }

func (c *ListColumn) SetSelectedIndex(idx int) {
	last := c.ItemCount() - 1
	if last < 0 {
		c.cursor = 0
		return
	}
	c.cursor = max(0, min(idx, last))
	c.ensureVisible()
}

// ItemCount returns the number of visible (filtered) items
func (c *ListColumn) ItemCount() int {
	if c.filteredIdx != nil {
		return len(c.filteredIdx)
	}
	return len(c.items)
}

// NearEnd reports whether the cursor is within threshold rows of the last
// unfiltered item
func (c *ListColumn) NearEnd(threshold int) bool {
	if c.filterActive && c.filterQuery != "" {
		return false
	}
	return len(c.items) == 0 || c.cursor >= len(c.items)-1-threshold
}

// ToggleFilter activates the filter input
func (c *ListColumn) ToggleFilter() {
	c.filterActive = true
	c.filterInput.Focus()
	c.recalcMaxVisible()
}

// IsFilterTyping returns true if filter is active AND input is focused
func (c *ListColumn) IsFilterTyping() bool {
	return c.filterActive && c.filterInput.Focused()
}

// IsFiltering returns true if filter mode is active
func (c *ListColumn) IsFiltering() bool {
	return c.filterActive
}

// ClearFilter deactivates the filter and shows all items
func (c *ListColumn) ClearFilter() {
	c.clearFilter()
}

// Internal methods

func (c *ListColumn) recalcMaxVisible() {
	// Reserve space for: title line + scroll indicators (header + footer)
	interiorHeight := c.height - BorderHeight
	c.maxVisible = interiorHeight - ScrollIndicatorLines - 1
	if c.filterActive {
		c.maxVisible--
	}
	if c.maxVisible < 1 {
		c.maxVisible = 1
	}
}

func (c *ListColumn) ensureVisible() {
	// Don't adjust offset if size hasn't been set yet
	if c.maxVisible <= 0 {
		return
	}
	if c.cursor < c.offset {
		c.offset = c.cursor
	}
	if c.cursor >= c.offset+c.maxVisible {
		c.offset = c.cursor - c.maxVisible + 1
	}
}

func (c *ListColumn) clearFilter() {
	c.filterActive = false
	c.filterQuery = ""
	c.filteredIdx = nil
	c.filterInput.SetValue("")
	c.filterInput.Blur()
	c.recalcMaxVisible()
}

func (c *ListColumn) applyFilter() {
	c.refilter()
	// Reset cursor to first match
	c.cursor = 0
	c.offset = 0
}

func (c *ListColumn) refilter() {
	query := c.filterInput.Value()
	c.filterQuery = query
	if query == "" {
		c.filteredIdx = nil
		return
	}

	matches := fuzzy.FindFrom(strings.ToLower(query), titleSource(c.items))
	c.filteredIdx = make([]int, len(matches))
	for i, match := range matches {
		c.filteredIdx[i] = match.Index
	}
}

// titleSource implements fuzzy.Source over lowercase titles
type titleSource []domain.ListItem

func (s titleSource) String(i int) string { return strings.ToLower(s[i].GetTitle()) }
func (s titleSource) Len() int            { return len(s) }

func (c *ListColumn) mapIndex(i int) int {
	if c.filteredIdx != nil && i < len(c.filteredIdx) {
		return c.filteredIdx[i]
	}
	return i
}

// Rendering

func (c *ListColumn) renderContent() string {
	itemWidth := max(c.width-BorderWidth, 10)

	titleLine := styles.AccentStyle.Render(styles.Truncate(c.title, itemWidth))

	count := c.ItemCount()
	if count == 0 {
		msg := styles.DimStyle.Render("No items")
		switch {
		case c.loading:
			spinner := styles.SpinnerFrames[c.spinnerFrame%len(styles.SpinnerFrames)]
			msg = styles.DimStyle.Render(spinner + " Loading...")
		case c.filterActive && c.filterQuery != "":
			msg = styles.DimStyle.Render("No matches")
		}
		content := titleLine + "\n \n" + msg + "\n "
		if c.filterActive {
			content += "\n" + c.renderFilterBar()
		}
		return content
	}

	end := min(c.offset+c.maxVisible, count)
	lines := make([]string, 0, end-c.offset)
	for i := c.offset; i < end; i++ {
		lines = append(lines, c.renderItem(c.items[c.mapIndex(i)], i == c.cursor, itemWidth))
	}

	// Always reserve space for header and footer to prevent layout shifts
	header := " "
	if c.offset > 0 {
		header = styles.DimStyle.Render("↑ more")
	}
	footer := " "
	switch {
	case end < count:
		footer = styles.DimStyle.Render("↓ more")
	case c.loading:
		spinner := styles.SpinnerFrames[c.spinnerFrame%len(styles.SpinnerFrames)]
		footer = styles.DimStyle.Render(spinner + " Loading more...")
	case c.footer != "":
		footer = styles.DimStyle.Render(c.footer)
	}

	content := titleLine + "\n" + header + "\n" + strings.Join(lines, "\n") + "\n" + footer
	if c.filterActive {
		content += "\n" + c.renderFilterBar()
	}
	return content
}

func (c *ListColumn) renderItem(item domain.ListItem, selected bool, width int) string {
	marker := " "
	gold := styles.Gold
	if c.Marked != nil && c.Marked(item.GetID()) {
		marker = styles.FavoriteChar
	}

	desc := item.GetDescription()
	// Available space: marker(1) + space(1) + margins(2)
	avail := max(width-4, 5)
	title := styles.Truncate(item.GetTitle(), avail)

	parts := []styles.RowPart{
		{Text: marker, Foreground: &gold},
		{Text: " " + title},
	}
	if rest := avail - lipgloss.Width(title) - 2; desc != "" && rest > 8 {
		dim := styles.DimGray
		parts = append(parts, styles.RowPart{Text: "  " + styles.Truncate(desc, rest), Foreground: &dim})
	}
	return styles.RenderListRow(parts, selected, width)
}

func (c *ListColumn) renderFilterBar() string {
	countStr := ""
	if c.filterQuery != "" {
		countStr = styles.DimStyle.Render(fmt.Sprintf(" [%d/%d]", c.ItemCount(), len(c.items)))
	}
	return c.filterInput.View() + countStr
}
