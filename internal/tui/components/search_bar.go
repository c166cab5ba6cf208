package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mmcdole/anidex/internal/tui/styles"
)

// SearchSubmittedMsg is sent when the user submits a catalog search.
// An empty Query clears the search.
type SearchSubmittedMsg struct {
	Query string
}

// FiltersSubmittedMsg is sent when the user submits browse filters as
// key=value pairs. An empty Filters clears them.
type FiltersSubmittedMsg struct {
	Filters string
}

// SearchBar is a one-line prompt shown above the browse list
type SearchBar struct {
	input   textinput.Model
	keys    SearchBarKeyMap
	visible bool
	width   int
	submit  func(value string) tea.Msg
}

// NewSearchBar creates the catalog search prompt
func NewSearchBar() SearchBar {
	return newPrompt("search: ", "Search anime...", 100, func(v string) tea.Msg {
		return SearchSubmittedMsg{Query: v}
	})
}

// NewFilterBar creates the browse filter prompt
func NewFilterBar() SearchBar {
	return newPrompt("filters: ", "type=tv genre=action min_score=7 order_by=score sort=desc", 200, func(v string) tea.Msg {
		return FiltersSubmittedMsg{Filters: v}
	})
}

func newPrompt(prompt, placeholder string, limit int, submit func(string) tea.Msg) SearchBar {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = limit
	ti.Width = 40
	ti.Prompt = prompt
	ti.PromptStyle = styles.AccentStyle
	ti.TextStyle = lipgloss.NewStyle().Foreground(styles.White)
	ti.PlaceholderStyle = styles.DimStyle

	return SearchBar{input: ti, keys: DefaultSearchBarKeyMap(), submit: submit}
}

// Show makes the prompt visible with value prefilled
func (s *SearchBar) Show(value string) {
	s.visible = true
	s.input.SetValue(value)
	s.input.CursorEnd()
	s.input.Focus()
}

// Hide hides the search bar
func (s *SearchBar) Hide() {
	s.visible = false
	s.input.Blur()
}

// IsVisible returns true if the search bar is visible
func (s SearchBar) IsVisible() bool {
	return s.visible
}

// SetWidth updates the component width
func (s *SearchBar) SetWidth(width int) {
	s.width = width
	s.input.Width = max(width-12, 10)
}

// Update handles input while visible
func (s *SearchBar) Update(msg tea.Msg) tea.Cmd {
	if !s.visible {
		return nil
	}
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(keyMsg, s.keys.Escape):
			s.Hide()
			return nil
		case key.Matches(keyMsg, s.keys.Enter):
			value := strings.TrimSpace(s.input.Value())
			s.Hide()
			submit := s.submit
			return func() tea.Msg { return submit(value) }
		case key.Matches(keyMsg, s.keys.Clear):
			s.input.SetValue("")
			return nil
		}
	}

	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	return cmd
}

// View renders the search bar
func (s SearchBar) View() string {
	if !s.visible {
		return ""
	}
	return s.input.View()
}
