// Package tui is a small Bubble Tea browser over the retrieval pipeline.
// Query lines may carry inline filter tokens such as component:<iri> or
// format:application/pdf; the rest of the line is the free-text question.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"iirdsrag/internal/domain"
	"iirdsrag/internal/service"
)

// SearchPort is the TUI-facing subset of the retrieval pipeline.
type SearchPort interface {
	Search(ctx context.Context, question string, filters service.Filters, k int) ([]domain.SearchHit, error)
}

// filterAliases maps short inline token prefixes to filter keys.
var filterAliases = map[string]string{
	"variant":   "product_variants",
	"component": "components",
	"role":      "roles",
	"doctype":   "doc_types",
	"subject":   "subjects",
	"phase":     "phases",
}

// Model is the Bubble Tea model for the query browser.
type Model struct {
	pipeline SearchPort
	topK     int
	input    textinput.Model
	viewport viewport.Model
	hits     []domain.SearchHit
	status   string
	cursor   int
	ready    bool
}

// New creates a new TUI model instance.
func New(pipeline SearchPort, topK int) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "question [component:<iri> ...]"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{pipeline: pipeline, topK: topK, input: ti, viewport: vp, status: "Ready. Type to search."}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around result and query boxes
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 1 + 1 + qh + 1 // header + status + query box + spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = maxInt(20, msg.Width)
		m.viewport.Height = maxInt(3, vh-rh)
		m.viewport.SetContent(m.renderCurrentHit())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			line := strings.TrimSpace(m.input.Value())
			if line != "" {
				question, filters := parseQueryLine(line)
				hits, err := m.pipeline.Search(context.Background(), question, filters, m.topK)
				if err != nil {
					m.status = "Error: " + err.Error()
					m.hits = nil
				} else {
					m.status = fmt.Sprintf("%d hits for %q", len(hits), question)
					m.hits = hits
					m.cursor = 0
				}
				m.viewport.SetContent(m.renderCurrentHit())
				return m, nil
			}
		case "down":
			if len(m.hits) > 0 {
				m.cursor = (m.cursor + 1) % len(m.hits)
				m.viewport.SetContent(m.renderCurrentHit())
				return m, nil
			}
		case "up":
			if len(m.hits) > 0 {
				m.cursor = (m.cursor - 1 + len(m.hits)) % len(m.hits)
				m.viewport.SetContent(m.renderCurrentHit())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the TUI layout and current hit.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("iiRDS Retrieval")
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderCurrentHit() string {
	if len(m.hits) == 0 {
		return "No hits yet."
	}
	h := m.hits[m.cursor]
	parent := metaString(h.Metadata, "parent_iri")
	path := metaString(h.Metadata, "path")
	title := fmt.Sprintf("Hit %d/%d  distance=%.4f", m.cursor+1, len(m.hits), h.Distance)
	cite := citeStyle.Render(fmt.Sprintf("(%s | %s)", parent, path))
	return title + "\n" + cite + "\n\n" + h.Text
}

// parseQueryLine splits inline key:value filter tokens from the
// free-text question. Repeated keys accumulate into membership sets.
func parseQueryLine(line string) (string, service.Filters) {
	filters := service.Filters{}
	var words []string
	for _, tok := range strings.Fields(line) {
		key, value, ok := strings.Cut(tok, ":")
		if !ok || value == "" {
			words = append(words, tok)
			continue
		}
		if mapped, ok := filterAliases[strings.ToLower(key)]; ok {
			key = mapped
		} else if strings.HasPrefix(value, "//") {
			// a bare URL, not a filter token
			words = append(words, tok)
			continue
		}
		switch existing := filters[key].(type) {
		case nil:
			filters[key] = value
		case string:
			filters[key] = []string{existing, value}
		case []string:
			filters[key] = append(existing, value)
		}
	}
	return strings.Join(words, " "), filters
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	citeStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func metaString(meta map[string]any, key string) string {
	if v, ok := meta[key]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
