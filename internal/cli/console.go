package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/unicode/norm"

	"github.com/temcen/crosssale/internal/overlay"
	"github.com/temcen/crosssale/pkg/models"
)

// Theme holds the colors of the console overlay.
type Theme struct {
	Border lipgloss.Color
	Title  lipgloss.Color
	Hint   lipgloss.Color
}

var defaultTheme = Theme{
	Border: lipgloss.Color("#5FAFD7"), // light blue
	Title:  lipgloss.Color("#00D787"), // green
	Hint:   lipgloss.Color("#6C6C6C"), // dim gray
}

type consoleEntry struct {
	info models.ProductInfo
}

// ConsoleRenderer draws the overlay as a box of numbered entries. Entries are
// shaded by certainty: the less certain, the dimmer.
type ConsoleRenderer struct {
	mu sync.Mutex

	out         io.Writer
	lg          *lipgloss.Renderer
	theme       Theme
	coefficient int
	title       string

	entries []*consoleEntry
	visible bool
	closed  bool
}

func NewConsoleRenderer(out io.Writer, title string, coefficient int) *ConsoleRenderer {
	return &ConsoleRenderer{
		out:         out,
		lg:          lipgloss.NewRenderer(out),
		theme:       defaultTheme,
		coefficient: coefficient,
		title:       title,
	}
}

func (r *ConsoleRenderer) DisplayEntry(info models.ProductInfo) overlay.EntryHandle {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := &consoleEntry{info: info}
	r.entries = append(r.entries, entry)
	return entry
}

func (r *ConsoleRenderer) RemoveEntry(h overlay.EntryHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, entry := range r.entries {
		if entry == h {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			break
		}
	}
	if r.visible && len(r.entries) > 0 {
		r.draw()
	}
}

func (r *ConsoleRenderer) Show() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.visible = true
	r.draw()
}

func (r *ConsoleRenderer) Hide() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.visible = false
	fmt.Fprintln(r.out, r.hint("recommendations hidden, type 'reshow' to bring them back"))
}

func (r *ConsoleRenderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.visible = false
	r.closed = true
	fmt.Fprintln(r.out, r.hint("recommendations closed"))
}

// Entries returns what is on screen, in display order.
func (r *ConsoleRenderer) Entries() []models.ProductInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	infos := make([]models.ProductInfo, len(r.entries))
	for i, entry := range r.entries {
		infos[i] = entry.info
	}
	return infos
}

func (r *ConsoleRenderer) hint(s string) string {
	return r.lg.NewStyle().Foreground(r.theme.Hint).Italic(true).Render(s)
}

func (r *ConsoleRenderer) draw() {
	lines := []string{r.lg.NewStyle().Foreground(r.theme.Title).Bold(true).Render(r.title)}

	for i, entry := range r.entries {
		alpha := overlay.Emphasis(entry.info.Certainty, r.coefficient)
		shade := lipgloss.Color(fmt.Sprintf("#%02X%02X%02X", alpha, alpha, alpha))

		name := fmt.Sprintf("[%d] %s  %3.0f%%", i+1, DisplayName(entry.info.Name), entry.info.Certainty*100)
		lines = append(lines,
			r.lg.NewStyle().Foreground(shade).Bold(true).Render(name),
			"    "+r.hint(DisplayDescription(entry.info.Description)),
		)
	}

	box := r.lg.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(r.theme.Border).
		Padding(0, 1).
		Render(strings.Join(lines, "\n"))

	fmt.Fprintln(r.out, box)
}

// DisplayName normalizes a product name to NFC so composed and decomposed
// spellings render the same.
func DisplayName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// DisplayDescription keeps the description line from collapsing when a
// product has none.
func DisplayDescription(description string) string {
	if description == "" {
		return " "
	}
	return norm.NFC.String(description)
}
