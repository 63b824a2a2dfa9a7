// Package tui shows a live performance in the terminal: the drawing's hit
// zones as a character grid, lit while touched, with the fingertips and
// the feedback particles on top.
package tui

import (
	"fmt"
	"image/color"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/doodlejam/doodlejam"
	"github.com/doodlejam/doodlejam/feedback"
	"github.com/doodlejam/doodlejam/resolver"
	"github.com/doodlejam/doodlejam/session"
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#fff")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#555"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888"))
	tipStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#fff")).Bold(true)
)

const (
	DefaultCols = 64
	DefaultRows = 24
)

type (
	Model struct {
		Title  string
		Zones  doodlejam.Zones
		frames <-chan session.FrameView
		onQuit func()

		view     session.FrameView
		cols     int
		rows     int
		notes    int
		last     doodlejam.SoundID
		quitting bool
	}

	// FrameMsg carries a processed frame into the program.
	FrameMsg session.FrameView

	// DoneMsg ends the program, e.g. when a timed session is over.
	DoneMsg struct{}

	// Cell is one character of the zone grid.
	Cell struct {
		Rune   rune
		Sound  doodlejam.SoundID // zero outside every zone
		Active bool
		Color  color.NRGBA
		Tip    bool
	}
)

// NewModel builds a model drawing frames received on the channel. onQuit is
// called when the user quits, before the program exits.
func NewModel(title string, zones doodlejam.Zones, frames <-chan session.FrameView, onQuit func()) Model {
	return Model{
		Title:  title,
		Zones:  zones,
		frames: frames,
		onQuit: onQuit,
		cols:   DefaultCols,
		rows:   DefaultRows,
	}
}

// Listen waits for the next frame; a closed channel ends the program.
func Listen(frames <-chan session.FrameView) tea.Cmd {
	return func() tea.Msg {
		v, ok := <-frames
		if !ok {
			return DoneMsg{}
		}
		return FrameMsg(v)
	}
}

func (m Model) Init() tea.Cmd {
	return Listen(m.frames)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			if m.onQuit != nil {
				m.onQuit()
			}
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.cols = max(msg.Width, 8)
		m.rows = max(msg.Height-4, 4)

	case FrameMsg:
		m.view = session.FrameView(msg)
		for _, e := range m.view.Effects {
			if e.Kind == resolver.Onset {
				m.notes++
				m.last = e.Sound
			}
		}
		return m, Listen(m.frames)

	case DoneMsg:
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

// Notes returns the number of onsets seen so far.
func (m Model) Notes() int { return m.notes }

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	var out strings.Builder
	out.WriteString(headerStyle.Render(m.Title))
	out.WriteString("  ")
	out.WriteString(statusStyle.Render(fmt.Sprintf("%6.1fs  notes:%d  last:%s", m.view.Time.Seconds(), m.notes, m.last)))
	out.WriteString("\n\n")
	for _, row := range Cells(m.Zones, m.view, m.cols, m.rows) {
		out.WriteString(renderRow(row))
		out.WriteString("\n")
	}
	out.WriteString(dimStyle.Render("touch the drawing to play  q:finish"))
	return out.String()
}

// Cells lays the zones, fingertips and particles of a frame out on a grid
// of cols x rows characters. Zones later in the list draw over earlier ones.
func Cells(zones doodlejam.Zones, view session.FrameView, cols, rows int) [][]Cell {
	if cols <= 0 || rows <= 0 {
		return nil
	}
	active := map[doodlejam.SoundID]bool{}
	for _, id := range view.Active {
		active[id] = true
	}
	grid := make([][]Cell, rows)
	for r := range grid {
		grid[r] = make([]Cell, cols)
		for c := range grid[r] {
			grid[r][c] = Cell{Rune: ' '}
			p := doodlejam.Point{X: (float64(c) + 0.5) / float64(cols), Y: (float64(r) + 0.5) / float64(rows)}
			for _, z := range zones {
				if z.Contains(p) {
					grid[r][c] = Cell{Rune: '·', Sound: z.Sound, Active: active[z.Sound], Color: feedback.Color(z.Sound)}
				}
			}
		}
	}
	for _, z := range zones {
		writeLabel(grid, z, cols, rows)
	}
	for _, p := range view.Particles {
		if c, r, ok := cellOf(float64(p.Pos.X), float64(p.Pos.Y), cols, rows); ok {
			grid[r][c].Rune = '*'
			grid[r][c].Color = p.Color
		}
	}
	for _, p := range view.Fingertips {
		if c, r, ok := cellOf(p.X, p.Y, cols, rows); ok {
			grid[r][c].Rune = 'o'
			grid[r][c].Tip = true
		}
	}
	return grid
}

// writeLabel centers the label of the zone on its middle row, cut to the
// zone's width.
func writeLabel(grid [][]Cell, z doodlejam.HitZone, cols, rows int) {
	label := z.Label
	if label == "" {
		label = string(z.Sound)
	}
	center := z.Center()
	c0, r, ok := cellOf(z.X/100, center.Y, cols, rows)
	if !ok {
		return
	}
	c1, _, _ := cellOf((z.X+z.Width)/100, center.Y, cols, rows)
	runes := []rune(label)
	if w := c1 - c0 - 1; len(runes) > w {
		if w <= 0 {
			return
		}
		runes = runes[:w]
	}
	start := c0 + (c1-c0+1-len(runes))/2
	for i, ch := range runes {
		if c := start + i; c >= 0 && c < cols && grid[r][c].Sound == z.Sound {
			grid[r][c].Rune = ch
		}
	}
}

func cellOf(x, y float64, cols, rows int) (c, r int, ok bool) {
	if x < 0 || x > 1 || y < 0 || y > 1 {
		return 0, 0, false
	}
	c = min(int(x*float64(cols)), cols-1)
	r = min(int(y*float64(rows)), rows-1)
	return c, r, true
}

func renderRow(row []Cell) string {
	var sb strings.Builder
	for _, cell := range row {
		s := string(cell.Rune)
		switch {
		case cell.Tip:
			sb.WriteString(tipStyle.Render(s))
		case cell.Sound == "" && cell.Color.A == 0:
			sb.WriteString(s)
		case cell.Active:
			sb.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("#000")).Background(hex(cell.Color)).Render(s))
		default:
			sb.WriteString(lipgloss.NewStyle().Foreground(hex(cell.Color)).Render(s))
		}
	}
	return sb.String()
}

func hex(c color.NRGBA) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B))
}
