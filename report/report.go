// Package report renders the recap shown when a session ends.
package report

import (
	"bytes"
	"embed"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/doodlejam/doodlejam"
	"github.com/doodlejam/doodlejam/advisor"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed templates/*
var templateFS embed.FS

type (
	Recap struct {
		Title       string
		Genre       string
		Instrument  string
		Duration    float64 // seconds
		NoteCount   int
		UniqueCount int
		Loudness    *doodlejam.Loudness // nil when nothing was recorded
		Top         []SoundCount
	}

	SoundCount struct {
		Sound doodlejam.SoundID
		Count int
	}

	Format string

	Reporter struct {
		tmpl *template.Template
	}
)

const (
	Text     Format = "recap.txt"
	Markdown Format = "recap.md"
)

// TopN is the number of most played sounds listed in a recap.
const TopN = 5

// New parses the built-in templates.
func New() (*Reporter, error) {
	caser := cases.Title(language.English)
	funcs := sprig.TxtFuncMap()
	funcs["label"] = func(v any) string { return Label(caser, fmt.Sprint(v)) }
	tmpl, err := template.New("recap").Funcs(funcs).ParseFS(templateFS, "templates/*")
	if err != nil {
		return nil, fmt.Errorf("could not parse recap templates: %w", err)
	}
	return &Reporter{tmpl: tmpl}, nil
}

// Render writes the recap in the given format.
func (r *Reporter) Render(w io.Writer, f Format, recap Recap) error {
	if r.tmpl.Lookup(string(f)) == nil {
		return fmt.Errorf("unknown recap format %q", f)
	}
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, string(f), recap); err != nil {
		return fmt.Errorf("could not execute template %q: %w", f, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

// String renders the recap as plain text.
func (r *Reporter) String(recap Recap) (string, error) {
	var sb strings.Builder
	err := r.Render(&sb, Text, recap)
	return sb.String(), err
}

// NewRecap gathers the recap of a session. result and advice may be nil.
func NewRecap(instrument string, stats doodlejam.Stats, result *doodlejam.RecordingResult, advice *advisor.Advice) Recap {
	ret := Recap{
		Instrument:  instrument,
		Duration:    stats.Duration,
		NoteCount:   stats.NoteCount,
		UniqueCount: len(stats.UniqueNotes),
		Top:         TopSounds(stats.EventLog, TopN),
	}
	if result != nil {
		l := result.Loudness
		ret.Loudness = &l
	}
	if advice != nil {
		ret.Title, ret.Genre = advice.TrackTitle, advice.Genre
	}
	return ret
}

// TopSounds returns the n most played sounds of the log, most played first;
// ties are ordered by sound id.
func TopSounds(log doodlejam.EventLog, n int) []SoundCount {
	counts := map[doodlejam.SoundID]int{}
	for _, e := range log {
		counts[e.Sound]++
	}
	ret := make([]SoundCount, 0, len(counts))
	for s, c := range counts {
		ret = append(ret, SoundCount{Sound: s, Count: c})
	}
	sort.Slice(ret, func(i, j int) bool {
		if ret[i].Count != ret[j].Count {
			return ret[i].Count > ret[j].Count
		}
		return ret[i].Sound < ret[j].Sound
	})
	if len(ret) > n {
		ret = ret[:n]
	}
	return ret
}

// Label turns a sound id or instrument name into a display label:
// "drum:floor_tom" becomes "Floor Tom".
func Label(caser cases.Caser, s string) string {
	if i := strings.LastIndex(s, ":"); i >= 0 {
		s = s[i+1:]
	}
	s = strings.Join(strings.FieldsFunc(s, func(r rune) bool { return r == '_' || r == '-' }), " ")
	return caser.String(s)
}
