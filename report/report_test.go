package report_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/doodlejam/doodlejam"
	"github.com/doodlejam/doodlejam/advisor"
	"github.com/doodlejam/doodlejam/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var log = doodlejam.EventLog{
	{Timestamp: 0, Sound: "drum:kick"},
	{Timestamp: 500, Sound: "drum:snare"},
	{Timestamp: 1000, Sound: "drum:kick"},
}

func stats() doodlejam.Stats {
	return doodlejam.Stats{
		NoteCount:   3,
		UniqueNotes: log.UniqueSounds(),
		Duration:    2.04,
		EventLog:    log,
	}
}

func TestTextRecap(t *testing.T) {
	r, err := report.New()
	require.NoError(t, err)
	recap := report.NewRecap("drums", stats(),
		&doodlejam.RecordingResult{Loudness: doodlejam.Loudness{Integrated: -14.3, Peak: -1.5}},
		&advisor.Advice{TrackTitle: "Happy Drums", Genre: "Garage Rock"})
	text, err := r.String(recap)
	require.NoError(t, err)
	lines := strings.Split(text, "\n")
	require.GreaterOrEqual(t, len(lines), 10)
	assert.Equal(t, "HAPPY DRUMS", lines[0])
	assert.Equal(t, "===========", lines[1])
	assert.Equal(t, "Instrument: Drums   Genre: Garage Rock", lines[2])
	assert.Equal(t, "Duration:   2.0 s", lines[3])
	assert.Equal(t, "Notes:      3 (2 different)", lines[4])
	assert.Equal(t, "Loudness:   -14.3 LUFS, peak -1.5 dBFS", lines[5])
	assert.Equal(t, "", lines[6])
	assert.Equal(t, "Most played:", lines[7])
	assert.Equal(t, "  Kick         **", lines[8])
	assert.Equal(t, "  Snare        *", lines[9])
}

func TestTextRecapWithoutRecording(t *testing.T) {
	r, err := report.New()
	require.NoError(t, err)
	text, err := r.String(report.NewRecap("piano", doodlejam.Stats{}, nil, nil))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(text, "UNTITLED JAM\n============\n"))
	assert.NotContains(t, text, "Loudness")
	assert.NotContains(t, text, "Most played")
	assert.NotContains(t, text, "Genre")
}

func TestMarkdownRecap(t *testing.T) {
	r, err := report.New()
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, report.Markdown, report.NewRecap("harp", stats(), nil, &advisor.Advice{TrackTitle: "Sleepy Harp"})))
	md := buf.String()
	assert.True(t, strings.HasPrefix(md, "# Sleepy Harp\n"))
	assert.Contains(t, md, "| Instrument | Harp |")
	assert.Contains(t, md, "1. **Kick** x2")
	assert.Contains(t, md, "2. **Snare** x1")

	assert.Error(t, r.Render(&buf, report.Format("recap.pdf"), report.Recap{}))
}

func TestTopSounds(t *testing.T) {
	top := report.TopSounds(doodlejam.EventLog{{Sound: "b"}, {Sound: "a"}, {Sound: "c"}, {Sound: "c"}}, 2)
	assert.Equal(t, []report.SoundCount{{Sound: "c", Count: 2}, {Sound: "a", Count: 1}}, top)
	assert.Empty(t, report.TopSounds(nil, 5))
}

func TestLabel(t *testing.T) {
	caser := cases.Title(language.English)
	assert.Equal(t, "Floor Tom", report.Label(caser, "drum:floor_tom"))
	assert.Equal(t, "Xylophone", report.Label(caser, "xylophone"))
}
