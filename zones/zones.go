// Package zones provides the hit zones of the built-in instruments and turns
// the raw output of a drawing scanner into zones safe to play.
package zones

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"path"
	"sort"
	"strings"

	"github.com/doodlejam/doodlejam"
	"github.com/doodlejam/doodlejam/advisor"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v2"
)

//go:embed presets/*.yml
var presetFS embed.FS

type presetFile struct {
	Zones doodlejam.Zones `yaml:"zones"`
}

var (
	ErrUnknownInstrument = errors.New("unknown instrument")
	ErrNoZones           = errors.New("no playable zones found in the drawing")
)

// familyPrefix is prepended by Sanitize to sounds that do not name their
// family already.
var familyPrefix = map[string]string{
	"harp":  "harp:",
	"drums": "drum:",
	"bass":  "bass:",
	"pad":   "pad:",
}

// Instruments returns the names of the built-in instruments, sorted.
func Instruments() []string {
	entries, err := fs.ReadDir(presetFS, "presets")
	if err != nil {
		return nil
	}
	var ret []string
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), ".yml"); ok && !e.IsDir() {
			ret = append(ret, name)
		}
	}
	sort.Strings(ret)
	return ret
}

// Preset returns the zones of a built-in instrument.
func Preset(instrument string) (doodlejam.Zones, error) {
	data, err := fs.ReadFile(presetFS, path.Join("presets", instrument+".yml"))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownInstrument, instrument)
	}
	zs, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("preset %s: %w", instrument, err)
	}
	return zs, nil
}

// Read reads a zone file in the preset format.
func Read(r io.Reader) (doodlejam.Zones, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return parse(data)
}

func parse(data []byte) (doodlejam.Zones, error) {
	var f presetFile
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, fmt.Errorf("could not parse zones: %w", err)
	}
	if err := f.Zones.Validate(); err != nil {
		return nil, err
	}
	return f.Zones, nil
}

// Scan asks the scanner for the zones of a drawing and sanitises them.
func Scan(ctx context.Context, scanner advisor.Scanner, instrument string, image []byte) (doodlejam.Zones, error) {
	raw, err := scanner.ScanDrawing(ctx, instrument, image)
	if err != nil {
		return nil, fmt.Errorf("scanning the drawing failed: %w", err)
	}
	return Sanitize(instrument, raw)
}

// Sanitize fixes what a scanner commonly gets wrong: zones are clipped to the
// drawing, zones without a sound or an area are dropped, sounds get the
// instrument's family prefix and empty labels are derived from the sound.
// ErrNoZones is returned when nothing playable is left.
func Sanitize(instrument string, raw []doodlejam.HitZone) (doodlejam.Zones, error) {
	caser := cases.Title(language.English)
	prefix := familyPrefix[instrument]
	ret := make(doodlejam.Zones, 0, len(raw))
	for _, z := range raw {
		z.Sound = doodlejam.SoundID(strings.TrimSpace(string(z.Sound)))
		if z.Sound == "" {
			continue
		}
		x0, y0 := clip(z.X), clip(z.Y)
		x1, y1 := clip(z.X+z.Width), clip(z.Y+z.Height)
		if x1 <= x0 || y1 <= y0 {
			continue
		}
		z.X, z.Y, z.Width, z.Height = x0, y0, x1-x0, y1-y0
		if prefix != "" && !strings.HasPrefix(strings.ToLower(string(z.Sound)), strings.TrimSuffix(prefix, ":")) {
			z.Sound = doodlejam.SoundID(prefix) + z.Sound
		}
		if strings.TrimSpace(z.Label) == "" {
			z.Label = caser.String(labelWords(z.Sound))
		}
		ret = append(ret, z)
	}
	if len(ret) == 0 {
		return nil, ErrNoZones
	}
	return ret, nil
}

func clip(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(math.Max(v, 0), 100)
}

func labelWords(id doodlejam.SoundID) string {
	s := string(id)
	if i := strings.LastIndex(s, ":"); i >= 0 {
		s = s[i+1:]
	}
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool { return r == '_' || r == '-' || r == ' ' }), " ")
}
