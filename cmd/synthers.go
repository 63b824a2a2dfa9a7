// Package cmd holds the plumbing shared by the doodlejam binaries.
package cmd

import (
	"fmt"
	"strings"

	"github.com/doodlejam/doodlejam"
	"github.com/doodlejam/doodlejam/synth"
)

// Synthers lists the synths the binaries can render with; the first one is
// the default.
var Synthers = []doodlejam.Synther{synth.GoSynther{}}

// FindSynther returns the synther with the given name, ignoring case. An
// empty name returns the default.
func FindSynther(name string) (doodlejam.Synther, error) {
	if name == "" {
		return Synthers[0], nil
	}
	for _, s := range Synthers {
		if strings.EqualFold(s.Name(), name) {
			return s, nil
		}
	}
	return nil, fmt.Errorf("unknown synth %q", name)
}
