package recording

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/doodlejam/doodlejam"
	"gopkg.in/yaml.v3"
)

type eventLogFile struct {
	Events doodlejam.EventLog `yaml:"events" json:"events"`
}

// ReadEventLog reads an event log written by WriteEventLog. JSON is accepted
// too, either as {"events": [...]} or a bare array. Out-of-order logs, e.g.
// from an external arranger, are sorted.
func ReadEventLog(r io.Reader) (doodlejam.EventLog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading event log: %w", err)
	}
	var log doodlejam.EventLog
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) > 0 && trimmed[0] == '[':
		if err := json.Unmarshal(trimmed, &log); err != nil {
			return nil, fmt.Errorf("decoding event log: %w", err)
		}
	case len(trimmed) > 0 && trimmed[0] == '{':
		var f eventLogFile
		if err := json.Unmarshal(trimmed, &f); err != nil {
			return nil, fmt.Errorf("decoding event log: %w", err)
		}
		log = f.Events
	default:
		var f eventLogFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("decoding event log: %w", err)
		}
		log = f.Events
	}
	if err := log.Validate(); err != nil {
		log = log.Sorted()
		if err := log.Validate(); err != nil {
			return nil, err
		}
	}
	return log, nil
}

// WriteEventLog writes the log as YAML.
func WriteEventLog(w io.Writer, log doodlejam.EventLog) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(eventLogFile{Events: log}); err != nil {
		return fmt.Errorf("encoding event log: %w", err)
	}
	return enc.Close()
}
