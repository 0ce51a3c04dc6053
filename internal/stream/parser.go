// Package stream reads observation streams recorded as JSON Lines.
//
// Each line is either a bare observation object or an envelope of the form
// {"type":"observation","observation":{...}}. Malformed lines and lines with
// no page evidence are skipped and counted.
package stream

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/lazypower/pulse/internal/engine"
)

// maxLine bounds a single JSONL line.
const maxLine = 1024 * 1024

// Stats summarizes a parse.
type Stats struct {
	Lines   int `json:"lines"`
	Parsed  int `json:"parsed"`
	Skipped int `json:"skipped"`
}

type envelope struct {
	Type        string          `json:"type"`
	Observation json.RawMessage `json:"observation"`
}

// Each calls fn for every observation in r. An error from fn stops the scan
// and is returned as is.
func Each(r io.Reader, fn func(engine.Observation) error) (Stats, error) {
	var st Stats
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLine)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		st.Lines++

		obs, ok := parseLine(line)
		if !ok {
			st.Skipped++
			continue
		}
		st.Parsed++
		if err := fn(obs); err != nil {
			return st, err
		}
	}
	if err := scanner.Err(); err != nil {
		return st, fmt.Errorf("scan stream: %w", err)
	}
	return st, nil
}

// ParseFile reads a JSONL observation file.
func ParseFile(path string) ([]engine.Observation, Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("open stream: %w", err)
	}
	defer f.Close()
	return collect(f)
}

// ParseLines parses observations from a string.
func ParseLines(content string) ([]engine.Observation, Stats, error) {
	return collect(strings.NewReader(content))
}

func collect(r io.Reader) ([]engine.Observation, Stats, error) {
	var out []engine.Observation
	st, err := Each(r, func(o engine.Observation) error {
		out = append(out, o)
		return nil
	})
	if err != nil {
		return nil, st, err
	}
	return out, st, nil
}

func parseLine(line []byte) (engine.Observation, bool) {
	var obs engine.Observation

	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return obs, false
	}
	raw := json.RawMessage(line)
	if env.Observation != nil {
		if env.Type != "" && env.Type != "observation" {
			return obs, false
		}
		raw = env.Observation
	}

	if err := json.Unmarshal(raw, &obs); err != nil {
		return obs, false
	}
	if obs.URL == "" && obs.Title == "" && strings.TrimSpace(obs.Content) == "" {
		return obs, false
	}
	return obs, true
}
