// Package memory holds the per-agent append-only memory journal. Each
// agent keeps one markdown file named after it; entries are only ever
// appended so a crashed agent picks up everything it has written.
package memory

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type Store struct {
	path    string
	f       *os.File
	entries []string
}

// Open loads the journal for the named agent, creating it with a header
// line on first use.
func Open(dir, agentName string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, sanitize(agentName)+".md")

	created := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		created = true
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	s := &Store{path: path, f: f}

	if created {
		if _, err := fmt.Fprintf(f, "# Memory: %s\n", agentName); err != nil {
			_ = f.Close()
			return nil, err
		}
		return s, nil
	}

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if line == "" || strings.HasPrefix(line, "# ") {
			continue
		}
		s.entries = append(s.entries, line)
	}
	if err := sc.Err(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return s, nil
}

// Append durably records one memory line before updating the in-memory view.
func (s *Store) Append(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	line := fmt.Sprintf("[%s] %s", time.Now().UTC().Format(time.RFC3339), text)
	if _, err := fmt.Fprintln(s.f, line); err != nil {
		return err
	}
	if err := s.f.Sync(); err != nil {
		return err
	}
	s.entries = append(s.entries, line)
	return nil
}

// Text returns the journal body for prompt inclusion.
func (s *Store) Text() string {
	return strings.Join(s.entries, "\n")
}

func (s *Store) Len() int { return len(s.entries) }

func (s *Store) Close() error { return s.f.Close() }

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
