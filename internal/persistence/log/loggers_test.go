package log

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"

	"antigravity.world/internal/relay"
)

func TestEventLoggerWritesDecodableJSONL(t *testing.T) {
	dir := t.TempDir()
	l := NewEventLogger(dir)

	events := []relay.Event{
		{At: time.Now().UTC(), Type: "player-join", SenderID: "a"},
		{At: time.Now().UTC(), Type: "chat-message", SenderID: "a", Raw: []byte(`{"type":"chat-message","text":"hi"}`)},
		{At: time.Now().UTC(), Type: "player-leave", SenderID: "a"},
	}
	for _, ev := range events {
		if err := l.Append(ev); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "events", "*.jsonl.zst"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("log files = %v (err %v), want exactly one", matches, err)
	}

	f, err := os.Open(matches[0])
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd reader: %v", err)
	}
	defer dec.Close()

	var got []relay.Event
	sc := bufio.NewScanner(dec)
	for sc.Scan() {
		var ev relay.Event
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			t.Fatalf("line %d: %v", len(got), err)
		}
		got = append(got, ev)
	}
	if err := sc.Err(); err != nil {
		t.Fatal(err)
	}

	if len(got) != len(events) {
		t.Fatalf("decoded %d events, want %d", len(got), len(events))
	}
	for i, ev := range got {
		if ev.Type != events[i].Type || ev.SenderID != events[i].SenderID {
			t.Fatalf("event %d = %+v, want %+v", i, ev, events[i])
		}
	}
}

func TestWriterReopensAppend(t *testing.T) {
	dir := t.TempDir()

	w := NewJSONLZstdWriter(dir, "events")
	if err := w.Write(map[string]string{"k": "v1"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Same hour, new writer: appends a second frame to the same file.
	w2 := NewJSONLZstdWriter(dir, "events")
	if err := w2.Write(map[string]string{"k": "v2"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w2.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "*.jsonl.zst"))
	if len(matches) != 1 {
		t.Fatalf("files = %v, want one per hour", matches)
	}

	f, err := os.Open(matches[0])
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatal(err)
	}
	defer dec.Close()

	var lines int
	sc := bufio.NewScanner(dec)
	for sc.Scan() {
		lines++
	}
	if lines != 2 {
		t.Fatalf("lines = %d, want both writes preserved", lines)
	}
}
