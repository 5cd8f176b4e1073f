package storage

import (
	"encoding/base64"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"fishmeout-bot/internal/crypt"
)

func initStore(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	if err := Init(filepath.Join(dir, "test.db")); err != nil {
		t.Fatalf("storage init: %v", err)
	}
	t.Cleanup(func() { Close() })
}

func TestWelcome(t *testing.T) {
	initStore(t)

	if _, err := LoadWelcome(1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("LoadWelcome on empty store: err = %v, want ErrNotFound", err)
	}
	if err := SaveWelcome(1, "hi all"); err != nil {
		t.Fatalf("save welcome: %v", err)
	}
	if err := SaveWelcome(1, "hello all"); err != nil {
		t.Fatalf("overwrite welcome: %v", err)
	}
	got, err := LoadWelcome(1)
	if err != nil {
		t.Fatalf("load welcome: %v", err)
	}
	if got != "hello all" {
		t.Fatalf("welcome = %q", got)
	}
	if _, err := LoadWelcome(2); !errors.Is(err, ErrNotFound) {
		t.Fatalf("welcome leaked to another chat: %v", err)
	}
}

func TestWarnings(t *testing.T) {
	initStore(t)

	for i := 1; i <= 3; i++ {
		n, err := IncrementWarnings(-100, 7)
		if err != nil {
			t.Fatalf("increment: %v", err)
		}
		if n != i {
			t.Fatalf("increment #%d returned %d", i, n)
		}
	}
	if n, _ := LoadWarnings(-100, 7); n != 3 {
		t.Fatalf("warnings = %d, want 3", n)
	}
	if n, _ := LoadWarnings(-100, 8); n != 0 {
		t.Fatalf("warnings for other user = %d, want 0", n)
	}
}

func TestEventsPlain(t *testing.T) {
	initStore(t)
	if err := crypt.Init(""); err != nil {
		t.Fatal(err)
	}

	for _, txt := range []string{"one", "two", "three"} {
		if err := AddEvent(Event{ChatID: 5, UserID: 1, Text: txt}); err != nil {
			t.Fatalf("add event: %v", err)
		}
	}
	all, err := ListEvents(5, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 || all[0].Text != "one" || all[2].Text != "three" {
		t.Fatalf("events = %+v", all)
	}
	last, _ := ListEvents(5, 2)
	if len(last) != 2 || last[0].Text != "two" {
		t.Fatalf("limited events = %+v", last)
	}
	none, _ := ListEvents(6, 0)
	if len(none) != 0 {
		t.Fatalf("unexpected events for other chat: %+v", none)
	}
}

func TestEventsEncrypted(t *testing.T) {
	initStore(t)
	key := base64.StdEncoding.EncodeToString([]byte(strings.Repeat("x", 32)))
	if err := crypt.Init(key); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { crypt.Init("") })

	if err := AddEvent(Event{ChatID: 5, UserID: 1, Text: "secret"}); err != nil {
		t.Fatalf("add event: %v", err)
	}

	var raw Event
	crypt.Init("")
	evs, err := ListEvents(5, 0)
	if err != nil {
		t.Fatalf("list without key: %v", err)
	}
	raw = evs[0]
	if !raw.Encrypted || raw.Text == "secret" {
		t.Fatalf("event stored in plaintext: %+v", raw)
	}

	crypt.Init(key)
	evs, err = ListEvents(5, 0)
	if err != nil {
		t.Fatalf("list with key: %v", err)
	}
	if evs[0].Text != "secret" || evs[0].Encrypted {
		t.Fatalf("event not decrypted: %+v", evs[0])
	}
}

func TestTrimEvents(t *testing.T) {
	initStore(t)
	crypt.Init("")

	for _, txt := range []string{"a", "b", "c", "d"} {
		if err := AddEvent(Event{ChatID: 9, Text: txt}); err != nil {
			t.Fatal(err)
		}
	}
	if err := TrimEvents(9, 2); err != nil {
		t.Fatalf("trim: %v", err)
	}
	evs, _ := ListEvents(9, 0)
	if len(evs) != 2 || evs[0].Text != "c" {
		t.Fatalf("events after trim = %+v", evs)
	}
	if err := TrimEvents(10, 2); err != nil {
		t.Fatalf("trim missing chat: %v", err)
	}
}
