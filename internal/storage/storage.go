package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	bolt "github.com/boltdb/bolt"

	"fishmeout-bot/internal/crypt"
)

var db *bolt.DB

const (
	bucketWelcome  = "welcome"  // key: chatID, value: welcome text
	bucketWarnings = "warnings" // key: chatID:userID, value: count
	bucketEvents   = "events"   // parent bucket for per-chat moderation events
)

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = errors.New("not found")

// Init opens the database file and creates buckets if needed.
func Init(path string) error {
	var err error
	db, err = bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return err
	}
	return db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{bucketWelcome, bucketWarnings, bucketEvents} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close releases the database file.
func Close() error {
	if db == nil {
		return nil
	}
	err := db.Close()
	db = nil
	return err
}

func chatKey(chatID int64) []byte {
	return []byte(strconv.FormatInt(chatID, 10))
}

// SaveWelcome stores the welcome message for a chat.
func SaveWelcome(chatID int64, text string) error {
	return db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketWelcome))
		return b.Put(chatKey(chatID), []byte(text))
	})
}

// LoadWelcome returns the welcome message for a chat or ErrNotFound.
func LoadWelcome(chatID int64) (string, error) {
	var val []byte
	err := db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketWelcome))
		v := b.Get(chatKey(chatID))
		if v == nil {
			return ErrNotFound
		}
		val = append([]byte(nil), v...)
		return nil
	})
	return string(val), err
}

// IncrementWarnings bumps the warning counter for a user in a chat and
// returns the new value.
func IncrementWarnings(chatID, userID int64) (int, error) {
	key := []byte(fmt.Sprintf("%d:%d", chatID, userID))
	var count int
	err := db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketWarnings))
		if v := b.Get(key); v != nil {
			n, err := strconv.Atoi(string(v))
			if err != nil {
				return err
			}
			count = n
		}
		count++
		return b.Put(key, []byte(strconv.Itoa(count)))
	})
	return count, err
}

// LoadWarnings returns the warning counter for a user in a chat. Default is 0.
func LoadWarnings(chatID, userID int64) (int, error) {
	key := []byte(fmt.Sprintf("%d:%d", chatID, userID))
	var count int
	err := db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucketWarnings)).Get(key)
		if v == nil {
			return nil
		}
		n, err := strconv.Atoi(string(v))
		if err != nil {
			return err
		}
		count = n
		return nil
	})
	return count, err
}

// Event is a stored moderation action.
type Event struct {
	ChatID    int64  `json:"chat_id"`
	UserID    int64  `json:"user_id"`
	UserName  string `json:"user_name"`
	Text      string `json:"text"`
	Encrypted bool   `json:"encrypted,omitempty"`
	When      int64  `json:"when"`
}

// AddEvent stores a moderation event for its chat. The text is encrypted when
// a master key is configured.
func AddEvent(ev Event) error {
	if crypt.Enabled() {
		enc, err := crypt.Encrypt(ev.Text)
		if err != nil {
			return err
		}
		ev.Text = enc
		ev.Encrypted = true
	}
	return db.Update(func(tx *bolt.Tx) error {
		eb := tx.Bucket([]byte(bucketEvents))
		cb, err := eb.CreateBucketIfNotExists(chatKey(ev.ChatID))
		if err != nil {
			return err
		}
		id, _ := cb.NextSequence()
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, id)
		data, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		return cb.Put(key, data)
	})
}

// ListEvents returns up to limit of the most recent events for a chat, oldest
// first. A limit of 0 returns everything. Encrypted text is decrypted when the
// key is available.
func ListEvents(chatID int64, limit int) ([]Event, error) {
	var items []Event
	err := db.View(func(tx *bolt.Tx) error {
		cb := tx.Bucket([]byte(bucketEvents)).Bucket(chatKey(chatID))
		if cb == nil {
			return nil
		}
		return cb.ForEach(func(_, v []byte) error {
			var ev Event
			if err := json.Unmarshal(v, &ev); err != nil {
				return err
			}
			items = append(items, ev)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(items) > limit {
		items = items[len(items)-limit:]
	}
	for i := range items {
		if items[i].Encrypted && crypt.Enabled() {
			pt, err := crypt.Decrypt(items[i].Text)
			if err != nil {
				return nil, fmt.Errorf("decrypt event: %w", err)
			}
			items[i].Text = pt
			items[i].Encrypted = false
		}
	}
	return items, nil
}

// TrimEvents ensures the stored events for a chat do not exceed the limit.
func TrimEvents(chatID int64, limit int) error {
	if limit <= 0 {
		return nil
	}
	return db.Update(func(tx *bolt.Tx) error {
		cb := tx.Bucket([]byte(bucketEvents)).Bucket(chatKey(chatID))
		if cb == nil {
			return nil
		}
		excess := cb.Stats().KeyN - limit
		if excess <= 0 {
			return nil
		}
		c := cb.Cursor()
		for i := 0; i < excess; i++ {
			k, _ := c.First()
			if k == nil {
				break
			}
			if err := c.Delete(); err != nil {
				return err
			}
		}
		return nil
	})
}
