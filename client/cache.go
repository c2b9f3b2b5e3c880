package client

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrCacheMiss = errors.New("cache miss")

// CachePolicy decides whether, and under which key, an endpoint's response
// may be reused. ok is false for responses that must always be fetched.
type CachePolicy interface {
	Key(now time.Time) (key string, ok bool)
}

// NoCache always fetches.
type NoCache struct{}

func (NoCache) Key(time.Time) (string, bool) { return "", false }

// WeeklyCache reuses a response for the rest of the ISO week containing At,
// or the current week when At is zero.
type WeeklyCache struct {
	At time.Time
}

func (w WeeklyCache) Key(now time.Time) (string, bool) {
	at := w.At
	if at.IsZero() {
		at = now
	}
	return WeekKey(at), true
}

// WeekKey formats the ISO year and week of t, e.g. "2023-46".
func WeekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%04d-%02d", year, week)
}

// KeyedCache reuses a response for as long as the session lives, keyed by
// the given parts. Each part is quoted, so ("a|b") and ("a", "b") differ.
type KeyedCache struct {
	Parts []any
}

func Keyed(parts ...any) KeyedCache {
	return KeyedCache{Parts: parts}
}

func (k KeyedCache) Key(time.Time) (string, bool) {
	parts := make([]string, len(k.Parts))
	for i, p := range k.Parts {
		parts[i] = strconv.Quote(fmt.Sprint(p))
	}
	return strings.Join(parts, "|"), true
}

// Cache holds raw response bodies for the lifetime of a session. Entries are
// parsed again on every hit, so a hit yields exactly what a fresh fetch would.
type Cache struct {
	entries map[string][]byte
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string][]byte)}
}

func (c *Cache) Lookup(key string) ([]byte, error) {
	body, ok := c.entries[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCacheMiss, key)
	}
	return body, nil
}

func (c *Cache) Store(key string, body []byte) {
	c.entries[key] = body
}

func (c *Cache) Len() int {
	return len(c.entries)
}

func (c *Cache) Clear() {
	clear(c.entries)
}
