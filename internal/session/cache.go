// Package session persists the portal session between restarts, so the
// checker does not log in again on every start; repeated logins count
// against the portal's fair-use limits just like searches do.
package session

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gorilla/securecookie"

	"github.com/example/luxmed-sniper/internal/luxmed"
)

const cacheName = "luxmed_session"

// Cache stores one Session in a file, encoded with securecookie so the
// state file does not hold the bearer token in the clear and any
// tampering is detected on load.
type Cache struct {
	path string
	sc   *securecookie.SecureCookie
}

func NewCache(path string, hashKey, blockKey []byte) *Cache {
	sc := securecookie.New(hashKey, blockKey)
	sc.MaxAge(0) // freshness is judged by the portal, not by encode age
	sc.MaxLength(0)
	return &Cache{path: path, sc: sc}
}

// Load returns the cached session, or ok=false when the cache is missing,
// unreadable, or fails authentication of the encoding. A bad cache is
// never fatal; the caller just logs in from scratch.
func (c *Cache) Load() (luxmed.Session, bool) {
	b, err := os.ReadFile(c.path)
	if err != nil {
		return luxmed.Session{}, false
	}
	var s luxmed.Session
	if err := c.sc.Decode(cacheName, strings.TrimSpace(string(b)), &s); err != nil {
		return luxmed.Session{}, false
	}
	if !s.Valid() {
		return luxmed.Session{}, false
	}
	return s, true
}

func (c *Cache) Save(s luxmed.Session) error {
	encoded, err := c.sc.Encode(cacheName, s)
	if err != nil {
		return err
	}
	return atomicWrite(c.path, []byte(encoded), 0o600)
}

func (c *Cache) Clear() {
	_ = os.Remove(c.path)
}

func atomicWrite(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), mode); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
