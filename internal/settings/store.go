// Package settings persists source lists, credentials and preferences in a bbolt file.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/git-pkgs/feedchooser/internal/core"
	"github.com/git-pkgs/feedchooser/internal/sources"
)

var (
	bucketSources     = []byte("sources")
	bucketCredentials = []byte("credentials")
	bucketPreferences = []byte("preferences")
)

// Source list names.
const (
	PackageList = "package"
	PublishList = "publish"
)

const (
	prefShowPrerelease = "show_prerelease"
	prefAutoLoad       = "auto_load"
)

// Store reads and writes settings. With no path it keeps everything in memory.
type Store struct {
	db  *bolt.DB
	mu  sync.RWMutex
	mem map[string][]byte
}

// Open opens the settings file at path, creating it if needed.
func Open(path string) (*Store, error) {
	if path == "" {
		return &Store{mem: make(map[string][]byte)}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating settings directory: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening settings: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketSources, bucketCredentials, bucketPreferences} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the settings file.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) get(bucket []byte, key string, dest any) (bool, error) {
	var data []byte
	if s.db == nil {
		s.mu.RLock()
		data = s.mem[string(bucket)+":"+key]
		s.mu.RUnlock()
	} else {
		err := s.db.View(func(tx *bolt.Tx) error {
			if v := tx.Bucket(bucket).Get([]byte(key)); v != nil {
				data = append([]byte(nil), v...)
			}
			return nil
		})
		if err != nil {
			return false, err
		}
	}

	if data == nil {
		return false, nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("decoding %s/%s: %w", bucket, key, err)
	}
	return true, nil
}

func (s *Store) put(bucket []byte, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	if s.db == nil {
		s.mu.Lock()
		s.mem[string(bucket)+":"+key] = data
		s.mu.Unlock()
		return nil
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(key), data)
	})
}

// sourceList is the stored form of one named list.
type sourceList struct {
	URLs   []string `json:"urls"`
	Active string   `json:"active"`
}

// SourceSettings is one named source list inside a Store.
type SourceSettings struct {
	store *Store
	name  string
}

var _ sources.Settings = (*SourceSettings)(nil)

// Sources returns the settings for the list called name, such as PackageList.
func (s *Store) Sources(name string) *SourceSettings {
	return &SourceSettings{store: s, name: name}
}

func (ss *SourceSettings) load() (sourceList, error) {
	var list sourceList
	_, err := ss.store.get(bucketSources, ss.name, &list)
	return list, err
}

func (ss *SourceSettings) Sources() ([]string, error) {
	list, err := ss.load()
	return list.URLs, err
}

func (ss *SourceSettings) SetSources(urls []string) error {
	list, err := ss.load()
	if err != nil {
		return err
	}
	list.URLs = urls
	return ss.store.put(bucketSources, ss.name, list)
}

func (ss *SourceSettings) Active() (string, error) {
	list, err := ss.load()
	return list.Active, err
}

func (ss *SourceSettings) SetActive(url string) error {
	list, err := ss.load()
	if err != nil {
		return err
	}
	list.Active = url
	return ss.store.put(bucketSources, ss.name, list)
}

// Credentials returns the credentials stored for a feed URL.
func (s *Store) Credentials(url string) (core.Credentials, bool, error) {
	var creds core.Credentials
	ok, err := s.get(bucketCredentials, strings.ToLower(url), &creds)
	return creds, ok, err
}

// SetCredentials stores credentials for a feed URL. Zero credentials remove the entry.
func (s *Store) SetCredentials(url string, creds core.Credentials) error {
	key := strings.ToLower(url)
	if !creds.IsZero() {
		return s.put(bucketCredentials, key, creds)
	}

	if s.db == nil {
		s.mu.Lock()
		delete(s.mem, string(bucketCredentials)+":"+key)
		s.mu.Unlock()
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCredentials).Delete([]byte(key))
	})
}

// Apply attaches stored credentials to src when it has none of its own.
func (s *Store) Apply(src core.Source) core.Source {
	if src.Credentials != nil {
		return src
	}
	creds, ok, err := s.Credentials(src.URL)
	if err != nil || !ok {
		return src
	}
	src.Credentials = &creds
	return src
}

var _ sources.CredentialProvider = (*Store)(nil)

func (s *Store) boolPref(key string, def bool) bool {
	var v bool
	ok, err := s.get(bucketPreferences, key, &v)
	if err != nil || !ok {
		return def
	}
	return v
}

// ShowPrerelease reports whether prerelease packages are listed. Defaults to true.
func (s *Store) ShowPrerelease() bool {
	return s.boolPref(prefShowPrerelease, true)
}

func (s *Store) SetShowPrerelease(v bool) error {
	return s.put(bucketPreferences, prefShowPrerelease, v)
}

// AutoLoad reports whether the chooser searches as soon as it opens. Defaults to true.
func (s *Store) AutoLoad() bool {
	return s.boolPref(prefAutoLoad, true)
}

func (s *Store) SetAutoLoad(v bool) error {
	return s.put(bucketPreferences, prefAutoLoad, v)
}
