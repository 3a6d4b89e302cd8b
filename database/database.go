package database

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/sirupsen/logrus"
)

// IndexFilename is the name of the index within the target directory.
const IndexFilename = ".pdftables.json"

var ErrLocked = errors.New("database is locked by another process")

// DB is the serialized data structure of a database.
type DB struct {
	Entries map[string]Entry `json:"entries"`
}

// Database records which PDF files were extracted to which output file. It is
// safe for concurrent use.
type Database struct {
	Filename string

	mu   sync.Mutex
	db   DB
	lock *flock.Flock
	log  logrus.FieldLogger

	// OnChange is called when the entry for a file is changed.
	OnChange func(id string, oldEntry, newEntry Entry)
}

// Entry is the outcome of the last extraction of one PDF file.
type Entry struct {
	Filename   string    `json:"filename"`
	Output     string    `json:"output"`
	Success    bool      `json:"success"`
	TableCount int       `json:"table_count"`
	Error      string    `json:"error,omitempty"`
	Run        string    `json:"run"`
	Processed  time.Time `json:"processed"`
}

func (e Entry) String() string {
	if !e.Success {
		return fmt.Sprintf("<Entry %q -> %q failed: %v>", e.Filename, e.Output, e.Error)
	}

	return fmt.Sprintf("<Entry %q -> %q, %d tables>", e.Filename, e.Output, e.TableCount)
}

// New returns a new empty database stored in dir.
func New(dir string) *Database {
	filename := filepath.Join(dir, IndexFilename)

	return &Database{
		Filename: filename,
		db:       DB{Entries: make(map[string]Entry)},
		lock:     flock.New(filename + ".lock"),
		log:      logrus.StandardLogger(),
	}
}

// SetLogger sets the logger the database will use.
func (db *Database) SetLogger(logger logrus.FieldLogger) {
	db.log = logger.WithField("component", "database")
}

// Lock takes an exclusive lock on the database file. It fails with ErrLocked
// when another process holds the lock.
func (db *Database) Lock() error {
	locked, err := db.lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock %v failed: %w", db.lock.Path(), err)
	}

	if !locked {
		return ErrLocked
	}

	return nil
}

// Unlock releases the lock taken by Lock.
func (db *Database) Unlock() error {
	err := db.lock.Unlock()
	if err != nil {
		return fmt.Errorf("unlock %v failed: %w", db.lock.Path(), err)
	}

	return nil
}

// Load loads the database from its file. If the file does not exist, the
// database is empty.
func (db *Database) Load() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	f, err := os.Open(db.Filename)
	if errors.Is(err, os.ErrNotExist) {
		db.db = DB{Entries: make(map[string]Entry)}

		return nil
	}

	if err != nil {
		return fmt.Errorf("open database failed: %w", err)
	}

	data := DB{}

	err = json.NewDecoder(f).Decode(&data)
	if err != nil {
		_ = f.Close()

		return fmt.Errorf("decode database %v failed: %w", db.Filename, err)
	}

	err = f.Close()
	if err != nil {
		return fmt.Errorf("close database %v failed: %w", db.Filename, err)
	}

	if data.Entries == nil {
		data.Entries = make(map[string]Entry)
	}

	db.db = data

	return nil
}

// Save writes the database to its file. The file is replaced atomically.
func (db *Database) Save() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	f, err := os.CreateTemp(filepath.Dir(db.Filename), filepath.Base(db.Filename)+".tmp-")
	if err != nil {
		return fmt.Errorf("save database %v failed: %w", db.Filename, err)
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")

	err = enc.Encode(db.db)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())

		return fmt.Errorf("serialize database to JSON failed: %w", err)
	}

	err = f.Close()
	if err != nil {
		_ = os.Remove(f.Name())

		return fmt.Errorf("close database failed: %w", err)
	}

	err = os.Rename(f.Name(), db.Filename)
	if err != nil {
		_ = os.Remove(f.Name())

		return fmt.Errorf("rename database failed: %w", err)
	}

	return nil
}

// Get returns the entry for a file ID.
func (db *Database) Get(id string) (Entry, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()

	e, ok := db.db.Entries[id]

	return e, ok
}

// Set updates the entry for a file ID.
func (db *Database) Set(id string, e Entry) {
	db.mu.Lock()
	old := db.db.Entries[id]
	db.db.Entries[id] = e
	db.mu.Unlock()

	if db.OnChange != nil && old != e {
		db.OnChange(id, old, e)
	}
}

// Delete removes an entry from the database.
func (db *Database) Delete(id string) {
	db.mu.Lock()
	old, ok := db.db.Entries[id]
	delete(db.db.Entries, id)
	db.mu.Unlock()

	if ok && db.OnChange != nil {
		db.OnChange(id, old, Entry{})
	}
}

// OutputOwner returns the ID of the file whose results are stored in output.
func (db *Database) OutputOwner(output string) (string, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for id, e := range db.db.Entries {
		if e.Output == output {
			return id, true
		}
	}

	return "", false
}

// Len returns the number of entries.
func (db *Database) Len() int {
	db.mu.Lock()
	defer db.mu.Unlock()

	return len(db.db.Entries)
}

// Prune removes all entries whose output file does not exist in dir any more,
// so that the files are extracted again.
func (db *Database) Prune(dir string) {
	db.mu.Lock()
	var stale []string

	for id, e := range db.db.Entries {
		_, err := os.Stat(filepath.Join(dir, e.Output))
		if errors.Is(err, os.ErrNotExist) {
			stale = append(stale, id)
		}
	}
	db.mu.Unlock()

	for _, id := range stale {
		db.log.WithField("id", id).Info("delete entry for removed output")
		db.Delete(id)
	}
}

// FileID returns the ID for filename, derived from its content.
func FileID(filename string) (string, error) {
	f, err := os.Open(filename)
	if err != nil {
		return "", fmt.Errorf("file ID open %v failed: %w", filename, err)
	}

	hash := sha256.New()

	_, err = io.Copy(hash, f)
	if err != nil {
		_ = f.Close()

		return "", fmt.Errorf("hashing %v failed: %w", filename, err)
	}

	err = f.Close()
	if err != nil {
		return "", fmt.Errorf("close file: %w", err)
	}

	return hex.EncodeToString(hash.Sum(nil)[:4]), nil
}
