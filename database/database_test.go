package database

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func write(t testing.TB, filename, data string) {
	err := os.WriteFile(filename, []byte(data), 0600)
	if err != nil {
		t.Fatalf("write %v failed: %v", filename, err)
	}
}

func TestLoadSave(t *testing.T) {
	t.Parallel()

	tempdir := t.TempDir()

	db := New(tempdir)

	// a missing index is an empty database
	err := db.Load()
	if err != nil {
		t.Fatal(err)
	}

	if db.Len() != 0 {
		t.Fatalf("new database has %d entries", db.Len())
	}

	entry := Entry{
		Filename:   "in/report.pdf",
		Output:     "report.json",
		Success:    true,
		TableCount: 3,
		Run:        "f47ac10b-58cc-4372-a567-0e02b2c3d479",
		Processed:  time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC),
	}

	db.Set("abf9c1b9", entry)

	err = db.Save()
	if err != nil {
		t.Fatal(err)
	}

	db2 := New(tempdir)

	err = db2.Load()
	if err != nil {
		t.Fatal(err)
	}

	got, ok := db2.Get("abf9c1b9")
	if !ok {
		t.Fatal("entry not found after load")
	}

	if !reflect.DeepEqual(got, entry) {
		t.Errorf("wrong entry, want %v, got %v", entry, got)
	}

	// no temporary files are left behind
	names, err := filepath.Glob(filepath.Join(tempdir, "*.tmp-*"))
	if err != nil {
		t.Fatal(err)
	}

	if len(names) != 0 {
		t.Errorf("unexpected files in %v: %v", tempdir, names)
	}
}

func TestLoadInvalid(t *testing.T) {
	t.Parallel()

	tempdir := t.TempDir()
	write(t, filepath.Join(tempdir, IndexFilename), "{invalid")

	err := New(tempdir).Load()
	if err == nil {
		t.Fatal("loading an invalid index did not return an error")
	}
}

func TestOnChange(t *testing.T) {
	t.Parallel()

	db := New(t.TempDir())

	var changes []string

	db.OnChange = func(id string, oldEntry, newEntry Entry) {
		changes = append(changes, id+":"+oldEntry.Output+"->"+newEntry.Output)
	}

	db.Set("1", Entry{Output: "a.json"})
	db.Set("1", Entry{Output: "a.json"})
	db.Set("1", Entry{Output: "b.json"})
	db.Delete("1")
	db.Delete("2")

	want := []string{"1:->a.json", "1:a.json->b.json", "1:b.json->"}
	if !reflect.DeepEqual(changes, want) {
		t.Errorf("wrong changes, want %v, got %v", want, changes)
	}
}

func TestPrune(t *testing.T) {
	t.Parallel()

	tempdir := t.TempDir()
	write(t, filepath.Join(tempdir, "kept.json"), "{}")

	db := New(tempdir)
	db.Set("1", Entry{Output: "kept.json", Success: true})
	db.Set("2", Entry{Output: "removed.json", Success: true})

	db.Prune(tempdir)

	if _, ok := db.Get("1"); !ok {
		t.Error("entry with existing output was removed")
	}

	if _, ok := db.Get("2"); ok {
		t.Error("entry with missing output was kept")
	}
}

func TestLock(t *testing.T) {
	t.Parallel()

	tempdir := t.TempDir()

	db := New(tempdir)

	err := db.Lock()
	if err != nil {
		t.Fatal(err)
	}

	err = New(tempdir).Lock()
	if !errors.Is(err, ErrLocked) {
		t.Errorf("wrong error, want %v, got %v", ErrLocked, err)
	}

	err = db.Unlock()
	if err != nil {
		t.Fatal(err)
	}

	db2 := New(tempdir)

	err = db2.Lock()
	if err != nil {
		t.Fatalf("lock after unlock failed: %v", err)
	}

	err = db2.Unlock()
	if err != nil {
		t.Fatal(err)
	}
}

func TestFileID(t *testing.T) {
	t.Parallel()

	tempdir := t.TempDir()
	filename := filepath.Join(tempdir, "test.pdf")
	write(t, filename, "foobar")

	id, err := FileID(filename)
	if err != nil {
		t.Fatal(err)
	}

	// first four bytes of sha256("foobar")
	if id != "c3ab8ff1" {
		t.Errorf("wrong ID, want %q, got %q", "c3ab8ff1", id)
	}

	_, err = FileID(filepath.Join(tempdir, "missing.pdf"))
	if err == nil {
		t.Error("ID of missing file did not return an error")
	}
}
