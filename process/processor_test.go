package process

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/fd0/pdftables/database"
	"github.com/fd0/pdftables/extract"
	"github.com/sirupsen/logrus"
)

// testSource returns a single page with one table for every file whose
// content does not start with "broken".
type testSource struct {
	mu     sync.Mutex
	opened []string
}

type testDocument struct {
	content string
}

type testPage struct {
	content string
}

func (s *testSource) Open(filename string) (extract.Document, error) {
	buf, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.opened = append(s.opened, filepath.Base(filename))
	s.mu.Unlock()

	return &testDocument{content: string(buf)}, nil
}

func (s *testSource) Opened() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	opened := append([]string(nil), s.opened...)
	sort.Strings(opened)

	return opened
}

func (d *testDocument) NumPages() (int, error) { return 1, nil }
func (d *testDocument) Close() error           { return nil }

func (d *testDocument) Page(number int) (extract.Page, error) {
	return &testPage{content: d.content}, nil
}

func (p *testPage) Tables() ([]extract.Table, error) {
	if len(p.content) >= 6 && p.content[:6] == "broken" {
		return nil, errors.New("detector crashed")
	}

	return []extract.Table{{extract.Row("content"), extract.Row(p.content)}}, nil
}

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)

	return log
}

func writeInputs(t testing.TB, dir string, files map[string]string) {
	for name, content := range files {
		filename := filepath.Join(dir, name)

		err := os.MkdirAll(filepath.Dir(filename), 0700)
		if err != nil {
			t.Fatal(err)
		}

		err = os.WriteFile(filename, []byte(content), 0600)
		if err != nil {
			t.Fatal(err)
		}
	}
}

func newTestProcessor(src extract.Source, target string) *Processor {
	e := extract.NewExtracter(src)
	e.SetLogger(testLogger())

	db := database.New(target)
	db.SetLogger(testLogger())

	p := &Processor{
		TargetDir: target,
		Jobs:      2,
		Extracter: e,
		Database:  db,
	}
	p.SetLogger(testLogger())

	return p
}

func readResult(t testing.TB, filename string) extract.Result {
	buf, err := os.ReadFile(filename)
	if err != nil {
		t.Fatal(err)
	}

	var res extract.Result

	err = json.Unmarshal(buf, &res)
	if err != nil {
		t.Fatalf("decode %v: %v", filename, err)
	}

	return res
}

func TestProcessorRun(t *testing.T) {
	t.Parallel()

	input := t.TempDir()
	target := t.TempDir()

	writeInputs(t, input, map[string]string{
		"a.pdf":       "first",
		"b.pdf":       "second",
		"c.pdf":       "broken file",
		"other/a.pdf": "third",
		"copy.pdf":    "first",
	})

	files := []string{
		filepath.Join(input, "a.pdf"),
		filepath.Join(input, "b.pdf"),
		filepath.Join(input, "c.pdf"),
		filepath.Join(input, "other", "a.pdf"),
		filepath.Join(input, "copy.pdf"),
	}

	src := &testSource{}
	p := newTestProcessor(src, target)

	var mu sync.Mutex

	processed := make(map[string]database.Entry)
	p.OnFileProcessed = func(filename string, entry database.Entry) {
		mu.Lock()
		processed[filepath.Base(filepath.Dir(filename))+"/"+filepath.Base(filename)] = entry
		mu.Unlock()
	}

	summary, err := p.Run(context.Background(), files)
	if err != nil {
		t.Fatal(err)
	}

	want := Summary{Run: summary.Run, Files: 5, Skipped: 1, Succeeded: 3, Failed: 1, Tables: 3}
	if summary != want {
		t.Errorf("wrong summary, want %+v, got %+v", want, summary)
	}

	if summary.Run == "" {
		t.Error("run has no ID")
	}

	if len(processed) != 4 {
		t.Errorf("wrong number of processed files: %v", processed)
	}

	res := readResult(t, filepath.Join(target, "a.json"))
	if !res.Success() || res.TableCount() != 1 {
		t.Errorf("wrong result for a.pdf: %v", res)
	}

	res = readResult(t, filepath.Join(target, "c.json"))
	if res.Success() || res.Err() != "page 1: detect tables: detector crashed" {
		t.Errorf("wrong result for c.pdf: %v", res)
	}

	// the second a.pdf must not overwrite the first one
	id, err := database.FileID(filepath.Join(input, "other", "a.pdf"))
	if err != nil {
		t.Fatal(err)
	}

	other := processed["other/a.pdf"]
	if other.Output != database.OutputName("a.pdf", id) {
		t.Errorf("wrong output for other/a.pdf, want %q, got %q", database.OutputName("a.pdf", id), other.Output)
	}

	res = readResult(t, filepath.Join(target, other.Output))
	if !res.Success() {
		t.Errorf("wrong result for other/a.pdf: %v", res)
	}

	entry, ok := p.Database.Get(id)
	if !ok {
		t.Fatal("no database entry for other/a.pdf")
	}

	if entry.Run != summary.Run {
		t.Errorf("wrong run, want %q, got %q", summary.Run, entry.Run)
	}

	// a second run only retries the failed file
	src2 := &testSource{}
	p.Extracter.Source = src2

	summary, err = p.Run(context.Background(), files)
	if err != nil {
		t.Fatal(err)
	}

	if summary.Skipped != 4 || summary.Failed != 1 {
		t.Errorf("wrong summary for second run: %+v", summary)
	}

	if opened := src2.Opened(); len(opened) != 1 || opened[0] != "c.pdf" {
		t.Errorf("wrong files opened in second run: %v", opened)
	}

	// removed outputs and force trigger a new extraction
	err = os.Remove(filepath.Join(target, "b.json"))
	if err != nil {
		t.Fatal(err)
	}

	src3 := &testSource{}
	p.Extracter.Source = src3

	_, err = p.Run(context.Background(), files)
	if err != nil {
		t.Fatal(err)
	}

	want3 := []string{"b.pdf", "c.pdf"}
	if opened := src3.Opened(); len(opened) != 2 || opened[0] != want3[0] || opened[1] != want3[1] {
		t.Errorf("wrong files opened in third run, want %v, got %v", want3, opened)
	}

	p.Force = true
	src4 := &testSource{}
	p.Extracter.Source = src4

	summary, err = p.Run(context.Background(), files)
	if err != nil {
		t.Fatal(err)
	}

	if len(src4.Opened()) != 4 || summary.Skipped != 1 {
		t.Errorf("force did not extract all files: %v, %+v", src4.Opened(), summary)
	}
}

func TestProcessorMissingFile(t *testing.T) {
	t.Parallel()

	target := t.TempDir()
	p := newTestProcessor(&testSource{}, target)

	summary, err := p.Run(context.Background(), []string{filepath.Join(t.TempDir(), "missing.pdf")})
	if err != nil {
		t.Fatal(err)
	}

	if summary.Failed != 1 {
		t.Errorf("wrong summary, want one failed file, got %+v", summary)
	}

	res := readResult(t, filepath.Join(target, "missing.json"))
	if res.Success() {
		t.Errorf("extraction of missing file succeeded: %v", res)
	}
}

func TestProcessorCancel(t *testing.T) {
	t.Parallel()

	input := t.TempDir()
	target := t.TempDir()

	writeInputs(t, input, map[string]string{"a.pdf": "first"})

	p := newTestProcessor(&testSource{}, target)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx, []string{filepath.Join(input, "a.pdf")})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("wrong error, want %v, got %v", context.Canceled, err)
	}

	_, err = os.Stat(filepath.Join(target, "a.json"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("result written for cancelled run: %v", err)
	}
}

func TestProcessorWriteError(t *testing.T) {
	t.Parallel()

	input := t.TempDir()
	writeInputs(t, input, map[string]string{"a.pdf": "first"})

	p := newTestProcessor(&testSource{}, filepath.Join(t.TempDir(), "missing"))

	_, err := p.Run(context.Background(), []string{filepath.Join(input, "a.pdf")})
	if err == nil {
		t.Error("writing into a missing target dir did not return an error")
	}
}
