package process

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

func readdirnames(dir string) ([]string, error) {
	f, err := os.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("open %v: %w", dir, err)
	}

	names, err := f.Readdirnames(-1)
	if err != nil {
		_ = f.Close()

		return nil, fmt.Errorf("readdir %v: %w", dir, err)
	}

	err = f.Close()
	if err != nil {
		return nil, fmt.Errorf("close %v: %w", dir, err)
	}

	return names, nil
}

// Files is used to sort a list of files in naming order (so foo1.pdf is
// followed by foo2.pdf, not foo10.pdf).
type Files []string

func (f Files) Len() int {
	return len(f)
}

func (f Files) Less(i, j int) bool {
	if len(f[i]) < len(f[j]) {
		return true
	}

	if len(f[i]) > len(f[j]) {
		return false
	}

	return f[i] < f[j]
}

func (f Files) Swap(i, j int) {
	f[i], f[j] = f[j], f[i]
}

func isPDF(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}

// pdfFiles returns the PDF files in dir in naming order. Hidden files and
// subdirectories are ignored.
func pdfFiles(dir string) ([]string, error) {
	names, err := readdirnames(dir)
	if err != nil {
		return nil, err
	}

	matches := make([]string, 0, len(names))

	for _, name := range names {
		if strings.HasPrefix(name, ".") || !isPDF(name) {
			continue
		}

		fi, err := os.Stat(filepath.Join(dir, name))
		if err != nil || !fi.Mode().IsRegular() {
			continue
		}

		matches = append(matches, name)
	}

	sort.Sort(Files(matches))

	files := make([]string, 0, len(matches))
	for _, name := range matches {
		files = append(files, filepath.Join(dir, name))
	}

	return files, nil
}

// CollectFiles returns the files to process for the command line arguments.
// Directories are replaced by the PDF files they contain, all other arguments
// are kept as they are. Each file is returned only once.
func CollectFiles(args []string) ([]string, error) {
	var files []string

	seen := make(map[string]struct{})

	add := func(filename string) {
		key := filepath.Clean(filename)
		if _, ok := seen[key]; ok {
			return
		}

		seen[key] = struct{}{}

		files = append(files, filename)
	}

	for _, arg := range args {
		fi, err := os.Stat(arg)
		if errors.Is(err, os.ErrNotExist) {
			// reported as a failed extraction
			add(arg)

			continue
		}

		if err != nil {
			return nil, fmt.Errorf("stat %v: %w", arg, err)
		}

		if !fi.IsDir() {
			add(arg)

			continue
		}

		dirFiles, err := pdfFiles(arg)
		if err != nil {
			return nil, err
		}

		for _, filename := range dirFiles {
			add(filename)
		}
	}

	return files, nil
}

// writeFileAtomic writes data to filename. The file is either written
// completely or not at all.
func writeFileAtomic(filename string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(filename), "."+filepath.Base(filename)+".tmp-")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	_, err = f.Write(data)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())

		return fmt.Errorf("write %v: %w", f.Name(), err)
	}

	err = f.Close()
	if err != nil {
		_ = os.Remove(f.Name())

		return fmt.Errorf("close %v: %w", f.Name(), err)
	}

	err = os.Chmod(f.Name(), 0644)
	if err != nil {
		_ = os.Remove(f.Name())

		return fmt.Errorf("chmod %v: %w", f.Name(), err)
	}

	err = os.Rename(f.Name(), filename)
	if err != nil {
		_ = os.Remove(f.Name())

		return fmt.Errorf("rename %v: %w", f.Name(), err)
	}

	return nil
}
