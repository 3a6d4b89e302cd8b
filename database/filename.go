package database

import (
	"path/filepath"
	"strings"
)

// OutputName returns the name of the JSON file for the PDF file filename. The
// string id is appended to the name (before the extension) if it is not empty.
func OutputName(filename, id string) string {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	// output files must not be hidden
	base = strings.TrimLeft(base, ".")
	if base == "" {
		base = "document"
	}

	if id != "" {
		base += " " + id
	}

	return base + ".json"
}
