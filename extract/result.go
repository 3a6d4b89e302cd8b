package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrNoPDFPath is reported when the caller did not name a PDF file.
var ErrNoPDFPath = errors.New("no PDF path provided")

// missingPathMessage is the error message of the usage envelope.
const missingPathMessage = "No PDF path provided"

type resultKind int

const (
	kindSucceeded resultKind = iota
	kindFailed
	kindMissingPath
)

// Result is the envelope returned for one extraction. It is either a success
// carrying all tables, or a failure carrying an error message and no tables.
type Result struct {
	kind   resultKind
	err    string
	tables []Record
}

// Succeeded returns a successful result for the records.
func Succeeded(records []Record) Result {
	if records == nil {
		records = []Record{}
	}

	return Result{kind: kindSucceeded, tables: records}
}

// Failed returns a failed result for err.
func Failed(err error) Result {
	msg := "unknown error"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}

	return Result{kind: kindFailed, err: msg}
}

// MissingPath returns the result reported when no PDF path was given.
func MissingPath() Result {
	return Result{kind: kindMissingPath, err: missingPathMessage}
}

// Success reports whether the extraction succeeded.
func (r Result) Success() bool {
	return r.kind == kindSucceeded
}

// Err returns the error message of a failed result, or "".
func (r Result) Err() string {
	return r.err
}

// Tables returns the extracted records. It is empty for failed results.
func (r Result) Tables() []Record {
	return r.tables
}

// TableCount returns the number of extracted records.
func (r Result) TableCount() int {
	return len(r.tables)
}

func (r Result) String() string {
	if r.Success() {
		return fmt.Sprintf("<Result success, %d tables>", len(r.tables))
	}

	return fmt.Sprintf("<Result failed: %v>", r.err)
}

type successJSON struct {
	Success    bool     `json:"success"`
	Tables     []Record `json:"tables"`
	TableCount int      `json:"table_count"`
}

type failureJSON struct {
	Success bool     `json:"success"`
	Error   string   `json:"error"`
	Tables  []Record `json:"tables"`
}

type usageJSON struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// MarshalJSON encodes exactly one of the envelope shapes.
func (r Result) MarshalJSON() ([]byte, error) {
	switch r.kind {
	case kindSucceeded:
		tables := r.tables
		if tables == nil {
			tables = []Record{}
		}

		return marshal(successJSON{Success: true, Tables: tables, TableCount: len(tables)})
	case kindMissingPath:
		return marshal(usageJSON{Success: false, Error: r.err})
	default:
		return marshal(failureJSON{Success: false, Error: r.err, Tables: []Record{}})
	}
}

// UnmarshalJSON decodes any of the envelope shapes.
func (r *Result) UnmarshalJSON(data []byte) error {
	var raw struct {
		Success    bool      `json:"success"`
		Error      *string   `json:"error"`
		Tables     *[]Record `json:"tables"`
		TableCount int       `json:"table_count"`
	}

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return fmt.Errorf("decode result: %w", err)
	}

	switch {
	case raw.Success:
		var tables []Record
		if raw.Tables != nil {
			tables = *raw.Tables
		}

		if raw.TableCount != len(tables) {
			return fmt.Errorf("decode result: table_count %d does not match %d tables", raw.TableCount, len(tables))
		}

		*r = Succeeded(tables)
	case raw.Error == nil:
		return errors.New("decode result: failed result without error message")
	case raw.Tables == nil:
		*r = Result{kind: kindMissingPath, err: *raw.Error}
	default:
		*r = Result{kind: kindFailed, err: *raw.Error}
	}

	return nil
}

// Encode writes r to wr as indented JSON followed by a newline. The usage
// envelope is written on a single line.
func Encode(wr io.Writer, r Result) error {
	if r.kind == kindMissingPath {
		return encodeUsage(wr, r)
	}

	enc := json.NewEncoder(wr)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")

	err := enc.Encode(r)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	return nil
}

func encodeUsage(wr io.Writer, r Result) error {
	msg, err := marshal(r.err)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	_, err = fmt.Fprintf(wr, "{\"success\": false, \"error\": %s}\n", msg)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	return nil
}
