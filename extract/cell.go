package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Cell is the content of a single table cell: either text (which may be the
// empty string) or nothing at all, e.g. for cells hidden by a merged
// neighbour. An empty Cell is encoded as JSON null.
type Cell struct {
	text  string
	valid bool
}

// Text returns a cell holding s.
func Text(s string) Cell {
	return Cell{text: s, valid: true}
}

// Empty returns a cell without content.
func Empty() Cell {
	return Cell{}
}

// Row is a convenience constructor for a row of text cells.
func Row(texts ...string) []Cell {
	row := make([]Cell, 0, len(texts))
	for _, s := range texts {
		row = append(row, Text(s))
	}

	return row
}

// Value returns the text of the cell and whether it has any.
func (c Cell) Value() (string, bool) {
	return c.text, c.valid
}

// IsEmpty reports whether the cell has no content.
func (c Cell) IsEmpty() bool {
	return !c.valid
}

func (c Cell) String() string {
	if !c.valid {
		return "<empty>"
	}

	return fmt.Sprintf("%q", c.text)
}

// MarshalJSON encodes the cell as a string or null.
func (c Cell) MarshalJSON() ([]byte, error) {
	if !c.valid {
		return []byte("null"), nil
	}

	return marshal(c.text)
}

// UnmarshalJSON decodes a string or null.
func (c *Cell) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*c = Empty()
		return nil
	}

	var s string

	err := json.Unmarshal(data, &s)
	if err != nil {
		return fmt.Errorf("decode cell: %w", err)
	}

	*c = Text(s)

	return nil
}

// marshal is json.Marshal without HTML escaping, cell text is emitted as is.
func marshal(v interface{}) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)

	err := enc.Encode(v)
	if err != nil {
		return nil, err
	}

	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
