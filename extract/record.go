package extract

// Record is the normalized output for one detected table.
type Record struct {
	Page        int      `json:"page"`
	TableNumber int      `json:"table_number"`
	Headers     []Cell   `json:"headers"`
	Rows        [][]Cell `json:"rows"`
	RawData     Table    `json:"raw_data"`
}

// NewRecord builds the record for the table with the given number on page.
// The first row of the table becomes the header, all other rows the body.
// RawData is the table as it was passed in, so RawData == [Headers] + Rows
// whenever the table has at least one row.
func NewRecord(page, number int, table Table) Record {
	rec := Record{
		Page:        page,
		TableNumber: number,
		Headers:     []Cell{},
		Rows:        [][]Cell{},
		RawData:     Table{},
	}

	if len(table) == 0 {
		return rec
	}

	rec.RawData = table

	if table[0] != nil {
		rec.Headers = table[0]
	}

	if len(table) > 1 {
		rec.Rows = table[1:]
	}

	return rec
}
