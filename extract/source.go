package extract

// Source opens PDF documents for table extraction. Implementations wrap an
// external table detection library, see package backend.
type Source interface {
	Open(filename string) (Document, error)
}

// Document is an opened PDF. It must be closed when extraction is done.
type Document interface {
	// NumPages returns the number of pages in the document.
	NumPages() (int, error)

	// Page returns the page with the given 1-based number.
	Page(number int) (Page, error)

	Close() error
}

// Page is a single page of a Document.
type Page interface {
	// Tables returns the tables found on the page in detection order. A nil
	// or zero-length Table is allowed and is skipped by the Extracter.
	Tables() ([]Table, error)
}

// Table is a detected grid of cells, row by row.
type Table [][]Cell
