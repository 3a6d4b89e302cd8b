package extract

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Extracter extracts all tables from PDF files. Each call to Extract opens its
// own Document, so one Extracter may be used from several goroutines.
type Extracter struct {
	Source Source

	// Pages restricts extraction to the selected pages, nil means all.
	Pages PageSelection

	log logrus.FieldLogger
}

// NewExtracter returns an Extracter reading documents from src.
func NewExtracter(src Source) *Extracter {
	e := &Extracter{Source: src}
	e.SetLogger(logrus.StandardLogger())

	return e
}

// SetLogger updates the logger to use.
func (e *Extracter) SetLogger(logger logrus.FieldLogger) {
	e.log = logger.WithField("component", "extracter")
}

func (e *Extracter) logger() logrus.FieldLogger {
	if e.log == nil {
		e.SetLogger(logrus.StandardLogger())
	}

	return e.log
}

// Extract reads all tables from filename. Extraction is all or nothing: any
// error while opening the document, walking its pages or detecting tables
// yields a failed Result without tables.
func (e *Extracter) Extract(ctx context.Context, filename string) Result {
	log := e.logger().WithField("filename", filename)

	records, err := e.extract(ctx, log, filename)
	if err != nil {
		log.Infof("extraction failed: %v", err)

		return Failed(err)
	}

	log.WithField("tables", len(records)).Debug("extraction done")

	return Succeeded(records)
}

func (e *Extracter) extract(ctx context.Context, log logrus.FieldLogger, filename string) (records []Record, err error) {
	// a fault in the Source must not take down the caller
	defer func() {
		if r := recover(); r != nil {
			records = nil
			err = fmt.Errorf("internal error: %v", r)
		}
	}()

	if e.Source == nil {
		return nil, errors.New("no table source configured")
	}

	doc, err := e.Source.Open(filename)
	if err != nil {
		return nil, err
	}

	defer func() {
		cerr := doc.Close()
		if cerr != nil {
			log.Warnf("close document failed: %v", cerr)
		}
	}()

	numPages, err := doc.NumPages()
	if err != nil {
		return nil, fmt.Errorf("count pages: %w", err)
	}

	pages, err := e.Pages.Resolve(numPages)
	if err != nil {
		return nil, err
	}

	log.Debugf("document has %d pages, extracting %v", numPages, e.Pages)

	records = []Record{}

	for _, number := range pages {
		err = ctx.Err()
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", number, err)
		}

		page, err := doc.Page(number)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", number, err)
		}

		tables, err := page.Tables()
		if err != nil {
			return nil, fmt.Errorf("page %d: detect tables: %w", number, err)
		}

		log.WithField("page", number).Debugf("found %d tables", len(tables))

		for i, table := range tables {
			// skip empty tables, the numbering still follows the detector
			if len(table) == 0 {
				continue
			}

			records = append(records, NewRecord(number, i+1, table))
		}
	}

	return records, nil
}
