package backend

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fd0/pdftables/config"
	"github.com/fd0/pdftables/extract"
	"github.com/sirupsen/logrus"
	"github.com/tsawler/tabula/core"
	"github.com/tsawler/tabula/graphicsstate"
	"github.com/tsawler/tabula/model"
	"github.com/tsawler/tabula/pages"
	"github.com/tsawler/tabula/reader"
	"github.com/tsawler/tabula/tables"
)

var ErrUnknownDetector = errors.New("unknown table detector")

// detectors returns new instances of the detectors shipped with tabula. The
// instances in tabula's global registry are shared, configuring them would
// leak settings between Tabula values.
var detectors = map[string]func() tables.Detector{
	"geometric": func() tables.Detector { return tables.NewGeometricDetector() },
}

// Tabula detects tables with github.com/tsawler/tabula.
type Tabula struct {
	detector tables.Detector
	log      logrus.FieldLogger
}

// NewTabula returns a Tabula source using the detector configured in cfg.
func NewTabula(cfg config.Detector) (*Tabula, error) {
	var detector tables.Detector

	if fn, ok := detectors[cfg.Name]; ok {
		detector = fn()
	} else {
		detector = tables.GetDetector(cfg.Name)
	}

	if detector == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDetector, cfg.Name)
	}

	err := detector.Configure(detectorConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("configure detector %v failed: %w", cfg.Name, err)
	}

	t := &Tabula{detector: detector}
	t.SetLogger(logrus.StandardLogger())

	return t, nil
}

func detectorConfig(cfg config.Detector) tables.Config {
	return tables.Config{
		MinRows:            cfg.MinRows,
		MinCols:            cfg.MinCols,
		MinConfidence:      cfg.MinConfidence,
		UseLines:           cfg.UseLines,
		UseWhitespace:      cfg.UseWhitespace,
		MaxCellGap:         cfg.MaxCellGap,
		AlignmentTolerance: cfg.AlignmentTolerance,
		DetectMergedCells:  cfg.DetectMergedCells,
	}
}

// SetLogger updates the logger to use.
func (t *Tabula) SetLogger(logger logrus.FieldLogger) {
	t.log = logger.WithField("component", "tabula")
}

// recoverFault turns a panic inside tabula into an error. tabula's parser
// panics on some malformed files, e.g. a zero predictor row size.
func recoverFault(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("tabula: %v", r)
	}
}

// Open opens filename.
func (t *Tabula) Open(filename string) (doc extract.Document, err error) {
	defer recoverFault(&err)

	r, err := reader.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open %v failed: %w", filename, err)
	}

	return &tabulaDocument{
		r:        r,
		detector: t.detector,
		log:      t.log.WithField("filename", filename),
	}, nil
}

type tabulaDocument struct {
	r        *reader.Reader
	detector tables.Detector
	log      logrus.FieldLogger
}

func (d *tabulaDocument) NumPages() (n int, err error) {
	defer recoverFault(&err)

	return d.r.PageCount()
}

func (d *tabulaDocument) Page(number int) (p extract.Page, err error) {
	defer recoverFault(&err)

	page, err := d.r.GetPage(number - 1)
	if err != nil {
		return nil, fmt.Errorf("get page: %w", err)
	}

	return &tabulaPage{
		doc:    d,
		page:   page,
		number: number,
	}, nil
}

func (d *tabulaDocument) Close() error {
	return d.r.Close()
}

type tabulaPage struct {
	doc    *tabulaDocument
	page   *pages.Page
	number int
}

// Tables assembles a model.Page from the text fragments and the ruling lines
// of the page and runs the detector on it.
func (p *tabulaPage) Tables() (result []extract.Table, err error) {
	defer recoverFault(&err)

	log := p.doc.log.WithField("page", p.number)

	width, err := p.page.Width()
	if err != nil {
		return nil, fmt.Errorf("page width: %w", err)
	}

	height, err := p.page.Height()
	if err != nil {
		return nil, fmt.Errorf("page height: %w", err)
	}

	mp := model.NewPage(width, height)

	fragments, err := p.doc.r.ExtractTextFragments(p.page)
	if err != nil {
		return nil, fmt.Errorf("extract text: %w", err)
	}

	for _, frag := range fragments {
		mp.RawText = append(mp.RawText, model.TextFragment{
			Text: frag.Text,
			BBox: model.BBox{
				X:      frag.X,
				Y:      frag.Y,
				Width:  frag.Width,
				Height: frag.Height,
			},
			FontSize: frag.FontSize,
			FontName: frag.FontName,
		})
	}

	lines, err := p.rulingLines()
	if err != nil {
		return nil, err
	}

	mp.RawLines = append(mp.RawLines, lines...)

	log.Debugf("%d text fragments, %d lines", len(mp.RawText), len(mp.RawLines))

	detected, err := p.doc.detector.Detect(mp)
	if err != nil {
		return nil, err
	}

	result = make([]extract.Table, 0, len(detected))

	for i, table := range detected {
		if table == nil {
			result = append(result, nil)
			continue
		}

		log.Debugf("table %d: %dx%d, grid %v, confidence %.2f",
			i+1, len(table.Rows), table.ColCount(), table.HasGrid, table.Confidence)

		result = append(result, convertTable(table))
	}

	return result, nil
}

// rulingLines returns the lines and rectangles drawn on the page.
func (p *tabulaPage) rulingLines() ([]model.Line, error) {
	contents, err := p.page.Contents()
	if err != nil {
		return nil, fmt.Errorf("page contents: %w", err)
	}

	var data []byte

	for _, obj := range contents {
		stream, ok := obj.(*core.Stream)
		if !ok {
			continue
		}

		buf, err := stream.Decode()
		if err != nil {
			return nil, fmt.Errorf("decode content stream: %w", err)
		}

		data = append(data, buf...)
		data = append(data, '\n')
	}

	if len(data) == 0 {
		return nil, nil
	}

	ge := graphicsstate.NewGraphicsExtractor()

	err = ge.ExtractFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("extract graphics: %w", err)
	}

	return append(ge.ToModelLines(), ge.ToModelRectangles()...), nil
}

// convertTable turns a detected table into rows of cells. Cells hidden by a
// neighbour's row or column span are empty unless text was assigned to them.
// The geometric detector places grid lines at every text edge, rows and
// columns without any text are removed.
func convertTable(table *model.Table) extract.Table {
	covered := coveredCells(table)

	grid := make([][]extract.Cell, 0, len(table.Rows))

	for i, row := range table.Rows {
		cells := make([]extract.Cell, 0, len(row))

		for j, cell := range row {
			text := strings.TrimSpace(cell.Text)
			if text == "" && covered[[2]int{i, j}] {
				cells = append(cells, extract.Empty())
				continue
			}

			cells = append(cells, extract.Text(text))
		}

		grid = append(grid, cells)
	}

	return compact(grid)
}

func coveredCells(table *model.Table) map[[2]int]bool {
	covered := make(map[[2]int]bool)

	for i, row := range table.Rows {
		for j, cell := range row {
			rowSpan, colSpan := cell.RowSpan, cell.ColSpan
			if rowSpan < 1 {
				rowSpan = 1
			}

			if colSpan < 1 {
				colSpan = 1
			}

			for r := i; r < i+rowSpan; r++ {
				for c := j; c < j+colSpan; c++ {
					if r == i && c == j {
						continue
					}

					covered[[2]int{r, c}] = true
				}
			}
		}
	}

	return covered
}

func hasText(c extract.Cell) bool {
	s, ok := c.Value()
	return ok && s != ""
}

// compact removes rows and columns without text. Rows may have different
// lengths, missing cells count as empty.
func compact(grid [][]extract.Cell) extract.Table {
	width := 0
	for _, row := range grid {
		if len(row) > width {
			width = len(row)
		}
	}

	keepCol := make([]bool, width)

	for _, row := range grid {
		for j, c := range row {
			if hasText(c) {
				keepCol[j] = true
			}
		}
	}

	result := make(extract.Table, 0, len(grid))

	for _, row := range grid {
		keepRow := false

		for _, c := range row {
			if hasText(c) {
				keepRow = true
				break
			}
		}

		if !keepRow {
			continue
		}

		cells := make([]extract.Cell, 0, len(row))

		for j, c := range row {
			if keepCol[j] {
				cells = append(cells, c)
			}
		}

		result = append(result, cells)
	}

	return result
}
