package backend

import (
	"fmt"
	"sync"

	"github.com/fd0/pdftables/config"
	"github.com/fd0/pdftables/extract"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/sirupsen/logrus"
)

var disablePdfcpuConfig sync.Once

// Preflight validates files with pdfcpu before they are handed to the
// wrapped Source.
type Preflight struct {
	Source extract.Source
	Mode   string

	log logrus.FieldLogger
}

// NewPreflight returns a Preflight for src. Mode is config.ValidateRelaxed or
// config.ValidateStrict.
func NewPreflight(src extract.Source, mode string) (*Preflight, error) {
	switch mode {
	case config.ValidateRelaxed, config.ValidateStrict:
	default:
		return nil, fmt.Errorf("invalid validation mode %q", mode)
	}

	disablePdfcpuConfig.Do(func() {
		// keep pdfcpu from creating its config file in the user's home
		model.ConfigPath = "disable"
	})

	p := &Preflight{Source: src, Mode: mode}
	p.SetLogger(logrus.StandardLogger())

	return p, nil
}

// SetLogger updates the logger to use.
func (p *Preflight) SetLogger(logger logrus.FieldLogger) {
	p.log = logger.WithField("component", "preflight")
}

func (p *Preflight) configuration() *model.Configuration {
	conf := model.NewDefaultConfiguration()

	conf.ValidationMode = model.ValidationRelaxed
	if p.Mode == config.ValidateStrict {
		conf.ValidationMode = model.ValidationStrict
	}

	return conf
}

// Open validates filename and opens it with the wrapped Source.
func (p *Preflight) Open(filename string) (extract.Document, error) {
	log := p.log.WithField("filename", filename)

	err := api.ValidateFile(filename, p.configuration())
	if err != nil {
		return nil, fmt.Errorf("validate %v (%v) failed: %w", filename, p.Mode, err)
	}

	pages, err := api.PageCountFile(filename)
	if err != nil {
		log.Debugf("pdfcpu page count failed: %v", err)
	} else {
		log.Debugf("validation ok, %d pages", pages)
	}

	return p.Source.Open(filename)
}
