// Package backend contains the table detection libraries pdftables can use.
package backend

import (
	"errors"
	"fmt"

	"github.com/fd0/pdftables/config"
	"github.com/fd0/pdftables/extract"
	"github.com/sirupsen/logrus"
)

var ErrUnknownBackend = errors.New("unknown backend")

// New returns the Source configured in cfg.
func New(cfg config.Config, logger logrus.FieldLogger) (extract.Source, error) {
	var src extract.Source

	switch cfg.Backend {
	case "tabula":
		t, err := NewTabula(cfg.Detector)
		if err != nil {
			return nil, err
		}

		t.SetLogger(logger)
		src = t
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}

	if cfg.Validate == "" || cfg.Validate == config.ValidateNone {
		return src, nil
	}

	p, err := NewPreflight(src, cfg.Validate)
	if err != nil {
		return nil, err
	}

	p.SetLogger(logger)

	return p, nil
}
