// Command pdftables prints the tables found in a PDF file as JSON.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/fd0/pdftables/backend"
	"github.com/fd0/pdftables/config"
	"github.com/fd0/pdftables/extract"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

type options struct {
	Config   string
	Pages    string
	Validate string
	Verbose  bool
}

func newLogger(wr io.Writer, verbose bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(wr)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	log.SetLevel(logrus.WarnLevel)
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	return log
}

// newExtracter builds the Extracter from the config file and the command
// line options.
func newExtracter(fs *pflag.FlagSet, opts options, log logrus.FieldLogger) (*extract.Extracter, error) {
	cfg := config.Default()

	if opts.Config != "" {
		var err error

		cfg, err = config.Load(opts.Config)
		if err != nil {
			return nil, err
		}
	}

	if fs.Changed("pages") {
		cfg.Pages = opts.Pages
	}

	if fs.Changed("validate") {
		cfg.Validate = opts.Validate
	}

	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	pages, err := cfg.PageSelection()
	if err != nil {
		return nil, err
	}

	src, err := backend.New(cfg, log)
	if err != nil {
		return nil, err
	}

	e := extract.NewExtracter(src)
	e.Pages = pages
	e.SetLogger(log)

	return e, nil
}

// run executes the command and returns the exit code. Extraction failures
// are reported in the JSON result and exit with code 0.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var opts options

	fs := pflag.NewFlagSet("pdftables", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.Config, "config", "", "read configuration from `file`")
	fs.StringVar(&opts.Pages, "pages", "", "only extract the `pages` given, e.g. 1,3-5")
	fs.StringVar(&opts.Validate, "validate", config.ValidateNone, "validate the file with pdfcpu first (none, relaxed, strict)")
	fs.BoolVar(&opts.Verbose, "verbose", false, "print verbose messages")

	err := fs.Parse(args)
	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}

	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)

		return 1
	}

	log := newLogger(stderr, opts.Verbose)

	if fs.NArg() == 0 {
		log.Debug(extract.ErrNoPDFPath)

		err = extract.Encode(stdout, extract.MissingPath())
		if err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
		}

		return 1
	}

	if fs.NArg() > 1 {
		log.Warnf("ignoring additional arguments %v", fs.Args()[1:])
	}

	filename := fs.Arg(0)

	var res extract.Result

	e, err := newExtracter(fs, opts, log)
	if err != nil {
		res = extract.Failed(err)
	} else {
		res = e.Extract(ctx, filename)
	}

	err = extract.Encode(stdout, res)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)

		return 1
	}

	return 0
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)

	cancel()
	os.Exit(code)
}
