// Command pdftables-batch extracts the tables of many PDF files, writing one
// JSON file per PDF file into a target directory.
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
	"github.com/fd0/pdftables/database"
	"github.com/fd0/pdftables/extract"
	"github.com/fd0/pdftables/notify"
	"github.com/fd0/pdftables/process"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

type options struct {
	Config    string
	TargetDir string
	Jobs      int
	Force     bool
	Notify    bool
	EnvFile   string
	Verbose   bool
}

// CheckTargetDir ensures that dir exists and is a directory.
func CheckTargetDir(log logrus.FieldLogger, dir string) error {
	fi, err := os.Lstat(dir)
	if os.IsNotExist(err) {
		log.Infof("creating target dir %v", dir)

		err = os.MkdirAll(dir, 0755)
		if err != nil {
			return fmt.Errorf("creating target dir %v: %w", dir, err)
		}

		fi, err = os.Lstat(dir)
	}

	if err != nil {
		return fmt.Errorf("accessing target dir %v: %w", dir, err)
	}

	if !fi.IsDir() {
		return fmt.Errorf("target dir %v is not a directory", dir)
	}

	return nil
}

// setupRootContext creates a root context that is cancelled when SIGINT is
// received, tied to a new errgroup.Group. The returned cancel() function
// cancels the outermost context.
func setupRootContext(parent context.Context) (wg *errgroup.Group, ctx context.Context, cancel func()) {
	ctx, cancel = signal.NotifyContext(parent, os.Interrupt)

	// couple this context with an errgroup
	wg, ctx = errgroup.WithContext(ctx)

	return wg, ctx, cancel
}

func loadConfig(fs *pflag.FlagSet, opts options) (config.Config, error) {
	cfg := config.Default()

	if opts.Config != "" {
		var err error

		cfg, err = config.Load(opts.Config)
		if err != nil {
			return config.Config{}, err
		}
	}

	if fs.Changed("target-dir") {
		cfg.Batch.TargetDir = opts.TargetDir
	}

	if fs.Changed("jobs") {
		cfg.Batch.Jobs = opts.Jobs
	}

	if fs.Changed("force") {
		cfg.Batch.Force = opts.Force
	}

	err := cfg.Validate()
	if err != nil {
		return config.Config{}, err
	}

	return cfg, nil
}

func runBatch(ctx context.Context, log logrus.FieldLogger, cfg config.Config, opts options, files []string) (process.Summary, error) {
	err := CheckTargetDir(log, cfg.Batch.TargetDir)
	if err != nil {
		return process.Summary{}, err
	}

	src, err := backend.New(cfg, log)
	if err != nil {
		return process.Summary{}, err
	}

	pages, err := cfg.PageSelection()
	if err != nil {
		return process.Summary{}, err
	}

	extracter := extract.NewExtracter(src)
	extracter.Pages = pages
	extracter.SetLogger(log)

	db := database.New(cfg.Batch.TargetDir)
	db.SetLogger(log)

	err = db.Lock()
	if err != nil {
		return process.Summary{}, err
	}

	defer func() {
		err := db.Unlock()
		if err != nil {
			log.Warn(err)
		}
	}()

	err = db.Load()
	if err != nil {
		return process.Summary{}, err
	}

	processor := &process.Processor{
		TargetDir: cfg.Batch.TargetDir,
		Jobs:      cfg.Batch.Jobs,
		Force:     cfg.Batch.Force,
		Extracter: extracter,
		Database:  db,
		OnFileProcessed: func(filename string, entry database.Entry) {
			log.WithField("filename", filename).Infof("processed: %v", entry)
		},
	}
	processor.SetLogger(log)

	summary, runErr := processor.Run(ctx, files)

	// keep the results of all files processed so far
	err = db.Save()
	if err != nil {
		return summary, err
	}

	if runErr != nil {
		return summary, runErr
	}

	if opts.Notify {
		n := notify.FromEnv()
		n.SetLogger(log)
		n.Summary(ctx, summary)
	}

	return summary, nil
}

func run(parent context.Context, args []string, stderr io.Writer) int {
	var opts options

	fs := pflag.NewFlagSet("pdftables-batch", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.Config, "config", "", "read configuration from `file`")
	fs.StringVar(&opts.TargetDir, "target-dir", "tables", "write results to `dir`")
	fs.IntVar(&opts.Jobs, "jobs", 4, "process `n` files concurrently")
	fs.BoolVar(&opts.Force, "force", false, "extract files again even if they were processed before")
	fs.BoolVar(&opts.Notify, "notify", false, "send a pushover notification when done")
	fs.StringVar(&opts.EnvFile, "env-file", "", "read environment variables from `file`")
	fs.BoolVar(&opts.Verbose, "verbose", false, "print verbose messages")

	err := fs.Parse(args)
	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}

	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)

		return 1
	}

	if fs.NArg() == 0 {
		fmt.Fprintf(stderr, "error: no PDF files or directories given\n")

		return 1
	}

	log := logrus.New()
	log.SetOutput(stderr)

	log.SetLevel(logrus.InfoLevel)
	if opts.Verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	if opts.EnvFile != "" {
		err = godotenv.Load(opts.EnvFile)
		if err != nil {
			fmt.Fprintf(stderr, "error: load %v: %v\n", opts.EnvFile, err)

			return 1
		}
	}

	cfg, err := loadConfig(fs, opts)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)

		return 1
	}

	files, err := process.CollectFiles(fs.Args())
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)

		return 1
	}

	wg, ctx, cancel := setupRootContext(parent)
	defer cancel()

	wg.Go(func() error {
		summary, err := runBatch(ctx, log, cfg, opts, files)
		if err != nil {
			return err
		}

		log.Infof("%v", summary)

		return nil
	})

	err = wg.Wait()
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)

		return 1
	}

	return 0
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stderr))
}
