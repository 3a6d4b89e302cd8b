package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fd0/pdftables/database"
	"github.com/fd0/pdftables/extract"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Processor extracts the tables of many PDF files and writes one JSON file
// per PDF into TargetDir.
type Processor struct {
	TargetDir string

	// Jobs is the number of files processed concurrently.
	Jobs int

	// Force extracts files again even if the database has a successful entry.
	Force bool

	Extracter *extract.Extracter
	Database  *database.Database

	log logrus.FieldLogger

	OnFileProcessed func(filename string, entry database.Entry)
}

// Summary describes the outcome of a run.
type Summary struct {
	Run       string
	Files     int
	Skipped   int
	Succeeded int
	Failed    int
	Tables    int
}

func (s Summary) String() string {
	return fmt.Sprintf("%d files: %d succeeded, %d failed, %d skipped, %d tables",
		s.Files, s.Succeeded, s.Failed, s.Skipped, s.Tables)
}

// SetLogger updates the logger to use.
func (p *Processor) SetLogger(logger logrus.FieldLogger) {
	p.log = logger.WithField("component", "processor")
}

func (p *Processor) logger() logrus.FieldLogger {
	if p.log == nil {
		p.SetLogger(logrus.StandardLogger())
	}

	return p.log
}

// job is a file scheduled for extraction.
type job struct {
	filename string
	id       string
	output   string
	skip     bool
}

// plan assigns the output file name to each file. Output names are kept
// stable across runs, files which would end up with the same output name get
// their ID appended.
func (p *Processor) plan(files []string) []job {
	jobs := make([]job, 0, len(files))
	used := make(map[string]string)
	scheduled := make(map[string]struct{})

	for _, filename := range files {
		log := p.log.WithField("filename", filename)

		j := job{filename: filename}

		id, err := database.FileID(filename)
		if err != nil {
			log.Warnf("unable to compute file ID: %v", err)
		}

		j.id = id

		if id != "" {
			if _, ok := scheduled[id]; ok {
				log.Infof("skip duplicate of file %v", id)

				continue
			}

			scheduled[id] = struct{}{}
		}

		entry, ok := p.Database.Get(id)
		if id != "" && ok {
			j.output = entry.Output
			j.skip = entry.Success && !p.Force
		}

		if j.output == "" {
			j.output = database.OutputName(filename, "")
		}

		if p.outputTaken(used, j.output, id) {
			j.output = database.OutputName(filename, id)
		}

		used[j.output] = id

		jobs = append(jobs, j)
	}

	return jobs
}

// outputTaken reports whether output belongs to a file other than id, either
// in this run or in an earlier one.
func (p *Processor) outputTaken(used map[string]string, output, id string) bool {
	if owner, ok := used[output]; ok && owner != id {
		return true
	}

	owner, ok := p.Database.OutputOwner(output)

	return ok && owner != id
}

// Run processes files. Failed extractions are recorded and counted, errors
// writing the results abort the run.
func (p *Processor) Run(ctx context.Context, files []string) (Summary, error) {
	log := p.logger()

	if p.Extracter == nil || p.Database == nil {
		return Summary{}, errors.New("processor needs an extracter and a database")
	}

	run := uuid.New().String()
	summary := Summary{
		Run:   run,
		Files: len(files),
	}

	log = log.WithField("run", run)

	p.Database.Prune(p.TargetDir)

	jobs := p.plan(files)
	summary.Skipped = len(files) - len(jobs)

	limit := p.Jobs
	if limit < 1 {
		limit = 1
	}

	wg, ctx := errgroup.WithContext(ctx)
	wg.SetLimit(limit)

	var mu sync.Mutex

	for _, j := range jobs {
		j := j

		if j.skip {
			log.WithField("filename", j.filename).Debugf("skip, already extracted to %v", j.output)

			summary.Skipped++

			continue
		}

		wg.Go(func() error {
			entry, err := p.processFile(ctx, run, j)
			if err != nil {
				return err
			}

			mu.Lock()
			if entry.Success {
				summary.Succeeded++
				summary.Tables += entry.TableCount
			} else {
				summary.Failed++
			}
			mu.Unlock()

			if p.OnFileProcessed != nil {
				p.OnFileProcessed(j.filename, entry)
			}

			return nil
		})
	}

	err := wg.Wait()

	log.Infof("run done: %v", summary)

	return summary, err
}

// processFile extracts the tables of a single file and writes the result.
func (p *Processor) processFile(ctx context.Context, run string, j job) (database.Entry, error) {
	log := p.log.WithField("filename", j.filename)

	err := ctx.Err()
	if err != nil {
		return database.Entry{}, err
	}

	log.Infof("start extraction")

	res := p.Extracter.Extract(ctx, j.filename)

	// an interrupted extraction is not a result
	err = ctx.Err()
	if err != nil {
		return database.Entry{}, err
	}

	buf := bytes.NewBuffer(nil)

	err = extract.Encode(buf, res)
	if err != nil {
		return database.Entry{}, err
	}

	err = writeFileAtomic(filepath.Join(p.TargetDir, j.output), buf.Bytes())
	if err != nil {
		return database.Entry{}, fmt.Errorf("write result for %v: %w", j.filename, err)
	}

	entry := database.Entry{
		Filename:   j.filename,
		Output:     j.output,
		Success:    res.Success(),
		TableCount: res.TableCount(),
		Error:      res.Err(),
		Run:        run,
		Processed:  time.Now().UTC(),
	}

	if j.id != "" {
		p.Database.Set(j.id, entry)
	}

	log.WithField("output", j.output).Infof("extraction done: %v", res)

	return entry, nil
}
