// Command covcopy replicates the coverages of one store into another.
//
//	covcopy -job job.json [-erase] [-reduce=false] [-workers 8] [-filter 'name.startsWith("dem_")'] [-quiet] [-v]
//
// The job file holds the source and destination backends, see backend.Job.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	log "log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/sharedcode/coverage"
	"github.com/sharedcode/coverage/backend"
)

func main() {
	jobFile := flag.String("job", "", "path of the JSON job file (required)")
	erase := flag.Bool("erase", false, "delete destination coverages of the same name before copying")
	reduce := flag.Bool("reduce", true, "crop rebuilt slices to their valid data")
	workers := flag.Int("workers", 0, "number of tile writers, 0 means one per CPU")
	filter := flag.String("filter", "", "CEL predicate over the coverage name")
	quiet := flag.Bool("quiet", false, "only print warnings and the outcome")
	verbose := flag.Bool("v", false, "also log every event at debug level")
	flag.Parse()
	coverage.ConfigureLogging()
	if *verbose {
		coverage.SetLogLevel(log.LevelDebug)
	}

	if *jobFile == "" {
		flag.Usage()
		os.Exit(2)
	}
	job, err := loadJob(*jobFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "erase":
			job.Options.Erase = *erase
		case "reduce":
			job.Options.ReduceToDomain = *reduce
		case "workers":
			job.Options.Workers = *workers
		case "filter":
			job.Filter = *filter
		}
	})
	if err := job.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	started := time.Now()
	p := newPrinter(os.Stdout, *quiet)
	if err := job.Run(ctx, listenerFor(p, *verbose)); err != nil {
		log.Error("replication failed", "error", err)
		fmt.Fprintf(os.Stderr, "replication failed after %s: %v\n", time.Since(started).Round(time.Millisecond), err)
		os.Exit(1)
	}
	fmt.Printf("done in %s, %s warning(s)\n", time.Since(started).Round(time.Millisecond), humanize.Comma(p.warnings))
}

// listenerFor adds structured event logs to the printer output in verbose mode.
func listenerFor(p *printer, verbose bool) coverage.Listener {
	if !verbose {
		return p
	}
	return coverage.NewMultiListener(p, coverage.NewSlogListener(nil))
}

func loadJob(path string) (backend.Job, error) {
	job := backend.NewJob(backend.Config{}, backend.Config{})
	ba, err := os.ReadFile(path)
	if err != nil {
		return job, err
	}
	if err := json.Unmarshal(ba, &job); err != nil {
		return job, fmt.Errorf("parsing job file %s: %w", path, err)
	}
	return job, nil
}
