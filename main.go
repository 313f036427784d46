package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"

	"code.cloudfoundry.org/bytefmt"
	"github.com/google/uuid"
	"github.com/juju/errors"
	"github.com/sirupsen/logrus"
)

type config struct {
	rows       int
	stations   string
	output     string
	bufferSize int
	verify     bool
	verbose    bool
	workers    int
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := parseArgs(args, stdout)
	if err != nil {
		return 1
	}
	log := newLogger(stderr, cfg.verbose)

	set, err := loadStations(cfg.stations)
	if err != nil {
		log.WithError(err).Error("loading stations")
		return 1
	}
	log.WithFields(logrus.Fields{
		"file":     cfg.stations,
		"stations": set.Len(),
		"buffer":   bytefmt.ByteSize(uint64(cfg.bufferSize)),
	}).Debug("stations loaded")

	fmt.Fprintln(stdout, estimateFileSize(set, cfg.rows))
	if err := buildTestData(ctx, cfg, set, stdout, log); err != nil {
		fmt.Fprintln(stdout, "Something went wrong. Printing error info and exiting...")
		fmt.Fprintln(stdout, err)
		log.Debug(errors.ErrorStack(err))
		return 1
	}

	if cfg.verify {
		report, err := verifyMeasurements(cfg.output, set, cfg.workers)
		if err == nil {
			err = report.check(cfg.rows / batchSize * batchSize)
		}
		if err != nil {
			fmt.Fprintln(stdout, err)
			return 1
		}
		log.Debug(report.String())
		fmt.Fprintf(stdout, "Verified %d rows across %d stations.\n", report.Rows, report.Stations.Len())
	}

	fmt.Fprintln(stdout, "Test data build complete.")
	return 0
}

// parseArgs reads flags and the row count. Any problem prints the usage
// text to stdout and returns a NotValid error.
func parseArgs(args []string, stdout io.Writer) (config, error) {
	cfg := config{workers: runtime.NumCPU()}
	var buffer string

	fs := flag.NewFlagSet("create_measurements", flag.ContinueOnError)
	fs.SetOutput(stdout)
	fs.StringVar(&cfg.stations, "stations", "weather_stations.csv", "reference `file` of station names")
	fs.StringVar(&cfg.output, "o", "measurements.txt", "output `file`")
	fs.StringVar(&buffer, "buffer", "1M", "write buffer `size` (e.g. 512K, 4M)")
	fs.BoolVar(&cfg.verify, "verify", false, "read the output back and check every row")
	fs.BoolVar(&cfg.verbose, "v", false, "debug logging on stderr")
	fs.Usage = func() {
		fmt.Fprintln(stdout, "Usage:  create_measurements [flags] <positive integer number of records to create>")
		fmt.Fprintln(stdout, "        You can use underscore notation for large number of records.")
		fmt.Fprintln(stdout, "        For example:  1_000_000_000 for one billion")
		fmt.Fprintln(stdout, "Flags:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return cfg, errors.NewNotValid(err, "arguments")
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return cfg, errors.NotValidf("argument count %d", fs.NArg())
	}

	rows, err := parseRows(fs.Arg(0))
	if err != nil {
		fs.Usage()
		return cfg, err
	}
	cfg.rows = rows

	size, err := bytefmt.ToBytes(buffer)
	if err != nil || size == 0 || size > math.MaxInt32 {
		fs.Usage()
		return cfg, errors.NotValidf("buffer size %q", buffer)
	}
	cfg.bufferSize = int(size)
	return cfg, nil
}

// parseRows accepts a positive base 10 integer with an optional leading
// '+'. Underscores may separate digit groups, as in 1_000_000.
func parseRows(s string) (int, error) {
	digits := strings.TrimPrefix(strings.TrimSpace(s), "+")
	if digits == "" || digits[0] == '_' || digits[len(digits)-1] == '_' || strings.Contains(digits, "__") {
		return 0, errors.NotValidf("row count %q", s)
	}
	for _, c := range digits {
		if c != '_' && (c < '0' || c > '9') {
			return 0, errors.NotValidf("row count %q", s)
		}
	}
	n, err := strconv.Atoi(strings.ReplaceAll(digits, "_", ""))
	if err != nil || n <= 0 {
		return 0, errors.NotValidf("row count %q", s)
	}
	return n, nil
}

func newLogger(out io.Writer, verbose bool) *logrus.Entry {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if verbose {
		l.SetLevel(logrus.DebugLevel)
	}
	return l.WithField("run", uuid.NewString())
}
