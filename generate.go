package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/sirupsen/logrus"
)

const (
	batchSize = 100_000
	coldest   = -99.9
	hottest   = 99.9
)

// buildTestData samples the station pool and writes numRows/batchSize
// batches to cfg.output. Rows past the last full batch are not written.
func buildTestData(ctx context.Context, cfg config, set *StationSet, stdout io.Writer, log *logrus.Entry) error {
	start := time.Now()
	chunks := cfg.rows / batchSize
	pool := buildPool(set, poolSize)

	log.WithFields(logrus.Fields{
		"pool":    len(pool),
		"chunks":  chunks,
		"workers": cfg.workers,
	}).Debug("station pool built")
	if rem := cfg.rows % batchSize; rem != 0 {
		log.WithField("rows", rem).Warnf("row count is not a multiple of %d, remainder dropped", batchSize)
	}

	fmt.Fprintln(stdout, "Building test data...")
	if err := writeBatches(ctx, cfg, pool, chunks, stdout); err != nil {
		return err
	}
	fmt.Fprintln(stdout)

	elapsed := time.Since(start)
	info, err := os.Stat(cfg.output)
	if err != nil {
		return errors.Trace(err)
	}
	fmt.Fprintf(stdout, "Test data successfully written to %s\n", cfg.output)
	fmt.Fprintf(stdout, "Actual file size:  %s\n", convertBytes(float64(info.Size())))
	fmt.Fprintf(stdout, "Elapsed time: %s\n", formatElapsedTime(elapsed.Seconds()))
	return nil
}

// writeBatches generates chunks batches on cfg.workers goroutines and writes
// them in index order. Each batch has its own result slot; the writer waits
// on slot i before slot i+1 no matter which batch finished first. At most
// 2*workers batches are scheduled ahead of the writer.
func writeBatches(ctx context.Context, cfg config, pool []string, chunks int, stdout io.Writer) (err error) {
	f, err := os.Create(cfg.output)
	if err != nil {
		return errors.Trace(err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Trace(cerr)
		}
	}()
	w := bufio.NewWriterSize(f, cfg.bufferSize)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pending := make([]chan []byte, chunks)
	for i := range pending {
		pending[i] = make(chan []byte, 1)
	}
	slots := make(chan struct{}, 2*cfg.workers)
	jobs := make(chan int)

	var wg sync.WaitGroup
	for id := 0; id < cfg.workers; id++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			rnd := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)))
			for i := range jobs {
				pending[i] <- renderBatch(rnd, pool, batchSize)
			}
		}(id)
	}
	defer func() {
		cancel()
		wg.Wait()
	}()

	go func() {
		defer close(jobs)
		for i := 0; i < chunks; i++ {
			select {
			case slots <- struct{}{}:
			case <-ctx.Done():
				return
			}
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	for i := 0; i < chunks; i++ {
		if err := ctx.Err(); err != nil {
			return errors.Trace(err)
		}
		var data []byte
		select {
		case data = <-pending[i]:
		case <-ctx.Done():
			return errors.Trace(ctx.Err())
		}
		pending[i] = nil
		if _, err := w.Write(data); err != nil {
			return errors.Annotatef(err, "writing batch %d", i)
		}
		<-slots
		drawProgress(stdout, i, chunks)
	}
	if err := w.Flush(); err != nil {
		return errors.Annotate(err, "flushing output")
	}
	return nil
}

// drawProgress redraws the bar after batch i when the percentage moved.
func drawProgress(w io.Writer, i, chunks int) {
	progress := (i + 1) * 100 / chunks
	if i == 0 || progress != i*100/chunks {
		fmt.Fprintf(w, "\r[%-50s] %d%%", strings.Repeat("=", progress/2), progress)
	}
}

// renderBatch draws size stations from pool and renders one
// "name;temp\n" line for each.
func renderBatch(rnd *rand.Rand, pool []string, size int) []byte {
	buf := make([]byte, 0, size*16)
	for i := 0; i < size; i++ {
		buf = append(buf, pool[rnd.Intn(len(pool))]...)
		buf = append(buf, ';')
		buf = strconv.AppendFloat(buf, coldest+rnd.Float64()*(hottest-coldest), 'f', 1, 64)
		buf = append(buf, '\n')
	}
	return buf
}
