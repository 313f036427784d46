package main

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"sync"
	"syscall"
	"unsafe"

	"github.com/dolthub/swiss"
	"github.com/juju/errors"
	"github.com/tidwall/btree"
)

// MeasureAggregate holds temperatures in tenths of a degree.
type MeasureAggregate struct {
	Sum   int
	Min   int
	Max   int
	Count int
}

func (a *MeasureAggregate) add(val int) {
	if a.Count == 0 || val < a.Min {
		a.Min = val
	}
	if a.Count == 0 || val > a.Max {
		a.Max = val
	}
	a.Sum += val
	a.Count++
}

func (a *MeasureAggregate) merge(b MeasureAggregate) {
	if b.Count == 0 {
		return
	}
	if a.Count == 0 || b.Min < a.Min {
		a.Min = b.Min
	}
	if a.Count == 0 || b.Max > a.Max {
		a.Max = b.Max
	}
	a.Sum += b.Sum
	a.Count += b.Count
}

// VerifyReport is the result of reading a measurements file back.
type VerifyReport struct {
	Rows       int
	Malformed  int
	OutOfRange int
	Unknown    int
	Stations   *btree.Map[string, MeasureAggregate]
}

type workerResult struct {
	rows, malformed, outOfRange, unknown int
	stations                             *swiss.Map[string, *MeasureAggregate]
}

// verifyMeasurements aggregates the file at path on workers goroutines and
// checks every row against the station set and the temperature range.
func verifyMeasurements(path string, set *StationSet, workers int) (*VerifyReport, error) {
	report := &VerifyReport{Stations: btree.NewMap[string, MeasureAggregate](32)}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer f.Close()

	finfo, err := f.Stat()
	if err != nil {
		return nil, errors.Trace(err)
	}
	fileSize := int(finfo.Size())
	if fileSize == 0 {
		return report, nil
	}
	data, err := syscall.Mmap(int(f.Fd()), 0, fileSize, syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		return nil, errors.Annotatef(err, "mapping %s", path)
	}
	defer syscall.Munmap(data)

	chunkSize := max(os.Getpagesize()*16, fileSize/(workers*4))

	// [start, end) offsets, each ending just past a newline or at EOF
	chunks := make(chan [2]int, workers)
	go func() {
		defer close(chunks)
		for start := 0; start < fileSize; {
			end := start + chunkSize
			if end >= fileSize {
				end = fileSize
			} else if nl := bytes.IndexByte(data[end:], '\n'); nl < 0 {
				end = fileSize
			} else {
				end += nl + 1
			}
			chunks <- [2]int{start, end}
			start = end
		}
	}()

	results := make(chan workerResult, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// each worker owns its map, merged once all are done
			res := workerResult{stations: swiss.NewMap[string, *MeasureAggregate](uint32(max(set.Len(), 16)))}
			for chunk := range chunks {
				processChunk(data[chunk[0]:chunk[1]], set, &res)
			}
			results <- res
		}()
	}
	wg.Wait()
	close(results)

	for res := range results {
		report.Rows += res.rows
		report.Malformed += res.malformed
		report.OutOfRange += res.outOfRange
		report.Unknown += res.unknown
		res.stations.Iter(func(k string, v *MeasureAggregate) bool {
			agg, _ := report.Stations.Get(k)
			agg.merge(*v)
			report.Stations.Set(k, agg)
			return false
		})
	}
	return report, nil
}

func processChunk(chunk []byte, set *StationSet, res *workerResult) {
	for len(chunk) > 0 {
		line := chunk
		if nl := bytes.IndexByte(chunk, '\n'); nl >= 0 {
			line, chunk = chunk[:nl], chunk[nl+1:]
		} else {
			chunk = nil
		}
		res.rows++

		sep := bytes.IndexByte(line, ';')
		if sep <= 0 {
			res.malformed++
			continue
		}
		val, ok := parseTenths(line[sep+1:])
		if !ok {
			res.malformed++
			continue
		}
		if val < -999 || val > 999 {
			res.outOfRange++
		}

		// zero-copy view for lookups, cloned before it is stored
		name := unsafe.String(&line[0], sep)
		if !set.Has(name) {
			res.unknown++
		}
		agg, ok := res.stations.Get(name)
		if !ok {
			agg = &MeasureAggregate{}
			res.stations.Put(strings.Clone(name), agg)
		}
		agg.add(val)
	}
}

// parseTenths parses [-]d+.d into tenths of a degree.
func parseTenths(b []byte) (int, bool) {
	sign := 1
	if len(b) > 0 && b[0] == '-' {
		sign = -1
		b = b[1:]
	}
	if len(b) < 3 || b[len(b)-2] != '.' {
		return 0, false
	}
	whole := 0
	for _, c := range b[:len(b)-2] {
		if c < '0' || c > '9' {
			return 0, false
		}
		whole = whole*10 + int(c-'0')
	}
	dec := b[len(b)-1]
	if dec < '0' || dec > '9' {
		return 0, false
	}
	return sign * (whole*10 + int(dec-'0')), true
}

// check returns an error describing every way the report deviates from a
// well formed file of expectedRows rows.
func (r *VerifyReport) check(expectedRows int) error {
	var problems []string
	if r.Rows != expectedRows {
		problems = append(problems, fmt.Sprintf("%d rows, expected %d", r.Rows, expectedRows))
	}
	if r.Malformed > 0 {
		problems = append(problems, fmt.Sprintf("%d malformed rows", r.Malformed))
	}
	if r.OutOfRange > 0 {
		problems = append(problems, fmt.Sprintf("%d rows out of range", r.OutOfRange))
	}
	if r.Unknown > 0 {
		problems = append(problems, fmt.Sprintf("%d rows with unknown stations", r.Unknown))
	}
	if len(problems) > 0 {
		return errors.Errorf("verification failed: %s", strings.Join(problems, ", "))
	}
	return nil
}

// String renders the report the way 1BRC solutions print their results.
func (r *VerifyReport) String() string {
	var sb strings.Builder
	sb.WriteString("{")
	first := true
	r.Stations.Scan(func(k string, v MeasureAggregate) bool {
		if !first {
			sb.WriteString(", ")
		}
		first = false
		avg := float64(v.Sum) / float64(v.Count) / 10
		fmt.Fprintf(&sb, "%s=%.1f/%.1f/%.1f", k, float64(v.Min)/10, avg, float64(v.Max)/10)
		return true
	})
	sb.WriteString("}")
	return sb.String()
}
