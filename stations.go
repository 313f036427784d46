package main

import (
	"bufio"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/dolthub/swiss"
	"github.com/juju/errors"
	"golang.org/x/exp/slices"
)

const poolSize = 10_000

// StationSet is the deduplicated list of station names read from the
// reference file. It is not modified after loadStations returns.
type StationSet struct {
	names *swiss.Map[string, struct{}]
}

func newStationSet() *StationSet {
	return &StationSet{names: swiss.NewMap[string, struct{}](512)}
}

func (s *StationSet) add(name string) {
	s.names.Put(name, struct{}{})
}

func (s *StationSet) Len() int {
	return s.names.Count()
}

func (s *StationSet) Has(name string) bool {
	return s.names.Has(name)
}

// Names returns the station names in byte order.
func (s *StationSet) Names() []string {
	out := make([]string, 0, s.names.Count())
	s.names.Iter(func(k string, _ struct{}) bool {
		out = append(out, k)
		return false
	})
	slices.Sort(out)
	return out
}

// loadStations reads a semicolon separated reference file and keeps the
// first field of every line. Blank lines and lines starting with '#' are
// skipped.
func loadStations(path string) (*StationSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer f.Close()

	set := newStationSet()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, _, _ := strings.Cut(line, ";")
		set.add(strings.TrimSpace(name))
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Annotatef(err, "reading %s", path)
	}
	if set.Len() == 0 {
		return nil, errors.NotValidf("station file %s with no stations", path)
	}
	return set, nil
}

// buildPool samples size names with replacement. Every batch draws from the
// returned pool, so a station's frequency in the output follows how often it
// landed in the pool.
func buildPool(set *StationSet, size int) []string {
	names := set.Names()
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	pool := make([]string, size)
	for i := range pool {
		pool[i] = names[rnd.Intn(len(names))]
	}
	return pool
}
