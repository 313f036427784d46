package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/juju/errors"
)

func TestParseRows(t *testing.T) {
	valid := map[string]int{
		"1":             1,
		"250000":        250_000,
		"1_000_000_000": 1_000_000_000,
		"+42":           42,
		" 7 ":           7,
		"010":           10,
	}
	for in, want := range valid {
		got, err := parseRows(in)
		if err != nil || got != want {
			t.Errorf("parseRows(%q) = %d, %v; want %d", in, got, err, want)
		}
	}

	for _, in := range []string{"", "0", "-5", "abc", "_1", "1_", "1__0", "1e6", "0x10", "++1", "1.5"} {
		_, err := parseRows(in)
		if err == nil {
			t.Errorf("parseRows(%q) should fail", in)
		} else if !errors.IsNotValid(err) {
			t.Errorf("parseRows(%q) returned %v, want a NotValid error", in, err)
		}
	}
}

func TestParseArgs(t *testing.T) {
	cfg, err := parseArgs([]string{"1_000"}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.rows != 1000 || cfg.stations != "weather_stations.csv" || cfg.output != "measurements.txt" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.bufferSize != 1024*1024 || cfg.workers < 1 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}

	cfg, err = parseArgs([]string{"-buffer", "4M", "-o", "out.txt", "-verify", "5"}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.bufferSize != 4*1024*1024 || cfg.output != "out.txt" || !cfg.verify {
		t.Errorf("flags not applied: %+v", cfg)
	}

	if _, err := parseArgs([]string{"-buffer", "lots", "5"}, io.Discard); !errors.IsNotValid(err) {
		t.Errorf("expected NotValid for a bad buffer size, got %v", err)
	}
}

func TestRunInvalidArguments(t *testing.T) {
	stations := writeStationFile(t, "Hamburg", "Bulawayo", "Palembang")
	for _, args := range [][]string{
		{},
		{"0"},
		{"-5"},
		{"lots"},
		{"1", "2"},
	} {
		out := filepath.Join(t.TempDir(), "measurements.txt")
		var stdout bytes.Buffer
		full := append([]string{"-stations", stations, "-o", out}, args...)
		if code := run(context.Background(), full, &stdout, io.Discard); code != 1 {
			t.Errorf("run(%q) exit code %d, want 1", args, code)
		}
		if !strings.Contains(stdout.String(), "Usage:  create_measurements") {
			t.Errorf("run(%q) did not print usage:\n%s", args, stdout.String())
		}
		if _, err := os.Stat(out); !os.IsNotExist(err) {
			t.Errorf("run(%q) touched the output file", args)
		}
	}
}

func TestRunEndToEnd(t *testing.T) {
	stations := writeStationFile(t, "# comment", "Hamburg;53.55", "Bulawayo;-20.15", "Palembang;-2.99", "Hamburg;53.55")
	out := filepath.Join(t.TempDir(), "measurements.txt")

	var stdout bytes.Buffer
	code := run(context.Background(), []string{"-stations", stations, "-o", out, "-verify", "250_000"}, &stdout, io.Discard)
	if code != 0 {
		t.Fatalf("exit code %d, output:\n%s", code, stdout.String())
	}

	set, err := loadStations(stations)
	if err != nil {
		t.Fatal(err)
	}
	if got := checkLines(t, out, set); got != 200_000 {
		t.Errorf("expected 200000 lines, got %d", got)
	}

	got := stdout.String()
	order := []string{
		"Estimated max file size is:  ",
		"Building test data...\n",
		"] 100%\n",
		"Test data successfully written to " + out + "\n",
		"Actual file size:  ",
		"Elapsed time: ",
		"Verified 200000 rows across 3 stations.\n",
		"Test data build complete.\n",
	}
	pos := 0
	for _, want := range order {
		i := strings.Index(got[pos:], want)
		if i < 0 {
			t.Fatalf("missing or out of order %q in:\n%s", want, got)
		}
		pos += i + len(want)
	}
}

func TestRunMissingStations(t *testing.T) {
	out := filepath.Join(t.TempDir(), "measurements.txt")
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-stations", filepath.Join(t.TempDir(), "none.csv"), "-o", out, "100000"}, &stdout, &stderr)
	if code != 1 {
		t.Errorf("exit code %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "loading stations") {
		t.Errorf("expected the failure on stderr, got %q", stderr.String())
	}
}

func TestRunWriteFailure(t *testing.T) {
	stations := writeStationFile(t, "Hamburg")
	var stdout bytes.Buffer
	code := run(context.Background(), []string{"-stations", stations, "-o", t.TempDir(), "100000"}, &stdout, io.Discard)
	if code != 1 {
		t.Errorf("exit code %d, want 1", code)
	}
	if !strings.Contains(stdout.String(), "Something went wrong. Printing error info and exiting...") {
		t.Errorf("missing failure notice:\n%s", stdout.String())
	}
}
