package main

import (
	"fmt"
	"math"
)

// Mean byte length of a temperature uniformly drawn from [-99.9, 99.9] and
// printed with one decimal.
const avgTempBytes = 4.400200100050025

var byteUnits = []string{"bytes", "KiB", "MiB", "GiB"}

func estimateFileSize(set *StationSet, numRows int) string {
	total := 0
	for _, name := range set.Names() {
		total += len(name)
	}
	avgNameBytes := float64(total) / float64(set.Len())
	avgLine := avgNameBytes + avgTempBytes + 2
	return fmt.Sprintf("Estimated max file size is:  %s.", convertBytes(float64(numRows)*avgLine))
}

func convertBytes(num float64) string {
	for i, unit := range byteUnits {
		if num < 1024 || i == len(byteUnits)-1 {
			return fmt.Sprintf("%.1f %s", num, unit)
		}
		num /= 1024
	}
	return ""
}

func formatElapsedTime(seconds float64) string {
	switch {
	case seconds < 60:
		return fmt.Sprintf("%.3f seconds", seconds)
	case seconds < 3600:
		minutes := math.Floor(seconds / 60)
		return fmt.Sprintf("%d minutes %d seconds", int(minutes), int(seconds-minutes*60))
	default:
		hours := math.Floor(seconds / 3600)
		rem := seconds - hours*3600
		minutes := math.Floor(rem / 60)
		return fmt.Sprintf("%d hours %d minutes %d seconds", int(hours), int(minutes), int(rem-minutes*60))
	}
}
