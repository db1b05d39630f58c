package workers

import (
	"os"
	"runtime"
	"strconv"
)

// EnvOverride names the environment variable that pins the worker count.
const EnvOverride = "CATALOG_WORKERS"

// Count returns the number of workers for a task, scaled from GOMAXPROCS
// (which follows container CPU limits) by multiplier and capped at limit.
// Use 0 for no limit. CATALOG_WORKERS overrides the computed value.
func Count(multiplier float64, limit int) int {
	if override := os.Getenv(EnvOverride); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			return capAt(count, limit)
		}
	}

	workers := int(float64(runtime.GOMAXPROCS(0)) * multiplier)
	if workers < 1 {
		workers = 1
	}
	return capAt(workers, limit)
}

func capAt(n, limit int) int {
	if limit > 0 && n > limit {
		return limit
	}
	return n
}

// ForIO returns worker count for I/O-bound tasks such as copying files (2 per CPU).
func ForIO(limit int) int {
	return Count(2.0, limit)
}

// ForMixed returns worker count for tasks that read a file and then decode
// and hash it (1.5 per CPU).
func ForMixed(limit int) int {
	return Count(1.5, limit)
}
