// Package extract turns an arbitrary product page into a structured
// {name, price, image} record despite inconsistent markup and transient
// fetch failures.
//
// Two strategies run in order: a heavyweight rendering strategy (Chrome via
// rod, executes page scripts) retried with randomized backoff, then a single
// lightweight static fetch. Both walk the same ordered per-platform selector
// tables; the first structurally valid match per field wins. Exhausting both
// strategies yields a Failure record, never an error the caller must treat
// as fatal.
package extract

import (
	"errors"
	"fmt"
)

// errAllStrategiesFailed is the cause carried by a Failure record when
// neither strategy produced a usable field.
var errAllStrategiesFailed = errors.New("no strategy produced usable data")

// Record is the outcome of one extraction. A complete Record has non-empty
// Name and Image and a positive Price; anything less counts as a failure for
// retry purposes.
type Record struct {
	Name  string
	Price float64
	Image string
	URL   string

	// Err marks a Failure record: all strategies exhausted. Callers skip the
	// item for this cycle instead of aborting the batch.
	Err error
}

// Complete reports whether all required fields were extracted.
func (r Record) Complete() bool {
	return r.Name != "" && r.Image != "" && r.Price > 0
}

// Failed reports whether this is a Failure record.
func (r Record) Failed() bool { return r.Err != nil }

// failure builds the terminal Failure record for a URL.
func failure(url string, cause error) Record {
	return Record{URL: url, Err: fmt.Errorf("extract: all strategies exhausted for %s: %w", url, cause)}
}
