package storage

import (
	"database/sql"

	"github.com/embtrace/schedtrace/internal/trace"
)

// SampleIterator streams the raw samples of one session in capture order.
// Each instance must be used from a single goroutine and closed after use.
type SampleIterator struct {
	rows    *sql.Rows
	current trace.Sample
	err     error
}

// Next advances to the next sample. It returns false when the sequence is
// exhausted or an error occurred; check Err afterwards.
func (it *SampleIterator) Next() bool {
	if it.err != nil {
		return false
	}
	if !it.rows.Next() {
		it.err = it.rows.Err()
		return false
	}

	var value int64
	if err := it.rows.Scan(&value); err != nil {
		it.err = err
		return false
	}

	it.current = trace.Sample(value)
	return true
}

// Current returns the sample Next advanced to.
func (it *SampleIterator) Current() trace.Sample {
	return it.current
}

// Err returns the first error encountered during iteration.
func (it *SampleIterator) Err() error {
	return it.err
}

// Close releases the underlying result set.
func (it *SampleIterator) Close() error {
	return it.rows.Close()
}
