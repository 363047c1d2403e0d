package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/embtrace/schedtrace/internal/trace"
)

// CSV replay files carry the raw sample sequence as (sample_index, value)
// records, the format reference captures were published in.

var csvHeader = []string{"sample_index", "value"}

// WriteSamplesCSV serializes the sample sequence as a replay file.
func WriteSamplesCSV(w io.Writer, samples []trace.Sample) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, s := range samples {
		record := []string{strconv.Itoa(i), strconv.FormatUint(uint64(s), 10)}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing sample %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadSamplesCSV loads a replay file written by WriteSamplesCSV. Samples are
// returned in record order; the sample_index column is informational.
func ReadSamplesCSV(r io.Reader) ([]trace.Sample, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 2

	var samples []trace.Sample
	for line := 1; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading record %d: %w", line, err)
		}

		if line == 1 && record[0] == csvHeader[0] {
			continue // header row
		}

		v, err := strconv.ParseUint(record[1], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("record %d: invalid sample value %q: %w", line, record[1], err)
		}
		samples = append(samples, trace.Sample(v))
	}
	return samples, nil
}
