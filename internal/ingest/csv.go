package ingest

import (
	"context"
	"encoding/csv"
	"io"

	"github.com/rotisserie/eris"

	"github.com/detroit-blocks/blockline/internal/model"
)

// CSVOptions configures the streaming parcel CSV reader.
type CSVOptions struct {
	Delimiter  rune // default ','
	Comment    rune // comment character (0 = none)
	LazyQuotes bool
}

// StreamCSV reads parcel rows from a CSV source and sends them to a channel.
// The first row is treated as the header and drives column mapping. The
// caller must consume the returned parcel channel; errors are sent on the
// error channel and both channels are closed when processing completes.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan model.Parcel, <-chan error) {
	parcelCh := make(chan model.Parcel, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(parcelCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		if opts.Comment != 0 {
			reader.Comment = opts.Comment
		}
		reader.LazyQuotes = opts.LazyQuotes
		reader.FieldsPerRecord = -1 // allow variable fields

		header, err := reader.Read()
		if err == io.EOF {
			return
		}
		if err != nil {
			errCh <- eris.Wrap(err, "ingest: read csv header")
			return
		}
		cols, err := MapColumns(header)
		if err != nil {
			errCh <- err
			return
		}

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "ingest: context cancelled")
				return
			}

			row, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "ingest: read csv row")
				return
			}

			select {
			case parcelCh <- cols.Parcel(row):
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "ingest: context cancelled")
				return
			}
		}
	}()

	return parcelCh, errCh
}

// Chunks drains a parcel channel into slices of at most size parcels, so the
// orchestrator can process a large roll without holding it all in memory.
// The final chunk may be short; empty input yields no chunks.
func Chunks(ctx context.Context, parcels <-chan model.Parcel, size int) <-chan []model.Parcel {
	if size <= 0 {
		size = 1000
	}
	out := make(chan []model.Parcel, 1)

	go func() {
		defer close(out)
		chunk := make([]model.Parcel, 0, size)
		flush := func() bool {
			if len(chunk) == 0 {
				return true
			}
			select {
			case out <- chunk:
				chunk = make([]model.Parcel, 0, size)
				return true
			case <-ctx.Done():
				return false
			}
		}

		for p := range parcels {
			chunk = append(chunk, p)
			if len(chunk) == size {
				if !flush() {
					return
				}
			}
		}
		flush()
	}()

	return out
}
