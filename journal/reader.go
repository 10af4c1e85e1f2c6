package journal

import (
	"errors"
	"io"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Filter selects records. Zero fields match every record.
type Filter struct {
	Kind      Kind
	Node      uint8
	TimedOut  bool
	TimeStart time.Time
	TimeEnd   time.Time
}

func (f *Filter) matches(rec *Record) bool {
	if f.Kind != 0 && rec.Kind != f.Kind {
		return false
	}
	if f.Node != 0 && rec.Node != f.Node {
		return false
	}
	if f.TimedOut && !rec.TimedOut() {
		return false
	}
	if !f.TimeStart.IsZero() && rec.Timestamp.Before(f.TimeStart) {
		return false
	}
	if !f.TimeEnd.IsZero() && !rec.Timestamp.Before(f.TimeEnd) {
		return false
	}

	return true
}

// Reader streams records from a journal.
type Reader struct {
	decoder *cbor.Decoder
	closer  io.Closer
	filter  Filter
}

// NewReader creates a Reader of the records in r that match filter.
func NewReader(r io.Reader, filter Filter) *Reader {
	return &Reader{decoder: newDecoder(r), filter: filter}
}

// OpenReader creates a Reader of the journal file at path.
func OpenReader(path string, filter Filter) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	r := NewReader(f, filter)
	r.closer = f

	return r, nil
}

// Next returns the next matching record, or io.EOF at the end of the journal.
func (r *Reader) Next() (Record, error) {
	for {
		var rec Record
		if err := r.decoder.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				return Record{}, io.EOF
			}

			return Record{}, err
		}

		if r.filter.matches(&rec) {
			return rec, nil
		}
	}
}

// ReadAll returns every remaining matching record.
func (r *Reader) ReadAll() ([]Record, error) {
	var recs []Record
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return recs, nil
		}
		if err != nil {
			return recs, err
		}
		recs = append(recs, rec)
	}
}

// Close closes the file opened by OpenReader.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}

	return nil
}
