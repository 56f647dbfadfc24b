// Package catalog reads satellite element sets in the three-line
// (name, line 1, line 2) format served by CelesTrak.
package catalog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"

	"github.com/signalsfoundry/orbit-attitude-sim/core"
)

var (
	// ErrMalformedRecord marks a record missing an element-set line or
	// failing the fixed-width checks.
	ErrMalformedRecord = errors.New("malformed catalog record")
	// ErrDuplicateRecord is returned by Store.Add for a repeated ID.
	ErrDuplicateRecord = errors.New("duplicate catalog record")
)

// Record is one satellite's identifier and element set.
type Record struct {
	ID    string
	Line1 string
	Line2 string
}

// Validate checks that the record carries an ID and two well-formed lines.
func (r Record) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("%w: empty identifier", ErrMalformedRecord)
	}
	if err := core.ValidateTLELines(r.Line1, r.Line2); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedRecord, r.ID, err)
	}
	return nil
}

// Propagator builds an SGP4 propagator for the record.
func (r Record) Propagator() (*core.SGP4Propagator, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return core.NewSGP4Propagator(r.Line1, r.Line2)
}

// Records lazily yields records from r, three non-blank lines at a time.
// The first malformed record is yielded as an error and ends the sequence.
func Records(r io.Reader) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		scanner := bufio.NewScanner(r)
		var chunk []string
		line := 0
		for scanner.Scan() {
			line++
			text := strings.TrimRight(scanner.Text(), "\r\n ")
			if strings.TrimSpace(text) == "" {
				continue
			}
			chunk = append(chunk, text)
			if len(chunk) < 3 {
				continue
			}

			rec := Record{ID: strings.TrimSpace(chunk[0]), Line1: chunk[1], Line2: chunk[2]}
			chunk = chunk[:0]
			if err := rec.Validate(); err != nil {
				yield(Record{}, fmt.Errorf("record ending at line %d: %w", line, err))
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield(Record{}, fmt.Errorf("reading catalog: %w", err))
			return
		}
		if len(chunk) > 0 {
			yield(Record{}, fmt.Errorf("%w: %q has %d of 2 element-set lines", ErrMalformedRecord, strings.TrimSpace(chunk[0]), len(chunk)-1))
		}
	}
}

// ReadAll collects every record from r in order, failing on the first
// malformed or duplicate one.
func ReadAll(r io.Reader) ([]Record, error) {
	s := NewStore()
	if _, err := s.AddAll(Records(r)); err != nil {
		return nil, err
	}
	return s.List(), nil
}

// ReadFile reads a catalog from a local file.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return ReadAll(f)
}
