package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	issLine1 = "1 25544U 98067A   21275.59097222  .00000204  00000-0  10270-4 0  9990"
	issLine2 = "2 25544  51.6459 115.9059 0001817  61.3028  35.9198 15.49370953257760"
)

func TestReadFileParsesThreeLineRecords(t *testing.T) {
	recs, err := ReadFile("testdata/stations.tle")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if recs[0].ID != "ISS (ZARYA)" || recs[0].Line1 != issLine1 || recs[0].Line2 != issLine2 {
		t.Fatalf("first record = %+v", recs[0])
	}
	if recs[1].ID != "CSS (TIANHE)" {
		t.Fatalf("second record ID = %q", recs[1].ID)
	}
	if _, err := recs[0].Propagator(); err != nil {
		t.Fatalf("Propagator: %v", err)
	}
}

func TestRecordsIsLazy(t *testing.T) {
	f, err := os.Open("testdata/stations.tle")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	var ids []string
	for rec, err := range Records(f) {
		if err != nil {
			t.Fatalf("Records: %v", err)
		}
		ids = append(ids, rec.ID)
		break
	}
	if len(ids) != 1 || ids[0] != "ISS (ZARYA)" {
		t.Fatalf("ids = %v", ids)
	}
}

func TestReadAllMalformed(t *testing.T) {
	cases := map[string]string{
		"missing line2": "ISS (ZARYA)\n" + issLine1 + "\n",
		"short line":    "ISS (ZARYA)\n" + issLine1 + "\n2 25544  51.6459\n",
		"swapped lines": "ISS (ZARYA)\n" + issLine2 + "\n" + issLine1 + "\n",
		"bad numeric":   "ISS (ZARYA)\n" + issLine1 + "\n2 25544  XX.6459" + issLine2[16:] + "\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ReadAll(strings.NewReader(body))
			if !errors.Is(err, ErrMalformedRecord) {
				t.Fatalf("ReadAll error = %v, want ErrMalformedRecord", err)
			}
		})
	}

	dup := "ISS (ZARYA)\n" + issLine1 + "\n" + issLine2 + "\n"
	if _, err := ReadAll(strings.NewReader(dup + dup)); !errors.Is(err, ErrDuplicateRecord) {
		t.Fatalf("ReadAll duplicate error = %v, want ErrDuplicateRecord", err)
	}

	recs, err := ReadAll(strings.NewReader("\n\n"))
	if err != nil || len(recs) != 0 {
		t.Fatalf("empty catalog = %v, %v", recs, err)
	}
}

func TestStoreKeepsInsertionOrderAndRejectsDuplicates(t *testing.T) {
	f, err := os.Open("testdata/stations.tle")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	s := NewStore()
	n, err := s.AddAll(Records(f))
	if err != nil || n != 2 {
		t.Fatalf("AddAll = %d, %v", n, err)
	}

	list := s.List()
	if list[0].ID != "ISS (ZARYA)" || list[1].ID != "CSS (TIANHE)" {
		t.Fatalf("List order = %v", list)
	}

	err = s.Add(Record{ID: "ISS (ZARYA)", Line1: issLine1, Line2: issLine2})
	if !errors.Is(err, ErrDuplicateRecord) {
		t.Fatalf("duplicate Add error = %v", err)
	}
	if err := s.Add(Record{ID: "", Line1: issLine1, Line2: issLine2}); !errors.Is(err, ErrMalformedRecord) {
		t.Fatalf("empty ID Add error = %v", err)
	}
	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
}

func testBody() string {
	return "ISS (ZARYA)\n" + issLine1 + "\n" + issLine2 + "\n"
}

func TestFetcherRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(testBody()))
	}))
	defer srv.Close()

	f := NewFetcher(srv.URL, WithBackOff(backoff.NewConstantBackOff(time.Millisecond)))
	recs, err := f.FetchRecords(context.Background())
	if err != nil {
		t.Fatalf("FetchRecords: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != "ISS (ZARYA)" {
		t.Fatalf("records = %+v", recs)
	}
	if calls.Load() != 3 {
		t.Fatalf("server saw %d calls, want 3", calls.Load())
	}
}

func TestFetcherDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := NewFetcher(srv.URL, WithBackOff(backoff.NewConstantBackOff(time.Millisecond)))
	if _, err := f.Fetch(context.Background()); err == nil {
		t.Fatalf("expected error for 404")
	}
	if calls.Load() != 1 {
		t.Fatalf("404 retried %d times", calls.Load())
	}
}

func TestFetcherGivesUpAfterMaxTries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	f := NewFetcher(srv.URL,
		WithMaxTries(2),
		WithBackOff(backoff.NewConstantBackOff(time.Millisecond)),
	)
	if _, err := f.Fetch(context.Background()); err == nil {
		t.Fatalf("expected error after retries")
	}
	if calls.Load() != 2 {
		t.Fatalf("server saw %d calls, want 2", calls.Load())
	}
}
