package simdjson

import (
	"io"
	"strings"
	"testing"
)

func drainStream(t *testing.T, d *StreamDriver) ([]string, error) {
	t.Helper()
	ch := make(chan Stream)
	d.Run(ch)
	var docs []string
	var retErr error
	for s := range ch {
		if s.Error != nil {
			retErr = s.Error
			break
		}
		i := s.Value.Iter()
		b, err := i.MarshalJSON()
		if err != nil {
			t.Fatal(err)
		}
		docs = append(docs, string(b))
	}
	return docs, retErr
}

func TestStreamDriver_Basic(t *testing.T) {
	if !SupportedCPU() {
		t.SkipNow()
	}
	const docs = `{"a":1}
{"a":2}
{"a":3}
`
	d, err := NewStreamDriver(strings.NewReader(docs), WithBatchSize(1<<20))
	if err != nil {
		t.Fatal(err)
	}
	got, err := drainStream(t, d)
	if err != io.EOF {
		t.Fatalf("final error = %v, want io.EOF", err)
	}
	if len(got) == 0 {
		t.Fatalf("expected at least one parsed batch, got none")
	}
}

func TestStreamDriver_SmallWindowCarriesOver(t *testing.T) {
	if !SupportedCPU() {
		t.SkipNow()
	}
	// Each document is a handful of bytes; a window far smaller than the
	// whole stream forces a carry-over of a document truncated mid-window.
	const doc = `{"value":12345}` + "\n"
	input := strings.Repeat(doc, 50)
	d, err := NewStreamDriver(strings.NewReader(input), WithBatchSize(70))
	if err != nil {
		t.Fatal(err)
	}
	got, err := drainStream(t, d)
	if err != io.EOF {
		t.Fatalf("final error = %v, want io.EOF", err)
	}
	count := 0
	for _, g := range got {
		count += strings.Count(g, `"value":12345`)
	}
	if count != 50 {
		t.Errorf("parsed %d copies of the document, want 50", count)
	}
}

func TestStreamDriver_Pipelined(t *testing.T) {
	if !SupportedCPU() {
		t.SkipNow()
	}
	const doc = `{"value":12345}` + "\n"
	input := strings.Repeat(doc, 50)
	d, err := NewStreamDriver(strings.NewReader(input), WithBatchSize(70), WithPipeline(true))
	if err != nil {
		t.Fatal(err)
	}
	got, err := drainStream(t, d)
	if err != io.EOF {
		t.Fatalf("final error = %v, want io.EOF", err)
	}
	count := 0
	for _, g := range got {
		count += strings.Count(g, `"value":12345`)
	}
	if count != 50 {
		t.Errorf("parsed %d copies of the document, want 50", count)
	}
}

func TestStreamDriver_CapacityExceeded(t *testing.T) {
	if !SupportedCPU() {
		t.SkipNow()
	}
	// A single document that never fits in one window and never closes
	// within it must be reported as CAPACITY, not silently dropped.
	big := `{"a":"` + strings.Repeat("x", 200) + `"}` + "\n"
	d, err := NewStreamDriver(strings.NewReader(big), WithBatchSize(32))
	if err != nil {
		t.Fatal(err)
	}
	_, err = drainStream(t, d)
	if err == nil {
		t.Fatal("expected an error, got nil")
	}
	pe, ok := err.(*ParseError)
	if !ok || pe.Code != CAPACITY {
		t.Errorf("err = %v, want CAPACITY", err)
	}
}
