package ingest

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"
	"time"
)

type fakeStore struct {
	messages []*MessageRecord
	segments [][]SegmentRecord
	err      error
}

func (f *fakeStore) Insert(_ context.Context, msg *MessageRecord, segments []SegmentRecord) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msg)
	f.segments = append(f.segments, segments)
	return nil
}

func TestIngestFileStoresMessageAndSegments(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	p := NewPipeline(store)
	p.clock = func() time.Time { return time.Date(2024, 5, 21, 10, 0, 0, 0, time.UTC) }

	raw := "MSH|^~\\&|EPIC|EPICADT|SMS|SMSADT|20240521104500||ADT^A01|1|P|2.3\nPID|1||42||DOE^JANE"
	if err := p.IngestFile(context.Background(), "adm001.hl7", []byte(raw)); err != nil {
		t.Fatalf("IngestFile() error = %v", err)
	}

	if len(store.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(store.messages))
	}
	msg := store.messages[0]
	if msg.SourceFile != "adm001.hl7" || msg.MessageType != "ADT^A01" || msg.PatientID != "42" {
		t.Fatalf("unexpected message record: %+v", msg)
	}
	if !msg.IngestedAt.Equal(time.Date(2024, 5, 21, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected ingested_at: %v", msg.IngestedAt)
	}

	segs := store.segments[0]
	if len(segs) != 2 || segs[0].SegmentID != "MSH" || segs[1].SegmentID != "PID" {
		t.Fatalf("unexpected segments: %+v", segs)
	}
	if segs[1].PatientID != "42" || segs[1].MessageType != "ADT^A01" {
		t.Fatalf("segment rows must carry message context: %+v", segs[1])
	}
}

func TestIngestFileKeepsMalformedAsErrorRecord(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	p := NewPipeline(store)

	if err := p.IngestFile(context.Background(), "garbage.txt", []byte("not hl7 at all")); err != nil {
		t.Fatalf("IngestFile() error = %v", err)
	}
	if store.messages[0].MessageType != "ERROR" {
		t.Fatalf("expected ERROR record, got %+v", store.messages[0])
	}
	if len(store.segments[0]) != 1 || store.segments[0][0].SegmentID != "ERROR" {
		t.Fatalf("expected single ERROR segment, got %+v", store.segments[0])
	}
}

func TestIngestDirWalksInOrder(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"raw/b.hl7": {Data: []byte("MSH|^~\\&|A|B|C|D|20240102||ADT^A03|2|P|2.3")},
		"raw/a.hl7": {Data: []byte("MSH|^~\\&|A|B|C|D|20240101||ADT^A01|1|P|2.3")},
	}

	store := &fakeStore{}
	n, err := NewPipeline(store).IngestDir(context.Background(), fsys, "raw")
	if err != nil {
		t.Fatalf("IngestDir() error = %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 messages, got %d", n)
	}
	if store.messages[0].SourceFile != "a.hl7" || store.messages[1].SourceFile != "b.hl7" {
		t.Fatalf("files not ingested in name order: %+v, %+v", store.messages[0], store.messages[1])
	}
}

func TestIngestDirStopsOnStoreFailure(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"raw/a.hl7": {Data: []byte("MSH|^~\\&|A|B|C|D|20240101||ADT^A01|1|P|2.3")},
	}
	wantErr := errors.New("connection refused")

	_, err := NewPipeline(&fakeStore{err: wantErr}).IngestDir(context.Background(), fsys, "raw")
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected store error to surface, got %v", err)
	}
}
