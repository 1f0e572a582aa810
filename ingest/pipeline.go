package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/carelake/clinical-assistant/ingest/hl7"
	"github.com/carelake/clinical-assistant/pkg/metrics"
)

// RecordStore is the slice of Store the pipeline needs.
type RecordStore interface {
	Insert(ctx context.Context, msg *MessageRecord, segments []SegmentRecord) error
}

// Pipeline turns raw HL7 files into message and segment rows. One file is one
// message; a file that fails to parse still lands as an ERROR-typed row so a
// batch never stops on bad input.
type Pipeline struct {
	store RecordStore
	clock func() time.Time
}

func NewPipeline(store RecordStore) *Pipeline {
	return &Pipeline{store: store, clock: time.Now}
}

// IngestFile parses and stores one message read from raw, attributed to name.
func (p *Pipeline) IngestFile(ctx context.Context, name string, raw []byte) error {
	parsed := hl7.Parse(string(raw))

	record := &MessageRecord{
		SourceFile:      name,
		MessageType:     parsed.MessageType,
		MessageDatetime: parsed.MessageDatetime,
		PatientID:       parsed.PatientID,
		PatientName:     parsed.PatientName,
		Raw:             string(raw),
		IngestedAt:      p.clock().UTC(),
	}

	segments := make([]SegmentRecord, 0, len(parsed.Segments))
	for _, seg := range parsed.Segments {
		segments = append(segments, SegmentRecord{
			MessageType:     parsed.MessageType,
			MessageDatetime: parsed.MessageDatetime,
			PatientID:       parsed.PatientID,
			SegmentID:       seg.ID,
			Fields:          seg.Fields,
		})
	}

	if err := p.store.Insert(ctx, record, segments); err != nil {
		return fmt.Errorf("store %s: %w", name, err)
	}

	metrics.HL7MessagesIngested.Inc()
	log.Debug().
		Str("file", name).
		Str("message_type", parsed.MessageType).
		Int("segments", len(segments)).
		Msg("hl7 message ingested")
	return nil
}

// IngestDir ingests every regular file under dir in name order and reports how
// many messages were stored.
func (p *Pipeline) IngestDir(ctx context.Context, fsys fs.FS, dir string) (int, error) {
	var paths []string
	err := fs.WalkDir(fsys, dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Strings(paths)

	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		raw, err := fs.ReadFile(fsys, path)
		if err != nil {
			return i, fmt.Errorf("read %s: %w", path, err)
		}
		if err := p.IngestFile(ctx, filepath.Base(path), raw); err != nil {
			return i, err
		}
	}

	log.Info().Int("messages", len(paths)).Str("dir", dir).Msg("hl7 batch ingested")
	return len(paths), nil
}
