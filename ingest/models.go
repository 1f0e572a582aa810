// Package ingest loads HL7 message files into the curated record store the
// Genie worker queries: one row per message plus one row per segment, fields
// kept as jsonb so queries can reach any ordinal position.
package ingest

import (
	"time"

	"github.com/uptrace/bun"
)

type MessageRecord struct {
	bun.BaseModel `bun:"table:hl7_messages,alias:m"`

	ID              int64     `bun:"id,pk,autoincrement"`
	SourceFile      string    `bun:"source_file,notnull"`
	MessageType     string    `bun:"message_type"`
	MessageDatetime string    `bun:"message_datetime"`
	PatientID       string    `bun:"patient_id"`
	PatientName     string    `bun:"patient_name"`
	Raw             string    `bun:"raw,notnull"`
	IngestedAt      time.Time `bun:"ingested_at,notnull,default:current_timestamp"`
}

type SegmentRecord struct {
	bun.BaseModel `bun:"table:hl7_segments,alias:s"`

	ID              int64             `bun:"id,pk,autoincrement"`
	MessageID       int64             `bun:"message_id,notnull"`
	MessageType     string            `bun:"message_type"`
	MessageDatetime string            `bun:"message_datetime"`
	PatientID       string            `bun:"patient_id"`
	SegmentID       string            `bun:"segment_id,notnull"`
	Fields          map[string]string `bun:"fields,type:jsonb"`
}
