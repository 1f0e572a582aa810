// Package hl7 parses HL7 v2 pipe-delimited messages into a flat segment
// representation. It deliberately ignores grouping: every segment surfaces at
// the top level with its fields keyed by ordinal position.
package hl7

import (
	"fmt"
	"strings"
)

// TypeError marks a record whose raw text could not be parsed. The record is
// still stored so a batch never fails on one bad message.
const TypeError = "ERROR"

type Segment struct {
	ID     string            `json:"segment_id"`
	Fields map[string]string `json:"fields"`
}

// Message is one parsed HL7 message. MessageType is MSH-9, MessageDatetime is
// the raw MSH-7 timestamp, PatientID is PID-3 and PatientName is PID-5.
type Message struct {
	MessageType     string    `json:"message_type"`
	MessageDatetime string    `json:"message_datetime"`
	PatientID       string    `json:"patient_id"`
	PatientName     string    `json:"patient_name"`
	Segments        []Segment `json:"segments"`
}

// Parse decodes one HL7 v2 message. Line feeds are normalized to the standard
// carriage-return segment separator first. Malformed input never returns an
// error: it yields a Message of type ERROR whose single segment records the
// parse failure.
func Parse(raw string) Message {
	normalized := strings.ReplaceAll(raw, "\n", "\r")

	segments, err := parseSegments(normalized)
	if err != nil {
		return Message{
			MessageType: TypeError,
			Segments: []Segment{{
				ID:     TypeError,
				Fields: map[string]string{"error": err.Error()},
			}},
		}
	}

	msg := Message{Segments: segments}
	for _, seg := range segments {
		switch seg.ID {
		case "MSH":
			if msg.MessageType == "" {
				msg.MessageType = seg.Fields["MSH_9"]
			}
			if msg.MessageDatetime == "" {
				msg.MessageDatetime = seg.Fields["MSH_7"]
			}
		case "PID":
			if msg.PatientID == "" {
				msg.PatientID = seg.Fields["PID_3"]
			}
			if msg.PatientName == "" {
				msg.PatientName = seg.Fields["PID_5"]
			}
		}
	}
	return msg
}

func parseSegments(normalized string) ([]Segment, error) {
	var segments []Segment
	for _, line := range strings.Split(normalized, "\r") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		seg, err := parseSegment(line)
		if err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("message is empty")
	}
	if segments[0].ID != "MSH" {
		return nil, fmt.Errorf("message does not start with an MSH segment")
	}
	return segments, nil
}

func parseSegment(line string) (Segment, error) {
	parts := strings.Split(line, "|")
	id := parts[0]
	if len(id) != 3 || id != strings.ToUpper(id) {
		return Segment{}, fmt.Errorf("invalid segment id %q", id)
	}

	fields := make(map[string]string)
	if id == "MSH" {
		// MSH-1 is the field separator itself, so every subsequent field is
		// shifted down by one relative to the split.
		fields["MSH_1"] = "|"
		for i := 1; i < len(parts); i++ {
			if parts[i] != "" {
				fields[fmt.Sprintf("MSH_%d", i+1)] = parts[i]
			}
		}
	} else {
		for i := 1; i < len(parts); i++ {
			if parts[i] != "" {
				fields[fmt.Sprintf("%s_%d", id, i)] = parts[i]
			}
		}
	}
	return Segment{ID: id, Fields: fields}, nil
}
