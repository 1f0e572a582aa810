package hl7

import "testing"

const sampleADT = "MSH|^~\\&|EPIC|EPICADT|SMS|SMSADT|20240521104500||ADT^A01|12345|P|2.3\n" +
	"EVN|A01|20240521104500\n" +
	"PID|1||0493575^^^2^ID 1||DOE^JOHN||19480203|M||B|254 MYSTREET AVE^^MYTOWN^OH^44123^USA\n" +
	"PV1|1|I|2000^2012^01||||004777^ATTEND^AARON^A|||SUR||||ADM|A0"

func TestParseExtractsHeaderFields(t *testing.T) {
	t.Parallel()

	msg := Parse(sampleADT)
	if msg.MessageType != "ADT^A01" {
		t.Fatalf("message_type = %q", msg.MessageType)
	}
	if msg.MessageDatetime != "20240521104500" {
		t.Fatalf("message_datetime = %q", msg.MessageDatetime)
	}
	if msg.PatientID != "0493575^^^2^ID 1" {
		t.Fatalf("patient_id = %q", msg.PatientID)
	}
	if msg.PatientName != "DOE^JOHN" {
		t.Fatalf("patient_name = %q", msg.PatientName)
	}
	if len(msg.Segments) != 4 {
		t.Fatalf("expected 4 segments, got %d", len(msg.Segments))
	}
}

func TestParseMSHFieldOffsets(t *testing.T) {
	t.Parallel()

	msh := Parse(sampleADT).Segments[0]
	if msh.ID != "MSH" {
		t.Fatalf("first segment = %q", msh.ID)
	}
	if msh.Fields["MSH_1"] != "|" {
		t.Fatalf("MSH_1 = %q", msh.Fields["MSH_1"])
	}
	if msh.Fields["MSH_2"] != "^~\\&" {
		t.Fatalf("MSH_2 = %q", msh.Fields["MSH_2"])
	}
	if msh.Fields["MSH_9"] != "ADT^A01" {
		t.Fatalf("MSH_9 = %q", msh.Fields["MSH_9"])
	}
	if _, ok := msh.Fields["MSH_8"]; ok {
		t.Fatal("empty field must be omitted")
	}
}

func TestParseNonMSHFieldsAreNotShifted(t *testing.T) {
	t.Parallel()

	pid := Parse(sampleADT).Segments[2]
	if pid.Fields["PID_1"] != "1" {
		t.Fatalf("PID_1 = %q", pid.Fields["PID_1"])
	}
	if pid.Fields["PID_5"] != "DOE^JOHN" {
		t.Fatalf("PID_5 = %q", pid.Fields["PID_5"])
	}
}

func TestParseNormalizesLineEndings(t *testing.T) {
	t.Parallel()

	cr := Parse("MSH|^~\\&|A|B|C|D|20240101||ORU^R01|1|P|2.3\rOBX|1|TX|NOTE||stable")
	lf := Parse("MSH|^~\\&|A|B|C|D|20240101||ORU^R01|1|P|2.3\nOBX|1|TX|NOTE||stable")
	if len(cr.Segments) != 2 || len(lf.Segments) != 2 {
		t.Fatalf("segment counts differ: cr=%d lf=%d", len(cr.Segments), len(lf.Segments))
	}
	if cr.MessageType != lf.MessageType {
		t.Fatalf("type differs: %q vs %q", cr.MessageType, lf.MessageType)
	}
}

func TestParseMalformedYieldsErrorRecord(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
	}{
		{"empty", "   \n  "},
		{"no msh", "PID|1||42"},
		{"bad segment id", "MSH|^~\\&|A|B|C|D|20240101||ADT^A01|1|P|2.3\rbadseg|x"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			msg := Parse(tt.raw)
			if msg.MessageType != TypeError {
				t.Fatalf("expected ERROR type, got %q", msg.MessageType)
			}
			if len(msg.Segments) != 1 || msg.Segments[0].ID != TypeError {
				t.Fatalf("expected single ERROR segment, got %+v", msg.Segments)
			}
			if msg.Segments[0].Fields["error"] == "" {
				t.Fatal("error field must explain the failure")
			}
		})
	}
}
