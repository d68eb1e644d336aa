package sync

import (
	"bytes"
	"strings"
	"testing"
)

func TestEncodeDecodeMessage_RoundTrip(t *testing.T) {
	msg := instanceInfoMessage("alpha", 7, 1000, "10.0.0.1:4000")

	var buf bytes.Buffer
	if err := encodeMessage(&buf, msg); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.HasSuffix(buf.String(), "\n") {
		t.Fatalf("frame not newline-terminated: %q", buf.String())
	}

	scanner := newFrameScanner(&buf)
	if !scanner.Scan() {
		t.Fatalf("scan: %v", scanner.Err())
	}
	got, err := decodeMessage(scanner.Bytes())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Source != msg.Source || got.ID != msg.ID || got.Priority != msg.Priority || got.Address != msg.Address {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, msg)
	}
}

func TestDecodeMessage_RejectsMalformedJSON(t *testing.T) {
	if _, err := decodeMessage([]byte("{not json")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestDecodeMessage_RejectsInvalidMessage(t *testing.T) {
	if _, err := decodeMessage([]byte(`{"type":0,"source":"a","id":1}`)); err == nil {
		t.Fatal("expected validation error for hello with nonzero id")
	}
}

func TestFrameScanner_MultipleFrames(t *testing.T) {
	var buf bytes.Buffer
	encodeMessage(&buf, heartbeatMessage("a", 1))
	encodeMessage(&buf, heartbeatMessage("a", 2))

	scanner := newFrameScanner(&buf)
	count := 0
	for scanner.Scan() {
		m, err := decodeMessage(scanner.Bytes())
		if err != nil {
			t.Fatalf("decode frame %d: %v", count, err)
		}
		count++
		if int(m.ID) != count {
			t.Errorf("frame %d: id = %d, want %d", count, m.ID, count)
		}
	}
	if count != 2 {
		t.Fatalf("scanned %d frames, want 2", count)
	}
}
