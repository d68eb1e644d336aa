package sync

import (
	"bufio"
	"encoding/json"
	"io"
)

// encodeMessage writes m as one self-delimited text frame: a JSON object
// followed by a newline. One frame, one Write call, so frames from
// concurrent senders on the same connection never interleave.
func encodeMessage(w io.Writer, m *Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return protocolErr("encode", err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return transportErr("write frame", err)
	}
	return nil
}

// newFrameScanner returns a bufio.Scanner reading newline-delimited frames
// off r, capped at maxFrameBytes so a malformed or hostile peer can't force
// unbounded buffering.
func newFrameScanner(r io.Reader) *bufio.Scanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 4096), maxFrameBytes)
	return s
}

// decodeMessage parses and validates one frame already read by Scan() on
// a scanner from newFrameScanner.
func decodeMessage(line []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(line, &m); err != nil {
		return nil, protocolErr("decode", err)
	}
	if err := m.Validate(); err != nil {
		return nil, protocolErr("validate", err)
	}
	return &m, nil
}
