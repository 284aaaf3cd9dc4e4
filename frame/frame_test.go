package frame

/*
Copyright (C) 2017 Jan Kasiak

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

import (
	"bytes"
	"testing"
)

func TestControlBytes(t *testing.T) {
	parser := Parser{}

	for _, b := range []uint8{PreambleACK, PreambleNAK, PreambleCAN} {
		f, err := parser.Parse(b)
		if err != nil {
			t.Fatalf("Parse(0x%02x): unexpected error: %v", b, err)
		}
		if f == nil {
			t.Fatalf("Parse(0x%02x): expected non nil frame", b)
		}

		out, err := f.Bytes()
		if err != nil {
			t.Fatalf("Bytes(): unexpected error: %v", err)
		}
		if !bytes.Equal(out, []byte{b}) {
			t.Errorf("Bytes(): expected [%02x] got %v", b, out)
		}
	}
}

func TestBadPreamble(t *testing.T) {
	parser := Parser{}
	if f, err := parser.Parse(0x23); f != nil || err == nil {
		t.Errorf("expected nil frame and error, got %v %v", f, err)
	}
}

func TestBadLength(t *testing.T) {
	for _, length := range []uint8{0, 1, 2} {
		parser := Parser{}
		if f, err := parser.Parse(PreambleSOF); f != nil || err != nil {
			t.Fatalf("unexpected result parsing SOF: %v %v", f, err)
		}
		if f, err := parser.Parse(length); f != nil || err == nil {
			t.Errorf("expected nil frame and error for length %d, got %v %v", length, f, err)
		}
	}
}

// TestChecksumRoundTrip checks testable property 1 on one sample payload:
// frame(P) parses back to P, and the same frame with every bit of its
// checksum byte inverted is rejected.
func TestChecksumRoundTrip(t *testing.T) {
	f := &Frame{Preamble: PreambleSOF, Type: TypeRequest, MessageType: 0x13,
		Body: []uint8{0x07, 0x02, 0x25, 0x01}}

	raw, err := f.Bytes()
	if err != nil {
		t.Fatalf("Bytes(): unexpected error: %v", err)
	}

	parser := Parser{}
	var got *Frame
	for _, b := range raw {
		var perr error
		got, perr = parser.Parse(b)
		if perr != nil {
			t.Fatalf("unexpected parse error: %v", perr)
		}
	}
	if got == nil {
		t.Fatalf("expected a parsed frame")
	}
	if got.MessageType != f.MessageType || !bytes.Equal(got.Body, f.Body) {
		t.Errorf("round trip mismatch: got %+v want %+v", got, f)
	}

	// Flip the checksum byte: must be rejected.
	corrupt := append([]byte{}, raw...)
	corrupt[len(corrupt)-1] ^= 0xff

	parser = Parser{}
	sawErr := false
	for _, b := range corrupt {
		if _, perr := parser.Parse(b); perr != nil {
			sawErr = true
		}
	}
	if !sawErr {
		t.Errorf("expected a checksum error on corrupted frame")
	}
}

func TestBodyTooLong(t *testing.T) {
	f := &Frame{Preamble: PreambleSOF, Body: make([]uint8, 0xff)}
	if err := f.Update(); err == nil {
		t.Errorf("expected error for oversized body")
	}
}
