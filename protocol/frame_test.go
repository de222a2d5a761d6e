package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func validHeader(seq uint16) FrameHeader {
	return FrameHeader{
		Sequence:      seq,
		SampleRate:    SampleRate,
		Channels:      Channels,
		BitsPerSample: BitsPerSample,
	}
}

func TestHeaderSize(t *testing.T) {
	// sequence(2) + payload_len(2) + sample_rate(2) + channels(1) +
	// bits_per_sample(1) + flags(2) = 10
	if HeaderSize != 10 {
		t.Errorf("HeaderSize = %d, want 10", HeaderSize)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payload := []byte{0x00, 0x01, 0x02, 0x03, 0xfe, 0xff}

	encoded, err := EncodeFrame(validHeader(42), payload)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	if len(encoded) != HeaderSize+len(payload) {
		t.Fatalf("encoded length = %d, want %d", len(encoded), HeaderSize+len(payload))
	}

	decoded, gotPayload, err := DecodeFrame(encoded)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if decoded.Sequence != 42 {
		t.Errorf("Sequence = %d, want 42", decoded.Sequence)
	}
	if decoded.PayloadLen != uint16(len(payload)) {
		t.Errorf("PayloadLen = %d, want %d", decoded.PayloadLen, len(payload))
	}
	if decoded.SampleRate != SampleRate || decoded.Channels != Channels || decoded.BitsPerSample != BitsPerSample {
		t.Errorf("format = %s, want 16000Hz/1ch/16bit", decoded.Format())
	}
	if decoded.Flags != 0 {
		t.Errorf("Flags = %d, want 0", decoded.Flags)
	}
	if !bytes.Equal(gotPayload, payload) {
		t.Errorf("payload = %v, want %v", gotPayload, payload)
	}
}

func TestEncodeEmptyPayload(t *testing.T) {
	encoded, err := EncodeFrame(validHeader(0), nil)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}

	h, payload, err := DecodeFrame(encoded)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if h.PayloadLen != 0 || len(payload) != 0 {
		t.Errorf("PayloadLen = %d, payload bytes = %d, want 0/0", h.PayloadLen, len(payload))
	}
}

func TestDecodeShortInput(t *testing.T) {
	for _, n := range []int{0, 1, HeaderSize - 1} {
		_, _, err := DecodeFrame(make([]byte, n))
		if !errors.Is(err, ErrMalformedFrame) {
			t.Errorf("DecodeFrame(%d bytes) error = %v, want ErrMalformedFrame", n, err)
		}
	}
}

func TestDecodePayloadLengthMismatch(t *testing.T) {
	encoded, err := EncodeFrame(validHeader(7), []byte{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}

	// Claim more bytes than follow
	binary.LittleEndian.PutUint16(encoded[2:4], 10)
	if _, _, err := DecodeFrame(encoded); !errors.Is(err, ErrMalformedFrame) {
		t.Errorf("over-claimed payload: error = %v, want ErrMalformedFrame", err)
	}

	// Claim fewer bytes than follow
	binary.LittleEndian.PutUint16(encoded[2:4], 2)
	if _, _, err := DecodeFrame(encoded); !errors.Is(err, ErrMalformedFrame) {
		t.Errorf("under-claimed payload: error = %v, want ErrMalformedFrame", err)
	}
}

func TestEncodeRejectsInvalidFields(t *testing.T) {
	cases := []struct {
		name string
		mod  func(*FrameHeader)
	}{
		{"sample_rate", func(h *FrameHeader) { h.SampleRate = 8000 }},
		{"channels", func(h *FrameHeader) { h.Channels = 2 }},
		{"bits_per_sample", func(h *FrameHeader) { h.BitsPerSample = 8 }},
		{"flags", func(h *FrameHeader) { h.Flags = 1 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := validHeader(0)
			tc.mod(&h)
			if _, err := EncodeFrame(h, []byte{0, 0}); !errors.Is(err, ErrInvalidField) {
				t.Errorf("error = %v, want ErrInvalidField", err)
			}
		})
	}
}

func TestSequenceWrapsRoundTrip(t *testing.T) {
	for _, seq := range []uint16{0, 1, 32768, 65535} {
		encoded, err := EncodeFrame(validHeader(seq), []byte{0, 0})
		if err != nil {
			t.Fatalf("EncodeFrame(seq=%d): %v", seq, err)
		}
		h, _, err := DecodeFrame(encoded)
		if err != nil {
			t.Fatalf("DecodeFrame(seq=%d): %v", seq, err)
		}
		if h.Sequence != seq {
			t.Errorf("Sequence = %d, want %d", h.Sequence, seq)
		}
	}
}
