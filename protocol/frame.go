// Package protocol implements the wire protocol spoken between the device
// and the edge gateway: a fixed binary header for PCM audio frames and a
// JSON control-message envelope. Constants here are shared literally with
// the device firmware.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Message type constants shared with the firmware.
const (
	MsgTypeAudioChunk = "MSG_TYPE_AUDIO_CHUNK"
	MsgTypeTTSChunk   = "MSG_TYPE_TTS_CHUNK" // reserved: replies are single-chunk
	MsgTypeControl    = "MSG_TYPE_CONTROL"
)

// HeaderSize is the fixed binary frame header size in bytes.
// Layout (little-endian): sequence(2) | payload_len(2) | sample_rate(2) |
// channels(1) | bits_per_sample(1) | flags(2).
const HeaderSize = 10

// Fixed audio format carried by every frame.
const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
)

// MaxPayloadSize is the largest payload a single frame can carry.
const MaxPayloadSize = 65535

var (
	// ErrMalformedFrame is returned when a binary frame is shorter than the
	// header or its payload length disagrees with the bytes on the wire.
	ErrMalformedFrame = errors.New("malformed audio frame")

	// ErrInvalidField is returned by EncodeFrame when a fixed-value header
	// field violates its documented constraint.
	ErrInvalidField = errors.New("invalid frame header field")
)

// FrameHeader precedes every binary audio frame.
type FrameHeader struct {
	Sequence      uint16 // wraps modulo 65536
	PayloadLen    uint16
	SampleRate    uint16
	Channels      uint8
	BitsPerSample uint8
	Flags         uint16 // reserved, must be 0
}

// Format returns the (sample_rate, channels, bits_per_sample) triple.
func (h FrameHeader) Format() AudioFormat {
	return AudioFormat{
		SampleRate:    h.SampleRate,
		Channels:      h.Channels,
		BitsPerSample: h.BitsPerSample,
	}
}

// AudioFormat is the audio parameter triple locked by the first frame of an
// utterance.
type AudioFormat struct {
	SampleRate    uint16
	Channels      uint8
	BitsPerSample uint8
}

func (f AudioFormat) String() string {
	return fmt.Sprintf("%dHz/%dch/%dbit", f.SampleRate, f.Channels, f.BitsPerSample)
}

// DecodeFrame splits a binary websocket message into its header and PCM
// payload. The payload aliases the input slice.
func DecodeFrame(b []byte) (FrameHeader, []byte, error) {
	if len(b) < HeaderSize {
		return FrameHeader{}, nil, fmt.Errorf("%w: got %d bytes, header needs %d", ErrMalformedFrame, len(b), HeaderSize)
	}

	h := FrameHeader{
		Sequence:      binary.LittleEndian.Uint16(b[0:2]),
		PayloadLen:    binary.LittleEndian.Uint16(b[2:4]),
		SampleRate:    binary.LittleEndian.Uint16(b[4:6]),
		Channels:      b[6],
		BitsPerSample: b[7],
		Flags:         binary.LittleEndian.Uint16(b[8:10]),
	}

	payload := b[HeaderSize:]
	if len(payload) != int(h.PayloadLen) {
		return FrameHeader{}, nil, fmt.Errorf("%w: payload_len=%d but %d bytes follow the header",
			ErrMalformedFrame, h.PayloadLen, len(payload))
	}

	return h, payload, nil
}

// EncodeFrame serializes a header and payload into one binary message.
// PayloadLen is taken from len(payload); the fixed-value fields must match
// the documented format. Used by simulators and tests; production replies
// go out as raw TTS bytes without a frame header.
func EncodeFrame(h FrameHeader, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: payload is %d bytes, max %d", ErrInvalidField, len(payload), MaxPayloadSize)
	}
	if h.SampleRate != SampleRate {
		return nil, fmt.Errorf("%w: sample_rate must be %d, got %d", ErrInvalidField, SampleRate, h.SampleRate)
	}
	if h.Channels != Channels {
		return nil, fmt.Errorf("%w: channels must be %d, got %d", ErrInvalidField, Channels, h.Channels)
	}
	if h.BitsPerSample != BitsPerSample {
		return nil, fmt.Errorf("%w: bits_per_sample must be %d, got %d", ErrInvalidField, BitsPerSample, h.BitsPerSample)
	}
	if h.Flags != 0 {
		return nil, fmt.Errorf("%w: flags must be 0, got %d", ErrInvalidField, h.Flags)
	}

	buf := make([]byte, HeaderSize+len(payload))
	binary.LittleEndian.PutUint16(buf[0:2], h.Sequence)
	binary.LittleEndian.PutUint16(buf[2:4], uint16(len(payload)))
	binary.LittleEndian.PutUint16(buf[4:6], h.SampleRate)
	buf[6] = h.Channels
	buf[7] = h.BitsPerSample
	binary.LittleEndian.PutUint16(buf[8:10], h.Flags)
	copy(buf[HeaderSize:], payload)

	return buf, nil
}
