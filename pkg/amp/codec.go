package amp

import (
	"encoding/binary"
	"errors"
)

// ErrIncomplete is returned when the buffer does not yet hold a whole
// frame. The caller should keep the buffer as-is and wait for more bytes
// to arrive off the wire before decoding again.
var ErrIncomplete = errors.New("amp: incomplete frame")

// ErrMalformed is returned when the buffer begins with bytes that cannot
// be a valid frame (bad field type, length overflow, truncated header).
// Per the decode-loop contract, a malformed frame never yields a partial
// decode: the caller must discard everything and wait for the next read.
var ErrMalformed = errors.New("amp: malformed frame")

const (
	frameLenSize  = 4 // uint32 BE, length of everything after this prefix
	fieldCntSize  = 2 // uint16 BE, number of fields in the frame
	fieldHdrSize  = 1 + 4
	maxFrameBytes = 64 << 20 // 64 MiB, guards against a bogus length prefix
)

// Encode serializes a Message into a single self-delimiting AMP frame.
func Encode(m *Message) ([]byte, error) {
	body := make([]byte, fieldCntSize)
	binary.BigEndian.PutUint16(body, uint16(len(m.Fields)))
	for _, f := range m.Fields {
		hdr := make([]byte, fieldHdrSize)
		hdr[0] = byte(f.Type)
		binary.BigEndian.PutUint32(hdr[1:], uint32(len(f.Raw)))
		body = append(body, hdr...)
		body = append(body, f.Raw...)
	}

	out := make([]byte, frameLenSize, frameLenSize+len(body))
	binary.BigEndian.PutUint32(out, uint32(len(body)))
	out = append(out, body...)
	return out, nil
}

// Decode consumes exactly one frame from the front of buf. It returns the
// decoded message and the number of bytes consumed. On ErrIncomplete no
// bytes were consumed and the caller should wait for more data. On
// ErrMalformed the frame is corrupt; the caller must discard the whole
// buffer rather than retry at the same offset, since there is no way to
// know where the next valid frame boundary would be.
func Decode(buf []byte) (*Message, int, error) {
	if len(buf) < frameLenSize {
		return nil, 0, ErrIncomplete
	}

	frameLen := binary.BigEndian.Uint32(buf[:frameLenSize])
	if frameLen > maxFrameBytes {
		return nil, 0, ErrMalformed
	}

	total := frameLenSize + int(frameLen)
	if len(buf) < total {
		return nil, 0, ErrIncomplete
	}

	body := buf[frameLenSize:total]
	if len(body) < fieldCntSize {
		return nil, 0, ErrMalformed
	}

	count := binary.BigEndian.Uint16(body[:fieldCntSize])
	body = body[fieldCntSize:]

	fields := make([]Field, 0, count)
	for i := uint16(0); i < count; i++ {
		if len(body) < fieldHdrSize {
			return nil, 0, ErrMalformed
		}
		typ := Type(body[0])
		if typ < Blob || typ > JSON {
			return nil, 0, ErrMalformed
		}
		length := binary.BigEndian.Uint32(body[1:fieldHdrSize])
		body = body[fieldHdrSize:]
		if uint32(len(body)) < length {
			return nil, 0, ErrMalformed
		}
		raw := make([]byte, length)
		copy(raw, body[:length])
		body = body[length:]
		fields = append(fields, Field{Type: typ, Raw: raw})
	}

	if len(body) != 0 {
		return nil, 0, ErrMalformed
	}

	return &Message{Fields: fields}, total, nil
}
