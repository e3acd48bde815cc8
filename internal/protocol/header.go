package protocol

import (
	"encoding/binary"
	"fmt"
)

// Format selects the header layout for a bearer.
type Format uint8

const (
	// FormatData is the user-plane layout: D/C bit, timestamp flag, 12-bit SN.
	FormatData Format = iota + 1
	// FormatControl is the signalling layout: 5-bit SN.
	FormatControl
)

const (
	DataHeaderLen    = 2
	ControlHeaderLen = 1
	TimestampLen     = 8

	DataSNModulus    uint16 = 1 << 12
	ControlSNModulus uint16 = 1 << 5

	flagData      byte = 0x80
	flagTimestamp byte = 0x40
)

func (f Format) String() string {
	switch f {
	case FormatData:
		return "data"
	case FormatControl:
		return "control"
	default:
		return fmt.Sprintf("format(%d)", uint8(f))
	}
}

// SNModulus is the sequence number space of the format.
func (f Format) SNModulus() uint16 {
	if f == FormatData {
		return DataSNModulus
	}
	return ControlSNModulus
}

// Header is one decoded PDU header.
type Header struct {
	Format       Format
	SN           uint16
	HasTimestamp bool
	// Timestamp is unix nanoseconds at transmit time.
	Timestamp int64
}

// Len is the encoded size of h, timestamp included.
func (h Header) Len() int {
	switch h.Format {
	case FormatData:
		if h.HasTimestamp {
			return DataHeaderLen + TimestampLen
		}
		return DataHeaderLen
	case FormatControl:
		return ControlHeaderLen
	default:
		return 0
	}
}

// EncodeHeader writes h into the front of dst.
func EncodeHeader(dst []byte, h Header) error {
	if h.SN >= h.Format.SNModulus() {
		return fmt.Errorf("%w: sn=%d format=%s", ErrSNOutOfRange, h.SN, h.Format)
	}
	n := h.Len()
	if n == 0 {
		return ErrUnknownFormat
	}
	if len(dst) < n {
		return ErrShortBuffer
	}

	switch h.Format {
	case FormatControl:
		dst[0] = byte(h.SN) & 0x1F
	case FormatData:
		b0 := flagData | byte(h.SN>>8)&0x0F
		if h.HasTimestamp {
			b0 |= flagTimestamp
			binary.BigEndian.PutUint64(dst[DataHeaderLen:DataHeaderLen+TimestampLen], uint64(h.Timestamp))
		}
		dst[0] = b0
		dst[1] = byte(h.SN)
	}
	return nil
}

// DecodeHeader parses the header at the front of b for the given format.
func DecodeHeader(format Format, b []byte) (Header, error) {
	switch format {
	case FormatControl:
		if len(b) < ControlHeaderLen {
			return Header{}, ErrTruncated
		}
		return Header{Format: FormatControl, SN: uint16(b[0] & 0x1F)}, nil
	case FormatData:
		if len(b) < DataHeaderLen {
			return Header{}, ErrTruncated
		}
		if b[0]&flagData == 0 {
			return Header{}, ErrNotData
		}
		h := Header{
			Format: FormatData,
			SN:     uint16(b[0]&0x0F)<<8 | uint16(b[1]),
		}
		if b[0]&flagTimestamp != 0 {
			if len(b) < DataHeaderLen+TimestampLen {
				return Header{}, ErrTruncated
			}
			h.HasTimestamp = true
			h.Timestamp = int64(binary.BigEndian.Uint64(b[DataHeaderLen : DataHeaderLen+TimestampLen]))
		}
		return h, nil
	default:
		return Header{}, ErrUnknownFormat
	}
}
