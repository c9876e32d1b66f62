package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// HeaderLen is the fixed header every message starts with:
// sender id (u32) then event id (u32), both big-endian.
const HeaderLen = 8

const (
	SenderOffset = 0
	EventOffset  = 4
)

var ErrShortHeader = errors.New("frame: short fixed header")

// Header is the fixed wire header.
type Header struct {
	SenderID uint32
	EventID  uint32
}

func (h Header) String() string {
	return fmt.Sprintf("sender=%d event=%d", h.SenderID, h.EventID)
}

// PutHeader writes h into the first HeaderLen bytes of dst.
func PutHeader(dst []byte, h Header) error {
	if len(dst) < HeaderLen {
		return ErrShortHeader
	}
	binary.BigEndian.PutUint32(dst[SenderOffset:SenderOffset+4], h.SenderID)
	binary.BigEndian.PutUint32(dst[EventOffset:EventOffset+4], h.EventID)
	return nil
}

func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderLen)
	_ = PutHeader(buf, h)
	return buf
}

func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderLen {
		return Header{}, fmt.Errorf("%w: %d bytes", ErrShortHeader, len(b))
	}
	return Header{
		SenderID: binary.BigEndian.Uint32(b[SenderOffset : SenderOffset+4]),
		EventID:  binary.BigEndian.Uint32(b[EventOffset : EventOffset+4]),
	}, nil
}

// PeekEventID reads only the event id, for routing before a full decode.
func PeekEventID(b []byte) (uint32, bool) {
	if len(b) < EventOffset+4 {
		return 0, false
	}
	return binary.BigEndian.Uint32(b[EventOffset : EventOffset+4]), true
}
