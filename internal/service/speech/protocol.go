package speech

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
)

// Binary framing of the Volcengine speech websocket API. Every frame is a
// 4-byte header, optional sequence and event metadata, a big-endian payload
// size and the payload.

const protocolVersion = 0b0001

// MessageType is the high nibble of header byte 1.
type MessageType uint8

const (
	FullClientRequest       MessageType = 0b0001
	FullServerResponse      MessageType = 0b1001
	AudioOnlyServerResponse MessageType = 0b1011
	ErrorMessage            MessageType = 0b1111
)

// MessageFlags is the low nibble of header byte 1.
type MessageFlags uint8

const (
	NoSequenceNumber       MessageFlags = 0b0000
	PositiveSequenceNumber MessageFlags = 0b0001
	LastPacketNoSequence   MessageFlags = 0b0010
	NegativeSequenceNumber MessageFlags = 0b0011
	WithEvent              MessageFlags = 0b0100
)

// EventType tags frames sent with WithEvent.
type EventType int32

const (
	EventTypeNone               EventType = 0
	EventTypeStartConnection    EventType = 1
	EventTypeFinishConnection   EventType = 2
	EventTypeConnectionStarted  EventType = 50
	EventTypeConnectionFailed   EventType = 51
	EventTypeConnectionFinished EventType = 52
	EventTypeSessionStarted     EventType = 150
	EventTypeSessionFinished    EventType = 152
	EventTypeSessionFailed      EventType = 153
)

// Serialization is the high nibble of header byte 2.
type Serialization uint8

const (
	NoSerialization   Serialization = 0b0000
	JSONSerialization Serialization = 0b0001
)

// Compression is the low nibble of header byte 2.
type Compression uint8

const (
	NoCompression   Compression = 0b0000
	GzipCompression Compression = 0b0001
)

// Header is the fixed 4-byte frame prefix.
type Header struct {
	Version       uint8
	Size          uint8 // in 4-byte words
	Type          MessageType
	Flags         MessageFlags
	Serialization Serialization
	Compression   Compression
	Reserved      uint8
}

// Frame is one decoded websocket message.
type Frame struct {
	Header    Header
	Sequence  int32
	Event     EventType
	SessionID string
	ConnectID string
	ErrorCode uint32
	Payload   []byte
}

func newHeader(t MessageType, flags MessageFlags, ser Serialization, comp Compression) Header {
	return Header{
		Version:       protocolVersion,
		Size:          0b0001,
		Type:          t,
		Flags:         flags,
		Serialization: ser,
		Compression:   comp,
	}
}

func (h Header) encode() []byte {
	return []byte{
		(h.Version << 4) | h.Size,
		(uint8(h.Type) << 4) | uint8(h.Flags),
		(uint8(h.Serialization) << 4) | uint8(h.Compression),
		h.Reserved,
	}
}

func decodeHeader(data []byte) (Header, error) {
	if len(data) < 4 {
		return Header{}, fmt.Errorf("header too short: got %d bytes, need 4", len(data))
	}

	h := Header{
		Version:       (data[0] >> 4) & 0x0F,
		Size:          data[0] & 0x0F,
		Type:          MessageType((data[1] >> 4) & 0x0F),
		Flags:         MessageFlags(data[1] & 0x0F),
		Serialization: Serialization((data[2] >> 4) & 0x0F),
		Compression:   Compression(data[2] & 0x0F),
		Reserved:      data[3],
	}
	if h.Version != protocolVersion {
		return Header{}, fmt.Errorf("unsupported protocol version: %d", h.Version)
	}
	return h, nil
}

func hasSequence(flags MessageFlags) bool {
	switch flags & 0b0011 {
	case PositiveSequenceNumber, NegativeSequenceNumber:
		return true
	}
	return false
}

// EncodeFrame serializes f.
func EncodeFrame(f *Frame) []byte {
	var buf bytes.Buffer
	buf.Write(f.Header.encode())

	if hasSequence(f.Header.Flags) {
		_ = binary.Write(&buf, binary.BigEndian, f.Sequence)
	}

	if f.Header.Flags&WithEvent == WithEvent {
		_ = binary.Write(&buf, binary.BigEndian, int32(f.Event))
		if !eventSkipsSessionID(f.Event) {
			writeSized(&buf, []byte(f.SessionID))
		}
		if eventHasConnectID(f.Event) {
			writeSized(&buf, []byte(f.ConnectID))
		}
	}

	if f.Header.Type == ErrorMessage {
		_ = binary.Write(&buf, binary.BigEndian, f.ErrorCode)
	}
	writeSized(&buf, f.Payload)
	return buf.Bytes()
}

// DecodeFrame parses one frame from r.
func DecodeFrame(r io.Reader) (*Frame, error) {
	raw := make([]byte, 4)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	header, err := decodeHeader(raw)
	if err != nil {
		return nil, err
	}

	f := &Frame{Header: header}

	if extra := int(header.Size)*4 - 4; extra > 0 {
		if _, err := io.CopyN(io.Discard, r, int64(extra)); err != nil {
			return nil, fmt.Errorf("read extended header: %w", err)
		}
	}

	if hasSequence(header.Flags) {
		if err := binary.Read(r, binary.BigEndian, &f.Sequence); err != nil {
			return nil, fmt.Errorf("read sequence: %w", err)
		}
	}

	if header.Flags&WithEvent == WithEvent {
		var event int32
		if err := binary.Read(r, binary.BigEndian, &event); err != nil {
			return nil, fmt.Errorf("read event type: %w", err)
		}
		f.Event = EventType(event)

		if !eventSkipsSessionID(f.Event) {
			session, err := readSized(r)
			if err != nil {
				return nil, fmt.Errorf("read session id: %w", err)
			}
			f.SessionID = string(session)
		}
		if eventHasConnectID(f.Event) {
			connect, err := readSized(r)
			if err != nil {
				return nil, fmt.Errorf("read connect id: %w", err)
			}
			f.ConnectID = string(connect)
		}
	}

	if header.Type == ErrorMessage {
		if err := binary.Read(r, binary.BigEndian, &f.ErrorCode); err != nil {
			return nil, fmt.Errorf("read error code: %w", err)
		}
	}

	payload, err := readSized(r)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	f.Payload = payload
	return f, nil
}

// NewFullClientRequest wraps a JSON request body.
func NewFullClientRequest(payload []byte) *Frame {
	return &Frame{
		Header:  newHeader(FullClientRequest, NoSequenceNumber, JSONSerialization, NoCompression),
		Payload: payload,
	}
}

// IsLast reports whether the frame closes the stream.
func (f *Frame) IsLast() bool {
	switch f.Header.Flags & 0b0011 {
	case LastPacketNoSequence, NegativeSequenceNumber:
		return true
	}
	return f.Header.Flags&WithEvent == WithEvent && f.Event == EventTypeSessionFinished
}

// Body returns the payload, inflated when gzip-compressed.
func (f *Frame) Body() ([]byte, error) {
	switch f.Header.Compression {
	case NoCompression:
		return f.Payload, nil
	case GzipCompression:
		zr, err := gzip.NewReader(bytes.NewReader(f.Payload))
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		defer zr.Close()
		return io.ReadAll(zr)
	default:
		return nil, fmt.Errorf("unsupported compression method: %d", f.Header.Compression)
	}
}

func writeSized(buf *bytes.Buffer, data []byte) {
	_ = binary.Write(buf, binary.BigEndian, uint32(len(data)))
	buf.Write(data)
}

func readSized(r io.Reader) ([]byte, error) {
	var size uint32
	if err := binary.Read(r, binary.BigEndian, &size); err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, nil
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("expected %d bytes: %w", size, err)
	}
	return data, nil
}

func eventSkipsSessionID(event EventType) bool {
	switch event {
	case EventTypeStartConnection, EventTypeFinishConnection,
		EventTypeConnectionStarted, EventTypeConnectionFailed,
		EventTypeConnectionFinished:
		return true
	}
	return false
}

func eventHasConnectID(event EventType) bool {
	switch event {
	case EventTypeConnectionStarted, EventTypeConnectionFailed, EventTypeConnectionFinished:
		return true
	}
	return false
}
