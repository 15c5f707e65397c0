package speech

import (
	"bytes"
	"compress/gzip"
	"testing"
)

func TestFrameRoundTripWithEvent(t *testing.T) {
	in := &Frame{
		Header:    newHeader(FullServerResponse, WithEvent, JSONSerialization, NoCompression),
		Event:     EventTypeSessionFinished,
		SessionID: "session-1",
		Payload:   []byte(`{"code":0}`),
	}

	out, err := DecodeFrame(bytes.NewReader(EncodeFrame(in)))
	if err != nil {
		t.Fatalf("DecodeFrame err: %v", err)
	}
	if out.Event != EventTypeSessionFinished || out.SessionID != "session-1" {
		t.Fatalf("event metadata lost: %+v", out)
	}
	if string(out.Payload) != `{"code":0}` {
		t.Fatalf("unexpected payload: %s", out.Payload)
	}
	if !out.IsLast() {
		t.Fatal("session finished frame should be last")
	}
}

func TestFrameConnectEventSkipsSessionID(t *testing.T) {
	in := &Frame{
		Header:    newHeader(FullServerResponse, WithEvent, JSONSerialization, NoCompression),
		Event:     EventTypeConnectionStarted,
		ConnectID: "conn-1",
	}

	out, err := DecodeFrame(bytes.NewReader(EncodeFrame(in)))
	if err != nil {
		t.Fatalf("DecodeFrame err: %v", err)
	}
	if out.ConnectID != "conn-1" || out.SessionID != "" {
		t.Fatalf("unexpected ids: %+v", out)
	}
}

func TestFrameNegativeSequenceIsLast(t *testing.T) {
	in := &Frame{
		Header:   newHeader(AudioOnlyServerResponse, NegativeSequenceNumber, NoSerialization, NoCompression),
		Sequence: -3,
		Payload:  []byte{1, 2, 3},
	}

	out, err := DecodeFrame(bytes.NewReader(EncodeFrame(in)))
	if err != nil {
		t.Fatalf("DecodeFrame err: %v", err)
	}
	if out.Sequence != -3 || !out.IsLast() {
		t.Fatalf("unexpected sequence frame: %+v", out)
	}
}

func TestFrameErrorCode(t *testing.T) {
	in := &Frame{
		Header:    newHeader(ErrorMessage, NoSequenceNumber, JSONSerialization, NoCompression),
		ErrorCode: 45000001,
		Payload:   []byte("quota exceeded"),
	}

	out, err := DecodeFrame(bytes.NewReader(EncodeFrame(in)))
	if err != nil {
		t.Fatalf("DecodeFrame err: %v", err)
	}
	if out.ErrorCode != 45000001 || string(out.Payload) != "quota exceeded" {
		t.Fatalf("unexpected error frame: %+v", out)
	}
}

func TestFrameBodyInflatesGzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, _ = zw.Write([]byte("hello"))
	_ = zw.Close()

	f := &Frame{Header: newHeader(FullServerResponse, NoSequenceNumber, JSONSerialization, GzipCompression), Payload: buf.Bytes()}
	body, err := f.Body()
	if err != nil {
		t.Fatalf("Body err: %v", err)
	}
	if string(body) != "hello" {
		t.Fatalf("unexpected body: %q", body)
	}
}

func TestDecodeHeaderRejectsVersion(t *testing.T) {
	if _, err := decodeHeader([]byte{0x21, 0x90, 0x10, 0x00}); err == nil {
		t.Fatal("expected version error")
	}
	if _, err := decodeHeader([]byte{0x11}); err == nil {
		t.Fatal("expected short header error")
	}
}
