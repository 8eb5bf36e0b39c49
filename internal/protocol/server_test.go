package protocol

import (
	"bytes"
	"testing"
)

func frameRequest(t *testing.T, messageType MessageType, requestID string, payload []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteByte(byte(MessagePackTypeFixedArray3))
	buf.WriteByte(byte(MessagePackTypeU8))
	buf.WriteByte(byte(messageType))
	for _, part := range [][]byte{[]byte(requestID), payload} {
		buf.WriteByte(byte(MessagePackTypeBin8))
		buf.WriteByte(byte(len(part)))
		buf.Write(part)
	}
	return buf.Bytes()
}

func readFrame(t *testing.T, buf *bytes.Buffer) (MessageType, string, []byte) {
	t.Helper()
	if b, _ := buf.ReadByte(); MessagePackType(b) != MessagePackTypeFixedArray3 {
		t.Fatalf("expected fixed-array-3 marker, got 0x%02x", b)
	}
	if b, _ := buf.ReadByte(); MessagePackType(b) != MessagePackTypeU8 {
		t.Fatalf("expected u8 marker, got 0x%02x", b)
	}
	mt, _ := buf.ReadByte()
	readBin := func() []byte {
		if b, _ := buf.ReadByte(); MessagePackType(b) != MessagePackTypeBin8 {
			t.Fatalf("expected bin8 marker, got 0x%02x", b)
		}
		n, _ := buf.ReadByte()
		data := make([]byte, n)
		buf.Read(data)
		return data
	}
	method := readBin()
	payload := readBin()
	return MessageType(mt), string(method), payload
}

func TestServerEchoRoundTrip(t *testing.T) {
	in := bytes.NewBuffer(frameRequest(t, MessageTypeRequest, "echo:1", []byte(`{"ping":true}`)))
	var out, errOut bytes.Buffer

	s := New(&Options{In: in, Out: &out, Err: &errOut, Cwd: "/"})
	if err := s.Run(); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	mt, method, payload := readFrame(t, &out)
	if mt != MessageTypeResponse {
		t.Fatalf("expected response message type, got %s", mt)
	}
	if method != "echo:1" {
		t.Fatalf("expected echoed request id, got %q", method)
	}
	if string(payload) != `{"ping":true}` {
		t.Fatalf("expected payload echoed verbatim, got %q", payload)
	}
}

func TestServerUnknownMethodSendsError(t *testing.T) {
	in := bytes.NewBuffer(frameRequest(t, MessageTypeRequest, "bogus:1", []byte(`{}`)))
	var out bytes.Buffer

	s := New(&Options{In: in, Out: &out, Err: &bytes.Buffer{}, Cwd: "/"})
	if err := s.Run(); err != nil {
		t.Fatalf("Run should survive an unknown method, got %v", err)
	}

	mt, _, payload := readFrame(t, &out)
	if mt != MessageTypeError {
		t.Fatalf("expected error message type, got %s", mt)
	}
	if !bytes.Contains(payload, []byte("unknown method")) {
		t.Fatalf("expected unknown-method error text, got %q", payload)
	}
}

func TestServerRejectsBadFraming(t *testing.T) {
	in := bytes.NewBuffer([]byte{0x00, 0x01, 0x02})
	var out bytes.Buffer

	s := New(&Options{In: in, Out: &out, Err: &bytes.Buffer{}, Cwd: "/"})
	if err := s.Run(); err == nil {
		t.Fatal("expected a framing error for garbage input")
	}
}

func TestExtractMethod(t *testing.T) {
	if got := extractMethod("transform:42"); got != "transform" {
		t.Fatalf("extractMethod = %q", got)
	}
	if got := extractMethod("echo"); got != "echo" {
		t.Fatalf("extractMethod without id = %q", got)
	}
}
