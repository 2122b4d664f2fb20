package stack_test

import (
	"testing"

	"github.com/netstackd/tapip"
	"github.com/netstackd/tapip/tapip/stack"
)

type recordingSender struct {
	calls   int
	srcIP   [4]byte
	dstIP   [4]byte
	proto   tapip.IPProto
	payload []byte
}

func (s *recordingSender) SendIPv4(srcIP, dstIP [4]byte, proto tapip.IPProto, payload []byte) (stack.SendResult, error) {
	s.calls++
	s.srcIP, s.dstIP, s.proto, s.payload = srcIP, dstIP, proto, payload
	return stack.SendOK, nil
}

func buildICMPEchoRequest(payload []byte) []byte {
	buf := make([]byte, tapip.SizeICMPHeader+len(payload))
	hdr := tapip.ICMPHeader{Type: tapip.ICMPTypeEchoRequest}
	hdr.Put(buf[:tapip.SizeICMPHeader])
	copy(buf[tapip.SizeICMPHeader:], payload)
	hdr.Checksum = tapip.InternetChecksum(buf)
	hdr.Put(buf[:tapip.SizeICMPHeader])
	return buf
}

// TestHandleICMPEcho reproduces spec scenario 2.
func TestHandleICMPEcho(t *testing.T) {
	localIP := [4]byte{10, 0, 0, 4}
	srcIP := [4]byte{10, 0, 0, 1}
	req := buildICMPEchoRequest([]byte("hello"))

	sender := &recordingSender{}
	if err := stack.HandleICMPEcho(sender, localIP, srcIP, req); err != nil {
		t.Fatalf("HandleICMPEcho: %v", err)
	}
	if sender.calls != 1 {
		t.Fatalf("expected one reply, got %d", sender.calls)
	}
	if sender.srcIP != localIP || sender.dstIP != srcIP {
		t.Errorf("reply addresses = %v -> %v, want %v -> %v", sender.srcIP, sender.dstIP, localIP, srcIP)
	}
	if sender.proto != tapip.IPProtoICMP {
		t.Errorf("proto = %v, want ICMP", sender.proto)
	}
	reply := tapip.DecodeICMPHeader(sender.payload)
	if reply.Type != tapip.ICMPTypeEchoReply {
		t.Errorf("type = %v, want EchoReply", reply.Type)
	}
	gotPayload := sender.payload[tapip.SizeICMPHeader:]
	if string(gotPayload) != "hello" {
		t.Errorf("payload = %q, want %q", gotPayload, "hello")
	}
	if tapip.InternetChecksum(sender.payload) != 0 {
		t.Error("reply checksum does not validate")
	}
}

func TestHandleICMPOtherTypeDropped(t *testing.T) {
	buf := make([]byte, tapip.SizeICMPHeader)
	hdr := tapip.ICMPHeader{Type: tapip.ICMPType(13)} // timestamp request
	hdr.Put(buf)

	sender := &recordingSender{}
	err := stack.HandleICMPEcho(sender, [4]byte{}, [4]byte{}, buf)
	if err != stack.ErrUnsupportedProto {
		t.Fatalf("err = %v, want ErrUnsupportedProto", err)
	}
	if sender.calls != 0 {
		t.Error("expected no reply for non-echo-request type")
	}
}
