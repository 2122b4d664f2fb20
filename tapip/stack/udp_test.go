package stack_test

import (
	"testing"

	"github.com/netstackd/tapip"
	"github.com/netstackd/tapip/tapip/stack"
)

type recordingSink struct {
	delivered  bool
	destPort   uint16
	peerIP     [4]byte
	peerPort   uint16
	payload    []byte
	bindResult bool
}

func (s *recordingSink) Deliver(destPort uint16, peerIP [4]byte, peerPort uint16, payload []byte) bool {
	s.delivered = true
	s.destPort, s.peerIP, s.peerPort, s.payload = destPort, peerIP, peerPort, payload
	return s.bindResult
}

// TestHandleUDPDelivers reproduces spec scenario 3.
func TestHandleUDPDelivers(t *testing.T) {
	srcIP := [4]byte{10, 0, 0, 1}
	dstIP := [4]byte{10, 0, 0, 4}
	segment := stack.BuildUDP(srcIP, dstIP, 5555, 7777, []byte("ping"))

	sink := &recordingSink{bindResult: true}
	if err := stack.HandleUDP(sink, srcIP, dstIP, segment); err != nil {
		t.Fatalf("HandleUDP: %v", err)
	}
	if !sink.delivered {
		t.Fatal("expected delivery")
	}
	if sink.destPort != 7777 || sink.peerPort != 5555 || sink.peerIP != srcIP {
		t.Errorf("delivered to port %d from %v:%d, want 7777 from %v:5555", sink.destPort, sink.peerIP, sink.peerPort, srcIP)
	}
	if string(sink.payload) != "ping" {
		t.Errorf("payload = %q, want %q", sink.payload, "ping")
	}
}

func TestHandleUDPPortUnbound(t *testing.T) {
	srcIP := [4]byte{10, 0, 0, 1}
	dstIP := [4]byte{10, 0, 0, 4}
	segment := stack.BuildUDP(srcIP, dstIP, 5555, 9999, []byte("x"))

	sink := &recordingSink{bindResult: false}
	err := stack.HandleUDP(sink, srcIP, dstIP, segment)
	if err != stack.ErrPortUnbound {
		t.Fatalf("err = %v, want ErrPortUnbound", err)
	}
}

func TestHandleUDPZeroChecksumAccepted(t *testing.T) {
	srcIP := [4]byte{10, 0, 0, 1}
	dstIP := [4]byte{10, 0, 0, 4}
	payload := []byte("ping")
	length := tapip.SizeUDPHeader + len(payload)
	buf := make([]byte, length)
	hdr := tapip.UDPHeader{SourcePort: 5555, DestinationPort: 7777, Length: uint16(length)}
	hdr.Put(buf[:tapip.SizeUDPHeader])
	copy(buf[tapip.SizeUDPHeader:], payload)

	sink := &recordingSink{bindResult: true}
	if err := stack.HandleUDP(sink, srcIP, dstIP, buf); err != nil {
		t.Fatalf("HandleUDP with zero checksum: %v", err)
	}
	if !sink.delivered {
		t.Error("expected delivery with unvalidated (zero) checksum")
	}
}

func TestHandleUDPChecksumMismatch(t *testing.T) {
	srcIP := [4]byte{10, 0, 0, 1}
	dstIP := [4]byte{10, 0, 0, 4}
	segment := stack.BuildUDP(srcIP, dstIP, 5555, 7777, []byte("ping"))
	segment[6] ^= 0xff // corrupt checksum high byte

	sink := &recordingSink{bindResult: true}
	err := stack.HandleUDP(sink, srcIP, dstIP, segment)
	if err != stack.ErrChecksumMismatch {
		t.Fatalf("err = %v, want ErrChecksumMismatch", err)
	}
}
