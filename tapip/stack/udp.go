package stack

import "github.com/netstackd/tapip"

// DatagramSink receives a UDP payload already demultiplexed by destination
// port. It reports whether the port had a listener; ok=false tells the
// caller to count the datagram as dropped-port-unbound rather than treat it
// as delivered. tapip/socket.Table implements this, but tapip/stack never
// imports that package — it only depends on this interface, keeping the
// protocol engine decoupled from the application-facing transport (spec.md
// §6 "not its transport over any particular IPC").
type DatagramSink interface {
	Deliver(destPort uint16, peerIP [4]byte, peerPort uint16, payload []byte) (ok bool)
}

// HandleUDP decodes a UDP datagram and, if the pseudo-header checksum (when
// present) validates, delivers it to sink. A checksum of zero is accepted
// unconditionally per the UDP/IPv4 "not computed" convention (spec.md §4.6).
func HandleUDP(sink DatagramSink, srcIP, dstIP [4]byte, raw []byte) error {
	if len(raw) < tapip.SizeUDPHeader {
		return ErrMalformedFrame
	}
	hdr := tapip.DecodeUDPHeader(raw)
	if int(hdr.Length) > len(raw) || hdr.Length < tapip.SizeUDPHeader {
		return ErrMalformedFrame
	}
	segment := raw[:hdr.Length]

	if hdr.Checksum != 0 && pseudoHeaderChecksum(srcIP, dstIP, tapip.IPProtoUDP, segment) != 0 {
		return ErrChecksumMismatch
	}

	payload := segment[tapip.SizeUDPHeader:]
	if !sink.Deliver(hdr.DestinationPort, srcIP, hdr.SourcePort, payload) {
		return ErrPortUnbound
	}
	return nil
}

// BuildUDP constructs a UDP datagram with the supplied ports and payload,
// computing the pseudo-header checksum per spec.md §3/§4.6.
func BuildUDP(srcIP, dstIP [4]byte, srcPort, dstPort uint16, payload []byte) []byte {
	length := tapip.SizeUDPHeader + len(payload)
	buf := make([]byte, length)
	hdr := tapip.UDPHeader{
		SourcePort:      srcPort,
		DestinationPort: dstPort,
		Length:          uint16(length),
		Checksum:        0,
	}
	hdr.Put(buf[:tapip.SizeUDPHeader])
	copy(buf[tapip.SizeUDPHeader:], payload)

	hdr.Checksum = pseudoHeaderChecksum(srcIP, dstIP, tapip.IPProtoUDP, buf)
	hdr.Put(buf[:tapip.SizeUDPHeader])
	return buf
}
