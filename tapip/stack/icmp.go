package stack

import "github.com/netstackd/tapip"

// HandleICMPEcho implements the only ICMP behavior spec.md §4.5 requires:
// answer ECHO-REQUEST with ECHO-REPLY, mirroring the payload verbatim so
// any identifier/sequence fields an application embedded in it survive.
// Any other ICMP type is dropped (the caller logs it).
func HandleICMPEcho(sender IPv4Sender, localIP [4]byte, srcIP [4]byte, payload []byte) error {
	if len(payload) < tapip.SizeICMPHeader {
		return ErrMalformedFrame
	}
	hdr := tapip.DecodeICMPHeader(payload)
	if hdr.Type != tapip.ICMPTypeEchoRequest {
		return ErrUnsupportedProto
	}

	reply := tapip.ICMPHeader{Type: tapip.ICMPTypeEchoReply, Code: 0}
	buf := make([]byte, len(payload))
	reply.Put(buf[:tapip.SizeICMPHeader])
	copy(buf[tapip.SizeICMPHeader:], payload[tapip.SizeICMPHeader:])

	reply.Checksum = tapip.InternetChecksum(buf)
	reply.Put(buf[:tapip.SizeICMPHeader])

	_, err := sender.SendIPv4(localIP, srcIP, tapip.IPProtoICMP, buf)
	return err
}
