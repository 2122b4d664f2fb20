package stack

import (
	"net"

	"github.com/netstackd/tapip"
)

// ProtocolDemuxer receives the payload of an IPv4 datagram for sub-protocol
// processing, dispatched by the datagram's protocol field. Stack implements
// this by delegating to the ICMP responder, UDP port table and TCP module;
// IPv4 itself is generic over any implementation, which is the "context
// passed to the operation" pattern spec.md §9 asks for instead of a
// back-pointer to a singleton stack object.
type ProtocolDemuxer interface {
	HandleICMP(srcIP, dstIP [4]byte, payload []byte)
	HandleUDP(srcIP, dstIP [4]byte, payload []byte)
	HandleTCP(srcIP, dstIP [4]byte, payload []byte)
}

// IPv4Sender sends an IPv4 datagram, resolving the next-hop MAC via routing
// and ARP. ICMP, UDP and TCP egress are handed this narrow interface rather
// than the whole Stack.
type IPv4Sender interface {
	SendIPv4(srcIP, dstIP [4]byte, proto tapip.IPProto, payload []byte) (SendResult, error)
}

// ProcessIPv4 decodes raw as an IPv4 datagram and, if it validates,
// dispatches its payload to demux. Malformed datagrams, bad versions,
// undersized IHL and checksum mismatches are reported as errors for the
// caller to count in Stats and are never propagated further; unknown
// protocol numbers are reported via ErrUnsupportedProto.
func ProcessIPv4(raw []byte, demux ProtocolDemuxer) error {
	if len(raw) < tapip.SizeIPHeader {
		return ErrMalformedFrame
	}
	hdr := tapip.DecodeIPv4Header(raw)
	if hdr.Version() != 4 || hdr.IHL() < 5 {
		return ErrMalformedFrame
	}
	headerLen := hdr.HeaderLength()
	if len(raw) < headerLen {
		return ErrMalformedFrame
	}
	if tapip.InternetChecksum(raw[:headerLen]) != 0 {
		return ErrChecksumMismatch
	}
	total := int(hdr.TotalLength)
	if total < headerLen || total > len(raw) {
		return ErrMalformedFrame
	}
	payload := raw[headerLen:total]

	switch hdr.Protocol {
	case tapip.IPProtoICMP:
		demux.HandleICMP(hdr.Source, hdr.Destination, payload)
	case tapip.IPProtoUDP:
		demux.HandleUDP(hdr.Source, hdr.Destination, payload)
	case tapip.IPProtoTCP:
		demux.HandleTCP(hdr.Source, hdr.Destination, payload)
	default:
		return ErrUnsupportedProto
	}
	return nil
}

// SendIPv4 implements the egress side of spec.md §4.4: resolve a route,
// resolve the next-hop MAC via ARP (emitting a request on a miss), build
// the IPv4 header with the defaults the spec mandates, and hand the
// datagram to tx for Ethernet encapsulation.
func SendIPv4(routes *RouteTable, arp *ARPTable, tx FrameTransmitter, localMAC [6]byte, srcIP, dstIP [4]byte, proto tapip.IPProto, payload []byte) (SendResult, error) {
	route, ok := routes.Lookup(dstIP)
	if !ok {
		return SendRoutingError, ErrNoRoute
	}
	nextHop := route.NextHop(dstIP)

	arpEntry, ok := arp.Get(uint16(tapip.ARPProtoIPv4), nextHop)
	if !ok {
		if err := arp.SendRequest(tx, localMAC, srcIP, nextHop); err != nil {
			return SendARPMiss, err
		}
		return SendARPMiss, ErrARPMiss
	}

	headerLen := tapip.SizeIPHeader
	total := headerLen + len(payload)
	hdr := tapip.IPv4Header{
		TOS:         0,
		TotalLength: uint16(total),
		ID:          0,
		Flags:       0,
		TTL:         255,
		Protocol:    proto,
		Source:      srcIP,
		Destination: dstIP,
	}
	hdr.SetVersionAndIHL(4, 5)

	buf := make([]byte, total)
	hdr.Put(buf[:headerLen])
	hdr.Checksum = tapip.InternetChecksum(buf[:headerLen])
	hdr.Put(buf[:headerLen])
	copy(buf[headerLen:], payload)

	err := tx.SendFrame(tapip.EtherTypeIPv4, net.HardwareAddr(arpEntry.SenderMAC[:]), buf)
	if err != nil {
		return SendRoutingError, err
	}
	return SendOK, nil
}
