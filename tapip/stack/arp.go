package stack

import (
	"net"

	"github.com/netstackd/tapip"
)

// ARPState reports whether a cached entry's MAC is usable yet. The core
// never populates Pending entries itself (no outstanding-request queue is
// kept); it exists so a future pending-packet extension (spec.md §9 "ARP
// pending state and retry") has a state to transition out of.
type ARPState uint8

const (
	ARPResolved ARPState = iota
	ARPPending
)

// ARPEntry is one row of the ARP table, keyed by (ProtoType, SenderIP).
type ARPEntry struct {
	HardwareType uint16
	SenderIP     [4]byte
	SenderMAC    [6]byte
	State        ARPState
}

type arpKey struct {
	protoType uint16
	senderIP  [4]byte
}

// FrameTransmitter sends a fully built protocol payload wrapped in an
// Ethernet frame. ARP and IPv4 egress both need only this one capability
// from the stack coordinator, so it is the collaborator interface they are
// handed rather than a back-pointer to the whole Stack (spec.md §9).
type FrameTransmitter interface {
	SendFrame(ethertype tapip.EtherType, dst net.HardwareAddr, payload []byte) error
}

// ARPTable implements RFC 826's address resolution algorithm: a lookup
// table plus request/reply processing. It supports exactly one hardware
// type (Ethernet) and one protocol type (IPv4), matching spec.md §3.
type ARPTable struct {
	entries map[arpKey]ARPEntry
	log     logger
}

// NewARPTable returns an empty ARP table.
func NewARPTable() *ARPTable {
	return &ARPTable{entries: make(map[arpKey]ARPEntry)}
}

func (t *ARPTable) SetLogger(l logger) { t.log = l }

// Get performs a pure lookup with no side effects.
func (t *ARPTable) Get(protoType uint16, ip [4]byte) (ARPEntry, bool) {
	e, ok := t.entries[arpKey{protoType, ip}]
	return e, ok
}

func supportedHardwareType(h uint16) bool { return h == tapip.ARPHardwareEthernet }
func supportedProtoType(p uint16) bool    { return p == tapip.ARPProtoIPv4 }

// SendRequest constructs and transmits an ARP REQUEST for targetIP, per
// spec.md §4.3: sender fields are the local identity, target-MAC is the
// zero address, and the frame is sent to the Ethernet broadcast address.
func (t *ARPTable) SendRequest(tx FrameTransmitter, localMAC [6]byte, localIP [4]byte, targetIP [4]byte) error {
	hdr := tapip.ARPv4Header{
		HardwareType:   tapip.ARPHardwareEthernet,
		ProtoType:      tapip.ARPProtoIPv4,
		HardwareLength: 6,
		ProtoLength:    4,
		Operation:      tapip.ARPRequest,
		HardwareSender: localMAC,
		ProtoSender:    localIP,
		HardwareTarget: [6]byte{},
		ProtoTarget:    targetIP,
	}
	var buf [tapip.SizeARPv4Header]byte
	hdr.Put(buf[:])
	t.log.debug("arp:send-request", slogAttrIP("target", targetIP))
	return tx.SendFrame(tapip.EtherTypeARP, tapip.Broadcast, buf[:])
}

// Process decodes an inbound ARP datagram and drives RFC 826's merge
// algorithm: unsupported hardware/protocol types are silently discarded;
// the table is updated for the sender regardless of the datagram's target;
// requests addressed to localIP are answered with a REPLY.
func (t *ARPTable) Process(tx FrameTransmitter, localMAC [6]byte, localIP [4]byte, raw []byte) error {
	if len(raw) < tapip.SizeARPv4Header {
		return ErrMalformedFrame
	}
	hdr := tapip.DecodeARPv4Header(raw)
	if !supportedHardwareType(hdr.HardwareType) || !supportedProtoType(hdr.ProtoType) {
		return ErrUnsupportedARPType
	}

	key := arpKey{hdr.ProtoType, hdr.ProtoSender}
	merge := false
	if existing, ok := t.entries[key]; ok {
		existing.SenderMAC = hdr.HardwareSender
		t.entries[key] = existing
		merge = true
	}

	if hdr.ProtoTarget != localIP {
		return nil
	}

	if !merge {
		t.entries[key] = ARPEntry{
			HardwareType: hdr.HardwareType,
			SenderIP:     hdr.ProtoSender,
			SenderMAC:    hdr.HardwareSender,
			State:        ARPResolved,
		}
	}

	if hdr.Operation != tapip.ARPRequest {
		return nil
	}

	reply := tapip.ARPv4Header{
		HardwareType:   hdr.HardwareType,
		ProtoType:      hdr.ProtoType,
		HardwareLength: hdr.HardwareLength,
		ProtoLength:    hdr.ProtoLength,
		Operation:      tapip.ARPReply,
		HardwareSender: localMAC,
		ProtoSender:    localIP,
		HardwareTarget: hdr.HardwareSender,
		ProtoTarget:    hdr.ProtoSender,
	}
	var buf [tapip.SizeARPv4Header]byte
	reply.Put(buf[:])
	t.log.debug("arp:reply", slogAttrIP("to", reply.ProtoTarget))
	return tx.SendFrame(tapip.EtherTypeARP, net.HardwareAddr(reply.HardwareTarget[:]), buf[:])
}
