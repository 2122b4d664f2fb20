package stack

import (
	"fmt"
	"log/slog"
	"net"

	"github.com/netstackd/tapip"
)

// Config bundles the identity and policy values a Stack needs at
// construction: the node's own MAC/IP (spec.md §6 CLI defaults), the UDP
// sink it delivers datagrams into, and the port the TCP module listens on.
type Config struct {
	LocalMAC    [6]byte
	LocalIP     [4]byte
	UDPSink     DatagramSink
	TCPPort     uint16
	InitialSeq  uint32 // 0 means DefaultInitialSeq
}

// Stack is the coordinator of spec.md §4.8: it owns a TAP handle, the
// node's identity, the routing table, the ARP table and the TCP module,
// and drives ingress dispatch and egress encapsulation. It implements
// FrameTransmitter, IPv4Sender and ProtocolDemuxer so the lower modules
// never hold a reference back to it directly — they are handed the
// narrower interface their call actually needs.
type Stack struct {
	tap      TapDevice
	localMAC [6]byte
	localIP  [4]byte

	Routes *RouteTable
	ARP    *ARPTable
	TCP    *TCPModule
	UDP    DatagramSink

	Stats Stats
	log   logger
}

// New constructs a Stack bound to tap, with a routing table pre-populated
// with a default route through tap's own address (spec.md §4.2's initial
// population), mirroring the source's Route_Module.initialize().
func New(tap TapDevice, cfg Config) *Stack {
	s := &Stack{
		tap:      tap,
		localMAC: cfg.LocalMAC,
		localIP:  cfg.LocalIP,
		Routes:   NewRouteTable(),
		ARP:      NewARPTable(),
		UDP:      cfg.UDPSink,
	}
	initialSeq := cfg.InitialSeq
	if initialSeq == 0 {
		initialSeq = DefaultInitialSeq
	}
	s.TCP = NewTCPModule(cfg.TCPPort)
	s.TCP.InitialSeq = initialSeq

	netmask := tap.Netmask()
	s.Routes.Add(RouteEntry{
		Destination: [4]byte{},
		Gateway:     tap.Addr(),
		Netmask:     [4]byte{},
		Flags:       RouteUp | RouteGateway,
		Interface:   "tap0",
	})
	s.Routes.Add(RouteEntry{
		Destination: maskAddr(tap.Addr(), netmask),
		Gateway:     [4]byte{},
		Netmask:     netmask,
		Flags:       RouteUp,
		Interface:   "tap0",
	})
	return s
}

func maskAddr(addr, mask [4]byte) (out [4]byte) {
	for i := range out {
		out[i] = addr[i] & mask[i]
	}
	return out
}

// SetLogger wires a structured logger into the Stack and every module that
// embeds one. A nil logger is valid and silently drops all log calls.
func (s *Stack) SetLogger(l *slog.Logger) {
	s.log = logger{log: l}
	s.ARP.SetLogger(s.log)
	s.TCP.SetLogger(s.log)
}

// RunOnce reads one frame from the TAP and fully processes it, including
// any synchronous reply, before returning — the single step of the main
// receive loop described in spec.md §5. A TAP I/O error is fatal and is
// returned to the caller unchanged; all other errors are handled inside
// HandleFrame.
func (s *Stack) RunOnce(buf []byte) error {
	n, err := s.tap.ReadFrame(buf)
	if err != nil {
		return fmt.Errorf("tap read: %w", err)
	}
	s.HandleFrame(buf[:n])
	return nil
}

// HandleFrame decodes buf as an Ethernet frame and dispatches its payload
// by EtherType, per spec.md §4.8. Decode and dispatch errors are logged
// and counted; they never propagate, matching the "no panics in steady
// state" error-handling policy of spec.md §7.
func (s *Stack) HandleFrame(buf []byte) {
	if len(buf) < tapip.SizeEthernetHeaderNoVLAN {
		s.Stats.MalformedFrames.Add(1)
		s.log.debug("eth:short-frame", slog.Int("len", len(buf)))
		return
	}
	eth := tapip.DecodeEthernetHeader(buf)
	if eth.IsVLAN() {
		s.Stats.UnsupportedProto.Add(1)
		s.log.debug("eth:vlan-unsupported")
		return
	}
	payload := buf[tapip.SizeEthernetHeaderNoVLAN:]
	s.Stats.FramesDispatched.Add(1)

	var err error
	switch tapip.EtherType(eth.SizeOrEtherType) {
	case tapip.EtherTypeARP:
		err = s.ARP.Process(s, s.localMAC, s.localIP, payload)
	case tapip.EtherTypeIPv4:
		err = ProcessIPv4(payload, s)
	default:
		s.Stats.UnsupportedProto.Add(1)
		s.log.debug("eth:unsupported-ethertype", slog.Int("ethertype", int(eth.SizeOrEtherType)))
		return
	}
	s.countError(err)
}

func (s *Stack) countError(err error) {
	switch err {
	case nil:
		return
	case ErrMalformedFrame:
		s.Stats.MalformedFrames.Add(1)
	case ErrUnsupportedProto, ErrUnsupportedARPType:
		s.Stats.UnsupportedProto.Add(1)
	case ErrChecksumMismatch:
		s.Stats.ChecksumMismatch.Add(1)
	case ErrNoRoute:
		s.Stats.RoutingFailures.Add(1)
	case ErrARPMiss:
		s.Stats.ARPMisses.Add(1)
	case ErrPortUnbound:
		s.Stats.PortUnbound.Add(1)
	}
	s.log.debug("drop", slog.String("err", err.Error()))
}

// SendFrame implements FrameTransmitter: wrap payload in an Ethernet frame
// addressed to dst with the given EtherType, append the FCS, and write it
// to the TAP (spec.md §4.8 send-frame).
func (s *Stack) SendFrame(ethertype tapip.EtherType, dst net.HardwareAddr, payload []byte) error {
	total := tapip.SizeEthernetHeaderNoVLAN + len(payload) + tapip.SizeEthernetFCS
	frame := make([]byte, total)

	eth := tapip.EthernetHeader{SizeOrEtherType: uint16(ethertype)}
	copy(eth.Source[:], s.localMAC[:])
	copy(eth.Destination[:], dst)
	eth.Put(frame[:tapip.SizeEthernetHeaderNoVLAN])
	copy(frame[tapip.SizeEthernetHeaderNoVLAN:], payload)

	fcsEnd := total - tapip.SizeEthernetFCS
	fcs := tapip.EthernetFCS(frame[:fcsEnd])
	tapip.PutFCS(frame[fcsEnd:], fcs)

	return s.tap.WriteFrame(frame)
}

// SendIPv4 implements IPv4Sender by delegating to the package-level
// SendIPv4 with this Stack's routing table, ARP table and identity.
func (s *Stack) SendIPv4(srcIP, dstIP [4]byte, proto tapip.IPProto, payload []byte) (SendResult, error) {
	return SendIPv4(s.Routes, s.ARP, s, s.localMAC, srcIP, dstIP, proto, payload)
}

// HandleICMP implements ProtocolDemuxer.
func (s *Stack) HandleICMP(srcIP, dstIP [4]byte, payload []byte) {
	if err := HandleICMPEcho(s, dstIP, srcIP, payload); err != nil {
		s.countError(err)
	}
}

// HandleUDP implements ProtocolDemuxer.
func (s *Stack) HandleUDP(srcIP, dstIP [4]byte, payload []byte) {
	if s.UDP == nil {
		s.Stats.PortUnbound.Add(1)
		return
	}
	if err := HandleUDP(s.UDP, srcIP, dstIP, payload); err != nil {
		s.countError(err)
	}
}

// HandleTCP implements ProtocolDemuxer.
func (s *Stack) HandleTCP(srcIP, dstIP [4]byte, payload []byte) {
	if err := s.TCP.Input(s, dstIP, srcIP, payload); err != nil {
		s.countError(err)
	}
}
