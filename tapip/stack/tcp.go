package stack

import "github.com/netstackd/tapip"

// TCPState enumerates the subset of RFC 793 states this core drives: a
// listener only ever needs LISTEN, SYN-RECEIVED and ESTABLISHED to
// complete a passive open (spec.md §3/§4.7).
type TCPState uint8

const (
	TCPStateListen TCPState = iota
	TCPStateSynReceived
	TCPStateEstablished
)

func (s TCPState) String() string {
	switch s {
	case TCPStateListen:
		return "LISTEN"
	case TCPStateSynReceived:
		return "SYN-RECEIVED"
	case TCPStateEstablished:
		return "ESTABLISHED"
	default:
		return "UNKNOWN"
	}
}

// DefaultInitialSeq is the fixed initial sequence number this core sends in
// SYN|ACK segments. spec.md §9 Open Question (b) notes the source hardcodes
// 555 as a placeholder and that a real implementation should choose per RFC
// 6528; this core keeps a frozen constant for deterministic tests and
// exposes it as TCPModule.InitialSeq so a caller wanting a per-connection
// generator can override it.
const DefaultInitialSeq uint32 = 555

// TCPModule drives a single listening connection's handshake. The core
// contract does not require per-flow demultiplexing beyond what the
// handshake itself needs (spec.md §3), so one TCPModule tracks one
// in-progress connection at a time, bound to ListenPort.
type TCPModule struct {
	ListenPort uint16
	InitialSeq uint32

	state       TCPState
	remoteIP    [4]byte
	remotePort  uint16
	localPort   uint16
	sndNext     uint32
	rcvNext     uint32
	log         logger
}

// NewTCPModule returns a module listening on port, starting in LISTEN.
func NewTCPModule(port uint16) *TCPModule {
	return &TCPModule{ListenPort: port, InitialSeq: DefaultInitialSeq, state: TCPStateListen}
}

func (m *TCPModule) SetLogger(l logger) { m.log = l }

// State reports the module's current connection state.
func (m *TCPModule) State() TCPState { return m.state }

// Input decodes a TCP segment and drives the state machine per spec.md
// §4.7. It validates the pseudo-header checksum first; a mismatch drops
// the segment without touching state.
func (m *TCPModule) Input(sender IPv4Sender, localIP, srcIP [4]byte, segment []byte) error {
	if len(segment) < tapip.SizeTCPHeaderNoOptions {
		return ErrMalformedFrame
	}
	if pseudoHeaderChecksum(srcIP, localIP, tapip.IPProtoTCP, segment) != 0 {
		return ErrChecksumMismatch
	}
	hdr := tapip.DecodeTCPHeader(segment)
	if hdr.DestinationPort != m.ListenPort {
		return ErrPortUnbound
	}

	flags := hdr.Flags()

	if flags.Has(tapip.FlagTCP_RST) {
		m.state = TCPStateListen
		return nil
	}

	switch m.state {
	case TCPStateListen:
		if !flags.Has(tapip.FlagTCP_SYN) {
			return nil
		}
		m.remoteIP = srcIP
		m.remotePort = hdr.SourcePort
		m.localPort = hdr.DestinationPort
		m.rcvNext = hdr.Seq + 1
		m.sndNext = m.InitialSeq
		m.state = TCPStateSynReceived
		m.log.debug("tcp:syn-received")
		return m.sendSynAck(sender, localIP)

	case TCPStateSynReceived:
		if flags.Has(tapip.FlagTCP_ACK) {
			m.state = TCPStateEstablished
			m.log.info("tcp:established")
		}
		return nil

	default: // TCPStateEstablished: data transfer is out of scope.
		return nil
	}
}

func (m *TCPModule) sendSynAck(sender IPv4Sender, localIP [4]byte) error {
	reply := tapip.TCPHeader{
		SourcePort:      m.localPort,
		DestinationPort: m.remotePort,
		Seq:             m.sndNext,
		Ack:             m.rcvNext,
		WindowSize:      1024,
	}
	reply.SetOffset(tapip.SizeTCPHeaderNoOptions / 4)
	reply.SetFlags(tapip.FlagTCP_SYN | tapip.FlagTCP_ACK)

	buf := make([]byte, tapip.SizeTCPHeaderNoOptions)
	reply.Put(buf)
	reply.Checksum = pseudoHeaderChecksum(localIP, m.remoteIP, tapip.IPProtoTCP, buf)
	reply.Put(buf)

	_, err := sender.SendIPv4(localIP, m.remoteIP, tapip.IPProtoTCP, buf)
	return err
}
