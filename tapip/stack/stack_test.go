package stack_test

import (
	"net"
	"testing"

	"github.com/netstackd/tapip"
	"github.com/netstackd/tapip/tapip/stack"
)

type fakeTap struct {
	addr    [4]byte
	netmask [4]byte
	written [][]byte
}

func (f *fakeTap) ReadFrame(buf []byte) (int, error) { return 0, nil }
func (f *fakeTap) WriteFrame(frame []byte) error {
	f.written = append(f.written, append([]byte(nil), frame...))
	return nil
}
func (f *fakeTap) MTU() int                        { return 1500 }
func (f *fakeTap) HardwareAddr() net.HardwareAddr   { return nil }
func (f *fakeTap) Addr() [4]byte                    { return f.addr }
func (f *fakeTap) Netmask() [4]byte                 { return f.netmask }
func (f *fakeTap) Shutdown() error                  { return nil }

func buildEthernetARPFrame(localIP [4]byte) []byte {
	senderMAC := [6]byte{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}
	senderIP := [4]byte{10, 0, 0, 1}
	arp := tapip.ARPv4Header{
		HardwareType:   tapip.ARPHardwareEthernet,
		ProtoType:      tapip.ARPProtoIPv4,
		HardwareLength: 6,
		ProtoLength:    4,
		Operation:      tapip.ARPRequest,
		HardwareSender: senderMAC,
		ProtoSender:    senderIP,
		ProtoTarget:    localIP,
	}
	var arpBuf [tapip.SizeARPv4Header]byte
	arp.Put(arpBuf[:])

	eth := tapip.EthernetHeader{
		Destination:     [6]byte(tapip.Broadcast),
		Source:          senderMAC,
		SizeOrEtherType: uint16(tapip.EtherTypeARP),
	}
	frame := make([]byte, tapip.SizeEthernetHeaderNoVLAN+tapip.SizeARPv4Header)
	eth.Put(frame[:tapip.SizeEthernetHeaderNoVLAN])
	copy(frame[tapip.SizeEthernetHeaderNoVLAN:], arpBuf[:])
	return frame
}

func TestStackHandleFrameARP(t *testing.T) {
	localIP := [4]byte{10, 0, 0, 4}
	tap := &fakeTap{addr: [4]byte{10, 0, 0, 1}, netmask: [4]byte{255, 255, 255, 0}}
	st := stack.New(tap, stack.Config{
		LocalMAC: [6]byte{0x01, 0x23, 0x45, 0x67, 0x89, 0xab},
		LocalIP:  localIP,
		TCPPort:  80,
	})

	frame := buildEthernetARPFrame(localIP)
	st.HandleFrame(frame)

	if len(tap.written) != 1 {
		t.Fatalf("expected one frame written (ARP reply), got %d", len(tap.written))
	}
	replyEth := tapip.DecodeEthernetHeader(tap.written[0])
	if tapip.EtherType(replyEth.SizeOrEtherType) != tapip.EtherTypeARP {
		t.Errorf("reply ethertype = %v, want ARP", replyEth.SizeOrEtherType)
	}
	if st.Stats.FramesDispatched.Load() != 1 {
		t.Errorf("FramesDispatched = %d, want 1", st.Stats.FramesDispatched.Load())
	}
}

func TestStackHandleFrameShortDropped(t *testing.T) {
	tap := &fakeTap{}
	st := stack.New(tap, stack.Config{TCPPort: 80})
	st.HandleFrame([]byte{0x01, 0x02})
	if st.Stats.MalformedFrames.Load() != 1 {
		t.Errorf("MalformedFrames = %d, want 1", st.Stats.MalformedFrames.Load())
	}
}
