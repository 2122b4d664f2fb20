package main

import (
	"net"

	"github.com/songgao/water"
)

// waterTap adapts a github.com/songgao/water TAP interface to the
// tapip/stack.TapDevice contract. water.Interface exposes Read/Write
// directly (see the teacher's tap_test.go, which called water.New and its
// Read/Write methods with no seam in between); this adapter is the seam
// stack needs to stay testable with a fake.
type waterTap struct {
	iface   *water.Interface
	mtu     int
	mac     net.HardwareAddr
	addr    [4]byte
	netmask [4]byte
}

func newWaterTap(addr, netmask [4]byte, mac net.HardwareAddr, mtu int) (*waterTap, error) {
	iface, err := water.New(water.Config{DeviceType: water.TAP})
	if err != nil {
		return nil, err
	}
	return &waterTap{iface: iface, mtu: mtu, mac: mac, addr: addr, netmask: netmask}, nil
}

func (t *waterTap) ReadFrame(buf []byte) (int, error) { return t.iface.Read(buf) }

func (t *waterTap) WriteFrame(frame []byte) error {
	_, err := t.iface.Write(frame)
	return err
}

func (t *waterTap) MTU() int                    { return t.mtu }
func (t *waterTap) HardwareAddr() net.HardwareAddr { return t.mac }
func (t *waterTap) Addr() [4]byte               { return t.addr }
func (t *waterTap) Netmask() [4]byte            { return t.netmask }
func (t *waterTap) Shutdown() error             { return t.iface.Close() }
