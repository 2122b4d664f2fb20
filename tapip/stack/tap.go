package stack

import "net"

// TapDevice is the contract a TAP endpoint must satisfy to back a Stack.
// Frames read and written through it never include a preamble, start frame
// delimiter, or VLAN PI tag; ReadFrame returns exactly one Ethernet frame up
// to MTU, and WriteFrame transmits exactly one.
//
// cmd/tapip satisfies this with an adapter around github.com/songgao/water;
// tests satisfy it with an in-memory fake, which is the reason this is an
// interface at all instead of a direct water.Interface dependency inside
// this package.
type TapDevice interface {
	ReadFrame(buf []byte) (n int, err error)
	WriteFrame(frame []byte) error
	MTU() int
	HardwareAddr() net.HardwareAddr
	Addr() [4]byte
	Netmask() [4]byte
	Shutdown() error
}
