package stack

import (
	"encoding/binary"

	"github.com/netstackd/tapip"
)

// pseudoHeaderChecksum computes the Internet checksum over the IPv4
// pseudo-header {srcIP, dstIP, zero, proto, length} followed by segment,
// per spec.md §3's UDP/TCP checksum definition. segment must have its own
// checksum field already zeroed by the caller.
func pseudoHeaderChecksum(srcIP, dstIP [4]byte, proto tapip.IPProto, segment []byte) uint16 {
	var pseudo [12]byte
	copy(pseudo[0:4], srcIP[:])
	copy(pseudo[4:8], dstIP[:])
	pseudo[8] = 0
	pseudo[9] = byte(proto)
	binary.BigEndian.PutUint16(pseudo[10:12], uint16(len(segment)))

	var c tapip.CRC_RFC791
	c.Write(pseudo[:])
	c.Write(segment)
	return c.Sum()
}
