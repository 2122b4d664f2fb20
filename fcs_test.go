package tapip_test

import (
	"testing"

	"github.com/netstackd/tapip"
)

// TestEthernetFCSScenario reproduces spec scenario 6: destination
// ff:ff:ff:ff:ff:ff, source 01:23:45:67:89:ab, EtherType 0x0806, payload of
// 46 zero bytes. The FCS must equal the standard IEEE 802.3 CRC-32 of the
// preceding bytes, which is exactly crc32.ChecksumIEEE.
func TestEthernetFCSScenario(t *testing.T) {
	// IEEE 802.3 CRC-32 of this 60-byte frame, computed with an independent
	// CRC-32 implementation.
	const wantFCS uint32 = 0x912f2958
	eth := tapip.EthernetHeader{
		Destination:     [6]byte(tapip.Broadcast),
		Source:          [6]byte{0x01, 0x23, 0x45, 0x67, 0x89, 0xab},
		SizeOrEtherType: uint16(tapip.EtherTypeARP),
	}
	payload := make([]byte, 46)
	frame := make([]byte, tapip.SizeEthernetHeaderNoVLAN+len(payload))
	eth.Put(frame[:tapip.SizeEthernetHeaderNoVLAN])
	copy(frame[tapip.SizeEthernetHeaderNoVLAN:], payload)

	fcs := tapip.EthernetFCS(frame)
	if fcs != wantFCS {
		t.Fatalf("EthernetFCS = %#x, want %#x", fcs, wantFCS)
	}

	var footer [tapip.SizeEthernetFCS]byte
	tapip.PutFCS(footer[:], fcs)
	gotBack := tapip.DecodeFCS(footer[:])
	if gotBack != fcs {
		t.Fatalf("FCS round trip mismatch: got %#x want %#x", gotBack, fcs)
	}
	// The CRC-32 of an all-zero-plus-known-header frame is deterministic;
	// verify by recomputing independently via the same primitive (guards
	// against accidental changes to EthernetFCS breaking determinism).
	fcs2 := tapip.EthernetFCS(frame)
	if fcs2 != fcs {
		t.Error("EthernetFCS is not deterministic")
	}
}

func TestEthernetFCSChangesWithPayload(t *testing.T) {
	base := make([]byte, tapip.SizeEthernetHeaderNoVLAN+46)
	fcs1 := tapip.EthernetFCS(base)
	base[tapip.SizeEthernetHeaderNoVLAN] = 0x01
	fcs2 := tapip.EthernetFCS(base)
	if fcs1 == fcs2 {
		t.Error("expected FCS to change when payload changes")
	}
}
