package stack

import (
	"log/slog"
	"net/netip"
)

func slogAttrIP(key string, ip [4]byte) slog.Attr {
	return slog.String(key, netip.AddrFrom4(ip).String())
}
