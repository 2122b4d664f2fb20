// Command tapip runs a user-space TCP/IP stack attached to a TAP device,
// implementing ARP, IPv4, ICMP echo, UDP delivery and the TCP opening
// handshake.
package main

import (
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"os"

	"github.com/spf13/cobra"

	"github.com/netstackd/tapip/tapip/socket"
	"github.com/netstackd/tapip/tapip/stack"
)

const defaultMTU = 1500

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		tapAddrFlag string
		macAddrFlag string
		nodeIPFlag  string
		tcpPort     uint16
	)

	cmd := &cobra.Command{
		Use:   "tapip",
		Short: "A user-space TCP/IP stack over a TAP device",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(tapAddrFlag, macAddrFlag, nodeIPFlag, tcpPort)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().StringVar(&tapAddrFlag, "tap-addr", "10.0.0.1/24", "CIDR of the TAP endpoint")
	cmd.Flags().StringVar(&macAddrFlag, "node-mac-addr", "01:23:45:67:89:ab", "local MAC address")
	cmd.Flags().StringVar(&nodeIPFlag, "node-ip-addr", "10.0.0.4", "local IPv4 address, must lie in --tap-addr's subnet")
	cmd.Flags().Uint16Var(&tcpPort, "tcp-listen-port", 80, "TCP port the listener accepts connections on")

	return cmd
}

func run(tapAddrFlag, macAddrFlag, nodeIPFlag string, tcpPort uint16) error {
	tapPrefix, err := netip.ParsePrefix(tapAddrFlag)
	if err != nil {
		return fmt.Errorf("invalid --tap-addr %q: %w", tapAddrFlag, err)
	}
	nodeAddr, err := netip.ParseAddr(nodeIPFlag)
	if err != nil {
		return fmt.Errorf("invalid --node-ip-addr %q: %w", nodeIPFlag, err)
	}
	if !tapPrefix.Contains(nodeAddr) {
		return fmt.Errorf("--node-ip-addr %s is not in --tap-addr subnet %s", nodeAddr, tapPrefix)
	}
	mac, err := net.ParseMAC(macAddrFlag)
	if err != nil {
		return fmt.Errorf("invalid --node-mac-addr %q: %w", macAddrFlag, err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	tapAddr := tapPrefix.Addr() // the TAP's own endpoint address, as given in --tap-addr
	tap, err := newWaterTap(ipv4Bytes(tapAddr), netmaskBytes(tapPrefix), mac, defaultMTU)
	if err != nil {
		return fmt.Errorf("opening TAP device: %w", err)
	}
	defer tap.Shutdown()

	var localMAC [6]byte
	copy(localMAC[:], mac)

	sockets := socket.NewTable(ipv4Bytes(nodeAddr))

	st := stack.New(tap, stack.Config{
		LocalMAC: localMAC,
		LocalIP:  ipv4Bytes(nodeAddr),
		UDPSink:  sockets,
		TCPPort:  tcpPort,
	})
	st.SetLogger(logger)

	logger.Info("tapip starting", slog.String("node-ip", nodeAddr.String()), slog.String("mac", mac.String()))

	buf := make([]byte, defaultMTU+64)
	for {
		if err := st.RunOnce(buf); err != nil {
			return fmt.Errorf("stack run loop: %w", err)
		}
	}
}

func ipv4Bytes(addr netip.Addr) [4]byte {
	return addr.As4()
}

func netmaskBytes(prefix netip.Prefix) [4]byte {
	ones := prefix.Bits()
	mask := net.CIDRMask(ones, 32)
	var out [4]byte
	copy(out[:], mask)
	return out
}
