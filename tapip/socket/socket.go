// Package socket implements the application-facing socket façade of
// spec.md §6: bind/send/receive against the stack's UDP delivery path,
// independent of whatever IPC transport an embedder chooses to expose it
// over (the source used ZeroMQ; that transport is explicitly out of scope
// here).
package socket

import (
	"errors"
	"sync"

	"github.com/netstackd/tapip"
	"github.com/netstackd/tapip/tapip/stack"
)

// ErrUnknownSocket is returned by Send when id has no binding.
var ErrUnknownSocket = errors.New("socket: unknown socket id")

// Protocol is the socket's transport discipline.
type Protocol uint8

const (
	ProtoDGRAM Protocol = iota
	ProtoSTREAM
)

// BindResult reports the outcome of a Bind call.
type BindResult uint8

const (
	BindSuccess BindResult = iota
	BindPortInUse
	BindUnknownSocket
)

func (r BindResult) String() string {
	switch r {
	case BindSuccess:
		return "success"
	case BindPortInUse:
		return "port-in-use"
	case BindUnknownSocket:
		return "unknown-socket"
	default:
		return "unknown"
	}
}

// MaxRecvWinSize is the default bound on a socket's receive queue, per
// spec.md §3 ("bounded by MAX_RECV_WIN_SIZE, default 256, drop-oldest on
// overflow").
const MaxRecvWinSize = 256

// ID identifies one application socket.
type ID uint32

// Entry is one queued datagram: the peer it arrived from and its payload.
type Entry struct {
	PeerIP   [4]byte
	PeerPort uint16
	Bytes    []byte
}

type binding struct {
	proto Protocol
	ip    [4]byte
	port  uint16
	queue []Entry
}

// Table is the socket table: a set of bound sockets keyed by ID, each with
// its own bounded receive queue. A single Table is shared between the main
// receive loop (which calls Deliver as datagrams arrive) and application
// goroutines (which call Bind/Send/Recv concurrently), so every operation
// is guarded by mu — the one piece of stack-adjacent state this module
// touches from outside the loop (spec.md §5).
type Table struct {
	mu       sync.Mutex
	localIP  [4]byte
	sockets  map[ID]*binding
	byPort   map[uint16]ID
	recvWin  int
}

// NewTable returns an empty socket table. localIP is substituted whenever a
// caller binds to INADDR_ANY (0).
func NewTable(localIP [4]byte) *Table {
	return &Table{
		localIP: localIP,
		sockets: make(map[ID]*binding),
		byPort:  make(map[uint16]ID),
		recvWin: MaxRecvWinSize,
	}
}

// Bind associates id with proto/ip/port. INADDR_ANY (ip == [4]byte{})
// means "bind to the stack's local IP" per spec.md §6. Binding the same
// port twice returns BindPortInUse.
func (t *Table) Bind(id ID, proto Protocol, ip [4]byte, port uint16) BindResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.byPort[port]; exists {
		return BindPortInUse
	}
	if ip == ([4]byte{}) {
		ip = t.localIP
	}
	t.sockets[id] = &binding{proto: proto, ip: ip, port: port}
	t.byPort[port] = id
	return BindSuccess
}

// Unbind releases id's binding, if any.
func (t *Table) Unbind(id ID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if b, ok := t.sockets[id]; ok {
		delete(t.byPort, b.port)
		delete(t.sockets, id)
	}
}

// Deliver implements stack.DatagramSink: it appends an Entry to the queue
// of whichever socket is bound to destPort, dropping the oldest entry if
// the queue is already at capacity. ok is false when no socket is bound to
// destPort, telling the caller to count the datagram as port-unbound.
func (t *Table) Deliver(destPort uint16, peerIP [4]byte, peerPort uint16, payload []byte) (ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id, found := t.byPort[destPort]
	if !found {
		return false
	}
	b := t.sockets[id]
	entry := Entry{PeerIP: peerIP, PeerPort: peerPort, Bytes: append([]byte(nil), payload...)}
	if len(b.queue) >= t.recvWin {
		b.queue = b.queue[1:]
	}
	b.queue = append(b.queue, entry)
	return true
}

// Recv pops the oldest queued entry for id, if any.
func (t *Table) Recv(id ID) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	b, ok := t.sockets[id]
	if !ok || len(b.queue) == 0 {
		return Entry{}, false
	}
	e := b.queue[0]
	b.queue = b.queue[1:]
	return e, true
}

// Send builds a UDP datagram from b and transmits it through sender, using
// id's bound local IP and port as the UDP source, per spec.md §6's
// send(socket-id, peer, bytes).
func (t *Table) Send(id ID, sender stack.IPv4Sender, peerIP [4]byte, peerPort uint16, b []byte) error {
	t.mu.Lock()
	bind, ok := t.sockets[id]
	t.mu.Unlock()
	if !ok {
		return ErrUnknownSocket
	}

	segment := stack.BuildUDP(bind.ip, peerIP, bind.port, peerPort, b)
	_, err := sender.SendIPv4(bind.ip, peerIP, tapip.IPProtoUDP, segment)
	return err
}

// LocalAddr reports the bound local IP/port for id, if bound.
func (t *Table) LocalAddr(id ID) (ip [4]byte, port uint16, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, exists := t.sockets[id]
	if !exists {
		return [4]byte{}, 0, false
	}
	return b.ip, b.port, true
}
