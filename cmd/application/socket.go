//go:build tinygo

package main

import (
	"github.com/soypat/lneto/tcp"
)

// rxStageSize must hold at least one opcode plus MemoryRegion descriptor
// (12 bytes) plus one full WriteMemory chunk (protocol.MaxChunkLength, 1024 bytes),
// so tryDispatch and drainWrite can always be satisfied from data already
// staged here without the socket ever blocking.
const rxStageSize = 12 + 1024

// Stack is the subset of github.com/soypat/lneto/x/xnet.StackAsync the
// update manager's socket needs — just the one method used to listen
// (stack.ListenTCP). Constructing the concrete stack over the board's
// Ethernet netdev is board-support territory: no NIC hardware is named
// here, so this package only depends on the interface and accepts a
// ready-made value from whatever board init code links in.
type Stack interface {
	ListenTCP(conn *tcp.Conn, port uint16) error
}

// tcpSocket adapts a github.com/soypat/lneto/tcp.Conn to updatemgr.Socket's
// peek/discard contract. conn.Read is already non-blocking (returns n=0
// when nothing is queued), so this type just stages whatever is available
// into rxStage and serves Peek/
// Discard from that staging buffer without ever calling a blocking read.
type tcpSocket struct {
	stack Stack
	port  uint16
	conn  tcp.Conn

	// connRxBuf/connTxBuf are the connection's own protocol-level buffers,
	// separate from rxStage below (this type's peek staging area) — tcp.Conn
	// needs its own backing buffers per Configure, same as ota_server.go's
	// otaRxBuf/otaTxBuf.
	connRxBuf, connTxBuf []byte

	rxStage    [rxStageSize]byte
	buffered   int
	configured bool
}

func newTCPSocket(stack Stack, port uint16, rxBuf, txBuf []byte) *tcpSocket {
	return &tcpSocket{stack: stack, port: port, connRxBuf: rxBuf, connTxBuf: txBuf}
}

func (s *tcpSocket) Listen() error {
	if !s.configured {
		if err := s.conn.Configure(tcp.ConnConfig{
			RxBuf:             s.connRxBuf,
			TxBuf:             s.connTxBuf,
			TxPacketQueueSize: 2,
		}); err != nil {
			return err
		}
		s.configured = true
	}
	if s.conn.State().IsClosed() {
		s.conn.Abort()
		s.buffered = 0
		return s.stack.ListenTCP(&s.conn, s.port)
	}
	return nil
}

func (s *tcpSocket) Ready() bool {
	return s.conn.State().IsSynchronized()
}

// PeerGone reports the receive-half-closed/send-half-open condition: the
// peer sent a FIN (or vanished) but our own side hasn't finished closing
// yet.
func (s *tcpSocket) PeerGone() bool {
	st := s.conn.State()
	return st.IsClosing() && !st.IsClosed()
}

func (s *tcpSocket) fill() {
	if s.buffered >= len(s.rxStage) {
		return
	}
	n, _ := s.conn.Read(s.rxStage[s.buffered:])
	if n > 0 {
		s.buffered += n
	}
}

func (s *tcpSocket) Peek(n int) []byte {
	s.fill()
	if n > s.buffered {
		n = s.buffered
	}
	return s.rxStage[:n]
}

func (s *tcpSocket) Discard(n int) {
	if n <= 0 {
		return
	}
	if n > s.buffered {
		n = s.buffered
	}
	copy(s.rxStage[:], s.rxStage[n:s.buffered])
	s.buffered -= n
}

func (s *tcpSocket) Write(p []byte) (int, error) {
	return s.conn.Write(p)
}

func (s *tcpSocket) Close() error {
	return s.conn.Close()
}

func (s *tcpSocket) Abort() {
	s.conn.Abort()
	s.buffered = 0
}
