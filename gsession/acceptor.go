package gsession

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"log"
	"net"
	"net/netip"
	"strings"
	"time"
)

// acceptBackoff is how long the acceptor sleeps after a file-descriptor
// exhaustion error before retrying (SPEC_FULL.md §4.1, §7 AcceptFatal).
const acceptBackoff = 250 * time.Millisecond

// runAcceptor continuously accepts stream connections, builds a Session
// around each one, appends it to the unclaimed table, and spawns its
// reader task. It never returns except when ctx is cancelled (observed
// indirectly via the listener being closed in Server.Run).
func (s *Server) runAcceptor(ctx context.Context) {
	for {
		conn, err := s.streamListener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[acceptor] accept error: %v", err)
			if isFDExhaustion(err) {
				time.Sleep(acceptBackoff)
			}
			continue
		}

		addrPort, ok := tcpAddrPort(conn.RemoteAddr())
		if !ok || !addrPort.Addr().Is4() {
			log.Printf("[acceptor] rejecting non-IPv4 peer %v", conn.RemoteAddr())
			_ = conn.Close()
			continue
		}

		secret, err := randomUint32()
		if err != nil {
			log.Printf("[acceptor] failed to generate claim secret: %v", err)
			_ = conn.Close()
			continue
		}

		session := NewSession(conn, secret)
		s.registry.AddUnclaimed(session)

		go func() {
			session.Run(func() { s.postDisconnect(session) })
		}()
	}
}

// isFDExhaustion matches the OS error text the way SPEC_FULL.md §7
// specifies, case-insensitively.
func isFDExhaustion(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "too many open files")
}

func tcpAddrPort(addr net.Addr) (netip.AddrPort, bool) {
	tcpAddr, ok := addr.(*net.TCPAddr)
	if !ok {
		return netip.AddrPort{}, false
	}
	ap := tcpAddr.AddrPort()
	// A dual-stack listener reports IPv4 peers as IPv4-mapped IPv6
	// addresses; unmap so the IPv4 check accepts them.
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port()), true
}

func randomUint32() (uint32, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}
