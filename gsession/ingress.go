package gsession

import (
	"context"
	"errors"
	"log"
	"net"
	"net/netip"
)

// maxUDPPacketSize is the fixed receive buffer size for the single
// datagram ingress task (SPEC_FULL.md §4.2).
const maxUDPPacketSize = 65536

// runIngress owns the single UDP receive loop: it parses the two
// server-level packet ids (ping, claim) locally and routes everything
// else into the owning session's inbound queue.
func (s *Server) runIngress(ctx context.Context) {
	buf := make([]byte, maxUDPPacketSize)
	for {
		n, addr, err := s.datagramConn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Printf("[ingress] recv error: %v", err)
			continue
		}

		// A dual-stack socket reports IPv4 peers as IPv4-mapped IPv6
		// addresses; unmap so they are accepted and keyed as plain IPv4.
		peer := netip.AddrPortFrom(addr.Addr().Unmap(), addr.Port())
		if !peer.Addr().Is4() {
			log.Printf("[ingress] rejecting non-IPv4 peer %v", peer)
			continue
		}

		s.handleDatagram(buf[:n], peer)
	}
}

func (s *Server) handleDatagram(data []byte, peer netip.AddrPort) {
	id, payload, err := readPacketID(data)
	if err != nil {
		log.Printf("[ingress] malformed packet from %v: %v", peer, err)
		return
	}

	switch id {
	case PacketIDPing:
		s.handlePing(payload, peer)
	case PacketIDClaim:
		s.handleClaim(payload, peer)
	default:
		session, ok := s.registry.Lookup(peer)
		if !ok {
			// RouteMiss: expected during reconnection races, dropped
			// silently per SPEC_FULL.md §7.
			return
		}
		session.EnqueueRouted(data)
	}
}

func (s *Server) handlePing(payload []byte, peer netip.AddrPort) {
	pkt, err := decodePingPacket(payload)
	if err != nil {
		log.Printf("[ingress] malformed ping from %v: %v", peer, err)
		return
	}
	resp := PingResponsePacket{CorrelationID: pkt.CorrelationID, PlayerCount: uint32(s.registry.PlayerCount())}
	encoded := resp.encode()

	// Send once; if the error reports itself as temporary (the closest
	// stand-in for would-block on a Go socket), retry the send once
	// (SPEC_FULL.md §7 SendWouldBlock).
	if _, err := s.datagramConn.WriteToUDPAddrPort(encoded, peer); err != nil {
		if isWouldBlock(err) {
			if _, err2 := s.datagramConn.WriteToUDPAddrPort(encoded, peer); err2 != nil {
				log.Printf("[ingress] ping response send failed for %v: %v", peer, err2)
			}
			return
		}
		log.Printf("[ingress] ping response send failed for %v: %v", peer, err)
	}
}

func (s *Server) handleClaim(payload []byte, peer netip.AddrPort) {
	pkt, err := decodeClaimPacket(payload)
	if err != nil {
		log.Printf("[ingress] malformed claim from %v: %v", peer, err)
		return
	}
	session, ok := s.registry.Claim(peer, pkt.Secret)
	if !ok {
		log.Printf("[ingress] peer %v tried to claim with unknown secret %08x", peer, pkt.Secret)
		return
	}
	s.reconciled(ReconcileEvent{Kind: "claim", AccountID: session.AccountID(), Detail: peer.String()})
}

func isWouldBlock(err error) bool {
	var sysErr interface{ Temporary() bool }
	if errors.As(err, &sysErr) {
		return sysErr.Temporary()
	}
	return false
}
