package gsession

import (
	"bufio"
	"encoding/binary"
	"io"
	"log"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"
)

// inlineBufferSize is the inline-copy threshold for routed datagrams.
// Datagrams no larger than this are stored in a fixed-size array inside
// the sessionMessage (smallPacket), avoiding a heap allocation; larger
// ones are copied into an owned byte slice (packet).
const inlineBufferSize = 256

// inboundQueueSize bounds the per-session inbound queue. Routed datagrams
// and termination notices back-pressure the sender when it fills
// (SPEC_FULL.md §5); broadcast sends never suspend, see tryEnqueueBroadcast.
const inboundQueueSize = 256

// inactivityTimeout is how long a session's reader waits for stream
// activity before exiting (SPEC_FULL.md §4.4).
const inactivityTimeout = 60 * time.Second

type messageKind uint8

const (
	msgSmallPacket messageKind = iota
	msgPacket
	msgBroadcastVoice
	msgBroadcastText
	msgBroadcastRoomInfo
	msgTermination
)

// BroadcastPayload is a pre-encoded, immutable broadcast frame shared by
// reference across every receiving session's queue — never copied per
// recipient (SPEC_FULL.md §9 "shared broadcast payloads").
type BroadcastPayload struct {
	Data []byte
}

// sessionMessage is one entry in a Session's inbound queue. Exactly one
// of the fields below is meaningful, selected by kind.
type sessionMessage struct {
	kind   messageKind
	small  [inlineBufferSize]byte
	smallN int
	data   []byte // msgPacket: heap-owned copy
	shared *BroadcastPayload
	reason string // msgTermination
}

// Session owns one connected player's state across both transports: the
// stream socket (exclusively read/written by its own goroutines), the
// claim secret and datagram peer, account/room/level state, and the
// inbound queue the rest of the system feeds.
type Session struct {
	conn net.Conn

	claimSecret uint32
	claimed     atomic.Bool

	peerMu  sync.Mutex
	udpPeer netip.AddrPort // guarded by peerMu; stable once set (invariant 5)

	accountID     atomic.Int32
	roomID        atomic.Int32
	levelID       atomic.Int32
	authenticated atomic.Bool
	invisible     atomic.Bool

	dataMu      sync.Mutex
	accountData AccountData
	userEntry   UserEntry

	inbound chan sessionMessage
	health  sendHealth // circuit breaker for broadcast fan-out, see circuitbreaker.go

	lastActivity atomic.Int64 // unix nanoseconds

	cleanupOnce sync.Once
	cleanupCh   chan struct{}

	createdAt time.Time
}

// NewSession constructs a Session around an accepted stream connection
// with a fresh claim secret. It does not start any goroutines.
func NewSession(conn net.Conn, claimSecret uint32) *Session {
	s := &Session{
		conn:        conn,
		claimSecret: claimSecret,
		inbound:     make(chan sessionMessage, inboundQueueSize),
		cleanupCh:   make(chan struct{}),
		createdAt:   time.Now(),
	}
	s.lastActivity.Store(time.Now().UnixNano())
	return s
}

// ClaimSecret returns the one-shot secret generated at construction.
func (s *Session) ClaimSecret() uint32 { return s.claimSecret }

// Claimed reports whether the datagram peer has been bound.
func (s *Session) Claimed() bool { return s.claimed.Load() }

// UDPPeer returns the bound datagram peer. Only meaningful once Claimed
// reports true.
func (s *Session) UDPPeer() netip.AddrPort {
	s.peerMu.Lock()
	defer s.peerMu.Unlock()
	return s.udpPeer
}

// markClaimed binds the datagram peer exactly once. Called only by the
// registry under its lock during the claim protocol.
func (s *Session) markClaimed(peer netip.AddrPort) {
	s.peerMu.Lock()
	s.udpPeer = peer
	s.peerMu.Unlock()
	s.claimed.Store(true)
}

// AccountID, RoomID, LevelID and the boolean flags are point-in-time
// observations read by the broadcast filters without synchronizing with
// anything else; relaxed atomic loads/stores are sufficient.
func (s *Session) AccountID() int32        { return s.accountID.Load() }
func (s *Session) SetAccountID(id int32)   { s.accountID.Store(id) }
func (s *Session) RoomID() int32           { return s.roomID.Load() }
func (s *Session) SetRoomID(id int32)      { s.roomID.Store(id) }
func (s *Session) LevelID() int32          { return s.levelID.Load() }
func (s *Session) SetLevelID(id int32)     { s.levelID.Store(id) }
func (s *Session) Authenticated() bool     { return s.authenticated.Load() }
func (s *Session) SetAuthenticated(v bool) { s.authenticated.Store(v) }
func (s *Session) Invisible() bool         { return s.invisible.Load() }
func (s *Session) SetInvisible(v bool)     { s.invisible.Store(v) }

// AccountData returns a copy of the current display data.
func (s *Session) AccountData() AccountData {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	return s.accountData
}

// SetAccountData replaces the display data wholesale.
func (s *Session) SetAccountData(data AccountData) {
	s.dataMu.Lock()
	s.accountData = data
	s.dataMu.Unlock()
}

// UserEntry returns a copy of the persistence-backed record.
func (s *Session) UserEntry() UserEntry {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	return s.userEntry
}

// MutateUserEntry applies fn to a clone of the current entry under the
// data lock, stores the result, and returns the clone — mirroring the
// Facade's update-user contract (SPEC_FULL.md §4.7).
func (s *Session) MutateUserEntry(fn func(*UserEntry) bool) (UserEntry, bool) {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	entry := s.userEntry
	dirty := fn(&entry)
	if dirty {
		s.userEntry = entry
	}
	return entry, dirty
}

// notifyCleanup signals cleanupCh exactly once, per Session (invariant:
// destruction is announced exactly once).
func (s *Session) notifyCleanup() {
	s.cleanupOnce.Do(func() { close(s.cleanupCh) })
}

// CleanupCh returns a channel that is closed once notifyCleanup has run;
// callers select on it alongside their own timer or context.
func (s *Session) CleanupCh() <-chan struct{} { return s.cleanupCh }

// touch records stream activity for the inactivity timeout.
func (s *Session) touch() {
	s.lastActivity.Store(time.Now().UnixNano())
}

func (s *Session) idleFor() time.Duration {
	last := s.lastActivity.Load()
	return time.Since(time.Unix(0, last))
}

// enqueue pushes a message onto the inbound queue, suspending if the
// queue is full (back-pressure).
func (s *Session) enqueue(m sessionMessage) {
	s.inbound <- m
}

// EnqueueRouted stores a routed datagram payload into the inbound queue
// using the inline-vs-heap rule from SPEC_FULL.md §4.4.
func (s *Session) EnqueueRouted(data []byte) {
	if len(data) <= inlineBufferSize {
		var m sessionMessage
		m.kind = msgSmallPacket
		m.smallN = copy(m.small[:], data)
		s.enqueue(m)
		return
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.enqueue(sessionMessage{kind: msgPacket, data: cp})
}

// tryEnqueueBroadcast makes a non-blocking attempt to hand a shared
// broadcast payload to this session's queue, governed by the per-session
// circuit breaker: once the queue has been full circuitBreakerThreshold
// consecutive times the session is skipped (aside from periodic probes)
// so one slow consumer cannot stall fan-out to everyone else in the room.
func (s *Session) tryEnqueueBroadcast(kind messageKind, p *BroadcastPayload) {
	if s.health.shouldSkip() {
		return
	}
	select {
	case s.inbound <- sessionMessage{kind: kind, shared: p}:
		s.health.recordSuccess()
	default:
		s.health.recordFailure()
	}
}

// EnqueueBroadcastVoice, EnqueueBroadcastText and EnqueueBroadcastRoomInfo
// hand a shared, pre-encoded payload to this session's queue through the
// circuit breaker above.
func (s *Session) EnqueueBroadcastVoice(p *BroadcastPayload) {
	s.tryEnqueueBroadcast(msgBroadcastVoice, p)
}
func (s *Session) EnqueueBroadcastText(p *BroadcastPayload) {
	s.tryEnqueueBroadcast(msgBroadcastText, p)
}
func (s *Session) EnqueueBroadcastRoomInfo(p *BroadcastPayload) {
	s.tryEnqueueBroadcast(msgBroadcastRoomInfo, p)
}

// EnqueueTermination hands the reader a reason to send downstream
// before it exits.
func (s *Session) EnqueueTermination(reason string) {
	s.enqueue(sessionMessage{kind: msgTermination, reason: reason})
}

// Run drives the session's reader: a readLoop goroutine that only reads
// framed bytes off the stream (opaque beyond updating lastActivity), and
// this goroutine's own dispatch loop that drains the inbound queue and
// writes frames downstream. Run blocks until the reader exits for any of
// the reasons in SPEC_FULL.md §4.4, and always runs onExit exactly once
// before returning, even if dispatching panics.
func (s *Session) Run(onExit func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[session %d] recovered panic in dispatch loop: %v", s.claimSecret, r)
		}
		onExit()
	}()

	appInbound := make(chan []byte, 16)
	readerDone := make(chan struct{})
	go s.readLoop(appInbound, readerDone)

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-readerDone:
			return
		case <-ticker.C:
			if s.idleFor() >= inactivityTimeout {
				return
			}
		case _, ok := <-appInbound:
			if !ok {
				return
			}
			// Opaque application-level packet: out of scope for the
			// core beyond having kept the connection alive.
		case m, ok := <-s.inbound:
			if !ok {
				return
			}
			if !s.dispatch(m) {
				return
			}
		}
	}
}

// dispatch handles one inbound-queue message; it returns false when the
// reader should exit (termination notice, or a write failure).
func (s *Session) dispatch(m sessionMessage) bool {
	switch m.kind {
	case msgSmallPacket:
		// Opaque routed datagram, out of scope beyond delivery.
		return true
	case msgPacket:
		return true
	case msgBroadcastVoice, msgBroadcastText, msgBroadcastRoomInfo:
		if m.shared == nil {
			return true
		}
		if err := s.writeFrame(m.shared.Data); err != nil {
			log.Printf("[session %d] broadcast write error: %v", s.claimSecret, err)
			return false
		}
		return true
	case msgTermination:
		_ = s.writeFrame(encodeTerminationPacket(m.reason))
		return false
	default:
		return true
	}
}

// writeFrame writes a length-prefixed frame to the stream socket. Only
// the dispatch loop ever writes to conn.
func (s *Session) writeFrame(payload []byte) error {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := s.conn.Write(hdr[:]); err != nil {
		return err
	}
	_, err := s.conn.Write(payload)
	return err
}

// readLoop reads length-prefixed frames off the stream socket, updates
// lastActivity on every successful read, and forwards the raw payload
// for (out-of-scope) application-level handling. It closes readerDone
// on EOF or any read error.
func (s *Session) readLoop(appInbound chan<- []byte, readerDone chan<- struct{}) {
	defer close(readerDone)
	defer close(appInbound)

	r := bufio.NewReader(s.conn)
	var hdr [4]byte
	for {
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return
		}
		n := binary.BigEndian.Uint32(hdr[:])
		if n > inlineBufferSize*256 {
			// Unreasonably large inbound frame; treat as a protocol
			// error and exit rather than allocate unbounded memory.
			return
		}
		payload := make([]byte, n)
		if _, err := io.ReadFull(r, payload); err != nil {
			return
		}
		s.touch()
		select {
		case appInbound <- payload:
		default:
			// Backlog full; drop — this channel only exists to keep
			// the connection's liveness signal flowing.
		}
	}
}

// Close shuts down the write side of the stream (or closes the whole
// connection when it has no half-close). The inbound queue is left open.
// Errors are ignored per SPEC_FULL.md §5.
func (s *Session) Close() {
	if tc, ok := s.conn.(interface{ CloseWrite() error }); ok {
		_ = tc.CloseWrite()
	} else {
		_ = s.conn.Close()
	}
}
