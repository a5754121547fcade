package gsession

import (
	"context"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// Config bundles the tunables the Lifecycle Controller and transports
// need, mirroring the teacher's flat main.go flag set.
type Config struct {
	// Standalone disables the bootdata and role refresh tickers, as in
	// the original source's `standalone` field.
	Standalone bool

	// MaxUnclaimedAge bounds how long a session may sit in the
	// unclaimed table before the lifecycle sweep evicts it (SPEC_FULL.md
	// §4.6, resolving spec.md §9's open question). Zero disables aging.
	MaxUnclaimedAge time.Duration

	// StatusPrintInterval overrides Bridge.Config().StatusPrintInterval
	// when nonzero; zero means "use the bridge's value".
	StatusPrintInterval uint32

	// EditorCollabLevels lists level ids for which the visible-room
	// projection elides the level id (SPEC_FULL.md §4.5).
	EditorCollabLevels []int32
}

// Server is the connection and dispatch core: it owns the session
// registry, the stream and datagram transports, and the external
// collaborators consumed per SPEC_FULL.md §6.
type Server struct {
	cfg Config

	registry *Registry
	keys     keyPair

	streamListener net.Listener
	datagramConn   *net.UDPConn

	bridge      Bridge
	roomManager RoomManager
	roleManager RoleManager

	editorCollab map[int32]struct{}

	totalBroadcastBytes atomic.Uint64

	onReconcile    func(event ReconcileEvent)
	onBootDataSync func(cfg CentralConfig, maintenance bool)

	wg sync.WaitGroup
}

// ReconcileEvent describes one post-disconnect or eviction outcome,
// handed to an optional observer (e.g. the audit-log store) without
// the core depending on persistence itself.
type ReconcileEvent struct {
	Kind      string // "claim", "disconnect", "duplicate_login", "maintenance_sweep", "ownership_transfer"
	AccountID int32
	RoomID    int32
	Detail    string
}

// NewServer constructs a Server bound to the given listener and UDP
// socket. Run must be called to start its background tasks.
func NewServer(streamListener net.Listener, datagramConn *net.UDPConn, bridge Bridge, roomManager RoomManager, roleManager RoleManager, cfg Config) (*Server, error) {
	keys, err := generateKeyPair()
	if err != nil {
		return nil, err
	}

	collab := make(map[int32]struct{}, len(cfg.EditorCollabLevels))
	for _, id := range cfg.EditorCollabLevels {
		collab[id] = struct{}{}
	}

	srv := &Server{
		cfg:            cfg,
		registry:       NewRegistry(),
		keys:           keys,
		streamListener: streamListener,
		datagramConn:   datagramConn,
		bridge:         bridge,
		roomManager:    roomManager,
		roleManager:    roleManager,
		editorCollab:   collab,
	}
	roomManager.SetGameServer(srv)
	return srv, nil
}

// PublicKey returns the server's immutable NaCl public key, generated
// once at startup (SPEC_FULL.md §5).
func (s *Server) PublicKey() [32]byte { return *s.keys.public }

// SetReconcileObserver registers a callback invoked after each
// lifecycle reconciliation event. It must not block.
func (s *Server) SetReconcileObserver(fn func(ReconcileEvent)) {
	s.onReconcile = fn
}

func (s *Server) reconciled(ev ReconcileEvent) {
	if s.onReconcile != nil {
		s.onReconcile(ev)
	}
}

// SetBootDataObserver registers a callback invoked after each successful
// bootdata refresh (gsession/lifecycle.go's runBootdataRefresh), so a
// caller can persist the refreshed configuration for continuity across
// restarts. It must not block.
func (s *Server) SetBootDataObserver(fn func(cfg CentralConfig, maintenance bool)) {
	s.onBootDataSync = fn
}

func (s *Server) bootDataSynced(cfg CentralConfig, maintenance bool) {
	if s.onBootDataSync != nil {
		s.onBootDataSync(cfg, maintenance)
	}
}

// Status is the same snapshot runStatusPrint logs every tick, exported
// for an external surface (e.g. the admin API) to poll on demand.
type Status struct {
	Players        int
	Claimed        int
	Unclaimed      int
	Rooms          int
	GlobalRoom     int
	BroadcastBytes uint64
	Maintenance    bool
}

// Status returns the current player/room/broadcast counters.
func (s *Server) Status() Status {
	claimed, unclaimed := s.registry.Counts()
	return Status{
		Players:        s.registry.PlayerCount(),
		Claimed:        claimed,
		Unclaimed:      unclaimed,
		Rooms:          len(s.roomManager.GetRooms()),
		GlobalRoom:     s.roomManager.GetGlobal().PlayerCount(),
		BroadcastBytes: s.totalBroadcastBytes.Load(),
		Maintenance:    s.bridge.IsMaintenance(),
	}
}

// RoomPlayerCount returns the player count of roomID, or 0 if it does
// not exist.
func (s *Server) RoomPlayerCount(roomID uint32) (count int, ok bool) {
	ok = s.roomManager.WithAny(roomID, func(r Room) { count = r.PlayerCount() })
	return count, ok
}

func (s *Server) isEditorCollabLevel(levelID int32) bool {
	_, ok := s.editorCollab[levelID]
	return ok
}

// Run starts the Acceptor, Datagram Ingress, and Lifecycle Controller
// tasks and blocks until ctx is cancelled. The Acceptor and Ingress
// tasks never return on their own (SPEC_FULL.md §4.1/§4.2); only ctx
// cancellation stops Run.
func (s *Server) Run(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runAcceptor(ctx)
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runIngress(ctx)
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runLifecycle(ctx)
	}()

	<-ctx.Done()
	_ = s.streamListener.Close()
	_ = s.datagramConn.Close()
	s.wg.Wait()
	log.Printf("[server] shut down")
}
