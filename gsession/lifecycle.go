package gsession

import (
	"context"
	"log"
	"time"

	"github.com/dustin/go-humanize"
)

const (
	bootdataRefreshInterval = 5 * time.Minute
	roleRefreshInterval     = 30 * time.Minute
	duplicateLoginTimeout   = 10 * time.Second
	unclaimedSweepInterval  = 5 * time.Second
)

// runLifecycle spawns the bootdata refresh, role refresh, status print
// and unclaimed-aging sweep tickers, and blocks until ctx is cancelled.
func (s *Server) runLifecycle(ctx context.Context) {
	done := make(chan struct{})
	tasks := 0

	if !s.cfg.Standalone {
		tasks++
		go func() { s.runBootdataRefresh(ctx); done <- struct{}{} }()
		tasks++
		go func() { s.runRoleRefresh(ctx); done <- struct{}{} }()
	}

	interval := s.statusPrintInterval()
	if interval > 0 {
		tasks++
		go func() { s.runStatusPrint(ctx, interval); done <- struct{}{} }()
	}

	tasks++
	go func() { s.runUnclaimedSweep(ctx); done <- struct{}{} }()

	for i := 0; i < tasks; i++ {
		<-done
	}
}

func (s *Server) statusPrintInterval() time.Duration {
	if s.cfg.StatusPrintInterval != 0 {
		return time.Duration(s.cfg.StatusPrintInterval) * time.Second
	}
	return time.Duration(s.bridge.Config().StatusPrintInterval) * time.Second
}

func (s *Server) runBootdataRefresh(ctx context.Context) {
	ticker := time.NewTicker(bootdataRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.bridge.RefreshBootData(ctx); err != nil {
				log.Printf("[lifecycle] bootdata refresh failed: %v", err)
				continue
			}
			log.Printf("[lifecycle] refreshed central server configuration")

			maintenance := s.bridge.IsMaintenance()
			s.bootDataSynced(s.bridge.Config(), maintenance)

			if maintenance {
				s.sweepMaintenance()
			}
		}
	}
}

// sweepMaintenance enqueues a termination notice to every currently
// claimed session (snapshot then iterate, per SPEC_FULL.md §4.6).
func (s *Server) sweepMaintenance() {
	for _, sess := range s.registry.SnapshotClaimed() {
		sess.EnqueueTermination("The server is now under maintenance, please try connecting again later")
	}
	s.reconciled(ReconcileEvent{Kind: "maintenance_sweep"})
}

func (s *Server) runRoleRefresh(ctx context.Context) {
	ticker := time.NewTicker(roleRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.roleManager.RefreshFrom(s.bridge.Config())
		}
	}
}

func (s *Server) runStatusPrint(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.printStatus()
		}
	}
}

func (s *Server) printStatus() {
	claimed, unclaimed := s.registry.Counts()
	rooms := len(s.roomManager.GetRooms())
	global := s.roomManager.GetGlobal().PlayerCount()
	log.Printf("[lifecycle] players=%d claimed=%d unclaimed=%d rooms=%d global_room=%d broadcast_bytes=%s",
		s.registry.PlayerCount(), claimed, unclaimed, rooms, global,
		humanize.Bytes(s.totalBroadcastBytes.Load()))
}

// runUnclaimedSweep evicts sessions that have sat in the unclaimed
// table longer than cfg.MaxUnclaimedAge, bounding the linear-scan
// list's growth (resolving spec.md §9's open question).
func (s *Server) runUnclaimedSweep(ctx context.Context) {
	if s.cfg.MaxUnclaimedAge <= 0 {
		<-ctx.Done()
		return
	}
	// Sweep at least as often as the age limit so a session never
	// outlives MaxUnclaimedAge by a whole default sweep interval.
	interval := unclaimedSweepInterval
	if s.cfg.MaxUnclaimedAge < interval {
		interval = s.cfg.MaxUnclaimedAge
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, sess := range s.registry.SnapshotUnclaimed() {
				if sess.Claimed() {
					continue
				}
				if time.Since(sess.createdAt) > s.cfg.MaxUnclaimedAge {
					log.Printf("[lifecycle] evicting stale unclaimed session (secret=%08x, age=%s)", sess.ClaimSecret(), time.Since(sess.createdAt))
					s.registry.RemoveUnclaimed(sess)
					sess.Close()
				}
			}
		}
	}
}

// postDisconnect runs exactly once per Session after its reader exits:
// it removes the Session from whichever table holds it, decrements the
// player count, reconciles room/level membership, and signals cleanup
// (SPEC_FULL.md §4.6).
func (s *Server) postDisconnect(sess *Session) {
	if sess.Claimed() {
		if peer, ok := s.registry.FindClaimedPeer(sess); ok {
			s.registry.RemoveClaimed(peer)
		}
	} else {
		s.registry.RemoveUnclaimed(sess)
	}

	defer func() {
		sess.Close()
		sess.notifyCleanup()
	}()

	accountID := sess.AccountID()
	if accountID == 0 {
		return
	}

	roomID := sess.RoomID()
	levelID := sess.LevelID()

	wasOwner := s.roomManager.RemoveWithAny(uint32(roomID), accountID, levelID)
	if wasOwner && roomID != 0 {
		s.BroadcastRoomInfo(roomID)
		s.reconciled(ReconcileEvent{Kind: "ownership_transfer", AccountID: accountID, RoomID: roomID})
	}

	s.reconciled(ReconcileEvent{Kind: "disconnect", AccountID: accountID, RoomID: roomID})
}

// EvictDuplicateLogin logs out whichever session currently holds
// accountID, waiting up to 10 seconds for it to finish disconnecting
// (SPEC_FULL.md §4.6). It succeeds immediately if no session holds the
// account.
func (s *Server) EvictDuplicateLogin(ctx context.Context, accountID int32) error {
	target := s.findByAccountID(accountID)
	if target == nil {
		return nil
	}

	target.EnqueueTermination("Someone logged into the same account from a different place.")

	timer := time.NewTimer(duplicateLoginTimeout)
	defer timer.Stop()

	select {
	case <-target.CleanupCh():
		s.reconciled(ReconcileEvent{Kind: "duplicate_login", AccountID: accountID})
		return nil
	case <-timer.C:
		return ErrEvictionTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}
