// Command gameserverd runs a standalone gsession game server: a plain
// TCP stream listener for control/claim traffic and a UDP socket for
// voice/routed datagrams, an in-memory room manager, a SQLite-backed
// audit trail, and a read-only HTTP admin surface. Wiring and flag set
// are adapted from the teacher's main.go (flag set, signal handling,
// ticker goroutines, defer-cancel shutdown shape).
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"time"

	"netcore.dev/gameserver/gsession"
	"netcore.dev/gameserver/internal/adminapi"
	"netcore.dev/gameserver/internal/bridge"
	"netcore.dev/gameserver/internal/rooms"
	"netcore.dev/gameserver/internal/store"
)

func main() {
	addr := flag.String("addr", ":7777", "TCP stream listen address (control/claim traffic)")
	udpAddr := flag.String("udp-addr", ":7778", "UDP listen address (voice/routed datagrams)")
	apiAddr := flag.String("api-addr", ":8080", "admin HTTP API listen address (empty to disable)")
	dbPath := flag.String("db", "gameserverd.db", "SQLite database path for the audit trail")
	standalone := flag.Bool("standalone", true, "disable bootdata/role refresh tickers (no central directory service reachable)")
	statusInterval := flag.Uint("status-interval", 30, "status print interval in seconds")
	maxUnclaimedAge := flag.Duration("max-unclaimed-age", 30*time.Second, "how long an unclaimed session may sit before the sweep evicts it (0 disables aging)")
	certValidity := flag.Duration("cert-validity", 24*time.Hour, "self-signed TLS certificate validity")
	flag.Parse()

	auditStore, err := store.Open(*dbPath)
	if err != nil {
		log.Fatalf("[store] %v", err)
	}
	defer auditStore.Close()

	hostname := ""
	if host, _, err := net.SplitHostPort(*addr); err == nil && host != "" {
		hostname = host
	}
	_, fingerprint, err := generateTLSConfig(*certValidity, hostname)
	if err != nil {
		log.Fatalf("[tls] %v", err)
	}
	log.Printf("[tls] self-signed certificate fingerprint: %s", fingerprint)

	streamListener, err := net.Listen("tcp", *addr)
	if err != nil {
		log.Fatalf("[server] listen tcp %s: %v", *addr, err)
	}

	resolvedUDP, err := net.ResolveUDPAddr("udp", *udpAddr)
	if err != nil {
		log.Fatalf("[server] resolve udp %s: %v", *udpAddr, err)
	}
	datagramConn, err := net.ListenUDP("udp", resolvedUDP)
	if err != nil {
		log.Fatalf("[server] listen udp %s: %v", *udpAddr, err)
	}
	// game.Run closes both streamListener and datagramConn on shutdown.

	br := bridge.NewStatic(uint32(*statusInterval))
	if snap, err := auditStore.LoadBootDataSnapshot(context.Background()); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("[store] load bootdata snapshot: %v", err)
		}
	} else {
		log.Printf("[store] restored bootdata snapshot from %s (maintenance=%v)", snap.RefreshedAt.Format(time.RFC3339), snap.Maintenance)
		br.SetMaintenance(snap.Maintenance)
		br.SetStatusPrintInterval(snap.StatusPrintInterval)
	}

	roomManager := rooms.NewManager()
	roleManager := rooms.NewRoleManager()

	cfg := gsession.Config{
		Standalone:          *standalone,
		MaxUnclaimedAge:     *maxUnclaimedAge,
		StatusPrintInterval: uint32(*statusInterval),
	}

	game, err := gsession.NewServer(streamListener, datagramConn, br, roomManager, roleManager, cfg)
	if err != nil {
		log.Fatalf("[server] %v", err)
	}

	game.SetReconcileObserver(func(ev gsession.ReconcileEvent) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := auditStore.InsertAuditLog(ctx, ev.Kind, ev.AccountID, ev.RoomID, ev.Detail); err != nil {
			log.Printf("[audit] insert %s: %v", ev.Kind, err)
		}
	})

	game.SetBootDataObserver(func(cfg gsession.CentralConfig, maintenance bool) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := auditStore.SaveBootDataSnapshot(ctx, cfg.StatusPrintInterval, maintenance); err != nil {
			log.Printf("[store] save bootdata snapshot: %v", err)
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		log.Println("[server] shutting down...")
		cancel()
	}()

	if *apiAddr != "" {
		admin := adminapi.New(game, auditStore)
		go admin.Run(ctx, *apiAddr)
		log.Printf("[admin] listening on %s", *apiAddr)
	}

	log.Printf("[server] stream listener on %s, datagram socket on %s", *addr, *udpAddr)
	game.Run(ctx)

	// Standalone mode never runs the bootdata refresh ticker that drives
	// SetBootDataObserver above, so capture final state here too.
	if err := auditStore.SaveBootDataSnapshot(context.Background(), br.Config().StatusPrintInterval, br.IsMaintenance()); err != nil {
		log.Printf("[store] save bootdata snapshot: %v", err)
	}
}
