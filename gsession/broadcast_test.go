package gsession

import (
	"testing"
)

func TestBroadcastAllAuthenticated(t *testing.T) {
	srv, _, _ := newTestServer(t, Config{})
	s1, close1 := claimedSession(srv, 1, 10, 0, 0)
	defer close1()
	s2, close2 := claimedSession(srv, 2, 20, 0, 0)
	defer close2()
	_ = s1
	_ = s2

	unauth, closeU := claimedSession(srv, 3, 30, 0, 0)
	defer closeU()
	unauth.SetAuthenticated(false)

	got := srv.allAuthenticated()
	if len(got) != 2 {
		t.Fatalf("expected 2 authenticated sessions, got %d", len(got))
	}
}

func TestBroadcastVisibleInRoomGlobalInvisible(t *testing.T) {
	srv, _, _ := newTestServer(t, Config{})

	visible, c1 := claimedSession(srv, 1, 10, 0, 0)
	defer c1()
	invisibleGlobal, c2 := claimedSession(srv, 2, 20, 0, 0)
	defer c2()
	invisibleGlobal.SetInvisible(true)
	inOtherRoom, c3 := claimedSession(srv, 3, 30, 5, 0)
	defer c3()
	inOtherRoom.SetInvisible(true)

	got := srv.visibleInRoom(0)
	if len(got) != 1 || got[0] != visible {
		t.Fatalf("expected only the visible global-room session, got %d results", len(got))
	}

	got = srv.visibleInRoom(5)
	if len(got) != 1 || got[0] != inOtherRoom {
		t.Fatal("invisible flag must not exclude players from a non-global room (the corrected filter)")
	}
}

func TestBroadcastInRoom(t *testing.T) {
	srv, _, _ := newTestServer(t, Config{})
	a, ca := claimedSession(srv, 1, 10, 7, 0)
	defer ca()
	b, cb := claimedSession(srv, 2, 20, 7, 0)
	defer cb()
	_, cc := claimedSession(srv, 3, 30, 8, 0)
	defer cc()

	got := srv.inRoom(7)
	if len(got) != 2 {
		t.Fatalf("expected 2 sessions in room 7, got %d", len(got))
	}
	seen := map[*Session]bool{a: false, b: false}
	for _, s := range got {
		seen[s] = true
	}
	if !seen[a] || !seen[b] {
		t.Fatal("expected both room-7 sessions in the result")
	}
}

func TestBroadcastRoomLevelMembersExcludesOrigin(t *testing.T) {
	srv, rm, _ := newTestServer(t, Config{})
	origin, cOrigin := claimedSession(srv, 1, 1, 7, 3)
	defer cOrigin()
	member, cMember := claimedSession(srv, 2, 2, 7, 3)
	defer cMember()
	nonMember, cNon := claimedSession(srv, 3, 3, 7, 3)
	defer cNon()
	_ = nonMember

	rm.addRoom(7, 1, map[int32][]int32{3: {1, 2}})

	got := srv.roomLevelMembers(7, 3, origin.AccountID())
	if len(got) != 1 || got[0] != member {
		t.Fatalf("expected only the non-origin member, got %d results", len(got))
	}
}

func TestBroadcastVoiceFansOutAndCountsBytes(t *testing.T) {
	srv, rm, _ := newTestServer(t, Config{})
	rm.addRoom(7, 1, map[int32][]int32{3: {1, 2}})

	_, c1 := claimedSession(srv, 1, 1, 7, 3)
	defer c1()
	_, c2 := claimedSession(srv, 2, 2, 7, 3)
	defer c2()

	payload := &BroadcastPayload{Data: []byte("voice-data")}
	srv.BroadcastVoice(payload, 1, 3, 7)

	if got := srv.totalBroadcastBytes.Load(); got != uint64(len(payload.Data)) {
		t.Fatalf("expected broadcast byte count %d for a single non-origin recipient, got %d", len(payload.Data), got)
	}
}

func TestBroadcastChatFansOutAndCountsBytes(t *testing.T) {
	srv, rm, _ := newTestServer(t, Config{})
	rm.addRoom(7, 1, map[int32][]int32{3: {1, 2}})

	_, c1 := claimedSession(srv, 1, 1, 7, 3)
	defer c1()
	member, c2 := claimedSession(srv, 2, 2, 7, 3)
	defer c2()

	payload := &BroadcastPayload{Data: []byte("chat-data")}
	srv.BroadcastChat(payload, 1, 3, 7)

	if got := srv.totalBroadcastBytes.Load(); got != uint64(len(payload.Data)) {
		t.Fatalf("expected broadcast byte count %d for a single non-origin recipient, got %d", len(payload.Data), got)
	}

	m := <-member.inbound
	if m.kind != msgBroadcastText || m.shared != payload {
		t.Fatalf("expected the non-origin member to receive the chat payload, got kind=%v", m.kind)
	}
}

func TestBroadcastRoomMessageExcludesOriginAndReachesRoom(t *testing.T) {
	srv, _, _ := newTestServer(t, Config{})
	origin, cOrigin := claimedSession(srv, 1, 10, 7, 0)
	defer cOrigin()
	member, cMember := claimedSession(srv, 2, 20, 7, 0)
	defer cMember()
	_, cOther := claimedSession(srv, 3, 30, 8, 0)
	defer cOther()

	payload := &BroadcastPayload{Data: []byte("room-message")}
	srv.BroadcastRoomMessage(payload, origin.AccountID(), 7)

	m := <-member.inbound
	if m.kind != msgBroadcastText || m.shared != payload {
		t.Fatalf("expected the room-7 peer to receive the message, got kind=%v", m.kind)
	}

	select {
	case m := <-origin.inbound:
		t.Fatalf("origin must be excluded from its own room message, got kind=%v", m.kind)
	default:
	}
}

func TestBroadcastRoomInfoSkipsGlobalRoom(t *testing.T) {
	srv, rm, _ := newTestServer(t, Config{})
	rm.addRoom(7, 1, map[int32][]int32{0: {1}})
	_, c1 := claimedSession(srv, 1, 1, 7, 0)
	defer c1()

	// Must not panic or block for room 0 (the implicit global room).
	srv.BroadcastRoomInfo(0)
	srv.BroadcastRoomInfo(7)
}
