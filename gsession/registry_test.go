package gsession

import (
	"net"
	"net/netip"
	"testing"
)

func newTestPeer(port int) netip.AddrPort {
	return netip.AddrPortFrom(netip.MustParseAddr("127.0.0.1"), uint16(port))
}

func newTestSession(secret uint32) *Session {
	c1, c2 := net.Pipe()
	go func() { _ = c2.Close() }()
	return NewSession(c1, secret)
}

func TestRegistryAddUnclaimedCounts(t *testing.T) {
	r := NewRegistry()
	s := newTestSession(1)
	r.AddUnclaimed(s)

	claimed, unclaimed := r.Counts()
	if claimed != 0 || unclaimed != 1 {
		t.Fatalf("counts: got claimed=%d unclaimed=%d, want 0,1", claimed, unclaimed)
	}
}

func TestRegistryClaimMovesSession(t *testing.T) {
	r := NewRegistry()
	s := newTestSession(42)
	r.AddUnclaimed(s)

	peer := newTestPeer(9000)
	got, ok := r.Claim(peer, 42)
	if !ok {
		t.Fatal("expected claim to succeed")
	}
	if got != s {
		t.Fatal("claim returned a different session")
	}
	if !s.Claimed() {
		t.Fatal("session should report claimed")
	}
	if s.UDPPeer() != peer {
		t.Fatalf("UDPPeer: got %v, want %v", s.UDPPeer(), peer)
	}

	claimed, unclaimed := r.Counts()
	if claimed != 1 || unclaimed != 0 {
		t.Fatalf("counts after claim: got claimed=%d unclaimed=%d, want 1,0", claimed, unclaimed)
	}
}

func TestRegistryClaimWrongSecretIsIdempotent(t *testing.T) {
	r := NewRegistry()
	s := newTestSession(7)
	r.AddUnclaimed(s)

	_, ok := r.Claim(newTestPeer(9001), 999)
	if ok {
		t.Fatal("expected claim with wrong secret to fail")
	}
	if s.Claimed() {
		t.Fatal("session must not be mutated on a failed claim")
	}
	claimed, unclaimed := r.Counts()
	if claimed != 0 || unclaimed != 1 {
		t.Fatalf("counts after failed claim: got claimed=%d unclaimed=%d, want 0,1", claimed, unclaimed)
	}
}

func TestRegistryClaimPicksEarliestInsertion(t *testing.T) {
	r := NewRegistry()
	first := newTestSession(5)
	second := newTestSession(5)
	r.AddUnclaimed(first)
	r.AddUnclaimed(second)

	got, ok := r.Claim(newTestPeer(9002), 5)
	if !ok {
		t.Fatal("expected claim to succeed")
	}
	if got != first {
		t.Fatal("expected the earliest-inserted session with a matching secret to win")
	}
}

func TestRegistryClaimTwiceFailsSecondTime(t *testing.T) {
	r := NewRegistry()
	s := newTestSession(11)
	r.AddUnclaimed(s)

	if _, ok := r.Claim(newTestPeer(9003), 11); !ok {
		t.Fatal("first claim should succeed")
	}
	if _, ok := r.Claim(newTestPeer(9004), 11); ok {
		t.Fatal("second claim with the same secret must fail, the session is no longer unclaimed")
	}
}

func TestRegistryLookupAndRemoveClaimed(t *testing.T) {
	r := NewRegistry()
	s := newTestSession(3)
	r.AddUnclaimed(s)
	peer := newTestPeer(9005)
	r.Claim(peer, 3)

	got, ok := r.Lookup(peer)
	if !ok || got != s {
		t.Fatal("expected lookup to find the claimed session")
	}

	if !r.RemoveClaimed(peer) {
		t.Fatal("expected RemoveClaimed to report found")
	}
	if _, ok := r.Lookup(peer); ok {
		t.Fatal("session should no longer be found after removal")
	}
	if r.RemoveClaimed(peer) {
		t.Fatal("removing twice should report not found")
	}
}

func TestRegistryRemoveUnclaimed(t *testing.T) {
	r := NewRegistry()
	s1 := newTestSession(1)
	s2 := newTestSession(2)
	r.AddUnclaimed(s1)
	r.AddUnclaimed(s2)

	r.RemoveUnclaimed(s1)
	_, unclaimed := r.Counts()
	if unclaimed != 1 {
		t.Fatalf("expected 1 remaining unclaimed session, got %d", unclaimed)
	}
	snap := r.SnapshotUnclaimed()
	if len(snap) != 1 || snap[0] != s2 {
		t.Fatal("expected s2 to remain in the unclaimed table")
	}
}

func TestRegistryFindClaimedPeer(t *testing.T) {
	r := NewRegistry()
	s := newTestSession(9)
	r.AddUnclaimed(s)
	peer := newTestPeer(9006)
	r.Claim(peer, 9)

	got, ok := r.FindClaimedPeer(s)
	if !ok || got != peer {
		t.Fatalf("FindClaimedPeer: got %v,%v want %v,true", got, ok, peer)
	}

	other := newTestSession(10)
	if _, ok := r.FindClaimedPeer(other); ok {
		t.Fatal("expected FindClaimedPeer to fail for an unregistered session")
	}
}

func TestRegistryPlayerCountExcludesUnauthenticated(t *testing.T) {
	r := NewRegistry()
	s1 := newTestSession(1)
	s2 := newTestSession(2)
	r.AddUnclaimed(s1)
	r.AddUnclaimed(s2)
	r.Claim(newTestPeer(9007), 1)
	r.Claim(newTestPeer(9008), 2)

	if n := r.PlayerCount(); n != 0 {
		t.Fatalf("expected 0 players before any account id is set, got %d", n)
	}

	s1.SetAccountID(100)
	if n := r.PlayerCount(); n != 1 {
		t.Fatalf("expected 1 player after setting an account id, got %d", n)
	}
}

func TestRegistrySnapshotClaimedIsACopy(t *testing.T) {
	r := NewRegistry()
	s := newTestSession(1)
	r.AddUnclaimed(s)
	r.Claim(newTestPeer(9009), 1)

	snap := r.SnapshotClaimed()
	if len(snap) != 1 {
		t.Fatalf("expected 1 claimed session in snapshot, got %d", len(snap))
	}

	r.RemoveClaimed(newTestPeer(9009))
	if len(snap) != 1 {
		t.Fatal("snapshot must not be affected by later registry mutations")
	}
}
