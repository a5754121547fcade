package gsession

import (
	"context"
	"sync"
)

// fakeRoom is a minimal in-memory Room used by gsession's own tests; the
// real implementation lives in internal/rooms.
type fakeRoom struct {
	id      uint32
	owner   int32
	members map[int32][]int32 // levelID -> account ids
}

func (r *fakeRoom) ID() uint32      { return r.id }
func (r *fakeRoom) OwnerID() int32  { return r.owner }
func (r *fakeRoom) PlayerCount() int {
	n := 0
	for _, ids := range r.members {
		n += len(ids)
	}
	return n
}
func (r *fakeRoom) LevelMembers(levelID int32) ([]int32, bool) {
	ids, ok := r.members[levelID]
	return ids, ok
}

// fakeRoomManager is a test double satisfying RoomManager.
type fakeRoomManager struct {
	mu     sync.Mutex
	rooms  map[uint32]*fakeRoom
	global *fakeRoom
	srv    *Server

	removeWasOwner bool
}

func newFakeRoomManager() *fakeRoomManager {
	return &fakeRoomManager{
		rooms:  make(map[uint32]*fakeRoom),
		global: &fakeRoom{id: 0, members: make(map[int32][]int32)},
	}
}

func (m *fakeRoomManager) SetGameServer(s *Server) { m.srv = s }

func (m *fakeRoomManager) WithAny(roomID uint32, fn func(Room)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if roomID == 0 {
		fn(m.global)
		return true
	}
	room, ok := m.rooms[roomID]
	if !ok {
		return false
	}
	fn(room)
	return true
}

func (m *fakeRoomManager) GetRooms() map[uint32]Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[uint32]Room, len(m.rooms))
	for id, r := range m.rooms {
		out[id] = r
	}
	return out
}

func (m *fakeRoomManager) GetGlobal() Room { return m.global }

func (m *fakeRoomManager) RemoveWithAny(roomID uint32, accountID int32, levelID int32) bool {
	return m.removeWasOwner
}

func (m *fakeRoomManager) addRoom(id uint32, owner int32, levelMembers map[int32][]int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[id] = &fakeRoom{id: id, owner: owner, members: levelMembers}
}

// fakeBridge is a test double satisfying Bridge.
type fakeBridge struct {
	mu           sync.Mutex
	maintenance  bool
	cfg          CentralConfig
	updated      []UserEntry
	refreshCalls int
	updateErr    error
}

func (b *fakeBridge) RefreshBootData(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshCalls++
	return nil
}

func (b *fakeBridge) IsMaintenance() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.maintenance
}

func (b *fakeBridge) UpdateUserData(ctx context.Context, entry UserEntry) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.updateErr != nil {
		return b.updateErr
	}
	b.updated = append(b.updated, entry)
	return nil
}

func (b *fakeBridge) Config() CentralConfig {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cfg
}

// fakeRoleManager is a test double satisfying RoleManager.
type fakeRoleManager struct {
	mu            sync.Mutex
	refreshCalled int
}

func (r *fakeRoleManager) RefreshFrom(cfg CentralConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshCalled++
}

// newTestServer builds a Server with fake collaborators and no live
// network transports, suitable for exercising the registry, broadcast,
// lifecycle and facade logic in isolation.
func newTestServer(t interface {
	Fatalf(format string, args ...any)
}, cfg Config) (*Server, *fakeRoomManager, *fakeBridge) {
	rm := newFakeRoomManager()
	bridge := &fakeBridge{}
	srv, err := NewServer(nil, nil, bridge, rm, &fakeRoleManager{}, cfg)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv, rm, bridge
}

// claimedSession builds a claimed, authenticated Session in srv's
// registry and returns it along with a func that closes the client side
// of its pipe.
func claimedSession(srv *Server, secret uint32, accountID int32, roomID, levelID int32) (*Session, func()) {
	s, client := pipeSession(secret)
	srv.registry.AddUnclaimed(s)
	srv.registry.Claim(newTestPeer(int(secret)+20000), secret)
	s.SetAuthenticated(true)
	s.SetAccountID(accountID)
	s.SetRoomID(roomID)
	s.SetLevelID(levelID)
	return s, func() { client.Close() }
}
