// Package rooms provides the default in-memory RoomManager and
// RoleManager gsession consumes when no external room service is wired
// in (standalone mode). It generalizes the teacher's per-channel
// membership bookkeeping (room.go's ClaimOwnership/TransferOwnership
// family) from "channels" to "rooms x levels".
package rooms

import (
	"log"
	"sync"

	"netcore.dev/gameserver/gsession"
)

// Room is one room's level-membership bookkeeping: which account ids are
// present on which level, and who currently owns the room.
type Room struct {
	id uint32

	mu      sync.RWMutex
	owner   int32
	members map[int32]map[int32]struct{} // levelID -> account ids
}

func newRoom(id uint32) *Room {
	return &Room{id: id, members: make(map[int32]map[int32]struct{})}
}

// ID returns the room's identifier.
func (r *Room) ID() uint32 { return r.id }

// OwnerID returns the current owner's account id, or 0 if the room has
// no owner (mirrors room.go's ownerID == 0 "no owner" sentinel).
func (r *Room) OwnerID() int32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.owner
}

// PlayerCount returns the total number of (accountID, levelID) entries
// across every level in the room.
func (r *Room) PlayerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, ids := range r.members {
		n += len(ids)
	}
	return n
}

// LevelMembers returns the account ids present on levelID, and whether
// that level currently has a membership set (a set is removed once it
// becomes empty).
func (r *Room) LevelMembers(levelID int32) ([]int32, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set, ok := r.members[levelID]
	if !ok {
		return nil, false
	}
	ids := make([]int32, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids, true
}

// claimOwnershipLocked sets accountID as owner if the room currently has
// none, mirroring room.go's ClaimOwnership.
func (r *Room) claimOwnershipLocked(accountID int32) {
	if r.owner == 0 {
		r.owner = accountID
	}
}

// addMember places accountID on levelID, creating the level's membership
// set on first use, and claims ownership if the room has none yet.
func (r *Room) addMember(accountID int32, levelID int32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.members[levelID]
	if !ok {
		set = make(map[int32]struct{})
		r.members[levelID] = set
	}
	set[accountID] = struct{}{}
	r.claimOwnershipLocked(accountID)
}

// moveMember relocates accountID from fromLevel to toLevel within the
// room. accountID is added to toLevel even if it wasn't present on
// fromLevel.
func (r *Room) moveMember(accountID int32, fromLevel, toLevel int32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if set, ok := r.members[fromLevel]; ok {
		delete(set, accountID)
		if len(set) == 0 {
			delete(r.members, fromLevel)
		}
	}
	set, ok := r.members[toLevel]
	if !ok {
		set = make(map[int32]struct{})
		r.members[toLevel] = set
	}
	set[accountID] = struct{}{}
}

// removeMember deletes accountID from levelID's set and transfers
// ownership to the lowest remaining account id if accountID was owner,
// mirroring room.go's TransferOwnership. It reports whether accountID
// was the owner and whether the room is now empty.
func (r *Room) removeMember(accountID int32, levelID int32) (wasOwner bool, empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if set, ok := r.members[levelID]; ok {
		delete(set, accountID)
		if len(set) == 0 {
			delete(r.members, levelID)
		}
	}

	if r.owner == accountID {
		wasOwner = true
		r.owner = 0
		for _, set := range r.members {
			for id := range set {
				if r.owner == 0 || id < r.owner {
					r.owner = id
				}
			}
		}
	}

	for _, set := range r.members {
		if len(set) > 0 {
			return wasOwner, false
		}
	}
	return wasOwner, true
}

// Manager is the default in-memory gsession.RoomManager implementation.
type Manager struct {
	mu     sync.RWMutex
	rooms  map[uint32]*Room
	global *Room

	srv *gsession.Server
}

// NewManager returns an empty Manager with the implicit global room (id 0)
// pre-created.
func NewManager() *Manager {
	return &Manager{
		rooms:  make(map[uint32]*Room),
		global: newRoom(0),
	}
}

// SetGameServer stores the owning Server for callbacks the manager itself
// doesn't currently need beyond satisfying the gsession.RoomManager
// interface; kept for parity with the teacher's Room/Server wiring.
func (m *Manager) SetGameServer(srv *gsession.Server) { m.srv = srv }

// WithAny runs fn with the room identified by roomID (the global room for
// id 0) if it exists, and reports whether it did. Go does not allow a
// generic method, so callers that need a fallback value capture it via a
// closure variable instead of a TryWithAny[T] generic method.
func (m *Manager) WithAny(roomID uint32, fn func(gsession.Room)) bool {
	if roomID == 0 {
		fn(m.global)
		return true
	}
	m.mu.RLock()
	room, ok := m.rooms[roomID]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	fn(room)
	return true
}

// GetRooms returns a snapshot of every non-global room.
func (m *Manager) GetRooms() map[uint32]gsession.Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[uint32]gsession.Room, len(m.rooms))
	for id, r := range m.rooms {
		out[id] = r
	}
	return out
}

// GetGlobal returns the implicit global room (id 0).
func (m *Manager) GetGlobal() gsession.Room { return m.global }

// GetOrCreate returns the room identified by roomID, creating it (and
// registering it in the manager) on first use. roomID 0 always returns
// the global room.
func (m *Manager) GetOrCreate(roomID uint32) *Room {
	if roomID == 0 {
		return m.global
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[roomID]
	if !ok {
		room = newRoom(roomID)
		m.rooms[roomID] = room
	}
	return room
}

// Join adds accountID to roomID's levelID membership set, creating the
// room if needed.
func (m *Manager) Join(roomID uint32, accountID int32, levelID int32) {
	m.GetOrCreate(roomID).addMember(accountID, levelID)
}

// ChangeLevel relocates accountID between two levels of the same room.
func (m *Manager) ChangeLevel(roomID uint32, accountID int32, fromLevel, toLevel int32) {
	m.GetOrCreate(roomID).moveMember(accountID, fromLevel, toLevel)
}

// RemoveWithAny removes accountID from roomID/levelID's membership,
// deletes non-global rooms once they become empty (room.go has no
// equivalent since the teacher runs a single fixed Room for its whole
// process lifetime; deletion here exists because gsession supports an
// arbitrary number of rooms), and reports whether accountID was that
// room's owner.
func (m *Manager) RemoveWithAny(roomID uint32, accountID int32, levelID int32) (wasOwner bool) {
	if roomID == 0 {
		wasOwner, _ = m.global.removeMember(accountID, levelID)
		return wasOwner
	}

	m.mu.Lock()
	room, ok := m.rooms[roomID]
	if !ok {
		m.mu.Unlock()
		return false
	}
	m.mu.Unlock()

	var empty bool
	wasOwner, empty = room.removeMember(accountID, levelID)
	if empty {
		m.mu.Lock()
		if m.rooms[roomID] == room {
			delete(m.rooms, roomID)
			log.Printf("[rooms] room %d emptied, removed", roomID)
		}
		m.mu.Unlock()
	}
	return wasOwner
}

// RoleManager is a trivial in-memory gsession.RoleManager: it has no
// roles of its own to refresh, matching the teacher's treatment of
// roles as central-directory-owned data the core never computes.
type RoleManager struct {
	mu  sync.Mutex
	cfg gsession.CentralConfig
}

// NewRoleManager returns an empty RoleManager.
func NewRoleManager() *RoleManager { return &RoleManager{} }

// RefreshFrom stores the latest central configuration snapshot.
func (r *RoleManager) RefreshFrom(cfg gsession.CentralConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg = cfg
}

// Config returns the most recently refreshed configuration.
func (r *RoleManager) Config() gsession.CentralConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg
}
