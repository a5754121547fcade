package gsession

// The broadcast engine exposes four filtered iteration primitives over
// claimed sessions (SPEC_FULL.md §4.5). Each snapshots its target set
// while holding the registry lock, releases the lock, then sends
// sequentially — so no send ever happens while the registry lock is
// held (SPEC_FULL.md §5).

// allAuthenticated returns every claimed session with authenticated = true.
func (s *Server) allAuthenticated() []*Session {
	var out []*Session
	for _, sess := range s.registry.SnapshotClaimed() {
		if sess.Authenticated() {
			out = append(out, sess)
		}
	}
	return out
}

// inRoom returns every authenticated session in room R.
func (s *Server) inRoom(roomID int32) []*Session {
	var out []*Session
	for _, sess := range s.registry.SnapshotClaimed() {
		if sess.Authenticated() && sess.RoomID() == roomID {
			out = append(out, sess)
		}
	}
	return out
}

// visibleInRoom returns every authenticated session in room R that
// should be visible there. The filter is the corrected form of
// spec.md's formula, per the §9 open question: room == R AND NOT
// (R == 0 AND invisible) — the as-written `room == R && (R == 0 &&
// !invisible)` would exclude every player whenever R != 0.
func (s *Server) visibleInRoom(roomID int32) []*Session {
	var out []*Session
	for _, sess := range s.registry.SnapshotClaimed() {
		if !sess.Authenticated() || sess.RoomID() != roomID {
			continue
		}
		if roomID == 0 && sess.Invisible() {
			continue
		}
		out = append(out, sess)
	}
	return out
}

// roomLevelMembers returns every authenticated session in room R on
// level L, excluding originID, using the room manager's membership set.
func (s *Server) roomLevelMembers(roomID int32, levelID int32, originID int32) []*Session {
	var members []int32
	s.roomManager.WithAny(uint32(roomID), func(room Room) {
		if ids, ok := room.LevelMembers(levelID); ok {
			members = ids
		}
	})
	if len(members) == 0 {
		return nil
	}
	memberSet := make(map[int32]struct{}, len(members))
	for _, id := range members {
		memberSet[id] = struct{}{}
	}

	var out []*Session
	for _, sess := range s.registry.SnapshotClaimed() {
		if !sess.Authenticated() {
			continue
		}
		id := sess.AccountID()
		if id == originID {
			continue
		}
		if _, ok := memberSet[id]; ok {
			out = append(out, sess)
		}
	}
	return out
}

// BroadcastVoice fans out a voice payload to every player in roomID on
// levelID, excluding originID.
func (s *Server) BroadcastVoice(payload *BroadcastPayload, originID int32, levelID int32, roomID int32) {
	targets := s.roomLevelMembers(roomID, levelID, originID)
	s.totalBroadcastBytes.Add(uint64(len(payload.Data)) * uint64(len(targets)))
	for _, sess := range targets {
		sess.EnqueueBroadcastVoice(payload)
	}
}

// BroadcastChat fans out a chat payload the same way BroadcastVoice does.
func (s *Server) BroadcastChat(payload *BroadcastPayload, originID int32, levelID int32, roomID int32) {
	targets := s.roomLevelMembers(roomID, levelID, originID)
	s.totalBroadcastBytes.Add(uint64(len(payload.Data)) * uint64(len(targets)))
	for _, sess := range targets {
		sess.EnqueueBroadcastText(payload)
	}
}

// BroadcastRoomMessage is the generic room-wide fan-out, excluding
// originID, used by callers outside voice/chat. BroadcastRoomInfo does
// not go through it.
func (s *Server) BroadcastRoomMessage(payload *BroadcastPayload, originID int32, roomID int32) {
	for _, sess := range s.inRoom(roomID) {
		if sess.AccountID() == originID {
			continue
		}
		sess.EnqueueBroadcastText(payload)
	}
}

// BroadcastRoomInfo builds a RoomInfoPacket from the room manager's
// current snapshot and fans it out to every player in roomID (no origin
// suppression). It is a no-op when roomID is 0, the implicit global room.
func (s *Server) BroadcastRoomInfo(roomID int32) {
	if roomID == 0 {
		return
	}

	var info RoomInfo
	found := s.roomManager.WithAny(uint32(roomID), func(room Room) {
		info = RoomInfo{RoomID: room.ID(), OwnerID: room.OwnerID(), PlayerCount: int32(room.PlayerCount())}
	})
	if !found {
		return
	}

	payload := &BroadcastPayload{Data: encodeRoomInfoPacket(info)}
	for _, sess := range s.inRoom(roomID) {
		sess.EnqueueBroadcastRoomInfo(payload)
	}
}
