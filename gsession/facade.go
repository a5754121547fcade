package gsession

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// findByAccountID returns the claimed session with the given account
// id, or nil.
func (s *Server) findByAccountID(accountID int32) *Session {
	for _, sess := range s.registry.SnapshotClaimed() {
		if sess.AccountID() == accountID {
			return sess
		}
	}
	return nil
}

// FindUser resolves s as an account id if it parses as a signed 32-bit
// integer, otherwise as a case-insensitive account name (SPEC_FULL.md
// §4.7).
func (s *Server) FindUser(query string) *Session {
	if id, err := strconv.ParseInt(query, 10, 32); err == nil {
		return s.findByAccountID(int32(id))
	}
	for _, sess := range s.registry.SnapshotClaimed() {
		if strings.EqualFold(sess.AccountData().Username, query) {
			return sess
		}
	}
	return nil
}

// UpdateUser finds the user by name-or-id, applies mutate to a clone of
// their persisted entry, and — if mutate reports the entry dirty — pushes
// the clone to the central directory service.
func (s *Server) UpdateUser(ctx context.Context, query string, mutate func(*UserEntry) bool) error {
	target := s.FindUser(query)
	if target == nil {
		return ErrUserNotFound
	}

	entry, dirty := target.MutateUserEntry(mutate)
	if !dirty {
		return nil
	}
	if err := s.bridge.UpdateUserData(ctx, entry); err != nil {
		return fmt.Errorf("%w: %w", ErrRemoteUpdateFailed, err)
	}
	return nil
}

// GetPlayerAccountData returns the first claimed session's account data
// matching accountID.
func (s *Server) GetPlayerAccountData(accountID int32) (AccountData, bool) {
	sess := s.findByAccountID(accountID)
	if sess == nil {
		return AccountData{}, false
	}
	return sess.AccountData(), true
}

// GetPlayerPreviewByID returns the preview projection for accountID.
func (s *Server) GetPlayerPreviewByID(accountID int32) (PlayerPreview, bool) {
	data, ok := s.GetPlayerAccountData(accountID)
	if !ok {
		return PlayerPreview{}, false
	}
	return data.Preview(), true
}

// AllPlayerPreviews returns a preview for every authenticated session,
// pre-sized from the snapshot of authenticated sessions.
func (s *Server) AllPlayerPreviews() []PlayerPreview {
	sessions := s.allAuthenticated()
	out := make([]PlayerPreview, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sess.AccountData().Preview())
	}
	return out
}

// PlayerPreviewsInRoom returns a preview for every authenticated session
// in roomID, pre-sized from the room manager's player-count estimate.
func (s *Server) PlayerPreviewsInRoom(roomID int32) []PlayerPreview {
	estimate := s.roomEstimate(roomID)
	out := make([]PlayerPreview, 0, estimate)
	for _, sess := range s.inRoom(roomID) {
		out = append(out, sess.AccountData().Preview())
	}
	return out
}

// VisiblePlayerPreviewsInRoom returns the visible-in-room projection
// (SPEC_FULL.md §4.5), collapsing editor-collab levels to 0.
func (s *Server) VisiblePlayerPreviewsInRoom(roomID int32) []PlayerRoomPreview {
	estimate := s.roomEstimate(roomID)
	out := make([]PlayerRoomPreview, 0, estimate)
	for _, sess := range s.visibleInRoom(roomID) {
		out = append(out, sess.AccountData().RoomPreview(s.projectedLevel(sess)))
	}
	return out
}

// PlayerPreviewsInRoomWithLevel returns every player in roomID, with
// their level id projected (editor-collab levels collapsed to 0).
func (s *Server) PlayerPreviewsInRoomWithLevel(roomID int32) []PlayerRoomPreview {
	estimate := s.roomEstimate(roomID)
	out := make([]PlayerRoomPreview, 0, estimate)
	for _, sess := range s.inRoom(roomID) {
		out = append(out, sess.AccountData().RoomPreview(s.projectedLevel(sess)))
	}
	return out
}

func (s *Server) projectedLevel(sess *Session) int32 {
	levelID := sess.LevelID()
	if s.isEditorCollabLevel(levelID) {
		return 0
	}
	return levelID
}

func (s *Server) roomEstimate(roomID int32) int {
	n := 0
	s.roomManager.WithAny(uint32(roomID), func(room Room) { n = room.PlayerCount() })
	return n
}
