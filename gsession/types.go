package gsession

import "context"

// AccountData holds the mutable, frequently-read display data for an
// authenticated player. The stream transport's handshake (out of scope
// here) populates it once authentication succeeds.
type AccountData struct {
	AccountID int32
	Username  string
	Cube      int32
	Color1    int32
	Color2    int32
}

// Preview returns the lightweight snapshot sent to other players who are
// not necessarily in the same room (e.g. for invite lists).
func (a AccountData) Preview() PlayerPreview {
	return PlayerPreview{AccountID: a.AccountID, Username: a.Username}
}

// RoomPreview returns the snapshot sent to players sharing a room,
// annotated with the subject's current level (or 0, already projected
// by the caller for editor-collab levels).
func (a AccountData) RoomPreview(levelID int32) PlayerRoomPreview {
	return PlayerRoomPreview{AccountID: a.AccountID, Username: a.Username, LevelID: levelID}
}

// UserEntry is the persistence-backed record a central directory service
// would own; the core only ever mutates a local copy and hands it back
// to the Bridge for the remote update.
type UserEntry struct {
	AccountID int32
	Name      string
	UserRole  string
	Banned    bool
}

// PlayerPreview is the all-authenticated-players projection.
type PlayerPreview struct {
	AccountID int32
	Username  string
}

// PlayerRoomPreview is the in-room projection, carrying the level id
// (already collapsed to 0 for editor-collab levels by the caller).
type PlayerRoomPreview struct {
	AccountID int32
	Username  string
	LevelID   int32
}

// CentralConfig is the subset of remote configuration the core consumes.
type CentralConfig struct {
	StatusPrintInterval uint32
}

// Bridge is the central directory service the core consumes: it
// authenticates users and persists profile data. The core never
// implements this itself.
type Bridge interface {
	RefreshBootData(ctx context.Context) error
	IsMaintenance() bool
	UpdateUserData(ctx context.Context, entry UserEntry) error
	Config() CentralConfig
}

// Room is a single room's membership view as tracked by the external
// room manager.
type Room interface {
	ID() uint32
	OwnerID() int32
	PlayerCount() int
	// LevelMembers returns the account ids currently on levelID within
	// this room, and whether that level has any tracked membership set.
	LevelMembers(levelID int32) ([]int32, bool)
}

// RoomManager is the external collaborator that tracks room and level
// membership sets. The core never mutates these sets directly except
// through RemoveWithAny at disconnect time.
type RoomManager interface {
	SetGameServer(*Server)
	// WithAny runs fn with the room identified by roomID if it exists,
	// and reports whether it did.
	WithAny(roomID uint32, fn func(Room)) bool
	GetRooms() map[uint32]Room
	GetGlobal() Room
	// RemoveWithAny removes accountID from roomID/levelID's membership
	// and reports whether accountID was that room's owner.
	RemoveWithAny(roomID uint32, accountID int32, levelID int32) (wasOwner bool)
}

// RoleManager is the external collaborator mapping user roles to
// permissions; the core only ever asks it to refresh from configuration.
type RoleManager interface {
	RefreshFrom(cfg CentralConfig)
}
