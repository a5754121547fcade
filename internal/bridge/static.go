// Package bridge provides the default gsession.Bridge implementation
// used in standalone mode, where no central directory service is
// reachable. It is grounded on the teacher's settings key/value table
// (store/store.go's GetSetting/SetSetting), generalized to an in-memory
// store of the same shape since this stand-in has no process to persist
// across.
package bridge

import (
	"context"
	"strconv"
	"sync"

	"netcore.dev/gameserver/gsession"
)

// Static is a gsession.Bridge that never calls out to a remote service:
// RefreshBootData is a no-op, UpdateUserData records the entry locally,
// and configuration comes from whatever was set at construction or via
// SetMaintenance/SetStatusPrintInterval.
type Static struct {
	mu          sync.Mutex
	maintenance bool
	cfg         gsession.CentralConfig

	settings map[string]string          // generic key/value settings, mirrors store.go's settings table
	updated  map[int32]gsession.UserEntry // last UpdateUserData call per account id
}

// NewStatic returns a Static bridge with the given initial status-print
// interval (seconds).
func NewStatic(statusPrintInterval uint32) *Static {
	return &Static{
		cfg:      gsession.CentralConfig{StatusPrintInterval: statusPrintInterval},
		settings: make(map[string]string),
		updated:  make(map[int32]gsession.UserEntry),
	}
}

// RefreshBootData is a no-op in standalone mode: there is no remote
// configuration to pull.
func (s *Static) RefreshBootData(ctx context.Context) error { return nil }

// IsMaintenance reports the locally-set maintenance flag.
func (s *Static) IsMaintenance() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maintenance
}

// SetMaintenance flips the maintenance flag an operator-facing surface
// (e.g. the admin API) can call.
func (s *Static) SetMaintenance(v bool) {
	s.mu.Lock()
	s.maintenance = v
	s.mu.Unlock()
}

// UpdateUserData records entry as the latest known state for its account
// id; there is no remote directory to push it to.
func (s *Static) UpdateUserData(ctx context.Context, entry gsession.UserEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updated[entry.AccountID] = entry
	return nil
}

// Config returns the current central configuration snapshot.
func (s *Static) Config() gsession.CentralConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// SetStatusPrintInterval updates the configured interval (seconds).
func (s *Static) SetStatusPrintInterval(seconds uint32) {
	s.mu.Lock()
	s.cfg.StatusPrintInterval = seconds
	s.mu.Unlock()
}

// Setting returns a generic key/value setting, mirroring store.go's
// GetSetting.
func (s *Static) Setting(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.settings[key]
	return v, ok
}

// SetSetting upserts a generic key/value setting.
func (s *Static) SetSetting(key, value string) {
	s.mu.Lock()
	s.settings[key] = value
	s.mu.Unlock()
}

// SettingInt is a convenience wrapper over Setting for integer-valued
// settings, returning def if the key is absent or unparsable.
func (s *Static) SettingInt(key string, def int) int {
	v, ok := s.Setting(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
