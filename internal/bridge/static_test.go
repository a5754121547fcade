package bridge

import (
	"context"
	"testing"

	"netcore.dev/gameserver/gsession"
)

func TestStaticRefreshBootDataIsNoOp(t *testing.T) {
	s := NewStatic(30)
	if err := s.RefreshBootData(context.Background()); err != nil {
		t.Fatalf("RefreshBootData: %v", err)
	}
}

func TestStaticMaintenanceFlag(t *testing.T) {
	s := NewStatic(30)
	if s.IsMaintenance() {
		t.Fatal("expected maintenance to start false")
	}
	s.SetMaintenance(true)
	if !s.IsMaintenance() {
		t.Fatal("expected maintenance to be true after SetMaintenance(true)")
	}
}

func TestStaticUpdateUserDataRecordsLatest(t *testing.T) {
	s := NewStatic(30)
	entry := gsession.UserEntry{AccountID: 7, Name: "nova", UserRole: "admin"}
	if err := s.UpdateUserData(context.Background(), entry); err != nil {
		t.Fatalf("UpdateUserData: %v", err)
	}
	if got := s.updated[7]; got != entry {
		t.Fatalf("expected the entry to be recorded verbatim, got %+v", got)
	}
}

func TestStaticConfigReflectsInterval(t *testing.T) {
	s := NewStatic(45)
	if got := s.Config().StatusPrintInterval; got != 45 {
		t.Fatalf("expected interval 45, got %d", got)
	}
	s.SetStatusPrintInterval(60)
	if got := s.Config().StatusPrintInterval; got != 60 {
		t.Fatalf("expected interval 60 after update, got %d", got)
	}
}

func TestStaticSettingRoundTrip(t *testing.T) {
	s := NewStatic(30)
	if _, ok := s.Setting("missing"); ok {
		t.Fatal("expected an absent setting to report not found")
	}
	s.SetSetting("max_players", "64")
	got, ok := s.Setting("max_players")
	if !ok || got != "64" {
		t.Fatalf("Setting: got %q,%v want 64,true", got, ok)
	}
	if n := s.SettingInt("max_players", 0); n != 64 {
		t.Fatalf("SettingInt: got %d, want 64", n)
	}
	if n := s.SettingInt("missing", 99); n != 99 {
		t.Fatalf("SettingInt default: got %d, want 99", n)
	}
}
