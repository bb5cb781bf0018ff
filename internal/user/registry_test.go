package user

import (
	"testing"
)

func TestJoinAndGet(t *testing.T) {
	r := NewRegistry()

	u, err := r.Join("conn1", "Ada", "#2563eb")
	if err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if u.ID != "conn1" {
		t.Errorf("expected ID to equal connection ID, got %q", u.ID)
	}
	if u.Status != StatusOnline {
		t.Errorf("expected status online, got %q", u.Status)
	}
	if u.LastSeen != nil {
		t.Errorf("expected nil lastSeen on join, got %v", u.LastSeen)
	}

	got, ok := r.Get("conn1")
	if !ok {
		t.Fatal("expected to find joined user")
	}
	if got.Username != "Ada" {
		t.Errorf("expected username 'Ada', got %q", got.Username)
	}
}

func TestJoinTrimsAndRejectsEmptyUsername(t *testing.T) {
	r := NewRegistry()

	if _, err := r.Join("conn1", "   ", ""); err != ErrEmptyUsername {
		t.Fatalf("expected ErrEmptyUsername, got %v", err)
	}

	u, err := r.Join("conn1", "  Ada  ", "#2563eb")
	if err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if u.Username != "Ada" {
		t.Errorf("expected trimmed username, got %q", u.Username)
	}
}

func TestJoinAssignsPaletteColor(t *testing.T) {
	r := NewRegistry()

	u, err := r.Join("conn1", "Ada", "")
	if err != nil {
		t.Fatalf("join failed: %v", err)
	}

	found := false
	for _, c := range avatarPalette {
		if u.AvatarColor == c {
			found = true
		}
	}
	if !found {
		t.Errorf("expected color from palette, got %q", u.AvatarColor)
	}
}

func TestRejoinReplacesIdentity(t *testing.T) {
	r := NewRegistry()

	r.Join("conn1", "Ada", "")
	r.AddRoom("conn1", "general")

	u, err := r.Join("conn1", "Grace", "")
	if err != nil {
		t.Fatalf("rejoin failed: %v", err)
	}
	if u.Username != "Grace" {
		t.Errorf("expected replaced username, got %q", u.Username)
	}
	if len(u.Rooms) != 0 {
		t.Errorf("expected fresh room set after rejoin, got %v", u.Rooms)
	}
	if r.Count() != 1 {
		t.Errorf("expected 1 user, got %d", r.Count())
	}
}

func TestRemoveStampsLastSeen(t *testing.T) {
	r := NewRegistry()
	r.Join("conn1", "Ada", "")

	snap, ok := r.Remove("conn1")
	if !ok {
		t.Fatal("expected remove to find user")
	}
	if snap.Status != StatusOffline {
		t.Errorf("expected offline status, got %q", snap.Status)
	}
	if snap.LastSeen == nil {
		t.Error("expected lastSeen to be stamped")
	}
	if _, stillThere := r.Get("conn1"); stillThere {
		t.Error("expected live record to be deleted")
	}

	if _, ok := r.Remove("conn1"); ok {
		t.Error("expected second remove to report missing user")
	}
}

func TestRoomMembershipTracking(t *testing.T) {
	r := NewRegistry()
	r.Join("conn1", "Ada", "")

	if !r.AddRoom("conn1", "general") {
		t.Fatal("expected AddRoom to succeed")
	}
	r.AddRoom("conn1", "help-desk")
	r.AddRoom("conn1", "general") // idempotent

	rooms := r.Rooms("conn1")
	if len(rooms) != 2 {
		t.Fatalf("expected 2 rooms, got %v", rooms)
	}
	if rooms[0] != "general" || rooms[1] != "help-desk" {
		t.Errorf("expected sorted rooms [general help-desk], got %v", rooms)
	}

	r.RemoveRoom("conn1", "general")
	if got := r.Rooms("conn1"); len(got) != 1 || got[0] != "help-desk" {
		t.Errorf("expected [help-desk], got %v", got)
	}

	if r.AddRoom("ghost", "general") {
		t.Error("expected AddRoom to fail for unknown connection")
	}
}

func TestMemberPlaceholderForUnknownID(t *testing.T) {
	r := NewRegistry()

	m := r.Member("gone")
	if m.ID != "gone" {
		t.Errorf("expected placeholder to carry the ID, got %q", m.ID)
	}
	if m.Username != "Unknown" {
		t.Errorf("expected 'Unknown' username, got %q", m.Username)
	}
	if m.Status != StatusOffline {
		t.Errorf("expected offline placeholder, got %q", m.Status)
	}
}

func TestOnlineSortedByUsername(t *testing.T) {
	r := NewRegistry()
	r.Join("c1", "Zoe", "")
	r.Join("c2", "Ada", "")
	r.Join("c3", "Mia", "")

	online := r.Online()
	if len(online) != 3 {
		t.Fatalf("expected 3 online users, got %d", len(online))
	}
	if online[0].Username != "Ada" || online[1].Username != "Mia" || online[2].Username != "Zoe" {
		t.Errorf("expected sorted usernames, got %v", online)
	}
}
