package message

import (
	"fmt"
	"testing"
	"time"
)

var testBase = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func msg(id, roomID, content string, offset int) *Message {
	return &Message{
		ID:         id,
		RoomID:     roomID,
		SenderID:   "sender",
		SenderName: "Sender",
		Content:    content,
		CreatedAt:  testBase.Add(time.Duration(offset) * time.Second),
		ReadBy:     map[string]struct{}{"sender": {}},
	}
}

func fill(s Store, roomID string, n int) {
	for i := 0; i < n; i++ {
		s.Append(msg(fmt.Sprintf("m%03d", i), roomID, fmt.Sprintf("msg-%d", i), i))
	}
}

func TestStoreAppendAndCount(t *testing.T) {
	s := NewStore(100)

	s.Append(msg("1", "room1", "hello", 0))
	s.Append(msg("2", "room1", "world", 1))

	if s.Count("room1") != 2 {
		t.Fatalf("expected 2 messages, got %d", s.Count("room1"))
	}
	if s.Count("room2") != 0 {
		t.Fatalf("expected 0 messages for room2, got %d", s.Count("room2"))
	}
}

func TestStoreCapEvictsOldestFirst(t *testing.T) {
	s := NewStore(3)
	fill(s, "room1", 5)

	if s.Count("room1") != 3 {
		t.Fatalf("expected count capped at 3, got %d", s.Count("room1"))
	}

	page := s.LatestPage("room1", 10)
	if len(page.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(page.Messages))
	}
	if page.Messages[0].ID != "m002" || page.Messages[2].ID != "m004" {
		t.Errorf("expected oldest evicted first, got %s..%s",
			page.Messages[0].ID, page.Messages[2].ID)
	}
}

func TestLatestPage(t *testing.T) {
	s := NewStore(100)
	fill(s, "room1", 30)

	page := s.LatestPage("room1", 25)
	if len(page.Messages) != 25 {
		t.Fatalf("expected 25 messages, got %d", len(page.Messages))
	}
	if page.Messages[0].ID != "m005" {
		t.Errorf("expected page to start at m005, got %s", page.Messages[0].ID)
	}
	if !page.HasMore {
		t.Error("expected hasMore with older messages remaining")
	}
	if page.NextCursor == nil || !page.NextCursor.Equal(page.Messages[0].CreatedAt) {
		t.Error("expected nextCursor to equal earliest returned createdAt")
	}
}

func TestLatestPageEmptyRoom(t *testing.T) {
	s := NewStore(100)

	page := s.LatestPage("nowhere", 25)
	if len(page.Messages) != 0 {
		t.Fatalf("expected no messages, got %d", len(page.Messages))
	}
	if page.NextCursor != nil {
		t.Error("expected nil cursor for empty room")
	}
	if page.HasMore {
		t.Error("expected hasMore false for empty room")
	}
}

func TestPageBeforeUnknownCursorActsAsEndOfLog(t *testing.T) {
	s := NewStore(100)
	fill(s, "room1", 10)

	ghost := testBase.Add(-time.Hour)
	page := s.PageBefore("room1", &ghost, 4)
	if len(page.Messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(page.Messages))
	}
	if page.Messages[3].ID != "m009" {
		t.Errorf("expected newest message last, got %s", page.Messages[3].ID)
	}
	if !page.HasMore {
		t.Error("expected hasMore true")
	}
}

func TestPaginationWalkCoversFullHistory(t *testing.T) {
	s := NewStore(100)
	fill(s, "room1", 33)

	seen := make(map[string]bool)
	page := s.LatestPage("room1", 10)
	var lastCursor *time.Time
	for {
		for _, m := range page.Messages {
			if seen[m.ID] {
				t.Fatalf("duplicate message %s during pagination walk", m.ID)
			}
			seen[m.ID] = true
		}
		if lastCursor != nil && page.NextCursor != nil && page.NextCursor.After(*lastCursor) {
			t.Fatal("cursor moved forward in time")
		}
		lastCursor = page.NextCursor
		if !page.HasMore {
			break
		}
		page = s.PageBefore("room1", page.NextCursor, 10)
	}

	if len(seen) != 33 {
		t.Fatalf("expected walk to cover all 33 messages, got %d", len(seen))
	}
}

func TestMarkReadIdempotent(t *testing.T) {
	s := NewStore(100)
	s.Append(msg("1", "room1", "hello", 0))

	readBy, ok := s.MarkRead("room1", "1", "reader")
	if !ok {
		t.Fatal("expected message to be found")
	}
	if len(readBy) != 2 {
		t.Fatalf("expected [reader sender], got %v", readBy)
	}

	again, _ := s.MarkRead("room1", "1", "reader")
	if len(again) != 2 {
		t.Fatalf("expected idempotent insert, got %v", again)
	}

	if _, ok := s.MarkRead("room1", "ghost", "reader"); ok {
		t.Error("expected miss for unknown message")
	}
}

func TestToggleReaction(t *testing.T) {
	s := NewStore(100)
	s.Append(msg("1", "room1", "hello", 0))

	reactions, ok := s.ToggleReaction("room1", "1", "👍", "ada")
	if !ok {
		t.Fatal("expected message to be found")
	}
	if got := reactions["👍"]; len(got) != 1 || got[0] != "ada" {
		t.Fatalf("expected [ada], got %v", got)
	}

	// Second toggle removes the reaction entirely.
	reactions, _ = s.ToggleReaction("room1", "1", "👍", "ada")
	if _, present := reactions["👍"]; present {
		t.Fatalf("expected symbol dropped after un-react, got %v", reactions)
	}

	// Third toggle re-adds it.
	reactions, _ = s.ToggleReaction("room1", "1", "👍", "ada")
	if got := reactions["👍"]; len(got) != 1 {
		t.Fatalf("expected one reaction after third toggle, got %v", reactions)
	}

	if _, ok := s.ToggleReaction("room1", "ghost", "👍", "ada"); ok {
		t.Error("expected miss for unknown message")
	}
}

func TestSearchCaseInsensitiveWithCap(t *testing.T) {
	s := NewStore(100)
	s.Append(msg("1", "room1", "Deploy finished", 0))
	s.Append(msg("2", "room1", "lunch?", 1))
	s.Append(msg("3", "room1", "re-DEPLOY scheduled", 2))

	results := s.Search("room1", "deploy", 0)
	if len(results) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(results))
	}
	if results[0].ID != "1" || results[1].ID != "3" {
		t.Errorf("expected log order [1 3], got [%s %s]", results[0].ID, results[1].ID)
	}

	capped := s.Search("room1", "deploy", 1)
	if len(capped) != 1 || capped[0].ID != "3" {
		t.Fatalf("expected newest match kept under cap, got %v", capped)
	}

	if got := s.Search("room1", "nothing", 0); len(got) != 0 {
		t.Fatalf("expected empty result, got %v", got)
	}
}

func TestSnapshotDoesNotAliasStore(t *testing.T) {
	s := NewStore(100)
	s.Append(msg("1", "room1", "hello", 0))
	s.ToggleReaction("room1", "1", "👍", "ada")

	page := s.LatestPage("room1", 10)
	page.Messages[0].ReadBy[0] = "intruder"
	page.Messages[0].Reactions["👍"][0] = "intruder"

	fresh := s.LatestPage("room1", 10)
	if fresh.Messages[0].ReadBy[0] != "sender" {
		t.Error("readBy snapshot aliased internal state")
	}
	if fresh.Messages[0].Reactions["👍"][0] != "ada" {
		t.Error("reactions snapshot aliased internal state")
	}
}
