package message

import (
	"strings"
	"testing"
	"unicode/utf8"
)

const testMaxBytes = 1024

func TestSanitizeFillsDefaults(t *testing.T) {
	out := SanitizeAttachments([]Attachment{
		{Name: "", Type: "", Size: 10, Data: "payload"},
	}, testMaxBytes)

	if len(out) != 1 {
		t.Fatalf("expected 1 attachment, got %d", len(out))
	}
	if out[0].ID == "" {
		t.Error("expected generated ID")
	}
	if out[0].Name != "file" {
		t.Errorf("expected default name 'file', got %q", out[0].Name)
	}
	if out[0].Type != "application/octet-stream" {
		t.Errorf("expected default type, got %q", out[0].Type)
	}
}

func TestSanitizeTruncatesNameAndClampsSize(t *testing.T) {
	out := SanitizeAttachments([]Attachment{
		{Name: strings.Repeat("n", 300), Size: testMaxBytes * 10, Data: "payload"},
	}, testMaxBytes)

	if len(out[0].Name) != 120 {
		t.Errorf("expected name truncated to 120, got %d", len(out[0].Name))
	}
	if out[0].Size != testMaxBytes {
		t.Errorf("expected size clamped to %d, got %d", testMaxBytes, out[0].Size)
	}
}

func TestSanitizeTruncatesOnRuneBoundary(t *testing.T) {
	// One ASCII byte then two-byte runes, so a byte cut at 120 lands
	// in the middle of the 60th rune.
	name := "a" + strings.Repeat("é", 60)
	out := SanitizeAttachments([]Attachment{
		{Name: name, Size: 10, Data: "payload"},
	}, testMaxBytes)

	got := out[0].Name
	if len(got) > 120 {
		t.Errorf("expected at most 120 bytes, got %d", len(got))
	}
	if !utf8.ValidString(got) {
		t.Errorf("truncated name is not valid UTF-8: %q", got)
	}
	if got != "a"+strings.Repeat("é", 59) {
		t.Errorf("expected a whole-rune cut, got %q", got)
	}
}

func TestSanitizeDropsMissingOrOversizedData(t *testing.T) {
	out := SanitizeAttachments([]Attachment{
		{Name: "empty", Data: ""},
		{Name: "huge", Data: strings.Repeat("x", testMaxBytes*2)},
		{Name: "ok", Data: "small"},
	}, testMaxBytes)

	if len(out) != 1 {
		t.Fatalf("expected only valid attachment kept, got %d", len(out))
	}
	if out[0].Name != "ok" {
		t.Errorf("expected 'ok' kept, got %q", out[0].Name)
	}
}

func TestSanitizePreservesSuppliedID(t *testing.T) {
	out := SanitizeAttachments([]Attachment{
		{ID: "client-id", Name: "a", Data: "x", Size: -5},
	}, testMaxBytes)

	if out[0].ID != "client-id" {
		t.Errorf("expected client-supplied ID kept, got %q", out[0].ID)
	}
	if out[0].Size != 0 {
		t.Errorf("expected negative size zeroed, got %d", out[0].Size)
	}
}
