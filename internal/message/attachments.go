package message

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	maxAttachmentNameLen  = 120
	defaultAttachmentType = "application/octet-stream"
)

// SanitizeAttachments normalizes an attachment list before storage.
// Names are truncated, missing types default to a generic binary type
// and sizes are clamped to maxBytes. Attachments with no inline data,
// or whose payload exceeds 1.5x the size cap, are dropped silently; a
// message may end up with fewer attachments than requested but is never
// rejected for this reason.
func SanitizeAttachments(in []Attachment, maxBytes int64) []Attachment {
	out := make([]Attachment, 0, len(in))
	for _, a := range in {
		if a.Data == "" || int64(len(a.Data)) > maxBytes+maxBytes/2 {
			continue
		}
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		name := strings.TrimSpace(a.Name)
		if name == "" {
			name = "file"
		}
		a.Name = truncateName(name, maxAttachmentNameLen)
		if a.Type == "" {
			a.Type = defaultAttachmentType
		}
		if a.Size < 0 {
			a.Size = 0
		}
		if a.Size > maxBytes {
			a.Size = maxBytes
		}
		out = append(out, a)
	}
	return out
}

// truncateName caps a name at max bytes without splitting a UTF-8 rune.
func truncateName(name string, max int) string {
	if len(name) <= max {
		return name
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(name[cut]) {
		cut--
	}
	return name[:cut]
}
