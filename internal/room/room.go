package room

import (
	"sort"
	"strings"
	"time"
)

// conversationPrefix marks direct-conversation rooms. Slugs produced by
// Slugify never contain the delimiter, so the two ID spaces cannot collide.
const (
	conversationPrefix    = "private"
	conversationDelimiter = ":"
)

// Room is a named channel or an implicit direct conversation. Membership
// is distinct from presence; a member can be offline.
type Room struct {
	ID          string
	Name        string
	Description string
	IsPrivate   bool
	CreatedBy   string
	CreatedAt   time.Time

	members map[string]struct{}
}

// Snapshot is the serializable view of a room.
type Snapshot struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsPrivate   bool      `json:"isPrivate"`
	CreatedBy   string    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
	MemberCount int       `json:"memberCount"`
}

func (r *Room) snapshot() Snapshot {
	return Snapshot{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		IsPrivate:   r.IsPrivate,
		CreatedBy:   r.CreatedBy,
		CreatedAt:   r.CreatedAt,
		MemberCount: len(r.members),
	}
}

func (r *Room) memberList() []string {
	ids := make([]string, 0, len(r.members))
	for id := range r.members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Slugify derives a room ID from its display name: lower-cased with
// whitespace runs collapsed to a dash.
func Slugify(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "-")
}

// ConversationID derives the direct-conversation room ID for two users.
// The participant IDs are sorted first, so the result is independent of
// argument order.
func ConversationID(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return strings.Join([]string{conversationPrefix, pair[0], pair[1]}, conversationDelimiter)
}
