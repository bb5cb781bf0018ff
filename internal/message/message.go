package message

import (
	"sort"
	"time"
)

// Attachment is an inline file carried by a message. Data holds the
// encoded payload as supplied by the client.
type Attachment struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size"`
	Data string `json:"data"`
}

// Message is a stored chat message. ReadBy and Reactions are mutated in
// place by receipt and reaction events; everything else is immutable
// after creation.
type Message struct {
	ID           string
	ClientTempID string
	RoomID       string
	SenderID     string
	SenderName   string
	AvatarColor  string
	Content      string
	Attachments  []Attachment
	CreatedAt    time.Time
	DeliveredAt  time.Time
	IsPrivate    bool

	ReadBy    map[string]struct{}
	Reactions map[string]map[string]struct{}
}

// Snapshot is the copy-on-read projection of a message used for wire
// serialization and storage. Internal sets never alias what was sent out.
type Snapshot struct {
	ID           string              `json:"id"`
	ClientTempID string              `json:"clientTempId,omitempty"`
	RoomID       string              `json:"roomId"`
	SenderID     string              `json:"senderId"`
	SenderName   string              `json:"senderName"`
	AvatarColor  string              `json:"avatarColor"`
	Content      string              `json:"content"`
	Attachments  []Attachment        `json:"attachments"`
	CreatedAt    time.Time           `json:"createdAt"`
	DeliveredAt  time.Time           `json:"deliveredAt"`
	IsPrivate    bool                `json:"isPrivate"`
	ReadBy       []string            `json:"readBy"`
	Reactions    map[string][]string `json:"reactions"`

	// Pending marks a client-side optimistic message awaiting its
	// acknowledgement. The server never sets it.
	Pending bool `json:"temp,omitempty"`
}

// Snapshot returns a detached copy of the message.
func (m *Message) Snapshot() Snapshot {
	atts := make([]Attachment, len(m.Attachments))
	copy(atts, m.Attachments)
	return Snapshot{
		ID:           m.ID,
		ClientTempID: m.ClientTempID,
		RoomID:       m.RoomID,
		SenderID:     m.SenderID,
		SenderName:   m.SenderName,
		AvatarColor:  m.AvatarColor,
		Content:      m.Content,
		Attachments:  atts,
		CreatedAt:    m.CreatedAt,
		DeliveredAt:  m.DeliveredAt,
		IsPrivate:    m.IsPrivate,
		ReadBy:       setToList(m.ReadBy),
		Reactions:    reactionsToLists(m.Reactions),
	}
}

// fromSnapshot rebuilds the mutable form, used by stores that persist
// snapshots and need to apply receipt/reaction mutations.
func fromSnapshot(s Snapshot) *Message {
	readBy := make(map[string]struct{}, len(s.ReadBy))
	for _, id := range s.ReadBy {
		readBy[id] = struct{}{}
	}
	reactions := make(map[string]map[string]struct{}, len(s.Reactions))
	for symbol, users := range s.Reactions {
		set := make(map[string]struct{}, len(users))
		for _, id := range users {
			set[id] = struct{}{}
		}
		reactions[symbol] = set
	}
	return &Message{
		ID:           s.ID,
		ClientTempID: s.ClientTempID,
		RoomID:       s.RoomID,
		SenderID:     s.SenderID,
		SenderName:   s.SenderName,
		AvatarColor:  s.AvatarColor,
		Content:      s.Content,
		Attachments:  s.Attachments,
		CreatedAt:    s.CreatedAt,
		DeliveredAt:  s.DeliveredAt,
		IsPrivate:    s.IsPrivate,
		ReadBy:       readBy,
		Reactions:    reactions,
	}
}

// markRead inserts the reader into the read set. Idempotent.
func (m *Message) markRead(userID string) []string {
	if m.ReadBy == nil {
		m.ReadBy = make(map[string]struct{})
	}
	m.ReadBy[userID] = struct{}{}
	return setToList(m.ReadBy)
}

// toggleReaction adds the user to the symbol's set, or removes them if
// already present. Symbols with no remaining users are dropped.
func (m *Message) toggleReaction(symbol, userID string) map[string][]string {
	if m.Reactions == nil {
		m.Reactions = make(map[string]map[string]struct{})
	}
	set, ok := m.Reactions[symbol]
	if !ok {
		set = make(map[string]struct{})
		m.Reactions[symbol] = set
	}
	if _, reacted := set[userID]; reacted {
		delete(set, userID)
		if len(set) == 0 {
			delete(m.Reactions, symbol)
		}
	} else {
		set[userID] = struct{}{}
	}
	return reactionsToLists(m.Reactions)
}

func setToList(set map[string]struct{}) []string {
	list := make([]string, 0, len(set))
	for id := range set {
		list = append(list, id)
	}
	sort.Strings(list)
	return list
}

func reactionsToLists(reactions map[string]map[string]struct{}) map[string][]string {
	out := make(map[string][]string, len(reactions))
	for symbol, set := range reactions {
		out[symbol] = setToList(set)
	}
	return out
}
