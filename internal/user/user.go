package user

import "time"

// Status indicates whether a user currently holds a live connection.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// User is a transient identity bound to one active connection. The ID
// equals the connection ID, so a reconnect produces a new identity.
type User struct {
	ID          string
	Username    string
	AvatarColor string
	Status      Status
	JoinedAt    time.Time
	LastSeen    *time.Time

	// rooms is the set of room IDs the user is currently a member of.
	rooms map[string]struct{}
}

// Snapshot is the serializable view of a user. Field names match the
// wire format expected by clients.
type Snapshot struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	AvatarColor string     `json:"avatarColor"`
	Status      Status     `json:"status"`
	LastSeen    *time.Time `json:"lastSeen"`
	Rooms       []string   `json:"rooms"`
}
