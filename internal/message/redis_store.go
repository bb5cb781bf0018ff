package message

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/redis/go-redis/v9"
)

const redisOpTimeout = 2 * time.Second

// redisKey returns the Redis key for a room's message list.
func redisKey(roomID string) string {
	return "room:" + roomID + ":messages"
}

// RedisStore keeps the per-room message logs in Redis lists, one entry
// per message snapshot. It implements the same Store contract as the
// in-memory log; the cap is enforced with LTRIM on every append.
type RedisStore struct {
	client  redis.Cmdable
	maxSize int64
	log     hclog.Logger
}

// NewRedisStore creates a RedisStore retaining up to maxSize messages
// per room.
func NewRedisStore(client redis.Cmdable, maxSize int, log hclog.Logger) *RedisStore {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &RedisStore{
		client:  client,
		maxSize: int64(maxSize),
		log:     log,
	}
}

// Append pushes the message snapshot onto the room's list, trimming to
// the capacity.
func (s *RedisStore) Append(msg *Message) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	data, err := json.Marshal(msg.Snapshot())
	if err != nil {
		s.log.Error("marshal message", "error", err)
		return
	}

	key := redisKey(msg.RoomID)
	pipe := s.client.Pipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, -s.maxSize, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Error("append message", "room", msg.RoomID, "error", err)
	}
}

// LatestPage returns the newest n messages in ascending time order.
func (s *RedisStore) LatestPage(roomID string, n int) Page {
	return s.PageBefore(roomID, nil, n)
}

// PageBefore walks the room history strictly backward in time.
func (s *RedisStore) PageBefore(roomID string, cursor *time.Time, n int) Page {
	return paginate(s.load(roomID), cursor, n)
}

// MarkRead inserts the reader into the message's read set, rewriting
// the stored entry in place.
func (s *RedisStore) MarkRead(roomID, messageID, userID string) ([]string, bool) {
	var readBy []string
	ok := s.mutate(roomID, messageID, func(m *Message) {
		readBy = m.markRead(userID)
	})
	return readBy, ok
}

// ToggleReaction toggles the user's reaction on a message, rewriting
// the stored entry in place.
func (s *RedisStore) ToggleReaction(roomID, messageID, symbol, userID string) (map[string][]string, bool) {
	var reactions map[string][]string
	ok := s.mutate(roomID, messageID, func(m *Message) {
		reactions = m.toggleReaction(symbol, userID)
	})
	return reactions, ok
}

// Search scans the room's log for a content substring.
func (s *RedisStore) Search(roomID, query string, limit int) []Snapshot {
	lower := strings.ToLower(query)
	var results []Snapshot
	for _, m := range s.load(roomID) {
		if strings.Contains(strings.ToLower(m.Content), lower) {
			results = append(results, m)
		}
	}
	return capNewest(results, limit)
}

// Count returns the number of stored messages for a room.
func (s *RedisStore) Count(roomID string) int {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	n, err := s.client.LLen(ctx, redisKey(roomID)).Result()
	if err != nil {
		s.log.Error("count messages", "room", roomID, "error", err)
		return 0
	}
	return int(n)
}

// load reads the full room log. At the capped log sizes this store is
// used with, a full LRANGE is cheaper than maintaining a side index.
func (s *RedisStore) load(roomID string) []Snapshot {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	vals, err := s.client.LRange(ctx, redisKey(roomID), 0, -1).Result()
	if err != nil {
		s.log.Error("read messages", "room", roomID, "error", err)
		return nil
	}

	msgs := make([]Snapshot, 0, len(vals))
	for _, v := range vals {
		var m Snapshot
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			continue
		}
		msgs = append(msgs, m)
	}
	return msgs
}

// mutate applies fn to the stored message and writes it back with LSET.
func (s *RedisStore) mutate(roomID, messageID string, fn func(*Message)) bool {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	key := redisKey(roomID)
	vals, err := s.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		s.log.Error("read messages", "room", roomID, "error", err)
		return false
	}

	for i, v := range vals {
		var snap Snapshot
		if err := json.Unmarshal([]byte(v), &snap); err != nil {
			continue
		}
		if snap.ID != messageID {
			continue
		}
		m := fromSnapshot(snap)
		fn(m)
		data, err := json.Marshal(m.Snapshot())
		if err != nil {
			s.log.Error("marshal message", "error", err)
			return false
		}
		if err := s.client.LSet(ctx, key, int64(i), data).Err(); err != nil {
			s.log.Error("rewrite message", "room", roomID, "error", err)
			return false
		}
		return true
	}
	return false
}
