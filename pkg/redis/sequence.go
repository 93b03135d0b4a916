package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// advanceScript raises a counter to ARGV[1] unless it is already there and
// returns the resulting value
var advanceScript = redis.NewScript(`
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
local floor = tonumber(ARGV[1])
if current < floor then
	redis.call("SET", KEYS[1], ARGV[1])
	return floor
end
return current
`)

// Sequence allocates ids from Redis counters, one counter per sequence name
// under "<prefix>:seq:<name>". Values are strictly increasing and never
// reused, even when the surrounding database transaction rolls back.
type Sequence struct {
	manager *Manager
}

// NewSequence returns a sequence source backed by m
func NewSequence(m *Manager) *Sequence {
	return &Sequence{manager: m}
}

// Next returns the next value of the named sequence
func (s *Sequence) Next(ctx context.Context, name string) (int64, error) {
	if name == "" {
		return 0, ErrInvalidKey
	}
	return s.manager.Increment(ctx, s.key(name))
}

// Advance moves the counter forward to at least floor in one atomic step,
// so ids allocated by another source up to floor are never handed out
// again. It returns the counter value afterwards.
func (s *Sequence) Advance(ctx context.Context, name string, floor int64) (int64, error) {
	if name == "" {
		return 0, ErrInvalidKey
	}
	if err := s.manager.checkClient(); err != nil {
		return 0, err
	}

	value, err := advanceScript.Run(ctx, s.manager.client, []string{s.key(name)}, floor).Int64()
	if err != nil {
		s.manager.metrics.RecordCacheError()
		return 0, commandError("advance "+name, err)
	}
	return value, nil
}

func (s *Sequence) key(name string) string {
	return s.manager.Key(sequenceSegment, name)
}
