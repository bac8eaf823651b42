package redis

import (
	"context"
	"strconv"

	"github.com/kailas-cloud/docingest/internal/db"
)

// SMembers lists all set members.
func (s *Store) SMembers(ctx context.Context, key string) ([]string, error) {
	out, err := s.do(ctx, s.b().Smembers().Key(key).Build()).AsStrSlice()
	if err != nil {
		return nil, &db.Error{Op: db.OpSMembers, Err: err}
	}
	return out, nil
}

// ZRevRange returns members by rank in descending score order.
func (s *Store) ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	cmd := s.b().Zrange().Key(key).
		Min(strconv.FormatInt(start, 10)).
		Max(strconv.FormatInt(stop, 10)).
		Rev().Build()
	out, err := s.do(ctx, cmd).AsStrSlice()
	if err != nil {
		return nil, &db.Error{Op: db.OpZRange, Err: err}
	}
	return out, nil
}
