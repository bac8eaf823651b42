package redis

import (
	"context"
	"errors"
	"sort"
	"strconv"

	"github.com/kailas-cloud/docingest/internal/db"
)

// casScript compares the revision field and, on match, applies field updates,
// applies index updates and bumps the revision in one atomic step.
// KEYS: the hash, then one key per index update.
// ARGV: revision field, expected revision, update count, (op, member, score) per
// update, then field/value pairs. Empty values delete the field.
// Returns {1, newRevision} on success and {0, currentRevision} on conflict.
const casScript = `
local cur = tonumber(redis.call('HGET', KEYS[1], ARGV[1]) or '0')
if cur ~= tonumber(ARGV[2]) then
  return {0, cur}
end
local n = tonumber(ARGV[3])
for i = 4 + 3 * n, #ARGV, 2 do
  if ARGV[i + 1] == '' then
    redis.call('HDEL', KEYS[1], ARGV[i])
  else
    redis.call('HSET', KEYS[1], ARGV[i], ARGV[i + 1])
  end
end
for j = 1, n do
  local op, member = ARGV[3 * j + 1], ARGV[3 * j + 2]
  if op == 'sadd' then
    redis.call('SADD', KEYS[j + 1], member)
  elseif op == 'srem' then
    redis.call('SREM', KEYS[j + 1], member)
  elseif op == 'zadd' then
    redis.call('ZADD', KEYS[j + 1], ARGV[3 * j + 3], member)
  end
end
return {1, redis.call('HINCRBY', KEYS[1], ARGV[1], 1)}
`

// HSetIfRevision implements db.RevisionStore with a server-side Lua script.
func (s *Store) HSetIfRevision(
	ctx context.Context, key string, expected int64, fields map[string]string, updates ...db.IndexUpdate,
) (int64, error) {
	names := make([]string, 0, len(fields))
	for k := range fields {
		if k == db.RevisionField {
			continue
		}
		names = append(names, k)
	}
	sort.Strings(names)

	keys := make([]string, 0, 1+len(updates))
	keys = append(keys, key)
	args := make([]string, 0, 3+3*len(updates)+2*len(names))
	args = append(args, db.RevisionField, strconv.FormatInt(expected, 10), strconv.Itoa(len(updates)))
	for _, u := range updates {
		keys = append(keys, u.Key)
		args = append(args, string(u.Op), u.Member, strconv.FormatFloat(u.Score, 'f', -1, 64))
	}
	for _, k := range names {
		args = append(args, k, fields[k])
	}

	vals, err := s.casLua.Exec(ctx, s.client, keys, args).ToArray()
	if err != nil {
		return 0, &db.Error{Op: db.OpHSetCAS, Err: err}
	}
	if len(vals) != 2 {
		return 0, &db.Error{Op: db.OpHSetCAS, Err: errors.New("unexpected script reply")}
	}
	ok, err := vals[0].AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpHSetCAS, Err: err}
	}
	rev, err := vals[1].AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpHSetCAS, Err: err}
	}
	if ok != 1 {
		return 0, &db.ConflictError{Current: rev}
	}
	return rev, nil
}
