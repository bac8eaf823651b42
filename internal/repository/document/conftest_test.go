package document

import (
	"context"
	"sort"
	"strconv"
	"testing"
	"time"

	"github.com/kailas-cloud/docingest/internal/db"
	domdoc "github.com/kailas-cloud/docingest/internal/domain/document"
)

// memStore is an in-memory implementation of the store interface with
// the same CAS semantics as the Lua script.
type memStore struct {
	hashes map[string]map[string]string
	sets   map[string]map[string]bool
	zsets  map[string]map[string]float64

	hgetAllErr error
	casErr     error
}

func newMemStore() *memStore {
	return &memStore{
		hashes: map[string]map[string]string{},
		sets:   map[string]map[string]bool{},
		zsets:  map[string]map[string]float64{},
	}
}

func (m *memStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	if m.hgetAllErr != nil {
		return nil, m.hgetAllErr
	}
	h, ok := m.hashes[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out, nil
}

func (m *memStore) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	out := make([]map[string]string, len(keys))
	for i, k := range keys {
		if h, err := m.HGetAll(ctx, k); err == nil {
			out[i] = h
		}
	}
	return out, nil
}

func (m *memStore) HSetIfRevision(
	_ context.Context, key string, expected int64, fields map[string]string, updates ...db.IndexUpdate,
) (int64, error) {
	if m.casErr != nil {
		return 0, m.casErr
	}
	h := m.hashes[key]
	cur, _ := strconv.ParseInt(h[db.RevisionField], 10, 64)
	if cur != expected {
		return 0, &db.ConflictError{Current: cur}
	}
	if h == nil {
		h = map[string]string{}
		m.hashes[key] = h
	}
	for k, v := range fields {
		if k == db.RevisionField {
			continue
		}
		if v == "" {
			delete(h, k)
		} else {
			h[k] = v
		}
	}
	for _, u := range updates {
		switch u.Op {
		case db.IndexSAdd:
			m.sadd(u.Key, u.Member)
		case db.IndexSRem:
			delete(m.sets[u.Key], u.Member)
		case db.IndexZAdd:
			if m.zsets[u.Key] == nil {
				m.zsets[u.Key] = map[string]float64{}
			}
			m.zsets[u.Key][u.Member] = u.Score
		}
	}
	h[db.RevisionField] = strconv.FormatInt(cur+1, 10)
	return cur + 1, nil
}

func (m *memStore) sadd(key, member string) {
	if m.sets[key] == nil {
		m.sets[key] = map[string]bool{}
	}
	m.sets[key][member] = true
}

func (m *memStore) SMembers(_ context.Context, key string) ([]string, error) {
	out := make([]string, 0, len(m.sets[key]))
	for v := range m.sets[key] {
		out = append(out, v)
	}
	sort.Strings(out)
	return out, nil
}

func (m *memStore) ZRevRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	z := m.zsets[key]
	members := make([]string, 0, len(z))
	for v := range z {
		members = append(members, v)
	}
	sort.Slice(members, func(i, j int) bool {
		if z[members[i]] != z[members[j]] {
			return z[members[i]] > z[members[j]]
		}
		return members[i] > members[j]
	})
	if start >= int64(len(members)) {
		return []string{}, nil
	}
	stop = min(stop, int64(len(members))-1)
	return members[start : stop+1], nil
}

var testNow = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

func mustDoc(t *testing.T, id string, owner int64, created time.Time) domdoc.Document {
	t.Helper()
	d, err := domdoc.New(id, owner, "objects/"+id, id+".txt", "text/plain", created)
	if err != nil {
		t.Fatalf("domdoc.New: %v", err)
	}
	return d
}
