package store

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"
)

// Memory is an in-process Store used by tests and local development. It
// mirrors the semantics the engine relies on (conditional writes, added
// counts, deleted counts) but records TTLs without enforcing them.
type Memory struct {
	mu      sync.Mutex
	strings map[string]string
	hashes  map[string]map[string]string
	sets    map[string]map[string]struct{}
	zsets   map[string]map[string]float64
	lists   map[string][]string
	ttls    map[string]time.Duration
	subs    map[string]map[chan Message]struct{}
}

func NewMemory() *Memory {
	return &Memory{
		strings: make(map[string]string),
		hashes:  make(map[string]map[string]string),
		sets:    make(map[string]map[string]struct{}),
		zsets:   make(map[string]map[string]float64),
		lists:   make(map[string][]string),
		ttls:    make(map[string]time.Duration),
		subs:    make(map[string]map[chan Message]struct{}),
	}
}

func (m *Memory) hash(key string) map[string]string {
	h, ok := m.hashes[key]
	if !ok {
		h = make(map[string]string)
		m.hashes[key] = h
	}
	return h
}

func (m *Memory) set(key string) map[string]struct{} {
	s, ok := m.sets[key]
	if !ok {
		s = make(map[string]struct{})
		m.sets[key] = s
	}
	return s
}

func (m *Memory) HSet(_ context.Context, key string, fields map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.hash(key)
	for k, v := range fields {
		h[k] = v
	}
	return nil
}

func (m *Memory) HSetNX(_ context.Context, key, field, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.hash(key)
	if _, exists := h[field]; exists {
		return false, nil
	}
	h[field] = value
	return true, nil
}

func (m *Memory) HGet(_ context.Context, key, field string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hashes[key]
	if !ok {
		return "", ErrNotFound
	}
	v, ok := h[field]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *Memory) HGetAll(_ context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.hashes[key]))
	for k, v := range m.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (m *Memory) HIncrBy(_ context.Context, key, field string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.hash(key)
	cur := parseInt64(h[field])
	cur += delta
	h[field] = strconv.FormatInt(cur, 10)
	return cur, nil
}

func (m *Memory) SAdd(_ context.Context, key string, members ...string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.set(key)
	var added int64
	for _, member := range members {
		if _, exists := s[member]; !exists {
			s[member] = struct{}{}
			added++
		}
	}
	return added, nil
}

func (m *Memory) SRem(_ context.Context, key string, members ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sets[key]
	for _, member := range members {
		delete(s, member)
	}
	return nil
}

func (m *Memory) SMembers(_ context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sets[key]))
	for member := range m.sets[key] {
		out = append(out, member)
	}
	sort.Strings(out)
	return out, nil
}

func (m *Memory) SCard(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.sets[key])), nil
}

func (m *Memory) SIsMember(_ context.Context, key, member string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sets[key][member]
	return ok, nil
}

func (m *Memory) ZAdd(_ context.Context, key, member string, score float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	z, ok := m.zsets[key]
	if !ok {
		z = make(map[string]float64)
		m.zsets[key] = z
	}
	z[member] = score
	return nil
}

func (m *Memory) ZRem(_ context.Context, key string, members ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	z := m.zsets[key]
	for _, member := range members {
		delete(z, member)
	}
	return nil
}

func (m *Memory) ZRangeByScore(_ context.Context, key string, min, max float64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	type entry struct {
		member string
		score  float64
	}
	var entries []entry
	for member, score := range m.zsets[key] {
		if score >= min && score <= max {
			entries = append(entries, entry{member, score})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].score < entries[j].score })
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.member
	}
	return out, nil
}

func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.strings[key] = value
	if ttl > 0 {
		m.ttls[key] = ttl
	}
	return nil
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.strings[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *Memory) Del(_ context.Context, keys ...string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for _, key := range keys {
		existed := false
		if _, ok := m.strings[key]; ok {
			delete(m.strings, key)
			existed = true
		}
		if h, ok := m.hashes[key]; ok && len(h) > 0 {
			delete(m.hashes, key)
			existed = true
		}
		if s, ok := m.sets[key]; ok && len(s) > 0 {
			delete(m.sets, key)
			existed = true
		}
		if z, ok := m.zsets[key]; ok && len(z) > 0 {
			delete(m.zsets, key)
			existed = true
		}
		if l, ok := m.lists[key]; ok && len(l) > 0 {
			delete(m.lists, key)
			existed = true
		}
		delete(m.ttls, key)
		if existed {
			deleted++
		}
	}
	return deleted, nil
}

func (m *Memory) Expire(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ttls[key] = ttl
	return nil
}

func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.strings[key]; ok {
		return true, nil
	}
	if h, ok := m.hashes[key]; ok && len(h) > 0 {
		return true, nil
	}
	if s, ok := m.sets[key]; ok && len(s) > 0 {
		return true, nil
	}
	if l, ok := m.lists[key]; ok && len(l) > 0 {
		return true, nil
	}
	return false, nil
}

func (m *Memory) LPush(_ context.Context, key string, values ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range values {
		m.lists[key] = append([]string{v}, m.lists[key]...)
	}
	return nil
}

func (m *Memory) LTrim(_ context.Context, key string, start, stop int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := m.lists[key]
	n := int64(len(l))
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || start >= n {
		m.lists[key] = nil
		return nil
	}
	m.lists[key] = l[start : stop+1]
	return nil
}

func (m *Memory) LRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := m.lists[key]
	n := int64(len(l))
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || start >= n {
		return nil, nil
	}
	out := make([]string, stop-start+1)
	copy(out, l[start:stop+1])
	return out, nil
}

func (m *Memory) Publish(_ context.Context, channel, payload string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for ch := range m.subs[channel] {
		select {
		case ch <- Message{Channel: channel, Payload: payload}:
		default:
			// Drop if subscriber is slow.
		}
	}
	return nil
}

func (m *Memory) Subscribe(_ context.Context, channel string) (<-chan Message, func(), error) {
	ch := make(chan Message, 16)
	m.mu.Lock()
	if m.subs[channel] == nil {
		m.subs[channel] = make(map[chan Message]struct{})
	}
	m.subs[channel][ch] = struct{}{}
	m.mu.Unlock()

	cancel := func() {
		m.mu.Lock()
		delete(m.subs[channel], ch)
		if len(m.subs[channel]) == 0 {
			delete(m.subs, channel)
		}
		m.mu.Unlock()
	}
	return ch, cancel, nil
}

// TTL reports the last TTL recorded for key, for tests that assert expiry
// bookkeeping.
func (m *Memory) TTL(key string) (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ttl, ok := m.ttls[key]
	return ttl, ok
}

func parseInt64(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
