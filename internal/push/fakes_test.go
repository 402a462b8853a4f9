package push

import (
	"context"
	"errors"
	"slices"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tbourn/go-chat-push/internal/domain"
)

// memSubs is an in-memory SubscriptionStore.
type memSubs struct {
	mu      sync.Mutex
	rows    map[string]domain.WebPushSubscription
	listErr error
}

func newMemSubs(rows ...domain.WebPushSubscription) *memSubs {
	m := &memSubs{rows: map[string]domain.WebPushSubscription{}}
	for _, r := range rows {
		m.rows[r.ID] = r
	}
	return m
}

func (m *memSubs) ListActive(_ context.Context, userID string) ([]domain.WebPushSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []domain.WebPushSubscription
	for _, r := range m.rows {
		if r.UserID == userID && r.IsActive {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memSubs) DeleteByID(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
	return nil
}

func (m *memSubs) DeleteByEndpoint(_ context.Context, endpoint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.rows {
		if r.Endpoint == endpoint {
			delete(m.rows, id)
		}
	}
	return nil
}

func sub(id, userID, endpoint string) domain.WebPushSubscription {
	return domain.WebPushSubscription{ID: id, UserID: userID, Endpoint: endpoint, P256dh: "p", Auth: "a", IsActive: true}
}

// fakeWeb answers per endpoint through fn and counts calls.
type fakeWeb struct {
	calls atomic.Int32
	mu    sync.Mutex
	seen  []WebMessage
	fn    func(msg WebMessage) error
}

func (f *fakeWeb) Send(_ context.Context, msg WebMessage) (DeliveryID, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.seen = append(f.seen, msg)
	f.mu.Unlock()
	if f.fn != nil {
		if err := f.fn(msg); err != nil {
			return "", err
		}
	}
	return DeliveryID("loc-" + msg.Endpoint), nil
}

// memTokens is an in-memory TokenStore.
type memTokens struct {
	mu      sync.Mutex
	tokens  map[string][]domain.DeviceToken
	getErr  error
	saves   int
	saveErr error
}

func newMemTokens(userID string, toks ...domain.DeviceToken) *memTokens {
	return &memTokens{tokens: map[string][]domain.DeviceToken{userID: toks}}
}

func (m *memTokens) GetTokens(_ context.Context, userID string) ([]domain.DeviceToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	return append([]domain.DeviceToken(nil), m.tokens[userID]...), nil
}

func (m *memTokens) SaveTokens(_ context.Context, userID string, removeIDs, usedIDs []string, usedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	kept := m.tokens[userID][:0:0]
	for _, t := range m.tokens[userID] {
		if slices.Contains(removeIDs, t.ID) {
			continue
		}
		if slices.Contains(usedIDs, t.ID) {
			ts := usedAt
			t.LastUsed = &ts
		}
		kept = append(kept, t)
	}
	m.tokens[userID] = kept
	return nil
}

// add registers a token as a device would, outside any delivery round.
func (m *memTokens) add(t domain.DeviceToken) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[t.UserID] = append(m.tokens[t.UserID], t)
}

func (m *memTokens) list(userID string) []domain.DeviceToken {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.DeviceToken(nil), m.tokens[userID]...)
}

// tok returns a token string of valid length whose prefix identifies it.
func tok(prefix string) string {
	return prefix + strings.Repeat("x", 64-len(prefix))
}

func deviceToken(id, userID, token string, p domain.Platform) domain.DeviceToken {
	return domain.DeviceToken{ID: id, UserID: userID, Token: token, Platform: p}
}

// fakeMobile answers per token through fn and counts calls.
type fakeMobile struct {
	calls atomic.Int32
	mu    sync.Mutex
	seen  []MobileMessage
	fn    func(ctx context.Context, msg MobileMessage) error
}

func (f *fakeMobile) Send(ctx context.Context, msg MobileMessage) (DeliveryID, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.seen = append(f.seen, msg)
	f.mu.Unlock()
	if f.fn != nil {
		if err := f.fn(ctx, msg); err != nil {
			return "", err
		}
	}
	return DeliveryID("projects/p/messages/1"), nil
}

var errBoom = errors.New("boom")

func noSleep(context.Context, time.Duration) error { return nil }

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
