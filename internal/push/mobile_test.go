package push

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tbourn/go-chat-push/internal/domain"
)

func newTestMobile(tokens TokenStore, prov MobileProvider, clk *fakeClock) *MobileChannel {
	cb := NewCircuitBreaker(DefaultBreakerThreshold, time.Minute, WithClock(clk.Now))
	ch := NewMobileChannel(tokens, prov, cb)
	ch.Retry.Sleep = noSleep
	ch.Now = clk.Now
	return ch
}

func TestMobileChannel_NotConfigured(t *testing.T) {
	ch := NewMobileChannel(newMemTokens("u1"), nil, nil)
	res := ch.Send(context.Background(), "u1", testPayload)
	if want := (DeliveryResult{Success: false, Error: "FCM credentials not configured"}); res != want {
		t.Fatalf("res = %+v, want %+v", res, want)
	}
}

func TestMobileChannel_NoTokens(t *testing.T) {
	prov := &fakeMobile{}
	res := newTestMobile(newMemTokens("u1"), prov, newFakeClock()).Send(context.Background(), "u1", testPayload)
	if want := (DeliveryResult{Success: false, Error: "No device tokens"}); res != want {
		t.Fatalf("res = %+v, want %+v", res, want)
	}
	if n := prov.calls.Load(); n != 0 {
		t.Fatalf("provider calls = %d, want 0", n)
	}
}

func TestMobileChannel_LoadError(t *testing.T) {
	store := newMemTokens("u1")
	store.getErr = errors.New("db down")
	res := newTestMobile(store, &fakeMobile{}, newFakeClock()).Send(context.Background(), "u1", testPayload)
	if res.Success || res.Error != "Failed to load device tokens" {
		t.Fatalf("res = %+v", res)
	}
}

func TestMobileChannel_LengthFilter(t *testing.T) {
	store := newMemTokens("u1",
		deviceToken("t1", "u1", "short", domain.PlatformAndroid),
		deviceToken("t2", "u1", strings.Repeat("y", 501), domain.PlatformIOS),
	)
	prov := &fakeMobile{}
	res := newTestMobile(store, prov, newFakeClock()).Send(context.Background(), "u1", testPayload)

	if want := (DeliveryResult{Success: false, Error: "No valid device tokens"}); res != want {
		t.Fatalf("res = %+v, want %+v", res, want)
	}
	if prov.calls.Load() != 0 {
		t.Fatal("filtered tokens must not reach the provider")
	}
	if len(store.list("u1")) != 2 || store.saves != 0 {
		t.Fatalf("filtered tokens are not pruned: left=%d saves=%d", len(store.list("u1")), store.saves)
	}
}

func TestValidToken_Bounds(t *testing.T) {
	cases := map[int]bool{49: false, 50: true, 500: true, 501: false}
	for n, want := range cases {
		if got := ValidToken(strings.Repeat("a", n)); got != want {
			t.Errorf("ValidToken(len %d) = %v, want %v", n, got, want)
		}
	}
}

func TestMobileChannel_RemovesInvalidAndRefreshesLastUsed(t *testing.T) {
	clk := newFakeClock()
	good, bad, skipped := tok("good"), tok("bad"), "tiny"
	store := newMemTokens("u1",
		deviceToken("t1", "u1", good, domain.PlatformAndroid),
		deviceToken("t2", "u1", bad, domain.PlatformIOS),
		deviceToken("t3", "u1", skipped, domain.PlatformAndroid),
	)
	prov := &fakeMobile{fn: func(_ context.Context, msg MobileMessage) error {
		if msg.Token == bad {
			return &ProviderError{Code: CodeTokenNotRegistered}
		}
		return nil
	}}
	ch := newTestMobile(store, prov, clk)

	res := ch.Send(context.Background(), "u1", testPayload)
	if !res.Success || res.Sent != 1 || res.Failed != 1 || res.Total != 2 || res.InvalidRemoved != 1 {
		t.Fatalf("res = %+v", res)
	}
	if n := prov.calls.Load(); n != 2 {
		t.Fatalf("provider calls = %d, want 2 (token errors are not retried)", n)
	}
	if store.saves != 1 {
		t.Fatalf("saves = %d, want one batched save per call", store.saves)
	}

	left := store.list("u1")
	if len(left) != 2 {
		t.Fatalf("left = %d tokens, want 2", len(left))
	}
	for _, d := range left {
		if d.Token == bad {
			t.Fatal("invalid token was not removed")
		}
		if d.Token == good && (d.LastUsed == nil || !d.LastUsed.Equal(clk.Now())) {
			t.Fatalf("LastUsed = %v, want %v", d.LastUsed, clk.Now())
		}
		if d.Token == skipped && d.LastUsed != nil {
			t.Fatal("skipped token should not be stamped")
		}
	}
	if f := ch.Breaker.Stats().Failures; f != 0 {
		t.Fatalf("breaker failures = %d, token errors never touch the breaker", f)
	}
}

func TestMobileChannel_KeepsTokenRegisteredDuringSend(t *testing.T) {
	dead := tok("dead")
	store := newMemTokens("u1", deviceToken("t1", "u1", dead, domain.PlatformAndroid))
	fresh := deviceToken("t2", "u1", tok("fresh"), domain.PlatformIOS)
	prov := &fakeMobile{fn: func(context.Context, MobileMessage) error {
		// the device re-registers while the round for its old token is in flight
		store.add(fresh)
		return &ProviderError{Code: CodeInvalidRegistrationToken}
	}}
	ch := newTestMobile(store, prov, newFakeClock())

	res := ch.Send(context.Background(), "u1", testPayload)
	if res.InvalidRemoved != 1 {
		t.Fatalf("res = %+v", res)
	}
	left := store.list("u1")
	if len(left) != 1 || left[0].ID != fresh.ID {
		t.Fatalf("left = %+v, want only the token registered during the send", left)
	}
}

func TestMobileChannel_RetriesTransientThenSucceeds(t *testing.T) {
	store := newMemTokens("u1", deviceToken("t1", "u1", tok("a"), domain.PlatformAndroid))
	var n atomic.Int32
	prov := &fakeMobile{fn: func(context.Context, MobileMessage) error {
		if n.Add(1) < 3 {
			return &ProviderError{Code: CodeUnknown, Err: errBoom}
		}
		return nil
	}}
	ch := newTestMobile(store, prov, newFakeClock())

	res := ch.Send(context.Background(), "u1", testPayload)
	if res.Sent != 1 || prov.calls.Load() != 3 {
		t.Fatalf("res = %+v, calls = %d", res, prov.calls.Load())
	}
	if f := ch.Breaker.Stats().Failures; f != 0 {
		t.Fatalf("breaker failures = %d, failed attempts that end in success are not charged", f)
	}
}

func TestMobileChannel_RetriedFailureCountsOnce(t *testing.T) {
	store := newMemTokens("u1", deviceToken("t1", "u1", tok("a"), domain.PlatformAndroid))
	prov := &fakeMobile{fn: func(context.Context, MobileMessage) error {
		return &ProviderError{Code: CodeUnknown, Err: errBoom}
	}}
	ch := newTestMobile(store, prov, newFakeClock())

	for i := 1; i < DefaultBreakerThreshold; i++ {
		res := ch.Send(context.Background(), "u1", testPayload)
		if res.Failed != 1 || res.Total != 1 {
			t.Fatalf("call %d: res = %+v", i, res)
		}
		if f := ch.Breaker.Stats().Failures; f != i {
			t.Fatalf("call %d: breaker failures = %d, want one per exhausted token", i, f)
		}
		if s := ch.Breaker.State(); s != CircuitClosed {
			t.Fatalf("call %d: state = %v, want closed", i, s)
		}
	}
	if got, want := prov.calls.Load(), int32((DefaultBreakerThreshold-1)*DefaultMobileAttempts); got != want {
		t.Fatalf("provider calls = %d, want %d", got, want)
	}

	ch.Send(context.Background(), "u1", testPayload)
	if s := ch.Breaker.State(); s != CircuitOpen {
		t.Fatalf("state = %v, want open after %d failed sends", s, DefaultBreakerThreshold)
	}
}

func TestMobileChannel_BreakerOpensAndRecovers(t *testing.T) {
	clk := newFakeClock()
	store := newMemTokens("u1", deviceToken("t1", "u1", tok("a"), domain.PlatformAndroid))
	var fail atomic.Bool
	fail.Store(true)
	prov := &fakeMobile{fn: func(context.Context, MobileMessage) error {
		if fail.Load() {
			return &ProviderError{Code: CodeUnknown, Err: errBoom}
		}
		return nil
	}}
	ch := newTestMobile(store, prov, clk)
	ch.Retry.MaxAttempts = 1

	for i := 0; i < DefaultBreakerThreshold; i++ {
		res := ch.Send(context.Background(), "u1", testPayload)
		if want := (DeliveryResult{Failed: 1, Total: 1, DurationMS: res.DurationMS}); res != want {
			t.Fatalf("call %d: res = %+v, want %+v", i, res, want)
		}
	}
	if n := prov.calls.Load(); n != 5 {
		t.Fatalf("provider calls = %d, want 5", n)
	}

	res := ch.Send(context.Background(), "u1", testPayload)
	if want := (DeliveryResult{Success: false, Error: "Circuit breaker open"}); res != want {
		t.Fatalf("res = %+v, want %+v", res, want)
	}
	if n := prov.calls.Load(); n != 5 {
		t.Fatalf("open breaker made a provider call: %d", n)
	}

	clk.Advance(time.Minute + time.Second)
	fail.Store(false)
	res = ch.Send(context.Background(), "u1", testPayload)
	if !res.Success || prov.calls.Load() != 6 {
		t.Fatalf("res = %+v, calls = %d", res, prov.calls.Load())
	}
	if s := ch.Breaker.State(); s != CircuitClosed {
		t.Fatalf("state = %v, want closed", s)
	}
}

func TestMobileChannel_TimeoutCountsOnce(t *testing.T) {
	store := newMemTokens("u1", deviceToken("t1", "u1", tok("slow"), domain.PlatformAndroid))
	prov := &fakeMobile{fn: func(ctx context.Context, _ MobileMessage) error {
		<-ctx.Done()
		return &ProviderError{Err: ctx.Err()}
	}}
	ch := newTestMobile(store, prov, newFakeClock())
	ch.SendTimeout = 20 * time.Millisecond

	res := ch.Send(context.Background(), "u1", testPayload)
	if res.Sent != 0 || res.Failed != 1 {
		t.Fatalf("res = %+v", res)
	}
	if f := ch.Breaker.Stats().Failures; f != 1 {
		t.Fatalf("breaker failures = %d, want 1", f)
	}
	if len(store.list("u1")) != 1 {
		t.Fatal("timed out token must be kept")
	}
}

func TestMobileChannel_CallerCancelLeavesBreakerAlone(t *testing.T) {
	store := newMemTokens("u1", deviceToken("t1", "u1", tok("a"), domain.PlatformAndroid))
	ctx, cancel := context.WithCancel(context.Background())
	prov := &fakeMobile{fn: func(c context.Context, _ MobileMessage) error {
		cancel()
		<-c.Done()
		return &ProviderError{Err: c.Err()}
	}}
	ch := newTestMobile(store, prov, newFakeClock())

	res := ch.Send(ctx, "u1", testPayload)
	if res.Sent != 0 || res.Failed != 1 {
		t.Fatalf("res = %+v", res)
	}
	if f := ch.Breaker.Stats().Failures; f != 0 {
		t.Fatalf("breaker failures = %d, want 0", f)
	}
}

func TestMobileChannel_BoundedConcurrency(t *testing.T) {
	var toks []domain.DeviceToken
	for i := 0; i < 12; i++ {
		toks = append(toks, deviceToken(string(rune('a'+i)), "u1", tok(string(rune('a'+i))), domain.PlatformAndroid))
	}
	store := newMemTokens("u1", toks...)

	var inFlight, peak atomic.Int32
	prov := &fakeMobile{fn: func(context.Context, MobileMessage) error {
		cur := inFlight.Add(1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return nil
	}}
	ch := newTestMobile(store, prov, newFakeClock())
	ch.Concurrency = 3

	res := ch.Send(context.Background(), "u1", testPayload)
	if res.Sent != 12 {
		t.Fatalf("sent = %d, want 12", res.Sent)
	}
	if p := peak.Load(); p > 3 {
		t.Fatalf("peak in-flight = %d, want <= 3", p)
	}
}

func TestMobileChannel_PlatformMessages(t *testing.T) {
	store := newMemTokens("u1",
		deviceToken("t1", "u1", tok("and"), domain.PlatformAndroid),
		deviceToken("t2", "u1", tok("ios"), domain.PlatformIOS),
	)
	prov := &fakeMobile{}
	ch := newTestMobile(store, prov, newFakeClock())
	ch.AndroidChannelID = "chat"
	ch.IOSCategory = "MESSAGE"
	ch.Concurrency = 1

	p := testPayload
	p.Data = map[string]string{"type": "message", "senderId": "u-alice"}
	ch.Send(context.Background(), "u1", p)

	if len(prov.seen) != 2 {
		t.Fatalf("seen = %d messages, want 2", len(prov.seen))
	}
	for _, m := range prov.seen {
		if m.Title != p.Title || m.Data["tag"] != "message-m1" {
			t.Fatalf("message = %+v", m)
		}
		switch m.Platform {
		case domain.PlatformAndroid:
			if m.Android == nil || m.APNS != nil {
				t.Fatalf("android message carries wrong config: %+v", m)
			}
			if m.Android.Priority != "high" || m.Android.Sound != "default" || m.Android.ChannelID != "chat" {
				t.Fatalf("android = %+v", *m.Android)
			}
		case domain.PlatformIOS:
			if m.APNS == nil || m.Android != nil {
				t.Fatalf("ios message carries wrong config: %+v", m)
			}
			if m.APNS.Sound != "default" || !m.APNS.ContentAvailable || m.APNS.Category != "MESSAGE" || m.APNS.ThreadID != "u-alice" {
				t.Fatalf("apns = %+v", *m.APNS)
			}
		}
	}
	if _, ok := p.Data["tag"]; ok {
		t.Fatal("caller data was mutated")
	}
}

func TestMaskToken(t *testing.T) {
	if got := maskToken("short"); got != "***" {
		t.Errorf("maskToken(short) = %q", got)
	}
	if got := maskToken("abcdefghijklmnop"); got != "abcdefgh***" {
		t.Errorf("maskToken(long) = %q", got)
	}
}
