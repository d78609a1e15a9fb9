package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"stockdbv1/internal/frame"
	"stockdbv1/internal/indicator"
	"stockdbv1/internal/model"
)

// fakeStore is an in-memory PayloadStore for exercising the persistent tier.
type fakeStore struct {
	mu       sync.Mutex
	payloads map[string][]byte
	metas    map[string]model.CacheMeta
}

func newFakeStore() *fakeStore {
	return &fakeStore{payloads: map[string][]byte{}, metas: map[string]model.CacheMeta{}}
}

func (f *fakeStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payloads[key]
	return p, ok, nil
}

func (f *fakeStore) Set(ctx context.Context, meta model.CacheMeta, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads[meta.Key] = payload
	f.metas[meta.Key] = meta
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.payloads, key)
	delete(f.metas, key)
	return nil
}

func (f *fakeStore) Purge(ctx context.Context, now time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for k, m := range f.metas {
		if !now.Before(m.ExpiresAt) {
			delete(f.payloads, k)
			delete(f.metas, k)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) Clear(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = map[string][]byte{}
	f.metas = map[string]model.CacheMeta{}
	return nil
}

func (f *fakeStore) Close() error { return nil }

func testFrame(t *testing.T) *frame.Frame {
	t.Helper()
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	dates := []time.Time{base, base.AddDate(0, 0, 1), base.AddDate(0, 0, 2)}
	fr := frame.New(dates)
	if err := fr.Set("RSI", []float64{40, 55, 62}); err != nil {
		t.Fatalf("set: %v", err)
	}
	return fr
}

func testRange() model.DateRange {
	return model.DateRange{
		Start: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC),
	}
}

func TestFingerprint_Deterministic(t *testing.T) {
	p1 := indicator.Params{"period": 14, "overbought": 70.0}
	p2 := indicator.Params{"overbought": 70.0, "period": 14}

	a := Fingerprint("600519", "rsi", p1, testRange())
	b := Fingerprint("600519", "rsi", p2, testRange())
	if a != b {
		t.Errorf("key order changed the fingerprint: %s vs %s", a, b)
	}

	if Fingerprint("600519", "rsi", indicator.Params{"period": 21}, testRange()) == a {
		t.Error("different params produced the same fingerprint")
	}
	if Fingerprint("000001", "rsi", p1, testRange()) == a {
		t.Error("different symbol produced the same fingerprint")
	}
	if Fingerprint("600519", "macd", p1, testRange()) == a {
		t.Error("different indicator produced the same fingerprint")
	}
	r2 := testRange()
	r2.End = r2.End.AddDate(0, 0, 5)
	if Fingerprint("600519", "rsi", p1, r2) == a {
		t.Error("different range produced the same fingerprint")
	}
}

func TestMemory_EvictsOldestBatch(t *testing.T) {
	m := NewMemory(10)
	now := time.Now()
	fr := frame.New([]time.Time{now})

	for i := 0; i < 10; i++ {
		m.Set(model.CacheMeta{
			Key:       string(rune('a' + i)),
			CreatedAt: now.Add(time.Duration(i) * time.Second),
			ExpiresAt: now.Add(time.Hour),
		}, fr)
	}
	// The 11th insert evicts a batch of the oldest entries.
	m.Set(model.CacheMeta{
		Key:       "newest",
		CreatedAt: now.Add(time.Minute),
		ExpiresAt: now.Add(time.Hour),
	}, fr)

	if _, _, ok := m.Get("newest", now); !ok {
		t.Error("newest entry missing after eviction")
	}
	if _, _, ok := m.Get("a", now); ok {
		t.Error("oldest entry survived eviction")
	}
	if m.Len() > 10 {
		t.Errorf("memory holds %d entries, cap is 10", m.Len())
	}
}

func TestMemory_ExpiryOnAccess(t *testing.T) {
	m := NewMemory(10)
	now := time.Now()
	m.Set(model.CacheMeta{Key: "k", CreatedAt: now, ExpiresAt: now.Add(time.Minute)}, frame.New(nil))

	if _, _, ok := m.Get("k", now); !ok {
		t.Fatal("fresh entry should hit")
	}
	if _, _, ok := m.Get("k", now.Add(2*time.Minute)); ok {
		t.Error("expired entry should miss")
	}
	if m.Len() != 0 {
		t.Error("expired entry not removed on access")
	}
}

func TestService_WriteThroughAndPromotion(t *testing.T) {
	store := newFakeStore()
	svc := New(store, Options{})
	ctx := context.Background()
	fr := testFrame(t)

	key := Fingerprint("600519", "rsi", indicator.Params{"period": 14}, testRange())
	svc.Put(ctx, "600519", "rsi", key, fr)

	// Memory hit.
	got, ok := svc.Get(ctx, key)
	if !ok {
		t.Fatal("expected memory hit")
	}
	if got.Col("RSI")[2] != 62 {
		t.Errorf("RSI[2] = %v, want 62", got.Col("RSI")[2])
	}

	// Drop memory; the persistent tier should serve and promote.
	if err := svc.Clear(ctx, TierMemory); err != nil {
		t.Fatalf("clear: %v", err)
	}
	got, ok = svc.Get(ctx, key)
	if !ok {
		t.Fatal("expected persistent hit after memory clear")
	}
	if got.Col("RSI")[0] != 40 {
		t.Errorf("RSI[0] = %v, want 40", got.Col("RSI")[0])
	}

	st := svc.Stats()
	if st.MemoryHits != 1 || st.PersistentHits != 1 {
		t.Errorf("stats = %+v, want 1 memory hit and 1 persistent hit", st)
	}
	if st.MemoryItems != 1 {
		t.Errorf("promotion did not refill memory: %d items", st.MemoryItems)
	}

	// Now served from memory again.
	if _, ok := svc.Get(ctx, key); !ok {
		t.Fatal("expected hit after promotion")
	}
}

func TestService_CorruptPayloadIsMissAndDeleted(t *testing.T) {
	store := newFakeStore()
	svc := New(store, Options{})
	ctx := context.Background()

	meta := model.CacheMeta{
		Key:       "bad",
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := store.Set(ctx, meta, []byte(`{"dates":["2024-01-02"],"order":["x"],"columns":{"x":[1,2]}}`)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, ok := svc.Get(ctx, "bad"); ok {
		t.Fatal("corrupt payload should be a miss")
	}
	if _, ok, _ := store.Get(ctx, "bad"); ok {
		t.Error("corrupt entry should be deleted from the persistent tier")
	}
	if st := svc.Stats(); st.Corrupted != 1 {
		t.Errorf("corrupted count = %d, want 1", st.Corrupted)
	}
}

func TestService_MemoryOnly(t *testing.T) {
	svc := New(nil, Options{})
	ctx := context.Background()
	fr := testFrame(t)

	svc.Put(ctx, "600519", "rsi", "k1", fr)
	if _, ok := svc.Get(ctx, "k1"); !ok {
		t.Fatal("memory-only cache should hit")
	}
	if err := svc.Clear(ctx, TierAll); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok := svc.Get(ctx, "k1"); ok {
		t.Error("entry survived Clear")
	}
	if err := svc.Clear(ctx, "tape"); err == nil {
		t.Error("unknown tier should error")
	}
}

func TestService_Sweep(t *testing.T) {
	store := newFakeStore()
	svc := New(store, Options{})
	ctx := context.Background()

	// Seed an already-expired persistent entry directly.
	err := store.Set(ctx, model.CacheMeta{
		Key:       "old",
		CreatedAt: time.Now().Add(-48 * time.Hour),
		ExpiresAt: time.Now().Add(-24 * time.Hour),
	}, []byte(`{}`))
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	n, err := svc.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Errorf("sweep removed %d entries, want 1", n)
	}
}
