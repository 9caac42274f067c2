package snapshot

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"

	"github.com/ashwinyue/next-eval/internal/model"
)

func testSnapshot(useCaseID string, version int64) *model.DatasetSnapshot {
	return &model.DatasetSnapshot{
		UseCaseID:   useCaseID,
		LabelFileID: "lf-1",
		Version:     version,
		ColumnTypes: model.ColumnTypeMap{"status": model.ColumnTypeString},
		Split:       &model.EvaluationSplit{GoldenIDs: []string{"a"}, TestIDs: []string{"b", "c"}},
	}
}

func TestManager_PutGetInvalidate(t *testing.T) {
	m := NewManager(nil, time.Hour, nil)
	ctx := context.Background()

	if _, ok := m.Get(ctx, "uc-1"); ok {
		t.Fatal("expected miss on empty manager")
	}

	want := testSnapshot("uc-1", 1)
	m.Put(ctx, want)

	got, ok := m.Get(ctx, "uc-1")
	if !ok {
		t.Fatal("expected hit after Put")
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Get() mismatch (-want +got):\n%s", diff)
	}

	m.Invalidate(ctx, "uc-1")
	if _, ok := m.Get(ctx, "uc-1"); ok {
		t.Error("expected miss after Invalidate")
	}
}

func TestManager_PutReplaces(t *testing.T) {
	m := NewManager(nil, 0, nil)
	ctx := context.Background()

	m.Put(ctx, testSnapshot("uc-1", 1))
	next := testSnapshot("uc-1", 2)
	next.ColumnTypes = model.ColumnTypeMap{"amount": model.ColumnTypeFloat}
	m.Put(ctx, next)

	got, _ := m.Get(ctx, "uc-1")
	if _, ok := got.ColumnTypes["status"]; ok {
		t.Errorf("old column types merged into new snapshot: %v", got.ColumnTypes)
	}
	if got.Version != 2 {
		t.Errorf("Version = %d, want 2", got.Version)
	}
}

func TestManager_UnreachableRedisDegradesToMemory(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	m := NewManager(client, time.Minute, nil)
	ctx := context.Background()

	if _, ok := m.Get(ctx, "uc-1"); ok {
		t.Fatal("expected miss")
	}
	m.Put(ctx, testSnapshot("uc-1", 1))
	if _, ok := m.Get(ctx, "uc-1"); !ok {
		t.Error("expected in-memory hit despite redis failure")
	}
	m.Invalidate(ctx, "uc-1")
}

// sharedRedis 多个 Manager 共享的内存版 Redis，只实现 Get/Set/Del
type sharedRedis struct {
	redis.Cmdable
	mu   sync.Mutex
	data map[string]string
}

func newSharedRedis() *sharedRedis {
	return &sharedRedis{data: make(map[string]string)}
}

func (r *sharedRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (r *sharedRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		r.data[key] = string(v)
	case string:
		r.data[key] = v
	}
	return redis.NewStatusResult("OK", nil)
}

func (r *sharedRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := r.data[k]; ok {
			delete(r.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestManager_InstancesSharingRedisSeeReplacement(t *testing.T) {
	shared := newSharedRedis()
	a := NewManager(shared, time.Hour, nil)
	b := NewManager(shared, time.Hour, nil)
	ctx := context.Background()

	a.Put(ctx, testSnapshot("uc-1", 1))
	if got, ok := b.Get(ctx, "uc-1"); !ok || got.LabelFileID != "lf-1" {
		t.Fatalf("b.Get() = %+v, %v; want lf-1", got, ok)
	}

	replacement := testSnapshot("uc-1", 2)
	replacement.LabelFileID = "lf-2"
	replacement.ColumnTypes = model.ColumnTypeMap{"total": model.ColumnTypeFloat}
	a.Put(ctx, replacement)

	got, ok := b.Get(ctx, "uc-1")
	if !ok {
		t.Fatal("b.Get() expected hit after replacement")
	}
	if diff := cmp.Diff(replacement, got); diff != "" {
		t.Errorf("b served a stale snapshot (-want +got):\n%s", diff)
	}

	a.Invalidate(ctx, "uc-1")
	if _, ok := b.Get(ctx, "uc-1"); ok {
		t.Error("b.Get() expected miss after invalidation on a")
	}
}

func TestManager_LocalNewerThanRedisWins(t *testing.T) {
	shared := newSharedRedis()
	m := NewManager(shared, time.Hour, nil)
	ctx := context.Background()

	m.Put(ctx, testSnapshot("uc-1", 1))
	newer := testSnapshot("uc-1", 5)
	newer.LabelFileID = "lf-5"

	m.mu.Lock()
	m.memory["uc-1"] = newer
	m.mu.Unlock()

	got, ok := m.Get(ctx, "uc-1")
	if !ok || got.LabelFileID != "lf-5" {
		t.Errorf("Get() = %+v, %v; want local version 5 over redis version 1", got, ok)
	}
}

// ========== KeyedMutex 测试 ==========

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	k := NewKeyedMutex()
	var inside, maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("uc-1")
			defer unlock()

			n := atomic.AddInt32(&inside, 1)
			for {
				cur := atomic.LoadInt32(&maxInside)
				if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Errorf("max concurrent holders = %d, want 1", maxInside)
	}
	if len(k.locks) != 0 {
		t.Errorf("lock table not cleaned up: %d entries", len(k.locks))
	}
}

func TestKeyedMutex_DifferentKeysIndependent(t *testing.T) {
	k := NewKeyedMutex()
	unlockA := k.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := k.Lock("b")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on key b blocked by key a")
	}
}

func TestKeyedMutex_UnlockIdempotent(t *testing.T) {
	k := NewKeyedMutex()
	unlock := k.Lock("a")
	unlock()
	unlock()

	relock := k.Lock("a")
	relock()
}
