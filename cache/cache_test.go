package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type snapshot struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

func setupRedisCache(t *testing.T) (*Cache, *redis.Client) {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skip("Redis not available:", err)
	}

	c := New(client, Config{
		Prefix:     "test:snapcache",
		DefaultTTL: time.Minute,
		Enabled:    true,
	})

	t.Cleanup(func() {
		ctx := context.Background()
		iter := client.Scan(ctx, 0, "test:snapcache:*", 0).Iterator()
		for iter.Next(ctx) {
			client.Del(ctx, iter.Val())
		}
		client.Close()
	})

	return c, client
}

func TestCache_RoundTrip(t *testing.T) {
	c, _ := setupRedisCache(t)
	ctx := context.Background()

	want := snapshot{
		ID:        "img-1",
		Filename:  "sunset.jpg",
		SizeBytes: 123456,
		CreatedAt: time.Date(2026, 8, 14, 9, 30, 15, 123456000, time.UTC),
	}

	if !c.Set(ctx, "image", want.ID, want, 0) {
		t.Fatal("Set() = false, want true")
	}

	var got snapshot
	if !c.Get(ctx, "image", want.ID, &got) {
		t.Fatal("Get() = false, want true")
	}

	if got.ID != want.ID || got.Filename != want.Filename || got.SizeBytes != want.SizeBytes {
		t.Errorf("Get() = %+v, want %+v", got, want)
	}
	// Timestamps must come back as genuine times with the same instant,
	// not strings.
	if !got.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("Get() created_at = %v, want %v", got.CreatedAt, want.CreatedAt)
	}
}

func TestCache_Get_Miss(t *testing.T) {
	c, _ := setupRedisCache(t)

	var got snapshot
	if c.Get(context.Background(), "image", "never-set", &got) {
		t.Error("Get() on unset key = true, want false")
	}
}

func TestCache_Get_CorruptEntryDeleted(t *testing.T) {
	c, client := setupRedisCache(t)
	ctx := context.Background()

	key := c.Key("image", "corrupt")
	if err := client.Set(ctx, key, "{not json", time.Minute).Err(); err != nil {
		t.Fatalf("seed corrupt entry: %v", err)
	}

	var got snapshot
	if c.Get(ctx, "image", "corrupt", &got) {
		t.Error("Get() on corrupt entry = true, want false")
	}

	// The bad entry must be gone so it can't keep failing.
	if err := client.Get(ctx, key).Err(); err != redis.Nil {
		t.Errorf("corrupt entry still present after Get(), err = %v, want redis.Nil", err)
	}
}

func TestCache_Invalidate(t *testing.T) {
	c, _ := setupRedisCache(t)
	ctx := context.Background()

	c.Set(ctx, "image", "img-2", snapshot{ID: "img-2"}, 0)
	if !c.Invalidate(ctx, "image", "img-2") {
		t.Error("Invalidate() = false, want true")
	}

	var got snapshot
	if c.Get(ctx, "image", "img-2", &got) {
		t.Error("Get() after Invalidate = true, want false")
	}

	// Invalidating a key that never existed is still success.
	if !c.Invalidate(ctx, "image", "never-set") {
		t.Error("Invalidate() on missing key = false, want true")
	}
}

func TestCache_Lookup_HitAndMiss(t *testing.T) {
	c, _ := setupRedisCache(t)
	ctx := context.Background()

	loads := 0
	load := func(ctx context.Context) (snapshot, error) {
		loads++
		return snapshot{ID: "img-3", CreatedAt: time.Now().UTC()}, nil
	}

	_, outcome, err := Lookup(ctx, c, "image", "img-3", load)
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if outcome != Miss {
		t.Errorf("Lookup() first outcome = %v, want %v", outcome, Miss)
	}

	_, outcome, err = Lookup(ctx, c, "image", "img-3", load)
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if outcome != Hit {
		t.Errorf("Lookup() second outcome = %v, want %v", outcome, Hit)
	}
	if loads != 1 {
		t.Errorf("load called %v times, want 1", loads)
	}
}

func TestCache_Lookup_LoadError(t *testing.T) {
	c, _ := setupRedisCache(t)

	wantErr := errors.New("row not found")
	_, outcome, err := Lookup(context.Background(), c, "image", "img-4", func(ctx context.Context) (snapshot, error) {
		return snapshot{}, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("Lookup() error = %v, want %v", err, wantErr)
	}
	if outcome != Miss {
		t.Errorf("Lookup() outcome = %v, want %v", outcome, Miss)
	}
}

func TestCache_Disabled(t *testing.T) {
	tests := []struct {
		name  string
		cache *Cache
	}{
		{
			name:  "nil client",
			cache: New(nil, Config{Enabled: true}),
		},
		{
			name: "disabled by config",
			cache: New(redis.NewClient(&redis.Options{Addr: "localhost:6379"}),
				Config{Enabled: false}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			c := tt.cache

			if c.Enabled() {
				t.Fatal("Enabled() = true, want false")
			}
			if c.Set(ctx, "image", "x", snapshot{}, 0) {
				t.Error("Set() on disabled cache = true, want false")
			}
			var got snapshot
			if c.Get(ctx, "image", "x", &got) {
				t.Error("Get() on disabled cache = true, want false")
			}

			want := snapshot{ID: "authoritative"}
			v, outcome, err := Lookup(ctx, c, "image", "x", func(ctx context.Context) (snapshot, error) {
				return want, nil
			})
			if err != nil {
				t.Fatalf("Lookup() error = %v", err)
			}
			if outcome != Disabled {
				t.Errorf("Lookup() outcome = %v, want %v", outcome, Disabled)
			}
			if v.ID != want.ID {
				t.Errorf("Lookup() value = %+v, want %+v", v, want)
			}
		})
	}
}

func TestCache_FailsOpenWhenUnreachable(t *testing.T) {
	// Port 1 is never a Redis server; every call errors at the client.
	client := redis.NewClient(&redis.Options{
		Addr:        "localhost:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	c := New(client, Config{Enabled: true, DefaultTTL: time.Minute})
	ctx := context.Background()

	if c.Set(ctx, "image", "x", snapshot{ID: "x"}, 0) {
		t.Error("Set() on unreachable cache = true, want false")
	}
	var got snapshot
	if c.Get(ctx, "image", "x", &got) {
		t.Error("Get() on unreachable cache = true, want false")
	}

	want := snapshot{ID: "authoritative"}
	v, outcome, err := Lookup(ctx, c, "image", "x", func(ctx context.Context) (snapshot, error) {
		return want, nil
	})
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if outcome != Miss {
		t.Errorf("Lookup() outcome = %v, want %v", outcome, Miss)
	}
	if v.ID != want.ID {
		t.Errorf("Lookup() value = %+v, want %+v", v, want)
	}
}

func TestCache_Key(t *testing.T) {
	c := New(nil, Config{Prefix: "snapvault"})
	if got := c.Key("image", "abc"); got != "snapvault:image:abc" {
		t.Errorf("Key() = %q, want %q", got, "snapvault:image:abc")
	}
}
