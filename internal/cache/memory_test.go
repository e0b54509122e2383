package cache

import (
	"context"
	"math"
	"testing"
	"time"
)

func TestInMemoryCache_HashOps(t *testing.T) {
	c := NewInMemoryCache()
	ctx := context.Background()

	if err := c.HIncrBy(ctx, "h", "count", 1); err != nil {
		t.Fatalf("HIncrBy failed: %v", err)
	}
	if err := c.HIncrBy(ctx, "h", "count", 4); err != nil {
		t.Fatalf("HIncrBy failed: %v", err)
	}
	if err := c.HSet(ctx, "h", map[string]string{"name": "x"}); err != nil {
		t.Fatalf("HSet failed: %v", err)
	}

	fields, err := c.HGetAll(ctx, "h")
	if err != nil {
		t.Fatalf("HGetAll failed: %v", err)
	}
	if fields["count"] != "5" || fields["name"] != "x" {
		t.Errorf("fields = %v", fields)
	}

	// Missing key yields an empty map, not an error
	fields, err = c.HGetAll(ctx, "missing")
	if err != nil || len(fields) != 0 {
		t.Errorf("HGetAll(missing) = %v, %v", fields, err)
	}
}

func TestInMemoryCache_SortedSetOps(t *testing.T) {
	c := NewInMemoryCache()
	ctx := context.Background()

	c.ZAdd(ctx, "z", 3, "c")
	c.ZAdd(ctx, "z", 1, "a")
	c.ZAdd(ctx, "z", 2, "b")

	members, err := c.ZRangeAll(ctx, "z")
	if err != nil {
		t.Fatalf("ZRangeAll failed: %v", err)
	}
	if len(members) != 3 || members[0] != "a" || members[2] != "c" {
		t.Errorf("members = %v, want score order", members)
	}

	if err := c.ZRemRangeByScore(ctx, "z", "-inf", "2"); err != nil {
		t.Fatalf("ZRemRangeByScore failed: %v", err)
	}
	members, _ = c.ZRangeAll(ctx, "z")
	if len(members) != 1 || members[0] != "c" {
		t.Errorf("members after removal = %v, want [c]", members)
	}
}

func TestInMemoryCache_ZAddUpdatesScore(t *testing.T) {
	c := NewInMemoryCache()
	ctx := context.Background()

	c.ZAdd(ctx, "z", 1, "a")
	c.ZAdd(ctx, "z", 5, "b")
	c.ZAdd(ctx, "z", 10, "a") // re-add moves a to the end

	members, _ := c.ZRangeAll(ctx, "z")
	if len(members) != 2 || members[0] != "b" || members[1] != "a" {
		t.Errorf("members = %v, want [b a]", members)
	}
}

func TestInMemoryCache_StringOps(t *testing.T) {
	c := NewInMemoryCache()
	ctx := context.Background()

	if _, err := c.Get(ctx, "missing"); err != ErrKeyNotFound {
		t.Errorf("Get(missing) err = %v, want ErrKeyNotFound", err)
	}

	if err := c.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	val, err := c.Get(ctx, "k")
	if err != nil || val != "v" {
		t.Errorf("Get = %q, %v", val, err)
	}
}

func TestInMemoryCache_Expiry(t *testing.T) {
	c := NewInMemoryCache()
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	c.SetNowFunc(func() time.Time { return now })

	c.Set(ctx, "k", "v")
	c.Expire(ctx, "k", time.Hour)

	if _, err := c.Get(ctx, "k"); err != nil {
		t.Fatalf("key expired early: %v", err)
	}

	now = base.Add(2 * time.Hour)
	if _, err := c.Get(ctx, "k"); err != ErrKeyNotFound {
		t.Errorf("Get after expiry err = %v, want ErrKeyNotFound", err)
	}
}

func TestInMemoryCache_ListOps(t *testing.T) {
	c := NewInMemoryCache()
	ctx := context.Background()

	n, err := c.LLen(ctx, "missing")
	if err != nil || n != 0 {
		t.Errorf("LLen(missing) = %d, %v", n, err)
	}

	c.LPush(ctx, "q", "a", "b")
	n, _ = c.LLen(ctx, "q")
	if n != 2 {
		t.Errorf("LLen = %d, want 2", n)
	}
}

func TestParseScore(t *testing.T) {
	tests := []struct {
		in     string
		forMin bool
		want   float64
	}{
		{"1.5", true, 1.5},
		{"-3", false, -3},
	}
	for _, tt := range tests {
		if got := parseScore(tt.in, tt.forMin); got != tt.want {
			t.Errorf("parseScore(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if got := parseScore("-inf", true); !math.IsInf(got, -1) {
		t.Errorf("parseScore(-inf) = %v, want -Inf", got)
	}
	if got := parseScore("+inf", false); !math.IsInf(got, 1) {
		t.Errorf("parseScore(+inf) = %v, want +Inf", got)
	}
	if got := parseScore("garbage", true); !math.IsInf(got, -1) {
		t.Errorf("parseScore(garbage, min) = %v, want -Inf", got)
	}
	if got := parseScore("garbage", false); !math.IsInf(got, 1) {
		t.Errorf("parseScore(garbage, max) = %v, want +Inf", got)
	}
}
