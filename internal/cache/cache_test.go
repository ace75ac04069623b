package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ngmaloney/pendulum/internal/models"
)

func TestInMemoryCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()

	val := models.WeatherData{Location: "boston", TemperatureK: 290, Conditions: "Clear"}
	if err := c.Set(ctx, "42.36,-71.06", val, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, ok, err := c.Get(ctx, "42.36,-71.06")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if got.Location != val.Location || got.TemperatureK != val.TemperatureK || got.Conditions != val.Conditions {
		t.Errorf("Get() = %+v, want %+v", got, val)
	}
}

func TestInMemoryCache_Get_Miss(t *testing.T) {
	c := NewInMemoryCache()

	_, ok, err := c.Get(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true, want false for miss")
	}
}

func TestInMemoryCache_Get_Expired(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	c := NewInMemoryCache()
	c.now = func() time.Time { return now }

	if err := c.Set(ctx, "k", models.WeatherData{Location: "boston"}, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	now = now.Add(59 * time.Second)
	if _, ok, _ := c.Get(ctx, "k"); !ok {
		t.Fatal("Get() before expiry ok = false, want true")
	}

	now = now.Add(time.Second)
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Error("Get() at expiry ok = true, want false")
	}
	if c.slot != nil {
		t.Error("expired observation should be dropped")
	}
}

func TestInMemoryCache_SetReplacesOtherPosition(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()

	if err := c.Set(ctx, "42.36,-71.06", models.WeatherData{Location: "boston"}, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := c.Set(ctx, "41.68,-69.96", models.WeatherData{Location: "chatham"}, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if _, ok, _ := c.Get(ctx, "42.36,-71.06"); ok {
		t.Error("Get() for the replaced position ok = true, want false")
	}
	got, ok, _ := c.Get(ctx, "41.68,-69.96")
	if !ok || got.Location != "chatham" {
		t.Errorf("Get() = %+v, %v, want chatham", got, ok)
	}
}

func TestInMemoryCache_Concurrent(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = c.Set(ctx, "k", models.WeatherData{TemperatureK: float64(i)}, time.Minute)
			_, _, _ = c.Get(ctx, "k")
		}(i)
	}
	wg.Wait()

	if _, ok, _ := c.Get(ctx, "k"); !ok {
		t.Error("Get() ok = false after concurrent sets")
	}
}

func TestParseAddrs(t *testing.T) {
	got := parseAddrs(" a:1 , ,b:2,")
	if len(got) != 2 || got[0] != "a:1" || got[1] != "b:2" {
		t.Errorf("parseAddrs() = %v", got)
	}
	if got := parseAddrs(""); len(got) != 0 {
		t.Errorf("parseAddrs(\"\") = %v, want empty", got)
	}
}

func TestCacheKey_ReplacesWhitespace(t *testing.T) {
	if got := cacheKey("Chatham, MA"); got != "pendulum:weather:Chatham,_MA" {
		t.Errorf("cacheKey() = %q", got)
	}
}

func TestExpiration(t *testing.T) {
	tests := []struct {
		ttl  time.Duration
		want int32
	}{
		{10 * time.Minute, 600},
		{0, 3600},
		{-time.Second, 3600},
		{31 * 24 * time.Hour, 3600},
	}
	for _, tt := range tests {
		if got := expiration(tt.ttl); got != tt.want {
			t.Errorf("expiration(%v) = %d, want %d", tt.ttl, got, tt.want)
		}
	}
}

func TestMemcachedCache_CanceledContext(t *testing.T) {
	c := NewMemcachedCache("127.0.0.1:1", 10*time.Millisecond, 0)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, err := c.Get(ctx, "k"); err == nil {
		t.Error("Get() with canceled context error = nil")
	}
	if err := c.Set(ctx, "k", models.WeatherData{}, time.Minute); err == nil {
		t.Error("Set() with canceled context error = nil")
	}
}
