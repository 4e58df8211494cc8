package xgoesi

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/antihax/goesi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContext(t *testing.T) {
	t.Run("should carry character ID and access token", func(t *testing.T) {
		ctx := NewContextWithAuth(context.Background(), 42, "token")
		id, ok := characterIDFromContext(ctx)
		assert.True(t, ok)
		assert.Equal(t, int32(42), id)
		assert.True(t, ContextHasAccessToken(ctx))
	})
	t.Run("should carry operation ID", func(t *testing.T) {
		ctx := NewContextWithOperationID(context.Background(), "GetMarketsRegionIdOrders")
		id, ok := OperationIDFromContext(ctx)
		assert.True(t, ok)
		assert.Equal(t, "GetMarketsRegionIdOrders", id)
	})
	t.Run("should report missing values", func(t *testing.T) {
		ctx := context.Background()
		_, ok := OperationIDFromContext(ctx)
		assert.False(t, ok)
		assert.False(t, ContextHasAccessToken(ctx))
	})
}

func TestSecondsHeaders(t *testing.T) {
	cases := []struct {
		value  string
		want   time.Duration
		wantOK bool
	}{
		{"120", 120 * time.Second, true},
		{"0", 0, true},
		{"", 0, false},
		{"-5", 0, false},
		{"1.5", 0, false},
		{"abc", 0, false},
	}
	for _, tc := range cases {
		t.Run("value "+tc.value, func(t *testing.T) {
			resp := &http.Response{Header: http.Header{}}
			if tc.value != "" {
				resp.Header.Set(headerErrorLimitReset, tc.value)
				resp.Header.Set(headerRetryAfter, tc.value)
			}
			got, ok := ParseErrorLimitResetHeader(resp)
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.want, got)
			got, ok = ParseRetryAfterHeader(resp)
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.want, got)
		})
	}
	t.Run("should handle nil response", func(t *testing.T) {
		_, ok := ParseRetryAfterHeader(nil)
		assert.False(t, ok)
	})
}

func TestRateLimiterBucketFor(t *testing.T) {
	var rl RateLimiter
	t.Run("should return bucket per group and character", func(t *testing.T) {
		ctx := NewContextWithOperationID(NewContextWithAuth(context.Background(), 42, "x"), "GetMarketsRegionIdHistory")
		name, g, err := rl.bucketFor(ctx)
		require.NoError(t, err)
		assert.Equal(t, "market-history-42", name)
		assert.Equal(t, DefaultRateLimitGroups["market-history"], g)
	})
	t.Run("should use character 0 for public requests", func(t *testing.T) {
		ctx := NewContextWithOperationID(context.Background(), "GetMarketsRegionIdOrders")
		name, _, err := rl.bucketFor(ctx)
		require.NoError(t, err)
		assert.Equal(t, "market-orders-0", name)
	})
	t.Run("should return no bucket for error limited operations", func(t *testing.T) {
		ctx := NewContextWithOperationID(context.Background(), "GetUniverseTypesTypeId")
		name, _, err := rl.bucketFor(ctx)
		require.NoError(t, err)
		assert.Empty(t, name)
	})
	t.Run("should return error for authed request without character", func(t *testing.T) {
		ctx := context.WithValue(context.Background(), goesi.ContextAccessToken, "x")
		ctx = NewContextWithOperationID(ctx, "GetMarketsRegionIdOrders")
		_, _, err := rl.bucketFor(ctx)
		assert.Error(t, err)
	})
	t.Run("should return error for invalid group", func(t *testing.T) {
		rl2 := RateLimiter{Groups: map[string]RateLimitGroup{"market-orders": {MaxTokens: 1, Window: time.Minute}}}
		ctx := NewContextWithOperationID(context.Background(), "GetMarketsRegionIdOrders")
		_, _, err := rl2.bucketFor(ctx)
		assert.Error(t, err)
	})
}

func TestDefaultOperations(t *testing.T) {
	for op, group := range DefaultOperations {
		if group == "" {
			continue
		}
		_, ok := DefaultRateLimitGroups[group]
		assert.True(t, ok, "operation %s references undefined group %s", op, group)
	}
}

func TestRateLimitGroupInterval(t *testing.T) {
	g := RateLimitGroup{MaxTokens: 600, Window: 15 * time.Minute}
	assert.Equal(t, 3300*time.Millisecond, g.interval())
}
