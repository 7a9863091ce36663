package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func limitedRouter(limiter *RateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if id := c.GetHeader("X-Subject-Id"); id != "" {
			c.Set(subjectIDKey, id)
		}
		c.Next()
	})
	r.Use(RateLimit(RateLimitConfig{
		GroupFor: func(c *gin.Context) string {
			switch {
			case c.Request.Method == http.MethodGet && c.FullPath() == "/disclosures/:disclosureId":
				return GroupPolling
			case c.Request.Method == http.MethodPost && c.FullPath() == "/documents":
				return GroupUpload
			}
			return ""
		},
		Limiter: limiter,
		Rules: map[string]RateLimitRule{
			GroupDefault: {Rate: 1, Burst: 2},
			GroupUpload:  {Rate: 1, Burst: 1},
			GroupPolling: {Rate: 5, Burst: 10},
		},
	}))
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }
	r.GET("/disclosures/:disclosureId", ok)
	r.GET("/disclosures", ok)
	r.POST("/documents", ok)
	return r
}

func hit(r *gin.Engine, method, path, subject string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if subject != "" {
		req.Header.Set("X-Subject-Id", subject)
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestRateLimitGroupsHaveSeparateBudgets(t *testing.T) {
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	r := limitedRouter(NewRateLimiter(func() time.Time { return now }))

	for i := 0; i < 10; i++ {
		require.Equal(t, http.StatusOK, hit(r, http.MethodGet, "/disclosures/req-1", "org-1").Code, "poll %d", i)
	}
	assert.Equal(t, http.StatusOK, hit(r, http.MethodPost, "/documents", "org-1").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(r, http.MethodPost, "/documents", "org-1").Code)

	assert.Equal(t, http.StatusOK, hit(r, http.MethodGet, "/disclosures", "org-1").Code)
	assert.Equal(t, http.StatusOK, hit(r, http.MethodGet, "/disclosures", "org-1").Code)

	resp := hit(r, http.MethodGet, "/disclosures", "org-1")
	require.Equal(t, http.StatusTooManyRequests, resp.Code)
	assert.Equal(t, "1", resp.Header().Get("Retry-After"))

	var body struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "rate_limited", body.Error.Code)
	assert.Equal(t, GroupDefault, body.Error.Details["group"])
	assert.Equal(t, float64(1000), body.Error.Details["retryAfterMs"])
}

func TestRateLimitKeysBySubject(t *testing.T) {
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	r := limitedRouter(NewRateLimiter(func() time.Time { return now }))

	assert.Equal(t, http.StatusOK, hit(r, http.MethodPost, "/documents", "owner-1").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(r, http.MethodPost, "/documents", "owner-1").Code)
	assert.Equal(t, http.StatusOK, hit(r, http.MethodPost, "/documents", "owner-2").Code)
}

func TestRateLimitRefillsOverTime(t *testing.T) {
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	r := limitedRouter(NewRateLimiter(func() time.Time { return now }))

	assert.Equal(t, http.StatusOK, hit(r, http.MethodPost, "/documents", "owner-1").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(r, http.MethodPost, "/documents", "owner-1").Code)
	now = now.Add(time.Second)
	assert.Equal(t, http.StatusOK, hit(r, http.MethodPost, "/documents", "owner-1").Code)
}

func TestRateLimiterDropsIdleBuckets(t *testing.T) {
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(func() time.Time { return now })
	rule := RateLimitRule{Rate: 1, Burst: 1}

	limiter.Allow("a|DEFAULT", rule)
	limiter.Allow("b|DEFAULT", rule)
	require.Equal(t, 2, limiter.size())

	now = now.Add(limiterIdleTTL)
	limiter.Allow("c|DEFAULT", rule)
	assert.Equal(t, 1, limiter.size())
}

func TestRateLimitDisabledRule(t *testing.T) {
	allowed, _ := NewRateLimiter(nil).Allow("k", RateLimitRule{})
	assert.True(t, allowed)
}
