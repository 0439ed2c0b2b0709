package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-seat-reservation/internal/config"
)

func cacheConfig() config.CacheConfig {
	return config.CacheConfig{
		Enabled:      true,
		TTL:          30 * time.Second,
		KeyStrategy:  "route_query",
		Prefix:       "cache",
		MaxBodyBytes: 1 << 20,
	}
}

func newCacheContext(method, target, path string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath(path)
	return c, rec
}

func TestCacheKeyFrom(t *testing.T) {
	cfg := cacheConfig()
	key := func(strategy, target string) string {
		cfg.KeyStrategy = strategy
		c, _ := newCacheContext(http.MethodGet, target, "/v1/events/:id")
		return cacheKeyFrom(cfg, c)
	}

	assert.NotEqual(t, key("route_query", "/v1/events/1"), key("route_query", "/v1/events/2"))
	assert.NotEqual(t, key("route_query", "/v1/events/1?a=1"), key("route_query", "/v1/events/1?a=2"))
	assert.Equal(t, key("route", "/v1/events/1"), key("route", "/v1/events/2"))
	assert.Regexp(t, `^cache:[0-9a-f]{40}$`, key("", "/v1/events/1"))
}

func TestPayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"ok":true}`))
	require.NoError(t, err)

	status, gotHdr, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, hdr, gotHdr)
	assert.Equal(t, `{"ok":true}`, string(body))

	_, _, _, ok = decodePayload([]byte{0, 0})
	assert.False(t, ok)
	_, _, _, ok = decodePayload([]byte{0, 0, 0, 200, 0, 0, 0, 99, '{'})
	assert.False(t, ok)
}

func TestRedisCache_Hit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cfg := cacheConfig()
	c, rec := newCacheContext(http.MethodGet, "/v1/events", "/v1/events")
	key := cacheKeyFrom(cfg, c)

	payload, err := encodePayload(http.StatusOK, http.Header{"Content-Type": {"application/json"}}, []byte(`{"success":true,"data":[]}`))
	require.NoError(t, err)
	mock.ExpectGet(key).SetVal(string(payload))

	err = NewRedisCache(cfg, db)(func(echo.Context) error {
		t.Fatal("handler must not run on a hit")
		return nil
	})(c)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, `{"success":true,"data":[]}`, rec.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCache_MissStores(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cfg := cacheConfig()
	c, rec := newCacheContext(http.MethodGet, "/v1/events/4", "/v1/events/:id")
	key := cacheKeyFrom(cfg, c)

	payload, err := encodePayload(http.StatusOK,
		http.Header{"Content-Type": {echo.MIMETextPlainCharsetUTF8}}, []byte("fresh"))
	require.NoError(t, err)

	mock.ExpectGet(key).RedisNil()
	mock.ExpectTxPipeline()
	mock.ExpectSet(key, payload, cfg.TTL).SetVal("OK")
	mock.ExpectSAdd(cacheIndexKey(cfg), key).SetVal(1)
	mock.ExpectTxPipelineExec()

	err = NewRedisCache(cfg, db)(func(c echo.Context) error {
		return c.String(http.StatusOK, "fresh")
	})(c)

	require.NoError(t, err)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, "fresh", rec.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCache_ErrorsAreNotStored(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cfg := cacheConfig()
	c, _ := newCacheContext(http.MethodGet, "/v1/events/4", "/v1/events/:id")
	mock.ExpectGet(cacheKeyFrom(cfg, c)).RedisNil()

	wantErr := echo.NewHTTPError(http.StatusNotFound, "event not found")
	err := NewRedisCache(cfg, db)(func(echo.Context) error { return wantErr })(c)

	assert.Equal(t, wantErr, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCache_SkipsUncachedMethods(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c, rec := newCacheContext(http.MethodPost, "/v1/events", "/v1/events")

	err := NewRedisCache(cacheConfig(), db)(func(c echo.Context) error {
		return c.NoContent(http.StatusCreated)
	})(c)

	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Cache"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheInvalidator(t *testing.T) {
	cfg := cacheConfig()

	t.Run("purges after success", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		mock.ExpectSMembers("cache:index").SetVal([]string{"cache:a", "cache:b"})
		mock.ExpectDel("cache:a", "cache:b", "cache:index").SetVal(3)

		c, _ := newCacheContext(http.MethodPost, "/v1/events", "/v1/events")
		err := NewCacheInvalidator(cfg, db)(func(c echo.Context) error {
			return c.NoContent(http.StatusCreated)
		})(c)

		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("keeps cache on failure", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		c, _ := newCacheContext(http.MethodPost, "/v1/events", "/v1/events")
		err := NewCacheInvalidator(cfg, db)(func(echo.Context) error {
			return errors.New("boom")
		})(c)

		require.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
