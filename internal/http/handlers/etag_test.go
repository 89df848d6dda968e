package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/geocoder89/usershub/internal/domain/user"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestMatchesETag(t *testing.T) {
	const etag = `W/"u1-abc"`

	tests := []struct {
		header string
		want   bool
	}{
		{header: "", want: false},
		{header: "*", want: true},
		{header: `W/"u1-abc"`, want: true},
		{header: `"u1-abc"`, want: true},
		{header: `"other", W/"u1-abc"`, want: true},
		{header: `"other"`, want: false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, matchesETag(tt.header, etag), "header %q", tt.header)
	}
}

func TestUserETagFollowsUpdatedAt(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	u := user.User{ID: 7, Name: "Ann Lee", UpdatedAt: at}

	same := u
	same.Name = "Changed without a version bump"
	assert.Equal(t, userETag(u), userETag(same))

	bumped := u
	bumped.UpdatedAt = at.Add(time.Microsecond)
	assert.NotEqual(t, userETag(u), userETag(bumped))

	other := u
	other.ID = 8
	assert.NotEqual(t, userETag(u), userETag(other))
}

func TestListETag(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	list := []user.User{{ID: 1, UpdatedAt: at}, {ID: 2, UpdatedAt: at}}
	base := listETag(list)

	t.Run("stable", func(t *testing.T) {
		assert.Equal(t, base, listETag([]user.User{{ID: 1, UpdatedAt: at}, {ID: 2, UpdatedAt: at}}))
	})

	t.Run("create", func(t *testing.T) {
		assert.NotEqual(t, base, listETag(append(list[:2:2], user.User{ID: 3, UpdatedAt: at})))
	})

	t.Run("delete", func(t *testing.T) {
		assert.NotEqual(t, base, listETag(list[1:]))
	})

	t.Run("delete_then_create", func(t *testing.T) {
		assert.NotEqual(t, base, listETag([]user.User{{ID: 2, UpdatedAt: at}, {ID: 3, UpdatedAt: at}}))
	})

	t.Run("update", func(t *testing.T) {
		assert.NotEqual(t, base, listETag([]user.User{{ID: 1, UpdatedAt: at.Add(time.Second)}, {ID: 2, UpdatedAt: at}}))
	})

	t.Run("empty", func(t *testing.T) {
		assert.NotEqual(t, base, listETag(nil))
	})
}

func TestNotModified(t *testing.T) {
	gin.SetMode(gin.TestMode)

	const etag = `W/"u1-abc"`

	w := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(w)
	ctx.Request = httptest.NewRequest(http.MethodGet, "/users/1", nil)

	assert.False(t, notModified(ctx, etag))
	assert.Equal(t, etag, w.Header().Get("ETag"))

	w = httptest.NewRecorder()
	ctx, _ = gin.CreateTestContext(w)
	ctx.Request = httptest.NewRequest(http.MethodGet, "/users/1", nil)
	ctx.Request.Header.Set("If-None-Match", etag)

	assert.True(t, notModified(ctx, etag))
	ctx.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusNotModified, w.Code)
}
