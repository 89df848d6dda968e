package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/geocoder89/usershub/internal/domain/user"
	"github.com/gin-gonic/gin"
)

// Records carry their own version in updatedAt, so validators are weak and
// never need the response body.

func userETag(u user.User) string {
	return `W/"u` + strconv.FormatInt(u.ID, 36) + "-" + strconv.FormatInt(u.UpdatedAt.UnixNano(), 36) + `"`
}

// listETag changes on every create (max id), delete (count) and update (max updatedAt).
func listETag(users []user.User) string {
	var maxID, maxUpdated int64

	for _, u := range users {
		if u.ID > maxID {
			maxID = u.ID
		}
		if n := u.UpdatedAt.UnixNano(); n > maxUpdated {
			maxUpdated = n
		}
	}

	return `W/"l` + strconv.Itoa(len(users)) + "-" + strconv.FormatInt(maxID, 36) + "-" + strconv.FormatInt(maxUpdated, 36) + `"`
}

// notModified sets the ETag header and answers 304 when If-None-Match already
// names it.
func notModified(ctx *gin.Context, etag string) bool {
	ctx.Header("ETag", etag)

	if !matchesETag(ctx.GetHeader("If-None-Match"), etag) {
		return false
	}

	ctx.Status(http.StatusNotModified)
	return true
}

// matchesETag uses weak comparison, as GET conditionals do.
func matchesETag(header, etag string) bool {
	header = strings.TrimSpace(header)
	if header == "" {
		return false
	}
	if header == "*" {
		return true
	}

	want := strings.TrimPrefix(etag, "W/")
	for _, candidate := range strings.Split(header, ",") {
		if strings.TrimPrefix(strings.TrimSpace(candidate), "W/") == want {
			return true
		}
	}

	return false
}
