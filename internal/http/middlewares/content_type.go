package middlewares

import (
	"net/http"
	"strings"

	"github.com/geocoder89/usershub/internal/apperr"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

var errContentType = apperr.Validation("", "content_type",
	"Content-Type must be application/json or application/x-www-form-urlencoded")

// RequireContentType rejects POST/PUT/PATCH bodies that are neither JSON nor
// an urlencoded form. Media type parameters such as charset are ignored.
func RequireContentType() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			ct := strings.ToLower(c.ContentType())
			if ct != binding.MIMEJSON && ct != binding.MIMEPOSTForm {
				_ = c.Error(errContentType)
				c.Abort()
				return
			}
		}
		c.Next()
	}
}
