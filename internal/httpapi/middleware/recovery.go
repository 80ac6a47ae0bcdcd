package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/ai-studio/internal/common"
	"github.com/suPer8Hu/ai-studio/internal/log"
	"go.uber.org/zap"
)

// Recovery turns a panic into a 500 envelope, unless the response (e.g. an
// event stream) has already started.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.L().Error("panic recovered",
					zap.Any("panic", r),
					zap.String("path", c.Request.URL.Path),
					zap.String("request_id", c.GetString(RequestIDKey)),
					zap.Stack("stack"))
				if !c.Writer.Written() {
					common.Fail(c, http.StatusInternalServerError, common.CodeInternal, "internal error")
				}
				c.Abort()
			}
		}()
		c.Next()
	}
}
