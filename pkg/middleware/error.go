package middleware

import (
	"context"
	"errors"
	"net/http"

	"fogsly/pkg/errutil"
	applog "fogsly/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Error renders the last error attached with c.Error as the JSON error envelope.
func Error() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil || c.Writer.Written() {
			return
		}

		var be errutil.BaseError
		switch {
		case errors.As(last.Err, &be):
		case errors.Is(last.Err, context.Canceled):
			be = errutil.BaseError{Code: errutil.StatusClientClosedRequest, Message: "request canceled"}
		case errors.Is(last.Err, context.DeadlineExceeded):
			be = errutil.BaseError{Code: errutil.StatusTimeout, Message: "request timed out"}
		default:
			be = errutil.BaseError{Code: errutil.StatusInternal, Message: "internal error", Err: last.Err}
		}

		status := be.Code.HTTPStatus()
		if status >= http.StatusInternalServerError {
			applog.FromContext(c.Request.Context()).Error("request failed",
				zap.String("path", c.FullPath()), zap.Error(last.Err))
			// causes of server errors stay in the logs
			be.Err = nil
		}

		c.JSON(status, be.JSON())
	}
}
