package http

import (
	"bytes"
	stderrors "errors"
	"io"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/production-tracking/pkg/contracts/openapi"
	"github.com/wms-platform/production-tracking/pkg/errors"
	"github.com/wms-platform/production-tracking/pkg/middleware"
)

// ContractValidation rejects API requests that do not match the OpenAPI
// document. Paths the document does not describe fall through to the router.
func ContractValidation(v *openapi.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.Next()
			return
		}

		var body []byte
		if c.Request.Body != nil {
			var err error
			if body, err = io.ReadAll(c.Request.Body); err != nil {
				middleware.AbortWithAppError(c, errors.ErrBadRequest("unreadable request body"))
				return
			}
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
		}

		err := v.ValidateRequest(c.Request.Context(), c.Request)
		if body != nil {
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
		}
		if err != nil && !stderrors.Is(err, openapi.ErrUnknownRoute) {
			middleware.AbortWithAppError(c,
				errors.ErrValidation("request does not match the API contract").WithDetail("contract", err.Error()))
			return
		}
		c.Next()
	}
}
