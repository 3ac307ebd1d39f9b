// Package httputils provides HTTP utility functions.
package httputils

import (
	"github.com/gin-gonic/gin"

	"github.com/kart-io/helpdesk-x/pkg/errors"
	"github.com/kart-io/helpdesk-x/pkg/middleware"
	"github.com/kart-io/helpdesk-x/pkg/response"
)

// WriteResponse writes the response to the client.
// It handles both success and error cases, ensuring consistent response format.
func WriteResponse(c *gin.Context, err error, data interface{}) {
	var resp *response.Response
	switch {
	case err != nil:
		resp = response.Err(errors.FromError(err))
	default:
		// data can be *response.Response (e.g. from response.Page) or raw data
		var ok bool
		if resp, ok = data.(*response.Response); !ok {
			resp = response.Success(data)
		}
	}
	if requestID := middleware.GetRequestID(c); requestID != "" {
		resp.WithRequestID(requestID)
	}
	c.JSON(resp.HTTPStatus(), resp)
}
