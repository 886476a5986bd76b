// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Cors returns middleware that sets Cross-Origin Resource Sharing headers
// and short-circuits preflight requests, the same header set ManuGH-xg2g's
// CORS middleware applies, adapted from net/http to gin.Context.
//
// Returns:
//   - gin.HandlerFunc: middleware that sets CORS headers on every response.
func (m middleware) Cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS, DELETE, PUT, PATCH")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Trace-ID, Authorization")
		c.Writer.Header().Set("Access-Control-Max-Age", "600")
		c.Writer.Header().Set("Vary", "Origin, Access-Control-Request-Method, Access-Control-Request-Headers")

		if c.Request.Method == http.MethodOptions {
			c.Writer.Header().Set("Allow", "GET, POST, OPTIONS, DELETE, PUT, PATCH")
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
