// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	"github.com/seakee/meshomaton/app/pkg/e"
)

// CheckDebugToken returns middleware that gates the read-only
// automations/log/evaluations inspection surface behind a single shared
// secret, proportionate to what that surface actually needs: no app
// registry, no token issuance, just "is the caller allowed to read this
// instance's state".
//
// Returns:
//   - gin.HandlerFunc: middleware that aborts unauthorized requests.
//
// Behavior:
//   - Compares the Authorization header against the configured debug
//     token in constant time.
//   - Writes localized error response and aborts the request on mismatch.
func (m middleware) CheckDebugToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.debugToken == "" {
			m.i18n.JSON(c, e.DebugTokenNotConfigured, nil, nil)
			c.Abort()
			return
		}

		token := c.Request.Header.Get("Authorization")
		if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(m.debugToken)) != 1 {
			m.i18n.JSON(c, e.ServerUnauthorized, nil, nil)
			c.Abort()
			return
		}

		c.Next()
	}
}
