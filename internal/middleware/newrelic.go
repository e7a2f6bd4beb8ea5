package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
)

// TransactionAttributes tags the New Relic transaction started by nrgin
// with the caller's identity. It must run after the auth middleware.
func TransactionAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		if txn := nrgin.Transaction(c); txn != nil {
			if p := PrincipalFrom(c); p.UserID != "" {
				txn.AddAttribute("user.id", p.UserID)
				txn.AddAttribute("user.role", string(p.Role))
			}
			if id, ok := c.Get("request_id"); ok {
				txn.AddAttribute("request.id", id)
			}
		}

		c.Next()

		if txn := nrgin.Transaction(c); txn != nil {
			for _, err := range c.Errors {
				txn.NoticeError(err.Err)
			}
		}
	}
}
