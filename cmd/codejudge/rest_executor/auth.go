package restexecutor

import (
	"github.com/gin-gonic/gin"
	"github.com/kaiju-coding/codejudge/auth"
	"go.uber.org/zap"
)

const principalKey = "codejudge.principal"

// tokenQuery carries the token for clients that cannot set headers, such as
// browser WebSockets
const tokenQuery = "access_token"

// Auth verifies the bearer token and stores the principal in the context
func Auth(v auth.Verifier, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			if t := c.Query(tokenQuery); t != "" {
				header = "Bearer " + t
			}
		}
		token, err := auth.ParseBearer(header)
		if err != nil {
			AbortWithError(c, logger, err)
			return
		}
		p, err := v.Verify(token)
		if err != nil {
			logger.Debug("token rejected", zap.Error(err))
			AbortWithError(c, logger, err)
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

// PrincipalFrom returns the principal stored by Auth
func PrincipalFrom(c *gin.Context) (auth.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return auth.Principal{}, false
	}
	p, ok := v.(auth.Principal)
	return p, ok
}
