package restexecutor

import (
	"github.com/gin-gonic/gin"
	"github.com/kaiju-coding/codejudge/cmd/codejudge/model"
	"github.com/kaiju-coding/codejudge/pkg/apperr"
	"go.uber.org/zap"
)

// AbortWithError renders err as the error body, internal details are only
// logged
func AbortWithError(c *gin.Context, logger *zap.Logger, err error) {
	c.Error(err)
	status, body := model.ConvertError(err)
	if apperr.KindOf(err) == apperr.KindInternal {
		logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, body)
}
