package restexecutor

import "github.com/gin-gonic/gin"

// Register registers the handler on a router
type Register interface {
	Register(gin.IRoutes)
}
