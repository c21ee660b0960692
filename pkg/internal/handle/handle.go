// Package handle 提供HTTP请求处理器的实现.
package handle

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// NotFoundHandler 未匹配路由的统一响应.
func NotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
}
