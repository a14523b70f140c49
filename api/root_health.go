package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (a *API) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Kris Bot API is running!",
	})
}

func (a *API) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"message": "API is operational",
	})
}
