package api

import (
	"krisbot/chat-api/internal/model"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ChatHistory returns the caller's conversations newest-first, messages
// included in their original order.
func (a *API) ChatHistory(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)

	conversations := []model.Conversation{}
	err := a.DB.
		Preload("Messages", func(d *gorm.DB) *gorm.DB { return d.Order("messages.id ASC") }).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&conversations).
		Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to fetch conversations", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"conversations": conversations,
	})
}

// ChatDelete removes one conversation and its messages. A conversation
// owned by someone else looks exactly like a missing one.
func (a *API) ChatDelete(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)

	conversationID := c.Param("id")

	res := a.DB.Where("id = ? AND user_id = ?", conversationID, userID).Delete(&model.Conversation{})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to delete conversation", zap.Error(res.Error), zap.String("requestID", requestID))
		return
	}

	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{
			"error":     "Conversation not found",
			"requestID": requestID,
		})
		return
	}

	// Sqlite builds without foreign key enforcement leave the messages
	// behind, clean them up explicitly
	if err := a.DB.Where("conversation_id = ?", conversationID).Delete(&model.Message{}).Error; err != nil {
		zap.L().Error("Failed to delete conversation messages", zap.Error(err), zap.String("requestID", requestID))
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Conversation deleted successfully",
	})
}
