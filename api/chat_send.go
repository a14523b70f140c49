package api

import (
	"krisbot/chat-api/internal/model"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatSendBody struct {
	Message             string        `json:"message"`
	ConversationHistory []chatMessage `json:"conversation_history"`
	ConversationID      string        `json:"conversation_id"`
}

// ChatSend produces one assistant reply. The caller carries the context
// by resending the full history, the exchange is additionally persisted
// under a conversation so /chat/history can return it later.
func (a *API) ChatSend(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)

	var data chatSendBody
	if err := c.ShouldBindJSON(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid request body",
			"requestID": requestID,
		})
		return
	}

	if data.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Message field can't be empty",
			"requestID": requestID,
		})
		return
	}

	history := make([]model.Message, 0, len(data.ConversationHistory))
	for _, m := range data.ConversationHistory {
		if m.Role != model.RoleUser && m.Role != model.RoleAssistant {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     "Message role must be 'user' or 'assistant'",
				"requestID": requestID,
			})
			return
		}
		history = append(history, model.Message{Role: m.Role, Content: m.Content})
	}

	reply := a.AI.GetResponse(c.Request.Context(), history, data.Message)

	conv, err := a.resolveConversation(userID, data.ConversationID, data.Message)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to resolve conversation", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	exchange := []model.Message{
		{ConversationID: conv.ID, Role: model.RoleUser, Content: data.Message},
		{ConversationID: conv.ID, Role: model.RoleAssistant, Content: reply},
	}
	if err := a.DB.Create(&exchange).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to persist exchange", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	// The reply already went through, so a failed bump only costs
	// history ordering
	if err := a.DB.Model(conv).Update("updated_at", time.Now()).Error; err != nil {
		zap.L().Warn("Failed to bump conversation", zap.Error(err), zap.String("requestID", requestID))
	}

	c.JSON(http.StatusOK, gin.H{
		"response":        reply,
		"conversation_id": conv.ID,
	})
}

// resolveConversation returns the caller's existing conversation or
// creates a fresh one titled after the first message.
func (a *API) resolveConversation(userID, conversationID, firstMessage string) (*model.Conversation, error) {
	if conversationID != "" {
		var conv model.Conversation
		err := a.DB.Where("id = ? AND user_id = ?", conversationID, userID).First(&conv).Error
		if err == nil {
			return &conv, nil
		}
		if err != gorm.ErrRecordNotFound {
			return nil, err
		}
		// Unknown or foreign id, fall through and start a new one
	}

	// Cut on a rune boundary so a multi-byte message can't leave an
	// invalid UTF-8 title behind
	title := firstMessage
	if len(title) > 80 {
		cut := 80
		for cut > 0 && !utf8.RuneStart(title[cut]) {
			cut--
		}
		title = title[:cut]
	}

	conv := model.Conversation{
		ID:     uuid.NewString(),
		UserID: userID,
		Title:  title,
	}
	if err := a.DB.Create(&conv).Error; err != nil {
		return nil, err
	}

	return &conv, nil
}
