package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mia/apps/backend/internal/chat"
)

const chatFailureDetail = "Error al procesar tu mensaje. Por favor, inténtalo de nuevo."

func (a *App) postChat(c *gin.Context) {
	var payload chat.Request
	if !mustJSON(c, &payload) {
		return
	}

	resp, err := a.deps.Chat.ProcessMessage(c.Request.Context(), payload)
	if errors.Is(err, chat.ErrInvalidRequest) {
		writeError(c, http.StatusBadRequest, chat.ValidationMessage(err))
		return
	}
	if err != nil {
		a.logger.Error("chat endpoint error",
			zap.String("session_id", payload.SessionID),
			zap.Error(err),
		)
		writeError(c, http.StatusInternalServerError, chatFailureDetail)
		return
	}
	writeData(c, http.StatusOK, resp)
}

func (a *App) chatWelcome(c *gin.Context) {
	writeData(c, http.StatusOK, chat.Welcome())
}

func (a *App) chatHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"status":    "ok",
		"service":   a.cfg.AppName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
