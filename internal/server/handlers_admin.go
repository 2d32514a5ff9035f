package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mia/apps/backend/internal/cache"
	"mia/apps/backend/internal/chat"
	"mia/apps/backend/internal/redflag"
)

// redFlagRequest carries optional fields so PUT can patch a pattern.
type redFlagRequest struct {
	PatternType *string   `json:"pattern_type"`
	Keywords    *[]string `json:"keywords"`
	Severity    *string   `json:"severity"`
	Category    *string   `json:"category"`
	IsActive    *bool     `json:"is_active"`
}

func (r redFlagRequest) apply(p redflag.Pattern) redflag.Pattern {
	if r.PatternType != nil {
		p.Type = redflag.PatternType(*r.PatternType)
	}
	if r.Keywords != nil {
		p.Keywords = *r.Keywords
	}
	if r.Severity != nil {
		p.Severity = redflag.Severity(*r.Severity)
	}
	if r.Category != nil {
		p.Category = *r.Category
	}
	if r.IsActive != nil {
		p.Active = *r.IsActive
	}
	return p
}

type promptRequest struct {
	Content string `json:"content"`
}

func (a *App) listRedFlags(c *gin.Context) {
	patterns, err := a.deps.Patterns.ListPatterns(c.Request.Context())
	if err != nil {
		a.logger.Error("list red flag patterns failed", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Error al listar patrones")
		return
	}
	writeData(c, http.StatusOK, patterns)
}

func (a *App) createRedFlag(c *gin.Context) {
	var payload redFlagRequest
	if !mustJSON(c, &payload) {
		return
	}
	if payload.PatternType == nil || payload.Keywords == nil || payload.Category == nil {
		writeError(c, http.StatusBadRequest, "category, pattern_type y keywords son obligatorios")
		return
	}

	pattern := payload.apply(redflag.Pattern{Active: true}).Normalize()
	if err := pattern.Validate(); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	created, err := a.deps.Patterns.CreatePattern(c.Request.Context(), pattern)
	if err != nil {
		a.logger.Error("create red flag pattern failed", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Error al crear el patrón")
		return
	}
	a.invalidate(c, cache.TopicRedFlags)
	a.logger.Info("red flag pattern added",
		zap.Int64("id", created.ID),
		zap.String("category", created.Category),
		zap.String("admin", adminSubject(c)),
	)
	writeData(c, http.StatusCreated, created)
}

func (a *App) updateRedFlag(c *gin.Context) {
	id, ok := patternID(c)
	if !ok {
		return
	}
	var payload redFlagRequest
	if !mustJSON(c, &payload) {
		return
	}

	current, found, err := a.findPattern(c, id)
	if err != nil {
		a.logger.Error("load red flag pattern failed", zap.Int64("id", id), zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Error al actualizar el patrón")
		return
	}
	if !found {
		writeError(c, http.StatusNotFound, "Patrón no encontrado")
		return
	}

	pattern := payload.apply(current).Normalize()
	if err := pattern.Validate(); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	updated, err := a.deps.Patterns.UpdatePattern(c.Request.Context(), pattern)
	if errors.Is(err, redflag.ErrPatternNotFound) {
		writeError(c, http.StatusNotFound, "Patrón no encontrado")
		return
	}
	if err != nil {
		a.logger.Error("update red flag pattern failed", zap.Int64("id", id), zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Error al actualizar el patrón")
		return
	}
	a.invalidate(c, cache.TopicRedFlags)
	writeData(c, http.StatusOK, updated)
}

func (a *App) deleteRedFlag(c *gin.Context) {
	id, ok := patternID(c)
	if !ok {
		return
	}
	err := a.deps.Patterns.DeletePattern(c.Request.Context(), id)
	if errors.Is(err, redflag.ErrPatternNotFound) {
		writeError(c, http.StatusNotFound, "Patrón no encontrado")
		return
	}
	if err != nil {
		a.logger.Error("delete red flag pattern failed", zap.Int64("id", id), zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Error al eliminar el patrón")
		return
	}
	a.invalidate(c, cache.TopicRedFlags)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Patrón eliminado"})
}

func (a *App) getPrompt(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	content, err := a.deps.Prompts.GetActiveSystemPrompt(c.Request.Context(), name)
	if errors.Is(err, chat.ErrPromptNotFound) {
		writeError(c, http.StatusNotFound, "Prompt no encontrado")
		return
	}
	if err != nil {
		a.logger.Error("get system prompt failed", zap.String("name", name), zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Error al obtener el prompt")
		return
	}
	writeData(c, http.StatusOK, gin.H{"name": name, "content": content})
}

func (a *App) savePrompt(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	var payload promptRequest
	if !mustJSON(c, &payload) {
		return
	}
	if strings.TrimSpace(payload.Content) == "" {
		writeError(c, http.StatusBadRequest, "content es obligatorio")
		return
	}

	saved, err := a.deps.Prompts.SavePrompt(c.Request.Context(), name, payload.Content)
	if err != nil {
		a.logger.Error("save system prompt failed", zap.String("name", name), zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Error al guardar el prompt")
		return
	}
	a.invalidate(c, cache.TopicSystemPrompts)
	a.logger.Info("system prompt updated",
		zap.String("name", name),
		zap.Int("version", saved.Version),
		zap.String("admin", adminSubject(c)),
	)
	status := http.StatusOK
	if saved.Version == 1 {
		status = http.StatusCreated
	}
	writeData(c, status, saved)
}

// invalidate never fails the request: the local cache is already cleared
// when only the broadcast fails.
func (a *App) invalidate(c *gin.Context, topic string) {
	if a.deps.Bus == nil {
		return
	}
	if err := a.deps.Bus.Invalidate(c.Request.Context(), topic); err != nil {
		a.logger.Warn("cache invalidation broadcast failed", zap.String("topic", topic), zap.Error(err))
	}
}

func (a *App) findPattern(c *gin.Context, id int64) (redflag.Pattern, bool, error) {
	patterns, err := a.deps.Patterns.ListPatterns(c.Request.Context())
	if err != nil {
		return redflag.Pattern{}, false, err
	}
	for _, p := range patterns {
		if p.ID == id {
			return p, true, nil
		}
	}
	return redflag.Pattern{}, false, nil
}

func patternID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(c, http.StatusBadRequest, "Identificador de patrón no válido")
		return 0, false
	}
	return id, true
}
