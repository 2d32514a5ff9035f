package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mia/apps/backend/internal/catalog"
	"mia/apps/backend/internal/clinic"
)

const (
	defaultSearchLimit = 5
	maxSearchLimit     = 50
)

func (a *App) searchProducts(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		writeError(c, http.StatusBadRequest, `El parámetro de búsqueda "q" es obligatorio`)
		return
	}

	filters := catalog.Filters{
		Species:  strings.TrimSpace(c.Query("species")),
		Category: strings.TrimSpace(c.Query("category")),
		Limit:    defaultSearchLimit,
	}
	if raw := strings.TrimSpace(c.Query("maxPrice")); raw != "" {
		maxPrice, err := strconv.ParseFloat(raw, 64)
		if err != nil || maxPrice < 0 {
			writeError(c, http.StatusBadRequest, `El parámetro "maxPrice" debe ser un número`)
			return
		}
		filters.MaxPrice = maxPrice
	}
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			writeError(c, http.StatusBadRequest, `El parámetro "limit" debe ser un entero positivo`)
			return
		}
		filters.Limit = min(limit, maxSearchLimit)
	}

	products := a.deps.Catalog.SearchProducts(c.Request.Context(), q, filters)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    products,
		"count":   len(products),
	})
}

func (a *App) clinicsByPostalCode(c *gin.Context) {
	postalCode := c.Param("postalCode")
	if !clinic.IsPostalCode(postalCode) {
		writeError(c, http.StatusBadRequest, "El código postal debe tener 5 dígitos")
		return
	}

	result, err := a.deps.Clinics.Lookup(c.Request.Context(), postalCode)
	if err != nil {
		a.logger.Error("clinic lookup error", zap.String("postal_code", postalCode), zap.Error(err))
		writeError(c, http.StatusInternalServerError, "Error al buscar clínicas")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    clinic.Cards(result.Clinics),
		"count":   len(result.Clinics),
		"exact":   result.Exact,
	})
}
