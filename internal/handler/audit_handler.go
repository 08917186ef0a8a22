package handler

import (
	"net/http"
	"time"

	"crm/internal/apperr"
	"crm/internal/middleware"
	"crm/internal/repository"
	"crm/internal/service"
	"crm/pkg/pagination"
	"crm/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AuditHandler struct {
	auditService service.AuditService
}

func NewAuditHandler(auditService service.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/audit-logs")
	group.Use(middleware.RequirePermission())
	{
		group.GET("", h.GetAuditLogs)
		group.GET("/:id", h.GetAuditLog)
	}
}

// GetAuditLogs lists audit entries newest first
// @Summary      Get audit logs
// @Description  Filters combine with AND; action and context match case-insensitive substrings
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        entity_type  query     string  false  "LEAD, QUOTATION, ROLE or USER"
// @Param        entity_id    query     string  false  "Entity ID"
// @Param        user_id      query     string  false  "Acting user ID"
// @Param        action       query     string  false  "Action contains"
// @Param        context      query     string  false  "Context contains"
// @Param        date_from    query     string  false  "RFC3339 or YYYY-MM-DD"
// @Param        date_to      query     string  false  "RFC3339 or YYYY-MM-DD"
// @Param        skip         query     int     false  "Offset"
// @Param        limit        query     int     false  "Page size"
// @Success      200          {object}  response.Response{data=pagination.Page[service.AuditLogResponse]}
// @Failure      400          {object}  response.Response
// @Router       /audit-logs [get]
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	p := pagination.Parse(c)
	filter, err := auditFilter(c)
	if err != nil {
		respondError(c, err)
		return
	}

	logs, err := h.auditService.ListAuditLogs(c.Request.Context(), filter, p.Skip, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, pagination.NewPage(logs, p)))
}

// GetAuditLog returns one audit entry
// @Summary      Get audit log
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Audit log ID"
// @Success      200  {object}  response.Response{data=service.AuditLogResponse}
// @Failure      404  {object}  response.Response
// @Router       /audit-logs/{id} [get]
func (h *AuditHandler) GetAuditLog(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	entry, err := h.auditService.GetAuditLog(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, entry))
}

func auditFilter(c *gin.Context) (repository.AuditFilter, error) {
	filter := repository.AuditFilter{
		EntityType: c.Query("entity_type"),
		Action:     c.Query("action"),
		Context:    c.Query("context"),
	}
	fields := make(map[string]string)

	for name, dst := range map[string]**uuid.UUID{"entity_id": &filter.EntityID, "user_id": &filter.UserID} {
		if v := c.Query(name); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				fields[name] = "must be a valid UUID"
				continue
			}
			*dst = &id
		}
	}
	for name, dst := range map[string]**time.Time{"date_from": &filter.DateFrom, "date_to": &filter.DateTo} {
		if v := c.Query(name); v != "" {
			t, err := parseTime(v)
			if err != nil {
				fields[name] = "must be an RFC3339 timestamp or YYYY-MM-DD date"
				continue
			}
			*dst = &t
		}
	}

	if len(fields) > 0 {
		return filter, apperr.Validation("validation failed", fields)
	}
	return filter, nil
}

func parseTime(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, v)
}
