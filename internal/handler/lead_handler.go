package handler

import (
	"net/http"

	"crm/internal/middleware"
	"crm/internal/repository"
	"crm/internal/service"
	"crm/pkg/pagination"
	"crm/pkg/response"

	"github.com/gin-gonic/gin"
)

type LeadHandler struct {
	leadService service.LeadService
}

func NewLeadHandler(leadService service.LeadService) *LeadHandler {
	return &LeadHandler{leadService: leadService}
}

func (h *LeadHandler) RegisterRoutes(router *gin.RouterGroup) {
	leads := router.Group("/leads")
	leads.Use(middleware.RequirePermission())
	{
		leads.GET("", h.ListLeads)
		leads.POST("", h.CreateLead)
		leads.GET("/:id", h.GetLead)
		leads.PUT("/:id", h.UpdateLead)
		leads.DELETE("/:id", h.DeleteLead)
		leads.PUT("/:id/status", h.UpdateLeadStatus)
	}
}

// ListLeads handles GET /leads
// @Summary      List leads
// @Description  Text filters match case-insensitive substrings; all filters combine with AND
// @Tags         leads
// @Produce      json
// @Security     BearerAuth
// @Param        name          query     string  false  "Name contains"
// @Param        email         query     string  false  "Email contains"
// @Param        phone         query     string  false  "Phone contains"
// @Param        status        query     string  false  "NEW, CONTACTED, QUALIFIED or LOST"
// @Param        utm_source    query     string  false  "UTM source contains"
// @Param        utm_medium    query     string  false  "UTM medium contains"
// @Param        utm_campaign  query     string  false  "UTM campaign contains"
// @Param        utm_content   query     string  false  "UTM content contains"
// @Param        utm_term      query     string  false  "UTM term contains"
// @Param        skip          query     int     false  "Offset"
// @Param        limit         query     int     false  "Page size"
// @Success      200           {object}  response.Response{data=pagination.Page[model.Lead]}
// @Failure      400           {object}  response.Response
// @Router       /leads [get]
func (h *LeadHandler) ListLeads(c *gin.Context) {
	p := pagination.Parse(c)
	filter := repository.LeadFilter{
		Name:        c.Query("name"),
		Email:       c.Query("email"),
		Phone:       c.Query("phone"),
		Status:      c.Query("status"),
		UTMSource:   c.Query("utm_source"),
		UTMMedium:   c.Query("utm_medium"),
		UTMCampaign: c.Query("utm_campaign"),
		UTMContent:  c.Query("utm_content"),
		UTMTerm:     c.Query("utm_term"),
	}

	leads, err := h.leadService.ListLeads(c.Request.Context(), filter, p.Skip, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, pagination.NewPage(leads, p)))
}

// GetLead handles GET /leads/:id
// @Summary      Get lead
// @Tags         leads
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Lead ID"
// @Success      200  {object}  response.Response{data=model.Lead}
// @Failure      404  {object}  response.Response
// @Router       /leads/{id} [get]
func (h *LeadHandler) GetLead(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	lead, err := h.leadService.GetLead(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, lead))
}

// CreateLead handles POST /leads
// @Summary      Create lead
// @Tags         leads
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateLeadRequest  true  "Lead"
// @Success      201      {object}  response.Response{data=model.Lead}
// @Failure      400      {object}  response.Response
// @Router       /leads [post]
func (h *LeadHandler) CreateLead(c *gin.Context) {
	var req service.CreateLeadRequest
	if !bindJSON(c, &req) {
		return
	}
	lead, err := h.leadService.CreateLead(c.Request.Context(), req, middleware.CurrentIdentity(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, lead))
}

// UpdateLead handles PUT /leads/:id
// @Summary      Update lead
// @Description  Only the fields present in the body change
// @Tags         leads
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                     true  "Lead ID"
// @Param        payload  body      service.UpdateLeadRequest  true  "Fields to change"
// @Success      200      {object}  response.Response{data=model.Lead}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /leads/{id} [put]
func (h *LeadHandler) UpdateLead(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.UpdateLeadRequest
	if !bindJSON(c, &req) {
		return
	}
	lead, err := h.leadService.UpdateLead(c.Request.Context(), id, req, middleware.CurrentIdentity(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, lead))
}

// UpdateLeadStatus handles PUT /leads/:id/status
// @Summary      Change lead status
// @Tags         leads
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                           true  "Lead ID"
// @Param        payload  body      service.UpdateLeadStatusRequest  true  "New status"
// @Success      200      {object}  response.Response{data=model.Lead}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /leads/{id}/status [put]
func (h *LeadHandler) UpdateLeadStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.UpdateLeadStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	lead, err := h.leadService.UpdateLeadStatus(c.Request.Context(), id, req, middleware.CurrentIdentity(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, lead))
}

// DeleteLead handles DELETE /leads/:id
// @Summary      Delete lead
// @Description  A lead that still has quotations cannot be deleted
// @Tags         leads
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Lead ID"
// @Success      200  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /leads/{id} [delete]
func (h *LeadHandler) DeleteLead(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.leadService.DeleteLead(c.Request.Context(), id, middleware.CurrentIdentity(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Lead deleted successfully"}))
}
