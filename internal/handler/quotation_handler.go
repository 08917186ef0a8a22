package handler

import (
	"net/http"

	"crm/internal/apperr"
	"crm/internal/middleware"
	"crm/internal/repository"
	"crm/internal/service"
	"crm/pkg/pagination"
	"crm/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type QuotationHandler struct {
	quotationService service.QuotationService
}

func NewQuotationHandler(quotationService service.QuotationService) *QuotationHandler {
	return &QuotationHandler{quotationService: quotationService}
}

func (h *QuotationHandler) RegisterRoutes(router *gin.RouterGroup) {
	quotations := router.Group("/quotations")
	quotations.Use(middleware.RequirePermission())
	{
		quotations.GET("", h.ListQuotations)
		quotations.POST("", h.CreateQuotation)
		quotations.GET("/:id", h.GetQuotation)
		quotations.PUT("/:id", h.UpdateQuotation)
		quotations.DELETE("/:id", h.DeleteQuotation)
		quotations.PUT("/:id/line-items", h.UpdateLineItems)
		quotations.PUT("/:id/status", h.UpdateStatus)
		quotations.POST("/:id/send", h.SendQuotation)
	}
}

// ListQuotations handles GET /quotations
// @Summary      List quotations
// @Tags         quotations
// @Produce      json
// @Security     BearerAuth
// @Param        lead_id     query     string  false  "Lead ID"
// @Param        status      query     string  false  "Quotation status"
// @Param        price_from  query     string  false  "Minimum total price"
// @Param        price_to    query     string  false  "Maximum total price"
// @Param        skip        query     int     false  "Offset"
// @Param        limit       query     int     false  "Page size"
// @Success      200         {object}  response.Response{data=pagination.Page[model.Quotation]}
// @Failure      400         {object}  response.Response
// @Router       /quotations [get]
func (h *QuotationHandler) ListQuotations(c *gin.Context) {
	p := pagination.Parse(c)
	filter, err := quotationFilter(c)
	if err != nil {
		respondError(c, err)
		return
	}

	quotations, err := h.quotationService.ListQuotations(c.Request.Context(), filter, p.Skip, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, pagination.NewPage(quotations, p)))
}

func quotationFilter(c *gin.Context) (repository.QuotationFilter, error) {
	filter := repository.QuotationFilter{Status: c.Query("status")}
	fields := make(map[string]string)

	if v := c.Query("lead_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			fields["lead_id"] = "must be a valid UUID"
		} else {
			filter.LeadID = &id
		}
	}
	for name, dst := range map[string]**decimal.Decimal{"price_from": &filter.PriceFrom, "price_to": &filter.PriceTo} {
		v := c.Query(name)
		if v == "" {
			continue
		}
		d, err := decimal.NewFromString(v)
		if err != nil {
			fields[name] = "must be a number"
			continue
		}
		*dst = &d
	}

	if len(fields) > 0 {
		return filter, apperr.Validation("validation failed", fields)
	}
	return filter, nil
}

// GetQuotation handles GET /quotations/:id
// @Summary      Get quotation
// @Tags         quotations
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Quotation ID"
// @Success      200  {object}  response.Response{data=model.Quotation}
// @Failure      404  {object}  response.Response
// @Router       /quotations/{id} [get]
func (h *QuotationHandler) GetQuotation(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	q, err := h.quotationService.GetQuotation(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, q))
}

// CreateQuotation handles POST /quotations
// @Summary      Create quotation
// @Description  Creates a DRAFT quotation for an existing lead
// @Tags         quotations
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateQuotationRequest  true  "Quotation"
// @Success      201      {object}  response.Response{data=model.Quotation}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /quotations [post]
func (h *QuotationHandler) CreateQuotation(c *gin.Context) {
	var req service.CreateQuotationRequest
	if !bindJSON(c, &req) {
		return
	}
	q, err := h.quotationService.CreateQuotation(c.Request.Context(), req, middleware.CurrentIdentity(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, q))
}

// UpdateQuotation handles PUT /quotations/:id
// @Summary      Re-assign quotation
// @Description  Moves a DRAFT quotation to another lead
// @Tags         quotations
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                          true  "Quotation ID"
// @Param        payload  body      service.UpdateQuotationRequest  true  "Lead"
// @Success      200      {object}  response.Response{data=model.Quotation}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /quotations/{id} [put]
func (h *QuotationHandler) UpdateQuotation(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.UpdateQuotationRequest
	if !bindJSON(c, &req) {
		return
	}
	q, err := h.quotationService.UpdateQuotation(c.Request.Context(), id, req, middleware.CurrentIdentity(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, q))
}

// UpdateLineItems handles PUT /quotations/:id/line-items
// @Summary      Update line items
// @Description  Items with an id are patched, items without one are appended. The total is recomputed.
// @Tags         quotations
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                          true  "Quotation ID"
// @Param        payload  body      service.UpdateLineItemsRequest  true  "Line items"
// @Success      200      {object}  response.Response{data=model.Quotation}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /quotations/{id}/line-items [put]
func (h *QuotationHandler) UpdateLineItems(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.UpdateLineItemsRequest
	if !bindJSON(c, &req) {
		return
	}
	q, err := h.quotationService.UpdateLineItems(c.Request.Context(), id, req, middleware.CurrentIdentity(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, q))
}

// UpdateStatus handles PUT /quotations/:id/status
// @Summary      Change quotation status
// @Description  DRAFT -> SUBMITTED -> APPROVED -> SENT -> ACCEPTED | REJECTED. Approval needs an approver role.
// @Tags         quotations
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                                true  "Quotation ID"
// @Param        payload  body      service.UpdateQuotationStatusRequest  true  "New status"
// @Success      200      {object}  response.Response{data=model.Quotation}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /quotations/{id}/status [put]
func (h *QuotationHandler) UpdateStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.UpdateQuotationStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	q, err := h.quotationService.UpdateStatus(c.Request.Context(), id, req, middleware.CurrentIdentity(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, q))
}

// SendQuotation handles POST /quotations/:id/send
// @Summary      Send quotation
// @Description  E-mails an APPROVED quotation to its QUALIFIED lead and marks it SENT
// @Tags         quotations
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Quotation ID"
// @Success      200  {object}  response.Response{data=model.Quotation}
// @Failure      400  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /quotations/{id}/send [post]
func (h *QuotationHandler) SendQuotation(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	q, err := h.quotationService.SendQuotation(c.Request.Context(), id, middleware.CurrentIdentity(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, q))
}

// DeleteQuotation handles DELETE /quotations/:id
// @Summary      Delete quotation
// @Tags         quotations
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Quotation ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /quotations/{id} [delete]
func (h *QuotationHandler) DeleteQuotation(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.quotationService.DeleteQuotation(c.Request.Context(), id, middleware.CurrentIdentity(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Quotation deleted successfully"}))
}
