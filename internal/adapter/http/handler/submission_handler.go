package handler

import (
	"retailer-portal/internal/adapter/http/dto"
	"retailer-portal/internal/adapter/http/middleware"
	"retailer-portal/internal/core/domain"
	"retailer-portal/internal/core/ports"
	"retailer-portal/pkg/apperror"
	"retailer-portal/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SubmissionHandler handles submission endpoints.
type SubmissionHandler struct {
	submissionSvc ports.SubmissionService
}

// NewSubmissionHandler creates a new SubmissionHandler.
func NewSubmissionHandler(submissionSvc ports.SubmissionService) *SubmissionHandler {
	return &SubmissionHandler{submissionSvc: submissionSvc}
}

// Purchase handles POST /api/v1/submissions.
func (h *SubmissionHandler) Purchase(c *gin.Context) {
	retailerID, ok := callerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	optionID, err := uuid.Parse(req.OptionID)
	if err != nil {
		response.Error(c, apperror.Validation("option_id must be a valid UUID"))
		return
	}

	result, err := h.submissionSvc.Purchase(c.Request.Context(), ports.PurchaseRequest{
		RetailerID:    retailerID,
		OptionID:      optionID,
		FormData:      req.FormData,
		Documents:     req.Documents,
		PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.PurchaseResponse{
		Submission: toSubmissionResponse(result.Submission),
		PaymentURL: result.PaymentURL,
	})
}

// RetryPayment handles POST /api/v1/submissions/:id/retry-payment.
func (h *SubmissionHandler) RetryPayment(c *gin.Context) {
	retailerID, ok := callerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}
	submissionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("id must be a valid UUID"))
		return
	}

	var req dto.RetryPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	result, err := h.submissionSvc.RetryPayment(c.Request.Context(), retailerID, submissionID, domain.PaymentMethod(req.PaymentMethod))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.PurchaseResponse{
		Submission: toSubmissionResponse(result.Submission),
		PaymentURL: result.PaymentURL,
	})
}

// ReUploadDocuments handles POST /api/v1/submissions/:id/documents.
func (h *SubmissionHandler) ReUploadDocuments(c *gin.Context) {
	retailerID, ok := callerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}
	submissionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("id must be a valid UUID"))
		return
	}

	var req dto.ReUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	sub, err := h.submissionSvc.ReUploadDocuments(c.Request.Context(), retailerID, submissionID, req.Documents)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toSubmissionResponse(sub))
}

// Get handles GET /api/v1/submissions/:id.
func (h *SubmissionHandler) Get(c *gin.Context) {
	retailerID, ok := callerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}
	submissionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("id must be a valid UUID"))
		return
	}

	sub, err := h.submissionSvc.GetSubmission(c.Request.Context(), submissionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	// Retailers see only their own submissions; admins see all.
	if role, _ := c.Get(middleware.CtxRole); role != middleware.RoleAdmin && sub.RetailerID != retailerID {
		response.Error(c, apperror.ErrSubmissionNotFound())
		return
	}

	response.OK(c, toSubmissionResponse(sub))
}

// List handles GET /api/v1/submissions.
func (h *SubmissionHandler) List(c *gin.Context) {
	retailerID, ok := callerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}
	page, pageSize := parsePagination(c)

	subs, total, err := h.submissionSvc.ListSubmissions(c.Request.Context(), retailerID, page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.SubmissionResponse, 0, len(subs))
	for i := range subs {
		items = append(items, toSubmissionResponse(&subs[i]))
	}
	response.OK(c, dto.Paginated[dto.SubmissionResponse]{
		Items: items, Total: total, Page: page, PageSize: pageSize,
	})
}

// AdminUpdateStatus handles PUT /api/v1/admin/submissions/:id/status.
func (h *SubmissionHandler) AdminUpdateStatus(c *gin.Context) {
	adminID, ok := callerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}
	submissionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("id must be a valid UUID"))
		return
	}

	var req dto.AdminStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	sub, err := h.submissionSvc.AdminUpdateStatus(c.Request.Context(), submissionID, domain.SubmissionStatus(req.Status), req.Remarks, adminID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toSubmissionResponse(sub))
}

// callerID extracts the authenticated caller's UUID from the context.
func callerID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(middleware.CtxRetailerID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
