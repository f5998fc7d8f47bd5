package handler

import (
	"strconv"

	"retailer-portal/internal/adapter/http/dto"
	"retailer-portal/internal/core/domain"

	"github.com/gin-gonic/gin"
)

func toSubmissionResponse(s *domain.Submission) dto.SubmissionResponse {
	resp := dto.SubmissionResponse{
		ID:            s.ID.String(),
		RetailerID:    s.RetailerID.String(),
		ServiceID:     s.ServiceID.String(),
		SubServiceID:  s.SubServiceID.String(),
		OptionID:      s.OptionID.String(),
		FormData:      s.FormData,
		Documents:     s.Documents,
		Amount:        s.Amount,
		PaymentMethod: string(s.PaymentMethod),
		PaymentStatus: string(s.PaymentStatus),
		Status:        string(s.Status),
		AdminRemarks:  s.AdminRemarks,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
	if s.PaymentOrderID != nil {
		resp.PaymentOrderID = *s.PaymentOrderID
	}
	for _, e := range s.StatusHistory {
		entry := dto.StatusEntryResponse{
			Status:    string(e.Status),
			Remarks:   e.Remarks,
			ActorRole: string(e.ActorRole),
			At:        e.At,
		}
		if e.ActorID != nil {
			entry.ActorID = e.ActorID.String()
		}
		resp.StatusHistory = append(resp.StatusHistory, entry)
	}
	return resp
}

func toTransactionResponse(t *domain.Transaction) dto.TransactionResponse {
	resp := dto.TransactionResponse{
		ID:              t.ID.String(),
		Type:            string(t.Type),
		Amount:          t.Amount,
		PreviousBalance: t.PreviousBalance,
		UpdatedBalance:  t.UpdatedBalance,
		Reason:          t.Reason,
		CreatedAt:       t.CreatedAt,
	}
	if t.SubmissionID != nil {
		resp.SubmissionID = t.SubmissionID.String()
	}
	if t.ExternalOrderID != nil {
		resp.ExternalOrderID = *t.ExternalOrderID
	}
	return resp
}

// parsePagination reads page/page_size query params with sane bounds.
func parsePagination(c *gin.Context) (page, pageSize int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
