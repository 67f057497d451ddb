package handler

import (
	"net/http"

	"public-eye-service/internal/model"
	"public-eye-service/internal/service"

	"github.com/gin-gonic/gin"
)

type ComplaintHandler struct {
	complaintService *service.ComplaintService
	feedbackService  *service.FeedbackService
}

func NewComplaintHandler(complaintService *service.ComplaintService, feedbackService *service.FeedbackService) *ComplaintHandler {
	return &ComplaintHandler{
		complaintService: complaintService,
		feedbackService:  feedbackService,
	}
}

// Handles POST /complaints - files a complaint and returns it with its
// assigned id, priority and estimated resolution.
func (h *ComplaintHandler) CreateComplaint(c *gin.Context) {
	var req model.CreateComplaintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	complaint, err := h.complaintService.CreateComplaint(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, complaint)
}

// Handles GET /complaints - newest first, with optional ?status= and ?q= filters.
func (h *ComplaintHandler) GetComplaints(c *gin.Context) {
	complaints, err := h.complaintService.ListComplaints(c.Request.Context(), c.Query("status"), c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, complaints)
}

func (h *ComplaintHandler) GetStats(c *gin.Context) {
	stats, err := h.complaintService.GetStats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *ComplaintHandler) GetComplaint(c *gin.Context) {
	complaint, err := h.complaintService.GetComplaint(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, complaint)
}

// Handles PUT /complaints/:id - records a status transition.
func (h *ComplaintHandler) UpdateStatus(c *gin.Context) {
	var req model.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	complaint, err := h.complaintService.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, complaint)
}

func (h *ComplaintHandler) SubmitFeedback(c *gin.Context) {
	var req model.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if err := h.feedbackService.SubmitFeedback(c.Request.Context(), c.Param("id"), req.Rating, req.Comment); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Feedback submitted successfully"})
}
