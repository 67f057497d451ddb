package handler

import (
	"net/http"

	"public-eye-service/internal/model"
	"public-eye-service/internal/service"

	"github.com/gin-gonic/gin"
)

type RewardHandler struct {
	rewardService *service.RewardService
}

func NewRewardHandler(rewardService *service.RewardService) *RewardHandler {
	return &RewardHandler{rewardService: rewardService}
}

func (h *RewardHandler) GetPoints(c *gin.Context) {
	points, err := h.rewardService.GetPoints(c.Request.Context(), c.Param("citizenId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.PointsResponse{Points: points})
}

func (h *RewardHandler) Claim(c *gin.Context) {
	var req model.ClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	remaining, err := h.rewardService.Claim(c.Request.Context(), req.CitizenID, req.Points)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.ClaimResponse{
		Message:         "Reward claimed successfully",
		RemainingPoints: remaining,
	})
}
