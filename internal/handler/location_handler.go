package handler

import (
	"context"
	"net/http"
	"strconv"

	"public-eye-service/internal/apperror"

	"github.com/gin-gonic/gin"
)

// ReverseGeocoder resolves coordinates to an address.
type ReverseGeocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (string, error)
}

type LocationHandler struct {
	geocoder ReverseGeocoder
}

func NewLocationHandler(geocoder ReverseGeocoder) *LocationHandler {
	return &LocationHandler{geocoder: geocoder}
}

// Handles GET /location/reverse?lat=&lon=
func (h *LocationHandler) Reverse(c *gin.Context) {
	lat, latErr := strconv.ParseFloat(c.Query("lat"), 64)
	lon, lonErr := strconv.ParseFloat(c.Query("lon"), 64)
	if latErr != nil || lonErr != nil {
		respondError(c, apperror.Validation("Latitude and Longitude required"))
		return
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		respondError(c, apperror.Validation("coordinates out of range"))
		return
	}

	address, err := h.geocoder.Reverse(c.Request.Context(), lat, lon)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"address": address})
}
