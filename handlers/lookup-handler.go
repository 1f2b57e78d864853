package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// PostalLookup resolves a pincode to its district, state and post offices for the address form.
func (h *Handler) PostalLookup(c *gin.Context) {
	if h.postal == nil {
		notConfigured(c, "postal lookup")
		return
	}
	res, err := h.postal.Lookup(c.Request.Context(), c.Param("pincode"))
	if err != nil {
		abortWithError(c, "postal lookup failed", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) CourierPincode(c *gin.Context) {
	if h.couriers == nil {
		notConfigured(c, "courier")
		return
	}
	res, err := h.couriers.CheckPincode(c.Request.Context(), c.Param("pincode"))
	if err != nil {
		abortWithError(c, "courier pincode check failed", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) CourierAreas(c *gin.Context) {
	if h.couriers == nil {
		notConfigured(c, "courier")
		return
	}
	areas, err := h.couriers.SearchArea(c.Request.Context(), c.Query("q"))
	if err != nil {
		abortWithError(c, "courier area search failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"areas": areas})
}
