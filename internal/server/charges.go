package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	chargedomain "github.com/market-dot-dev/studio-sub000/internal/charge/domain"
)

func (s *Server) ListCharges(c *gin.Context) {
	charges, err := s.chargeSvc.ListByOrg(c.Request.Context(), currentOrg(c).ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"charges": charges})
}

func (s *Server) CreateCharge(c *gin.Context) {
	var req chargedomain.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	charge, err := s.chargeSvc.Purchase(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, charge)
}
