package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const planCacheTTL = time.Hour

// PlanPricing serves the platform plan table. With ?plan= it returns a single
// plan, cached per plan type so hot storefront reads skip the holder walk.
func (s *Server) PlanPricing(c *gin.Context) {
	planType := c.Query("plan")
	if planType == "" {
		c.JSON(http.StatusOK, s.pricing.Get())
		return
	}

	if plan, ok := s.planCache.Get(planType); ok {
		c.JSON(http.StatusOK, plan)
		return
	}

	plan, ok := s.pricing.Plan(planType)
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown plan"})
		return
	}
	s.planCache.Set(planType, plan, planCacheTTL)
	c.JSON(http.StatusOK, plan)
}
