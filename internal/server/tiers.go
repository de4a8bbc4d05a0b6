package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	tierdomain "github.com/market-dot-dev/studio-sub000/internal/tier/domain"
)

func (s *Server) ListTiers(c *gin.Context) {
	tiers, err := s.tierSvc.ListByOrg(c.Request.Context(), currentOrg(c).ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tiers": tiers})
}

func (s *Server) CreateTier(c *gin.Context) {
	var req tierdomain.CreateTierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	t, err := s.tierSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (s *Server) GetTier(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	t, err := s.tierSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if t.OrgID != currentOrg(c).ID {
		AbortWithError(c, tierdomain.ErrTierNotFound)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) UpdateTier(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var req tierdomain.UpdateTierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	t, err := s.tierSvc.Update(c.Request.Context(), id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) PublishTier(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	t, err := s.tierSvc.Publish(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) UnpublishTier(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	t, err := s.tierSvc.Unpublish(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) ListTierVersions(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	versions, err := s.tierSvc.ListVersions(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"versions": versions})
}
