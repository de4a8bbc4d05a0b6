package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	organizationdomain "github.com/market-dot-dev/studio-sub000/internal/organization/domain"
	"github.com/market-dot-dev/studio-sub000/internal/orgcontext"
	prospectdomain "github.com/market-dot-dev/studio-sub000/internal/prospect/domain"
)

func (s *Server) ListProspects(c *gin.Context) {
	prospects, err := s.prospectSvc.ListByOrg(c.Request.Context(), currentOrg(c).ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"prospects": prospects})
}

// PublicRegisterProspect captures a lead on a vendor storefront. No session;
// the tenant comes from the ?org= slug or the request host.
func (s *Server) PublicRegisterProspect(c *gin.Context) {
	org, err := s.publicOrg(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req prospectdomain.RegisterProspectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := orgcontext.WithOrgID(c.Request.Context(), org.ID)
	prospect, err := s.prospectSvc.Register(ctx, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, prospect)
}

// PublicTiers lists the published tiers of a vendor storefront.
func (s *Server) PublicTiers(c *gin.Context) {
	org, err := s.publicOrg(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	tiers, err := s.tierSvc.ListByOrg(c.Request.Context(), org.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	published := tiers[:0]
	for _, t := range tiers {
		if t.Published {
			published = append(published, t)
		}
	}
	c.JSON(http.StatusOK, gin.H{"tiers": published})
}

func (s *Server) publicOrg(c *gin.Context) (organizationdomain.Organization, error) {
	slug := c.Query("org")
	if slug == "" {
		slug = s.slugFromHost(c.Request.Host)
	}
	if slug == "" {
		return organizationdomain.Organization{}, organizationdomain.ErrOrganizationNotFound
	}
	return s.orgSvc.GetBySlug(c.Request.Context(), slug)
}
