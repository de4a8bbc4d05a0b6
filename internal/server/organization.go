package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	organizationdomain "github.com/market-dot-dev/studio-sub000/internal/organization/domain"
)

func (s *Server) CreateOrganization(c *gin.Context) {
	var req organizationdomain.CreateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.OwnerUserID = currentUser(c).ID

	org, err := s.orgSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, org)
}

func (s *Server) GetOrganization(c *gin.Context) {
	c.JSON(http.StatusOK, currentOrg(c))
}

func (s *Server) UpdateOrganization(c *gin.Context) {
	var req organizationdomain.UpdateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	org, err := s.orgSvc.Update(c.Request.Context(), currentOrg(c).ID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, org)
}

func (s *Server) ListMembers(c *gin.Context) {
	members, err := s.orgSvc.ListMembers(c.Request.Context(), currentOrg(c).ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": members})
}

func (s *Server) UpdateMemberRole(c *gin.Context) {
	userID, err := snowflake.ParseString(c.Param("userID"))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var req struct {
		Role organizationdomain.Role `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.orgSvc.UpdateMemberRole(c.Request.Context(), currentOrg(c).ID, userID, req.Role); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) RemoveMember(c *gin.Context) {
	userID, err := snowflake.ParseString(c.Param("userID"))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.orgSvc.RemoveMember(c.Request.Context(), currentOrg(c).ID, userID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) TransferOwnership(c *gin.Context) {
	var req struct {
		ToUserID snowflake.ID `json:"to_user_id,string"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	err := s.orgSvc.TransferOwnership(c.Request.Context(), currentOrg(c).ID, currentUser(c).ID, req.ToUserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) InviteMember(c *gin.Context) {
	var req organizationdomain.InviteMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	invite, err := s.orgSvc.InviteMember(c.Request.Context(), currentOrg(c).ID, currentUser(c).ID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, invite)
}

func (s *Server) AcceptInvite(c *gin.Context) {
	inviteID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	user := currentUser(c)
	if err := s.orgSvc.AcceptInvite(c.Request.Context(), inviteID, user.ID, user.Email); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) CanSell(c *gin.Context) {
	result, err := s.orgSvc.CanSell(c.Request.Context(), currentOrg(c).ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) ConnectAccount(c *gin.Context) {
	var req struct {
		AccountID string `json:"account_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.orgSvc.ConnectAccount(c.Request.Context(), currentOrg(c).ID, req.AccountID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) DisconnectAccount(c *gin.Context) {
	org := currentOrg(c)
	if org.StripeAccountID == nil {
		c.Status(http.StatusNoContent)
		return
	}
	if err := s.orgSvc.DisconnectAccount(c.Request.Context(), *org.StripeAccountID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
