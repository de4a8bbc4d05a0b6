package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	authdomain "github.com/market-dot-dev/studio-sub000/internal/auth/domain"
)

func (s *Server) Register(c *gin.Context) {
	var req authdomain.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	user, err := s.authSvc.Register(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (s *Server) Login(c *gin.Context) {
	var req authdomain.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	session, user, err := s.authSvc.Login(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	maxAge := int(time.Until(session.ExpiresAt).Seconds())
	c.SetCookie(sessionCookie, session.Token, maxAge, "/", "", s.cfg.AuthCookieSecure, true)
	c.JSON(http.StatusOK, user)
}

func (s *Server) Logout(c *gin.Context) {
	if token, err := c.Cookie(sessionCookie); err == nil && token != "" {
		_ = s.authSvc.Logout(c.Request.Context(), token)
	}
	c.SetCookie(sessionCookie, "", -1, "/", "", s.cfg.AuthCookieSecure, true)
	c.Status(http.StatusNoContent)
}

func (s *Server) Me(c *gin.Context) {
	c.JSON(http.StatusOK, currentUser(c))
}
