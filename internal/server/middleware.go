package server

import (
	"math/rand"
	"net"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	authdomain "github.com/market-dot-dev/studio-sub000/internal/auth/domain"
	organizationdomain "github.com/market-dot-dev/studio-sub000/internal/organization/domain"
	"github.com/market-dot-dev/studio-sub000/internal/orgcontext"
	"github.com/oklog/ulid/v2"
)

const (
	sessionCookie = "studio_session"

	ctxUserKey = "current_user"
	ctxOrgKey  = "current_org"
	ctxRoleKey = "current_role"
)

// RequestIDMiddleware tags every request with a ulid, echoed back in the
// response header.
func RequestIDMiddleware() gin.HandlerFunc {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// SessionRequired resolves the session cookie to a user and threads the user
// id through the request context.
func (s *Server) SessionRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(sessionCookie)
		if err != nil || token == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		user, err := s.authSvc.Authenticate(c.Request.Context(), token)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(ctxUserKey, user)
		c.Request = c.Request.WithContext(
			orgcontext.WithUserID(c.Request.Context(), user.ID))
		c.Next()
	}
}

// OrgRequired resolves the active organization from the X-Org-Slug header or
// the request's subdomain, checks membership, and stores the caller's role.
func (s *Server) OrgRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		slug := strings.TrimSpace(c.GetHeader("X-Org-Slug"))
		if slug == "" {
			slug = s.slugFromHost(c.Request.Host)
		}
		if slug == "" {
			AbortWithError(c, organizationdomain.ErrOrganizationNotFound)
			return
		}

		org, err := s.orgSvc.GetBySlug(c.Request.Context(), slug)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		user := currentUser(c)
		role, err := s.orgSvc.RoleOf(c.Request.Context(), org.ID, user.ID)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(ctxOrgKey, org)
		c.Set(ctxRoleKey, role)
		c.Request = c.Request.WithContext(
			orgcontext.WithOrgID(c.Request.Context(), org.ID))
		c.Next()
	}
}

// Authorized enforces the static role policy against the request path.
func (s *Server) Authorized() gin.HandlerFunc {
	return func(c *gin.Context) {
		role := currentRole(c)
		if err := s.authzSvc.Authorize(c.Request.Context(), role, c.Request.Method, c.Request.URL.Path); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// slugFromHost recovers the tenant slug from "<slug>.<root domain>".
func (s *Server) slugFromHost(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(host)
	root := strings.ToLower(s.cfg.RootDomain)
	if root == "" || !strings.HasSuffix(host, "."+root) {
		return ""
	}
	sub := strings.TrimSuffix(host, "."+root)
	if sub == "" || strings.Contains(sub, ".") {
		return ""
	}
	return sub
}

func currentUser(c *gin.Context) authdomain.User {
	user, _ := c.MustGet(ctxUserKey).(authdomain.User)
	return user
}

func currentOrg(c *gin.Context) organizationdomain.Organization {
	org, _ := c.MustGet(ctxOrgKey).(organizationdomain.Organization)
	return org
}

func currentRole(c *gin.Context) organizationdomain.Role {
	role, _ := c.MustGet(ctxRoleKey).(organizationdomain.Role)
	return role
}
