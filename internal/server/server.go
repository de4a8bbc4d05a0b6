package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/market-dot-dev/studio-sub000/internal/auth"
	authdomain "github.com/market-dot-dev/studio-sub000/internal/auth/domain"
	"github.com/market-dot-dev/studio-sub000/internal/authorization"
	"github.com/market-dot-dev/studio-sub000/internal/cache"
	"github.com/market-dot-dev/studio-sub000/internal/charge"
	chargedomain "github.com/market-dot-dev/studio-sub000/internal/charge/domain"
	"github.com/market-dot-dev/studio-sub000/internal/config"
	"github.com/market-dot-dev/studio-sub000/internal/lock"
	"github.com/market-dot-dev/studio-sub000/internal/notification"
	"github.com/market-dot-dev/studio-sub000/internal/organization"
	organizationdomain "github.com/market-dot-dev/studio-sub000/internal/organization/domain"
	"github.com/market-dot-dev/studio-sub000/internal/payment"
	paymentdomain "github.com/market-dot-dev/studio-sub000/internal/payment/domain"
	"github.com/market-dot-dev/studio-sub000/internal/prospect"
	prospectdomain "github.com/market-dot-dev/studio-sub000/internal/prospect/domain"
	"github.com/market-dot-dev/studio-sub000/internal/providers/email"
	paymentprovider "github.com/market-dot-dev/studio-sub000/internal/providers/payment"
	"github.com/market-dot-dev/studio-sub000/internal/scheduler"
	"github.com/market-dot-dev/studio-sub000/internal/subscription"
	subscriptiondomain "github.com/market-dot-dev/studio-sub000/internal/subscription/domain"
	"github.com/market-dot-dev/studio-sub000/internal/tier"
	tierdomain "github.com/market-dot-dev/studio-sub000/internal/tier/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(newPlanCache),
	authorization.Module,
	email.Module,
	notification.Module,
	paymentprovider.Module,
	lock.Module,
	auth.Module,
	organization.Module,
	tier.Module,
	subscription.Module,
	charge.Module,
	prospect.Module,
	payment.Module,
	scheduler.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(MetricsMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func newPlanCache() *cache.TTLCache[string, config.PlanPricing] {
	return cache.NewTTLCache[string, config.PlanPricing]()
}

type Server struct {
	engine *gin.Engine
	cfg    config.Config
	log    *zap.Logger
	genID  *snowflake.Node

	authSvc     authdomain.Service
	orgSvc      organizationdomain.Service
	tierSvc     tierdomain.Service
	subSvc      subscriptiondomain.Service
	chargeSvc   chargedomain.Service
	prospectSvc prospectdomain.Service
	eventSvc    paymentdomain.Service
	authzSvc    authorization.Service

	pricing   *config.PricingHolder
	planCache *cache.TTLCache[string, config.PlanPricing]
}

type ServerParams struct {
	fx.In

	Gin   *gin.Engine
	Cfg   config.Config
	Log   *zap.Logger
	GenID *snowflake.Node

	AuthSvc     authdomain.Service
	OrgSvc      organizationdomain.Service
	TierSvc     tierdomain.Service
	SubSvc      subscriptiondomain.Service
	ChargeSvc   chargedomain.Service
	ProspectSvc prospectdomain.Service
	EventSvc    paymentdomain.Service
	AuthzSvc    authorization.Service

	Pricing   *config.PricingHolder
	PlanCache *cache.TTLCache[string, config.PlanPricing]
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine: p.Gin,
		cfg:    p.Cfg,
		log:    p.Log.Named("server"),
		genID:  p.GenID,

		authSvc:     p.AuthSvc,
		orgSvc:      p.OrgSvc,
		tierSvc:     p.TierSvc,
		subSvc:      p.SubSvc,
		chargeSvc:   p.ChargeSvc,
		prospectSvc: p.ProspectSvc,
		eventSvc:    p.EventSvc,
		authzSvc:    p.AuthzSvc,

		pricing:   p.Pricing,
		planCache: p.PlanCache,
	}

	s.registerAuthRoutes()
	s.registerPublicRoutes()
	s.registerAPIRoutes()

	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	grp := s.engine.Group("/auth")

	grp.POST("/register", s.Register)
	grp.POST("/login", s.Login)
	grp.POST("/logout", s.Logout)
	grp.GET("/me", s.SessionRequired(), s.Me)
}

// Public surface: webhook ingestion, storefront reads and lead capture keyed
// by tenant subdomain or slug header, platform plan pricing.
func (s *Server) registerPublicRoutes() {
	s.engine.POST("/webhooks/stripe", s.StripeWebhook)

	pub := s.engine.Group("/public")
	pub.GET("/tiers", s.PublicTiers)
	pub.POST("/prospects", s.PublicRegisterProspect)
	pub.GET("/pricing", s.PlanPricing)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api/v1")
	api.Use(s.SessionRequired())

	// Organization bootstrap is the only route without an active org.
	api.POST("/organizations", s.CreateOrganization)
	api.POST("/invites/:id/accept", s.AcceptInvite)

	org := api.Group("")
	org.Use(s.OrgRequired(), s.Authorized())

	org.GET("/organization", s.GetOrganization)
	org.PATCH("/organization", s.UpdateOrganization)
	org.GET("/organization/members", s.ListMembers)
	org.PATCH("/organization/members/:userID", s.UpdateMemberRole)
	org.DELETE("/organization/members/:userID", s.RemoveMember)
	org.POST("/organization/transfer", s.TransferOwnership)
	org.POST("/organization/invites", s.InviteMember)
	org.GET("/organization/can-sell", s.CanSell)
	org.POST("/organization/account", s.ConnectAccount)
	org.DELETE("/organization/account", s.DisconnectAccount)

	org.GET("/tiers", s.ListTiers)
	org.POST("/tiers", s.CreateTier)
	org.GET("/tiers/:id", s.GetTier)
	org.PATCH("/tiers/:id", s.UpdateTier)
	org.POST("/tiers/:id/publish", s.PublishTier)
	org.POST("/tiers/:id/unpublish", s.UnpublishTier)
	org.GET("/tiers/:id/versions", s.ListTierVersions)

	org.GET("/subscriptions", s.ListSubscriptions)
	org.POST("/subscriptions", s.CreateSubscription)
	org.GET("/subscriptions/:id", s.GetSubscription)
	org.POST("/subscriptions/:id/cancel", s.CancelSubscription)
	org.POST("/subscriptions/:id/reactivate", s.ReactivateSubscription)

	org.GET("/charges", s.ListCharges)
	org.POST("/charges", s.CreateCharge)

	org.GET("/prospects", s.ListProspects)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
