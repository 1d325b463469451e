// Package server wires the application together: database, broker,
// services, background machinery and the HTTP router.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ncobase/ncore/config"
	"github.com/ncobase/ncore/logging/logger"
	"github.com/ncobase/ncore/messaging/email"
	"github.com/ncobase/ncore/net/resp"
	securityjwt "github.com/ncobase/ncore/security/jwt"

	accounthandler "github.com/sohan284/social-media-go/core/account/handler"
	accountrepo "github.com/sohan284/social-media-go/core/account/data/repository"
	"github.com/sohan284/social-media-go/core/account/oauth"
	accountservice "github.com/sohan284/social-media-go/core/account/service"
	"github.com/sohan284/social-media-go/core/auth/middleware"

	chathandler "github.com/sohan284/social-media-go/biz/chat/handler"
	chatrepo "github.com/sohan284/social-media-go/biz/chat/data/repository"
	chatservice "github.com/sohan284/social-media-go/biz/chat/service"
	"github.com/sohan284/social-media-go/biz/chat/ws"
	communityhandler "github.com/sohan284/social-media-go/biz/community/handler"
	communityrepo "github.com/sohan284/social-media-go/biz/community/data/repository"
	communityservice "github.com/sohan284/social-media-go/biz/community/service"
	interesthandler "github.com/sohan284/social-media-go/biz/interest/handler"
	interestrepo "github.com/sohan284/social-media-go/biz/interest/data/repository"
	interestservice "github.com/sohan284/social-media-go/biz/interest/service"
	markethandler "github.com/sohan284/social-media-go/biz/marketplace/handler"
	marketrepo "github.com/sohan284/social-media-go/biz/marketplace/data/repository"
	marketservice "github.com/sohan284/social-media-go/biz/marketplace/service"
	notifhandler "github.com/sohan284/social-media-go/biz/notification/handler"
	notifrepo "github.com/sohan284/social-media-go/biz/notification/data/repository"
	notifservice "github.com/sohan284/social-media-go/biz/notification/service"
	posthandler "github.com/sohan284/social-media-go/biz/post/handler"
	postrepo "github.com/sohan284/social-media-go/biz/post/data/repository"
	"github.com/sohan284/social-media-go/biz/post/moderation"
	postservice "github.com/sohan284/social-media-go/biz/post/service"

	"github.com/sohan284/social-media-go/internal/conf"
	"github.com/sohan284/social-media-go/internal/data"
	"github.com/sohan284/social-media-go/internal/event"
	"github.com/sohan284/social-media-go/internal/tasks"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

type Server struct {
	config *config.Config
	extras *conf.Extras
	logger *logger.Logger

	data     *data.Data
	bus      *event.Bus
	hub      *ws.Hub
	runnerFn func()

	chatService *chatservice.Service
	middleware  *middleware.Middleware

	accountHandler   *accounthandler.Handler
	interestHandler  *interesthandler.Handler
	postHandler      *posthandler.Handler
	notifHandler     *notifhandler.Handler
	communityHandler *communityhandler.Handler
	chatHandler      *chathandler.Handler
	wsHandler        *ws.Handler
	marketHandler    *markethandler.Handler

	engine *gin.Engine
}

func NewServer(cfg *config.Config, extras *conf.Extras, log *logger.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	d, err := data.New(cfg.Data.Database.Master.Driver, cfg.Data.Database.Master.Source, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	if extras.Redis.Addr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := d.ConnectRedis(ctx, &data.RedisOptions{
			Addr:     extras.Redis.Addr,
			Username: extras.Redis.Username,
			Password: extras.Redis.Password,
			DB:       extras.Redis.DB,
		}, log); err != nil {
			log.Warn(ctx, "Broker unavailable, continuing without it", "error", err)
		}
		cancel()
	}

	db := d.DB()

	userRepo, profileRepo, sessionRepo, err := accountrepo.NewRepositories(db)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize account repositories: %w", err)
	}
	categoryRepo, subCategoryRepo, err := interestrepo.NewRepositories(db)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize interest repositories: %w", err)
	}
	postRepo, followRepo, err := postrepo.NewRepositories(db)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize post repositories: %w", err)
	}
	notificationRepo, err := notifrepo.NewRepository(db)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize notification repository: %w", err)
	}
	communityRepo, err := communityrepo.NewRepository(db)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize community repository: %w", err)
	}
	chatRepo, err := chatrepo.NewRepository(db)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat repository: %w", err)
	}
	productRepo, planRepo, subRepo, paymentRepo, err := marketrepo.NewRepositories(db)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize marketplace repositories: %w", err)
	}

	bus := event.NewBus(1000, log)
	runner, runnerCleanup := tasks.NewRunner(4, 256, log)

	var sender email.Sender
	if extras.Mail.Host != "" {
		sender, err = email.NewSender(&email.SMTPConfig{
			SMTPHost: extras.Mail.Host,
			SMTPPort: extras.Mail.Port,
			Username: extras.Mail.Username,
			Password: extras.Mail.Password,
			From:     extras.Mail.From,
		})
		if err != nil {
			log.Warn(context.Background(), "Failed to create email sender", "error", err)
		}
	}

	accessTTL := defaultAccessTTL
	if cfg.Auth != nil && cfg.Auth.JWT != nil && cfg.Auth.JWT.Expire > 0 {
		accessTTL = time.Duration(cfg.Auth.JWT.Expire) * time.Second
	}

	accountService := accountservice.NewService(db, userRepo, profileRepo, sessionRepo,
		cfg.Auth.JWT.Secret, accessTTL, defaultRefreshTTL,
		sender, oauth.NewVerifier(), runner, log)

	mw := middleware.NewMiddleware(accountService.TokenManager(), log)

	interestService := interestservice.NewService(categoryRepo, subCategoryRepo, log)

	marketService := marketservice.NewService(productRepo, planRepo, subRepo, paymentRepo,
		postRepo, bus, log)

	checker := moderation.NewCheckerFromWords(extras.Moderation.Wordlist)
	postService := postservice.NewService(postRepo, followRepo, checker, marketService,
		bus, extras.Feed, log)

	notificationService := notifservice.NewService(notificationRepo, d.Redis(), log)
	notificationService.SubscribeTo(bus)

	communityService := communityservice.NewService(communityRepo, bus, log)

	hub := ws.NewHub(log)
	chatService := chatservice.NewService(chatRepo, hub, d.Redis(), log)

	wsHandler := ws.NewHandler(hub, func(token string) (string, bool) {
		claims, ok := mw.DecodeToken(token)
		if !ok {
			return "", false
		}
		userID := securityjwt.GetPayloadString(claims, "user_id")
		return userID, userID != ""
	}, log)

	return &Server{
		config:           cfg,
		extras:           extras,
		logger:           log,
		data:             d,
		bus:              bus,
		hub:              hub,
		runnerFn:         runnerCleanup,
		chatService:      chatService,
		middleware:       mw,
		accountHandler:   accounthandler.New(accountService),
		interestHandler:  interesthandler.New(interestService),
		postHandler:      posthandler.New(postService),
		notifHandler:     notifhandler.New(notificationService),
		communityHandler: communityhandler.New(communityService),
		chatHandler:      chathandler.New(chatService),
		wsHandler:        wsHandler,
		marketHandler:    markethandler.New(marketService),
	}, nil
}

// Start runs the background machinery and serves HTTP until ctx is
// cancelled, then shuts everything down in order.
func (s *Server) Start(ctx context.Context) error {
	s.bus.Start(ctx, 5)
	go s.hub.Run(ctx)
	s.chatService.StartBridge(ctx)

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.SetupRouter(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info(context.Background(), "Server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error(shutdownCtx, "HTTP shutdown failed", "error", err)
	}
	s.Cleanup(shutdownCtx)
	return nil
}

func (s *Server) Cleanup(ctx context.Context) {
	if err := s.bus.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "Failed to shut down event bus", "error", err)
	}
	s.runnerFn()
	if err := s.data.Close(); err != nil {
		s.logger.Error(ctx, "Failed to close data layer", "error", err)
	}
}

func (s *Server) SetupRouter() *gin.Engine {
	if s.config.Environment != "" {
		gin.SetMode(s.config.Environment)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.loggerMiddleware())

	r.GET("/health", s.handleHealth)
	r.Static("/static", s.extras.Static.Root)

	// Provider callbacks carry no user token.
	r.POST("/webhooks/payments", s.marketHandler.HandlePaymentWebhook)

	auth := r.Group("/auth")
	{
		auth.POST("/send-otp", s.accountHandler.HandleSendOTP)
		auth.POST("/verify-otp", s.accountHandler.HandleVerifyOTP)
		auth.POST("/set-credentials", s.accountHandler.HandleSetCredentials)
		auth.POST("/login", s.accountHandler.HandleLogin)
		auth.POST("/refresh", s.accountHandler.HandleRefresh)
		auth.POST("/logout", s.accountHandler.HandleLogout)
		auth.POST("/password-reset/send-otp", s.accountHandler.HandleSendPasswordResetOTP)
		auth.POST("/password-reset/verify-otp", s.accountHandler.HandleVerifyPasswordResetOTP)
		auth.POST("/password-reset/reset", s.accountHandler.HandleResetPassword)
		auth.POST("/oauth/register", s.accountHandler.HandleOAuthRegister)
		auth.POST("/oauth/login", s.accountHandler.HandleOAuthLogin)
	}

	// Token rides in the query string on websocket upgrades.
	r.GET("/ws/chat", s.wsHandler.HandleConnection)

	// Public browsing; a token, when present, still personalizes visibility.
	public := r.Group("/api/v1")
	public.Use(s.middleware.OptionalAuth())
	{
		public.GET("/communities/by-slug/:slug", s.communityHandler.HandleGetBySlug)
		public.GET("/users/:user_id/posts", s.postHandler.HandleListUserPosts)
	}

	api := r.Group("/api/v1")
	api.Use(s.middleware.AuthMiddleware())
	{
		api.GET("/me", s.accountHandler.HandleMe)
		api.GET("/profiles", s.accountHandler.HandleListProfiles)
		api.GET("/profiles/:profile_id", s.accountHandler.HandleGetProfile)
		api.PUT("/profiles/:profile_id", s.accountHandler.HandleUpdateProfile)

		api.GET("/interests", s.interestHandler.HandleListCategories)
		api.GET("/interests/:category_id", s.interestHandler.HandleGetCategory)

		api.POST("/posts", s.postHandler.HandleCreate)
		api.GET("/posts/:post_id", s.postHandler.HandleGet)
		api.PUT("/posts/:post_id", s.postHandler.HandleUpdate)
		api.DELETE("/posts/:post_id", s.postHandler.HandleDelete)
		api.POST("/posts/:post_id/like", s.postHandler.HandleToggleLike)
		api.POST("/posts/:post_id/share", s.postHandler.HandleShare)
		api.GET("/posts/:post_id/comments", s.postHandler.HandleListComments)
		api.POST("/posts/:post_id/comments", s.postHandler.HandleAddComment)
		api.DELETE("/comments/:comment_id", s.postHandler.HandleDeleteComment)
		api.GET("/feed", s.postHandler.HandleNewsFeed)

		api.POST("/users/:user_id/follow", s.postHandler.HandleToggleFollow)
		api.GET("/users/:user_id/followers", s.postHandler.HandleListFollowers)
		api.GET("/users/:user_id/following", s.postHandler.HandleListFollowing)
		api.GET("/users/:user_id/stats", s.postHandler.HandleUserStats)

		api.GET("/notifications", s.notifHandler.HandleList)
		api.GET("/notifications/unread-count", s.notifHandler.HandleUnreadCount)
		api.POST("/notifications/:notification_id/read", s.notifHandler.HandleMarkRead)
		api.POST("/notifications/read-all", s.notifHandler.HandleMarkAllRead)
		api.DELETE("/notifications/:notification_id", s.notifHandler.HandleDelete)

		api.POST("/communities", s.communityHandler.HandleCreate)
		api.GET("/communities", s.communityHandler.HandleList)
		api.GET("/communities/mine", s.communityHandler.HandleListMine)
		api.GET("/communities/popular", s.communityHandler.HandleListPopular)
		api.GET("/communities/:community_id", s.communityHandler.HandleGet)
		api.PUT("/communities/:community_id", s.communityHandler.HandleUpdate)
		api.DELETE("/communities/:community_id", s.communityHandler.HandleDelete)
		api.POST("/communities/:community_id/join", s.communityHandler.HandleJoin)
		api.POST("/communities/:community_id/leave", s.communityHandler.HandleLeave)
		api.GET("/communities/:community_id/members", s.communityHandler.HandleListMembers)
		api.PUT("/communities/:community_id/members/:user_id/role", s.communityHandler.HandleChangeMemberRole)
		api.DELETE("/communities/:community_id/members/:user_id", s.communityHandler.HandleRemoveMember)
		api.GET("/communities/:community_id/join-requests", s.communityHandler.HandleListJoinRequests)
		api.POST("/join-requests/:request_id/approve", s.communityHandler.HandleApproveRequest)
		api.POST("/join-requests/:request_id/reject", s.communityHandler.HandleRejectRequest)

		api.POST("/chat/rooms", s.chatHandler.HandleCreateRoom)
		api.GET("/chat/rooms", s.chatHandler.HandleListRooms)
		api.GET("/chat/rooms/:room_id", s.chatHandler.HandleGetRoom)
		api.GET("/chat/rooms/:room_id/messages", s.chatHandler.HandleListMessages)
		api.POST("/chat/rooms/:room_id/messages", s.chatHandler.HandleSendMessage)

		api.GET("/products", s.marketHandler.HandleListProducts)
		api.POST("/products", s.marketHandler.HandleCreateProduct)
		api.GET("/products/mine", s.marketHandler.HandleListMyProducts)
		api.GET("/products/:product_id", s.marketHandler.HandleGetProduct)
		api.PUT("/products/:product_id", s.marketHandler.HandleUpdateProduct)
		api.DELETE("/products/:product_id", s.marketHandler.HandleDeleteProduct)
		api.GET("/plans", s.marketHandler.HandleListPlans)
		api.POST("/subscriptions", s.marketHandler.HandleSubscribe)
		api.DELETE("/subscriptions/:subscription_id", s.marketHandler.HandleCancelSubscription)
		api.GET("/payments", s.marketHandler.HandleListPayments)
		api.GET("/quota", s.marketHandler.HandleQuotaStatus)
	}

	moderator := r.Group("/api/v1/moderation")
	moderator.Use(s.middleware.AuthMiddleware())
	moderator.Use(s.middleware.RequireModerator())
	{
		moderator.GET("/posts", s.postHandler.HandleModerationQueue)
		moderator.POST("/posts/:post_id/approve", s.postHandler.HandleApprove)
		moderator.POST("/posts/:post_id/reject", s.postHandler.HandleReject)
	}

	admin := r.Group("/api/v1/admin")
	admin.Use(s.middleware.AuthMiddleware())
	admin.Use(s.middleware.RequireAdmin())
	{
		admin.GET("/users", s.accountHandler.HandleListUsers)
		admin.DELETE("/users/:user_id", s.accountHandler.HandleDeleteUser)

		admin.POST("/interests", s.interestHandler.HandleCreateCategory)
		admin.PUT("/interests/:category_id", s.interestHandler.HandleUpdateCategory)
		admin.DELETE("/interests/:category_id", s.interestHandler.HandleDeleteCategory)
		admin.POST("/subcategories", s.interestHandler.HandleCreateSubCategory)
		admin.PUT("/subcategories/:subcategory_id", s.interestHandler.HandleUpdateSubCategory)
		admin.DELETE("/subcategories/:subcategory_id", s.interestHandler.HandleDeleteSubCategory)

		admin.POST("/plans", s.marketHandler.HandleCreatePlan)
		admin.DELETE("/plans/:plan_id", s.marketHandler.HandleDeactivatePlan)

		admin.GET("/realtime/stats", s.wsHandler.HandleStats)
	}

	s.engine = r
	return r
}

func (s *Server) handleHealth(c *gin.Context) {
	status := map[string]string{"status": "healthy", "broker": "up", "database": "up"}
	if err := s.data.PingBroker(c.Request.Context()); err != nil {
		status["broker"] = "down"
	}
	if err := s.data.DB().PingContext(c.Request.Context()); err != nil {
		status["database"] = "down"
	}
	resp.Success(c.Writer, status)
}

func (s *Server) loggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()

		s.logger.Info(c.Request.Context(), "HTTP request",
			"method", method,
			"path", path,
			"status", status,
			"duration", duration.String(),
		)
	}
}
