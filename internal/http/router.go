package http

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/possibilitysolutions/useradmin/internal/auth"
	"github.com/possibilitysolutions/useradmin/internal/config"
	"github.com/possibilitysolutions/useradmin/internal/domain/user"
	"github.com/possibilitysolutions/useradmin/internal/http/handlers"
	"github.com/possibilitysolutions/useradmin/internal/http/middlewares"
	"github.com/possibilitysolutions/useradmin/internal/observability"
	"github.com/possibilitysolutions/useradmin/internal/tokens"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const maxRequestBody = 1 << 20 // 1 MiB, plenty for this API

// UsersStore is everything the routes need from the credential store;
// satisfied by both the postgres and the in-memory repos.
type UsersStore interface {
	Create(ctx context.Context, name, email, passwordHash, role string) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	ListNonAdmin(ctx context.Context) ([]user.User, error)
	Update(ctx context.Context, id string, req user.UpdateRequest) (user.User, error)
	SetStatus(ctx context.Context, id string, active bool) (user.User, error)
	Delete(ctx context.Context, id string) error
}

type RouterOptions struct {
	Users  UsersStore
	Tokens tokens.Denylist
	JWT    *auth.Manager
	Prom   *observability.Prom
	// Metrics is the /metrics handler; nil disables the endpoint.
	Metrics   http.Handler
	Cfg       config.Config
	DBPing    func(context.Context) error
	RedisPing func(context.Context) error
}

func NewRouter(opts RouterOptions) *gin.Engine {
	if os.Getenv("APP_ENV") != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("useradmin"))
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(opts.Cfg.CORSAllowedOrigins))
	r.Use(middlewares.RequireJSON())
	r.Use(middlewares.MaxBodyBytes(maxRequestBody))

	if opts.Prom != nil {
		r.Use(opts.Prom.GinHandleMiddleware())
	}

	// health + metrics

	health := handlers.NewHealthHandler(opts.DBPing, opts.RedisPing)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)

	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	// public auth endpoints, rate limited by client IP

	authHandler := handlers.NewAuthHandler(opts.Users, opts.JWT, opts.Tokens, opts.Prom)

	authLimiter := middlewares.NewRateLimiter(
		opts.Cfg.AuthRateLimit,
		time.Duration(opts.Cfg.AuthRateWindowSecond)*time.Second,
	)
	limited := authLimiter.RateLimiterMiddleware(middlewares.KeyByIP)

	r.POST("/register", limited, authHandler.Register)
	r.POST("/login", limited, authHandler.Login)
	r.POST("/admin/login", limited, authHandler.AdminLogin)

	// token-protected endpoints

	authMw := middlewares.NewAuthMiddleware(opts.JWT, opts.Tokens)

	r.GET("/me", authMw.RequireAuth(), authHandler.Me)
	r.POST("/logout", authMw.RequireAuth(), authHandler.Logout)

	// admin user management

	adminUsersHandler := handlers.NewAdminUsersHandler(opts.Users)

	admin := r.Group("/admin/users", authMw.RequireAuth(), authMw.RequireRole(user.RoleAdmin))

	admin.GET("", adminUsersHandler.List)
	admin.GET("/:id", adminUsersHandler.Get)
	admin.PUT("/:id", adminUsersHandler.Update)
	admin.POST("/:id/block", adminUsersHandler.Block)
	admin.POST("/:id/unblock", adminUsersHandler.Unblock)
	admin.DELETE("/:id", adminUsersHandler.Delete)

	return r
}
