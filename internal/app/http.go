package app

import (
	"context"
	"net/http"

	"xfoli-web/internal/api"
	"xfoli-web/internal/auth/handler"
	"xfoli-web/internal/auth/provider"
	"xfoli-web/internal/auth/provider/gotrue"
	"xfoli-web/internal/auth/provider/oidc"
	"xfoli-web/internal/auth/resolver"
	"xfoli-web/internal/config"
	"xfoli-web/internal/dashboard"
	"xfoli-web/internal/logger"
	"xfoli-web/internal/middleware"
	"xfoli-web/internal/session"

	"github.com/gin-gonic/gin"
)

func setupHTTP(ctx context.Context, cfg *config.Config) (*gin.Engine, func() error, error) {
	infra, err := setupInfra(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	// ----------------------------
	// Dependencies
	// ----------------------------

	hosted, err := gotrue.New(cfg.IdentityProviderURL, cfg.IdentityProviderKey)
	if err != nil {
		_ = infra.Close()
		return nil, nil, err
	}

	providers := []provider.IdentityProvider{hosted}
	if cfg.OIDCIssuer != "" {
		direct, err := oidc.New(ctx, oidc.Config{
			Name:         cfg.OIDCName,
			Issuer:       cfg.OIDCIssuer,
			ClientID:     cfg.OIDCClientID,
			ClientSecret: cfg.OIDCClientSecret,
			RedirectURL:  cfg.OIDCRedirectURL,
		})
		if err != nil {
			_ = infra.Close()
			return nil, nil, err
		}
		providers = append(providers, direct)
	}
	registry := provider.NewRegistry(providers...)

	authHandler := handler.NewHandler(registry, infra.Sessions, handler.Options{
		OAuthProviders:    cfg.OAuthProviderList(),
		RedirectAllowlist: cfg.RedirectHosts(),
		Env:               cfg.Env,
		SessionTTL:        cfg.SessionLifetime(),
	})

	authMiddleware := middleware.NewAuthMiddleware(
		infra.Sessions,
		session.CookieOptions{Secure: !cfg.IsLocal()},
		hosted,
	)

	backend := api.New(cfg.APIBaseURL, api.WithTimeout(cfg.APIRequestTimeout()))
	dashboardHandler := dashboard.NewHandler(backend)

	// ----------------------------
	// Router
	// ----------------------------

	if !cfg.IsLocal() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())

	// ----------------------------
	// Public Routes
	// ----------------------------

	authHandler.RegisterRoutes(router)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, resolver.SignInPath)
	})

	// ----------------------------
	// Protected API Routes
	// ----------------------------

	apiGroup := router.Group("/api")
	apiGroup.Use(middleware.GinRequireAuth(authMiddleware))
	dashboardHandler.RegisterRoutes(apiGroup)

	for _, route := range router.Routes() {
		logger.Debug("route registered", map[string]any{
			"method": route.Method,
			"path":   route.Path,
		})
	}
	logger.Info("identity providers ready", map[string]any{
		"providers": registry.Names(),
	})

	return router, infra.Close, nil
}
