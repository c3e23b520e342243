package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/smartbillpro/billing_backend/config"
	"github.com/smartbillpro/billing_backend/middlewares"
	"github.com/smartbillpro/billing_backend/models"
	"github.com/smartbillpro/billing_backend/storage"
)

const defaultPort = "8080"

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// initApp picks the storage backend and restores the persisted state.
// Recoverable load errors (malformed stored data) are logged; the app comes
// up on seed/default state.
func initApp(ctx context.Context) *billingApp {
	logger := config.GetLogger()

	var kv storage.KVStore
	if os.Getenv("REDIS_ADDRESS") != "" {
		config.ConnectRedisWithRetry()
		kv = storage.NewRedisStore(config.GetRedisDB())
	} else {
		kv = storage.NewMemoryStore()
	}

	persister := models.NewPersister(kv, logger)
	catalog := models.NewCatalogStore(persister, logger)
	if err := catalog.Load(ctx); err != nil {
		config.LogWarn(logger, "main", "initApp", "catalog restored from seed set", nil, err)
	}
	cart := models.NewCartLedger(catalog, persister, logger)
	if err := cart.Load(ctx); err != nil {
		config.LogWarn(logger, "main", "initApp", "billing state reset to defaults", nil, err)
	}

	return &billingApp{catalog: catalog, cart: cart, logger: logger}
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server first; app endpoints return 503 until the
	// storage backend is connected and state is restored.
	var app atomic.Pointer[billingApp]

	r := gin.New()
	r.Use(middlewares.CorrelationMiddleware())
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if app.Load() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("Origin", "Content-Type", "x-correlation-id")
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition")
	r.Use(cors.New(corsConfig))
	r.Use(gin.Recovery())

	route := func(handler func(*billingApp, *gin.Context)) gin.HandlerFunc {
		return func(c *gin.Context) { handler(app.Load(), c) }
	}

	r.GET("/catalog", route((*billingApp).getCatalog))
	r.POST("/catalog", route((*billingApp).addCatalogItem))
	r.PUT("/catalog", route((*billingApp).replaceCatalog))
	r.PUT("/catalog/:id", route((*billingApp).updateCatalogItem))
	r.DELETE("/catalog/:id", route((*billingApp).removeCatalogItem))

	r.GET("/cart", route((*billingApp).getCart))
	r.POST("/cart/items", route((*billingApp).addCartItem))
	r.PUT("/cart/items/:index", route((*billingApp).editCartItem))
	r.DELETE("/cart/items/:index", route((*billingApp).removeCartItem))
	r.POST("/cart/clear", route((*billingApp).clearCart))
	r.PUT("/cart/rates", route((*billingApp).setRates))

	r.GET("/totals", route((*billingApp).getTotals))
	r.GET("/invoice/export", route((*billingApp).exportInvoice))

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	go func() {
		app.Store(initApp(sigCtx))
		logger.Info("billing state restored; serving on port " + port)
	}()

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server error: " + err.Error())
		}
	}()

	<-sigCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		config.LogError(logger, "main", "main", "graceful shutdown failed", nil, err)
	}
}
