package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	authhttp "github.com/pixfeed/pixfeed/backend/internal/auth/http"
	authservice "github.com/pixfeed/pixfeed/backend/internal/auth/service"
	"github.com/pixfeed/pixfeed/backend/internal/common/clock"
	"github.com/pixfeed/pixfeed/backend/internal/common/config"
	"github.com/pixfeed/pixfeed/backend/internal/common/constants"
	commoncrypto "github.com/pixfeed/pixfeed/backend/internal/common/crypto"
	"github.com/pixfeed/pixfeed/backend/internal/common/db"
	commonhttp "github.com/pixfeed/pixfeed/backend/internal/common/http"
	"github.com/pixfeed/pixfeed/backend/internal/common/jwtverify"
	"github.com/pixfeed/pixfeed/backend/internal/common/logger"
	srv "github.com/pixfeed/pixfeed/backend/internal/common/server"
	feedservice "github.com/pixfeed/pixfeed/backend/internal/feed/service"
	graphservice "github.com/pixfeed/pixfeed/backend/internal/graph/service"
	posthttp "github.com/pixfeed/pixfeed/backend/internal/post/http"
	postrepo "github.com/pixfeed/pixfeed/backend/internal/post/repository"
	postservice "github.com/pixfeed/pixfeed/backend/internal/post/service"
	"github.com/pixfeed/pixfeed/backend/internal/storage"
	userhttp "github.com/pixfeed/pixfeed/backend/internal/user/http"
	userrepo "github.com/pixfeed/pixfeed/backend/internal/user/repository"
	userservice "github.com/pixfeed/pixfeed/backend/internal/user/service"
)

func main() {
	log, err := logger.New(os.Getenv("LOG_DIR"), "api", os.Getenv("LOG_LEVEL"))
	if err != nil {
		os.Stderr.WriteString(fmt.Sprintf("failed to initialize logger: %v\n", err))
		os.Exit(1)
	}

	cfg, err := config.LoadAPIConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	pool := db.NewPool(log, cfg.DatabaseURL)
	defer pool.Close()
	db.StartPoolMetrics(pool, constants.DBPoolMetricsInterval)

	store, err := storage.NewS3Storage(context.Background(), storage.S3Config{
		Bucket:   cfg.S3Bucket,
		Region:   cfg.S3Region,
		Endpoint: cfg.S3Endpoint,
	}, log)
	if err != nil {
		log.Fatalf("failed to initialize object storage: %v", err)
	}

	users := userrepo.NewPgRepository(pool)
	posts := postrepo.NewPgRepository(pool)

	hasher := &commoncrypto.BcryptHasher{}
	idGenerator := &commoncrypto.UUIDGenerator{}
	clk := clock.NewRealClock()

	auth := authservice.NewAuthService(
		users,
		hasher,
		idGenerator,
		clk,
		[]byte(cfg.JWTSecret),
		cfg.AccessTokenTTL,
		log,
	)
	graph := graphservice.NewGraphService(users, log)
	feed := feedservice.NewFeedService(users, posts, log)
	userSvc := userservice.NewUserService(users, store, log)
	postSvc := postservice.NewPostService(posts, feed, store, idGenerator, clk, log)

	requireAuth := jwtverify.Middleware(cfg.JWTSecret, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", commonhttp.HealthHandler(log))
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/api/auth/", authhttp.NewHandler(auth, cfg.RequestTimeout, log))

	userHandler := requireAuth(userhttp.NewHandler(userSvc, graph, feed, cfg.RequestTimeout, log))
	mux.Handle("/api/users", userHandler)
	mux.Handle("/api/users/", userHandler)

	postHandler := requireAuth(posthttp.NewHandler(postSvc, feed, cfg.RequestTimeout, cfg.UploadTimeout, log))
	mux.Handle("/api/posts", postHandler)
	mux.Handle("/api/posts/", postHandler)

	rateLimiter := commonhttp.NewStrictRateLimiter()
	baseHandler := commonhttp.BuildBaseHandler(log, mux)

	rateLimitMiddleware := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			if path == "/health" || path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}
			rateLimiter.MiddlewareForRequest(r.Method, path)(next).ServeHTTP(w, r)
		})
	}

	finalHandler := rateLimitMiddleware(baseHandler)

	serverConfig := srv.DefaultServerConfig(cfg.HTTPPort)
	server := srv.NewServer(serverConfig, finalHandler)

	srv.StartWithGracefulShutdownAndHooks(server, log, "api", nil)
}
