package main

import (
	"context"
	"database/sql"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/openreach/openreach/pkg/audit"
	"github.com/openreach/openreach/pkg/authz"
	"github.com/openreach/openreach/pkg/config"
	"github.com/openreach/openreach/pkg/elevation"
	"github.com/openreach/openreach/pkg/middleware"
	"github.com/openreach/openreach/pkg/observability"
	"github.com/openreach/openreach/pkg/storage"
)

func main() {
	logLevel := flag.String("log-level", "info", "Process log level (debug, info, warn, error)")
	auditSchedule := flag.String("audit-sweep-schedule", "", "Cron expression for the audit retention sweep (default daily at 03:00)")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	if lvl, err := logrus.ParseLevel(*logLevel); err == nil {
		log.SetLevel(lvl)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to reach database: %v", err)
	}
	log.Info("Database connection established")

	redisClient, err := storage.NewRedisClient(cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer redisClient.Close()
	log.Info("Redis connection established")

	appLogger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	repo := storage.NewSQLRepository(db)

	auditLogger, err := audit.NewDBLogger(db)
	if err != nil {
		log.Fatalf("Failed to initialize audit logger: %v", err)
	}
	// Synchronous sink mode: the elevation protocol already detaches audit
	// writes from the request path, and it needs sink errors returned to it
	// for the audit failure metrics.
	multiAudit := audit.NewMultiLogger(auditLogger)
	multiAudit.SetAsync(false)
	defer multiAudit.Close()

	sweeper, err := audit.NewRetentionSweeper(auditLogger, audit.DefaultRetentionPolicy(), *auditSchedule, appLogger)
	if err != nil {
		log.Fatalf("Failed to build audit retention sweeper: %v", err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	protocol := elevation.NewProtocol(
		elevation.OptionsFromConfig(cfg.SuperAdmin),
		redisClient,
		multiAudit,
		appLogger,
		metrics,
	)

	roles := authz.NewRoleEvaluator(repo, metrics)
	perms := authz.NewPermissionEvaluator(repo)
	tenant := authz.NewTenantGuard(repo)
	guards := middleware.NewGuards(roles, perms, tenant, repo)

	identity := middleware.NewIdentityMiddleware(repo)
	elevate := middleware.NewElevationMiddleware(protocol)

	router := mux.NewRouter()
	router.Use(middleware.RequestIDMiddleware)
	router.Use(identity.Handler)
	router.Use(elevate.Handler)

	if cfg.Observability.MetricsEnabled {
		router.Handle("/metrics", observability.Handler(registry)).Methods(http.MethodGet)
	}
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := redisClient.Ping(r.Context()); err != nil {
			http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	registerCaseRoutes(router, guards)
	registerOrgRoutes(router, guards)

	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Infof("Starting authorization server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("Graceful shutdown failed: %v", err)
	}
	multiAudit.Wait()
}

// registerCaseRoutes wires the case endpoints behind their guards. Handlers
// serve minimal JSON; the interesting work happens in the middleware chain.
func registerCaseRoutes(router *mux.Router, guards *middleware.Guards) {
	cases := router.PathPrefix("/api/v1/cases").Subrouter()

	view := cases.Path("/{case_id:[0-9]+}").Subrouter()
	view.Use(guards.RequireCaseView())
	view.HandleFunc("", okHandler).Methods(http.MethodGet)

	edit := cases.Path("/{case_id:[0-9]+}/edit").Subrouter()
	edit.Use(guards.RequireCaseEdit())
	edit.HandleFunc("", okHandler).Methods(http.MethodPost)

	assign := cases.Path("/{case_id:[0-9]+}/assign").Subrouter()
	assign.Use(guards.RequireCaseAssign())
	assign.HandleFunc("", okHandler).Methods(http.MethodPost)

	closeRoute := cases.Path("/{case_id:[0-9]+}/close").Subrouter()
	closeRoute.Use(guards.RequireCaseClose())
	closeRoute.HandleFunc("", okHandler).Methods(http.MethodPost)

	teams := router.PathPrefix("/api/v1/teams").Subrouter()
	manage := teams.Path("/{team_id:[0-9]+}").Subrouter()
	manage.Use(guards.RequireTeamManage())
	manage.HandleFunc("", okHandler).Methods(http.MethodPut, http.MethodDelete)
}

func registerOrgRoutes(router *mux.Router, guards *middleware.Guards) {
	orgs := router.PathPrefix("/api/v1/organizations").Subrouter()

	stats := orgs.Path("/{org_id:[0-9]+}/statistics").Subrouter()
	stats.Use(guards.RequireStatisticsView())
	stats.HandleFunc("", okHandler).Methods(http.MethodGet)

	subUsers := orgs.Path("/{org_id:[0-9]+}/users").Subrouter()
	subUsers.Use(guards.RequireSubUserCreate())
	subUsers.HandleFunc("", okHandler).Methods(http.MethodPost)

	servicePoints := orgs.Path("/{org_id:[0-9]+}/service-points").Subrouter()
	servicePoints.Use(guards.RequireServicePointManage())
	servicePoints.HandleFunc("", okHandler).Methods(http.MethodPost, http.MethodPut)
}

func okHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
