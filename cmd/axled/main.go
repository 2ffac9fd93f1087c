package main

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/platinummonkey/axle/pkg/auth"
	"github.com/platinummonkey/axle/pkg/config"
	"github.com/platinummonkey/axle/pkg/observability"
	"github.com/platinummonkey/axle/pkg/registry"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	var metrics *observability.Metrics
	promRegistry := prometheus.NewRegistry()
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(promRegistry)
	}

	roleService, err := registry.NewRoleService(registry.RoleServiceConfig{
		Name:             cfg.Registry.Name + "-roles",
		DataDir:          cfg.Registry.DataDir,
		FileName:         cfg.Registry.RolesFile,
		ValidateSchema:   cfg.Registry.ValidateSchema,
		StrictReferences: cfg.Registry.StrictReferences,
		AdminRole:        cfg.Registry.AdminRole,
		GroupAdminRole:   cfg.Registry.GroupAdminRole,
	}, logger, metrics)
	if err != nil {
		log.Fatalf("Failed to initialize role registry: %v", err)
	}

	userService, err := registry.NewUserGroupService(registry.UserGroupServiceConfig{
		Name:                cfg.Registry.Name + "-users",
		DataDir:             cfg.Registry.DataDir,
		FileName:            cfg.Registry.UsersFile,
		ValidateSchema:      cfg.Registry.ValidateSchema,
		StrictReferences:    cfg.Registry.StrictReferences,
		PasswordEncoderName: cfg.Security.PasswordEncoder,
		PasswordValidator:   cfg.Security.Policy.Validate,
	}, logger, metrics)
	if err != nil {
		log.Fatalf("Failed to initialize user registry: %v", err)
	}

	watcher, err := registry.NewWatcher(logger, cfg.Registry.CheckInterval)
	if err != nil {
		log.Fatalf("Failed to initialize change watcher: %v", err)
	}
	if err := watcher.Watch(roleService.Backing(), roleService.Load); err != nil {
		log.Fatalf("Failed to watch role registry: %v", err)
	}
	if err := watcher.Watch(userService.Backing(), userService.Load); err != nil {
		log.Fatalf("Failed to watch user registry: %v", err)
	}
	watcher.Start()

	encoder, err := auth.NewEncoder(cfg.Security.PasswordEncoder, metrics)
	if err != nil {
		log.Fatalf("Failed to initialize password encoder: %v", err)
	}
	guard := auth.NewGuard(cfg.Security.Guard, logger, metrics)
	authenticator := auth.NewAuthenticator(userService, encoder, guard, logger, metrics)
	calculator := registry.NewRoleCalculator(roleService, userService)

	srv := newServer(serverDeps{
		logger:        logger,
		roles:         roleService,
		users:         userService,
		calculator:    calculator,
		authenticator: authenticator,
	})
	if cfg.Observability.MetricsEnabled {
		srv.router.Handle("/metrics", observability.Handler(promRegistry))
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      srv.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(watcher.Stop)

	go func() {
		logger.WithField("addr", httpServer.Addr).Info("axled listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("http server failed")
			os.Exit(1)
		}
	}()

	if err := shutdown.WaitForShutdown(); err != nil {
		os.Exit(1)
	}
}
