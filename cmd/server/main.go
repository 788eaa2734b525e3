package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"vendarapida/backend/internal/cache"
	"vendarapida/backend/internal/config"
	"vendarapida/backend/internal/httpapi"
	"vendarapida/backend/internal/service"
	"vendarapida/backend/internal/store"
	"vendarapida/backend/internal/store/memory"
	pgstore "vendarapida/backend/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		} else {
			repo = pg
			closers = append(closers, pg.Close)
			log.Println("repository: postgres")
		}
	} else {
		repo = memory.NewSeeded()
		log.Println("repository: in-memory")
	}

	metricsCache := cache.MetricsCache(cache.NoopMetricsCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisMetricsCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), using noop cache", err)
		} else {
			metricsCache = redisCache
			closers = append(closers, redisCache.Close)
			log.Println("cache: redis")
		}
	} else {
		log.Println("cache: noop")
	}

	svc := service.New(repo, metricsCache, time.Duration(cfg.MetricsTTLSeconds)*time.Second)
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, cfg.OperatorEmail, cfg.OperatorPassword)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("sales backend listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if !strings.Contains(cfg.OperatorEmail, "@") {
		return fmt.Errorf("OPERATOR_EMAIL must be set to a valid email address")
	}
	if cfg.OperatorPassword == "" {
		return fmt.Errorf("OPERATOR_PASSWORD must be set (plain password or bcrypt hash)")
	}
	if err := validatePasswordStrength(cfg.OperatorPassword); err != nil {
		return fmt.Errorf("OPERATOR_PASSWORD is too weak: %w", err)
	}
	return nil
}

// validatePasswordStrength rejects short, all-same-character, and known-weak
// operator passwords. Bcrypt hashes pass through untouched since the plain
// value is not recoverable from them.
func validatePasswordStrength(password string) error {
	if strings.HasPrefix(password, "$2a$") || strings.HasPrefix(password, "$2b$") || strings.HasPrefix(password, "$2y$") {
		return nil
	}
	if len(password) < 8 {
		return fmt.Errorf("must be at least 8 characters")
	}

	known := map[string]bool{
		"12345678": true, "123456789": true, "password": true, "senha123": true,
		"qwertyui": true, "11111111": true, "00000000": true, "abcd1234": true,
	}
	if known[strings.ToLower(password)] {
		return fmt.Errorf("common password not allowed")
	}

	allSame := true
	for i := 1; i < len(password); i++ {
		if password[i] != password[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return fmt.Errorf("all-same-character password not allowed")
	}

	return nil
}
