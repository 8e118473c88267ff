package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	kafkapub "cygnus-loan-engine/internal/adapter/event/kafka"
	httpadp "cygnus-loan-engine/internal/adapter/http"
	"cygnus-loan-engine/internal/adapter/middleware"
	"cygnus-loan-engine/internal/domain/event"
	"cygnus-loan-engine/internal/infrastructure/cache"
	"cygnus-loan-engine/internal/infrastructure/metrics"
	loanuc "cygnus-loan-engine/internal/usecase/loan"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Bool("migrate", false, "Create or update the schema before serving")
	serveCmd.Flags().Duration("scan-interval", 0, "Run the advisory overdue scan at this interval (0 disables)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required to verify principal tokens")
	}
	doMigrate, _ := cmd.Flags().GetBool("migrate")
	scanEvery, _ := cmd.Flags().GetDuration("scan-interval")

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.close() }()
	if doMigrate {
		if err := st.migrate(); err != nil {
			return err
		}
	}

	m := metrics.NewLoans("loan_engine")

	var pub event.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		p := kafkapub.NewPublisher(kafkapub.NewWriter(kafkapub.Config{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
		}), log)
		defer func() { _ = p.Close() }()
		pub = p
		log.Info("publishing loan events", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	loans := newLoanUsecase(st, m, pub)
	h := httpadp.NewHandler(httpadp.NewLoanHandler(loans), httpadp.NewAccountHandler(newAccountUsecase(st)))

	mutating := []echo.MiddlewareFunc{middleware.PrincipalTokens(middleware.TokenConfig{
		Secret:    []byte(cfg.JWTSecret),
		Issuer:    cfg.JWTIssuer,
		ClockSkew: 30 * time.Second,
	})}
	if cfg.RedisAddr != "" {
		rdb, err := cache.OpenRedis(cmd.Context(), cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return err
		}
		defer func() { _ = rdb.Close() }()
		mutating = append(mutating, middleware.IdempotencyMiddleware(rdb, time.Duration(cfg.IdempTTLSecs)*time.Second))
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = httpadp.NewValidator()
	e.Use(echomw.Logger(), echomw.Recover())
	if cfg.RateLimitRPS > 0 {
		e.Use(echomw.RateLimiter(echomw.NewRateLimiterMemoryStore(rate.Limit(cfg.RateLimitRPS))))
	}
	h.Register(e, m.Handler(), mutating...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if scanEvery > 0 {
		go scanLoop(ctx, loans, scanEvery)
	}

	addr := ":" + cfg.AppPort
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", addr, "store", cfg.StoreDriver)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("shutting down")
	return e.Shutdown(shutdownCtx)
}

// scanLoop only reports overdue loans; liquidation stays with the lender.
func scanLoop(ctx context.Context, loans *loanuc.Usecase, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := loans.ScanOverdue(ctx); err != nil {
				log.Error("overdue scan failed", "err", err)
			}
		}
	}
}
