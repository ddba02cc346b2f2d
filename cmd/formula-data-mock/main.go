// Command formula-data-mock serves the formula data provider endpoints with
// fixed values for local development.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/We-are-Humans-Corp/recommendation-service/internal/formulamock"
	"github.com/We-are-Humans-Corp/recommendation-service/pkg/logger"
)

func main() {
	addr := flag.String("addr", ":5002", "listen address")
	constant := flag.Float64("constant", 1.0, "value of every weight, value and decay")
	iterations := flag.Int("iterations", 2, "value of every iteration count")
	format := flag.String("log-format", logger.FormatConsole, "console or json")
	flag.Parse()

	if err := logger.Init(logger.WithFormat(*format)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.Named("formula-data-mock")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mock := formulamock.New(
		formulamock.WithConstant(*constant),
		formulamock.WithIterations(*iterations),
		formulamock.WithLogger(log),
	)
	srv := &http.Server{
		Addr:              *addr,
		Handler:           mock.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info(ctx, "serving formula data", logger.String("addr", *addr),
		logger.Float64("constant", *constant), logger.Int("iterations", *iterations))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error(ctx, "server failed", logger.Error(err))
		os.Exit(1)
	}
}
