package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	errors "github.com/Laisky/errors/v2"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/suPer8Hu/ai-studio/internal/db"
	"github.com/suPer8Hu/ai-studio/internal/httpapi"
	"github.com/suPer8Hu/ai-studio/internal/httpapi/handlers"
	"github.com/suPer8Hu/ai-studio/internal/log"
	"github.com/suPer8Hu/ai-studio/internal/store/rabbitmq"
	"go.uber.org/zap"
)

var (
	serveMigrate bool
	serveNoQueue bool
)

var serveCMD = &cobra.Command{
	Use:   "serve",
	Short: "run the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := initialize()
		if err != nil {
			return err
		}
		if cfg.LogLevel != "debug" {
			gin.SetMode(gin.ReleaseMode)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		if serveMigrate {
			if err := db.Migrate(a.db); err != nil {
				return err
			}
		}

		if !serveNoQueue {
			pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
			if err != nil {
				log.L().Warn("rabbitmq unavailable, queued chat disabled", zap.Error(err))
			} else {
				defer pub.Close()
				a.chat.SetPublisher(pub)
			}
		}

		h := handlers.NewHandler(a.chat, a.projects, a.keys, a.factory, a.github)
		srv := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           httpapi.NewRouter(cfg, h),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.L().Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				return errors.Wrap(err, "http server")
			}
		case <-ctx.Done():
		}

		log.L().Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.L().Warn("http shutdown", zap.Error(err))
		}
		// detached assistant writes
		a.chat.Wait()
		return nil
	},
}

func init() {
	serveCMD.Flags().BoolVar(&serveMigrate, "migrate", false, "run schema migration before serving")
	serveCMD.Flags().BoolVar(&serveNoQueue, "no-queue", false, "do not connect to rabbitmq")
	rootCMD.AddCommand(serveCMD)
}
