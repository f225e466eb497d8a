package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/rl1809/course-checkout/internal/adapter/gateway"
	"github.com/rl1809/course-checkout/internal/adapter/handler"
	"github.com/rl1809/course-checkout/internal/adapter/storage"
	"github.com/rl1809/course-checkout/internal/core/service"
	"github.com/rl1809/course-checkout/internal/health"
)

const shutdownTimeout = 5 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the gRPC admin service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			db, ledger, err := openLedger(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := ledger.Migrate(ctx); err != nil {
				return err
			}
			logger.Info("connected to database", slog.String("driver", cfg.Database.Driver))
			checks := health.NewRegistry(3*time.Second, health.NewPingChecker("database", ledger))

			rdb, err := openRedis(ctx, cfg.Redis)
			if err != nil {
				return err
			}
			defer rdb.Close()
			logger.Info("connected to redis", slog.String("addr", cfg.Redis.Addr))

			if !cfg.Payment.VerifySignature {
				logger.Warn("IPN signature verification is disabled", slog.String("env", cfg.Env))
			}

			redisAdapter := storage.NewRedisAdapter(rdb)
			checks.Register(health.NewPingChecker("redis", redisAdapter))
			momo := gateway.NewMoMoClient(gateway.MoMoConfig{
				Endpoint:         cfg.MoMo.Endpoint,
				PartnerCode:      cfg.MoMo.PartnerCode,
				PartnerName:      cfg.MoMo.PartnerName,
				StoreID:          cfg.MoMo.StoreID,
				AccessKey:        cfg.MoMo.AccessKey,
				SecretKey:        cfg.MoMo.SecretKey,
				IPNURL:           cfg.MoMo.IPNURL,
				Lang:             cfg.MoMo.Lang,
				RequestType:      cfg.MoMo.RequestType,
				Timeout:          cfg.MoMo.Timeout,
				MaxResponseBytes: cfg.MoMo.MaxResponseBytes,
			})

			orderService := service.NewOrderService(ledger, ledger, momo, cfg.MoMo.RedirectURL, logger)
			fulfillment := service.NewFulfillmentService(redisAdapter, ledger, redisAdapter, logger)
			reconcileService := service.NewReconcileService(ledger, fulfillment, service.ReconcileConfig{
				AccessKey:       cfg.MoMo.AccessKey,
				SecretKey:       cfg.MoMo.SecretKey,
				VerifySignature: cfg.Payment.VerifySignature,
			}, logger)

			// gRPC admin server
			grpcServer := grpc.NewServer(grpc.UnaryInterceptor(handler.AdminTokenInterceptor(cfg.Admin.GRPCToken)))
			handler.RegisterAdminServer(grpcServer, handler.NewGRPCHandler(reconcileService, ledger, logger))

			lis, err := net.Listen("tcp", cfg.GRPC.Addr)
			if err != nil {
				return err
			}
			errCh := make(chan error, 2)
			go func() {
				logger.Info("gRPC server listening", slog.String("addr", cfg.GRPC.Addr))
				if err := grpcServer.Serve(lis); err != nil {
					errCh <- err
				}
			}()

			// HTTP server
			httpHandler := handler.NewHTTPHandler(orderService, reconcileService, checks, cfg.Payment.DevShortcut, logger)
			httpServer := &http.Server{
				Addr:              cfg.HTTP.Addr,
				Handler:           httpHandler.Routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			go func() {
				logger.Info("HTTP server listening", slog.String("addr", cfg.HTTP.Addr), slog.Bool("dev_shortcut", cfg.Payment.DevShortcut))
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			var serveErr error
			select {
			case <-ctx.Done():
			case serveErr = <-errCh:
				logger.Error("server error", slog.Any("error", serveErr))
			}

			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("HTTP shutdown", slog.Any("error", err))
			}
			logger.Info("HTTP server stopped")

			grpcServer.GracefulStop()
			logger.Info("gRPC server stopped")
			return serveErr
		},
	}
}
