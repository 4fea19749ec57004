package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/rl1809/whiskey-cellar/internal/adapter/backup"
	"github.com/rl1809/whiskey-cellar/internal/adapter/handler"
	"github.com/rl1809/whiskey-cellar/internal/cli"
	"github.com/rl1809/whiskey-cellar/internal/core/service"
	"github.com/rl1809/whiskey-cellar/internal/port"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := newConfig()
	opts := cfg.opts()
	v := cli.NewViper(envPrefix)

	root := &cobra.Command{
		Use:           "whiskey-cellar",
		Short:         "Keep track of a whiskey collection",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return cli.Apply(v, opts)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), cfg)
		},
	}
	cli.BindOptions(v, root, opts)

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Serve the whiskey page, the JSON API and the gRPC service",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return serve(cmd.Context(), cfg)
			},
		},
		&cobra.Command{
			Use:   "export <location>",
			Short: "Write every whiskey to a backup file or s3:// object",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runBackup(cmd.Context(), cfg, args[0], (*service.BackupService).Export)
			},
		},
		&cobra.Command{
			Use:   "import <location>",
			Short: "Load whiskeys from a backup file or s3:// object",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runBackup(cmd.Context(), cfg, args[0], (*service.BackupService).Import)
			},
		},
	)
	return root
}

func serve(ctx context.Context, cfg *config) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	log := a.logger

	httpHandler := handler.NewHTTPHandler(a.repo, log.With(zap.String("service", "http")))
	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httpHandler.Routes(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})),
	}

	grpcLog := log.With(zap.String("service", "grpc"))
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(handler.LoggingInterceptor(grpcLog)))
	handler.RegisterWhiskeyServiceServer(grpcServer, handler.NewGRPCHandler(a.repo, grpcLog))

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.GRPCAddr, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		log.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		log.Info("HTTP server stopped")

		grpcServer.GracefulStop()
		log.Info("gRPC server stopped")
		return err
	})
	return g.Wait()
}

type backupFunc func(s *service.BackupService, ctx context.Context, blobs port.BlobStore, key string) (int, error)

func runBackup(ctx context.Context, cfg *config, location string, fn backupFunc) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	blobs, key, err := backup.Open(ctx, location)
	if err != nil {
		return err
	}
	n, err := fn(service.NewBackupService(a.repo, a.logger), ctx, blobs, key)
	if err != nil {
		return err
	}
	fmt.Printf("%d whiskeys\n", n)
	return nil
}
