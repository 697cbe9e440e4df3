package main

import (
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harmonia-saude/leadops-cli/internal/lead"
	"github.com/harmonia-saude/leadops-cli/internal/webhook"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the inbound webhook server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		store, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Migrate(ctx); err != nil {
			return err
		}

		denylist, err := initDenylist()
		if err != nil {
			return err
		}
		// Inbound traffic always heals legacy stored phones: every fuzzy
		// match on this path comes with a canonical number in hand.
		resolver := initResolver(store, denylist, lead.WithSelfHeal(true))

		handler := webhook.NewHandler(resolver, store,
			webhook.WithDenylist(denylist),
			webhook.WithRegions(resolverRegions()),
			webhook.WithAllowedOrigins(cfg.Server.AllowedOrigins),
		)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: handler.Router(),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server",
			zap.Int("port", port),
			zap.String("driver", cfg.Store.Driver),
			zap.Bool("self_heal", true),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func resolverRegions() []string {
	regions := cfg.Resolver.FallbackRegions
	if cfg.Resolver.HomeRegion != "" && (len(regions) == 0 || regions[0] != cfg.Resolver.HomeRegion) {
		regions = append([]string{cfg.Resolver.HomeRegion}, regions...)
	}
	return regions
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
