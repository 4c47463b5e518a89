package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"akshay-tray/hub"
	"akshay-tray/httpapi"
	"akshay-tray/ipc"
	"akshay-tray/kvstore"
	"akshay-tray/logger"
	"akshay-tray/session"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the coordinator process",
	Long: `Run the coordinator: it owns the durable store, serves it to windows
over HTTP and fans token-changed notifications out to every window.`,
	RunE: runServe,
}

var flagListen string

func init() {
	serveCmd.Flags().StringVar(&flagListen, "listen", "", "listen URL (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if flagListen != "" {
		cfg.Listen = flagListen
	}
	log := logger.Component("serve")

	backend, closeBackend, err := openLocalBackend(cfg)
	if err != nil {
		return err
	}
	defer closeBackend()

	store := kvstore.NewKeyValueStore(backend, session.Defaults())
	if err := store.Seed(); err != nil {
		return err
	}

	h := hub.NewHub(cfg.RateLimit)
	srv := httpapi.New(cfg.Listen, store, h)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if js, ok := backend.(*kvstore.JsonStore); ok && cfg.WatchStore {
		g.Go(func() error {
			err := js.Watch(gctx, func() {
				msg, err := ipc.NewMessage(ipc.ChannelStoreChanged, nil)
				if err != nil {
					log.WithError(err).Error("failed to build store-changed message")
					return
				}
				h.Broadcast(msg)
			})
			if err != nil {
				log.WithError(err).Warn("store watch stopped")
			}
			return nil
		})
	}

	log.WithField("listen", cfg.Listen).WithField("backend", cfg.Backend).Info("coordinator running")
	return g.Wait()
}
