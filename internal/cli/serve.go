package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/MrEthical07/storeauth"
	"github.com/MrEthical07/storeauth/metrics/export/prometheus"
	"github.com/MrEthical07/storeauth/middleware"
	"github.com/MrEthical07/storeauth/permission"
)

func newServeCommand(opts *options) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the session state over HTTP",
		Long: `Runs the store for the lifetime of the process and serves:

  GET  /session       current snapshot
  GET  /seller/ping   seller or admin only
  GET  /admin/ping    admin only
  GET  /orders/ping   roles granted orders:view_own
  POST /signout       sign out
  GET  /metrics       Prometheus metrics

Guarded routes answer 503 until the session and profile are resolved.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Serve.Addr = addr
			}
			rt, err := openRuntime(cfg, opts.redis, opts.logOut)
			if err != nil {
				return err
			}
			defer rt.close()

			ln, err := net.Listen("tcp", cfg.Serve.Addr)
			if err != nil {
				return fmt.Errorf("listen %s: %w", cfg.Serve.Addr, err)
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return serve(ctx, rt, cfg.Serve, ln)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides serve.addr)")
	return cmd
}

// newHandler exposes rt's store over HTTP.
func newHandler(rt *runtime) http.Handler {
	store := rt.store
	rm := permission.Storefront()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /session", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, store.Snapshot())
	})
	mux.Handle("GET /seller/ping", middleware.RequireRole(store, storeauth.RoleSeller, storeauth.RoleAdmin)(http.HandlerFunc(pong)))
	mux.Handle("GET /admin/ping", middleware.RequireRole(store, storeauth.RoleAdmin)(http.HandlerFunc(pong)))
	mux.Handle("GET /orders/ping", middleware.RequirePermission(store, rm, permission.OrdersViewOwn)(http.HandlerFunc(pong)))
	mux.HandleFunc("POST /signout", func(w http.ResponseWriter, r *http.Request) {
		res := store.SignOut(r.Context())
		status := http.StatusOK
		if !res.Success {
			status = http.StatusBadGateway
		}
		writeJSON(w, status, res)
	})
	mux.Handle("GET /metrics", prometheus.NewExporter(store).Handler())

	return middleware.RequestMetadata(mux)
}

func pong(w http.ResponseWriter, r *http.Request) {
	snap, _ := middleware.SnapshotFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"role": snap.AuthRole,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// serve runs the store, the HTTP server and, for the hosted provider, token
// auto-refresh until ctx ends.
func serve(ctx context.Context, rt *runtime, cfg ServeConfig, ln net.Listener) error {
	if err := rt.store.Start(ctx); err != nil {
		_ = ln.Close()
		return fmt.Errorf("start store: %w", err)
	}

	srv := &http.Server{
		Handler:           newHandler(rt),
		ReadHeaderTimeout: cfg.ReadTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	logger := rt.logger.WithField("addr", ln.Addr().String())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("serving session state")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if rt.gotrue != nil && cfg.AutoRefresh {
		rt.gotrue.StartAutoRefresh(gctx)
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.ShutdownTimeout)
		defer cancel()
		logger.WithFields(logrus.Fields{"timeout": cfg.ShutdownTimeout}).Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
