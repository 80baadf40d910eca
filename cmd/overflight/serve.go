package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/banshee-data/overflight.report/internal/alerting"
	"github.com/banshee-data/overflight.report/internal/api"
	"github.com/banshee-data/overflight.report/internal/config"
	"github.com/banshee-data/overflight.report/internal/db"
	"github.com/banshee-data/overflight.report/internal/httputil"
	"github.com/banshee-data/overflight.report/internal/opensky"
	"github.com/banshee-data/overflight.report/internal/poller"
)

// newFeedClient builds the OpenSky client described by cfg.
func newFeedClient(cfg *config.Config) *opensky.Client {
	client := opensky.NewClient(httputil.NewStandardClient(cfg.GetRequestTimeout()), cfg.GetFeedURL())
	if user, pass := cfg.GetFeedCredentials(); user != "" {
		client.WithCredentials(user, pass)
	}
	return client
}

func serve(ctx context.Context, cfg *config.Config) error {
	ln, err := net.Listen("tcp", cfg.GetListen())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.GetListen(), err)
	}
	return serveListener(ctx, cfg, ln)
}

// serveListener runs the poller and the HTTP API on ln until ctx is
// cancelled. ln is closed on return.
func serveListener(ctx context.Context, cfg *config.Config, ln net.Listener) error {
	registry, err := db.NewDB(cfg.GetDBPath())
	if err != nil {
		ln.Close()
		return fmt.Errorf("failed to open site registry: %w", err)
	}
	defer registry.Close()

	site, err := resolveSite(cfg, registry)
	if err != nil {
		ln.Close()
		return err
	}

	scheduler := poller.New(newFeedClient(cfg), site, cfg.GetPollInterval())
	// Subscribe before the first cycle can publish so no transition is missed.
	id, results := scheduler.Subscribe()
	scheduler.Start(ctx)
	defer scheduler.Stop()

	policy := cfg.GetInversionPolicy()
	thresholds := alerting.Normalize(cfg.GetThresholds(), policy)
	log.Printf("polling site %q every %s (warning T-%s, critical T-%s)",
		site.Name, scheduler.BaseInterval(), thresholds.Warning, thresholds.Critical)

	var wg sync.WaitGroup

	// log alert stage transitions
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer scheduler.Unsubscribe(id)
		watchStages(ctx, results, thresholds, policy, log.Printf)
		log.Print("stage monitor routine terminated")
	}()

	serveErr := make(chan error, 1)

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := api.NewServer(scheduler, registry, api.Options{
			Site:         site,
			Thresholds:   thresholds,
			Policy:       policy,
			Units:        cfg.GetUnits(),
			PollInterval: scheduler.BaseInterval(),
		}).ServeMux()

		if err := registry.AttachAdminRoutes(mux); err != nil {
			log.Printf("failed to attach admin routes: %v", err)
		}

		server := &http.Server{
			Handler:           api.LoggingMiddleware(mux),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			log.Printf("HTTP API listening on %s", ln.Addr())
			if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")

	select {
	case err := <-serveErr:
		return fmt.Errorf("HTTP server failed: %w", err)
	default:
		return nil
	}
}

// watchStages logs every change of alert stage seen on results until ctx
// is cancelled or results is closed.
func watchStages(ctx context.Context, results <-chan poller.Result, t alerting.Thresholds, policy alerting.InversionPolicy, logf func(format string, v ...interface{})) {
	last := alerting.StageIdle
	for {
		select {
		case res, ok := <-results:
			if !ok {
				return
			}
			if res.Err != nil {
				if wait, limited := res.RateLimited(); limited {
					logf("feed rate limited, next poll in %s", wait)
				} else {
					logf("poll failed: %v", res.Err)
				}
				continue
			}
			status := alerting.Evaluate(alerting.Nearest(res.Events), t, policy)
			if status.Stage != last {
				logf("alert %s -> %s: %s", last, status.Stage, status.Title)
				last = status.Stage
			}
		case <-ctx.Done():
			return
		}
	}
}
