package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/SpacksD/Printer-connect/app"
	"github.com/SpacksD/Printer-connect/app/config"
	"github.com/SpacksD/Printer-connect/pkg/auth"
	"github.com/SpacksD/Printer-connect/pkg/metrics"
	"github.com/SpacksD/Printer-connect/pkg/printer"
	"github.com/SpacksD/Printer-connect/pkg/queue"
	"github.com/SpacksD/Printer-connect/pkg/ratelimit"
	"github.com/SpacksD/Printer-connect/pkg/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pkg/profile"
	"lol.mleku.dev/chk"
	"lol.mleku.dev/log"
)

func main() {
	runtime.GOMAXPROCS(runtime.NumCPU() * 4)
	var err error
	var cfg *config.C
	if cfg, err = config.New(); chk.T(err) {
	}
	log.I.F("starting %s %s", cfg.AppName, config.Version)

	switch cfg.Pprof {
	case "cpu":
		prof := profile.Start(profile.CPUProfile)
		defer prof.Stop()
	case "memory":
		prof := profile.Start(profile.MemProfile)
		defer prof.Stop()
	case "allocation":
		prof := profile.Start(profile.MemProfileAllocs)
		defer prof.Stop()
	}

	var st *store.Store
	if st, err = store.Open(cfg.DatabaseURL); chk.E(err) {
		os.Exit(1)
	}

	q := queue.New()
	authMgr := auth.NewManager(cfg.JWTSecretKey, time.Duration(cfg.TokenExpirationHours)*time.Hour)
	limiter := ratelimit.New(cfg.RequestsPerMinute, cfg.BurstSize, 0, 0)

	var backend printer.Backend
	if cfg.UseMock {
		backend = printer.NewMockBackend(cfg.PrinterName)
	} else {
		native, nativeErr := printer.NewNativeBackend(cfg.PrinterName)
		if nativeErr != nil {
			log.W.F("native printer backend unavailable (%v); falling back to mock", nativeErr)
			backend = printer.NewMockBackend(cfg.PrinterName)
		} else {
			backend = native
		}
	}

	reg := prometheus.NewRegistry()
	metricsReg := metrics.New(reg)

	ctx, cancel := context.WithCancel(context.Background())

	// ready flips once app.Run has restored the queue from the store.
	var ready atomic.Bool
	var metricsSrv *http.Server
	if cfg.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
			if !ready.Load() {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("not ready"))
				return
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
		})
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsSrv = &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Listen, cfg.MetricsPort),
			Handler: mux,
		}
		go func() {
			log.I.F("metrics/health server listening on %s", metricsSrv.Addr)
			if srvErr := metricsSrv.ListenAndServe(); srvErr != nil && srvErr != http.ErrServerClosed {
				log.E.F("metrics server error: %v", srvErr)
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancelShutdown()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}()
	}

	quit, runErr := app.Run(ctx, cfg, st, q, authMgr, limiter, backend, metricsReg)
	if chk.E(runErr) {
		os.Exit(1)
	}
	ready.Store(true)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	select {
	case <-sigs:
		fmt.Printf("\r")
		cancel()
		<-quit
	case <-quit:
		cancel()
	}
	chk.E(st.Close())
}
