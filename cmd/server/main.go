package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/aaron/footyhub/internal/apiclient"
	"github.com/aaron/footyhub/internal/app"
	"github.com/aaron/footyhub/internal/cache"
	"github.com/aaron/footyhub/internal/config"
	"github.com/aaron/footyhub/internal/fetcher"
	"github.com/aaron/footyhub/internal/handlers"
	"github.com/aaron/footyhub/internal/live"
	"github.com/aaron/footyhub/internal/metrics"
	"github.com/aaron/footyhub/internal/middleware"
	"github.com/aaron/footyhub/internal/round"
	"github.com/aaron/footyhub/internal/squiggle"
	"github.com/aaron/footyhub/internal/store"
	"github.com/aaron/footyhub/internal/view"
)

func openStore(ctx context.Context) store.Store {
	if addr := config.RedisAddr(); addr != "" {
		client := store.NewRedisClient(addr)
		r := store.NewRedis(client, config.RedisPrefix())
		if err := r.Ping(ctx); err != nil {
			log.Printf("redis %s unreachable (%v), using memory store", addr, err)
		} else {
			log.Printf("using redis store at %s", addr)
			return r
		}
	}
	mem, err := store.NewMemory(config.MemoryStoreSize())
	if err != nil {
		log.Fatalf("memory store: %v", err)
	}
	return mem
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("load .env: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := cache.New(openStore(ctx), time.Now)
	sq := squiggle.NewClient(apiclient.New(config.SquiggleURL(), config.UserAgent(), config.FetchTimeout()))
	resolver := round.NewResolver(apiclient.New(config.AFLAPIURL(), config.UserAgent(), config.FetchTimeout()), config.CompSeasonID())
	f := fetcher.New(c, sq, config.Season())

	pub := handlers.NewPublisher(config.Season())
	a := app.New(resolver, f, c, view.New(pub), pub, app.Options{
		Parallel: config.ParallelFetch(),
		Mode:     config.LiveMode(),
		Preview:  config.LivePreview(),
		Stream:   live.Options{MaxRetries: config.LiveMaxRetries(), RetryDelay: config.LiveRetryDelay()},
		Refresh:  config.LiveRefresh(),
		Source: &live.HTTPSource{
			Client:    &http.Client{},
			UserAgent: config.UserAgent(),
		},
		SlateURL:   sq.SlateStreamURL(),
		PreviewURL: sq.PreviewStreamURL(),
		GameURL:    sq.GameStreamURL,
	})
	defer a.Close()

	go func() {
		if err := a.Start(ctx); err != nil {
			log.Printf("startup: %v", err)
		}
	}()

	limiter := middleware.NewLimiter(config.InboundRateLimitRequests(), config.InboundRateLimitPer())
	router := handlers.NewRouter(handlers.New(a, pub), limiter.Middleware)

	srv := &http.Server{
		Addr:              ":" + config.Port(),
		Handler:           metrics.Middleware(router),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	log.Printf("Listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
