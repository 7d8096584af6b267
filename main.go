package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"oddspress/internal/api"
	"oddspress/internal/config"
	"oddspress/internal/generator"
	"oddspress/internal/generator/providers"
	"oddspress/internal/market"
	"oddspress/internal/orchestrator"
	"oddspress/internal/scheduler"
	"oddspress/internal/store"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Secrets come from the environment; .env is a dev convenience.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: could not load .env: %v", err)
	}

	cfg := loadConfig()

	cacheDir, err := cfg.CacheDirPath()
	if err != nil {
		log.Fatalf("Failed to resolve cache dir: %v", err)
	}
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		log.Fatalf("Failed to create cache dir: %v", err)
	}

	// One daemon per cache dir; a second instance would race the file
	// backend and double-generate articles.
	lock := flock.New(filepath.Join(cacheDir, "oddspress.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		log.Fatalf("Failed to acquire daemon lock: %v", err)
	}
	if !locked {
		log.Fatal("Another oddspress instance is already running")
	}
	defer lock.Unlock()

	backend, err := store.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage backend: %v", err)
	}
	defer backend.Close()

	marketClient := market.New(cfg.Market)

	provider, err := newProvider(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize LLM provider: %v", err)
	}

	gen := generator.New(cfg.Generation, provider, store.NewExchangeLog(cacheDir))
	orch := orchestrator.New(cfg.Pipeline, marketClient, gen, backend)

	sched := scheduler.New()
	if err := sched.AddIntervalJob("generate-articles",
		time.Duration(cfg.Pipeline.GenerateIntervalMinutes)*time.Minute,
		func(ctx context.Context) error {
			_, err := orch.RunGeneration(ctx)
			return err
		}); err != nil {
		log.Fatalf("Failed to schedule generation job: %v", err)
	}
	if err := sched.AddIntervalJob("check-resolutions",
		time.Duration(cfg.Pipeline.ResolutionIntervalMinutes)*time.Minute,
		func(ctx context.Context) error {
			_, err := orch.RunResolutionCheck(ctx)
			return err
		}); err != nil {
		log.Fatalf("Failed to schedule resolution job: %v", err)
	}

	srv := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: api.NewRouter(backend, orch),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("oddspress starting (backend=%s, provider=%s, listen=%s)",
		cfg.Storage.Backend, cfg.Generation.Provider, cfg.Server.ListenAddr)
	sched.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP shutdown: %v", err)
		}

		// Wait for in-flight jobs before exiting.
		<-sched.Stop().Done()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("oddspress exited: %v", err)
	}
	log.Println("oddspress stopped")
}

// loadConfig loads the config file, creating a default one on first run.
func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		if os.IsNotExist(err) {
			// First run - create default config
			cfg = config.Default()
			cfg.ApplyEnv()
			if err := cfg.Save(); err != nil {
				log.Printf("Warning: could not save default config: %v", err)
			} else {
				path, _ := config.ConfigPath()
				log.Printf("Created default config at: %s", path)
			}
		} else {
			log.Fatalf("Could not load config: %v", err)
		}
	}
	return cfg
}

func newProvider(cfg *config.Config) (generator.Provider, error) {
	switch cfg.Generation.Provider {
	case config.ProviderAnthropic:
		return providers.NewAnthropicProvider(cfg.Generation.APIKey, cfg.Generation.Model, cfg.Generation.MaxTokens), nil
	case config.ProviderOpenAI:
		return providers.NewOpenAIProvider(cfg.Generation.APIKey, cfg.Generation.Model, cfg.Generation.MaxTokens), nil
	default:
		return nil, errors.New("unknown LLM provider: " + cfg.Generation.Provider)
	}
}
