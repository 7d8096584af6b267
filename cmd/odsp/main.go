// Command odsp is a dev CLI for oddspress maintenance and debugging tasks.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/pkg/browser"

	"oddspress/internal/config"
	"oddspress/internal/generator"
	"oddspress/internal/generator/providers"
	"oddspress/internal/market"
	"oddspress/internal/orchestrator"
	"oddspress/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "refresh":
		runRefresh()
	case "articles":
		runArticles()
	case "open":
		if len(os.Args) < 3 {
			fmt.Println("Usage: odsp open <config|cache>")
			os.Exit(1)
		}
		runOpen(os.Args[2])
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: odsp <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  refresh       Run one article generation cycle and exit")
	fmt.Println("  articles      List stored articles")
	fmt.Println("  open config   Open config file in default editor")
	fmt.Println("  open cache    Open cache directory in file explorer")
}

func loadConfig() *config.Config {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		if os.IsNotExist(err) {
			cfg = config.Default()
			cfg.ApplyEnv()
			return cfg
		}
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

// runRefresh assembles the pipeline and runs a single synchronous generation
// cycle, the same path the daemon's POST /api/refresh takes.
func runRefresh() {
	cfg := loadConfig()

	backend, err := store.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage backend: %v", err)
	}
	defer backend.Close()

	var provider generator.Provider
	switch cfg.Generation.Provider {
	case config.ProviderOpenAI:
		provider = providers.NewOpenAIProvider(cfg.Generation.APIKey, cfg.Generation.Model, cfg.Generation.MaxTokens)
	default:
		provider = providers.NewAnthropicProvider(cfg.Generation.APIKey, cfg.Generation.Model, cfg.Generation.MaxTokens)
	}

	cacheDir, err := cfg.CacheDirPath()
	if err != nil {
		log.Fatalf("Failed to resolve cache dir: %v", err)
	}

	gen := generator.New(cfg.Generation, provider, store.NewExchangeLog(cacheDir))
	orch := orchestrator.New(cfg.Pipeline, market.New(cfg.Market), gen, backend)

	generated, err := orch.RunGeneration(context.Background())
	if err != nil {
		log.Fatalf("Generation cycle failed: %v", err)
	}
	fmt.Printf("Generated %d new articles\n", generated)
}

func runArticles() {
	cfg := loadConfig()

	backend, err := store.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage backend: %v", err)
	}
	defer backend.Close()

	articles, err := backend.ListArticles(context.Background())
	if err != nil {
		log.Fatalf("Failed to list articles: %v", err)
	}

	if len(articles) == 0 {
		fmt.Println("No articles stored")
		return
	}
	for _, a := range articles {
		fmt.Printf("%s  [%s/%s]  %s  %s\n",
			a.ID, a.Type, a.Status, a.GeneratedAt.Format("2006-01-02 15:04"), a.Title)
	}
}

func runOpen(target string) {
	cfg := loadConfig()

	var path string
	var err error

	switch target {
	case "config":
		path, err = config.ConfigPath()
	case "cache":
		path, err = cfg.CacheDirPath()
	default:
		fmt.Printf("Unknown target: %s\n", target)
		os.Exit(1)
	}

	if err != nil {
		log.Fatalf("Failed to get path: %v", err)
	}

	if err := browser.OpenFile(path); err != nil {
		log.Fatalf("Failed to open: %v", err)
	}
}
