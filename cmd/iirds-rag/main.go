package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"iirdsrag/internal/chunker"
	"iirdsrag/internal/config"
	"iirdsrag/internal/embedding"
	"iirdsrag/internal/embedding/openai"
	"iirdsrag/internal/extract"
	"iirdsrag/internal/graphstore"
	graphmemory "iirdsrag/internal/graphstore/memory"
	graphneo4j "iirdsrag/internal/graphstore/neo4j"
	"iirdsrag/internal/ingest"
	"iirdsrag/internal/service"
	"iirdsrag/internal/tui"
	"iirdsrag/internal/vectorstore"
	vecmemory "iirdsrag/internal/vectorstore/memory"
	vecqdrant "iirdsrag/internal/vectorstore/qdrant"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	var query string
	var topK int
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/iirds-rag/config.yaml if not provided)")
	flag.StringVar(&query, "query", "", "Run one query and print the answer context instead of starting the TUI")
	flag.IntVar(&topK, "k", 0, "Hit limit for queries (defaults to the configured top_k)")
	flag.Parse()
	packages := flag.Args()
	if len(packages) == 0 && query == "" {
		fmt.Println("Usage: iirds-rag [--config=config.yaml] [--query=\"...\"] pkg1.zip [pkg2.zip ...]")
		os.Exit(1)
	}

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if topK <= 0 {
		topK = cfg.Search.TopK
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx := context.Background()

	// Assemble components
	var emb embedding.Embedder
	switch cfg.Embedder.Type {
	case "mock", "":
		emb = embedding.NewMockEmbedder(cfg.Embedder.Dimension)
	case "openai":
		if cfg.Embedder.OpenAI == nil {
			log.Fatalf("openai embedder config missing")
		}
		client, err := openai.NewClient(openai.Config{
			BaseURL:   cfg.Embedder.OpenAI.BaseURL,
			APIKeyEnv: cfg.Embedder.OpenAI.APIKeyEnv,
			Model:     cfg.Embedder.OpenAI.Model,
			Timeout:   time.Duration(cfg.Embedder.OpenAI.TimeoutSecs) * time.Second,
		})
		if err != nil {
			log.Fatalf("openai embedder init failed: %v", err)
		}
		emb = client
	default:
		log.Fatalf("unknown embedder: %s", cfg.Embedder.Type)
	}

	var graph graphstore.Store
	switch cfg.GraphStore.Type {
	case "memory", "":
		graph = graphmemory.NewStore()
	case "neo4j":
		if cfg.GraphStore.Neo4j == nil {
			log.Fatalf("neo4j config missing")
		}
		store, err := graphneo4j.NewStore(ctx, graphneo4j.Config{
			URI:            cfg.GraphStore.Neo4j.URI,
			Username:       cfg.GraphStore.Neo4j.Username,
			Password:       cfg.GraphStore.Neo4j.Password,
			Database:       cfg.GraphStore.Neo4j.Database,
			ConnectTimeout: time.Duration(cfg.GraphStore.Neo4j.ConnectTimeoutSecs) * time.Second,
		})
		if err != nil {
			log.Fatalf("neo4j init failed: %v", err)
		}
		defer store.Close(ctx)
		graph = store
	default:
		log.Fatalf("unknown graph store: %s", cfg.GraphStore.Type)
	}

	if err := graph.EnsureSchema(ctx); err != nil {
		log.Fatalf("graph schema init failed: %v", err)
	}

	var vectors vectorstore.Storage
	switch cfg.VectorStore.Type {
	case "memory", "":
		vectors = vecmemory.NewStorage()
	case "qdrant":
		if cfg.VectorStore.Qdrant == nil {
			log.Fatalf("qdrant config missing")
		}
		store, err := vecqdrant.NewStorage(vecqdrant.Config{
			Host:       cfg.VectorStore.Qdrant.Host,
			Port:       cfg.VectorStore.Qdrant.Port,
			APIKey:     cfg.VectorStore.Qdrant.APIKey,
			Collection: cfg.VectorStore.Qdrant.Collection,
			UseTLS:     cfg.VectorStore.Qdrant.UseTLS,
		})
		if err != nil {
			log.Fatalf("qdrant init failed: %v", err)
		}
		defer store.Close()
		vectors = store
	default:
		log.Fatalf("unknown vector store: %s", cfg.VectorStore.Type)
	}

	chunks := chunker.New(cfg.Ingest.ChunkTokens, cfg.Ingest.OverlapTokens, cfg.Ingest.MinChunkChars)
	ingestor := ingest.New(graph, vectors, emb, extract.NewRegistry(), chunks, logger)

	for _, name := range packages {
		blob, err := os.ReadFile(name)
		if err != nil {
			log.Fatalf("read %s: %v", name, err)
		}
		summary, err := ingestor.IngestZip(ctx, blob, name)
		if err != nil {
			log.Fatalf("ingest %s: %v", name, err)
		}
		fmt.Printf("%s: package=%s topics=%d documents=%d renditions=%d chunks=%d\n",
			name, summary.Package, summary.Topics, summary.Documents, summary.RenditionsSeen, summary.Chunks)
	}

	pipeline := service.NewPipeline(graph, vectors, emb, logger)

	if query != "" {
		answer, citations, _, err := pipeline.AnswerContext(ctx, query, nil, topK)
		if err != nil {
			log.Fatalf("query failed: %v", err)
		}
		fmt.Println(answer)
		for _, c := range citations {
			fmt.Printf("  - %s | %s\n", c.ParentIRI, c.Path)
		}
		return
	}

	m := tui.New(pipeline, topK)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		log.Fatal(err)
	}
}
