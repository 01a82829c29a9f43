package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/gops/agent"
	"github.com/viant/afs"

	"github.com/viant/ragcore/server"
	"github.com/viant/ragcore/service"
)

func main() {
	startGops()
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	switch os.Args[1] {
	case "serve":
		serveCmd(os.Args[2:])
	case "ingest":
		ingestCmd(os.Args[2:])
	case "search":
		searchCmd(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: ragcore <command> [options]")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  serve   Run the retrieval HTTP server")
	fmt.Fprintln(os.Stderr, "  ingest  Ingest files or raw text into the vector store")
	fmt.Fprintln(os.Stderr, "  search  Query the vector store and print ranked context")
}

func serveCmd(args []string) {
	flags := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := flags.String("config", "", "config yaml path")
	addr := flags.String("addr", "", "listen address (overrides config)")
	flags.Parse(args)

	cfg := loadConfig(*configPath)
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	svc, err := service.New(cfg)
	if err != nil {
		log.Fatalf("init service: %v", err)
	}
	defer svc.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if err := server.New(svc, cfg.Server).Run(ctx); err != nil {
		log.Fatalf("serve: %v", err)
	}
}

func ingestCmd(args []string) {
	flags := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := flags.String("config", "", "config yaml path")
	source := flags.String("source", "", "file or afs URL to ingest")
	text := flags.String("text", "", "raw text to ingest (alternative to --source)")
	title := flags.String("title", "", "document title")
	id := flags.String("id", "", "document id (optional, upserts on collision)")
	language := flags.String("language", "", "document language")
	method := flags.String("method", "", "chunking method: sentence|token|paragraph|character")
	flags.Parse(args)

	if *source == "" && *text == "" {
		log.Fatal("either --source or --text is required")
	}
	svc, err := service.New(loadConfig(*configPath))
	if err != nil {
		log.Fatalf("init service: %v", err)
	}
	defer svc.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	request := service.IngestRequest{
		ID:             *id,
		Title:          *title,
		Source:         *source,
		Language:       *language,
		Text:           *text,
		ChunkingMethod: *method,
	}
	if *source != "" {
		data, err := afs.New().DownloadWithURL(ctx, *source)
		if err != nil {
			log.Fatalf("read %s: %v", *source, err)
		}
		request.Path = *source
		request.Data = data
		if request.Title == "" {
			request.Title = filepath.Base(*source)
		}
	}
	result, err := svc.Ingest(ctx, request)
	if err != nil {
		log.Fatalf("ingest: %v", err)
	}
	fmt.Printf("document %s: %d chunks stored, %d skipped\n", result.DocumentID, result.ChunkCount, result.Skipped)
}

func searchCmd(args []string) {
	flags := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := flags.String("config", "", "config yaml path")
	query := flags.String("query", "", "query text (required)")
	topK := flags.Int("top-k", 0, "number of results")
	threshold := flags.Float64("threshold", -2, "similarity threshold (default from config)")
	lat := flags.Float64("lat", 0, "latitude for geo search")
	lon := flags.Float64("lon", 0, "longitude for geo search")
	radius := flags.Float64("radius", 0, "geo radius in meters")
	geoSearch := flags.Bool("geo", false, "restrict to a radius around --lat/--lon")
	asJSON := flags.Bool("json", false, "print the full response as JSON")
	flags.Parse(args)

	if *query == "" {
		log.Fatal("--query is required")
	}
	svc, err := service.New(loadConfig(*configPath))
	if err != nil {
		log.Fatalf("init service: %v", err)
	}
	defer svc.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	request := service.QueryRequest{Query: *query, TopK: *topK}
	if *threshold >= -1 {
		request.SimilarityThreshold = threshold
	}
	if *geoSearch {
		request.Geo = &service.GeoQuery{Lat: *lat, Lon: *lon, RadiusMeters: *radius}
	}
	result, err := svc.Query(ctx, request)
	if err != nil {
		log.Fatalf("search: %v", err)
	}
	if *asJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		_ = encoder.Encode(result)
		return
	}
	for i, hit := range result.Results {
		fmt.Printf("%2d. %.4f %s\n    %s\n", i+1, hit.Score, hit.DocumentID, hit.Text)
	}
	fmt.Printf("\n%d results, %d in prompt (embed %dms, search %dms)\n",
		result.Stats.Retrieved, result.Stats.Included,
		result.Stats.EmbeddingTime.Milliseconds(), result.Stats.RetrievalTime.Milliseconds())
}

func loadConfig(path string) *service.Config {
	if path == "" {
		return service.DefaultConfig()
	}
	cfg, err := service.LoadConfig(path)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	return cfg
}

func startGops() {
	if err := agent.Listen(agent.Options{ShutdownCleanup: true}); err != nil {
		log.Printf("gops: %v", err)
	}
}
