package main

import (
	"fmt"
	"log"
	"os"

	"github.com/petfooddb/catalog/config"
	httpDelivery "github.com/petfooddb/catalog/internal/delivery/http"
	"github.com/petfooddb/catalog/internal/infrastructure/aliasmap"
	"github.com/petfooddb/catalog/internal/infrastructure/sqlite"
	"github.com/petfooddb/catalog/internal/usecase"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting PetFoodDB Catalog API v1.0.0")
	log.Printf("Environment: %s", cfg.Server.Environment)
	log.Printf("Port: %s", cfg.Server.Port)
	log.Printf("Store: %s", cfg.Store.Path)

	// An invalid alias document refuses startup; running without one
	// would corrupt brand family assignment for every batch.
	aliases, err := aliasmap.Load(cfg.AliasMap.Path)
	if err != nil {
		log.Fatalf("Failed to load alias map: %v", err)
	}
	log.Printf("Alias map: %s (version %s, %d brands)", cfg.AliasMap.Path, aliases.Version, len(aliases.Brands))

	store, err := sqlite.Open(cfg.Store.Path)
	if err != nil {
		log.Fatalf("Failed to open catalog store: %v", err)
	}
	defer store.Close()

	// Initialize usecase layer
	resolver := usecase.NewResolutionService(store, aliases, usecase.ResolutionConfig{
		SimilarityThreshold: cfg.Matching.SimilarityThreshold,
		EnableFuzzyMatching: cfg.Matching.EnableFuzzyMatching,
		EnableDebugLogging:  cfg.Matching.EnableDebugLogging,
	})

	log.Printf("Matching: threshold=%.2f, fuzzy=%v, debug=%v",
		cfg.Matching.SimilarityThreshold,
		cfg.Matching.EnableFuzzyMatching,
		cfg.Matching.EnableDebugLogging)

	// Create HTTP handler with dependencies
	handler := httpDelivery.NewHandler(store, resolver)

	// Setup router
	router := httpDelivery.SetupRouter(cfg, handler)

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Printf("Server listening on %s", addr)

	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func init() {
	// Set log flags for better debugging
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.SetOutput(os.Stdout)
}
