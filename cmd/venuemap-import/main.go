// Command venuemap-import copies a venue collection file into the PostgreSQL
// database read by venuemap --venues-dsn.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"venuemap.taipeimusic.org/internal/config"
	"venuemap.taipeimusic.org/internal/logger"
	"venuemap.taipeimusic.org/internal/venues"
)

func main() {
	var (
		file = flag.String("venues-file", "", "Venue collection to import (.json, .yaml, optionally .zst)")
		dsn  = flag.String("venues-dsn", config.EnvOr("VENUES_DSN", ""), "PostgreSQL DSN")
	)
	flag.Parse()

	if *file == "" || *dsn == "" {
		fmt.Println("Error: both --venues-file and --venues-dsn are required")
		flag.Usage()
		os.Exit(1)
	}

	log := logger.New(os.Stderr, os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	collection, err := venues.FileSource{Path: *file}.Load(ctx)
	if err != nil {
		log.Error("Failed to read collection", "file", *file, "error", err)
		os.Exit(1)
	}
	// Refuse collections the server would reject.
	if _, err := venues.NewStore(collection, log); err != nil {
		log.Error("Collection is invalid", "file", *file, "error", err)
		os.Exit(1)
	}

	pg, err := venues.OpenPostgres(ctx, *dsn)
	if err != nil {
		log.Error("Failed to connect", "error", err)
		os.Exit(1)
	}
	defer pg.Close()

	if err := venues.EnsureSchema(ctx, pg.DB); err != nil {
		log.Error("Failed to prepare schema", "error", err)
		os.Exit(1)
	}
	if err := venues.Import(ctx, pg.DB, collection); err != nil {
		log.Error("Import failed", "error", err)
		os.Exit(1)
	}
	log.Info("Imported venue collection", "venues", len(collection.Venues), "version", collection.Version)
}
