package main

import (
	"flag"

	"go-refine-pipeline/internal/api"
	"go-refine-pipeline/internal/store"
	"go-refine-pipeline/pkg/router"
)

func main() {
	dbPath := flag.String("db", "refine.db", "Path to the run journal database")
	addr := flag.String("addr", ":8080", "Listen address")
	flag.Parse()

	// Init DB
	if err := store.InitDB(*dbPath); err != nil {
		panic(err)
	}

	// Create router
	r := router.New()

	// Register API routes
	api.RegisterRoutes(r)

	// Start server
	r.Start(*addr)
}
