// Package main implements the entry point for the tasker server, which
// accepts tasks over HTTP and executes them at their scheduled time.
package main

import (
	"context"
	"log"
)

// main loads configuration, wires the application together, recovers
// pending tasks from the database and then serves HTTP until a
// shutdown signal arrives.
func main() {
	ctx := context.Background()

	app, err := initializeApp(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	if err := app.startHTTPServer(ctx, app.setupRouter()); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
