package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const shutdownTimeout = 30 * time.Second

func main() {
	config := LoadConfig()

	server, err := NewServer(config)
	if err != nil {
		log.Fatal("Server initialization failed: ", err)
	}

	r := server.SetupRoutes()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(r)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("[SERVER] received %s", sig)
	case err := <-errCh:
		if err != nil {
			log.Printf("[SERVER] listener failed: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	server.Shutdown(ctx)
}
