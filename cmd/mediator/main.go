// Command mediator runs the browser-extension mediation gateway.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GriffinCanCode/Warden/mediator/internal/infrastructure/config"
	"github.com/GriffinCanCode/Warden/mediator/internal/infrastructure/server"
)

func main() {
	port := flag.String("port", "", "listen port (overrides PORT)")
	policy := flag.String("policy", "", "approval policy TOML path (overrides POLICY_PATH)")
	flag.Parse()

	cfg := config.LoadOrDefault()
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *policy != "" {
		cfg.Policy.Path = *policy
	}

	srv, err := server.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize gateway: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Run(); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-sigChan:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("shutdown error: %v", err)
		}
	case err := <-errChan:
		log.Fatalf("gateway error: %v", err)
	}
}
