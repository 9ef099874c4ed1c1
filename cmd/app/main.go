package main

import (
	"flag"
	"log"

	"bvp/internal/di"
	"bvp/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config")
	flag.Parse()

	if err := run(*configPath); err != nil {
		log.Fatalf("bvp api: %v", err)
	}
}

// run blocks until the process receives SIGINT or SIGTERM.
func run(configPath string) error {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return err
	}
	log.Printf("bvp api: env=%s host=%s backend=%s", cfg.Environment, cfg.Host, cfg.Backend.Type)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		return err
	}
	return app.Run()
}
