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

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("bvp worker: %v", err)
	}
	worker, err := di.InitializeWorker(cfg)
	if err != nil {
		log.Fatalf("bvp worker: %v", err)
	}
	log.Printf("bvp worker: queue=%s workers=%d", cfg.Queue.Name, cfg.Queue.Workers)
	if err := worker.Run(); err != nil {
		log.Fatalf("bvp worker: %v", err)
	}
}
