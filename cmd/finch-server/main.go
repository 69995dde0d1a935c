package main

import (
	"log"
	"net/http"

	"finch-forex-backend/internal/config"
	"finch-forex-backend/internal/server"
)

func main() {
	cfg := config.Load()
	s, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("failed to create server: %v", err)
	}
	addr := ":" + cfg.Port
	log.Printf("FINCH server listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, s.Router()))
}
