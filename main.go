package main

import (
	"log"

	"haka-futures-engine/app"
	"haka-futures-engine/config"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	application := app.New(cfg)
	if err := application.Start(); err != nil {
		log.Fatal(err)
	}
}
