package main

import (
	"log"

	"github.com/MrSnakeDoc/hilite/internal/app"
)

func main() {
	if err := app.New().Run(); err != nil {
		log.Fatalf("❌ hilite failed to start: %v", err)
	}
}
