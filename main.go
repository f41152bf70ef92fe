package main

import (
	"github.com/joho/godotenv"

	"github.com/vegas-max/Titan2.0/internal/cli"
)

func main() {
	// Best effort: a missing .env file is fine, real environments set vars
	// directly.
	_ = godotenv.Load()

	cli.Execute()
}
