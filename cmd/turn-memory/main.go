package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/rcliao/turn-memory/internal/cli"
)

func main() {
	// A missing .env is fine; the environment and config.toml still apply.
	_ = godotenv.Load()

	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
