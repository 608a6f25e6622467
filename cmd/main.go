// cmd is the application entry point. It loads the environment and hands
// over to the cobra command tree.
package main

import (
	"os"

	"github.com/joho/godotenv"
)

// Build information injected via ldflags at build time.
var version = "dev"

func main() {
	// A missing .env file is fine; the environment may be set directly.
	_ = godotenv.Load()

	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
