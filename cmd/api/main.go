package main

import (
	"os"

	_ "github.com/joho/godotenv/autoload"
)

// @title Contract API
// @version 1.0
// @BasePath /
func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
