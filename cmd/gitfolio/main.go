package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"gitfolio/cmd/internal/app"
)

func main() {
	// A missing .env is fine; production injects real environment.
	_ = godotenv.Load()

	if err := app.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "gitfolio:", err)
		os.Exit(1)
	}
}
