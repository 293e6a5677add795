package main

import (
	"github.com/joho/godotenv"

	"github.com/mvp-joe/see-the-code/internal/cli"
)

func main() {
	// A missing .env file is normal
	_ = godotenv.Load()
	cli.Execute()
}
