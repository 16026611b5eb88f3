// Package main is the entry point for the BuildSage entitlement service.
package main

import (
	"github.com/joho/godotenv"
)

func main() {
	// Optional .env for local development; real deployments set env vars.
	_ = godotenv.Load()

	Execute()
}
