package main

import (
	"log"

	"github.com/burnbox/server/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		log.Fatalf("burnbox: %v", err)
	}
}
