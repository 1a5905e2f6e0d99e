package main

import (
	"log"

	"github.com/ridgeline-io/ridgeline/cmd/ridgelinectl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
