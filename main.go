package main

import (
	"fmt"
	"log"
	"os"

	"firmware-risk-scanner/cmd"
)

var (
	version = "1.0.0"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	// Default logger until the config is loaded
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Execute the root command
	if err := cmd.Execute(version, commit, date); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
