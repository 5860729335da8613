package main

import (
	"fmt"
	"os"

	"github.com/tphakala/seamless-recorder/cmd"
	"github.com/tphakala/seamless-recorder/internal/conf"
)

func main() {
	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cmd.RootCommand(settings).Execute(); err != nil {
		os.Exit(1)
	}
}
