package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/wikimedia/research-similar-users/internal/di"
	"github.com/wikimedia/research-similar-users/internal/structures"
)

func main() {
	flags := &structures.CliFlags{}
	flag.StringVar(&flags.ConfigPath, "c", "config.yaml", "path to the service configuration file")
	flag.BoolVar(&flags.DebugMode, "debug", false, "verbose output to stderr")
	flag.Parse()

	_, err := di.InitApp(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "similarusers: %s\n", err)
		os.Exit(1)
	}
}
