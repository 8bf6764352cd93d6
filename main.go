package main

import (
	"os"

	"modio-mod-indexer/cmd"
	"modio-mod-indexer/logger"

	_ "go.uber.org/automaxprocs"
)

func main() {
	err := cmd.Execute()
	logger.Sync() // Ensure logs are flushed on exit
	if err != nil {
		os.Exit(1)
	}
}
