package main

import (
	"os"

	"github.com/nytrohq/interview-screener/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
