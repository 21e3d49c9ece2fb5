package main

import (
	"os"

	"github.com/Invisible042/multi-ai-user-debates/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
