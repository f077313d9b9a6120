package main

import (
	"os"

	"github.com/Rohianon/chatcommerce/cmd/botctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
