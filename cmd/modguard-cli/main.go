package main

import (
	"github.com/nholloway/modguard/cmd/modguard-cli/cmd"
	"github.com/nholloway/modguard/internal/logging"
)

func main() {
	logging.New()
	cmd.Execute()
}
