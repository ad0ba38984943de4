package main

import (
	"os"

	"github.com/perpdex-labs/perpctl/internal/app"
)

func main() {
	runner := app.NewRunner()
	os.Exit(runner.Run(os.Args[1:]))
}
