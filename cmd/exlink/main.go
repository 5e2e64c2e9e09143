package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/exlink/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "exlink: %v\n", err)
		os.Exit(1)
	}
}
