package main

import (
	"fmt"
	"os"

	"github.com/turtacn/Tandem/internal/cli"
	"github.com/turtacn/Tandem/pkg/logger"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			if logger.Log != nil {
				logger.Log.Error("Panic recovered", "panic", r)
			} else {
				fmt.Fprintf(os.Stderr, "Panic recovered: %v\n", r)
			}
			os.Exit(1)
		}
	}()

	os.Exit(cli.Execute())
}

// Personal.AI order the ending
