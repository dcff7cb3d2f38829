package main

import (
	"errors"
	"os"

	"github.com/amaranthinecodices/rodep/src/cli/cmd"
)

func main() {
	err := cmd.Execute()
	if err == nil {
		return
	}
	var exitErr *cmd.ExitError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.Code)
	}
	os.Exit(cmd.ExitFatal)
}
