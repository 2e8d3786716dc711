package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/pyrite-audit/pyrite/internal/app"
	"github.com/pyrite-audit/pyrite/internal/cli"
)

func main() {
	err := app.BuildRoot().Execute()
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, err)
	var ee *cli.ExitError
	if errors.As(err, &ee) {
		os.Exit(ee.Code)
	}
	os.Exit(2)
}
