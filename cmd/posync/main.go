package main

import (
	"fmt"
	"os"

	"github.com/roach88/posync/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "posync:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
