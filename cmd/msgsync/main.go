// Command msgsync replays event logs through a synchronizer.
package main

import (
	"fmt"
	"os"

	"github.com/randalmurphal/msgsync/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
