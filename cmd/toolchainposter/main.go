// Command toolchainposter posts agent tool calls to Mattermost.
package main

import (
	"fmt"
	"os"

	"github.com/loganrenz/openclaw-mattermost-toolchainposter/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
