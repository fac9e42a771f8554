// Command tracker-sync pulls tracker issues into a local store and
// computes delivery-lifecycle metrics from the synced history.
package main

import (
	"fmt"
	"os"

	"github.com/evalgo/tracker-sync/internal/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
