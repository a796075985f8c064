// liftsync keeps a local view of an elevator fleet in sync with the
// building backend. See internal/cli for the commands.
package main

import (
	"context"
	"os"

	"github.com/roach88/liftsync/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
