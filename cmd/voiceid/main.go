// Command voiceid runs the speaker-identification services: the node
// registry, the dispatcher, and worker nodes.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	_ "github.com/701789262a/backend-dailychat/discovery/consul"
	_ "github.com/701789262a/backend-dailychat/discovery/static"
	_ "github.com/701789262a/backend-dailychat/storage/local"
	_ "github.com/701789262a/backend-dailychat/storage/s3"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
