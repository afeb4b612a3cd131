// Command courier signs a commit-metadata payload and delivers it to the
// ingestion endpoint.
//
// Usage:
//
//	courier deliver [-payload file] [-started-at time] [flags]
//	courier replay  [flags] <dlq-id>
//	courier dlq     list|purge [flags]
//	courier secret
//
// The signing secret is read from COURIER_SECRET. Setting
// OTEL_EXPORTER_OTLP_ENDPOINT exports delivery traces over OTLP/HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command line and returns the process exit status.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root := newRootCommand(stdin, stdout, stderr)
	if err := root.Execute(ctx, args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
