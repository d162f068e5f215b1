// Package main implements the OpenCGA command line client. It talks to a
// running catalog daemon over REST and maps catalog errors onto process
// exit codes.
package main

import (
	"fmt"
	"os"

	"github.com/nicholsn/opencga/internal/common"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(common.ExitCode(err))
	}
}
