// Command crmctl runs maintenance and background jobs for the CRM service.
package main

import (
	"fmt"
	"os"

	"github.com/ajharbinger/crm-pipeline/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
