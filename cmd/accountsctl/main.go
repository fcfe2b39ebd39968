// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command accountsctl is the operator tool for the accounts service.
//
// It applies migrations and runs the retention sweeps that the API server
// never runs on its own: expiring stale registrations, pruning the failed
// login audit, closing idle sessions and deleting spent reset tokens.
package main

import (
	"fmt"
	"os"

	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/constants"
)

// Version information set at build time.
var (
	commit = "unknown"
	date   = "unknown"
)

func main() {
	cmd := NewRootCmd(postgresBackend{})
	cmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", constants.AppVersion, commit, date)

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
