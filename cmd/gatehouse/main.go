// SPDX-FileCopyrightText: Copyright 2025 Corvidae Labs
// SPDX-License-Identifier: Apache-2.0

// Package main is the entry point for the gatehouse authorization server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/corvidae/gatehouse/cmd/gatehouse/app"
	"github.com/corvidae/gatehouse/pkg/logger"
)

func main() {
	// Create a context that will be canceled on signal
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer cancel()

	if err := app.NewRootCmd().ExecuteContext(ctx); err != nil {
		logger.Errorf("Error executing command: %v", err)
		os.Exit(1)
	}
}
