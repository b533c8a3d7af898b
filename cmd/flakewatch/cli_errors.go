// Copyright 2026 © The Flakewatch Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/jllopis/flakewatch/pkg/errors"
)

// Exit codes: one per error kind so CI can branch on the failure class.
const (
	exitOK         = 0
	exitUsage      = 1
	exitConfig     = 2
	exitValidation = 3
	exitProvider   = 4
	exitStorage    = 5
	exitCancelled  = 6
)

func exitCode(err error) int {
	switch errors.CodeOf(err) {
	case errors.CodeConfig:
		return exitConfig
	case errors.CodeValidation:
		return exitValidation
	case errors.CodeProvider:
		return exitProvider
	case errors.CodeStorage:
		return exitStorage
	case errors.CodeCancelled:
		return exitCancelled
	default:
		return exitUsage
	}
}

// exitWith prints a one-line message naming the error kind and terminates
// with the kind's exit code.
func exitWith(err error, asJSON bool) {
	fe := errors.AsFlakewatchError(err)
	if asJSON {
		fmt.Fprintf(os.Stderr, `{"error":{"code":%q,"message":%q}}%s`, fe.Code, fe.Message, "\n")
	} else {
		fmt.Fprintf(os.Stderr, "Error [%s]: %s\n", fe.Code, fe.Message)
	}
	os.Exit(exitCode(err))
}
