// SPDX-License-Identifier: Apache-2.0

package embed

import (
	"testing"
	"time"

	"github.com/jllopis/flakewatch/pkg/model"
)

func TestBuildContextFull(t *testing.T) {
	line := 42
	timeout := 5000
	f := model.TestFailure{
		ID:           "f-1",
		TestTitle:    "Login button should be visible",
		TestFilePath: "tests/auth/login.spec.ts",
		ErrorMessage: "Error: expect(locator).toBeVisible() failed",
		Timestamp:    time.Now(),
		Metadata: &model.FailureMetadata{
			ProjectName:   "chromium",
			SuiteName:     "auth",
			LineNumber:    &line,
			Locator:       "button.login",
			Matcher:       "toBeVisible",
			ActualValue:   "hidden",
			ExpectedValue: "visible",
			Timeout:       &timeout,
			ErrorSnippet:  "await expect(button).toBeVisible()",
		},
	}

	want := "Test: Login button should be visible\n" +
		"File: tests/auth/login.spec.ts\n" +
		"Project: chromium\n" +
		"Suite: auth\n" +
		"Line: 42\n" +
		"Locator: button.login\n" +
		"Matcher: toBeVisible\n" +
		"Actual: \"hidden\"\n" +
		"Expected: \"visible\"\n" +
		"Timeout: 5000ms\n" +
		"Code: await expect(button).toBeVisible()\n" +
		"Error: Error: expect(locator).toBeVisible() failed"

	if got := BuildContext(f); got != want {
		t.Fatalf("context mismatch:\n got: %q\nwant: %q", got, want)
	}
}

func TestBuildContextMinimal(t *testing.T) {
	f := model.TestFailure{
		ID:           "f-2",
		TestTitle:    "adds numbers",
		TestFilePath: "tests/math.spec.ts",
		ErrorMessage: "expected 2, got 3",
		Timestamp:    time.Now(),
	}

	want := "Test: adds numbers\nFile: tests/math.spec.ts\nError: expected 2, got 3"
	if got := BuildContext(f); got != want {
		t.Fatalf("minimal context mismatch:\n got: %q\nwant: %q", got, want)
	}
}

func TestBuildContextSkipsAbsentFields(t *testing.T) {
	timeout := 100
	f := model.TestFailure{
		TestTitle:    "t",
		TestFilePath: "f",
		ErrorMessage: "e",
		Metadata:     &model.FailureMetadata{Timeout: &timeout},
	}
	want := "Test: t\nFile: f\nTimeout: 100ms\nError: e"
	if got := BuildContext(f); got != want {
		t.Fatalf("sparse context mismatch:\n got: %q\nwant: %q", got, want)
	}
}

func TestBuildContextsOrder(t *testing.T) {
	fs := []model.TestFailure{
		{TestTitle: "a", TestFilePath: "fa", ErrorMessage: "ea"},
		{TestTitle: "b", TestFilePath: "fb", ErrorMessage: "eb"},
	}
	got := BuildContexts(fs)
	if len(got) != 2 || got[0] != "Test: a\nFile: fa\nError: ea" || got[1] != "Test: b\nFile: fb\nError: eb" {
		t.Fatalf("unexpected contexts: %q", got)
	}
}
