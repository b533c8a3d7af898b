// SPDX-License-Identifier: Apache-2.0

package model

import (
	"strings"
	"testing"
	"time"

	"github.com/jllopis/flakewatch/pkg/errors"
)

func validFailure() TestFailure {
	return TestFailure{
		ID:           "f-1",
		TestTitle:    "Login button should be visible",
		TestFilePath: "tests/auth/login.spec.ts",
		ErrorMessage: "Error: expect(locator).toBeVisible() failed",
		Timestamp:    time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
	}
}

func TestValidateAccepts(t *testing.T) {
	f := validFailure()
	if err := f.Validate(); err != nil {
		t.Fatalf("expected valid record, got %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*TestFailure)
		field  string
	}{
		{"missing id", func(f *TestFailure) { f.ID = "" }, "id"},
		{"missing title", func(f *TestFailure) { f.TestTitle = "" }, "testTitle"},
		{"missing file path", func(f *TestFailure) { f.TestFilePath = "" }, "testFilePath"},
		{"missing error message", func(f *TestFailure) { f.ErrorMessage = "" }, "errorMessage"},
		{"zero timestamp", func(f *TestFailure) { f.Timestamp = time.Time{} }, "timestamp"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := validFailure()
			tc.mutate(&f)
			err := f.Validate()
			if err == nil {
				t.Fatalf("expected rejection")
			}
			if errors.CodeOf(err) != errors.CodeValidation {
				t.Fatalf("expected CodeValidation, got %v", errors.CodeOf(err))
			}
			if !strings.Contains(err.Error(), tc.field) && tc.field != "id" {
				t.Fatalf("expected error naming %s, got %q", tc.field, err.Error())
			}
		})
	}
}

func TestValidateFailuresNamesFirstOffender(t *testing.T) {
	good := validFailure()
	bad := validFailure()
	bad.ID = "f-2"
	bad.ErrorMessage = ""

	err := ValidateFailures([]TestFailure{good, bad})
	if err == nil {
		t.Fatal("expected validation failure")
	}
	fe := errors.AsFlakewatchError(err)
	if fe.Context["index"] != 1 {
		t.Fatalf("expected offending index 1, got %v", fe.Context["index"])
	}
	if !strings.Contains(err.Error(), "f-2") {
		t.Fatalf("expected error naming record f-2, got %q", err.Error())
	}
}

func TestValidateFailuresEmpty(t *testing.T) {
	if err := ValidateFailures(nil); err != nil {
		t.Fatalf("empty input must validate, got %v", err)
	}
}

func TestMetadataClone(t *testing.T) {
	line := 42
	timeout := 5000
	m := &FailureMetadata{
		Locator:    "button.login",
		LineNumber: &line,
		Timeout:    &timeout,
	}
	c := m.Clone()
	*c.LineNumber = 99
	c.Locator = "other"
	if *m.LineNumber != 42 {
		t.Fatalf("clone must not share pointer fields, original line=%d", *m.LineNumber)
	}
	if m.Locator != "button.login" {
		t.Fatalf("clone must not mutate original")
	}

	var nilMeta *FailureMetadata
	if got := nilMeta.Clone(); got == nil || !got.IsEmpty() {
		t.Fatalf("nil clone must yield empty bag")
	}
}

func TestTruncateMessage(t *testing.T) {
	long := strings.Repeat("a", 1000)
	if got := TruncateMessage(long, 200); len([]rune(got)) != 200 {
		t.Fatalf("expected 200 code points, got %d", len([]rune(got)))
	}
	// Code points, not bytes.
	multi := strings.Repeat("é", 300)
	got := TruncateMessage(multi, 200)
	if len([]rune(got)) != 200 {
		t.Fatalf("expected 200 runes for multibyte input, got %d", len([]rune(got)))
	}
	if got := TruncateMessage("short", 200); got != "short" {
		t.Fatalf("short strings pass through, got %q", got)
	}
}
