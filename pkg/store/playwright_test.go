// SPDX-License-Identifier: Apache-2.0

package store

import (
	"strings"
	"testing"
)

const sampleReport = `{
  "suites": [
    {
      "title": "auth",
      "file": "tests/auth/login.spec.ts",
      "suites": [
        {
          "title": "login form",
          "file": "tests/auth/login.spec.ts",
          "specs": [
            {
              "title": "shows the login button",
              "file": "tests/auth/login.spec.ts",
              "line": 12,
              "tests": [
                {
                  "projectName": "chromium",
                  "results": [
                    {
                      "status": "failed",
                      "duration": 5321,
                      "startTime": "2026-03-14T08:00:00.000Z",
                      "retry": 0,
                      "error": {
                        "message": "Error: expect(locator).toBeVisible() failed",
                        "stack": "    at tests/auth/login.spec.ts:14:22",
                        "snippet": "await expect(button).toBeVisible()",
                        "location": {"file": "tests/auth/login.spec.ts", "line": 14, "column": 22}
                      }
                    },
                    {
                      "status": "passed",
                      "duration": 900,
                      "startTime": "2026-03-14T08:01:00.000Z",
                      "retry": 1
                    }
                  ]
                }
              ]
            }
          ]
        }
      ],
      "specs": [
        {
          "title": "logout works",
          "file": "tests/auth/login.spec.ts",
          "line": 40,
          "tests": [
            {
              "projectName": "firefox",
              "results": [
                {
                  "status": "timedOut",
                  "duration": 30000,
                  "startTime": "2026-03-14T08:05:00.000Z",
                  "retry": 0,
                  "error": {"message": "Timeout 30000ms exceeded"}
                }
              ]
            }
          ]
        }
      ]
    }
  ]
}`

func TestParsePlaywrightReport(t *testing.T) {
	failures, err := ParsePlaywrightReport(strings.NewReader(sampleReport))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(failures) != 2 {
		t.Fatalf("expected 2 failures (passed retry ignored), got %d", len(failures))
	}

	first := failures[0]
	if first.TestTitle != "shows the login button" {
		t.Fatalf("unexpected title: %q", first.TestTitle)
	}
	if first.TestFilePath != "tests/auth/login.spec.ts" {
		t.Fatalf("unexpected file: %q", first.TestFilePath)
	}
	if first.ErrorMessage != "Error: expect(locator).toBeVisible() failed" {
		t.Fatalf("unexpected message: %q", first.ErrorMessage)
	}
	if first.Metadata.ProjectName != "chromium" {
		t.Fatalf("unexpected project: %q", first.Metadata.ProjectName)
	}
	if first.Metadata.SuiteName != "auth > login form" {
		t.Fatalf("unexpected suite: %q", first.Metadata.SuiteName)
	}
	if first.Metadata.LineNumber == nil || *first.Metadata.LineNumber != 14 {
		t.Fatalf("expected error-location line 14, got %v", first.Metadata.LineNumber)
	}
	if first.Metadata.ErrorSnippet != "await expect(button).toBeVisible()" {
		t.Fatalf("unexpected snippet: %q", first.Metadata.ErrorSnippet)
	}
	if first.Metadata.Duration == nil || *first.Metadata.Duration != 5321 {
		t.Fatalf("expected duration, got %v", first.Metadata.Duration)
	}
	if first.Timestamp.IsZero() {
		t.Fatalf("expected parsed startTime")
	}

	second := failures[1]
	if second.Metadata.SuiteName != "auth" {
		t.Fatalf("unexpected suite for top-level spec: %q", second.Metadata.SuiteName)
	}
	if second.Metadata.LineNumber == nil || *second.Metadata.LineNumber != 40 {
		t.Fatalf("expected spec line 40, got %v", second.Metadata.LineNumber)
	}

	// Every record is valid pipeline input.
	for _, f := range failures {
		if err := f.Validate(); err != nil {
			t.Fatalf("parsed record invalid: %v", err)
		}
	}

	// Ids are unique within the report.
	if failures[0].ID == failures[1].ID {
		t.Fatalf("ids must be unique: %q", failures[0].ID)
	}
}

func TestParsePlaywrightReportRejectsGarbage(t *testing.T) {
	if _, err := ParsePlaywrightReport(strings.NewReader("not json")); err == nil {
		t.Fatal("expected decode error")
	}
}
