// SPDX-License-Identifier: Apache-2.0

package store

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jllopis/flakewatch/pkg/errors"
	"github.com/jllopis/flakewatch/pkg/model"
)

// Playwright JSON reporter shapes, reduced to the fields the reader uses.
type pwReport struct {
	Suites []pwSuite `json:"suites"`
}

type pwSuite struct {
	Title  string    `json:"title"`
	File   string    `json:"file"`
	Suites []pwSuite `json:"suites"`
	Specs  []pwSpec  `json:"specs"`
}

type pwSpec struct {
	Title string   `json:"title"`
	File  string   `json:"file"`
	Line  int      `json:"line"`
	Tests []pwTest `json:"tests"`
}

type pwTest struct {
	ProjectName string     `json:"projectName"`
	Results     []pwResult `json:"results"`
}

type pwResult struct {
	Status    string    `json:"status"`
	Duration  int       `json:"duration"`
	StartTime time.Time `json:"startTime"`
	Error     *pwError  `json:"error"`
	Retry     int       `json:"retry"`
}

type pwError struct {
	Message  string `json:"message"`
	Stack    string `json:"stack"`
	Snippet  string `json:"snippet"`
	Location *struct {
		File   string `json:"file"`
		Line   int    `json:"line"`
		Column int    `json:"column"`
	} `json:"location"`
}

// ReadPlaywrightReport parses a Playwright JSON report file into failure
// records, one per failed test result.
func ReadPlaywrightReport(path string) ([]model.TestFailure, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.New(errors.CodeStorage, "open playwright report", err)
	}
	defer file.Close()
	return ParsePlaywrightReport(file)
}

// ParsePlaywrightReport parses Playwright JSON reporter output. Passed and
// skipped results are ignored; every failed, timed-out or interrupted result
// becomes one TestFailure, retries included.
func ParsePlaywrightReport(r io.Reader) ([]model.TestFailure, error) {
	var report pwReport
	if err := json.NewDecoder(r).Decode(&report); err != nil {
		return nil, errors.New(errors.CodeValidation, "decode playwright report", err)
	}

	var out []model.TestFailure
	for _, suite := range report.Suites {
		walkSuite(suite, "", &out)
	}
	return out, nil
}

func walkSuite(suite pwSuite, parent string, out *[]model.TestFailure) {
	name := suite.Title
	if name == "" {
		name = parent
	} else if parent != "" {
		name = parent + " > " + suite.Title
	}
	for _, child := range suite.Suites {
		walkSuite(child, name, out)
	}
	for _, spec := range suite.Specs {
		file := spec.File
		if file == "" {
			file = suite.File
		}
		for _, test := range spec.Tests {
			for _, result := range test.Results {
				if !failedStatus(result.Status) {
					continue
				}
				*out = append(*out, failureFromResult(spec, test, result, name, file, len(*out)))
			}
		}
	}
}

func failedStatus(status string) bool {
	switch status {
	case "failed", "timedOut", "interrupted":
		return true
	default:
		return false
	}
}

func failureFromResult(spec pwSpec, test pwTest, result pwResult, suiteName, file string, seq int) model.TestFailure {
	message := "test failed"
	var stack string
	meta := &model.FailureMetadata{
		ProjectName: test.ProjectName,
		SuiteName:   suiteName,
	}
	if result.Duration > 0 {
		d := result.Duration
		meta.Duration = &d
	}
	if spec.Line > 0 {
		line := spec.Line
		meta.LineNumber = &line
	}
	if e := result.Error; e != nil {
		if e.Message != "" {
			message = e.Message
		}
		stack = e.Stack
		meta.ErrorSnippet = e.Snippet
		if e.Location != nil && e.Location.Line > 0 {
			line := e.Location.Line
			meta.LineNumber = &line
		}
	}

	ts := result.StartTime
	if ts.IsZero() {
		ts = time.Now()
	}

	return model.TestFailure{
		ID:           fmt.Sprintf("%s:%d#%d.%d", file, spec.Line, seq, result.Retry),
		TestTitle:    spec.Title,
		TestFilePath: file,
		ErrorMessage: message,
		ErrorStack:   stack,
		Timestamp:    ts,
		Metadata:     meta,
	}
}
