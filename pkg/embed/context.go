// SPDX-License-Identifier: Apache-2.0

package embed

import (
	"fmt"
	"strings"

	"github.com/jllopis/flakewatch/pkg/model"
)

// BuildContext renders one failure into the multi-line text used as
// embedding input. Field order and punctuation are a contract: embeddings
// stay comparable across runs only if the rendering never changes.
// Optional lines appear only when the underlying field is present.
func BuildContext(f model.TestFailure) string {
	var lines []string
	add := func(format string, args ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, args...))
	}

	add("Test: %s", f.TestTitle)
	add("File: %s", f.TestFilePath)

	if m := f.Metadata; m != nil {
		if m.ProjectName != "" {
			add("Project: %s", m.ProjectName)
		}
		if m.SuiteName != "" {
			add("Suite: %s", m.SuiteName)
		}
		if m.LineNumber != nil {
			add("Line: %d", *m.LineNumber)
		}
		if m.Locator != "" {
			add("Locator: %s", m.Locator)
		}
		if m.Matcher != "" {
			add("Matcher: %s", m.Matcher)
		}
		if m.ActualValue != "" {
			add(`Actual: "%s"`, m.ActualValue)
		}
		if m.ExpectedValue != "" {
			add(`Expected: "%s"`, m.ExpectedValue)
		}
		if m.Timeout != nil {
			add("Timeout: %dms", *m.Timeout)
		}
		if m.ErrorSnippet != "" {
			add("Code: %s", m.ErrorSnippet)
		}
	}

	add("Error: %s", f.ErrorMessage)
	return strings.Join(lines, "\n")
}

// BuildContexts renders a whole pass, preserving input order.
func BuildContexts(failures []model.TestFailure) []string {
	out := make([]string, len(failures))
	for i := range failures {
		out[i] = BuildContext(failures[i])
	}
	return out
}
