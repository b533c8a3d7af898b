// SPDX-License-Identifier: Apache-2.0

// Package model defines the shared data types for a Flakewatch detection pass.
package model

import (
	"time"

	"github.com/jllopis/flakewatch/pkg/errors"
)

// TestFailure is one observed failure of one test at one time.
type TestFailure struct {
	ID           string           `json:"id"`
	TestTitle    string           `json:"testTitle"`
	TestFilePath string           `json:"testFilePath"`
	ErrorMessage string           `json:"errorMessage"`
	ErrorStack   string           `json:"errorStack,omitempty"`
	Timestamp    time.Time        `json:"timestamp"`
	Metadata     *FailureMetadata `json:"metadata,omitempty"`
}

// FailureMetadata carries derived and caller-annotated fields. The bag is
// naturally sparse: every field is independently optional. Numeric fields
// are pointers so that zero and absent stay distinguishable; string fields
// treat empty and absent identically.
type FailureMetadata struct {
	ErrorSnippet  string `json:"errorSnippet,omitempty"`
	LineNumber    *int   `json:"lineNumber,omitempty"`
	ProjectName   string `json:"projectName,omitempty"`
	SuiteName     string `json:"suiteName,omitempty"`
	Locator       string `json:"locator,omitempty"`
	Matcher       string `json:"matcher,omitempty"`
	Timeout       *int   `json:"timeout,omitempty"`
	Duration      *int   `json:"duration,omitempty"`
	ActualValue   string `json:"actualValue,omitempty"`
	ExpectedValue string `json:"expectedValue,omitempty"`
	RunID         string `json:"runId,omitempty"`
	ReportLink    string `json:"reportLink,omitempty"`
}

// Clone returns a deep copy of the metadata bag. A nil receiver yields an
// empty bag, so extraction can always write into the result.
func (m *FailureMetadata) Clone() *FailureMetadata {
	out := &FailureMetadata{}
	if m == nil {
		return out
	}
	*out = *m
	if m.LineNumber != nil {
		v := *m.LineNumber
		out.LineNumber = &v
	}
	if m.Timeout != nil {
		v := *m.Timeout
		out.Timeout = &v
	}
	if m.Duration != nil {
		v := *m.Duration
		out.Duration = &v
	}
	return out
}

// IsEmpty reports whether no metadata field is set.
func (m *FailureMetadata) IsEmpty() bool {
	if m == nil {
		return true
	}
	return m.ErrorSnippet == "" && m.LineNumber == nil && m.ProjectName == "" &&
		m.SuiteName == "" && m.Locator == "" && m.Matcher == "" &&
		m.Timeout == nil && m.Duration == nil && m.ActualValue == "" &&
		m.ExpectedValue == "" && m.RunID == "" && m.ReportLink == ""
}

// Validate checks the record shape invariants: id, testTitle, testFilePath
// and errorMessage non-empty, timestamp valid. It does not mutate the record.
func (f *TestFailure) Validate() error {
	switch {
	case f.ID == "":
		return errors.New(errors.CodeValidation, "failure record missing id", nil)
	case f.TestTitle == "":
		return errors.Newf(errors.CodeValidation, "failure %s missing testTitle", f.ID).
			WithContext("record_id", f.ID).WithContext("field", "testTitle")
	case f.TestFilePath == "":
		return errors.Newf(errors.CodeValidation, "failure %s missing testFilePath", f.ID).
			WithContext("record_id", f.ID).WithContext("field", "testFilePath")
	case f.ErrorMessage == "":
		return errors.Newf(errors.CodeValidation, "failure %s missing errorMessage", f.ID).
			WithContext("record_id", f.ID).WithContext("field", "errorMessage")
	case f.Timestamp.IsZero():
		return errors.Newf(errors.CodeValidation, "failure %s has invalid timestamp", f.ID).
			WithContext("record_id", f.ID).WithContext("field", "timestamp")
	}
	return nil
}

// ValidateFailures validates a whole input set. Either every record is
// accepted or the first offending record is named and the pass fails.
func ValidateFailures(failures []TestFailure) error {
	for i := range failures {
		if err := failures[i].Validate(); err != nil {
			return errors.AsFlakewatchError(err).WithContext("index", i)
		}
	}
	return nil
}

// EmbeddedFailure is a TestFailure paired with its embedding vector.
// All embeddings in a single clustering pass share one dimensionality.
type EmbeddedFailure struct {
	TestFailure
	Embedding []float32 `json:"embedding"`
}
