// SPDX-License-Identifier: Apache-2.0

// Package extract derives failure metadata from raw test-runner output.
//
// Extraction is a sequence of independent, named rules applied in a fixed
// order. Each rule only fills gaps: fields already present in the metadata
// bag are never overwritten, so caller-supplied values always win and the
// extractor is idempotent.
package extract

import (
	"github.com/jllopis/flakewatch/pkg/model"
)

// Rule is one named extraction step. Rules read the scratch state and write
// missing metadata fields; they must leave populated fields alone.
type Rule struct {
	Name  string
	Apply func(*scratch)
}

// scratch is the per-record working state shared by the rule chain.
type scratch struct {
	meta *model.FailureMetadata

	// message is the effective error text: the structured payload's message
	// when the record carries one, the raw errorMessage otherwise.
	message string
	stack   string

	// snippets are candidate code excerpts for assertion parsing.
	snippets []string
}

// Extractor runs the rule chain over failure records.
type Extractor struct {
	rules []Rule
}

// NewExtractor builds an extractor with the default rule chain. The order of
// the chain is part of the contract: later rules never overwrite earlier hits.
func NewExtractor() *Extractor {
	return &Extractor{rules: []Rule{
		{Name: "structured-payload", Apply: applyStructuredPayload},
		{Name: "snippet-assertions", Apply: applySnippetAssertions},
		{Name: "stack-line", Apply: applyStackLine},
		{Name: "message-locator", Apply: applyMessageLocator},
		{Name: "message-matcher", Apply: applyMessageMatcher},
		{Name: "message-timeout", Apply: applyMessageTimeout},
		{Name: "message-operands", Apply: applyMessageOperands},
		{Name: "backtick-snippet", Apply: applyBacktickSnippet},
		{Name: "run-id", Apply: applyRunID},
	}}
}

// WithRule appends an extra rule after the default chain.
func (e *Extractor) WithRule(rule Rule) *Extractor {
	e.rules = append(e.rules, rule)
	return e
}

// Extract returns a new failure record with augmented metadata. The input
// record is not mutated.
func (e *Extractor) Extract(failure model.TestFailure) model.TestFailure {
	s := &scratch{
		meta:    failure.Metadata.Clone(),
		message: failure.ErrorMessage,
		stack:   failure.ErrorStack,
	}
	if s.meta.ErrorSnippet != "" {
		s.snippets = append(s.snippets, s.meta.ErrorSnippet)
	}

	for _, rule := range e.rules {
		rule.Apply(s)
	}

	out := failure
	if s.meta.IsEmpty() {
		out.Metadata = nil
	} else {
		out.Metadata = s.meta
	}
	return out
}

// ExtractAll enriches every record of a pass, preserving input order.
func (e *Extractor) ExtractAll(failures []model.TestFailure) []model.TestFailure {
	out := make([]model.TestFailure, len(failures))
	for i := range failures {
		out[i] = e.Extract(failures[i])
	}
	return out
}
