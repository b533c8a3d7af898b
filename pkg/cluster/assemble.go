// SPDX-License-Identifier: Apache-2.0

package cluster

import (
	"fmt"
	"sort"
	"time"

	"github.com/jllopis/flakewatch/pkg/model"
)

// errorMessageLimit caps the length of the per-member error messages kept in
// cluster metadata, in code points.
const errorMessageLimit = 200

// snippetSummaryLimit caps the snippet excerpt used in failurePattern.
const snippetSummaryLimit = 100

// Assembler turns DBSCAN index sets into FailureCluster records.
type Assembler struct {
	// MinClusterSize discards clusters with fewer members.
	MinClusterSize int

	// Now supplies the pass date for deterministic cluster ids.
	// time.Now when nil.
	Now func() time.Time
}

// Assemble builds the cluster records for the discovered index sets over the
// pass's failure slice. Clusters below MinClusterSize are discarded; ids are
// assigned from the pass date and the cluster's position in the output.
func (a *Assembler) Assemble(indexSets [][]int, failures []model.TestFailure) []model.FailureCluster {
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	baseKey := now().Format("2006-01-02")

	var out []model.FailureCluster
	for _, set := range indexSets {
		if len(set) < a.MinClusterSize {
			continue
		}
		members := make([]model.TestFailure, len(set))
		for i, idx := range set {
			members[i] = failures[idx]
		}
		c := buildCluster(members)
		c.ID = fmt.Sprintf("%s-%d", baseKey, len(out))
		out = append(out, c)
	}
	return out
}

func buildCluster(members []model.TestFailure) model.FailureCluster {
	// Sort members by timestamp ascending with a stable tiebreak on id; the
	// sorted order drives the temporal stats and the metadata arrays.
	sort.SliceStable(members, func(i, j int) bool {
		if members[i].Timestamp.Equal(members[j].Timestamp) {
			return members[i].ID < members[j].ID
		}
		return members[i].Timestamp.Before(members[j].Timestamp)
	})

	threshold := ceilHalf(len(members))
	patterns := model.CommonPatterns{
		FilePaths: commonStrings(members, threshold, func(f model.TestFailure) string {
			return f.TestFilePath
		}),
		LineNumbers: commonInts(members, threshold, func(f model.TestFailure) *int {
			if f.Metadata == nil {
				return nil
			}
			return f.Metadata.LineNumber
		}),
		CodeSnippets: commonStrings(members, threshold, func(f model.TestFailure) string {
			if f.Metadata == nil {
				return ""
			}
			return f.Metadata.ErrorSnippet
		}),
		Locators: commonStrings(members, threshold, func(f model.TestFailure) string {
			if f.Metadata == nil {
				return ""
			}
			return f.Metadata.Locator
		}),
		Matchers: commonStrings(members, threshold, func(f model.TestFailure) string {
			if f.Metadata == nil {
				return ""
			}
			return f.Metadata.Matcher
		}),
		Timeouts: commonInts(members, threshold, func(f model.TestFailure) *int {
			if f.Metadata == nil {
				return nil
			}
			return f.Metadata.Timeout
		}),
	}

	meta := model.ClusterMetadata{
		FailureCount: len(members),
		FirstSeen:    members[0].Timestamp,
		LastSeen:     members[len(members)-1].Timestamp,
	}
	if len(members) >= 2 {
		var total float64
		for i := 1; i < len(members); i++ {
			total += float64(members[i].Timestamp.Sub(members[i-1].Timestamp).Milliseconds())
		}
		avg := total / float64(len(members)-1)
		meta.AverageTimeBetweenFailures = &avg
	}
	for _, m := range members {
		meta.FailureIDs = append(meta.FailureIDs, m.ID)
		meta.FailureTimestamps = append(meta.FailureTimestamps, m.Timestamp)
		meta.ErrorMessages = append(meta.ErrorMessages, model.TruncateMessage(m.ErrorMessage, errorMessageLimit))
		if m.Metadata != nil && m.Metadata.RunID != "" {
			// Duplicates stay: run multiplicity matters for auditing.
			meta.RunIDs = append(meta.RunIDs, m.Metadata.RunID)
		}
	}

	return model.FailureCluster{
		Failures:         members,
		CommonPatterns:   patterns,
		Metadata:         meta,
		FailurePattern:   failurePattern(patterns),
		AssertionPattern: assertionPattern(patterns),
	}
}

func failurePattern(p model.CommonPatterns) string {
	if len(p.FilePaths) > 0 && len(p.LineNumbers) > 0 {
		return fmt.Sprintf("Common failure at %s:%d", p.FilePaths[0], p.LineNumbers[0])
	}
	if len(p.CodeSnippets) > 0 {
		snippet := p.CodeSnippets[0]
		if runes := []rune(snippet); len(runes) > snippetSummaryLimit {
			return fmt.Sprintf("Common code pattern: %s...", string(runes[:snippetSummaryLimit]))
		}
		return fmt.Sprintf("Common code pattern: %s", snippet)
	}
	return "Similar test failures"
}

func assertionPattern(p model.CommonPatterns) string {
	switch {
	case len(p.Locators) > 0 && len(p.Matchers) > 0:
		s := fmt.Sprintf("%s on %s", p.Matchers[0], p.Locators[0])
		if len(p.Timeouts) > 0 {
			s += fmt.Sprintf(" (%dms timeout)", p.Timeouts[0])
		}
		return s
	case len(p.Locators) > 0:
		return fmt.Sprintf("Common locator: %s", p.Locators[0])
	case len(p.Matchers) > 0:
		return fmt.Sprintf("Common matcher: %s", p.Matchers[0])
	default:
		return ""
	}
}

// ceilHalf is ceil(0.5*n).
func ceilHalf(n int) int {
	return (n + 1) / 2
}

// commonStrings tallies the extracted value per member and keeps, in
// first-seen order, the values reaching the threshold. Empty values do not
// participate.
func commonStrings(members []model.TestFailure, threshold int, get func(model.TestFailure) string) []string {
	counts := make(map[string]int)
	var order []string
	for _, m := range members {
		v := get(m)
		if v == "" {
			continue
		}
		if counts[v] == 0 {
			order = append(order, v)
		}
		counts[v]++
	}
	var out []string
	for _, v := range order {
		if counts[v] >= threshold {
			out = append(out, v)
		}
	}
	return out
}

func commonInts(members []model.TestFailure, threshold int, get func(model.TestFailure) *int) []int {
	counts := make(map[int]int)
	var order []int
	for _, m := range members {
		p := get(m)
		if p == nil {
			continue
		}
		if counts[*p] == 0 {
			order = append(order, *p)
		}
		counts[*p]++
	}
	var out []int
	for _, v := range order {
		if counts[v] >= threshold {
			out = append(out, v)
		}
	}
	return out
}
