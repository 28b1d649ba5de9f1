// Copyright (C) 2025 Wizel AI (engineering@wizel.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package sanitizer removes prompt-injection and extraction attempts
// from user questions before any model sees them.
//
// The rule set is data-driven: patterns live in an embedded YAML file
// (rules.yaml) and are compiled once at construction. Rules fall into
// three actions:
//
//   - remove:  the match is stripped from the question
//   - flag:    the match is recorded (and redacted in strict mode)
//   - replace: the whole question is replaced with a refusal
//
// Sanitize never fails. Malformed input degrades to a cleaned string,
// and sanitizing an already-clean string is a no-op.
package sanitizer

import (
	"fmt"
	"regexp"
	"sort"
)

// Action determines what happens when a rule matches.
type Action string

const (
	// ActionRemove strips the matched text from the question.
	ActionRemove Action = "remove"

	// ActionFlag records the match without altering the question,
	// except under strict mode where the match is redacted.
	ActionFlag Action = "flag"

	// ActionReplace replaces the entire question with a refusal
	// message. Used for prompt-extraction attempts.
	ActionReplace Action = "replace"
)

// Rule is one sanitization pattern loaded from the embedded rule file.
type Rule struct {
	// ID uniquely identifies the rule for logging and findings.
	ID string `yaml:"id"`

	// Description explains what the rule catches.
	Description string `yaml:"description"`

	// Action is one of remove, flag, replace.
	Action Action `yaml:"action"`

	// Pattern is the RE2 regular expression source.
	Pattern string `yaml:"pattern"`

	// Priority orders evaluation; higher runs first.
	Priority int `yaml:"priority"`

	// compiled is populated by RuleSet.Compile.
	compiled *regexp.Regexp
}

// RuleSet is the full collection of sanitization rules.
type RuleSet struct {
	Version string `yaml:"version"`
	Rules   []Rule `yaml:"rules"`
}

// Compile compiles every rule's pattern and sorts rules by descending
// priority. Must be called before the set is used.
func (rs *RuleSet) Compile() error {
	for i := range rs.Rules {
		re, err := regexp.Compile(rs.Rules[i].Pattern)
		if err != nil {
			return fmt.Errorf("rule %q: compile pattern: %w", rs.Rules[i].ID, err)
		}
		rs.Rules[i].compiled = re
	}
	sort.SliceStable(rs.Rules, func(i, j int) bool {
		return rs.Rules[i].Priority > rs.Rules[j].Priority
	})
	return nil
}

// Finding records one rule match during sanitization.
type Finding struct {
	// RuleID identifies which rule matched.
	RuleID string `json:"rule_id"`

	// Action is the action that was applied.
	Action Action `json:"action"`

	// Match is the matched text, truncated to 64 bytes for logs.
	Match string `json:"match"`
}

// Result is the outcome of sanitizing a question.
//
// Clean always holds a usable question string; callers never need to
// check an error.
type Result struct {
	// Clean is the sanitized question.
	Clean string `json:"clean"`

	// Modified reports whether anything was removed or replaced.
	Modified bool `json:"modified"`

	// PromptExtraction reports that the whole question was replaced
	// with the refusal message.
	PromptExtraction bool `json:"prompt_extraction"`

	// Findings lists every rule that matched, in evaluation order.
	Findings []Finding `json:"findings,omitempty"`
}
