// Copyright (C) 2025 Wizel AI (engineering@wizel.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package sanitizer

import (
	"log/slog"
	"regexp"
	"strings"
)

// RefusalMessage replaces a question that is itself a prompt-extraction
// attempt. The wording deliberately matches no sanitization rule, so
// sanitizing a sanitized question is always a no-op.
const RefusalMessage = "I can only help with marketing analytics questions about your connected stores."

// maxFindingBytes bounds how much matched text lands in logs.
const maxFindingBytes = 64

var (
	multiNewline = regexp.MustCompile(`\n{3,}`)
	multiSpace   = regexp.MustCompile(`[ \t]{2,}`)
)

// Sanitizer applies the rule set to incoming questions.
//
// # Thread Safety
//
// Sanitizer is safe for concurrent use: the rule set is immutable after
// construction and Sanitize holds no mutable state.
type Sanitizer struct {
	rules  *RuleSet
	strict bool
	logger *slog.Logger
}

// Option configures a Sanitizer.
type Option func(*Sanitizer)

// WithStrict enables strict mode: flagged matches are redacted instead
// of passed through.
func WithStrict(strict bool) Option {
	return func(s *Sanitizer) { s.strict = strict }
}

// WithLogger sets the logger used for finding reports.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sanitizer) { s.logger = logger }
}

// New creates a Sanitizer over a compiled rule set. Pass nil to use the
// embedded rules.
func New(rules *RuleSet, opts ...Option) (*Sanitizer, error) {
	if rules == nil {
		var err error
		rules, err = LoadEmbeddedRules()
		if err != nil {
			return nil, err
		}
	}
	s := &Sanitizer{
		rules:  rules,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Sanitize cleans a question. It never fails: the returned Result always
// carries a usable Clean string, and Sanitize(Sanitize(q).Clean) equals
// Sanitize(q).Clean.
func (s *Sanitizer) Sanitize(question string) Result {
	result := Result{Clean: question}
	if question == "" {
		return result
	}

	for i := range s.rules.Rules {
		rule := &s.rules.Rules[i]
		match := rule.compiled.FindString(result.Clean)
		if match == "" {
			continue
		}
		result.Findings = append(result.Findings, Finding{
			RuleID: rule.ID,
			Action: rule.Action,
			Match:  truncate(match, maxFindingBytes),
		})

		switch rule.Action {
		case ActionReplace:
			// The whole question is an extraction attempt. Nothing
			// downstream should see any of it.
			s.logger.Warn("prompt extraction attempt blocked", "rule", rule.ID)
			result.Clean = RefusalMessage
			result.Modified = true
			result.PromptExtraction = true
			return result
		case ActionRemove:
			s.logger.Warn("admin directive stripped from question", "rule", rule.ID)
			result.Clean = rule.compiled.ReplaceAllString(result.Clean, " ")
			result.Modified = true
		case ActionFlag:
			s.logger.Info("suspicious phrasing in question", "rule", rule.ID)
			if s.strict {
				result.Clean = rule.compiled.ReplaceAllString(result.Clean, " ")
				result.Modified = true
			}
		}
	}

	result.Clean = normalizeWhitespace(result.Clean)
	return result
}

// SanitizeList cleans caller-supplied identifier lists, dropping entries
// that become empty after cleaning.
func (s *Sanitizer) SanitizeList(values []string) []string {
	cleaned := make([]string, 0, len(values))
	for _, v := range values {
		c := normalizeWhitespace(v)
		if c != "" {
			cleaned = append(cleaned, c)
		}
	}
	return cleaned
}

// normalizeWhitespace collapses space runs, caps consecutive newlines at
// two, and trims the edges. Idempotent.
func normalizeWhitespace(s string) string {
	s = multiSpace.ReplaceAllString(s, " ")
	s = multiNewline.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
