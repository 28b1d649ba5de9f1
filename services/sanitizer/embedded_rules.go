// Copyright (C) 2025 Wizel AI (engineering@wizel.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package sanitizer

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

// embeddedRules is the default rule file baked into the binary, so the
// service has a working rule set with zero external configuration.
//
//go:embed rules.yaml
var embeddedRules []byte

// LoadEmbeddedRules parses and compiles the embedded rule set.
func LoadEmbeddedRules() (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(embeddedRules, &rs); err != nil {
		return nil, fmt.Errorf("parse embedded rules: %w", err)
	}
	if err := rs.Compile(); err != nil {
		return nil, fmt.Errorf("compile embedded rules: %w", err)
	}
	return &rs, nil
}
