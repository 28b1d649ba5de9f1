// Copyright (C) 2025 Wizel AI (engineering@wizel.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package mode

import "regexp"

// DataCategory names one class of analytics data a query may need.
type DataCategory string

const (
	CategoryCampaigns  DataCategory = "campaigns"
	CategoryFlows      DataCategory = "flows"
	CategoryRevenue    DataCategory = "revenue"
	CategoryProducts   DataCategory = "products"
	CategorySegments   DataCategory = "segments"
	CategoryTimeSeries DataCategory = "time_series"
)

// intentRule maps a question pattern to a data category. Rules are an
// ordered list so detection order is explicit and testable.
type intentRule struct {
	pattern  *regexp.Regexp
	category DataCategory
}

var intentRules = []intentRule{
	{regexp.MustCompile(`(?i)\b(?:campaigns?|emails?|sends?|broadcasts?|newsletters?)\b`), CategoryCampaigns},
	{regexp.MustCompile(`(?i)\b(?:flows?|automations?|welcome|abandon(?:ed)?|browse|win-?back)\b`), CategoryFlows},
	{regexp.MustCompile(`(?i)\b(?:revenue|sales|orders?|aov|average order|conversions?)\b`), CategoryRevenue},
	{regexp.MustCompile(`(?i)\b(?:products?|items?|skus?|bestsellers?|top selling)\b`), CategoryProducts},
	{regexp.MustCompile(`(?i)\b(?:segments?|audiences?|lists?|subscribers?|vip|customers?)\b`), CategorySegments},
	{regexp.MustCompile(`(?i)\b(?:trends?|over time|daily|weekly|growth|decline|compare)\b`), CategoryTimeSeries},
}

// DataRequirements describes which data categories a request needs and
// at what depth, after mode downgrades.
type DataRequirements struct {
	Categories map[DataCategory]bool `json:"categories"`
	Depth      DataDepth             `json:"depth"`
	TimeSeries bool                  `json:"time_series"`
	Segments   bool                  `json:"segments"`
	Products   bool                  `json:"products"`
	MaxRecords int                   `json:"max_records"`
}

// Needs reports whether a category survived detection and downgrade.
func (d DataRequirements) Needs(c DataCategory) bool {
	return d.Categories[c]
}

// DeriveRequirements detects data categories from the question and then
// applies the mode downgrades. The downgrade is unconditional: portfolio
// mode drops time series, segment, and product breakdowns no matter how
// explicitly the question asked for them.
//
// Questions matching no rule default to campaigns + revenue, the two
// categories nearly every marketing question touches.
func DeriveRequirements(question string, cfg Config) DataRequirements {
	req := DataRequirements{
		Categories: make(map[DataCategory]bool),
		Depth:      cfg.Depth,
		TimeSeries: cfg.TimeSeries,
		Segments:   cfg.Segments,
		Products:   cfg.Products,
		MaxRecords: cfg.MaxRecords,
	}

	for _, rule := range intentRules {
		if rule.pattern.MatchString(question) {
			req.Categories[rule.category] = true
		}
	}
	if len(req.Categories) == 0 {
		req.Categories[CategoryCampaigns] = true
		req.Categories[CategoryRevenue] = true
	}

	// Mode downgrades.
	if !cfg.TimeSeries {
		delete(req.Categories, CategoryTimeSeries)
	}
	if !cfg.Segments {
		delete(req.Categories, CategorySegments)
	}
	if !cfg.Products {
		delete(req.Categories, CategoryProducts)
	}
	return req
}

// PromptTemplate names the analysis prompt family for a request.
type PromptTemplate string

const (
	TemplatePortfolio  PromptTemplate = "portfolio"
	TemplateAutomation PromptTemplate = "automation"
	TemplateCampaign   PromptTemplate = "campaign"
	TemplateGeneral    PromptTemplate = "general"
)

// SelectTemplate picks the analysis prompt family. Portfolio mode
// always uses the portfolio template; single-source picks by detected
// intent, preferring automation over campaign detail.
func SelectTemplate(m Mode, req DataRequirements) PromptTemplate {
	if m == Portfolio {
		return TemplatePortfolio
	}
	switch {
	case req.Needs(CategoryFlows):
		return TemplateAutomation
	case req.Needs(CategoryCampaigns):
		return TemplateCampaign
	default:
		return TemplateGeneral
	}
}
