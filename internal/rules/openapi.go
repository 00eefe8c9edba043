package rules

import "github.com/JaimeStill/sectional/pkg/openapi"

type spec struct {
	List    *openapi.Operation
	Get     *openapi.Operation
	Add     *openapi.Operation
	Persist *openapi.Operation
	Reload  *openapi.Operation
}

var sectionParam = openapi.IntPathParam("section", "Section number")

// Spec documents the rule endpoints.
var Spec = spec{
	List: &openapi.Operation{
		OperationID: "listRuleSets",
		Summary:     "Summarize every section's rules",
		Tags:        []string{"Rules"},
		Responses: map[int]*openapi.Response{
			200: {
				Description: "Rule set summaries ordered by section",
				Content: map[string]*openapi.MediaType{
					"application/json": {Schema: openapi.ArraySchema("RuleSummary")},
				},
			},
		},
	},
	Get: &openapi.Operation{
		OperationID: "getRuleSet",
		Summary:     "Get the rule set of a section",
		Description: "Includes the profile's strict and hint patterns along with stored and learned rules.",
		Tags:        []string{"Rules"},
		Parameters:  []*openapi.Parameter{sectionParam},
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Rule set", "RuleSet"),
			400: openapi.ResponseRef("BadRequest"),
		},
	},
	Add: &openapi.Operation{
		OperationID: "addRules",
		Summary:     "Add rules to a section",
		Description: "Every pattern must compile; a request with any invalid rule changes nothing.",
		Tags:        []string{"Rules"},
		Parameters:  []*openapi.Parameter{sectionParam},
		RequestBody: openapi.RequestBodyJSON("AddRulesRequest", true),
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Add result", "AddRulesResult"),
			400: openapi.ResponseRef("BadRequest"),
			401: openapi.ResponseRef("Unauthorized"),
		},
		Security: openapi.BearerAuth,
	},
	Persist: &openapi.Operation{
		OperationID: "persistRules",
		Summary:     "Write a section's rules to the rule source",
		Tags:        []string{"Rules"},
		Parameters:  []*openapi.Parameter{sectionParam},
		Responses: map[int]*openapi.Response{
			204: {Description: "Rules persisted"},
			400: openapi.ResponseRef("BadRequest"),
			401: openapi.ResponseRef("Unauthorized"),
		},
		Security: openapi.BearerAuth,
	},
	Reload: &openapi.Operation{
		OperationID: "reloadRules",
		Summary:     "Drop a section's cached rules",
		Description: "The next lookup reads the rule source again. Unpersisted learned rules are discarded.",
		Tags:        []string{"Rules"},
		Parameters:  []*openapi.Parameter{sectionParam},
		Responses: map[int]*openapi.Response{
			204: {Description: "Cache dropped"},
			400: openapi.ResponseRef("BadRequest"),
			401: openapi.ResponseRef("Unauthorized"),
		},
		Security: openapi.BearerAuth,
	},
}

// Schemas returns the component schemas referenced by Spec.
func Schemas() map[string]*openapi.Schema {
	entry := &openapi.Schema{
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"pattern": {Type: "string"},
			"base":    {Type: "integer"},
			"stride":  {Type: "integer"},
		},
	}
	return map[string]*openapi.Schema{
		"Rule": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"pattern":     {Type: "string", Description: "Regular expression matched against field text"},
				"flags":       {Type: "string", Description: "Regular expression flags (i, m, s, U)"},
				"subsection":  {Type: "string"},
				"entryRule":   entry,
				"confidence":  {Type: "number"},
				"description": {Type: "string"},
				"tier":        {Type: "string", Enum: []any{string(TierStrict), string(TierForm), string(TierLearned)}},
			},
			Required: []string{"pattern", "confidence"},
		},
		"RuleSet": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"include": openapi.ArraySchema("Rule"),
				"exclude": openapi.ArraySchema("Rule"),
			},
		},
		"RuleSummary": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"section": {Type: "integer"},
				"name":    {Type: "string"},
				"include": {Type: "integer"},
				"exclude": {Type: "integer"},
				"stored":  {Type: "boolean"},
			},
		},
		"AddRulesRequest": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"rules":   openapi.ArraySchema("Rule"),
				"persist": {Type: "boolean"},
			},
			Required: []string{"rules"},
		},
		"AddRulesResult": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"section":   {Type: "integer"},
				"added":     {Type: "integer"},
				"total":     {Type: "integer"},
				"persisted": {Type: "boolean"},
			},
		},
	}
}
