package runs

import "github.com/JaimeStill/sectional/pkg/openapi"

type spec struct {
	List      *openapi.Operation
	Find      *openapi.Operation
	Artifacts *openapi.Operation
	Artifact  *openapi.Operation
	Create    *openapi.Operation
	Delete    *openapi.Operation
}

// Spec documents the run endpoints.
var Spec = spec{
	List: &openapi.Operation{
		OperationID: "listRuns",
		Summary:     "List runs",
		Description: "Returns a page of categorization runs, newest first unless sort says otherwise.",
		Tags:        []string{"Runs"},
		Parameters: []*openapi.Parameter{
			openapi.QueryParam("page", "integer", "Page number (1-indexed)", false),
			openapi.QueryParam("page_size", "integer", "Results per page", false),
			openapi.QueryParam("search", "string", "Matches filename or profile", false),
			openapi.QueryParam("sort", "string", "Comma-separated sort fields. Prefix with - for descending", false),
			openapi.QueryParam("status", "string", "aligned, unaligned or unreferenced", false),
			openapi.QueryParam("filename", "string", "Case-insensitive filename contains", false),
			openapi.QueryParam("profile", "string", "Section profile name", false),
			openapi.QueryParam("aligned", "boolean", "Alignment outcome", false),
			openapi.QueryParam("min_score", "number", "Inclusive lower bound on the alignment score", false),
			openapi.QueryParam("created_by", "string", "Subject of the token that created the run", false),
		},
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Page of runs", "RunPage"),
			401: openapi.ResponseRef("Unauthorized"),
		},
		Security: openapi.BearerAuth,
	},
	Find: &openapi.Operation{
		OperationID: "findRun",
		Summary:     "Find a run",
		Tags:        []string{"Runs"},
		Parameters:  []*openapi.Parameter{openapi.PathParam("id", "Run UUID")},
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Run", "Run"),
			400: openapi.ResponseRef("BadRequest"),
			404: openapi.ResponseRef("NotFound"),
		},
		Security: openapi.BearerAuth,
	},
	Artifacts: &openapi.Operation{
		OperationID: "listRunArtifacts",
		Summary:     "List run artifacts",
		Description: "Reports the storage key of every artifact and whether it is present.",
		Tags:        []string{"Runs"},
		Parameters:  []*openapi.Parameter{openapi.PathParam("id", "Run UUID")},
		Responses: map[int]*openapi.Response{
			200: {
				Description: "Artifacts in a fixed order",
				Content: map[string]*openapi.MediaType{
					"application/json": {Schema: openapi.ArraySchema("ArtifactInfo")},
				},
			},
			404: openapi.ResponseRef("NotFound"),
		},
		Security: openapi.BearerAuth,
	},
	Artifact: &openapi.Operation{
		OperationID: "getRunArtifact",
		Summary:     "Download a run artifact",
		Description: "source returns the uploaded document; fields, sections, statistics and result return JSON.",
		Tags:        []string{"Runs"},
		Parameters: []*openapi.Parameter{
			openapi.PathParam("id", "Run UUID"),
			{
				Name:     "name",
				In:       "path",
				Required: true,
				Schema: &openapi.Schema{
					Type: "string",
					Enum: []any{ArtifactSource, ArtifactFields, ArtifactSections, ArtifactStatistics, ArtifactResult},
				},
			},
		},
		Responses: map[int]*openapi.Response{
			200: {Description: "Artifact content"},
			400: openapi.ResponseRef("BadRequest"),
			404: openapi.ResponseRef("NotFound"),
		},
		Security: openapi.BearerAuth,
	},
	Create: &openapi.Operation{
		OperationID: "createRun",
		Summary:     "Categorize a document",
		Description: "Uploads a PDF form or JSON field list, runs the categorize, heal and learn cycle against the references, and stores the artifacts.",
		Tags:        []string{"Runs"},
		RequestBody: &openapi.RequestBody{
			Required: true,
			Content: map[string]*openapi.MediaType{
				"multipart/form-data": {
					Schema: &openapi.Schema{
						Type: "object",
						Properties: map[string]*openapi.Schema{
							"file":       {Type: "string", Format: "binary", Description: "PDF form or JSON field list"},
							"references": {Type: "string", Description: "Reference field counts JSON, as a value or a file"},
							"max_cycles": {Type: "integer", Description: "Cycle budget for this run"},
						},
						Required: []string{"file"},
					},
				},
			},
		},
		Responses: map[int]*openapi.Response{
			201: openapi.ResponseJSON("Created run", "Run"),
			400: openapi.ResponseRef("BadRequest"),
			401: openapi.ResponseRef("Unauthorized"),
			413: openapi.ResponseRef("PayloadTooLarge"),
		},
		Security: openapi.BearerAuth,
	},
	Delete: &openapi.Operation{
		OperationID: "deleteRun",
		Summary:     "Delete a run and its artifacts",
		Tags:        []string{"Runs"},
		Parameters:  []*openapi.Parameter{openapi.PathParam("id", "Run UUID")},
		Responses: map[int]*openapi.Response{
			204: {Description: "Run deleted"},
			404: openapi.ResponseRef("NotFound"),
		},
		Security: openapi.BearerAuth,
	},
}

// Schemas returns the component schemas referenced by Spec.
func Schemas() map[string]*openapi.Schema {
	return map[string]*openapi.Schema{
		"Run": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id":          {Type: "string", Format: "uuid"},
				"filename":    {Type: "string"},
				"profile":     {Type: "string"},
				"field_count": {Type: "integer"},
				"score":       {Type: "number", Description: "Percentage of referenced sections within threshold"},
				"aligned":     {Type: "boolean"},
				"status":      {Type: "string", Enum: []any{StatusAligned, StatusUnaligned, StatusUnreferenced}},
				"cycles":      {Type: "integer"},
				"best_cycle":  {Type: "integer"},
				"residual":    {Type: "integer", Description: "Fields left unknown after finalization"},
				"storage_key": {Type: "string"},
				"created_by":  {Type: "string"},
				"created_at":  {Type: "string", Format: "date-time"},
			},
		},
		"ArtifactInfo": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"name":      {Type: "string"},
				"key":       {Type: "string"},
				"available": {Type: "boolean"},
			},
		},
		"RunPage": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"data":        openapi.ArraySchema("Run"),
				"total":       {Type: "integer"},
				"page":        {Type: "integer"},
				"page_size":   {Type: "integer"},
				"total_pages": {Type: "integer"},
			},
		},
	}
}
