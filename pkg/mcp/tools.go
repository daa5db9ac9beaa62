package mcp

import (
	"encoding/json"
	"errors"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tool name constants.
const (
	ToolNameRunTests       = "karva_run_tests"
	ToolNameSnapshotReview = "karva_snapshot_review"
)

// Sentinel errors for tool input validation.
var (
	// ErrEmptyAction indicates the action parameter is empty.
	ErrEmptyAction = errors.New("action parameter is required and must not be empty")
	// ErrUnknownAction indicates the action parameter names an unsupported verb.
	ErrUnknownAction = errors.New("unknown snapshot action")
)

// Input types (auto-generate JSON schemas via struct tags).

// RunTestsInput is the input schema for the karva_run_tests tool.
type RunTestsInput struct {
	Paths        []string `json:"paths,omitempty"         jsonschema:"test paths to discover and run (default: current directory)"`
	TagExprs     []string `json:"tag_exprs,omitempty"      jsonschema:"boolean tag-filter expressions, one test must satisfy all of them"`
	NamePatterns []string `json:"name_patterns,omitempty"  jsonschema:"regex patterns a test's qualified name must match at least one of"`
	FailFast     bool     `json:"fail_fast,omitempty"      jsonschema:"stop scheduling further tests after the first failure"`
	Retries      int      `json:"retries,omitempty"        jsonschema:"additional attempts for a non-passing test before it is recorded as failed"`
	NoCache      bool     `json:"no_cache,omitempty"       jsonschema:"disable the duration-history cache used to balance worker partitions"`
}

// SnapshotReviewInput is the input schema for the karva_snapshot_review tool.
type SnapshotReviewInput struct {
	Action string   `json:"action"          jsonschema:"one of: list, accept, reject"`
	Paths  []string `json:"paths,omitempty" jsonschema:"paths to restrict the snapshot scan to (default: current directory)"`
}

// Output type (used as structured output for generic AddTool).

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

// Result helpers.

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}
