package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/karva-go/karva/internal/snapshot/inline"
	"github.com/karva-go/karva/internal/snapshot/storage"
)

const (
	snapshotActionList   = "list"
	snapshotActionAccept = "accept"
	snapshotActionReject = "reject"
)

// pendingSnapshotSummary is the JSON-friendly projection of a
// storage.PendingSnapshot this tool reports: the full SnapshotFile carries
// file content an agent rarely needs and that can be large.
type pendingSnapshotSummary struct {
	NewPath  string `json:"new_path"`
	SnapPath string `json:"snap_path"`
	Source   string `json:"source"`
	Inline   bool   `json:"inline"`
}

// snapshotReviewResult is the structured output of karva_snapshot_review.
type snapshotReviewResult struct {
	Action  string                   `json:"action"`
	Pending []pendingSnapshotSummary `json:"pending,omitempty"`
	Count   int                      `json:"count"`
}

// handleSnapshotReview processes karva_snapshot_review tool calls.
func handleSnapshotReview(
	_ context.Context,
	_ *mcpsdk.CallToolRequest,
	input SnapshotReviewInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if input.Action == "" {
		return errorResult(ErrEmptyAction)
	}

	roots := input.Paths
	if len(roots) == 0 {
		roots = []string{"."}
	}

	pending, err := storage.ListPending(roots, nil)
	if err != nil {
		return errorResult(fmt.Errorf("list pending snapshots: %w", err))
	}

	switch input.Action {
	case snapshotActionList:
		return jsonResult(snapshotReviewResult{Action: input.Action, Pending: summarizePending(pending), Count: len(pending)})
	case snapshotActionAccept:
		rewriter := inline.New()

		for _, p := range pending {
			if err := storage.Accept(p, rewriter); err != nil {
				return errorResult(fmt.Errorf("accept %s: %w", p.NewPath, err))
			}
		}

		return jsonResult(snapshotReviewResult{Action: input.Action, Count: len(pending)})
	case snapshotActionReject:
		for _, p := range pending {
			if err := storage.Reject(p); err != nil {
				return errorResult(fmt.Errorf("reject %s: %w", p.NewPath, err))
			}
		}

		return jsonResult(snapshotReviewResult{Action: input.Action, Count: len(pending)})
	default:
		return errorResult(fmt.Errorf("%w: %q", ErrUnknownAction, input.Action))
	}
}

func summarizePending(pending []storage.PendingSnapshot) []pendingSnapshotSummary {
	summaries := make([]pendingSnapshotSummary, len(pending))
	for i, p := range pending {
		summaries[i] = pendingSnapshotSummary{
			NewPath:  p.NewPath,
			SnapPath: p.SnapPath,
			Source:   p.Meta.Source,
			Inline:   p.Meta.IsInline(),
		}
	}

	return summaries
}
