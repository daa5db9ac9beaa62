// Package api is spec.md §4.7's guest-facing snapshot assertion surface:
// assert_snapshot, assert_json_snapshot, assert_cmd_snapshot, the Command
// builder, and snapshot_settings scoping. It wires internal/snapshot/storage's
// compare/write state machine and internal/snapshot/inline's rewriter behind
// the handful of calls a guest test body actually makes.
package api

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/karva-go/karva/internal/guest"
	"github.com/karva-go/karva/internal/snapshot/inline"
	"github.com/karva-go/karva/internal/snapshot/storage"
)

// ErrNameAndInline is returned when a call supplies both name and inline,
// which spec.md §4.7 declares mutually exclusive.
var ErrNameAndInline = errors.New("api: name and inline are mutually exclusive")

// Options captures assert_snapshot's optional keyword arguments.
type Options struct {
	Name   string
	Inline *string
}

// Session holds the run-wide state every assertion needs: where the project
// root is (test files are relative to it, so snapshot files are written
// under it and the inline rewriter gets an absolute source path), whether
// --snapshot-update is active, and the rewriter
// implementation to drive on an inline accept-in-place.
type Session struct {
	ProjectRoot string
	UpdateMode  bool
	Rewriter    storage.InlineRewriter
}

// NewSession creates a Session ready to serve assertions for an entire
// worker run. rewriter may be nil if UpdateMode is false and no inline
// snapshot is ever exercised; AssertSnapshot returns an error if a nil
// Rewriter is needed.
func NewSession(projectRoot string, updateMode bool, rewriter storage.InlineRewriter) *Session {
	return &Session{ProjectRoot: projectRoot, UpdateMode: updateMode, Rewriter: rewriter}
}

// AssertSnapshot implements assert_snapshot(value, *, inline=None, name=None):
// serialize value the default way, and run it through the compare/write
// state machine.
func (s *Session) AssertSnapshot(tc *TestContext, value guest.Value, serializer guest.Serializer, opts Options) (storage.Result, error) {
	text, err := serializer.SerializeText(value)
	if err != nil {
		return storage.Result{}, fmt.Errorf("api: serializing snapshot value: %w", err)
	}

	return s.assert(tc, text, opts)
}

// AssertJSONSnapshot implements assert_json_snapshot(value, ...): serialize
// value as stable-key, 2-space-indented JSON, then run the same state
// machine.
func (s *Session) AssertJSONSnapshot(tc *TestContext, value guest.Value, serializer guest.Serializer, opts Options) (storage.Result, error) {
	text, err := serializer.SerializeJSON(value)
	if err != nil {
		return storage.Result{}, fmt.Errorf("api: serializing JSON snapshot value: %w", err)
	}

	return s.assert(tc, text, opts)
}

// assert drives spec.md §4.5 step 1-4 and §4.7's naming/mutual-exclusion
// rules for one assert_*_snapshot call, dispatching to the inline or
// on-disk .snap path depending on opts.Inline.
func (s *Session) assert(tc *TestContext, content string, opts Options) (storage.Result, error) {
	if opts.Name != "" && opts.Inline != nil {
		return storage.Result{}, ErrNameAndInline
	}

	tc.names.AllowDuplicates = tc.settings.AllowDuplicates()

	name, err := tc.names.Next(opts.Name, "")
	if err != nil {
		return storage.Result{}, err
	}

	filtered := tc.settings.Apply(content)

	if opts.Inline != nil {
		return s.assertInline(tc, name, filtered, *opts.Inline)
	}

	return s.assertFile(tc, name, filtered)
}

// assertFile is the committed-".snap"-file path of the compare/write state
// machine, reused from internal/snapshot/storage. In update mode a first
// write commits the .snap directly, so it is reported as Pass.
func (s *Session) assertFile(tc *TestContext, name, content string) (storage.Result, error) {
	snapPath := storage.SnapPath(filepath.Join(s.ProjectRoot, tc.File), name)
	meta := storage.SnapshotFile{
		Source:  sourceHeader(tc.File, tc.Line, name),
		Content: content,
	}

	result, err := storage.CompareOrWrite(snapPath, meta, s.UpdateMode)
	if err == nil && s.UpdateMode && result.Outcome == storage.WrittenNew {
		result.Outcome = storage.Pass
	}

	return result, err
}

// assertInline compares content against the guest-supplied inline= literal
// (dedented per spec.md §4.6) instead of a ".snap" file: on a match, nothing
// is written; on a mismatch in update mode, the rewriter splices the source
// in place immediately; otherwise a ".snap.new" carrying inline_source/
// inline_line metadata is written for a later `snapshot accept`.
func (s *Session) assertInline(tc *TestContext, name, content, inlineLiteral string) (storage.Result, error) {
	expected := inline.Dedent(inlineLiteral)

	if storage.TrimTrailing(expected) == storage.TrimTrailing(content) {
		return storage.Result{Outcome: storage.Pass}, nil
	}

	absSource, err := filepath.Abs(filepath.Join(s.ProjectRoot, tc.File))
	if err != nil {
		return storage.Result{}, fmt.Errorf("api: resolving source path for %s: %w", tc.File, err)
	}

	if s.UpdateMode {
		if s.Rewriter == nil {
			return storage.Result{}, errors.New("api: update mode requires a non-nil InlineRewriter")
		}

		if err := s.Rewriter.Rewrite(absSource, int(tc.Line), tc.functionName(), content); err != nil {
			return storage.Result{}, fmt.Errorf("api: rewriting inline snapshot: %w", err)
		}

		return storage.Result{Outcome: storage.Pass}, nil
	}

	meta := storage.SnapshotFile{
		Source:       sourceHeader(tc.File, tc.Line, name),
		InlineSource: absSource,
		InlineLine:   int(tc.Line),
		Content:      content,
	}

	if err := storage.WriteFile(storage.PendingPath(filepath.Join(s.ProjectRoot, tc.File), name), meta); err != nil {
		return storage.Result{}, fmt.Errorf("api: writing pending inline snapshot: %w", err)
	}

	return storage.Result{Outcome: storage.Mismatch, Diff: storage.Diff(expected, content)}, nil
}

func sourceHeader(file string, line uint, name string) string {
	return fmt.Sprintf("%s:%d::%s", file, line, name)
}
