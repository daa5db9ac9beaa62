package fixtures

// Built-in fixture names, searched last by Resolve per spec.md §4.1.
const (
	BuiltinRequest     = "request"
	BuiltinTmpPath     = "tmp_path"
	BuiltinMonkeypatch = "monkeypatch"
	BuiltinCapfd       = "capfd"
)

// DefaultBuiltIns returns the FixtureDefs for the built-in fixtures named in
// spec.md §4.1 and elaborated in SPEC_FULL.md §4. Each has Callable == nil;
// the resolver and execution layer recognize a nil Callable as a BuiltIn
// node whose value is supplied directly by the worker (see
// internal/execution), not invoked through the guest.
func DefaultBuiltIns() BuiltIns {
	return BuiltIns{
		BuiltinRequest: {
			Qualified: QualifiedName{Name: BuiltinRequest},
			Scope:     Function,
		},
		BuiltinTmpPath: {
			Qualified: QualifiedName{Name: BuiltinTmpPath},
			Scope:     Function,
		},
		BuiltinMonkeypatch: {
			Qualified: QualifiedName{Name: BuiltinMonkeypatch},
			Scope:     Function,
		},
		BuiltinCapfd: {
			Qualified: QualifiedName{Name: BuiltinCapfd},
			Scope:     Function,
		},
	}
}
