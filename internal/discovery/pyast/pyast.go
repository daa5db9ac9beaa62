// Package pyast is the concrete AST-inspection backend behind
// internal/discovery: it parses guest source with pkg/uast (tree-sitter)
// and extracts function definitions, their declared parameters, decorators
// (used as tags and parametrize rows), and the generator/async flags
// spec.md's FixtureDef/TestDef data model requires.
package pyast

import (
	"context"
	"fmt"
	"strings"

	"github.com/karva-go/karva/pkg/uast"
	"github.com/karva-go/karva/pkg/uast/pkg/node"
)

// Extractor wraps a *uast.Parser configured for guest-language source.
type Extractor struct {
	parser *uast.Parser
}

// New creates an Extractor using the embedded language mappings (see
// pkg/uast's go:generate step for the Python grammar mapping this module
// exercises).
func New() (*Extractor, error) {
	p, err := uast.NewParser()
	if err != nil {
		return nil, fmt.Errorf("pyast: creating parser: %w", err)
	}

	return &Extractor{parser: p}, nil
}

// Supports reports whether filename is guest-language source the extractor
// can parse.
func (e *Extractor) Supports(filename string) bool { return e.parser.IsSupported(filename) }

// FunctionDef is one top-level (or class-nested) function definition found
// in a parsed file, with enough detail for internal/discovery to decide
// whether it is a test, a fixture, or neither.
type FunctionDef struct {
	Name        string
	Line        uint
	Params      []string
	Decorators  []Decorator
	IsAsync     bool
	IsGenerator bool
}

// Decorator is a single `@name(...)` (or bare `@name`) attached to a
// function definition, with its call arguments rendered as source text for
// downstream parsing (e.g. a parametrize call's row literals).
type Decorator struct {
	Name    string
	RawArgs []string
}

// Extract parses content (from the file at filename) and returns every
// function definition found at module or class scope.
func (e *Extractor) Extract(ctx context.Context, filename string, content []byte) ([]FunctionDef, error) {
	root, err := e.parser.Parse(ctx, filename, content)
	if err != nil {
		return nil, fmt.Errorf("pyast: parsing %s: %w", filename, err)
	}

	var defs []FunctionDef

	var walk func(n *node.Node)

	walk = func(n *node.Node) {
		if n == nil {
			return
		}

		if isFunctionNode(n) {
			defs = append(defs, extractFunctionDef(n))

			// A function body is neither module nor class scope.
			return
		}

		for _, child := range n.Children {
			walk(child)
		}
	}

	walk(root)

	return defs, nil
}

func isFunctionNode(n *node.Node) bool {
	switch n.Type {
	case node.UASTFunction, node.UASTFunctionDecl, node.UASTMethod:
		return true
	default:
		return false
	}
}

func extractFunctionDef(n *node.Node) FunctionDef {
	def := FunctionDef{
		Name: functionName(n),
	}

	if n.Pos != nil {
		def.Line = n.Pos.StartLine
	}

	def.IsAsync = isAsync(n)
	def.Params = collectParams(n)
	def.Decorators = collectDecorators(n)
	def.IsGenerator = containsYield(n)

	return def
}

// functionName finds the function's declared name: either a Props entry the
// mapping DSL set directly, or the token of the nearest child carrying
// RoleName.
func functionName(n *node.Node) string {
	if name, ok := n.Props["name"]; ok && name != "" {
		return name
	}

	for _, child := range n.Children {
		if hasRole(child, node.RoleName) {
			return child.Token
		}
	}

	return n.Token
}

func hasRole(n *node.Node, role node.Role) bool {
	for _, r := range n.Roles {
		if r == role {
			return true
		}
	}

	return false
}

// isAsync reports whether n is declared `async def`. The mapping DSL is
// expected to surface this as a Props["async"] flag set on the function
// node; as a fallback, a leading "async" token child is also recognized.
func isAsync(n *node.Node) bool {
	if v, ok := n.Props["async"]; ok {
		return v == "true"
	}

	for _, child := range n.Children {
		if strings.EqualFold(child.Token, "async") {
			return true
		}
	}

	return false
}

// collectParams walks n's direct Parameter-role children (or their nested
// name nodes) to produce the function's declared parameter names, in
// declaration order. The receiver ("self") is not filtered here, and
// discovery does not strip it either: a method's list includes it.
func collectParams(n *node.Node) []string {
	var params []string

	var walk func(c *node.Node)

	walk = func(c *node.Node) {
		if c.Type == node.UASTParameter || hasRole(c, node.RoleParameter) {
			if name, ok := c.Props["name"]; ok && name != "" {
				params = append(params, name)

				return
			}

			if c.Token != "" {
				params = append(params, c.Token)

				return
			}

			for _, gc := range c.Children {
				if hasRole(gc, node.RoleName) {
					params = append(params, gc.Token)

					return
				}
			}
		}
	}

	for _, child := range n.Children {
		walk(child)
	}

	return params
}

// collectDecorators finds the UASTDecorator-typed siblings the mapping DSL
// attaches above a function definition (as children carrying RoleAnnotation,
// the closest UAST role to "decorator").
func collectDecorators(n *node.Node) []Decorator {
	var decorators []Decorator

	for _, child := range n.Children {
		if child.Type != node.UASTDecorator && !hasRole(child, node.RoleAnnotation) {
			continue
		}

		dec := Decorator{Name: decoratorName(child)}

		for _, arg := range child.Children {
			if hasRole(arg, node.RoleArgument) || arg.Type == node.UASTLiteral {
				dec.RawArgs = append(dec.RawArgs, arg.Token)
			}
		}

		decorators = append(decorators, dec)
	}

	return decorators
}

func decoratorName(n *node.Node) string {
	if name, ok := n.Props["name"]; ok && name != "" {
		return name
	}

	for _, child := range n.Children {
		if child.Type == node.UASTCall || hasRole(child, node.RoleName) {
			return decoratorBaseName(child)
		}
	}

	return strings.TrimPrefix(n.Token, "@")
}

func decoratorBaseName(n *node.Node) string {
	if n.Type == node.UASTCall {
		for _, child := range n.Children {
			if hasRole(child, node.RoleName) {
				return child.Token
			}
		}
	}

	return n.Token
}

// containsYield reports whether any descendant of n (not crossing into a
// nested function's body) is a Yield node, the AST-derived signal for
// FixtureDef.IsGenerator.
func containsYield(n *node.Node) bool {
	for _, child := range n.Children {
		if child.Type == node.UASTYield {
			return true
		}

		if isFunctionNode(child) {
			continue // nested function bodies don't count toward the outer one.
		}

		if containsYield(child) {
			return true
		}
	}

	return false
}
