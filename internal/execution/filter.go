package execution

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/karva-go/karva/internal/fixtures"
)

// Filter applies, in order, the tag-expression filter and the name-regex
// filter from spec.md §4.2. A non-match at either stage yields Skipped with
// no reason.
type Filter struct {
	TagExprs     []*tagExpr
	NamePatterns []*regexp.Regexp
}

// NewFilter compiles tag expressions and name-regex patterns. Multiple
// expressions/patterns match if any one of them matches.
func NewFilter(tagExprs []string, namePatterns []string) (*Filter, error) {
	f := &Filter{}

	for _, expr := range tagExprs {
		parsed, err := parseTagExpr(expr)
		if err != nil {
			return nil, fmt.Errorf("execution: tag expression %q: %w", expr, err)
		}

		f.TagExprs = append(f.TagExprs, parsed)
	}

	for _, pattern := range namePatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("execution: name pattern %q: %w", pattern, err)
		}

		f.NamePatterns = append(f.NamePatterns, re)
	}

	return f, nil
}

// Match reports whether variant should run. names is the variant's combined
// tag set (test tags plus any row-level tags).
func (f *Filter) Match(variant *TestVariant, names []string) bool {
	if len(f.TagExprs) > 0 {
		matched := false

		for _, expr := range f.TagExprs {
			if expr.eval(names) {
				matched = true

				break
			}
		}

		if !matched {
			return false
		}
	}

	if len(f.NamePatterns) > 0 {
		matched := false

		for _, re := range f.NamePatterns {
			if re.MatchString(variant.ID) {
				matched = true

				break
			}
		}

		if !matched {
			return false
		}
	}

	return true
}

// CombinedTagNames merges a test's declared tags with a variant's row-level
// tags, per spec.md's TagSet model.
func CombinedTagNames(test *fixtures.TestDef, variant *TestVariant) []string {
	names := append([]string{}, test.Tags.Names()...)
	names = append(names, variant.ParamTags.Names()...)

	return names
}

// tagExpr is a parsed boolean expression over tag names: and/or/not with
// parentheses, per spec.md §4.2.
type tagExpr struct {
	root exprNode
}

type exprNode interface {
	eval(tags []string) bool
}

type tagLeaf struct{ name string }

func (n tagLeaf) eval(tags []string) bool {
	for _, t := range tags {
		if t == n.name {
			return true
		}
	}

	return false
}

type notNode struct{ inner exprNode }

func (n notNode) eval(tags []string) bool { return !n.inner.eval(tags) }

type andNode struct{ left, right exprNode }

func (n andNode) eval(tags []string) bool { return n.left.eval(tags) && n.right.eval(tags) }

type orNode struct{ left, right exprNode }

func (n orNode) eval(tags []string) bool { return n.left.eval(tags) || n.right.eval(tags) }

func (e *tagExpr) eval(tags []string) bool { return e.root.eval(tags) }

// parseTagExpr parses a small boolean grammar:
//
//	expr   := term (("or") term)*
//	term   := factor (("and") factor)*
//	factor := "not" factor | "(" expr ")" | NAME
//
// "and" binds tighter than "or", matching the spec's documented precedence.
func parseTagExpr(input string) (*tagExpr, error) {
	p := &tagExprParser{tokens: tokenizeTagExpr(input)}

	node, err := p.parseExpr()
	if err != nil {
		return nil, err
	}

	if p.pos != len(p.tokens) {
		return nil, fmt.Errorf("%w: unexpected token %q", errTagExprSyntax, p.tokens[p.pos])
	}

	return &tagExpr{root: node}, nil
}

var errTagExprSyntax = fmt.Errorf("execution: invalid tag expression syntax")

func tokenizeTagExpr(input string) []string {
	input = strings.ReplaceAll(input, "(", " ( ")
	input = strings.ReplaceAll(input, ")", " ) ")

	return strings.Fields(input)
}

type tagExprParser struct {
	tokens []string
	pos    int
}

func (p *tagExprParser) peek() string {
	if p.pos >= len(p.tokens) {
		return ""
	}

	return p.tokens[p.pos]
}

func (p *tagExprParser) next() string {
	tok := p.peek()
	p.pos++

	return tok
}

func (p *tagExprParser) parseExpr() (exprNode, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}

	for strings.EqualFold(p.peek(), "or") {
		p.next()

		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}

		left = orNode{left: left, right: right}
	}

	return left, nil
}

func (p *tagExprParser) parseTerm() (exprNode, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}

	for strings.EqualFold(p.peek(), "and") {
		p.next()

		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}

		left = andNode{left: left, right: right}
	}

	return left, nil
}

func (p *tagExprParser) parseFactor() (exprNode, error) {
	tok := p.peek()

	switch {
	case tok == "":
		return nil, fmt.Errorf("%w: unexpected end of expression", errTagExprSyntax)
	case strings.EqualFold(tok, "not"):
		p.next()

		inner, err := p.parseFactor()
		if err != nil {
			return nil, err
		}

		return notNode{inner: inner}, nil
	case tok == "(":
		p.next()

		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}

		if p.next() != ")" {
			return nil, fmt.Errorf("%w: expected ')'", errTagExprSyntax)
		}

		return inner, nil
	default:
		p.next()

		return tagLeaf{name: tok}, nil
	}
}
