// Package siteplanner walks one file's AST to identify candidate
// syntactic positions, queries the type model and escape analysis for
// each, and produces an ordered list of Sites for editapply to splice.
package siteplanner

import (
	"github.com/microsoft/typescript-go/shim/ast"

	"github.com/basilisk-labs/boundarycheck/internal/escape"
	"github.com/basilisk-labs/boundarycheck/internal/typemodel"
)

// Kind is one of the five candidate-site shapes.
type Kind int

const (
	KindParameter Kind = iota
	KindReturn
	KindCast
	KindJSONParse
	KindJSONStringify
)

func (k Kind) String() string {
	switch k {
	case KindParameter:
		return "parameter"
	case KindReturn:
		return "return"
	case KindCast:
		return "cast"
	case KindJSONParse:
		return "json-parse"
	case KindJSONStringify:
		return "json-stringify"
	default:
		return "unknown"
	}
}

// Site is a single planned edit: either an insertion (Parameter, at
// InsertPos with no replaced span) or a wrap/replace (Return, Cast,
// JsonParse, JsonStringify — ExprStart/ExprEnd span the original
// expression, which the emitted fragment re-embeds verbatim).
type Site struct {
	Kind Kind

	// InsertPos is where Parameter validation statements are spliced (just
	// after the function body's opening brace).
	InsertPos int

	// ExprStart/ExprEnd span the original source expression being
	// wrapped or replaced (the returned expression, the cast expression
	// including `as T`, or the JSON.parse/stringify call).
	ExprStart, ExprEnd int

	// AnchorPos is the byte position the source map should attribute
	// inserted characters to: the parameter name for Parameter,
	// the returned expression for Return, the target type span for Cast.
	AnchorPos int

	// Name seeds the error-message path: the parameter name,
	// "return value", or the cast's target type text.
	Name string

	Type     *typemodel.Type
	Decision escape.Decision

	// ExprText is the original source text of the wrapped expression,
	// already sliced by the time EditApplier needs it.
	ExprText string
}

// byPos keeps a file's sites in source order, which callers rely on when
// applying edits in a single forward pass.
func byPos(sites []Site) {
	for i := 1; i < len(sites); i++ {
		for j := i; j > 0 && sites[j-1].ExprStart > sites[j].ExprStart; j-- {
			sites[j-1], sites[j] = sites[j], sites[j-1]
		}
	}
}

// functionLike narrows a node to the four function-like kinds the planner
// tracks, returning the declaration's
// parameters, body, and return type annotation node uniformly.
type functionLike struct {
	node       *ast.Node
	parameters []*ast.ParameterDeclarationNode
	body       *ast.Node
	returnType *ast.Node
	isAsync    bool
	exported   bool
}

func asFunctionLike(node *ast.Node) *functionLike {
	switch node.Kind {
	case ast.KindFunctionDeclaration:
		fn := node.AsFunctionDeclaration()
		return &functionLike{
			node:       node,
			parameters: fn.Parameters.Nodes,
			body:       fn.Body,
			returnType: fn.Type,
			isAsync:    hasAsyncModifier(fn.Modifiers()),
			exported:   hasExportModifier(fn.Modifiers()),
		}
	case ast.KindFunctionExpression:
		fn := node.AsFunctionExpression()
		return &functionLike{
			node: node, parameters: fn.Parameters.Nodes, body: fn.Body, returnType: fn.Type,
			isAsync: hasAsyncModifier(fn.Modifiers()),
		}
	case ast.KindArrowFunction:
		fn := node.AsArrowFunction()
		return &functionLike{
			node: node, parameters: fn.Parameters.Nodes, body: fn.Body, returnType: fn.Type,
			isAsync: hasAsyncModifier(fn.Modifiers()),
		}
	case ast.KindMethodDeclaration:
		fn := node.AsMethodDeclaration()
		return &functionLike{
			node: node, parameters: fn.Parameters.Nodes, body: fn.Body, returnType: fn.Type,
			isAsync: hasAsyncModifier(fn.Modifiers()),
		}
	default:
		return nil
	}
}

func hasAsyncModifier(mods *ast.ModifierList) bool {
	if mods == nil {
		return false
	}
	for _, m := range mods.Nodes {
		if m.Kind == ast.KindAsyncKeyword {
			return true
		}
	}
	return false
}

func hasExportModifier(mods *ast.ModifierList) bool {
	if mods == nil {
		return false
	}
	for _, m := range mods.Nodes {
		if m.Kind == ast.KindExportKeyword {
			return true
		}
	}
	return false
}

func paramName(p *ast.ParameterDeclarationNode) string {
	name := p.Name()
	if name == nil || name.Kind != ast.KindIdentifier {
		return ""
	}
	return name.Text()
}
