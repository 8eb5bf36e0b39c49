package siteplanner

import (
	"fmt"
	"os"
	"path"
	"regexp"

	"github.com/microsoft/typescript-go/shim/ast"
	"github.com/microsoft/typescript-go/shim/checker"

	"github.com/basilisk-labs/boundarycheck/internal/escape"
	"github.com/basilisk-labs/boundarycheck/internal/typemodel"
)

var debug = os.Getenv("BOUNDARYCHECK_DEBUG") == "1"

func debugf(format string, args ...any) {
	if debug {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// ignoreCommentRegex recognises the explicit per-site escape hatch.
var ignoreCommentRegex = regexp.MustCompile(`(//.*@boundarycheck-ignore)|(/\*[\s\S]*?@boundarycheck-ignore)`)

// Config mirrors the subset of the host configuration the planner
// itself consults; the rest (reusableValidators, sourceMap options) belongs
// to synth/editapply.
type Config struct {
	ValidateParameters     bool
	ValidateReturns        bool
	ValidateCasts          bool
	TransformJSONParse     bool
	TransformJSONStringify bool
	IgnoreTypes            []string
}

func DefaultConfig() Config {
	return Config{
		ValidateParameters:     true,
		ValidateReturns:        true,
		ValidateCasts:          true,
		TransformJSONParse:     true,
		TransformJSONStringify: true,
	}
}

// Planner walks one file at a time with the Resolver it was given (and
// therefore that Resolver's type cache), while CallGraph state is rebuilt
// per file.
type Planner struct {
	checker  *checker.Checker
	resolver *typemodel.Resolver
	config   Config
}

func New(c *checker.Checker, resolver *typemodel.Resolver, config Config) *Planner {
	return &Planner{checker: c, resolver: resolver, config: config}
}

// Plan walks sourceFile once and returns every candidate site in source
// order, each carrying its type and validate/skip decision.
// Parameter skip decisions for internal functions are settled
// after the walk, once every call site in the file has been observed, so
// the outcome does not depend on declaration order.
func (pl *Planner) Plan(sourceFile *ast.SourceFile, text string) []Site {
	w := &walker{
		pl:        pl,
		text:      text,
		callGraph: escape.NewCallGraph(),
	}
	w.declareFileFunctions(sourceFile.AsNode())
	w.visit(sourceFile.AsNode())
	w.resolvePendingParameters()
	for i := range w.sites {
		t := w.sites[i].Type
		if t == nil || t.Name == "" {
			continue
		}
		for _, pat := range pl.config.IgnoreTypes {
			if ok, _ := path.Match(pat, t.Name); ok {
				w.sites[i].Decision = skipReason("ignored by configuration")
				break
			}
		}
	}
	byPos(w.sites)
	return w.sites
}

type walker struct {
	pl        *Planner
	text      string
	callGraph *escape.CallGraph
	funcStack []*funcFrame
	sites     []Site
	pending   []pendingParam
}

// pendingParam defers an internal function parameter's skip decision until
// the whole file has been walked: the call sites that prove
// "only clean callers" may appear lexically after the callee.
type pendingParam struct {
	siteIndex  int
	funcKey    string
	paramIndex int
}

type funcFrame struct {
	scope      *escape.FunctionScope
	fn         *functionLike
	key        string
	paramTypes []*typemodel.Type
}

// declareFileFunctions pre-registers every named function in the file with
// the call graph before the main walk, so a call site that appears lexically
// before its callee's declaration (hoisted function declarations are
// legal in JS) is still attributed correctly.
func (w *walker) declareFileFunctions(root *ast.Node) {
	var visit ast.Visitor
	visit = func(n *ast.Node) bool {
		if n.Kind == ast.KindFunctionDeclaration {
			fn := n.AsFunctionDeclaration()
			if fn.Name() != nil {
				w.callGraph.Declare(fn.Name().Text(), len(fn.Parameters.Nodes))
			}
		}
		n.ForEachChild(visit)
		return false
	}
	visit(root)
}

func (w *walker) currentFrame() *funcFrame {
	if len(w.funcStack) == 0 {
		return nil
	}
	return w.funcStack[len(w.funcStack)-1]
}

func (w *walker) visit(node *ast.Node) {
	if node == nil {
		return
	}
	if hasIgnoreComment(node, w.text) {
		return
	}

	switch node.Kind {
	case ast.KindFunctionDeclaration, ast.KindFunctionExpression, ast.KindArrowFunction, ast.KindMethodDeclaration:
		w.enterFunction(node)
		defer w.exitFunction()
	case ast.KindReturnStatement:
		w.planReturn(node)
	case ast.KindAsExpression:
		w.planCast(node)
	case ast.KindCallExpression:
		w.planCall(node)
	case ast.KindAwaitExpression:
		// Escapes inside the awaited operand happen before control
		// suspends, so walk the operand first and apply the await
		// demotion after.
		node.ForEachChild(func(child *ast.Node) bool {
			w.visit(child)
			return false
		})
		if f := w.currentFrame(); f != nil {
			f.scope.ObserveAwait()
		}
		return
	case ast.KindBinaryExpression:
		w.observeAssignment(node)
	case ast.KindVariableDeclaration:
		w.planVariableDeclaration(node)
	}

	node.ForEachChild(func(child *ast.Node) bool {
		w.visit(child)
		return false
	})
}

func hasIgnoreComment(node *ast.Node, text string) bool {
	start := node.Pos()
	if start < 0 || start > len(text) {
		return false
	}
	lookback := start - 200
	if lookback < 0 {
		lookback = 0
	}
	return ignoreCommentRegex.MatchString(text[lookback:start])
}

func (w *walker) enterFunction(node *ast.Node) {
	fn := asFunctionLike(node)
	if fn == nil {
		return
	}

	names := make([]string, 0, len(fn.parameters))
	paramTypes := make([]*typemodel.Type, 0, len(fn.parameters))
	for _, p := range fn.parameters {
		name := paramName(p)
		names = append(names, name)
		if p.Type != nil {
			paramTypes = append(paramTypes, w.pl.resolver.ResolveTypeNode(p.Type))
		} else {
			paramTypes = append(paramTypes, &typemodel.Type{Kind: typemodel.KindPrimitive, Primitive: typemodel.PrimAny})
		}
	}

	key := ""
	if node.Kind == ast.KindFunctionDeclaration {
		if name := node.AsFunctionDeclaration().Name(); name != nil {
			key = name.Text()
		}
	}

	frame := &funcFrame{
		scope:      escape.NewFunctionScope(names, fn.exported),
		fn:         fn,
		key:        key,
		paramTypes: paramTypes,
	}
	w.funcStack = append(w.funcStack, frame)

	if w.pl.config.ValidateParameters && fn.body != nil {
		if fn.body.Kind != ast.KindBlock {
			// An expression-bodied arrow has no statement position to
			// splice a check into; surface its parameters as skipped.
			for i, p := range fn.parameters {
				if p.Type == nil {
					continue
				}
				w.emitSkippedDiagnostic(KindParameter, p.Name(), paramName(p), paramTypes[i], "expression-bodied function")
			}
			return
		}
		insertPos := bodyInsertPos(fn.body)
		for i, p := range fn.parameters {
			if p.Type == nil {
				continue
			}
			name := paramName(p)
			t := paramTypes[i]
			if t.Kind == typemodel.KindUnsupported {
				w.emitSkippedDiagnostic(KindParameter, p.Name(), name, t, "unresolvable parameter type")
				continue
			}
			if isUnconstrainedGeneric(p.Type) {
				w.sites = append(w.sites, Site{
					Kind: KindParameter, InsertPos: insertPos, ExprStart: p.Pos(), ExprEnd: p.Pos(),
					AnchorPos: p.Pos(), Name: name, Type: t,
					Decision: skipReason("unconstrained generic"),
				})
				continue
			}

			if !fn.exported && key != "" {
				// Decision deferred: the call graph is only complete once
				// the whole file has been walked.
				w.pending = append(w.pending, pendingParam{
					siteIndex: len(w.sites), funcKey: key, paramIndex: i,
				})
			}
			w.sites = append(w.sites, Site{
				Kind: KindParameter, InsertPos: insertPos, ExprStart: p.Pos(), ExprEnd: p.Pos(),
				AnchorPos: p.Name().Pos(), Name: name, Type: t,
				Decision: escape.DecideParameter(true, false),
			})
		}
	}
}

func (w *walker) exitFunction() {
	w.funcStack = w.funcStack[:len(w.funcStack)-1]
}

// resolvePendingParameters settles the internal-callee skip for internal
// functions now that every call site in the file has been observed. It runs
// before byPos so the recorded site indexes are still valid.
func (w *walker) resolvePendingParameters() {
	for _, p := range w.pending {
		allClean := w.callGraph.AllCallersClean(p.funcKey, p.paramIndex)
		debugf("siteplanner: %s param %d all-clean=%v\n", p.funcKey, p.paramIndex, allClean)
		w.sites[p.siteIndex].Decision = escape.DecideParameter(false, allClean)
	}
}

// bodyInsertPos returns the splice position for parameter checks inside a
// block body: just before the first statement, or before the closing brace
// of an empty block. Callers only plan parameter insertions for block
// bodies.
func bodyInsertPos(body *ast.Node) int {
	block := body.AsBlock()
	if block.Statements != nil && len(block.Statements.Nodes) > 0 {
		return block.Statements.Nodes[0].Pos()
	}
	return body.End() - 1
}

func (w *walker) planReturn(node *ast.Node) {
	if !w.pl.config.ValidateReturns {
		return
	}
	frame := w.currentFrame()
	if frame == nil || frame.fn.returnType == nil {
		return
	}
	ret := node.AsReturnStatement()
	if ret.Expression == nil {
		return
	}

	oracleType := checker.Checker_getTypeFromTypeNode(w.pl.checker, frame.fn.returnType)
	oracleType = unwrapPromiseType(oracleType, frame.fn.isAsync, w.pl.checker)
	returnType := w.pl.resolver.ResolveOracleType(oracleType)
	if returnType.Kind == typemodel.KindUnsupported {
		w.emitSkippedDiagnostic(KindReturn, node, "return value", returnType, "unresolvable return type")
		return
	}

	decision := frame.scope.DecideReturn(ret.Expression)
	if decision.Validate && ret.Expression.Kind == ast.KindAsExpression && w.pl.config.ValidateCasts {
		// Overlapping candidates coalesce into the innermost necessary
		// check: the cast site wraps this same expression already. Casts
		// to any/unknown plan no site, so those returns keep their check.
		if asType := ret.Expression.AsAsExpression().Type; asType != nil && !isTrivialCastTarget(asType) {
			decision = skipReason("coalesced into the cast's validator")
		}
	}
	w.sites = append(w.sites, Site{
		Kind: KindReturn, ExprStart: ret.Expression.Pos(), ExprEnd: ret.Expression.End(),
		AnchorPos: ret.Expression.Pos(), Name: "return value", Type: returnType, Decision: decision,
		ExprText: sliceNode(w.text, ret.Expression),
	})
}

// unwrapPromiseType extracts T from Promise<T> for an async function's
// declared return type, so the emitted check validates the resolved value
// rather than the Promise wrapper.
func unwrapPromiseType(t *checker.Type, isAsync bool, c *checker.Checker) *checker.Type {
	if !isAsync || t == nil {
		return t
	}
	sym := checker.Type_symbol(t)
	if sym == nil || sym.Name != "Promise" {
		return t
	}
	typeArgs := checker.Checker_getTypeArguments(c, t)
	if len(typeArgs) > 0 {
		return typeArgs[0]
	}
	return t
}

func (w *walker) planCast(node *ast.Node) {
	asExpr := node.AsAsExpression()
	if asExpr.Type == nil || isTrivialCastTarget(asExpr.Type) {
		return
	}

	// JSON.parse(x) as T / JSON.stringify(x) as T coalesce into a JSON
	// codec site; the cast itself emits nothing extra. The parse site
	// targets the cast type, while the stringify site takes its type from
	// the call (see jsonTargetType).
	if isJSONCall(asExpr.Expression, "parse") {
		if w.pl.config.TransformJSONParse {
			targetType := w.pl.resolver.ResolveTypeNode(asExpr.Type)
			w.planJSONParseAs(node, asExpr.Expression, targetType)
			w.markDeclarationClean(node)
		}
		return
	}
	if isJSONCall(asExpr.Expression, "stringify") {
		if w.pl.config.TransformJSONStringify {
			w.planJSONStringify(node, asExpr.Expression.AsCallExpression())
		}
		return
	}

	if !w.pl.config.ValidateCasts {
		return
	}

	targetType := w.pl.resolver.ResolveTypeNode(asExpr.Type)
	if targetType.Kind == typemodel.KindUnsupported {
		w.emitSkippedDiagnostic(KindCast, node, sliceNode(w.text, asExpr.Type), targetType, "unresolvable cast target type")
		return
	}

	sourceType := w.pl.resolver.Resolve(asExpr.Expression)
	decision := escape.DecideCast()
	if !sourceType.IsNullable() && isProvablyAssignable(w.pl.checker, asExpr.Expression, asExpr.Type, sourceType) {
		decision = skipReason("source type already assignable without widening")
	}

	w.sites = append(w.sites, Site{
		Kind: KindCast, ExprStart: node.Pos(), ExprEnd: node.End(),
		AnchorPos: asExpr.Type.Pos(), Name: sliceNode(w.text, asExpr.Type), Type: targetType, Decision: decision,
		ExprText: sliceNode(w.text, asExpr.Expression),
	})

	if decision.Validate {
		w.markDeclarationClean(node)
	}
}

// markDeclarationClean marks the variable a validated initializer is bound
// to as Clean: `const u = x as User` or `const u = JSON.parse(s) as User`
// leave `u` known-valid at the declaration point: a binding is Clean
// immediately after a successful validator, or when produced by a
// validated JSON.parse.
func (w *walker) markDeclarationClean(initializer *ast.Node) {
	f := w.currentFrame()
	if f == nil {
		return
	}
	parent := initializer.Parent
	if parent == nil || parent.Kind != ast.KindVariableDeclaration {
		return
	}
	vd := parent.AsVariableDeclaration()
	if vd.Name() != nil && vd.Name().Kind == ast.KindIdentifier {
		f.scope.ObserveCleanBinding(vd.Name().Text())
	}
}

// isProvablyAssignable asks the oracle whether expr's static type is
// already assignable to the cast target without widening from any/unknown
// — the one case where a cast site may skip.
func isProvablyAssignable(c *checker.Checker, expr *ast.Node, targetNode *ast.Node, sourceType *typemodel.Type) bool {
	if sourceType.Kind == typemodel.KindPrimitive && (sourceType.Primitive == typemodel.PrimAny || sourceType.Primitive == typemodel.PrimUnknown) {
		return false
	}
	from := checker.Checker_GetTypeAtLocation(c, expr)
	to := checker.Checker_getTypeFromTypeNode(c, targetNode)
	if from == nil || to == nil {
		return false
	}
	return checker.Checker_isTypeAssignableTo(c, from, to)
}

func isTrivialCastTarget(typeNode *ast.Node) bool {
	return typeNode.Kind == ast.KindAnyKeyword || typeNode.Kind == ast.KindUnknownKeyword
}

// planVariableDeclaration handles the two declaration-initializer shapes the
// dataflow cares about: alias propagation (`const b = a;` inherits a's
// state) and the contextually-typed JSON.parse (`const u: User =
// JSON.parse(s)`), which plans a JsonParse site against the annotation.
func (w *walker) planVariableDeclaration(node *ast.Node) {
	vd := node.AsVariableDeclaration()
	if vd.Initializer == nil {
		return
	}
	frame := w.currentFrame()

	varName := ""
	if vd.Name() != nil && vd.Name().Kind == ast.KindIdentifier {
		varName = vd.Name().Text()
	}

	if vd.Type != nil && w.pl.config.TransformJSONParse &&
		vd.Initializer.Kind == ast.KindCallExpression && isJSONCallNode(vd.Initializer.AsCallExpression(), "parse") {
		targetType := w.pl.resolver.ResolveTypeNode(vd.Type)
		if targetType.Kind != typemodel.KindUnsupported {
			w.planJSONParseAs(vd.Initializer, vd.Initializer, targetType)
			if frame != nil && varName != "" {
				frame.scope.ObserveCleanBinding(varName)
			}
		}
		return
	}

	if frame != nil && varName != "" {
		switch vd.Initializer.Kind {
		case ast.KindIdentifier, ast.KindPropertyAccessExpression, ast.KindElementAccessExpression:
			frame.scope.ObserveAlias(varName, vd.Initializer)
		}
	}
}

func (w *walker) planCall(node *ast.Node) {
	call := node.AsCallExpression()

	if w.pl.config.TransformJSONParse && isJSONCallNode(call, "parse") {
		w.planJSONParse(node, call)
		return
	}
	if w.pl.config.TransformJSONStringify && isJSONCallNode(call, "stringify") {
		w.planJSONStringify(node, call)
		return
	}

	// Track call-site argument cleanliness for the internal-callee skip
	// and mark escaping arguments. A callee not
	// declared in this file is external: its arguments escape.
	calleeKey := calleeFuncKey(call.Expression)
	frame := w.currentFrame()
	if frame == nil || call.Arguments == nil {
		return
	}
	internal := calleeKey != "" && w.callGraph.IsDeclared(calleeKey)
	states := make([]escape.State, 0, len(call.Arguments.Nodes))
	for _, arg := range call.Arguments.Nodes {
		states = append(states, frame.scope.StateOf(arg))
		if !internal {
			frame.scope.ObserveEscape(arg)
		}
	}
	if internal {
		w.callGraph.ObserveCall(calleeKey, states)
	}
}

func calleeFuncKey(expr *ast.Node) string {
	if expr.Kind != ast.KindIdentifier {
		return ""
	}
	return expr.Text()
}

func (w *walker) observeAssignment(node *ast.Node) {
	bin := node.AsBinaryExpression()
	if bin.OperatorToken.Kind != ast.KindEqualsToken {
		return
	}
	if f := w.currentFrame(); f != nil {
		f.scope.ObserveAssignment(bin.Left)
	}
}

func (w *walker) emitSkippedDiagnostic(kind Kind, anchor *ast.Node, name string, t *typemodel.Type, reason string) {
	w.sites = append(w.sites, Site{
		Kind: kind, ExprStart: anchor.Pos(), ExprEnd: anchor.Pos(), AnchorPos: anchor.Pos(),
		Name: name, Type: t, Decision: skipReason(reason),
	})
}

func skipReason(reason string) escape.Decision {
	return escape.Decision{Validate: false, Reason: reason}
}

func isUnconstrainedGeneric(typeNode *ast.Node) bool {
	return typeNode.Kind == ast.KindTypeReference && typeNode.AsTypeReference().TypeName != nil &&
		len(typeNode.AsTypeReference().TypeName.Text()) == 1
}

func sliceNode(text string, n *ast.Node) string {
	if n.Pos() < 0 || n.End() > len(text) || n.Pos() > n.End() {
		return ""
	}
	return text[n.Pos():n.End()]
}

// isJSONCall reports whether expr is a `JSON.<method>` call, used when an
// `as T` cast wraps a JSON call directly (`JSON.parse(s) as T`) so the
// cast and the JSON site coalesce into one.
func isJSONCall(expr *ast.Node, method string) bool {
	if expr.Kind != ast.KindCallExpression {
		return false
	}
	return isJSONCallNode(expr.AsCallExpression(), method)
}

func isJSONCallNode(call *ast.CallExpression, method string) bool {
	if call.Expression.Kind != ast.KindPropertyAccessExpression {
		return false
	}
	prop := call.Expression.AsPropertyAccessExpression()
	if prop.Expression.Kind != ast.KindIdentifier || prop.Expression.Text() != "JSON" {
		return false
	}
	name := prop.Name()
	return name != nil && name.Text() == method
}

// jsonTargetType resolves the type a JSON codec call should be checked
// against when no enclosing cast or annotation supplied one, trying in
// order: an explicit type argument (`JSON.parse<User>(s)`), an `as T` cast
// on the sole argument (`JSON.stringify(x as T)`, stringify only), and
// finally the argument's own declared type (`JSON.stringify(typedVar)`,
// stringify only).
func (w *walker) jsonTargetType(call *ast.CallExpression, forStringify bool) *typemodel.Type {
	if call.TypeArguments != nil && len(call.TypeArguments.Nodes) > 0 {
		return w.pl.resolver.ResolveTypeNode(call.TypeArguments.Nodes[0])
	}
	if !forStringify || call.Arguments == nil || len(call.Arguments.Nodes) == 0 {
		return nil
	}
	arg := call.Arguments.Nodes[0]
	if arg.Kind == ast.KindAsExpression {
		if asExpr := arg.AsAsExpression(); asExpr.Type != nil {
			return w.pl.resolver.ResolveTypeNode(asExpr.Type)
		}
	}
	argType := w.pl.resolver.Resolve(arg)
	if argType.Kind == typemodel.KindObject || argType.Kind == typemodel.KindArray ||
		argType.Kind == typemodel.KindUnion || argType.Kind == typemodel.KindTuple {
		return argType
	}
	return nil
}

// planJSONParseAs plans a JsonParse site against an explicitly supplied
// target type; spanNode covers the full replaced expression (the `as T`
// cast when one wraps the call, otherwise the call itself), while callNode
// is the JSON.parse call whose text the emitted filter re-embeds.
func (w *walker) planJSONParseAs(spanNode, callNode *ast.Node, targetType *typemodel.Type) {
	if targetType == nil || targetType.Kind == typemodel.KindUnsupported {
		return
	}
	call := callNode.AsCallExpression()
	if call.Arguments == nil || len(call.Arguments.Nodes) == 0 {
		return
	}
	w.sites = append(w.sites, Site{
		Kind: KindJSONParse, ExprStart: spanNode.Pos(), ExprEnd: spanNode.End(),
		AnchorPos: call.Expression.Pos(), Name: "JSON.parse", Type: targetType,
		Decision: escape.DecideJSONParse(), ExprText: sliceNode(w.text, callNode),
	})
}

// plannedByEnclosingCast reports whether a JSON codec call sits directly
// under a non-trivial `as T` cast — planCast already planned it (a parse
// against the cast's type), so the bare-call walk must not plan it twice.
func plannedByEnclosingCast(node *ast.Node) bool {
	parent := node.Parent
	if parent == nil || parent.Kind != ast.KindAsExpression {
		return false
	}
	asExpr := parent.AsAsExpression()
	return asExpr.Type != nil && !isTrivialCastTarget(asExpr.Type)
}

func (w *walker) planJSONParse(node *ast.Node, call *ast.CallExpression) {
	if plannedByEnclosingCast(node) {
		return
	}
	// An annotated declaration (`const u: User = JSON.parse(s)`) was
	// planned with the annotation's type in planVariableDeclaration.
	if parent := node.Parent; parent != nil && parent.Kind == ast.KindVariableDeclaration && parent.AsVariableDeclaration().Type != nil {
		return
	}
	w.planJSONParseAs(node, node, w.jsonTargetType(call, false))
}

func (w *walker) planJSONStringify(node *ast.Node, call *ast.CallExpression) {
	if node.Kind == ast.KindCallExpression && plannedByEnclosingCast(node) {
		return
	}
	if call.Arguments == nil || len(call.Arguments.Nodes) == 0 {
		return
	}
	targetType := w.jsonTargetType(call, true)
	if targetType == nil || targetType.Kind == typemodel.KindUnsupported {
		return
	}
	w.sites = append(w.sites, Site{
		Kind: KindJSONStringify, ExprStart: node.Pos(), ExprEnd: node.End(),
		AnchorPos: call.Expression.Pos(), Name: "JSON.stringify", Type: targetType,
		Decision: escape.DecideJSONStringify(), ExprText: sliceNode(w.text, call.Arguments.Nodes[0]),
	})
}
