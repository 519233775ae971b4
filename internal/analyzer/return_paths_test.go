package analyzer

import (
	"testing"

	"github.com/tangzhangming/obi/internal/ast"
	"github.com/tangzhangming/obi/internal/types"
)

// returnBuilder 带 Int 返回类型的方法骨架
func returnBuilder(t *testing.T, body func(b *builder, method *ast.Method)) *Analyzer {
	t.Helper()
	b := newBuilder()
	app := b.addClass("App", false)
	method := b.addMethod(app, "Get", ast.PublicMethod, true, false,
		b.ty.MakeType(types.IntType), nil)
	body(b, method)
	return b.analyze(t)
}

func intReturn(b *builder) *ast.Return {
	return b.tf.MakeReturn(testFile, b.nextLine(),
		b.tf.MakeIntegerLiteral(testFile, b.line, 1))
}

func TestReturnPathPlainReturn(t *testing.T) {
	a := returnBuilder(t, func(b *builder, method *ast.Method) {
		method.Statements().AddStatement(intReturn(b))
	})
	expectNoErrors(t, a)
}

func TestReturnPathMissing(t *testing.T) {
	var line int
	a := returnBuilder(t, func(b *builder, method *ast.Method) {
		line = method.Line()
	})
	expectError(t, a, line, "All method/function paths must return a value")
}

func TestReturnPathIfElseBothReturn(t *testing.T) {
	a := returnBuilder(t, func(b *builder, method *ast.Method) {
		ifBody := b.tf.MakeStatementList()
		ifBody.AddStatement(intReturn(b))
		elseBody := b.tf.MakeStatementList()
		elseBody.AddStatement(intReturn(b))

		ifStmt := b.tf.MakeIf(testFile, b.nextLine(),
			b.tf.MakeBooleanLiteral(testFile, b.line, true), ifBody)
		ifStmt.ElseStatements = elseBody
		method.Statements().AddStatement(ifStmt)
	})
	expectNoErrors(t, a)
}

func TestReturnPathIfWithoutElse(t *testing.T) {
	var line int
	a := returnBuilder(t, func(b *builder, method *ast.Method) {
		line = method.Line()
		ifBody := b.tf.MakeStatementList()
		ifBody.AddStatement(intReturn(b))
		method.Statements().AddStatement(b.tf.MakeIf(testFile, b.nextLine(),
			b.tf.MakeBooleanLiteral(testFile, b.line, true), ifBody))
	})
	expectError(t, a, line, "All method/function paths must return a value")
}

func TestReturnPathElseIfChain(t *testing.T) {
	a := returnBuilder(t, func(b *builder, method *ast.Method) {
		ifBody := b.tf.MakeStatementList()
		ifBody.AddStatement(intReturn(b))
		elseIfBody := b.tf.MakeStatementList()
		elseIfBody.AddStatement(intReturn(b))
		elseBody := b.tf.MakeStatementList()
		elseBody.AddStatement(intReturn(b))

		elseIf := b.tf.MakeIf(testFile, b.nextLine(),
			b.tf.MakeBooleanLiteral(testFile, b.line, false), elseIfBody)
		elseIf.ElseStatements = elseBody

		ifStmt := b.tf.MakeIf(testFile, b.nextLine(),
			b.tf.MakeBooleanLiteral(testFile, b.line, true), ifBody)
		ifStmt.Next = elseIf
		method.Statements().AddStatement(ifStmt)
	})
	expectNoErrors(t, a)
}

func TestReturnPathElseIfChainBranchMissing(t *testing.T) {
	var line int
	a := returnBuilder(t, func(b *builder, method *ast.Method) {
		line = method.Line()
		ifBody := b.tf.MakeStatementList()
		ifBody.AddStatement(intReturn(b))
		// else-if 分支不返回
		elseIfBody := b.tf.MakeStatementList()
		elseBody := b.tf.MakeStatementList()
		elseBody.AddStatement(intReturn(b))

		elseIf := b.tf.MakeIf(testFile, b.nextLine(),
			b.tf.MakeBooleanLiteral(testFile, b.line, false), elseIfBody)
		elseIf.ElseStatements = elseBody

		ifStmt := b.tf.MakeIf(testFile, b.nextLine(),
			b.tf.MakeBooleanLiteral(testFile, b.line, true), ifBody)
		ifStmt.Next = elseIf
		method.Statements().AddStatement(ifStmt)
	})
	expectError(t, a, line, "All method/function paths must return a value")
}

// select：每个标签与 other 都要返回
func TestReturnPathSelect(t *testing.T) {
	a := returnBuilder(t, func(b *builder, method *ast.Method) {
		caseBody := b.tf.MakeStatementList()
		caseBody.AddStatement(intReturn(b))
		otherBody := b.tf.MakeStatementList()
		otherBody.AddStatement(intReturn(b))

		labels := b.tf.MakeExpressionList()
		labels.AddExpression(b.tf.MakeIntegerLiteral(testFile, b.line, 0))

		selectStmt := b.tf.MakeSelect(testFile, b.nextLine(),
			b.tf.MakeAssignment(testFile, b.line, b.tf.MakeVariable(testFile, b.line, "v"),
				b.tf.MakeIntegerLiteral(testFile, b.line, 1)))
		selectStmt.AddCase(&ast.SelectCase{Labels: labels, Statements: caseBody})
		selectStmt.SetOther(otherBody)
		method.Statements().AddStatement(selectStmt)
	})
	expectNoErrors(t, a)
}

func TestReturnPathSelectWithoutOther(t *testing.T) {
	var line int
	a := returnBuilder(t, func(b *builder, method *ast.Method) {
		line = method.Line()
		caseBody := b.tf.MakeStatementList()
		caseBody.AddStatement(intReturn(b))

		labels := b.tf.MakeExpressionList()
		labels.AddExpression(b.tf.MakeIntegerLiteral(testFile, b.line, 0))

		selectStmt := b.tf.MakeSelect(testFile, b.nextLine(),
			b.tf.MakeAssignment(testFile, b.line, b.tf.MakeVariable(testFile, b.line, "v"),
				b.tf.MakeIntegerLiteral(testFile, b.line, 1)))
		selectStmt.AddCase(&ast.SelectCase{Labels: labels, Statements: caseBody})
		method.Statements().AddStatement(selectStmt)
	})
	expectError(t, a, line, "All method/function paths must return a value")
}

func TestSelectDuplicateLabels(t *testing.T) {
	b := newBuilder()
	app := b.addClass("App", false)
	runner := b.addMethod(app, "Run", ast.PublicMethod, true, false,
		b.ty.MakeType(types.NilType), nil)

	caseOne := b.tf.MakeStatementList()
	labelsOne := b.tf.MakeExpressionList()
	labelsOne.AddExpression(b.tf.MakeIntegerLiteral(testFile, b.nextLine(), 1))

	caseTwo := b.tf.MakeStatementList()
	dupLine := b.nextLine()
	labelsTwo := b.tf.MakeExpressionList()
	labelsTwo.AddExpression(b.tf.MakeIntegerLiteral(testFile, dupLine, 1))

	selectStmt := b.tf.MakeSelect(testFile, b.nextLine(),
		b.tf.MakeAssignment(testFile, b.line, b.tf.MakeVariable(testFile, b.line, "v"),
			b.tf.MakeIntegerLiteral(testFile, b.line, 1)))
	selectStmt.AddCase(&ast.SelectCase{Labels: labelsOne, Statements: caseOne})
	selectStmt.AddCase(&ast.SelectCase{Labels: labelsTwo, Statements: caseTwo})
	runner.Statements().AddStatement(selectStmt)

	a := b.analyze(t)
	expectError(t, a, dupLine, "Duplicate select value")
}
