package analyzer

import (
	"testing"

	"github.com/tangzhangming/obi/internal/ast"
	"github.com/tangzhangming/obi/internal/types"
)

// ============================================================================
// 重载选择
// ============================================================================

// 全零分候选当选，与声明顺序无关
func TestOverloadExactMatchWinsRegardlessOfOrder(t *testing.T) {
	for _, intFirst := range []bool{true, false} {
		b := newBuilder()
		calc := b.addClass("Calc", false)

		addG := func(kind types.Kind) {
			b.addMethod(calc, "G", ast.PublicMethod, true, false,
				b.ty.MakeType(types.NilType), []param{{name: "v", t: b.ty.MakeType(kind)}})
		}
		if intFirst {
			addG(types.IntType)
			addG(types.FloatType)
		} else {
			addG(types.FloatType)
			addG(types.IntType)
		}

		runner := b.addMethod(calc, "Run", ast.PublicMethod, true, false,
			b.ty.MakeType(types.NilType), nil)

		params := b.tf.MakeExpressionList()
		params.AddExpression(b.tf.MakeIntegerLiteral(testFile, b.line, 2))
		call := b.tf.MakeMethodCall(testFile, b.nextLine(), ast.MethodCallKind,
			"Calc", "G", params)
		runner.Statements().AddStatement(call)

		a := b.analyze(t)
		expectNoErrors(t, a)

		if call.Method() == nil {
			t.Fatalf("intFirst=%v: call not resolved", intFirst)
		}
		got := call.Method().Declarations().Declarations()[0].Entry().Type().Kind()
		if got != types.IntType {
			t.Errorf("intFirst=%v: bound to %v-param overload, want Int", intFirst, got)
		}
	}
}

// 相对匹配：没有精确候选时选择加宽候选
func TestOverloadWideningMatch(t *testing.T) {
	b := newBuilder()
	calc := b.addClass("Calc", false)
	b.addMethod(calc, "G", ast.PublicMethod, true, false, b.ty.MakeType(types.NilType),
		[]param{{name: "v", t: b.ty.MakeType(types.FloatType)}})

	runner := b.addMethod(calc, "Run", ast.PublicMethod, true, false,
		b.ty.MakeType(types.NilType), nil)

	params := b.tf.MakeExpressionList()
	params.AddExpression(b.tf.MakeIntegerLiteral(testFile, b.line, 2))
	call := b.tf.MakeMethodCall(testFile, b.nextLine(), ast.MethodCallKind, "Calc", "G", params)
	runner.Statements().AddStatement(call)

	a := b.analyze(t)
	expectNoErrors(t, a)
	if call.Method() == nil {
		t.Fatal("widening call not resolved")
	}
}

// Bool 只能精确匹配
func TestOverloadBoolNoWidening(t *testing.T) {
	b := newBuilder()
	calc := b.addClass("Calc", false)
	b.addMethod(calc, "G", ast.PublicMethod, true, false, b.ty.MakeType(types.NilType),
		[]param{{name: "v", t: b.ty.MakeType(types.IntType)}})

	runner := b.addMethod(calc, "Run", ast.PublicMethod, true, false,
		b.ty.MakeType(types.NilType), nil)

	callLine := b.nextLine()
	params := b.tf.MakeExpressionList()
	params.AddExpression(b.tf.MakeBooleanLiteral(testFile, callLine, true))
	call := b.tf.MakeMethodCall(testFile, callLine, ast.MethodCallKind, "Calc", "G", params)
	runner.Statements().AddStatement(call)

	a := b.analyze(t)
	expectError(t, a, callLine, "Undefined function/method call")
}

// 重载失败时诊断携带候选签名
func TestOverloadFailureListsAlternatives(t *testing.T) {
	b := newBuilder()
	calc := b.addClass("Calc", false)
	b.addMethod(calc, "G", ast.PublicMethod, true, false, b.ty.MakeType(types.NilType),
		[]param{{name: "v", t: b.ty.MakeType(types.IntType)}})

	runner := b.addMethod(calc, "Run", ast.PublicMethod, true, false,
		b.ty.MakeType(types.NilType), nil)

	callLine := b.nextLine()
	params := b.tf.MakeExpressionList()
	params.AddExpression(b.tf.MakeBooleanLiteral(testFile, callLine, true))
	runner.Statements().AddStatement(b.tf.MakeMethodCall(testFile, callLine,
		ast.MethodCallKind, "Calc", "G", params))

	a := b.analyze(t)
	d := a.Reporter().DiagnosticAt(callLine)
	if d == nil {
		t.Fatal("expected overload failure diagnostic")
	}
	if !contains(d.Message, "Possible alternative(s)") || !contains(d.Message, "Calc:G:i,") {
		t.Errorf("diagnostic missing alternatives: %q", d.Message)
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

// ============================================================================
// 自动装箱 / 拆箱
// ============================================================================

// 原始值传给 Holder 形参：重写为 new XHolder(v)
func TestAutoboxPrimitiveToHolder(t *testing.T) {
	b := newBuilder()
	calc := b.addClass("Calc", false)
	b.addMethod(calc, "H", ast.PublicMethod, true, false, b.ty.MakeType(types.NilType),
		[]param{{name: "h", t: b.ty.MakeClassType("System.IntHolder")}})

	runner := b.addMethod(calc, "Run", ast.PublicMethod, true, false,
		b.ty.MakeType(types.NilType), nil)

	params := b.tf.MakeExpressionList()
	params.AddExpression(b.tf.MakeIntegerLiteral(testFile, b.line, 5))
	call := b.tf.MakeMethodCall(testFile, b.nextLine(), ast.MethodCallKind, "Calc", "H", params)
	runner.Statements().AddStatement(call)

	a := b.analyze(t)
	expectNoErrors(t, a)

	if call.Method() == nil {
		t.Fatal("autoboxed call not resolved")
	}
	boxed, ok := call.CallingParameters().Expressions()[0].(*ast.MethodCall)
	if !ok {
		t.Fatal("parameter not rewritten to construction")
	}
	if boxed.CallType() != ast.NewInstCall || boxed.LibraryMethod() == nil ||
		boxed.LibraryMethod().ShortName() != "New" {
		t.Error("rewritten parameter is not 'new IntHolder(v)'")
	}
}

// Holder 传给原始形参：重写为 h.Get()
func TestUnboxHolderToPrimitive(t *testing.T) {
	b := newBuilder()
	calc := b.addClass("Calc", false)
	b.addMethod(calc, "I", ast.PublicMethod, true, false, b.ty.MakeType(types.NilType),
		[]param{{name: "x", t: b.ty.MakeType(types.IntType)}})

	runner := b.addMethod(calc, "Run", ast.PublicMethod, true, false,
		b.ty.MakeType(types.NilType), nil)
	b.addLocal(runner, "h", b.ty.MakeClassType("System.IntHolder"))

	params := b.tf.MakeExpressionList()
	params.AddExpression(b.tf.MakeVariable(testFile, b.line, "h"))
	call := b.tf.MakeMethodCall(testFile, b.nextLine(), ast.MethodCallKind, "Calc", "I", params)
	runner.Statements().AddStatement(call)

	a := b.analyze(t)
	expectNoErrors(t, a)

	if call.Method() == nil {
		t.Fatal("unboxed call not resolved")
	}
	unboxed, ok := call.CallingParameters().Expressions()[0].(*ast.MethodCall)
	if !ok {
		t.Fatal("parameter not rewritten to accessor call")
	}
	if unboxed.LibraryMethod() == nil || unboxed.LibraryMethod().ShortName() != "Get" {
		t.Error("rewritten parameter is not 'h.Get()'")
	}
}

// ============================================================================
// Lambda 类型推导
// ============================================================================

func TestLambdaInference(t *testing.T) {
	b := newBuilder()
	app := b.addClass("App", false)

	// Map 的唯一参数是函数类型 (Int)~Int
	funcType := b.ty.MakeFuncType(
		[]*types.Type{b.ty.MakeType(types.IntType)}, b.ty.MakeType(types.IntType))
	b.addMethod(app, "Map", ast.PublicMethod, true, false, b.ty.MakeType(types.NilType),
		[]param{{name: "fn", t: funcType}})

	runner := b.addMethod(app, "Run", ast.PublicMethod, true, false,
		b.ty.MakeType(types.NilType), nil)

	// lambda：参数待推导，方法体返回常量
	lambdaMethod := b.tf.MakeMethod(testFile, b.line, "App:#lambda#0", ast.PublicMethod,
		true, false)
	xEntry := b.tf.MakeSymbolEntry(testFile, b.line, "App:#lambda#0:x",
		b.ty.MakeType(types.VarType), false, true)
	lambdaMethod.Declarations().AddDeclaration(
		b.tf.MakeDeclaration(testFile, b.line, xEntry, nil))
	lambdaMethod.Statements().AddStatement(b.tf.MakeReturn(testFile, b.line,
		b.tf.MakeIntegerLiteral(testFile, b.line, 1)))

	lambda := b.tf.MakeLambda(testFile, b.nextLine(), "", nil, lambdaMethod)

	params := b.tf.MakeExpressionList()
	params.AddExpression(lambda)
	call := b.tf.MakeMethodCall(testFile, b.line, ast.MethodCallKind, "App", "Map", params)
	runner.Statements().AddStatement(call)

	a := b.analyze(t)
	expectNoErrors(t, a)

	// 参数与返回类型从被调方声明回填
	if got := xEntry.Type().Kind(); got != types.IntType {
		t.Errorf("lambda parameter type = %v, want Int", got)
	}
	if got := lambdaMethod.Return().Kind(); got != types.IntType {
		t.Errorf("lambda return type = %v, want Int", got)
	}

	if call.Method() == nil {
		t.Fatal("call with lambda argument not resolved")
	}
	if call.Method().ShortName() != "Map" {
		t.Errorf("call bound to %q, want Map", call.Method().ShortName())
	}

	// lambda 重写为函数引用调用
	rewritten := lambda.LambdaMethodCall()
	if rewritten == nil {
		t.Fatal("lambda not rewritten to method call")
	}
	if rewritten.Method() == nil || rewritten.Method() != lambdaMethod {
		t.Error("rewritten call not bound to generated lambda method")
	}
	if lambda.EvalType() == nil || lambda.EvalType().Kind() != types.FuncType {
		t.Error("lambda eval type is not a function type")
	}
}
