package analyzer

import (
	"strings"
	"testing"

	"github.com/tangzhangming/obi/internal/ast"
	"github.com/tangzhangming/obi/internal/linker"
	"github.com/tangzhangming/obi/internal/types"
)

// ============================================================================
// 测试程序搭建
// ============================================================================

const testFile = "test.obs"

// builder 手工搭建程序树
type builder struct {
	prog   *ast.Program
	bundle *ast.Bundle
	tf     *ast.TreeFactory
	ty     *types.Factory
	line   int
}

func newBuilder() *builder {
	b := &builder{
		prog: ast.NewProgram(testFile),
		tf:   ast.NewTreeFactory(),
		ty:   types.NewFactory(),
		line: 1,
	}
	b.bundle = ast.NewBundle("")
	b.prog.AddBundle(b.bundle)
	return b
}

// nextLine 每个节点占一行，便于按行断言诊断
func (b *builder) nextLine() int {
	b.line++
	return b.line
}

// addClass 创建并登记类
func (b *builder) addClass(name string, isInterface bool) *ast.Class {
	klass := ast.NewClass(testFile, b.nextLine(), name, "", isInterface, false, true)
	b.bundle.AddClass(klass)
	return klass
}

// param 参数描述
type param struct {
	name string
	t    *types.Type
	dflt ast.Expression // 默认值，可为 nil
}

// addMethod 创建方法、登记参数符号并挂到类上
func (b *builder) addMethod(klass *ast.Class, short string, methodType ast.MethodKind,
	isStatic, isVirtual bool, rtrn *types.Type, params []param) *ast.Method {
	method := b.tf.MakeMethod(testFile, b.nextLine(), klass.Name()+":"+short, methodType,
		isStatic, false)
	method.SetVirtual(isVirtual)
	method.SetReturn(rtrn)

	table := b.bundle.SymbolTableManager().GetSymbolTable(method.ParsedName())
	for _, p := range params {
		entry := b.tf.MakeSymbolEntry(testFile, b.line, method.Name()+":"+p.name, p.t, false, true)
		table.AddEntry(entry, true)

		var assignment *ast.Assignment
		if p.dflt != nil {
			assignment = b.tf.MakeAssignment(testFile, b.line,
				b.tf.MakeVariable(testFile, b.line, p.name), p.dflt)
		}
		method.Declarations().AddDeclaration(
			b.tf.MakeDeclaration(testFile, b.line, entry, assignment))
	}

	klass.AddMethod(method)
	return method
}

// addLocal 在方法作用域登记局部变量
func (b *builder) addLocal(method *ast.Method, name string, t *types.Type) *ast.SymbolEntry {
	table := b.bundle.SymbolTableManager().GetSymbolTable(method.ParsedName())
	entry := b.tf.MakeSymbolEntry(testFile, b.line, method.Name()+":"+name, t, false, true)
	table.AddEntry(entry, true)
	return entry
}

// analyze 运行分析（库模式，跳过入口点检查）
func (b *builder) analyze(t *testing.T) *Analyzer {
	t.Helper()
	a := New(b.prog, linker.NewLinker(nil), b.ty, b.tf, Options{IsLib: true})
	a.Analyze()
	return a
}

// expectError 断言某行出现包含子串的诊断
func expectError(t *testing.T, a *Analyzer, line int, substr string) {
	t.Helper()
	d := a.Reporter().DiagnosticAt(line)
	if d == nil {
		t.Fatalf("expected error at line %d containing %q, got none", line, substr)
	}
	if !strings.Contains(d.Message, substr) {
		t.Fatalf("error at line %d = %q, want substring %q", line, d.Message, substr)
	}
}

// expectNoErrors 断言分析全程无诊断
func expectNoErrors(t *testing.T, a *Analyzer) {
	t.Helper()
	if a.Reporter().HasErrors() {
		for _, d := range a.Reporter().Diagnostics() {
			t.Errorf("unexpected diagnostic: %s", d)
		}
		t.FailNow()
	}
}

// ============================================================================
// 默认参数展开
// ============================================================================

func TestDefaultParameterExpansion(t *testing.T) {
	b := newBuilder()
	calc := b.addClass("Calc", false)

	b.addMethod(calc, "F", ast.PublicMethod, true, false, b.ty.MakeType(types.NilType), []param{
		{name: "a", t: b.ty.MakeType(types.IntType)},
		{name: "b", t: b.ty.MakeType(types.IntType),
			dflt: b.tf.MakeIntegerLiteral(testFile, b.line, 3)},
		{name: "c", t: b.ty.MakeType(types.IntType),
			dflt: b.tf.MakeIntegerLiteral(testFile, b.line, 4)},
	})

	runner := b.addMethod(calc, "Run", ast.PublicMethod, true, false,
		b.ty.MakeType(types.NilType), nil)

	// F(1) / F(1,2) / F(1,2,5) 全部可解析
	calls := make([]*ast.MethodCall, 3)
	for i, argCount := range []int{1, 2, 3} {
		params := b.tf.MakeExpressionList()
		for j := 0; j < argCount; j++ {
			params.AddExpression(b.tf.MakeIntegerLiteral(testFile, b.line, int64(j+1)))
		}
		calls[i] = b.tf.MakeMethodCall(testFile, b.nextLine(), ast.MethodCallKind,
			"Calc", "F", params)
		runner.Statements().AddStatement(calls[i])
	}

	// F() 无匹配重载
	failLine := b.nextLine()
	failCall := b.tf.MakeMethodCall(testFile, failLine, ast.MethodCallKind,
		"Calc", "F", b.tf.MakeExpressionList())
	runner.Statements().AddStatement(failCall)

	a := b.analyze(t)

	// 三个编码签名
	for _, encoded := range []string{"Calc:F:i,", "Calc:F:i,i,", "Calc:F:i,i,i,"} {
		if calc.GetMethod(encoded) == nil {
			t.Errorf("missing expanded method %q", encoded)
		}
	}

	for i, call := range calls {
		if call.Method() == nil {
			t.Errorf("call with %d arg(s) not resolved", i+1)
			continue
		}
		if got := call.Method().Declarations().Size(); got != i+1 {
			t.Errorf("call with %d arg(s) bound to %d-param method", i+1, got)
		}
	}

	expectError(t, a, failLine, "Undefined function/method call")
}

func TestDefaultParameterMustBeTrailing(t *testing.T) {
	b := newBuilder()
	calc := b.addClass("Calc", false)
	declLine := b.line + 1

	b.addMethod(calc, "F", ast.PublicMethod, true, false, b.ty.MakeType(types.NilType), []param{
		{name: "a", t: b.ty.MakeType(types.IntType),
			dflt: b.tf.MakeIntegerLiteral(testFile, declLine, 1)},
		{name: "b", t: b.ty.MakeType(types.IntType)},
		{name: "c", t: b.ty.MakeType(types.IntType),
			dflt: b.tf.MakeIntegerLiteral(testFile, declLine, 2)},
	})

	a := b.analyze(t)
	expectError(t, a, declLine, "Only trailing parameters may have default values")
}

func TestDefaultParameterVirtualRejected(t *testing.T) {
	b := newBuilder()
	iter := b.addClass("Iter", true)
	methodLine := b.line + 1

	b.addMethod(iter, "Next", ast.PublicMethod, false, true, b.ty.MakeType(types.IntType), []param{
		{name: "n", t: b.ty.MakeType(types.IntType),
			dflt: b.tf.MakeIntegerLiteral(testFile, methodLine, 1)},
	})

	a := b.analyze(t)
	expectError(t, a, methodLine,
		"Virtual methods and interfaces cannot contain default parameter values")
}

// ============================================================================
// 接口实现
// ============================================================================

func TestInterfaceMethodMissing(t *testing.T) {
	b := newBuilder()
	iter := b.addClass("Iter", true)
	b.addMethod(iter, "Next", ast.PublicMethod, false, true, b.ty.MakeType(types.IntType), nil)

	listLine := b.line + 1
	list := b.addClass("List", false)
	list.SetInterfaceNames([]string{"Iter"})

	a := b.analyze(t)
	expectError(t, a, listLine, "Not all methods have been implemented for the interface: Iter")
}

func TestInterfaceMethodStaticMismatch(t *testing.T) {
	b := newBuilder()
	iter := b.addClass("Iter", true)
	b.addMethod(iter, "Next", ast.PublicMethod, false, true, b.ty.MakeType(types.IntType), nil)

	listLine := b.line + 1
	list := b.addClass("List", false)
	list.SetInterfaceNames([]string{"Iter"})

	// 提供了 Next，但声明成了静态函数
	nextMethod := b.addMethod(list, "Next", ast.PublicMethod, true, false,
		b.ty.MakeType(types.IntType), nil)
	nextMethod.Statements().AddStatement(b.tf.MakeReturn(testFile, b.line,
		b.tf.MakeIntegerLiteral(testFile, b.line, 0)))

	a := b.analyze(t)
	expectError(t, a, listLine,
		"Not all virtual methods have been defined for class/interface: Iter")
}

func TestInterfaceConformance(t *testing.T) {
	b := newBuilder()
	iter := b.addClass("Iter", true)
	b.addMethod(iter, "Next", ast.PublicMethod, false, true, b.ty.MakeType(types.IntType), nil)

	list := b.addClass("List", false)
	list.SetInterfaceNames([]string{"Iter"})
	nextMethod := b.addMethod(list, "Next", ast.PublicMethod, false, false,
		b.ty.MakeType(types.IntType), nil)
	nextMethod.Statements().AddStatement(b.tf.MakeReturn(testFile, b.line,
		b.tf.MakeIntegerLiteral(testFile, b.line, 0)))

	a := b.analyze(t)
	expectNoErrors(t, a)

	if len(list.Interfaces()) != 1 || list.Interfaces()[0] != iter {
		t.Error("interface not recorded on implementing class")
	}
	if len(iter.Children()) != 1 || iter.Children()[0] != list {
		t.Error("implementing class not recorded as interface child")
	}
}

// ============================================================================
// 泛型 backing
// ============================================================================

func TestGenericBackingIncompatible(t *testing.T) {
	b := newBuilder()
	comparable := b.addClass("Comparable", true)
	b.addMethod(comparable, "Compare", ast.PublicMethod, false, true,
		b.ty.MakeType(types.IntType), nil)

	b.addClass("String", false)

	box := b.addClass("Box", false)
	generic := ast.NewClass(testFile, b.line, "T", "", false, false, true)
	generic.SetGenericInterface(b.ty.MakeClassType("Comparable"))
	box.SetGenericClasses([]*ast.Class{generic})
	newMethod := b.addMethod(box, "New", ast.NewPublicMethod, false, false,
		b.ty.MakeClassType("Box"), nil)
	_ = newMethod

	app := b.addClass("App", false)
	runner := b.addMethod(app, "Run", ast.PublicMethod, true, false,
		b.ty.MakeType(types.NilType), nil)

	callLine := b.nextLine()
	call := b.tf.MakeMethodCall(testFile, callLine, ast.NewInstCall, "Box", "New",
		b.tf.MakeExpressionList())
	call.SetConcreteTypes([]*types.Type{b.ty.MakeClassType("String")})
	runner.Statements().AddStatement(call)

	a := b.analyze(t)
	expectError(t, a, callLine,
		"Concrete class: 'String' is incompatible with backing class/interface 'Comparable'")
}

func TestGenericBackingSatisfied(t *testing.T) {
	b := newBuilder()
	comparable := b.addClass("Comparable", true)
	compareMethod := b.addMethod(comparable, "Compare", ast.PublicMethod, false, true,
		b.ty.MakeType(types.IntType), nil)
	_ = compareMethod

	str := b.addClass("String", false)
	str.SetInterfaceNames([]string{"Comparable"})
	implMethod := b.addMethod(str, "Compare", ast.PublicMethod, false, false,
		b.ty.MakeType(types.IntType), nil)
	implMethod.Statements().AddStatement(b.tf.MakeReturn(testFile, b.line,
		b.tf.MakeIntegerLiteral(testFile, b.line, 0)))

	box := b.addClass("Box", false)
	generic := ast.NewClass(testFile, b.line, "T", "", false, false, true)
	generic.SetGenericInterface(b.ty.MakeClassType("Comparable"))
	box.SetGenericClasses([]*ast.Class{generic})
	b.addMethod(box, "New", ast.NewPublicMethod, false, false, b.ty.MakeClassType("Box"), nil)

	app := b.addClass("App", false)
	runner := b.addMethod(app, "Run", ast.PublicMethod, true, false,
		b.ty.MakeType(types.NilType), nil)

	call := b.tf.MakeMethodCall(testFile, b.nextLine(), ast.NewInstCall, "Box", "New",
		b.tf.MakeExpressionList())
	call.SetConcreteTypes([]*types.Type{b.ty.MakeClassType("String")})
	runner.Statements().AddStatement(call)

	a := b.analyze(t)
	expectNoErrors(t, a)

	if call.Method() == nil {
		t.Fatal("constructor call not resolved")
	}
	if generics := call.EvalType().Generics(); len(generics) != 1 ||
		generics[0].Name() != "String" {
		t.Error("concrete types not installed on construction eval type")
	}
}

// ============================================================================
// 转换矩阵方向
// ============================================================================

func TestCastMatrixDirection(t *testing.T) {
	b := newBuilder()
	app := b.addClass("App", false)
	runner := b.addMethod(app, "Run", ast.PublicMethod, true, false,
		b.ty.MakeType(types.NilType), nil)

	b.addLocal(runner, "i", b.ty.MakeType(types.IntType))
	b.addLocal(runner, "f", b.ty.MakeType(types.FloatType))

	// i := f 收窄：隐式转换
	narrowLine := b.nextLine()
	fExpr := b.tf.MakeVariable(testFile, narrowLine, "f")
	runner.Statements().AddStatement(b.tf.MakeAssignment(testFile, narrowLine,
		b.tf.MakeVariable(testFile, narrowLine, "i"), fExpr))

	// f := i 反向：要求显式转换
	widenLine := b.nextLine()
	iExpr := b.tf.MakeVariable(testFile, widenLine, "i")
	runner.Statements().AddStatement(b.tf.MakeAssignment(testFile, widenLine,
		b.tf.MakeVariable(testFile, widenLine, "f"), iExpr))

	a := b.analyze(t)

	if a.Reporter().DiagnosticAt(narrowLine) != nil {
		t.Errorf("narrowing assignment reported: %s", a.Reporter().DiagnosticAt(narrowLine))
	}
	if fExpr.CastType() == nil || fExpr.CastType().Kind() != types.IntType {
		t.Error("implicit narrowing cast not installed on RHS")
	}

	expectError(t, a, widenLine, "Invalid cast with classes: Int and Float")
}

func TestCastBoolIntRejected(t *testing.T) {
	b := newBuilder()
	app := b.addClass("App", false)
	runner := b.addMethod(app, "Run", ast.PublicMethod, true, false,
		b.ty.MakeType(types.NilType), nil)

	b.addLocal(runner, "i", b.ty.MakeType(types.IntType))

	line := b.nextLine()
	runner.Statements().AddStatement(b.tf.MakeAssignment(testFile, line,
		b.tf.MakeVariable(testFile, line, "i"),
		b.tf.MakeBooleanLiteral(testFile, line, true)))

	a := b.analyze(t)
	expectError(t, a, line, "Invalid cast with classes: Int and System.Bool")
}

// ============================================================================
// 控制流
// ============================================================================

func TestBreakOutsideLoop(t *testing.T) {
	b := newBuilder()
	app := b.addClass("App", false)
	runner := b.addMethod(app, "Run", ast.PublicMethod, true, false,
		b.ty.MakeType(types.NilType), nil)

	line := b.nextLine()
	runner.Statements().AddStatement(b.tf.MakeBreak(testFile, line))

	a := b.analyze(t)
	expectError(t, a, line, "Breaks are only allowed in loops")
}

func TestBreakInsideLoop(t *testing.T) {
	b := newBuilder()
	app := b.addClass("App", false)
	runner := b.addMethod(app, "Run", ast.PublicMethod, true, false,
		b.ty.MakeType(types.NilType), nil)

	body := b.tf.MakeStatementList()
	body.AddStatement(b.tf.MakeBreak(testFile, b.nextLine()))
	runner.Statements().AddStatement(b.tf.MakeWhile(testFile, b.nextLine(),
		b.tf.MakeBooleanLiteral(testFile, b.line, true), body))

	a := b.analyze(t)
	expectNoErrors(t, a)
}

func TestLeavingMustBeTopLevel(t *testing.T) {
	b := newBuilder()
	app := b.addClass("App", false)
	runner := b.addMethod(app, "Run", ast.PublicMethod, true, false,
		b.ty.MakeType(types.NilType), nil)

	leavingLine := b.nextLine()
	nested := b.tf.MakeStatementList()
	nested.AddStatement(b.tf.MakeLeaving(testFile, leavingLine, b.tf.MakeStatementList()))
	runner.Statements().AddStatement(b.tf.MakeWhile(testFile, b.nextLine(),
		b.tf.MakeBooleanLiteral(testFile, b.line, true), nested))

	a := b.analyze(t)
	expectError(t, a, leavingLine, "'leaving' block must be a top level statement")
}

func TestSingleLeavingBlock(t *testing.T) {
	b := newBuilder()
	app := b.addClass("App", false)
	runner := b.addMethod(app, "Run", ast.PublicMethod, true, false,
		b.ty.MakeType(types.NilType), nil)

	runner.Statements().AddStatement(b.tf.MakeLeaving(testFile, b.nextLine(),
		b.tf.MakeStatementList()))
	secondLine := b.nextLine()
	runner.Statements().AddStatement(b.tf.MakeLeaving(testFile, secondLine,
		b.tf.MakeStatementList()))

	a := b.analyze(t)
	expectError(t, a, secondLine, "may have only 1 'leaving' block")
}

// ============================================================================
// 不变式
// ============================================================================

// 输出树上每个已解析调用恰有一个绑定目标
func TestResolvedCallHasSingleTarget(t *testing.T) {
	b := newBuilder()
	calc := b.addClass("Calc", false)
	b.addMethod(calc, "F", ast.PublicMethod, true, false, b.ty.MakeType(types.NilType), []param{
		{name: "a", t: b.ty.MakeType(types.IntType)},
	})
	runner := b.addMethod(calc, "Run", ast.PublicMethod, true, false,
		b.ty.MakeType(types.NilType), nil)

	params := b.tf.MakeExpressionList()
	params.AddExpression(b.tf.MakeIntegerLiteral(testFile, b.line, 1))
	call := b.tf.MakeMethodCall(testFile, b.nextLine(), ast.MethodCallKind, "Calc", "F", params)
	runner.Statements().AddStatement(call)

	a := b.analyze(t)
	expectNoErrors(t, a)

	targets := 0
	if call.Method() != nil {
		targets++
	}
	if call.LibraryMethod() != nil {
		targets++
	}
	if call.EnumItem() != nil {
		targets++
	}
	if call.LibraryEnumItem() != nil {
		targets++
	}
	if call.FunctionalCall() != nil {
		targets++
	}
	if targets != 1 {
		t.Errorf("resolved call has %d targets, want exactly 1", targets)
	}
}

// 分析失败后程序树被丢弃
func TestFailedAnalysisReleasesProgram(t *testing.T) {
	b := newBuilder()
	app := b.addClass("App", false)
	runner := b.addMethod(app, "Run", ast.PublicMethod, true, false,
		b.ty.MakeType(types.NilType), nil)
	runner.Statements().AddStatement(b.tf.MakeBreak(testFile, b.nextLine()))

	a := b.analyze(t)
	if !a.Reporter().HasErrors() {
		t.Fatal("expected analysis failure")
	}
	if a.Program() != nil {
		t.Error("program tree not released after failed analysis")
	}
}

// 枚举引用绑定与 select 标签
func TestEnumResolution(t *testing.T) {
	b := newBuilder()

	color := ast.NewEnum(testFile, b.nextLine(), "Color")
	color.AddItem(ast.NewEnumItem("Red", 0))
	color.AddItem(ast.NewEnumItem("Green", 1))
	b.bundle.AddEnum(color)

	app := b.addClass("App", false)
	runner := b.addMethod(app, "Run", ast.PublicMethod, true, false,
		b.ty.MakeType(types.NilType), nil)

	call := b.tf.MakeMethodCall(testFile, b.nextLine(), ast.EnumCall, "Color", "Green", nil)
	runner.Statements().AddStatement(call)

	badLine := b.nextLine()
	badCall := b.tf.MakeMethodCall(testFile, badLine, ast.EnumCall, "Color", "Blue", nil)
	runner.Statements().AddStatement(badCall)

	a := b.analyze(t)

	if call.EnumItem() == nil || call.EnumItem().ID() != 1 {
		t.Error("enum item not bound")
	}
	if call.EvalType() == nil || call.EvalType().Name() != "Color" {
		t.Error("enum call eval type not set")
	}
	expectError(t, a, badLine, "Undefined enum item: 'Blue'")
}
