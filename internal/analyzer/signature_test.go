package analyzer

import (
	"testing"

	"github.com/tangzhangming/obi/internal/ast"
	"github.com/tangzhangming/obi/internal/linker"
	"github.com/tangzhangming/obi/internal/types"
)

// sigAnalyzer 编码测试用的最小分析器
func sigAnalyzer(b *builder) *Analyzer {
	a := New(b.prog, linker.NewLinker(nil), b.ty, b.tf, Options{IsLib: true})
	a.bundle = b.bundle
	if len(b.bundle.Classes()) > 0 {
		a.currentClass = b.bundle.Classes()[0]
	}
	return a
}

func TestEncodeTypePrimitives(t *testing.T) {
	b := newBuilder()
	b.addClass("App", false)
	a := sigAnalyzer(b)

	tests := []struct {
		kind types.Kind
		want string
	}{
		{types.BooleanType, "l"},
		{types.ByteType, "b"},
		{types.CharType, "c"},
		{types.IntType, "i"},
		{types.FloatType, "f"},
		{types.NilType, "n"},
		{types.VarType, "v"},
	}
	for _, tt := range tests {
		if got := a.encodeType(b.ty.MakeType(tt.kind)); got != tt.want {
			t.Errorf("encodeType(%v) = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestEncodeTypeClass(t *testing.T) {
	b := newBuilder()
	b.addClass("App", false)
	a := sigAnalyzer(b)

	// 库类解析为全限定名
	if got := a.encodeType(b.ty.MakeClassType("System.String")); got != "o.System.String" {
		t.Errorf("encodeType(String) = %q", got)
	}
	// 程序类
	if got := a.encodeType(b.ty.MakeClassType("App")); got != "o.App" {
		t.Errorf("encodeType(App) = %q", got)
	}
}

func TestEncodeFunctionType(t *testing.T) {
	b := newBuilder()
	b.addClass("App", false)
	a := sigAnalyzer(b)

	strType := b.ty.MakeClassType("System.String")
	got := a.encodeFunctionType(
		[]*types.Type{b.ty.MakeType(types.IntType), strType},
		b.ty.MakeType(types.FloatType))
	if got != "(i,o.System.String,)~f" {
		t.Errorf("encodeFunctionType = %q", got)
	}
}

// 编码是 (类名, 短名, 参数类型) 的确定性函数
func TestEncodeMethodSignatureDeterministic(t *testing.T) {
	for run := 0; run < 2; run++ {
		b := newBuilder()
		app := b.addClass("App", false)
		strType := b.ty.MakeClassType("System.String")
		strType.SetDimension(1)
		method := b.addMethod(app, "Main", ast.PublicMethod, true, false,
			b.ty.MakeType(types.NilType), []param{{name: "args", t: strType}})

		a := sigAnalyzer(b)
		a.encodeMethodSignature(app, method)

		const want = "App:Main:o.System.String*,"
		if method.EncodedName() != want {
			t.Fatalf("run %d: encoded = %q, want %q", run, method.EncodedName(), want)
		}

		// 重复编码字节级一致
		first := method.EncodedName()
		a.encodeMethodSignature(app, method)
		if method.EncodedName() != first {
			t.Errorf("re-encoding changed signature: %q vs %q", first, method.EncodedName())
		}
	}
}

func TestEncodeMethodSignatureZeroArg(t *testing.T) {
	b := newBuilder()
	app := b.addClass("App", false)
	method := b.addMethod(app, "Size", ast.PublicMethod, false, false,
		b.ty.MakeType(types.IntType), nil)

	a := sigAnalyzer(b)
	a.encodeMethodSignature(app, method)

	if method.EncodedName() != "App:Size:" {
		t.Errorf("zero-arg encoded = %q, want %q", method.EncodedName(), "App:Size:")
	}
	if method.EncodedReturn() != "i" {
		t.Errorf("encoded return = %q, want %q", method.EncodedReturn(), "i")
	}
}

func TestEncodeMethodCallArguments(t *testing.T) {
	b := newBuilder()
	app := b.addClass("App", false)
	runner := b.addMethod(app, "Run", ast.PublicMethod, true, false,
		b.ty.MakeType(types.NilType), nil)
	_ = runner

	a := New(b.prog, linker.NewLinker(nil), b.ty, b.tf, Options{IsLib: true})
	a.Analyze()

	// 分析后上下文可用
	a.bundle = b.bundle
	a.currentClass = app

	params := b.tf.MakeExpressionList()
	lit := b.tf.MakeIntegerLiteral(testFile, 1, 7)
	lit.SetEvalType(b.ty.MakeType(types.IntType), true)
	params.AddExpression(lit)

	flit := b.tf.MakeFloatLiteral(testFile, 1, 1.5)
	flit.SetEvalType(b.ty.MakeType(types.FloatType), true)
	params.AddExpression(flit)

	if got := a.encodeMethodCall(params); got != "i,f," {
		t.Errorf("encodeMethodCall = %q, want %q", got, "i,f,")
	}
}
