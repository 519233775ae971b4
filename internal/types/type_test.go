package types

import (
	"testing"
)

func TestParseTypePrimitives(t *testing.T) {
	tests := []struct {
		encoded string
		kind    Kind
	}{
		{"l", BooleanType},
		{"b", ByteType},
		{"c", CharType},
		{"i", IntType},
		{"f", FloatType},
		{"n", NilType},
		{"v", VarType},
	}
	for _, tt := range tests {
		parsed := ParseType(tt.encoded)
		if parsed == nil || parsed.Kind() != tt.kind {
			t.Errorf("ParseType(%q) kind = %v, want %v", tt.encoded, parsed, tt.kind)
		}
	}
}

func TestParseTypeClass(t *testing.T) {
	parsed := ParseType("o.System.String")
	if parsed == nil || parsed.Kind() != ClassType {
		t.Fatal("expected class type")
	}
	if parsed.Name() != "System.String" {
		t.Errorf("name = %q", parsed.Name())
	}
	if !parsed.IsResolved() {
		t.Error("parsed class name should be resolved")
	}
}

func TestParseTypeDimension(t *testing.T) {
	parsed := ParseType("i**")
	if parsed.Kind() != IntType || parsed.Dimension() != 2 {
		t.Errorf("kind=%v dim=%d", parsed.Kind(), parsed.Dimension())
	}

	parsed = ParseType("o.System.String*")
	if parsed.Kind() != ClassType || parsed.Dimension() != 1 ||
		parsed.Name() != "System.String" {
		t.Errorf("kind=%v dim=%d name=%q", parsed.Kind(), parsed.Dimension(), parsed.Name())
	}
}

func TestParseTypeFunction(t *testing.T) {
	parsed := ParseType("m.(i,o.System.String,)~f")
	if parsed == nil || parsed.Kind() != FuncType {
		t.Fatal("expected function type")
	}

	params := parsed.FunctionParameters()
	if len(params) != 2 {
		t.Fatalf("parameter count = %d, want 2", len(params))
	}
	if params[0].Kind() != IntType {
		t.Errorf("param[0] kind = %v", params[0].Kind())
	}
	if params[1].Kind() != ClassType || params[1].Name() != "System.String" {
		t.Errorf("param[1] = %v %q", params[1].Kind(), params[1].Name())
	}
	if parsed.FunctionReturn() == nil || parsed.FunctionReturn().Kind() != FloatType {
		t.Error("return kind mismatch")
	}
	if parsed.FunctionParameterCount() != 2 {
		t.Errorf("parameter count = %d", parsed.FunctionParameterCount())
	}
}

func TestParseTypeNestedFunction(t *testing.T) {
	parsed := ParseType("m.(m.(i,)~i,)~n")
	if parsed == nil || parsed.Kind() != FuncType {
		t.Fatal("expected function type")
	}
	params := parsed.FunctionParameters()
	if len(params) != 1 || params[0].Kind() != FuncType {
		t.Fatal("expected nested function parameter")
	}
	inner := params[0]
	if len(inner.FunctionParameters()) != 1 ||
		inner.FunctionParameters()[0].Kind() != IntType {
		t.Error("nested parameter mismatch")
	}
}

// 别名展开原地改写，保留维度
func TestTypeSetPreservesDimension(t *testing.T) {
	factory := NewFactory()

	alias := factory.MakeAliasType("IntList", "test.obs", 3)
	alias.SetDimension(2)

	expansion := factory.MakeClassType("System.String")
	alias.Set(expansion)

	if alias.Kind() != ClassType || alias.Name() != "System.String" {
		t.Error("alias not rewritten in place")
	}
	if alias.Dimension() != 2 {
		t.Errorf("dimension = %d, want 2", alias.Dimension())
	}
}

func TestFactoryTracksInstances(t *testing.T) {
	factory := NewFactory()
	factory.MakeType(IntType)
	factory.MakeClassType("App")
	factory.MakeAliasType("A#Int", "test.obs", 1)

	aliases := 0
	for _, instance := range factory.Instances() {
		if instance.Kind() == AliasType {
			aliases++
		}
	}
	if aliases != 1 {
		t.Errorf("alias instances = %d, want 1", aliases)
	}
}

func TestMakeCopyIndependent(t *testing.T) {
	factory := NewFactory()
	original := factory.MakeClassType("App")
	original.SetDimension(1)

	copied := factory.MakeCopy(original)
	copied.SetDimension(0)
	copied.SetName("Other")

	if original.Dimension() != 1 || original.Name() != "App" {
		t.Error("copy mutated the original")
	}
}
