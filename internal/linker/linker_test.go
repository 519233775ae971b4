package linker

import (
	"testing"

	"github.com/tangzhangming/obi/internal/types"
)

// 内建 System bundle 在构造时注册
func TestSystemBundleRegistered(t *testing.T) {
	l := NewLinker(nil)

	if !l.HasBundleName("System") {
		t.Fatal("System bundle not registered")
	}

	for _, name := range []string{SystemBaseName, SystemStringName,
		BoolHolderName, ByteHolderName, CharHolderName, IntHolderName, FloatHolderName} {
		if l.SearchClassLibraries(name, nil) == nil {
			t.Errorf("built-in class %q not found", name)
		}
	}
}

// 检索顺序：全限定名优先，然后逐 use 前缀
func TestSearchClassLibrariesUsesPrefix(t *testing.T) {
	l := NewLinker(nil)

	if l.SearchClassLibraries("String", nil) != nil {
		t.Error("bare name resolved without a use prefix")
	}

	cls := l.SearchClassLibraries("String", []string{"System"})
	if cls == nil || cls.Name() != SystemStringName {
		t.Errorf("use-prefixed lookup = %v", cls)
	}

	if l.SearchClassLibraries(SystemStringName, nil) == nil {
		t.Error("fully qualified lookup failed")
	}
}

// Holder 类携带构造 / Get / Set 三个方法
func TestHolderMethods(t *testing.T) {
	l := NewLinker(nil)

	holder := l.SearchClassLibraries(IntHolderName, nil)
	if holder == nil {
		t.Fatal("IntHolder not registered")
	}

	newMethod := holder.GetMethod(IntHolderName + ":New:i,")
	if newMethod == nil || newMethod.MethodType() != NewPublicMethod {
		t.Error("IntHolder constructor missing")
	}

	getMethod := holder.GetMethod(IntHolderName + ":Get:")
	if getMethod == nil || getMethod.Return().Kind() != types.IntType {
		t.Error("IntHolder Get missing or mistyped")
	}

	if holder.GetMethod(IntHolderName+":Set:i,") == nil {
		t.Error("IntHolder Set missing")
	}

	if got := len(holder.UnqualifiedMethods("Get")); got != 1 {
		t.Errorf("UnqualifiedMethods(Get) = %d entries", got)
	}
}

func TestIsHolderType(t *testing.T) {
	if !IsHolderType(IntHolderName) || IsHolderType(SystemStringName) {
		t.Error("IsHolderType misclassification")
	}
	if HolderNameFor(types.FloatType) != FloatHolderName {
		t.Error("HolderNameFor(Float) mismatch")
	}
	if HolderNameFor(types.ClassType) != "" {
		t.Error("HolderNameFor should be empty for class kinds")
	}
}
