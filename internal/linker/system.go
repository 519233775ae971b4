// system.go - 内建 System bundle
//
// 注册分析器依赖的最小运行时类集合：
// System.Base（根类）、System.String、五个 Holder 装箱类。
// 完整标准库由外部共享库提供，这里只保证自举所需的符号存在。

package linker

import (
	"github.com/tangzhangming/obi/internal/types"
)

// 运行时核心类名
const (
	SystemBaseName   = "System.Base"
	SystemStringName = "System.String"

	BoolHolderName  = "System.BoolHolder"
	ByteHolderName  = "System.ByteHolder"
	CharHolderName  = "System.CharHolder"
	IntHolderName   = "System.IntHolder"
	FloatHolderName = "System.FloatHolder"
)

// IsHolderType 是否为装箱 Holder 类
func IsHolderType(name string) bool {
	switch name {
	case BoolHolderName, ByteHolderName, CharHolderName, IntHolderName, FloatHolderName:
		return true
	}
	return false
}

// HolderNameFor 基础类型对应的 Holder 类名，非基础类型返回空串
func HolderNameFor(kind types.Kind) string {
	switch kind {
	case types.BooleanType:
		return BoolHolderName
	case types.ByteType:
		return ByteHolderName
	case types.CharType:
		return CharHolderName
	case types.IntType:
		return IntHolderName
	case types.FloatType:
		return FloatHolderName
	}
	return ""
}

// registerSystemBundle 构建内建 System bundle
func (l *Linker) registerSystemBundle() {
	factory := types.NewFactory()
	system := NewBundle("System")

	// 根类
	base := NewLibraryClass(SystemBaseName, "System", "", false, false, true)
	system.Classes[SystemBaseName] = base

	// 字符串
	str := NewLibraryClass(SystemStringName, "System", SystemBaseName, false, false, true)
	strType := factory.MakeClassType(SystemStringName)
	strType.SetResolved(true)
	str.AddMethod(NewLibraryMethod(SystemStringName+":ToString:", "ToString",
		"System.String->ToString()", PublicMethod, false, false, true,
		strType, "o."+SystemStringName, nil))
	str.AddMethod(NewLibraryMethod(SystemStringName+":Size:", "Size",
		"System.String->Size()", PublicMethod, false, false, true,
		factory.MakeType(types.IntType), "i", nil))
	system.Classes[SystemStringName] = str

	// 装箱类：构造自原始值，Get 取回原始值
	l.registerHolder(system, factory, BoolHolderName, types.BooleanType, "l")
	l.registerHolder(system, factory, ByteHolderName, types.ByteType, "b")
	l.registerHolder(system, factory, CharHolderName, types.CharType, "c")
	l.registerHolder(system, factory, IntHolderName, types.IntType, "i")
	l.registerHolder(system, factory, FloatHolderName, types.FloatType, "f")

	l.bundles["System"] = system
}

// registerHolder 注册一个 Holder 装箱类
func (l *Linker) registerHolder(bundle *Bundle, factory *types.Factory, name string,
	kind types.Kind, code string) {
	holder := NewLibraryClass(name, "System", SystemBaseName, false, false, true)

	primitive := factory.MakeType(kind)
	selfType := factory.MakeClassType(name)
	selfType.SetResolved(true)

	// 构造：New(v)
	holder.AddMethod(NewLibraryMethod(name+":New:"+code+",", "New",
		types.FormatClassName(name)+"->New(..)", NewPublicMethod, false, false, true,
		selfType, "o."+name, []*types.Type{primitive}))

	// 取回：Get()
	holder.AddMethod(NewLibraryMethod(name+":Get:", "Get",
		types.FormatClassName(name)+"->Get()", PublicMethod, false, false, true,
		primitive, code, nil))

	// 回写：Set(v)
	holder.AddMethod(NewLibraryMethod(name+":Set:"+code+",", "Set",
		types.FormatClassName(name)+"->Set(..)", PublicMethod, false, false, true,
		factory.MakeType(types.NilType), "n", []*types.Type{primitive}))

	bundle.Classes[name] = holder
}
