// type.go - 类型模型
//
// 编译器前端与链接器共享的类型表示：
// - 基础类型（Nil/Bool/Byte/Char/Int/Float/Var）
// - 类类型（带泛型实参与数组维度）
// - 函数类型（参数列表 + 返回类型）
// - 别名类型（分析阶段必须全部展开）
//
// Type 实例由 Factory 创建和持有（ParseType 解码出的实例除外，
// 它们不登记在任何工厂中），别名解析阶段会遍历工厂中的全部实例做原地改写。

package types

import (
	"strings"
)

// Kind 类型种类
type Kind int

const (
	NilType   Kind = iota // 无类型 / 空引用
	BooleanType
	ByteType
	CharType
	IntType
	FloatType
	VarType   // 待推导类型
	AliasType // 别名占位，分析结束前必须消除
	ClassType // 类 / 枚举 / 泛型形参
	FuncType  // 函数引用
)

// Type 类型节点
// Dim 表示数组维度；Resolved 表示名字已规范化为全限定名。
// ClassPtr/LibClassPtr 缓存解析结果，避免重复查表。
type Type struct {
	kind     Kind
	name     string
	dim      int
	resolved bool

	fileName string
	line     int

	// 解析缓存（*ast.Class / *linker.LibraryClass）
	classPtr    any
	libClassPtr any

	// 泛型实参
	generics []*Type

	// 函数类型
	funcParams     []*Type
	funcReturn     *Type
	funcParamCount int
}

// Kind 返回类型种类
func (t *Type) Kind() Kind {
	return t.kind
}

// Name 返回类型名
func (t *Type) Name() string {
	return t.name
}

// SetName 设置类型名
func (t *Type) SetName(name string) {
	t.name = name
}

// Dimension 返回数组维度
func (t *Type) Dimension() int {
	return t.dim
}

// SetDimension 设置数组维度
func (t *Type) SetDimension(dim int) {
	t.dim = dim
}

// IsResolved 名字是否已规范化
func (t *Type) IsResolved() bool {
	return t.resolved
}

// SetResolved 标记名字已规范化
func (t *Type) SetResolved(resolved bool) {
	t.resolved = resolved
}

// FileName 返回源文件名
func (t *Type) FileName() string {
	return t.fileName
}

// Line 返回行号
func (t *Type) Line() int {
	return t.line
}

// ClassPtr 返回缓存的程序类指针
func (t *Type) ClassPtr() any {
	return t.classPtr
}

// SetClassPtr 缓存程序类指针
func (t *Type) SetClassPtr(ptr any) {
	t.classPtr = ptr
}

// LibClassPtr 返回缓存的库类指针
func (t *Type) LibClassPtr() any {
	return t.libClassPtr
}

// SetLibClassPtr 缓存库类指针
func (t *Type) SetLibClassPtr(ptr any) {
	t.libClassPtr = ptr
}

// Generics 返回泛型实参列表
func (t *Type) Generics() []*Type {
	return t.generics
}

// SetGenerics 设置泛型实参列表
func (t *Type) SetGenerics(generics []*Type) {
	t.generics = generics
}

// HasGenerics 是否带泛型实参
func (t *Type) HasGenerics() bool {
	return len(t.generics) > 0
}

// FunctionParameters 返回函数参数类型列表
func (t *Type) FunctionParameters() []*Type {
	return t.funcParams
}

// SetFunctionParameters 设置函数参数类型列表
func (t *Type) SetFunctionParameters(params []*Type) {
	t.funcParams = params
}

// FunctionReturn 返回函数返回类型
func (t *Type) FunctionReturn() *Type {
	return t.funcReturn
}

// SetFunctionReturn 设置函数返回类型
func (t *Type) SetFunctionReturn(rtrn *Type) {
	t.funcReturn = rtrn
}

// FunctionParameterCount 返回调用处的参数个数
func (t *Type) FunctionParameterCount() int {
	return t.funcParamCount
}

// SetFunctionParameterCount 设置调用处的参数个数
func (t *Type) SetFunctionParameterCount(count int) {
	t.funcParamCount = count
}

// Set 用另一个类型的内容覆盖本类型（别名展开时原地改写）
func (t *Type) Set(other *Type) {
	t.kind = other.kind
	t.name = other.name
	t.resolved = other.resolved
	t.classPtr = other.classPtr
	t.libClassPtr = other.libClassPtr
	t.generics = other.generics
	t.funcParams = other.funcParams
	t.funcReturn = other.funcReturn
	t.funcParamCount = other.funcParamCount
	// 维度保留原值：别名不携带维度信息
}

// ============================================================================
// 类型工厂
// ============================================================================

// Factory 类型工厂，持有编译单元内创建的全部类型
type Factory struct {
	instances []*Type
}

// NewFactory 创建类型工厂
func NewFactory() *Factory {
	return &Factory{
		instances: make([]*Type, 0, 256),
	}
}

// Instances 返回全部类型实例（别名解析阶段遍历用）
func (f *Factory) Instances() []*Type {
	return f.instances
}

// MakeType 创建基础类型
func (f *Factory) MakeType(kind Kind) *Type {
	t := &Type{kind: kind}
	f.instances = append(f.instances, t)
	return t
}

// MakeClassType 创建类类型
func (f *Factory) MakeClassType(name string) *Type {
	t := &Type{kind: ClassType, name: name}
	f.instances = append(f.instances, t)
	return t
}

// MakeAliasType 创建别名占位类型
func (f *Factory) MakeAliasType(name string, fileName string, line int) *Type {
	t := &Type{kind: AliasType, name: name, fileName: fileName, line: line}
	f.instances = append(f.instances, t)
	return t
}

// MakeFuncType 创建函数类型
func (f *Factory) MakeFuncType(params []*Type, rtrn *Type) *Type {
	t := &Type{
		kind:           FuncType,
		funcParams:     params,
		funcReturn:     rtrn,
		funcParamCount: len(params),
	}
	f.instances = append(f.instances, t)
	return t
}

// MakeCopy 复制一个类型
func (f *Factory) MakeCopy(other *Type) *Type {
	t := &Type{}
	t.Set(other)
	t.dim = other.dim
	t.fileName = other.fileName
	t.line = other.line
	f.instances = append(f.instances, t)
	return t
}

// ============================================================================
// 编码串解析
// ============================================================================

// ParseType 将签名编码串解析回类型
//
// 语法与编码器对偶：
//   l b c i f n v          基础类型
//   o.<全限定类名>          类类型
//   m.(p1,p2,...)~R        函数类型
//   尾随 '*'               数组维度
func ParseType(encoded string) *Type {
	t, _ := parseType(encoded, 0)
	return t
}

func parseType(encoded string, pos int) (*Type, int) {
	if pos >= len(encoded) {
		return nil, pos
	}

	t := &Type{}
	switch encoded[pos] {
	case 'l':
		t.kind = BooleanType
		pos++
	case 'b':
		t.kind = ByteType
		pos++
	case 'c':
		t.kind = CharType
		pos++
	case 'i':
		t.kind = IntType
		pos++
	case 'f':
		t.kind = FloatType
		pos++
	case 'n':
		t.kind = NilType
		pos++
	case 'v':
		t.kind = VarType
		pos++

	case 'o':
		// o.<类名>，名字延伸到 ',' '*' 或串尾
		t.kind = ClassType
		pos += 2
		start := pos
		for pos < len(encoded) && encoded[pos] != ',' && encoded[pos] != '*' {
			pos++
		}
		t.name = encoded[start:pos]
		t.resolved = true

	case 'm':
		// m.(p1,p2,...)~R
		t.kind = FuncType
		t.name = encoded
		pos += 2
		if pos < len(encoded) && encoded[pos] == '(' {
			pos++
			params := make([]*Type, 0, 4)
			for pos < len(encoded) && encoded[pos] != ')' {
				var param *Type
				param, pos = parseType(encoded, pos)
				if param == nil {
					break
				}
				params = append(params, param)
				if pos < len(encoded) && encoded[pos] == ',' {
					pos++
				}
			}
			if pos < len(encoded) && encoded[pos] == ')' {
				pos++
			}
			if pos < len(encoded) && encoded[pos] == '~' {
				pos++
				t.funcReturn, pos = parseType(encoded, pos)
			}
			t.funcParams = params
			t.funcParamCount = len(params)
		}

	default:
		return nil, pos + 1
	}

	// 数组维度
	for pos < len(encoded) && encoded[pos] == '*' {
		t.dim++
		pos++
	}

	return t, pos
}

// KindName 返回种类的用户可读名（诊断输出用）
func KindName(kind Kind) string {
	switch kind {
	case NilType:
		return "Nil"
	case BooleanType:
		return "System.Bool"
	case ByteType:
		return "System.Byte"
	case CharType:
		return "System.Char"
	case IntType:
		return "Int"
	case FloatType:
		return "System.Float"
	case VarType:
		return "Var"
	case FuncType:
		return "function reference"
	default:
		return "Unknown"
	}
}

// FormatClassName 将内部限定名中的 '#' 还原为用户语法 '->'
func FormatClassName(name string) string {
	return strings.ReplaceAll(name, "#", "->")
}
