// signature.go - 签名编码器
//
// 方法签名与紧凑查找串之间的双向编码（解码在 types.ParseType）：
//   基础类型  l b c i f n v
//   类类型    o.<全限定类名>
//   函数类型  m.(p1,p2,...)~R
//   数组维度  每阶一个 '*'
//   参数结尾  ','
// 方法全名   Class:Short:P1,P2,...
//
// 类名按 程序 -> bundle 限定 -> 逐 use 前缀 的顺序解析；
// 本文件的编码函数不做泛型形参替换：形参按其自身类名编码；
// 重载匹配前的具体类型替换由 resolveGenericTypeFor 完成。

package analyzer

import (
	"github.com/tangzhangming/obi/internal/ast"
	"github.com/tangzhangming/obi/internal/types"
)

// 函数引用位置的基础类型标识符
const (
	boolClassID  = "$Bool"
	byteClassID  = "$Byte"
	charClassID  = "$Char"
	intClassID   = "$Int"
	floatClassID = "$Float"
	nilClassID   = "$Nil"
	varClassID   = "$Var"

	baseArrayClassID = "System.Base"
)

// encodeType 编码单个类型（不含维度与结尾逗号）
func (a *Analyzer) encodeType(t *types.Type) string {
	if t == nil {
		return ""
	}

	switch t.Kind() {
	case types.BooleanType:
		return "l"
	case types.ByteType:
		return "b"
	case types.IntType:
		return "i"
	case types.FloatType:
		return "f"
	case types.CharType:
		return "c"
	case types.NilType:
		return "n"
	case types.VarType:
		return "v"
	case types.AliasType:
		return ""

	case types.ClassType:
		encoded := "o."
		klass, libKlass := a.getProgramLibraryClass(t)
		if klass != nil {
			encoded += klass.Name()
		} else if libKlass != nil {
			encoded += libKlass.Name()
		} else {
			encoded += t.Name()
		}
		return encoded

	case types.FuncType:
		if t.Name() == "" {
			t.SetName("m." + a.encodeFunctionType(t.FunctionParameters(), t.FunctionReturn()))
		}
		return t.Name()
	}

	return ""
}

// encodeFunctionType 编码函数类型体 (p1,p2,...)~R
func (a *Analyzer) encodeFunctionType(funcParams []*types.Type, funcReturn *types.Type) string {
	encoded := "("
	for _, param := range funcParams {
		encoded += a.encodeType(param)
		for i := 0; i < param.Dimension(); i++ {
			encoded += "*"
		}
		encoded += ","
	}

	encoded += ")~"
	encoded += a.encodeType(funcReturn)
	if funcReturn != nil {
		for i := 0; i < funcReturn.Dimension(); i++ {
			encoded += "*"
		}
	}
	return encoded
}

// encodeMethodCall 按实参类型编码调用参数串
func (a *Analyzer) encodeMethodCall(callingParams *ast.ExpressionList) string {
	encoded := ""
	for _, expression := range callingParams.Expressions() {
		for expression.MethodCall() != nil {
			a.analyzeExpressionMethodCall(expression)
			expression = expression.MethodCall()
		}

		var t *types.Type
		if expression.CastType() != nil {
			t = expression.CastType()
		} else {
			t = expression.EvalType()
		}

		if t != nil {
			encoded += a.encodeType(t)
			if !a.isScalar(expression, true) {
				for i := 0; i < t.Dimension(); i++ {
					encoded += "*"
				}
			}
			encoded += ","
		}
	}
	return encoded
}

// encodeFunctionReference 编码函数引用的形参标识列表
// 形参写作 $Int、$Float 等基础标识或类名变量
func (a *Analyzer) encodeFunctionReference(callingParams *ast.ExpressionList) string {
	encoded := ""
	for _, expression := range callingParams.Expressions() {
		variable, ok := expression.(*ast.Variable)
		if !ok {
			// 制造匹配失败
			encoded += "#"
			continue
		}

		switch variable.Name() {
		case boolClassID:
			encoded += "l"
			variable.SetEvalType(a.typeFactory.MakeType(types.BooleanType), true)
		case byteClassID:
			encoded += "b"
			variable.SetEvalType(a.typeFactory.MakeType(types.ByteType), true)
		case intClassID:
			encoded += "i"
			variable.SetEvalType(a.typeFactory.MakeType(types.IntType), true)
		case floatClassID:
			encoded += "f"
			variable.SetEvalType(a.typeFactory.MakeType(types.FloatType), true)
		case charClassID:
			encoded += "c"
			variable.SetEvalType(a.typeFactory.MakeType(types.CharType), true)
		case nilClassID:
			encoded += "n"
			variable.SetEvalType(a.typeFactory.MakeType(types.NilType), true)
		case varClassID:
			encoded += "v"
			variable.SetEvalType(a.typeFactory.MakeType(types.VarType), true)
		default:
			encoded += "o."
			klassName := variable.Name()
			klass := a.program.GetClass(klassName)
			if klass == nil {
				for _, use := range a.program.UsesFor(a.currentClass.FileName()) {
					if klass = a.program.GetClass(use + "." + klassName); klass != nil {
						break
					}
				}
			}
			if klass != nil {
				encoded += klass.Name()
				variable.SetEvalType(a.typeFactory.MakeClassType(klass.Name()), true)
			} else if libKlass := a.linker.SearchClassLibraries(klassName,
				a.program.UsesFor(a.currentClass.FileName())); libKlass != nil {
				encoded += libKlass.Name()
				variable.SetEvalType(a.typeFactory.MakeClassType(libKlass.Name()), true)
			} else {
				encoded += variable.Name()
				variable.SetEvalType(a.typeFactory.MakeClassType(variable.Name()), true)
			}
		}

		// 维度
		if variable.Indices() != nil {
			indices := variable.Indices().Expressions()
			variable.EvalType().SetDimension(len(indices))
			for range indices {
				encoded += "*"
			}
		}

		encoded += ","
	}
	return encoded
}

// encodeMethodSignature 重编码方法签名并生成编码名
func (a *Analyzer) encodeMethodSignature(klass *ast.Class, method *ast.Method) {
	encoded := klass.Name() + ":" + method.ShortName() + ":"
	for _, declaration := range method.Declarations().Declarations() {
		entry := declaration.Entry()
		if entry == nil || entry.Type() == nil {
			continue
		}
		t := entry.Type()
		encoded += a.encodeType(t)
		for i := 0; i < t.Dimension(); i++ {
			encoded += "*"
		}
		encoded += ","
	}
	method.SetEncodedName(encoded)

	// 返回编码（函数引用匹配用）
	if rtrn := method.Return(); rtrn != nil {
		encodedReturn := a.encodeType(rtrn)
		for i := 0; i < rtrn.Dimension(); i++ {
			encodedReturn += "*"
		}
		method.SetEncodedReturn(encodedReturn)
	}
}

// encodeAliasSignature 重编码别名的全部展开
func (a *Analyzer) encodeAliasSignature(alias *ast.Alias) {
	for _, t := range alias.Types() {
		if t.Kind() == types.ClassType {
			a.resolveClassEnumType(t, a.currentClass)
		} else if t.Kind() == types.FuncType && t.Name() == "" {
			t.SetName("m." + a.encodeFunctionType(t.FunctionParameters(), t.FunctionReturn()))
		}
	}
	alias.SetEncodedName(alias.Name())
}
