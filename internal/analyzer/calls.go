// calls.go - 方法调用分析
//
// 调用形态：普通/构造/数组构造/父调用/枚举引用/函数引用/动态函数变量。
// 解析顺序：程序类 -> 库类 -> 接收者表达式类型 -> 动态函数变量。
// 绑定结果恰为 method / libraryMethod / enumItem / libraryEnumItem /
// functionalCall 之一。

package analyzer

import (
	"github.com/tangzhangming/obi/internal/ast"
	"github.com/tangzhangming/obi/internal/linker"
	"github.com/tangzhangming/obi/internal/types"
)

// 内建标识
const (
	selfID   = "@self"
	parentID = "@parent"
)

// analyzeMethodCallNode 调用分析入口
func (a *Analyzer) analyzeMethodCallNode(methodCall *ast.MethodCall) {
	switch methodCall.CallType() {
	case ast.NewArrayCall:
		a.analyzeNewArrayCall(methodCall)

	case ast.EnumCall:
		a.analyzeEnumCall(methodCall)

	case ast.ParentCall:
		a.analyzeParentCall(methodCall)

	default:
		a.analyzeGeneralMethodCall(methodCall)
	}
}

// analyzeEnumCall 枚举引用：库枚举全限定名优先，其后程序枚举与 @self/@parent
func (a *Analyzer) analyzeEnumCall(methodCall *ast.MethodCall) {
	variableName := methodCall.VariableName()
	methodName := methodCall.MethodName()
	uses := a.program.UsesFor(a.currentClass.FileName())

	// 库枚举
	libEnum := a.linker.SearchEnumLibraries(variableName+"#"+methodName, uses)
	if libEnum == nil {
		libEnum = a.linker.SearchEnumLibraries(variableName, uses)
	}

	if libEnum != nil && methodCall.MethodCall() != nil {
		a.resolveLibraryEnumCall(libEnum, methodCall.MethodCall().VariableName(), methodCall)
	} else if libEnum != nil {
		a.resolveLibraryEnumCall(libEnum, methodName, methodCall)
	} else {
		// 程序枚举
		var enumName, itemName string
		if variableName == a.currentClass.Name() && methodCall.MethodCall() != nil {
			enumName = methodName
			itemName = methodCall.MethodCall().VariableName()
		} else {
			enumName = variableName
			itemName = methodName
		}

		eenum := a.searchProgramEnums(enumName + "#" + itemName)
		if eenum != nil && methodCall.MethodCall() != nil {
			itemName = methodCall.MethodCall().VariableName()
		}
		if eenum == nil {
			// 类内嵌套引用
			eenum = a.searchProgramEnums(a.currentClass.Name() + "#" + enumName)
			if eenum == nil {
				eenum = a.searchProgramEnums(enumName)
			}
		}

		if eenum != nil {
			if item := eenum.GetItem(itemName); item != nil {
				enumType := a.typeFactory.MakeClassType(eenum.Name())
				if next := methodCall.MethodCall(); next != nil {
					next.SetEnumItem(item, eenum.Name())
					methodCall.SetEvalType(enumType, false)
					next.SetEvalType(methodCall.EvalType(), false)
				} else {
					methodCall.SetEnumItem(item, eenum.Name())
					methodCall.SetEvalType(enumType, false)
				}
			} else {
				a.ProcessError(methodCall.FileName(), methodCall.Line(),
					"Undefined enum item: '"+itemName+"'")
			}
		} else if enumName == selfID {
			// @self 字段引用
			entry := a.getEntry(itemName)
			if entry != nil && !entry.IsLocal() && !entry.IsStatic() {
				a.addMethodParameter(methodCall, entry)
			} else {
				a.ProcessError(methodCall.FileName(), methodCall.Line(),
					"Invalid '@self' reference for variable: '"+itemName+"'")
			}
		} else if enumName == parentID {
			// @parent 字段引用
			entry := a.getEntryParent(itemName, true)
			if entry != nil && !entry.IsLocal() && !entry.IsStatic() {
				a.addMethodParameter(methodCall, entry)
			} else {
				a.ProcessError(methodCall.FileName(), methodCall.Line(),
					"Invalid '@parent' reference for variable: '"+itemName+"'")
			}
		} else {
			a.ProcessError(methodCall.FileName(), methodCall.Line(),
				"Undefined or incompatible enum type: '"+types.FormatClassName(enumName)+"'")
		}
	}

	// 链上的后续调用
	a.analyzeExpressionMethodCall(methodCall)
}

// resolveLibraryEnumCall 绑定库枚举项
func (a *Analyzer) resolveLibraryEnumCall(libEnum *linker.LibraryEnum, itemName string,
	methodCall *ast.MethodCall) {
	libItem := libEnum.GetItem(itemName)
	if libItem == nil {
		a.ProcessError(methodCall.FileName(), methodCall.Line(),
			"Undefined enum item: '"+itemName+"'")
		return
	}

	enumType := a.typeFactory.MakeClassType(libEnum.Name())
	if next := methodCall.MethodCall(); next != nil {
		next.SetLibraryEnumItem(libItem, libEnum.Name())
		methodCall.SetEvalType(enumType, false)
		next.SetEvalType(methodCall.EvalType(), false)
	} else {
		methodCall.SetLibraryEnumItem(libItem, libEnum.Name())
		methodCall.SetEvalType(enumType, false)
	}
}

// addMethodParameter @self/@parent 引用重写为变量
func (a *Analyzer) addMethodParameter(methodCall *ast.MethodCall, entry *ast.SymbolEntry) {
	paramName := shortEntryName(entry.Name())
	if paramName == "" {
		return
	}
	variable := a.treeFactory.MakeVariable(methodCall.FileName(), methodCall.Line(), paramName)
	methodCall.SetVariable(variable)
	a.analyzeVariableEntry(variable, entry)
}

// analyzeNewArrayCall 数组构造：下标须为整型族，泛型数组校验实参
func (a *Analyzer) analyzeNewArrayCall(methodCall *ast.MethodCall) {
	// 泛型形参元素类型替换为 backing 接口
	if evalType := methodCall.EvalType(); evalType != nil {
		genericClass := a.currentClass.GetGenericClass(evalType.Name())
		if genericClass != nil && genericClass.HasGenericInterface() {
			dimension := evalType.Dimension()
			methodCall.SetEvalType(genericClass.GenericInterface(), false)
			methodCall.EvalType().SetDimension(dimension)
		}
	}

	callParams := methodCall.CallingParameters()
	a.analyzeExpressions(callParams)

	expressions := callParams.Expressions()
	if len(expressions) == 0 {
		a.ProcessError(methodCall.FileName(), methodCall.Line(), "Empty array index")
	}

	for _, expression := range expressions {
		a.analyzeExpression(expression)
		t := a.getExpressionType(expression)
		if t == nil {
			continue
		}
		switch t.Kind() {
		case types.ByteType, types.CharType, types.IntType:

		case types.ClassType:
			if !a.isEnumExpression(expression) {
				a.ProcessError(expression.FileName(), expression.Line(),
					"Array index type must be an Integer, Char, Byte or Enum")
			}

		default:
			a.ProcessError(expression.FileName(), expression.Line(),
				"Array index type must be an Integer, Char, Byte or Enum")
		}
	}

	// 泛型数组
	if methodCall.HasConcreteTypes() && methodCall.EvalType() != nil {
		genericKlass, genericLibKlass := a.getProgramLibraryClass(methodCall.EvalType())
		if genericKlass != nil || genericLibKlass != nil {
			concreteTypes := a.getConcreteTypes(methodCall)
			var genericCount int
			if genericKlass != nil {
				genericCount = len(genericKlass.GenericClasses())
			} else {
				genericCount = len(genericLibKlass.GenericClasses())
			}
			if len(concreteTypes) == genericCount {
				methodCall.EvalType().SetGenerics(concreteTypes)
			} else {
				a.ProcessError(methodCall.FileName(), methodCall.Line(),
					"Concrete to generic size mismatch")
			}
		}
	}
}

// analyzeParentCall 父构造调用
func (a *Analyzer) analyzeParentCall(methodCall *ast.MethodCall) {
	a.analyzeExpressions(methodCall.CallingParameters())

	if parent := a.currentClass.Parent(); parent != nil {
		encoding := ""
		a.analyzeProgramClassCall(parent, methodCall, false, encoding)
	} else if libParent := a.currentClass.LibraryParent(); libParent != nil {
		encoding := ""
		a.analyzeLibraryClassCall(libParent, methodCall, false, encoding, true)
	} else {
		a.ProcessError(methodCall.FileName(), methodCall.Line(), "Class has no parent")
	}
}

// analyzeGeneralMethodCall 普通/构造/函数引用调用
func (a *Analyzer) analyzeGeneralMethodCall(methodCall *ast.MethodCall) {
	variableName := methodCall.VariableName()
	entry := a.getCallEntry(methodCall, variableName)
	if entry != nil && a.invalidStaticEntry(entry) && a.captureLambda == nil {
		a.ProcessError(methodCall.FileName(), methodCall.Line(),
			"Cannot reference an instance variable from this context")
	} else if methodCall.Variable() != nil {
		a.analyzeVariable(methodCall.Variable())
	} else if a.captureLambda != nil {
		// lambda 体内的自由引用按捕获变量处理
		fullClassName := a.getProgramLibraryClassName(variableName)
		if !a.hasProgramLibraryEnum(fullClassName) && !a.hasProgramLibraryClass(fullClassName) {
			variable := a.treeFactory.MakeVariable(methodCall.FileName(), methodCall.Line(),
				fullClassName)
			a.analyzeVariable(variable)
			methodCall.SetVariable(variable)
			entry = a.getCallEntry(methodCall, fullClassName)
		}
	}

	encoding := ""

	// 程序类
	if klass := a.analyzeProgramMethodCall(methodCall, &encoding); klass != nil {
		if methodCall.IsFunctionDefinition() {
			a.analyzeFunctionReference(klass, methodCall, encoding)
		} else if methodCall.Method() == nil && methodCall.LibraryMethod() == nil {
			a.analyzeProgramClassCall(klass, methodCall, false, encoding)
		}
		a.analyzeGenericMethodCall(methodCall)
		return
	}

	// 库类
	if libKlass := a.analyzeLibraryMethodCall(methodCall, &encoding); libKlass != nil {
		if methodCall.IsFunctionDefinition() {
			a.analyzeLibraryFunctionReference(libKlass, methodCall, encoding)
		} else if methodCall.Method() == nil && methodCall.LibraryMethod() == nil {
			a.analyzeLibraryClassCall(libKlass, methodCall, false, encoding, false)
		}
		a.analyzeGenericMethodCall(methodCall)
		return
	}

	if entry != nil {
		var klass *ast.Class
		var libKlass *linker.LibraryClass
		isEnumCall := false
		var resolved bool
		if methodCall.Variable() != nil {
			resolved = a.analyzeReceiverType(methodCall.Variable(), &encoding, &klass, &libKlass,
				&isEnumCall)
		} else {
			t := entry.Type()
			if t != nil {
				resolved = a.analyzeReceiverKind(t, t.Dimension(), &encoding, &klass, &libKlass,
					&isEnumCall)
			}
		}
		if !resolved {
			a.ProcessError(methodCall.FileName(), methodCall.Line(),
				"Invalid class type or assignment")
		}

		if klass != nil {
			a.analyzeProgramClassCall(klass, methodCall, false, encoding)
		} else if libKlass != nil {
			a.analyzeLibraryClassCall(libKlass, methodCall, false, encoding, false)
		} else {
			a.reportUndefinedCall(methodCall, variableName)
		}
	} else {
		a.reportUndefinedCall(methodCall, variableName)
	}
}

// reportUndefinedCall 未解析的调用诊断
func (a *Analyzer) reportUndefinedCall(methodCall *ast.MethodCall, variableName string) {
	if variableName != "" {
		a.ProcessError(methodCall.FileName(), methodCall.Line(),
			"Undefined class: '"+variableName+"'")
	} else {
		a.ProcessError(methodCall.FileName(), methodCall.Line(),
			"Undefined class or method call: '"+methodCall.MethodName()+"'")
	}
}

// ============================================================================
// 接收者类型解析
// ============================================================================

// analyzeReceiverType 从表达式解析接收者类与编码前缀
func (a *Analyzer) analyzeReceiverType(expression ast.Expression, encoding *string,
	klass **ast.Class, libKlass **linker.LibraryClass, isEnumCall *bool) bool {
	var t *types.Type

	if expression.CastType() != nil {
		if call, ok := expression.(*ast.MethodCall); ok && call.Variable() != nil {
			for expression.MethodCall() != nil {
				a.analyzeExpressionMethodCall(expression.MethodCall())
				expression = expression.MethodCall()
			}
			t = expression.EvalType()
		} else if variable, ok := expression.(*ast.Variable); ok {
			// 带下标的元素禁止带 cast 继续调用
			if variable.Indices() != nil {
				a.ProcessError(expression.FileName(), expression.Line(),
					"Unable to make a method call from an indexed array element")
				return false
			}
			t = expression.CastType()
		} else {
			t = expression.CastType()
		}
	} else {
		t = expression.EvalType()
	}

	if expression.ExpressionType() == ast.StatAryExpr {
		a.ProcessError(expression.FileName(), expression.Line(),
			"Unable to make method calls on static arrays")
		return false
	}

	if t == nil {
		return false
	}

	dimension := 0
	if !a.isScalar(expression, false) {
		dimension = t.Dimension()
	}
	return a.analyzeReceiverKind(t, dimension, encoding, klass, libKlass, isEnumCall)
}

// analyzeReceiverKind 按类型种类解析接收者类与编码前缀
func (a *Analyzer) analyzeReceiverKind(t *types.Type, dimension int, encoding *string,
	klass **ast.Class, libKlass **linker.LibraryClass, isEnumCall *bool) bool {
	uses := a.program.UsesFor(a.currentClass.FileName())

	switch t.Kind() {
	case types.BooleanType:
		*libKlass = a.linker.SearchClassLibraries(linker.BoolHolderName, uses)
		*encoding = "l"

	case types.VarType, types.NilType:
		return false

	case types.ByteType:
		*libKlass = a.linker.SearchClassLibraries(linker.ByteHolderName, uses)
		*encoding = "b"

	case types.CharType:
		*libKlass = a.linker.SearchClassLibraries(linker.CharHolderName, uses)
		*encoding = "c"

	case types.IntType:
		*libKlass = a.linker.SearchClassLibraries(linker.IntHolderName, uses)
		*encoding = "i"

	case types.FloatType:
		*libKlass = a.linker.SearchClassLibraries(linker.FloatHolderName, uses)
		*encoding = "f"

	case types.ClassType:
		if dimension > 0 && t.Dimension() > 0 {
			// 数组按 System.Base 处理
			*klass = a.program.GetClass(baseArrayClassID)
			*libKlass = a.linker.SearchClassLibraries(baseArrayClassID, uses)
			*encoding = "o.System.Base"
		} else {
			clsName := t.Name()
			*klass = a.searchProgramClasses(clsName)
			*libKlass = a.linker.SearchClassLibraries(clsName, uses)

			if *klass == nil && *libKlass == nil && a.hasProgramLibraryEnum(clsName) {
				// 枚举值按 Int 处理
				*libKlass = a.linker.SearchClassLibraries(linker.IntHolderName, uses)
				*encoding = "i,"
				*isEnumCall = true
			}
		}

	default:
		return false
	}

	for i := 0; i < dimension; i++ {
		*encoding += "*"
	}
	if t.Kind() != types.ClassType {
		*encoding += ","
	}

	return true
}

// ============================================================================
// 程序 / 库调用解析
// ============================================================================

// analyzeProgramMethodCall 解析程序侧接收者类
func (a *Analyzer) analyzeProgramMethodCall(methodCall *ast.MethodCall, encoding *string) *ast.Class {
	var klass *ast.Class

	variableName := methodCall.VariableName()
	if methodCall.MethodName() == "" {
		// 本类内调用
		klass = a.searchProgramClasses(a.currentClass.Name())
	} else {
		entry := a.getCallEntry(methodCall, variableName)
		if entry != nil && entry.Type() != nil && entry.Type().Kind() == types.ClassType {
			if entry.Type().Dimension() > 0 &&
				(methodCall.Variable() == nil || methodCall.Variable().Indices() == nil) {
				klass = a.program.GetClass(baseArrayClassID)
				*encoding = "o.System.Base"
				for i := 0; i < entry.Type().Dimension(); i++ {
					*encoding += "*"
				}
				*encoding += ","
			} else if variable := methodCall.Variable(); variable != nil &&
				variable.CastType() != nil && variable.CastType().Kind() == types.ClassType {
				klass = a.searchProgramClasses(variable.CastType().Name())
			} else {
				klass = a.searchProgramClasses(entry.Type().Name())
			}
		}
		// 静态调用
		if klass == nil {
			klass = a.searchProgramClasses(variableName)
		}
	}

	if variable := methodCall.Variable(); variable != nil && variable.CastType() != nil &&
		variable.CastType().Kind() == types.ClassType {
		a.analyzeClassCastExpr(variable.CastType(), methodCall)
	} else if methodCall.CastType() != nil && methodCall.CastType().Kind() == types.ClassType {
		a.analyzeVariableCast(methodCall.CastType(), methodCall)
	}

	return klass
}

// analyzeLibraryMethodCall 解析库侧接收者类
func (a *Analyzer) analyzeLibraryMethodCall(methodCall *ast.MethodCall, encoding *string) *linker.LibraryClass {
	var klass *linker.LibraryClass
	variableName := methodCall.VariableName()
	uses := a.program.UsesFor(a.currentClass.FileName())

	entry := a.getCallEntry(methodCall, variableName)
	if entry != nil && entry.Type() != nil && entry.Type().Kind() == types.ClassType {
		if entry.Type().Dimension() > 0 &&
			(methodCall.Variable() == nil || methodCall.Variable().Indices() == nil) {
			klass = a.linker.SearchClassLibraries(baseArrayClassID, uses)
			*encoding = "o.System.Base"
			for i := 0; i < entry.Type().Dimension(); i++ {
				*encoding += "*"
			}
			*encoding += ","
		} else if variable := methodCall.Variable(); variable != nil &&
			variable.CastType() != nil && variable.CastType().Kind() == types.ClassType {
			klass = a.linker.SearchClassLibraries(variable.CastType().Name(), uses)
			methodCall.SetTypes(entry.Type())
		} else {
			klass = a.linker.SearchClassLibraries(entry.Type().Name(), uses)
		}
	}
	if klass == nil {
		klass = a.linker.SearchClassLibraries(variableName, uses)
	}

	if variable := methodCall.Variable(); variable != nil && variable.CastType() != nil &&
		variable.CastType().Kind() == types.ClassType {
		a.analyzeClassCastExpr(variable.CastType(), methodCall)
	} else if methodCall.CastType() != nil && methodCall.CastType().Kind() == types.ClassType {
		a.analyzeVariableCast(methodCall.CastType(), methodCall)
	}

	return klass
}

// analyzeExpressionMethodCall 表达式的链式后续调用
func (a *Analyzer) analyzeExpressionMethodCall(expression ast.Expression) {
	methodCall := expression.MethodCall()
	if methodCall == nil || methodCall.CallType() == ast.EnumCall {
		return
	}

	encoding := ""
	var klass *ast.Class
	var libKlass *linker.LibraryClass
	isEnumCall := false

	if !a.analyzeReceiverType(expression, &encoding, &klass, &libKlass, &isEnumCall) {
		a.ProcessError(methodCall.FileName(), methodCall.Line(),
			"Invalid class type or assignment")
	}
	methodCall.SetEnumCall(isEnumCall)
	methodCall.SetPreviousExpression(expression)

	if klass != nil {
		a.analyzeProgramClassCall(klass, methodCall, true, encoding)
	} else if libKlass != nil {
		a.analyzeLibraryClassCall(libKlass, methodCall, true, encoding, false)
	} else {
		if expression.EvalType() != nil {
			a.ProcessError(methodCall.FileName(), methodCall.Line(),
				"Undefined class reference: '"+expression.EvalType().Name()+
					"'\n\tIf external reference to generic ensure it has been typed")
		} else {
			a.ProcessError(methodCall.FileName(), methodCall.Line(),
				"Undefined class reference.\n\tIf external reference to generic ensure it has been typed")
		}
	}
}

// analyzeProgramClassCall 程序类上的调用绑定
func (a *Analyzer) analyzeProgramClassCall(klass *ast.Class, methodCall *ast.MethodCall,
	isExpr bool, encoding string) {
	callParams := methodCall.CallingParameters()

	a.checkLambdaInferredTypes(methodCall)
	a.analyzeExpressions(callParams)

	method := a.resolveMethodCall(klass, methodCall)
	if method == nil {
		// 编码名兜底（$Int 等系统方法）
		encodedName := klass.Name() + ":" + methodCall.MethodName() + ":" + encoding +
			a.encodeMethodCall(methodCall.CallingParameters())
		method = klass.GetMethod(encodedName)
	}

	if method == nil {
		if parent := klass.Parent(); parent != nil {
			methodCall.SetOriginalClass(klass)
			a.analyzeProgramClassCall(parent, methodCall, isExpr, "")
			return
		} else if libParent := klass.LibraryParent(); libParent != nil {
			methodCall.SetOriginalClass(klass)
			a.analyzeLibraryClassCall(libParent, methodCall, isExpr, "", true)
			return
		}
		a.analyzeVariableFunctionCall(methodCall)
		return
	}

	// 隐式转换检查
	mthdParams := method.Declarations().Declarations()
	expressions := callParams.Expressions()
	if len(mthdParams) != len(expressions) {
		a.ProcessError(methodCall.FileName(), methodCall.Line(), "Invalid method call context")
		return
	}

	for _, mthdParam := range mthdParams {
		a.analyzeDeclaration(mthdParam, klass)
	}

	for i, expression := range expressions {
		for expression.MethodCall() != nil {
			a.analyzeExpressionMethodCall(expression)
			expression = expression.MethodCall()
		}
		if mthdParams[i].Entry() == nil {
			continue
		}
		if expression.ExpressionType() == ast.MethodCallExpr && expression.EvalType() != nil &&
			expression.EvalType().Kind() == types.NilType {
			a.ProcessError(methodCall.FileName(), methodCall.Line(),
				"Invalid operation with 'Nil' value")
		}
		left := a.resolveGenericTypeFor(mthdParams[i].Entry().Type(), methodCall, klass, nil)
		a.analyzeRightCastTypes(left, expression.EvalType(), expression, a.isScalar(expression, true))
	}

	// 私有方法跨类访问
	if a.currentMethod != nil && method.Class() != a.currentMethod.Class() && !method.IsStatic() &&
		(method.MethodType() == ast.PrivateMethod || method.MethodType() == ast.NewPrivateMethod) {
		found := false
		parent := a.currentMethod.Class().Parent()
		for parent != nil && !found {
			if method.Class() == parent {
				found = true
			}
			parent = parent.Parent()
		}
		if !found {
			a.ProcessError(methodCall.FileName(), methodCall.Line(),
				"Cannot reference a private method from this context")
		}
	}

	// 私有类跨 bundle 访问
	if !klass.IsPublic() && a.currentClass.BundleName() != klass.BundleName() {
		a.ProcessError(methodCall.FileName(), methodCall.Line(),
			"Cannot access private class '"+klass.Name()+"' from this bundle scope")
	}

	// 静态上下文
	if !isExpr && a.invalidStaticCall(methodCall, method) {
		a.ProcessError(methodCall.FileName(), methodCall.Line(),
			"Cannot reference an instance method from this context")
	}

	// 虚类不可实例化
	isNew := method.MethodType() == ast.NewPublicMethod || method.MethodType() == ast.NewPrivateMethod
	if isNew && klass.IsVirtual() && a.currentClass.Parent() != klass {
		a.ProcessError(methodCall.FileName(), methodCall.Line(),
			"Cannot create an instance of a virtual class or interface")
	}

	// 绑定
	klass.SetCalled(true)
	methodCall.SetOriginalClass(klass)
	methodCall.SetMethod(method)

	// 泛型实参校验与安装
	sameClsReturn := a.classEquals(method.Return().Name(), klass, nil)
	if (isNew || sameClsReturn) && klass.HasGenerics() {
		classGenerics := klass.GenericClasses()
		concreteTypes := a.getConcreteTypes(methodCall)
		if len(classGenerics) != len(concreteTypes) {
			a.ProcessError(methodCall.FileName(), methodCall.Line(),
				"Cannot create an unqualified instance of class: '"+klass.Name()+"'")
		} else {
			for i, concreteType := range concreteTypes {
				classGeneric := classGenerics[i]
				if classGeneric.HasGenericInterface() {
					backingType := classGeneric.GenericInterface()
					a.resolveClassEnumType(backingType, a.currentClass)
					a.resolveClassEnumType(concreteType, a.currentClass)
					a.validateGenericBacking(concreteType, backingType.Name(), methodCall)
				}
			}
		}
		if methodCall.EvalType() != nil {
			methodCall.EvalType().SetGenerics(concreteTypes)
		}
	}

	// 返回类型的泛型替换
	evalType := methodCall.EvalType()
	if klass.HasGenerics() {
		evalType = a.resolveGenericReturnType(evalType, methodCall, klass, nil)
		methodCall.SetEvalType(evalType, false)
	}

	if evalType != nil && evalType.Kind() == types.ClassType &&
		!a.resolveClassEnumType(evalType, klass) {
		a.ProcessError(methodCall.FileName(), methodCall.Line(),
			"Undefined class or enum: '"+types.FormatClassName(evalType.Name())+"'")
	}

	// 链上后续调用的类型
	if next := methodCall.MethodCall(); next != nil {
		exprType := a.resolveGenericReturnType(method.Return(), methodCall, klass, nil)
		next.SetEvalType(exprType, false)
	}

	if next := methodCall.MethodCall(); next != nil && next.CallType() == ast.EnumCall {
		a.ProcessError(methodCall.FileName(), methodCall.Line(), "Invalid enum reference")
	}

	a.analyzeExpressionMethodCall(methodCall)
}

// analyzeLibraryClassCall 库类上的调用绑定
func (a *Analyzer) analyzeLibraryClassCall(klass *linker.LibraryClass, methodCall *ast.MethodCall,
	isExpr bool, encoding string, isParent bool) {
	callParams := methodCall.CallingParameters()

	a.checkLambdaInferredTypes(methodCall)
	a.analyzeExpressions(callParams)

	libMethod := a.resolveLibraryMethodCall(klass, methodCall)
	if libMethod == nil {
		// 父链重试
		uses := a.program.UsesFor(a.currentClass.FileName())
		parent := a.linker.SearchClassLibraries(klass.ParentName(), uses)
		for libMethod == nil && parent != nil {
			libMethod = a.resolveLibraryMethodCall(parent, methodCall)
			parent = a.linker.SearchClassLibraries(parent.ParentName(), uses)
		}
	}

	// 编码名兜底
	if libMethod == nil {
		encodedName := klass.Name() + ":" + methodCall.MethodName() + ":" + encoding +
			a.encodeMethodCall(methodCall.CallingParameters())
		if len(encodedName) > 0 && encodedName[len(encodedName)-1] == '*' {
			encodedName += ","
		}
		libMethod = klass.GetMethod(encodedName)
	}

	// 私有类跨 bundle 访问
	if !klass.IsPublic() && a.currentClass != nil &&
		a.currentClass.BundleName() != klass.BundleName() {
		a.ProcessError(methodCall.FileName(), methodCall.Line(),
			"Cannot access private class '"+klass.Name()+"' from this bundle scope")
	}

	methodCall.SetOriginalLibraryClass(klass)
	a.analyzeLibraryMethodBinding(libMethod, methodCall, klass.IsVirtual() && !isParent, isExpr)
}

// analyzeLibraryMethodBinding 绑定库方法并完成各项校验
func (a *Analyzer) analyzeLibraryMethodBinding(libMethod *linker.LibraryMethod,
	methodCall *ast.MethodCall, isVirtual, isExpr bool) {
	if libMethod == nil {
		a.analyzeVariableFunctionCall(methodCall)
		return
	}

	callParams := methodCall.CallingParameters()
	for _, expression := range callParams.Expressions() {
		if expression.ExpressionType() == ast.MethodCallExpr && expression.EvalType() != nil &&
			expression.EvalType().Kind() == types.NilType {
			a.ProcessError(methodCall.FileName(), methodCall.Line(),
				"Invalid operation with 'Nil' value")
		}
	}

	// 无接收者的实例方法调用
	if methodCall.CallType() != ast.NewInstCall && methodCall.CallType() != ast.ParentCall &&
		!libMethod.IsStatic() && libMethod.LibraryClass() != nil &&
		libMethod.LibraryClass().ParentName() != "" {
		if prevExpr := methodCall.PreviousExpression(); prevExpr != nil {
			for prevExpr.PreviousExpression() != nil {
				prevExpr = prevExpr.PreviousExpression()
			}
			switch prevExpr.ExpressionType() {
			case ast.MethodCallExpr:
				prevCall := prevExpr.(*ast.MethodCall)
				if prevCall.CallType() != ast.NewInstCall && prevCall.LibraryMethod() != nil &&
					!prevCall.LibraryMethod().IsStatic() && prevCall.Entry() == nil &&
					prevCall.Variable() == nil {
					a.ProcessError(methodCall.FileName(), methodCall.Line(),
						"Cannot reference a method from this context")
				}
			case ast.CharStrExpr, ast.StatAryExpr, ast.VarExpr:
			default:
				a.ProcessError(methodCall.FileName(), methodCall.Line(),
					"Cannot reference a method from this context")
			}
		} else if methodCall.Entry() == nil && methodCall.Variable() == nil {
			a.ProcessError(methodCall.FileName(), methodCall.Line(),
				"Cannot reference a method from this context")
		}
	}

	// 虚类不可实例化
	isNew := libMethod.MethodType() == linker.NewPublicMethod ||
		libMethod.MethodType() == linker.NewPrivateMethod
	if isNew && isVirtual {
		a.ProcessError(methodCall.FileName(), methodCall.Line(),
			"Cannot create an instance of a virtual class or interface")
	}

	// 绑定
	libMethod.LibraryClass().SetCalled(true)
	methodCall.SetLibraryMethod(libMethod)

	if next := methodCall.MethodCall(); next != nil {
		next.SetEvalType(libMethod.Return(), false)
	}
	if next := methodCall.MethodCall(); next != nil && next.CallType() == ast.EnumCall {
		a.ProcessError(methodCall.FileName(), methodCall.Line(), "Invalid enum reference")
	}

	if libMethod.Return().Kind() == types.NilType && methodCall.CastType() != nil {
		a.ProcessError(methodCall.FileName(), methodCall.Line(), "Cannot cast a Nil return value")
	}

	// 泛型实参校验与安装
	libKlass := libMethod.LibraryClass()
	sameClsReturn := a.classEquals(libMethod.Return().Name(), nil, libKlass)
	if (isNew || sameClsReturn) && libKlass.HasGenerics() {
		classGenerics := libKlass.GenericClasses()
		concreteTypes := a.getConcreteTypes(methodCall)
		if len(classGenerics) != len(concreteTypes) {
			a.ProcessError(methodCall.FileName(), methodCall.Line(),
				"Cannot create an unqualified instance of class: '"+libMethod.UserName()+"'")
		} else {
			for i, concreteType := range concreteTypes {
				classGeneric := classGenerics[i]
				if classGeneric.HasGenericInterface() {
					backingType := classGeneric.GenericInterface()
					a.resolveClassEnumType(backingType, a.currentClass)
					a.resolveClassEnumType(concreteType, a.currentClass)
					a.validateGenericBacking(concreteType, backingType.Name(), methodCall)
				}
			}
		}
		if methodCall.EvalType() != nil {
			methodCall.EvalType().SetGenerics(concreteTypes)
		}
	}

	// 返回类型的泛型替换
	if libKlass.HasGenerics() {
		evalType := a.resolveGenericReturnType(methodCall.EvalType(), methodCall, nil, libKlass)
		methodCall.SetEvalType(evalType, false)
	} else if libMethod.Return().HasGenerics() {
		concreteTypes := methodCall.ConcreteTypes()
		genericTypes := libMethod.Return().Generics()
		if len(concreteTypes) == len(genericTypes) {
			for i := range concreteTypes {
				a.resolveClassEnumType(concreteTypes[i], a.currentClass)
				a.resolveClassEnumType(genericTypes[i], a.currentClass)
				if concreteTypes[i].Name() != genericTypes[i].Name() {
					a.ProcessError(methodCall.FileName(), methodCall.Line(),
						"Generic type mismatch for class '"+libKlass.Name()+
							"' between generic types: '"+types.FormatClassName(concreteTypes[i].Name())+
							"' and '"+types.FormatClassName(genericTypes[i].Name())+"'")
				}
			}
		} else {
			a.ProcessError(methodCall.FileName(), methodCall.Line(),
				"Concrete to generic size mismatch")
		}
	}

	a.analyzeExpressionMethodCall(methodCall)
}

// ============================================================================
// 动态函数变量调用
// ============================================================================

// analyzeVariableFunctionCall 绑定到函数类型变量的动态调用
func (a *Analyzer) analyzeVariableFunctionCall(methodCall *ast.MethodCall) {
	entry := a.getEntry(methodCall.MethodName())
	if entry == nil || entry.Type() == nil || entry.Type().Kind() != types.FuncType {
		mthdName := methodCall.MethodName()
		varName := methodCall.VariableName()
		name := mthdName
		if name == "" {
			name = varName
		}
		message := "Undefined function/method call: '" + name +
			"(..)'\n\tEnsure the object and it's calling parameters are properly casted"
		message = a.processAlternativeMethods(message)
		a.ProcessError(methodCall.FileName(), methodCall.Line(), message)
		return
	}

	t := entry.Type()
	a.analyzeVariableFunctionParameters(t, methodCall.FileName(), methodCall.Line(), a.currentClass)

	funcParams := t.FunctionParameters()
	callingParams := methodCall.CallingParameters().Expressions()
	if len(funcParams) != len(callingParams) {
		a.ProcessError(methodCall.FileName(), methodCall.Line(),
			"Function call parameter size mismatch")
		return
	}

	// 实参装箱/拆箱并编码比对
	dynFuncParamsStr := ""
	boxedResolvedParams := a.treeFactory.MakeExpressionList()
	for i, funcParam := range funcParams {
		callingParam := callingParams[i]

		boxedParam := a.boxExpression(funcParam, callingParam)
		if boxedParam == nil {
			boxedParam = a.unboxingExpression(funcParam, callingParam, false)
		}
		if boxedParam != nil {
			boxedResolvedParams.AddExpression(boxedParam)
		} else {
			boxedResolvedParams.AddExpression(callingParam)
		}

		dynFuncParamsStr += a.encodeType(funcParam)
		for j := 0; j < t.Dimension(); j++ {
			dynFuncParamsStr += "*"
		}
		dynFuncParamsStr += ","
	}

	t.SetFunctionParameterCount(methodCall.CallingParameters().Size())
	a.analyzeExpressions(boxedResolvedParams)

	callParamsStr := a.encodeMethodCall(boxedResolvedParams)
	if dynFuncParamsStr != callParamsStr {
		a.ProcessError(methodCall.FileName(), methodCall.Line(),
			"Undefined function/method call: '"+methodCall.MethodName()+
				"(..)'\n\tEnsure the object and it's calling parameters are properly casted")
	}
	methodCall.SetCallingParameters(boxedResolvedParams)

	// 绑定函数变量与返回类型
	methodCall.SetFunctionalCall(entry)
	methodCall.SetEvalType(t.FunctionReturn(), true)
	if next := methodCall.MethodCall(); next != nil {
		next.SetEvalType(t.FunctionReturn(), false)
	}

	a.analyzeExpressionMethodCall(methodCall)
}

// ============================================================================
// 函数引用
// ============================================================================

// analyzeFunctionReference 程序函数引用取用
func (a *Analyzer) analyzeFunctionReference(klass *ast.Class, methodCall *ast.MethodCall,
	encoding string) {
	funcEncoding := a.encodeFunctionReference(methodCall.CallingParameters())
	encodedName := klass.Name() + ":" + methodCall.MethodName() + ":" + encoding + funcEncoding

	method := klass.GetMethod(encodedName)
	if method == nil {
		mthdName := methodCall.MethodName()
		varName := methodCall.VariableName()
		name := mthdName
		if name == "" {
			name = varName
		}
		a.ProcessError(methodCall.FileName(), methodCall.Line(),
			"Undefined function/method call: '"+name+
				"(..)'\n\tEnsure the object and it's calling parameters are properly casted")
		return
	}

	funcTypeID := "m.(" + funcEncoding + ")~" + method.EncodedReturn()
	t := types.ParseType(funcTypeID)
	t.SetFunctionParameterCount(methodCall.CallingParameters().Size())
	t.SetFunctionReturn(method.Return())
	methodCall.SetEvalType(t, true)

	if !method.IsStatic() {
		a.ProcessError(methodCall.FileName(), methodCall.Line(),
			"References to methods are not allowed, only functions")
	}
	if method.IsVirtual() {
		a.ProcessError(methodCall.FileName(), methodCall.Line(),
			"References to methods cannot be virtual")
	}

	// 返回类型比对
	rtrnType := methodCall.FunctionalReturn()
	if rtrnType.Kind() != method.Return().Kind() {
		a.ProcessError(methodCall.FileName(), methodCall.Line(), "Mismatch function return types")
	} else if rtrnType.Kind() == types.ClassType {
		if a.resolveClassEnumType(rtrnType, a.currentClass) {
			if "o."+rtrnType.Name() != method.EncodedReturn() {
				a.ProcessError(methodCall.FileName(), methodCall.Line(),
					"Mismatch function return types")
			}
		} else {
			a.ProcessError(methodCall.FileName(), methodCall.Line(),
				"Undefined class or enum: '"+types.FormatClassName(rtrnType.Name())+"'")
		}
	}

	method.Class().SetCalled(true)
	methodCall.SetOriginalClass(klass)
	methodCall.SetMethodOnly(method)
}

// analyzeLibraryFunctionReference 库函数引用取用
func (a *Analyzer) analyzeLibraryFunctionReference(klass *linker.LibraryClass,
	methodCall *ast.MethodCall, encoding string) {
	funcEncoding := a.encodeFunctionReference(methodCall.CallingParameters())
	encodedName := klass.Name() + ":" + methodCall.MethodName() + ":" + encoding + funcEncoding

	method := klass.GetMethod(encodedName)
	if method == nil {
		mthdName := methodCall.MethodName()
		varName := methodCall.VariableName()
		name := mthdName
		if name == "" {
			name = varName
		}
		a.ProcessError(methodCall.FileName(), methodCall.Line(),
			"Undefined function/method call: '"+name+
				"(..)'\n\tEnsure the object and it's calling parameters are properly casted")
		return
	}

	funcTypeID := "m.(" + funcEncoding + ")~" + method.EncodedReturn()
	t := types.ParseType(funcTypeID)
	t.SetFunctionParameterCount(methodCall.CallingParameters().Size())
	t.SetFunctionReturn(method.Return())
	methodCall.SetEvalType(t, true)

	if !method.IsStatic() {
		a.ProcessError(methodCall.FileName(), methodCall.Line(),
			"References to methods are not allowed, only functions")
	}
	if method.IsVirtual() {
		a.ProcessError(methodCall.FileName(), methodCall.Line(),
			"References to methods cannot be virtual")
	}

	rtrnType := methodCall.FunctionalReturn()
	if rtrnType.Kind() != method.Return().Kind() {
		a.ProcessError(methodCall.FileName(), methodCall.Line(), "Mismatch function return types")
	} else if rtrnType.Kind() == types.ClassType {
		if a.resolveClassEnumType(rtrnType, a.currentClass) {
			if "o."+rtrnType.Name() != method.EncodedReturn() {
				a.ProcessError(methodCall.FileName(), methodCall.Line(),
					"Mismatch function return types")
			}
		} else {
			a.ProcessError(methodCall.FileName(), methodCall.Line(),
				"Undefined class or enum: '"+types.FormatClassName(rtrnType.Name())+"'")
		}
	}

	method.LibraryClass().SetCalled(true)
	methodCall.SetOriginalLibraryClass(klass)
	methodCall.SetLibraryMethodOnly(method)
}
