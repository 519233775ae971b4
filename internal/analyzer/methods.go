// methods.go - 方法级分析
//
// 默认参数展开、方法体分析、构造父调用、入口点识别、
// 接口实现与虚方法校验、lambda 构建。

package analyzer

import (
	"go.uber.org/zap"

	"github.com/tangzhangming/obi/internal/ast"
	"github.com/tangzhangming/obi/internal/linker"
	"github.com/tangzhangming/obi/internal/types"
)

// ============================================================================
// 默认参数
// ============================================================================

// addDefaultParameterMethods 校验并展开带默认参数的方法
func (a *Analyzer) addDefaultParameterMethods(bundle *ast.Bundle, klass *ast.Class, method *ast.Method) {
	declarations := method.Declarations().Declarations()
	if len(declarations) == 0 || declarations[len(declarations)-1].Assignment() == nil {
		return
	}

	// 默认值必须连续位于参数尾部；虚方法不允许默认值
	defaultParams := true
	for i := len(declarations) - 1; i >= 0; i-- {
		if declarations[i].Assignment() != nil {
			if method.IsVirtual() {
				a.ProcessError(method.FileName(), method.Line(),
					"Virtual methods and interfaces cannot contain default parameter values")
				return
			}
			if !defaultParams {
				a.ProcessError(declarations[0].FileName(), declarations[0].Line(),
					"Only trailing parameters may have default values")
				return
			}
		} else {
			defaultParams = false
		}
	}

	a.generateParameterMethods(bundle, klass, method)
}

// generateParameterMethods 为每个尾部前缀生成一个蹦床方法：
// 复制前缀声明，剩余默认值转为方法体头部的赋值语句
func (a *Analyzer) generateParameterMethods(bundle *ast.Bundle, klass *ast.Class, method *ast.Method) {
	declarations := method.Declarations().Declarations()

	// 第一个带默认值的参数下标
	paramOffset := 0
	for i, declaration := range declarations {
		if declaration.Assignment() != nil {
			paramOffset = i
			break
		}
	}

	for paramOffset < len(declarations) {
		altMethod := a.treeFactory.MakeMethod(method.FileName(), method.Line(),
			method.Name(), method.MethodType(), method.IsStatic(), method.IsNative())
		altMethod.SetReturn(method.Return())

		altDeclarations := a.treeFactory.MakeDeclarationList()
		altStatements := a.treeFactory.MakeStatementList()

		bundle.SymbolTableManager().NewParseScope()

		for i, declaration := range declarations {
			copied := declaration.Copy()
			if i < paramOffset {
				altDeclarations.AddDeclaration(copied)
				bundle.SymbolTableManager().CurrentParseScope().AddEntry(copied.Entry(), true)
			} else {
				assignment := copied.Assignment()
				assignment.Expression().SetEvalType(copied.Entry().Type(), true)
				altStatements.AddStatement(assignment)
			}
		}
		paramOffset++

		altMethod.SetStatements(altStatements)
		altMethod.SetDeclarations(altDeclarations)
		altMethod.SetOriginal(method)
		bundle.SymbolTableManager().PreviousParseScope(altMethod.ParsedName())

		if !klass.AddMethod(altMethod) {
			a.ProcessError(method.FileName(), method.Line(),
				"Method or function already overloaded '"+method.UserName()+"'")
		}
	}
}

// ============================================================================
// 方法体
// ============================================================================

var methodIDs int

// analyzeMethod 分析一个方法
func (a *Analyzer) analyzeMethod(method *ast.Method) {
	a.logger.Debug("method", zap.String("name", method.Name()),
		zap.String("parsed", method.ParsedName()))

	method.SetID(methodIDs)
	methodIDs++
	a.currentMethod = method
	a.currentTable = a.symbolMgr.GetSymbolTable(method.ParsedName())
	method.SetSymbolTable(a.currentTable)

	// 参数声明
	for _, declaration := range method.Declarations().Declarations() {
		a.analyzeDeclaration(declaration, a.currentClass)
	}

	// 虚方法没有方法体
	if method.IsVirtual() {
		return
	}

	statements := method.Statements().Statements()
	for _, stmt := range statements {
		a.analyzeStatement(stmt)
	}

	// 派生类构造必须以父调用开头
	if (method.MethodType() == ast.NewPublicMethod || method.MethodType() == ast.NewPrivateMethod) &&
		(a.currentClass.Parent() != nil ||
			(a.currentClass.LibraryParent() != nil && a.currentClass.LibraryParent().Name() != linker.SystemBaseName)) {
		if len(statements) == 0 || statements[0].StatementType() != ast.MethodCallStmt {
			if !a.currentClass.IsInterface() {
				a.ProcessError(method.FileName(), method.Line(), "Parent call required")
			}
		} else if call, ok := statements[0].(*ast.MethodCall); ok {
			if call.CallType() != ast.ParentCall && !a.currentClass.IsInterface() {
				a.ProcessError(method.FileName(), method.Line(), "Parent call required")
			}
		}
	}

	// 非 Nil 返回类型要求全部路径返回
	if method.MethodType() != ast.NewPublicMethod && method.MethodType() != ast.NewPrivateMethod &&
		method.Return() != nil && method.Return().Kind() != types.NilType {
		if !a.analyzeReturnPaths(method.Statements()) && !method.IsAlt() {
			a.ProcessError(method.FileName(), method.Line(),
				"All method/function paths must return a value")
		}
	}

	// 入口点
	mainStr := a.currentClass.Name() + ":Main:o.System.String*,"
	if method.EncodedName() == mainStr {
		if a.mainFound {
			a.ProcessError(method.FileName(), method.Line(),
				"The 'Main(args)' function has already been defined")
		} else if method.IsStatic() {
			a.currentClass.SetCalled(true)
			a.program.SetStart(a.currentClass, method)
			a.mainFound = true
		}
		if a.mainFound && (a.isLib || a.isWeb) {
			a.ProcessError(method.FileName(), method.Line(),
				"Libraries and web applications may not define a 'Main(args)' function")
		}
	} else if a.isWeb {
		webStr := a.currentClass.Name() + ":Action:o.Web.FastCgi.Request,o.Web.FastCgi.Response,"
		if method.EncodedName() == webStr {
			if a.webFound {
				a.ProcessError(method.FileName(), method.Line(),
					"The 'Action(args)' function has already been defined")
			} else if method.IsStatic() {
				a.currentClass.SetCalled(true)
				a.program.SetStart(a.currentClass, method)
				a.webFound = true
			}
			if a.webFound && (a.isLib || a.mainFound) {
				a.ProcessError(method.FileName(), method.Line(),
					"Web applications may not define a 'Main(args)' function or be compiled as a library")
			}
		}
	}
}

// ============================================================================
// 泛型与接口
// ============================================================================

// analyzeGenerics 校验泛型形参与 backing 接口
func (a *Analyzer) analyzeGenerics(klass *ast.Class) {
	for _, generic := range klass.GenericClasses() {
		genericName := generic.Name()
		if a.hasProgramLibraryClass(genericName) {
			a.ProcessError(klass.FileName(), klass.Line(),
				"Generic reference '"+genericName+"' previously defined as a class")
		}
		if generic.HasGenericInterface() {
			infType := generic.GenericInterface()
			infKlass, infLibKlass := a.getProgramLibraryClass(infType)
			if infKlass != nil {
				infType.SetName(infKlass.Name())
			} else if infLibKlass != nil {
				infType.SetName(infLibKlass.Name())
			} else {
				a.ProcessError(klass.FileName(), klass.Line(),
					"Undefined backing generic interface: '"+infType.Name()+"'")
			}
		}
	}
}

// analyzeInterfaces 校验接口实现
func (a *Analyzer) analyzeInterfaces(klass *ast.Class) {
	interfaceNames := klass.InterfaceNames()
	var interfaces []*ast.Class
	var libInterfaces []*linker.LibraryClass

	for _, interfaceName := range interfaceNames {
		if infKlass := a.searchProgramClasses(interfaceName); infKlass != nil {
			if !infKlass.IsInterface() {
				a.ProcessError(klass.FileName(), klass.Line(), "Expected an interface type")
				return
			}

			// 接口方法必须声明为 virtual
			for _, method := range infKlass.Methods() {
				if !method.IsVirtual() {
					a.ProcessError(method.FileName(), method.Line(),
						"Interface method must be defined as 'virtual'")
				}
			}
			// 必须全部实现
			if !a.analyzeVirtualMethods(klass, infKlass) {
				a.ProcessError(klass.FileName(), klass.Line(),
					"Not all methods have been implemented for the interface: "+infKlass.Name())
			} else {
				infKlass.SetCalled(true)
				infKlass.AddChild(klass)
				interfaces = append(interfaces, infKlass)
			}
		} else if infLibKlass := a.linker.SearchClassLibraries(interfaceName,
			a.program.UsesFor(a.currentClass.FileName())); infLibKlass != nil {
			if !infLibKlass.IsInterface() {
				a.ProcessError(klass.FileName(), klass.Line(), "Expected an interface type")
				return
			}

			for _, libMethod := range infLibKlass.Methods() {
				if !libMethod.IsVirtual() {
					a.ProcessError(klass.FileName(), klass.Line(),
						"Interface method must be defined as 'virtual'")
				}
			}
			if !a.analyzeLibraryVirtualMethods(klass, infLibKlass) {
				a.ProcessError(klass.FileName(), klass.Line(),
					"Not all methods have been implemented for the interface: '"+infLibKlass.Name()+"'")
			} else {
				infLibKlass.SetCalled(true)
				infLibKlass.AddChild(klass)
				libInterfaces = append(libInterfaces, infLibKlass)
			}
		} else {
			a.ProcessError(klass.FileName(), klass.Line(),
				"Undefined interface: '"+interfaceName+"'")
		}
	}

	klass.SetInterfaces(interfaces)
	klass.SetLibraryInterfaces(libInterfaces)
}

// findImplMethod 沿实现类及其父链按编码签名查找实现方法
func (a *Analyzer) findImplMethod(implClass *ast.Class, virtualMethodName string) (*ast.Method, *linker.LibraryMethod) {
	offset := -1
	for i := 0; i < len(virtualMethodName); i++ {
		if virtualMethodName[i] == ':' {
			offset = i
			break
		}
	}
	if offset < 0 {
		return nil, nil
	}
	suffix := virtualMethodName[offset:]

	if implMethod := implClass.GetMethod(implClass.Name() + suffix); implMethod != nil {
		return implMethod, nil
	}

	if parent := implClass.Parent(); parent != nil {
		for parent != nil {
			if implMethod := parent.GetMethod(parent.Name() + suffix); implMethod != nil {
				return implMethod, nil
			}
			if libParent := parent.LibraryParent(); libParent != nil {
				return nil, libParent.GetMethod(libParent.Name() + suffix)
			}
			parent = parent.Parent()
		}
	} else if libParent := implClass.LibraryParent(); libParent != nil {
		return nil, libParent.GetMethod(libParent.Name() + suffix)
	}

	return nil, nil
}

// analyzeVirtualMethods 校验程序虚类的全部虚方法均有实现
func (a *Analyzer) analyzeVirtualMethods(implClass, virtualClass *ast.Class) bool {
	defined := true
	for _, virtualMethod := range virtualClass.Methods() {
		if !virtualMethod.IsVirtual() {
			continue
		}
		implMethod, libImplMethod := a.findImplMethod(implClass, virtualMethod.EncodedName())
		if implMethod != nil {
			a.checkVirtualMethod(implClass, implMethod.MethodType(), implMethod.Return(),
				implMethod.IsStatic(), implMethod.IsVirtual(), virtualMethod.Class().Name(),
				virtualMethod.MethodType(), virtualMethod.Return(), virtualMethod.IsStatic())
		} else if libImplMethod != nil {
			a.checkVirtualMethod(implClass, libMethodKind(libImplMethod.MethodType()),
				libImplMethod.Return(), libImplMethod.IsStatic(), libImplMethod.IsVirtual(),
				virtualMethod.Class().Name(), virtualMethod.MethodType(), virtualMethod.Return(),
				virtualMethod.IsStatic())
		} else {
			defined = false
		}
	}
	return defined
}

// analyzeLibraryVirtualMethods 校验库虚类的全部虚方法均有实现
func (a *Analyzer) analyzeLibraryVirtualMethods(implClass *ast.Class, libVirtualClass *linker.LibraryClass) bool {
	defined := true
	for _, virtualMethod := range libVirtualClass.Methods() {
		if !virtualMethod.IsVirtual() {
			continue
		}
		implMethod, libImplMethod := a.findImplMethod(implClass, virtualMethod.Name())
		if implMethod != nil {
			a.checkVirtualMethod(implClass, implMethod.MethodType(), implMethod.Return(),
				implMethod.IsStatic(), implMethod.IsVirtual(),
				virtualMethod.LibraryClass().Name(), libMethodKind(virtualMethod.MethodType()),
				virtualMethod.Return(), virtualMethod.IsStatic())
		} else if libImplMethod != nil {
			a.checkVirtualMethod(implClass, libMethodKind(libImplMethod.MethodType()),
				libImplMethod.Return(), libImplMethod.IsStatic(), libImplMethod.IsVirtual(),
				virtualMethod.LibraryClass().Name(), libMethodKind(virtualMethod.MethodType()),
				virtualMethod.Return(), virtualMethod.IsStatic())
		} else {
			defined = false
		}
	}
	return defined
}

// checkVirtualMethod 比对实现方法与虚方法：种类、返回、静态性、自身不可再虚
func (a *Analyzer) checkVirtualMethod(implClass *ast.Class, implType ast.MethodKind,
	implReturn *types.Type, implStatic, implVirtual bool, virtualClassName string,
	virtualType ast.MethodKind, virtualReturn *types.Type, virtualStatic bool) {
	mismatch := "Not all virtual methods have been defined for class/interface: " + virtualClassName

	if implType != virtualType {
		a.ProcessError(implClass.FileName(), implClass.Line(), mismatch)
	}
	if implReturn == nil || virtualReturn == nil {
		return
	}
	if implReturn.Kind() != virtualReturn.Kind() {
		a.ProcessError(implClass.FileName(), implClass.Line(), mismatch)
	} else if implReturn.Kind() == types.ClassType && implReturn.Name() != virtualReturn.Name() {
		implCls := a.searchProgramClasses(implReturn.Name())
		virtualCls := a.searchProgramClasses(virtualReturn.Name())
		if implCls != nil && virtualCls != nil && implCls != virtualCls {
			a.ProcessError(implClass.FileName(), implClass.Line(), mismatch)
		}
	}
	if implStatic != virtualStatic {
		a.ProcessError(implClass.FileName(), implClass.Line(), mismatch)
	}
	if implVirtual {
		a.ProcessError(implClass.FileName(), implClass.Line(), "Implementation method cannot be virtual")
	}
}

// libMethodKind 库方法种类映射到程序方法种类
func libMethodKind(kind linker.MethodType) ast.MethodKind {
	switch kind {
	case linker.PrivateMethod:
		return ast.PrivateMethod
	case linker.NewPublicMethod:
		return ast.NewPublicMethod
	case linker.NewPrivateMethod:
		return ast.NewPrivateMethod
	default:
		return ast.PublicMethod
	}
}

// ============================================================================
// Lambda
// ============================================================================

// analyzeLambda 分析 lambda 表达式
func (a *Analyzer) analyzeLambda(lambda *ast.Lambda) {
	// 已经构建过
	if lambda.LambdaMethodCall() != nil {
		return
	}

	var lambdaType *types.Type
	lambdaName := lambda.Name()
	isInferred := a.hasInferredLambdaTypes(lambdaName)

	if lambda.LambdaType() != nil {
		lambdaType = lambda.LambdaType()
	} else if !isInferred {
		lambdaType = a.resolveAliasAt(lambdaName, lambda.FileName(), lambda.Line())
	}

	if lambdaType != nil {
		a.buildLambdaFunction(lambda, lambdaType)
	} else if isInferred {
		// 挂起，等重载选择器回填类型
		a.inferredLambda = lambda
	} else {
		a.ProcessError(lambda.FileName(), lambda.Line(), "Invalid lambda type")
	}
}

// hasInferredLambdaTypes lambda 类型是否可从调用点推导
func (a *Analyzer) hasInferredLambdaTypes(lambdaName string) bool {
	return a.inferredCall != nil && lambdaName == ""
}

// checkLambdaInferredTypes 登记可推导的调用点：唯一实参且为 lambda
func (a *Analyzer) checkLambdaInferredTypes(methodCall *ast.MethodCall) {
	params := methodCall.CallingParameters().Expressions()
	if len(params) == 1 && params[0].ExpressionType() == ast.LambdaExpr {
		a.inferredCall = methodCall
	} else {
		a.inferredLambda = nil
		a.inferredCall = nil
	}
}

// derivedLambdaFunction 针对唯一函数型参数候选回填 lambda 类型并重启选择
func (a *Analyzer) derivedLambdaFunction(altMethods []*ast.Method) *ast.Method {
	if a.inferredLambda == nil || a.inferredCall == nil || len(altMethods) != 1 {
		return nil
	}
	altMethod := altMethods[0]
	altDecls := altMethod.Declarations().Declarations()
	if len(altDecls) != 1 || altDecls[0].Entry() == nil ||
		altDecls[0].Entry().Type().Kind() != types.FuncType {
		return nil
	}

	altType := altDecls[0].Entry().Type()
	inferredParams := make([]*types.Type, 0, len(altType.FunctionParameters()))
	for _, param := range altType.FunctionParameters() {
		inferredParams = append(inferredParams,
			a.resolveGenericTypeFor(param, a.inferredCall, altMethod.Class(), nil))
	}
	inferredReturn := a.resolveGenericTypeFor(altType.FunctionReturn(), a.inferredCall,
		altMethod.Class(), nil)

	inferredType := a.typeFactory.MakeFuncType(inferredParams, inferredReturn)
	a.buildLambdaFunction(a.inferredLambda, inferredType)
	return altMethod
}

// derivedLibraryLambdaFunction 库方法版本的 lambda 推导
func (a *Analyzer) derivedLibraryLambdaFunction(altMethods []*linker.LibraryMethod) *linker.LibraryMethod {
	if a.inferredLambda == nil || a.inferredCall == nil || len(altMethods) != 1 {
		return nil
	}
	altMethod := altMethods[0]
	altTypes := altMethod.DeclarationTypes()
	if len(altTypes) != 1 || altTypes[0].Kind() != types.FuncType {
		return nil
	}

	altType := altTypes[0]
	inferredParams := make([]*types.Type, 0, len(altType.FunctionParameters()))
	for _, param := range altType.FunctionParameters() {
		inferredParams = append(inferredParams,
			a.resolveGenericTypeFor(param, a.inferredCall, nil, altMethod.LibraryClass()))
	}
	inferredReturn := a.resolveGenericTypeFor(altType.FunctionReturn(), a.inferredCall,
		nil, altMethod.LibraryClass())

	inferredType := a.typeFactory.MakeFuncType(inferredParams, inferredReturn)
	a.buildLambdaFunction(a.inferredLambda, inferredType)
	return altMethod
}

// buildLambdaFunction 用函数类型填充 lambda 方法并重写为调用
func (a *Analyzer) buildLambdaFunction(lambda *ast.Lambda, lambdaType *types.Type) {
	method := lambda.Method()
	a.currentMethod.SetAndOr(true)
	method.SetReturn(lambdaType.FunctionReturn())

	paramTypes := lambdaType.FunctionParameters()
	declarationList := method.Declarations()
	declarations := declarationList.Declarations()
	if len(paramTypes) != len(declarations) {
		a.ProcessError(lambda.FileName(), lambda.Line(), "Deceleration and parameter size mismatch")
		return
	}

	for i, declaration := range declarations {
		declaration.Entry().SetType(paramTypes[i])
	}

	a.currentClass.AddMethod(method)
	a.encodeMethodSignature(a.currentClass, method)
	a.currentClass.AssociateMethod(method)

	// 保存现场，分析 lambda 方法体
	a.captureLambda = lambda
	a.captureMethod = a.currentMethod
	a.captureTable = a.currentTable

	a.analyzeMethod(method)

	a.currentTable = a.captureTable
	a.captureTable = nil
	a.currentMethod = a.captureMethod
	a.captureMethod = nil
	a.captureLambda = nil

	// 重写为对生成方法的调用
	fullName := method.Name()
	offset := -1
	for i := 0; i < len(fullName); i++ {
		if fullName[i] == ':' {
			offset = i
			break
		}
	}
	if offset < 0 {
		a.ProcessError(lambda.FileName(), lambda.Line(), "Internal compiler error: Invalid method name")
		return
	}
	methodName := fullName[offset+1:]

	methodCall := a.treeFactory.MakeMethodCall(method.FileName(), method.Line(),
		ast.MethodCallKind, a.currentClass.Name(), methodName,
		a.mapLambdaDeclarations(declarationList))
	methodCall.SetFunctionalReturn(method.Return())
	a.analyzeMethodCallNode(methodCall)
	lambda.SetLambdaMethodCall(methodCall)
	lambda.SetEvalType(methodCall.EvalType(), true)
}

// mapLambdaDeclarations 把 lambda 声明映射为函数引用实参列表
func (a *Analyzer) mapLambdaDeclarations(declarations *ast.DeclarationList) *ast.ExpressionList {
	expressions := a.treeFactory.MakeExpressionList()
	for _, declaration := range declarations.Declarations() {
		var ident string
		declType := declaration.Entry().Type()
		switch declType.Kind() {
		case types.BooleanType:
			ident = boolClassID
		case types.ByteType:
			ident = byteClassID
		case types.CharType:
			ident = charClassID
		case types.IntType:
			ident = intClassID
		case types.FloatType:
			ident = floatClassID
		case types.ClassType, types.FuncType:
			ident = declType.Name()
		}
		if ident != "" {
			expressions.AddExpression(a.treeFactory.MakeVariable(
				declaration.FileName(), declaration.Line(), ident))
		}
	}
	return expressions
}

// ============================================================================
// 别名
// ============================================================================

// resolveAliasAt 展开 "别名#后缀" 形式的别名引用
func (a *Analyzer) resolveAliasAt(name, fileName string, line int) *types.Type {
	var aliasName, typeName string
	middle := -1
	for i := 0; i < len(name); i++ {
		if name[i] == '#' {
			middle = i
			break
		}
	}
	if middle >= 0 {
		aliasName = name[:middle]
		if middle+1 < len(name) {
			typeName = name[middle+1:]
		}
	}

	reportUndefined := func() {
		if name == "" {
			a.ProcessError(fileName, line, "Invalid alias")
		} else {
			a.ProcessError(fileName, line,
				"Undefined alias: '"+types.FormatClassName(name)+"'")
		}
	}

	var aliasType *types.Type
	if alias := a.program.GetAlias(aliasName); alias != nil {
		if found := alias.GetType(typeName); found != nil {
			aliasType = a.typeFactory.MakeCopy(found)
		} else {
			reportUndefined()
		}
	} else if libAlias := a.linker.SearchAliasLibraries(aliasName, a.program.UsesFor(fileName)); libAlias != nil {
		if found := libAlias.GetType(typeName); found != nil {
			aliasType = a.typeFactory.MakeCopy(found)
		} else {
			reportUndefined()
		}
	} else {
		reportUndefined()
	}

	// 别名不允许嵌套
	if aliasType != nil && aliasType.Kind() == types.AliasType {
		a.ProcessError(fileName, line, "Invalid nested alias reference")
		return nil
	}
	return aliasType
}
