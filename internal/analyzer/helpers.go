// helpers.go - 名字解析与判定辅助
//
// 程序/库双侧检索遵循统一顺序：全限定名 -> bundle 限定名 -> 逐 use 前缀。
// 下行转换沿父链与祖先接口；上行转换沿子树递归；System.Base 是全类型超类。

package analyzer

import (
	"github.com/tangzhangming/obi/internal/ast"
	"github.com/tangzhangming/obi/internal/linker"
	"github.com/tangzhangming/obi/internal/types"
)

// searchProgramClasses 程序侧类检索
func (a *Analyzer) searchProgramClasses(klassName string) *ast.Class {
	klass := a.program.GetClass(klassName)
	if klass == nil && a.bundle != nil {
		klass = a.program.GetClass(a.bundle.Name() + "." + klassName)
	}
	if klass == nil {
		for _, use := range a.program.Uses() {
			if klass = a.program.GetClass(use + "." + klassName); klass != nil {
				break
			}
		}
	}
	return klass
}

// searchProgramEnums 程序侧枚举检索
func (a *Analyzer) searchProgramEnums(enumName string) *ast.Enum {
	eenum := a.program.GetEnum(enumName)
	if eenum == nil && a.bundle != nil {
		eenum = a.program.GetEnum(a.bundle.Name() + "." + enumName)
	}
	if eenum == nil {
		for _, use := range a.program.Uses() {
			if eenum = a.program.GetEnum(use + "." + enumName); eenum != nil {
				break
			}
			if eenum = a.program.GetEnum(use + enumName); eenum != nil {
				break
			}
		}
	}
	return eenum
}

// hasProgramLibraryClass 程序或库中是否存在指定类
func (a *Analyzer) hasProgramLibraryClass(name string) bool {
	if a.searchProgramClasses(name) != nil {
		return true
	}
	return a.linker.SearchClassLibraries(name, a.program.Uses()) != nil
}

// hasProgramLibraryEnum 程序或库中是否存在指定枚举
func (a *Analyzer) hasProgramLibraryEnum(name string) bool {
	if a.searchProgramEnums(name) != nil {
		return true
	}
	return a.linker.SearchEnumLibraries(name, a.program.Uses()) != nil
}

// getProgramLibraryClassByName 按名检索程序类或库类
func (a *Analyzer) getProgramLibraryClassByName(name string) (*ast.Class, *linker.LibraryClass) {
	if klass := a.searchProgramClasses(name); klass != nil {
		return klass, nil
	}
	uses := a.program.Uses()
	if a.currentClass != nil {
		uses = a.program.UsesFor(a.currentClass.FileName())
	}
	if libKlass := a.linker.SearchClassLibraries(name, uses); libKlass != nil {
		return nil, libKlass
	}
	return nil, nil
}

// getProgramLibraryClass 按类型检索并回写解析缓存
func (a *Analyzer) getProgramLibraryClass(t *types.Type) (*ast.Class, *linker.LibraryClass) {
	if ptr := t.ClassPtr(); ptr != nil {
		return ptr.(*ast.Class), nil
	}
	if ptr := t.LibClassPtr(); ptr != nil {
		return nil, ptr.(*linker.LibraryClass)
	}

	klass, libKlass := a.getProgramLibraryClassByName(t.Name())
	if klass != nil {
		t.SetName(klass.Name())
		t.SetClassPtr(klass)
		t.SetResolved(true)
	} else if libKlass != nil {
		t.SetName(libKlass.Name())
		t.SetLibClassPtr(libKlass)
		t.SetResolved(true)
	}
	return klass, libKlass
}

// getProgramLibraryClassName 解析为全限定类名；找不到原样返回
func (a *Analyzer) getProgramLibraryClassName(name string) string {
	klass, libKlass := a.getProgramLibraryClassByName(name)
	if klass != nil {
		return klass.Name()
	}
	if libKlass != nil {
		return libKlass.Name()
	}
	return name
}

// resolveClassEnumType 把类/枚举类型名规范化为全限定名
// 依序尝试：程序类、库类、外层类泛型形参（含 backing 接口）、
// 程序枚举（裸名与 类#枚举 嵌套名）、库枚举
func (a *Analyzer) resolveClassEnumType(t *types.Type, contextKlass *ast.Class) bool {
	if t.IsResolved() {
		return true
	}

	if klass := a.searchProgramClasses(t.Name()); klass != nil {
		klass.SetCalled(true)
		t.SetName(klass.Name())
		t.SetClassPtr(klass)
		t.SetResolved(true)
		return true
	}

	if libKlass := a.linker.SearchClassLibraries(t.Name(), a.program.Uses()); libKlass != nil {
		libKlass.SetCalled(true)
		t.SetName(libKlass.Name())
		t.SetLibClassPtr(libKlass)
		t.SetResolved(true)
		return true
	}

	// 泛型形参
	if contextKlass != nil && contextKlass.HasGenerics() {
		if klass := contextKlass.GetGenericClass(t.Name()); klass != nil {
			if klass.HasGenericInterface() {
				infType := klass.GenericInterface()
				if a.resolveClassEnumType(infType, contextKlass) {
					t.SetName(infType.Name())
					t.SetResolved(true)
					return true
				}
			} else {
				t.SetResolved(true)
				return true
			}
		}
	}

	if eenum := a.searchProgramEnums(t.Name()); eenum != nil {
		t.SetResolved(true)
		return true
	}
	if contextKlass != nil {
		if eenum := a.searchProgramEnums(contextKlass.Name() + "#" + t.Name()); eenum != nil {
			t.SetName(contextKlass.Name() + "#" + t.Name())
			t.SetResolved(true)
			return true
		}
	}

	if libEnum := a.linker.SearchEnumLibraries(t.Name(), a.program.Uses()); libEnum != nil {
		t.SetName(libEnum.Name())
		t.SetResolved(true)
		return true
	}

	return false
}

// ============================================================================
// 转换方向判定
// ============================================================================

// validDownCast 自 from 沿父链与祖先接口能否到达 clsName
// 库父链按名逐级查表（与极深层级兼容）
func (a *Analyzer) validDownCast(clsName string, classTmp *ast.Class, libClassTmp *linker.LibraryClass) bool {
	if clsName == linker.SystemBaseName {
		return true
	}

	for classTmp != nil || libClassTmp != nil {
		var castName string
		var interfaceNames []string
		if classTmp != nil {
			castName = classTmp.Name()
			interfaceNames = classTmp.InterfaceNames()
		} else {
			castName = libClassTmp.Name()
			interfaceNames = libClassTmp.InterfaceNames()
		}

		if clsName == castName {
			return true
		}

		// 祖先接口
		for _, interfaceName := range interfaceNames {
			if klass := a.searchProgramClasses(interfaceName); klass != nil {
				if klass.Name() == clsName {
					return true
				}
			} else if libKlass := a.linker.SearchClassLibraries(interfaceName, a.program.Uses()); libKlass != nil {
				if libKlass.Name() == clsName {
					return true
				}
			}
		}

		// 上移一级
		if classTmp != nil {
			if classTmp.Parent() != nil {
				classTmp = classTmp.Parent()
				libClassTmp = nil
			} else {
				libClassTmp = classTmp.LibraryParent()
				classTmp = nil
			}
		} else {
			libClassTmp = a.linker.SearchClassLibraries(libClassTmp.ParentName(), a.program.Uses())
		}
	}

	return false
}

// validUpCast 自 from 的子树递归能否到达 to
func (a *Analyzer) validUpCast(to string, fromKlass *ast.Class) bool {
	if fromKlass.Name() == linker.SystemBaseName {
		return true
	}
	if to == fromKlass.Name() {
		return true
	}

	for _, interfaceName := range fromKlass.InterfaceNames() {
		if klass := a.searchProgramClasses(interfaceName); klass != nil {
			if klass.Name() == to {
				return true
			}
		} else if libKlass := a.linker.SearchClassLibraries(interfaceName, a.program.Uses()); libKlass != nil {
			if libKlass.Name() == to {
				return true
			}
		}
	}

	for _, child := range fromKlass.Children() {
		if a.validUpCast(to, child) {
			return true
		}
	}
	return false
}

// validLibraryUpCast 库类版本的上行转换判定
func (a *Analyzer) validLibraryUpCast(to string, fromKlass *linker.LibraryClass) bool {
	if fromKlass.Name() == linker.SystemBaseName {
		return true
	}
	if to == fromKlass.Name() {
		return true
	}

	for _, interfaceName := range fromKlass.InterfaceNames() {
		if klass := a.searchProgramClasses(interfaceName); klass != nil {
			if klass.Name() == to {
				return true
			}
		} else if libKlass := a.linker.SearchClassLibraries(interfaceName, a.program.Uses()); libKlass != nil {
			if libKlass.Name() == to {
				return true
			}
		}
	}

	for _, child := range fromKlass.LibraryChildren() {
		if a.validLibraryUpCast(to, child) {
			return true
		}
	}
	for _, child := range fromKlass.Children() {
		if klass, ok := child.(*ast.Class); ok && a.validUpCast(to, klass) {
			return true
		}
	}
	return false
}

// classEquals 左名与右类是否指同一个类（含泛型形参）
func (a *Analyzer) classEquals(leftName string, rightKlass *ast.Class, rightLibKlass *linker.LibraryClass) bool {
	leftKlass, leftLibKlass := a.getProgramLibraryClassByName(leftName)
	if leftKlass != nil && rightKlass != nil {
		return leftKlass.Name() == rightKlass.Name()
	}
	if leftLibKlass != nil && rightLibKlass != nil {
		return leftLibKlass.Name() == rightLibKlass.Name()
	}

	if rightKlass != nil && a.currentClass != nil {
		if leftKlass = a.currentClass.GetGenericClass(leftName); leftKlass != nil {
			return leftKlass.Name() == rightKlass.Name()
		}
	}
	return false
}

// ============================================================================
// 符号项检索
// ============================================================================

// getEntry 依序检索：方法局部 -> 类字段 -> 父类字段
func (a *Analyzer) getEntry(name string) *ast.SymbolEntry {
	return a.getEntryParent(name, false)
}

func (a *Analyzer) getEntryParent(name string, isParent bool) *ast.SymbolEntry {
	if a.currentTable == nil {
		return nil
	}

	// 局部
	if a.currentMethod != nil {
		entry := a.currentTable.GetEntry(a.currentMethod.Name() + ":" + name)
		if !isParent && entry != nil {
			return entry
		}
	}

	// 类字段
	table := a.symbolMgr.GetSymbolTable(a.currentClass.Name())
	entry := table.GetEntry(a.currentClass.Name() + ":" + name)
	if !isParent && entry != nil {
		return entry
	}

	// 父类字段
	parent := a.lookupBundleClass(a.currentClass.ParentName())
	for parent != nil {
		table := a.symbolMgr.GetSymbolTable(parent.Name())
		if entry := table.GetEntry(parent.Name() + ":" + name); entry != nil {
			return entry
		}
		parent = a.lookupBundleClass(parent.ParentName())
	}

	return nil
}

// lookupBundleClass bundle 限定优先的类检索
func (a *Analyzer) lookupBundleClass(name string) *ast.Class {
	if name == "" || a.bundle == nil {
		return nil
	}
	if a.bundle.Name() != "" {
		if klass := a.bundle.GetClass(a.bundle.Name() + "." + name); klass != nil {
			return klass
		}
	}
	return a.bundle.GetClass(name)
}

// getCallEntry 方法调用的接收者符号项
func (a *Analyzer) getCallEntry(methodCall *ast.MethodCall, variableName string) *ast.SymbolEntry {
	if variable := methodCall.Variable(); variable != nil {
		a.analyzeVariable(variable)
		return variable.Entry()
	}
	entry := a.getEntry(variableName)
	if entry != nil {
		methodCall.SetEntry(entry)
	}
	return entry
}

// ============================================================================
// 静态上下文
// ============================================================================

// invalidStaticEntry 静态方法内引用实例成员
func (a *Analyzer) invalidStaticEntry(entry *ast.SymbolEntry) bool {
	return a.currentMethod != nil && a.currentMethod.IsStatic() &&
		!entry.IsLocal() && !entry.IsStatic()
}

// invalidStaticCall 静态方法内无接收者调用实例方法
func (a *Analyzer) invalidStaticCall(methodCall *ast.MethodCall, method *ast.Method) bool {
	if !a.currentMethod.IsStatic() || method.IsStatic() ||
		method.MethodType() == ast.NewPublicMethod || method.MethodType() == ast.NewPrivateMethod {
		return false
	}

	if entry := a.getEntry(methodCall.VariableName()); entry != nil &&
		(entry.IsLocal() || entry.IsStatic()) {
		return false
	}
	if variable := methodCall.Variable(); variable != nil {
		if entry := variable.Entry(); entry != nil && (entry.IsLocal() || entry.IsStatic()) {
			return false
		}
	}
	return true
}

// duplicateParentEntries 字段名是否已在祖先类定义
func (a *Analyzer) duplicateParentEntries(entry *ast.SymbolEntry, klass *ast.Class) bool {
	if klass.Parent() == nil || klass.Parent().SymbolTable() == nil ||
		(entry.IsLocal() && !entry.IsStatic()) {
		return false
	}

	short := shortEntryName(entry.Name())
	if short == "" {
		return false
	}

	parent := klass.Parent()
	for parent != nil {
		if table := parent.SymbolTable(); table != nil {
			if table.GetEntry(parent.Name()+":"+short) != nil {
				return true
			}
		}
		parent = parent.Parent()
	}
	return false
}

// ============================================================================
// 表达式判定
// ============================================================================

// isScalar 表达式是否求值为标量（数组被完全下标化也算标量）
func (a *Analyzer) isScalar(expression ast.Expression, checkLast bool) bool {
	for checkLast && expression.MethodCall() != nil {
		expression = expression.MethodCall()
	}

	var t *types.Type
	if expression.CastType() != nil &&
		!(expression.EvalType() != nil && expression.EvalType().Dimension() > 0) {
		t = expression.CastType()
	} else {
		t = expression.EvalType()
	}

	if t != nil && t.Dimension() > 0 {
		if variable, ok := expression.(*ast.Variable); ok {
			return variable.Indices() != nil
		}
		return false
	}
	return true
}

// isBooleanExpression 链尾是否为 Bool
func (a *Analyzer) isBooleanExpression(expression ast.Expression) bool {
	for expression.MethodCall() != nil {
		expression = expression.MethodCall()
	}
	evalType := expression.EvalType()
	return evalType != nil && evalType.Kind() == types.BooleanType
}

// isEnumExpression 链尾是否为枚举值
func (a *Analyzer) isEnumExpression(expression ast.Expression) bool {
	for expression.MethodCall() != nil {
		expression = expression.MethodCall()
	}
	evalType := expression.EvalType()
	if evalType == nil || evalType.Kind() != types.ClassType {
		return false
	}
	if a.program.GetEnum(evalType.Name()) != nil {
		return true
	}
	return a.linker.SearchEnumLibraries(evalType.Name(), a.program.Uses()) != nil
}

// isIntegerExpression 链尾是否为整型（含 Char/Byte/枚举）
func (a *Analyzer) isIntegerExpression(expression ast.Expression) bool {
	for expression.MethodCall() != nil {
		expression = expression.MethodCall()
	}

	var evalType *types.Type
	if expression.CastType() != nil {
		evalType = expression.CastType()
	} else {
		evalType = expression.EvalType()
	}
	if evalType == nil {
		return false
	}

	switch evalType.Kind() {
	case types.IntType, types.CharType, types.ByteType:
		return true
	case types.ClassType:
		if a.searchProgramEnums(evalType.Name()) != nil {
			return true
		}
		return a.linker.SearchEnumLibraries(evalType.Name(), a.program.Uses()) != nil
	}
	return false
}

// getExpressionType 取表达式链尾类型（cast 优先）
func (a *Analyzer) getExpressionType(expression ast.Expression) *types.Type {
	var t *types.Type

	if call, ok := expression.(*ast.MethodCall); ok && call.CallType() == ast.EnumCall {
		if expression.CastType() != nil {
			t = expression.CastType()
		} else {
			t = expression.EvalType()
		}
	} else if mthdCall := expression.MethodCall(); mthdCall != nil {
		for mthdCall != nil {
			a.analyzeExpressionMethodCall(mthdCall)
			if mthdCall.CastType() != nil {
				t = mthdCall.CastType()
			} else {
				t = mthdCall.EvalType()
			}
			mthdCall = mthdCall.MethodCall()
		}
	} else {
		if expression.CastType() != nil {
			t = expression.CastType()
		} else {
			t = expression.EvalType()
		}
	}

	return t
}

// duplicateCaseItem select 标签值是否重复
func duplicateCaseItem(labelStatements map[int]*ast.StatementList, value int) bool {
	_, ok := labelStatements[value]
	return ok
}

// getConcreteTypes 调用点的泛型实参；缺省回退到接收者符号项的类型实参
func (a *Analyzer) getConcreteTypes(methodCall *ast.MethodCall) []*types.Type {
	if methodCall.HasConcreteTypes() {
		return methodCall.ConcreteTypes()
	}
	if entry := methodCall.Entry(); entry != nil && entry.Type() != nil {
		return entry.Type().Generics()
	}
	return nil
}

// getMethodCallGenerics 链首调用的泛型实参（逐层解开单元素包裹）
func (a *Analyzer) getMethodCallGenerics(methodCall *ast.MethodCall) []*types.Type {
	var prev ast.Expression = methodCall
	for prev.PreviousExpression() != nil {
		prev = prev.PreviousExpression()
	}

	firstCall, ok := prev.(*ast.MethodCall)
	if !ok || firstCall.Entry() == nil || firstCall.Entry().Type() == nil {
		return nil
	}

	concreteTypes := firstCall.Entry().Type().Generics()
	for len(concreteTypes) == 1 && len(concreteTypes[0].Generics()) > 0 {
		concreteTypes = concreteTypes[0].Generics()
	}
	return concreteTypes
}
