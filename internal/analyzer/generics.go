// generics.go - 泛型替换与 backing 校验
//
// 泛型形参的替换环境按优先级取自：接收者符号项的类型实参、
// 链首调用的类型实参、new 调用的具体类型列表。
// 每个具体类型必须能下行转换到其形参的 backing 接口。

package analyzer

import (
	"strings"

	"github.com/tangzhangming/obi/internal/ast"
	"github.com/tangzhangming/obi/internal/linker"
	"github.com/tangzhangming/obi/internal/types"
)

// validateGenericConcreteMapping 程序泛型类的具体类型列表校验
func (a *Analyzer) validateGenericConcreteMapping(concreteTypes []*types.Type, klass *ast.Class,
	fileName string, line int) {
	classGenerics := klass.GenericClasses()
	if len(classGenerics) != len(concreteTypes) {
		a.ProcessError(fileName, line,
			"Cannot create an unqualified instance of class: '"+klass.Name()+"'")
		return
	}

	for i, concreteType := range concreteTypes {
		a.resolveClassEnumType(concreteType, a.currentClass)

		classGeneric := classGenerics[i]
		if !classGeneric.HasGenericInterface() {
			continue
		}
		backingName := a.getProgramLibraryClassName(classGeneric.GenericInterface().Name())
		concreteName := concreteType.Name()

		infKlass, infLibKlass := a.getProgramLibraryClass(concreteType)
		if infKlass != nil || infLibKlass != nil {
			if !a.validDownCast(backingName, infKlass, infLibKlass) {
				a.ProcessError(fileName, line,
					"Concrete class: '"+concreteName+
						"' is incompatible with backing class/interface '"+backingName+"'")
			}
		} else if infKlass = a.currentClass.GetGenericClass(concreteName); infKlass != nil {
			if !a.validDownCast(backingName, infKlass, nil) {
				a.ProcessError(fileName, line,
					"Concrete class: '"+concreteName+
						"' is incompatible with backing class/interface '"+backingName+"'")
			}
		} else {
			a.ProcessError(fileName, line,
				"Undefined class or interface: '"+concreteName+"'")
		}
	}
}

// validateLibraryGenericConcreteMapping 库泛型类版本
func (a *Analyzer) validateLibraryGenericConcreteMapping(concreteTypes []*types.Type,
	libKlass *linker.LibraryClass, fileName string, line int) {
	classGenerics := libKlass.GenericClasses()
	if len(classGenerics) != len(concreteTypes) {
		a.ProcessError(fileName, line,
			"Cannot utilize an unqualified instance of class: '"+libKlass.Name()+"'")
		return
	}

	for i, concreteType := range concreteTypes {
		classGeneric := classGenerics[i]
		if !classGeneric.HasGenericInterface() {
			continue
		}
		backingName := classGeneric.GenericInterface().Name()
		concreteName := concreteType.Name()

		infKlass, infLibKlass := a.getProgramLibraryClass(concreteType)
		if infKlass != nil || infLibKlass != nil {
			if !a.validDownCast(backingName, infKlass, infLibKlass) {
				a.ProcessError(fileName, line,
					"Concrete class: '"+concreteName+
						"' is incompatible with backing class/interface '"+backingName+"'")
			}
		} else if infKlass = a.currentClass.GetGenericClass(concreteName); infKlass != nil {
			if !a.validDownCast(backingName, infKlass, nil) {
				a.ProcessError(fileName, line,
					"Concrete class: '"+concreteName+
						"' is incompatible with backing class/interface '"+backingName+"'")
			}
		} else {
			a.ProcessError(fileName, line,
				"Undefined class or interface: '"+concreteName+"'")
		}
	}
}

// validateGenericBacking 单个具体类型对 backing 接口的校验
func (a *Analyzer) validateGenericBacking(t *types.Type, backingName string,
	expression ast.Expression) {
	concreteName := t.Name()

	infKlass, infLibKlass := a.getProgramLibraryClass(t)
	if infKlass != nil || infLibKlass != nil {
		if !a.validDownCast(backingName, infKlass, infLibKlass) &&
			!a.classEquals(backingName, infKlass, infLibKlass) {
			a.ProcessError(expression.FileName(), expression.Line(),
				"Concrete class: '"+concreteName+
					"' is incompatible with backing class/interface '"+backingName+"'")
		}
		return
	}

	if infKlass = a.currentClass.GetGenericClass(concreteName); infKlass != nil {
		if !a.validDownCast(backingName, infKlass, nil) &&
			!a.classEquals(backingName, infKlass, nil) {
			a.ProcessError(expression.FileName(), expression.Line(),
				"Concrete class: '"+concreteName+
					"' is incompatible with backing class/interface '"+backingName+"'")
		}
		return
	}

	if mthdCall, ok := expression.(*ast.MethodCall); ok {
		// 未给出具体类型：回退到接收者符号项的类型实参
		if !mthdCall.HasConcreteTypes() && mthdCall.Entry() != nil {
			entryGenerics := mthdCall.Entry().Type().Generics()
			concreteCopies := make([]*types.Type, 0, len(entryGenerics))
			for _, entryGeneric := range entryGenerics {
				concreteCopies = append(concreteCopies, a.typeFactory.MakeCopy(entryGeneric))
			}
			mthdCall.SetConcreteTypes(concreteCopies)
			return
		}
	}

	a.ProcessError(expression.FileName(), expression.Line(),
		"Undefined class or interface: '"+concreteName+"'")
}

// checkGenericEqualTypes 两侧泛型实参必须逐位一致
func (a *Analyzer) checkGenericEqualTypes(left, right *types.Type, expression ast.Expression,
	checkOnly bool) bool {
	leftKlass, leftLibKlass := a.getProgramLibraryClass(left)
	if leftKlass == nil && leftLibKlass == nil && a.currentClass.GetGenericClass(left.Name()) == nil {
		return false
	}

	rightKlass, rightLibKlass := a.getProgramLibraryClass(right)
	if rightKlass == nil && rightLibKlass == nil && a.currentClass.GetGenericClass(right.Name()) == nil {
		return false
	}

	if leftKlass != rightKlass || leftLibKlass != rightLibKlass {
		return true
	}

	leftGenerics := left.Generics()
	rightGenerics := right.Generics()
	if len(leftGenerics) != len(rightGenerics) {
		if checkOnly {
			return false
		}
		a.ProcessError(expression.FileName(), expression.Line(), "Concrete size mismatch")
		return true
	}

	for i := range rightGenerics {
		leftName := a.resolveGenericSideName(leftGenerics[i], expression, leftKlass, leftLibKlass)
		rightName := a.resolveGenericSideName(rightGenerics[i], expression, rightKlass, rightLibKlass)
		if leftName != rightName {
			if checkOnly {
				return false
			}
			a.ProcessError(expression.FileName(), expression.Line(),
				"Cannot map generic/concrete class to concrete class: '"+leftName+
					"' and '"+rightName+"'")
		}
	}

	return true
}

// resolveGenericSideName 泛型实参侧的有效类名（展开 backing 接口）
func (a *Analyzer) resolveGenericSideName(genericType *types.Type, expression ast.Expression,
	sideKlass *ast.Class, sideLibKlass *linker.LibraryClass) string {
	a.resolveClassEnumType(genericType, a.currentClass)

	klass, libKlass := a.getProgramLibraryClass(genericType)
	if klass != nil && klass.HasGenericInterface() {
		return klass.GenericInterface().Name()
	}
	if libKlass != nil && libKlass.HasGenericInterface() {
		return libKlass.GenericInterface().Name()
	}
	if klass == nil && libKlass == nil {
		if generic := a.currentClass.GetGenericClass(genericType.Name()); generic != nil {
			if generic.HasGenericInterface() {
				return generic.GenericInterface().Name()
			}
		} else {
			return a.resolveGenericTypeExpr(genericType, expression, sideKlass, sideLibKlass).Name()
		}
	}
	return genericType.Name()
}

// ============================================================================
// 泛型替换
// ============================================================================

// resolveGenericTypeFor 调用点替换：形参 -> 具体类型
// 解析顺序：接收者符号项实参 -> 链首调用实参 -> new 调用具体列表
func (a *Analyzer) resolveGenericTypeFor(candidateType *types.Type, methodCall *ast.MethodCall,
	klass *ast.Class, libKlass *linker.LibraryClass) *types.Type {
	hasGenerics := (klass != nil && klass.HasGenerics()) ||
		(libKlass != nil && libKlass.HasGenerics())
	if !hasGenerics {
		return candidateType
	}

	if candidateType.Kind() == types.FuncType {
		if klass != nil {
			concreteReturn := a.resolveGenericTypeFor(candidateType.FunctionReturn(), methodCall,
				klass, libKlass)
			typeParams := candidateType.FunctionParameters()
			concreteParams := make([]*types.Type, 0, len(typeParams))
			for _, typeParam := range typeParams {
				concreteParams = append(concreteParams,
					a.resolveGenericTypeFor(typeParam, methodCall, klass, libKlass))
			}
			return a.typeFactory.MakeFuncType(concreteParams, concreteReturn)
		}

		// 库侧：对编码串做名字替换后重新解析
		a.resolveClassEnumType(candidateType, a.currentClass)
		funcName := candidateType.Name()
		for _, generic := range libKlass.GenericClasses() {
			toType := a.resolveGenericTypeFor(a.typeFactory.MakeClassType(generic.Name()),
				methodCall, klass, libKlass)
			funcName = strings.ReplaceAll(funcName, "o."+generic.Name(), "o."+toType.Name())
		}
		return types.ParseType(funcName)
	}

	// 形参下标
	concreteIndex := -1
	a.resolveClassEnumType(candidateType, a.currentClass)
	genericName := candidateType.Name()
	if klass != nil {
		concreteIndex = klass.GenericIndex(genericName)
	} else if libKlass != nil {
		concreteIndex = libKlass.GenericIndex(genericName)
	}

	if concreteIndex > -1 {
		var concreteTypes []*types.Type
		if methodCall.Entry() != nil {
			concreteTypes = methodCall.Entry().Type().Generics()
		} else if methodCall.Variable() != nil && methodCall.Variable().Entry() != nil {
			concreteTypes = methodCall.Variable().Entry().Type().Generics()
		} else if methodCall.CallType() == ast.NewInstCall {
			concreteTypes = a.getConcreteTypes(methodCall)
		} else if methodCall.EvalType() != nil {
			concreteTypes = a.getMethodCallGenerics(methodCall)
		}

		if concreteIndex < len(concreteTypes) {
			concreteType := a.typeFactory.MakeCopy(concreteTypes[concreteIndex])
			concreteType.SetDimension(candidateType.Dimension())
			a.resolveClassEnumType(concreteType, a.currentClass)
			return concreteType
		}
	}

	return candidateType
}

// resolveGenericReturnType 返回类型替换：含返回位实参的逐位校验
func (a *Analyzer) resolveGenericReturnType(candidateType *types.Type, methodCall *ast.MethodCall,
	klass *ast.Class, libKlass *linker.LibraryClass) *types.Type {
	hasGenerics := (klass != nil && klass.HasGenerics()) ||
		(libKlass != nil && libKlass.HasGenerics())
	if !hasGenerics || candidateType == nil {
		return candidateType
	}
	if candidateType.Kind() == types.FuncType {
		return a.resolveGenericTypeFor(candidateType, methodCall, klass, libKlass)
	}

	a.resolveClassEnumType(candidateType, a.currentClass)

	// 返回类型本身是泛型类：校验并安装具体实参
	klassGeneric, libKlassGeneric := a.getProgramLibraryClass(candidateType)
	if klassGeneric != nil || libKlassGeneric != nil {
		candidateTypes := a.getConcreteTypes(methodCall)
		if methodCall.Entry() != nil && libKlass != nil && methodCall.EvalType() != nil {
			concreteTypes := methodCall.Entry().Type().Generics()
			mapTypes := a.getMethodCallGenerics(methodCall)
			for i := range candidateTypes {
				if i >= len(mapTypes) {
					a.ProcessError(methodCall.FileName(), methodCall.Line(),
						"Concrete to generic size mismatch")
					break
				}
				mapType := mapTypes[i]
				a.resolveClassEnumType(mapType, a.currentClass)
				mapIndex := libKlass.GenericIndex(mapType.Name())
				if mapIndex > -1 && mapIndex < len(concreteTypes) {
					candidateItem := candidateTypes[i]
					a.resolveClassEnumType(candidateItem, a.currentClass)
					concreteItem := concreteTypes[mapIndex]
					a.resolveClassEnumType(concreteItem, a.currentClass)
					if candidateItem.Name() != concreteItem.Name() {
						a.ProcessError(methodCall.FileName(), methodCall.Line(),
							"Invalid generic to concrete type mismatch '"+concreteItem.Name()+
								"' to '"+candidateItem.Name()+"'")
					}
				} else if len(concreteTypes) == len(mapTypes) {
					for j := range concreteTypes {
						if concreteTypes[j].Name() != mapTypes[j].Name() {
							a.ProcessError(methodCall.FileName(), methodCall.Line(),
								"Invalid generic to concrete type mismatch '"+
									concreteTypes[j].Name()+"' to '"+mapTypes[j].Name()+"'")
						}
					}
				} else {
					a.ProcessError(methodCall.FileName(), methodCall.Line(),
						"Concrete to generic size mismatch")
				}
			}
		}

		if klassGeneric != nil && klassGeneric.HasGenerics() {
			a.validateGenericConcreteMapping(candidateTypes, klassGeneric,
				methodCall.FileName(), methodCall.Line())
			if methodCall.EvalType() != nil {
				methodCall.EvalType().SetGenerics(candidateTypes)
			}
		} else if libKlassGeneric != nil && libKlassGeneric.HasGenerics() {
			a.validateLibraryGenericConcreteMapping(candidateTypes, libKlassGeneric,
				methodCall.FileName(), methodCall.Line())
			if methodCall.EvalType() != nil {
				methodCall.EvalType().SetGenerics(candidateTypes)
			}
		}
	}

	return a.resolveGenericTypeFor(candidateType, methodCall, klass, libKlass)
}

// resolveGenericTypeExpr 表达式位置的形参替换
func (a *Analyzer) resolveGenericTypeExpr(t *types.Type, expression ast.Expression,
	leftKlass *ast.Class, libLeftKlass *linker.LibraryClass) *types.Type {
	concreteIndex := -1
	leftTypeName := t.Name()

	if leftKlass != nil {
		concreteIndex = leftKlass.GenericIndex(leftTypeName)
	} else if libLeftKlass != nil {
		concreteIndex = libLeftKlass.GenericIndex(leftTypeName)
	}

	if concreteIndex > -1 {
		var concreteTypes []*types.Type
		if variable, ok := expression.(*ast.Variable); ok {
			if variable.Entry() != nil {
				concreteTypes = variable.Entry().Type().Generics()
			}
		} else if methodCall, ok := expression.(*ast.MethodCall); ok {
			concreteTypes = a.getConcreteTypes(methodCall)
		}
		if concreteIndex < len(concreteTypes) {
			return concreteTypes[concreteIndex]
		}
	}

	return t
}

// validateConcrete 返回/赋值位置的泛型完整性校验
func (a *Analyzer) validateConcrete(clsType, concreteType *types.Type, fileName string, line int) {
	if clsType == nil || concreteType == nil {
		return
	}

	concreteKlass, concreteLibKlass := a.getProgramLibraryClass(concreteType)
	if concreteKlass == nil && concreteLibKlass == nil {
		concreteKlass = a.currentClass.GetGenericClass(concreteType.Name())
	}
	if concreteKlass == nil && concreteLibKlass == nil {
		return
	}

	isConcreteInf := (concreteKlass != nil && concreteKlass.IsInterface()) ||
		(concreteLibKlass != nil && concreteLibKlass.IsInterface())
	if isConcreteInf {
		return
	}

	dclrKlass, dclrLibKlass := a.getProgramLibraryClass(clsType)
	if dclrKlass == nil && dclrLibKlass == nil {
		dclrKlass = a.currentClass.GetGenericClass(clsType.Name())
	}

	if dclrKlass != nil && dclrKlass.HasGenerics() {
		concreteTypes := concreteType.Generics()
		if len(concreteTypes) == 0 {
			a.ProcessError(fileName, line, "Generic to concrete size mismatch")
		} else {
			a.validateGenericConcreteMapping(concreteTypes, dclrKlass, fileName, line)
		}
	} else if dclrLibKlass != nil && dclrLibKlass.HasGenerics() {
		concreteTypes := concreteType.Generics()
		if len(concreteTypes) == 0 {
			a.ProcessError(fileName, line, "Generic to concrete size mismatch")
		} else {
			a.validateLibraryGenericConcreteMapping(concreteTypes, dclrLibKlass, fileName, line)
		}
	}
}

// analyzeGenericMethodCall 链式调用上的泛型实参传播
func (a *Analyzer) analyzeGenericMethodCall(methodCall *ast.MethodCall) {
	if methodCall.Entry() == nil && methodCall.Variable() == nil {
		return
	}

	var entryGenerics []*types.Type
	if methodCall.Entry() != nil {
		entryGenerics = methodCall.Entry().Type().Generics()
	} else if methodCall.Variable() != nil && methodCall.Variable().Entry() != nil {
		entryGenerics = methodCall.Variable().Entry().Type().Generics()
	}
	if len(entryGenerics) == 0 {
		return
	}

	for methodCall != nil && methodCall.EvalType() != nil {
		if prev := methodCall.PreviousExpression(); prev != nil && prev.EvalType() != nil {
			entryGenerics = prev.EvalType().Generics()
		}

		evalTypes := methodCall.EvalType().Generics()
		if method := methodCall.Method(); method != nil {
			klassGenerics := method.Class().GenericClasses()
			if len(entryGenerics) < len(klassGenerics) {
				a.ProcessError(methodCall.FileName(), methodCall.Line(),
					"Concrete to generic size mismatch")
			}
			return
		} else if libMethod := methodCall.LibraryMethod(); libMethod != nil {
			libKlass := libMethod.LibraryClass()
			klassGenerics := libKlass.GenericClasses()
			if len(entryGenerics) >= len(klassGenerics) {
				var mappedTypes []*types.Type
				if len(klassGenerics) == 1 {
					if len(entryGenerics) > 0 {
						mappedTypes = append(mappedTypes, entryGenerics[0])
					}
				} else {
					typeMap := make(map[string]*types.Type, len(klassGenerics))
					for i, generic := range klassGenerics {
						if i < len(entryGenerics) {
							typeMap[generic.Name()] = entryGenerics[i]
						}
					}
					for _, evalType := range evalTypes {
						if mappedType := typeMap[evalType.Name()]; mappedType != nil {
							mappedTypes = append(mappedTypes, mappedType)
						}
					}
				}
				methodCall.EvalType().SetGenerics(mappedTypes)
			} else {
				a.ProcessError(methodCall.FileName(), methodCall.Line(),
					"Concrete to generic size mismatch")
			}

			methodCall = methodCall.MethodCall()
		} else {
			return
		}
	}
}
