// casts.go - 转换矩阵与装箱/拆箱
//
// 赋值与传参统一走 (左种类 x 右种类) 矩阵：
// 基础类型到类只允许 Holder 装箱；类到类要求合法上/下行转换；
// 函数类型要求编码串相等；数组要求维度与元素种类一致（右侧 Nil 除外）。
// Float 与整型互转方向敏感：整型左值收窄插入隐式转换，
// 赋值方向上浮点左值对整型右值要求显式转换。

package analyzer

import (
	"github.com/tangzhangming/obi/internal/ast"
	"github.com/tangzhangming/obi/internal/linker"
	"github.com/tangzhangming/obi/internal/types"
)

// analyzeRightCastVariable 赋值右值转换
// 赋值方向上浮点左值对整型右值要求显式转换
func (a *Analyzer) analyzeRightCastVariable(variable *ast.Variable, expression ast.Expression,
	isScalar bool) ast.Expression {
	left := variable.EvalType()
	right := a.getExpressionType(expression)

	if isScalar && left != nil && right != nil && left.Kind() == types.FloatType &&
		expression.CastType() == nil {
		switch right.Kind() {
		case types.ByteType, types.CharType, types.IntType:
			a.ProcessError(expression.FileName(), expression.Line(),
				"Invalid cast with classes: "+floatCastName(right.Kind())+" and Float")
			return nil
		}
	}

	boxExpression := a.analyzeRightCastTypes(left, right, expression, isScalar)
	if variable.Indices() != nil && !isScalar {
		a.ProcessError(expression.FileName(), expression.Line(), "Dimension size mismatch")
	}
	return boxExpression
}

// analyzeRightCastExpr 以表达式自身类型为右侧的转换
func (a *Analyzer) analyzeRightCastExpr(left *types.Type, expression ast.Expression,
	isScalar bool) ast.Expression {
	return a.analyzeRightCastTypes(left, a.getExpressionType(expression), expression, isScalar)
}

// analyzeRightCastTypes 转换矩阵主体
// 返回非空时表示右值被装箱/拆箱重写，调用方须替换表达式
func (a *Analyzer) analyzeRightCastTypes(left, right *types.Type, expression ast.Expression,
	isScalar bool) ast.Expression {
	if expression == nil || left == nil || right == nil {
		return nil
	}

	if !isScalar {
		// 数组：维度与元素种类一致；右侧 Nil 放行
		if left.Dimension() != right.Dimension() && right.Kind() != types.NilType {
			a.ProcessError(expression.FileName(), expression.Line(), "Dimension size mismatch")
		}
		if left.Kind() != right.Kind() && right.Kind() != types.NilType {
			a.ProcessError(expression.FileName(), expression.Line(), "Invalid array cast")
		}
		if left.Kind() == types.ClassType && right.Kind() == types.ClassType {
			a.analyzeClassCastExpr(left, expression)
		}
		expression.SetEvalType(left, false)
		return nil
	}

	switch left.Kind() {
	case types.VarType:
		if right.Kind() == types.VarType {
			a.ProcessError(expression.FileName(), expression.Line(),
				"Invalid operation using classes: Var and Var")
		}

	case types.NilType:
		switch right.Kind() {
		case types.FuncType:
			a.ProcessError(expression.FileName(), expression.Line(),
				"Invalid operation using classes: Nil and function reference")
		case types.VarType:
			a.ProcessError(expression.FileName(), expression.Line(),
				"Invalid operation using classes: Nil and Var")
		case types.NilType:
			a.ProcessError(expression.FileName(), expression.Line(),
				"Invalid operation with Nil")
		case types.ClassType:
			a.ProcessError(expression.FileName(), expression.Line(),
				"Invalid cast with classes: Nil and "+types.FormatClassName(right.Name()))
		case types.AliasType:
		default:
			a.ProcessError(expression.FileName(), expression.Line(),
				"Invalid cast with classes: Nil and "+types.KindName(right.Kind()))
		}

	case types.ByteType, types.CharType, types.IntType:
		a.analyzeIntegerRightCast(left, right, expression)

	case types.FloatType:
		switch right.Kind() {
		case types.FuncType:
			a.ProcessError(expression.FileName(), expression.Line(),
				"Invalid operation using classes: System.Float and function reference")
		case types.VarType:
			a.ProcessError(expression.FileName(), expression.Line(),
				"Invalid operation using classes: Nil and Var")
		case types.AliasType:
		case types.NilType:
			if left.Dimension() < 1 {
				a.ProcessError(expression.FileName(), expression.Line(),
					"Invalid cast with classes: System.Float and Nil")
			}
		case types.FloatType:
			if expression.EvalType() != nil && expression.EvalType().Kind() != types.IntType {
				expression.SetEvalType(left, false)
			}
		case types.ByteType, types.CharType, types.IntType:
			// 整型右值提升：插入隐式转换
			expression.SetCastType(left, false)
			expression.SetEvalType(right, false)
		case types.ClassType:
			if !a.hasProgramLibraryEnum(right.Name()) {
				if unboxed := a.unboxingExpression(right, expression, true); unboxed != nil {
					return unboxed
				}
				a.ProcessError(expression.FileName(), expression.Line(),
					"Invalid cast with classes: System.Float and "+types.FormatClassName(right.Name()))
			}
		case types.BooleanType:
			a.ProcessError(expression.FileName(), expression.Line(),
				"Invalid cast with classes: System.Float and System.Bool")
		}

	case types.ClassType:
		switch right.Kind() {
		case types.FuncType:
			a.ProcessError(expression.FileName(), expression.Line(),
				"Invalid operation using classes: "+types.FormatClassName(left.Name())+
					" and function reference")
		case types.VarType:
			a.ProcessError(expression.FileName(), expression.Line(),
				"Invalid cast with classes: "+types.FormatClassName(left.Name())+" and Var")
		case types.AliasType:
		case types.NilType:
			expression.SetCastType(left, false)
			expression.SetEvalType(right, false)
		case types.ByteType, types.CharType, types.IntType, types.FloatType, types.BooleanType:
			if !a.hasProgramLibraryEnum(left.Name()) {
				if boxed := a.boxExpression(left, expression); boxed != nil {
					return boxed
				}
				a.ProcessError(expression.FileName(), expression.Line(),
					"Invalid cast with classes: "+types.FormatClassName(left.Name())+
						" and "+types.KindName(right.Kind()))
			} else if right.Kind() == types.BooleanType {
				a.ProcessError(expression.FileName(), expression.Line(),
					"Invalid cast with classes: "+types.FormatClassName(left.Name())+
						" and System.Bool")
			}
		case types.ClassType:
			a.analyzeClassCastExpr(left, expression)
		}

	case types.BooleanType:
		switch right.Kind() {
		case types.FuncType:
			a.ProcessError(expression.FileName(), expression.Line(),
				"Invalid operation using classes: System.Bool and function reference")
		case types.VarType:
			a.ProcessError(expression.FileName(), expression.Line(),
				"Invalid operation using classes: System.Bool and Var")
		case types.AliasType:
		case types.NilType:
			if left.Dimension() < 1 {
				a.ProcessError(expression.FileName(), expression.Line(),
					"Invalid cast with classes: System.Bool and Nil")
			}
		case types.BooleanType:
		case types.ClassType:
			if !a.hasProgramLibraryEnum(right.Name()) {
				if unboxed := a.unboxingExpression(right, expression, true); unboxed != nil {
					return unboxed
				}
				a.ProcessError(expression.FileName(), expression.Line(),
					"Invalid cast with classes: System.Bool and "+types.FormatClassName(right.Name()))
			}
		default:
			a.ProcessError(expression.FileName(), expression.Line(),
				"Invalid cast with classes: System.Bool and "+types.KindName(right.Kind()))
		}

	case types.FuncType:
		switch right.Kind() {
		case types.FuncType:
			// 编码串相等即匹配
			a.analyzeVariableFunctionParameters(left, expression.FileName(), expression.Line(),
				a.currentClass)
			if left.Name() == "" {
				left.SetName("m." + a.encodeFunctionType(left.FunctionParameters(), left.FunctionReturn()))
			}
			if right.Name() == "" {
				right.SetName("m." + a.encodeFunctionType(right.FunctionParameters(), right.FunctionReturn()))
			}
		case types.VarType:
			a.ProcessError(expression.FileName(), expression.Line(),
				"Invalid operation using classes: function reference and Var")
		case types.AliasType:
		case types.ClassType:
			a.ProcessError(expression.FileName(), expression.Line(),
				"Invalid cast with classes: function reference and "+
					types.FormatClassName(right.Name()))
		default:
			a.ProcessError(expression.FileName(), expression.Line(),
				"Invalid cast with classes: function reference and "+types.KindName(right.Kind()))
		}
	}

	return nil
}

// floatCastName Float 左值诊断中的右侧名
func floatCastName(kind types.Kind) string {
	switch kind {
	case types.ByteType:
		return "System.Byte"
	case types.CharType:
		return "System.Char"
	default:
		return "Int"
	}
}

// analyzeIntegerRightCast Byte/Char/Int 左值的右值转换
func (a *Analyzer) analyzeIntegerRightCast(left, right *types.Type, expression ast.Expression) {
	leftName := types.KindName(left.Kind())

	switch right.Kind() {
	case types.FuncType:
		a.ProcessError(expression.FileName(), expression.Line(),
			"Invalid operation using classes: "+leftName+" and function reference")
	case types.VarType:
		a.ProcessError(expression.FileName(), expression.Line(),
			"Invalid operation using classes: "+leftName+" and Var")
	case types.AliasType:
	case types.NilType:
		if left.Dimension() < 1 {
			a.ProcessError(expression.FileName(), expression.Line(),
				"Invalid cast with classes: "+leftName+" and Nil")
		}
	case types.ByteType, types.CharType, types.IntType:
		if expression.EvalType() != nil && expression.EvalType().Kind() != types.FloatType {
			expression.SetEvalType(left, false)
		}
	case types.FloatType:
		// 浮点右值收窄：插入隐式转换
		expression.SetCastType(left, false)
		expression.SetEvalType(right, false)
	case types.ClassType:
		if !a.hasProgramLibraryEnum(right.Name()) {
			if unboxed := a.unboxingExpression(right, expression, true); unboxed != nil {
				return
			}
			a.ProcessError(expression.FileName(), expression.Line(),
				"Invalid cast with classes: "+leftName+" and "+types.FormatClassName(right.Name()))
		}
	case types.BooleanType:
		a.ProcessError(expression.FileName(), expression.Line(),
			"Invalid cast with classes: "+leftName+" and System.Bool")
	}
}

// ============================================================================
// 类到类转换
// ============================================================================

// analyzeClassCastExpr 以表达式的 cast/eval 类型为右侧
func (a *Analyzer) analyzeClassCastExpr(left *types.Type, expression ast.Expression) {
	if expression.CastType() != nil && expression.EvalType() != nil &&
		(expression.CastType().Kind() != types.ClassType ||
			expression.EvalType().Kind() != types.ClassType) {
		a.analyzeRightCastTypes(expression.CastType(), expression.EvalType(), expression,
			a.isScalar(expression, true))
	}

	right := expression.CastType()
	if right == nil {
		right = expression.EvalType()
	}
	a.analyzeClassCastTypes(left, right, expression, false)
}

// analyzeClassCastTypes 类到类转换判定
// 依序处理：程序枚举、程序类、泛型形参、库枚举、库类
func (a *Analyzer) analyzeClassCastTypes(left, right *types.Type, expression ast.Expression,
	genericCheck bool) {
	if left == nil || right == nil {
		return
	}

	if a.currentClass.HasGenerics() || left.HasGenerics() || right.HasGenerics() {
		a.checkGenericEqualTypes(left, right, expression, false)
	}

	// 泛型形参替换为 backing 接口
	if a.currentClass.HasGenerics() {
		if leftTmp := a.currentClass.GetGenericClass(left.Name()); leftTmp != nil &&
			leftTmp.HasGenericInterface() {
			left = leftTmp.GenericInterface()
		}
		if rightTmp := a.currentClass.GetGenericClass(right.Name()); rightTmp != nil &&
			rightTmp.HasGenericInterface() {
			right = rightTmp.GenericInterface()
		}
	}

	invalidEnums := func(leftName, rightName string) {
		a.ProcessError(expression.FileName(), expression.Line(),
			"Invalid cast between enums: '"+types.FormatClassName(leftName)+
				"' and '"+types.FormatClassName(rightName)+"'")
	}
	invalidClasses := func() {
		a.ProcessError(expression.FileName(), expression.Line(),
			"Invalid cast between classes: '"+types.FormatClassName(left.Name())+
				"' and '"+types.FormatClassName(right.Name())+"'")
	}

	// 程序枚举
	leftEnum := a.searchProgramEnums(left.Name())
	if leftEnum == nil {
		leftEnum = a.searchProgramEnums(a.currentClass.Name() + "#" + left.Name())
	}
	if leftEnum != nil {
		if rightEnum := a.searchProgramEnums(right.Name()); rightEnum != nil {
			if leftEnum.Name() != rightEnum.Name() {
				invalidEnums(left.Name(), right.Name())
			}
		} else if rightLibEnum := a.linker.SearchEnumLibraries(right.Name(),
			a.program.UsesFor(a.currentClass.FileName())); rightLibEnum != nil {
			if leftEnum.Name() != rightLibEnum.Name() {
				invalidEnums(left.Name(), right.Name())
			}
		} else {
			a.ProcessError(expression.FileName(), expression.Line(),
				"Invalid cast between enum and class")
		}
		return
	}

	// 程序类
	if leftClass := a.searchProgramClasses(left.Name()); leftClass != nil {
		rightClass := a.searchProgramClasses(right.Name())
		if rightClass == nil {
			rightClass = a.currentClass.GetGenericClass(right.Name())
		}
		if rightClass != nil {
			switch {
			case a.validDownCast(leftClass.Name(), rightClass, nil):
				leftClass.SetCalled(true)
				rightClass.SetCalled(true)
				if leftClass.IsInterface() && !genericCheck {
					expression.SetToClass(leftClass)
				}
			case rightClass.IsInterface() || a.validUpCast(leftClass.Name(), rightClass):
				expression.SetToClass(leftClass)
				leftClass.SetCalled(true)
				rightClass.SetCalled(true)
			default:
				expression.SetToClass(leftClass)
				invalidClasses()
			}
		} else if rightLibClass := a.linker.SearchClassLibraries(right.Name(),
			a.program.UsesFor(a.currentClass.FileName())); rightLibClass != nil {
			switch {
			case a.validDownCast(leftClass.Name(), nil, rightLibClass):
				if leftClass.IsInterface() && !genericCheck {
					expression.SetToClass(leftClass)
				}
			case rightLibClass.IsInterface() || a.validLibraryUpCast(leftClass.Name(), rightLibClass):
				expression.SetToClass(leftClass)
			default:
				expression.SetToClass(leftClass)
				invalidClasses()
			}
		} else {
			a.ProcessError(expression.FileName(), expression.Line(),
				"Invalid cast between class, enum or return type")
		}
		return
	}

	// 泛型形参
	if leftGeneric := a.currentClass.GetGenericClass(left.Name()); leftGeneric != nil {
		if rightGeneric := a.currentClass.GetGenericClass(right.Name()); rightGeneric != nil {
			if left.Name() != right.Name() {
				a.ProcessError(expression.FileName(), expression.Line(),
					"Invalid cast between generics: '"+types.FormatClassName(left.Name())+
						"' and '"+types.FormatClassName(right.Name())+"'")
			}
		} else {
			a.ProcessError(expression.FileName(), expression.Line(),
				"Invalid cast between generic: '"+types.FormatClassName(left.Name())+
					"' and class/enum '"+types.FormatClassName(right.Name())+"'")
		}
		return
	}

	// 库枚举
	if leftLibEnum := a.linker.SearchEnumLibraries(left.Name(),
		a.program.UsesFor(a.currentClass.FileName())); leftLibEnum != nil {
		if rightEnum := a.searchProgramEnums(right.Name()); rightEnum != nil {
			if leftLibEnum.Name() != rightEnum.Name() {
				invalidEnums(leftLibEnum.Name(), rightEnum.Name())
			}
		} else if rightLibEnum := a.linker.SearchEnumLibraries(right.Name(),
			a.program.UsesFor(a.currentClass.FileName())); rightLibEnum != nil {
			if leftLibEnum.Name() != rightLibEnum.Name() {
				invalidEnums(leftLibEnum.Name(), rightLibEnum.Name())
			}
		} else {
			a.ProcessError(expression.FileName(), expression.Line(),
				"Invalid cast between enum and class")
		}
		return
	}

	// 库类
	if leftLibClass := a.linker.SearchClassLibraries(left.Name(),
		a.program.UsesFor(a.currentClass.FileName())); leftLibClass != nil {
		rightClass := a.searchProgramClasses(right.Name())
		if rightClass == nil {
			rightClass = a.currentClass.GetGenericClass(right.Name())
		}
		if rightClass != nil {
			switch {
			case a.validDownCast(leftLibClass.Name(), rightClass, nil):
				leftLibClass.SetCalled(true)
				rightClass.SetCalled(true)
				if leftLibClass.IsInterface() && !genericCheck {
					expression.SetToLibraryClass(leftLibClass)
				}
			case rightClass.IsInterface() || a.validUpCast(leftLibClass.Name(), rightClass):
				expression.SetToLibraryClass(leftLibClass)
				leftLibClass.SetCalled(true)
				rightClass.SetCalled(true)
			default:
				invalidClasses()
			}
		} else if rightLibClass := a.linker.SearchClassLibraries(right.Name(),
			a.program.UsesFor(a.currentClass.FileName())); rightLibClass != nil {
			switch {
			case a.validDownCast(leftLibClass.Name(), nil, rightLibClass):
				leftLibClass.SetCalled(true)
				rightLibClass.SetCalled(true)
				if leftLibClass.IsInterface() && !genericCheck {
					expression.SetToLibraryClass(leftLibClass)
				}
			case rightLibClass.IsInterface() || a.validLibraryUpCast(leftLibClass.Name(), rightLibClass):
				expression.SetToLibraryClass(leftLibClass)
				leftLibClass.SetCalled(true)
				rightLibClass.SetCalled(true)
			default:
				a.ProcessError(expression.FileName(), expression.Line(),
					"Invalid cast between classes: '"+leftLibClass.Name()+
						"' and '"+rightLibClass.Name()+"'")
			}
		} else {
			a.ProcessError(expression.FileName(), expression.Line(),
				"Invalid cast between class or enum: '"+left.Name()+"' and '"+right.Name()+"'")
		}
		return
	}

	a.ProcessError(expression.FileName(), expression.Line(),
		"Invalid class, enum or method call context\n\tEnsure all required libraries have been included")
}

// ============================================================================
// 装箱 / 拆箱
// ============================================================================

// unboxingExpression Holder 右值重写为 h.Get()
func (a *Analyzer) unboxingExpression(toType *types.Type, fromExpr ast.Expression,
	isCast bool) ast.Expression {
	if toType == nil || fromExpr == nil {
		return nil
	}

	fromType := a.getExpressionType(fromExpr)
	if fromType == nil {
		return nil
	}

	a.resolveClassEnumType(toType, a.currentClass)
	a.resolveClassEnumType(fromType, a.currentClass)

	// 原始位置收到 Holder：拆箱
	if linker.IsHolderType(fromType.Name()) && (toType.Kind() != types.ClassType || isCast) {
		if variable, ok := fromExpr.(*ast.Variable); ok {
			boxMethodCall := a.treeFactory.MakeVariableMethodCall(fromExpr.FileName(),
				fromExpr.Line(), variable, "Get", a.treeFactory.MakeExpressionList())
			a.analyzeMethodCallNode(boxMethodCall)
			return boxMethodCall
		}
		if fromExpr.ExpressionType() == ast.MethodCallExpr {
			boxMethodCall := a.treeFactory.MakeMethodCall(fromExpr.FileName(), fromExpr.Line(),
				ast.MethodCallKind, fromExpr.EvalType().Name(), "Get",
				a.treeFactory.MakeExpressionList())
			a.analyzeMethodCallNode(boxMethodCall)
			fromExpr.SetMethodCall(boxMethodCall)
			return fromExpr
		}
	}

	return nil
}

// boxExpression Holder 位置收到原始值：重写为 new XHolder(v)
func (a *Analyzer) boxExpression(toType *types.Type, fromExpr ast.Expression) ast.Expression {
	if toType == nil || fromExpr == nil {
		return nil
	}

	a.resolveClassEnumType(toType, a.currentClass)

	fromType := a.getExpressionType(fromExpr)
	if fromType == nil {
		return nil
	}

	isEnum := false
	if call, ok := fromExpr.(*ast.MethodCall); ok && call.EnumItem() != nil {
		isEnum = true
	}

	switch fromType.Kind() {
	case types.BooleanType, types.ByteType, types.CharType, types.IntType, types.FloatType:
	default:
		if !isEnum {
			return nil
		}
	}

	if toType.Kind() == types.ClassType && linker.IsHolderType(toType.Name()) {
		boxExpressions := a.treeFactory.MakeExpressionList()
		boxExpressions.AddExpression(fromExpr)
		boxMethodCall := a.treeFactory.MakeMethodCall(fromExpr.FileName(), fromExpr.Line(),
			ast.NewInstCall, toType.Name(), "New", boxExpressions)
		a.analyzeMethodCallNode(boxMethodCall)
		return boxMethodCall
	}

	return nil
}

// boxUnboxingReturn 返回值的装箱/拆箱重写
func (a *Analyzer) boxUnboxingReturn(toType *types.Type, fromExpr ast.Expression) *ast.MethodCall {
	if toType == nil || fromExpr == nil {
		return nil
	}

	a.resolveClassEnumType(toType, a.currentClass)

	fromType := fromExpr.EvalType()
	if fromType == nil {
		fromType = fromExpr.BaseType()
	}
	if fromType == nil {
		return nil
	}
	a.resolveClassEnumType(fromType, a.currentClass)

	switch toType.Kind() {
	case types.BooleanType, types.ByteType, types.CharType, types.IntType, types.FloatType:
		// 原始返回类型收到 Holder：拆箱
		if fromExpr.ExpressionType() == ast.MethodCallExpr && linker.IsHolderType(fromType.Name()) {
			boxMethodCall := a.treeFactory.MakeMethodCall(fromExpr.FileName(), fromExpr.Line(),
				ast.MethodCallKind, fromExpr.EvalType().Name(), "Get",
				a.treeFactory.MakeExpressionList())
			fromExpr.SetMethodCall(boxMethodCall)
			if fromCall, ok := fromExpr.(*ast.MethodCall); ok {
				a.analyzeMethodCallNode(fromCall)
				return fromCall
			}
		}

	case types.ClassType:
		switch fromType.Kind() {
		case types.BooleanType, types.ByteType, types.CharType, types.IntType, types.FloatType:
			if linker.IsHolderType(toType.Name()) {
				boxExpressions := a.treeFactory.MakeExpressionList()
				boxExpressions.AddExpression(fromExpr)
				boxMethodCall := a.treeFactory.MakeMethodCall(fromExpr.FileName(), fromExpr.Line(),
					ast.NewInstCall, toType.Name(), "New", boxExpressions)
				a.analyzeMethodCallNode(boxMethodCall)
				return boxMethodCall
			}
		}
	}

	return nil
}
