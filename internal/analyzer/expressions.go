// expressions.go - 表达式分析

package analyzer

import (
	"github.com/tangzhangming/obi/internal/ast"
	"github.com/tangzhangming/obi/internal/linker"
	"github.com/tangzhangming/obi/internal/types"
)

// analyzeExpressions 逐个分析表达式列表
func (a *Analyzer) analyzeExpressions(parameters *ast.ExpressionList) {
	for _, expression := range parameters.Expressions() {
		a.analyzeExpression(expression)
	}
}

// analyzeExpression 分析单个表达式
func (a *Analyzer) analyzeExpression(expression ast.Expression) {
	switch expression.ExpressionType() {
	case ast.LambdaExpr:
		a.analyzeLambda(expression.(*ast.Lambda))

	case ast.StatAryExpr:
		a.analyzeStaticArray(expression.(*ast.StaticArray))

	case ast.CharStrExpr:
		a.analyzeCharacterString(expression.(*ast.CharacterString))

	case ast.CondExpr:
		a.analyzeConditional(expression.(*ast.Cond))

	case ast.MethodCallExpr:
		a.analyzeMethodCallNode(expression.(*ast.MethodCall))

	case ast.NilLitExpr:
		expression.SetEvalType(a.typeFactory.MakeType(types.NilType), true)

	case ast.BooleanLitExpr:
		expression.SetEvalType(a.typeFactory.MakeType(types.BooleanType), true)

	case ast.CharLitExpr:
		expression.SetEvalType(a.typeFactory.MakeType(types.CharType), true)

	case ast.IntLitExpr:
		expression.SetEvalType(a.typeFactory.MakeType(types.IntType), true)

	case ast.FloatLitExpr:
		expression.SetEvalType(a.typeFactory.MakeType(types.FloatType), true)

	case ast.VarExpr:
		a.analyzeVariable(expression.(*ast.Variable))

	case ast.AndExpr, ast.OrExpr:
		a.currentMethod.SetAndOr(true)
		a.analyzeCalculation(expression.(*ast.CalculatedExpression))

	default:
		if ast.IsCalculated(expression.ExpressionType()) {
			a.analyzeCalculation(expression.(*ast.CalculatedExpression))
		} else {
			a.ProcessError(expression.FileName(), expression.Line(), "Undefined expression")
		}
	}

	// 链式调用
	a.analyzeExpressionMethodCall(expression)

	// 显式转换 / TypeOf
	a.analyzeCast(expression)
}

// ============================================================================
// 变量
// ============================================================================

// analyzeVariable 绑定变量到符号项
func (a *Analyzer) analyzeVariable(variable *ast.Variable) {
	a.analyzeVariableEntry(variable, a.getEntry(variable.Name()))
}

// analyzeVariableEntry 按给定符号项绑定变量
func (a *Analyzer) analyzeVariableEntry(variable *ast.Variable, entry *ast.SymbolEntry) {
	if entry != nil {
		name := variable.Name()
		if a.hasProgramLibraryEnum(name) || a.hasProgramLibraryClass(name) {
			a.ProcessError(variable.FileName(), variable.Line(),
				"Variable '"+name+"' already used to define a class, enum or function\n\t"+
					"If passing a function reference ensure the full signature is provided")
		}

		if variable.EvalType() == nil {
			entryType := entry.Type()
			var expression ast.Expression = variable

			for expression.MethodCall() != nil {
				a.analyzeExpressionMethodCall(expression)
				expression = expression.MethodCall()
			}

			castType := expression.CastType()
			if castType != nil && castType.Kind() == types.ClassType && entryType != nil &&
				entryType.Kind() == types.ClassType && !a.hasProgramLibraryEnum(entryType.Name()) {
				a.analyzeClassCastTypes(castType, entryType, expression, false)
			}

			variable.SetTypes(entryType)
			variable.SetEntry(entry)
			entry.AddVariable(variable)
		}

		// 数组下标
		if indices := variable.Indices(); indices != nil {
			if entry.Type() != nil && entry.Type().Dimension() == indices.Size() {
				a.analyzeIndices(indices)
			} else {
				a.ProcessError(variable.FileName(), variable.Line(),
					"Dimension size mismatch or uninitialized type")
			}
		}

		// 静态上下文
		if a.invalidStaticEntry(entry) {
			a.ProcessError(variable.FileName(), variable.Line(),
				"Cannot reference an instance variable from this context")
		}
	} else if a.currentMethod != nil && a.currentMethod.IsLambda() {
		// lambda 体内引用外层局部：按闭包捕获复制
		captureScopeName := a.captureMethod.Name() + ":" + variable.Name()
		captureEntry := a.captureTable.GetEntry(captureScopeName)
		if captureEntry != nil {
			if a.captureLambda.HasClosure(captureEntry) {
				copyEntry := a.captureLambda.Closure(captureEntry)
				variable.SetTypes(copyEntry.Type())
				variable.SetEntry(copyEntry)
				copyEntry.AddVariable(variable)
			} else {
				varScopeName := a.currentMethod.Name() + ":" + variable.Name()
				copyEntry := a.treeFactory.MakeSymbolEntry(variable.FileName(), variable.Line(),
					varScopeName, captureEntry.Type(), false, false)
				a.symbolMgr.GetSymbolTable(a.currentClass.Name()).AddEntry(copyEntry, true)

				variable.SetTypes(copyEntry.Type())
				variable.SetEntry(copyEntry)
				copyEntry.AddVariable(variable)
				a.captureLambda.AddClosure(copyEntry, captureEntry)
			}
		}
	} else if a.currentMethod != nil {
		// 首次出现：登记 Var 待推导项
		scopeName := a.currentMethod.Name() + ":" + variable.Name()
		varEntry := a.treeFactory.MakeSymbolEntry(variable.FileName(), variable.Line(),
			scopeName, a.typeFactory.MakeType(types.VarType), false, true)
		a.currentTable.AddEntry(varEntry, true)

		variable.SetTypes(varEntry.Type())
		variable.SetEntry(varEntry)
		varEntry.AddVariable(variable)
	} else {
		a.ProcessError(variable.FileName(), variable.Line(),
			"Undefined variable: '"+variable.Name()+"'")
	}

	// 前后缀伴随语句互斥，且只分析一次
	if variable.PreStatement() != nil && variable.PostStatement() != nil {
		a.ProcessError(variable.FileName(), variable.Line(),
			"Variable cannot have pre and pos operations")
	} else if variable.PreStatement() != nil && !variable.IsPreStatementChecked() {
		preStmt := variable.PreStatement()
		variable.PreStatementChecked()
		a.analyzeAssignment(&preStmt.Assignment, preStmt.StatementType(), preStmt)
	} else if variable.PostStatement() != nil && !variable.IsPostStatementChecked() {
		postStmt := variable.PostStatement()
		variable.PostStatementChecked()
		a.analyzeAssignment(&postStmt.Assignment, postStmt.StatementType(), postStmt)
	}
}

// ============================================================================
// 条件 / 字符串 / 静态数组
// ============================================================================

// analyzeConditional 三元条件：两分支类型须一致
func (a *Analyzer) analyzeConditional(conditional *ast.Cond) {
	a.analyzeExpression(conditional.Expr)
	if !a.isBooleanExpression(conditional.Expr) {
		a.ProcessError(conditional.FileName(), conditional.Line(), "Expected Bool expression")
	}

	a.analyzeExpression(conditional.IfExpr)
	a.analyzeExpression(conditional.ElseExpr)

	ifType := a.getExpressionType(conditional.IfExpr)
	elseType := a.getExpressionType(conditional.ElseExpr)
	if ifType != nil && elseType != nil {
		if ifType.Kind() != elseType.Kind() &&
			!(ifType.Kind() == types.ClassType && elseType.Kind() == types.NilType) &&
			!(ifType.Kind() == types.NilType && elseType.Kind() == types.ClassType) {
			a.ProcessError(conditional.FileName(), conditional.Line(),
				"'?' operation expressions must be of the same type")
		}
		if ifType.Kind() == types.NilType {
			conditional.SetEvalType(elseType, true)
		} else {
			conditional.SetEvalType(ifType, true)
		}
	}
}

// analyzeCharacterString 字符串：内插片段查 ToString
func (a *Analyzer) analyzeCharacterString(charStr *ast.CharacterString) {
	for _, segment := range charStr.Segments() {
		if segment.Entry != nil {
			a.analyzeCharacterStringVariable(segment.Entry, charStr, segment)
		}
	}
	strType := a.typeFactory.MakeClassType(linker.SystemStringName)
	strType.SetResolved(true)
	charStr.SetEvalType(strType, true)
}

// analyzeCharacterStringVariable 内插变量须有公有 ToString
func (a *Analyzer) analyzeCharacterStringVariable(entry *ast.SymbolEntry,
	charStr *ast.CharacterString, segment *ast.CharacterStringSegment) {
	if entry.Type() == nil || entry.Type().Dimension() > 0 {
		a.ProcessError(charStr.FileName(), charStr.Line(),
			"Invalid function variable type or dimension size")
		return
	}

	t := entry.Type()
	if t.Kind() == types.ClassType && t.Name() != linker.SystemStringName && t.Name() != "String" {
		clsName := t.Name()
		if klass := a.searchProgramClasses(clsName); klass != nil {
			method := klass.GetMethod(clsName + ":ToString:")
			if method != nil && method.MethodType() != ast.PrivateMethod {
				segment.Method = method
			} else {
				a.ProcessError(charStr.FileName(), charStr.Line(),
					"Class/enum variable does not have a public 'ToString' method")
			}
		} else if libKlass := a.linker.SearchClassLibraries(clsName, a.program.Uses()); libKlass != nil {
			libMethod := libKlass.GetMethod(clsName + ":ToString:")
			if libMethod != nil && libMethod.MethodType() != linker.PrivateMethod {
				segment.LibMethod = libMethod
			} else {
				a.ProcessError(charStr.FileName(), charStr.Line(),
					"Class/enum variable does not have a public 'ToString' method")
			}
		} else {
			a.ProcessError(charStr.FileName(), charStr.Line(),
				"Class/enum variable does not have a 'ToString' method")
		}
	} else if t.Kind() == types.FuncType {
		a.ProcessError(charStr.FileName(), charStr.Line(), "Invalid function variable type")
	}
}

// analyzeStaticArray 静态数组：元素类型一致，维度统一
func (a *Analyzer) analyzeStaticArray(array *ast.StaticArray) {
	expressions := array.Elements.Expressions()
	if len(expressions) == 0 {
		a.ProcessError(array.FileName(), array.Line(), "Empty static array")
		return
	}

	var elemType *types.Type
	for _, expression := range expressions {
		a.analyzeExpression(expression)
		t := a.getExpressionType(expression)
		if t == nil {
			continue
		}
		if elemType == nil {
			elemType = t
		} else if elemType.Kind() != t.Kind() {
			a.ProcessError(expression.FileName(), expression.Line(),
				"Static array element types do not match")
		}
	}

	if elemType != nil {
		arrayType := a.typeFactory.MakeCopy(elemType)
		arrayType.SetDimension(1)
		array.SetEvalType(arrayType, true)
	}
}

// ============================================================================
// 数组下标
// ============================================================================

// analyzeIndices 下标须为 Byte/Char/Int/枚举；Holder 自动拆箱
func (a *Analyzer) analyzeIndices(indices *ast.ExpressionList) {
	a.analyzeExpressions(indices)

	expressions := indices.Expressions()
	for i, expression := range expressions {
		a.analyzeExpression(expression)
		evalType := expression.EvalType()
		if evalType == nil {
			continue
		}
		switch evalType.Kind() {
		case types.ByteType, types.CharType, types.IntType:

		case types.ClassType:
			if !a.isEnumExpression(expression) {
				if unboxed := a.unboxingExpression(evalType, expression, true); unboxed != nil {
					expressions[i] = unboxed
				} else {
					a.ProcessError(expression.FileName(), expression.Line(),
						"Expected Byte, Char, Int or Enum class type")
				}
			}

		default:
			a.ProcessError(expression.FileName(), expression.Line(),
				"Expected Byte, Char, Int or Enum class type")
		}
	}
}

// ============================================================================
// 二元运算
// ============================================================================

// analyzeCalculation 逻辑与算术运算
func (a *Analyzer) analyzeCalculation(expression *ast.CalculatedExpression) {
	left := expression.Left()
	if leftCalc, ok := left.(*ast.CalculatedExpression); ok {
		a.analyzeCalculation(leftCalc)
	}
	right := expression.Right()
	if rightCalc, ok := right.(*ast.CalculatedExpression); ok {
		a.analyzeCalculation(rightCalc)
	}

	a.analyzeExpression(left)
	a.analyzeExpression(right)

	// 运算数隐式转换
	a.analyzeCalculationCast(expression)

	if left.CastType() != nil && left.EvalType() != nil {
		a.analyzeRightCastTypes(left.CastType(), left.EvalType(), left, a.isScalar(left, true))
	}
	if right.CastType() != nil && right.EvalType() != nil {
		a.analyzeRightCastTypes(right.CastType(), right.EvalType(), right, a.isScalar(right, true))
	}

	switch expression.ExpressionType() {
	case ast.AndExpr, ast.OrExpr:
		if !a.isBooleanExpression(left) || !a.isBooleanExpression(right) {
			a.ProcessError(expression.FileName(), expression.Line(),
				"Invalid mathematical operation")
		}
		expression.SetEvalType(a.typeFactory.MakeType(types.BooleanType), true)

	case ast.EqlExpr, ast.NeqlExpr:
		if a.isBooleanExpression(left) != a.isBooleanExpression(right) {
			a.ProcessError(expression.FileName(), expression.Line(),
				"Invalid mathematical operation")
		}
		expression.SetEvalType(a.typeFactory.MakeType(types.BooleanType), true)

	case ast.LesExpr, ast.GtrExpr, ast.LesEqlExpr, ast.GtrEqlExpr:
		if a.isBooleanExpression(left) || a.isBooleanExpression(right) {
			a.ProcessError(expression.FileName(), expression.Line(),
				"Invalid mathematical operation")
		} else if a.isEnumExpression(left) && a.isEnumExpression(right) {
			a.ProcessError(expression.FileName(), expression.Line(),
				"Invalid mathematical operation")
		} else if clsType := a.getExpressionType(left); clsType != nil && clsType.Kind() == types.ClassType {
			a.ProcessError(expression.FileName(), expression.Line(),
				"Invalid mathematical operation")
		} else if clsType := a.getExpressionType(right); clsType != nil && clsType.Kind() == types.ClassType {
			a.ProcessError(expression.FileName(), expression.Line(),
				"Invalid mathematical operation")
		} else if (left.EvalType() != nil && left.EvalType().Kind() == types.NilType) ||
			(right.EvalType() != nil && right.EvalType().Kind() == types.NilType) {
			a.ProcessError(expression.FileName(), expression.Line(),
				"Invalid mathematical operation")
		}
		expression.SetEvalType(a.typeFactory.MakeType(types.BooleanType), true)

	case ast.ModExpr:
		a.analyzeModCalculation(expression, left, right)

	case ast.AddExpr, ast.SubExpr, ast.MulExpr, ast.DivExpr,
		ast.ShlExpr, ast.ShrExpr, ast.BitAndExpr, ast.BitOrExpr, ast.BitXorExpr:
		if a.isBooleanExpression(left) || a.isBooleanExpression(right) {
			a.ProcessError(expression.FileName(), expression.Line(),
				"Invalid mathematical operation")
		}
	}
}

// analyzeModCalculation 取模仅限整型；Holder 中只接受整型 Holder
func (a *Analyzer) analyzeModCalculation(expression *ast.CalculatedExpression, left, right ast.Expression) {
	if a.isBooleanExpression(left) || a.isBooleanExpression(right) {
		a.ProcessError(expression.FileName(), expression.Line(), "Invalid mathematical operation")
	} else {
		clsType := a.getExpressionType(left)
		if clsType == nil || clsType.Kind() != types.ClassType {
			clsType = a.getExpressionType(right)
		}
		if clsType != nil && clsType.Kind() == types.ClassType {
			clsName := clsType.Name()
			if clsName != linker.ByteHolderName && clsName != linker.CharHolderName &&
				clsName != linker.IntHolderName {
				a.ProcessError(expression.FileName(), expression.Line(),
					"Invalid mathematical operation")
			}
		}
	}

	checkFloatOperand := func(operand ast.Expression) {
		t := a.getExpressionType(operand)
		if operand.EvalType() == nil || t == nil || t.Kind() != types.FloatType {
			return
		}
		if castType := operand.CastType(); castType != nil {
			switch castType.Kind() {
			case types.ByteType, types.IntType, types.CharType:
			default:
				a.ProcessError(expression.FileName(), expression.Line(),
					"Expected Byte, Char, Int or Enum class type")
			}
		} else {
			a.ProcessError(expression.FileName(), expression.Line(),
				"Expected Byte, Char, Int or Enum class type")
		}
	}
	checkFloatOperand(left)
	checkFloatOperand(right)
}

// analyzeCalculationCast 运算数类型对齐（执行模拟）
func (a *Analyzer) analyzeCalculationCast(expression *ast.CalculatedExpression) {
	leftExpr := expression.Left()
	rightExpr := expression.Right()

	left := a.getExpressionType(leftExpr)
	right := a.getExpressionType(rightExpr)
	if left == nil || right == nil {
		return
	}

	if !a.isScalar(leftExpr, true) || !a.isScalar(rightExpr, true) {
		a.ProcessError(expression.FileName(), expression.Line(),
			"Invalid array calculation operation")
		return
	}

	switch left.Kind() {
	case types.ByteType, types.CharType, types.IntType:
		switch right.Kind() {
		case types.ByteType, types.CharType, types.IntType:
			if expression.EvalType() == nil {
				expression.SetEvalType(left, true)
			}
		case types.FloatType:
			// 整型提升为浮点
			leftExpr.SetCastType(right, false)
			expression.SetEvalType(right, true)
		case types.ClassType:
			if a.unboxingCalculation(right, rightExpr, expression, false) {
				return
			}
			if !a.isEnumExpression(rightExpr) {
				a.ProcessError(expression.FileName(), expression.Line(),
					"Invalid mathematical operation")
			}
			expression.SetEvalType(left, true)
		case types.NilType, types.BooleanType:
			a.ProcessError(expression.FileName(), expression.Line(),
				"Invalid mathematical operation")
		default:
			expression.SetEvalType(left, true)
		}

	case types.FloatType:
		switch right.Kind() {
		case types.FloatType:
			expression.SetEvalType(left, true)
		case types.ByteType, types.CharType, types.IntType:
			rightExpr.SetCastType(left, false)
			expression.SetEvalType(left, true)
		case types.ClassType:
			if a.unboxingCalculation(right, rightExpr, expression, false) {
				return
			}
			a.ProcessError(expression.FileName(), expression.Line(),
				"Invalid mathematical operation")
		case types.NilType, types.BooleanType:
			a.ProcessError(expression.FileName(), expression.Line(),
				"Invalid mathematical operation")
		default:
			expression.SetEvalType(left, true)
		}

	case types.BooleanType:
		if right.Kind() != types.BooleanType {
			a.ProcessError(expression.FileName(), expression.Line(),
				"Invalid mathematical operation")
		}
		expression.SetEvalType(left, true)

	case types.ClassType:
		// Holder 拆箱参与运算
		if a.unboxingCalculation(left, leftExpr, expression, true) {
			return
		}
		switch right.Kind() {
		case types.ClassType, types.NilType:
			expression.SetEvalType(a.typeFactory.MakeType(types.BooleanType), true)
		default:
			if !a.isEnumExpression(leftExpr) {
				a.ProcessError(expression.FileName(), expression.Line(),
					"Invalid mathematical operation")
			}
			expression.SetEvalType(right, true)
		}

	case types.NilType:
		if right.Kind() == types.ClassType || right.Kind() == types.NilType {
			expression.SetEvalType(a.typeFactory.MakeType(types.BooleanType), true)
		} else {
			a.ProcessError(expression.FileName(), expression.Line(),
				"Invalid mathematical operation")
		}

	default:
		expression.SetEvalType(left, true)
	}
}

// unboxingCalculation Holder 运算数重写为 .Get() 调用
func (a *Analyzer) unboxingCalculation(t *types.Type, expression ast.Expression,
	calcExpression *ast.CalculatedExpression, setLeft bool) bool {
	if t == nil || expression == nil {
		return false
	}

	a.resolveClassEnumType(t, a.currentClass)
	if !linker.IsHolderType(t.Name()) {
		return false
	}

	if variable, ok := expression.(*ast.Variable); ok {
		boxMethodCall := a.treeFactory.MakeVariableMethodCall(expression.FileName(),
			expression.Line(), variable, "Get", a.treeFactory.MakeExpressionList())
		a.analyzeMethodCallNode(boxMethodCall)

		if setLeft {
			calcExpression.SetLeft(boxMethodCall)
		} else {
			calcExpression.SetRight(boxMethodCall)
		}
		a.analyzeCalculationCast(calcExpression)
		return true
	}

	if expression.ExpressionType() == ast.MethodCallExpr {
		boxMethodCall := a.treeFactory.MakeMethodCall(expression.FileName(), expression.Line(),
			ast.MethodCallKind, expression.EvalType().Name(), "Get",
			a.treeFactory.MakeExpressionList())
		expression.SetMethodCall(boxMethodCall)
		a.analyzeExpression(calcExpression)
		return true
	}

	return false
}

// ============================================================================
// 显式转换与 TypeOf
// ============================================================================

// analyzeCast 显式转换与 TypeOf 校验
func (a *Analyzer) analyzeCast(expression ast.Expression) {
	if castType := expression.CastType(); castType != nil {
		rootType := expression.BaseType()
		if rootType == nil {
			rootType = expression.EvalType()
		}

		if rootType != nil && rootType.Kind() == types.VarType {
			a.ProcessError(expression.FileName(), expression.Line(),
				"Cannot cast an uninitialized type")
		}

		// 不允许跨维度转换
		if variable, ok := expression.(*ast.Variable); ok && rootType != nil &&
			variable.Indices() == nil && castType.Dimension() != rootType.Dimension() {
			a.ProcessError(expression.FileName(), expression.Line(), "Dimension size mismatch")
		}

		a.analyzeRightCastTypes(castType, rootType, expression, a.isScalar(expression, true))
	} else if typeOf := expression.TypeOf(); typeOf != nil {
		// TypeOf 仅限类类型
		if typeOf.Kind() != types.ClassType ||
			(expression.EvalType() != nil && expression.EvalType().Kind() != types.ClassType) {
			a.ProcessError(expression.FileName(), expression.Line(),
				"Invalid 'TypeOf' check, only complex classes are supported")
		}

		if klass := a.searchProgramClasses(typeOf.Name()); klass != nil {
			klass.SetCalled(true)
			typeOf.SetName(klass.Name())
		} else if libKlass := a.linker.SearchClassLibraries(typeOf.Name(),
			a.program.UsesFor(a.currentClass.FileName())); libKlass != nil {
			libKlass.SetCalled(true)
			typeOf.SetName(libKlass.Name())
		} else {
			a.ProcessError(expression.FileName(), expression.Line(),
				"Invalid 'TypeOf' check, unknown class '"+typeOf.Name()+"'")
		}
		expression.SetEvalType(a.typeFactory.MakeType(types.BooleanType), true)
	}
}

// analyzeVariableCast 解析中间转换目标类并登记到表达式
func (a *Analyzer) analyzeVariableCast(toType *types.Type, expression ast.Expression) {
	if toType == nil || toType.Kind() != types.ClassType || expression.CastType() == nil ||
		toType.Dimension() > 0 || toType.Name() == linker.SystemBaseName || toType.Name() == "Base" {
		return
	}

	toClassName := toType.Name()
	if a.searchProgramEnums(toClassName) != nil ||
		a.linker.SearchEnumLibraries(toClassName, a.program.UsesFor(a.currentClass.FileName())) != nil {
		return
	}

	if toClass := a.searchProgramClasses(toClassName); toClass != nil {
		expression.SetToClass(toClass)
	} else if toLibClass := a.linker.SearchClassLibraries(toClassName, a.program.Uses()); toLibClass != nil {
		expression.SetToLibraryClass(toLibClass)
	} else {
		a.ProcessError(expression.FileName(), expression.Line(),
			"Undefined class: '"+toClassName+"'")
	}
}

// analyzeVariableFunctionParameters 函数类型的参数与返回类名规范化
func (a *Analyzer) analyzeVariableFunctionParameters(funcType *types.Type,
	fileName string, line int, klass *ast.Class) {
	funcParams := funcType.FunctionParameters()
	rtrnType := funcType.FunctionReturn()
	if len(funcParams) == 0 || rtrnType == nil {
		return
	}

	for _, t := range funcParams {
		if t.Kind() == types.ClassType && !a.resolveClassEnumType(t, klass) {
			a.ProcessError(fileName, line, "Undefined class or enum: '"+t.Name()+"'")
		}
	}
	if rtrnType.Kind() == types.ClassType && !a.resolveClassEnumType(rtrnType, klass) {
		a.ProcessError(fileName, line, "Undefined class or enum: '"+rtrnType.Name()+"'")
	}
}
