// statements.go - 语句分析

package analyzer

import (
	"github.com/tangzhangming/obi/internal/ast"
	"github.com/tangzhangming/obi/internal/linker"
	"github.com/tangzhangming/obi/internal/types"
)

// analyzeStatements 带作用域地分析语句表
func (a *Analyzer) analyzeStatements(statementList *ast.StatementList) {
	a.currentTable.NewScope()
	for _, stmt := range statementList.Statements() {
		a.analyzeStatement(stmt)
	}
	a.currentTable.PreviousScope()
}

// analyzeStatement 分析单条语句
func (a *Analyzer) analyzeStatement(statement ast.Statement) {
	switch statement.StatementType() {
	case ast.EmptyStmt:

	case ast.DeclarationStmt:
		declaration := statement.(*ast.Declaration)
		if declaration.Child() != nil {
			// 串联声明自内向外处理
			var stack []*ast.Declaration
			for declaration != nil {
				stack = append(stack, declaration)
				declaration = declaration.Child()
			}
			for i := len(stack) - 1; i >= 0; i-- {
				a.analyzeDeclaration(stack[i], a.currentClass)
			}
		} else {
			a.analyzeDeclaration(declaration, a.currentClass)
		}

	case ast.MethodCallStmt:
		methodCall := statement.(*ast.MethodCall)
		a.analyzeMethodCallNode(methodCall)
		a.analyzeCast(methodCall)

	case ast.AddAssignStmt, ast.SubAssignStmt, ast.MulAssignStmt, ast.DivAssignStmt:
		opAssign := statement.(*ast.OperationAssignment)
		a.analyzeAssignment(&opAssign.Assignment, statement.StatementType(), opAssign)

	case ast.AssignStmt:
		assignment := statement.(*ast.Assignment)
		if assignment.Child() != nil {
			var stack []*ast.Assignment
			for assignment != nil {
				stack = append(stack, assignment)
				assignment = assignment.Child()
			}
			for i := len(stack) - 1; i >= 0; i-- {
				a.analyzeAssignment(stack[i], ast.AssignStmt, nil)
			}
		} else {
			a.analyzeAssignment(assignment, ast.AssignStmt, nil)
		}

	case ast.SimpleStmt:
		a.analyzeSimpleStatement(statement.(*ast.SimpleStatement))

	case ast.ReturnStmt:
		a.analyzeReturn(statement.(*ast.Return))

	case ast.LeavingStmt:
		a.analyzeLeaving(statement.(*ast.Leaving))

	case ast.IfStmt:
		a.analyzeIf(statement.(*ast.If))

	case ast.DoWhileStmt:
		a.analyzeDoWhile(statement.(*ast.DoWhile))

	case ast.WhileStmt:
		a.analyzeWhile(statement.(*ast.While))

	case ast.ForStmt:
		a.analyzeFor(statement.(*ast.For))

	case ast.BreakStmt, ast.ContinueStmt:
		if a.inLoop <= 0 {
			a.ProcessError(statement.FileName(), statement.Line(),
				"Breaks are only allowed in loops.")
		}

	case ast.SelectStmt:
		a.currentMethod.SetAndOr(true)
		a.analyzeSelect(statement.(*ast.Select))

	case ast.CriticalStmt:
		a.analyzeCritical(statement.(*ast.CriticalSection))

	default:
		a.ProcessError(statement.FileName(), statement.Line(), "Undefined statement")
	}
}

// analyzeSimpleStatement 表达式语句必须以调用收尾
func (a *Analyzer) analyzeSimpleStatement(simple *ast.SimpleStatement) {
	expression := simple.Expression
	a.analyzeExpression(expression)
	a.analyzeExpressionMethodCall(expression)

	if expression.MethodCall() == nil {
		a.ProcessError(expression.FileName(), expression.Line(), "Invalid statement")
	}
}

// analyzeIf 条件语句
func (a *Analyzer) analyzeIf(ifStmt *ast.If) {
	expression := ifStmt.Expression
	a.analyzeExpression(expression)
	if !a.isBooleanExpression(expression) {
		a.ProcessError(expression.FileName(), expression.Line(), "Expected Bool expression")
	}

	a.analyzeStatements(ifStmt.IfStatements)

	if next := ifStmt.Next; next != nil {
		a.analyzeIf(next)
	}
	if ifStmt.ElseStatements != nil {
		a.analyzeStatements(ifStmt.ElseStatements)
	}
}

// analyzeSelect 多路分支：整型选择子、≥1 标签、标签不重复
func (a *Analyzer) analyzeSelect(selectStmt *ast.Select) {
	expression := selectStmt.Assignment.Expression()
	a.analyzeExpression(expression)
	if !a.isIntegerExpression(expression) {
		a.ProcessError(expression.FileName(), expression.Line(), "Expected integer expression")
	}

	cases := selectStmt.Cases()
	if len(cases) < 1 {
		a.ProcessError(expression.FileName(), expression.Line(),
			"Select statement must have at least one label")
	}

	value := 0
	labelStatements := make(map[int]*ast.StatementList)
	for _, selectCase := range cases {
		a.analyzeExpressions(selectCase.Labels)
		for _, label := range selectCase.Labels.Expressions() {
			switch label.ExpressionType() {
			case ast.CharLitExpr:
				value = int(label.(*ast.CharacterLiteral).Value)
				if duplicateCaseItem(labelStatements, value) {
					a.ProcessError(label.FileName(), label.Line(), "Duplicate select value")
				}

			case ast.IntLitExpr:
				value = int(label.(*ast.IntegerLiteral).Value)
				if duplicateCaseItem(labelStatements, value) {
					a.ProcessError(label.FileName(), label.Line(), "Duplicate select value")
				}

			case ast.MethodCallExpr:
				mthdCall := label.(*ast.MethodCall)
				if mthdCall.MethodCall() != nil {
					mthdCall = mthdCall.MethodCall()
				}
				if item := mthdCall.EnumItem(); item != nil {
					value = item.ID()
					if duplicateCaseItem(labelStatements, value) {
						a.ProcessError(label.FileName(), label.Line(), "Duplicate select value")
					}
				} else if libItem := mthdCall.LibraryEnumItem(); libItem != nil {
					value = libItem.ID()
					if duplicateCaseItem(labelStatements, value) {
						a.ProcessError(label.FileName(), label.Line(), "Duplicate select value")
					}
				} else {
					a.ProcessError(label.FileName(), label.Line(),
						"Expected integer literal or enum item")
				}

			default:
				a.ProcessError(label.FileName(), label.Line(),
					"Expected integer literal or enum item")
			}
			labelStatements[value] = selectCase.Statements
		}
	}
	selectStmt.SetLabelStatements(labelStatements)

	// 分支体按书写顺序分析
	for _, selectCase := range cases {
		a.analyzeStatements(selectCase.Statements)
	}
	if other := selectStmt.Other(); other != nil {
		a.analyzeStatements(other)
	}
}

// analyzeCritical 临界区要求 ThreadMutex 类型
func (a *Analyzer) analyzeCritical(mutex *ast.CriticalSection) {
	variable := mutex.Variable
	a.analyzeVariable(variable)
	if variable.EvalType() != nil && variable.EvalType().Kind() == types.ClassType {
		if variable.EvalType().Name() != "System.Concurrency.ThreadMutex" {
			a.ProcessError(mutex.FileName(), mutex.Line(), "Expected ThreadMutex type")
		}
	} else {
		a.ProcessError(mutex.FileName(), mutex.Line(), "Expected ThreadMutex type")
	}
	a.analyzeStatements(mutex.Statements)
}

// analyzeFor 计数循环
func (a *Analyzer) analyzeFor(forStmt *ast.For) {
	a.currentTable.NewScope()

	a.analyzeStatement(forStmt.PreStatement)

	expression := forStmt.Expression
	a.analyzeExpression(expression)
	if !a.isBooleanExpression(expression) {
		a.ProcessError(expression.FileName(), expression.Line(), "Expected Bool expression")
	}

	a.analyzeStatement(forStmt.UpdateStatement)

	a.inLoop++
	a.analyzeStatements(forStmt.Statements)
	a.inLoop--
	a.currentTable.PreviousScope()
}

// analyzeDoWhile 后测试循环
func (a *Analyzer) analyzeDoWhile(doWhileStmt *ast.DoWhile) {
	a.currentTable.NewScope()
	a.inLoop++
	for _, stmt := range doWhileStmt.Statements.Statements() {
		a.analyzeStatement(stmt)
	}
	a.inLoop--

	expression := doWhileStmt.Expression
	a.analyzeExpression(expression)
	if !a.isBooleanExpression(expression) {
		a.ProcessError(expression.FileName(), expression.Line(), "Expected Bool expression")
	}
	a.currentTable.PreviousScope()
}

// analyzeWhile 前测试循环
func (a *Analyzer) analyzeWhile(whileStmt *ast.While) {
	expression := whileStmt.Expression
	a.analyzeExpression(expression)
	if !a.isBooleanExpression(expression) {
		a.ProcessError(expression.FileName(), expression.Line(), "Expected Bool expression")
	}

	a.inLoop++
	a.analyzeStatements(whileStmt.Statements)
	a.inLoop--
}

// analyzeReturn 返回语句
func (a *Analyzer) analyzeReturn(rtrn *ast.Return) {
	mthdType := a.currentMethod.Return()
	expression := rtrn.Expression()

	if expression != nil {
		a.analyzeExpression(expression)
		for expression.MethodCall() != nil {
			a.analyzeExpressionMethodCall(expression)
			expression = expression.MethodCall()
		}

		isNilLambdaExpr := false
		if expression.ExpressionType() == ast.MethodCallExpr && expression.EvalType() != nil &&
			expression.EvalType().Kind() == types.NilType {
			if a.captureLambda != nil {
				isNilLambdaExpr = true
			} else {
				a.ProcessError(expression.FileName(), expression.Line(),
					"Invalid operation with 'Nil' value")
			}
		}

		if boxedCall := a.boxUnboxingReturn(mthdType, expression); boxedCall != nil {
			a.analyzeExpression(boxedCall)
			rtrn.SetExpression(boxedCall)
			expression = boxedCall
		}

		if isNilLambdaExpr && expression.ExpressionType() == ast.MethodCallExpr {
			mthdCall := expression.(*ast.MethodCall)
			if method := mthdCall.Method(); method != nil {
				if method.Return().Kind() == types.NilType && mthdType.Kind() != types.NilType {
					a.ProcessError(rtrn.FileName(), rtrn.Line(),
						"Method call returns no value, value expected")
				}
			} else if libMethod := mthdCall.LibraryMethod(); libMethod != nil {
				if libMethod.Return().Kind() == types.NilType && mthdType.Kind() != types.NilType {
					a.ProcessError(rtrn.FileName(), rtrn.Line(),
						"Method call returns no value, value expected")
				}
			}
		} else {
			isScalar := a.isScalar(expression, true) && mthdType.Dimension() == 0
			if boxExpression := a.analyzeRightCastExpr(mthdType, expression, isScalar); boxExpression != nil {
				a.analyzeExpression(boxExpression)
				rtrn.SetExpression(boxExpression)
				expression = boxExpression
			}
		}

		a.validateConcrete(expression.EvalType(), mthdType, rtrn.FileName(), rtrn.Line())

		if mthdType.Kind() == types.ClassType && !a.resolveClassEnumType(mthdType, a.currentClass) {
			a.ProcessError(rtrn.FileName(), rtrn.Line(),
				"Undefined class or enum: '"+types.FormatClassName(mthdType.Name())+"'")
		}
	} else if mthdType.Kind() != types.NilType {
		a.ProcessError(rtrn.FileName(), rtrn.Line(), "Invalid return statement")
	}

	if a.currentMethod.MethodType() == ast.NewPublicMethod ||
		a.currentMethod.MethodType() == ast.NewPrivateMethod {
		a.ProcessError(rtrn.FileName(), rtrn.Line(), "Cannot return value from constructor")
	}
}

// analyzeLeaving leaving 块：仅限顶层、每方法至多一个
func (a *Analyzer) analyzeLeaving(leavingStmt *ast.Leaving) {
	if a.currentTable.Depth() == 1 {
		a.analyzeStatements(leavingStmt.Statements)
		if a.currentMethod.Leaving() != nil {
			a.ProcessError(leavingStmt.FileName(), leavingStmt.Line(),
				"Method/function may have only 1 'leaving' block defined")
		} else {
			a.currentMethod.SetLeaving(leavingStmt)
		}
	} else {
		a.ProcessError(leavingStmt.FileName(), leavingStmt.Line(),
			"Method/function 'leaving' block must be a top level statement")
	}
}

// analyzeDeclaration 分析声明并规范化其类型
func (a *Analyzer) analyzeDeclaration(declaration *ast.Declaration, klass *ast.Class) {
	entry := declaration.Entry()
	if entry == nil {
		return
	}

	if entry.Type() != nil && entry.Type().Kind() == types.ClassType {
		t := entry.Type()
		if !a.resolveClassEnumType(t, klass) {
			a.ProcessError(entry.FileName(), entry.Line(),
				"Undefined class or enum: '"+types.FormatClassName(t.Name())+
					"'\n\tIf generic ensure concrete types are properly defined.")
		}

		// 泛型声明校验实参
		if t.HasGenerics() {
			declKlass, declLibKlass := a.getProgramLibraryClass(t)
			if declKlass != nil && declKlass.HasGenerics() {
				a.validateGenericConcreteMapping(t.Generics(), declKlass,
					entry.FileName(), entry.Line())
			} else if declLibKlass != nil && declLibKlass.HasGenerics() {
				a.validateLibraryGenericConcreteMapping(t.Generics(), declLibKlass,
					entry.FileName(), entry.Line())
			}
		}
	} else if entry.Type() != nil && entry.Type().Kind() == types.FuncType {
		a.analyzeVariableFunctionParameters(entry.Type(), entry.FileName(), entry.Line(), klass)
	}

	// 默认值
	if assignment := declaration.Assignment(); assignment != nil && a.currentMethod != nil {
		a.analyzeAssignment(assignment, assignment.StatementType(), nil)
	}
}

// analyzeAssignment 赋值语句
// opAssign 为复合赋值时的完整节点，普通赋值传 nil
func (a *Analyzer) analyzeAssignment(assignment *ast.Assignment, stmtType ast.StatementKind,
	opAssign *ast.OperationAssignment) {
	variable := assignment.Variable()
	a.analyzeVariable(variable)

	expression := assignment.Expression()
	a.analyzeExpression(expression)
	if expression.ExpressionType() == ast.LambdaExpr {
		lambdaCall := expression.(*ast.Lambda).LambdaMethodCall()
		if lambdaCall == nil {
			return
		}
		expression = lambdaCall
	}

	for expression.MethodCall() != nil {
		a.analyzeExpressionMethodCall(expression)
		expression = expression.MethodCall()
	}

	// Var 变量：绑定推导类型
	if variable.EvalType() != nil && variable.EvalType().Kind() == types.VarType {
		if variable.Indices() != nil {
			a.ProcessError(expression.FileName(), expression.Line(),
				"Invalid operation using Var type")
		}

		if entry := variable.Entry(); entry != nil {
			var toType *types.Type
			if expression.CastType() != nil {
				toType = expression.CastType()
			} else {
				toType = expression.EvalType()
			}
			a.analyzeVariableCast(toType, expression)
			variable.SetTypes(toType)
			entry.SetType(toType)

			// 解数组引用时回落为标量
			if exprVariable, ok := expression.(*ast.Variable); ok {
				if entry.Type() != nil && exprVariable.Indices() != nil {
					variable.BaseType().SetDimension(0)
					variable.EvalType().SetDimension(0)
					entry.Type().SetDimension(0)
				}
			}
		}
	} else if variable.EvalType() != nil && variable.EvalType().Kind() == types.ClassType {
		// 枚举引用赋值：类型跟随右侧
		if call, ok := expression.(*ast.MethodCall); ok && call.EnumItem() != nil {
			if toEntry := variable.Entry(); toEntry != nil {
				toType := toEntry.Type()
				if boxExpression := a.boxExpression(toType, expression); boxExpression != nil {
					expression = boxExpression
					assignment.SetExpression(boxExpression)
				} else {
					fromType := expression.EvalType()
					a.analyzeClassCastTypes(toType, fromType, expression, false)
					variable.SetTypes(fromType)
					toEntry.SetType(fromType)
				}
			}
		}
	}

	// 泛型实参比对
	if expression.EvalType() != nil && expression.EvalType().HasGenerics() &&
		variable.Entry() != nil && variable.Entry().Type() != nil {
		varTypes := variable.Entry().Type().Generics()
		exprTypes := expression.EvalType().Generics()
		if len(varTypes) == len(exprTypes) {
			for i := range varTypes {
				a.resolveClassEnumType(varTypes[i], a.currentClass)
				a.resolveClassEnumType(exprTypes[i], a.currentClass)
				if varTypes[i].Name() != exprTypes[i].Name() {
					a.ProcessError(variable.FileName(), variable.Line(),
						"Generic type mismatch for class '"+variable.EvalType().Name()+
							"' between generic types: '"+types.FormatClassName(varTypes[i].Name())+
							"' and '"+types.FormatClassName(exprTypes[i].Name())+"'")
				}
			}
		} else {
			a.ProcessError(variable.FileName(), variable.Line(), "Generic size mismatch")
		}
	}

	checkRightCast := true
	leftType := variable.EvalType()
	if leftType != nil && leftType.Kind() == types.ClassType {
		leftName := a.getProgramLibraryClassName(leftType.Name())

		// System.String 的追加运算
		if leftName == linker.SystemStringName {
			checkRightCast = a.analyzeStringAssignment(assignment, stmtType, opAssign, expression)
		} else if linker.IsHolderType(leftName) {
			// Holder 的复合赋值重写为普通赋值 + 运算表达式
			var calcKind ast.ExpressionKind
			hasCalc := true
			switch stmtType {
			case ast.AddAssignStmt:
				calcKind = ast.AddExpr
			case ast.SubAssignStmt:
				calcKind = ast.SubExpr
			case ast.MulAssignStmt:
				calcKind = ast.MulExpr
			case ast.DivAssignStmt:
				calcKind = ast.DivExpr
			default:
				hasCalc = false
			}

			if hasCalc {
				calcExpression := a.treeFactory.MakeCalculatedExpression(variable.FileName(),
					variable.Line(), calcKind, variable, expression)
				assignment.SetExpression(calcExpression)
				if opAssign != nil {
					opAssign.SetStatementType(ast.AssignStmt)
				}
				a.analyzeCalculation(calcExpression)
				expression = calcExpression
			}
		}
	}

	if checkRightCast {
		isScalar := a.isScalar(variable, true) && a.isScalar(expression, true)
		boxExpression := a.analyzeRightCastVariable(variable, expression, isScalar)
		if boxExpression != nil {
			a.analyzeExpression(boxExpression)
			assignment.SetExpression(boxExpression)
		}
	}

	// 无返回值的调用不可用于赋值
	if methodCall, ok := expression.(*ast.MethodCall); ok {
		if method := methodCall.Method(); method != nil &&
			method.Return().Kind() == types.NilType && !methodCall.IsFunctionDefinition() {
			a.ProcessError(expression.FileName(), expression.Line(),
				"Invalid assignment method '"+method.Name()+"(..)' does not return a value")
		} else if methodCall.EvalType() != nil && methodCall.EvalType().Kind() == types.NilType {
			a.ProcessError(expression.FileName(), expression.Line(),
				"Invalid assignment, call does not return a value")
		}
	}
}

// analyzeStringAssignment System.String 左值的复合赋值
// 返回是否仍需右值转换检查
func (a *Analyzer) analyzeStringAssignment(assignment *ast.Assignment,
	stmtType ast.StatementKind, opAssign *ast.OperationAssignment, expression ast.Expression) bool {
	rightType := a.getExpressionType(expression)
	if rightType == nil {
		return true
	}

	if rightType.Kind() == types.ClassType {
		rightName := a.getProgramLibraryClassName(rightType.Name())
		if rightName == linker.SystemStringName {
			switch stmtType {
			case ast.AddAssignStmt:
				if opAssign != nil {
					opAssign.SetStringConcat(true)
				}
				return false
			case ast.SubAssignStmt, ast.MulAssignStmt, ast.DivAssignStmt:
				a.ProcessError(assignment.FileName(), assignment.Line(),
					"Invalid operation using classes: 'System.String' and 'System.String'")
			}
		} else {
			a.ProcessError(assignment.FileName(), assignment.Line(),
				"Invalid operation using classes: 'System.String' and '"+rightName+"'")
		}
		return true
	}

	switch rightType.Kind() {
	case types.CharType, types.ByteType, types.IntType, types.FloatType, types.BooleanType:
		switch stmtType {
		case ast.AddAssignStmt:
			if opAssign != nil {
				opAssign.SetStringConcat(true)
			}
			return false
		case ast.SubAssignStmt, ast.MulAssignStmt, ast.DivAssignStmt:
			a.ProcessError(assignment.FileName(), assignment.Line(),
				"Invalid operation using classes: 'System.String' and '"+
					types.KindName(rightType.Kind())+"'")
		}
	}
	return true
}
