// factory.go - 节点工厂
//
// 所有解析树节点由 TreeFactory 统一创建并持有（arena 语义）：
// 节点之间随意共享指针，释放只发生在整棵树废弃时。

package ast

import (
	"github.com/tangzhangming/obi/internal/types"
)

// TreeFactory 节点工厂
type TreeFactory struct {
	nodes int // 已分配节点数（诊断用）
}

// NewTreeFactory 创建节点工厂
func NewTreeFactory() *TreeFactory {
	return &TreeFactory{}
}

// NodeCount 返回已分配节点数
func (f *TreeFactory) NodeCount() int {
	return f.nodes
}

// ============================================================================
// 字面量
// ============================================================================

// MakeNilLiteral 创建空字面量
func (f *TreeFactory) MakeNilLiteral(fileName string, line int) *NilLiteral {
	f.nodes++
	return &NilLiteral{baseExpression{fileName: fileName, line: line}}
}

// MakeBooleanLiteral 创建布尔字面量
func (f *TreeFactory) MakeBooleanLiteral(fileName string, line int, value bool) *BooleanLiteral {
	f.nodes++
	return &BooleanLiteral{baseExpression{fileName: fileName, line: line}, value}
}

// MakeCharacterLiteral 创建字符字面量
func (f *TreeFactory) MakeCharacterLiteral(fileName string, line int, value rune) *CharacterLiteral {
	f.nodes++
	return &CharacterLiteral{baseExpression{fileName: fileName, line: line}, value}
}

// MakeIntegerLiteral 创建整数字面量
func (f *TreeFactory) MakeIntegerLiteral(fileName string, line int, value int64) *IntegerLiteral {
	f.nodes++
	return &IntegerLiteral{baseExpression{fileName: fileName, line: line}, value}
}

// MakeFloatLiteral 创建浮点字面量
func (f *TreeFactory) MakeFloatLiteral(fileName string, line int, value float64) *FloatLiteral {
	f.nodes++
	return &FloatLiteral{baseExpression{fileName: fileName, line: line}, value}
}

// MakeCharacterString 创建字符串表达式
func (f *TreeFactory) MakeCharacterString(fileName string, line int, value string) *CharacterString {
	f.nodes++
	return &CharacterString{
		baseExpression: baseExpression{fileName: fileName, line: line},
		Value:          value,
	}
}

// MakeStaticArray 创建静态数组
func (f *TreeFactory) MakeStaticArray(fileName string, line int, elements *ExpressionList) *StaticArray {
	f.nodes++
	return &StaticArray{
		baseExpression: baseExpression{fileName: fileName, line: line},
		Elements:       elements,
	}
}

// ============================================================================
// 变量与运算
// ============================================================================

// MakeVariable 创建变量引用
func (f *TreeFactory) MakeVariable(fileName string, line int, name string) *Variable {
	f.nodes++
	return &Variable{
		baseExpression: baseExpression{fileName: fileName, line: line},
		name:           name,
	}
}

// MakeCalculatedExpression 创建二元运算
func (f *TreeFactory) MakeCalculatedExpression(fileName string, line int,
	kind ExpressionKind, left, right Expression) *CalculatedExpression {
	f.nodes++
	return &CalculatedExpression{
		baseExpression: baseExpression{fileName: fileName, line: line},
		kind:           kind,
		left:           left,
		right:          right,
	}
}

// MakeCond 创建三元条件
func (f *TreeFactory) MakeCond(fileName string, line int, expr, ifExpr, elseExpr Expression) *Cond {
	f.nodes++
	return &Cond{
		baseExpression: baseExpression{fileName: fileName, line: line},
		Expr:           expr,
		IfExpr:         ifExpr,
		ElseExpr:       elseExpr,
	}
}

// MakeLambda 创建 lambda 表达式
func (f *TreeFactory) MakeLambda(fileName string, line int, name string,
	lambdaType *types.Type, method *Method) *Lambda {
	f.nodes++
	method.SetLambda(true)
	return &Lambda{
		baseExpression: baseExpression{fileName: fileName, line: line},
		name:           name,
		lambdaType:     lambdaType,
		method:         method,
	}
}

// MakeExpressionList 创建表达式列表
func (f *TreeFactory) MakeExpressionList() *ExpressionList {
	return &ExpressionList{}
}

// ============================================================================
// 方法调用
// ============================================================================

// MakeMethodCall 创建方法调用
func (f *TreeFactory) MakeMethodCall(fileName string, line int, callType CallKind,
	variableName, methodName string, params *ExpressionList) *MethodCall {
	f.nodes++
	if params == nil {
		params = &ExpressionList{}
	}
	return &MethodCall{
		baseExpression: baseExpression{fileName: fileName, line: line},
		callType:       callType,
		variableName:   variableName,
		methodName:     methodName,
		callingParams:  params,
	}
}

// MakeVariableMethodCall 创建带接收者变量的方法调用
func (f *TreeFactory) MakeVariableMethodCall(fileName string, line int,
	variable *Variable, methodName string, params *ExpressionList) *MethodCall {
	call := f.MakeMethodCall(fileName, line, MethodCallKind, variable.Name(), methodName, params)
	call.variable = variable
	return call
}

// ============================================================================
// 语句
// ============================================================================

// MakeDeclaration 创建声明
func (f *TreeFactory) MakeDeclaration(fileName string, line int, entry *SymbolEntry,
	assignment *Assignment) *Declaration {
	f.nodes++
	return &Declaration{
		baseStatement: baseStatement{fileName: fileName, line: line},
		entry:         entry,
		assignment:    assignment,
	}
}

// MakeDeclarationList 创建声明列表
func (f *TreeFactory) MakeDeclarationList() *DeclarationList {
	return &DeclarationList{}
}

// MakeStatementList 创建语句列表
func (f *TreeFactory) MakeStatementList() *StatementList {
	return &StatementList{}
}

// MakeAssignment 创建赋值
func (f *TreeFactory) MakeAssignment(fileName string, line int, variable *Variable,
	expr Expression) *Assignment {
	f.nodes++
	return &Assignment{
		baseStatement: baseStatement{fileName: fileName, line: line},
		variable:      variable,
		expression:    expr,
	}
}

// MakeOperationAssignment 创建复合赋值
func (f *TreeFactory) MakeOperationAssignment(fileName string, line int, kind StatementKind,
	variable *Variable, expr Expression) *OperationAssignment {
	f.nodes++
	return &OperationAssignment{
		Assignment: Assignment{
			baseStatement: baseStatement{fileName: fileName, line: line},
			variable:      variable,
			expression:    expr,
		},
		kind: kind,
	}
}

// MakeSimpleStatement 创建表达式语句
func (f *TreeFactory) MakeSimpleStatement(fileName string, line int, expr Expression) *SimpleStatement {
	f.nodes++
	return &SimpleStatement{
		baseStatement: baseStatement{fileName: fileName, line: line},
		Expression:    expr,
	}
}

// MakeReturn 创建返回语句
func (f *TreeFactory) MakeReturn(fileName string, line int, expr Expression) *Return {
	f.nodes++
	return &Return{
		baseStatement: baseStatement{fileName: fileName, line: line},
		expression:    expr,
	}
}

// MakeLeaving 创建 leaving 块
func (f *TreeFactory) MakeLeaving(fileName string, line int, statements *StatementList) *Leaving {
	f.nodes++
	return &Leaving{
		baseStatement: baseStatement{fileName: fileName, line: line},
		Statements:    statements,
	}
}

// MakeIf 创建条件语句
func (f *TreeFactory) MakeIf(fileName string, line int, expr Expression,
	ifStatements *StatementList) *If {
	f.nodes++
	return &If{
		baseStatement: baseStatement{fileName: fileName, line: line},
		Expression:    expr,
		IfStatements:  ifStatements,
	}
}

// MakeDoWhile 创建后测试循环
func (f *TreeFactory) MakeDoWhile(fileName string, line int, expr Expression,
	statements *StatementList) *DoWhile {
	f.nodes++
	return &DoWhile{
		baseStatement: baseStatement{fileName: fileName, line: line},
		Expression:    expr,
		Statements:    statements,
	}
}

// MakeWhile 创建前测试循环
func (f *TreeFactory) MakeWhile(fileName string, line int, expr Expression,
	statements *StatementList) *While {
	f.nodes++
	return &While{
		baseStatement: baseStatement{fileName: fileName, line: line},
		Expression:    expr,
		Statements:    statements,
	}
}

// MakeFor 创建计数循环
func (f *TreeFactory) MakeFor(fileName string, line int, pre Statement, expr Expression,
	update Statement, statements *StatementList) *For {
	f.nodes++
	return &For{
		baseStatement:   baseStatement{fileName: fileName, line: line},
		PreStatement:    pre,
		Expression:      expr,
		UpdateStatement: update,
		Statements:      statements,
	}
}

// MakeBreak 创建 break
func (f *TreeFactory) MakeBreak(fileName string, line int) *Break {
	f.nodes++
	return &Break{baseStatement{fileName: fileName, line: line}}
}

// MakeContinue 创建 continue
func (f *TreeFactory) MakeContinue(fileName string, line int) *Continue {
	f.nodes++
	return &Continue{baseStatement{fileName: fileName, line: line}}
}

// MakeSelect 创建多路分支
func (f *TreeFactory) MakeSelect(fileName string, line int, assignment *Assignment) *Select {
	f.nodes++
	return &Select{
		baseStatement: baseStatement{fileName: fileName, line: line},
		Assignment:    assignment,
	}
}

// MakeCriticalSection 创建临界区
func (f *TreeFactory) MakeCriticalSection(fileName string, line int, variable *Variable,
	statements *StatementList) *CriticalSection {
	f.nodes++
	return &CriticalSection{
		baseStatement: baseStatement{fileName: fileName, line: line},
		Variable:      variable,
		Statements:    statements,
	}
}

// MakeSymbolEntry 创建符号项
func (f *TreeFactory) MakeSymbolEntry(fileName string, line int, name string,
	t *types.Type, isStatic, isLocal bool) *SymbolEntry {
	f.nodes++
	return NewSymbolEntry(fileName, line, name, t, isStatic, isLocal)
}

// MakeMethod 创建方法
func (f *TreeFactory) MakeMethod(fileName string, line int, name string,
	methodType MethodKind, isStatic, isNative bool) *Method {
	f.nodes++
	return NewMethod(fileName, line, name, methodType, isStatic, isNative)
}
