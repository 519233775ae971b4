// return_paths.go - 返回路径证明
//
// 非 Nil 返回类型的方法要求每条控制流路径以 return 终结：
// 语句表只看最后一条语句；if 链要求每个分支返回（无 else 时
// 仅当 else-if 链覆盖完整才成立）；select 要求每个标签与 other 都返回。

package analyzer

import (
	"github.com/tangzhangming/obi/internal/ast"
)

// analyzeReturnPaths 证明语句表的全部路径都返回
func (a *Analyzer) analyzeReturnPaths(statementList *ast.StatementList) bool {
	statements := statementList.Statements()
	if len(statements) == 0 {
		a.ProcessError(a.currentMethod.FileName(), a.currentMethod.Line(),
			"All method/function paths must return a value")
		return false
	}

	last := statements[len(statements)-1]
	switch last.StatementType() {
	case ast.SelectStmt:
		return a.analyzeSelectReturnPaths(last.(*ast.Select))

	case ast.IfStmt:
		return a.analyzeIfReturnPaths(last.(*ast.If))

	case ast.ReturnStmt:
		return true

	default:
		if !a.currentMethod.IsAlt() {
			a.ProcessError(a.currentMethod.FileName(), a.currentMethod.Line(),
				"All method/function paths must return a value")
		}
	}

	return false
}

// analyzeIfReturnPaths if / else-if / else 链的路径证明
func (a *Analyzer) analyzeIfReturnPaths(ifStmt *ast.If) bool {
	ifOK := false
	ifElseOK := false
	elseOK := false

	if ifStmt.IfStatements != nil {
		ifOK = a.analyzeReturnPaths(ifStmt.IfStatements)
	}

	if next := ifStmt.Next; next != nil {
		ifElseOK = a.analyzeIfReturnPaths(next)
	}

	if ifStmt.ElseStatements != nil {
		elseOK = a.analyzeReturnPaths(ifStmt.ElseStatements)
	} else if !ifElseOK {
		return false
	}

	// if + else
	if ifStmt.Next == nil {
		return ifOK && (elseOK || ifElseOK)
	}

	// if + else-if + else
	return ifOK && ifElseOK
}

// analyzeSelectReturnPaths select 的路径证明：每个标签与 other 都必须返回
func (a *Analyzer) analyzeSelectReturnPaths(selectStmt *ast.Select) bool {
	for _, selectCase := range selectStmt.Cases() {
		if !a.analyzeReturnPaths(selectCase.Statements) {
			return false
		}
	}

	other := selectStmt.Other()
	if other == nil {
		return false
	}
	return a.analyzeReturnPaths(other)
}
