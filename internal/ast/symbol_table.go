// symbol_table.go - 作用域符号表
//
// 每个符号项的全限定名形如 "外层作用域:短名"。
// 类级与方法级符号表由 SymbolTableManager 持有并在分析各阶段间保留；
// 块级作用域在语句遍历时通过 NewScope/PreviousScope 重新进入。

package ast

import (
	"github.com/tangzhangming/obi/internal/types"
)

// SymbolEntry 符号项
type SymbolEntry struct {
	fileName string
	line     int

	name     string // 全限定名 scope:short
	entryType *types.Type
	isLocal  bool
	isStatic bool

	// 绑定到此符号项的变量节点（回写用）
	variables []*Variable
}

// NewSymbolEntry 创建符号项
func NewSymbolEntry(fileName string, line int, name string, t *types.Type,
	isStatic, isLocal bool) *SymbolEntry {
	return &SymbolEntry{
		fileName:  fileName,
		line:      line,
		name:      name,
		entryType: t,
		isStatic:  isStatic,
		isLocal:   isLocal,
	}
}

// FileName 返回源文件名
func (e *SymbolEntry) FileName() string {
	return e.fileName
}

// Line 返回行号
func (e *SymbolEntry) Line() int {
	return e.line
}

// Name 返回全限定名
func (e *SymbolEntry) Name() string {
	return e.name
}

// Type 返回符号类型
func (e *SymbolEntry) Type() *types.Type {
	return e.entryType
}

// SetType 设置符号类型（Var 推导、别名展开时回写）
func (e *SymbolEntry) SetType(t *types.Type) {
	e.entryType = t
}

// IsLocal 是否为方法局部
func (e *SymbolEntry) IsLocal() bool {
	return e.isLocal
}

// IsStatic 是否为静态
func (e *SymbolEntry) IsStatic() bool {
	return e.isStatic
}

// AddVariable 登记绑定变量
func (e *SymbolEntry) AddVariable(variable *Variable) {
	e.variables = append(e.variables, variable)
}

// Variables 返回全部绑定变量
func (e *SymbolEntry) Variables() []*Variable {
	return e.variables
}

// ============================================================================
// 符号表
// ============================================================================

// scope 单层作用域
type scope struct {
	entries map[string]*SymbolEntry
	order   []*SymbolEntry
}

func newScope() *scope {
	return &scope{entries: make(map[string]*SymbolEntry)}
}

// SymbolTable 作用域栈
type SymbolTable struct {
	scopes []*scope
	// 进入过的全部作用域（声明顺序），作用域关闭后仍可整表枚举
	all []*scope
}

// NewSymbolTable 创建符号表并打开根作用域
func NewSymbolTable() *SymbolTable {
	table := &SymbolTable{}
	table.NewScope()
	return table
}

// NewScope 打开新作用域
func (t *SymbolTable) NewScope() {
	s := newScope()
	t.scopes = append(t.scopes, s)
	t.all = append(t.all, s)
}

// PreviousScope 关闭当前作用域
func (t *SymbolTable) PreviousScope() {
	if len(t.scopes) > 1 {
		t.scopes = t.scopes[:len(t.scopes)-1]
	}
}

// Depth 返回当前作用域深度
func (t *SymbolTable) Depth() int {
	return len(t.scopes)
}

// AddEntry 登记符号项；currentScope 为真时加入最内层，否则加入根层
// 同名冲突返回 false
func (t *SymbolTable) AddEntry(entry *SymbolEntry, currentScope bool) bool {
	var s *scope
	if currentScope {
		s = t.scopes[len(t.scopes)-1]
	} else {
		s = t.scopes[0]
	}
	if _, ok := s.entries[entry.name]; ok {
		return false
	}
	s.entries[entry.name] = entry
	s.order = append(s.order, entry)
	return true
}

// GetEntry 从最内层向外查找符号项
func (t *SymbolTable) GetEntry(name string) *SymbolEntry {
	for i := len(t.scopes) - 1; i >= 0; i-- {
		if entry, ok := t.scopes[i].entries[name]; ok {
			return entry
		}
	}
	return nil
}

// Entries 返回进入过的全部符号项（声明顺序）
func (t *SymbolTable) Entries() []*SymbolEntry {
	var entries []*SymbolEntry
	for _, s := range t.all {
		entries = append(entries, s.order...)
	}
	return entries
}

// ============================================================================
// 符号表管理器
// ============================================================================

// SymbolTableManager 按作用域名持有类级与方法级符号表
type SymbolTableManager struct {
	tables map[string]*SymbolTable

	// 语法期作用域栈
	parseScopes []*SymbolTable
}

// NewSymbolTableManager 创建管理器
func NewSymbolTableManager() *SymbolTableManager {
	return &SymbolTableManager{
		tables: make(map[string]*SymbolTable),
	}
}

// GetSymbolTable 按作用域名取表，不存在时创建
func (m *SymbolTableManager) GetSymbolTable(scopeName string) *SymbolTable {
	if table, ok := m.tables[scopeName]; ok {
		return table
	}
	table := NewSymbolTable()
	m.tables[scopeName] = table
	return table
}

// NewParseScope 打开语法期作用域（默认参数蹦床生成用）
func (m *SymbolTableManager) NewParseScope() {
	m.parseScopes = append(m.parseScopes, NewSymbolTable())
}

// CurrentParseScope 返回当前语法期作用域
func (m *SymbolTableManager) CurrentParseScope() *SymbolTable {
	if len(m.parseScopes) == 0 {
		m.NewParseScope()
	}
	return m.parseScopes[len(m.parseScopes)-1]
}

// PreviousParseScope 关闭当前语法期作用域并按作用域名归档
// 已有同名表时保留原表（蹦床方法复用原方法的作用域）
func (m *SymbolTableManager) PreviousParseScope(scopeName string) {
	if len(m.parseScopes) == 0 {
		return
	}
	table := m.parseScopes[len(m.parseScopes)-1]
	m.parseScopes = m.parseScopes[:len(m.parseScopes)-1]
	if _, ok := m.tables[scopeName]; !ok {
		m.tables[scopeName] = table
	}
}
