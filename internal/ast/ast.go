// ast.go - 表达式节点
//
// 语法分析器产出、上下文分析器消费的表达式树。
// 每个节点携带源位置、推导类型 evalType 与可选的显式转换 castType；
// 链式调用通过 methodCall / previousExpression 双向连接。
// 所有节点由 TreeFactory 创建并持有，生存期覆盖整个编译过程。

package ast

import (
	"github.com/tangzhangming/obi/internal/linker"
	"github.com/tangzhangming/obi/internal/types"
)

// ExpressionKind 表达式种类
type ExpressionKind int

const (
	NilLitExpr ExpressionKind = iota
	BooleanLitExpr
	CharLitExpr
	IntLitExpr
	FloatLitExpr
	CharStrExpr
	StatAryExpr
	VarExpr
	MethodCallExpr
	CondExpr
	LambdaExpr

	// 二元运算
	AndExpr
	OrExpr
	EqlExpr
	NeqlExpr
	LesExpr
	GtrExpr
	LesEqlExpr
	GtrEqlExpr
	AddExpr
	SubExpr
	MulExpr
	DivExpr
	ModExpr
	ShlExpr
	ShrExpr
	BitAndExpr
	BitOrExpr
	BitXorExpr
)

// Expression 表达式节点公共接口
type Expression interface {
	ExpressionType() ExpressionKind
	FileName() string
	Line() int

	EvalType() *types.Type
	SetEvalType(t *types.Type, setBase bool)
	BaseType() *types.Type
	CastType() *types.Type
	SetCastType(t *types.Type, setBase bool)
	TypeOf() *types.Type
	SetTypeOf(t *types.Type)

	MethodCall() *MethodCall
	SetMethodCall(call *MethodCall)
	PreviousExpression() Expression
	SetPreviousExpression(expr Expression)

	SetToClass(klass *Class)
	ToClass() *Class
	SetToLibraryClass(klass *linker.LibraryClass)
	ToLibraryClass() *linker.LibraryClass
}

// baseExpression 表达式公共字段
type baseExpression struct {
	fileName string
	line     int

	evalType *types.Type
	baseType *types.Type
	castType *types.Type
	typeOf   *types.Type

	methodCall *MethodCall
	prevExpr   Expression

	toClass    *Class
	toLibClass *linker.LibraryClass
}

func (e *baseExpression) FileName() string {
	return e.fileName
}

func (e *baseExpression) Line() int {
	return e.line
}

func (e *baseExpression) EvalType() *types.Type {
	return e.evalType
}

// SetEvalType 设置推导类型；setBase 为真时同时记录根类型
func (e *baseExpression) SetEvalType(t *types.Type, setBase bool) {
	e.evalType = t
	if setBase || e.baseType == nil {
		e.baseType = t
	}
}

func (e *baseExpression) BaseType() *types.Type {
	return e.baseType
}

func (e *baseExpression) CastType() *types.Type {
	return e.castType
}

func (e *baseExpression) SetCastType(t *types.Type, setBase bool) {
	e.castType = t
	if setBase {
		e.baseType = t
	}
}

func (e *baseExpression) TypeOf() *types.Type {
	return e.typeOf
}

func (e *baseExpression) SetTypeOf(t *types.Type) {
	e.typeOf = t
}

func (e *baseExpression) MethodCall() *MethodCall {
	return e.methodCall
}

func (e *baseExpression) SetMethodCall(call *MethodCall) {
	e.methodCall = call
}

func (e *baseExpression) PreviousExpression() Expression {
	return e.prevExpr
}

func (e *baseExpression) SetPreviousExpression(expr Expression) {
	e.prevExpr = expr
}

func (e *baseExpression) SetToClass(klass *Class) {
	e.toClass = klass
}

func (e *baseExpression) ToClass() *Class {
	return e.toClass
}

func (e *baseExpression) SetToLibraryClass(klass *linker.LibraryClass) {
	e.toLibClass = klass
}

func (e *baseExpression) ToLibraryClass() *linker.LibraryClass {
	return e.toLibClass
}

// ============================================================================
// 字面量
// ============================================================================

// NilLiteral 空字面量
type NilLiteral struct {
	baseExpression
}

func (e *NilLiteral) ExpressionType() ExpressionKind { return NilLitExpr }

// BooleanLiteral 布尔字面量
type BooleanLiteral struct {
	baseExpression
	Value bool
}

func (e *BooleanLiteral) ExpressionType() ExpressionKind { return BooleanLitExpr }

// CharacterLiteral 字符字面量
type CharacterLiteral struct {
	baseExpression
	Value rune
}

func (e *CharacterLiteral) ExpressionType() ExpressionKind { return CharLitExpr }

// IntegerLiteral 整数字面量
type IntegerLiteral struct {
	baseExpression
	Value int64
}

func (e *IntegerLiteral) ExpressionType() ExpressionKind { return IntLitExpr }

// FloatLiteral 浮点字面量
type FloatLiteral struct {
	baseExpression
	Value float64
}

func (e *FloatLiteral) ExpressionType() ExpressionKind { return FloatLitExpr }

// ============================================================================
// 字符串
// ============================================================================

// CharacterStringSegment 字符串片段：纯文本或内插变量
type CharacterStringSegment struct {
	Text      string
	Entry     *SymbolEntry
	Method    *Method
	LibMethod *linker.LibraryMethod
}

// CharacterString 字符串表达式（可含内插片段）
type CharacterString struct {
	baseExpression
	Value    string
	segments []*CharacterStringSegment
}

func (e *CharacterString) ExpressionType() ExpressionKind { return CharStrExpr }

// AddTextSegment 追加文本片段
func (e *CharacterString) AddTextSegment(text string) {
	e.segments = append(e.segments, &CharacterStringSegment{Text: text})
}

// AddSegment 追加变量片段
func (e *CharacterString) AddSegment(entry *SymbolEntry) {
	e.segments = append(e.segments, &CharacterStringSegment{Entry: entry})
}

// AddMethodSegment 追加带 ToString 方法的变量片段
func (e *CharacterString) AddMethodSegment(entry *SymbolEntry, method *Method) {
	e.segments = append(e.segments, &CharacterStringSegment{Entry: entry, Method: method})
}

// AddLibraryMethodSegment 追加带库 ToString 方法的变量片段
func (e *CharacterString) AddLibraryMethodSegment(entry *SymbolEntry, method *linker.LibraryMethod) {
	e.segments = append(e.segments, &CharacterStringSegment{Entry: entry, LibMethod: method})
}

// Segments 返回全部片段
func (e *CharacterString) Segments() []*CharacterStringSegment {
	return e.segments
}

// ============================================================================
// 静态数组
// ============================================================================

// StaticArray 静态数组字面量
type StaticArray struct {
	baseExpression
	Elements *ExpressionList
}

func (e *StaticArray) ExpressionType() ExpressionKind { return StatAryExpr }

// ============================================================================
// 变量
// ============================================================================

// Variable 变量引用，解析后绑定唯一的符号项
type Variable struct {
	baseExpression
	name    string
	indices *ExpressionList
	entry   *SymbolEntry

	preStmt         *OperationAssignment
	postStmt        *OperationAssignment
	preStmtChecked  bool
	postStmtChecked bool
}

func (e *Variable) ExpressionType() ExpressionKind { return VarExpr }

// Name 返回变量名
func (e *Variable) Name() string {
	return e.name
}

// Indices 返回数组下标表达式，无下标返回 nil
func (e *Variable) Indices() *ExpressionList {
	return e.indices
}

// SetIndices 设置数组下标
func (e *Variable) SetIndices(indices *ExpressionList) {
	e.indices = indices
}

// Entry 返回绑定的符号项
func (e *Variable) Entry() *SymbolEntry {
	return e.entry
}

// SetEntry 绑定符号项
func (e *Variable) SetEntry(entry *SymbolEntry) {
	e.entry = entry
}

// SetTypes 同步设置 eval 与 base 类型
func (e *Variable) SetTypes(t *types.Type) {
	e.evalType = t
	e.baseType = t
}

// PreStatement 返回前缀自增/自减伴随语句
func (e *Variable) PreStatement() *OperationAssignment {
	return e.preStmt
}

// SetPreStatement 设置前缀伴随语句
func (e *Variable) SetPreStatement(stmt *OperationAssignment) {
	e.preStmt = stmt
}

// PostStatement 返回后缀自增/自减伴随语句
func (e *Variable) PostStatement() *OperationAssignment {
	return e.postStmt
}

// SetPostStatement 设置后缀伴随语句
func (e *Variable) SetPostStatement(stmt *OperationAssignment) {
	e.postStmt = stmt
}

// IsPreStatementChecked 前缀伴随语句是否已分析
func (e *Variable) IsPreStatementChecked() bool {
	return e.preStmtChecked
}

// PreStatementChecked 标记前缀伴随语句已分析
func (e *Variable) PreStatementChecked() {
	e.preStmtChecked = true
}

// IsPostStatementChecked 后缀伴随语句是否已分析
func (e *Variable) IsPostStatementChecked() bool {
	return e.postStmtChecked
}

// PostStatementChecked 标记后缀伴随语句已分析
func (e *Variable) PostStatementChecked() {
	e.postStmtChecked = true
}

// ============================================================================
// 二元运算
// ============================================================================

// CalculatedExpression 二元运算表达式
type CalculatedExpression struct {
	baseExpression
	kind  ExpressionKind
	left  Expression
	right Expression
}

func (e *CalculatedExpression) ExpressionType() ExpressionKind { return e.kind }

// Left 返回左操作数
func (e *CalculatedExpression) Left() Expression {
	return e.left
}

// SetLeft 设置左操作数
func (e *CalculatedExpression) SetLeft(expr Expression) {
	e.left = expr
}

// Right 返回右操作数
func (e *CalculatedExpression) Right() Expression {
	return e.right
}

// SetRight 设置右操作数
func (e *CalculatedExpression) SetRight(expr Expression) {
	e.right = expr
}

// IsCalculated 是否为二元运算种类
func IsCalculated(kind ExpressionKind) bool {
	return kind >= AndExpr && kind <= BitXorExpr
}

// ============================================================================
// 三元条件
// ============================================================================

// Cond 三元条件表达式
type Cond struct {
	baseExpression
	Expr     Expression
	IfExpr   Expression
	ElseExpr Expression
}

func (e *Cond) ExpressionType() ExpressionKind { return CondExpr }

// ============================================================================
// Lambda
// ============================================================================

// Lambda 匿名函数表达式，捕获按闭包复制
type Lambda struct {
	baseExpression
	name       string
	method     *Method
	lambdaType *types.Type
	methodCal  *MethodCall

	// 捕获映射：外层符号项 -> 闭包内副本
	closures map[*SymbolEntry]*SymbolEntry
	ordered  []*SymbolEntry
}

func (e *Lambda) ExpressionType() ExpressionKind { return LambdaExpr }

// Name 返回显式类型别名名（可为空）
func (e *Lambda) Name() string {
	return e.name
}

// Method 返回 lambda 生成的方法
func (e *Lambda) Method() *Method {
	return e.method
}

// LambdaType 返回显式声明的函数类型
func (e *Lambda) LambdaType() *types.Type {
	return e.lambdaType
}

// LambdaMethodCall 返回重写后的调用节点
func (e *Lambda) LambdaMethodCall() *MethodCall {
	return e.methodCal
}

// SetLambdaMethodCall 记录重写后的调用节点
func (e *Lambda) SetLambdaMethodCall(call *MethodCall) {
	e.methodCal = call
}

// HasClosure 外层符号项是否已捕获
func (e *Lambda) HasClosure(entry *SymbolEntry) bool {
	_, ok := e.closures[entry]
	return ok
}

// Closure 返回外层符号项的闭包副本
func (e *Lambda) Closure(entry *SymbolEntry) *SymbolEntry {
	return e.closures[entry]
}

// AddClosure 登记一次捕获
func (e *Lambda) AddClosure(copyEntry, captureEntry *SymbolEntry) {
	if e.closures == nil {
		e.closures = make(map[*SymbolEntry]*SymbolEntry)
	}
	e.closures[captureEntry] = copyEntry
	e.ordered = append(e.ordered, copyEntry)
}

// Closures 返回全部闭包副本（声明顺序）
func (e *Lambda) Closures() []*SymbolEntry {
	return e.ordered
}

// ============================================================================
// 方法调用
// ============================================================================

// CallKind 调用种类
type CallKind int

const (
	MethodCallKind CallKind = iota
	NewInstCall
	NewArrayCall
	ParentCall
	EnumCall
)

// MethodCall 方法/函数/枚举/构造调用
// 分析结束后 method / libraryMethod / enumItem / libraryEnumItem /
// functionalCall 恰有一个非空。
type MethodCall struct {
	baseExpression
	callType     CallKind
	variableName string
	methodName   string

	variable      *Variable
	entry         *SymbolEntry
	callingParams *ExpressionList

	method        *Method
	libMethod     *linker.LibraryMethod
	enumItem      *EnumItem
	enumName      string
	libEnumItem   *linker.LibraryEnumItem
	funcEntry     *SymbolEntry
	funcReturn    *types.Type
	isFuncDefn    bool
	isEnumCall    bool
	concreteTypes []*types.Type

	origClass    *Class
	origLibClass *linker.LibraryClass
}

func (e *MethodCall) ExpressionType() ExpressionKind { return MethodCallExpr }

// CallType 返回调用种类
func (e *MethodCall) CallType() CallKind {
	return e.callType
}

// VariableName 返回接收者/类名部分
func (e *MethodCall) VariableName() string {
	return e.variableName
}

// MethodName 返回方法名部分
func (e *MethodCall) MethodName() string {
	return e.methodName
}

// Variable 返回接收者变量节点
func (e *MethodCall) Variable() *Variable {
	return e.variable
}

// SetVariable 设置接收者变量节点
func (e *MethodCall) SetVariable(variable *Variable) {
	e.variable = variable
}

// Entry 返回接收者符号项
func (e *MethodCall) Entry() *SymbolEntry {
	return e.entry
}

// SetEntry 设置接收者符号项
func (e *MethodCall) SetEntry(entry *SymbolEntry) {
	e.entry = entry
}

// CallingParameters 返回实参列表
func (e *MethodCall) CallingParameters() *ExpressionList {
	return e.callingParams
}

// SetCallingParameters 替换实参列表（装箱重写后安装）
func (e *MethodCall) SetCallingParameters(params *ExpressionList) {
	e.callingParams = params
}

// Method 返回绑定的程序方法
func (e *MethodCall) Method() *Method {
	return e.method
}

// SetMethod 绑定程序方法并设置返回类型
func (e *MethodCall) SetMethod(method *Method) {
	e.method = method
	if method != nil {
		e.SetEvalType(method.Return(), false)
	}
}

// SetMethodOnly 绑定程序方法但不改写类型（函数引用）
func (e *MethodCall) SetMethodOnly(method *Method) {
	e.method = method
}

// LibraryMethod 返回绑定的库方法
func (e *MethodCall) LibraryMethod() *linker.LibraryMethod {
	return e.libMethod
}

// SetLibraryMethod 绑定库方法并设置返回类型
func (e *MethodCall) SetLibraryMethod(method *linker.LibraryMethod) {
	e.libMethod = method
	if method != nil {
		e.SetEvalType(method.Return(), false)
	}
}

// SetLibraryMethodOnly 绑定库方法但不改写类型（函数引用）
func (e *MethodCall) SetLibraryMethodOnly(method *linker.LibraryMethod) {
	e.libMethod = method
}

// EnumItem 返回绑定的程序枚举项
func (e *MethodCall) EnumItem() *EnumItem {
	return e.enumItem
}

// SetEnumItem 绑定程序枚举项
func (e *MethodCall) SetEnumItem(item *EnumItem, enumName string) {
	e.enumItem = item
	e.enumName = enumName
}

// EnumName 返回绑定的枚举名
func (e *MethodCall) EnumName() string {
	return e.enumName
}

// LibraryEnumItem 返回绑定的库枚举项
func (e *MethodCall) LibraryEnumItem() *linker.LibraryEnumItem {
	return e.libEnumItem
}

// SetLibraryEnumItem 绑定库枚举项
func (e *MethodCall) SetLibraryEnumItem(item *linker.LibraryEnumItem, enumName string) {
	e.libEnumItem = item
	e.enumName = enumName
}

// FunctionalCall 返回动态函数变量绑定
func (e *MethodCall) FunctionalCall() *SymbolEntry {
	return e.funcEntry
}

// SetFunctionalCall 绑定动态函数变量
func (e *MethodCall) SetFunctionalCall(entry *SymbolEntry) {
	e.funcEntry = entry
}

// FunctionalReturn 返回函数引用要求的返回类型
func (e *MethodCall) FunctionalReturn() *types.Type {
	return e.funcReturn
}

// SetFunctionalReturn 设置函数引用要求的返回类型
func (e *MethodCall) SetFunctionalReturn(t *types.Type) {
	e.funcReturn = t
	e.isFuncDefn = true
}

// IsFunctionDefinition 是否为函数引用取用而非调用
func (e *MethodCall) IsFunctionDefinition() bool {
	return e.isFuncDefn
}

// IsEnumCall 接收者是否为枚举值
func (e *MethodCall) IsEnumCall() bool {
	return e.isEnumCall
}

// SetEnumCall 标记接收者为枚举值
func (e *MethodCall) SetEnumCall(isEnumCall bool) {
	e.isEnumCall = isEnumCall
}

// ConcreteTypes 返回泛型实参列表
func (e *MethodCall) ConcreteTypes() []*types.Type {
	return e.concreteTypes
}

// SetConcreteTypes 设置泛型实参列表
func (e *MethodCall) SetConcreteTypes(concreteTypes []*types.Type) {
	e.concreteTypes = concreteTypes
}

// HasConcreteTypes 是否带泛型实参
func (e *MethodCall) HasConcreteTypes() bool {
	return len(e.concreteTypes) > 0
}

// OriginalClass 返回发起调用的程序类
func (e *MethodCall) OriginalClass() *Class {
	return e.origClass
}

// SetOriginalClass 记录发起调用的程序类
func (e *MethodCall) SetOriginalClass(klass *Class) {
	e.origClass = klass
}

// OriginalLibraryClass 返回发起调用的库类
func (e *MethodCall) OriginalLibraryClass() *linker.LibraryClass {
	return e.origLibClass
}

// SetOriginalLibraryClass 记录发起调用的库类
func (e *MethodCall) SetOriginalLibraryClass(klass *linker.LibraryClass) {
	e.origLibClass = klass
}

// SetTypes 同步设置 eval 与 base 类型
func (e *MethodCall) SetTypes(t *types.Type) {
	e.evalType = t
	e.baseType = t
}

// ============================================================================
// 表达式列表
// ============================================================================

// ExpressionList 有序表达式集合
type ExpressionList struct {
	expressions []Expression
}

// Expressions 返回全部表达式
func (l *ExpressionList) Expressions() []Expression {
	return l.expressions
}

// SetExpressions 整体替换（装箱重写后安装）
func (l *ExpressionList) SetExpressions(expressions []Expression) {
	l.expressions = expressions
}

// AddExpression 追加表达式
func (l *ExpressionList) AddExpression(expr Expression) {
	l.expressions = append(l.expressions, expr)
}

// Size 返回元素个数
func (l *ExpressionList) Size() int {
	return len(l.expressions)
}
