// class.go - 程序符号空间
//
// bundle / 类 / 方法 / 枚举 / 别名。类的父链、子链与接口链在
// 分析阶段由绑定器补全；方法按编码名索引（AssociateMethods）。

package ast

import (
	"strings"

	"github.com/tangzhangming/obi/internal/linker"
	"github.com/tangzhangming/obi/internal/types"
)

// MethodKind 方法种类
type MethodKind int

const (
	PublicMethod MethodKind = iota
	PrivateMethod
	NewPublicMethod  // 公有构造
	NewPrivateMethod // 私有构造
)

// ============================================================================
// 程序
// ============================================================================

// Program 一次编译的全部输入
type Program struct {
	fileName string
	bundles  []*Bundle
	uses     []string

	startClass  *Class
	startMethod *Method
}

// NewProgram 创建程序
func NewProgram(fileName string) *Program {
	return &Program{fileName: fileName}
}

// FileName 返回主源文件名
func (p *Program) FileName() string {
	return p.fileName
}

// Bundles 返回全部 bundle
func (p *Program) Bundles() []*Bundle {
	return p.bundles
}

// AddBundle 追加 bundle
func (p *Program) AddBundle(bundle *Bundle) {
	bundle.program = p
	p.bundles = append(p.bundles, bundle)
}

// Uses 返回 use 子句列表
func (p *Program) Uses() []string {
	return p.uses
}

// UsesFor 返回指定源文件可见的 use 前缀
// 当前实现所有文件共享同一份 use 列表
func (p *Program) UsesFor(fileName string) []string {
	return p.uses
}

// AddUse 登记一条 use 子句
func (p *Program) AddUse(name string) {
	p.uses = append(p.uses, name)
}

// HasBundleName 程序内是否定义了指定 bundle
func (p *Program) HasBundleName(name string) bool {
	for _, bundle := range p.bundles {
		if bundle.name == name {
			return true
		}
	}
	return false
}

// GetClass 按全限定名查类
func (p *Program) GetClass(name string) *Class {
	for _, bundle := range p.bundles {
		if klass := bundle.GetClass(name); klass != nil {
			return klass
		}
	}
	return nil
}

// GetClassByID 按分析期 id 查类
func (p *Program) GetClassByID(id int) *Class {
	for _, bundle := range p.bundles {
		for _, klass := range bundle.classes {
			if klass.id == id {
				return klass
			}
		}
	}
	return nil
}

// GetEnum 按全限定名查枚举
func (p *Program) GetEnum(name string) *Enum {
	for _, bundle := range p.bundles {
		if eenum := bundle.GetEnum(name); eenum != nil {
			return eenum
		}
	}
	return nil
}

// GetAlias 按名查别名
func (p *Program) GetAlias(name string) *Alias {
	for _, bundle := range p.bundles {
		if alias := bundle.GetAlias(name); alias != nil {
			return alias
		}
	}
	return nil
}

// SetStart 记录程序入口
func (p *Program) SetStart(klass *Class, method *Method) {
	p.startClass = klass
	p.startMethod = method
}

// StartClass 返回入口类
func (p *Program) StartClass() *Class {
	return p.startClass
}

// StartMethod 返回入口方法
func (p *Program) StartMethod() *Method {
	return p.startMethod
}

// ============================================================================
// Bundle
// ============================================================================

// Bundle 命名空间：聚合类、枚举与别名
type Bundle struct {
	name    string
	program *Program

	classes   []*Class
	classMap  map[string]*Class
	enums     []*Enum
	enumMap   map[string]*Enum
	aliases   []*Alias
	aliasMap  map[string]*Alias
	symbolMgr *SymbolTableManager
}

// NewBundle 创建 bundle
func NewBundle(name string) *Bundle {
	return &Bundle{
		name:      name,
		classMap:  make(map[string]*Class),
		enumMap:   make(map[string]*Enum),
		aliasMap:  make(map[string]*Alias),
		symbolMgr: NewSymbolTableManager(),
	}
}

// Name 返回 bundle 名
func (b *Bundle) Name() string {
	return b.name
}

// Classes 返回全部类（词法顺序）
func (b *Bundle) Classes() []*Class {
	return b.classes
}

// AddClass 登记类
func (b *Bundle) AddClass(klass *Class) {
	klass.bundleName = b.name
	b.classes = append(b.classes, klass)
	b.classMap[klass.name] = klass
}

// GetClass 按名查类
func (b *Bundle) GetClass(name string) *Class {
	return b.classMap[name]
}

// Enums 返回全部枚举
func (b *Bundle) Enums() []*Enum {
	return b.enums
}

// AddEnum 登记枚举
func (b *Bundle) AddEnum(eenum *Enum) {
	b.enums = append(b.enums, eenum)
	b.enumMap[eenum.name] = eenum
}

// GetEnum 按名查枚举
func (b *Bundle) GetEnum(name string) *Enum {
	return b.enumMap[name]
}

// Aliases 返回全部别名
func (b *Bundle) Aliases() []*Alias {
	return b.aliases
}

// AddAlias 登记别名
func (b *Bundle) AddAlias(alias *Alias) {
	b.aliases = append(b.aliases, alias)
	b.aliasMap[alias.name] = alias
}

// GetAlias 按名查别名
func (b *Bundle) GetAlias(name string) *Alias {
	return b.aliasMap[name]
}

// SymbolTableManager 返回符号表管理器
func (b *Bundle) SymbolTableManager() *SymbolTableManager {
	return b.symbolMgr
}

// ============================================================================
// 类
// ============================================================================

// Class 类定义
// 解析完成后 parent 与 libParent 恰有一个非空（System.Base 除外）。
type Class struct {
	baseStatement
	id         int
	name       string
	bundleName string
	parentName string

	parent        *Class
	libParent     *linker.LibraryClass
	interfaceNames []string
	interfaces    []*Class
	libInterfaces []*linker.LibraryClass
	children      []*Class

	methods   []*Method
	methodMap map[string]*Method

	// 字段声明
	statements []Statement

	// 泛型形参（每个形参建模为占位类，可带 backing 接口）
	generics         []*Class
	genericInterface *types.Type

	isInterface bool
	isVirtual   bool
	isPublic    bool
	called      bool
	anonymous   bool

	symbolTable *SymbolTable
}

// NewClass 创建类
func NewClass(fileName string, line int, name, parentName string,
	isInterface, isVirtual, isPublic bool) *Class {
	return &Class{
		baseStatement: baseStatement{fileName: fileName, line: line},
		name:          name,
		parentName:    parentName,
		isInterface:   isInterface,
		isVirtual:     isVirtual || isInterface,
		isPublic:      isPublic,
		methodMap:     make(map[string]*Method),
	}
}

// ID 返回分析期 id
func (c *Class) ID() int {
	return c.id
}

// SetID 设置分析期 id
func (c *Class) SetID(id int) {
	c.id = id
}

// Name 返回全限定类名
func (c *Class) Name() string {
	return c.name
}

// ShortName 返回不带 bundle 前缀的短名
func (c *Class) ShortName() string {
	if idx := strings.LastIndex(c.name, "."); idx >= 0 {
		return c.name[idx+1:]
	}
	return c.name
}

// BundleName 返回所属 bundle 名
func (c *Class) BundleName() string {
	return c.bundleName
}

// ParentName 返回父类名
func (c *Class) ParentName() string {
	return c.parentName
}

// SetParentName 设置父类名
func (c *Class) SetParentName(name string) {
	c.parentName = name
}

// Parent 返回程序父类
func (c *Class) Parent() *Class {
	return c.parent
}

// SetParent 绑定程序父类
func (c *Class) SetParent(parent *Class) {
	c.parent = parent
}

// LibraryParent 返回库父类
func (c *Class) LibraryParent() *linker.LibraryClass {
	return c.libParent
}

// SetLibraryParent 绑定库父类
func (c *Class) SetLibraryParent(parent *linker.LibraryClass) {
	c.libParent = parent
}

// InterfaceNames 返回接口名列表
func (c *Class) InterfaceNames() []string {
	return c.interfaceNames
}

// SetInterfaceNames 设置接口名列表
func (c *Class) SetInterfaceNames(names []string) {
	c.interfaceNames = names
}

// Interfaces 返回已解析的程序接口
func (c *Class) Interfaces() []*Class {
	return c.interfaces
}

// SetInterfaces 保存已解析的程序接口
func (c *Class) SetInterfaces(interfaces []*Class) {
	c.interfaces = interfaces
}

// LibraryInterfaces 返回已解析的库接口
func (c *Class) LibraryInterfaces() []*linker.LibraryClass {
	return c.libInterfaces
}

// SetLibraryInterfaces 保存已解析的库接口
func (c *Class) SetLibraryInterfaces(interfaces []*linker.LibraryClass) {
	c.libInterfaces = interfaces
}

// Children 返回子类列表
func (c *Class) Children() []*Class {
	return c.children
}

// AddChild 登记子类
func (c *Class) AddChild(child *Class) {
	c.children = append(c.children, child)
}

// Methods 返回全部方法（声明顺序）
func (c *Class) Methods() []*Method {
	return c.methods
}

// AddMethod 追加方法；编码名冲突返回 false
func (c *Class) AddMethod(method *Method) bool {
	if method.encodedName != "" {
		if _, ok := c.methodMap[method.encodedName]; ok {
			return false
		}
		c.methodMap[method.encodedName] = method
	}
	method.class = c
	c.methods = append(c.methods, method)
	return true
}

// AssociateMethods 用重编码后的签名重建方法索引
func (c *Class) AssociateMethods() {
	c.methodMap = make(map[string]*Method, len(c.methods))
	for _, method := range c.methods {
		c.methodMap[method.encodedName] = method
	}
}

// AssociateMethod 登记单个方法（lambda 构建后）
func (c *Class) AssociateMethod(method *Method) {
	c.methodMap[method.encodedName] = method
}

// GetMethod 按编码名查方法
func (c *Class) GetMethod(encodedName string) *Method {
	return c.methodMap[encodedName]
}

// GetAllUnqualifiedMethods 返回短名匹配的全部重载
func (c *Class) GetAllUnqualifiedMethods(shortName string) []*Method {
	matches := make([]*Method, 0, 4)
	for _, method := range c.methods {
		if method.shortName == shortName {
			matches = append(matches, method)
		}
	}
	return matches
}

// Statements 返回字段声明列表
func (c *Class) Statements() []Statement {
	return c.statements
}

// AddStatement 追加字段声明
func (c *Class) AddStatement(stmt Statement) {
	c.statements = append(c.statements, stmt)
}

// GenericClasses 返回泛型形参列表
func (c *Class) GenericClasses() []*Class {
	return c.generics
}

// SetGenericClasses 设置泛型形参列表
func (c *Class) SetGenericClasses(generics []*Class) {
	c.generics = generics
}

// HasGenerics 是否为泛型类
func (c *Class) HasGenerics() bool {
	return len(c.generics) > 0
}

// GetGenericClass 按名查泛型形参
func (c *Class) GetGenericClass(name string) *Class {
	for _, generic := range c.generics {
		if generic.name == name {
			return generic
		}
	}
	return nil
}

// GenericIndex 返回泛型形参名的下标，未找到返回 -1
func (c *Class) GenericIndex(name string) int {
	for i, generic := range c.generics {
		if generic.name == name {
			return i
		}
	}
	return -1
}

// HasGenericInterface 形参是否带 backing 接口
func (c *Class) HasGenericInterface() bool {
	return c.genericInterface != nil
}

// GenericInterface 返回 backing 接口类型
func (c *Class) GenericInterface() *types.Type {
	return c.genericInterface
}

// SetGenericInterface 设置 backing 接口类型
func (c *Class) SetGenericInterface(inf *types.Type) {
	c.genericInterface = inf
}

// IsInterface 是否为接口
func (c *Class) IsInterface() bool {
	return c.isInterface
}

// IsVirtual 是否为虚类
func (c *Class) IsVirtual() bool {
	return c.isVirtual
}

// IsPublic 是否跨 bundle 可见
func (c *Class) IsPublic() bool {
	return c.isPublic
}

// IsCalled 是否被引用过
func (c *Class) IsCalled() bool {
	return c.called
}

// SetCalled 标记被引用
func (c *Class) SetCalled(called bool) {
	c.called = called
}

// AnonymousCall 是否为匿名类
func (c *Class) AnonymousCall() bool {
	return c.anonymous
}

// SymbolTable 返回类级符号表
func (c *Class) SymbolTable() *SymbolTable {
	return c.symbolTable
}

// SetSymbolTable 绑定类级符号表
func (c *Class) SetSymbolTable(table *SymbolTable) {
	c.symbolTable = table
}

// ============================================================================
// 方法
// ============================================================================

// Method 方法/函数定义
type Method struct {
	baseStatement
	id          int
	name        string // 作用域名 Class:Short
	parsedName  string
	encodedName string
	shortName   string
	class       *Class

	returnType    *types.Type
	encodedReturn string
	declarations  *DeclarationList
	statements    *StatementList

	methodType MethodKind
	isStatic   bool
	isVirtual  bool
	isNative   bool
	isLambda   bool

	// 默认参数蹦床指回原始方法
	original *Method
	leaving  *Leaving
	andOr    bool

	symbolTable *SymbolTable
}

// NewMethod 创建方法
func NewMethod(fileName string, line int, name string, methodType MethodKind,
	isStatic, isNative bool) *Method {
	shortName := name
	if idx := strings.LastIndex(name, ":"); idx >= 0 {
		shortName = name[idx+1:]
	}
	return &Method{
		baseStatement: baseStatement{fileName: fileName, line: line},
		name:          name,
		parsedName:    name,
		shortName:     shortName,
		methodType:    methodType,
		isStatic:      isStatic,
		isNative:      isNative,
		declarations:  &DeclarationList{},
		statements:    &StatementList{},
	}
}

// ID 返回方法 id
func (m *Method) ID() int {
	return m.id
}

// SetID 分配方法 id
func (m *Method) SetID(id int) {
	m.id = id
}

// Name 返回作用域名
func (m *Method) Name() string {
	return m.name
}

// ParsedName 返回语法期名字
func (m *Method) ParsedName() string {
	return m.parsedName
}

// ShortName 返回短名
func (m *Method) ShortName() string {
	return m.shortName
}

// EncodedName 返回编码名
func (m *Method) EncodedName() string {
	return m.encodedName
}

// SetEncodedName 设置编码名
func (m *Method) SetEncodedName(encodedName string) {
	m.encodedName = encodedName
}

// UserName 返回用户可读名（诊断输出用）
func (m *Method) UserName() string {
	return types.FormatClassName(m.name) + "(..)"
}

// Class 返回所属类
func (m *Method) Class() *Class {
	return m.class
}

// Return 返回返回类型
func (m *Method) Return() *types.Type {
	return m.returnType
}

// SetReturn 设置返回类型
func (m *Method) SetReturn(t *types.Type) {
	m.returnType = t
}

// EncodedReturn 返回返回类型编码
func (m *Method) EncodedReturn() string {
	return m.encodedReturn
}

// SetEncodedReturn 设置返回类型编码
func (m *Method) SetEncodedReturn(encoded string) {
	m.encodedReturn = encoded
}

// Declarations 返回参数声明列表
func (m *Method) Declarations() *DeclarationList {
	return m.declarations
}

// SetDeclarations 设置参数声明列表
func (m *Method) SetDeclarations(declarations *DeclarationList) {
	m.declarations = declarations
}

// Statements 返回方法体
func (m *Method) Statements() *StatementList {
	return m.statements
}

// SetStatements 设置方法体
func (m *Method) SetStatements(statements *StatementList) {
	m.statements = statements
}

// MethodType 返回方法种类
func (m *Method) MethodType() MethodKind {
	return m.methodType
}

// IsStatic 是否为静态函数
func (m *Method) IsStatic() bool {
	return m.isStatic
}

// IsVirtual 是否为虚方法
func (m *Method) IsVirtual() bool {
	return m.isVirtual
}

// SetVirtual 标记为虚方法
func (m *Method) SetVirtual(isVirtual bool) {
	m.isVirtual = isVirtual
}

// IsNative 是否为本机方法
func (m *Method) IsNative() bool {
	return m.isNative
}

// IsLambda 是否为 lambda 生成方法
func (m *Method) IsLambda() bool {
	return m.isLambda
}

// SetLambda 标记为 lambda 生成方法
func (m *Method) SetLambda(isLambda bool) {
	m.isLambda = isLambda
}

// Original 返回默认参数蹦床的原始方法
func (m *Method) Original() *Method {
	return m.original
}

// SetOriginal 指回原始方法
func (m *Method) SetOriginal(original *Method) {
	m.original = original
}

// IsAlt 是否为默认参数蹦床
func (m *Method) IsAlt() bool {
	return m.original != nil
}

// Leaving 返回 leaving 块
func (m *Method) Leaving() *Leaving {
	return m.leaving
}

// SetLeaving 记录 leaving 块
func (m *Method) SetLeaving(leaving *Leaving) {
	m.leaving = leaving
}

// HasAndOr 方法体是否含短路运算或 select
func (m *Method) HasAndOr() bool {
	return m.andOr
}

// SetAndOr 标记短路运算
func (m *Method) SetAndOr(andOr bool) {
	m.andOr = andOr
}

// SymbolTable 返回方法级符号表
func (m *Method) SymbolTable() *SymbolTable {
	return m.symbolTable
}

// SetSymbolTable 绑定方法级符号表
func (m *Method) SetSymbolTable(table *SymbolTable) {
	m.symbolTable = table
}

// ============================================================================
// 枚举与别名
// ============================================================================

// EnumItem 枚举项
type EnumItem struct {
	name string
	id   int
}

// NewEnumItem 创建枚举项
func NewEnumItem(name string, id int) *EnumItem {
	return &EnumItem{name: name, id: id}
}

// Name 返回项名
func (i *EnumItem) Name() string {
	return i.name
}

// ID 返回项值
func (i *EnumItem) ID() int {
	return i.id
}

// Enum 枚举：项名到整数 id 的有序映射
type Enum struct {
	baseStatement
	name  string
	items map[string]*EnumItem
	order []*EnumItem
}

// NewEnum 创建枚举
func NewEnum(fileName string, line int, name string) *Enum {
	return &Enum{
		baseStatement: baseStatement{fileName: fileName, line: line},
		name:          name,
		items:         make(map[string]*EnumItem),
	}
}

// Name 返回枚举名
func (e *Enum) Name() string {
	return e.name
}

// AddItem 追加枚举项
func (e *Enum) AddItem(item *EnumItem) {
	e.items[item.name] = item
	e.order = append(e.order, item)
}

// GetItem 按名查枚举项
func (e *Enum) GetItem(name string) *EnumItem {
	return e.items[name]
}

// Items 返回全部枚举项（声明顺序）
func (e *Enum) Items() []*EnumItem {
	return e.order
}

// Alias 别名：按类型名后缀展开为具体类型；不允许嵌套
type Alias struct {
	baseStatement
	name        string
	encodedName string
	tyMap       map[string]*types.Type
}

// NewAlias 创建别名
func NewAlias(fileName string, line int, name string) *Alias {
	return &Alias{
		baseStatement: baseStatement{fileName: fileName, line: line},
		name:          name,
		tyMap:         make(map[string]*types.Type),
	}
}

// Name 返回别名名
func (a *Alias) Name() string {
	return a.name
}

// EncodedName 返回编码名
func (a *Alias) EncodedName() string {
	return a.encodedName
}

// SetEncodedName 设置编码名
func (a *Alias) SetEncodedName(encoded string) {
	a.encodedName = encoded
}

// AddType 注册一个展开
func (a *Alias) AddType(suffix string, t *types.Type) {
	a.tyMap[suffix] = t
}

// GetType 按后缀取展开
func (a *Alias) GetType(suffix string) *types.Type {
	return a.tyMap[suffix]
}

// Types 返回全部展开
func (a *Alias) Types() map[string]*types.Type {
	return a.tyMap
}

// MethodCall 同时作为语句使用
func (e *MethodCall) StatementType() StatementKind { return MethodCallStmt }
