// linker.go - 库符号索引
//
// 维护已链接共享库的类 / 枚举 / 别名索引，按 bundle 名组织。
// 查找顺序：全限定名优先，然后依次尝试每个 'use' 前缀。
// 磁盘格式的解码不在此范围内：库以已构建好的索引注入
// （系统 bundle 在 NewLinker 中注册，外部库通过 AddBundle 注册）。

package linker

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/tangzhangming/obi/internal/types"
)

// MethodType 方法可见性与种类
type MethodType int

const (
	PublicMethod MethodType = iota
	PrivateMethod
	NewPublicMethod  // 公有构造
	NewPrivateMethod // 私有构造
)

// ============================================================================
// 库类
// ============================================================================

// LibraryClass 库中的类定义
type LibraryClass struct {
	name           string
	bundleName     string
	parentName     string
	interfaceNames []string
	isInterface    bool
	isVirtual      bool
	isPublic       bool
	called         bool

	methods map[string]*LibraryMethod

	// 泛型形参（每个形参本身是一个占位库类）
	generics         []*LibraryClass
	genericInterface *types.Type

	// 程序类的反向子链接（*ast.Class，链接器不依赖 ast 包）
	children []any

	// 库内子类
	libChildren []*LibraryClass
}

// NewLibraryClass 创建库类
func NewLibraryClass(name, bundleName, parentName string, isInterface, isVirtual, isPublic bool) *LibraryClass {
	return &LibraryClass{
		name:           name,
		bundleName:     bundleName,
		parentName:     parentName,
		isInterface:    isInterface,
		isVirtual:      isVirtual,
		isPublic:       isPublic,
		methods:        make(map[string]*LibraryMethod),
		interfaceNames: nil,
	}
}

// Name 返回全限定类名
func (c *LibraryClass) Name() string {
	return c.name
}

// BundleName 返回所属 bundle 名
func (c *LibraryClass) BundleName() string {
	return c.bundleName
}

// ParentName 返回父类名
func (c *LibraryClass) ParentName() string {
	return c.parentName
}

// InterfaceNames 返回实现的接口名列表
func (c *LibraryClass) InterfaceNames() []string {
	return c.interfaceNames
}

// SetInterfaceNames 设置接口名列表
func (c *LibraryClass) SetInterfaceNames(names []string) {
	c.interfaceNames = names
}

// IsInterface 是否为接口
func (c *LibraryClass) IsInterface() bool {
	return c.isInterface
}

// IsVirtual 是否为虚类
func (c *LibraryClass) IsVirtual() bool {
	return c.isVirtual
}

// IsPublic 是否跨 bundle 可见
func (c *LibraryClass) IsPublic() bool {
	return c.isPublic
}

// IsCalled 是否被调用过（死代码剔除用）
func (c *LibraryClass) IsCalled() bool {
	return c.called
}

// SetCalled 标记被调用
func (c *LibraryClass) SetCalled(called bool) {
	c.called = called
}

// AddMethod 按编码名注册方法
func (c *LibraryClass) AddMethod(method *LibraryMethod) {
	method.libClass = c
	c.methods[method.name] = method
}

// GetMethod 按编码名查找方法
func (c *LibraryClass) GetMethod(encodedName string) *LibraryMethod {
	return c.methods[encodedName]
}

// Methods 返回全部方法（编码名 -> 方法）
func (c *LibraryClass) Methods() map[string]*LibraryMethod {
	return c.methods
}

// UnqualifiedMethods 返回短名匹配的全部重载
func (c *LibraryClass) UnqualifiedMethods(shortName string) []*LibraryMethod {
	matches := make([]*LibraryMethod, 0, 4)
	for _, method := range c.methods {
		if method.shortName == shortName {
			matches = append(matches, method)
		}
	}
	return matches
}

// GenericClasses 返回泛型形参列表
func (c *LibraryClass) GenericClasses() []*LibraryClass {
	return c.generics
}

// SetGenericClasses 设置泛型形参列表
func (c *LibraryClass) SetGenericClasses(generics []*LibraryClass) {
	c.generics = generics
}

// HasGenerics 是否为泛型类
func (c *LibraryClass) HasGenerics() bool {
	return len(c.generics) > 0
}

// GenericIndex 返回泛型形参名的下标，未找到返回 -1
func (c *LibraryClass) GenericIndex(name string) int {
	for i, generic := range c.generics {
		if generic.name == name {
			return i
		}
	}
	return -1
}

// HasGenericInterface 形参是否带 backing 接口
func (c *LibraryClass) HasGenericInterface() bool {
	return c.genericInterface != nil
}

// GenericInterface 返回 backing 接口类型
func (c *LibraryClass) GenericInterface() *types.Type {
	return c.genericInterface
}

// SetGenericInterface 设置 backing 接口类型
func (c *LibraryClass) SetGenericInterface(inf *types.Type) {
	c.genericInterface = inf
}

// AddChild 登记程序侧子类（*ast.Class）
func (c *LibraryClass) AddChild(child any) {
	c.children = append(c.children, child)
}

// Children 返回程序侧子类
func (c *LibraryClass) Children() []any {
	return c.children
}

// AddLibraryChild 登记库内子类
func (c *LibraryClass) AddLibraryChild(child *LibraryClass) {
	c.libChildren = append(c.libChildren, child)
}

// LibraryChildren 返回库内子类
func (c *LibraryClass) LibraryChildren() []*LibraryClass {
	return c.libChildren
}

// ============================================================================
// 库方法
// ============================================================================

// LibraryMethod 库中的方法定义
type LibraryMethod struct {
	name      string // 编码名 Class:Short:P1,P2,...
	shortName string
	userName  string
	libClass  *LibraryClass

	methodType MethodType
	isStatic   bool
	isVirtual  bool
	isNative   bool

	returnType    *types.Type
	encodedReturn string
	declTypes     []*types.Type

	id int
}

// NewLibraryMethod 创建库方法
func NewLibraryMethod(encodedName, shortName, userName string, methodType MethodType,
	isStatic, isVirtual, isNative bool, returnType *types.Type, encodedReturn string,
	declTypes []*types.Type) *LibraryMethod {
	return &LibraryMethod{
		name:          encodedName,
		shortName:     shortName,
		userName:      userName,
		methodType:    methodType,
		isStatic:      isStatic,
		isVirtual:     isVirtual,
		isNative:      isNative,
		returnType:    returnType,
		encodedReturn: encodedReturn,
		declTypes:     declTypes,
	}
}

// Name 返回编码名
func (m *LibraryMethod) Name() string {
	return m.name
}

// ShortName 返回短名
func (m *LibraryMethod) ShortName() string {
	return m.shortName
}

// UserName 返回用户可读名（诊断输出用）
func (m *LibraryMethod) UserName() string {
	return m.userName
}

// LibraryClass 返回所属库类
func (m *LibraryMethod) LibraryClass() *LibraryClass {
	return m.libClass
}

// MethodType 返回方法种类
func (m *LibraryMethod) MethodType() MethodType {
	return m.methodType
}

// IsStatic 是否为静态函数
func (m *LibraryMethod) IsStatic() bool {
	return m.isStatic
}

// IsVirtual 是否为虚方法
func (m *LibraryMethod) IsVirtual() bool {
	return m.isVirtual
}

// IsNative 是否为本机方法
func (m *LibraryMethod) IsNative() bool {
	return m.isNative
}

// Return 返回返回类型
func (m *LibraryMethod) Return() *types.Type {
	return m.returnType
}

// EncodedReturn 返回返回类型的编码
func (m *LibraryMethod) EncodedReturn() string {
	return m.encodedReturn
}

// DeclarationTypes 返回参数类型列表
func (m *LibraryMethod) DeclarationTypes() []*types.Type {
	return m.declTypes
}

// ============================================================================
// 库枚举
// ============================================================================

// LibraryEnumItem 库枚举项
type LibraryEnumItem struct {
	name string
	id   int
}

// NewLibraryEnumItem 创建库枚举项
func NewLibraryEnumItem(name string, id int) *LibraryEnumItem {
	return &LibraryEnumItem{name: name, id: id}
}

// Name 返回项名
func (i *LibraryEnumItem) Name() string {
	return i.name
}

// ID 返回项值
func (i *LibraryEnumItem) ID() int {
	return i.id
}

// LibraryEnum 库枚举
type LibraryEnum struct {
	name  string
	items map[string]*LibraryEnumItem
}

// NewLibraryEnum 创建库枚举
func NewLibraryEnum(name string) *LibraryEnum {
	return &LibraryEnum{
		name:  name,
		items: make(map[string]*LibraryEnumItem),
	}
}

// Name 返回枚举名
func (e *LibraryEnum) Name() string {
	return e.name
}

// AddItem 添加枚举项
func (e *LibraryEnum) AddItem(item *LibraryEnumItem) {
	e.items[item.name] = item
}

// GetItem 按名查找枚举项
func (e *LibraryEnum) GetItem(name string) *LibraryEnumItem {
	return e.items[name]
}

// ============================================================================
// 库别名
// ============================================================================

// LibraryAlias 库别名：按类型名后缀展开
type LibraryAlias struct {
	name  string
	tyMap map[string]*types.Type
}

// NewLibraryAlias 创建库别名
func NewLibraryAlias(name string) *LibraryAlias {
	return &LibraryAlias{
		name:  name,
		tyMap: make(map[string]*types.Type),
	}
}

// Name 返回别名名
func (a *LibraryAlias) Name() string {
	return a.name
}

// AddType 注册一个展开
func (a *LibraryAlias) AddType(suffix string, t *types.Type) {
	a.tyMap[suffix] = t
}

// GetType 按后缀取展开
func (a *LibraryAlias) GetType(suffix string) *types.Type {
	return a.tyMap[suffix]
}

// ============================================================================
// 链接器
// ============================================================================

// Bundle 一个已链接库的符号集合
type Bundle struct {
	Name    string
	Classes map[string]*LibraryClass
	Enums   map[string]*LibraryEnum
	Aliases map[string]*LibraryAlias
}

// NewBundle 创建库 bundle
func NewBundle(name string) *Bundle {
	return &Bundle{
		Name:    name,
		Classes: make(map[string]*LibraryClass),
		Enums:   make(map[string]*LibraryEnum),
		Aliases: make(map[string]*LibraryAlias),
	}
}

// Linker 链接器：对外提供跨库符号检索
type Linker struct {
	bundles map[string]*Bundle
	paths   []string
	loaded  bool
}

// NewLinker 创建链接器并注册内建 System bundle
func NewLinker(libraryPaths []string) *Linker {
	l := &Linker{
		bundles: make(map[string]*Bundle),
		paths:   libraryPaths,
	}
	l.registerSystemBundle()
	return l
}

// Load 载入命令行指定的库
// 磁盘解码由库装载回调完成；此处只聚合失败
func (l *Linker) Load() error {
	if l.loaded {
		return nil
	}
	l.loaded = true

	var errs error
	for _, path := range l.paths {
		if _, ok := l.bundles[path]; !ok && loadHook != nil {
			if err := loadHook(l, path); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("library %q: %w", path, err))
			}
		}
	}
	return errs
}

// loadHook 外部库装载回调（磁盘格式不在本仓库范围内）
var loadHook func(*Linker, string) error

// SetLoadHook 安装库装载回调
func SetLoadHook(hook func(*Linker, string) error) {
	loadHook = hook
}

// AddBundle 注册一个库 bundle
func (l *Linker) AddBundle(bundle *Bundle) {
	l.bundles[bundle.Name] = bundle
}

// HasBundleName 是否存在指定 bundle
func (l *Linker) HasBundleName(name string) bool {
	_, ok := l.bundles[name]
	return ok
}

// SearchClassLibraries 按名检索库类：先试全限定名，再逐个 use 前缀
func (l *Linker) SearchClassLibraries(name string, uses []string) *LibraryClass {
	if name == "" {
		return nil
	}
	for _, bundle := range l.bundles {
		if klass, ok := bundle.Classes[name]; ok {
			return klass
		}
	}
	for _, use := range uses {
		qualified := use + "." + name
		for _, bundle := range l.bundles {
			if klass, ok := bundle.Classes[qualified]; ok {
				return klass
			}
		}
	}
	return nil
}

// SearchEnumLibraries 按名检索库枚举
func (l *Linker) SearchEnumLibraries(name string, uses []string) *LibraryEnum {
	if name == "" {
		return nil
	}
	for _, bundle := range l.bundles {
		if eenum, ok := bundle.Enums[name]; ok {
			return eenum
		}
	}
	for _, use := range uses {
		qualified := use + "." + name
		for _, bundle := range l.bundles {
			if eenum, ok := bundle.Enums[qualified]; ok {
				return eenum
			}
		}
	}
	return nil
}

// SearchAliasLibraries 按名检索库别名
func (l *Linker) SearchAliasLibraries(name string, uses []string) *LibraryAlias {
	if name == "" {
		return nil
	}
	for _, bundle := range l.bundles {
		if alias, ok := bundle.Aliases[name]; ok {
			return alias
		}
	}
	for _, use := range uses {
		qualified := use + "." + name
		for _, bundle := range l.bundles {
			if alias, ok := bundle.Aliases[qualified]; ok {
				return alias
			}
		}
	}
	return nil
}
