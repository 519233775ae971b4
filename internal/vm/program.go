// program.go - 运行时程序元数据
//
// 收集器与分配器消费的类/方法描述：实例与静态声明表、
// 闭包声明表、类层级与接口表。字节码与装载格式不在此范围内。

package vm

// ParmType 声明槽位种类，驱动收集器的逐槽遍历
type ParmType int

const (
	IntParm ParmType = iota
	CharParm
	FloatParm
	ByteAryParm
	CharAryParm
	IntAryParm
	FloatAryParm
	ObjParm
	ObjAryParm
	FuncParm
)

// StackDclr 单个声明槽位
type StackDclr struct {
	Type ParmType
	Name string
}

// WordSize 槽位占用的字数（函数引用占两个字：打包 id + 闭包指针）
func (d *StackDclr) WordSize() int {
	if d.Type == FuncParm {
		return 2
	}
	return 1
}

// 接口表结束哨兵
const InfEnding = -2

// ============================================================================
// 类
// ============================================================================

// StackClass 运行时类
type StackClass struct {
	id   int
	name string

	instanceMemorySize int // 实例负载字节数
	instanceDclrs      []*StackDclr

	// 静态区
	classMemory []uintptr
	classDclrs  []*StackDclr

	// lambda 闭包声明：方法 id -> 声明表
	closureDclrs map[int][]*StackDclr

	methods []*StackMethod
}

// NewStackClass 创建运行时类
func NewStackClass(id int, name string, instanceMemorySize int,
	instanceDclrs []*StackDclr) *StackClass {
	return &StackClass{
		id:                 id,
		name:               name,
		instanceMemorySize: instanceMemorySize,
		instanceDclrs:      instanceDclrs,
		closureDclrs:       make(map[int][]*StackDclr),
	}
}

// ID 返回类 id
func (c *StackClass) ID() int {
	return c.id
}

// Name 返回类名
func (c *StackClass) Name() string {
	return c.name
}

// InstanceMemorySize 返回实例负载字节数
func (c *StackClass) InstanceMemorySize() int {
	return c.instanceMemorySize
}

// InstanceDeclarations 返回实例声明表
func (c *StackClass) InstanceDeclarations() []*StackDclr {
	return c.instanceDclrs
}

// ClassMemory 返回静态区
func (c *StackClass) ClassMemory() []uintptr {
	return c.classMemory
}

// SetClassMemory 设置静态区及其声明表
func (c *StackClass) SetClassMemory(memory []uintptr, dclrs []*StackDclr) {
	c.classMemory = memory
	c.classDclrs = dclrs
}

// ClassDeclarations 返回静态声明表
func (c *StackClass) ClassDeclarations() []*StackDclr {
	return c.classDclrs
}

// ClosureDeclarations 返回指定方法的闭包声明表
func (c *StackClass) ClosureDeclarations(methodID int) []*StackDclr {
	return c.closureDclrs[methodID]
}

// SetClosureDeclarations 登记方法的闭包声明表
func (c *StackClass) SetClosureDeclarations(methodID int, dclrs []*StackDclr) {
	c.closureDclrs[methodID] = dclrs
}

// AddMethod 登记方法
func (c *StackClass) AddMethod(method *StackMethod) {
	method.class = c
	c.methods = append(c.methods, method)
}

// GetMethod 按 id 查方法
func (c *StackClass) GetMethod(id int) *StackMethod {
	for _, method := range c.methods {
		if method.id == id {
			return method
		}
	}
	return nil
}

// ============================================================================
// 方法
// ============================================================================

// StackMethod 运行时方法
type StackMethod struct {
	id    int
	name  string
	class *StackClass

	dclrs    []*StackDclr
	isLambda bool
	hasAndOr bool
}

// NewStackMethod 创建运行时方法
func NewStackMethod(id int, name string, dclrs []*StackDclr, isLambda, hasAndOr bool) *StackMethod {
	return &StackMethod{
		id:       id,
		name:     name,
		dclrs:    dclrs,
		isLambda: isLambda,
		hasAndOr: hasAndOr,
	}
}

// ID 返回方法 id
func (m *StackMethod) ID() int {
	return m.id
}

// Name 返回方法名
func (m *StackMethod) Name() string {
	return m.name
}

// Class 返回所属类
func (m *StackMethod) Class() *StackClass {
	return m.class
}

// Declarations 返回声明表
func (m *StackMethod) Declarations() []*StackDclr {
	return m.dclrs
}

// NumberDeclarations 返回声明个数
func (m *StackMethod) NumberDeclarations() int {
	return len(m.dclrs)
}

// IsLambda 是否为 lambda 方法（无 self 槽）
func (m *StackMethod) IsLambda() bool {
	return m.isLambda
}

// HasAndOr 帧内是否有短路临时槽
func (m *StackMethod) HasAndOr() bool {
	return m.hasAndOr
}

// ============================================================================
// 程序
// ============================================================================

// StackProgram 运行时程序：类表与层级/接口数组
type StackProgram struct {
	classes []*StackClass

	// clsHierarchy[id] = 父类 id（根为 -1）
	clsHierarchy []int
	// clsInterfaces[id] = 接口 id 表，以 InfEnding 结束
	clsInterfaces [][]int
}

// NewStackProgram 创建运行时程序
func NewStackProgram() *StackProgram {
	return &StackProgram{}
}

// AddClass 登记类
func (p *StackProgram) AddClass(cls *StackClass) {
	p.classes = append(p.classes, cls)
}

// GetClass 按 id 查类
func (p *StackProgram) GetClass(id int) *StackClass {
	if id < 0 || id >= len(p.classes) {
		return nil
	}
	return p.classes[id]
}

// Classes 返回全部类
func (p *StackProgram) Classes() []*StackClass {
	return p.classes
}

// ClassNumber 返回类个数
func (p *StackProgram) ClassNumber() int {
	return len(p.classes)
}

// SetHierarchy 安装类层级与接口表
func (p *StackProgram) SetHierarchy(clsHierarchy []int, clsInterfaces [][]int) {
	p.clsHierarchy = clsHierarchy
	p.clsInterfaces = clsInterfaces
}

// ClassHierarchy 返回类层级数组
func (p *StackProgram) ClassHierarchy() []int {
	return p.clsHierarchy
}

// ClassInterfaces 返回接口表数组
func (p *StackProgram) ClassInterfaces() [][]int {
	return p.clsInterfaces
}

// ============================================================================
// 帧与根
// ============================================================================

// StackFrame 解释器/JIT 栈帧
// Mem[0] 为 self（非 lambda）；JitMem 非空时该帧由本机代码执行
type StackFrame struct {
	Method *StackMethod
	Mem    []uintptr
	JitMem []uintptr
}

// StackFrameMonitor 描述一条运行线程的完整调用栈
type StackFrameMonitor struct {
	CallStack    []*StackFrame
	CallStackPos *int
	CurFrame     **StackFrame
}
