// memory.go - 内存管理器
//
// 标记-清除收集器 + 按大小分级的自由链分配器。
//
// 布局：每个 chunk 首字记录档位大小，随后是 EXTRA_BUF_SIZE 个头部字
// [TYPE, SIZE_OR_CLS, MARKED_FLAG]，用户指针紧跟其后。
// TYPE=NilType 表示对象（SIZE_OR_CLS 存类引用），否则为数组
// （SIZE_OR_CLS 存负载字节数）。
//
// 收集流程：CollectAllMemory 对 markedSweep 做 try-lock（并发触发
// 直接返回），收集协程并发展开静态区 / 操作数栈 / PDA 帧三路根扫描，
// PDA 扫描把 JIT 帧搬入独立队列后再起第四路扫描。标记幂等，
// 标记位翻转持 marked 锁。清除阶段过滤存活集、清标记位、
// 归还 chunk 并按回收效果自适应调整水位。

package vm

import (
	"fmt"
	"os"
	"sync"

	uatomic "go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// 机器字字节数
const wordBytes = 8

// 头部布局
const (
	// ExtraBufSize 头部字数
	ExtraBufSize = 3

	typeSlot   = 0
	sizeSlot   = 1
	markedSlot = 2
)

// MemoryType 分配种类
type MemoryType int

const (
	NilType MemoryType = iota // 对象
	ByteArrayType
	CharArrayType
	IntArrayType
	FloatArrayType
)

// 元素字节数
func elementSize(memType MemoryType) int {
	switch memType {
	case ByteArrayType:
		return 1
	case CharArrayType:
		return 4
	case IntArrayType, FloatArrayType:
		return wordBytes
	}
	return wordBytes
}

// 水位默认值与自适应阈值
const (
	// MemMax 初始堆水位（字节）
	MemMax = 1 << 20

	// UncollectedCount 连续无效回收次数上限，触发水位左移三位
	UncollectedCount = 8
	// CollectedCount 连续有效回收次数上限，触发水位折半再折半
	CollectedCount = 16
)

// allocation 一次受管分配
type allocation struct {
	chunk   *freeChunk
	ptr     uintptr
	memType MemoryType
	cls     *StackClass
	payload int // 负载字节数
}

// header 头部字视图
func (a *allocation) header() []uintptr {
	return a.chunk.words[1 : 1+ExtraBufSize]
}

// user 负载字视图
func (a *allocation) user() []uintptr {
	return a.chunk.words[1+ExtraBufSize:]
}

// Config 内存管理器配置
type Config struct {
	MemMax int  // 初始堆水位，0 取默认
	Serial bool // 单线程模式：收集内联执行且不加锁
	Debug  bool
	Logger *zap.Logger
}

// MemoryManager 每 VM 实例一个
type MemoryManager struct {
	prgm   *StackProgram
	logger *zap.Logger
	serial bool
	debug  bool

	// 分配状态
	allocated      map[uintptr]*allocation
	allocationSize int
	memMaxSize     int

	// 自适应计数
	uncollectedCount int
	collectedCount   int

	// 自由链
	pool *freeMemoryPool

	// 根注册
	pdaFrames   map[**StackFrame]bool
	pdaMonitors map[*StackFrameMonitor]bool
	jitFrames   []*StackFrame

	// 合成地址发生器（字对齐，永不为 0）
	nextPtr uintptr

	// 锁
	markedSweepLock sync.Mutex
	allocatedLock   sync.Mutex
	markedLock      sync.Mutex
	pdaFrameLock    sync.Mutex
	pdaMonitorLock  sync.Mutex
	jitFrameLock    sync.Mutex
	freeCacheLock   sync.Mutex

	// 统计
	totalCollections uatomic.Int64
	totalFreed       uatomic.Int64
	totalAllocations uatomic.Int64
}

// NewMemoryManager 创建内存管理器
func NewMemoryManager(prgm *StackProgram, cfg Config) *MemoryManager {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	memMax := cfg.MemMax
	if memMax <= 0 {
		memMax = MemMax
	}
	return &MemoryManager{
		prgm:        prgm,
		logger:      logger,
		serial:      cfg.Serial,
		debug:       cfg.Debug,
		allocated:   make(map[uintptr]*allocation, 256),
		memMaxSize:  memMax,
		pool:        newFreeMemoryPool(),
		pdaFrames:   make(map[**StackFrame]bool),
		pdaMonitors: make(map[*StackFrameMonitor]bool),
		nextPtr:     wordBytes,
	}
}

// ============================================================================
// 分配
// ============================================================================

// AllocateObject 分配对象实例
// 调用方传入当前操作数栈与深度，收集被触发时作为根扫描
func (m *MemoryManager) AllocateObject(objID int, opStack []uintptr, stackPos int,
	collect bool) uintptr {
	cls := m.prgm.GetClass(objID)
	if cls == nil {
		return 0
	}

	size := cls.InstanceMemorySize()
	if collect && m.overWatermark(size) {
		m.CollectAllMemory(opStack, stackPos)
	}

	alloc := m.getMemory(size)
	alloc.memType = NilType
	alloc.cls = cls
	alloc.payload = size
	alloc.header()[typeSlot] = uintptr(NilType)
	alloc.header()[sizeSlot] = uintptr(objID)

	m.lock(&m.allocatedLock)
	m.allocationSize += size
	m.allocated[alloc.ptr] = alloc
	m.unlock(&m.allocatedLock)

	m.totalAllocations.Inc()

	if m.debug {
		m.logger.Debug("allocating object", zap.String("class", cls.Name()),
			zap.Uintptr("addr", alloc.ptr), zap.Int("size", size),
			zap.Int("used", m.allocationSize))
	}

	return alloc.ptr
}

// AllocateArray 分配数组
func (m *MemoryManager) AllocateArray(size int, memType MemoryType, opStack []uintptr,
	stackPos int, collect bool) uintptr {
	if size < 0 {
		fmt.Fprintf(os.Stderr, ">>> Invalid allocation size: %d <<<\n", size)
		os.Exit(1)
	}

	var calcSize int
	switch memType {
	case ByteArrayType, CharArrayType, IntArrayType, FloatArrayType:
		calcSize = size * elementSize(memType)
	default:
		fmt.Fprintln(os.Stderr, ">>> Invalid memory allocation <<<")
		os.Exit(1)
	}

	if collect && m.overWatermark(calcSize) {
		m.CollectAllMemory(opStack, stackPos)
	}

	alloc := m.getMemory(calcSize)
	alloc.memType = memType
	alloc.payload = calcSize
	alloc.header()[typeSlot] = uintptr(memType)
	alloc.header()[sizeSlot] = uintptr(calcSize)

	m.lock(&m.allocatedLock)
	m.allocationSize += calcSize
	m.allocated[alloc.ptr] = alloc
	m.unlock(&m.allocatedLock)

	m.totalAllocations.Inc()

	if m.debug {
		m.logger.Debug("allocating array", zap.Uintptr("addr", alloc.ptr),
			zap.Int("size", calcSize), zap.Int("used", m.allocationSize))
	}

	return alloc.ptr
}

// overWatermark 请求是否越过堆水位
func (m *MemoryManager) overWatermark(payloadBytes int) bool {
	m.lock(&m.allocatedLock)
	over := m.allocationSize+payloadBytes > m.memMaxSize
	m.unlock(&m.allocatedLock)
	return over
}

// getMemory 从自由链取 chunk 并挂上合成地址
func (m *MemoryManager) getMemory(payloadBytes int) *allocation {
	askSize := payloadBytes + wordBytes*ExtraBufSize
	chunkSize := allocSize(askSize + wordBytes)

	m.lock(&m.freeCacheLock)
	chunk := m.pool.get(chunkSize)
	ptr := m.nextPtr
	m.nextPtr += uintptr(chunkSize)
	m.unlock(&m.freeCacheLock)

	return &allocation{chunk: chunk, ptr: ptr}
}

// addFreeMemory 归还 chunk；缓存超水位时整体清空
func (m *MemoryManager) addFreeMemory(chunk *freeChunk) {
	m.lock(&m.freeCacheLock)
	if m.pool.cacheSize > m.memMaxSize {
		m.pool.clear()
	}
	m.pool.put(chunk)
	m.unlock(&m.freeCacheLock)
}

// Payload 返回分配的负载字视图；未知指针返回 nil
func (m *MemoryManager) Payload(ptr uintptr) []uintptr {
	m.lock(&m.allocatedLock)
	alloc := m.allocated[ptr]
	m.unlock(&m.allocatedLock)
	if alloc == nil {
		return nil
	}
	return alloc.user()
}

// HasAllocation 指针是否在受管集合内
func (m *MemoryManager) HasAllocation(ptr uintptr) bool {
	m.lock(&m.allocatedLock)
	_, ok := m.allocated[ptr]
	m.unlock(&m.allocatedLock)
	return ok
}

// AllocationSize 返回受管负载总字节数
func (m *MemoryManager) AllocationSize() int {
	m.lock(&m.allocatedLock)
	size := m.allocationSize
	m.unlock(&m.allocatedLock)
	return size
}

// AllocatedCount 返回受管分配个数
func (m *MemoryManager) AllocatedCount() int {
	m.lock(&m.allocatedLock)
	count := len(m.allocated)
	m.unlock(&m.allocatedLock)
	return count
}

// MemMaxSize 返回当前水位
func (m *MemoryManager) MemMaxSize() int {
	return m.memMaxSize
}

// GetObjectID 指针的类 id；非对象返回 -1
func (m *MemoryManager) GetObjectID(ptr uintptr) int {
	m.lock(&m.allocatedLock)
	alloc := m.allocated[ptr]
	m.unlock(&m.allocatedLock)
	if alloc == nil || alloc.cls == nil {
		return -1
	}
	return alloc.cls.ID()
}

// lock / unlock 单线程模式下全部锁退化为空操作
func (m *MemoryManager) lock(mu *sync.Mutex) {
	if !m.serial {
		mu.Lock()
	}
}

func (m *MemoryManager) unlock(mu *sync.Mutex) {
	if !m.serial {
		mu.Unlock()
	}
}

// ============================================================================
// 根注册
// ============================================================================

// AddPdaMethodRoot 注册解释器帧槽
func (m *MemoryManager) AddPdaMethodRoot(frame **StackFrame) {
	m.lock(&m.pdaFrameLock)
	m.pdaFrames[frame] = true
	m.unlock(&m.pdaFrameLock)
}

// RemovePdaMethodRoot 注销解释器帧槽
func (m *MemoryManager) RemovePdaMethodRoot(frame **StackFrame) {
	m.lock(&m.pdaFrameLock)
	delete(m.pdaFrames, frame)
	m.unlock(&m.pdaFrameLock)
}

// AddPdaMonitorRoot 注册线程调用栈监视器
func (m *MemoryManager) AddPdaMonitorRoot(monitor *StackFrameMonitor) {
	m.lock(&m.pdaMonitorLock)
	m.pdaMonitors[monitor] = true
	m.unlock(&m.pdaMonitorLock)
}

// RemovePdaMonitorRoot 注销线程调用栈监视器
func (m *MemoryManager) RemovePdaMonitorRoot(monitor *StackFrameMonitor) {
	m.lock(&m.pdaMonitorLock)
	delete(m.pdaMonitors, monitor)
	m.unlock(&m.pdaMonitorLock)
}

// ============================================================================
// 标记
// ============================================================================

// lookupAllocation 受管查找
func (m *MemoryManager) lookupAllocation(ptr uintptr) *allocation {
	if ptr == 0 {
		return nil
	}
	m.lock(&m.allocatedLock)
	alloc := m.allocated[ptr]
	m.unlock(&m.allocatedLock)
	return alloc
}

// markMemory 幂等置位；首次标记返回 true
func (m *MemoryManager) markMemory(alloc *allocation) bool {
	if alloc == nil {
		return false
	}
	if alloc.header()[markedSlot] != 0 {
		return false
	}

	m.lock(&m.markedLock)
	alloc.header()[markedSlot] = 1
	m.unlock(&m.markedLock)
	return true
}

// markValidMemory 仅标记受管指针
func (m *MemoryManager) markValidMemory(ptr uintptr) *allocation {
	alloc := m.lookupAllocation(ptr)
	if alloc == nil {
		return nil
	}
	if !m.markMemory(alloc) {
		return nil
	}
	return alloc
}

// checkMemory 按声明表遍历一段帧/实例内存
func (m *MemoryManager) checkMemory(mem []uintptr, dclrs []*StackDclr) {
	idx := 0
	for _, dclr := range dclrs {
		if idx >= len(mem) {
			return
		}

		switch dclr.Type {
		case FuncParm:
			// 打包字：高 16 位虚类 id，低 16 位方法 id
			if idx+1 >= len(mem) {
				return
			}
			packed := mem[idx]
			lambdaPtr := mem[idx+1]
			virtualClsID := int((packed >> 16) & 0xFFFF)
			mthdID := int(packed & 0xFFFF)

			if lambdaAlloc := m.lookupAllocation(lambdaPtr); lambdaAlloc != nil {
				if m.markMemory(lambdaAlloc) {
					if cls := m.prgm.GetClass(virtualClsID); cls != nil {
						m.checkMemory(lambdaAlloc.user(), cls.ClosureDeclarations(mthdID))
					}
				}
			}
			idx += 2

		case CharParm, IntParm, FloatParm:
			idx++

		case ByteAryParm, CharAryParm, IntAryParm, FloatAryParm:
			m.markMemory(m.lookupAllocation(mem[idx]))
			idx++

		case ObjParm:
			m.checkObject(mem[idx], true)
			idx++

		case ObjAryParm:
			if alloc := m.markValidMemory(mem[idx]); alloc != nil {
				m.checkObjectArray(alloc)
			}
			idx++

		default:
			idx++
		}
	}
}

// checkObjectArray 对象数组：[size, dim, dims..., elems...]
func (m *MemoryManager) checkObjectArray(alloc *allocation) {
	array := alloc.user()
	if len(array) < 2 {
		return
	}
	size := int(array[0])
	dim := int(array[1])
	base := 2 + dim
	for k := 0; k < size && base+k < len(array); k++ {
		m.checkObject(array[base+k], true)
	}
}

// checkObject 追踪一个可能的对象引用
func (m *MemoryManager) checkObject(ptr uintptr, isObj bool) {
	alloc := m.lookupAllocation(ptr)
	if alloc == nil {
		return
	}

	if alloc.cls != nil {
		if m.markMemory(alloc) {
			m.checkMemory(alloc.user(), alloc.cls.InstanceDeclarations())
		}
		return
	}

	// 未识别的段：栈或寄存器临时值；只追对象/Int 数组
	if m.markMemory(alloc) {
		if alloc.memType == NilType || alloc.memType == IntArrayType {
			array := alloc.user()
			if len(array) < 2 {
				return
			}
			size := int(array[0])
			dim := int(array[1])
			base := 2 + dim
			for i := 0; i < size && base+i < len(array); i++ {
				m.checkObject(array[base+i], false)
			}
		}
	}
}

// ============================================================================
// 收集
// ============================================================================

// collectionInfo 一次收集的根描述
type collectionInfo struct {
	opStack  []uintptr
	stackPos int
}

// CollectAllMemory 触发一次收集；并发触发时直接返回
func (m *MemoryManager) CollectAllMemory(opStack []uintptr, stackPos int) {
	info := &collectionInfo{opStack: opStack, stackPos: stackPos}

	if m.serial {
		m.collectMemory(info)
		return
	}

	// 同一时刻只允许一次收集
	if !m.markedSweepLock.TryLock() {
		return
	}

	done := make(chan struct{})
	go func() {
		m.collectMemory(info)
		close(done)
	}()
	<-done

	m.markedSweepLock.Unlock()
}

// collectMemory 标记 + 清除
func (m *MemoryManager) collectMemory(info *collectionInfo) {
	m.totalCollections.Inc()

	if m.debug {
		m.logger.Debug("starting garbage collection",
			zap.Int("allocated", len(m.allocated)), zap.Int("used", m.allocationSize))
	}

	if m.serial {
		m.checkStatic()
		m.checkStack(info)
		m.checkPdaRoots()
		m.checkJitRoots()
	} else {
		// 三路根扫描并发展开；JIT 扫描由 PDA 扫描派生
		var group errgroup.Group
		group.Go(func() error {
			m.checkStatic()
			return nil
		})
		group.Go(func() error {
			m.checkStack(info)
			return nil
		})
		group.Go(func() error {
			m.checkPdaRoots()
			return nil
		})
		group.Wait()
	}

	m.sweep()
}

// checkStatic 扫描全部类的静态区
func (m *MemoryManager) checkStatic() {
	for _, cls := range m.prgm.Classes() {
		m.checkMemory(cls.ClassMemory(), cls.ClassDeclarations())
	}
}

// checkStack 扫描操作数栈
func (m *MemoryManager) checkStack(info *collectionInfo) {
	if m.debug {
		m.logger.Debug("marking stack", zap.Int("pos", info.stackPos))
	}

	pos := info.stackPos
	for pos > -1 {
		checkMem := info.opStack[pos]
		pos--
		if m.lookupAllocation(checkMem) != nil {
			m.checkObject(checkMem, false)
		}
	}
}

// checkPdaRoots 扫描解释器帧与调用栈监视器
// 解释器帧拷贝到本地后遍历；JIT 帧搬入共享队列并派生第四路扫描
func (m *MemoryManager) checkPdaRoots() {
	var frames []*StackFrame

	m.lock(&m.pdaFrameLock)
	for frameSlot := range m.pdaFrames {
		frame := *frameSlot
		if frame == nil {
			continue
		}
		if frame.JitMem != nil {
			m.lock(&m.jitFrameLock)
			m.jitFrames = append(m.jitFrames, frame)
			m.unlock(&m.jitFrameLock)
		} else {
			frames = append(frames, frame)
		}
	}
	m.unlock(&m.pdaFrameLock)

	m.lock(&m.pdaMonitorLock)
	for monitor := range m.pdaMonitors {
		callStackPos := *monitor.CallStackPos
		if callStackPos <= 0 {
			continue
		}
		curFrame := *monitor.CurFrame
		if curFrame != nil {
			if curFrame.JitMem != nil {
				m.lock(&m.jitFrameLock)
				m.jitFrames = append(m.jitFrames, curFrame)
				m.unlock(&m.jitFrameLock)
			} else {
				frames = append(frames, curFrame)
			}
		}

		for callStackPos--; callStackPos > -1; callStackPos-- {
			frame := monitor.CallStack[callStackPos]
			if frame == nil {
				continue
			}
			if frame.JitMem != nil {
				m.lock(&m.jitFrameLock)
				m.jitFrames = append(m.jitFrames, frame)
				m.unlock(&m.jitFrameLock)
			} else {
				frames = append(frames, frame)
			}
		}
	}
	m.unlock(&m.pdaMonitorLock)

	// JIT 帧独立扫描
	var jitDone chan struct{}
	if !m.serial {
		jitDone = make(chan struct{})
		go func() {
			m.checkJitRoots()
			close(jitDone)
		}()
	}

	// 解释器帧
	for _, frame := range frames {
		method := frame.Method
		mem := frame.Mem
		if method == nil || len(mem) == 0 {
			continue
		}

		if m.debug {
			m.logger.Debug("pda frame", zap.String("method", method.Name()),
				zap.Int("num", method.NumberDeclarations()))
		}

		// self
		if !method.IsLambda() {
			m.checkObject(mem[0], true)
		}

		offset := 1
		if method.HasAndOr() {
			offset = 2
		}
		if offset <= len(mem) {
			m.checkMemory(mem[offset:], method.Declarations())
		}
	}

	if jitDone != nil {
		<-jitDone
	}
}

// checkJitRoots 扫描 JIT 帧：声明区 + 六个整型暂存槽
func (m *MemoryManager) checkJitRoots() {
	m.lock(&m.jitFrameLock)
	jitFrames := m.jitFrames
	m.jitFrames = nil
	m.unlock(&m.jitFrameLock)

	for _, frame := range jitFrames {
		method := frame.Method
		mem := frame.JitMem
		if method == nil || mem == nil {
			continue
		}

		if m.debug {
			m.logger.Debug("jit frame", zap.String("method", method.Name()),
				zap.Int("num", method.NumberDeclarations()))
		}

		// self
		if !method.IsLambda() && len(frame.Mem) > 0 {
			m.checkObject(frame.Mem[0], true)
		}

		m.checkMemory(mem, method.Declarations())

		// 声明区之后的六个暂存槽可能持有对象引用
		idx := 0
		for _, dclr := range method.Declarations() {
			idx += dclr.WordSize()
		}
		for i := 0; i < 6 && idx+i < len(mem); i++ {
			checkMem := mem[idx+i]
			if m.lookupAllocation(checkMem) != nil {
				m.checkObject(checkMem, false)
			}
		}
	}
}

// ============================================================================
// 清除
// ============================================================================

// sweep 过滤存活集、清标记位、归还死对象
func (m *MemoryManager) sweep() {
	m.lock(&m.allocatedLock)
	m.lock(&m.markedLock)

	liveMemory := make(map[uintptr]*allocation, len(m.allocated))
	freed := 0
	for ptr, alloc := range m.allocated {
		if alloc.header()[markedSlot] != 0 {
			// 存活：标记位立即清除，mutator 不会看到陈旧标记
			alloc.header()[markedSlot] = 0
			liveMemory[ptr] = alloc
			continue
		}

		// 回收：负载大小按头部恢复
		var memSize int
		if alloc.memType == NilType && alloc.cls != nil {
			memSize = alloc.cls.InstanceMemorySize()
		} else {
			memSize = int(alloc.header()[sizeSlot])
		}
		m.allocationSize -= memSize
		freed++

		m.addFreeMemory(alloc.chunk)

		if m.debug {
			m.logger.Debug("freeing memory", zap.Uintptr("addr", ptr),
				zap.Int("size", memSize))
		}
	}

	m.unlock(&m.markedLock)

	// 按回收效果自适应调整水位
	if len(liveMemory) >= len(m.allocated)-1 {
		// 几乎没回收到：放水位
		if m.uncollectedCount < UncollectedCount {
			m.uncollectedCount++
		} else {
			m.memMaxSize <<= 3
			m.uncollectedCount = 0
		}
	} else if m.memMaxSize != MemMax {
		// 持续有效回收：收水位
		if m.collectedCount < CollectedCount {
			m.collectedCount++
		} else {
			m.memMaxSize = (m.memMaxSize >> 1) / 2
			if m.memMaxSize <= 0 {
				m.memMaxSize = MemMax << 3
			}
			m.collectedCount = 0
		}
	}

	m.allocated = liveMemory
	m.unlock(&m.allocatedLock)

	m.totalFreed.Add(int64(freed))

	if m.debug {
		m.logger.Debug("finished collection", zap.Int("freed", freed),
			zap.Int("live", len(liveMemory)), zap.Int("used", m.allocationSize))
	}
}

// ============================================================================
// 运行时转换检查
// ============================================================================

// ValidObjectCast toID 在指针类的祖先链或祖先接口表上时返回原指针
func (m *MemoryManager) ValidObjectCast(ptr uintptr, toID int, clsHierarchy []int,
	clsInterfaces [][]int) uintptr {
	id := m.GetObjectID(ptr)
	if id < 0 {
		return 0
	}

	// 上行：父链
	virtualClsID := id
	for virtualClsID != -1 {
		if virtualClsID == toID {
			return ptr
		}
		virtualClsID = clsHierarchy[virtualClsID]
	}

	// 接口表
	virtualClsID = id
	for virtualClsID != -1 {
		if interfaces := clsInterfaces[virtualClsID]; interfaces != nil {
			for i := 0; interfaces[i] > InfEnding; i++ {
				if interfaces[i] == toID {
					return ptr
				}
			}
		}
		virtualClsID = clsHierarchy[virtualClsID]
	}

	return 0
}

// Stats 收集统计
type Stats struct {
	TotalAllocations int64
	TotalCollections int64
	TotalFreed       int64
	AllocationSize   int
	MemMaxSize       int
}

// GetStats 返回统计快照
func (m *MemoryManager) GetStats() Stats {
	return Stats{
		TotalAllocations: m.totalAllocations.Load(),
		TotalCollections: m.totalCollections.Load(),
		TotalFreed:       m.totalFreed.Load(),
		AllocationSize:   m.AllocationSize(),
		MemMaxSize:       m.memMaxSize,
	}
}
