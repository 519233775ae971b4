package vm

import (
	"sync"
	"testing"
)

// ============================================================================
// 测试程序搭建
// ============================================================================

// testProgram 单类程序：Node { next : Node }
func testProgram() (*StackProgram, *StackClass) {
	prgm := NewStackProgram()
	node := NewStackClass(0, "Node", 8, []*StackDclr{
		{Type: ObjParm, Name: "next"},
	})
	prgm.AddClass(node)
	return prgm, node
}

func newTestManager(prgm *StackProgram) *MemoryManager {
	return NewMemoryManager(prgm, Config{Serial: true})
}

// ============================================================================
// 分配
// ============================================================================

func TestAllocateObjectZeroFilled(t *testing.T) {
	prgm, _ := testProgram()
	m := newTestManager(prgm)

	ptr := m.AllocateObject(0, nil, -1, false)
	if ptr == 0 {
		t.Fatal("AllocateObject returned nil pointer")
	}

	payload := m.Payload(ptr)
	if payload == nil {
		t.Fatal("Payload returned nil for live allocation")
	}
	for i, word := range payload {
		if word != 0 {
			t.Errorf("payload[%d] = %d, expected zero fill", i, word)
		}
	}
}

func TestAllocateArraySizes(t *testing.T) {
	prgm, _ := testProgram()
	m := newTestManager(prgm)

	tests := []struct {
		name    string
		count   int
		memType MemoryType
		want    int
	}{
		{"byte", 16, ByteArrayType, 16},
		{"char", 8, CharArrayType, 32},
		{"int", 4, IntArrayType, 32},
		{"float", 4, FloatArrayType, 32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := m.AllocationSize()
			ptr := m.AllocateArray(tt.count, tt.memType, nil, -1, false)
			if ptr == 0 {
				t.Fatal("AllocateArray returned nil pointer")
			}
			if got := m.AllocationSize() - before; got != tt.want {
				t.Errorf("allocation size delta = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAllocationSizeAccounting(t *testing.T) {
	prgm, _ := testProgram()
	m := newTestManager(prgm)

	for i := 0; i < 10; i++ {
		m.AllocateObject(0, nil, -1, false)
	}
	if got := m.AllocationSize(); got != 10*8 {
		t.Errorf("AllocationSize = %d, want %d", got, 10*8)
	}
	if got := m.AllocatedCount(); got != 10 {
		t.Errorf("AllocatedCount = %d, want 10", got)
	}
}

func TestAllocSizeBuckets(t *testing.T) {
	tests := []struct {
		size int
		want int
	}{
		{1, 8},
		{8, 8},
		{9, 16},
		{100, 128},
		{4096, 4096},
		{4097, 8192},
		{4 * 1024 * 1024, 4 * 1024 * 1024},
		{4*1024*1024 + 1, 16 * 1024 * 1024},
	}
	for _, tt := range tests {
		if got := allocSize(tt.size); got != tt.want {
			t.Errorf("allocSize(%d) = %d, want %d", tt.size, got, tt.want)
		}
	}
}

// 并发分配返回的指针两两不同
func TestConcurrentAllocationDistinctPointers(t *testing.T) {
	prgm, _ := testProgram()
	m := NewMemoryManager(prgm, Config{})

	const workers = 8
	const perWorker = 100

	var mu sync.Mutex
	seen := make(map[uintptr]bool)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]uintptr, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				local = append(local, m.AllocateObject(0, nil, -1, false))
			}
			mu.Lock()
			for _, ptr := range local {
				if seen[ptr] {
					t.Errorf("duplicate pointer %#x", ptr)
				}
				seen[ptr] = true
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != workers*perWorker {
		t.Errorf("distinct pointers = %d, want %d", len(seen), workers*perWorker)
	}
}

// ============================================================================
// 收集
// ============================================================================

// 分配 10 个对象，栈上保留 4 个引用：收集后存活 4 个，
// allocationSize 减去 6 个对象的负载
func TestCollectLiveness(t *testing.T) {
	prgm, _ := testProgram()
	m := newTestManager(prgm)

	opStack := make([]uintptr, 16)
	var ptrs []uintptr
	for i := 0; i < 10; i++ {
		ptrs = append(ptrs, m.AllocateObject(0, nil, -1, false))
	}
	for i := 0; i < 4; i++ {
		opStack[i] = ptrs[i]
	}

	before := m.AllocationSize()
	m.CollectAllMemory(opStack, 3)

	if got := m.AllocatedCount(); got != 4 {
		t.Errorf("allocated count after collection = %d, want 4", got)
	}
	if got := before - m.AllocationSize(); got != 6*8 {
		t.Errorf("reclaimed = %d bytes, want %d", got, 6*8)
	}

	// 存活引用仍可解引用
	for i := 0; i < 4; i++ {
		if m.Payload(ptrs[i]) == nil {
			t.Errorf("live pointer %#x no longer dereferenceable", ptrs[i])
		}
	}
	for i := 4; i < 10; i++ {
		if m.Payload(ptrs[i]) != nil {
			t.Errorf("dead pointer %#x still dereferenceable", ptrs[i])
		}
	}
}

// 对象字段引用被递归追踪
func TestCollectTracesObjectFields(t *testing.T) {
	prgm, _ := testProgram()
	m := newTestManager(prgm)

	head := m.AllocateObject(0, nil, -1, false)
	tail := m.AllocateObject(0, nil, -1, false)
	m.Payload(head)[0] = tail

	opStack := []uintptr{head}
	m.CollectAllMemory(opStack, 0)

	if m.Payload(head) == nil {
		t.Error("head collected despite stack reference")
	}
	if m.Payload(tail) == nil {
		t.Error("tail collected despite being reachable from head")
	}
}

// 静态区引用是根
func TestCollectStaticRoots(t *testing.T) {
	prgm, cls := testProgram()
	m := newTestManager(prgm)

	kept := m.AllocateObject(0, nil, -1, false)
	m.AllocateObject(0, nil, -1, false)

	classMemory := []uintptr{kept}
	cls.SetClassMemory(classMemory, []*StackDclr{{Type: ObjParm, Name: "instance"}})

	m.CollectAllMemory(nil, -1)

	if m.Payload(kept) == nil {
		t.Error("object referenced from static class memory was collected")
	}
	if got := m.AllocatedCount(); got != 1 {
		t.Errorf("allocated count = %d, want 1", got)
	}
}

// PDA 帧是根；注销后不再是
func TestCollectPdaFrameRoots(t *testing.T) {
	prgm, node := testProgram()
	m := newTestManager(prgm)

	method := NewStackMethod(0, "Node:Run", []*StackDclr{{Type: ObjParm, Name: "v"}}, false, false)
	node.AddMethod(method)

	self := m.AllocateObject(0, nil, -1, false)
	local := m.AllocateObject(0, nil, -1, false)

	frame := &StackFrame{Method: method, Mem: []uintptr{self, local}}
	slot := &frame
	m.AddPdaMethodRoot(slot)

	m.CollectAllMemory(nil, -1)
	if m.Payload(self) == nil || m.Payload(local) == nil {
		t.Fatal("frame-rooted objects were collected")
	}

	m.RemovePdaMethodRoot(slot)
	m.CollectAllMemory(nil, -1)
	if got := m.AllocatedCount(); got != 0 {
		t.Errorf("allocated count after frame removal = %d, want 0", got)
	}
}

// 监视器描述的调用栈是根
func TestCollectMonitorRoots(t *testing.T) {
	prgm, node := testProgram()
	m := newTestManager(prgm)

	method := NewStackMethod(0, "Node:Run", nil, false, false)
	node.AddMethod(method)

	bottom := m.AllocateObject(0, nil, -1, false)
	top := m.AllocateObject(0, nil, -1, false)

	bottomFrame := &StackFrame{Method: method, Mem: []uintptr{bottom}}
	topFrame := &StackFrame{Method: method, Mem: []uintptr{top}}
	callStack := []*StackFrame{bottomFrame}
	callStackPos := 1
	cur := topFrame

	monitor := &StackFrameMonitor{
		CallStack:    callStack,
		CallStackPos: &callStackPos,
		CurFrame:     &cur,
	}
	m.AddPdaMonitorRoot(monitor)

	m.CollectAllMemory(nil, -1)
	if m.Payload(bottom) == nil {
		t.Error("call stack frame object was collected")
	}
	if m.Payload(top) == nil {
		t.Error("current frame object was collected")
	}
}

// lambda 闭包经打包字与闭包声明表追踪
func TestCollectFuncParmClosure(t *testing.T) {
	prgm, node := testProgram()
	m := newTestManager(prgm)

	// 闭包类：持有一个对象
	node.SetClosureDeclarations(7, []*StackDclr{{Type: ObjParm, Name: "capture"}})
	method := NewStackMethod(1, "Node:Apply", []*StackDclr{{Type: FuncParm, Name: "fn"}}, false, false)
	node.AddMethod(method)

	captured := m.AllocateObject(0, nil, -1, false)
	closure := m.AllocateArray(2, IntArrayType, nil, -1, false)
	m.Payload(closure)[0] = captured

	// 打包字：虚类 id=0，方法 id=7
	packed := uintptr(0)<<16 | uintptr(7)
	frame := &StackFrame{Method: method, Mem: []uintptr{0, packed, closure}}
	slot := &frame
	m.AddPdaMethodRoot(slot)

	m.CollectAllMemory(nil, -1)
	if m.Payload(closure) == nil {
		t.Error("closure memory was collected")
	}
	if m.Payload(captured) == nil {
		t.Error("captured object was collected")
	}
}

// 清除完成后所有存活对象的标记位为零
func TestSweepClearsMarks(t *testing.T) {
	prgm, _ := testProgram()
	m := newTestManager(prgm)

	opStack := make([]uintptr, 4)
	for i := 0; i < 4; i++ {
		opStack[i] = m.AllocateObject(0, nil, -1, false)
	}
	m.CollectAllMemory(opStack, 3)

	m.lock(&m.allocatedLock)
	for ptr, alloc := range m.allocated {
		if alloc.header()[markedSlot] != 0 {
			t.Errorf("allocation %#x still marked after sweep", ptr)
		}
	}
	m.unlock(&m.allocatedLock)
}

// 回收后的 chunk 复用时重新清零
func TestReusedChunkZeroFilled(t *testing.T) {
	prgm, _ := testProgram()
	m := newTestManager(prgm)

	ptr := m.AllocateObject(0, nil, -1, false)
	m.Payload(ptr)[0] = 0xDEAD
	m.CollectAllMemory(nil, -1)

	ptr2 := m.AllocateObject(0, nil, -1, false)
	for i, word := range m.Payload(ptr2) {
		if word != 0 {
			t.Errorf("reused payload[%d] = %#x, expected zero", i, word)
		}
	}
}

// 并发触发：同一时刻只有一次收集执行
func TestConcurrentCollectSingleRunner(t *testing.T) {
	prgm, _ := testProgram()
	m := NewMemoryManager(prgm, Config{})

	for i := 0; i < 32; i++ {
		m.AllocateObject(0, nil, -1, false)
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.CollectAllMemory(nil, -1)
		}()
	}
	wg.Wait()

	if got := m.AllocatedCount(); got != 0 {
		t.Errorf("allocated count = %d, want 0", got)
	}
}

// 连续无效回收触发水位左移三位
func TestAdaptiveWatermarkGrowth(t *testing.T) {
	prgm, _ := testProgram()
	m := newTestManager(prgm)

	opStack := make([]uintptr, 8)
	for i := 0; i < 8; i++ {
		opStack[i] = m.AllocateObject(0, nil, -1, false)
	}

	before := m.MemMaxSize()
	// 全部存活：每轮都是无效回收
	for i := 0; i <= UncollectedCount; i++ {
		m.CollectAllMemory(opStack, 7)
	}

	if got := m.MemMaxSize(); got != before<<3 {
		t.Errorf("memMaxSize = %d, want %d", got, before<<3)
	}
}

// 越过水位的分配自动触发收集
func TestAllocationTriggersCollection(t *testing.T) {
	prgm, _ := testProgram()
	m := NewMemoryManager(prgm, Config{Serial: true, MemMax: 64})

	// 无根：越位分配时此前的对象全部被回收
	for i := 0; i < 64; i++ {
		m.AllocateObject(0, nil, -1, true)
	}

	if got := m.GetStats().TotalCollections; got == 0 {
		t.Error("expected at least one collection to be triggered")
	}
	if got := m.AllocatedCount(); got >= 64 {
		t.Errorf("allocated count = %d, expected collection to reclaim", got)
	}
}

// ============================================================================
// 运行时转换检查
// ============================================================================

func TestValidObjectCast(t *testing.T) {
	// 层级：2(List) -> 1(Collection) -> 0(Base)；List 实现接口 3(Iter)
	prgm := NewStackProgram()
	prgm.AddClass(NewStackClass(0, "Base", 8, nil))
	prgm.AddClass(NewStackClass(1, "Collection", 8, nil))
	prgm.AddClass(NewStackClass(2, "List", 8, nil))
	prgm.AddClass(NewStackClass(3, "Iter", 8, nil))

	clsHierarchy := []int{-1, 0, 1, 0}
	clsInterfaces := [][]int{nil, nil, {3, InfEnding}, nil}
	prgm.SetHierarchy(clsHierarchy, clsInterfaces)

	m := newTestManager(prgm)
	list := m.AllocateObject(2, nil, -1, false)

	tests := []struct {
		name string
		toID int
		ok   bool
	}{
		{"self", 2, true},
		{"parent", 1, true},
		{"root", 0, true},
		{"interface", 3, true},
		{"unrelated", 99, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.ValidObjectCast(list, tt.toID, clsHierarchy, clsInterfaces)
			if tt.ok && got != list {
				t.Errorf("ValidObjectCast(%d) = %#x, want %#x", tt.toID, got, list)
			}
			if !tt.ok && got != 0 {
				t.Errorf("ValidObjectCast(%d) = %#x, want nil", tt.toID, got)
			}
		})
	}

	if got := m.ValidObjectCast(0xBAD, 0, clsHierarchy, clsInterfaces); got != 0 {
		t.Errorf("ValidObjectCast on unmanaged pointer = %#x, want nil", got)
	}
}

// ============================================================================
// 调度缓存
// ============================================================================

func TestDispatchCache(t *testing.T) {
	cls := NewStackClass(0, "List", 8, nil)
	method := NewStackMethod(4, "List:Next", nil, false, false)

	cache := NewDispatchCache()
	if got := cache.GetVirtualEntry(cls, 3, 4); got != nil {
		t.Errorf("empty cache returned %v", got)
	}

	cache.AddVirtualEntry(cls, 3, 4, method)
	if got := cache.GetVirtualEntry(cls, 3, 4); got != method {
		t.Errorf("GetVirtualEntry = %v, want %v", got, method)
	}
	if got := cache.GetVirtualEntry(cls, 3, 5); got != nil {
		t.Errorf("different method id hit = %v", got)
	}
	if got := cache.Size(); got != 1 {
		t.Errorf("Size = %d, want 1", got)
	}
}

func TestDispatchCacheConcurrent(t *testing.T) {
	cls := NewStackClass(0, "List", 8, nil)
	method := NewStackMethod(4, "List:Next", nil, false, false)
	cache := NewDispatchCache()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				cache.AddVirtualEntry(cls, id, j, method)
				cache.GetVirtualEntry(cls, id, j)
			}
		}(i)
	}
	wg.Wait()

	if got := cache.Size(); got != 8*100 {
		t.Errorf("Size = %d, want %d", got, 8*100)
	}
}
