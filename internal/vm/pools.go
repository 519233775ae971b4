// pools.go - 按大小分级的自由链
//
// 请求大小向上取整到 8B..4MB 的二次幂档位，更大请求进 16MB 档。
// 每个档位一条 LIFO 自由栈；档位首次命中时整块申请
// MemPoolListMax 个 chunk 的 slab 一次性压栈。
// chunk 弹出时清零（对象初始化语义依赖零填充）。

package vm

// 档位边界
const (
	minChunkSize      = 8
	maxChunkSize      = 4 * 1024 * 1024
	overflowChunkSize = 16 * 1024 * 1024

	// 每个 slab 的 chunk 数
	MemPoolListMax = 64
)

// allocSize 请求字节数对应的档位大小
func allocSize(size int) int {
	if size <= minChunkSize {
		return minChunkSize
	}
	if size > maxChunkSize {
		return overflowChunkSize
	}
	chunk := minChunkSize
	for chunk < size {
		chunk <<= 1
	}
	return chunk
}

// freeChunk 自由链上的一个 chunk
type freeChunk struct {
	words []uintptr // 含首部 chunk 大小字
}

// freeMemoryPool 按档位组织的自由链
type freeMemoryPool struct {
	// 档位大小 -> LIFO 栈
	lists map[int][]*freeChunk
	// 档位大小 -> slab（保持底层内存存活）
	slabs map[int][][]uintptr

	cacheSize int // 缓存的总字节数
}

// newFreeMemoryPool 创建自由链
func newFreeMemoryPool() *freeMemoryPool {
	return &freeMemoryPool{
		lists: make(map[int][]*freeChunk),
		slabs: make(map[int][][]uintptr),
	}
}

// get 取一个归一化到 chunkSize 档位的 chunk；档位空时补一块 slab
func (p *freeMemoryPool) get(chunkSize int) *freeChunk {
	list := p.lists[chunkSize]
	if len(list) == 0 {
		// 懒分配 slab：一次切出 MemPoolListMax 个 chunk
		words := chunkSize / wordBytes
		slab := make([]uintptr, MemPoolListMax*words)
		p.slabs[chunkSize] = append(p.slabs[chunkSize], slab)

		list = make([]*freeChunk, 0, MemPoolListMax)
		for i := 0; i < MemPoolListMax; i++ {
			list = append(list, &freeChunk{words: slab[i*words : (i+1)*words]})
		}
	}

	chunk := list[len(list)-1]
	p.lists[chunkSize] = list[:len(list)-1]
	if p.cacheSize >= chunkSize {
		p.cacheSize -= chunkSize
	}

	// 零填充：调用方依赖零初始化
	for i := range chunk.words {
		chunk.words[i] = 0
	}
	chunk.words[0] = uintptr(chunkSize)
	return chunk
}

// put 归还 chunk（按首部记录的档位）
func (p *freeMemoryPool) put(chunk *freeChunk) {
	chunkSize := int(chunk.words[0])
	p.lists[chunkSize] = append(p.lists[chunkSize], chunk)
	p.cacheSize += chunkSize
}

// clear 全部归还底层堆
func (p *freeMemoryPool) clear() {
	p.lists = make(map[int][]*freeChunk)
	p.slabs = make(map[int][][]uintptr)
	p.cacheSize = 0
}
