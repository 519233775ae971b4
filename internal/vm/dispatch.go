// dispatch.go - 虚方法调度缓存
//
// 记忆 (具体类, 虚类 id, 虚方法 id) -> 已解析方法。
// VM 生命周期内只增不删；读与写都持同一把互斥锁。

package vm

import (
	"sync"

	uatomic "go.uber.org/atomic"
)

// virtualEntryKey 调度键
type virtualEntryKey struct {
	concreteCls  *StackClass
	virtualClsID int
	virtualMthID int
}

// DispatchCache 虚方法调度缓存
type DispatchCache struct {
	table map[virtualEntryKey]*StackMethod
	lock  sync.Mutex

	hits   uatomic.Int64
	misses uatomic.Int64
}

// NewDispatchCache 创建调度缓存
func NewDispatchCache() *DispatchCache {
	return &DispatchCache{
		table: make(map[virtualEntryKey]*StackMethod, 64),
	}
}

// GetVirtualEntry 查缓存；未命中返回 nil
func (c *DispatchCache) GetVirtualEntry(concreteCls *StackClass, virtualClsID,
	virtualMthID int) *StackMethod {
	key := virtualEntryKey{concreteCls, virtualClsID, virtualMthID}

	c.lock.Lock()
	method, ok := c.table[key]
	c.lock.Unlock()

	if ok {
		c.hits.Inc()
		return method
	}
	c.misses.Inc()
	return nil
}

// AddVirtualEntry 安装一条解析结果
func (c *DispatchCache) AddVirtualEntry(concreteCls *StackClass, virtualClsID,
	virtualMthID int, method *StackMethod) {
	key := virtualEntryKey{concreteCls, virtualClsID, virtualMthID}

	c.lock.Lock()
	c.table[key] = method
	c.lock.Unlock()
}

// Size 返回缓存条数
func (c *DispatchCache) Size() int {
	c.lock.Lock()
	size := len(c.table)
	c.lock.Unlock()
	return size
}

// HitRate 命中率
func (c *DispatchCache) HitRate() float64 {
	hits := c.hits.Load()
	total := hits + c.misses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
