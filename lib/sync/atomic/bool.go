package atomic

import "sync/atomic"

/*
	对原子变量的封装类，信号处理与事件循环之间共享的唯一状态
*/

type Boolean uint32

func (b *Boolean) Get() bool {
	return atomic.LoadUint32((*uint32)(b)) != 0
}

func (b *Boolean) Set(v bool) {
	if v {
		atomic.StoreUint32((*uint32)(b), 1)
	} else {
		atomic.StoreUint32((*uint32)(b), 0)
	}
}

// SetOnce 由 false 置为 true，只有第一次调用返回 true
func (b *Boolean) SetOnce() bool {
	return atomic.CompareAndSwapUint32((*uint32)(b), 0, 1)
}
