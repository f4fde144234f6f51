package notify

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Handler 进度事件处理器
type Handler func(Progress)

// subscriptionCounter 用于生成唯一订阅 ID，避免并发碰撞
var subscriptionCounter int64

// BusSink is an asynchronous in-process progress bus. Emit drops records when
// the buffer is full; handlers run on their own goroutines and may not block
// the pump.
type BusSink struct {
	mu       sync.RWMutex
	handlers map[Event]map[string]Handler
	events   chan Progress
	done     chan struct{}
	stopOnce sync.Once
	logger   *zap.Logger
}

// NewBusSink creates a bus with the given buffer size and starts its pump.
func NewBusSink(buffer int, logger *zap.Logger) *BusSink {
	if buffer <= 0 {
		buffer = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &BusSink{
		handlers: make(map[Event]map[string]Handler),
		events:   make(chan Progress, buffer),
		done:     make(chan struct{}),
		logger:   logger.With(zap.String("component", "notify_bus")),
	}
	go b.pump()
	return b
}

// Emit implements Sink.
func (b *BusSink) Emit(p Progress) {
	select {
	case b.events <- p:
	case <-b.done:
	default:
		// 缓冲满时丢弃
	}
}

// Subscribe registers a handler for one event type and returns an
// unsubscribe token.
func (b *BusSink) Subscribe(event Event, h Handler) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handlers[event] == nil {
		b.handlers[event] = make(map[string]Handler)
	}
	id := fmt.Sprintf("%s-%d", event, atomic.AddInt64(&subscriptionCounter, 1))
	b.handlers[event][id] = h
	return id
}

// Unsubscribe removes a subscription by token.
func (b *BusSink) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for event, handlers := range b.handlers {
		if _, ok := handlers[id]; ok {
			delete(handlers, id)
			if len(handlers) == 0 {
				delete(b.handlers, event)
			}
			return
		}
	}
}

func (b *BusSink) pump() {
	for {
		select {
		case p := <-b.events:
			b.mu.RLock()
			src := b.handlers[p.Event]
			handlers := make([]Handler, 0, len(src))
			for _, h := range src {
				handlers = append(handlers, h)
			}
			b.mu.RUnlock()

			for _, handler := range handlers {
				h := handler
				go func() {
					defer func() {
						if r := recover(); r != nil {
							b.logger.Error("progress handler panicked", zap.Any("recover", r))
						}
					}()
					h(p)
				}()
			}
		case <-b.done:
			return
		}
	}
}

// Stop shuts the pump down. Pending buffered events are dropped.
func (b *BusSink) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
	})
}
