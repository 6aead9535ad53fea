package cache

import (
	"container/list"
	"sync"
	"time"
)

type LRUOpts struct {
	Size int
	// TTL applies to entries put without WithTTL. Zero means no expiry.
	TTL time.Duration
}

type entry struct {
	key       string
	val       any
	expiresAt time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

type (
	getReq struct {
		key  string
		resp chan getResp
	}
	getResp struct {
		val any
		ok  bool
	}
	putReq struct {
		key string
		val any
		ttl time.Duration
	}
)

// LRU is a size bounded cache owned by a single goroutine. All operations
// are channel requests to that goroutine, so LRU is safe for concurrent use.
// After Close every Get misses and Put and Delete are dropped.
type LRU struct {
	getCh    chan getReq
	putCh    chan putReq
	delCh    chan string
	done     chan struct{}
	closeOne sync.Once
	ttl      time.Duration
}

func NewLRU(opts LRUOpts) *LRU {
	if opts.Size <= 0 {
		opts.Size = 128
	}

	l := &LRU{
		getCh: make(chan getReq),
		putCh: make(chan putReq),
		delCh: make(chan string),
		done:  make(chan struct{}),
		ttl:   opts.TTL,
	}

	go l.run(opts.Size)

	return l
}

func (l *LRU) Get(key string) (any, bool) {
	resp := make(chan getResp, 1)
	select {
	case l.getCh <- getReq{key: key, resp: resp}:
	case <-l.done:
		return nil, false
	}
	r := <-resp
	return r.val, r.ok
}

func (l *LRU) Put(key string, val any, opts ...PutOption) {
	o := PutOptions{TTL: l.ttl}
	for _, opt := range opts {
		opt(&o)
	}
	select {
	case l.putCh <- putReq{key: key, val: val, ttl: o.TTL}:
	case <-l.done:
	}
}

func (l *LRU) Delete(key string) {
	select {
	case l.delCh <- key:
	case <-l.done:
	}
}

// Close stops the owning goroutine. It is safe to call more than once.
func (l *LRU) Close() {
	l.closeOne.Do(func() { close(l.done) })
}

func (l *LRU) run(size int) {
	ll := list.New()
	items := make(map[string]*list.Element)

	remove := func(ele *list.Element) {
		ll.Remove(ele)
		delete(items, ele.Value.(*entry).key)
	}

	for {
		select {
		case <-l.done:
			return

		case req := <-l.getCh:
			ele, ok := items[req.key]
			if ok && ele.Value.(*entry).expired(time.Now()) {
				remove(ele)
				ok = false
			}
			if !ok {
				req.resp <- getResp{}
				continue
			}
			ll.MoveToFront(ele)
			req.resp <- getResp{val: ele.Value.(*entry).val, ok: true}

		case req := <-l.putCh:
			var expiresAt time.Time
			if req.ttl > 0 {
				expiresAt = time.Now().Add(req.ttl)
			}
			if ele, ok := items[req.key]; ok {
				ll.MoveToFront(ele)
				e := ele.Value.(*entry)
				e.val, e.expiresAt = req.val, expiresAt
				continue
			}
			items[req.key] = ll.PushFront(&entry{key: req.key, val: req.val, expiresAt: expiresAt})
			if ll.Len() > size {
				remove(ll.Back())
			}

		case key := <-l.delCh:
			if ele, ok := items[key]; ok {
				remove(ele)
			}
		}
	}
}

var _ Cache = (*LRU)(nil)
