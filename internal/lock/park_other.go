//go:build !linux

package lock

import "sync/atomic"

// parker emulates wait/notify with a single wake token. A token left in the
// buffer by an unlock that raced with a sleeper is consumed on the next wait,
// so wakeups are never lost.
type parker struct {
	token chan struct{}
}

func newParker() parker {
	return parker{token: make(chan struct{}, 1)}
}

func (p parker) wait(addr *int32, val int32) {
	if atomic.LoadInt32(addr) != val {
		return
	}
	<-p.token
}

func (p parker) wake(_ *int32) {
	select {
	case p.token <- struct{}{}:
	default:
	}
}
