package transport

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"

	"go.uber.org/multierr"

	contractx "github.com/tanpawarit/Resilient-Tool-Gateway/agent/contract"
)

// Pool hands one Session to each concurrent caller. A caller's failure only
// ever drops its own Session.
type Pool struct {
	sessions []*Session
	idle     chan *Session
	closed   atomic.Bool
}

var _ contractx.ConnPool = (*Pool)(nil)

func NewPool(name string, size int, connect Connector, opts ...Option) *Pool {
	if size <= 0 {
		size = 1
	}
	p := &Pool{
		sessions: make([]*Session, 0, size),
		idle:     make(chan *Session, size),
	}
	for i := 0; i < size; i++ {
		sessionName := name
		if size > 1 {
			sessionName = name + "-" + strconv.Itoa(i)
		}
		s := NewSession(sessionName, connect, opts...)
		p.sessions = append(p.sessions, s)
		p.idle <- s
	}
	return p
}

// Do lends a Session to fn and returns it on every exit path.
func (p *Pool) Do(ctx context.Context, fn func(contractx.Conn) error) error {
	if p.closed.Load() {
		return fmt.Errorf("%w: pool closed", contractx.ErrConnection)
	}

	var s *Session
	select {
	case s = <-p.idle:
	case <-ctx.Done():
		return fmt.Errorf("%w: acquire session: %v", contractx.ErrConnection, context.Cause(ctx))
	}
	defer func() { p.idle <- s }()

	return fn(s)
}

func (p *Pool) Size() int {
	return len(p.sessions)
}

// Close disconnects every session. Sessions currently lent out are closed too.
func (p *Pool) Close() error {
	p.closed.Store(true)

	var err error
	for _, s := range p.sessions {
		err = multierr.Append(err, s.Disconnect())
	}
	return err
}
