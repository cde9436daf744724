package client

import "sync"

type queryResult struct {
	msg Message
	err error
}

type pendingQuery struct {
	cmd   Command
	reply chan queryResult
}

// pendingQueries correlates replies with outstanding queries. Queries of the
// same command are answered in the order they were registered.
type pendingQueries struct {
	mu     sync.Mutex
	queues map[Command][]*pendingQuery
}

func newPendingQueries() *pendingQueries {
	return &pendingQueries{queues: make(map[Command][]*pendingQuery)}
}

// add registers a query. It must happen before the verb is sent so a fast
// reply cannot overtake the registration.
func (p *pendingQueries) add(cmd Command) *pendingQuery {
	q := &pendingQuery{cmd: cmd, reply: make(chan queryResult, 1)}
	p.mu.Lock()
	p.queues[cmd] = append(p.queues[cmd], q)
	p.mu.Unlock()
	return q
}

// remove drops q if it is still waiting, so a late reply falls through to
// the message handler instead of answering a newer query.
func (p *pendingQueries) remove(q *pendingQuery) {
	p.mu.Lock()
	defer p.mu.Unlock()
	queue := p.queues[q.cmd]
	for i, other := range queue {
		if other == q {
			p.queues[q.cmd] = append(queue[:i:i], queue[i+1:]...)
			return
		}
	}
}

// resolve hands msg to the oldest query for cmd. It reports false when no
// query is waiting.
func (p *pendingQueries) resolve(cmd Command, msg Message) bool {
	p.mu.Lock()
	queue := p.queues[cmd]
	if len(queue) == 0 {
		p.mu.Unlock()
		return false
	}
	q := queue[0]
	p.queues[cmd] = queue[1:]
	p.mu.Unlock()

	q.reply <- queryResult{msg: msg}
	return true
}

func (p *pendingQueries) failAll(err error) {
	p.mu.Lock()
	queues := p.queues
	p.queues = make(map[Command][]*pendingQuery)
	p.mu.Unlock()

	for _, queue := range queues {
		for _, q := range queue {
			q.reply <- queryResult{err: err}
		}
	}
}

func (p *pendingQueries) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, queue := range p.queues {
		n += len(queue)
	}
	return n
}
