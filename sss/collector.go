package sss

import (
	"fmt"
	"sync"

	"github.com/ruteri/shamir-mnemonic/interfaces"
)

// Collector accepts share mnemonics one at a time, typically from different
// holders over some period, and reconstructs the secret as soon as enough
// distinct shares have arrived. It is safe for concurrent use.
type Collector struct {
	engine *Engine

	mu        sync.Mutex
	received  map[byte]interfaces.Mnemonic
	threshold int
	secret    interfaces.Mnemonic
	done      chan struct{}
}

// NewCollector returns a collector that decodes shares with the given engine.
func NewCollector(engine *Engine) *Collector {
	return &Collector{
		engine:   engine,
		received: make(map[byte]interfaces.Mnemonic),
		done:     make(chan struct{}),
	}
}

// Submit validates one share mnemonic and records it. It returns the number
// of shares still needed, which is zero once the secret has been recovered.
// Submitting the same share index twice is an error; submitting anything
// after recovery completed is an error.
func (c *Collector) Submit(words interfaces.Mnemonic) (remaining int, err error) {
	detail, err := c.engine.DecodeShare(words)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.secret != nil {
		return 0, fmt.Errorf("%w: secret already recovered", interfaces.ErrMalformedShare)
	}
	if _, ok := c.received[detail.Index]; ok {
		return 0, fmt.Errorf("%w: share index %d was already submitted", interfaces.ErrMalformedShare, detail.Index)
	}

	c.received[detail.Index] = words
	if int(detail.Threshold) > c.threshold {
		c.threshold = int(detail.Threshold)
	}

	if len(c.received) < c.threshold {
		return c.threshold - len(c.received), nil
	}

	shares := make([]interfaces.Mnemonic, 0, len(c.received))
	for _, s := range c.received {
		shares = append(shares, s)
	}
	secret, err := c.engine.Recover(shares)
	if err != nil {
		return c.threshold - len(c.received), err
	}

	c.secret = secret
	c.received = nil
	close(c.done)
	return 0, nil
}

// Ready reports whether the secret has been recovered.
func (c *Collector) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.secret != nil
}

// Done returns a channel that is closed once the secret has been recovered.
func (c *Collector) Done() <-chan struct{} {
	return c.done
}

// Secret returns the recovered secret mnemonic, or an error if recovery has
// not completed yet.
func (c *Collector) Secret() (interfaces.Mnemonic, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.secret == nil {
		return nil, fmt.Errorf("%w: %d more shares needed", interfaces.ErrInsufficientShares, c.threshold-len(c.received))
	}
	return c.secret, nil
}
