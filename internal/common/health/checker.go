package health

import (
	"sync"

	"github.com/pkg/errors"
)

// Checker is implemented by anything whose health can be probed.
type Checker interface {
	Check() error
}

// StartupCompleteChecker fails until MarkComplete is called.
type StartupCompleteChecker struct {
	mu       sync.Mutex
	complete bool
}

func NewStartupCompleteChecker() *StartupCompleteChecker {
	return &StartupCompleteChecker{}
}

func (c *StartupCompleteChecker) MarkComplete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.complete = true
}

func (c *StartupCompleteChecker) Check() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.complete {
		return errors.New("startup is not complete")
	}
	return nil
}

// FuncChecker adapts a function to the Checker interface.
type FuncChecker func() error

func (f FuncChecker) Check() error {
	return f()
}
