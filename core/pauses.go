package core

import (
	"errors"
	"sync"
)

var (
	errUnknownModule = errors.New("core: unknown pausable module")
	errFeedNotManual = errors.New("core: configured price feed is not manually settable")
)

// PauseSwitchboard is the governance pause surface. Engines consult it
// through the nativecommon.PauseView interface on every mutating entry.
type PauseSwitchboard struct {
	mu       sync.RWMutex
	switches map[string]bool
}

// NewPauseSwitchboard starts with every module running.
func NewPauseSwitchboard() *PauseSwitchboard {
	switches := make(map[string]bool, len(PausableModules))
	for _, module := range PausableModules {
		switches[module] = false
	}
	return &PauseSwitchboard{switches: switches}
}

// IsPaused satisfies nativecommon.PauseView.
func (p *PauseSwitchboard) IsPaused(module string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.switches[module]
}

// Set toggles a known module's switch.
func (p *PauseSwitchboard) Set(module string, paused bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.switches[module]; !ok {
		return errUnknownModule
	}
	p.switches[module] = paused
	return nil
}

// Snapshot copies the current switch state.
func (p *PauseSwitchboard) Snapshot() map[string]bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]bool, len(p.switches))
	for module, paused := range p.switches {
		out[module] = paused
	}
	return out
}
