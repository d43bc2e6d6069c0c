package common

import "errors"

// ErrModulePaused is returned by Guard while a module's emergency-halt
// switch is engaged.
var ErrModulePaused = errors.New("module paused")

// PauseView exposes the governance pause switches to the native engines.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects mutations for paused modules. A nil view means no pause
// surface is wired, which reads as "never paused".
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
