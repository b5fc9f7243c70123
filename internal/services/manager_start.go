package services

import (
	"context"
	"errors"
	"fmt"
)

// Start runs the sources, opens every mirror and serves HTTP in the
// background. Serving errors are reported on Errors.
func (m *Manager) Start(bgCtx context.Context) error {
	if !m.initialized || m.server == nil {
		return errors.New("services not initialized")
	}
	if m.cancel != nil {
		return errors.New("services already started")
	}

	for _, start := range m.starters {
		if err := start(bgCtx); err != nil {
			return fmt.Errorf("failed to start source: %w", err)
		}
	}
	for _, mr := range m.mirrors {
		if err := mr.Open(bgCtx); err != nil {
			return fmt.Errorf("failed to open mirror for %q: %w", mr.Collection(), err)
		}
	}

	ctx, cancel := context.WithCancel(bgCtx)
	m.cancel = cancel

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.server.Start(ctx); err != nil {
			m.logger.Error("HTTP server failed", "error", err)
			select {
			case m.errCh <- err:
			default:
			}
		}
	}()
	return nil
}
