package services

import (
	"context"
)

// Shutdown stops serving, closes the live streams and mirrors, then
// releases the backend and pubsub connections in reverse order of creation.
func (m *Manager) Shutdown(ctx context.Context) {
	if m.gateway != nil {
		m.logger.Info("Closing view streams...")
		if err := m.gateway.Shutdown(ctx); err != nil {
			m.logger.Warn("Error closing view streams", "error", err)
		}
	}
	if m.server != nil {
		if err := m.server.Stop(ctx); err != nil {
			m.logger.Warn("Error stopping HTTP server", "error", err)
		}
	}
	if m.cancel != nil {
		m.cancel()
	}

	m.logger.Info("Waiting for background tasks to finish...")
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("Timeout waiting for background tasks")
	}

	for _, mr := range m.mirrors {
		mr.Close()
	}
	if m.limiter != nil {
		m.limiter.Stop()
	}
	for i := len(m.closers) - 1; i >= 0; i-- {
		if err := m.closers[i](ctx); err != nil {
			m.logger.Warn("Error during shutdown", "error", err)
		}
	}
	m.closers = nil
	m.logger.Info("Shutdown complete")
}
