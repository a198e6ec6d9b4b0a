package app

import (
	"go.uber.org/zap"
)

// Shutdown releases the resources Run does not own through its group. It is
// called by Run after every loop has returned, so the sink sees the final
// execution before it drains.
func (a *App) Shutdown() {
	a.logger.Info("application-shutting-down")
	a.healthChecker.SetReady(false)

	if a.wsConnector != nil {
		err := a.wsConnector.Close()
		if err != nil {
			a.logger.Error("ws-connector-close-error", zap.Error(err))
		}
	}

	err := a.prices.Close()
	if err != nil {
		a.logger.Error("price-cache-close-error", zap.Error(err))
	}

	err = a.sink.Close()
	if err != nil {
		a.logger.Error("sink-close-error", zap.Error(err))
	}

	a.healthCache.Close()

	st := a.engine.Status()
	a.logger.Info("application-shutdown-complete",
		zap.Int64("cycles", st.Cycles),
		zap.Int64("executions", st.Executions))
}
