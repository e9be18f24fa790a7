package app

// Shutdown releases everything Run does not stop itself. Components driven by
// Run's context are already stopped when it is called.
func (a *App) Shutdown() {
	a.logger.Info("application-shutting-down")

	a.healthChecker.SetReady(false)

	// Close history
	closeSink(a.history, a.logger)

	// Close chain client and metadata cache
	a.chain.Close()

	a.logger.Info("application-shutdown-complete")
}
