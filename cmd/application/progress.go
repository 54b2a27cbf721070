//go:build tinygo

package main

import (
	"log/slog"

	"aqmon/fieldupdate/internal/updatemgr"
)

// logProgress is the updatemgr.ProgressObserver the application wires in:
// it turns each update_progress_changed callback into one structured log
// line in a "component:event" shape.
type logProgress struct {
	logger *slog.Logger
}

func (p logProgress) UpdateProgressChanged(status updatemgr.ProgressStatus, bytesWritten int) {
	p.logger.Info("update:progress",
		slog.String("status", status.String()),
		slog.Int("bytes_written", bytesWritten),
	)
}
