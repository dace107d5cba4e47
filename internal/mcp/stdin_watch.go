package mcp

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// parentPollInterval is how often WatchParent checks the parent PID.
var parentPollInterval = 2 * time.Second

// WatchParent cancels ctx through cancelFn once the parent process goes
// away, so a server started by an editor does not outlive it.
//
// It must not read stdin: the SDK's StdioTransport owns it, and stolen
// bytes would corrupt the JSON-RPC stream.
//
// The goroutine exits when ctx is canceled or parent death is detected.
func WatchParent(ctx context.Context, logger *slog.Logger, cancelFn context.CancelFunc) {
	ppid := os.Getppid()
	go func() {
		t := time.NewTicker(parentPollInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if os.Getppid() != ppid {
					logger.Warn("parent process exited, shutting down", "parent_pid", ppid)
					cancelFn()
					return
				}
			}
		}
	}()
}
