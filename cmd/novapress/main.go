// novapress is the operator CLI for the NovaPress synthesis API.
//
// Usage:
//
//	novapress admin status|start|stop|reset-lock|stats|sources|watch
//	novapress live [--hours=24] [--limit=20] [--all]
//	novapress synthesis show <id> [--persona=<name>]
//	novapress trending live-count|categories|topic <id>|breaking
//	novapress causal graph|preview|historical|predictions <id>
//	novapress intel topics|topic|entities|entity|graph|stats
//	novapress auth login|register|logout|profile|refresh
//	novapress follow add|remove|list|check
//	novapress serve
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command tree and turns a panic into the recovery screen.
func run(ctx context.Context, stderr io.Writer) (code int) {
	defer func() {
		if r := recover(); r != nil {
			logPanic(r)
			printRecovery(stderr)
			code = 2
		}
	}()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}

func logPanic(r any) {
	appLogger().Error("panic", "panic", r, "stack", string(debug.Stack()))
}

func printRecovery(w io.Writer) {
	fmt.Fprintln(w, "Une erreur inattendue est survenue.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  réessayer  relancez la même commande")
	fmt.Fprintln(w, "  accueil    novapress --help")
}
