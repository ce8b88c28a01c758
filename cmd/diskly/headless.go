package main

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/sadopc/diskly/internal/coordinator"
	"github.com/sadopc/diskly/internal/util"
)

// headlessListener prints progress to a terminal and hands the terminal
// notification to the waiting caller.
type headlessListener struct {
	progress io.Writer // nil when stderr is not a terminal
	done     chan coordinator.Event

	mu     sync.Mutex
	errors int
}

func (l *headlessListener) OnEvent(ev coordinator.Event) {
	switch ev.Kind {
	case coordinator.EventDirectoryProgress:
		if l.progress != nil {
			l.mu.Lock()
			errs := l.errors
			l.mu.Unlock()
			fmt.Fprintf(l.progress, "\rScanning %s: %s items, %d errors...", ev.Root, util.FormatCount(ev.TotalScanned), errs)
		}
	case coordinator.EventEntryError:
		l.mu.Lock()
		l.errors++
		l.mu.Unlock()
	case coordinator.EventScanComplete, coordinator.EventScanError:
		if l.progress != nil {
			fmt.Fprintln(l.progress)
		}
		l.done <- ev
	}
}

// runHeadless scans root once and exports the tree. Cancelling ctx cancels
// the scan.
func runHeadless(ctx context.Context, opts []coordinator.Option, root, exportPath string, stdout, stderr io.Writer) error {
	l := &headlessListener{done: make(chan coordinator.Event, 1)}
	if isTerminal(stderr) {
		l.progress = stderr
	}

	coord := coordinator.New(append(opts, coordinator.WithListener(l))...)
	defer coord.Wait()

	if _, err := coord.StartScan(root); err != nil {
		return err
	}

	var ev coordinator.Event
	select {
	case ev = <-l.done:
	case <-ctx.Done():
		coord.CancelScan()
		ev = <-l.done
	}
	if ev.Kind == coordinator.EventScanError {
		return ev.Err
	}

	if err := export(ev.Node, ev.TotalScanned, exportPath, stdout); err != nil {
		return fmt.Errorf("export error: %w", err)
	}
	return nil
}
