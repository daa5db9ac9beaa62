package commands

import (
	"os"
	"os/signal"
	"syscall"
)

// notifySignals and stopSignals isolate the syscall-specific signal set
// installSignalHandling listens for, the same SIGINT/SIGTERM pair the
// teacher's single-stage signal.NotifyContext usage listens for.
func notifySignals(ch chan<- os.Signal) {
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
}

func stopSignals(ch chan<- os.Signal) {
	signal.Stop(ch)
}
