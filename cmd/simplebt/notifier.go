package main

import (
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

// spinnerNotifier displays waiting progress as a terminal spinner,
// and notifications as colored messages.
type spinnerNotifier struct {
	out io.Writer

	bar  *progressbar.ProgressBar
	stop chan struct{}

	mu sync.Mutex
}

func newSpinnerNotifier(out io.Writer) *spinnerNotifier {
	return &spinnerNotifier{out: out}
}

// ShowProgress starts a spinner with the provided title and message.
// A spinner that is already shown is replaced.
func (n *spinnerNotifier) ShowProgress(title, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.dismiss()

	description := message
	if title != "" {
		description = title + ": " + message
	}

	n.bar = progressbar.NewOptions(-1,
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWriter(n.out),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionThrottle(100*time.Millisecond),
	)
	n.stop = make(chan struct{})

	go spin(n.bar, n.stop)
}

// DismissProgress stops and clears the spinner, if shown.
func (n *spinnerNotifier) DismissProgress() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.dismiss()
}

// Notify prints a short notification.
func (n *spinnerNotifier) Notify(message string) {
	printInfo(message)
}

func (n *spinnerNotifier) dismiss() {
	if n.bar == nil {
		return
	}

	close(n.stop)
	_ = n.bar.Clear()

	n.bar, n.stop = nil, nil
}

// spin advances the spinner until stop is closed.
func spin(bar *progressbar.ProgressBar, stop chan struct{}) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return

		case <-ticker.C:
			_ = bar.Add(1)
		}
	}
}
