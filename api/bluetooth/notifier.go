package bluetooth

// Notifier describes the user-facing indications a session can raise.
type Notifier interface {
	// ShowProgress displays a "waiting" indication.
	ShowProgress(title, message string)

	// DismissProgress removes the "waiting" indication.
	DismissProgress()

	// Notify displays a short, transient message.
	Notify(message string)
}

// NopNotifier ignores all indications.
type NopNotifier struct{}

// ShowProgress does not do anything.
func (NopNotifier) ShowProgress(string, string) {}

// DismissProgress does not do anything.
func (NopNotifier) DismissProgress() {}

// Notify does not do anything.
func (NopNotifier) Notify(string) {}
