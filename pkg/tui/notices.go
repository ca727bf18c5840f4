package tui

import (
	"errors"
	"log/slog"

	"github.com/greg-hellings/stateview/pkg/nifi"
)

// Notices collects the messages the viewer raises (failed requests and
// informational dialogs) so the model can present them as overlays. It
// implements viewer.ErrorHandler and viewer.Dialogs.
type Notices struct {
	err  error
	info string
}

// NewNotices creates an empty notice holder.
func NewNotices() *Notices {
	return &Notices{}
}

// HandleError records a failed request.
func (n *Notices) HandleError(err error) {
	slog.Debug("Request failed", "error", err)
	n.err = err
}

// ShowOkDialog records an informational message.
func (n *Notices) ShowOkDialog(content string) {
	n.info = content
}

// Pending reports whether a notice is waiting to be dismissed.
func (n *Notices) Pending() bool {
	return n.err != nil || n.info != ""
}

// Err returns the pending error, if any.
func (n *Notices) Err() error {
	return n.err
}

// Text returns the message to display for the pending notice.
func (n *Notices) Text() string {
	if n.err != nil {
		var apiErr *nifi.APIError
		if errors.As(n.err, &apiErr) {
			return apiErr.Message()
		}
		return n.err.Error()
	}
	return n.info
}

// Dismiss clears the pending notice.
func (n *Notices) Dismiss() {
	n.err = nil
	n.info = ""
}
