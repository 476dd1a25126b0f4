package ui

import (
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"

	"wosexport/pkg/config"
)

const appName = "wosexport"

// NotificationSender delivers a desktop notification
type NotificationSender interface {
	Send(title, message string) error
}

// LinuxNotificationSender uses notify-send
type LinuxNotificationSender struct{}

func (l *LinuxNotificationSender) Send(title, message string) error {
	return exec.Command("notify-send", "--app-name="+appName, title, message).Run()
}

// MacOSNotificationSender uses osascript
type MacOSNotificationSender struct{}

func (m *MacOSNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`display notification %s with title %s`, appleScriptString(message), appleScriptString(title))
	return exec.Command("osascript", "-e", script).Run()
}

func appleScriptString(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}

// WindowsNotificationSender shows a toast through PowerShell
type WindowsNotificationSender struct{}

func (w *WindowsNotificationSender) Send(title, message string) error {
	escape := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace
	script := fmt.Sprintf(`
		[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] | Out-Null
		[Windows.Data.Xml.Dom.XmlDocument, Windows.Data.Xml.Dom.XmlDocument, ContentType = WindowsRuntime] | Out-Null
		$xml = @"
<toast>
	<visual>
		<binding template="ToastText02">
			<text id="1">%s</text>
			<text id="2">%s</text>
		</binding>
	</visual>
</toast>
"@
		$doc = [Windows.Data.Xml.Dom.XmlDocument]::new()
		$doc.LoadXml($xml)
		$toast = [Windows.UI.Notifications.ToastNotification]::new($doc)
		[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier("%s").Show($toast)
	`, escape(title), escape(message), appName)

	return exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", script).Run()
}

// Notifier prints run events and mirrors them as desktop notifications
// according to the notification settings
type Notifier struct {
	sender NotificationSender
	cfg    config.NotificationConfig
	out    io.Writer
}

// NewNotifier picks the sender for the current platform
func NewNotifier(cfg config.NotificationConfig) *Notifier {
	var sender NotificationSender
	switch runtime.GOOS {
	case "linux":
		sender = &LinuxNotificationSender{}
	case "darwin":
		sender = &MacOSNotificationSender{}
	case "windows":
		sender = &WindowsNotificationSender{}
	}
	return NewNotifierWithSender(cfg, sender, nil)
}

// NewNotifierWithSender uses sender and writes console lines to out, which
// defaults to Output
func NewNotifierWithSender(cfg config.NotificationConfig, sender NotificationSender, out io.Writer) *Notifier {
	return &Notifier{sender: sender, cfg: cfg, out: out}
}

func (n *Notifier) writer() io.Writer {
	if n.out != nil {
		return n.out
	}
	return Output
}

func (n *Notifier) send(title, message string) {
	if n.sender == nil || !n.cfg.Enabled {
		return
	}
	// Desktop notifications are best effort
	_ = n.sender.Send(title, message)
}

// SendNotification prints an informational event
func (n *Notifier) SendNotification(title, message string) {
	fmt.Fprintf(n.writer(), "\n%s: %s\n", Cyan(title), Yellow(message))
	n.send(title, message)
}

// SendSuccess reports a completed run
func (n *Notifier) SendSuccess(title, message string) {
	fmt.Fprintf(n.writer(), "\n%s: %s\n", Green(title), Green(message))
	if n.cfg.OnComplete {
		n.send(title, message)
	}
}

// SendError reports a failed run
func (n *Notifier) SendError(title, message string) {
	fmt.Fprintf(n.writer(), "\n%s: %s\n", Red(title), Red(message))
	if n.cfg.OnError {
		n.send(title, message)
	}
}
