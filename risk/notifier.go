package risk

import "fmt"

// AlertClient abstracts the alert fan-out so this package stays free of
// infrastructure imports.
type AlertClient interface {
	Send(level, message string)
}

// Notifier routes breach and halt events to the alert channels. Logging
// happens at the engine; this only feeds operator alerting.
type Notifier struct {
	alert AlertClient
}

func NewNotifier(alert AlertClient) *Notifier {
	return &Notifier{alert: alert}
}

// NotifyBreaches raises one alert per breach; loss breaches escalate.
func (n *Notifier) NotifyBreaches(breaches []RiskBreach) {
	if n == nil || n.alert == nil {
		return
	}
	for _, b := range breaches {
		level := "WARNING"
		if b.Kind == KindLoss {
			level = "CRITICAL"
		}
		n.alert.Send(level, b.String())
	}
}

// NotifyHalt announces the halt with its reason.
func (n *Notifier) NotifyHalt(reason string) {
	if n == nil || n.alert == nil {
		return
	}
	n.alert.Send("CRITICAL", "trading halted: "+reason)
}

// NotifyResume announces an operator reset.
func (n *Notifier) NotifyResume() {
	if n == nil || n.alert == nil {
		return
	}
	n.alert.Send("INFO", "trading resumed by explicit reset")
}

// NotifyHedgeSkipped reports a hedge suppressed by limit projection.
func (n *Notifier) NotifyHedgeSkipped(underlying string, detail string) {
	if n == nil || n.alert == nil {
		return
	}
	n.alert.Send("WARNING", fmt.Sprintf("hedge skipped on %s: %s", underlying, detail))
}
