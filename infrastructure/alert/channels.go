package alert

import (
	"fmt"
	"log"
	"os"
)

// LogChannel writes alerts through the standard log package, suitable
// for piping into journald.
type LogChannel struct {
	logger *log.Logger
	name   string
}

// NewLogChannel creates a log channel. A nil output defaults to stdout.
func NewLogChannel(name string, output *os.File) *LogChannel {
	if output == nil {
		output = os.Stdout
	}
	return &LogChannel{
		logger: log.New(output, "[ALERT] ", log.LstdFlags),
		name:   name,
	}
}

// Send writes the alert as one log line.
func (c *LogChannel) Send(alert Alert) error {
	msg := fmt.Sprintf("[%s] %s", alert.Level, alert.Message)
	if len(alert.Fields) > 0 {
		msg += " |"
		for k, v := range alert.Fields {
			msg += fmt.Sprintf(" %s=%v", k, v)
		}
	}
	c.logger.Println(msg)
	return nil
}

// Name returns the channel name.
func (c *LogChannel) Name() string {
	return c.name
}

// ConsoleChannel prints alerts to stdout with ANSI level colors.
type ConsoleChannel struct {
	name string
}

// NewConsoleChannel creates a console channel.
func NewConsoleChannel(name string) *ConsoleChannel {
	return &ConsoleChannel{name: name}
}

// Send prints the alert with its level colored by severity.
func (c *ConsoleChannel) Send(alert Alert) error {
	const reset = "\033[0m"
	color := reset
	switch alert.Level {
	case "INFO":
		color = "\033[32m"
	case "WARNING":
		color = "\033[33m"
	case "ERROR":
		color = "\033[31m"
	case "CRITICAL":
		color = "\033[35m"
	}

	msg := fmt.Sprintf("%s[%s]%s %s - %s",
		color,
		alert.Level,
		reset,
		alert.Timestamp.Format("2006-01-02 15:04:05"),
		alert.Message,
	)
	if len(alert.Fields) > 0 {
		msg += " |"
		for k, v := range alert.Fields {
			msg += fmt.Sprintf(" %s=%v", k, v)
		}
	}
	fmt.Println(msg)
	return nil
}

// Name returns the channel name.
func (c *ConsoleChannel) Name() string {
	return c.name
}

// MockChannel records alerts for test assertions.
type MockChannel struct {
	name      string
	alerts    []Alert
	shouldErr bool
}

// NewMockChannel creates an empty mock channel.
func NewMockChannel(name string) *MockChannel {
	return &MockChannel{name: name, alerts: make([]Alert, 0)}
}

// Send records the alert, or fails when SetShouldError(true) was called.
func (c *MockChannel) Send(alert Alert) error {
	if c.shouldErr {
		return fmt.Errorf("mock channel error")
	}
	c.alerts = append(c.alerts, alert)
	return nil
}

// Name returns the channel name.
func (c *MockChannel) Name() string {
	return c.name
}

// Alerts returns everything received so far.
func (c *MockChannel) Alerts() []Alert {
	return c.alerts
}

// SetShouldError makes subsequent sends fail.
func (c *MockChannel) SetShouldError(shouldErr bool) {
	c.shouldErr = shouldErr
}

// Clear drops all recorded alerts.
func (c *MockChannel) Clear() {
	c.alerts = c.alerts[:0]
}

// Count returns how many alerts were recorded.
func (c *MockChannel) Count() int {
	return len(c.alerts)
}
