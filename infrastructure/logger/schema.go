package logger

import (
	"fmt"
	"sort"
	"strings"
)

// Schema names the fields every instance of an event must carry, so
// downstream log consumers can rely on them being present.
type Schema struct {
	Event    string
	Required []string
}

var schemas = map[string]Schema{
	"quote_submitted": {
		Event:    "quote_submitted",
		Required: []string{"symbol", "bid", "ask", "bid_size", "ask_size"},
	},
	"quote_pulled": {
		Event:    "quote_pulled",
		Required: []string{"symbol", "reason"},
	},
	"fill": {
		Event:    "fill",
		Required: []string{"symbol", "side", "quantity", "price"},
	},
	"hedge_order": {
		Event:    "hedge_order",
		Required: []string{"underlying", "quantity", "urgency"},
	},
	"hedge_skipped": {
		Event:    "hedge_skipped",
		Required: []string{"underlying", "reason"},
	},
	"risk_breach": {
		Event:    "risk_breach",
		Required: []string{"kind", "current", "threshold"},
	},
	"position_limit": {
		Event:    "position_limit",
		Required: []string{"kind", "level", "current", "limit"},
	},
	"halt": {
		Event:    "halt",
		Required: []string{"reason"},
	},
}

// KnownEvents lists the schema'd event names, for docs and tests.
func KnownEvents() []string {
	names := make([]string, 0, len(schemas))
	for k := range schemas {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// ValidateEvent checks fields against the schema for event. Events
// without a schema pass. A failure never suppresses the log entry; the
// helpers annotate it instead.
func ValidateEvent(event string, fields map[string]interface{}) error {
	s, ok := schemas[event]
	if !ok {
		return nil
	}
	var missing []string
	for _, key := range s.Required {
		if _, exists := fields[key]; !exists {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("event %s missing fields: %s", event, strings.Join(missing, ","))
	}
	return nil
}
