package hostapi

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/foothold/extension/internal/dispatcher"
)

// Gateway receives command strings from the host's scripting side and routes
// them to registered dispatcher handlers.
type Gateway struct {
	mu         sync.RWMutex
	version    string
	dispatcher *dispatcher.Dispatcher
}

// NewGateway creates a gateway that answers version queries with version.
func NewGateway(version string) *Gateway {
	if version == "" {
		version = "No version set"
	}
	return &Gateway{version: version}
}

// SetDispatcher sets the event dispatcher for handling commands
func (g *Gateway) SetDispatcher(d *dispatcher.Dispatcher) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dispatcher = d
}

// Dispatcher returns the configured dispatcher, or nil if not set
func (g *Gateway) Dispatcher() *dispatcher.Dispatcher {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.dispatcher
}

// Version returns the version string reported to the host.
func (g *Gateway) Version() string {
	return g.version
}

// Call handles one host call. The command may carry its arguments inline,
// separated by "|" (":SCENE:LOADED:|Level_1"), or as separate args.
func (g *Gateway) Call(command string, args ...string) string {
	name := command
	if i := strings.IndexByte(command, '|'); i >= 0 {
		name = command[:i]
		args = append(strings.Split(command[i+1:], "|"), args...)
	}

	d := g.Dispatcher()
	if d == nil || !d.HasHandler(name) {
		return formatDispatchResponse(name, nil, fmt.Errorf("no handler registered"))
	}

	result, err := d.Dispatch(dispatcher.Event{
		Command:   name,
		Args:      args,
		Timestamp: time.Now(),
	})
	return formatDispatchResponse(name, result, err)
}

// formatDispatchResponse formats the dispatcher result for the host
func formatDispatchResponse(command string, result any, err error) string {
	if err != nil {
		return fmt.Sprintf(`["error", %s]`, quote(err.Error()))
	}
	if result == nil {
		return `["ok"]`
	}
	if s, ok := result.(string); ok {
		return fmt.Sprintf(`["ok", %s]`, quote(s))
	}
	data, jerr := json.Marshal(result)
	if jerr != nil {
		return fmt.Sprintf(`["error", %s]`, quote(fmt.Sprintf("%s: unencodable result: %v", command, jerr)))
	}
	return fmt.Sprintf(`["ok", %s]`, data)
}

// quote wraps s in double quotes, doubling embedded quotes the way the host
// scripting language escapes them.
func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
