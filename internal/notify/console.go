package notify

import (
	"fmt"
	"io"
	"sync"

	"example.com/obdgate/internal/rules"
)

// Console prints outcomes as they arrive.
type Console struct {
	mu    sync.Mutex
	w     io.Writer
	quiet bool
}

// NewConsole writes to w. A quiet console prints only failures and urgent
// messages.
func NewConsole(w io.Writer, quiet bool) *Console {
	return &Console{w: w, quiet: quiet}
}

func (c *Console) AddOutcome(o rules.Outcome) {
	if c.quiet && o.Severity != rules.FAIL {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "[step %2d] %s\n", o.Step, o)
}

func (c *Console) OnUrgentMessage(m rules.UrgentMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "*** %s: %s\n", m.Title, m.Message)
}
