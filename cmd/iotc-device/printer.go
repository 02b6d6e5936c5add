package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/nerrad567/iotc-device/internal/dispatch"
	"github.com/nerrad567/iotc-device/internal/session"
)

// printer writes one coloured line per session event.
type printer struct {
	mu  sync.Mutex
	out io.Writer
	now func() time.Time

	// show limits output to these events; nil prints everything.
	show map[dispatch.EventName]bool

	ok   *color.Color
	warn *color.Color
	info *color.Color
	dim  *color.Color
}

func newPrinter(out io.Writer) *printer {
	return &printer{
		out:  out,
		now:  time.Now,
		ok:   color.New(color.FgGreen),
		warn: color.New(color.FgYellow),
		info: color.New(color.FgCyan),
		dim:  color.New(color.Faint),
	}
}

// only restricts output to the named events. An empty list keeps every event.
func (p *printer) only(names []string) error {
	if len(names) == 0 {
		p.show = nil
		return nil
	}
	show := make(map[dispatch.EventName]bool, len(names))
	for _, name := range names {
		ev, err := dispatch.ParseEventName(name)
		if err != nil {
			return err
		}
		show[ev] = true
	}
	p.show = show
	return nil
}

func (p *printer) line(c *color.Color, label, format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dim.Fprint(p.out, p.now().Format("15:04:05 ")) //nolint:errcheck // Console output
	c.Fprintf(p.out, "%-10s ", label)                //nolint:errcheck // Console output
	_, _ = io.WriteString(p.out, fmt.Sprintf(format, args...)+"\n")
}

// handle prints ev; it is registered for every event name.
func (p *printer) handle(ev dispatch.Event) {
	if p.show != nil && !p.show[ev.Name] {
		return
	}
	switch ev.Name {
	case dispatch.ConnectionStatus:
		switch ev.Status {
		case session.StatusOK:
			p.line(p.ok, "status", "ok")
		case session.StatusNotAuthorized:
			p.line(p.warn, "status", "not authorised (%d)", ev.Status)
		case session.StatusConnectionLost:
			p.line(p.warn, "status", "connection lost (%d)", ev.Status)
		default:
			p.line(p.warn, "status", "code %d", ev.Status)
		}
	case dispatch.MessageSent:
		c := p.ok
		if ev.Status != session.StatusOK {
			c = p.warn
		}
		p.line(c, "sent", "%s #%d status=%d %s", ev.Tag, ev.MessageID, ev.Status, ev.Payload)
	case dispatch.Command:
		p.line(p.info, "command", "%s %s", ev.Tag, ev.Payload)
	case dispatch.SettingsUpdated:
		p.line(p.info, "setting", "%s = %s", ev.Tag, ev.Payload)
	case dispatch.EnqueuedCommand:
		p.line(p.info, "enqueued", "%s %s", ev.Tag, ev.Payload)
	}
}
