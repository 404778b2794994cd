package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/mcdev12/partyspin/go/internal/models"
	"github.com/mcdev12/partyspin/go/internal/party/events"
	"github.com/mcdev12/partyspin/go/internal/party/orchestrator"
	"github.com/mcdev12/partyspin/go/internal/party/session"
)

// console turns stdin lines into session operations and renders snapshots
type console struct {
	s     *session.Session
	stats *session.Counters
	json  bool

	mu  sync.Mutex
	out io.Writer
}

func newConsole(s *session.Session, stats *session.Counters, out io.Writer, asJSON bool) *console {
	return &console{s: s, stats: stats, out: out, json: asJSON}
}

// exec runs one command line and reports whether the user asked to quit
func (c *console) exec(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "spin":
		snap := c.s.Snapshot()
		state, err := c.s.Spin(ctx, orchestrator.Request{
			Locked:     snap.State.LockedSlots(),
			Categories: args,
		})
		if err != nil {
			return false, err
		}
		c.printf("spun: %s\n", state.Summary)
	case "keep", "reroll":
		idx, err := slotArg(args)
		if err != nil {
			return false, err
		}
		return false, c.s.CastVote(ctx, idx, events.VoteKind(cmd))
	case "sync":
		return false, c.s.RequestSync(ctx)
	case "nick":
		return false, c.s.Rename(ctx, strings.Join(args, " "))
	case "say":
		_, err := c.s.Chat(ctx, strings.Join(args, " "))
		return false, err
	case "status":
		c.render(c.s.Snapshot())
		if !c.json {
			c.renderStats()
		}
	case "quit", "exit":
		return true, nil
	default:
		return false, fmt.Errorf("unknown command %q", cmd)
	}
	return false, nil
}

func slotArg(args []string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("expected a slot index 0-%d", models.SlotCount-1)
	}
	idx, err := strconv.Atoi(args[0])
	if err != nil || !models.ValidSlot(idx) {
		return 0, fmt.Errorf("invalid slot %q", args[0])
	}
	return idx, nil
}

// watch renders every snapshot the session publishes until ctx is done
func (c *console) watch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.s.Done():
			return
		case snap := <-c.s.Updates():
			c.render(snap)
		}
	}
}

func (c *console) render(snap session.Snapshot) {
	if c.json {
		view := struct {
			session.Snapshot
			Metrics map[string]interface{} `json:"metrics,omitempty"`
		}{Snapshot: snap}
		if c.stats != nil {
			view.Metrics = c.stats.Stats()
		}
		data, err := json.Marshal(view)
		if err != nil {
			c.printf("error: %v\n", err)
			return
		}
		c.printf("%s\n", data)
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "room %s | %d live | quorum %d", snap.Code, len(snap.Peers), snap.Quorum)
	if host, ok := snap.Host(); ok {
		fmt.Fprintf(&b, " | host %s", host.DisplayName())
		if host.IsLocal(snap.SelfID) {
			b.WriteString(" (you)")
		}
	}
	b.WriteString("\n")
	if snap.State.IsEmpty() {
		b.WriteString("  no spin yet\n")
	} else {
		fmt.Fprintf(&b, "  %s\n", snap.State.Summary)
	}
	for i, tally := range snap.Votes {
		if len(tally.Keep)+len(tally.Reroll) == 0 {
			continue
		}
		fmt.Fprintf(&b, "  %s votes: keep %d, reroll %d\n", models.SlotLabels[i], len(tally.Keep), len(tally.Reroll))
	}
	if n := len(snap.Chat); n > 0 {
		last := snap.Chat[n-1]
		fmt.Fprintf(&b, "  last chat from %s: %s\n", last.From, last.Text)
	}
	c.printf("%s", b.String())
}

func (c *console) renderStats() {
	if c.stats == nil {
		return
	}
	st := c.stats.Stats()
	c.printf("  events: %v accepted, %v dropped | spins: %v ok, %v failed (last %v) | host changes: %v\n",
		st["events_accepted"], st["events_dropped"],
		st["spins_succeeded"], st["spins_failed"], st["last_spin"],
		st["host_changes"])
}

func (c *console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}
