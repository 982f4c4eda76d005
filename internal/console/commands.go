package console

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mcastellin/omnode/internal/consensus"
	"github.com/mcastellin/omnode/internal/faultinjector"
	"github.com/mcastellin/omnode/internal/membership"
)

// Handler dispatches console command lines to core node operations.
// Command set and response text are grounded on cli.py's
// CliHandler.handle_cli_message: peers, current, consensus, lie,
// truth, exit, and an unknown-command fallback.
type Handler struct {
	Members *membership.Table
	Engine  *consensus.Engine
	Faults  *faultinjector.Injector
	Now     func() time.Time
}

// Handle processes one line of input and returns the response text to
// write back to the client, plus whether the connection should be
// closed after writing it.
func (h *Handler) Handle(line string) (response string, closeConn bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "Unknown command.\n", false
	}

	switch fields[0] {
	case "peers":
		return h.handlePeers(), false
	case "current":
		return h.handleCurrent(), false
	case "consensus":
		return h.handleConsensus(fields[1:]), false
	case "lie":
		return h.handleLie(fields[1:]), false
	case "truth":
		h.Faults.SetLying(false, h.Faults.LieRate)
		return "Lying disabled.\n", false
	case "exit":
		return "Goodbye.\n", true
	default:
		return "Unknown command.\n", false
	}
}

func (h *Handler) handlePeers() string {
	records := h.Members.List()
	if len(records) == 0 {
		return "No peers known.\n"
	}

	now := h.now()
	var b strings.Builder
	for _, rec := range records {
		delta := now.Sub(rec.LastSeen).Seconds()
		fmt.Fprintf(&b, "%s:%d (name=%s, last_seen=%.1fs)\n", rec.Host, rec.Port, rec.Name, delta)
	}
	return b.String()
}

func (h *Handler) handleCurrent() string {
	words := h.Engine.Words()
	parts := make([]string, len(words))
	for i := range words {
		parts[i] = fmt.Sprintf("[%d] %s", i, words.Get(i))
	}
	return strings.Join(parts, ", ") + "\n"
}

func (h *Handler) handleConsensus(args []string) string {
	if len(args) < 1 {
		return "Invalid index.\n"
	}
	idx, err := strconv.Atoi(args[0])
	if err != nil || idx < 0 || idx >= consensus.WordArraySize {
		return "Invalid index.\n"
	}

	value := strings.Join(args[1:], " ")
	if err := h.Engine.StartRoot(idx, value); err != nil {
		if errors.Is(err, consensus.ErrNoPeers) {
			// The index was valid; there was simply nobody to agree
			// with. cli.py's handle_cli_message always replies
			// "Consensus started." here regardless of peer count, so
			// a no-peers StartRoot is not reported as an invalid
			// command the way a bad index is.
			return "Consensus started.\n"
		}
		return "Invalid index.\n"
	}
	return "Consensus started.\n"
}

func (h *Handler) handleLie(args []string) string {
	rate := 1.0
	if len(args) > 0 {
		if pct, err := strconv.ParseFloat(args[0], 64); err == nil {
			rate = pct / 100
		}
	}
	h.Faults.SetLying(true, rate)
	// SetLying clamps internally; read the stored rate back rather than
	// formatting the local, possibly out-of-range value, so the reply
	// always matches what the engine actually does (cli.py clamps
	// before both assigning lie_rate and formatting its reply).
	return fmt.Sprintf("Lying enabled at rate %.0f%%.\n", h.Faults.LieRate*100)
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}
