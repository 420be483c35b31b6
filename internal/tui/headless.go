package tui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/npezzotti/go-chatclient/internal/session"
)

// LineNotifier prints notifications as plain text lines, for terminals
// without the full screen interface.
type LineNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

func NewLineNotifier(w io.Writer) *LineNotifier {
	return &LineNotifier{w: w}
}

func (n *LineNotifier) Notify(note session.Notification) {
	lines := describe(note)
	if len(lines) == 0 {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	for _, l := range lines {
		if l.kind == lineError {
			fmt.Fprintln(n.w, "! "+l.text)
			continue
		}
		fmt.Fprintln(n.w, l.text)
	}
}

// RunLines reads commands from r, one per line, and submits them until r is
// exhausted, /quit is read or ctx is cancelled. Parse errors are written to
// w and do not stop the loop.
func RunLines(ctx context.Context, r io.Reader, w io.Writer, s Submitter) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	errCh := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errCh <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case text, ok := <-lines:
			if !ok {
				select {
				case err := <-errCh:
					return err
				default:
					return nil
				}
			}

			switch strings.TrimSpace(text) {
			case "/quit":
				return nil
			case "/help":
				fmt.Fprintln(w, session.Usage)
				continue
			}

			in, err := session.ParseIntent(text)
			if err != nil {
				fmt.Fprintln(w, "! "+err.Error())
				continue
			}
			if err := s.Submit(in); err != nil {
				fmt.Fprintln(w, "! "+err.Error())
			}
		}
	}
}
