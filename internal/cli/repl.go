package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nerrad567/hearth/internal/language"
	"github.com/nerrad567/hearth/internal/pipeline"
)

// Commander handles one line of console input.
type Commander interface {
	HandleCommand(ctx context.Context, text string) (pipeline.Response, error)
}

// quitWords end the session.
var quitWords = map[string]bool{"quit": true, "exit": true, "bye": true}

// REPL is a line-oriented console over a Commander.
type REPL struct {
	cmd    Commander
	in     io.Reader
	out    io.Writer
	styles styles
}

// New creates a REPL reading from in and writing to out.
func New(cmd Commander, in io.Reader, out io.Writer) *REPL {
	return &REPL{cmd: cmd, in: in, out: out, styles: newStyles(out)}
}

// Run serves commands until quit, end of input, or ctx is cancelled.
// It returns only read errors.
func (r *REPL) Run(ctx context.Context) error {
	r.banner()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				readErr <- nil
				return
			}
		}
		readErr <- sc.Err()
	}()

	for {
		r.prompt()
		select {
		case <-ctx.Done():
			r.goodbye()
			return nil
		case line, ok := <-lines:
			if !ok {
				r.goodbye()
				if err := <-readErr; err != nil {
					return fmt.Errorf("reading input: %w", err)
				}
				return nil
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}
			if quitWords[strings.ToLower(text)] {
				r.goodbye()
				return nil
			}
			r.handle(ctx, text)
		}
	}
}

func (r *REPL) handle(ctx context.Context, text string) {
	resp, err := r.cmd.HandleCommand(ctx, text)
	if err != nil && resp.Message == "" {
		fmt.Fprintln(r.out, r.styles.err.Render("Error: "+err.Error()))
		return
	}

	msg := r.styles.reply.Render(resp.Message)
	if errors.Is(err, language.ErrBackendUnavailable) {
		msg = r.styles.warning.Render(resp.Message)
	}
	fmt.Fprintf(r.out, "\n%s%s\n", r.styles.assistant.Render("Assistant:"), msg)

	if resp.Reasoning != "" {
		fmt.Fprintln(r.out, r.styles.logic.Render("Logic: "+resp.Reasoning))
	}
	timing := fmt.Sprintf("[%dms]", resp.ElapsedMS)
	if resp.CacheHit {
		timing += " (cached)"
	}
	fmt.Fprintln(r.out, r.styles.timing.Render(timing))
	fmt.Fprintln(r.out)
}

func (r *REPL) banner() {
	fmt.Fprintln(r.out, r.styles.banner.Render("Hearth is ready."))
	fmt.Fprintln(r.out, "Commands: 'status', 'perf', 'help', or 'quit'. Or just say what you want.")
	fmt.Fprintln(r.out)
}

func (r *REPL) prompt() {
	fmt.Fprint(r.out, r.styles.prompt.Render("You:")+" ")
}

func (r *REPL) goodbye() {
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, "Goodbye!")
}
