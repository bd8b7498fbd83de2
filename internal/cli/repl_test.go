package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/hearth/internal/intent"
	"github.com/nerrad567/hearth/internal/language"
	"github.com/nerrad567/hearth/internal/pipeline"
)

type mockCommander struct {
	texts []string
	resp  map[string]pipeline.Response
	err   map[string]error
}

func (m *mockCommander) HandleCommand(_ context.Context, text string) (pipeline.Response, error) {
	m.texts = append(m.texts, text)
	return m.resp[text], m.err[text]
}

func TestREPL_Run(t *testing.T) {
	cmd := &mockCommander{
		resp: map[string]pipeline.Response{
			"turn on the desk lamp": {Message: "Turned on office_light.", Intent: intent.KindTurnOn, ElapsedMS: 812},
			"i'm cold":              {Message: "Heating mode activated.", Reasoning: "User feels cold", ElapsedMS: 4, CacheHit: true},
		},
	}
	in := strings.NewReader("turn on the desk lamp\n\n   \ni'm cold\nQUIT\nnever sent\n")
	var out bytes.Buffer

	if err := New(cmd, in, &out).Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if want := []string{"turn on the desk lamp", "i'm cold"}; fmt.Sprint(cmd.texts) != fmt.Sprint(want) {
		t.Errorf("texts = %q, want %q", cmd.texts, want)
	}
	got := out.String()
	for _, want := range []string{
		"Hearth is ready.",
		"Assistant: Turned on office_light.",
		"[812ms]",
		"Logic: User feels cold",
		"[4ms] (cached)",
		"Goodbye!",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestREPL_QuitWords(t *testing.T) {
	for _, word := range []string{"quit", "exit", "bye", "Bye"} {
		t.Run(word, func(t *testing.T) {
			cmd := &mockCommander{}
			in := strings.NewReader(word + "\nlights on\n")
			if err := New(cmd, in, io.Discard).Run(context.Background()); err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if len(cmd.texts) != 0 {
				t.Errorf("texts = %q, want none", cmd.texts)
			}
		})
	}
}

func TestREPL_EndOfInput(t *testing.T) {
	cmd := &mockCommander{resp: map[string]pipeline.Response{"status": {Message: "Home status"}}}
	var out bytes.Buffer
	if err := New(cmd, strings.NewReader("status"), &out).Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(cmd.texts) != 1 || !strings.Contains(out.String(), "Goodbye!") {
		t.Errorf("texts = %q, output:\n%s", cmd.texts, out.String())
	}
}

func TestREPL_Errors(t *testing.T) {
	cmd := &mockCommander{
		resp: map[string]pipeline.Response{
			"lights on": {Message: "The language model is not reachable right now.", Intent: intent.KindUnknown},
		},
		err: map[string]error{
			"lights on": fmt.Errorf("ollama: %w", language.ErrBackendUnavailable),
			"boom":      errors.New("store closed"),
		},
	}
	var out bytes.Buffer
	if err := New(cmd, strings.NewReader("lights on\nboom\n"), &out).Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "not reachable right now") {
		t.Errorf("missing unavailable reply:\n%s", got)
	}
	if !strings.Contains(got, "Error: store closed") {
		t.Errorf("missing error line:\n%s", got)
	}
}

// blockingReader never returns, like an idle terminal.
type blockingReader struct{ done chan struct{} }

func (b blockingReader) Read([]byte) (int, error) {
	<-b.done
	return 0, io.EOF
}

func TestREPL_ContextCancel(t *testing.T) {
	in := blockingReader{done: make(chan struct{})}
	defer close(in.done)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- New(&mockCommander{}, in, io.Discard).Run(ctx) }()

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("tty gone") }

func TestREPL_ReadError(t *testing.T) {
	err := New(&mockCommander{}, failingReader{}, io.Discard).Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "tty gone") {
		t.Errorf("Run() error = %v, want read error", err)
	}
}
