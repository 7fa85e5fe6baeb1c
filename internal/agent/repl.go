package agent

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	prompt "github.com/c-bata/go-prompt"
	"github.com/charmbracelet/glamour"
	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"cophysicist/internal/journal"
	"cophysicist/internal/logging"
	"cophysicist/internal/tooling"
)

const (
	welcomeText = "👋 Welcome to Co-Physicist! Ask about physics, mathematics, or scientific computing."
	usageText   = "Type ':help' for commands, 'exit' to leave. Use double Ctrl+C to exit."
	goodbyeText = "Goodbye! Thanks for using Co-Physicist! 👋"
	thinkText   = "🤔 Thinking..."
)

var commandSuggestions = []prompt.Suggest{
	{Text: ":help", Description: "show this text"},
	{Text: ":tools", Description: "list workspace tools"},
	{Text: ":files", Description: "list the workspace root"},
	{Text: ":journal", Description: "show recent tool calls (:journal [n])"},
	{Text: ":clear", Description: "wipe the conversation history"},
	{Text: ":quit", Description: "exit the program"},
	{Text: ":exit", Description: "exit the program"},
}

// JournalReader lists recorded tool calls.
type JournalReader interface {
	Recent(ctx context.Context, limit int) ([]journal.Entry, error)
}

// REPLOptions configures the interactive front end. Nil In/Out mean the
// process stdin/stdout.
type REPLOptions struct {
	HistoryPath string
	Journal     JournalReader
	In          io.Reader
	Out         io.Writer
}

// REPL reads prompts from the user and prints the agent's replies.
type REPL struct {
	agent       *Agent
	journal     JournalReader
	historyPath string
	in          io.Reader
	out         io.Writer
	isTTY       bool
	render      *glamour.TermRenderer

	requestCancelMu sync.Mutex
	requestCancel   context.CancelFunc
}

type interruptTracker struct {
	mu     sync.Mutex
	last   time.Time
	window time.Duration
}

func newInterruptTracker(window time.Duration) *interruptTracker {
	return &interruptTracker{window: window}
}

func (t *interruptTracker) secondPress() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	if !t.last.IsZero() && now.Sub(t.last) < t.window {
		t.last = time.Time{}
		return true
	}
	t.last = now
	return false
}

type promptExit struct{}

// NewREPL wires a front end around a.
func NewREPL(a *Agent, opts REPLOptions) *REPL {
	r := &REPL{
		agent:       a,
		journal:     opts.Journal,
		historyPath: opts.HistoryPath,
		in:          opts.In,
		out:         opts.Out,
	}
	if r.in == nil {
		r.in = os.Stdin
		r.isTTY = term.IsTerminal(int(os.Stdin.Fd()))
	}
	if r.out == nil {
		r.out = os.Stdout
		if term.IsTerminal(int(os.Stdout.Fd())) {
			if tr, err := glamour.NewTermRenderer(
				glamour.WithAutoStyle(),
				glamour.WithWordWrap(0),
			); err == nil {
				r.render = tr
			}
		}
	}
	return r
}

// Run starts the prompt loop and blocks until the user leaves.
func (r *REPL) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tracker := newInterruptTracker(2 * time.Second)
	if r.isTTY {
		return r.runPrompt(ctx, cancel, tracker)
	}
	go r.handleInterrupts(ctx, cancel, tracker)
	return r.runNonInteractive(ctx, cancel)
}

// RunOneShot answers a single prompt and prints the reply.
func (r *REPL) RunOneShot(ctx context.Context, text string) error {
	reply, err := r.agent.Ask(ctx, text)
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}
	r.printReply(reply)
	return nil
}

func (r *REPL) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}

func (r *REPL) runPrompt(ctx context.Context, cancel context.CancelFunc, tracker *interruptTracker) (err error) {
	r.printf("%s\n%s\n", welcomeText, usageText)

	history := loadInputHistory(r.historyPath)
	if n := history.Len(); n > 0 {
		r.printf("(%d previous prompts available with the up arrow)\n", n)
	}

	var restore func()
	if fd := int(os.Stdin.Fd()); term.IsTerminal(fd) {
		if st, terr := term.GetState(fd); terr == nil {
			restore = func() { _ = term.Restore(fd, st) }
		}
	}
	if restore != nil {
		defer restore()
	}

	var exitRequested atomic.Bool
	defer func() {
		if rec := recover(); rec != nil {
			if _, ok := rec.(promptExit); ok {
				err = nil
				return
			}
			panic(rec)
		}
	}()

	executor := func(in string) {
		if exitRequested.Load() || ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(in)
		if line == "" {
			return
		}
		history.Add(line)
		if exit := r.handleLine(ctx, line); exit {
			exitRequested.Store(true)
			cancel()
			panic(promptExit{})
		}
	}

	p := prompt.New(
		executor,
		commandCompleter,
		prompt.OptionHistory(history.Entries()),
		prompt.OptionTitle("Co-Physicist"),
		prompt.OptionPrefix("co-physicist > "),
		prompt.OptionAddKeyBind(
			prompt.KeyBind{
				Key: prompt.ControlC,
				Fn: func(buf *prompt.Buffer) {
					if r.cancelInFlightRequest() {
						r.printf("\n(Current request cancelled.)\n")
						return
					}
					if tracker.secondPress() {
						r.printf("\n%s\n", goodbyeText)
						exitRequested.Store(true)
						cancel()
						panic(promptExit{})
					}
					r.printf("\n(Press Ctrl+C again within 2s to exit)\n")
				},
			},
			prompt.KeyBind{
				Key: prompt.ControlD,
				Fn: func(buf *prompt.Buffer) {
					if buf.Text() == "" {
						exitRequested.Store(true)
						cancel()
						panic(promptExit{})
					}
				},
			},
			prompt.KeyBind{
				Key: prompt.Escape,
				Fn: func(buf *prompt.Buffer) {
					if r.cancelInFlightRequest() {
						r.printf("\n(Request cancelled.)\n")
					}
				},
			},
		),
		prompt.OptionSetExitCheckerOnInput(func(string, bool) bool {
			if exitRequested.Load() {
				return true
			}
			select {
			case <-ctx.Done():
				return true
			default:
				return false
			}
		}),
	)

	p.Run()
	return nil
}

func commandCompleter(doc prompt.Document) []prompt.Suggest {
	word := doc.GetWordBeforeCursor()
	prefix := strings.TrimLeft(doc.TextBeforeCursor(), " \t")
	if !strings.HasPrefix(prefix, ":") {
		return nil
	}
	return prompt.FilterHasPrefix(commandSuggestions, word, true)
}

func (r *REPL) runNonInteractive(ctx context.Context, cancel context.CancelFunc) error {
	reader := bufio.NewReader(r.in)
	r.printf("%s\n%s\n", welcomeText, usageText)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		r.printf("co-physicist > ")
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				if strings.TrimSpace(line) != "" {
					r.handleLine(ctx, line)
				}
				r.printf("\n")
				return nil
			}
			if ctx.Err() != nil {
				r.printf("\n")
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}
		if exit := r.handleLine(ctx, trimLineEnding(line)); exit {
			cancel()
			return nil
		}
	}
}

func (r *REPL) handleInterrupts(ctx context.Context, cancel context.CancelFunc, tracker *interruptTracker) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sigCh:
			if r.cancelInFlightRequest() {
				r.printf("\n(Current request cancelled.)\n")
				continue
			}
			if tracker.secondPress() {
				r.printf("\n%s\n", goodbyeText)
				cancel()
				return
			}
			r.printf("\n(Press Ctrl+C again within 2s to exit)\n")
		}
	}
}

// handleLine processes one line of input and reports whether the session
// should end.
func (r *REPL) handleLine(ctx context.Context, input string) bool {
	line := strings.TrimSpace(input)
	if line == "" {
		return false
	}
	if lower := strings.ToLower(line); lower == "exit" || lower == "quit" {
		r.printf("%s\n", goodbyeText)
		return true
	}
	if strings.HasPrefix(line, ":") {
		return r.handleCommand(ctx, line)
	}

	reqCtx, cancel := context.WithCancel(ctx)
	r.setInFlightCancel(cancel)
	defer func() {
		r.clearInFlightCancel()
		cancel()
	}()

	r.printf("%s\n", thinkText)
	logging.DevLog("dispatching prompt: %d chars", len(line))
	reply, err := r.agent.Ask(reqCtx, line)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return false
		}
		logging.ErrorLog("agent error: %v", err)
		r.printf("Error: %v\n", err)
		return false
	}
	r.printReply(reply)
	return false
}

func (r *REPL) printReply(reply Reply) {
	for _, o := range reply.ToolOutcomes {
		status := "ok"
		if o.IsError {
			status = "error"
		}
		r.printf("  ↳ %s (%s, %s)\n", o.Name, status, o.Duration.Round(time.Millisecond))
	}
	r.printResponse(reply.Text)
	if reply.FinishReason == "length" {
		r.printf("(Reply cut short by the output token limit.)\n")
	}
}

func (r *REPL) printResponse(text string) {
	if r.render == nil || strings.TrimSpace(text) == "" {
		r.printf("%s\n", text)
		return
	}
	rendered, err := r.render.Render(text)
	if err != nil {
		logging.ErrorLog("markdown render failed: %v", err)
		r.printf("%s\n", text)
		return
	}
	r.printf("%s\n", strings.TrimRight(rendered, "\n"))
}

func (r *REPL) handleCommand(ctx context.Context, cmd string) bool {
	parts := strings.Fields(cmd)
	switch parts[0] {
	case ":help":
		r.printf(`Commands:
  :help          show this text
  :tools         list workspace tools
  :files         list the workspace root
  :journal [n]   show the n most recent tool calls (default 10)
  :clear         wipe the conversation history
  :quit, :exit   exit the program (plain "exit" and "quit" work too)
`)
	case ":tools":
		var total int
		for _, def := range tooling.DefaultRegistry().Definitions() {
			schema, _ := json.Marshal(def)
			total += len(schema)
			r.printf("  %-30s %s\n", def.Function.Name, def.Function.Description)
		}
		r.printf("  (%s of tool schema sent with each request)\n", humanize.Bytes(uint64(total)))
	case ":files":
		res := r.agent.Dispatcher().Store().ListDirectory(ctx, ".")
		r.printf("%s\n", strings.TrimRight(tooling.Format(res).Text, "\n"))
	case ":journal":
		r.showJournal(ctx, parts[1:])
	case ":clear":
		r.agent.Reset()
		r.printf("Conversation cleared.\n")
	case ":quit", ":exit":
		r.printf("%s\n", goodbyeText)
		return true
	default:
		r.printf("Unknown command %s (try :help)\n", parts[0])
	}
	return false
}

func (r *REPL) showJournal(ctx context.Context, args []string) {
	if r.journal == nil {
		r.printf("Tool journal is disabled.\n")
		return
	}
	limit := 10
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			r.printf(":journal expects a positive number\n")
			return
		}
		limit = n
	}
	entries, err := r.journal.Recent(ctx, limit)
	if err != nil {
		r.printf("Error: %v\n", err)
		return
	}
	if len(entries) == 0 {
		r.printf("No tool calls recorded yet.\n")
		return
	}
	for _, e := range entries {
		status := "ok"
		if !e.Success {
			status = "error: " + e.Error
		}
		r.printf("  #%d %-30s %-12s %s %s (%s)\n", e.ID, e.Tool, humanize.Time(e.At), e.Args, status, e.Duration)
	}
}

func (r *REPL) setInFlightCancel(cancel context.CancelFunc) {
	r.requestCancelMu.Lock()
	r.requestCancel = cancel
	r.requestCancelMu.Unlock()
}

func (r *REPL) clearInFlightCancel() {
	r.requestCancelMu.Lock()
	r.requestCancel = nil
	r.requestCancelMu.Unlock()
}

func (r *REPL) cancelInFlightRequest() bool {
	r.requestCancelMu.Lock()
	cancel := r.requestCancel
	r.requestCancel = nil
	r.requestCancelMu.Unlock()
	if cancel != nil {
		cancel()
		return true
	}
	return false
}

func trimLineEnding(s string) string {
	s = strings.TrimSuffix(s, "\r\n")
	s = strings.TrimSuffix(s, "\n")
	s = strings.TrimSuffix(s, "\r")
	return s
}
