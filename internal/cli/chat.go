// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jeranaias/shopchat/internal/chat"
	"github.com/jeranaias/shopchat/internal/config"
	"github.com/jeranaias/shopchat/internal/model"
	"github.com/jeranaias/shopchat/internal/router"
	"github.com/jeranaias/shopchat/internal/ui/term"
)

// remoteTimeoutSlack is added to the upstream timeout for calls that go
// through a shopchat server.
const remoteTimeoutSlack = 10 * time.Second

func newChatCmd(a *app) *cobra.Command {
	var (
		serverURL string
		source    string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant in the terminal",
		Long: `Chat with the assistant in the terminal.

Without --server the upstream providers are called directly with the
configured API keys. With --server the proxy endpoints of a running
shopchat server are used instead, authenticated with the access password.

Commands during chat:
  /help      Show commands
  /stats     Show usage for this session
  /history   Reprint the conversation
  /quit      Exit (also Ctrl+C, Ctrl+D)`,
		Example: `  shopchat chat
  shopchat chat --server http://127.0.0.1:8080
  echo "trail running shoes" | shopchat chat`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := a.logger
			if !a.verbose && logger.Core().Enabled(zapcore.InfoLevel) {
				logger = logger.WithOptions(zap.IncreaseLevel(zapcore.WarnLevel))
			}
			return runChat(cmd.Context(), a.cfg, chatOptions{
				ServerURL: serverURL,
				Source:    source,
				In:        os.Stdin,
				Out:       cmd.OutOrStdout(),
			}, logger)
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "", "base URL of a running shopchat server")
	cmd.Flags().StringVar(&source, "catalog", "", "catalog path or URL (overrides config)")
	return cmd
}

type chatOptions struct {
	ServerURL string
	Source    string
	In        *os.File
	Out       io.Writer
}

func runChat(ctx context.Context, cfg *config.Config, opts chatOptions, logger *zap.Logger) error {
	assistant, err := assistantFrom(cfg)
	if err != nil {
		return err
	}

	var caller chat.Caller
	if opts.ServerURL != "" {
		caller = chat.NewHTTPCaller(opts.ServerURL, cfg.Upstream.Timeout()+remoteTimeoutSlack).
			WithPassword(cfg.Auth.Password)
	} else {
		caller = newProxyService(cfg, logger)
	}

	cat, source, err := loadCatalog(ctx, cfg, opts.Source, logger)
	if err != nil {
		fmt.Fprintf(opts.Out, "Catalog %s could not be loaded: %v\n\n", source, err)
	}
	var systemPrompt string
	if !cat.Empty() {
		systemPrompt = promptBuilder(cfg).Build(cat.Products())
	}

	sess := chat.NewSession(chat.Config{
		Caller:       caller,
		Selector:     router.NewSelector(assistant.ClaudeModels, assistant.OpenAIModel, assistant.Backend, assistant.Policy),
		Catalog:      cat,
		SystemPrompt: systemPrompt,
		MaxTokens:    assistant.MaxTokens,
		Temperature:  assistant.Temperature,
		Logger:       logger,
	})

	r := newREPL(sess, term.NewRenderer(opts.Out, term.Width(os.Stdout), term.Profile(os.Stdout)), opts.Out)

	var in lineReader
	if term.IsTTY(opts.In) {
		in = newLinerReader()
	} else {
		in = newScanReader(opts.In)
	}
	defer in.Close()

	return r.run(ctx, in)
}

// =============================================================================
// INPUT
// =============================================================================

// lineReader yields one line of user input per call. It returns io.EOF
// when input ends.
type lineReader interface {
	ReadLine(prompt string) (string, error)
	Close() error
}

// linerReader adds history and line editing on a terminal.
type linerReader struct {
	line        *liner.State
	historyFile string
}

func newLinerReader() *linerReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}
	historyFile := filepath.Join(configDir, "chat_history")
	if f, err := os.Open(historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	return &linerReader{line: line, historyFile: historyFile}
}

func (l *linerReader) ReadLine(prompt string) (string, error) {
	text, err := l.line.Prompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", io.EOF
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) != "" {
		l.line.AppendHistory(text)
	}
	return text, nil
}

func (l *linerReader) Close() error {
	if err := os.MkdirAll(filepath.Dir(l.historyFile), 0700); err == nil {
		if f, err := os.OpenFile(l.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			l.line.WriteHistory(f)
			f.Close()
		}
	}
	return l.line.Close()
}

// scanReader reads piped input without prompting.
type scanReader struct {
	sc *bufio.Scanner
}

func newScanReader(r io.Reader) *scanReader {
	return &scanReader{sc: bufio.NewScanner(r)}
}

func (s *scanReader) ReadLine(string) (string, error) {
	if s.sc.Scan() {
		return s.sc.Text(), nil
	}
	if err := s.sc.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (s *scanReader) Close() error { return nil }

// =============================================================================
// REPL
// =============================================================================

const chatHelp = `Commands:
  /help      Show this help
  /stats     Show usage for this session
  /history   Reprint the conversation
  /quit      Exit`

type repl struct {
	sess   *chat.Session
	render *term.Renderer
	out    io.Writer

	// printed counts transcript entries already written.
	printed int
}

func newREPL(sess *chat.Session, render *term.Renderer, out io.Writer) *repl {
	return &repl{sess: sess, render: render, out: out}
}

// run prints the welcome and handles input until it ends or /quit.
func (r *repl) run(ctx context.Context, in lineReader) error {
	r.flush()
	for {
		line, err := in.ReadLine("> ")
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(r.out)
			return nil
		}
		if err != nil {
			return err
		}
		if !r.handle(ctx, line) {
			return nil
		}
	}
}

// handle processes one input line. It returns false when the user quits.
func (r *repl) handle(ctx context.Context, line string) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "/quit", "/q", "/exit":
		return false
	case "/help", "/h":
		fmt.Fprintln(r.out, chatHelp)
	case "/stats", "/s":
		fmt.Fprintln(r.out, r.render.Stats(r.sess.Snapshot().Stats))
	case "/history":
		fmt.Fprintln(r.out, r.render.Transcript(r.sess.Snapshot().Messages))
	default:
		if r.sess.Submit(ctx, line) != chat.OutcomeIgnored {
			r.flush()
		}
	}
	return true
}

// flush writes transcript entries added since the last call. The user's
// own lines are already on screen.
func (r *repl) flush() {
	msgs := r.sess.Snapshot().Messages
	for _, m := range msgs[r.printed:] {
		if m.Kind == model.KindUser {
			continue
		}
		fmt.Fprintln(r.out, r.render.Message(m))
		fmt.Fprintln(r.out)
	}
	r.printed = len(msgs)
}
