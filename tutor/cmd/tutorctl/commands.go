package main

import (
	"bufio"
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"tutor/tutor/middlewares"
	"tutor/tutor/services/llm"
	"tutor/tutor/services/safety"
	"tutor/tutor/sources/psql/models"
	"tutor/tutor/utils/color"
	httputils "tutor/tutor/utils/http"
	"tutor/tutor/utils/types"

	"github.com/spf13/cobra"
)

type cliOptions struct {
	server   string
	token    string
	provider string
	model    string
	session  string
	jsonOut  bool
	noColor  bool
	limit    int
	offset   int
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}
	root := &cobra.Command{
		Use:           "tutorctl",
		Short:         "Chat with the tutor server and manage sessions",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.noColor || opts.jsonOut {
				color.Disable()
			}
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&opts.server, "server", envOr("TUTOR_SERVER", "http://localhost:8000"), "tutor server base URL")
	pf.StringVar(&opts.token, "token", os.Getenv("TUTOR_TOKEN"), "bearer token when the server requires auth")
	pf.BoolVar(&opts.jsonOut, "json", false, "print raw JSON")
	pf.BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	client := func() *httputils.Client {
		return httputils.NewClient(opts.server, opts.token)
	}

	askCmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Send one message and print the tutor's reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := sendMessage(cmd.Context(), client(), opts, strings.Join(args, " "))
			if err != nil {
				return explain(cmd, err)
			}
			if opts.jsonOut {
				return printJSON(cmd, resp)
			}
			printReply(cmd, resp, true)
			return nil
		},
	}
	addChatFlags(askCmd, opts)

	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive tutoring session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runREPL(cmd, client(), opts)
		},
	}
	addChatFlags(chatCmd, opts)

	historyCmd := &cobra.Command{
		Use:   "history [sessionId]",
		Short: "Show the messages of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			q.Set("sessionId", args[0])
			q.Set("limit", strconv.Itoa(opts.limit))
			q.Set("offset", strconv.Itoa(opts.offset))
			var hist types.HistoryResponse
			if err := client().GetJSON(cmd.Context(), "/api/v1/chat/history?"+q.Encode(), &hist); err != nil {
				return explain(cmd, err)
			}
			if opts.jsonOut {
				return printJSON(cmd, hist)
			}
			printHistory(cmd, hist)
			return nil
		},
	}
	addPageFlags(historyCmd, opts)

	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "List your chat sessions, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			q.Set("limit", strconv.Itoa(opts.limit))
			q.Set("offset", strconv.Itoa(opts.offset))
			var sessions []models.SessionSummary
			if err := client().GetJSON(cmd.Context(), "/api/v1/chat/sessions?"+q.Encode(), &sessions); err != nil {
				return explain(cmd, err)
			}
			if opts.jsonOut {
				return printJSON(cmd, sessions)
			}
			printSessions(cmd, sessions)
			return nil
		},
	}
	addPageFlags(sessionsCmd, opts)

	clearCmd := &cobra.Command{
		Use:   "clear [sessionId]",
		Short: "Delete a session and all of its messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := client().Delete(cmd.Context(), "/api/v1/chat/history/"+url.PathEscape(args[0]))
			if err != nil {
				return explain(cmd, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), color.ColorInfo(msg))
			return nil
		},
	}

	exportCmd := &cobra.Command{
		Use:   "export [sessionId]",
		Short: "Archive a session transcript in object storage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out types.ExportResponse
			path := "/api/v1/chat/sessions/" + url.PathEscape(args[0]) + "/export"
			if err := client().PostJSON(cmd.Context(), path, nil, &out); err != nil {
				return explain(cmd, err)
			}
			if opts.jsonOut {
				return printJSON(cmd, out)
			}
			fmt.Fprintln(cmd.OutOrStdout(), color.ColorInfo("exported to "+out.Key))
			return nil
		},
	}

	validateCmd := &cobra.Command{
		Use:   "validate [text]",
		Short: "Score text with the server's safety rules",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var v safety.Validation
			body := types.ValidateRequest{Text: strings.Join(args, " ")}
			if err := client().PostJSON(cmd.Context(), "/api/v1/validate", body, &v); err != nil {
				return explain(cmd, err)
			}
			if opts.jsonOut {
				return printJSON(cmd, v)
			}
			printValidation(cmd, v)
			return nil
		},
	}

	providersCmd := &cobra.Command{
		Use:   "providers",
		Short: "List the configured AI providers",
		RunE: func(cmd *cobra.Command, args []string) error {
			var providers []llm.ProviderInfo
			if err := client().GetJSON(cmd.Context(), "/api/v1/providers", &providers); err != nil {
				return explain(cmd, err)
			}
			if opts.jsonOut {
				return printJSON(cmd, providers)
			}
			for _, p := range providers {
				line := fmt.Sprintf("%-10s %s", p.Name, p.Model)
				if p.Default {
					line += color.ColorInfo("  (default)")
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}

	pingCmd := &cobra.Command{
		Use:   "ping",
		Short: "Check that the server is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			if err := client().GetJSON(cmd.Context(), "/api/v1/ping", nil); err != nil {
				return explain(cmd, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", color.ColorInfo("pong"), color.ColorMuted(time.Since(start).Round(time.Millisecond).String()))
			return nil
		},
	}

	var ttl time.Duration
	tokenCmd := &cobra.Command{
		Use:   "token [subject]",
		Short: "Mint a bearer token signed with JWT_SECRET for local testing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := middlewares.IssueToken(args[0], os.Getenv("JWT_SECRET"), ttl)
			if err != nil {
				return fmt.Errorf("JWT_SECRET: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	tokenCmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")

	root.AddCommand(askCmd, chatCmd, historyCmd, sessionsCmd, clearCmd, exportCmd, validateCmd, providersCmd, pingCmd, tokenCmd)
	return root
}

func addChatFlags(cmd *cobra.Command, opts *cliOptions) {
	cmd.Flags().StringVar(&opts.provider, "provider", "", "openai, anthropic or google (server default when empty)")
	cmd.Flags().StringVar(&opts.model, "model", "", "model override for the provider")
	cmd.Flags().StringVar(&opts.session, "session", "", "continue an existing session")
}

func addPageFlags(cmd *cobra.Command, opts *cliOptions) {
	cmd.Flags().IntVar(&opts.limit, "limit", types.DefaultHistoryLimit, "page size")
	cmd.Flags().IntVar(&opts.offset, "offset", 0, "page offset")
}

func sendMessage(ctx context.Context, c *httputils.Client, opts *cliOptions, message string) (*types.ChatResponse, error) {
	req := types.ChatRequest{
		Message:   message,
		SessionID: opts.session,
		Provider:  opts.provider,
		Model:     opts.model,
	}
	var resp types.ChatResponse
	if err := c.PostJSON(ctx, "/api/v1/chat", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func runREPL(cmd *cobra.Command, c *httputils.Client, opts *cliOptions) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, color.ColorInfo("Ask the tutor anything you are studying. Type 'exit' to quit."))
	if opts.session != "" {
		fmt.Fprintln(out, color.ColorMuted("session: "+opts.session))
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, color.ColorPrompt("you> "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "exit" || line == "quit" {
			fmt.Fprintln(out, "Goodbye!")
			return nil
		}
		if line == "" {
			continue
		}

		resp, err := sendMessage(cmd.Context(), c, opts, line)
		if err != nil {
			// blocked messages and provider errors keep the session going
			printAPIError(cmd, err)
			continue
		}
		if opts.session == "" {
			opts.session = resp.SessionID
			fmt.Fprintln(out, color.ColorMuted("session: "+resp.SessionID))
		}
		printReply(cmd, resp, false)
	}
}
