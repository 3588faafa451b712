package main

import (
	"errors"
	"fmt"
	"strings"

	"tutor/tutor/services/safety"
	"tutor/tutor/sources/psql/models"
	"tutor/tutor/utils/color"
	httputils "tutor/tutor/utils/http"
	"tutor/tutor/utils/jsonutils"
	"tutor/tutor/utils/types"

	"github.com/spf13/cobra"
)

func printJSON(cmd *cobra.Command, v any) error {
	s := jsonutils.ToJSON(v)
	if s == "" {
		return errors.New("could not encode output")
	}
	fmt.Fprintln(cmd.OutOrStdout(), s)
	return nil
}

func printReply(cmd *cobra.Command, resp *types.ChatResponse, withSession bool) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, color.ColorTutor("tutor> ")+resp.Message.Content)
	meta := fmt.Sprintf("%s/%s  safety %.2f  %dms", resp.Metadata.Provider, resp.Metadata.Model,
		resp.Metadata.SafetyScore, resp.Metadata.ProcessingTime)
	if resp.Metadata.Tokens != nil {
		meta += fmt.Sprintf("  %d tokens", *resp.Metadata.Tokens)
	}
	if resp.Metadata.FallbackUsed {
		meta += "  (fallback)"
	}
	fmt.Fprintln(out, color.ColorMuted(meta))
	if withSession {
		fmt.Fprintln(out, color.ColorMuted("session: "+resp.SessionID))
	}
}

func printHistory(cmd *cobra.Command, hist types.HistoryResponse) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, color.ColorInfo(hist.Title))
	if len(hist.Messages) == 0 {
		fmt.Fprintln(out, color.ColorMuted("(no messages)"))
		return
	}
	for _, m := range hist.Messages {
		who := color.ColorPrompt("you>   ")
		if m.Role == models.RoleAssistant {
			who = color.ColorTutor("tutor> ")
		}
		fmt.Fprintf(out, "%s %s%s\n", color.ColorMuted(m.CreatedAt.Local().Format("2006-01-02 15:04")), who, m.Content)
	}
}

func printSessions(cmd *cobra.Command, sessions []models.SessionSummary) {
	out := cmd.OutOrStdout()
	if len(sessions) == 0 {
		fmt.Fprintln(out, color.ColorMuted("(no sessions)"))
		return
	}
	for _, s := range sessions {
		fmt.Fprintf(out, "%s  %3d msgs  %s  %s\n",
			s.ID, s.MessageCount, color.ColorMuted(s.LastActivity.Local().Format("2006-01-02 15:04")), s.Title)
	}
}

func printValidation(cmd *cobra.Command, v safety.Validation) {
	out := cmd.OutOrStdout()
	verdict := color.ColorInfo("valid")
	if !v.IsValid {
		verdict = color.ColorWarning("blocked")
	}
	fmt.Fprintf(out, "%s  score %.2f\n", verdict, v.SafetyScore)
	for _, issue := range v.Issues {
		fmt.Fprintln(out, "  - "+issue)
	}
	for _, s := range v.Suggestions {
		fmt.Fprintln(out, color.ColorMuted("  > "+s))
	}
}

// printAPIError shows the server's issues and suggestions when it has them.
func printAPIError(cmd *cobra.Command, err error) {
	out := cmd.ErrOrStderr()
	var apiErr *httputils.APIError
	if !errors.As(err, &apiErr) {
		fmt.Fprintln(out, color.ColorError(err.Error()))
		return
	}
	fmt.Fprintln(out, color.ColorError(apiErr.Message))
	for _, d := range apiErr.Details {
		fmt.Fprintln(out, "  - "+d)
	}
	for _, issue := range apiErr.Issues {
		fmt.Fprintln(out, "  - "+issue)
	}
	if len(apiErr.Suggestions) > 0 {
		fmt.Fprintln(out, color.ColorWarning("Try this: ")+strings.Join(apiErr.Suggestions, " "))
	}
}

// explain prints err in detail and returns a short error for the exit path.
func explain(cmd *cobra.Command, err error) error {
	var apiErr *httputils.APIError
	if errors.As(err, &apiErr) {
		printAPIError(cmd, err)
		return fmt.Errorf("request failed with %s", apiErr.Code)
	}
	return err
}
