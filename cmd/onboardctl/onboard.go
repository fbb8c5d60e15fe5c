package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	infrahttp "github.com/Fusionaimcp4/localboxs/infrastructure/http"
	"github.com/Fusionaimcp4/localboxs/internal/onboard"
)

const defaultOnboardTimeout = 6 * time.Minute

type onboardOptions struct {
	server  string
	timeout time.Duration
	request onboard.Request
}

func newOnboardCommand() *cobra.Command {
	opts := &onboardOptions{}

	cmd := &cobra.Command{
		Use:   "onboard",
		Short: "Onboard a business website",
		Example: `  onboardctl onboard --url https://acme.com --name "Acme"
  onboardctl onboard --url https://acme.com --primary "#112233"`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.server == "" {
				opts.server = envOr("ONBOARD_SERVER", defaultServer)
			}
			res, err := submitOnboarding(cmd.Context(), opts)
			if err != nil {
				return err
			}
			renderResult(cmd.OutOrStdout(), res)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.request.BusinessURL, "url", "", "business website URL")
	f.StringVar(&opts.request.BusinessName, "name", "", "business name (defaults to the hostname)")
	f.StringVar(&opts.request.PrimaryColor, "primary", "", "primary color, e.g. #0ea5e9")
	f.StringVar(&opts.request.SecondaryColor, "secondary", "", "secondary color")
	f.StringVar(&opts.request.LogoURL, "logo", "", "logo URL")
	f.StringVar(&opts.server, "server", "", "service base URL (default $ONBOARD_SERVER or "+defaultServer+")")
	f.DurationVar(&opts.timeout, "timeout", defaultOnboardTimeout, "request timeout")
	_ = cmd.MarkFlagRequired("url")

	return cmd
}

func submitOnboarding(ctx context.Context, opts *onboardOptions) (*onboard.Result, error) {
	payload, err := json.Marshal(opts.request)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	endpoint := strings.TrimRight(opts.server, "/") + "/api/v1/onboard"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := infrahttp.NewClient(&infrahttp.ClientConfig{Timeout: opts.timeout})
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("onboarding failed (%d): %s", resp.StatusCode, apiErr.Error)
		}
		return nil, fmt.Errorf("onboarding failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var res onboard.Result
	if err = json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if res.Slug == "" {
		return nil, errors.New("decode response: missing slug")
	}
	return &res, nil
}

func renderResult(w io.Writer, res *onboard.Result) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendRows([]table.Row{
		{"Slug", res.Slug},
		{"Business", res.Business},
		{"Demo URL", res.DemoURL},
		{"System message", res.SystemMessageFile},
		{"Inbox", res.Chatwoot.InboxID},
		{"Workflow", orDash(res.WorkflowID)},
	})
	if res.AgentBot != nil {
		t.AppendRow(table.Row{"Agent bot", res.AgentBot.ID})
	}
	if res.BotSetupSkipped {
		t.AppendRow(table.Row{"Bot setup skipped", res.Reason})
		for _, step := range res.SuggestedSteps {
			t.AppendRow(table.Row{"", "- " + step})
		}
	}
	t.Render()

	if len(res.Steps) == 0 {
		return
	}
	steps := table.NewWriter()
	steps.SetOutputMirror(w)
	steps.SetStyle(table.StyleLight)
	steps.AppendHeader(table.Row{"Step", "Policy", "Status", "Duration", "Error"})
	for _, s := range res.Steps {
		steps.AppendRow(table.Row{
			s.Name, s.Policy, s.Status,
			(time.Duration(s.DurationMS) * time.Millisecond).String(),
			s.Error,
		})
	}
	steps.Render()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
