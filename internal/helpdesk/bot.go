package helpdesk

import (
	"context"
	"fmt"
	"net/http"

	infraerrors "github.com/Fusionaimcp4/localboxs/infrastructure/errors"
	infralogger "github.com/Fusionaimcp4/localboxs/infrastructure/logger"
)

// WebhookURL is the workflow webhook the bot for businessName posts to.
func (c *Client) WebhookURL(businessName string) string {
	return fmt.Sprintf("%s/webhook/%s", c.webhookBase, businessName)
}

// CreateBot creates "<businessName> Bot" with its outgoing URL pointing at
// the business workflow webhook. A 404 means the installation has no bot
// API and is reported as ErrBotAPIUnavailable.
func (c *Client) CreateBot(ctx context.Context, businessName string) (*Bot, error) {
	body := map[string]any{
		"name":         businessName + " Bot",
		"description":  fmt.Sprintf("Bot for %s demo", businessName),
		"outgoing_url": c.WebhookURL(businessName),
	}

	var resp struct {
		ID               int64  `json:"id"`
		Name             string `json:"name"`
		AccessToken      string `json:"access_token"`
		AccessTokenCamel string `json:"accessToken"`
	}
	err := c.do(ctx, http.MethodPost, c.accountPath("/agent_bots"), body, &resp)
	if infraerrors.IsStatus(err, http.StatusNotFound) {
		return nil, &Error{Op: "create bot", Err: ErrBotAPIUnavailable}
	}
	if err != nil {
		return nil, &Error{Op: "create bot", Err: err}
	}

	token := resp.AccessToken
	if token == "" {
		token = resp.AccessTokenCamel
	}

	c.log.Info("Created helpdesk agent bot",
		infralogger.Int64("bot_id", resp.ID),
		infralogger.String("name", resp.Name),
	)
	return &Bot{ID: resp.ID, Name: resp.Name, AccessToken: token}, nil
}

// DeleteBot removes an agent bot. Deleting a missing bot succeeds.
func (c *Client) DeleteBot(ctx context.Context, id int64) error {
	err := c.do(ctx, http.MethodDelete, c.accountPath("/agent_bots/%d", id), nil, nil)
	if err != nil && !infraerrors.IsStatus(err, http.StatusNotFound) {
		return &Error{Op: "delete bot", Err: err}
	}
	c.log.Info("Deleted helpdesk agent bot", infralogger.Int64("bot_id", id))
	return nil
}
