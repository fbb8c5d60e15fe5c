package helpdesk

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	infraerrors "github.com/Fusionaimcp4/localboxs/infrastructure/errors"
	infralogger "github.com/Fusionaimcp4/localboxs/infrastructure/logger"
)

type inboxResponse struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	WebsiteToken string `json:"website_token"`
	Channel      struct {
		WebsiteToken string `json:"website_token"`
	} `json:"channel"`
}

func (r inboxResponse) inbox() *Inbox {
	token := r.WebsiteToken
	if token == "" {
		token = r.Channel.WebsiteToken
	}
	return &Inbox{ID: r.ID, Name: r.Name, WebsiteToken: token}
}

// CreateInbox creates a web widget inbox for websiteURL.
func (c *Client) CreateInbox(ctx context.Context, name, websiteURL string) (*Inbox, error) {
	body := map[string]any{
		"name": name,
		"channel": map[string]any{
			"type":         "web_widget",
			"website_url":  websiteURL,
			"widget_color": c.widgetColor,
		},
	}

	var resp inboxResponse
	if err := c.do(ctx, http.MethodPost, c.accountPath("/inboxes"), body, &resp); err != nil {
		return nil, &Error{Op: "create inbox", Err: err}
	}

	inbox := resp.inbox()
	if inbox.ID == 0 || inbox.WebsiteToken == "" {
		return nil, &Error{Op: "create inbox", Err: errors.New("response is missing id or website_token")}
	}

	c.log.Info("Created helpdesk inbox",
		infralogger.Int64("inbox_id", inbox.ID),
		infralogger.String("name", name),
	)
	return inbox, nil
}

// GetInbox returns ErrInboxNotFound when the inbox no longer exists.
func (c *Client) GetInbox(ctx context.Context, id int64) (*Inbox, error) {
	var resp inboxResponse
	err := c.do(ctx, http.MethodGet, c.accountPath("/inboxes/%d", id), nil, &resp)
	if infraerrors.IsStatus(err, http.StatusNotFound) {
		return nil, &Error{Op: "get inbox", Err: fmt.Errorf("%w: %d", ErrInboxNotFound, id)}
	}
	if err != nil {
		return nil, &Error{Op: "get inbox", Err: err}
	}
	return resp.inbox(), nil
}

// DeleteInbox removes an inbox. Deleting a missing inbox succeeds.
func (c *Client) DeleteInbox(ctx context.Context, id int64) error {
	err := c.do(ctx, http.MethodDelete, c.accountPath("/inboxes/%d", id), nil, nil)
	if err != nil && !infraerrors.IsStatus(err, http.StatusNotFound) {
		return &Error{Op: "delete inbox", Err: err}
	}
	c.log.Info("Deleted helpdesk inbox", infralogger.Int64("inbox_id", id))
	return nil
}
