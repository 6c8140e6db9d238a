package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rpattn/crmimport/internal/domain"
)

type listRequest struct {
	Filter map[string]string `json:"filter"`
	Select []string          `json:"select"`
}

type addRequest struct {
	Fields domain.RecordPayload `json:"fields"`
	Params map[string]string    `json:"params"`
}

// CreateResult is the answer to a create call. An empty ID means the CRM rejected
// the record; Description then carries its explanation.
type CreateResult struct {
	ID          string
	Description string
}

// FindDuplicate looks up an existing contact by email, then by phone. A match on email
// returns without querying phone. With no identity values no request is made.
func (c *Client) FindDuplicate(ctx context.Context, identity domain.Identity) (string, bool, error) {
	if identity.Empty() {
		return "", false, nil
	}
	if identity.Email != "" {
		id, found, err := c.findBy(ctx, domain.FieldEmail, identity.Email)
		if err != nil || found {
			return id, found, err
		}
	}
	if identity.Phone != "" {
		return c.findBy(ctx, domain.FieldPhone, identity.Phone)
	}
	return "", false, nil
}

func (c *Client) findBy(ctx context.Context, fieldID, value string) (string, bool, error) {
	body := listRequest{
		Filter: map[string]string{fieldID: value},
		Select: []string{"ID"},
	}
	resp, err := c.call(ctx, http.MethodPost, methodList, body, c.timeouts.Search)
	if err != nil {
		return "", false, err
	}
	if resp.env.Error != "" || resp.env.ErrorDescription != "" {
		return "", false, fmt.Errorf("%w: %s by %s: %s", ErrRemote, methodList, fieldID, resp.env.errorText())
	}
	if resp.status < 200 || resp.status > 299 {
		return "", false, fmt.Errorf("%w: %s returned status %d", ErrUnexpectedResponse, methodList, resp.status)
	}
	if !resp.env.hasResult() {
		return "", false, nil
	}

	var matches []map[string]json.RawMessage
	if err := json.Unmarshal(resp.env.Result, &matches); err != nil {
		return "", false, fmt.Errorf("%w: %s result is not a list: %v", ErrUnexpectedResponse, methodList, err)
	}
	if len(matches) == 0 {
		return "", false, nil
	}
	id := idText(matches[0]["ID"])
	if id == "" {
		return "", false, fmt.Errorf("%w: %s match without ID", ErrUnexpectedResponse, methodList)
	}
	return id, true, nil
}

// Create adds a contact. A response without an identifier is a rejection, not an error.
func (c *Client) Create(ctx context.Context, payload domain.RecordPayload) (CreateResult, error) {
	if payload == nil {
		payload = domain.RecordPayload{}
	}
	flag := "N"
	if c.registerSonetEvent {
		flag = "Y"
	}
	body := addRequest{
		Fields: payload,
		Params: map[string]string{"REGISTER_SONET_EVENT": flag},
	}

	resp, err := c.call(ctx, http.MethodPost, methodAdd, body, c.timeouts.Create)
	if err != nil {
		return CreateResult{}, err
	}
	if id := idText(resp.env.Result); id != "" {
		return CreateResult{ID: id}, nil
	}
	return CreateResult{Description: orSnippet(resp.env.ErrorDescription, resp.body)}, nil
}
