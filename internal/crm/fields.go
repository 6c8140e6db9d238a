package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rpattn/crmimport/internal/domain"
)

type fieldMeta struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	ListLabel   string `json:"listLabel"`
	FormLabel   string `json:"formLabel"`
	FilterLabel string `json:"filterLabel"`
	IsReadOnly  bool   `json:"isReadOnly"`
	IsRequired  bool   `json:"isRequired"`
}

// Fields fetches the contact field catalog and keeps the writable, importable fields.
// EMAIL and PHONE are always kept. Every failure wraps ErrSchemaUnavailable.
func (c *Client) Fields(ctx context.Context) (domain.FieldCatalog, error) {
	resp, err := c.call(ctx, http.MethodGet, methodFields, nil, c.timeouts.Fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaUnavailable, err)
	}
	if resp.status < 200 || resp.status > 299 {
		return nil, fmt.Errorf("%w: status %d: %s", ErrSchemaUnavailable, resp.status, orSnippet(resp.env.errorText(), resp.body))
	}
	if !resp.env.hasResult() {
		return nil, fmt.Errorf("%w: response has no result: %s", ErrSchemaUnavailable, snippet(resp.body))
	}

	var raw map[string]fieldMeta
	if err := json.Unmarshal(resp.env.Result, &raw); err != nil {
		return nil, fmt.Errorf("%w: malformed field catalog: %v", ErrSchemaUnavailable, err)
	}

	catalog := filterFields(raw)
	c.logger.Infow("loaded crm field catalog", "endpoint", c.endpoint, "fields", len(raw), "importable", len(catalog))
	return catalog, nil
}

// filterFields converts the raw catalog into descriptors of importable fields.
func filterFields(raw map[string]fieldMeta) domain.FieldCatalog {
	catalog := make(domain.FieldCatalog, len(raw))
	for id, meta := range raw {
		kind := domain.FieldKind(meta.Type)
		if domain.IsMultiValue(id) {
			catalog[id] = domain.FieldDescriptor{
				ID:       id,
				Label:    fieldLabel(id, meta),
				Kind:     domain.FieldKindMultifield,
				Writable: true,
				Required: meta.IsRequired,
			}
			continue
		}
		if !kind.Importable() || meta.IsReadOnly {
			continue
		}
		catalog[id] = domain.FieldDescriptor{
			ID:       id,
			Label:    fieldLabel(id, meta),
			Kind:     kind,
			Writable: true,
			Required: meta.IsRequired,
		}
	}
	return catalog
}

// fieldLabel picks the first non-empty of listLabel, formLabel, filterLabel and title,
// falling back to the identifier. Custom fields carry their identifier in parentheses.
func fieldLabel(id string, meta fieldMeta) string {
	label := id
	for _, candidate := range []string{meta.ListLabel, meta.FormLabel, meta.FilterLabel, meta.Title} {
		if candidate != "" {
			label = candidate
			break
		}
	}
	if domain.IsCustomField(id) && label != id {
		return fmt.Sprintf("%s (%s)", label, id)
	}
	return label
}

func orSnippet(text string, body []byte) string {
	if text != "" {
		return text
	}
	return snippet(body)
}
