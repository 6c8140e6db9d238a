package importer

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/crmimport/internal/crm"
	"github.com/rpattn/crmimport/internal/domain"
)

type stubClient struct {
	*stubRemote
	fieldCalls int
	fieldsErr  error
}

func (c *stubClient) Fields(context.Context) (domain.FieldCatalog, error) {
	c.fieldCalls++
	if c.fieldsErr != nil {
		return nil, c.fieldsErr
	}
	return testCatalog, nil
}

type stubOutcomeReader struct {
	run      domain.ImportRun
	outcomes []domain.ImportOutcome
}

func (s *stubOutcomeReader) GetRun(_ context.Context, runID uuid.UUID) (*domain.ImportRun, error) {
	if runID != s.run.ID {
		return nil, domain.ErrRunNotFound
	}
	return &s.run, nil
}

func (s *stubOutcomeReader) ListOutcomes(context.Context, uuid.UUID) ([]domain.ImportOutcome, error) {
	return s.outcomes, nil
}

func newTestServer(t *testing.T, client *stubClient, opts ...HandlerOption) *httptest.Server {
	t.Helper()
	factory := func(webhook string) (Client, error) {
		if webhook == "" {
			return nil, crm.ErrInvalidEndpoint
		}
		return client, nil
	}
	handler := NewHTTPHandler(NewService(), factory, opts...)
	srv := httptest.NewServer(handler.Routes())
	t.Cleanup(srv.Close)
	return srv
}

func multipartBody(t *testing.T, fileName, content string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func TestHandlerFieldsAreCached(t *testing.T) {
	client := &stubClient{stubRemote: newStubRemote()}
	srv := newTestServer(t, client)

	for i := 0; i < 2; i++ {
		resp, err := http.Post(srv.URL+"/fields", "application/json", bytes.NewBufferString(`{"webhook":"https://example.bitrix24.com/rest/1/secret"}`))
		require.NoError(t, err)
		var fields []domain.FieldDescriptor
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&fields))
		resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		require.Len(t, fields, 4)
		assert.Equal(t, "Date of birth", fields[0].Label)
	}
	assert.Equal(t, 1, client.fieldCalls)
}

func TestHandlerFieldsErrors(t *testing.T) {
	client := &stubClient{stubRemote: newStubRemote(), fieldsErr: crm.ErrSchemaUnavailable}
	srv := newTestServer(t, client)

	resp, err := http.Post(srv.URL+"/fields", "application/json", bytes.NewBufferString(`{"webhook":"https://example.bitrix24.com/rest/1/secret"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/fields", "application/json", bytes.NewBufferString(`{"webhook":""}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandlerPreview(t *testing.T) {
	srv := newTestServer(t, &stubClient{stubRemote: newStubRemote()})

	body, contentType := multipartBody(t, "people.csv", "Name,Email\nAnn,ann@x.com\nBob,bob@x.com\n", nil)
	resp, err := http.Post(srv.URL+"/preview", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var preview previewResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&preview))
	assert.Equal(t, []string{"Name", "Email"}, preview.Columns)
	assert.Equal(t, 2, preview.TotalRows)
	assert.Equal(t, []string{"Bob", "bob@x.com"}, preview.Rows[1])
}

func TestHandlerPreviewRejectsUnsupportedFile(t *testing.T) {
	srv := newTestServer(t, &stubClient{stubRemote: newStubRemote()})

	body, contentType := multipartBody(t, "people.pdf", "%PDF", nil)
	resp, err := http.Post(srv.URL+"/preview", contentType, body)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandlerImportAndArtifacts(t *testing.T) {
	client := &stubClient{stubRemote: newStubRemote()}
	client.existing["bob@x.com"] = "42"
	srv := newTestServer(t, client)

	body, contentType := multipartBody(t, "people.csv", "Name,Email\nAnn,ann@x.com\nBob,bob@x.com\nCid,cid@x.com\n", map[string]string{
		"webhook":         "https://example.bitrix24.com/rest/1/secret",
		"mapping":         `{"Name":"NAME","Email":"EMAIL"}`,
		"checkDuplicates": "true",
	})
	resp, err := http.Post(srv.URL+"/imports", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result importResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, domain.ImportSummary{TotalRows: 3, SuccessCount: 3}, result.Summary)
	require.Len(t, result.Outcomes, 3)
	assert.Equal(t, domain.ResultDuplicateFound, result.Outcomes[1].Result)

	logResp, err := http.Get(srv.URL + "/imports/" + result.RunID.String() + "/log.csv")
	require.NoError(t, err)
	var logBody bytes.Buffer
	_, _ = logBody.ReadFrom(logResp.Body)
	logResp.Body.Close()
	assert.Equal(t, http.StatusOK, logResp.StatusCode)
	assert.Contains(t, logBody.String(), "DuplicateFound")

	outResp, err := http.Get(srv.URL + "/imports/" + result.RunID.String() + "/output.xlsx")
	require.NoError(t, err)
	outResp.Body.Close()
	assert.Equal(t, http.StatusOK, outResp.StatusCode)

	missing, err := http.Get(srv.URL + "/imports/" + uuid.NewString() + "/log.csv")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestHandlerImportRejectsBadMapping(t *testing.T) {
	srv := newTestServer(t, &stubClient{stubRemote: newStubRemote()})

	for _, mappingJSON := range []string{`{}`, `{"Name":"NOPE"}`, `not json`} {
		body, contentType := multipartBody(t, "people.csv", "Name,Email\nAnn,ann@x.com\n", map[string]string{
			"webhook": "https://example.bitrix24.com/rest/1/secret",
			"mapping": mappingJSON,
		})
		resp, err := http.Post(srv.URL+"/imports", contentType, body)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, mappingJSON)
	}
}

func TestHandlerOutcomes(t *testing.T) {
	reader := &stubOutcomeReader{
		run:      domain.ImportRun{ID: uuid.New(), FileName: "people.csv"},
		outcomes: []domain.ImportOutcome{{RowIndex: 1, Result: domain.ResultCreated, RemoteID: "7"}},
	}
	srv := newTestServer(t, &stubClient{stubRemote: newStubRemote()}, WithOutcomeReader(reader))

	resp, err := http.Get(srv.URL + "/imports/" + reader.run.ID.String() + "/outcomes")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got outcomesResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "people.csv", got.Run.FileName)
	assert.Equal(t, "7", got.Outcomes[0].RemoteID)

	unknown, err := http.Get(srv.URL + "/imports/" + uuid.NewString() + "/outcomes")
	require.NoError(t, err)
	unknown.Body.Close()
	assert.Equal(t, http.StatusNotFound, unknown.StatusCode)
}

func TestHandlerOutcomesDisabled(t *testing.T) {
	srv := newTestServer(t, &stubClient{stubRemote: newStubRemote()})

	resp, err := http.Get(srv.URL + "/imports/" + uuid.NewString() + "/outcomes")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandlerImportUsesDefaultCheckDuplicates(t *testing.T) {
	cases := []struct {
		name     string
		opts     []HandlerOption
		searches int
	}{
		{name: "enabled by default", searches: 1},
		{name: "configured off", opts: []HandlerOption{WithDefaultCheckDuplicates(false)}, searches: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := &stubClient{stubRemote: newStubRemote()}
			srv := newTestServer(t, client, tc.opts...)

			body, contentType := multipartBody(t, "people.csv", "Name,Email\nAnn,ann@x.com\n", map[string]string{
				"webhook": "https://example.bitrix24.com/rest/1/secret",
				"mapping": `{"Name":"NAME","Email":"EMAIL"}`,
			})
			resp, err := http.Post(srv.URL+"/imports", contentType, body)
			require.NoError(t, err)
			resp.Body.Close()

			require.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Len(t, client.searches, tc.searches)
		})
	}
}
