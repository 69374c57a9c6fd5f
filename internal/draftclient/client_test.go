package draftclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guard-backend/internal/wizard"
)

func TestNew_RejectsBadURL(t *testing.T) {
	_, err := New("not a url")
	assert.Error(t, err)
	_, err = New("/relative")
	assert.Error(t, err)

	c, err := New("http://localhost:8080/api/")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/api", c.base)
}

func TestClient_PatchSendsJSONAndNormalizes(t *testing.T) {
	var gotPath, gotMethod string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod = r.URL.Path, r.Method
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response_id":"abc","current_step":4,"sections":{"incident-details":{"incident_type":["Verbal"],"unknown":"x"}}}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL + "/api")
	require.NoError(t, err)
	r, err := c.PatchSection(context.Background(), "abc", wizard.StepIncidentDetails, wizard.Values{"incident_type": []string{"Verbal"}})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.Equal(t, "/api/reports/abc/incident-details", gotPath)
	assert.Equal(t, []any{"Verbal"}, gotBody["incident_type"])
	assert.Equal(t, 4, r.CurrentStep)
	assert.Equal(t, wizard.Values{"incident_type": []string{"Verbal"}}, r.Section(wizard.StepIncidentDetails))
}

func TestClient_MapsErrorBodies(t *testing.T) {
	cases := []struct {
		status int
		body   string
		check  func(error) bool
	}{
		{http.StatusNotFound, `{"code":"REPORT_NOT_FOUND"}`, wizard.IsNotFound},
		{http.StatusNotFound, `not json`, wizard.IsNotFound},
		{http.StatusConflict, `{"code":"REPORT_FROZEN"}`, wizard.IsFrozen},
		{http.StatusConflict, `{"code":"REPORT_INCOMPLETE","step":"personal-info"}`, wizard.IsIncomplete},
		{http.StatusBadGateway, `{"error":"upstream"}`, wizard.IsUnavailable},
		{http.StatusBadRequest, `{"code":"PAYLOAD_INVALID","step":"personal-info"}`, func(err error) bool {
			return wizard.Code(err) == wizard.ErrCodePayloadInvalid
		}},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(tc.body))
		}))
		c, err := New(srv.URL)
		require.NoError(t, err)
		_, err = c.Get(context.Background(), "abc")
		assert.True(t, tc.check(err), "status %d body %s: %v", tc.status, tc.body, err)
		srv.Close()
	}
}

func TestClient_TransportFailureIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(url)
	require.NoError(t, err)
	_, err = c.Submit(context.Background(), "abc")
	assert.True(t, wizard.IsUnavailable(err))
}

func TestClient_CreateFollowsUp(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/reports", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"response_id":"new-id","message":"ok"}`))
	})
	mux.HandleFunc("/reports/new-id", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response_id":"new-id","current_step":0}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)
	r, err := c.Create(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "new-id", r.ResponseID)
	assert.NotNil(t, r.Sections)
}
