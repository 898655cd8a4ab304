package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/nimasrn/rent-reminders/internal/messaging"
	"github.com/nimasrn/rent-reminders/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T, successRate float64) (*httptest.Server, *messaging.Client) {
	gin.SetMode(gin.TestMode)
	srv := httptest.NewServer(SetupRouter(NewHandler(NewMockProvider(successRate, 0, 0))))
	t.Cleanup(srv.Close)

	client, err := messaging.NewClient(messaging.Config{
		Providers: []messaging.ProviderConfig{{Name: "mock", URL: srv.URL}},
	})
	require.NoError(t, err)
	return srv, client
}

func testPayload() *model.MessagePayload {
	return &model.MessagePayload{
		To:                "+254700000001",
		Message:           "Hi Jane, rent of KES 50,000.00 is due on 2024-03-05.",
		TemplateVariables: map[string]string{"tenant_name": "Jane"},
		Metadata: model.PayloadMetadata{
			ReminderID:   "r-1",
			ReminderType: model.TriggerTypeRentDue,
			TriggerDate:  "2024-03-02",
		},
	}
}

func TestProvider_SendDelivers(t *testing.T) {
	srv, client := newTestProvider(t, 1)

	res, err := client.Send(context.Background(), testPayload())
	require.NoError(t, err)
	assert.Equal(t, messaging.StatusSent, res.Status)
	assert.NotEmpty(t, res.DeliveryID)

	resp, err := http.Get(srv.URL + "/api/v1/messages/" + res.DeliveryID)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var d Delivery
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&d))
	assert.Equal(t, "r-1", d.ReminderID)
	assert.Equal(t, "+254700000001", d.To)
}

func TestProvider_SendRejects(t *testing.T) {
	_, client := newTestProvider(t, 0)

	_, err := client.Send(context.Background(), testPayload())
	require.Error(t, err)

	var rejected *messaging.RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Contains(t, rejectReasons, rejected.Reason)
}

func TestProvider_Health(t *testing.T) {
	_, client := newTestProvider(t, 1)
	assert.Equal(t, map[string]bool{"mock": true}, client.Health(context.Background()))
}

func TestProvider_BadRequests(t *testing.T) {
	srv, _ := newTestProvider(t, 1)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"malformed payload", http.MethodPost, "/api/v1/messages/send", `{"to":`, http.StatusBadRequest},
		{"missing recipient", http.MethodPost, "/api/v1/messages/send", `{"message":"hi"}`, http.StatusBadRequest},
		{"unknown delivery", http.MethodGet, "/api/v1/messages/nope", "", http.StatusNotFound},
		{"rate out of range", http.MethodPut, "/api/v1/config", `{"success_rate":1.5}`, http.StatusBadRequest},
		{"rate update", http.MethodPut, "/api/v1/config", `{"success_rate":0.5}`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, srv.URL+tt.path, bytes.NewBufferString(tt.body))
			require.NoError(t, err)
			req.Header.Set("Content-Type", "application/json")

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}
