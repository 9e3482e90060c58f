package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tidwall/gjson"
)

func TestVapiCreateAssistant(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"asst_123","name":"x"}`))
	}))
	defer srv.Close()

	client := NewVapiClient("secret-key", srv.URL, time.Second)
	got, err := client.CreateAssistant(context.Background(), AssistantConfig{
		Name:               "Interview",
		MaxDurationSeconds: 150,
		Server:             AssistantServer{URL: "https://hooks.example.com/x"},
	})
	if err != nil {
		t.Fatalf("CreateAssistant() error = %v", err)
	}
	if got.ID != "asst_123" {
		t.Errorf("ID = %q", got.ID)
	}
	if gotAuth != "Bearer secret-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotPath != "/assistant" {
		t.Errorf("path = %q", gotPath)
	}
	if gjson.GetBytes(gotBody, "maxDurationSeconds").Int() != 150 {
		t.Errorf("body = %s", gotBody)
	}
	if gjson.GetBytes(gotBody, "server.url").String() != "https://hooks.example.com/x" {
		t.Errorf("server url missing from body %s", gotBody)
	}
}

func TestVapiCreateAssistantErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "Non-2xx status", status: http.StatusBadRequest, body: `{"message":"bad voice"}`},
		{name: "Missing id", status: http.StatusCreated, body: `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			if _, err := NewVapiClient("k", srv.URL, time.Second).CreateAssistant(context.Background(), AssistantConfig{}); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestVapiCreateAssistantTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte(`{"id":"late"}`))
	}))
	defer srv.Close()

	client := NewVapiClient("k", srv.URL, 50*time.Millisecond)
	if _, err := client.CreateAssistant(context.Background(), AssistantConfig{}); err == nil {
		t.Error("expected a timeout error")
	}
}

func TestVapiControlMessages(t *testing.T) {
	var bodies []map[string]any
	var auths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auths = append(auths, r.Header.Get("Authorization"))
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		bodies = append(bodies, body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	// control URLs are absolute and differ from the API base URL
	client := NewVapiClient("secret-key", "http://127.0.0.1:1", time.Second)
	ctx := context.Background()

	if err := client.Say(ctx, srv.URL+"/control", "Goodbye", true); err != nil {
		t.Fatalf("Say() error = %v", err)
	}
	if err := client.EndCall(ctx, srv.URL+"/control"); err != nil {
		t.Fatalf("EndCall() error = %v", err)
	}
	if err := client.EndCall(ctx, ""); err == nil {
		t.Error("expected error for empty control url")
	}

	if len(bodies) != 2 {
		t.Fatalf("got %d control messages", len(bodies))
	}
	if bodies[0]["type"] != "say" || bodies[0]["content"] != "Goodbye" || bodies[0]["endCallAfterSpoken"] != true {
		t.Errorf("say body = %v", bodies[0])
	}
	if bodies[1]["type"] != "end-call" {
		t.Errorf("end-call body = %v", bodies[1])
	}
	for i, auth := range auths {
		if auth != "" {
			t.Errorf("control message %d sent Authorization = %q", i, auth)
		}
	}
}
