package visionsvc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/trezcool/hagwon/core"
	"github.com/trezcool/hagwon/core/intake"
)

type nopLogger struct{}

func (nopLogger) Enable(bool)                  {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func newTestService(t *testing.T, handler http.HandlerFunc) (*openAIService, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	conf := &core.Config{}
	conf.OpenAI.ApiKey = "sk-test"
	conf.OpenAI.Model = "gpt-4o-mini"
	conf.OpenAI.BaseURL = server.URL
	conf.OpenAI.Timeout = 5 * time.Second
	return NewOpenAIService(conf, nopLogger{}), server
}

func modelAnswer(content string) []byte {
	res := map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"content": content}},
		},
	}
	data, _ := json.Marshal(res)
	return data
}

func TestExtractApplication(t *testing.T) {
	fieldsJSON := `{
		"name": "Kim Minjun",
		"grade": "E3",
		"parent_phone": "010-1234-5678",
		"preferred_times": ["mon 15:00", "wed 16:00"],
		"reading_habit": "reads 30 minutes a day",
		"special_notes": "shy at first",
		"blue_notes": "sibling of Seoyeon"
	}`
	wantFields := intake.ExtractedFields{
		Name:           "Kim Minjun",
		Grade:          "E3",
		ParentPhone:    "010-1234-5678",
		PreferredTimes: []string{"mon 15:00", "wed 16:00"},
		ReadingHabit:   "reads 30 minutes a day",
		SpecialNotes:   "shy at first",
		BlueNotes:      "sibling of Seoyeon",
	}

	tests := []struct {
		name       string
		content    string
		wantFields intake.ExtractedFields
	}{
		{name: "plain json", content: fieldsJSON, wantFields: wantFields},
		{name: "json fenced", content: "```json\n" + fieldsJSON + "\n```", wantFields: wantFields},
		{name: "bare fenced", content: "```\n" + fieldsJSON + "\n```", wantFields: wantFields},
		{name: "unparseable output is not an error", content: "I could not read this form, sorry!", wantFields: intake.ExtractedFields{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotReq chatRequest
			svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/v1/chat/completions" {
					t.Errorf("path = %v, want /v1/chat/completions", r.URL.Path)
				}
				if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
					t.Errorf("Authorization = %v, want Bearer sk-test", auth)
				}
				if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
					t.Errorf("decoding request: %v", err)
				}
				_, _ = w.Write(modelAnswer(tt.content))
			})

			fields, rawText, err := svc.ExtractApplication(context.Background(), []byte("fake-image"), "image/png")
			if err != nil {
				t.Fatalf("ExtractApplication() error = %v", err)
			}
			if !reflect.DeepEqual(fields, tt.wantFields) {
				t.Errorf("ExtractApplication() fields = %+v, want %+v", fields, tt.wantFields)
			}
			if rawText != tt.content {
				t.Errorf("ExtractApplication() rawText = %q, want %q", rawText, tt.content)
			}

			if gotReq.Model != "gpt-4o-mini" {
				t.Errorf("request model = %v, want gpt-4o-mini", gotReq.Model)
			}
			if gotReq.MaxTokens != maxTokens {
				t.Errorf("request max_tokens = %v, want %v", gotReq.MaxTokens, maxTokens)
			}
			parts := gotReq.Messages[0].Content
			if len(parts) != 2 || parts[0].Text != extractionPrompt {
				t.Errorf("request parts = %+v, want prompt + image", parts)
			}
			if !strings.HasPrefix(parts[1].ImageURL.URL, "data:image/png;base64,") {
				t.Errorf("image url = %.40q..., want a data URL", parts[1].ImageURL.URL)
			}
		})
	}
}

func TestExtractApplicationAPIError(t *testing.T) {
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "rate limited"}}`))
	})

	_, _, err := svc.ExtractApplication(context.Background(), []byte("fake-image"), "image/jpeg")
	if !IsAPIError(err) {
		t.Fatalf("ExtractApplication() error = %v, want APIError", err)
	}
	apiErr := err.(*APIError)
	if apiErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("APIError.StatusCode = %v, want %v", apiErr.StatusCode, http.StatusTooManyRequests)
	}
	if !strings.Contains(apiErr.Body, "rate limited") {
		t.Errorf("APIError.Body = %q, want the upstream body", apiErr.Body)
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "no fence", in: `{"a": 1}`, want: `{"a": 1}`},
		{name: "json fence", in: "```json\n{\"a\": 1}\n```", want: `{"a": 1}`},
		{name: "bare fence", in: "```\n{\"a\": 1}\n```", want: `{"a": 1}`},
		{name: "unterminated fence", in: "```json\n{\"a\": 1}", want: `{"a": 1}`},
		{name: "surrounding whitespace", in: "  \n```json\n{\"a\": 1}\n```\n ", want: `{"a": 1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripCodeFence(tt.in); got != tt.want {
				t.Errorf("stripCodeFence() = %q, want %q", got, tt.want)
			}
		})
	}
}
