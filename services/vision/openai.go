package visionsvc

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/hagwon/core"
	"github.com/trezcool/hagwon/core/intake"
)

const maxTokens = 1000

// APIError is a non-2xx answer from the vision API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("vision api: status %d: %s", e.StatusCode, e.Body)
}

func IsAPIError(err error) bool {
	_, ok := errors.Cause(err).(*APIError)
	return ok
}

// OpenAI chat completions wire format (the parts we use).
type (
	chatRequest struct {
		Model     string        `json:"model"`
		Messages  []chatMessage `json:"messages"`
		MaxTokens int           `json:"max_tokens"`
	}

	chatMessage struct {
		Role    string        `json:"role"`
		Content []contentPart `json:"content"`
	}

	contentPart struct {
		Type     string    `json:"type"`
		Text     string    `json:"text,omitempty"`
		ImageURL *imageURL `json:"image_url,omitempty"`
	}

	imageURL struct {
		URL string `json:"url"`
	}

	chatResponse struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
)

type openAIService struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
	logger  core.Logger
}

var _ intake.Extractor = (*openAIService)(nil)

func NewOpenAIService(conf *core.Config, logger core.Logger) *openAIService {
	return &openAIService{
		client:  &http.Client{Timeout: conf.OpenAI.Timeout},
		baseURL: conf.OpenAI.BaseURL,
		apiKey:  conf.OpenAI.ApiKey,
		model:   conf.OpenAI.Model,
		logger:  logger,
	}
}

// ExtractApplication sends the form image through the vision model and
// decodes its JSON answer. Unparseable model output is not an error:
// the raw text comes back with empty fields and the staff fills the
// form by hand.
func (svc *openAIService) ExtractApplication(ctx context.Context, image []byte, contentType string) (intake.ExtractedFields, string, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(image))

	payload := chatRequest{
		Model: svc.model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: extractionPrompt},
				{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
			},
		}},
		MaxTokens: maxTokens,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return intake.ExtractedFields{}, "", errors.Wrap(err, "marshalling request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, svc.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return intake.ExtractedFields{}, "", errors.Wrap(err, "creating request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+svc.apiKey)

	res, err := svc.client.Do(req)
	if err != nil {
		return intake.ExtractedFields{}, "", errors.Wrap(err, "calling vision api")
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		resBody, _ := io.ReadAll(res.Body)
		return intake.ExtractedFields{}, "", &APIError{StatusCode: res.StatusCode, Body: string(resBody)}
	}

	var chatRes chatResponse
	if err = json.NewDecoder(res.Body).Decode(&chatRes); err != nil {
		return intake.ExtractedFields{}, "", errors.Wrap(err, "decoding response")
	}
	if len(chatRes.Choices) == 0 {
		return intake.ExtractedFields{}, "", errors.New("vision api returned no choices")
	}

	content := chatRes.Choices[0].Message.Content
	var fields intake.ExtractedFields
	if err = json.Unmarshal([]byte(stripCodeFence(content)), &fields); err != nil {
		svc.logger.Warn(fmt.Sprintf("unparseable model output: %v", err), err)
		return intake.ExtractedFields{}, content, nil
	}
	return fields, content, nil
}

// stripCodeFence peels a markdown code block off the model output;
// the model fences its JSON more often than not.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	for _, fence := range []string{"```json", "```"} {
		if strings.HasPrefix(s, fence) {
			s = strings.TrimPrefix(s, fence)
			if idx := strings.LastIndex(s, "```"); idx != -1 {
				s = s[:idx]
			}
			break
		}
	}
	return strings.TrimSpace(s)
}
