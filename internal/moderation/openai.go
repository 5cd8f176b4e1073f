package moderation

import (
	"context"

	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

var newOpenAIClient = func(apiKey string) *openai.Client {
	c := openai.NewClient(option.WithAPIKey(apiKey))
	return &c
}

// openAIModerate is swapped in tests.
var openAIModerate = func(ctx context.Context, client *openai.Client, text string) (bool, error) {
	resp, err := client.Moderations.New(ctx, openai.ModerationNewParams{
		Input: openai.ModerationNewParamsInputUnion{OfString: openai.String(text)},
		Model: openai.ModerationModelOmniModerationLatest,
	})
	if err != nil {
		return false, err
	}
	for _, r := range resp.Results {
		if r.Flagged {
			return true, nil
		}
	}
	return false, nil
}

// OpenAIClassifier asks the OpenAI moderation endpoint about a message.
type OpenAIClassifier struct {
	client *openai.Client
}

// NewOpenAIClassifier returns a classifier using apiKey.
func NewOpenAIClassifier(apiKey string) *OpenAIClassifier {
	return &OpenAIClassifier{client: newOpenAIClient(apiKey)}
}

// Flagged implements Classifier.
func (c *OpenAIClassifier) Flagged(ctx context.Context, text string) (bool, error) {
	return openAIModerate(ctx, c.client, text)
}
