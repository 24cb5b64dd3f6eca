package assistant

import (
	"encoding/json"

	openai "github.com/sashabaranov/go-openai"
)

// MaxFacts is how many facts an answer carries
const MaxFacts = 3

// SystemPrompt instructs the model to describe a place for a map user
const SystemPrompt = `You are a concise travel guide attached to a map application. The user names a place (a country, city, landmark or region) and you describe it.

Instructions:
- Use only well-established facts. If the name is ambiguous, pick the most prominent place and say which one in the summary.
- summary: two or three plain sentences about what the place is and why it is notable.
- facts: up to 3 short facts about history, geography or culture, one sentence each.
- Do not include coordinates, URLs or markdown.
- If the input is not a place, return an empty facts list and say so in the summary.
- Answer in the language given by the language code in the user message.`

// AnswerSchema is the structured output format for place descriptions
var AnswerSchema = openai.ChatCompletionResponseFormatJSONSchema{
	Name:   "place_description",
	Strict: true,
	Schema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"summary": {
				"type": "string",
				"description": "Two or three sentences describing the place"
			},
			"facts": {
				"type": "array",
				"items": { "type": "string" },
				"maxItems": 3,
				"description": "Short standalone facts"
			}
		},
		"required": ["summary", "facts"],
		"additionalProperties": false
	}`),
}
