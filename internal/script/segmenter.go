// Package script turns a marketing brief into an ordered list of narrative
// segments via the text-generation service, and classifies free-form
// campaign text into structured context used for template selection and
// stock-footage search.
package script

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"adreel/internal/apperr"
	"adreel/internal/intent"
	"adreel/internal/models"
)

// ChatClient is the slice of the text-generation client the segmenter needs.
// *openai.Client satisfies it.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Segmenter generates and validates scripts.
type Segmenter struct {
	Client ChatClient
	Log    *logrus.Logger
	Model  string
}

const marketingPrompt = `You are a short-form vertical video scriptwriter for marketing campaigns.
Respond with machine-parseable JSON only: no preamble, no markdown, no explanation.
The JSON object must be {"title": string, "description": string, "segments": [...]}.
Each segment is {"intent": string, "text": string, "on_screen_text": string}.
Write 3-6 segments following the structure hook -> problem -> solution -> cta.
"text" is the exact narration to be spoken (1-3 short sentences).
"on_screen_text" is an optional short caption (max 6 words) or "".
Keep total narration under 60 seconds when read aloud at a natural pace.`

const newsPrompt = `You are a short-form vertical video scriptwriter for news and announcement content.
Respond with machine-parseable JSON only: no preamble, no markdown, no explanation.
The JSON object must be {"title": string, "description": string, "segments": [...]}.
Each segment is {"intent": string, "text": string, "on_screen_text": string}.
Write 3-6 segments following the structure lede -> context -> details -> impact.
"text" is the exact narration to be spoken (1-3 short sentences).
"on_screen_text" is an optional short caption (max 6 words) or "".
Keep total narration under 60 seconds when read aloud at a natural pace.`

const contextPrompt = `You classify marketing campaign text.
Respond with machine-parseable JSON only: no preamble, no markdown, no explanation.
The JSON object must be:
{"category": string, "brand": string, "offer": string, "audience": string, "location": string, "keywords": [string]}.
"category" is a short business category like "restaurant", "fitness", "real estate", "retail", "news".
"keywords" is 3-8 concrete visual search terms describing imagery that fits the campaign.
Use "" for unknown string fields and [] when no keywords can be inferred.`

var newsMarkers = []string{"news", "announcement", "update", "press", "report", "launch event"}

type rawSegment struct {
	Intent       string `json:"intent"`
	Text         string `json:"text"`
	OnScreenText string `json:"on_screen_text"`
}

type rawScript struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Segments    []rawSegment `json:"segments"`
}

// Run produces the script for a brief, inferring campaign context first when
// the brief warrants it. Context inference is skipped when the caller already
// supplied an explicit category and no free-text brief, so caller overrides
// win and no unnecessary service call is made.
func (s *Segmenter) Run(ctx context.Context, brief models.Brief) (*models.Script, *models.CampaignContext, error) {
	var inferred *models.CampaignContext
	if brief.Category == "" || strings.TrimSpace(brief.Context) != "" {
		text := brief.Context
		if strings.TrimSpace(text) == "" {
			text = brief.Title + "\n" + brief.Description
		}
		cc, err := s.InferContext(ctx, text)
		if err != nil {
			s.Log.WithError(err).Warn("context inference failed, continuing without it")
		} else {
			inferred = cc
		}
	}

	category := brief.Category
	if category == "" && inferred != nil {
		category = inferred.Category
	}

	system := marketingPrompt
	if isNewsBrief(brief, category) {
		system = newsPrompt
	}

	resp, err := s.Client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: buildUserPrompt(brief, category, inferred)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.7,
	})
	if err != nil {
		return nil, inferred, &apperr.ScriptGenerationError{Reason: "text-generation request failed", Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, inferred, &apperr.ScriptGenerationError{Reason: "service returned no choices"}
	}

	payload, ok := ExtractJSONObject(resp.Choices[0].Message.Content)
	if !ok {
		return nil, inferred, &apperr.ScriptGenerationError{Reason: "response contains no JSON object"}
	}

	var raw rawScript
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, inferred, &apperr.ScriptGenerationError{Reason: "unparseable script JSON", Err: err}
	}
	if len(raw.Segments) == 0 {
		return nil, inferred, &apperr.ScriptGenerationError{Reason: "script has no segments"}
	}

	script := &models.Script{Title: raw.Title, Description: raw.Description}
	if script.Title == "" {
		script.Title = brief.Title
	}
	for _, rs := range raw.Segments {
		text := strings.TrimSpace(rs.Text)
		if text == "" {
			continue
		}
		script.Segments = append(script.Segments, models.Segment{
			Index:        len(script.Segments),
			Intent:       intent.Normalize(rs.Intent),
			Text:         text,
			OnScreenText: strings.TrimSpace(rs.OnScreenText),
		})
	}
	if len(script.Segments) == 0 {
		return nil, inferred, &apperr.ScriptGenerationError{Reason: "all segments empty after trimming"}
	}

	s.Log.WithFields(logrus.Fields{"segments": len(script.Segments), "category": category}).Info("script generated")
	return script, inferred, nil
}

// InferContext asks the text-generation service to classify raw campaign text.
func (s *Segmenter) InferContext(ctx context.Context, text string) (*models.CampaignContext, error) {
	resp, err := s.Client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: contextPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.2,
	})
	if err != nil {
		return nil, &apperr.ScriptGenerationError{Reason: "context inference request failed", Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &apperr.ScriptGenerationError{Reason: "context inference returned no choices"}
	}

	payload, ok := ExtractJSONObject(resp.Choices[0].Message.Content)
	if !ok {
		return nil, &apperr.ScriptGenerationError{Reason: "context inference returned no JSON object"}
	}
	var cc models.CampaignContext
	if err := json.Unmarshal([]byte(payload), &cc); err != nil {
		return nil, &apperr.ScriptGenerationError{Reason: "unparseable context JSON", Err: err}
	}
	return &cc, nil
}

func buildUserPrompt(brief models.Brief, category string, inferred *models.CampaignContext) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Write the script for a vertical marketing video.\n\nTITLE: %s\n", brief.Title))
	if brief.Description != "" {
		sb.WriteString(fmt.Sprintf("DESCRIPTION: %s\n", brief.Description))
	}
	if category != "" {
		sb.WriteString(fmt.Sprintf("CATEGORY: %s\n", category))
	}
	if brief.Tone != "" {
		sb.WriteString(fmt.Sprintf("TONE: %s\n", brief.Tone))
	}
	if brief.Context != "" {
		sb.WriteString(fmt.Sprintf("CAMPAIGN CONTEXT:\n%s\n", brief.Context))
	}
	if inferred != nil && inferred.Brand != "" {
		sb.WriteString(fmt.Sprintf("BRAND: %s\n", inferred.Brand))
	}
	if inferred != nil && inferred.Offer != "" {
		sb.WriteString(fmt.Sprintf("OFFER: %s\n", inferred.Offer))
	}
	sb.WriteString("\nRespond ONLY with the JSON object.")
	return sb.String()
}

// isNewsBrief picks the news template when title, category or description
// reads like announcement content.
func isNewsBrief(brief models.Brief, category string) bool {
	haystack := strings.ToLower(brief.Title + " " + category + " " + brief.Description)
	for _, m := range newsMarkers {
		if strings.Contains(haystack, m) {
			return true
		}
	}
	return false
}

// ExtractJSONObject returns the first balanced JSON object in s, tolerating
// surrounding prose and markdown fences. The service response is treated as
// an untrusted external format.
func ExtractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
