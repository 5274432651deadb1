package mcp

import (
	"fmt"
	"strings"

	"github.com/copyleftdev/sigmos/internal/plugin"
)

var (
	positiveWords = map[string]bool{"good": true, "great": true, "excellent": true, "happy": true, "love": true, "nice": true}
	negativeWords = map[string]bool{"bad": true, "terrible": true, "awful": true, "sad": true, "hate": true, "poor": true}
)

// answer produces deterministic responses for local mode.
func answer(method string, req Request) (map[string]any, error) {
	a := plugin.NewArgs(DefaultName, method, req.Arguments)

	switch method {
	case "complete":
		prompt, err := a.String("prompt", 0)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"text":        "MCP completion for: " + prompt,
			"model":       req.Model,
			"tokens_used": float64(len(strings.Fields(prompt))),
		}, nil

	case "embed":
		text, err := a.String("text", 0)
		if err != nil {
			return nil, err
		}
		dims := req.Dimensions
		if dims <= 0 {
			dims = 768
		}
		embedding := make([]any, dims)
		for i := range embedding {
			embedding[i] = float64(i) * 0.001
		}
		return map[string]any{
			"embedding":  embedding,
			"dimensions": float64(dims),
			"input_text": text,
		}, nil

	case "chat":
		messages, err := a.List("messages", 0)
		if err != nil {
			return nil, err
		}
		response := "MCP chat response"
		if n := len(messages); n > 0 {
			if last, ok := messages[n-1].(map[string]any); ok {
				if content, ok := last["content"].(string); ok {
					response = "MCP chat response to: " + content
				}
			}
		}
		return map[string]any{
			"response": response,
			"role":     "assistant",
			"model":    req.Model,
		}, nil

	case "analyze":
		text, err := a.String("text", 0)
		if err != nil {
			return nil, err
		}
		words := strings.Fields(strings.ToLower(text))
		score := 0
		for _, w := range words {
			w = strings.Trim(w, ".,!?;:")
			switch {
			case positiveWords[w]:
				score++
			case negativeWords[w]:
				score--
			}
		}
		sentiment := "neutral"
		if score > 0 {
			sentiment = "positive"
		} else if score < 0 {
			sentiment = "negative"
		}
		return map[string]any{
			"sentiment":  sentiment,
			"confidence": 0.85,
			"word_count": float64(len(words)),
			"language":   "en",
		}, nil
	}

	return nil, fmt.Errorf("unknown MCP method: %s", method)
}
