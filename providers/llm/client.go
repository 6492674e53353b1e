package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"paper-intake/config"

	"go.uber.org/zap"
)

// promptTemplate erzwingt eine Antwort als JSON-Codeblock mit genau einem
// Schlüssel, damit die Extraktion feldweise geparst werden kann.
const promptTemplate = "%s\n\n### INPUT :\n%s\n\n### OUTPUT FORMAT :\nThe output should be a markdown code snippet formatted in the following schema:\n```json\n{\n\t\"%s\": string\n}\n```\n\n### OUTPUT :"

// Client kapselt die Kommunikation mit einer OpenAI-kompatiblen
// Chat-Completions-API.
type Client struct {
	Config *config.Config
	Logger *zap.Logger

	httpClient *http.Client
}

// NewClient erstellt einen neuen LLM-Client.
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	return &Client{
		Config: cfg,
		Logger: logger,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.RequestTimeout) * time.Second,
		},
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Invoke sendet einen einzelnen User-Prompt und gibt den Antworttext zurück.
func (c *Client) Invoke(ctx context.Context, prompt string) (string, error) {
	reqBody, err := json.Marshal(chatRequest{
		Model:       c.Config.LLMModel,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: 0,
	})
	if err != nil {
		return "", err
	}

	url := strings.TrimRight(c.Config.LLMBaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Config.LLMAPIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("llm request failed with status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var cr chatResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return "", err
	}
	if cr.Error != nil {
		return "", fmt.Errorf("llm error: %s", cr.Error.Message)
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("llm response contained no choices")
	}
	return cr.Choices[0].Message.Content, nil
}

// SendFieldRequest extrahiert genau ein Feld aus dem Eingabetext. Die
// Funktion schlägt nie fehl: jeder Transport- oder Parse-Fehler wird auf
// den Sentinel "ERROR" abgebildet, die Rohantwort bleibt zur Diagnose
// erhalten.
func (c *Client) SendFieldRequest(ctx context.Context, field, instruction, input string) (parsed, raw string) {
	prompt := fmt.Sprintf(promptTemplate, instruction, input, field)

	content, err := c.Invoke(ctx, prompt)
	if err != nil {
		c.Logger.Warn("LLM-Anfrage fehlgeschlagen.", zap.String("field", field), zap.Error(err))
		return "ERROR", err.Error()
	}
	return ParseFieldOutput(field, content), content
}

// ParseFieldOutput liest den Wert des angefragten Schlüssels aus der
// Modellantwort. Fehlt der Schlüssel oder ist die Antwort kein gültiges
// JSON, ist das Ergebnis "ERROR".
func ParseFieldOutput(field, content string) string {
	payload := extractJSONPayload(content)
	if payload == "" {
		return "ERROR"
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(payload), &obj); err != nil {
		return "ERROR"
	}
	value, ok := obj[field]
	if !ok {
		return "ERROR"
	}
	if s, ok := value.(string); ok {
		return s
	}
	// Strukturierte Werte (Listen, Objekte) kompakt serialisieren
	encoded, err := json.Marshal(value)
	if err != nil {
		return "ERROR"
	}
	return string(encoded)
}

// extractJSONPayload schneidet einen ```json-Codeblock oder ersatzweise das
// erste {...}-Objekt aus der Antwort heraus.
func extractJSONPayload(content string) string {
	if idx := strings.Index(content, "```json"); idx >= 0 {
		rest := content[idx+len("```json"):]
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end])
		}
	}
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		return content[start : end+1]
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
