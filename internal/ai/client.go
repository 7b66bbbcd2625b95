package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/palemoky/crisis-arena/internal/config"
)

// Client 通过 HTTP 调用外部生成服务（mistral / openai / gemini）。
// 请求失败时按指数退避重试，重试耗尽后返回错误，由调用方兜底。
type Client struct {
	provider   string
	apiKey     string
	model      string
	baseURL    string
	maxRetries int
	httpClient *http.Client
}

var _ Generator = (*Client)(nil)

// NewClient 创建生成服务客户端
func NewClient(cfg *config.AIConfig) *Client {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv(strings.ToUpper(cfg.Provider) + "_API_KEY")
	}

	return &Client{
		provider:   cfg.Provider,
		apiKey:     apiKey,
		model:      cfg.Model,
		baseURL:    cfg.BaseURL,
		maxRetries: cfg.MaxRetries,
		httpClient: &http.Client{Timeout: cfg.TimeoutDuration()},
	}
}

// InitialScenario 生成初始剧本和角色集。
// 回复中缺少初始危机分数时补默认值，而不是从 0 开局。
func (c *Client) InitialScenario(ctx context.Context, theme string, playerCount int) (*ScenarioResult, error) {
	prompt := fmt.Sprintf(initialScenarioPrompt, playerCount, theme, playerCount)

	var raw struct {
		Scenario           string          `json:"scenario"`
		Roles              map[string]Role `json:"roles"`
		InitialCrisisScore *int            `json:"initial_crisis_score"`
		NextDecisionPoint  string          `json:"next_decision_point"`
	}
	if err := c.requestJSON(ctx, prompt, &raw); err != nil {
		return nil, err
	}
	if len(raw.Roles) == 0 {
		return nil, fmt.Errorf("scenario response missing roles")
	}

	result := &ScenarioResult{
		Scenario:           raw.Scenario,
		Roles:              raw.Roles,
		InitialCrisisScore: DefaultInitialCrisisScore,
		NextDecisionPoint:  raw.NextDecisionPoint,
	}
	if raw.InitialCrisisScore != nil {
		result.InitialCrisisScore = *raw.InitialCrisisScore
	}
	return result, nil
}

// ScoreDecision 为单个玩家的决策评分
func (c *Client) ScoreDecision(ctx context.Context, theme, role, decision string, round int) (*IndividualScore, error) {
	prompt := fmt.Sprintf(individualScoringPrompt, role, round, decision)

	var result IndividualScore
	if err := c.requestJSON(ctx, prompt, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateCrisis 根据全体决策更新危机分数
func (c *Client) UpdateCrisis(ctx context.Context, theme string, currentScore int, decisions map[string]string, round int) (*CrisisUpdate, error) {
	prompt := fmt.Sprintf(crisisScoreUpdatePrompt, currentScore, round, formatDecisions(decisions))

	var result CrisisUpdate
	if err := c.requestJSON(ctx, prompt, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ContinueStory 生成剧情推进
func (c *Client) ContinueStory(ctx context.Context, theme, scenario string, crisisScore int, decisions map[string]string, round int) (*StoryContinuation, error) {
	prompt := fmt.Sprintf(storyContinuationPrompt, scenario, crisisScore, round, formatDecisions(decisions))

	var result StoryContinuation
	if err := c.requestJSON(ctx, prompt, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// FinalScores 生成终局总结
func (c *Client) FinalScores(ctx context.Context, theme string, rounds []RoundDigest, finalScore int) (*FinalScores, error) {
	prompt := fmt.Sprintf(finalScoringPrompt, theme, finalScore, formatRounds(rounds))

	var result FinalScores
	if err := c.requestJSON(ctx, prompt, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// requestJSON 发起一次生成请求并把回复解析为目标类型
func (c *Client) requestJSON(ctx context.Context, prompt string, target any) error {
	content, err := c.complete(ctx, prompt)
	if err != nil {
		return err
	}

	if err := json.Unmarshal([]byte(stripCodeFence(content)), target); err != nil {
		return fmt.Errorf("parse generator response: %w", err)
	}
	return nil
}

// complete 发送提示词并返回模型的文本回复，带指数退避重试
func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	var lastErr error

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			// 1s, 2s, 4s...
			backoff := time.Duration(1<<(attempt-1)) * time.Second
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		content, err := c.doRequest(ctx, prompt)
		if err == nil {
			return content, nil
		}
		lastErr = err
		log.Printf("⚠️ 生成请求失败 (第 %d/%d 次): %v", attempt+1, c.maxRetries, err)
	}

	return "", fmt.Errorf("generator request failed after %d attempts: %w", c.maxRetries, lastErr)
}

func (c *Client) doRequest(ctx context.Context, prompt string) (string, error) {
	url, headers, payload, err := c.buildRequest(prompt)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("generator returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	return c.parseContent(body)
}

// buildRequest 按 provider 组装请求
func (c *Client) buildRequest(prompt string) (url string, headers map[string]string, payload []byte, err error) {
	switch c.provider {
	case "gemini":
		url = fmt.Sprintf("%s/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
		headers = map[string]string{"Content-Type": "application/json"}
		payload, err = json.Marshal(map[string]any{
			"contents": []map[string]any{
				{"parts": []map[string]string{{"text": prompt}}},
			},
			"generationConfig": map[string]any{
				"temperature":      0.7,
				"maxOutputTokens":  2048,
				"responseMimeType": "application/json",
			},
		})
	default: // mistral / openai 共用 chat-completions 形状
		url = c.baseURL
		headers = map[string]string{
			"Content-Type":  "application/json",
			"Accept":        "application/json",
			"Authorization": "Bearer " + c.apiKey,
		}
		payload, err = json.Marshal(map[string]any{
			"model":           c.model,
			"messages":        []map[string]string{{"role": "user", "content": prompt}},
			"response_format": map[string]string{"type": "json_object"},
		})
	}
	return url, headers, payload, err
}

// parseContent 按 provider 提取回复文本
func (c *Client) parseContent(body []byte) (string, error) {
	if c.provider == "gemini" {
		var resp struct {
			Candidates []struct {
				Content struct {
					Parts []struct {
						Text string `json:"text"`
					} `json:"parts"`
				} `json:"content"`
			} `json:"candidates"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", fmt.Errorf("decode gemini response: %w", err)
		}
		if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
			return "", fmt.Errorf("gemini response has no candidates")
		}
		return strings.TrimSpace(resp.Candidates[0].Content.Parts[0].Text), nil
	}

	var resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat response has no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// stripCodeFence 去掉模型偶尔包裹的 ```json 代码块
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
