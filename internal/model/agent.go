package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Compile-time interface check.
var _ Model = (*Agent)(nil)

const (
	jsonRPCVersion    = "2.0"
	methodSendMessage = "message/send"
)

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is a JSON-RPC error returned by a remote agent.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("model: agent: rpc error %d: %s", e.Code, e.Message)
}

type agentPart struct {
	Text      string `json:"text,omitempty"`
	MediaType string `json:"mediaType,omitempty"`
}

type agentMessage struct {
	MessageID string      `json:"messageId"`
	Role      string      `json:"role"`
	Parts     []agentPart `json:"parts"`
}

type agentTask struct {
	ID     string `json:"id"`
	Status struct {
		State   string        `json:"state"`
		Message *agentMessage `json:"message,omitempty"`
	} `json:"status"`
	Artifacts []struct {
		Parts []agentPart `json:"parts"`
	} `json:"artifacts,omitempty"`
}

// Agent completes prompts by sending them to a remote A2A agent with the
// blocking message/send JSON-RPC method. The completion is the text of the
// task's artifacts, or of its final status message when it has none.
type Agent struct {
	endpoint  string
	http      *http.Client
	requestID atomic.Int64
}

// AgentOption configures an Agent.
type AgentOption func(*Agent)

// WithAgentHTTPClient replaces the underlying *http.Client entirely.
func WithAgentHTTPClient(hc *http.Client) AgentOption {
	return func(a *Agent) { a.http = hc }
}

// WithAgentTimeout sets the HTTP client timeout.
func WithAgentTimeout(d time.Duration) AgentOption {
	return func(a *Agent) {
		if d > 0 {
			a.http.Timeout = d
		}
	}
}

// NewAgent creates an agent-backed model for the given JSON-RPC endpoint.
func NewAgent(endpoint string, opts ...AgentOption) *Agent {
	a := &Agent{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Complete implements Model.
func (a *Agent) Complete(ctx context.Context, prompt string) (string, error) {
	params := map[string]any{
		"message": agentMessage{
			MessageID: uuid.NewString(),
			Role:      "user",
			Parts:     []agentPart{{Text: prompt, MediaType: "text/plain"}},
		},
		"configuration": map[string]any{
			"acceptedOutputModes": []string{"text/plain", "application/json"},
			"blocking":            true,
		},
	}

	var task agentTask
	if err := a.call(ctx, methodSendMessage, params, &task); err != nil {
		return "", err
	}
	switch task.Status.State {
	case "failed", "canceled", "rejected":
		return "", fmt.Errorf("model: agent: task %s ended %s", task.ID, task.Status.State)
	}

	var sb strings.Builder
	for _, art := range task.Artifacts {
		for _, p := range art.Parts {
			sb.WriteString(p.Text)
		}
	}
	if sb.Len() == 0 && task.Status.Message != nil {
		for _, p := range task.Status.Message.Parts {
			sb.WriteString(p.Text)
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", ErrEmptyCompletion
	}
	return sb.String(), nil
}

// call performs a JSON-RPC 2.0 call over HTTP POST.
func (a *Agent) call(ctx context.Context, method string, params, result any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: jsonRPCVersion,
		ID:      a.requestID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("model: agent: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("model: agent: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("model: agent: %s: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("model: agent: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("model: agent: %s: %w", method, &httpStatusError{
			status: resp.StatusCode,
			err:    fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))),
		})
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return fmt.Errorf("model: agent: decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("model: agent: decode result: %w", err)
		}
	}
	return nil
}
