package mcptools

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harsh7800/adofly/internal/logging"
	"github.com/harsh7800/adofly/internal/model"
	"github.com/harsh7800/adofly/internal/orchestrator"
	"github.com/harsh7800/adofly/internal/progress"
	"github.com/harsh7800/adofly/internal/stage"
	"github.com/harsh7800/adofly/internal/store"
)

func validRequest() map[string]any {
	return map[string]any{
		"productName":        "Cold Brew Kit",
		"productDescription": "Everything you need for cold brew at home.",
		"productCategory":    "Kitchen",
		"usps":               []any{"reusable filter"},
		"campaignObjective":  "Order Now",
		"imageOption":        "upload",
	}
}

func newService(m model.Model, opts ...Option) *AdService {
	p := orchestrator.NewPipeline(m, orchestrator.WithLogger(logging.Discard()))
	return NewAdService(p.Execute, append([]Option{WithLogger(logging.Discard())}, opts...)...)
}

// setupServerClient wires an MCP server and client together using in-memory
// transports.
func setupServerClient(t *testing.T, svc *AdService) *mcp.ClientSession {
	t.Helper()

	server := NewServer(svc)
	st, ct := mcp.NewInMemoryTransports()
	ctx := context.Background()

	_, err := server.Connect(ctx, st, nil)
	require.NoError(t, err)

	client := mcp.NewClient(&mcp.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}, nil)
	session, err := client.Connect(ctx, ct, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		session.Close()
	})
	return session
}

func decode[T any](t *testing.T, res *mcp.CallToolResult) T {
	t.Helper()
	require.NotNil(t, res.StructuredContent)
	raw, err := json.Marshal(res.StructuredContent)
	require.NoError(t, err)
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

// ---------------------------------------------------------------------------
// Service
// ---------------------------------------------------------------------------

func TestAdService_Generate(t *testing.T) {
	st := store.NewMemStore()
	svc := newService(model.Stub{}, WithStore(st))

	_, out, err := svc.Generate(context.Background(), nil, GenerateInput{Request: validRequest()})
	require.NoError(t, err)
	assert.Equal(t, "completed", out.Status)
	require.NotNil(t, out.Creative)
	assert.Equal(t, "Order Now", out.Creative.CTA)
	for _, s := range out.Steps {
		assert.Equal(t, progress.StatusCompleted, s.Status)
	}

	recs, err := st.ListByUser(context.Background(), DefaultUser, 0)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestAdService_GenerateInvalid(t *testing.T) {
	svc := newService(model.Stub{})
	req := validRequest()
	delete(req, "usps")

	_, out, err := svc.Generate(context.Background(), nil, GenerateInput{Request: req})
	require.NoError(t, err)
	assert.Equal(t, "invalid", out.Status)
	assert.Contains(t, out.Violations, "usps: required")
	assert.Nil(t, out.Creative)
}

func TestAdService_GenerateStageFailure(t *testing.T) {
	m := model.Func(func(ctx context.Context, prompt string) (string, error) {
		if strings.Contains(prompt, "interests") && !strings.Contains(prompt, "callToActions") {
			return `{"ageRange":"18-24"}`, nil
		}
		return model.Stub{}.Complete(ctx, prompt)
	})
	svc := newService(m)

	_, out, err := svc.Generate(context.Background(), nil, GenerateInput{Request: validRequest()})
	require.NoError(t, err)
	assert.Equal(t, "failed", out.Status)
	require.NotNil(t, out.Failure)
	assert.Equal(t, stage.TargetAudience, out.Failure.Stage)
	assert.Equal(t, stage.SchemaViolation, out.Failure.Kind)
	assert.Equal(t, progress.StatusError, out.Steps[1].Status)
	assert.Equal(t, progress.StatusPending, out.Steps[2].Status)
}

func TestAdService_Validate(t *testing.T) {
	svc := newService(model.Stub{})

	req := validRequest()
	req["productName"] = "  Cold Brew Kit  "
	_, out, err := svc.Validate(context.Background(), nil, ValidateInput{Request: req})
	require.NoError(t, err)
	assert.True(t, out.Valid)
	require.NotNil(t, out.Normalized)
	assert.Equal(t, "Cold Brew Kit", out.Normalized.ProductName)

	req["imageOption"] = "crayon"
	_, out, err = svc.Validate(context.Background(), nil, ValidateInput{Request: req})
	require.NoError(t, err)
	assert.False(t, out.Valid)
	assert.Len(t, out.Violations, 1)
}

func TestAdService_ListWithoutStore(t *testing.T) {
	svc := newService(model.Stub{})
	_, _, err := svc.List(context.Background(), nil, ListInput{})
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// MCP transport
// ---------------------------------------------------------------------------

func TestMCPListTools(t *testing.T) {
	tests := []struct {
		name string
		svc  *AdService
		want []string
	}{
		{
			name: "without store",
			svc:  newService(model.Stub{}),
			want: []string{"generate_ad_creative", "validate_ad_request"},
		},
		{
			name: "with store",
			svc:  newService(model.Stub{}, WithStore(store.NewMemStore())),
			want: []string{"generate_ad_creative", "list_ad_creatives", "validate_ad_request"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := setupServerClient(t, tt.svc)
			result, err := session.ListTools(context.Background(), &mcp.ListToolsParams{})
			require.NoError(t, err)

			names := make([]string, len(result.Tools))
			for i, tool := range result.Tools {
				names[i] = tool.Name
			}
			sort.Strings(names)
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestMCPGenerateThenList(t *testing.T) {
	session := setupServerClient(t, newService(model.Stub{}, WithStore(store.NewMemStore())))
	ctx := context.Background()

	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "generate_ad_creative",
		Arguments: GenerateInput{Request: validRequest()},
	})
	require.NoError(t, err)
	require.False(t, result.IsError)

	out := decode[GenerateOutput](t, result)
	assert.Equal(t, "completed", out.Status)
	require.NotNil(t, out.Creative)
	assert.Equal(t, "Kitchen", out.Creative.ProductCategory)

	result, err = session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "list_ad_creatives",
		Arguments: ListInput{Limit: 5},
	})
	require.NoError(t, err)
	require.False(t, result.IsError)

	list := decode[ListOutput](t, result)
	require.Len(t, list.Creatives, 1)
	assert.Equal(t, "Order Now", list.Creatives[0].Creative.CTA)
}

func TestMCPValidate(t *testing.T) {
	session := setupServerClient(t, newService(model.Stub{}))

	req := validRequest()
	req["usps"] = []any{"fast", ""}
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "validate_ad_request",
		Arguments: ValidateInput{Request: req},
	})
	require.NoError(t, err)
	require.False(t, result.IsError)

	out := decode[ValidateOutput](t, result)
	assert.False(t, out.Valid)
	assert.Contains(t, out.Violations, "usps[1]: required")
}

func TestMCPCallUnknownTool(t *testing.T) {
	session := setupServerClient(t, newService(model.Stub{}))

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "nonexistent_tool",
		Arguments: map[string]any{},
	})
	// The SDK may reject unknown tools at the protocol level or set IsError.
	if err != nil {
		return
	}
	require.NotNil(t, result)
	assert.True(t, result.IsError)
}
