package tool

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoExecutor() Executor {
	return ExecutorFunc(func(_ context.Context, params map[string]any) (string, error) {
		b, _ := json.Marshal(params)
		return string(b), nil
	})
}

func TestRegistryRegisterAndExecute(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Definition{Name: "echo"}, echoExecutor()))
	assert.Equal(t, 1, r.Len())

	out, err := r.Execute(context.Background(), "echo", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "{}", out)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Definition{Name: "echo"}, echoExecutor()))
	assert.ErrorIs(t, r.Register(Definition{Name: "echo"}, echoExecutor()), ErrToolAlreadyRegistered)
}

func TestRegistryRejectsInvalidRegistration(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Register(Definition{Name: ""}, echoExecutor()))
	assert.Error(t, r.Register(Definition{Name: "x"}, nil))
	assert.Error(t, r.Register(Definition{Name: "x", InputSchema: json.RawMessage(`{broken`)}, echoExecutor()))
}

func TestRegistryExecuteUnknownTool(t *testing.T) {
	r := NewRegistry()
	_, err := r.Execute(context.Background(), "nope", nil)
	assert.ErrorIs(t, err, ErrToolNotRegistered)
}

func TestRegistryValidatesRequiredFields(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Definition{
		Name: "lookup",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"required": ["query"],
			"additionalProperties": false,
			"properties": {"query": {"type": "string"}}
		}`),
	}, echoExecutor()))

	_, err := r.Execute(context.Background(), "lookup", map[string]any{})
	assert.ErrorIs(t, err, ErrParamsValidation)

	_, err = r.Execute(context.Background(), "lookup", map[string]any{"query": "x", "extra": true})
	assert.ErrorIs(t, err, ErrParamsValidation)

	out, err := r.Execute(context.Background(), "lookup", map[string]any{"query": "x"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"query":"x"}`, out)
}

func TestRegistryDefaultSchemaRejectsParams(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Definition{Name: "bare"}, echoExecutor()))

	_, err := r.Execute(context.Background(), "bare", map[string]any{"surprise": 1})
	assert.ErrorIs(t, err, ErrParamsValidation)
}

func TestRegistrySpecsSortedByName(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Definition{Name: "zeta", Description: "z"}, echoExecutor()))
	require.NoError(t, r.Register(Definition{Name: "alpha", Description: "a"}, echoExecutor()))

	specs := r.Specs()
	require.Len(t, specs, 2)
	assert.Equal(t, "alpha", specs[0].Name)
	assert.Equal(t, "zeta", specs[1].Name)
	assert.NotEmpty(t, specs[0].InputSchema)
}

func TestRegisterBuiltinsWithoutRetrievers(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, RegisterBuiltins(r, nil))
	assert.Equal(t, 1, r.Len())

	out, err := r.Execute(context.Background(), "current_time", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}
