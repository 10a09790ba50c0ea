// MCP transport handler using the official MCP Go SDK.
// Exposes the admin settings actions as MCP tools.
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"pixelflow-proxy/internal/model"
)

// === MCP Tool Input/Output Types ===

// GetSettingsInput is the input schema for get_settings. It takes no arguments.
type GetSettingsInput struct{}

// SaveSettingsInput is the input schema for save_settings. Each map holds
// the raw form values; checkbox keys are on when truthy.
type SaveSettingsInput struct {
	General map[string]string `json:"general_options" jsonschema:"general toggles such as enabled, woo_enabled, debug_enabled and excluded_user_roles"`
	Classes map[string]string `json:"class_options" jsonschema:"per-element annotation toggles keyed by class key"`
	Debug   map[string]string `json:"debug_options" jsonschema:"per-element debug highlighting toggles keyed by class key"`
}

// SaveScriptParamsInput is the input schema for save_script_params.
type SaveScriptParamsInput struct {
	Params string `json:"params" jsonschema:"base64 encoded JSON object carrying every tracking script parameter"`
}

// RemoveScriptParamsInput is the input schema for remove_script_params.
type RemoveScriptParamsInput struct{}

// ScriptParamsOutput is returned by save_script_params.
type ScriptParamsOutput struct {
	Message      string              `json:"message"`
	ScriptParams *model.ScriptParams `json:"script_params"`
}

// NewMCPServer creates an MCP server with the settings tools registered.
// The tools run the same operations as the admin AJAX actions.
func (h *Handler) NewMCPServer() *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "pixelflow-proxy",
			Version: "1.0.0",
		},
		&mcp.ServerOptions{
			Instructions: "PixelFlow proxy settings. " +
				"Use these tools to inspect and change tracking, annotation and debug settings.",
		},
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_settings",
		Description: "Get the general, class and debug options, the saved script parameters and whether WooCommerce is active.",
	}, h.mcpGetSettings)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "save_settings",
		Description: "Save general, class and debug options. Class keys left out keep annotating; debug keys left out stay off.",
	}, h.mcpSaveSettings)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "save_script_params",
		Description: "Replace the tracking script parameters with a base64 encoded JSON payload.",
	}, h.mcpSaveScriptParams)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "remove_script_params",
		Description: "Remove the tracking script parameters, which stops script injection.",
	}, h.mcpRemoveScriptParams)

	return server
}

// NewMCPHandler returns an HTTP handler for the MCP endpoint.
// Mount this at /pixelflow/mcp on your mux.
func (h *Handler) NewMCPHandler() http.Handler {
	server := h.NewMCPServer()
	return mcp.NewStreamableHTTPHandler(
		func(r *http.Request) *mcp.Server { return server },
		nil,
	)
}

// === Tool Handlers ===

func (h *Handler) mcpGetSettings(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input GetSettingsInput,
) (*mcp.CallToolResult, *settingsData, error) {
	data, err := h.loadSettings(ctx)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, data, nil
}

func (h *Handler) mcpSaveSettings(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input SaveSettingsInput,
) (*mcp.CallToolResult, *saveSettingsData, error) {
	saved, err := h.settings.SaveSettings(ctx, input.General, input.Classes, input.Debug)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, &saveSettingsData{
		Message: "Settings saved successfully",
		General: saved.General,
		Classes: saved.Classes,
		Debug:   saved.Debug,
	}, nil
}

func (h *Handler) mcpSaveScriptParams(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input SaveScriptParamsInput,
) (*mcp.CallToolResult, *ScriptParamsOutput, error) {
	if input.Params == "" {
		return nil, nil, fmt.Errorf("params is required")
	}
	params, err := h.settings.SaveScriptParams(ctx, input.Params)
	if err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, &ScriptParamsOutput{
		Message:      "Script parameters saved successfully",
		ScriptParams: params,
	}, nil
}

func (h *Handler) mcpRemoveScriptParams(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input RemoveScriptParamsInput,
) (*mcp.CallToolResult, *messageData, error) {
	if err := h.settings.RemoveScriptParams(ctx); err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, &messageData{Message: "Script code and parameters removed successfully"}, nil
}

// mcpError converts service errors to MCP-friendly errors.
func (h *Handler) mcpError(err error) error {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %s", apiErr.Code, apiErr.Message)
	}
	// Don't leak internal error details
	h.logger.Error("mcp internal error", "error", err.Error())
	return fmt.Errorf("internal error")
}
