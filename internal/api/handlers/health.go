package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/clarion-chat/clarion/internal/infra/knowledge"
	"github.com/clarion-chat/clarion/internal/infra/llm"
)

const healthCheckTimeout = 2 * time.Second

// HealthHandler serves GET /health with a reachability summary for every
// configured model connection and knowledge service.
type HealthHandler struct {
	providers  *llm.Registry
	retrievers *knowledge.Registry
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(providers *llm.Registry, retrievers *knowledge.Registry) *HealthHandler {
	return &HealthHandler{providers: providers, retrievers: retrievers}
}

type healthResponse struct {
	Status      string            `json:"status"`
	Connections map[string]string `json:"connections,omitempty"`
	Knowledge   map[string]string `json:"knowledge,omitempty"`
}

// Health always answers 200 so liveness probes do not flap on upstream
// outages; unreachable backends are reported in the body and flip the
// status to "degraded".
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := healthResponse{Status: "ok"}

	for _, name := range h.providers.Names() {
		provider, err := h.providers.Get(name)
		if err != nil {
			continue
		}
		if resp.Connections == nil {
			resp.Connections = map[string]string{}
		}
		resp.Connections[name] = checkStatus(provider.HealthCheck(ctx))
	}
	for _, name := range h.retrievers.Names() {
		retriever, err := h.retrievers.Get(name)
		if err != nil {
			continue
		}
		if resp.Knowledge == nil {
			resp.Knowledge = map[string]string{}
		}
		resp.Knowledge[name] = checkStatus(retriever.HealthCheck(ctx))
	}

	for _, status := range resp.Connections {
		if status != "ok" {
			resp.Status = "degraded"
		}
	}
	for _, status := range resp.Knowledge {
		if status != "ok" {
			resp.Status = "degraded"
		}
	}

	WriteJSON(w, http.StatusOK, resp)
}

func checkStatus(err error) string {
	if err != nil {
		return "unreachable"
	}
	return "ok"
}
