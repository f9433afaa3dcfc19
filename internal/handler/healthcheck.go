package handler

import (
	"net/http"

	"github.com/metinatakli/seatsync/api"
	"github.com/metinatakli/seatsync/internal/jsonutil"
	"github.com/metinatakli/seatsync/internal/vcs"
)

type HealthcheckHandler struct {
	env string
}

func NewHealthcheckHandler(env string) *HealthcheckHandler {
	return &HealthcheckHandler{
		env: env,
	}
}

func (h *HealthcheckHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	resp := api.HealthcheckResponse{
		Status: "UP",
		SystemInfo: api.SystemInfo{
			Version:     vcs.Version(),
			Environment: h.env,
		},
	}

	jsonutil.WriteJSON(w, http.StatusOK, resp, nil)
}
