package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/loganrenz/openclaw-mattermost-toolchainposter/internal/commands"
	"github.com/loganrenz/openclaw-mattermost-toolchainposter/pkg/logger"
)

// CommandRequest is the body of POST /v1/commands/{name}.
type CommandRequest struct {
	SenderID string `json:"senderId"`
	Channel  string `json:"channel,omitempty"`
	Args     string `json:"args,omitempty"`
	// Authorized defaults to true: the host already authenticated the sender.
	Authorized *bool `json:"authorized,omitempty"`
}

// CommandListHandler lists registered commands.
func CommandListHandler(reg *commands.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list := []*commands.Command{}
		if reg != nil {
			list = reg.List()
		}
		SendJSON(w, http.StatusOK, map[string]any{"commands": list})
	}
}

// CommandHandler executes a registered command and returns its reply.
func CommandHandler(reg *commands.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := mux.Vars(r)["name"]
		if reg == nil {
			SendError(w, http.StatusNotFound, ErrCodeNotFound, "no commands registered")
			return
		}

		var req CommandRequest
		if err := decodeBody(r, &req); err != nil {
			SendError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
			return
		}

		inv := commands.Invocation{
			SenderID:   req.SenderID,
			Channel:    req.Channel,
			Args:       req.Args,
			Authorized: req.Authorized == nil || *req.Authorized,
		}

		reply, err := reg.Execute(r.Context(), name, inv)
		switch {
		case err == nil:
			SendJSON(w, http.StatusOK, reply)
		case errors.Is(err, commands.ErrCommandNotFound):
			SendError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
		case errors.Is(err, commands.ErrUnauthorized):
			SendError(w, http.StatusForbidden, ErrCodeUnauthorized, err.Error())
		case errors.Is(err, commands.ErrUnexpectedArgs):
			SendError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		default:
			logger.Warn().Err(err).Str("command", name).Str("sender", req.SenderID).Msg("command failed")
			SendError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		}
	}
}
