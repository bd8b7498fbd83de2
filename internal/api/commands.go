package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/nerrad567/hearth/internal/executor"
	"github.com/nerrad567/hearth/internal/intent"
	"github.com/nerrad567/hearth/internal/pipeline"
)

// maxCommandLen bounds the text accepted by /api/command.
const maxCommandLen = 500

type commandRequest struct {
	Text string `json:"text"`
}

type toggleRequest struct {
	Device string `json:"device"`
}

type sceneRequest struct {
	Scene string `json:"scene"`
}

// commandError is the error body for pipeline failures. It keeps the
// user-facing message and the classified intent alongside the code.
type commandError struct {
	Error
	ID     string      `json:"id,omitempty"`
	Intent intent.Kind `json:"intent,omitempty"`
}

// actionResponse is returned by the toggle and scene endpoints.
type actionResponse struct {
	Success  bool            `json:"success"`
	Response string          `json:"response"`
	NewState *bool           `json:"new_state,omitempty"`
	Report   executor.Report `json:"report"`
}

// handleCommand runs free text through the pipeline.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if len(req.Text) > maxCommandLen {
		writeError(w, ErrCodeBadRequest, "command text too long")
		return
	}

	resp, err := s.pipeline.HandleCommand(r.Context(), req.Text)
	if err != nil {
		s.writePipelineError(w, resp, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleStatus returns rooms, devices, context, scenes and performance.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.pipeline.Status())
}

// handleToggleDevice flips one device.
func (s *Server) handleToggleDevice(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	name := strings.TrimSpace(req.Device)
	if name == "" || len(name) > maxQueryParamLen {
		writeError(w, ErrCodeBadRequest, "device is required")
		return
	}

	resp, err := s.pipeline.Toggle(r.Context(), name)
	if err != nil {
		s.writePipelineError(w, resp, err)
		return
	}

	out := actionResponse{
		Success:  len(resp.Report.Failed()) == 0,
		Response: resp.Message,
		Report:   resp.Report,
	}
	if len(resp.Actions) > 0 {
		on := s.pipeline.IsOn(resp.Actions[0].Device)
		out.NewState = &on
	}
	writeJSON(w, http.StatusOK, out)
}

// handleActivateScene applies a named scene.
func (s *Server) handleActivateScene(w http.ResponseWriter, r *http.Request) {
	var req sceneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	name := strings.TrimSpace(req.Scene)
	if name == "" || len(name) > maxQueryParamLen {
		writeError(w, ErrCodeBadRequest, "scene is required")
		return
	}

	resp, err := s.pipeline.ActivateScene(r.Context(), name)
	if err != nil {
		s.writePipelineError(w, resp, err)
		return
	}
	writeJSON(w, http.StatusOK, actionResponse{
		Success:  resp.Report.Status() != executor.BatchFailed,
		Response: resp.Message,
		Report:   resp.Report,
	})
}

// writePipelineError writes a classified pipeline error along with the
// request's ID and parsed intent.
func (s *Server) writePipelineError(w http.ResponseWriter, resp pipeline.Response, err error) {
	code, known := pipelineErrorCode(err)
	if !known {
		s.logger.Error("command failed", "error", err)
	}
	status := statusFor(code)

	msg := resp.Message
	if msg == "" {
		msg = err.Error()
	}
	writeJSON(w, status, commandError{
		Error:  Error{Status: status, Code: code, Message: msg},
		ID:     resp.ID,
		Intent: resp.Intent,
	})
}
