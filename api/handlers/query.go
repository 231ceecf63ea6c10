package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/malbeclabs/datachat/pkg/pipeline"
)

type QueryRequest struct {
	Question string `json:"question"`
	// DataSource is accepted for forward compatibility; the active source answers.
	DataSource string `json:"data_source,omitempty"`
}

// QueryResponse is the wire form of a pipeline response with rows keyed by
// column name.
type QueryResponse struct {
	Success        bool              `json:"success"`
	Question       string            `json:"question"`
	SQLGenerated   string            `json:"sql_generated,omitempty"`
	RowCount       *int              `json:"row_count,omitempty"`
	Data           []map[string]any  `json:"data,omitempty"`
	Interpretation string            `json:"interpretation,omitempty"`
	ErrorMessage   string            `json:"error_message,omitempty"`
	Metadata       pipeline.Metadata `json:"metadata"`
}

func NewQueryResponse(resp *pipeline.QueryResponse) QueryResponse {
	out := QueryResponse{
		Success:        resp.Success,
		Question:       resp.Question,
		SQLGenerated:   resp.SQL,
		Interpretation: resp.Interpretation,
		ErrorMessage:   resp.ErrorMessage,
		Metadata:       resp.Metadata,
	}
	if resp.Data != nil {
		n := resp.Data.Len()
		out.RowCount = &n
		if n > 0 {
			out.Data = resp.Data.Records()
		}
	}
	return out
}

func (h *Handlers) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp := h.orch.ProcessQuestion(r.Context(), req.Question)
	writeJSON(w, http.StatusOK, NewQueryResponse(resp))
}
