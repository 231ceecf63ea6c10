package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/malbeclabs/datachat/pkg/connector"
)

// QueryResponse is the outcome of one question.
type QueryResponse struct {
	Question       string           `json:"question"`
	Success        bool             `json:"success"`
	SQL            string           `json:"sql_generated,omitempty"`
	Data           *connector.Frame `json:"data,omitempty"`
	Interpretation string           `json:"interpretation,omitempty"`
	ErrorMessage   string           `json:"error_message,omitempty"`
	Metadata       Metadata         `json:"metadata"`
}

type Metadata struct {
	Intent        Intent  `json:"intent,omitempty"`
	RowCount      int     `json:"row_count"`
	ExecutionTime float64 `json:"execution_time"`
	TokensUsed    int64   `json:"tokens_used"`
	Cost          float64 `json:"cost"`
	Attempts      int     `json:"attempts,omitempty"`

	RAGMode    bool     `json:"rag_mode,omitempty"`
	SourceDocs []string `json:"source_docs,omitempty"`

	InterpretationError string `json:"interpretation_error,omitempty"`
}

func (r *QueryResponse) applyUsage(u Usage) {
	r.Metadata.TokensUsed = u.Tokens
	r.Metadata.Cost = u.Cost
}

// ToPortable encodes the response in its stable cache and wire form.
// Cell values decode as json.Number, so re-encoding a decoded response
// yields the same bytes.
func (r *QueryResponse) ToPortable() ([]byte, error) {
	return json.Marshal(r)
}

func QueryResponseFromPortable(b []byte) (*QueryResponse, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var r QueryResponse
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("failed to decode query response: %w", err)
	}
	return &r, nil
}

func failure(question, sql, msg string) *QueryResponse {
	return &QueryResponse{
		Question:     question,
		Success:      false,
		SQL:          sql,
		ErrorMessage: msg,
	}
}
