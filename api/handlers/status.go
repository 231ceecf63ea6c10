package handlers

import (
	"net/http"
	"sort"
)

type HealthResponse struct {
	Status                 string `json:"status"`
	DatabaseConnected      bool   `json:"database_connected"`
	LLMConfigured          bool   `json:"llm_configured"`
	KnowledgeBaseDocuments int    `json:"knowledge_base_documents"`
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{LLMConfigured: true}

	if err := h.ping(r.Context()); err != nil {
		h.log.Warn("api: database ping failed", "error", err)
	} else {
		resp.DatabaseConnected = true
	}

	if ret := h.orch.Retriever(); ret != nil {
		n, err := ret.Count(r.Context())
		if err != nil {
			h.log.Warn("api: failed to count knowledge base documents", "error", err)
		}
		resp.KnowledgeBaseDocuments = n
	}

	resp.Status = "healthy"
	if !resp.DatabaseConnected {
		resp.Status = "degraded"
	}
	writeJSON(w, http.StatusOK, resp)
}

type SchemaResponse struct {
	SourceName    string   `json:"source_name"`
	SourceType    string   `json:"source_type"`
	Tables        []string `json:"tables"`
	SchemaSummary string   `json:"schema_summary"`
}

func (h *Handlers) Schema(w http.ResponseWriter, r *http.Request) {
	schema, err := h.orch.Connector().Schema(r.Context())
	if err != nil {
		h.log.Error("api: failed to fetch schema", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	summary, err := h.orch.SchemaSummary(r.Context())
	if err != nil {
		h.log.Error("api: failed to build schema summary", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, SchemaResponse{
		SourceName:    schema.SourceName,
		SourceType:    schema.SourceType,
		Tables:        schema.TableNames(),
		SchemaSummary: summary,
	})
}

type DataSource struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Status     string `json:"status"`
	TableCount int    `json:"table_count"`
}

type DocumentSource struct {
	Source string `json:"source"`
	Chunks int    `json:"chunks"`
}

type SourcesResponse struct {
	Sources   []DataSource     `json:"sources"`
	Documents []DocumentSource `json:"documents,omitempty"`
}

func (h *Handlers) Sources(w http.ResponseWriter, r *http.Request) {
	conn := h.orch.Connector()
	src := DataSource{Name: conn.Name(), Type: conn.Type(), Status: "connected"}
	if err := h.ping(r.Context()); err != nil {
		src.Status = "error"
	} else if schema, err := conn.Schema(r.Context()); err != nil {
		h.log.Warn("api: failed to fetch schema for sources", "error", err)
		src.Status = "error"
	} else {
		src.TableCount = len(schema.Tables)
	}

	resp := SourcesResponse{Sources: []DataSource{src}}
	if h.cfg.Documents != nil {
		docs, err := h.cfg.Documents.Sources(r.Context())
		if err != nil {
			h.log.Warn("api: failed to list document sources", "error", err)
		}
		resp.Documents = documentSources(docs)
	}
	writeJSON(w, http.StatusOK, resp)
}

func documentSources(counts map[string]int) []DocumentSource {
	out := make([]DocumentSource, 0, len(counts))
	for src, n := range counts {
		out = append(out, DocumentSource{Source: src, Chunks: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}

func (h *Handlers) Metrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.orch.MetricsSummary())
}
