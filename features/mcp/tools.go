package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/features/document"
	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/retrieval"
)

const (
	ToolSearch        = "upao_search"
	ToolListDocuments = "upao_list_documents"
	ToolReadDocument  = "upao_read_document"

	maxSearchLimit = 20
)

type SearchArgs struct {
	Query      string `json:"query"`
	Limit      *int   `json:"limit,omitempty"`
	CategoryID string `json:"category_id,omitempty"`
}

type ReadDocumentArgs struct {
	DocumentID string `json:"document_id"`
	FromPage   int    `json:"from_page,omitempty"`
	ToPage     int    `json:"to_page,omitempty"`
}

func toolDefinitions() []Tool {
	return []Tool{
		{
			Name: ToolSearch,
			Description: `Searches the indexed institutional documents (regulations, syllabi, academic calendars, theses) and returns the most relevant passages with their document title and page.

Use this for any question about university rules or procedures. Cite the title and page of every passage you rely on.

USAGE EXAMPLE:
upao_search(query="requisitos para obtener el bachiller", limit=5)`,
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"query": map[string]string{
						"type":        "string",
						"description": "The question or search terms",
					},
					"limit": map[string]interface{}{
						"type":        "integer",
						"description": "Max passages to return (defaults to the configured top_k).",
						"minimum":     1,
						"maximum":     maxSearchLimit,
					},
					"category_id": map[string]string{
						"type":        "string",
						"description": "Restrict the search to one category",
					},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        ToolListDocuments,
			Description: `Lists the documents that finished ingestion, with their id, title and category. Use it to discover what the corpus covers.`,
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name: ToolReadDocument,
			Description: `Returns the full extracted text of a document, page by page. Use it when a search passage is cut short.

USAGE EXAMPLE:
upao_read_document(document_id="...", from_page=3, to_page=5)`,
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"document_id": map[string]string{
						"type":        "string",
						"description": "The id returned by upao_list_documents or upao_search",
					},
					"from_page": map[string]string{"type": "integer", "description": "First page to include"},
					"to_page":   map[string]string{"type": "integer", "description": "Last page to include"},
				},
				"required": []string{"document_id"},
			},
		},
	}
}

func (h *Handler) callTool(ctx context.Context, id interface{}, params CallParams) *JSONRPCResponse {
	switch params.Name {
	case ToolSearch:
		var args SearchArgs
		if err := json.Unmarshal(params.Arguments, &args); err != nil {
			slog.WarnContext(ctx, "invalid search arguments", "error", err)
			resp := makeErrorResponse(id, ErrInvalidParams, "Invalid search arguments")
			return &resp
		}
		args.Query = strings.TrimSpace(args.Query)
		if args.Query == "" {
			resp := makeErrorResponse(id, ErrInvalidParams, "Query is required")
			return &resp
		}
		if args.Limit != nil && (*args.Limit < 1 || *args.Limit > maxSearchLimit) {
			resp := makeErrorResponse(id, ErrInvalidParams, fmt.Sprintf("Limit must be between 1 and %d", maxSearchLimit))
			return &resp
		}
		return h.search(ctx, id, args)

	case ToolListDocuments:
		return h.listDocuments(ctx, id)

	case ToolReadDocument:
		var args ReadDocumentArgs
		if err := json.Unmarshal(params.Arguments, &args); err != nil {
			slog.WarnContext(ctx, "invalid read_document arguments", "error", err)
			resp := makeErrorResponse(id, ErrInvalidParams, "Invalid arguments")
			return &resp
		}
		if args.DocumentID == "" {
			resp := makeErrorResponse(id, ErrInvalidParams, "document_id is required")
			return &resp
		}
		return h.readDocument(ctx, id, args)
	}

	slog.WarnContext(ctx, "tool not found", "tool", params.Name)
	resp := makeErrorResponse(id, ErrMethodNotFound, "Method not found: "+params.Name)
	return &resp
}

func (h *Handler) search(ctx context.Context, id interface{}, args SearchArgs) *JSONRPCResponse {
	set, err := h.settings.Get(ctx)
	if err != nil {
		return toolError(id, err)
	}
	p := retrieval.Params{
		TopK:                     set.TopK,
		Threshold:                set.ScoreThreshold,
		CandidateMultiplier:      set.CandidateMultiplier,
		CandidateThresholdFactor: set.CandidateThresholdFactor,
		MaxChunksPerDoc:          set.MaxChunksPerDoc,
		CategoryID:               args.CategoryID,
		ExpandQuery:              set.EnableQueryExpansion,
	}
	if args.Limit != nil {
		p.TopK = *args.Limit
	}

	evidence, err := h.searcher.Assemble(ctx, args.Query, p)
	if err != nil {
		slog.ErrorContext(ctx, "search failed", "error", err)
		resp := makeErrorResponse(id, ErrInternal, "Search failed: "+err.Error())
		return &resp
	}

	var b strings.Builder
	if len(evidence.Hits) == 0 {
		b.WriteString("No results found.")
	}
	for i, hit := range evidence.Hits {
		fmt.Fprintf(&b, "Result %d (Score: %.2f):\n", i+1, hit.Score)
		fmt.Fprintf(&b, "Title: %s\nPage: %d\nDocumentID: %s\n", hit.Title, hit.Page, hit.DocumentID)
		fmt.Fprintf(&b, "Content:\n%s\n\n---\n", hit.Content)
	}
	if len(evidence.Hits) > 0 {
		fmt.Fprintf(&b, "\nUse %s(document_id=\"...\") to read a whole document.\n", ToolReadDocument)
	}

	slog.InfoContext(ctx, "tool execution completed", "tool", ToolSearch, "result_count", len(evidence.Hits))
	return textResult(id, b.String())
}

func (h *Handler) listDocuments(ctx context.Context, id interface{}) *JSONRPCResponse {
	docs, err := h.documents.List(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "list_documents failed", "error", err)
		return toolError(id, err)
	}

	type simpleDocument struct {
		ID         string `json:"id"`
		Title      string `json:"title"`
		CategoryID string `json:"category_id,omitempty"`
		Summary    string `json:"summary,omitempty"`
	}
	var out []simpleDocument
	for _, d := range docs {
		if d.Status != document.StatusCompleted {
			continue
		}
		out = append(out, simpleDocument{ID: d.ID, Title: d.Title, CategoryID: d.CategoryID, Summary: d.Summary})
	}
	if len(out) == 0 {
		return textResult(id, "No documents found.")
	}

	raw, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return toolError(id, err)
	}
	return textResult(id, string(raw))
}

func (h *Handler) readDocument(ctx context.Context, id interface{}, args ReadDocumentArgs) *JSONRPCResponse {
	doc, err := h.documents.Get(ctx, args.DocumentID)
	if errors.Is(err, document.ErrNotFound) {
		return textResult(id, "Document not found.")
	}
	if err != nil {
		slog.ErrorContext(ctx, "read_document failed", "error", err)
		return toolError(id, err)
	}

	pages, err := h.documents.Pages(ctx, args.DocumentID)
	if err != nil {
		slog.ErrorContext(ctx, "read_document failed", "error", err)
		return toolError(id, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Document: %s\n\n", doc.Title)
	n := 0
	for _, p := range pages {
		if args.FromPage > 0 && p.Page < args.FromPage {
			continue
		}
		if args.ToPage > 0 && p.Page > args.ToPage {
			continue
		}
		fmt.Fprintf(&b, "[Page %d]\n%s\n\n", p.Page, p.Content)
		n++
	}
	if n == 0 {
		b.WriteString("No pages in the requested range.")
	}

	slog.InfoContext(ctx, "tool execution completed", "tool", ToolReadDocument, "page_count", n)
	return textResult(id, b.String())
}

func textResult(id interface{}, text string) *JSONRPCResponse {
	return &JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result:  ToolResult{Content: []ToolContent{{Type: "text", Text: text}}},
	}
}

func toolError(id interface{}, err error) *JSONRPCResponse {
	return &JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result: ToolResult{
			Content: []ToolContent{{Type: "text", Text: "Error: " + err.Error()}},
			IsError: true,
		},
	}
}
