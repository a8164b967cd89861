// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/chat"
	"github.com/pdiddy/research-assistant/internal/document"
	"github.com/pdiddy/research-assistant/internal/logging"
	"github.com/pdiddy/research-assistant/pkg/types"
)

type titleRequest struct {
	Title string `json:"title"`
}

func (s *Server) handleCreateChat(w http.ResponseWriter, r *http.Request) {
	var req titleRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}
	c, err := s.store.CreateChat(r.Context(), strings.TrimSpace(req.Title))
	if err != nil {
		writeStoreError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "chat_id": c.ID, "title": c.Title})
}

func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request) {
	chats, err := s.store.ListChats(r.Context())
	if err != nil {
		writeStoreError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "chats": chats})
}

func (s *Server) handleGetChat(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	c, err := s.store.GetChat(r.Context(), id)
	if err != nil {
		writeStoreError(w, err, "Chat not found")
		return
	}
	msgs, err := s.store.Messages(r.Context(), id)
	if err != nil {
		writeStoreError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "chat": c, "messages": msgs})
}

func (s *Server) handleRenameChat(w http.ResponseWriter, r *http.Request) {
	var req titleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		writeError(w, http.StatusBadRequest, "Title cannot be empty")
		return
	}
	if err := s.store.RenameChat(r.Context(), pathID(r), title); err != nil {
		writeStoreError(w, err, "Chat not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "title": title})
}

func (s *Server) handleDeleteChat(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteChat(r.Context(), pathID(r)); err != nil {
		writeStoreError(w, err, "Chat not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleExportChat(w http.ResponseWriter, r *http.Request) {
	format := chat.Format(r.URL.Query().Get("format"))
	if format == "" {
		format = chat.FormatJSON
	}
	if format != chat.FormatJSON && format != chat.FormatYAML {
		writeError(w, http.StatusBadRequest, "format must be json or yaml")
		return
	}
	id := pathID(r)
	if _, err := s.store.GetChat(r.Context(), id); err != nil {
		writeStoreError(w, err, "Chat not found")
		return
	}

	if format == chat.FormatYAML {
		w.Header().Set("Content-Type", "application/yaml")
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	if err := s.store.Export(r.Context(), id, format, w); err != nil {
		logging.Get().Error("exporting chat", zap.Int64("chat_id", id), zap.Error(err))
	}
}

func (s *Server) handleSearchMessages(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "Missing query parameter q")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	msgs, err := s.store.SearchMessages(r.Context(), q, limit)
	if err != nil {
		writeStoreError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "messages": msgs})
}

type researchRequest struct {
	Query string `json:"query"`
}

func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := pathID(r)
	if _, err := s.store.GetChat(ctx, id); err != nil {
		writeStoreError(w, err, "Chat not found")
		return
	}

	var req researchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	query := strings.TrimSpace(req.Query)
	if err := ValidateQuery(query); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	doc, err := s.store.LatestDocument(ctx, id)
	switch {
	case err == nil:
		s.answerFromDocument(w, r, id, doc, query)
		return
	case !errors.Is(err, chat.ErrNotFound):
		writeStoreError(w, err, "")
		return
	}

	history, err := s.store.History(ctx, id, s.cfg.HistoryMessages)
	if err != nil {
		writeStoreError(w, err, "")
		return
	}

	res := s.pipeline.Run(ctx, types.Query{Text: query, History: history})
	if err := res.Err(); err != nil {
		if ctx.Err() != nil {
			logging.Get().Info("client went away, discarding research", zap.String("request_id", res.RequestID))
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	report := res.Report.Markdown
	if _, err := s.store.AddMessage(ctx, id, query, report); err != nil {
		writeStoreError(w, err, "Chat not found")
		return
	}
	if _, err := s.store.AutoTitle(ctx, id, chat.TitleFromQuery(query)); err != nil {
		logging.Get().Warn("auto-title failed", zap.Int64("chat_id", id), zap.Error(err))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":                   true,
		"request_id":                res.RequestID,
		"query":                     query,
		"report":                    report,
		"html_report":               RenderHTML(report),
		"paper_count":               len(res.Report.Bibliography),
		"degraded_count":            res.Report.DegradedCount(),
		"source":                    "academic_papers",
		"conversation_context_used": len(history) > 0,
	})
}

func (s *Server) answerFromDocument(w http.ResponseWriter, r *http.Request, chatID int64, doc types.Document, query string) {
	ctx := r.Context()
	answer, err := s.documents.Answer(ctx, doc, query)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to analyze document: "+err.Error())
		return
	}
	if _, err := s.store.AddMessage(ctx, chatID, query, answer); err != nil {
		writeStoreError(w, err, "Chat not found")
		return
	}
	if _, err := s.store.AutoTitle(ctx, chatID, chat.TitleFromDocument(doc.Filename)); err != nil {
		logging.Get().Warn("auto-title failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":           true,
		"query":             query,
		"report":            answer,
		"html_report":       RenderHTML(answer),
		"source":            "uploaded_document",
		"document_used":     doc.Filename,
		"genuineness_score": doc.GenuinenessScore,
	})
}

// multipartOverhead allows for form boundaries and headers around the file.
const multipartOverhead = 1 << 20

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := pathID(r)
	if _, err := s.store.GetChat(ctx, id); err != nil {
		writeStoreError(w, err, "Chat not found")
		return
	}

	if s.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+multipartOverhead)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("File too large. Maximum size is %dMB.", s.maxUpload>>20))
			return
		}
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()
	if header.Filename == "" {
		writeError(w, http.StatusBadRequest, "No file selected")
		return
	}

	doc, analysis, err := s.documents.Process(ctx, id, header.Filename, file)
	if err != nil {
		if document.IsValidation(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "Upload failed: "+err.Error())
		return
	}

	stored, err := s.store.AddDocument(ctx, doc)
	if err != nil {
		document.RemoveUpload(doc.FilePath)
		writeStoreError(w, err, "Chat not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"document": map[string]any{
			"id":                     stored.ID,
			"filename":               stored.Filename,
			"file_size":              stored.FileSize,
			"word_count":             stored.WordCount,
			"summary":                stored.Summary,
			"genuineness_score":      stored.GenuinenessScore,
			"genuineness_analysis":   stored.GenuinenessAnalysis,
			"is_genuine":             analysis.Genuineness.Genuine,
			"genuineness_confidence": analysis.Genuineness.Confidence,
		},
	})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.store.Documents(r.Context(), pathID(r))
	if err != nil {
		writeStoreError(w, err, "")
		return
	}
	for i := range docs {
		docs[i].ExtractedText = ""
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "documents": docs})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.store.GetDocument(r.Context(), pathID(r))
	if err != nil {
		writeStoreError(w, err, "Document not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "document": doc})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteDocument(r.Context(), pathID(r)); err != nil {
		writeStoreError(w, err, "Document not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
