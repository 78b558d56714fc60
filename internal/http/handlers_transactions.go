package http

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"spendwise/internal/core"
	"spendwise/internal/export"
	applog "spendwise/internal/log"
)

type transactionsResponse struct {
	Window  core.TimeWindow      `json:"window"`
	All     bool                 `json:"all"`
	Loaded  bool                 `json:"loaded"`
	Count   int                  `json:"count"`
	Records []core.ExpenseRecord `json:"records"`
}

type chartDataset struct {
	Data []float64 `json:"data"`
}

// chartResponse matches the labels/datasets shape chart widgets consume.
type chartResponse struct {
	Window   core.TimeWindow  `json:"window"`
	Labels   []string         `json:"labels"`
	Datasets []chartDataset   `json:"datasets"`
	Points   core.ChartSeries `json:"points"`
}

type windowResponse struct {
	Window  core.TimeWindow   `json:"window"`
	Days    int               `json:"days"`
	Windows []core.TimeWindow `json:"windows"`
}

type windowRequest struct {
	Window string `json:"window"`
}

type transactionRequest struct {
	Amount   string `json:"amount"`
	Title    string `json:"title"`
	Category string `json:"category"`
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request, userID string) {
	ctx := r.Context()
	agg, err := s.sessions.Open(ctx, userID)
	if err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Open session failed", applog.FieldUserID, userID, applog.FieldError, err)
		writeError(w, http.StatusInternalServerError, "could not load transactions")
		return
	}

	window, explicit, err := windowParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !explicit {
		window = agg.Window()
	}

	resp := transactionsResponse{Window: window, Loaded: agg.Loaded()}
	if r.URL.Query().Get("all") == "true" {
		resp.All = true
		resp.Records = agg.AllRecords()
	} else {
		resp.Records = agg.FilteredRecords(window)
	}
	resp.Records = nonNil(resp.Records)
	resp.Count = len(resp.Records)

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request, userID string) {
	ctx := r.Context()
	agg, err := s.sessions.Open(ctx, userID)
	if err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Open session failed", applog.FieldUserID, userID, applog.FieldError, err)
		writeError(w, http.StatusInternalServerError, "could not load chart")
		return
	}

	window, explicit, err := windowParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !explicit {
		window = agg.Window()
	}

	series := agg.ChartSeries(window)
	writeJSON(w, http.StatusOK, chartResponse{
		Window:   window,
		Labels:   series.Labels(),
		Datasets: []chartDataset{{Data: series.Values()}},
		Points:   series,
	})
}

func (s *Server) handleGetWindow(w http.ResponseWriter, r *http.Request, userID string) {
	agg, err := s.sessions.Open(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load session")
		return
	}
	writeJSON(w, http.StatusOK, newWindowResponse(agg.Window()))
}

func (s *Server) handleSetWindow(w http.ResponseWriter, r *http.Request, userID string) {
	var req windowRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Window == "" {
		writeError(w, http.StatusUnprocessableEntity, core.ErrInvalidWindow.Error())
		return
	}
	window, err := core.ParseWindow(req.Window)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	agg, err := s.sessions.Open(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load session")
		return
	}
	agg.SetWindow(window)
	writeJSON(w, http.StatusOK, newWindowResponse(window))
}

func newWindowResponse(window core.TimeWindow) windowResponse {
	return windowResponse{Window: window, Days: window.Days(), Windows: core.Windows()}
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request, _ string) {
	writeJSON(w, http.StatusOK, core.Categories())
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request, userID string) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	rec, err := s.expenses.AddExpense(ctx, userID, req.Amount, sanitizeInput(req.Title), req.Category)
	if err != nil {
		s.writeCommandError(w, r, applog.OpCreate, err)
		return
	}

	s.reqLog.LogRecordChanged(ctx, applog.OpCreate, userID, rec.ID, rec.Amount, rec.Category)
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request, userID string) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	id := r.PathValue("id")
	rec, err := s.expenses.UpdateExpense(ctx, userID, id, req.Amount, sanitizeInput(req.Title), req.Category)
	if err != nil {
		s.writeCommandError(w, r, applog.OpUpdate, err)
		return
	}

	s.reqLog.LogRecordChanged(ctx, applog.OpUpdate, userID, rec.ID, rec.Amount, rec.Category)
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request, userID string) {
	ctx := r.Context()
	id := r.PathValue("id")
	if err := s.expenses.DeleteExpense(ctx, userID, id); err != nil {
		s.writeCommandError(w, r, applog.OpDelete, err)
		return
	}

	s.reqLog.LogRecordChanged(ctx, applog.OpDelete, userID, id, "", "")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExportTransactions(w http.ResponseWriter, r *http.Request, userID string) {
	ctx := r.Context()
	agg, err := s.sessions.Open(ctx, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load transactions")
		return
	}

	window, explicit, err := windowParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !explicit {
		window = agg.Window()
	}

	records := agg.FilteredRecords(window)
	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, records); err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Export failed", applog.FieldOperation, applog.OpExport, applog.FieldError, err)
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	filename := fmt.Sprintf("spendwise_%s_%s.xlsx", window, time.Now().Format("20060102"))
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) writeCommandError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		s.reqLog.LogError(r.Context(), "Expense command failed", err, op, nil)
		writeError(w, status, "could not save expense")
		return
	}
	writeError(w, status, err.Error())
}
