package http

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"ledgerly/internal/export"
	applog "ledgerly/internal/log"
)

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	p, err := ParseMonthParams(r.URL.Query())
	if err != nil {
		writeError(w, r, err, applog.OpRead)
		return
	}
	text, err := s.svc.Reports.Build(r.Context(), userID(r), p.Year, p.Month)
	if err != nil {
		writeError(w, r, err, applog.OpRead)
		return
	}
	NewResponse().Text(text).Write(w)
}

func (s *Server) handleSendReport(w http.ResponseWriter, r *http.Request) {
	p, err := ParseMonthParams(r.URL.Query())
	if err != nil {
		writeError(w, r, err, applog.OpSend)
		return
	}
	if err := s.svc.Reports.Send(r.Context(), userID(r), p.Year, p.Month); err != nil {
		writeError(w, r, err, applog.OpSend)
		return
	}
	NewResponse().Status(http.StatusAccepted).JSON(map[string]any{"sent": true, "year": p.Year, "month": p.Month}).Write(w)
}

// handleExport downloads every transaction of the user, optionally limited
// to ?from&to, as CSV or XLSX.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, r, err, applog.OpExport)
		return
	}
	rng, err := ParseRangeParams(r.URL.Query())
	if err != nil {
		writeError(w, r, err, applog.OpExport)
		return
	}
	txs, err := s.svc.Ledger.ListAll(r.Context(), userID(r), rng)
	if err != nil {
		writeError(w, r, err, applog.OpExport)
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, txs); err != nil {
		writeError(w, r, err, applog.OpExport)
		return
	}
	name := fmt.Sprintf("transactions-%s.%s", time.Now().Format("20060102"), format.Extension())
	NewResponse().
		Header("Content-Type", format.ContentType()).
		Header("Content-Disposition", `attachment; filename="`+name+`"`).
		Body(buf.Bytes()).
		Write(w)
}
