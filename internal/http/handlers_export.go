package http

import (
	"errors"
	"mime"
	"net/http"
	"strconv"

	"expensetracker/internal/export"
)

func (s *Server) handleExportFormats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string][]export.Format{"formats": export.Formats()})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	opts, err := parseExportOptions(r.URL.Query())
	if err != nil {
		badRequest(w, r, err)
		return
	}
	p, err := s.expenses.Export(r.Context(), opts)
	if err != nil {
		if errors.Is(err, export.ErrUnsupportedFormat) {
			badRequest(w, r, err)
			return
		}
		internalError(w, r, "export failed", err)
		return
	}
	writePayload(w, p, "attachment")
}

func (s *Server) handleExportSummary(w http.ResponseWriter, r *http.Request) {
	opts, err := parseExportOptions(r.URL.Query())
	if err != nil {
		badRequest(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, s.expenses.ExportSummary(r.Context(), opts))
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string][]export.Template{"templates": export.Templates()})
}

func (s *Server) handleTemplateExport(w http.ResponseWriter, r *http.Request) {
	v, err := s.expenses.Template(r.Context(), r.PathValue("template"))
	if err != nil {
		if errors.Is(err, export.ErrUnknownTemplate) {
			notFound(w, r, err.Error())
			return
		}
		internalError(w, r, "template export failed", err)
		return
	}
	writeJSON(w, r, http.StatusOK, v)
}

// writePayload sends a rendered export. disposition is attachment or inline.
func writePayload(w http.ResponseWriter, p export.Payload, disposition string) {
	h := w.Header()
	h.Set("Content-Type", p.ContentType)
	h.Set("Content-Length", strconv.Itoa(len(p.Body)))
	h.Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": p.Filename}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(p.Body)
}
