package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/skip2/go-qrcode"

	"expensetracker/internal/export"
	"expensetracker/internal/jobs"
)

const (
	defaultJobListLimit = 50
	qrCodeSize          = 256
)

// jobView adds the public share URL and its QR code image to share-link jobs.
type jobView struct {
	jobs.Job
	ShareURL string `json:"shareUrl,omitempty"`
	QRCode   string `json:"qrCode,omitempty"`
}

func (s *Server) shareURL(token string) string {
	return s.shareBaseURL + "/shared/" + token
}

func (s *Server) view(j jobs.Job) jobView {
	v := jobView{Job: j}
	if j.ShareToken != "" {
		v.ShareURL = s.shareURL(j.ShareToken)
		v.QRCode = v.ShareURL + "/qr"
	}
	return v
}

func (s *Server) jobsAvailable(w http.ResponseWriter, r *http.Request) bool {
	if s.jobs == nil {
		ErrorResponse(http.StatusServiceUnavailable, "export jobs not available").Write(w, r)
		return false
	}
	return true
}

func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	if !s.jobsAvailable(w, r) {
		return
	}
	var req jobs.Request
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err)
		return
	}

	j, err := s.jobs.Submit(r.Context(), req)
	switch {
	case err == nil:
		NewJSONResponse(s.view(j)).
			Status(http.StatusAccepted).
			Header("Location", "/api/export/jobs/"+j.ID).
			Write(w, r)
	case errors.Is(err, jobs.ErrInvalidMethod),
		errors.Is(err, jobs.ErrInvalidExpiry),
		errors.Is(err, export.ErrUnsupportedFormat),
		errors.Is(err, export.ErrUnknownTemplate):
		badRequest(w, r, err)
	case j.ID != "":
		// The job was recorded but could not be queued.
		writeJSON(w, r, http.StatusServiceUnavailable, struct {
			Error string  `json:"error"`
			Job   jobView `json:"job"`
		}{Error: err.Error(), Job: s.view(j)})
	default:
		internalError(w, r, "export job could not be created", err)
	}
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	if !s.jobsAvailable(w, r) {
		return
	}
	limit, err := intParam(r.URL.Query(), "limit", defaultJobListLimit)
	if err != nil {
		badRequest(w, r, err)
		return
	}
	list, err := s.jobs.List(r.Context(), limit)
	if err != nil {
		internalError(w, r, "export history could not be read", err)
		return
	}
	views := make([]jobView, 0, len(list))
	for _, j := range list {
		views = append(views, s.view(j))
	}
	writeJSON(w, r, http.StatusOK, map[string][]jobView{"jobs": views})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	if !s.jobsAvailable(w, r) {
		return
	}
	j, err := s.jobs.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			notFound(w, r, err.Error())
			return
		}
		internalError(w, r, "export job could not be read", err)
		return
	}
	writeJSON(w, r, http.StatusOK, s.view(j))
}

func (s *Server) handleShared(w http.ResponseWriter, r *http.Request) {
	if !s.jobsAvailable(w, r) {
		return
	}
	_, p, err := s.jobs.Shared(r.Context(), r.PathValue("token"))
	switch {
	case err == nil:
		writePayload(w, p, "inline")
	case errors.Is(err, jobs.ErrNotFound):
		notFound(w, r, "share link not found")
	case errors.Is(err, jobs.ErrExpired):
		ErrorResponse(http.StatusGone, err.Error()).Write(w, r)
	default:
		internalError(w, r, "shared export could not be rendered", err)
	}
}

// handleSharedQR serves the share URL as a PNG QR code.
func (s *Server) handleSharedQR(w http.ResponseWriter, r *http.Request) {
	if !s.jobsAvailable(w, r) {
		return
	}
	j, err := s.jobs.ShareLink(r.Context(), r.PathValue("token"))
	switch {
	case errors.Is(err, jobs.ErrNotFound):
		notFound(w, r, "share link not found")
		return
	case errors.Is(err, jobs.ErrExpired):
		ErrorResponse(http.StatusGone, err.Error()).Write(w, r)
		return
	case err != nil:
		internalError(w, r, "share link could not be read", err)
		return
	}

	png, err := qrcode.Encode(s.shareURL(j.ShareToken), qrcode.Medium, qrCodeSize)
	if err != nil {
		internalError(w, r, "QR code could not be generated", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}
