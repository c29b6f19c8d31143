package server

import (
	"errors"
	"io"
	"mime"
	"net/http"

	goahttp "goa.design/goa/v3/http"

	"jnsite/internal/services"
	apperrors "jnsite/pkg/errors"
)

const maxSubmitBody = 1 << 20

type errorBody struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	encodeJSON(r.Context(), w, apperrors.HTTPStatus(err), errorBody{Error: apperrors.MessageOf(err)})
}

// submit accepts the contact form as JSON, urlencoded or multipart data
func (s *Server) submit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSubmitBody)

	payload, err := decodeSubmission(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.deps.Submissions.Submit(r.Context(), payload)
	if err != nil {
		writeError(w, r, err)
		return
	}
	encodeJSON(r.Context(), w, http.StatusOK, res)
}

func decodeSubmission(r *http.Request) (*services.SubmissionPayload, error) {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mt {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		return decodeSubmissionForm(r)
	}

	var p services.SubmissionPayload
	if r.ContentLength == 0 {
		return &p, nil
	}
	if err := goahttp.RequestDecoder(r).Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return &p, nil
		}
		return nil, apperrors.Wrap(apperrors.ErrCodeBadRequest, "invalid request body", err)
	}
	return &p, nil
}

func decodeSubmissionForm(r *http.Request) (*services.SubmissionPayload, error) {
	if err := parseForm(r, maxSubmitBody); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeBadRequest, "invalid form body", err)
	}
	selected := append([]string{}, r.Form["services"]...)
	selected = append(selected, r.Form["services[]"]...)

	return &services.SubmissionPayload{
		Name:     r.FormValue("name"),
		Phone:    r.FormValue("phone"),
		Email:    r.FormValue("email"),
		Message:  r.FormValue("message"),
		Services: selected,
	}, nil
}

func (s *Server) visitStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Stats.VisitStats(r.Context())
	if err != nil {
		writeError(w, r, apperrors.Wrap(apperrors.ErrCodeInternalError, "failed to load stats", err))
		return
	}
	encodeJSON(r.Context(), w, http.StatusOK, stats)
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	res, ok := s.deps.Health.Check(r.Context())
	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}
	encodeJSON(r.Context(), w, status, res)
}
