package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"regexp"
	"strings"

	"github.com/hazyhaar/policyvet/apperr"
	"github.com/hazyhaar/policyvet/assess"
	"github.com/hazyhaar/policyvet/export"
	"github.com/hazyhaar/policyvet/ingest"
	"github.com/hazyhaar/policyvet/netguard"
	"github.com/hazyhaar/policyvet/shield"
)

// --- ingest ---

type ingestBody struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeIngest(r)
	if err != nil {
		s.writeError(w, r, err, "ingest failed")
		return
	}
	res, err := s.cfg.Ingest.Ingest(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err, "ingest failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) decodeIngest(r *http.Request) (ingest.Request, error) {
	mediaType, params, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		var body ingestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return ingest.Request{}, s.bodyError(err)
		}
		switch {
		case strings.TrimSpace(body.URL) != "" && strings.TrimSpace(body.Text) != "":
			return ingest.Request{}, apperr.New(apperr.ErrInvalidInput, "Provide exactly one of url, text or file")
		case strings.TrimSpace(body.URL) != "":
			return ingest.URL(body.URL), nil
		case strings.TrimSpace(body.Text) != "":
			return ingest.Text(body.Text), nil
		}
		return ingest.Request{}, apperr.New(apperr.ErrInvalidInput, "Missing url or text")
	case "multipart/form-data":
		return s.decodeUpload(r, params["boundary"])
	default:
		return ingest.Request{}, apperr.New(apperr.ErrInvalidInput, "Unsupported content type")
	}
}

// decodeUpload streams the multipart body up to the "file" part and reads
// it with a ceiling+1 limit.
func (s *Server) decodeUpload(r *http.Request, boundary string) (ingest.Request, error) {
	if boundary == "" {
		return ingest.Request{}, apperr.New(apperr.ErrInvalidInput, "Malformed multipart body")
	}
	mr, err := r.MultipartReader()
	if err != nil {
		return ingest.Request{}, apperr.Wrap(apperr.ErrInvalidInput, err, "Malformed multipart body")
	}
	limit := s.cfg.Ingest.MaxUploadBytes()
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return ingest.Request{}, apperr.New(apperr.ErrInvalidInput, "No file uploaded")
		}
		if err != nil {
			return ingest.Request{}, s.bodyError(err)
		}
		if part.FormName() != "file" {
			part.Close()
			continue
		}
		if part.FileName() == "" {
			// A plain form value named file, not an attached file.
			part.Close()
			return ingest.Request{}, apperr.New(apperr.ErrInvalidInput, "No file uploaded")
		}
		data, err := netguard.LimitedReadAll(part, limit)
		part.Close()
		if err != nil {
			return ingest.Request{}, s.bodyError(err)
		}
		return ingest.Upload(part.FileName(), part.Header.Get("Content-Type"), data), nil
	}
}

// bodyError classifies a failure while reading the request body.
func (s *Server) bodyError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.Is(err, netguard.ErrTooLarge) || errors.As(err, &maxErr) {
		return apperr.TooLarge(s.cfg.Ingest.MaxUploadBytes())
	}
	return apperr.Wrap(apperr.ErrInvalidInput, err, "Invalid request body")
}

// --- analyze ---

type analyzeBody struct {
	PolicyContent string              `json:"policyContent"`
	Obligations   []assess.Obligation `json:"obligations"`
	// Profile selects applicable obligations from the dataset when
	// Obligations is empty.
	Profile *assess.Profile `json:"profile,omitempty"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var body analyzeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, r, s.bodyError(err), "analysis failed")
		return
	}
	obligations := body.Obligations
	if len(obligations) == 0 && body.Profile != nil && s.cfg.Dataset != nil {
		obligations = assess.Applicable(s.cfg.Dataset.Obligations, *body.Profile)
	}
	if s.cfg.Assess == nil {
		s.writeError(w, r, apperr.New(apperr.ErrConfiguration, "Assessment service not configured"), "analysis failed")
		return
	}
	analysis, err := s.cfg.Assess.Analyze(r.Context(), body.PolicyContent, obligations)
	if err != nil {
		s.writeError(w, r, err, "analysis failed")
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

// --- obligations ---

func (s *Server) handleObligations(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Dataset == nil {
		writeJSON(w, http.StatusOK, map[string]any{"obligations": []assess.Obligation{}, "sources": []assess.Source{}})
		return
	}
	obligations := s.cfg.Dataset.Obligations
	q := r.URL.Query()
	if useCases := q["use_case"]; len(useCases) > 0 {
		obligations = assess.Applicable(obligations, assess.Profile{UseCases: useCases, RiskLevel: q.Get("risk")})
	}
	if obligations == nil {
		obligations = []assess.Obligation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"obligations": obligations,
		"sources":     s.cfg.Dataset.Sources,
	})
}

// --- export ---

type exportBody struct {
	Results []assess.Result `json:"results"`
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "xlsx" {
		s.writeError(w, r, apperr.Newf(apperr.ErrInvalidInput, "Unsupported export format: %s", format), "export failed")
		return
	}
	var body exportBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, r, s.bodyError(err), "export failed")
		return
	}
	if len(body.Results) == 0 {
		s.writeError(w, r, apperr.New(apperr.ErrInvalidInput, "Missing or empty results array"), "export failed")
		return
	}

	name := unsafeName.ReplaceAllString(r.URL.Query().Get("name"), "-")
	if strings.Trim(name, "-.") == "" {
		name = "policy"
	}
	filename := fmt.Sprintf("%s-compliance-assessment.%s", name, format)

	var buf bytes.Buffer
	contentType := "text/csv; charset=utf-8"
	if format == "csv" {
		if err := export.CSV(&buf, body.Results); err != nil {
			s.writeError(w, r, err, "export failed")
			return
		}
	} else {
		data, err := export.XLSX(body.Results)
		if err != nil {
			s.writeError(w, r, err, "export failed")
			return
		}
		buf.Write(data)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// --- responses ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error  string `json:"error"`
	Class  string `json:"class"`
	Detail string `json:"detail,omitempty"`
}

// writeError answers with the status and class of err. Unclassified errors
// show fallback; the full chain is only exposed in debug mode.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := apperr.HTTPStatus(err)
	body := errorBody{Error: apperr.Message(err, fallback), Class: apperr.Class(err)}
	if s.cfg.Debug {
		body.Detail = err.Error()
	}
	logger := shield.GetLogger(r.Context())
	if status >= 500 && !apperr.Retryable(err) {
		logger.Error("request failed", "status", status, "class", body.Class, "error", err)
	} else {
		logger.Info("request rejected", "status", status, "class", body.Class, "error", err)
	}
	writeJSON(w, status, body)
}
