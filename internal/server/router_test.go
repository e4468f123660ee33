package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/matsen/bibrename/internal/doi"
	"github.com/matsen/bibrename/internal/filename"
	"github.com/matsen/bibrename/internal/metadata"
	"github.com/matsen/bibrename/internal/reference"
	"github.com/matsen/bibrename/internal/server"
	"github.com/matsen/bibrename/internal/server/handler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- stub collaborators ---

// stubText treats the upload bytes as the document text.
type stubText struct{}

func (stubText) Text(_ context.Context, data []byte) (string, error) {
	if bytes.Contains(data, []byte("CORRUPT")) {
		return "", errors.New("xref table not found")
	}
	return string(data), nil
}

// stubResolver answers from a table; "10.9999/..." DOIs fail upstream.
type stubResolver struct {
	pubs map[string]*reference.Publication
}

func (s stubResolver) Resolve(_ context.Context, d doi.DOI) (*reference.Publication, error) {
	if pub, ok := s.pubs[d.Key()]; ok {
		return pub, nil
	}
	status := http.StatusNotFound
	if strings.HasPrefix(d.String(), "10.9999/") {
		status = http.StatusServiceUnavailable
	}
	return nil, &metadata.LookupError{
		DOI:    d.String(),
		Source: "openalex",
		Cause:  &metadata.StatusError{Source: "openalex", StatusCode: status},
	}
}

var smith = &reference.Publication{
	DOI:       "10.1000/xyz",
	Title:     "A Study of Things",
	Year:      2021,
	Authors:   []reference.Author{{Given: "Jane", Family: "Smith"}},
	Container: "Journal of the Royal Society",
}

func newTestRouter(maxUpload int64) http.Handler {
	p := handler.Pipeline{
		Text: stubText{},
		Resolver: stubResolver{pubs: map[string]*reference.Publication{
			"10.1000/xyz":    smith,
			"10.2000/manual": {DOI: "10.2000/manual", Title: "Manual Pick", Year: 2000, Authors: []reference.Author{{Family: "Roe"}}, Container: "Cell"},
		}},
		Synthesizer:    filename.New(filename.DefaultTemplate),
		MaxUploadBytes: maxUpload,
	}
	return server.NewRouter(server.NewDependencies(p))
}

// --- helpers ---

type formFile struct {
	name        string
	contentType string
	data        []byte
}

func multipartRequest(t *testing.T, path string, file *formFile, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if file != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, file.name))
		h.Set("Content-Type", file.contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(file.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func pdfFile(name, body string) *formFile {
	return &formFile{name: name, contentType: "application/pdf", data: []byte("%PDF-1.4\n" + body)}
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body.Error.Code
}

// --- health & routing ---

func TestHealth(t *testing.T) {
	rec := serve(newTestRouter(0), httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["data"]["status"])
}

func TestPreflight(t *testing.T) {
	rec := serve(newTestRouter(0), httptest.NewRequest(http.MethodOptions, "/api/v1/rename", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition")
}

func TestRename_MethodNotAllowed(t *testing.T) {
	rec := serve(newTestRouter(0), httptest.NewRequest(http.MethodGet, "/api/v1/rename", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "METHOD_NOT_ALLOWED", errorCode(t, rec))
}

func TestUnknownRoute(t *testing.T) {
	rec := serve(newTestRouter(0), httptest.NewRequest(http.MethodGet, "/api/v2/nothing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOrNotImplemented(t *testing.T) {
	r := server.NewRouter(server.Dependencies{})
	rec := serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

// --- rename ---

func TestRename_Success(t *testing.T) {
	file := pdfFile("scan.pdf", "Journal text https://doi.org/10.1000/xyz.")
	rec := serve(newTestRouter(0), multipartRequest(t, "/api/v1/rename", file, nil))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="2021 - Smith - A Study of Things - JRS.pdf"`,
		rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "public, max-age=3600", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "ready", rec.Header().Get(handler.HeaderStatus))
	assert.Equal(t, "10.1000/xyz", rec.Header().Get(handler.HeaderDOI))
	assert.Equal(t, file.data, rec.Body.Bytes())
}

func TestRename_ManualDOIField(t *testing.T) {
	file := pdfFile("scan.pdf", "cites 10.1000/xyz")
	req := multipartRequest(t, "/api/v1/rename", file, map[string]string{"doi": "doi:10.2000/manual"})
	rec := serve(newTestRouter(0), req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "10.2000/manual", rec.Header().Get(handler.HeaderDOI))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "2000 - Roe - Manual Pick - C.pdf")
}

func TestRename_LookupFailureReturnsFallback(t *testing.T) {
	file := pdfFile("scan 01.pdf", "10.9999/down")
	rec := serve(newTestRouter(0), multipartRequest(t, "/api/v1/rename", file, nil))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, `attachment; filename="scan 01.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "failed", rec.Header().Get(handler.HeaderStatus))
	assert.NotEmpty(t, rec.Header().Get(handler.HeaderError))
	assert.Equal(t, file.data, rec.Body.Bytes())
}

func TestRename_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		file     *formFile
		fields   map[string]string
		limit    int64
		wantCode int
		wantErr  string
	}{
		{
			name:     "no DOI",
			file:     pdfFile("a.pdf", "nothing to see"),
			wantCode: http.StatusNotFound,
			wantErr:  "NOT_FOUND",
		},
		{
			name:     "wrong media type",
			file:     &formFile{name: "a.txt", contentType: "text/plain", data: []byte("%PDF-1.4 10.1000/xyz")},
			wantCode: http.StatusUnsupportedMediaType,
			wantErr:  "UNSUPPORTED_MEDIA_TYPE",
		},
		{
			name:     "missing magic",
			file:     &formFile{name: "a.pdf", contentType: "application/pdf", data: []byte("hello 10.1000/xyz")},
			wantCode: http.StatusBadRequest,
			wantErr:  "INVALID_REQUEST",
		},
		{
			name:     "unreadable PDF",
			file:     pdfFile("a.pdf", "CORRUPT"),
			wantCode: http.StatusBadRequest,
			wantErr:  "INVALID_REQUEST",
		},
		{
			name:     "too large",
			file:     pdfFile("a.pdf", strings.Repeat("x", 200)),
			limit:    64,
			wantCode: http.StatusRequestEntityTooLarge,
			wantErr:  "PAYLOAD_TOO_LARGE",
		},
		{
			name:     "missing file field",
			fields:   map[string]string{"doi": "10.1000/xyz"},
			wantCode: http.StatusBadRequest,
			wantErr:  "INVALID_REQUEST",
		},
		{
			name:     "invalid manual DOI",
			file:     pdfFile("a.pdf", "10.1000/xyz"),
			fields:   map[string]string{"doi": "doi:"},
			wantCode: http.StatusBadRequest,
			wantErr:  "INVALID_DOI",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(newTestRouter(tt.limit), multipartRequest(t, "/api/v1/rename", tt.file, tt.fields))

			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantErr, errorCode(t, rec))
		})
	}
}

func TestRename_NotMultipart(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/rename", strings.NewReader(`{"file":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := serve(newTestRouter(0), req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_REQUEST", errorCode(t, rec))
}

// --- detect ---

func TestDetect(t *testing.T) {
	file := pdfFile("a.pdf", "see 10.1000/xyz and doi:10.2000/Other; also 10.1000/XYZ")
	rec := serve(newTestRouter(0), multipartRequest(t, "/api/v1/detect", file, nil))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Data handler.DetectResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "a.pdf", body.Data.FileName)
	assert.Equal(t, []doi.DOI{"10.1000/xyz", "10.2000/Other"}, body.Data.DOIs)
}

func TestDetect_NoneFound(t *testing.T) {
	rec := serve(newTestRouter(0), multipartRequest(t, "/api/v1/detect", pdfFile("a.pdf", "plain"), nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"dois":[]`)
}

// --- lookup ---

func TestLookup(t *testing.T) {
	rec := serve(newTestRouter(0), httptest.NewRequest(http.MethodGet, "/api/v1/lookup/10.1000/XYZ", nil))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Data handler.LookupResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, doi.DOI("10.1000/XYZ"), body.Data.DOI)
	assert.Equal(t, "A Study of Things", body.Data.Publication.Title)
	assert.Equal(t, "2021 - Smith - A Study of Things - JRS.pdf", body.Data.Filename)
}

func TestLookup_Errors(t *testing.T) {
	tests := []struct {
		path     string
		wantCode int
		wantErr  string
	}{
		{"/api/v1/lookup/10.1000/missing", http.StatusNotFound, "NOT_FOUND"},
		{"/api/v1/lookup/10.9999/down", http.StatusBadGateway, "UPSTREAM_ERROR"},
		{"/api/v1/lookup/doi:", http.StatusBadRequest, "INVALID_DOI"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := serve(newTestRouter(0), httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantErr, errorCode(t, rec))
		})
	}
}
