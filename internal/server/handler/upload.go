package handler

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/matsen/bibrename/internal/pdf"
	"github.com/matsen/bibrename/internal/server/response"
)

// multipartOverhead allows for boundaries and small form fields on top of
// the file itself.
const multipartOverhead = 64 << 10

// maxFieldBytes caps plain form fields such as the manual DOI.
const maxFieldBytes = 1 << 10

// upload is a PDF received through a multipart form.
type upload struct {
	Name string
	Data []byte
	DOI  string // Optional "doi" form field
}

// uploadError is a rejected upload mapped to an HTTP response.
type uploadError struct {
	Status  int
	Code    string
	Message string
}

func (e *uploadError) Error() string {
	return e.Message
}

func (e *uploadError) write(w http.ResponseWriter, limit int64) {
	var details any
	if e.Status == http.StatusRequestEntityTooLarge {
		details = map[string]int64{"limit_bytes": limit}
	}
	response.Error(w, e.Status, e.Code, e.Message, details)
}

func tooLarge(limit int64) *uploadError {
	return &uploadError{
		Status:  http.StatusRequestEntityTooLarge,
		Code:    response.CodeTooLarge,
		Message: fmt.Sprintf("Payload too large. PDF limit is %dMB", limit>>20),
	}
}

func badRequest(msg string) *uploadError {
	return &uploadError{Status: http.StatusBadRequest, Code: response.CodeInvalidRequest, Message: msg}
}

// readUpload reads the "file" part (and an optional "doi" field) of a
// multipart request, enforcing the size cap, the PDF media type and the
// PDF header.
func readUpload(w http.ResponseWriter, r *http.Request, limit int64) (*upload, *uploadError) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/form-data" {
		return nil, badRequest("Expected multipart/form-data request")
	}
	if r.ContentLength == 0 {
		return nil, badRequest("Request body is empty")
	}
	if r.ContentLength > limit+multipartOverhead {
		return nil, tooLarge(limit)
	}

	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, badRequest("Malformed multipart form data")
	}

	var up upload
	var partType string
	found := false
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, partError(err, limit)
		}

		switch part.FormName() {
		case "file":
			data, err := io.ReadAll(io.LimitReader(part, limit+1))
			if err != nil {
				return nil, partError(err, limit)
			}
			if int64(len(data)) > limit {
				return nil, tooLarge(limit)
			}
			up.Name = part.FileName()
			up.Data = data
			partType = part.Header.Get("Content-Type")
			found = true
		case "doi":
			value, err := readField(part)
			if err != nil {
				return nil, partError(err, limit)
			}
			up.DOI = value
		}
		part.Close()
	}

	if !found {
		return nil, badRequest("No file field found. Use field name 'file'")
	}
	if media, _, err := mime.ParseMediaType(partType); err != nil || !strings.EqualFold(media, "application/pdf") {
		return nil, &uploadError{
			Status:  http.StatusUnsupportedMediaType,
			Code:    response.CodeUnsupportedType,
			Message: "Unsupported file type. Please upload a PDF",
		}
	}
	if !pdf.IsPDF(up.Data) {
		return nil, badRequest("Malformed or invalid PDF file")
	}
	if up.Name == "" {
		up.Name = "upload.pdf"
	}
	return &up, nil
}

func readField(part *multipart.Part) (string, error) {
	data, err := io.ReadAll(io.LimitReader(part, maxFieldBytes))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func partError(err error, limit int64) *uploadError {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return tooLarge(limit)
	}
	return badRequest("Malformed multipart form data")
}
