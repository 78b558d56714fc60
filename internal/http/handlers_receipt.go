package http

import (
	"encoding/base64"
	"io"
	"mime"
	"net/http"
	"strings"

	applog "spendwise/internal/log"
	"spendwise/internal/receipt"
)

const maxReceiptImage = 8 << 20

type receiptRequest struct {
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// handleAnalyzeReceipt accepts a multipart "image" field or a JSON body with
// base64 image data. Analysis failures still answer 200 with fallback values.
func (s *Server) handleAnalyzeReceipt(w http.ResponseWriter, r *http.Request, userID string) {
	image, mimeType, err := readReceiptImage(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(image) == 0 {
		writeError(w, http.StatusBadRequest, "image is required")
		return
	}

	ctx := r.Context()
	res := receipt.FallbackResult
	if s.receipts != nil {
		res = s.receipts.Analyze(ctx, image, mimeType)
	}

	applog.FromContext(ctx).InfoContext(ctx, "Receipt analysis served",
		applog.FieldUserID, userID,
		applog.FieldOperation, applog.OpAnalyze,
		"fallback", res.Fallback)
	writeJSON(w, http.StatusOK, res)
}

func readReceiptImage(w http.ResponseWriter, r *http.Request) ([]byte, string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "multipart/form-data" {
		r.Body = http.MaxBytesReader(w, r.Body, maxReceiptImage+(1<<20))
		if err := r.ParseMultipartForm(maxReceiptImage); err != nil {
			return nil, "", errBadRequest("invalid multipart body")
		}
		file, header, err := r.FormFile("image")
		if err != nil {
			return nil, "", errBadRequest("image is required")
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, maxReceiptImage+1))
		if err != nil {
			return nil, "", errBadRequest("could not read image")
		}
		if len(data) > maxReceiptImage {
			return nil, "", errBadRequest("image too large")
		}
		mimeType := header.Header.Get("Content-Type")
		if mimeType == "" || mimeType == "application/octet-stream" {
			mimeType = http.DetectContentType(data)
		}
		return data, mimeType, nil
	}

	var req receiptRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return nil, "", err
	}

	encoded := req.ImageBase64
	mimeType := req.MimeType
	// Accept data URLs: data:image/png;base64,....
	if rest, ok := strings.CutPrefix(encoded, "data:"); ok {
		if meta, payload, found := strings.Cut(rest, ","); found {
			if mimeType == "" {
				mimeType = strings.TrimSuffix(meta, ";base64")
			}
			encoded = payload
		}
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, "", errBadRequest("image_base64 is not valid base64")
	}
	return data, mimeType, nil
}

type errBadRequest string

func (e errBadRequest) Error() string { return string(e) }
