// Package netx holds the signer's HTTP calls: document upload to the
// attestation API and download through presigned URLs.
package netx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/docattest/internal/api"
	"github.com/dmitrijs2005/docattest/internal/common"
)

// HTTPClient is swapped in tests.
var HTTPClient = &http.Client{}

// UploadDocument posts r as a multipart "file" field to baseURL/v1/uploads.
func UploadDocument(ctx context.Context, baseURL, filename string, r io.Reader) (api.Upload, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return api.Upload{}, err
	}
	if _, err := io.Copy(fw, r); err != nil {
		return api.Upload{}, err
	}
	if err := mw.Close(); err != nil {
		return api.Upload{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint(baseURL, "/v1/uploads"), &body)
	if err != nil {
		return api.Upload{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out api.Upload
	err = doJSON(req, http.StatusCreated, &out)
	return out, err
}

// ContentURL asks the API for a presigned GET URL of contentHash.
func ContentURL(ctx context.Context, baseURL, contentHash string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		endpoint(baseURL, "/v1/uploads/"+url.PathEscape(contentHash)), nil)
	if err != nil {
		return "", err
	}

	var out struct {
		URL string `json:"url"`
	}
	if err := doJSON(req, http.StatusOK, &out); err != nil {
		return "", err
	}
	return out.URL, nil
}

// Download copies the body at rawURL into w.
func Download(ctx context.Context, rawURL string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, err
	}
	resp, err := HTTPClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("download failed: %s; body: %s", resp.Status, string(b))
	}
	return io.Copy(w, resp.Body)
}

func endpoint(baseURL, path string) string {
	return strings.TrimRight(baseURL, "/") + path
}

// doJSON runs req and decodes a want-status reply into out. Error bodies
// carrying a taxonomy code are mapped back onto that kind.
func doJSON(req *http.Request, want int, out any) error {
	resp, err := HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != want {
		var apiErr api.Error
		if json.Unmarshal(b, &apiErr) == nil {
			if kind := common.ByCode(apiErr.Code); kind != nil {
				return kind.New(apiErr.Message)
			}
		}
		return fmt.Errorf("request failed: %s; body: %s", resp.Status, string(b))
	}
	return json.Unmarshal(b, out)
}
