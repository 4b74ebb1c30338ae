package capture

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"
)

const defaultFetchTimeout = 15 * time.Second

// HTTPFetcher implements Fetcher over net/http. The zero value is usable;
// Header entries are added to every request.
type HTTPFetcher struct {
	Client *http.Client
	Header http.Header
}

func (f *HTTPFetcher) client() *http.Client {
	if f.Client != nil {
		return f.Client
	}
	return &http.Client{Timeout: defaultFetchTimeout}
}

// FetchText retrieves the body at url as a string.
func (f *HTTPFetcher) FetchText(ctx context.Context, url string) (string, error) {
	body, _, err := f.get(ctx, url, "text/*")
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// FetchBytes retrieves the body at url plus its media type. The media type
// comes from the Content-Type header when present, then the URL extension,
// then content sniffing.
func (f *HTTPFetcher) FetchBytes(ctx context.Context, url string) ([]byte, string, error) {
	body, ct, err := f.get(ctx, url, "*/*")
	if err != nil {
		return nil, "", err
	}
	return body, mediaTypeFor(url, ct, body), nil
}

func (f *HTTPFetcher) get(ctx context.Context, url, accept string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", &FetchError{URL: url, Err: err}
	}
	req.Header.Set("Accept", accept)
	for k, vals := range f.Header {
		if strings.EqualFold(k, "Accept") {
			continue
		}
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	resp, err := f.client().Do(req)
	if err != nil {
		return nil, "", &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", &FetchError{URL: url, Status: resp.StatusCode}
	}
	rc := io.ReadCloser(resp.Body)
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		if gr, err := gzip.NewReader(resp.Body); err == nil {
			rc = gr
			defer gr.Close()
		}
	case "deflate":
		// Some servers send zlib-wrapped streams, others raw deflate. Buffer
		// first so the fallback attempt sees the whole stream.
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, "", &FetchError{URL: url, Err: err}
		}
		if zr, err := zlib.NewReader(bytes.NewReader(raw)); err == nil {
			rc = zr
			defer zr.Close()
		} else {
			fr := flate.NewReader(bytes.NewReader(raw))
			rc = fr
			defer fr.Close()
		}
	}
	body, err := io.ReadAll(rc)
	if err != nil {
		return nil, "", &FetchError{URL: url, Err: err}
	}
	return body, resp.Header.Get("Content-Type"), nil
}

func mediaTypeFor(url, contentType string, body []byte) string {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil && mt != "" && mt != "application/octet-stream" {
		return mt
	}
	if ext := path.Ext(strings.SplitN(path.Base(url), "?", 2)[0]); ext != "" {
		if mt := mime.TypeByExtension(ext); mt != "" {
			if parsed, _, err := mime.ParseMediaType(mt); err == nil {
				return parsed
			}
		}
	}
	return http.DetectContentType(body)
}
