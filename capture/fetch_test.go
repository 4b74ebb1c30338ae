package capture

import (
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPFetcherText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") == "" {
			t.Error("missing Accept header")
		}
		w.Header().Set("Content-Type", "text/css")
		w.Write([]byte(".a{color:red}"))
	}))
	defer srv.Close()

	f := &HTTPFetcher{}
	got, err := f.FetchText(context.Background(), srv.URL+"/style.css")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got != ".a{color:red}" {
		t.Fatalf("body: %q", got)
	}
}

func TestHTTPFetcherGzip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Set("Content-Type", "text/plain")
		gw := gzip.NewWriter(w)
		gw.Write([]byte("compressed body"))
		gw.Close()
	}))
	defer srv.Close()

	f := &HTTPFetcher{}
	got, err := f.FetchText(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got != "compressed body" {
		t.Fatalf("body: %q", got)
	}
}

func TestHTTPFetcherDeflate(t *testing.T) {
	serve := func(write func(w http.ResponseWriter)) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Encoding", "deflate")
			w.Header().Set("Content-Type", "text/plain")
			write(w)
		}))
	}

	zlibSrv := serve(func(w http.ResponseWriter) {
		zw := zlib.NewWriter(w)
		zw.Write([]byte("zlib wrapped body"))
		zw.Close()
	})
	defer zlibSrv.Close()
	// Raw deflate, no zlib header: the first decode attempt fails and the
	// fallback must still see the whole stream.
	rawSrv := serve(func(w http.ResponseWriter) {
		fw, _ := flate.NewWriter(w, flate.DefaultCompression)
		fw.Write([]byte("raw deflate body"))
		fw.Close()
	})
	defer rawSrv.Close()

	f := &HTTPFetcher{}
	got, err := f.FetchText(context.Background(), zlibSrv.URL)
	if err != nil {
		t.Fatalf("zlib deflate fetch: %v", err)
	}
	if got != "zlib wrapped body" {
		t.Fatalf("zlib deflate body: %q", got)
	}
	got, err = f.FetchText(context.Background(), rawSrv.URL)
	if err != nil {
		t.Fatalf("raw deflate fetch: %v", err)
	}
	if got != "raw deflate body" {
		t.Fatalf("raw deflate body: %q", got)
	}
}

func TestHTTPFetcherStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := &HTTPFetcher{}
	_, err := f.FetchText(context.Background(), srv.URL)
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %T", err)
	}
	if fe.Status != 404 {
		t.Fatalf("status: %d", fe.Status)
	}
}

func TestHTTPFetcherBytesMediaType(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(png)
	}))
	defer srv.Close()

	f := &HTTPFetcher{}
	body, mt, err := f.FetchBytes(context.Background(), srv.URL+"/icon.png")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if mt != "image/png" {
		t.Fatalf("media type: %q", mt)
	}
	if len(body) != len(png) {
		t.Fatalf("body length: %d", len(body))
	}
}

func TestMediaTypeFor(t *testing.T) {
	cases := []struct {
		url, ct string
		body    []byte
		want    string
	}{
		{"https://x/a.png", "image/png; charset=binary", nil, "image/png"},
		{"https://x/a.css?v=1", "", nil, "text/css"},
		{"https://x/a", "", []byte("GIF89a"), "image/gif"},
	}
	for _, c := range cases {
		if got := mediaTypeFor(c.url, c.ct, c.body); got != c.want {
			t.Fatalf("mediaTypeFor(%s, %s): got %q want %q", c.url, c.ct, got, c.want)
		}
	}
}

func TestFetchErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := &FetchError{URL: "u", Err: inner}
	if !errors.Is(err, inner) {
		t.Fatal("unwrap lost inner error")
	}
	serr := &StoreError{URL: "u", Err: inner}
	if !errors.Is(serr, inner) {
		t.Fatal("store error unwrap lost inner error")
	}
}
