package origin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"imgcache/configs"
	"imgcache/internal/domain/models"
)

func newTestFetcher(t *testing.T, baseURL string) *Fetcher {
	t.Helper()
	fetcher, err := NewFetcher(&configs.OriginConfig{
		BaseURL: baseURL,
		Timeout: 5 * time.Second,
	}, nil)
	if err != nil {
		t.Fatalf("NewFetcher error: %v", err)
	}
	return fetcher
}

func TestFetchForwardsPathQueryAndIdentity(t *testing.T) {
	var gotPath, gotQuery, gotXFF, gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotXFF = r.Header.Get("X-Forwarded-For")
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "image/jpeg")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("jpeg-bytes"))
	}))
	defer server.Close()

	fetcher := newTestFetcher(t, server.URL)

	header := http.Header{}
	header.Set("User-Agent", "test-agent/1.0")

	resp, err := fetcher.Fetch(context.Background(), &models.GenerateRequest{
		Method:   http.MethodGet,
		Path:     "/prompt/sunset over ocean",
		Query:    url.Values{"width": {"512"}, "model": {"flux"}},
		Header:   header,
		ClientIP: "203.0.113.9",
	})
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Errorf("unexpected status: %d", resp.StatusCode)
	}
	if resp.ContentType != "image/jpeg" {
		t.Errorf("unexpected content type: %s", resp.ContentType)
	}
	if string(resp.Body) != "jpeg-bytes" {
		t.Errorf("unexpected body: %s", resp.Body)
	}
	if gotPath != "/prompt/sunset over ocean" {
		t.Errorf("path not forwarded: %s", gotPath)
	}
	if gotQuery != "model=flux&width=512" {
		t.Errorf("query not forwarded: %s", gotQuery)
	}
	if gotXFF != "203.0.113.9" {
		t.Errorf("client ip not forwarded: %s", gotXFF)
	}
	if gotUA != "test-agent/1.0" {
		t.Errorf("user agent not forwarded: %s", gotUA)
	}
}

func TestFetchForwardsPostBody(t *testing.T) {
	var gotBody string
	var gotMethod string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		buf := make([]byte, r.ContentLength)
		_, _ = r.Body.Read(buf)
		gotBody = string(buf)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	fetcher := newTestFetcher(t, server.URL)

	_, err := fetcher.Fetch(context.Background(), &models.GenerateRequest{
		Method: http.MethodPost,
		Path:   "/prompt/abstract art",
		Query:  url.Values{},
		Header: http.Header{"Content-Type": {"application/json"}},
		Body:   []byte(`{"style":"abstract"}`),
	})
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if gotMethod != http.MethodPost {
		t.Errorf("unexpected method: %s", gotMethod)
	}
	if gotBody != `{"style":"abstract"}` {
		t.Errorf("body not forwarded: %s", gotBody)
	}
}

func TestFetchForwardsArbitraryHeadersStripsHopByHop(t *testing.T) {
	var gotAuth, gotTrace, gotConnection, gotXFF string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotTrace = r.Header.Get("X-Custom-Trace")
		gotConnection = r.Header.Get("Keep-Alive")
		gotXFF = r.Header.Get("X-Forwarded-For")
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("X-Origin-Generator", "flux-v2")
		w.Header().Set("Cache-Control", "max-age=60")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	fetcher := newTestFetcher(t, server.URL)

	header := http.Header{}
	header.Set("Authorization", "Bearer abc")
	header.Set("X-Custom-Trace", "trace-42")
	header.Set("Keep-Alive", "timeout=5")
	header.Set("X-Forwarded-For", "198.51.100.1")

	resp, err := fetcher.Fetch(context.Background(), &models.GenerateRequest{
		Method:   http.MethodGet,
		Path:     "/prompt/x",
		Query:    url.Values{},
		Header:   header,
		ClientIP: "203.0.113.9",
	})
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}

	// 非身份头也原样透传
	if gotAuth != "Bearer abc" {
		t.Errorf("authorization not forwarded: %q", gotAuth)
	}
	if gotTrace != "trace-42" {
		t.Errorf("custom header not forwarded: %q", gotTrace)
	}
	// 逐跳头剥离，代理自管的头以代理值为准
	if gotConnection != "" {
		t.Errorf("hop-by-hop header must be stripped, got %q", gotConnection)
	}
	if gotXFF != "203.0.113.9" {
		t.Errorf("proxy must own X-Forwarded-For, got %q", gotXFF)
	}

	// 源站响应头全量带回，Content-Type走专用字段
	if got := resp.Header["X-Origin-Generator"]; got != "flux-v2" {
		t.Errorf("origin header not passed back: %q", got)
	}
	if got := resp.Header["Cache-Control"]; got != "max-age=60" {
		t.Errorf("cache-control not passed back: %q", got)
	}
	if _, ok := resp.Header["Content-Type"]; ok {
		t.Error("content type must not duplicate into header map")
	}
}

func TestFetchPropagatesOriginErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	fetcher := newTestFetcher(t, server.URL)

	resp, err := fetcher.Fetch(context.Background(), &models.GenerateRequest{
		Method: http.MethodGet,
		Path:   "/prompt/x",
		Query:  url.Values{},
		Header: http.Header{},
	})
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	// 源站错误状态照实返回，不在传输层报错
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("unexpected status: %d", resp.StatusCode)
	}
}

func TestNewFetcherRejectsRelativeURL(t *testing.T) {
	_, err := NewFetcher(&configs.OriginConfig{BaseURL: "not-a-url", Timeout: time.Second}, nil)
	if err == nil {
		t.Error("expected error for relative base url")
	}
}
