package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-test/deep"

	"freeproxy/internal/shared/types"
	"freeproxy/proxypool/model"
)

// mockFetcher returns a canned response for every URL.
type mockFetcher struct {
	resp *Response
	err  error
	urls []string
}

func (m *mockFetcher) Get(ctx context.Context, url string) (*Response, error) {
	m.urls = append(m.urls, url)
	if m.err != nil {
		return nil, m.err
	}
	return m.resp, nil
}

func okResponse(body string) *Response {
	return &Response{StatusCode: http.StatusOK, Header: http.Header{}, Body: []byte(body)}
}

func recordMaps(records []model.ProxyRecord) []map[string]string {
	out := make([]map[string]string, len(records))
	for i, r := range records {
		out[i] = r.Map()
	}
	return out
}

const freeProxyListHTML = `
<html><body>
<table class="table table-striped table-bordered">
<thead><tr><th>IP Address</th><th>Port</th></tr></thead>
<tbody>
<tr><td>1.1.1.1</td><td>8080</td><td>US</td><td>United States</td><td>anonymous</td><td>no</td><td>yes</td><td>1 minute ago</td></tr>
<tr><td>2.2.2.2</td><td>3128</td></tr>
<tr><td>3.3.3.3</td><td>80</td><td>GB</td><td>United Kingdom</td><td>elite proxy</td><td>yes</td><td>no</td><td>5 mins ago</td></tr>
</tbody>
</table>
</body></html>`

var wantTableRecords = []map[string]string{
	{
		"ip": "1.1.1.1", "port": "8080", "country_code": "US", "country_name": "United States",
		"anonymity_level": "anonymous", "supports_google": "no", "supports_https": "yes", "last_checked": "1 minute ago",
	},
	{
		"ip": "3.3.3.3", "port": "80", "country_code": "GB", "country_name": "United Kingdom",
		"anonymity_level": "elite proxy", "supports_google": "yes", "supports_https": "no", "last_checked": "5 mins ago",
	},
}

func TestParseLineList(t *testing.T) {
	records, err := ParseLineList([]byte("1.1.1.1:8080\n2.2.2.2:9090"))
	if err != nil {
		t.Fatalf("ParseLineList() returned an error: %v", err)
	}
	want := []map[string]string{
		{"ip": "1.1.1.1", "port": "8080"},
		{"ip": "2.2.2.2", "port": "9090"},
	}
	if diff := deep.Equal(recordMaps(records), want); diff != nil {
		t.Error(diff)
	}
}

func TestParseLineList_IgnoresBlankLinesAndCRLF(t *testing.T) {
	records, err := ParseLineList([]byte("1.1.1.1:8080\r\n\r\n2.2.2.2:9090\r\n"))
	if err != nil {
		t.Fatalf("ParseLineList() returned an error: %v", err)
	}
	if len(records) != 2 || records[1].Port() != "9090" {
		t.Errorf("Unexpected records: %v", recordMaps(records))
	}
}

func TestParseLineList_MalformedLineFails(t *testing.T) {
	_, err := ParseLineList([]byte("1.1.1.1:8080\nnot-a-proxy\n2.2.2.2:9090"))
	var fe *model.FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("Expected *model.FormatError, got %v", err)
	}
	if fe.Input != "not-a-proxy" {
		t.Errorf("Expected offending input 'not-a-proxy', got '%s'", fe.Input)
	}
}

func TestLineListScraper_Scrape(t *testing.T) {
	f := &mockFetcher{resp: okResponse("1.1.1.1:8080\n2.2.2.2:8080\n")}
	s := NewLineListScraper("TheSpeedX/PROXY-List", f)

	records, err := s.Scrape(context.Background(), "http://list.invalid/http.txt")
	if err != nil {
		t.Fatalf("Scrape() returned an error: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("Expected 2 records, got %d", len(records))
	}
	if diff := deep.Equal(f.urls, []string{"http://list.invalid/http.txt"}); diff != nil {
		t.Error(diff)
	}
}

func TestLineListScraper_TransportErrorIsFetchError(t *testing.T) {
	s := NewLineListScraper("proxyscrape.com", &mockFetcher{err: errors.New("dial tcp: connection refused")})

	_, err := s.Scrape(context.Background(), "http://list.invalid/")
	var fe *model.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("Expected *model.FetchError, got %v", err)
	}
	if fe.Source != "proxyscrape.com" {
		t.Errorf("Expected source 'proxyscrape.com', got '%s'", fe.Source)
	}
}

func TestLineListScraper_Non2xxIsFetchError(t *testing.T) {
	s := NewLineListScraper("proxyscrape.com", &mockFetcher{resp: &Response{StatusCode: http.StatusBadGateway, Header: http.Header{}}})

	_, err := s.Scrape(context.Background(), "http://list.invalid/")
	var fe *model.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("Expected *model.FetchError, got %v", err)
	}
	if fe.StatusCode != http.StatusBadGateway {
		t.Errorf("Expected status 502, got %d", fe.StatusCode)
	}
}

func TestTableScraper_Scrape(t *testing.T) {
	s := NewTableScraper("free-proxy-list.net", &mockFetcher{resp: okResponse(freeProxyListHTML)})

	records, err := s.Scrape(context.Background(), "http://free-proxy-list.invalid")
	if err != nil {
		t.Fatalf("Scrape() returned an error: %v", err)
	}
	if diff := deep.Equal(recordMaps(records), wantTableRecords); diff != nil {
		t.Error(diff)
	}
	if diff := deep.Equal(records[0].Keys(), model.TableKeys); diff != nil {
		t.Error(diff)
	}
}

func TestTableScraper_MissingTableIsEmpty(t *testing.T) {
	s := NewTableScraper("free-proxy-list.net", &mockFetcher{resp: okResponse("<html><body><p>maintenance</p></body></html>")})

	records, err := s.Scrape(context.Background(), "http://free-proxy-list.invalid")
	if err != nil {
		t.Fatalf("Expected no error for a missing table, got %v", err)
	}
	if records == nil || len(records) != 0 {
		t.Errorf("Expected an empty, non-nil slice, got %v", records)
	}
}

func TestRestyFetcher_AgainstServer(t *testing.T) {
	var gotUA, gotCache string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotCache = r.Header.Get("Cache-Control")
		w.Header().Set("Last-Modified", "Mon, 02 Jan 2006 15:04:05 GMT")
		w.Write([]byte("4.4.4.4:8000\n"))
	}))
	defer srv.Close()

	s := NewLineListScraper("TheSpeedX/PROXY-List", NewRestyFetcher(5*time.Second, "freeproxy-test"))
	records, err := s.Scrape(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Scrape() returned an error: %v", err)
	}
	if len(records) != 1 || records[0].String() != "4.4.4.4:8000" {
		t.Errorf("Unexpected records: %v", recordMaps(records))
	}
	if gotUA != "freeproxy-test" {
		t.Errorf("Expected User-Agent 'freeproxy-test', got '%s'", gotUA)
	}
	if gotCache != "no-cache" {
		t.Errorf("Expected Cache-Control 'no-cache', got '%s'", gotCache)
	}
}

func TestRestyFetcher_ServerErrorIsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := NewTableScraper("free-proxy-list.net", NewRestyFetcher(5*time.Second, ""))
	_, err := s.Scrape(context.Background(), srv.URL)
	var fe *model.FetchError
	if !errors.As(err, &fe) || fe.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected *model.FetchError with status 503, got %v", err)
	}
}

func TestRestyFetcher_ThroughForwardProxy(t *testing.T) {
	gotURL := make(chan string, 1)
	fwd := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case gotURL <- r.URL.String():
		default:
		}
		w.Write([]byte("7.7.7.7:3128\n"))
	}))
	defer fwd.Close()

	f := NewRestyFetcher(5*time.Second, "").SetProxy(fwd.URL)
	records, err := NewLineListScraper("proxyscrape.com", f).Scrape(context.Background(), "http://list.invalid/http.txt")
	if err != nil {
		t.Fatalf("Scrape() returned an error: %v", err)
	}
	if len(records) != 1 || records[0].String() != "7.7.7.7:3128" {
		t.Errorf("Unexpected records: %v", recordMaps(records))
	}
	if got := <-gotURL; got != "http://list.invalid/http.txt" {
		t.Errorf("Expected the forward proxy to receive the list URL, got %q", got)
	}
}

func TestCollyTableScraper_Scrape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(freeProxyListHTML))
	}))
	defer srv.Close()

	s := NewCollyTableScraper("sslproxies.org", 5*time.Second, "freeproxy-test")
	for i := 0; i < 2; i++ { // a second run must not accumulate callbacks or hit "already visited"
		records, err := s.Scrape(context.Background(), srv.URL)
		if err != nil {
			t.Fatalf("Scrape() run %d returned an error: %v", i, err)
		}
		if diff := deep.Equal(recordMaps(records), wantTableRecords); diff != nil {
			t.Errorf("run %d: %v", i, diff)
		}
	}
}

func TestCollyTableScraper_ServerErrorIsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewCollyTableScraper("us-proxy.org", 5*time.Second, "")
	_, err := s.Scrape(context.Background(), srv.URL)
	var fe *model.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("Expected *model.FetchError, got %v", err)
	}
}

func TestFileListScraper(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proxies.txt")
	if err := os.WriteFile(path, []byte("5.5.5.5:1080\n6.6.6.6:8118\n"), 0644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}

	records, err := NewFileListScraper("local-file").Scrape(context.Background(), path)
	if err != nil {
		t.Fatalf("Scrape() returned an error: %v", err)
	}
	if len(records) != 2 || records[0].String() != "5.5.5.5:1080" {
		t.Errorf("Unexpected records: %v", recordMaps(records))
	}

	_, err = NewFileListScraper("local-file").Scrape(context.Background(), filepath.Join(t.TempDir(), "absent.txt"))
	var fe *model.FetchError
	if !errors.As(err, &fe) {
		t.Errorf("Expected *model.FetchError for a missing file, got %v", err)
	}
}

func TestRegistry_LookupUnknownListsKeys(t *testing.T) {
	r := NewDefaultRegistry(types.DefaultConfig())

	_, err := r.Lookup("unknown-source")
	var ise *model.InvalidSourceError
	if !errors.As(err, &ise) {
		t.Fatalf("Expected *model.InvalidSourceError, got %v", err)
	}
	want := []string{
		types.SourceSpeedX,
		types.SourceFreeProxyList,
		types.SourceLocalFile,
		types.SourceProxyScrape,
		types.SourceSSLProxies,
		types.SourceUSProxy,
	}
	if diff := deep.Equal(ise.Valid, want); diff != nil {
		t.Error(diff)
	}
}

func TestRegistry_DuplicateKey(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("a", NewFileListScraper("a")); err != nil {
		t.Fatalf("Register() returned an error: %v", err)
	}
	if err := r.Register("a", NewFileListScraper("a")); err == nil {
		t.Error("Expected duplicate registration to fail")
	}
	s, err := r.Lookup("a")
	if err != nil || s.Name() != "a" {
		t.Errorf("Lookup() = %v, %v", s, err)
	}
}
