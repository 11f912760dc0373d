package notion_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/webclip/clipd/notion"
)

// recorded captures one request seen by the fake API.
type recorded struct {
	method  string
	path    string
	headers http.Header
	body    map[string]any
}

// fakeAPI returns a client pointed at an httptest server that answers every
// request with status and reply, recording what it saw.
func fakeAPI(t *testing.T, status int, reply string) (*notion.Client, *recorded) {
	t.Helper()
	rec := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.method = r.Method
		rec.path = r.URL.Path
		rec.headers = r.Header.Clone()
		rec.body = map[string]any{}
		if err := json.NewDecoder(r.Body).Decode(&rec.body); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		w.WriteHeader(status)
		w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return notion.New("secret-key", "db-123", notion.WithBaseURL(srv.URL)), rec
}

func TestCreatePage(t *testing.T) {
	c, rec := fakeAPI(t, 200, `{"id":"page-1","created_time":"2026-08-30T10:00:00.000Z"}`)

	page, err := c.CreatePage(context.Background(), notion.PageData{
		URL:   "https://example.com/a",
		Title: "Example",
	})
	if err != nil {
		t.Fatal(err)
	}
	if page.ID != "page-1" {
		t.Fatalf("got id %q, want page-1", page.ID)
	}
	if rec.method != "POST" || rec.path != "/v1/pages" {
		t.Fatalf("got %s %s, want POST /v1/pages", rec.method, rec.path)
	}
	if got := rec.headers.Get("Authorization"); got != "Bearer secret-key" {
		t.Fatalf("got auth header %q", got)
	}
	if got := rec.headers.Get("Notion-Version"); got != notion.APIVersion {
		t.Fatalf("got version header %q, want %q", got, notion.APIVersion)
	}

	parent := rec.body["parent"].(map[string]any)
	if parent["database_id"] != "db-123" {
		t.Fatalf("got parent %v", parent)
	}
}

func TestUpdatePage(t *testing.T) {
	c, rec := fakeAPI(t, 200, `{"id":"page-9"}`)

	_, err := c.UpdatePage(context.Background(), "page-9", notion.PageData{URL: "https://example.com"})
	if err != nil {
		t.Fatal(err)
	}
	if rec.method != "PATCH" || rec.path != "/v1/pages/page-9" {
		t.Fatalf("got %s %s, want PATCH /v1/pages/page-9", rec.method, rec.path)
	}
	if _, ok := rec.body["parent"]; ok {
		t.Fatal("update must not carry a parent")
	}
	if _, ok := rec.body["properties"]; !ok {
		t.Fatal("update must carry properties")
	}
}

func TestPropertyMapping(t *testing.T) {
	c, rec := fakeAPI(t, 200, `{"id":"p"}`)

	_, err := c.CreatePage(context.Background(), notion.PageData{
		URL:         "https://example.com/post",
		Title:       "A Post",
		Description: "note",
		Tags:        []string{"article"},
		SessionID:   "sess-1",
		Highlights:  "quoted text",
	})
	if err != nil {
		t.Fatal(err)
	}

	props := rec.body["properties"].(map[string]any)
	for _, key := range []string{"Title", "Link", "Status", "Description", "Tags", "Session ID", "Highlights"} {
		if _, ok := props[key]; !ok {
			t.Errorf("missing property %q", key)
		}
	}

	link := props["Link"].(map[string]any)
	if link["url"] != "https://example.com/post" {
		t.Fatalf("got link %v", link)
	}
	status := props["Status"].(map[string]any)["status"].(map[string]any)
	if status["name"] != "New" {
		t.Fatalf("got status %v", status)
	}
}

func TestPropertyMappingOmitsAbsent(t *testing.T) {
	c, rec := fakeAPI(t, 200, `{"id":"p"}`)

	_, err := c.CreatePage(context.Background(), notion.PageData{URL: "https://example.com"})
	if err != nil {
		t.Fatal(err)
	}

	props := rec.body["properties"].(map[string]any)
	for _, key := range []string{"Description", "Tags", "Session ID", "Highlights"} {
		if _, ok := props[key]; ok {
			t.Errorf("property %q must be omitted when empty", key)
		}
	}

	// Empty title falls back to the URL.
	title := props["Title"].(map[string]any)["title"].([]any)[0].(map[string]any)
	content := title["text"].(map[string]any)["content"]
	if content != "https://example.com" {
		t.Fatalf("got title content %v, want URL fallback", content)
	}
}

func TestQueryByURL(t *testing.T) {
	c, rec := fakeAPI(t, 200, `{"results":[
		{"id":"page-1","created_time":"2026-01-15T08:00:00.000Z",
		 "properties":{"Description":{"rich_text":[{"plain_text":"my note"}]}}}
	]}`)

	results, err := c.QueryByURL(context.Background(), "https://example.com/a")
	if err != nil {
		t.Fatal(err)
	}
	if rec.method != "POST" || rec.path != "/v1/databases/db-123/query" {
		t.Fatalf("got %s %s", rec.method, rec.path)
	}

	filter := rec.body["filter"].(map[string]any)
	if filter["property"] != "Link" {
		t.Fatalf("got filter %v", filter)
	}
	eq := filter["url"].(map[string]any)["equals"]
	if eq != "https://example.com/a" {
		t.Fatalf("got equals %v", eq)
	}

	if len(results) != 1 || results[0].ID != "page-1" {
		t.Fatalf("got results %+v", results)
	}
	if got := results[0].DescriptionText(); got != "my note" {
		t.Fatalf("got description %q", got)
	}
}

func TestAppendImageBlocks(t *testing.T) {
	c, rec := fakeAPI(t, 200, `{"results":[]}`)

	urls := []string{"https://img/1.png", "https://img/2.png"}
	if _, err := c.AppendImageBlocks(context.Background(), "page-1", urls); err != nil {
		t.Fatal(err)
	}
	if rec.method != "PATCH" || rec.path != "/v1/blocks/page-1/children" {
		t.Fatalf("got %s %s", rec.method, rec.path)
	}

	children := rec.body["children"].([]any)
	if len(children) != 2 {
		t.Fatalf("got %d blocks, want 2", len(children))
	}
	for i, child := range children {
		block := child.(map[string]any)
		if block["type"] != "image" {
			t.Fatalf("block %d type %v", i, block["type"])
		}
		img := block["image"].(map[string]any)
		if img["type"] != "external" {
			t.Fatalf("block %d image type %v", i, img["type"])
		}
		if got := img["external"].(map[string]any)["url"]; got != urls[i] {
			t.Fatalf("block %d url %v, want %s", i, got, urls[i])
		}
	}
}

func TestAppendTextBlocks(t *testing.T) {
	c, rec := fakeAPI(t, 200, `{"results":[]}`)

	n, _, err := c.AppendTextBlocks(context.Background(), "page-1", "first\n\n  \nsecond")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("got %d blocks, want 2", n)
	}

	children := rec.body["children"].([]any)
	var lines []string
	for _, child := range children {
		block := child.(map[string]any)
		if block["type"] != "paragraph" {
			t.Fatalf("got block type %v", block["type"])
		}
		rt := block["paragraph"].(map[string]any)["rich_text"].([]any)
		lines = append(lines, rt[0].(map[string]any)["text"].(map[string]any)["content"].(string))
	}
	if !reflect.DeepEqual(lines, []string{"first", "second"}) {
		t.Fatalf("got lines %v", lines)
	}
}

func TestAddComment(t *testing.T) {
	c, rec := fakeAPI(t, 200, `{"id":"comment-1"}`)

	if _, err := c.AddComment(context.Background(), "page-1", "hello"); err != nil {
		t.Fatal(err)
	}
	if rec.method != "POST" || rec.path != "/v1/comments" {
		t.Fatalf("got %s %s", rec.method, rec.path)
	}
	parent := rec.body["parent"].(map[string]any)
	if parent["page_id"] != "page-1" {
		t.Fatalf("got parent %v", parent)
	}
}

func TestNon2xxBecomesAPIError(t *testing.T) {
	c, _ := fakeAPI(t, 401, `{"message":"unauthorized"}`)

	_, err := c.CreatePage(context.Background(), notion.PageData{URL: "https://example.com"})
	var apiErr *notion.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("got %v, want *APIError", err)
	}
	if apiErr.Status != 401 {
		t.Fatalf("got status %d, want 401", apiErr.Status)
	}
}

func TestSplitParagraphs(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"simple", "A\nB", []string{"A", "B"}},
		{"blank lines dropped", "A\n\n\nB\n", []string{"A", "B"}},
		{"whitespace-only dropped", "A\n   \nB", []string{"A", "B"}},
		{"empty", "", nil},
		{"only blanks", "\n  \n", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := notion.SplitParagraphs(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}
