package clipper

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/webclip/clipd/clipper/internal/settings"
	"github.com/webclip/clipd/llm"
)

func withLLM(t *testing.T, s *Service, f *fakeLLM) {
	t.Helper()
	if err := s.settings.Set(context.Background(), settings.KeyOpenAIAPIKey, "sk-test"); err != nil {
		t.Fatal(err)
	}
	s.newLLM = func(settings.Snapshot) Completer { return f }
}

func userTurn(content string) []llm.Turn {
	return []llm.Turn{{Role: llm.RoleUser, Content: content}}
}

func TestConverseNoKey(t *testing.T) {
	s, _ := newTestService(t)
	_, err := s.Converse(context.Background(), testPage(), "", userTurn("hi"))
	if !errors.Is(err, ErrNoOpenAIKey) {
		t.Fatalf("got %v, want ErrNoOpenAIKey", err)
	}
}

func TestConversePlainReply(t *testing.T) {
	s, _ := newTestService(t)
	f := &fakeLLM{reply: "Just an answer."}
	withLLM(t, s, f)

	res, err := s.Converse(context.Background(), testPage(), "", userTurn("what is this page?"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Reply != "Just an answer." {
		t.Fatalf("got reply %q", res.Reply)
	}

	// System turn is synthesized from the page and prepended.
	if f.turns[0].Role != llm.RoleSystem {
		t.Fatalf("got first role %q, want system", f.turns[0].Role)
	}
	if !strings.Contains(f.turns[0].Content, "IMG_0") {
		t.Fatal("system turn should carry the image inventory")
	}

	last := res.Turns[len(res.Turns)-1]
	if last.Role != llm.RoleAssistant || last.Content != "Just an answer." {
		t.Fatalf("got last turn %+v", last)
	}
}

func TestConverseKeepsExistingSystemTurn(t *testing.T) {
	s, _ := newTestService(t)
	f := &fakeLLM{reply: "ok"}
	withLLM(t, s, f)

	turns := []llm.Turn{
		{Role: llm.RoleSystem, Content: "custom system"},
		{Role: llm.RoleUser, Content: "hi"},
	}
	if _, err := s.Converse(context.Background(), testPage(), "", turns); err != nil {
		t.Fatal(err)
	}
	if len(f.turns) != 2 || f.turns[0].Content != "custom system" {
		t.Fatalf("system turn should not be duplicated, got %d turns", len(f.turns))
	}
}

func TestConverseActionWithoutPageID(t *testing.T) {
	s, store := newTestService(t)
	configure(t, s)
	withLLM(t, s, &fakeLLM{reply: `<action>{"type":"append_images","image_ids":["IMG_0"]}</action>`})

	res, err := s.Converse(context.Background(), testPage(), "", userTurn("save the images"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Reply, "not saved in Notion yet") {
		t.Fatalf("got reply %q", res.Reply)
	}
	if len(store.imageURLs) != 0 {
		t.Fatal("unsynced page must not reach the store")
	}
}

func TestConverseAppendImages(t *testing.T) {
	s, store := newTestService(t)
	configure(t, s)
	withLLM(t, s, &fakeLLM{reply: `Sure! <action>{"type":"append_images","image_ids":["IMG_1","IMG_0","IMG_9"]}</action>`})

	res, err := s.Converse(context.Background(), testPage(), "page-1", userTurn("save the images"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Reply, "Sure!") {
		t.Fatalf("reply should keep the prefix, got %q", res.Reply)
	}
	if !strings.Contains(res.Reply, "appended 2 image(s)") {
		t.Fatalf("got reply %q", res.Reply)
	}

	if len(store.imageURLs) != 1 {
		t.Fatalf("got %d append calls", len(store.imageURLs))
	}
	got := store.imageURLs[0]
	if len(got) != 2 || got[0] != "https://cdn.example.com/1.png" || got[1] != "https://cdn.example.com/0.png" {
		t.Fatalf("got urls %v", got)
	}
}

func TestConverseAppendImagesNoValidRefs(t *testing.T) {
	s, store := newTestService(t)
	configure(t, s)
	withLLM(t, s, &fakeLLM{reply: `<action>{"type":"append_images","image_ids":["IMG_42"]}</action>`})

	res, err := s.Converse(context.Background(), testPage(), "page-1", userTurn("save the images"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Reply, "No valid image IDs") {
		t.Fatalf("got reply %q", res.Reply)
	}
	if len(store.imageURLs) != 0 {
		t.Fatal("zero resolved refs must not reach the store")
	}
}

func TestConverseAppendText(t *testing.T) {
	s, store := newTestService(t)
	configure(t, s)
	withLLM(t, s, &fakeLLM{reply: `<action>{"type":"append_text","text":"one\ntwo"}</action>`})

	res, err := s.Converse(context.Background(), testPage(), "page-1", userTurn("add a summary"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Reply, "appended 2 text block(s)") {
		t.Fatalf("got reply %q", res.Reply)
	}
	if len(store.textAdded) != 1 || store.textAdded[0] != "one\ntwo" {
		t.Fatalf("got text %v", store.textAdded)
	}
}

func TestConverseDispatchFailureBecomesTurn(t *testing.T) {
	s, store := newTestService(t)
	configure(t, s)
	store.appendErr = errors.New("store down")
	withLLM(t, s, &fakeLLM{reply: `<action>{"type":"append_text","text":"one"}</action>`})

	res, err := s.Converse(context.Background(), testPage(), "page-1", userTurn("add it"))
	if err != nil {
		t.Fatalf("dispatch failure must not surface as error, got %v", err)
	}
	if !strings.Contains(res.Reply, "[System Error] Failed to append text") {
		t.Fatalf("got reply %q", res.Reply)
	}
}

func TestConverseMalformedActionFallsBack(t *testing.T) {
	s, store := newTestService(t)
	configure(t, s)
	withLLM(t, s, &fakeLLM{reply: `Okay. <action>{"type":"append_text","te`})

	res, err := s.Converse(context.Background(), testPage(), "page-1", userTurn("add it"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Reply, "Okay.") {
		t.Fatalf("fallback should keep the prefix, got %q", res.Reply)
	}
	if !strings.Contains(res.Reply, "[System Error]") {
		t.Fatalf("fallback should carry the diagnostic, got %q", res.Reply)
	}
	if len(store.textAdded) != 0 {
		t.Fatal("malformed action must not reach the store")
	}
}

func TestConverseGatewayFailureSurfaces(t *testing.T) {
	s, _ := newTestService(t)
	withLLM(t, s, &fakeLLM{err: errors.New("gateway down")})

	if _, err := s.Converse(context.Background(), testPage(), "", userTurn("hi")); err == nil {
		t.Fatal("want gateway error")
	}
}
