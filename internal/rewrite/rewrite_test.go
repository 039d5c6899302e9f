package rewrite

import (
	"context"
	"errors"
	"strings"
	"testing"

	"NewsDesk/internal/ports"
)

type scriptedProvider struct {
	text    string
	err     error
	prompts []string
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Generate(_ context.Context, prompt string) (ports.Completion, error) {
	p.prompts = append(p.prompts, prompt)
	if p.err != nil {
		return ports.Completion{}, p.err
	}
	return ports.Completion{Text: p.text, InputTokens: 10, OutputTokens: 20}, nil
}

func TestBucketFor(t *testing.T) {
	t.Parallel()

	cases := map[int]Bucket{
		0:    BucketShort,
		499:  BucketShort,
		500:  BucketMedium,
		1499: BucketMedium,
		1500: BucketLong,
		9000: BucketLong,
	}
	for n, want := range cases {
		if got := BucketFor(n); got != want {
			t.Fatalf("BucketFor(%d) = %s, want %s", n, got, want)
		}
	}
}

func TestBuildPromptIsDeterministicAndCarriesConstraints(t *testing.T) {
	t.Parallel()

	source := "광주시는 3일 청년 일자리 사업에 120억 원을 편성했다고 밝혔다."
	first := BuildPrompt(source)
	if first != BuildPrompt(source) {
		t.Fatalf("prompt must be deterministic")
	}

	for _, want := range []string{source, "short source", "verbatim", "[SUBTITLE:", "outside context"} {
		if !strings.Contains(first, want) {
			t.Fatalf("prompt missing %q", want)
		}
	}

	long := BuildPrompt(strings.Repeat("가", 1600))
	if !strings.Contains(long, "long source") || strings.Contains(long, "short source") {
		t.Fatalf("expected long bucket guidance")
	}
}

func TestRewriteParsesSubtitle(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{text: "[SUBTITLE: 4월부터 신청 접수]\n\n광주시는 청년 일자리 사업에 120억 원을 편성했다."}
	result, completion, err := NewStage(provider).Rewrite(context.Background(), "source")
	if err != nil {
		t.Fatalf("Rewrite returned error: %v", err)
	}

	if result.Subtitle != "4월부터 신청 접수" {
		t.Fatalf("unexpected subtitle: %q", result.Subtitle)
	}
	if result.Content != "광주시는 청년 일자리 사업에 120억 원을 편성했다." {
		t.Fatalf("unexpected content: %q", result.Content)
	}
	if completion.InputTokens != 10 || completion.OutputTokens != 20 {
		t.Fatalf("usage not propagated: %+v", completion)
	}
	if len(provider.prompts) != 1 {
		t.Fatalf("expected exactly one provider call, got %d", len(provider.prompts))
	}
}

func TestParseResponseVariants(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name, in, content, subtitle string
	}{
		{"korean marker", "[부제: 목포 수산물 축제 개막]\n본문입니다.", "본문입니다.", "목포 수산물 축제 개막"},
		{"full-width colon", "[부제： 일정 변경]\n본문", "본문", "일정 변경"},
		{"lowercase", "[subtitle:Budget approved]\nBody text.", "Body text.", "Budget approved"},
		{"marker at end", "Body text.\n[SUBTITLE: Late marker]", "Body text.", "Late marker"},
		{"missing marker", "Body only.", "Body only.", ""},
		{"fenced", "```text\n[SUBTITLE: Fenced]\nBody.\n```", "Body.", "Fenced"},
	}

	for _, tc := range cases {
		got := ParseResponse(tc.in)
		if got.Content != tc.content || got.Subtitle != tc.subtitle {
			t.Fatalf("%s: got %+v", tc.name, got)
		}
	}
}

func TestRewriteMissingMarkerSoftDegrades(t *testing.T) {
	t.Parallel()

	result, _, err := NewStage(&scriptedProvider{text: "Just the body."}).Rewrite(context.Background(), "source")
	if err != nil {
		t.Fatalf("missing subtitle must not fail: %v", err)
	}
	if result.Subtitle != "" || result.Content != "Just the body." {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestRewriteProviderFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("502 bad gateway")
	_, _, err := NewStage(&scriptedProvider{err: boom}).Rewrite(context.Background(), "source")
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped provider error, got %v", err)
	}
}

func TestRewriteEmptyBody(t *testing.T) {
	t.Parallel()

	_, _, err := NewStage(&scriptedProvider{text: "[SUBTITLE: only a subtitle]"}).Rewrite(context.Background(), "source")
	if !errors.Is(err, ErrEmptyRewrite) {
		t.Fatalf("expected ErrEmptyRewrite, got %v", err)
	}
}
