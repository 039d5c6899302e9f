package sourcetext

import (
	"math"
	"strings"
	"testing"

	"golang.org/x/text/unicode/norm"
)

func TestPlainTextStripsMarkup(t *testing.T) {
	t.Parallel()

	html := `<html><head><style>p{}</style><script>track()</script></head>
	<body>
	  <nav>Home | Region</nav>
	  <article>
	    <h1>광주시, 청년 일자리 예산 120억 편성</h1>
	    <p>광주시는   3일 청년 일자리 사업에
	       120억 원을 편성했다고 밝혔다.</p>
	    <p>시는 <b>4월</b>부터 신청을 받는다.</p>
	  </article>
	  <footer>Copyright</footer>
	</body></html>`

	got, err := PlainText(html)
	if err != nil {
		t.Fatalf("PlainText returned error: %v", err)
	}

	for _, unwanted := range []string{"track()", "Home | Region", "Copyright", "<b>"} {
		if strings.Contains(got, unwanted) {
			t.Fatalf("unexpected %q in %q", unwanted, got)
		}
	}

	paragraphs := strings.Split(got, "\n\n")
	if len(paragraphs) != 3 {
		t.Fatalf("expected 3 paragraphs, got %d: %q", len(paragraphs), got)
	}
	if paragraphs[2] != "시는 4월부터 신청을 받는다." {
		t.Fatalf("unexpected paragraph: %q", paragraphs[2])
	}
	if !strings.Contains(paragraphs[1], "광주시는 3일 청년 일자리 사업에") {
		t.Fatalf("whitespace not collapsed: %q", paragraphs[1])
	}
}

func TestPlainTextPassesThroughPlainInput(t *testing.T) {
	t.Parallel()

	got, err := PlainText("  목포시는 5일 \r\n\r\n\r\n 발표했다.  ")
	if err != nil {
		t.Fatalf("PlainText returned error: %v", err)
	}
	if got != "목포시는 5일\n\n발표했다." {
		t.Fatalf("unexpected normalisation: %q", got)
	}
}

func TestLengthCountsComposedRunes(t *testing.T) {
	t.Parallel()

	decomposed := norm.NFD.String("광주")
	if len([]rune(decomposed)) == 2 {
		t.Fatalf("fixture should be decomposed")
	}
	if got := Length(decomposed); got != 2 {
		t.Fatalf("expected 2 characters, got %d", got)
	}
}

func TestRatio(t *testing.T) {
	t.Parallel()

	original := strings.Repeat("가", 191)
	if got := Ratio(strings.Repeat("나", 134), original); math.Abs(got-134.0/191.0) > 1e-9 {
		t.Fatalf("unexpected ratio %f", got)
	}
	if got := Ratio("anything", ""); got != 0 {
		t.Fatalf("empty original must give 0, got %f", got)
	}
}
