package page

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

const twoJobsHTML = `<!DOCTYPE html>
<html><head><title>Sessions</title></head>
<body>
  <div class="session">
    <span class="starting" data-uuid="a1"></span>
    <div class="progressbar" style="background: blue; width: 5%"></div>
    <span class="progressbar-indicator">5%</span>
    <span class="statuslabel">queued</span>
  </div>
  <div class="session">
    <span class="starting" data-uuid="b2"></span>
    <div class="progressbar"></div>
    <span class="progressbar-indicator"></span>
    <span class="statuslabel"></span>
  </div>
</body></html>`

func mustParse(t *testing.T, doc string) *Page {
	t.Helper()
	p, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return p
}

func TestDiscover_AlignedJobs(t *testing.T) {
	p := mustParse(t, twoJobsHTML)

	jobs, err := p.Discover(DefaultSelectors(), "data-uuid")
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("len(jobs) = %d, want 2", len(jobs))
	}

	first := jobs[0]
	if first.Index != 0 || first.ID != "a1" {
		t.Errorf("jobs[0] = %+v, want index 0 id a1", first)
	}
	if first.Width != "5%" {
		t.Errorf("jobs[0].Width = %q, want %q", first.Width, "5%")
	}
	if first.Label != "5%" || first.Status != "queued" {
		t.Errorf("jobs[0] label/status = %q/%q, want 5%%/queued", first.Label, first.Status)
	}

	if jobs[1].ID != "b2" || jobs[1].Index != 1 {
		t.Errorf("jobs[1] = %+v, want index 1 id b2", jobs[1])
	}
}

func TestDiscover_NoStartingMarkers(t *testing.T) {
	// bars without markers must not trip the alignment check
	p := mustParse(t, `<html><body><div class="progressbar"></div></body></html>`)

	jobs, err := p.Discover(DefaultSelectors(), "data-uuid")
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(jobs) != 0 {
		t.Errorf("len(jobs) = %d, want 0", len(jobs))
	}
}

func TestDiscover_Misaligned(t *testing.T) {
	doc := `<html><body>
	<span class="starting" data-uuid="1"></span>
	<span class="starting" data-uuid="2"></span>
	<span class="starting" data-uuid="3"></span>
	<div class="progressbar"></div><div class="progressbar"></div>
	<span class="progressbar-indicator"></span><span class="progressbar-indicator"></span><span class="progressbar-indicator"></span>
	<span class="statuslabel"></span><span class="statuslabel"></span><span class="statuslabel"></span>
	</body></html>`
	p := mustParse(t, doc)

	_, err := p.Discover(DefaultSelectors(), "data-uuid")
	if !errors.Is(err, ErrMisaligned) {
		t.Fatalf("Discover() error = %v, want ErrMisaligned", err)
	}
	if !strings.Contains(err.Error(), "3 starting, 2 progressbar") {
		t.Errorf("error should report counts, got: %v", err)
	}
}

func TestDiscover_MissingAttribute(t *testing.T) {
	doc := `<html><body>
	<span class="starting"></span>
	<div class="progressbar"></div>
	<span class="progressbar-indicator"></span>
	<span class="statuslabel"></span>
	</body></html>`
	p := mustParse(t, doc)

	_, err := p.Discover(DefaultSelectors(), "data-uuid")
	if err == nil {
		t.Fatal("Discover() expected error for missing attribute, got nil")
	}
	if !strings.Contains(err.Error(), `"data-uuid"`) {
		t.Errorf("error should name the attribute, got: %v", err)
	}
}

func TestDiscover_CustomSelectors(t *testing.T) {
	doc := `<html><body>
	<li class="job" id="x"><i class="bar"></i><b class="pct"></b><em class="msg"></em></li>
	</body></html>`
	p := mustParse(t, doc)

	sel := Selectors{Starting: ".job", ProgressBar: ".bar", Indicator: ".pct", StatusLabel: ".msg"}
	jobs, err := p.Discover(sel, "id")
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != "x" {
		t.Errorf("jobs = %+v, want one job with id x", jobs)
	}
}

func TestApply_UpdatesIndicators(t *testing.T) {
	p := mustParse(t, twoJobsHTML)
	if _, err := p.Discover(DefaultSelectors(), "data-uuid"); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	status := "running"
	if err := p.Apply(0, Indicators{Width: "37%", Label: "37%", Status: &status}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	jobs, err := p.Discover(DefaultSelectors(), "data-uuid")
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if jobs[0].Width != "37%" {
		t.Errorf("Width = %q, want 37%%", jobs[0].Width)
	}
	if jobs[0].Label != "37%" {
		t.Errorf("Label = %q, want 37%%", jobs[0].Label)
	}
	if jobs[0].Status != "running" {
		t.Errorf("Status = %q, want running", jobs[0].Status)
	}

	// the other job is untouched
	if jobs[1].Width != "" || jobs[1].Label != "" {
		t.Errorf("jobs[1] changed: %+v", jobs[1])
	}

	out, err := p.Render()
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(out, `style="background: blue; width: 37%;"`) {
		t.Errorf("rendered page should keep other style declarations, got:\n%s", out)
	}
}

func TestApply_NilStatusKeepsLabel(t *testing.T) {
	p := mustParse(t, twoJobsHTML)
	if _, err := p.Discover(DefaultSelectors(), "data-uuid"); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	if err := p.Apply(0, Indicators{Width: "50%", Label: "50%"}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	jobs, _ := p.Discover(DefaultSelectors(), "data-uuid")
	if jobs[0].Status != "queued" {
		t.Errorf("Status = %q, want unchanged %q", jobs[0].Status, "queued")
	}
}

func TestApply_OutOfRange(t *testing.T) {
	p := mustParse(t, twoJobsHTML)
	if _, err := p.Discover(DefaultSelectors(), "data-uuid"); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	if err := p.Apply(2, Indicators{Width: "1%"}); err == nil {
		t.Error("Apply() expected error for index 2, got nil")
	}
	if err := p.Apply(-1, Indicators{Width: "1%"}); err == nil {
		t.Error("Apply() expected error for index -1, got nil")
	}
}

func TestApply_BeforeDiscover(t *testing.T) {
	p := mustParse(t, twoJobsHTML)
	if err := p.Apply(0, Indicators{Width: "1%"}); err == nil {
		t.Error("Apply() before Discover expected error, got nil")
	}
}

func TestApply_Concurrent(t *testing.T) {
	p := mustParse(t, twoJobsHTML)
	if _, err := p.Discover(DefaultSelectors(), "data-uuid"); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = p.Apply(i%2, Indicators{Width: "10%", Label: "10%"})
		}(i)
		go func() {
			defer wg.Done()
			_, _ = p.Render()
		}()
	}
	wg.Wait()
}

func TestInjectClient(t *testing.T) {
	p := mustParse(t, twoJobsHTML)

	p.InjectClient("/assets/statusbar.js", map[string]string{
		"data-progressbar": ".progressbar",
		"data-events":      `/api/sse?x="y"`,
	})

	out, err := p.Render()
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(out, `src="/assets/statusbar.js"`) {
		t.Errorf("rendered page missing script src, got:\n%s", out)
	}
	if !strings.Contains(out, `data-progressbar=".progressbar"`) {
		t.Errorf("rendered page missing data attribute, got:\n%s", out)
	}
	if strings.Contains(out, `x="y"`) {
		t.Errorf("attribute value was not escaped, got:\n%s", out)
	}
}

func TestSelectors_Validate(t *testing.T) {
	if err := DefaultSelectors().Validate(); err != nil {
		t.Errorf("DefaultSelectors().Validate() error = %v", err)
	}

	empty := DefaultSelectors()
	empty.Indicator = " "
	if err := empty.Validate(); err == nil {
		t.Error("Validate() expected error for empty selector, got nil")
	}

	invalid := DefaultSelectors()
	invalid.ProgressBar = "..bad["
	if err := invalid.Validate(); err == nil {
		t.Error("Validate() expected error for invalid selector, got nil")
	}
}

func TestSetStyleProperty(t *testing.T) {
	tests := []struct {
		style string
		want  string
	}{
		{"", "width: 40%;"},
		{"color: red", "color: red; width: 40%;"},
		{"width: 1%; color: red;", "width: 40%; color: red;"},
		{"WIDTH:1%;width:2%", "width: 40%;"},
	}
	for _, tt := range tests {
		if got := setStyleProperty(tt.style, "width", "40%"); got != tt.want {
			t.Errorf("setStyleProperty(%q) = %q, want %q", tt.style, got, tt.want)
		}
	}
}

func TestHolder(t *testing.T) {
	var h Holder

	if _, err := h.Render(); !errors.Is(err, ErrNoPage) {
		t.Errorf("Render() before Set error = %v, want ErrNoPage", err)
	}

	h.Set(mustParse(t, twoJobsHTML))
	out, err := h.Render()
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(out, "Sessions") {
		t.Errorf("Render() missing title, got:\n%s", out)
	}
	if h.Page() == nil {
		t.Error("Page() = nil after Set")
	}
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.html")
	if err := os.WriteFile(path, []byte(twoJobsHTML), 0644); err != nil {
		t.Fatalf("failed to write page: %v", err)
	}

	p, err := Load(context.Background(), FileSource(path))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	jobs, err := p.Discover(DefaultSelectors(), "data-uuid")
	if err != nil || len(jobs) != 2 {
		t.Errorf("Discover() = %d jobs, err %v; want 2 jobs", len(jobs), err)
	}

	if _, err := Load(context.Background(), FileSource(filepath.Join(t.TempDir(), "missing.html"))); err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestURLSource(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/jobs" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(twoJobsHTML))
	}))
	defer ts.Close()

	p, err := Load(context.Background(), URLSource(ts.Client(), ts.URL+"/jobs"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if jobs, _ := p.Discover(DefaultSelectors(), "data-uuid"); len(jobs) != 2 {
		t.Errorf("len(jobs) = %d, want 2", len(jobs))
	}

	_, err = Load(context.Background(), URLSource(ts.Client(), ts.URL+"/missing"))
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("Load() error = %v, want 404 error", err)
	}
}

func TestStringSource_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Load(ctx, StringSource(twoJobsHTML)); err == nil {
		t.Error("Load() with cancelled context expected error, got nil")
	}
}
