package templates

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/taxonomy-import/internal/importer"
)

func render(t *testing.T, rep *importer.Report) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, ReportPage(rep).Render(context.Background(), &buf))
	return buf.String()
}

func TestReportPage(t *testing.T) {
	started := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	rep := &importer.Report{
		RunID:      "6f1c9d52-3a5e-4f8b-9d7e-2b4c6a8e0f13",
		FileName:   "<products>.csv",
		Mode:       importer.ModeUpdate,
		DryRun:     true,
		Status:     importer.StatusCompleted,
		StartedAt:  started,
		FinishedAt: started.Add(2 * time.Second),
		Stats: importer.Stats{
			TotalRows:         3,
			ProductsFound:     2,
			ProductsNotFound:  1,
			TermsPerNamespace: []importer.NamespaceCount{{Namespace: "pa_color", Count: 4}},
		},
		Failures: map[string][]string{
			"terms_not_found": {`pa_size: "Monitor 27""`},
		},
		ProductsNotFound: []string{"SKU-9"},
	}

	html := render(t, rep)

	assert.Contains(t, html, "<!doctype html>")
	assert.Contains(t, html, "<title>Import 6f1c9d52-3a5e-4f8b-9d7e-2b4c6a8e0f13</title>")
	assert.Contains(t, html, "<p>&lt;products&gt;.csv</p>")
	assert.Contains(t, html, `<td class="completed">completed</td>`)
	assert.Contains(t, html, "<tr><th>Mode</th><td>update (dry run)</td></tr>")
	assert.Contains(t, html, "<tr><th>Execution time</th><td>2.00 seconds</td></tr>")
	assert.Contains(t, html, "<tr><th>Terms in pa_color</th><td>4</td></tr>")
	assert.Contains(t, html, "<h2>Products not found (1)</h2><ul><li>SKU-9</li></ul>")
	assert.Contains(t, html, "<h2>Terms not found (1)</h2><ul><li>pa_size: &#34;Monitor 27&#34;&#34;</li></ul>")
	assert.NotContains(t, html, "Error</th>")
	assert.NotContains(t, html, "Duplicate SKUs")
}

func TestReportPage_Failed(t *testing.T) {
	rep := &importer.Report{
		RunID:    "run-1",
		Mode:     importer.ModeReplace,
		Status:   importer.StatusFailed,
		Error:    "apply batch 1-2: connection reset",
		Failures: map[string][]string{},
	}

	html := render(t, rep)

	assert.Contains(t, html, `<td class="failed">failed</td>`)
	assert.Contains(t, html, "<tr><th>Error</th><td>apply batch 1-2: connection reset</td></tr>")
	assert.Contains(t, html, "<tr><th>Mode</th><td>replace</td></tr>")
	assert.NotContains(t, html, "<section>")
}
