package catalog

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/taxonomy-import/internal/importer"
)

func TestRunFromReport(t *testing.T) {
	id := uuid.New()
	start := time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)
	rep := &importer.Report{
		RunID:      id.String(),
		FileName:   "terms.csv",
		Mode:       importer.ModeReplace,
		Status:     importer.StatusFailed,
		Error:      "apply batch 1-100: deadlock detected",
		StartedAt:  start,
		FinishedAt: start.Add(time.Second),
		Stats: importer.Stats{
			TotalRows:        10,
			ProductsNotFound: 2,
			ProductsUpdated:  5,
			TermsUpdated:     7,
			TermsSkipped:     1,
		},
		Failures: map[string][]string{
			"terms_not_found": {`pa_color: "Green"`, `pa_color: "Teal"`},
		},
	}

	run, err := RunFromReport(rep)
	require.NoError(t, err)
	assert.Equal(t, Run{
		ID:               id,
		FileName:         "terms.csv",
		Mode:             "replace",
		Status:           RunFailed,
		TotalRows:        10,
		ProductsUpdated:  5,
		ProductsNotFound: 2,
		TermsUpdated:     7,
		TermsSkipped:     1,
		Failures:         2,
		Error:            "apply batch 1-100: deadlock detected",
		StartedAt:        start,
		FinishedAt:       start.Add(time.Second),
	}, run)
}

func TestRunFromReport_InvalidID(t *testing.T) {
	_, err := RunFromReport(&importer.Report{RunID: "not-a-uuid"})
	require.Error(t, err)
}
