package pipeline

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/confocal.track/internal/testutil"
)

// assertPlain fails unless v is built only from maps with string keys,
// slices, strings, numbers and booleans.
func assertPlain(t *testing.T, path string, v any) {
	t.Helper()
	switch x := v.(type) {
	case map[string]any:
		for k, e := range x {
			assertPlain(t, path+"."+k, e)
		}
	case []any:
		for _, e := range x {
			assertPlain(t, path+"[]", e)
		}
	case string, bool, int, float64:
	default:
		t.Errorf("%s: non-plain value of type %T", path, v)
	}
}

func TestResult_SummaryIsPlain(t *testing.T) {
	stack := testutil.NewStackBuilder(3, 2, 24, 24).Blob(blob(11, 12)).MustBuild()
	res, err := Run(context.Background(), stack, testPlan(t, 5, 3))
	require.NoError(t, err)

	s := res.Summary()
	assertPlain(t, "summary", s)
	assert.NotContains(t, s, "trajectories")

	qm := s["quality_metrics"].(map[string]any)
	assert.Equal(t, 1, qm["n_tracks"])
	assert.Equal(t, map[string]any{"3": 1}, qm["track_length_hist"])

	up := s["used_params"].(map[string]any)
	assert.Equal(t, 5, up["diameter"])
	assert.Equal(t, 5.0, up["tracking"].(map[string]any)["search_range"])
	assert.Equal(t, 100.0, up["detection"].(map[string]any)["minmass"])
}

func TestResult_ToJSON(t *testing.T) {
	stack := testutil.NewStackBuilder(2, 1, 24, 24).Blob(blob(12, 12)).MustBuild()
	res, err := Run(context.Background(), stack, testPlan(t, 5, 3))
	require.NoError(t, err)

	withRows, err := res.ToJSON(true)
	require.NoError(t, err)
	var full map[string]any
	require.NoError(t, json.Unmarshal(withRows, &full))
	assert.Len(t, full["trajectories"], 2)
	assert.Equal(t, res.RunID, full["run_id"])

	summary, err := res.ToJSON(false)
	require.NoError(t, err)
	var short map[string]any
	require.NoError(t, json.Unmarshal(summary, &short))
	assert.NotContains(t, short, "trajectories")
	assert.Contains(t, short, "quality_metrics")
	assert.Contains(t, short, "used_params")
}

func TestResult_EmptySerialisesEmptyTable(t *testing.T) {
	res := emptyResult("id", UsedParamsFromPlan(testPlan(t, 5, 3)))
	data, err := res.ToJSON(true)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"trajectories": []`)
	assert.Contains(t, string(data), `"track_length_hist": {}`)
}
