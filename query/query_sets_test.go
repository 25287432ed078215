package query_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"hermannm.dev/gaframes/query"
)

const querySetsYAML = `
traffic:
  sessions:
    metrics: ga:sessions
  pageviews:
    metrics: [ga:pageviews]
    dimensions: ga:pagePath
  bounces:
    metrics: ga:bounces
    max_results: 10
empty: {}
`

func TestParseQuerySetsKeepsOrder(t *testing.T) {
	sets, err := query.ParseQuerySets([]byte(querySetsYAML))
	require.NoError(t, err)

	traffic := sets["traffic"]
	require.Len(t, traffic, 3)
	assert.Equal(t, "sessions", traffic[0].Name)
	assert.Equal(t, "pageviews", traffic[1].Name)
	assert.Equal(t, "bounces", traffic[2].Name)

	assert.Equal(t, []string{"ga:pagePath"}, traffic[1].Query.Dimensions)
	assert.Equal(t, 10, traffic[2].Query.MaxResults)

	assert.Empty(t, sets["empty"])
}

func TestParseQuerySetsRejectsUnknownParams(t *testing.T) {
	_, err := query.ParseQuerySets([]byte("set:\n  q:\n    metric: ga:sessions\n"))
	assert.ErrorContains(t, err, "unrecognized query parameter 'metric'")
}

func TestParseQuerySetsRejectsNonMapping(t *testing.T) {
	_, err := query.ParseQuerySets([]byte("- a\n- b\n"))
	assert.Error(t, err)
}
