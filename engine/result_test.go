package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentfloor/core"
	"github.com/hupe1980/agentfloor/internal/testutil"
	"github.com/hupe1980/agentfloor/sharing"
	"github.com/hupe1980/agentfloor/trust"
)

func TestInsights_HiddenPairDetail(t *testing.T) {
	r := trust.New()
	viewer := testutil.NewIdentity("viewer", 80)
	viewer.Visibility.MinimumTrustForVisibility = 70
	require.NoError(t, r.Register(viewer))
	require.NoError(t, r.Register(testutil.NewIdentity("target", 90)))
	require.NoError(t, r.SetTrust("viewer", "target", 65))

	snap := r.Snapshot([]string{"viewer", "target", "ghost"})
	details := map[[2]string]string{}
	for _, in := range insights(snap, nil, sharing.Result{}) {
		if in.Kind == core.InsightHiddenPair {
			details[[2]string{in.ViewerID, in.TargetID}] = in.Detail
		}
	}

	assert.Equal(t, "trust in target below the viewer's minimum trust for visibility", details[[2]string{"viewer", "target"}])
	assert.Equal(t, "target has no governance identity", details[[2]string{"viewer", "ghost"}])
	assert.Equal(t, "viewer has no governance identity", details[[2]string{"ghost", "target"}])
	assert.NotContains(t, details, [2]string{"target", "viewer"})
}
