package obs_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srgjo27/activity_booking/internal/platform/obs"
)

func TestInitTracer_DisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := obs.InitTracer(context.Background(), "activity-booking", "")

	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
