package distributor

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"
)

func TestPublicURL(t *testing.T) {
	url := PublicURL("chronoreel-media", "scenario_20260829_abcd1234/final_cut.mp4")
	assert.Equal(t, "https://storage.googleapis.com/chronoreel-media/scenario_20260829_abcd1234/final_cut.mp4", url)
}

func TestIsQuotaExceeded(t *testing.T) {
	apiErr := &googleapi.Error{
		Code:   403,
		Errors: []googleapi.ErrorItem{{Reason: "storageQuotaExceeded"}},
	}
	assert.True(t, isQuotaExceeded(apiErr))
	assert.True(t, isQuotaExceeded(fmt.Errorf("drive upload: %w", apiErr)))

	assert.False(t, isQuotaExceeded(&googleapi.Error{Code: 403, Errors: []googleapi.ErrorItem{{Reason: "rateLimitExceeded"}}}))
	assert.False(t, isQuotaExceeded(fmt.Errorf("network down")))
}
