package printer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_ReturnsTitleAsError(t *testing.T) {
	err := Error("creel.yml already exists", "An existing configuration was found.", nil)
	require.Error(t, err)
	assert.Equal(t, "creel.yml already exists", err.Error())
}

func TestError_WithSuggestions(t *testing.T) {
	err := Error("redis not reachable", "The engine could not connect.", []string{
		"Check the redis url in creel.yml",
		"Verify the Redis server is running",
	})
	require.Error(t, err)
	assert.Equal(t, "redis not reachable", err.Error())
}
