package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderCarriesMetadata(t *testing.T) {
	t.Parallel()

	err := Newf("report %d not found", 42).
		Component("datastore").
		Category(CategoryNotFound).
		Context("report_id", 42).
		Build()

	assert.Equal(t, "report 42 not found", err.Error())
	assert.Equal(t, "datastore", err.GetComponent())
	assert.Equal(t, string(CategoryNotFound), err.GetCategory())
	assert.Equal(t, 42, err.GetContext()["report_id"])
	assert.False(t, err.Timestamp.IsZero())
}

func TestDefaultsApplied(t *testing.T) {
	t.Parallel()

	err := Newf("boom").Build()
	assert.Equal(t, ComponentUnknown, err.GetComponent())
	assert.Equal(t, string(CategoryGeneric), err.GetCategory())
}

func TestUnwrapPreservesSentinel(t *testing.T) {
	t.Parallel()

	sentinel := stderrors.New("underlying")
	err := New(sentinel).Category(CategoryDatabase).Build()

	require.ErrorIs(t, err, sentinel)

	var ee *EnhancedError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, CategoryDatabase, ee.Category)
}

func TestHasCategory(t *testing.T) {
	t.Parallel()

	inner := Newf("no such sighting").Category(CategoryNotFound).Build()
	wrapped := Newf("lookup failed: %w", inner).Build()

	assert.True(t, HasCategory(inner, CategoryNotFound))
	assert.False(t, HasCategory(inner, CategoryDatabase))
	// Outer category wins when present; the helper inspects the first
	// enhanced error in the chain.
	assert.True(t, HasCategory(wrapped.Err, CategoryNotFound))
}

func TestContextCopyIsIsolated(t *testing.T) {
	t.Parallel()

	err := Newf("x").Context("k", "v").Build()
	c := err.GetContext()
	c["k"] = "mutated"
	assert.Equal(t, "v", err.GetContext()["k"])
}

func TestInvalidPriorityFallsBack(t *testing.T) {
	t.Parallel()

	err := Newf("x").Priority("urgent-ish").Build()
	assert.Equal(t, PriorityMedium, err.Priority)
}
