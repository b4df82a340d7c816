package resources

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	all := c.All()
	require.Len(t, all, 9)

	ids := make(map[string]bool, len(all))
	for _, r := range all {
		assert.NotEmpty(t, r.Title)
		assert.True(t, r.Phone != "" || r.URL != "", "%s has no contact", r.ID)
		ids[r.ID] = true
	}
	assert.Len(t, ids, 9, "ids are unique")
}

func TestCatalog_Emergency(t *testing.T) {
	emergency := Default().Emergency()
	require.Len(t, emergency, 4)
	for _, r := range emergency {
		assert.Contains(t, []Category{CategoryCrisis, CategoryEmergency}, r.Category)
		assert.NotEmpty(t, r.Phone)
	}
}

func TestCatalog_ByCategoryAndSearch(t *testing.T) {
	c := Default()
	assert.Len(t, c.ByCategory(CategoryTherapy), 2)
	assert.Len(t, c.ByCategory(CategorySelfHelp), 2)
	assert.Empty(t, c.ByCategory("unknown"))

	found := c.Search("MEDITATION")
	require.Len(t, found, 2)
	assert.Equal(t, "headspace", found[0].ID)

	assert.Empty(t, c.Search("   "))
}

func TestCatalog_ReturnsCopies(t *testing.T) {
	c := Default()
	all := c.All()
	all[0].Title = "changed"
	assert.Equal(t, "National Suicide Prevention Lifeline", c.All()[0].Title)
}
