package results

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/go-smartschool/go-smartschool/client"
)

func TestFilterByCourse(t *testing.T) {
	results := []client.Result{
		{Name: "Toets 1", Courses: []client.Course{{Name: "Frans"}}},
		{Name: "Toets 2", Courses: []client.Course{{Name: "Aardrijkskunde"}}},
		{Name: "Toets 3"},
	}

	assert.Len(t, filterByCourse(results, ""), 3)

	got := filterByCourse(results, "frans")
	assert.Len(t, got, 1)
	assert.Equal(t, "Toets 1", got[0].Name)
}

func TestShortDate(t *testing.T) {
	assert.Equal(t, "2023-11-14", shortDate("2023-11-14T10:00:00+01:00"))
	assert.Equal(t, "", shortDate(""))
}

func TestScoreColor(t *testing.T) {
	assert.Equal(t, colorRed, scoreColor(client.ResultGraphic{Type: "percentage", Value: 0.4}))
	assert.Equal(t, colorGreen, scoreColor(client.ResultGraphic{Type: "percentage", Value: 0.8}))
	assert.Equal(t, "", scoreColor(client.ResultGraphic{Type: "text"}))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "Rapport 1_2", sanitize("Rapport 1/2"))
}
