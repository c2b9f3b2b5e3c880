package agenda

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/go-smartschool/go-smartschool/client"
)

func TestSortLessons(t *testing.T) {
	hours := map[string]client.AgendaHour{
		"h1": {HourID: "h1", Start: "08:25"},
		"h2": {HourID: "h2", Start: "09:15"},
	}
	lessons := []client.AgendaLesson{
		{Course: "LO", Date: "2023-11-14", HourID: "h1"},
		{Course: "Frans", Date: "2023-11-13", HourID: "h2"},
		{Course: "Wiskunde", Date: "2023-11-13", HourID: "h1"},
	}

	sortLessons(lessons, hours)

	var order []string
	for _, l := range lessons {
		order = append(order, l.Course)
	}
	assert.Equal(t, []string{"Wiskunde", "Frans", "LO"}, order)
}
