package webhook

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDevelopmentEndpoints(t *testing.T) {
	e := DevelopmentEndpoints()
	assert.Equal(t, "http://localhost:5678/webhook/new-mentor", e.URL(KindNewMentor))
	assert.Equal(t, "http://localhost:5678/webhook/new-mentee", e.URL(KindNewMentee))
	assert.Equal(t, "http://localhost:5678/webhook/new-program", e.URL(KindNewProgram))
	assert.Equal(t, "http://localhost:5678/webhook/mentee-registration", e.URL(KindNewConnection))
	assert.Equal(t, "http://localhost:5678/webhook/mentee-matching", e.URL(KindMatching))
	assert.Empty(t, e.URL(Kind("unknown")))
}

func TestEndpoints_WithDefaults(t *testing.T) {
	e := Endpoints{Matching: "https://hooks.example.com/match", NewMentor: "  "}.WithDefaults(DevelopmentEndpoints())

	assert.Equal(t, "https://hooks.example.com/match", e.Matching)
	assert.Equal(t, "http://localhost:5678/webhook/new-mentor", e.NewMentor)
	assert.Len(t, e.All(), 5)
}

func TestEndpoints_Validate(t *testing.T) {
	assert.NoError(t, DevelopmentEndpoints().Validate(nil))

	missing := DevelopmentEndpoints()
	missing.Matching = ""
	err := missing.Validate(nil)
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "matching")
	}

	rejectLocal := func(u string) error {
		if strings.Contains(u, "localhost") {
			return errors.New("blocked")
		}
		return nil
	}
	assert.Error(t, DevelopmentEndpoints().Validate(rejectLocal))
}
