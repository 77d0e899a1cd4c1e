package synthetic

import (
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/extractor"
	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/identity"
)

// SeedUsers returns the development accounts loaded by synthgen and the
// service bootstrap. Passwords are for local use only.
func SeedUsers() []identity.CreateUserParams {
	return []identity.CreateUserParams{
		{Email: "admin@hospital.test", Name: "Ada Admin", Role: identity.RoleAdmin, Password: "admin-dev-password"},
		{Email: "doctor@hospital.test", Name: "Devi Doctor", Role: identity.RoleDoctor, Password: "doctor-dev-password"},
		{Email: "nurse@hospital.test", Name: "Noor Nurse", Role: identity.RoleNurse, Password: "nurse-dev-password"},
	}
}

// TaskSeed pairs a generated encounter with a follow-up task so a fresh
// environment has a populated ward board.
type TaskSeed struct {
	EncounterID string
	Description string
}

func SampleTasks(ts *extractor.TableSet) []TaskSeed {
	descriptions := []string{
		"Arrange follow-up call within 48 hours of discharge",
		"Schedule home-care assessment before discharge",
		"Reconcile discharge medications with primary care",
	}

	var seeds []TaskSeed
	for i, adm := range ts.Admissions {
		if i >= len(descriptions) {
			break
		}
		seeds = append(seeds, TaskSeed{EncounterID: adm.EncounterID, Description: descriptions[i]})
	}
	return seeds
}
