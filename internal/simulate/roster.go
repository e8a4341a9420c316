package simulate

import (
	"fmt"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/okian/rally/internal/domain/model"
)

// RandomRoster returns n players with fake names, alternating genders and the
// occasional unknown.
func RandomRoster(f *gofakeit.Faker, n int) []model.Player {
	players := make([]model.Player, 0, n)
	for i := 0; i < n; i++ {
		var g model.Gender
		switch f.Number(0, 9) {
		case 0:
			g = model.GenderUnknown
		case 1, 2, 3, 4:
			g = model.Male
		default:
			g = model.Female
		}
		players = append(players, model.Player{
			ID:     fmt.Sprintf("p%02d", i+1),
			Name:   f.FirstName(),
			Gender: g,
		})
	}
	return players
}
