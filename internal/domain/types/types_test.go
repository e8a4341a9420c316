package types_test

import (
	"encoding/json"
	"testing"

	types "github.com/okian/rally/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestScoreUpsert(t *testing.T) {
	Convey("Given a ScoreUpsert", t, func() {
		u := types.ScoreUpsert{
			ShareCode: "ABC234",
			SessionID: "sess-1",
			ClientID:  "dev-1",
			Round:     1,
			Game:      2,
			S1:        "11",
			S2:        "6",
			ClientTS:  1700,
		}

		Convey("When converting to a stored score", func() {
			s := u.Score(42)

			Convey("Then it should keep the pair and take the server time", func() {
				So(s.Round, ShouldEqual, 1)
				So(s.Game, ShouldEqual, 2)
				So(s.S1, ShouldEqual, "11")
				So(s.S2, ShouldEqual, "6")
				So(s.UpdatedAt, ShouldEqual, 42)
			})
		})

		Convey("When encoding as JSON", func() {
			raw, err := json.Marshal(u)
			So(err, ShouldBeNil)

			Convey("Then field names should be snake_case", func() {
				So(string(raw), ShouldContainSubstring, `"share_code":"ABC234"`)
				So(string(raw), ShouldContainSubstring, `"session_id":"sess-1"`)
				So(string(raw), ShouldContainSubstring, `"client_ts":1700`)
			})
		})
	})
}

func TestPollResult(t *testing.T) {
	Convey("Given poll results", t, func() {
		Convey("When the status is finished", func() {
			p := types.PollResult{Status: types.StatusFinished}

			Convey("Then Finished should be true", func() {
				So(p.Finished(), ShouldBeTrue)
			})
		})

		Convey("When the status is active or empty", func() {
			So(types.PollResult{Status: types.StatusActive}.Finished(), ShouldBeFalse)
			So(types.PollResult{}.Finished(), ShouldBeFalse)
		})
	})
}
