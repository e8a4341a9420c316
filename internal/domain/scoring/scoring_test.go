package scoring_test

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/rally/internal/domain/model"
	"github.com/okian/rally/internal/domain/scoring"
	"github.com/okian/rally/internal/domain/types"
)

var (
	t1 = model.Key(0, 0, 1)
	t2 = model.Key(0, 0, 2)
)

func TestKeystrokeRules(t *testing.T) {
	Convey("Given a board with W=11", t, func() {
		b := scoring.NewBoard([]int{2, 1})

		Convey("When \"6\" is typed into team1 with team2 empty", func() {
			res, err := b.Enter(t1, "6")
			So(err, ShouldBeNil)

			Convey("Then team2 should be auto-filled to 11 and the change reported", func() {
				So(res.S1, ShouldEqual, "6")
				So(res.S2, ShouldEqual, "11")
				So(res.Changed, ShouldBeTrue)
				So(res.Outcome, ShouldEqual, scoring.OutcomeAutoFill)
				So(*res.Next, ShouldResemble, model.Key(0, 1, 1))
				So(res.CrossedRound, ShouldBeFalse)
			})
		})

		Convey("When \"1\" is typed", func() {
			res, _ := b.Enter(t1, "1")

			Convey("Then it should hold without auto-fill", func() {
				So(res.Changed, ShouldBeFalse)
				So(res.S2, ShouldEqual, "")
				So(res.Next, ShouldBeNil)
			})

			Convey("When the field becomes \"15\"", func() {
				res, _ := b.Enter(t1, "15")

				Convey("Then it should advance with no auto-fill", func() {
					So(res.Changed, ShouldBeTrue)
					So(res.S1, ShouldEqual, "15")
					So(res.S2, ShouldEqual, "")
					So(*res.Next, ShouldResemble, t2)
				})
			})
		})

		Convey("When \"25\" is typed", func() {
			res, _ := b.Enter(t1, "25")

			Convey("Then it should truncate to \"2\" and hold", func() {
				So(res.S1, ShouldEqual, "2")
				So(res.Changed, ShouldBeFalse)
				So(res.Outcome, ShouldEqual, scoring.OutcomeTruncate)
				So(b.Get(t1), ShouldEqual, "2")
			})
		})

		Convey("When a non-numeric value is typed", func() {
			res, _ := b.Enter(t1, "x")

			Convey("Then it should be stored verbatim and not reported", func() {
				So(res.S1, ShouldEqual, "x")
				So(res.Changed, ShouldBeFalse)
				So(res.Outcome, ShouldEqual, scoring.OutcomeVerbatim)
			})
		})

		Convey("When \"0\" is typed", func() {
			res, _ := b.Enter(t1, "0")

			Convey("Then zero should count as a real score", func() {
				So(res.Changed, ShouldBeTrue)
				So(res.S2, ShouldEqual, "11")
			})
		})

		Convey("When \"10\" is typed with the sibling empty", func() {
			res, _ := b.Enter(t1, "10")

			Convey("Then it should hold", func() {
				So(res.Changed, ShouldBeFalse)
			})
		})

		Convey("When \"10\" is typed with the sibling filled", func() {
			_ = b.Apply(t2, "12")
			res, _ := b.Enter(t1, "10")

			Convey("Then it should advance", func() {
				So(res.Changed, ShouldBeTrue)
				So(res.S1, ShouldEqual, "10")
				So(res.S2, ShouldEqual, "12")
			})
		})

		Convey("When \"05\" is typed", func() {
			res, _ := b.Enter(t2, "05")

			Convey("Then it should auto-fill the sibling", func() {
				So(res.Changed, ShouldBeTrue)
				So(res.S1, ShouldEqual, "11")
			})
		})

		Convey("When the sibling already has a value and a low digit is typed", func() {
			_ = b.Apply(t2, "9")
			res, _ := b.Enter(t1, "3")

			Convey("Then the sibling should be kept", func() {
				So(res.S2, ShouldEqual, "9")
				So(res.Changed, ShouldBeTrue)
				So(res.Outcome, ShouldEqual, scoring.OutcomeAdvance)
			})
		})

		Convey("When a long value is typed", func() {
			res, _ := b.Enter(t1, "123")

			Convey("Then it should be clipped to two characters first", func() {
				So(res.S1, ShouldEqual, "12")
				So(res.Changed, ShouldBeTrue)
			})
		})

		Convey("When the key is outside the schedule", func() {
			_, err := b.Enter(model.Key(3, 0, 1), "5")

			Convey("Then it should be rejected", func() {
				So(errors.Is(err, scoring.ErrUnknownKey), ShouldBeTrue)
			})
		})
	})

	Convey("Given a board with W=7", t, func() {
		b := scoring.NewBoard([]int{1}, scoring.WithWinningScore(7))

		Convey("Then \"6\" should hold as W-1", func() {
			res, _ := b.Enter(t1, "6")
			So(res.Changed, ShouldBeFalse)
		})

		Convey("Then \"7\" should hold as the leading digit of W", func() {
			res, _ := b.Enter(t1, "7")
			So(res.Changed, ShouldBeFalse)
		})

		Convey("Then \"9\" should advance without auto-fill", func() {
			res, _ := b.Enter(t1, "9")
			So(res.Changed, ShouldBeTrue)
			So(res.S2, ShouldEqual, "")
		})

		Convey("Then the default max should leave room for extended games", func() {
			So(b.MaxScore(), ShouldEqual, 12)
		})
	})

	Convey("Given a board with a pinned max score", t, func() {
		b := scoring.NewBoard([]int{1}, scoring.WithMaxScore(13))

		Convey("Then \"15\" should truncate", func() {
			res, _ := b.Enter(t1, "15")
			So(res.S1, ShouldEqual, "1")
			So(res.Changed, ShouldBeFalse)
		})
	})
}

func TestFocusAndCompletion(t *testing.T) {
	Convey("Given a board with a completion callback", t, func() {
		fired := 0
		b := scoring.NewBoard([]int{1, 1}, scoring.WithOnComplete(func() { fired++ }))

		Convey("Then focus should start on the first field", func() {
			k, ok := b.Focus()
			So(ok, ShouldBeTrue)
			So(k, ShouldResemble, t1)
		})

		Convey("When the first game is settled", func() {
			res, _ := b.Enter(t1, "4")

			Convey("Then focus should cross into the next round", func() {
				So(*res.Next, ShouldResemble, model.Key(1, 0, 1))
				So(res.CrossedRound, ShouldBeTrue)
			})

			Convey("When the last game is settled", func() {
				res, _ := b.Enter(model.Key(1, 0, 2), "8")

				Convey("Then the board should complete and fire once", func() {
					So(res.Completed, ShouldBeTrue)
					So(res.Next, ShouldBeNil)
					So(fired, ShouldEqual, 1)
					So(b.Completed(), ShouldBeTrue)
				})

				Convey("When a field is corrected afterwards", func() {
					_, _ = b.Enter(t1, "6")

					Convey("Then the callback should not fire again", func() {
						So(fired, ShouldEqual, 1)
					})
				})
			})
		})

		Convey("When a later field is filled first", func() {
			_, _ = b.Enter(model.Key(1, 0, 1), "3")
			res, _ := b.Enter(model.Key(0, 0, 2), "15")

			Convey("Then focus should wrap to the earliest empty field", func() {
				So(*res.Next, ShouldResemble, t1)
			})
		})
	})
}

func TestRemoteWrites(t *testing.T) {
	Convey("Given a board with local scores", t, func() {
		b := scoring.NewBoard([]int{2})
		_, _ = b.Enter(t1, "6")

		Convey("When a collaborator value is applied", func() {
			changed := b.Apply(t2, "9")

			Convey("Then it should be stored without moving focus", func() {
				So(changed, ShouldBeTrue)
				So(b.Get(t2), ShouldEqual, "9")
				k, _ := b.Focus()
				So(k, ShouldResemble, model.Key(0, 1, 1))
				So(b.Apply(t2, "9"), ShouldBeFalse)
			})
		})

		Convey("When the board is replaced", func() {
			skipped := b.Replace([]types.GameScore{
				{Round: 0, Game: 1, S1: "11", S2: "7"},
				{Round: 4, Game: 0, S1: "1", S2: "1"},
			})

			Convey("Then only the replacement should remain", func() {
				So(skipped, ShouldEqual, 1)
				So(b.Snapshot(), ShouldResemble, map[string]string{"0_1_t1": "11", "0_1_t2": "7"})
				So(b.Entered(), ShouldResemble, []types.GameScore{{Round: 0, Game: 1, S1: "11", S2: "7"}})
			})
		})

		Convey("When the board is frozen", func() {
			b.Freeze()
			res, err := b.Enter(t1, "8")

			Convey("Then keystrokes should be refused", func() {
				So(errors.Is(err, scoring.ErrFrozen), ShouldBeTrue)
				So(res.Changed, ShouldBeFalse)
				So(res.S1, ShouldEqual, "6")
				So(b.Frozen(), ShouldBeTrue)
			})

			Convey("Then late collaborator writes should be ignored", func() {
				So(b.Apply(t1, "9"), ShouldBeFalse)
				So(b.Apply(model.Key(0, 1, 1), "4"), ShouldBeFalse)
				So(b.Replace([]types.GameScore{{Round: 0, Game: 1, S1: "3", S2: "11"}}), ShouldEqual, 1)
				So(b.Snapshot(), ShouldResemble, map[string]string{"0_0_t1": "6", "0_0_t2": "11"})
			})
		})

		Convey("When the winning score changes", func() {
			So(b.SetWinningScore(21), ShouldBeNil)
			res, _ := b.Enter(model.Key(0, 1, 1), "15")

			Convey("Then predictions should use the new value", func() {
				So(res.S2, ShouldEqual, "21")
				So(b.MaxScore(), ShouldEqual, 40)
			})

			Convey("Then an out of range value should be refused", func() {
				So(errors.Is(b.SetWinningScore(0), scoring.ErrInvalidWinningScore), ShouldBeTrue)
			})
		})

		Convey("When the board grows by a round", func() {
			b.Extend(3)

			Convey("Then its keys should include the new round", func() {
				So(b.Shape(), ShouldResemble, []int{2, 3})
				So(b.Keys(), ShouldHaveLength, 10)
			})
		})
	})
}
