package ads

import (
	"strings"

	"github.com/shopspring/decimal"
)

type Answer struct {
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
}

// Score checks answers against the ad's questions. A multiple choice answer must equal
// the correct option once surrounding whitespace is trimmed; feedback counts when not
// blank. Unknown question ids are ignored and only the first answer per question counts.
func Score(questions []AdQuestion, answers []Answer) ([]AnswerResult, int, decimal.Decimal) {
	given := make(map[string]string, len(answers))
	for _, a := range answers {
		if _, seen := given[a.QuestionID]; !seen {
			given[a.QuestionID] = a.Answer
		}
	}

	results := make([]AnswerResult, 0, len(questions))
	correct := 0
	total := decimal.Zero
	for _, q := range questions {
		answer := strings.TrimSpace(given[q.ID])

		ok := false
		switch q.Kind {
		case KindMultipleChoice:
			ok = answer != "" && answer == strings.TrimSpace(q.CorrectAnswer)
		case KindFeedback:
			ok = answer != ""
		}

		r := AnswerResult{QuestionID: q.ID, Answer: answer, Correct: ok, Reward: decimal.Zero}
		if ok {
			r.Reward = q.RewardShare
			total = total.Add(q.RewardShare)
			correct++
		}
		results = append(results, r)
	}
	return results, correct, total
}

// ClipRewards scales per-answer rewards that add up to total so they add up to
// capped instead. Shares round down to 4 places and the last rewarded answer takes
// the remainder.
func ClipRewards(results []AnswerResult, total, capped decimal.Decimal) {
	if !total.IsPositive() || !capped.LessThan(total) {
		return
	}
	if capped.IsNegative() {
		capped = decimal.Zero
	}

	last := -1
	for i := range results {
		if results[i].Reward.IsPositive() {
			last = i
		}
	}

	left := capped
	for i := range results {
		if !results[i].Reward.IsPositive() {
			continue
		}
		if i == last {
			results[i].Reward = left
			break
		}
		share := results[i].Reward.Mul(capped).Div(total).RoundDown(4)
		results[i].Reward = share
		left = left.Sub(share)
	}
}
