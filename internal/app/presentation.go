package app

import (
	"strconv"

	"traffic-light-bot/internal/domain"
)

// ShuffleFunc matches rand.Shuffle.
type ShuffleFunc func(n int, swap func(i, j int))

// RenderQuestion shuffles the options of q and letters them in display order.
// Each choice is tagged with its option's points, so the letter never matters for scoring.
func RenderQuestion(q domain.Question, total int, shuffle ShuffleFunc) domain.RenderedQuestion {
	options := make([]domain.Option, len(q.Options))
	copy(options, q.Options)
	if shuffle != nil {
		shuffle(len(options), func(i, j int) {
			options[i], options[j] = options[j], options[i]
		})
	}

	choices := make([]domain.Choice, len(options))
	for i, opt := range options {
		choices[i] = domain.Choice{
			Letter: choiceLetter(i),
			Text:   opt.Text,
			Tag:    opt.Points,
		}
	}
	return domain.RenderedQuestion{
		Index:   q.Index,
		Total:   total,
		Prompt:  q.Prompt,
		Choices: choices,
	}
}

func choiceLetter(i int) string {
	if i < 26 {
		return string(rune('A' + i))
	}
	return strconv.Itoa(i + 1)
}
