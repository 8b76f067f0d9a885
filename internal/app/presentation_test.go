package app

import (
	"math/rand"
	"testing"

	"traffic-light-bot/internal/domain"
)

func TestRenderQuestionTagsFollowOptions(t *testing.T) {
	q := domain.Question{
		Index:  3,
		Prompt: "How are you?",
		Options: []domain.Option{
			{Text: "fine", Points: 0},
			{Text: "tired", Points: 1},
			{Text: "bad", Points: 2},
			{Text: "awful", Points: 3},
		},
	}
	reverse := func(n int, swap func(i, j int)) {
		for i := 0; i < n/2; i++ {
			swap(i, n-1-i)
		}
	}

	rendered := RenderQuestion(q, 20, reverse)
	if rendered.Index != 3 || rendered.Total != 20 || rendered.Prompt != q.Prompt {
		t.Fatalf("unexpected header %+v", rendered)
	}
	wantLetters := []string{"A", "B", "C", "D"}
	wantTexts := []string{"awful", "bad", "tired", "fine"}
	wantTags := []int{3, 2, 1, 0}
	for i, c := range rendered.Choices {
		if c.Letter != wantLetters[i] || c.Text != wantTexts[i] || c.Tag != wantTags[i] {
			t.Fatalf("choice %d = %+v", i, c)
		}
	}
	if q.Options[0].Text != "fine" {
		t.Fatalf("catalog options must not be reordered")
	}
}

func TestRenderQuestionShufflesEveryRender(t *testing.T) {
	q := domain.Question{Options: make([]domain.Option, 6)}
	for i := range q.Options {
		q.Options[i] = domain.Option{Text: string(rune('a' + i)), Points: i}
	}
	rnd := rand.New(rand.NewSource(1))

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		r := RenderQuestion(q, 1, rnd.Shuffle)
		order := ""
		for _, c := range r.Choices {
			if c.Text != string(rune('a'+c.Tag)) {
				t.Fatalf("tag %d does not belong to option %q", c.Tag, c.Text)
			}
			order += c.Text
		}
		seen[order] = true
	}
	if len(seen) < 2 {
		t.Fatalf("expected different orders across renders")
	}
}
