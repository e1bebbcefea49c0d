// Package stats computes typing statistics from raw input. It is pure and
// deterministic so results can be replayed from the recorded text at any time.
package stats

import "time"

// wordLength is the conventional "5 characters = 1 word" WPM divisor.
const wordLength = 5

// Stats holds the computed metrics for one typed/sentence pair.
type Stats struct {
	CorrectChars int
	Accuracy     float64 // 0..1
	WPM          float64
}

// Compute returns correctness, accuracy and WPM for typed against sentence.
//
// Correctness is position-based: typed[i] must equal sentence[i]. A single
// inserted character misaligns and penalizes everything after it; that is
// intentional. Typed input is truncated to the sentence length before
// comparison, so over-length input can never score above the sentence.
// WPM uses correct characters only and clamps to 0 below one elapsed second.
func Compute(typed, sentence string, elapsed time.Duration) Stats {
	target := []rune(sentence)
	capped := []rune(typed)
	if len(capped) > len(target) {
		capped = capped[:len(target)]
	}

	correct := 0
	for i, r := range capped {
		if r == target[i] {
			correct++
		}
	}

	var accuracy float64
	if len(target) > 0 {
		accuracy = float64(correct) / float64(len(target))
	}

	var wpm float64
	if elapsed >= time.Second {
		minutes := elapsed.Minutes()
		wpm = float64(correct) / wordLength / minutes
	}

	return Stats{
		CorrectChars: correct,
		Accuracy:     accuracy,
		WPM:          wpm,
	}
}
