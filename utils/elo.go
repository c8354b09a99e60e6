// utils/elo.go
package utils

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ExpectedScore is the probability of the player beating the opponent:
// E = 1 / (1 + 10^((Rb - Ra) / 400))
func ExpectedScore(playerRating, opponentRating int) float64 {
	return 1 / (1 + math.Pow(10, float64(opponentRating-playerRating)/400))
}

// KFactor follows the FIDE tiers:
// 8 for rating >= 2400, 16 for 2100-2399, 24 below 2100 with at least 30
// games, 40 otherwise (new and unrated players alike).
func KFactor(rating *int, matchesPlayed int) int {
	if rating == nil || *rating == 0 {
		return 40
	}
	switch {
	case *rating >= 2400:
		return 8
	case *rating >= 2100:
		return 16
	case matchesPlayed >= 30:
		return 24
	default:
		return 40
	}
}

// RatingDelta computes the signed change for one player: round(K * (S - E)),
// where S is 1 for a win and 0 for a loss. Unrated players are scored from the
// default starting rating.
func RatingDelta(rating *int, opponentRating int, won bool, matchesPlayed int) int {
	current := 1400
	if rating != nil && *rating != 0 {
		current = *rating
	}
	k := KFactor(rating, matchesPlayed)
	score := 0.0
	if won {
		score = 1.0
	}
	return int(math.Round(float64(k) * (score - ExpectedScore(current, opponentRating))))
}

// NextTrend advances the streak token: a result in the streak's direction
// lengthens it, a result against it starts a fresh one-length streak, and "-"
// (no streak) starts one in the result's direction.
func NextTrend(current string, won bool) string {
	direction := ""
	count := 0
	if current != "" && current != "-" {
		if strings.HasPrefix(current, "+") {
			direction = "W"
			count, _ = strconv.Atoi(current[1:])
		} else if strings.HasPrefix(current, "-") && len(current) > 1 {
			direction = "L"
			count, _ = strconv.Atoi(current[1:])
		}
	}

	if won {
		if direction == "W" {
			return fmt.Sprintf("+%d", count+1)
		}
		return "+1"
	}
	if direction == "L" {
		return fmt.Sprintf("-%d", count+1)
	}
	return "-1"
}

// RoundWinrate computes round(100 * wins / total, 2). Zero games is 0.
func RoundWinrate(wins, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(100*float64(wins)/float64(total)*100) / 100
}
