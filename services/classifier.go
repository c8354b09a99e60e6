package services

import (
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"

	"wesnoth-ladder-system/models"
)

// Classification outcomes for a decoded replay.
const (
	ClassRanked             = "ranked"
	ClassTournamentRanked   = "tournament_ranked"
	ClassTournamentUnranked = "tournament_unranked"
	ClassRejected           = "rejected"
)

// TournamentRef carries the tournament linkage resolved during
// classification so the materializer does not have to look it up again.
type TournamentRef struct {
	TournamentID      string
	TournamentMatchID *string
	IsTeamMatch       bool
}

// ClassificationResult is the classifier's verdict. Reason is only set for
// rejections and explains which rule fired. Confidence drives the match
// status downstream: 2 auto-confirms, 1 waits for a human report.
type ClassificationResult struct {
	Class      string
	Reason     string
	Confidence int
	Tournament *TournamentRef
}

// MatchClassifier decides whether a decoded replay becomes a ladder match, a
// tournament match, or nothing at all.
type MatchClassifier struct {
	DB *gorm.DB
}

func NewMatchClassifier(db *gorm.DB) *MatchClassifier {
	return &MatchClassifier{DB: db}
}

// Classify runs the decision tree: the ranked flag wins over the tournament
// flag (a tournament only enters the picture when the ranked asset check
// falls through), and a game that claims neither is rejected outright.
func (c *MatchClassifier) Classify(outcome *DecodedOutcome) (*ClassificationResult, error) {
	switch {
	case outcome.Addon.RankedMode:
		return c.classifyRanked(outcome)
	case outcome.Addon.Tournament:
		return c.classifyTournament(outcome)
	default:
		return reject("replay carries neither ranked_mode nor tournament flag"), nil
	}
}

func (c *MatchClassifier) classifyRanked(outcome *DecodedOutcome) (*ClassificationResult, error) {
	if len(outcome.Participants) != 2 {
		return reject(fmt.Sprintf("ranked games are 1v1, got %d participants", len(outcome.Participants))), nil
	}

	if reason, err := c.validateRankedAssets(outcome); err != nil {
		return nil, err
	} else if reason != "" {
		return c.rankedAssetFallback(outcome, reason)
	}

	return &ClassificationResult{Class: ClassRanked, Confidence: ConfidenceAutoConfirm}, nil
}

// rankedAssetFallback gives a ranked-flagged game with off-pool assets one
// last home: an unranked tournament named in the addon config can still claim
// it. A ranked tournament cannot, its games follow the ranked asset rules.
func (c *MatchClassifier) rankedAssetFallback(outcome *DecodedOutcome, assetReason string) (*ClassificationResult, error) {
	name := outcome.Addon.TournamentName
	if name == "" {
		return reject(assetReason), nil
	}

	tournament, err := c.findOpenTournament(name)
	if err != nil {
		return nil, err
	}
	if tournament == nil || tournament.Mode == models.TournamentModeRanked {
		return reject(assetReason), nil
	}

	result, err := c.classifyWithTournament(outcome, tournament)
	if err != nil {
		return nil, err
	}
	if result.Class == ClassRejected {
		return reject(assetReason + "; " + result.Reason), nil
	}
	return result, nil
}

// validateRankedAssets checks the map and both factions against the curated
// asset tables. An empty faction is allowed (older replays omit it); a known
// but unranked one is not.
func (c *MatchClassifier) validateRankedAssets(outcome *DecodedOutcome) (string, error) {
	mapName := outcome.MapName
	if mapName != "" {
		var gameMap models.GameMap
		err := c.DB.Where("name = ?", mapName).First(&gameMap).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Sprintf("map %q is not in the ranked pool", mapName), nil
		}
		if err != nil {
			return "", fmt.Errorf("looking up map %q: %w", mapName, err)
		}
		if !gameMap.IsRanked {
			return fmt.Sprintf("map %q is not ranked", mapName), nil
		}
	}

	for _, participant := range outcome.Participants {
		if participant.Faction == "" {
			continue
		}
		var faction models.Faction
		err := c.DB.Where("name = ?", participant.Faction).First(&faction).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("looking up faction %q: %w", participant.Faction, err)
		}
		if !faction.IsRanked {
			return fmt.Sprintf("faction %q is not ranked", participant.Faction), nil
		}
	}

	return "", nil
}

func (c *MatchClassifier) classifyTournament(outcome *DecodedOutcome) (*ClassificationResult, error) {
	name := outcome.Addon.TournamentName
	if name == "" {
		return reject("tournament flag set but no tournament name"), nil
	}

	tournament, err := c.findOpenTournament(name)
	if err != nil {
		return nil, err
	}
	if tournament == nil {
		return reject(fmt.Sprintf("no open tournament named %q", name)), nil
	}

	return c.classifyWithTournament(outcome, tournament)
}

func (c *MatchClassifier) findOpenTournament(name string) (*models.Tournament, error) {
	var tournament models.Tournament
	err := c.DB.
		Where("name = ? AND status IN ?", name, []string{models.TournamentStatusOpen, models.TournamentStatusInProgress}).
		First(&tournament).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up tournament %q: %w", name, err)
	}
	return &tournament, nil
}

func (c *MatchClassifier) classifyWithTournament(outcome *DecodedOutcome, tournament *models.Tournament) (*ClassificationResult, error) {
	switch len(outcome.Participants) {
	case 2:
		return c.classifyTournamentDuel(outcome, tournament)
	case 4:
		return c.classifyTournamentTeams(outcome, tournament)
	default:
		return reject(fmt.Sprintf("tournament games need 2 or 4 participants, got %d", len(outcome.Participants))), nil
	}
}

// classifyTournamentDuel requires both players registered and an open bracket
// slot between them. Without the slot the game is somebody replaying outside
// the bracket and does not count.
func (c *MatchClassifier) classifyTournamentDuel(outcome *DecodedOutcome, tournament *models.Tournament) (*ClassificationResult, error) {
	registered, err := c.registeredParticipants(tournament.ID, outcome.Participants)
	if err != nil {
		return nil, err
	}
	if len(registered) != len(outcome.Participants) {
		return reject(fmt.Sprintf("not all players are registered in tournament %q", tournament.Name)), nil
	}

	p1 := registered[outcome.Participants[0].Name]
	p2 := registered[outcome.Participants[1].Name]

	var bracketMatch models.TournamentMatch
	err = c.DB.
		Where("tournament_id = ? AND status IN ?", tournament.ID,
			[]string{models.TournamentMatchStatusPending, models.TournamentMatchStatusUnstarted}).
		Where("(player1_id = ? AND player2_id = ?) OR (player1_id = ? AND player2_id = ?)",
			p1.PlayerID, p2.PlayerID, p2.PlayerID, p1.PlayerID).
		First(&bracketMatch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return reject(fmt.Sprintf("no open bracket slot for these players in tournament %q", tournament.Name)), nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up bracket slot: %w", err)
	}

	log.Printf("🏆 [CLASSIFY] tournament %s bracket match %s matched", tournament.Name, bracketMatch.ID)

	return &ClassificationResult{
		Class:      tournamentClass(tournament),
		Confidence: ConfidencePending,
		Tournament: &TournamentRef{
			TournamentID:      tournament.ID,
			TournamentMatchID: &bracketMatch.ID,
		},
	}, nil
}

// classifyTournamentTeams accepts a 2v2 when all four players are registered
// and they partition into exactly two registered teams of two. A bracket slot
// for the teams is used when present but not required, team brackets are
// often maintained by hand.
func (c *MatchClassifier) classifyTournamentTeams(outcome *DecodedOutcome, tournament *models.Tournament) (*ClassificationResult, error) {
	registered, err := c.registeredParticipants(tournament.ID, outcome.Participants)
	if err != nil {
		return nil, err
	}
	if len(registered) != len(outcome.Participants) {
		return reject(fmt.Sprintf("not all players are registered in tournament %q", tournament.Name)), nil
	}

	teamCounts := map[string]int{}
	for _, entry := range registered {
		if entry.TeamID == nil {
			return reject("a registered player has no team assignment"), nil
		}
		teamCounts[*entry.TeamID]++
	}
	if len(teamCounts) != 2 {
		return reject(fmt.Sprintf("expected 2 teams, players span %d", len(teamCounts))), nil
	}
	for teamID, count := range teamCounts {
		if count != 2 {
			return reject(fmt.Sprintf("team %s has %d of its players in this game", teamID, count)), nil
		}
	}

	ref := &TournamentRef{TournamentID: tournament.ID, IsTeamMatch: true}

	var bracketMatch models.TournamentMatch
	teamIDs := make([]string, 0, 2)
	for teamID := range teamCounts {
		teamIDs = append(teamIDs, teamID)
	}
	err = c.DB.
		Where("tournament_id = ? AND status IN ?", tournament.ID,
			[]string{models.TournamentMatchStatusPending, models.TournamentMatchStatusUnstarted}).
		Where("(team1_id = ? AND team2_id = ?) OR (team1_id = ? AND team2_id = ?)",
			teamIDs[0], teamIDs[1], teamIDs[1], teamIDs[0]).
		First(&bracketMatch).Error
	if err == nil {
		ref.TournamentMatchID = &bracketMatch.ID
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("looking up team bracket slot: %w", err)
	}

	return &ClassificationResult{Class: tournamentClass(tournament), Confidence: ConfidencePending, Tournament: ref}, nil
}

// registeredParticipants maps replay nicknames to their tournament
// registrations. Players who are not registered are simply absent from the
// result.
func (c *MatchClassifier) registeredParticipants(tournamentID string, participants []Participant) (map[string]*models.TournamentParticipant, error) {
	names := make([]string, 0, len(participants))
	for _, p := range participants {
		names = append(names, p.Name)
	}

	var players []models.Player
	if err := c.DB.Where("nickname IN ?", names).Find(&players).Error; err != nil {
		return nil, fmt.Errorf("looking up players: %w", err)
	}
	playerIDs := make([]string, 0, len(players))
	byID := map[string]string{}
	for _, player := range players {
		playerIDs = append(playerIDs, player.ID)
		byID[player.ID] = player.Nickname
	}

	var entries []models.TournamentParticipant
	if err := c.DB.
		Where("tournament_id = ? AND player_id IN ?", tournamentID, playerIDs).
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("looking up tournament registrations: %w", err)
	}

	registered := map[string]*models.TournamentParticipant{}
	for i := range entries {
		registered[byID[entries[i].PlayerID]] = &entries[i]
	}
	return registered, nil
}

func tournamentClass(tournament *models.Tournament) string {
	if tournament.Mode == models.TournamentModeRanked {
		return ClassTournamentRanked
	}
	return ClassTournamentUnranked
}

func reject(reason string) *ClassificationResult {
	return &ClassificationResult{Class: ClassRejected, Reason: reason}
}
