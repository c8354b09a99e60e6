package services

import (
	"context"
	"fmt"
	"log"
	"path"
	"strconv"

	"wesnoth-ladder-system/utils"
	"wesnoth-ladder-system/wml"
)

// Victory detection reasons, strongest signal first.
const (
	VictoryReasonSurrender  = "surrender"
	VictoryReasonConditions = "victory_conditions"
	VictoryReasonUnknown    = "unknown"
)

// Confidence levels: 2 auto-confirms and rates immediately, 1 waits for a
// human report before any rating impact.
const (
	ConfidenceAutoConfirm = 2
	ConfidencePending     = 1
)

// AddonConfig is what the Ranked addon wrote into the scenario settings.
type AddonConfig struct {
	RankedMode     bool   `json:"ranked_mode"`
	Tournament     bool   `json:"tournament"`
	TournamentName string `json:"tournament_name,omitempty"`
}

// Participant is one side of the game as recorded in the replay.
type Participant struct {
	Side    int    `json:"side"`
	Name    string `json:"name"`
	Faction string `json:"faction,omitempty"`
}

// SurrenderEvent is a surrender menu trigger plus the player's confirmation.
type SurrenderEvent struct {
	Side      int  `json:"side"`
	Confirmed bool `json:"confirmed"`
}

// VictoryFacts is the decoder's best determination of who won and why.
// Reason "unknown" means the fallback fired: the first listed participant is
// assumed the winner, a known accuracy limitation of replay-only detection.
type VictoryFacts struct {
	WinnerSide    int    `json:"winner_side"`
	LoserSide     int    `json:"loser_side"`
	WinnerName    string `json:"winner_name"`
	LoserName     string `json:"loser_name"`
	WinnerFaction string `json:"winner_faction,omitempty"`
	LoserFaction  string `json:"loser_faction,omitempty"`
	Reason        string `json:"reason"`
	Confidence    int    `json:"confidence"`
}

// DecodedOutcome is everything the classifier needs from one replay. It is
// never persisted.
type DecodedOutcome struct {
	Addon        AddonConfig      `json:"addon"`
	Participants []Participant    `json:"participants"`
	Victory      VictoryFacts     `json:"victory"`
	Surrenders   []SurrenderEvent `json:"surrenders,omitempty"`
	MapName      string           `json:"map_name,omitempty"`
	EraName      string           `json:"era_name,omitempty"`
}

// ReplayDecoder turns a replay artifact into a DecodedOutcome.
type ReplayDecoder struct{}

func NewReplayDecoder() *ReplayDecoder {
	return &ReplayDecoder{}
}

// Decode fetches, decompresses and parses the replay at the given location.
// Any failure to produce a minimally structured outcome comes back as a
// *DecodeError; the caller maps that to a terminal error status.
func (d *ReplayDecoder) Decode(ctx context.Context, location string) (*DecodedOutcome, error) {
	data, err := FetchReplayArtifact(ctx, location)
	if err != nil {
		return nil, newDecodeError("fetch", err)
	}

	text, err := utils.DecompressReplay(path.Base(location), data)
	if err != nil {
		return nil, newDecodeError("decompress", err)
	}

	return d.DecodeText(text)
}

// DecodeText parses already-decompressed markup. Split out so tests can feed
// documents directly.
func (d *ReplayDecoder) DecodeText(text string) (*DecodedOutcome, error) {
	root := wml.Parse(text)
	if root.Empty() {
		return nil, newDecodeError("parse", fmt.Errorf("document contains no sections"))
	}

	addon := extractAddonConfig(root)
	participants := extractParticipants(root)
	if len(participants) == 0 {
		return nil, newDecodeError("participants", fmt.Errorf("no participants found in any side section"))
	}

	surrenders := extractSurrenders(root)
	victory := determineVictory(root, participants, surrenders, addon)
	mapName, eraName := extractSetup(root)

	log.Printf("🎬 [DECODE] %d participant(s), winner=%s reason=%s confidence=%d",
		len(participants), victory.WinnerName, victory.Reason, victory.Confidence)

	return &DecodedOutcome{
		Addon:        addon,
		Participants: participants,
		Victory:      victory,
		Surrenders:   surrenders,
		MapName:      mapName,
		EraName:      eraName,
	}, nil
}

// extractSetup pulls the map and era names from the [multiplayer] lobby
// section, falling back to the scenario's own name attribute for maps when
// the lobby block is missing.
func extractSetup(root *wml.Node) (mapName, eraName string) {
	multiplayer := root.Child("multiplayer")
	mapName = multiplayer.Attr("mp_scenario_name")
	if mapName == "" {
		mapName = multiplayer.Attr("mp_scenario")
	}
	if mapName == "" {
		mapName = root.Child("scenario").Attr("name")
	}
	eraName = multiplayer.Attr("mp_era_name")
	if eraName == "" {
		eraName = multiplayer.Attr("mp_era")
	}
	return mapName, eraName
}

// extractAddonConfig reads the Ranked addon flags out of the scenario
// settings section ([scenario] > [scenario_data], or [scenario_data] at the
// root in older dumps). Absence just means the flags are off: the session
// already carried the marker addon at the server, so the replay still flows
// through classification and gets rejected there if nothing claims it.
func extractAddonConfig(root *wml.Node) AddonConfig {
	data := root.Child("scenario").Child("scenario_data")
	if data == nil {
		data = root.Child("scenario_data")
	}
	if data == nil {
		return AddonConfig{}
	}

	// tournament_name travels even without the tournament flag: ranked games
	// with off-pool assets use it to find a casual tournament to land in
	return AddonConfig{
		RankedMode:     data.Attr("ranked_mode") == "yes",
		Tournament:     data.Attr("tournament") == "yes",
		TournamentName: data.Attr("tournament_name"),
	}
}

// extractParticipants walks the known hiding places for side data in
// preference order: [old_sideN] at the root, then inside
// [carryover_sides_start][variables], then inside [scenario], and finally the
// [side]/[leader] sections of the scenario itself.
func extractParticipants(root *wml.Node) []Participant {
	if p := participantsFromOldSides(root); len(p) > 0 {
		return p
	}
	for _, carryover := range root.All("carryover_sides_start") {
		for _, vars := range carryover.All("variables") {
			if p := participantsFromOldSides(vars); len(p) > 0 {
				return p
			}
		}
	}

	scenario := root.Child("scenario")
	if p := participantsFromOldSides(scenario); len(p) > 0 {
		return p
	}

	var participants []Participant
	for _, side := range scenario.All("side") {
		leader := side.Child("leader")
		if leader == nil {
			continue
		}
		num, err := strconv.Atoi(side.Attr("side"))
		if err != nil || num <= 0 {
			num = len(participants) + 1
		}
		name := leader.Attr("name")
		if name == "" {
			name = fmt.Sprintf("Player%d", num)
		}
		participants = append(participants, Participant{
			Side:    num,
			Name:    name,
			Faction: leader.Attr("type"),
		})
	}
	return participants
}

func participantsFromOldSides(node *wml.Node) []Participant {
	if node == nil {
		return nil
	}
	var participants []Participant
	for sideNum := 1; sideNum <= 10; sideNum++ {
		oldSide := node.Child(fmt.Sprintf("old_side%d", sideNum))
		if oldSide == nil {
			if sideNum > 1 {
				break
			}
			continue
		}
		name := oldSide.Attr("current_player")
		if name == "" {
			name = fmt.Sprintf("Player%d", sideNum)
		}
		faction := oldSide.Attr("faction")
		if faction == "" {
			faction = oldSide.Attr("faction_name")
		}
		participants = append(participants, Participant{Side: sideNum, Name: name, Faction: faction})
	}
	return participants
}

// extractSurrenders scans the command stream of the last [replay] section for
// the surrender menu trigger. The command immediately after it carries the
// player's dialog answer: [input] value=2 confirms, value=1 backs out.
func extractSurrenders(root *wml.Node) []SurrenderEvent {
	replay := root.Last("replay")
	if replay == nil {
		return nil
	}

	commands := replay.All("command")
	var surrenders []SurrenderEvent
	for i, command := range commands {
		fireEvent := command.Child("fire_event")
		if fireEvent == nil || fireEvent.Attr("raise") != "menu item surrender" {
			continue
		}

		side, _ := strconv.Atoi(command.Attr("from_side"))
		if i+1 >= len(commands) {
			continue
		}
		input := commands[i+1].Child("input")
		if input == nil {
			continue
		}
		value, _ := strconv.Atoi(input.Attr("value"))
		surrenders = append(surrenders, SurrenderEvent{
			Side:      side,
			Confirmed: value == 2,
		})
	}
	return surrenders
}

// determineVictory picks the winner by signal strength: a confirmed surrender
// beats everything (the opposite side won, full stop), an end-of-scenario
// marker comes next, and with no signal at all the first listed participant is
// assumed the winner so the pipeline always produces a classifiable outcome.
func determineVictory(root *wml.Node, participants []Participant, surrenders []SurrenderEvent, addon AddonConfig) VictoryFacts {
	confidence := ConfidenceAutoConfirm
	if addon.Tournament {
		confidence = ConfidencePending
	}

	for _, surrender := range surrenders {
		if !surrender.Confirmed {
			continue
		}
		loserSide := surrender.Side
		winnerSide := 1
		if loserSide == 1 {
			winnerSide = 2
		}
		return victoryFromSides(participants, winnerSide, loserSide, VictoryReasonSurrender, confidence)
	}

	reason := VictoryReasonUnknown
	if root.Child("scenario") != nil {
		reason = VictoryReasonConditions
	}

	winner := participants[0]
	loser := Participant{Side: winner.Side%2 + 1, Name: fmt.Sprintf("Player%d", winner.Side%2+1)}
	if len(participants) > 1 {
		loser = participants[1]
	}
	return VictoryFacts{
		WinnerSide:    winner.Side,
		LoserSide:     loser.Side,
		WinnerName:    winner.Name,
		LoserName:     loser.Name,
		WinnerFaction: winner.Faction,
		LoserFaction:  loser.Faction,
		Reason:        reason,
		Confidence:    confidence,
	}
}

func victoryFromSides(participants []Participant, winnerSide, loserSide int, reason string, confidence int) VictoryFacts {
	facts := VictoryFacts{
		WinnerSide: winnerSide,
		LoserSide:  loserSide,
		WinnerName: fmt.Sprintf("Player%d", winnerSide),
		LoserName:  fmt.Sprintf("Player%d", loserSide),
		Reason:     reason,
		Confidence: confidence,
	}
	for _, p := range participants {
		if p.Side == winnerSide {
			facts.WinnerName = p.Name
			facts.WinnerFaction = p.Faction
		}
		if p.Side == loserSide {
			facts.LoserName = p.Name
			facts.LoserFaction = p.Faction
		}
	}
	return facts
}
