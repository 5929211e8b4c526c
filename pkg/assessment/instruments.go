// Package assessment scores the standard self-report questionnaires offered to
// users and keeps their results.
package assessment

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"careroute/pkg/models"
)

var (
	ErrUnknownAssessment = errors.New("unknown assessment")
	ErrInvalidResponses  = errors.New("invalid responses")
)

// Tier is the coarse severity band every instrument maps onto.
type Tier string

const (
	TierMinimal  Tier = "minimal"
	TierMild     Tier = "mild"
	TierModerate Tier = "moderate"
	TierSevere   Tier = "severe"
)

// Band covers scores up to and including Max.
type Band struct {
	Max   int
	Level string
	Tier  Tier
}

type Instrument struct {
	ID          string
	Name        string
	Description string
	Questions   []string
	MinItem     int
	MaxItem     int
	Bands       []Band
	// Reversed lists 0-based items scored as MaxItem-answer.
	Reversed []int
	// SafetyItem is the 0-based item whose positive answer needs a human to
	// follow up, or -1.
	SafetyItem int
}

var gad7 = Instrument{
	ID:          "GAD-7",
	Name:        "Generalized Anxiety Disorder 7",
	Description: "Over the last two weeks, how often have you been bothered by the following problems?",
	Questions: []string{
		"Feeling nervous, anxious, or on edge",
		"Not being able to stop or control worrying",
		"Worrying too much about different things",
		"Trouble relaxing",
		"Being so restless that it is hard to sit still",
		"Becoming easily annoyed or irritable",
		"Feeling afraid, as if something awful might happen",
	},
	MinItem: 0,
	MaxItem: 3,
	Bands: []Band{
		{Max: 4, Level: "Minimal anxiety", Tier: TierMinimal},
		{Max: 9, Level: "Mild anxiety", Tier: TierMild},
		{Max: 14, Level: "Moderate anxiety", Tier: TierModerate},
		{Max: 21, Level: "Severe anxiety", Tier: TierSevere},
	},
	SafetyItem: -1,
}

var phq9 = Instrument{
	ID:          "PHQ-9",
	Name:        "Patient Health Questionnaire 9",
	Description: "Over the last two weeks, how often have you been bothered by any of the following problems?",
	Questions: []string{
		"Little interest or pleasure in doing things",
		"Feeling down, depressed, or hopeless",
		"Trouble falling or staying asleep, or sleeping too much",
		"Feeling tired or having little energy",
		"Poor appetite or overeating",
		"Feeling bad about yourself, or that you are a failure or have let yourself or your family down",
		"Trouble concentrating on things, such as reading or watching television",
		"Moving or speaking so slowly that other people could have noticed, or being so fidgety or restless that you have been moving around a lot more than usual",
		"Thoughts that you would be better off dead, or of hurting yourself in some way",
	},
	MinItem: 0,
	MaxItem: 3,
	Bands: []Band{
		{Max: 4, Level: "Minimal depression", Tier: TierMinimal},
		{Max: 9, Level: "Mild depression", Tier: TierMild},
		{Max: 14, Level: "Moderate depression", Tier: TierModerate},
		{Max: 19, Level: "Moderately severe depression", Tier: TierSevere},
		{Max: 27, Level: "Severe depression", Tier: TierSevere},
	},
	SafetyItem: 8,
}

var pss = Instrument{
	ID:          "PSS",
	Name:        "Perceived Stress Scale",
	Description: "In the last month, how often have you felt or thought the following?",
	Questions: []string{
		"Been upset because of something that happened unexpectedly",
		"Felt that you were unable to control the important things in your life",
		"Felt nervous and stressed",
		"Felt confident about your ability to handle your personal problems",
		"Felt that things were going your way",
		"Found that you could not cope with all the things that you had to do",
		"Been able to control irritations in your life",
		"Felt that you were on top of things",
		"Been angered because of things that happened that were outside of your control",
		"Felt difficulties were piling up so high that you could not overcome them",
	},
	MinItem: 0,
	MaxItem: 4,
	Bands: []Band{
		{Max: 13, Level: "Low stress", Tier: TierMinimal},
		{Max: 26, Level: "Moderate stress", Tier: TierModerate},
		{Max: 40, Level: "High perceived stress", Tier: TierSevere},
	},
	Reversed:   []int{3, 4, 6, 7},
	SafetyItem: -1,
}

var instruments = map[string]Instrument{
	gad7.ID: gad7,
	phq9.ID: phq9,
	pss.ID:  pss,
}

// Lookup finds an instrument by id, ignoring case.
func Lookup(id string) (Instrument, bool) {
	in, ok := instruments[strings.ToUpper(strings.TrimSpace(id))]
	return in, ok
}

// Info is the public description of an instrument.
type Info struct {
	ID            string   `json:"assessment_id"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	QuestionCount int      `json:"question_count"`
	Questions     []string `json:"questions"`
	MinAnswer     int      `json:"min_answer"`
	MaxAnswer     int      `json:"max_answer"`
}

func (in Instrument) Info() Info {
	return Info{
		ID:            in.ID,
		Name:          in.Name,
		Description:   in.Description,
		QuestionCount: len(in.Questions),
		Questions:     append([]string(nil), in.Questions...),
		MinAnswer:     in.MinItem,
		MaxAnswer:     in.MaxItem,
	}
}

// Available lists every instrument sorted by id.
func Available() []Info {
	out := make([]Info, 0, len(instruments))
	for _, in := range instruments {
		out = append(out, in.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Outcome is the scored reading of one set of answers.
type Outcome struct {
	Score           int
	SeverityLevel   string
	Tier            Tier
	Recommendations []string
	NextSteps       []string
	SafetyConcern   bool
	// EscalationLevel is empty when no human follow-up is needed.
	EscalationLevel models.EscalationLevel
}

// Score validates responses against the instrument and scores them.
func (in Instrument) Score(responses []int) (Outcome, error) {
	if len(responses) != len(in.Questions) {
		return Outcome{}, fmt.Errorf("%w: %s expects %d answers, got %d",
			ErrInvalidResponses, in.ID, len(in.Questions), len(responses))
	}

	reversed := make(map[int]bool, len(in.Reversed))
	for _, i := range in.Reversed {
		reversed[i] = true
	}

	var out Outcome
	for i, r := range responses {
		if r < in.MinItem || r > in.MaxItem {
			return Outcome{}, fmt.Errorf("%w: answer %d to question %d is outside %d-%d",
				ErrInvalidResponses, r, i+1, in.MinItem, in.MaxItem)
		}
		if reversed[i] {
			r = in.MaxItem - r
		}
		out.Score += r
	}

	band := in.Bands[len(in.Bands)-1]
	for _, b := range in.Bands {
		if out.Score <= b.Max {
			band = b
			break
		}
	}
	out.SeverityLevel = band.Level
	out.Tier = band.Tier
	out.SafetyConcern = in.SafetyItem >= 0 && responses[in.SafetyItem] > in.MinItem

	out.Recommendations = recommendations(in.ID, band.Tier)
	out.NextSteps = nextSteps(band.Tier)
	if out.SafetyConcern {
		out.EscalationLevel = models.LevelUrgent
		out.NextSteps = append([]string{"A counselor will reach out to you", "Contact a crisis helpline if you feel unsafe"}, out.NextSteps...)
	}
	return out, nil
}

func recommendations(id string, tier Tier) []string {
	var out []string
	switch tier {
	case TierSevere:
		out = []string{
			"Consider speaking with a mental health professional",
			"Contact a crisis helpline if you're having thoughts of self-harm",
			"Reach out to trusted friends or family for support",
		}
	case TierModerate:
		out = []string{
			"Practice stress management techniques daily",
			"Consider counseling or therapy",
			"Maintain regular sleep and exercise routines",
		}
	case TierMild:
		out = []string{
			"Try relaxation techniques like deep breathing",
			"Engage in regular physical activity",
			"Practice mindfulness or meditation",
		}
	default:
		out = []string{
			"Continue healthy lifestyle habits",
			"Stay connected with supportive people",
			"Monitor your mental health regularly",
		}
	}

	switch id {
	case gad7.ID:
		out = append(out, "Practice anxiety management techniques")
	case phq9.ID:
		out = append(out, "Focus on behavioral activation and pleasant activities")
	case pss.ID:
		out = append(out, "Identify your main stressors and plan small breaks")
	}
	return out
}

func nextSteps(tier Tier) []string {
	switch tier {
	case TierSevere:
		return []string{
			"Schedule appointment with counselor",
			"Contact crisis support if needed",
			"Implement immediate coping strategies",
		}
	case TierModerate:
		return []string{
			"Try recommended coping techniques",
			"Consider professional support",
			"Monitor symptoms daily",
		}
	}
	return []string{
		"Practice self-care techniques",
		"Continue monitoring symptoms",
		"Maintain healthy routines",
	}
}
