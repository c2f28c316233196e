package scoring

// CommunicationProfile is the short reading of a candidate's style shown in
// the report.
type CommunicationProfile struct {
	Key         string `json:"key"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type Signals struct {
	RelevanceAvg    float64 // [0,1]
	GrammarAvg      float64 // [0,1]
	SpeechRate      float64 // words per minute
	PauseCount      int
	DominantEmotion string
}

var (
	profileAnalytical = CommunicationProfile{
		Key:         "analytical",
		Title:       "Analytical & precise",
		Description: "Methodical and structured. Takes time to think and gives precise, well-formed answers in a controlled, factual delivery.",
	}
	profileDynamic = CommunicationProfile{
		Key:         "dynamic",
		Title:       "Dynamic & persuasive",
		Description: "Communicates with energy and conviction and presents ideas quickly and engagingly.",
	}
	profileHesitant = CommunicationProfile{
		Key:         "hesitant",
		Title:       "Thoughtful & hesitant",
		Description: "Knows the subject but hesitates; frequent pauses suggest searching for words.",
	}
	profileConfused = CommunicationProfile{
		Key:         "confused",
		Title:       "Passionate & possibly confused",
		Description: "Shows a lot of energy but struggles to structure answers and address the questions directly.",
	}
	profileBalanced = CommunicationProfile{
		Key:         "balanced",
		Title:       "Balanced communicator",
		Description: "No extreme trait dominates; the style appears adaptable to different situations.",
	}
)

// Interpret picks the first matching profile, falling back to balanced.
func Interpret(s Signals) CommunicationProfile {
	switch {
	case s.RelevanceAvg >= 0.75 && s.GrammarAvg >= 0.8 && s.SpeechRate < 145 && oneOf(s.DominantEmotion, "calm", "neutral"):
		return profileAnalytical
	case s.RelevanceAvg >= 0.6 && s.SpeechRate > 155 && oneOf(s.DominantEmotion, "happy", "surprised"):
		return profileDynamic
	case s.RelevanceAvg >= 0.6 && s.SpeechRate < 125 && s.PauseCount > 8:
		return profileHesitant
	case s.RelevanceAvg < 0.5 && s.GrammarAvg < 0.7 && s.SpeechRate > 170:
		return profileConfused
	}
	return profileBalanced
}

func oneOf(v string, set ...string) bool {
	for _, s := range set {
		if v == s {
			return true
		}
	}
	return false
}
