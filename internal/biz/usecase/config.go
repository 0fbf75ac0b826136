package usecase

import "time"

// EngineConfig holds the learning and reply tunables. It is treated as immutable
// once passed to NewChatUsecase.
type EngineConfig struct {
	// CallPrefix is how users address the bot in plain text, e.g. "bot 你好"
	CallPrefix   string `yaml:"call_prefix"`
	KeywordsSize int    `yaml:"keywords_size"`

	AnswerThreshold        int     `yaml:"answer_threshold"`
	AnswerThresholdWeights []int   `yaml:"answer_threshold_weights"`
	CrossGroupThreshold    int     `yaml:"cross_group_threshold"`
	RepeatThreshold        int     `yaml:"repeat_threshold"`
	DuplicateReply         int     `yaml:"duplicate_reply"`
	SplitProbability       float64 `yaml:"split_probability"`

	TopicsSize       int `yaml:"topics_size"`
	TopicsImportance int `yaml:"topics_importance"`

	SpeakThreshold               int           `yaml:"speak_threshold"`
	SpeakMinMessages             int           `yaml:"speak_min_messages"`
	SpeakBaseDelay               time.Duration `yaml:"speak_base_delay"`
	SpeakContinuouslyProbability float64       `yaml:"speak_continuously_probability"`
	SpeakContinuouslyMaxLen      int           `yaml:"speak_continuously_max_len"`
	SpeakPokeProbability         float64       `yaml:"speak_poke_probability"`

	SaveTimeThreshold  time.Duration `yaml:"save_time_threshold"`
	SaveCountThreshold int           `yaml:"save_count_threshold"`
	SaveReservedSize   int           `yaml:"save_reserved_size"`

	ContextExpiration time.Duration `yaml:"context_expiration"`
	HeavyTriggerCount int           `yaml:"heavy_trigger_count"`
}

// DefaultEngineConfig returns the default engine configuration
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		CallPrefix:   "bot",
		KeywordsSize: 2,

		AnswerThreshold:        3,
		AnswerThresholdWeights: []int{7, 23, 70},
		CrossGroupThreshold:    2,
		RepeatThreshold:        3,
		DuplicateReply:         10,
		SplitProbability:       0.5,

		TopicsSize:       16,
		TopicsImportance: 10000,

		SpeakThreshold:               5,
		SpeakMinMessages:             10,
		SpeakBaseDelay:               600 * time.Second,
		SpeakContinuouslyProbability: 0.5,
		SpeakContinuouslyMaxLen:      2,
		SpeakPokeProbability:         0.6,

		SaveTimeThreshold:  time.Hour,
		SaveCountThreshold: 1000,
		SaveReservedSize:   100,

		ContextExpiration: 15 * 24 * time.Hour,
		HeavyTriggerCount: 100,
	}
}

// answerThresholdChoices returns the threshold window ending at AnswerThreshold,
// one value per configured weight.
func (c EngineConfig) answerThresholdChoices() []int {
	n := len(c.AnswerThresholdWeights)
	choices := make([]int, n)
	for i := range choices {
		choices[i] = c.AnswerThreshold - n + 1 + i
	}
	return choices
}
