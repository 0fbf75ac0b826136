package domain

import "time"

// SpeakFlag marks ledger entries produced by proactive speaking
const SpeakFlag = "[Bot: Speak]"

// ReplyRecord is one entry of an account's recent-reply ledger in a group
type ReplyRecord struct {
	Time          time.Time
	PreRawMessage string
	PreKeywords   string
	Reply         string
	ReplyKeywords string
}

// IsSpeakMarker reports whether the record is the bare marker appended before speaking
func (r *ReplyRecord) IsSpeakMarker() bool {
	return r.Reply == SpeakFlag
}

// SpeakResult is the outcome of one proactive speak pass
type SpeakResult struct {
	BotID    string
	GroupID  string
	Messages []string
	// PokeTarget is a user to nudge alongside the messages, empty for none
	PokeTarget string
}
