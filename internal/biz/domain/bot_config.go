package domain

// BotConfig holds per-account settings
type BotConfig struct {
	AccountID string
	// TakenName maps a group id to the user id this account imitates when speaking
	TakenName map[string]string
}

// PersonaFor returns the imitated user id for groupID, or ""
func (c *BotConfig) PersonaFor(groupID string) string {
	if c == nil || c.TakenName == nil {
		return ""
	}
	return c.TakenName[groupID]
}
