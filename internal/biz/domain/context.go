package domain

import "time"

// Context is the learned association anchored on one trigger keyword string
type Context struct {
	ID           int64
	Keywords     string
	Time         time.Time
	TriggerCount int
	Answers      []*Answer
	Bans         []*Ban
	ClearTime    time.Time
}

// Answer is one observed response pairing within a Context, scoped to a group
type Answer struct {
	Keywords string
	GroupID  string
	Count    int
	Time     time.Time
	Messages []string
}

// Ban forbids an answer keyword within a Context, for one group or globally
type Ban struct {
	Keywords string
	GroupID  string
	Reason   string
	Time     time.Time
}

// FindAnswer returns the answer learned in groupID for keywords, or nil
func (c *Context) FindAnswer(groupID, keywords string) *Answer {
	for _, a := range c.Answers {
		if a.GroupID == groupID && a.Keywords == keywords {
			return a
		}
	}
	return nil
}

// Observe records that keywords followed this context in groupID at t.
// body is appended to an existing answer only when appendBody is set.
func (c *Context) Observe(groupID, keywords, body string, appendBody bool, t time.Time) {
	if a := c.FindAnswer(groupID, keywords); a != nil {
		a.Count++
		a.Time = t
		if appendBody {
			a.Messages = append(a.Messages, body)
		}
	} else {
		c.Answers = append(c.Answers, &Answer{
			Keywords: keywords,
			GroupID:  groupID,
			Count:    1,
			Time:     t,
			Messages: []string{body},
		})
	}
	c.Time = t
	c.TriggerCount++
}

// Sample returns the first literal message body of the answer, or ""
func (a *Answer) Sample() string {
	if len(a.Messages) == 0 {
		return ""
	}
	return a.Messages[0]
}
